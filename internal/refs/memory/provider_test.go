package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/draftline/draftline/internal/refs"
	"github.com/draftline/draftline/internal/refs/memory"
)

func TestForkAndHistory(t *testing.T) {
	ctx := context.Background()
	p := memory.New("main")

	tip, err := p.Tip("main")
	assert.NoError(t, err)
	assert.NotEmpty(t, tip)

	info, err := p.CreateIsolatedRef(ctx, "feature-a", "main")
	assert.NoError(t, err)
	assert.Equal(t, "feature-a", info.Ref)
	assert.Equal(t, tip, info.BaseCommit)
	assert.Equal(t, tip, info.HeadCommit)

	// The fork carries the base history.
	exists, err := p.CommitExistsOnRef(ctx, tip, "feature-a")
	assert.NoError(t, err)
	assert.True(t, exists)

	// New commits on main do not appear on the fork.
	later, err := p.Commit("main")
	assert.NoError(t, err)
	exists, err = p.CommitExistsOnRef(ctx, later, "feature-a")
	assert.NoError(t, err)
	assert.False(t, exists)

	_, err = p.CreateIsolatedRef(ctx, "feature-a", "main")
	assert.ErrorIs(t, err, refs.ErrRefExists)

	_, err = p.CreateIsolatedRef(ctx, "feature-b", "nope")
	assert.ErrorIs(t, err, refs.ErrRefNotFound)
}

func TestRewriteStrandsForks(t *testing.T) {
	ctx := context.Background()
	p := memory.New("main")

	info, err := p.CreateIsolatedRef(ctx, "feature-a", "main")
	assert.NoError(t, err)

	// A force-push replaces main's history; the fork point is gone.
	_, err = p.Rewrite("main")
	assert.NoError(t, err)

	exists, err := p.CommitExistsOnRef(ctx, info.BaseCommit, "main")
	assert.NoError(t, err)
	assert.False(t, exists)

	// The fork itself still holds the old commit.
	exists, err = p.CommitExistsOnRef(ctx, info.BaseCommit, "feature-a")
	assert.NoError(t, err)
	assert.True(t, exists)
}

func TestDeleteRef(t *testing.T) {
	ctx := context.Background()
	p := memory.New("main")

	_, err := p.CreateIsolatedRef(ctx, "feature-a", "main")
	assert.NoError(t, err)
	assert.NoError(t, p.DeleteIsolatedRef(ctx, "feature-a"))
	assert.ErrorIs(t, p.DeleteIsolatedRef(ctx, "feature-a"), refs.ErrRefNotFound)

	_, err = p.Tip("feature-a")
	assert.ErrorIs(t, err, refs.ErrRefNotFound)
}

func TestDiffRefs(t *testing.T) {
	ctx := context.Background()
	p := memory.New("main")

	_, err := p.CreateIsolatedRef(ctx, "feature-a", "main")
	assert.NoError(t, err)

	stat, err := p.DiffRefs(ctx, "main", "feature-a")
	assert.NoError(t, err)
	assert.Equal(t, 0, stat.FilesChanged)

	_, err = p.Commit("feature-a")
	assert.NoError(t, err)
	_, err = p.Commit("main")
	assert.NoError(t, err)

	stat, err = p.DiffRefs(ctx, "main", "feature-a")
	assert.NoError(t, err)
	assert.Equal(t, 2, stat.FilesChanged)
}
