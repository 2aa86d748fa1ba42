package sqlite

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/draftline/draftline/internal/storage"
	"github.com/draftline/draftline/internal/types"
)

const branchColumns = `id, name, slug, description, owner_id, base_ref, base_commit, head_commit,
	state, visibility, required_approvals, labels,
	created_at, updated_at, submitted_at, approved_at, published_at, archived_at`

// allowedUpdateColumns is the set of columns UpdateBranch accepts. Anything
// else is rejected to keep update maps from reaching arbitrary columns.
var allowedUpdateColumns = map[string]bool{
	"name":               true,
	"slug":               true,
	"description":        true,
	"state":              true,
	"visibility":         true,
	"required_approvals": true,
	"base_commit":        true,
	"head_commit":        true,
	"labels":             true,
	"submitted_at":       true,
	"approved_at":        true,
	"published_at":       true,
	"archived_at":        true,
}

// CreateBranch inserts a new branch row. The slug must be unique; a
// collision returns storage.ErrDuplicateSlug.
func (s *Store) CreateBranch(ctx context.Context, branch *types.Branch) error {
	branch.SetDefaults()
	if err := branch.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	if branch.CreatedAt.IsZero() {
		branch.CreatedAt = now
	}
	branch.UpdatedAt = now

	if err := insertBranch(ctx, s.db, branch); err != nil {
		return err
	}
	return nil
}

func insertBranch(ctx context.Context, q querier, branch *types.Branch) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO branches (
			id, name, slug, description, owner_id, base_ref, base_commit, head_commit,
			state, visibility, required_approvals, labels,
			created_at, updated_at, submitted_at, approved_at, published_at, archived_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		branch.ID, branch.Name, branch.Slug, branch.Description, branch.OwnerID,
		branch.BaseRef, branch.BaseCommit, branch.HeadCommit,
		branch.State, branch.Visibility, branch.RequiredApprovals,
		formatJSONStringArray(branch.Labels),
		branch.CreatedAt, branch.UpdatedAt,
		branch.SubmittedAt, branch.ApprovedAt, branch.PublishedAt, branch.ArchivedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert branch %s: %w", branch.ID, storage.ErrDuplicateSlug)
		}
		return fmt.Errorf("failed to insert branch: %w", err)
	}
	return nil
}

// GetBranch retrieves a branch by ID, including its member sets.
func (s *Store) GetBranch(ctx context.Context, id string) (*types.Branch, error) {
	return getBranch(ctx, s.db, "id", id)
}

// GetBranchBySlug retrieves a branch by its URL-safe slug.
func (s *Store) GetBranchBySlug(ctx context.Context, slug string) (*types.Branch, error) {
	return getBranch(ctx, s.db, "slug", slug)
}

func getBranch(ctx context.Context, q querier, column, value string) (*types.Branch, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+branchColumns+` FROM branches WHERE `+column+` = ?`, value)
	branch, err := scanBranch(row)
	if err != nil {
		return nil, wrapDBError("get branch by "+column, err)
	}
	if err := loadMembers(ctx, q, branch); err != nil {
		return nil, err
	}
	return branch, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanBranch.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanBranch(row rowScanner) (*types.Branch, error) {
	var b types.Branch
	var labels string
	err := row.Scan(
		&b.ID, &b.Name, &b.Slug, &b.Description, &b.OwnerID,
		&b.BaseRef, &b.BaseCommit, &b.HeadCommit,
		&b.State, &b.Visibility, &b.RequiredApprovals, &labels,
		&b.CreatedAt, &b.UpdatedAt,
		&b.SubmittedAt, &b.ApprovedAt, &b.PublishedAt, &b.ArchivedAt,
	)
	if err != nil {
		return nil, err
	}
	b.Labels = parseJSONStringArray(labels)
	return &b, nil
}

func loadMembers(ctx context.Context, q querier, branch *types.Branch) error {
	rows, err := q.QueryContext(ctx,
		`SELECT user_id, role FROM branch_members WHERE branch_id = ? ORDER BY created_at, user_id`,
		branch.ID)
	if err != nil {
		return fmt.Errorf("failed to load members: %w", err)
	}
	defer func() { _ = rows.Close() }()

	branch.Reviewers = nil
	branch.Collaborators = nil
	for rows.Next() {
		var userID, role string
		if err := rows.Scan(&userID, &role); err != nil {
			return fmt.Errorf("failed to scan member: %w", err)
		}
		switch role {
		case roleReviewer:
			branch.Reviewers = append(branch.Reviewers, userID)
		case roleCollaborator:
			branch.Collaborators = append(branch.Collaborators, userID)
		}
	}
	return rows.Err()
}

// UpdateBranch applies a column update map to a branch. Unknown columns are
// rejected. updated_at is always stamped.
func (s *Store) UpdateBranch(ctx context.Context, id string, updates map[string]interface{}) error {
	return updateBranch(ctx, s.db, id, updates)
}

func updateBranch(ctx context.Context, q querier, id string, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}

	// Stable column order for deterministic SQL
	columns := make([]string, 0, len(updates))
	for col := range updates {
		if !allowedUpdateColumns[col] {
			return fmt.Errorf("update branch: column %q not allowed", col)
		}
		columns = append(columns, col)
	}
	sort.Strings(columns)

	var sets []string
	var args []any
	for _, col := range columns {
		sets = append(sets, col+" = ?")
		args = append(args, normalizeUpdateValue(col, updates[col]))
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC())
	args = append(args, id)

	res, err := q.ExecContext(ctx,
		`UPDATE branches SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("update branch %s: %w", id, storage.ErrDuplicateSlug)
		}
		return fmt.Errorf("failed to update branch %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update branch %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

func normalizeUpdateValue(col string, v any) any {
	switch val := v.(type) {
	case []string:
		return formatJSONStringArray(val)
	case types.BranchState:
		return string(val)
	case types.Visibility:
		return string(val)
	default:
		return v
	}
}

// SlugAvailable reports whether no branch currently uses the given slug.
func (s *Store) SlugAvailable(ctx context.Context, slug string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM branches WHERE slug = ?`, slug).Scan(&count)
	if err != nil {
		return false, wrapDBError("check slug", err)
	}
	return count == 0, nil
}

// ListBranches returns branches matching the filter, newest first.
func (s *Store) ListBranches(ctx context.Context, filter types.BranchFilter) ([]*types.Branch, error) {
	query := `SELECT ` + branchColumns + ` FROM branches WHERE 1=1`
	var args []any

	if !filter.IncludeArchived {
		query += ` AND state != ?`
		args = append(args, string(types.StateArchived))
	}
	if filter.OwnerID != nil {
		query += ` AND owner_id = ?`
		args = append(args, *filter.OwnerID)
	}
	if filter.State != nil {
		query += ` AND state = ?`
		args = append(args, string(*filter.State))
	}
	if filter.Visibility != nil {
		query += ` AND visibility = ?`
		args = append(args, string(*filter.Visibility))
	}
	if filter.TitleSearch != "" {
		query += ` AND (name LIKE ? OR description LIKE ? OR slug LIKE ?)`
		pattern := "%" + filter.TitleSearch + "%"
		args = append(args, pattern, pattern, pattern)
	}
	query += ` ORDER BY created_at DESC, id`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		if filter.Limit <= 0 {
			query += ` LIMIT -1`
		}
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("list branches", err)
	}
	defer func() { _ = rows.Close() }()

	var branches []*types.Branch
	for rows.Next() {
		b, err := scanBranch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan branch: %w", err)
		}
		branches = append(branches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate branches: %w", err)
	}

	// Label filtering happens in memory: labels live in a JSON column and
	// the filter is rarely used on large sets.
	if len(filter.Labels) > 0 {
		branches = filterByLabels(branches, filter.Labels)
	}

	for _, b := range branches {
		if err := loadMembers(ctx, s.db, b); err != nil {
			return nil, err
		}
	}
	return branches, nil
}

func filterByLabels(branches []*types.Branch, required []string) []*types.Branch {
	var out []*types.Branch
	for _, b := range branches {
		has := make(map[string]bool, len(b.Labels))
		for _, l := range b.Labels {
			has[l] = true
		}
		matched := true
		for _, want := range required {
			if !has[want] {
				matched = false
				break
			}
		}
		if matched {
			out = append(out, b)
		}
	}
	return out
}

// GetStatistics returns aggregate branch counts by state.
func (s *Store) GetStatistics(ctx context.Context) (*types.Statistics, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT state, COUNT(*) FROM branches GROUP BY state`)
	if err != nil {
		return nil, wrapDBError("get statistics", err)
	}
	defer func() { _ = rows.Close() }()

	var stats types.Statistics
	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, fmt.Errorf("failed to scan statistics: %w", err)
		}
		stats.Total += count
		switch types.BranchState(state) {
		case types.StateDraft:
			stats.DraftCount = count
		case types.StateReview:
			stats.ReviewCount = count
		case types.StateApproved:
			stats.ApprovedCount = count
		case types.StatePublished:
			stats.PublishedCount = count
		case types.StateArchived:
			stats.ArchivedCount = count
		}
	}
	return &stats, rows.Err()
}
