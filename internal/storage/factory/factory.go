// Package factory creates storage backends based on configuration.
package factory

import (
	"context"
	"fmt"

	"github.com/draftline/draftline/internal/storage"
	"github.com/draftline/draftline/internal/storage/memory"
	"github.com/draftline/draftline/internal/storage/sqlite"
)

// Backend names accepted by New.
const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// BackendFactory is a function that creates a storage backend.
type BackendFactory func(ctx context.Context, path string) (storage.Storage, error)

// backendRegistry holds registered backend factories. The built-in backends
// are registered at init; external backends can add themselves.
var backendRegistry = map[string]BackendFactory{
	BackendSQLite: func(ctx context.Context, path string) (storage.Storage, error) {
		return sqlite.New(ctx, path)
	},
	BackendMemory: func(ctx context.Context, path string) (storage.Storage, error) {
		return memory.New(), nil
	},
}

// RegisterBackend registers a storage backend factory under a name.
func RegisterBackend(name string, factory BackendFactory) {
	backendRegistry[name] = factory
}

// New creates a storage backend based on the backend type. An empty backend
// defaults to sqlite.
func New(ctx context.Context, backend, path string) (storage.Storage, error) {
	if backend == "" {
		backend = BackendSQLite
	}
	factory, ok := backendRegistry[backend]
	if !ok {
		return nil, fmt.Errorf("unknown storage backend: %s (supported: sqlite, memory)", backend)
	}
	return factory(ctx, path)
}
