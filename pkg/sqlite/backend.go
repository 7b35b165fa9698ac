// Package sqlite provides the public API for the SQLite Interfold backend.
// This package exposes the factory function for creating SQLite backends
// while keeping implementation details internal.
package sqlite

import (
	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/interfold/internal/sqlite"
	"github.com/mesh-intelligence/interfold/pkg/types"
)

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
//
// Example:
//
//	backend := sqlite.NewBackend()
//	err := backend.Attach(types.Config{
//	    Backend: types.BackendSQLite,
//	    DataDir: ".interfold-db",
//	})
//	defer backend.Detach()
//	scope, err := backend.Scope(ctx, "user-123")
func NewBackend() types.Workspace {
	return sqlite.NewBackend()
}

// NewBackendWithLogger is NewBackend with lifecycle and mutation events
// written to log.
func NewBackendWithLogger(log zerolog.Logger) types.Workspace {
	return sqlite.NewBackend(sqlite.WithLogger(log))
}
