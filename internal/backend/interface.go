package backend

import (
	"context"

	"bilancio/internal/storage"
)

// BackendType names a storage implementation.
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (t BackendType) String() string { return string(t) }

// IsValid reports whether t is a known backend.
func (t BackendType) IsValid() bool {
	switch t {
	case SQLiteBackend, MemoryBackend:
		return true
	}
	return false
}

// CleanupFunc releases the resources held by a backend.
type CleanupFunc func() error

// BackendResult contains the store and its cleanup function.
type BackendResult struct {
	Store   storage.Store
	Cleanup CleanupFunc
}

// Factory creates stores based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite
	SQLiteDBPath string

	// Memory backend seed directory; empty starts with no directories.
	SeedDirectory string
}
