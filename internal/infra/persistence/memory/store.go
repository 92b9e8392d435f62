// Package memory provides the in-process table store and the bucket codec
// shared by the snapshotting SQL backends.
package memory

import (
	"context"
	"sync"

	"crisprcore/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.TableStore = (*Store)(nil)

// Snapshot is the full persisted state of a table store.
type Snapshot = domain.Tables

// Store keeps one table snapshot in memory. Reads and writes clone so callers
// never share backing arrays with the store.
type Store struct {
	mu     sync.RWMutex
	tables domain.Tables
	saved  bool
}

// NewStore constructs an empty in-memory store.
func NewStore() *Store {
	return &Store{}
}

// LoadTables returns a copy of the stored snapshot, or domain.ErrNoTables
// when nothing was saved yet.
func (s *Store) LoadTables(ctx context.Context) (domain.Tables, error) {
	if err := ctx.Err(); err != nil {
		return domain.Tables{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.saved {
		return domain.Tables{}, domain.ErrNoTables
	}
	return s.tables.Clone(), nil
}

// SaveTables replaces the stored snapshot.
func (s *Store) SaveTables(ctx context.Context, t domain.Tables) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.ImportState(t)
	return nil
}

// ExportState returns a deep copy of the current snapshot.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tables.Clone()
}

// ImportState replaces the snapshot and marks the store as populated.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables = snapshot.Clone()
	s.saved = true
}

// Saved reports whether a snapshot has been stored.
func (s *Store) Saved() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saved
}
