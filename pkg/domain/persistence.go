package domain

import (
	"context"
	"errors"
)

// ErrNoTables is returned by loaders whose backing store holds no snapshot yet.
var ErrNoTables = errors.New("no tables loaded")

// TableSource exposes a snapshot of the five record collections.
type TableSource interface {
	LoadTables(ctx context.Context) (Tables, error)
}

// TableStore is a minimal abstraction over durable backends holding a table
// snapshot. SaveTables replaces the whole snapshot atomically.
type TableStore interface {
	TableSource
	SaveTables(ctx context.Context, tables Tables) error
}
