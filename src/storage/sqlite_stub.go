//go:build !cgo

package storage

import (
	"context"
	"errors"
)

var errNoSQLite = errors.New("the sqlite storage driver is not available in non-cgo builds, use another driver or rebuild with CGO_ENABLED=1")

type SQLite struct{}

func OpenSQLite(filename string) (*SQLite, error) {
	return nil, errNoSQLite
}

func (store *SQLite) Get(ctx context.Context, key string) ([]byte, error) { return nil, errNoSQLite }

func (store *SQLite) Set(ctx context.Context, key string, value []byte) error { return errNoSQLite }

func (store *SQLite) Close() error { return nil }
