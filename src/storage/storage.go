// Package storage provides the key/value stores the playlist is persisted
// into.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by Get when no value is stored under a key.
var ErrNotFound = errors.New("storage: key not found")

// A Storage maps string keys to opaque values.
//
// Implementations must be safe for concurrent use.
type Storage interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set replaces the value stored under key.
	Set(ctx context.Context, key string, value []byte) error

	Close() error
}

// Open opens a storage backend by its driver name. The meaning of location
// depends on the driver:
//
//	dir     a directory, one file per key
//	bolt    a bbolt database file
//	sqlite  an SQLite database file
//	redis   a redis URL, e.g. redis://localhost:6379/0
//	memory  ignored
func Open(driver, location string) (Storage, error) {
	var store Storage
	var err error
	switch strings.ToLower(driver) {
	case "", "dir":
		store, err = unwrap(OpenDir(location))
	case "bolt":
		store, err = unwrap(OpenBolt(location))
	case "sqlite":
		store, err = unwrap(OpenSQLite(location))
	case "redis":
		store, err = unwrap(OpenRedis(location))
	case "memory":
		store = NewMemory()
	default:
		err = fmt.Errorf("unknown storage driver: %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("could not open %s storage: %w", driver, err)
	}
	return store, nil
}

// unwrap prevents a typed nil from leaking into the Storage interface.
func unwrap[S Storage](store S, err error) (Storage, error) {
	if err != nil {
		return nil, err
	}
	return store, nil
}
