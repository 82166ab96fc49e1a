package storage

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

// TestStorageImplementation tests the implementation of the storage.Storage
// interface.
func TestStorageImplementation(t *testing.T, store Storage) {
	ctx := context.Background()
	t.Run("missing", func(t *testing.T) {
		if _, err := store.Get(ctx, "missing_key"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Unexpected error for a missing key: %v", err)
		}
	})
	t.Run("set_get", func(t *testing.T) {
		if err := store.Set(ctx, "some_key", []byte(`[{"id":"a"}]`)); err != nil {
			t.Fatal(err)
		}
		b, err := store.Get(ctx, "some_key")
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(b, []byte(`[{"id":"a"}]`)) {
			t.Fatalf("Unexpected value: %q", b)
		}
	})
	t.Run("overwrite", func(t *testing.T) {
		if err := store.Set(ctx, "other_key", []byte("first")); err != nil {
			t.Fatal(err)
		}
		if err := store.Set(ctx, "other_key", []byte("2")); err != nil {
			t.Fatal(err)
		}
		b, err := store.Get(ctx, "other_key")
		if err != nil {
			t.Fatal(err)
		}
		if string(b) != "2" {
			t.Fatalf("Value was not overwritten: %q", b)
		}
	})
	t.Run("isolation", func(t *testing.T) {
		value := []byte("abc")
		if err := store.Set(ctx, "iso_key", value); err != nil {
			t.Fatal(err)
		}
		value[0] = 'x'
		b, err := store.Get(ctx, "iso_key")
		if err != nil {
			t.Fatal(err)
		}
		if string(b) != "abc" {
			t.Fatalf("Stored value was aliased: %q", b)
		}
	})
}
