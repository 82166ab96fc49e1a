package storage

import (
	"context"
	"time"

	bolt "go.etcd.io/bbolt"
)

var boltBucket = []byte("mixtape")

// Bolt stores values in a single bucket of a bbolt database.
type Bolt struct {
	db *bolt.DB
}

func OpenBolt(filename string) (*Bolt, error) {
	db, err := bolt.Open(filename, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Bolt{db: db}, nil
}

// Get implements the Storage interface.
func (store *Bolt) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := store.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(boltBucket).Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}
		// The slice is only valid during the transaction.
		value = append([]byte(nil), v...)
		return nil
	})
	return value, err
}

// Set implements the Storage interface.
func (store *Bolt) Set(ctx context.Context, key string, value []byte) error {
	return store.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Put([]byte(key), value)
	})
}

// Close implements the Storage interface.
func (store *Bolt) Close() error {
	return store.db.Close()
}
