package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

var validKey = regexp.MustCompile(`^[\w.-]+$`)

// Dir stores every key as a JSON file in a directory.
type Dir struct {
	dir      string
	fileLock sync.Mutex
}

// OpenDir creates the directory if needed. A leading "~" is expanded to the
// home directory.
func OpenDir(dir string) (*Dir, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage dir unset")
	}
	if strings.HasPrefix(dir, "~") {
		dir = strings.Replace(dir, "~", os.Getenv("HOME"), 1)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Dir{dir: dir}, nil
}

func (store *Dir) filename(key string) (string, error) {
	if !validKey.MatchString(key) {
		return "", fmt.Errorf("invalid storage key: %q", key)
	}
	return filepath.Join(store.dir, key+".json"), nil
}

// Get implements the Storage interface.
func (store *Dir) Get(ctx context.Context, key string) ([]byte, error) {
	file, err := store.filename(key)
	if err != nil {
		return nil, err
	}
	store.fileLock.Lock()
	defer store.fileLock.Unlock()

	b, err := os.ReadFile(file)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return b, nil
}

// Set implements the Storage interface. The value is written to a temporary
// file first so readers never observe a partial write.
func (store *Dir) Set(ctx context.Context, key string, value []byte) error {
	file, err := store.filename(key)
	if err != nil {
		return err
	}
	store.fileLock.Lock()
	defer store.fileLock.Unlock()

	tmp, err := os.CreateTemp(store.dir, "."+key+"-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), file)
}

// Close implements the Storage interface.
func (store *Dir) Close() error {
	return nil
}
