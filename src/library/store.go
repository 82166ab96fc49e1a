package library

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"mixtape/src/storage"
)

const (
	// DefaultKey is the storage key the playlist is persisted under.
	DefaultKey = "mixtape_playlist_v4"
)

// DefaultLegacyKeys lists the keys older versions persisted the playlist
// under, most recent first.
var DefaultLegacyKeys = []string{
	"gokhan_playlist_v4",
	"gokhan_playlist_v3",
	"gokhan_playlist_v2",
}

// A Store persists a playlist through a key/value storage.
type Store struct {
	storage storage.Storage

	// Key is where the playlist is read from and written to.
	Key string
	// LegacyKeys are consulted in order when Key holds no usable data. The
	// first of them that does is migrated to Key.
	LegacyKeys []string
}

// NewStore returns a Store that uses the default keys.
func NewStore(st storage.Storage) *Store {
	return &Store{
		storage:    st,
		Key:        DefaultKey,
		LegacyKeys: append([]string(nil), DefaultLegacyKeys...),
	}
}

// Load reads the playlist. The current key is tried first, then each legacy
// key. Keys that are missing or do not hold a JSON array with at least one
// valid track are skipped. The playlist that is found is written back to the
// current key so the migration happens only once.
//
// An empty playlist is returned if no key holds a usable playlist.
func (store *Store) Load(ctx context.Context) (Playlist, error) {
	candidates := append([]string{store.Key}, store.LegacyKeys...)
	for _, key := range candidates {
		pl, ok := store.loadKey(ctx, key)
		if !ok {
			continue
		}
		if key != store.Key {
			log.WithField("key", key).Infof("Migrating %d tracks from legacy storage", len(pl))
		}
		if err := store.Save(ctx, pl); err != nil {
			return pl, fmt.Errorf("could not persist playlist loaded from %q: %w", key, err)
		}
		return pl, nil
	}
	return Playlist{}, nil
}

func (store *Store) loadKey(ctx context.Context, key string) (Playlist, bool) {
	data, err := store.storage.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false
	} else if err != nil {
		log.WithField("key", key).Warnf("Could not read playlist: %v", err)
		return nil, false
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(data, &elements); err != nil {
		log.WithField("key", key).Debugf("Ignoring malformed playlist: %v", err)
		return nil, false
	}
	pl := Playlist{}
	for i, element := range elements {
		var raw RawTrack
		if err := json.Unmarshal(element, &raw); err != nil {
			continue
		}
		if track, ok := Normalize(raw, i); ok {
			pl = append(pl, track)
		}
	}
	return pl, len(pl) > 0
}

// Save overwrites the persisted playlist.
func (store *Store) Save(ctx context.Context, pl Playlist) error {
	if pl == nil {
		pl = Playlist{}
	}
	data, err := json.Marshal(pl)
	if err != nil {
		return err
	}
	return store.storage.Set(ctx, store.Key, data)
}

// Add normalizes raw and appends it to pl. The resulting playlist is
// persisted and returned. If raw is not a valid track, pl is returned as is
// with false.
func (store *Store) Add(ctx context.Context, pl Playlist, raw RawTrack) (Playlist, bool, error) {
	track, ok := Normalize(raw, len(pl))
	if !ok {
		return pl, false, nil
	}
	out := append(pl.Clone(), track)
	if err := store.Save(ctx, out); err != nil {
		return pl, false, err
	}
	return out, true, nil
}

// RemoveAt removes the track at index from pl and persists the result. If
// the index is out of range, pl is returned as is with false.
func (store *Store) RemoveAt(ctx context.Context, pl Playlist, index int) (Playlist, bool, error) {
	if index < 0 || index >= len(pl) {
		return pl, false, nil
	}
	out := make(Playlist, 0, len(pl)-1)
	out = append(out, pl[:index]...)
	out = append(out, pl[index+1:]...)
	if err := store.Save(ctx, out); err != nil {
		return pl, false, err
	}
	return out, true, nil
}

// Clear persists an empty playlist.
func (store *Store) Clear(ctx context.Context) error {
	return store.Save(ctx, Playlist{})
}
