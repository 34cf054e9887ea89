package cache

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var resolutionsBucket = []byte("resolutions")

// persistedEntry pairs a cached canonical id with the time it was written,
// so a restarted process can still expire entries older than the cache's
// configured TTL instead of trusting bbolt's on-disk copy forever.
type persistedEntry struct {
	EntityID  string    `json:"entity_id"`
	WrittenAt time.Time `json:"written_at"`
}

// PersistentStore is an optional disk-backed second tier under
// ResolutionCache, for single-node deployments that want resolved ids to
// survive a process restart instead of re-querying the graph store cold.
// Grounded on the teacher's IdentityResolver bbolt get/set-cached pattern,
// generalized from caching historical file paths to caching resolved
// entity ids.
type PersistentStore struct {
	db *bolt.DB
}

// OpenPersistentStore opens (creating if absent) a bbolt database at path
// and ensures its bucket exists.
func OpenPersistentStore(path string) (*PersistentStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open persistent cache: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(resolutionsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init persistent cache bucket: %w", err)
	}

	return &PersistentStore{db: db}, nil
}

// Close releases the underlying bbolt file lock.
func (s *PersistentStore) Close() error {
	return s.db.Close()
}

func (s *PersistentStore) get(key string, ttl time.Duration) (string, bool) {
	var entry persistedEntry
	found := false

	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(resolutionsBucket).Get([]byte(key))
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &entry); err != nil {
			return nil
		}
		found = true
		return nil
	})
	if err != nil || !found {
		return "", false
	}
	if time.Since(entry.WrittenAt) > ttl {
		return "", false
	}
	return entry.EntityID, true
}

func (s *PersistentStore) set(key, entityID string) error {
	entry := persistedEntry{EntityID: entityID, WrittenAt: time.Now()}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(resolutionsBucket).Put([]byte(key), data)
	})
}

func (s *PersistentStore) delete(key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(resolutionsBucket).Delete([]byte(key))
	})
}
