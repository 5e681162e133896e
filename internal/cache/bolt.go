package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"time"

	bolt "go.etcd.io/bbolt"
)

var recordsBucket = []byte("records")

// BoltBackend stores the snapshot in a bbolt database, one key per entry in
// snapshot order. A snapshot is replaced within a single transaction.
type BoltBackend struct {
	db *bolt.DB
}

// OpenBoltBackend opens (or creates) the database at path.
func OpenBoltBackend(path string) (*BoltBackend, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("cache: opening %s: %w", path, err)
	}
	return &BoltBackend{db: db}, nil
}

func (b *BoltBackend) Load() ([]Entry, error) {
	var entries []Entry
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(recordsBucket)
		if bucket == nil {
			return fmt.Errorf("cache: no snapshot in %s: %w", b.db.Path(), fs.ErrNotExist)
		}
		entries = make([]Entry, 0, bucket.Stats().KeyN)
		return bucket.ForEach(func(k, v []byte) error {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("cache: decoding entry %s: %w", k, err)
			}
			entries = append(entries, e)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (b *BoltBackend) Save(entries []Entry) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(recordsBucket); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return fmt.Errorf("cache: clearing snapshot: %w", err)
		}
		bucket, err := tx.CreateBucket(recordsBucket)
		if err != nil {
			return fmt.Errorf("cache: creating bucket: %w", err)
		}
		for i, e := range entries {
			data, err := json.Marshal(e)
			if err != nil {
				return fmt.Errorf("cache: encoding entry %q: %w", e.Name, err)
			}
			// Zero-padded keys keep the cursor in snapshot order.
			if err := bucket.Put([]byte(fmt.Sprintf("%08d", i)), data); err != nil {
				return fmt.Errorf("cache: storing entry %q: %w", e.Name, err)
			}
		}
		return nil
	})
}

func (b *BoltBackend) Close() error {
	return b.db.Close()
}
