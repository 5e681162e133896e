package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/antonholmquist/jason"
)

// Backend persists whole snapshots. Load must wrap fs.ErrNotExist when no
// snapshot has been saved yet.
type Backend interface {
	Load() ([]Entry, error)
	Save(entries []Entry) error
	Close() error
}

// FileBackend stores the snapshot as a JSON array in a single file.
type FileBackend struct {
	path string
}

// NewFileBackend returns a backend writing to path.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

// Load reads the snapshot. Files written by earlier versions of the tool
// stored the TTL as a string; both forms are accepted.
func (f *FileBackend) Load() ([]Entry, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("cache: reading %s: %w", f.path, err)
	}

	root, err := jason.NewValueFromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("cache: parsing %s: %w", f.path, err)
	}
	items, err := root.Array()
	if err != nil {
		return nil, fmt.Errorf("cache: parsing %s: expected a JSON array: %w", f.path, err)
	}

	entries := make([]Entry, 0, len(items))
	for i, item := range items {
		obj, err := item.Object()
		if err != nil {
			return nil, fmt.Errorf("cache: parsing %s: entry %d: %w", f.path, i, err)
		}
		e := Entry{
			Name:   str(obj, "name"),
			ID:     str(obj, "id"),
			Type:   str(obj, "type"),
			Target: str(obj, "target"),
		}
		if ttl, err := obj.GetInt64("ttl"); err == nil {
			e.TTL = int(ttl)
		} else if s, err := obj.GetString("ttl"); err == nil {
			e.TTL, _ = strconv.Atoi(s)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// str reads a string field, accepting numbers for fields such as ids.
func str(obj *jason.Object, key string) string {
	if s, err := obj.GetString(key); err == nil {
		return s
	}
	if n, err := obj.GetInt64(key); err == nil {
		return strconv.FormatInt(n, 10)
	}
	return ""
}

// Save replaces the file with the given snapshot. The data is written to a
// temporary file in the same directory and renamed over the old one, so a
// crash never leaves a partial snapshot behind.
func (f *FileBackend) Save(entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("cache: encoding snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), "."+filepath.Base(f.path)+".*")
	if err != nil {
		return fmt.Errorf("cache: creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("cache: writing %s: %w", tmp.Name(), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("cache: syncing %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("cache: closing %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("cache: replacing %s: %w", f.path, err)
	}
	return nil
}

// Close is a no-op; the file is only open during Load and Save.
func (f *FileBackend) Close() error { return nil }
