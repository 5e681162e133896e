package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"sync"

	"github.com/go-logr/logr"

	"github.com/yuriy-kovalchuk/rackhost-ddns/internal/metrics"
)

// Load reads the persisted snapshot. The error wraps fs.ErrNotExist when the
// backend holds none yet.
func Load(b Backend) ([]Entry, error) {
	return b.Load()
}

// Save overwrites the persisted snapshot.
func Save(b Backend, entries []Entry) error {
	return b.Save(entries)
}

// Store is the in-memory snapshot shared by request handlers. Every change is
// persisted as a whole snapshot before it becomes visible in memory.
type Store struct {
	mu      sync.Mutex
	backend Backend
	entries []Entry
	log     logr.Logger
}

// Open loads the snapshot from backend. When none exists, bootstrap is
// called to build a complete one, which is saved before Open returns.
func Open(ctx context.Context, backend Backend, bootstrap func(context.Context) ([]Entry, error), log logr.Logger) (*Store, error) {
	entries, err := Load(backend)
	switch {
	case err == nil:
		log.Info("cache loaded", "entries", len(entries))
	case errors.Is(err, fs.ErrNotExist):
		log.Info("no cache snapshot found, bootstrapping from provider")
		entries, err = bootstrap(ctx)
		if err != nil {
			return nil, fmt.Errorf("cache: bootstrap: %w", err)
		}
		if err := Save(backend, entries); err != nil {
			return nil, err
		}
		log.Info("cache bootstrapped", "entries", len(entries))
	default:
		return nil, err
	}

	metrics.CacheEntries.Set(float64(len(entries)))
	return &Store{backend: backend, entries: entries, log: log}, nil
}

// Get returns the entry with the given name.
func (s *Store) Get(name string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// Target returns the cached target of name.
func (s *Store) Target(name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Lookup(s.entries, name)
}

// Put replaces the entry with the same name, or appends e if there is none,
// and persists the resulting snapshot.
func (s *Store) Put(e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := slices.Clone(s.entries)
	i := slices.IndexFunc(next, func(x Entry) bool { return x.Name == e.Name })
	if i >= 0 {
		next[i] = e
	} else {
		next = append(next, e)
	}

	if err := Save(s.backend, next); err != nil {
		return err
	}
	s.entries = next
	metrics.CacheEntries.Set(float64(len(next)))
	s.log.V(1).Info("cache entry stored", "name", e.Name, "target", e.Target)
	return nil
}

// Entries returns a copy of the snapshot.
func (s *Store) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.entries)
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}
