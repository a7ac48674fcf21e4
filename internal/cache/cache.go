// Package cache is the content-addressed store for derived document text.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"sync"
	"time"

	"github.com/golang/groupcache/lru"
)

// DefaultMaxEntries bounds the store when no ceiling is configured.
const DefaultMaxEntries = 512

// Key addresses a derived value. Equal inputs always produce equal keys.
type Key string

// Identity is the part of a file that participates in its key.
type Identity struct {
	Name      string
	Size      int64
	MediaType string
	// Digest is the content digest, see Digest.
	Digest string
}

// Entry is one cached derivation.
type Entry struct {
	Key       Key
	Value     string
	Method    string
	CreatedAt time.Time
}

// Digest returns the hex sha256 of data.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// KeyFor derives the key for operation over the file described by id.
func KeyFor(id Identity, operation string) Key {
	h := sha256.New()
	for _, part := range []string{operation, id.Name, strconv.FormatInt(id.Size, 10), id.MediaType, id.Digest} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return Key(operation + ":" + hex.EncodeToString(h.Sum(nil)))
}

// Store is a process-lifetime LRU store safe for concurrent use.
type Store struct {
	mu    sync.Mutex
	items *lru.Cache
	now   func() time.Time
}

// New returns a store holding at most maxEntries entries. A non-positive value
// selects DefaultMaxEntries.
func New(maxEntries int) *Store {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Store{items: lru.New(maxEntries), now: time.Now}
}

// Get returns the entry for key and marks it recently used.
func (s *Store) Get(key Key) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.items.Get(lru.Key(key))
	if !ok {
		return Entry{}, false
	}
	return v.(Entry), true
}

// Put stores value under key, replacing any previous entry.
func (s *Store) Put(key Key, value, method string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items.Add(lru.Key(key), Entry{Key: key, Value: value, Method: method, CreatedAt: s.now()})
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items.Len()
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items.Clear()
}
