// Package identity manages the persisted viewer and session identity:
// a long-lived viewer id, a persisted sample number, and a session id
// with a sliding expiry window. Persistence goes through a small
// key-value capability so hosts can plug in a cookie jar, a file, or
// an in-memory map for tests.
package identity

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/bytedance/sonic"

	"github.com/viewtrace/viewtrace/clock"
)

// Store is the persistence capability. TTL zero means no expiry.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string, ttl time.Duration)
	Remove(key string)
}

type memoryEntry struct {
	value     string
	expiresAt int64 // unix millis, 0 = never
}

// MemoryStore keeps identity in process memory. The default when
// cookies are disabled, and the test double.
type MemoryStore struct {
	mu      sync.Mutex
	clk     clock.TimeProvider
	entries map[string]memoryEntry
}

// NewMemoryStore creates an in-memory store using clk for expiry.
func NewMemoryStore(clk clock.TimeProvider) *MemoryStore {
	return &MemoryStore{
		clk:     clk,
		entries: make(map[string]memoryEntry),
	}
}

func (s *MemoryStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return "", false
	}
	if e.expiresAt > 0 && s.clk.NowUnixMilli() >= e.expiresAt {
		delete(s.entries, key)
		return "", false
	}
	return e.value, true
}

func (s *MemoryStore) Set(key, value string, ttl time.Duration) {
	var expires int64
	if ttl > 0 {
		expires = s.clk.NowUnixMilli() + ttl.Milliseconds()
	}
	s.mu.Lock()
	s.entries[key] = memoryEntry{value: value, expiresAt: expires}
	s.mu.Unlock()
}

func (s *MemoryStore) Remove(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// FileStore persists identity as a JSON blob on disk, for hosts
// without a cookie jar (CLI and set-top players). Writes go through a
// full rewrite of the file; the blob is a handful of keys.
type FileStore struct {
	mu   sync.Mutex
	clk  clock.TimeProvider
	path string
}

type fileBlob map[string]memoryEntryJSON

type memoryEntryJSON struct {
	Value     string `json:"value"`
	ExpiresAt int64  `json:"expires_at,omitempty"`
}

// NewFileStore creates a file-backed store at path.
func NewFileStore(path string, clk clock.TimeProvider) *FileStore {
	return &FileStore{clk: clk, path: path}
}

func (s *FileStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	blob := s.load()
	e, ok := blob[key]
	if !ok {
		return "", false
	}
	if e.ExpiresAt > 0 && s.clk.NowUnixMilli() >= e.ExpiresAt {
		delete(blob, key)
		s.save(blob)
		return "", false
	}
	return e.Value, true
}

func (s *FileStore) Set(key, value string, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	blob := s.load()
	var expires int64
	if ttl > 0 {
		expires = s.clk.NowUnixMilli() + ttl.Milliseconds()
	}
	blob[key] = memoryEntryJSON{Value: value, ExpiresAt: expires}
	s.save(blob)
}

func (s *FileStore) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	blob := s.load()
	delete(blob, key)
	s.save(blob)
}

func (s *FileStore) load() fileBlob {
	blob := make(fileBlob)
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return blob
	}
	if err := sonic.Unmarshal(raw, &blob); err != nil {
		return make(fileBlob)
	}
	return blob
}

func (s *FileStore) save(blob fileBlob) error {
	raw, err := sonic.Marshal(blob)
	if err != nil {
		return fmt.Errorf("failed to marshal identity blob: %w", err)
	}
	return os.WriteFile(s.path, raw, 0o600)
}
