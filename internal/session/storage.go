package session

import (
	"maps"
	"sync"
)

// Durable keys, kept across browser restarts.
const (
	KeyRememberMe           = "rememberMe"
	KeySavedEmail           = "savedEmail"
	KeyGoogleLinkSuccess    = "googleLinkSuccess"
	KeyNeedSessionRefresh   = "needSessionRefresh"
	KeyOAuthRedirectContext = "oauthRedirectContext"
)

// Per-tab keys, gone when the tab or browser closes.
const (
	KeySessionOnly          = "sessionOnly"
	KeyOAuthSession         = "oauthSession"
	KeyOAuthLoginComplete   = "oauthLoginComplete"
	KeyMobileSidebarWasOpen = "mobileSidebarWasOpen"
)

// Storage is a string key/value store such as browser local or session
// storage.
type Storage interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Delete(key string)
}

// MemoryStorage is a Storage kept in memory. It is safe for concurrent use
// and the zero value is ready to use.
type MemoryStorage struct {
	mu sync.RWMutex
	m  map[string]string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{m: make(map[string]string)}
}

// NewMemoryStorageFrom returns a MemoryStorage holding a copy of m, e.g.
// entries saved by Snapshot in an earlier run.
func NewMemoryStorageFrom(m map[string]string) *MemoryStorage {
	s := NewMemoryStorage()
	maps.Copy(s.m, m)
	return s
}

// Snapshot returns a copy of every entry.
func (s *MemoryStorage) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.m)
}

func (s *MemoryStorage) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	return v, ok
}

func (s *MemoryStorage) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m == nil {
		s.m = make(map[string]string)
	}
	s.m[key] = value
}

func (s *MemoryStorage) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
}
