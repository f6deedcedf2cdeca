// Package token provides the file-backed bearer token source.
package token

import (
	"os"
	"strings"
	"sync"
)

// FileSource reads the bearer token from a file on disk and caches it.
// It implements ports.TokenSource. Invalidate drops the cached value and
// removes the file so a doomed token is not retried; a fresh login writes a
// new file.
type FileSource struct {
	mu          sync.Mutex
	path        string
	cached      string
	loaded      bool
	invalidated chan struct{}
}

// NewFileSource creates a token source backed by the file at path.
func NewFileSource(path string) *FileSource {
	return &FileSource{
		path:        path,
		invalidated: make(chan struct{}, 1),
	}
}

// Token returns the current bearer token, or an empty string when none is
// available.
func (s *FileSource) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return s.cached
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return ""
	}
	s.cached = strings.TrimSpace(string(data))
	s.loaded = true
	return s.cached
}

// Invalidate discards the cached token and removes the token file.
func (s *FileSource) Invalidate() {
	s.mu.Lock()
	s.cached = ""
	s.loaded = true
	_ = os.Remove(s.path)
	s.mu.Unlock()

	// Non-blocking signal; one pending invalidation is enough.
	select {
	case s.invalidated <- struct{}{}:
	default:
	}
}

// Invalidated returns the invalidation signal channel.
func (s *FileSource) Invalidated() <-chan struct{} {
	return s.invalidated
}

// Refresh forces the next Token call to re-read the file.
func (s *FileSource) Refresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = false
	s.cached = ""
}

// StaticSource is a fixed in-memory token source, used by tests and one-shot
// commands that receive a token directly.
type StaticSource struct {
	mu          sync.Mutex
	token       string
	invalidated chan struct{}
}

// NewStaticSource creates a token source holding the given token.
func NewStaticSource(tok string) *StaticSource {
	return &StaticSource{
		token:       tok,
		invalidated: make(chan struct{}, 1),
	}
}

// Token returns the held token.
func (s *StaticSource) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Invalidate clears the held token.
func (s *StaticSource) Invalidate() {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
	select {
	case s.invalidated <- struct{}{}:
	default:
	}
}

// Invalidated returns the invalidation signal channel.
func (s *StaticSource) Invalidated() <-chan struct{} {
	return s.invalidated
}
