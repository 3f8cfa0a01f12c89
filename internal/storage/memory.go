// Package storage holds the proof photo blob stores.
package storage

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
)

const memoryScheme = "memory://"

var ErrBlobNotFound = errors.New("blob not found")

// Blob is one stored object
type Blob struct {
	Data        []byte
	ContentType string
}

// MemoryStore keeps blobs in process, for development and tests
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string]Blob
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string]Blob)}
}

func (s *MemoryStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.blobs[key] = Blob{Data: slices.Clone(data), ContentType: contentType}
	return memoryScheme + key, nil
}

func (s *MemoryStore) Delete(ctx context.Context, ref string) error {
	key, ok := strings.CutPrefix(ref, memoryScheme)
	if !ok {
		return ErrBlobNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.blobs, key)
	return nil
}

// Get returns the blob behind a reference
func (s *MemoryStore) Get(ref string) (Blob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.blobs[strings.TrimPrefix(ref, memoryScheme)]
	return b, ok
}

// Len is the number of stored blobs
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
