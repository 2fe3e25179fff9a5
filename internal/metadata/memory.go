package metadata

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps records in process memory
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

// UpsertVideoMetadata merges f into the record for videoID
func (s *MemoryStore) UpsertVideoMetadata(ctx context.Context, videoID string, f Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[videoID]
	if !ok {
		r = Record{VideoID: videoID}
	}
	f.apply(&r)
	r.UpdatedAt = time.Now().UTC()
	s.records[videoID] = r
	return nil
}

// GetVideoMetadata returns a copy of the record
func (s *MemoryStore) GetVideoMetadata(ctx context.Context, videoID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[videoID]
	if !ok {
		return nil, ErrNotFound
	}
	r.DerivativeURLs = append([]string(nil), r.DerivativeURLs...)
	return &r, nil
}
