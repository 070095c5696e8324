package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/cognicore/kwresearch/pkg/kwresearch/store"
)

// Store is an in-memory store.Cache. It lives as long as the process.
type Store struct {
	mu        sync.RWMutex
	brands    map[string]store.BrandEntry
	relevance map[relKey]store.RelevanceEntry
	now       func() time.Time
}

type relKey struct {
	product string
	key     string
}

// New creates an empty in-memory cache.
func New() *Store {
	return &Store{
		brands:    make(map[string]store.BrandEntry),
		relevance: make(map[relKey]store.RelevanceEntry),
		now:       time.Now,
	}
}

// Close implements store.Cache.
func (s *Store) Close() error { return nil }

func (s *Store) GetBrands(_ context.Context, keys []string) (map[string]store.BrandEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]store.BrandEntry)
	for _, k := range keys {
		if e, ok := s.brands[k]; ok {
			out[k] = e
		}
	}
	return out, nil
}

func (s *Store) PutBrands(_ context.Context, entries []store.BrandEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		if e.Key == "" {
			continue
		}
		if e.UpdatedAt.IsZero() {
			e.UpdatedAt = s.now()
		}
		s.brands[e.Key] = e
	}
	return nil
}

func (s *Store) GetRelevance(_ context.Context, product string, keys []string) (map[string]store.RelevanceEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]store.RelevanceEntry)
	for _, k := range keys {
		if e, ok := s.relevance[relKey{product, k}]; ok {
			out[k] = e
		}
	}
	return out, nil
}

func (s *Store) PutRelevance(_ context.Context, entries []store.RelevanceEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		if e.Key == "" || e.Product == "" {
			continue
		}
		if e.UpdatedAt.IsZero() {
			e.UpdatedAt = s.now()
		}
		s.relevance[relKey{e.Product, e.Key}] = e
	}
	return nil
}
