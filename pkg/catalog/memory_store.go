package catalog

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store for tests and examples. Layers are copied
// on the way in and out, and every save stamps a fresh snapshot ID and ETag.
type MemoryStore[K comparable, V any] struct {
	mu      sync.RWMutex
	records map[string]memoryRecord[K, V]
	now     func() time.Time
}

type memoryRecord[K comparable, V any] struct {
	values map[K]V
	meta   Meta
}

func NewMemoryStore[K comparable, V any]() *MemoryStore[K, V] {
	return &MemoryStore[K, V]{
		records: map[string]memoryRecord[K, V]{},
		now:     time.Now,
	}
}

func (s *MemoryStore[K, V]) Load(_ context.Context, ref Ref) (map[K]V, Meta, bool, error) {
	key, err := ref.Identifier()
	if err != nil {
		return nil, Meta{}, false, err
	}

	s.mu.RLock()
	record, ok := s.records[key]
	s.mu.RUnlock()
	if !ok {
		return nil, Meta{}, false, nil
	}
	return maps.Clone(record.values), cloneMeta(record.meta), true, nil
}

// Save stores values under ref. SnapshotID, ETag and UpdatedAt are always
// regenerated; Extra is kept.
func (s *MemoryStore[K, V]) Save(_ context.Context, ref Ref, values map[K]V, meta Meta) (Meta, error) {
	key, err := ref.Identifier()
	if err != nil {
		return Meta{}, err
	}

	stored := cloneMeta(meta)
	stored.SnapshotID = uuid.NewString()
	stored.ETag = uuid.NewString()
	stored.UpdatedAt = s.now().UTC()

	s.mu.Lock()
	s.records[key] = memoryRecord[K, V]{values: maps.Clone(values), meta: stored}
	s.mu.Unlock()
	return cloneMeta(stored), nil
}

// Len returns the number of stored layers across all domains.
func (s *MemoryStore[K, V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func cloneMeta(meta Meta) Meta {
	out := meta
	out.Extra = maps.Clone(meta.Extra)
	return out
}
