package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps definitions in a map.
type MemoryStore struct {
	mu   sync.RWMutex
	defs map[string]Definition

	now func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		defs: make(map[string]Definition),
		now:  time.Now,
	}
}

// List returns all definitions ordered by creation time.
func (s *MemoryStore) List(_ context.Context) ([]Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Definition, 0, len(s.defs))
	for _, d := range s.defs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Get returns one definition.
func (s *MemoryStore) Get(_ context.Context, id string) (Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.defs[id]
	if !ok {
		return Definition{}, ErrNotFound
	}
	return d, nil
}

// Create stores a new definition with a generated id.
func (s *MemoryStore) Create(_ context.Context, in DefinitionInput) (Definition, error) {
	if err := in.Validate(); err != nil {
		return Definition{}, err
	}

	now := s.now()
	d := Definition{
		ID:        uuid.NewString(),
		Name:      in.Name,
		Duration:  in.Duration,
		SoundID:   in.SoundID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.defs[d.ID] = d
	s.mu.Unlock()
	return d, nil
}

// Put stores d as-is, replacing any definition with the same id.
// Intended for seeding fixtures.
func (s *MemoryStore) Put(d Definition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defs[d.ID] = d
}

// Update replaces the writable fields of a definition.
func (s *MemoryStore) Update(_ context.Context, id string, in DefinitionInput) (Definition, error) {
	if err := in.Validate(); err != nil {
		return Definition{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.defs[id]
	if !ok {
		return Definition{}, ErrNotFound
	}
	d.Name = in.Name
	d.Duration = in.Duration
	d.SoundID = in.SoundID
	d.UpdatedAt = s.now()
	s.defs[id] = d
	return d, nil
}

// UpdateDuration changes only the duration.
func (s *MemoryStore) UpdateDuration(_ context.Context, id string, seconds int) error {
	if seconds <= 0 {
		return ErrInvalidDuration
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.defs[id]
	if !ok {
		return ErrNotFound
	}
	d.Duration = seconds
	d.UpdatedAt = s.now()
	s.defs[id] = d
	return nil
}

// Delete removes a definition.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.defs[id]; !ok {
		return ErrNotFound
	}
	delete(s.defs, id)
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

var _ Store = (*MemoryStore)(nil)
