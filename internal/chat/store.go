package chat

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Store is the durable, append-only message log.
type Store interface {
	// Insert stamps and persists d, returning the stored record.
	Insert(ctx context.Context, d Draft) (Message, error)

	// ListSince returns messages for key created strictly after after,
	// oldest first.
	ListSince(ctx context.Context, key Key, after time.Time) ([]Message, error)

	// List returns every message for key, oldest first.
	List(ctx context.Context, key Key) ([]Message, error)

	// Prune deletes messages older than olderThan and returns how many went.
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)

	Close() error
}

// MemoryStore keeps messages in process. Used for memory:// URLs and tests.
type MemoryStore struct {
	mu   sync.RWMutex
	msgs map[Key][]Message
	now  func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		msgs: make(map[Key][]Message),
		now:  time.Now,
	}
}

func (s *MemoryStore) Insert(ctx context.Context, d Draft) (Message, error) {
	if err := d.Validate(); err != nil {
		return Message{}, err
	}
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	m := d.Stamp(s.now())
	// Keep per-key creation times non-decreasing even if the clock steps back.
	if list := s.msgs[d.Key]; len(list) > 0 {
		if last := list[len(list)-1].CreatedAt; m.CreatedAt.Before(last) {
			m.CreatedAt = last
		}
	}
	s.msgs[d.Key] = append(s.msgs[d.Key], m)
	return m, nil
}

// Put stores m as-is, keeping the per-key list ordered by creation time.
func (s *MemoryStore) Put(m Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := m.Key()
	list := append(s.msgs[k], m)
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	s.msgs[k] = list
}

func (s *MemoryStore) ListSince(ctx context.Context, key Key, after time.Time) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Message
	for _, m := range s.msgs[key] {
		if m.CreatedAt.After(after) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *MemoryStore) List(ctx context.Context, key Key) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, len(s.msgs[key]))
	copy(out, s.msgs[key])
	return out, nil
}

func (s *MemoryStore) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	cutoff := s.now().Add(-olderThan)

	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for k, list := range s.msgs {
		kept := list[:0]
		for _, m := range list {
			if m.CreatedAt.Before(cutoff) {
				removed++
				continue
			}
			kept = append(kept, m)
		}
		if len(kept) == 0 {
			delete(s.msgs, k)
			continue
		}
		s.msgs[k] = kept
	}
	return removed, nil
}

func (s *MemoryStore) Close() error { return nil }
