// Package cache holds local copies of backend collections using a
// stale-while-revalidate scheme: reads return whatever is cached, refreshes
// replace it, and local mutations are applied immediately.
package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Fetcher loads the authoritative value for key.
type Fetcher[T any] func(ctx context.Context, key string) (T, error)

// Entry is a point-in-time view of one key.
type Entry[T any] struct {
	Data      T
	Err       error // last fetch error; Data keeps the previous value
	Loading   bool
	Valid     bool // Data was set by a fetch or a mutation
	UpdatedAt time.Time
}

type entry[T any] struct {
	data    T
	err     error
	loading bool
	valid   bool
	gen     uint64
	updated time.Time
}

// Store is a keyed cache. Concurrent fetches of one key share a single
// request. A fetch that started before a Mutate or Set of the same key is
// discarded when it lands.
type Store[T any] struct {
	fetch Fetcher[T]
	group singleflight.Group

	mu      sync.Mutex
	entries map[string]*entry[T]
	seq     uint64

	subMu sync.Mutex
	subs  map[chan string]struct{}
}

func NewStore[T any](fetch Fetcher[T]) *Store[T] {
	return &Store[T]{
		fetch:   fetch,
		entries: make(map[string]*entry[T]),
		subs:    make(map[chan string]struct{}),
	}
}

// Get returns cached data when there is any, otherwise fetches it.
func (s *Store[T]) Get(ctx context.Context, key string) (T, error) {
	s.mu.Lock()
	if e, ok := s.entries[key]; ok && e.valid {
		data := e.data
		s.mu.Unlock()
		return data, nil
	}
	s.mu.Unlock()

	return s.Revalidate(ctx, key)
}

// Peek returns the current entry without fetching.
func (s *Store[T]) Peek(key string) Entry[T] {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return Entry[T]{}
	}
	return Entry[T]{
		Data:      e.data,
		Err:       e.err,
		Loading:   e.loading,
		Valid:     e.valid,
		UpdatedAt: e.updated,
	}
}

// Revalidate fetches key and stores the result. On failure the previous data
// stays in place and the error is recorded on the entry.
//
// Callers that join an in-flight fetch share the first caller's context.
func (s *Store[T]) Revalidate(ctx context.Context, key string) (T, error) {
	v, err, _ := s.group.Do(key, func() (any, error) {
		s.mu.Lock()
		e := s.entryLocked(key)
		gen := e.gen
		e.loading = true
		s.mu.Unlock()
		s.notify(key)

		data, err := s.fetch(ctx, key)

		s.mu.Lock()
		if cur, ok := s.entries[key]; ok && cur == e {
			e.loading = false
			if e.gen == gen {
				if err != nil {
					e.err = err
				} else {
					s.seq++
					e.data = data
					e.err = nil
					e.valid = true
					e.gen = s.seq
					e.updated = time.Now()
				}
			}
		}
		s.mu.Unlock()
		s.notify(key)

		return data, err
	})

	data, _ := v.(T)
	return data, err
}

// Reload is Revalidate without joining a fetch that is already in flight.
// A fetch started before Reload is discarded when it lands. Use it after a
// write the older fetch cannot have seen.
func (s *Store[T]) Reload(ctx context.Context, key string) (T, error) {
	s.mu.Lock()
	e := s.entryLocked(key)
	s.seq++
	e.gen = s.seq
	s.mu.Unlock()

	s.group.Forget(key)
	return s.Revalidate(ctx, key)
}

// Mutate replaces the data for key with fn(current) and, when revalidate is
// set, re-fetches afterwards. fn runs under the store lock and must not call
// back into the store.
func (s *Store[T]) Mutate(ctx context.Context, key string, fn func(current T) T, revalidate bool) (T, error) {
	s.mu.Lock()
	e := s.entryLocked(key)
	s.seq++
	e.data = fn(e.data)
	e.valid = true
	e.err = nil
	e.gen = s.seq
	e.updated = time.Now()
	data := e.data
	s.mu.Unlock()
	s.notify(key)

	if revalidate {
		return s.Revalidate(ctx, key)
	}
	return data, nil
}

// Set seeds key with data without fetching.
func (s *Store[T]) Set(key string, data T) {
	_, _ = s.Mutate(context.Background(), key, func(T) T { return data }, false)
}

func (s *Store[T]) Delete(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	s.notify(key)
}

// Clear drops every key.
func (s *Store[T]) Clear() {
	s.mu.Lock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	s.entries = make(map[string]*entry[T])
	s.mu.Unlock()

	for _, k := range keys {
		s.notify(k)
	}
}

// Snapshot returns the data of every valid key.
func (s *Store[T]) Snapshot() map[string]T {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]T, len(s.entries))
	for k, e := range s.entries {
		if e.valid {
			out[k] = e.data
		}
	}
	return out
}

// Subscribe returns a channel that receives keys as they change, and a func
// that closes it. Slow subscribers miss notifications rather than block.
func (s *Store[T]) Subscribe() (<-chan string, func()) {
	ch := make(chan string, 64)

	s.subMu.Lock()
	s.subs[ch] = struct{}{}
	s.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, ch)
			s.subMu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (s *Store[T]) entryLocked(key string) *entry[T] {
	e, ok := s.entries[key]
	if !ok {
		e = &entry[T]{}
		s.entries[key] = e
	}
	return e
}

func (s *Store[T]) notify(key string) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for ch := range s.subs {
		select {
		case ch <- key:
		default:
		}
	}
}
