package memory

import (
	"context"
	"encoding/json"
	"sync"

	"visitmap/internal/store"
)

// Store keeps values in process memory. Contents are lost on exit.
type Store struct {
	mu     sync.Mutex
	data   map[string][]byte
	closed bool
}

var _ store.KV = (*Store)(nil)

func New() *Store {
	return &Store{data: make(map[string][]byte)}
}

// NewWithData seeds the store. Values are copied and not validated, so tests
// can plant corrupt documents.
func NewWithData(seed map[string]string) *Store {
	s := New()
	for k, v := range seed {
		s.data[k] = []byte(v)
	}
	return s
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, false, store.ErrClosed
	}
	v, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (s *Store) Update(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}

	tx := &tx{base: s.data, staged: make(map[string][]byte)}
	if err := fn(tx); err != nil {
		return err
	}
	for k, v := range tx.staged {
		s.data[k] = v
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Snapshot returns a copy of every stored value as a string.
func (s *Store) Snapshot() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.data))
	for k, v := range s.data {
		out[k] = string(v)
	}
	return out
}

type tx struct {
	base   map[string][]byte
	staged map[string][]byte
}

func (t *tx) Get(key string) ([]byte, bool, error) {
	if v, ok := t.staged[key]; ok {
		return append([]byte(nil), v...), true, nil
	}
	v, ok := t.base[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (t *tx) Put(key string, value []byte) error {
	if !json.Valid(value) {
		return store.ErrInvalidValue
	}
	t.staged[key] = append([]byte(nil), value...)
	return nil
}
