// Package jsonfile stores all keys as one JSON object in a single file.
//
// Writes go to a temporary file in the same directory which is then renamed
// over the original, so a crash leaves either the old or the new document.
package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"visitmap/internal/store"
)

type Store struct {
	mu     sync.Mutex
	path   string
	data   map[string]json.RawMessage
	closed bool
}

var _ store.KV = (*Store)(nil)

// Open loads path, creating parent directories as needed. A missing file is an
// empty store. A file that is not a JSON object is moved aside to
// "<path>.corrupt-<unix>" and the store starts empty.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	s := &Store{path: path, data: make(map[string]json.RawMessage)}

	raw, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(raw) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		aside := fmt.Sprintf("%s.corrupt-%d", path, time.Now().Unix())
		slog.Warn("Data file is corrupt, starting empty", "path", path, "moved_to", aside, "error", err)
		if rerr := os.Rename(path, aside); rerr != nil {
			return nil, fmt.Errorf("move corrupt data file: %w", rerr)
		}
		s.data = make(map[string]json.RawMessage)
	}
	return s, nil
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

	t := &tx{base: s.data, staged: make(map[string]json.RawMessage)}
	if err := fn(t); err != nil {
		return err
	}
	if len(t.staged) == 0 {
		return nil
	}

	next := make(map[string]json.RawMessage, len(s.data)+len(t.staged))
	for k, v := range s.data {
		next[k] = v
	}
	for k, v := range t.staged {
		next[k] = v
	}
	if err := s.write(next); err != nil {
		return err
	}
	s.data = next
	return nil
}

func (s *Store) write(data map[string]json.RawMessage) error {
	body, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode data file: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace data file: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.path
}

type tx struct {
	base   map[string]json.RawMessage
	staged map[string]json.RawMessage
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
	t.staged[key] = append(json.RawMessage(nil), value...)
	return nil
}
