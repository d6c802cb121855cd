package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/renameio/v2"

	"github.com/m3rciful/coachbot/core/logger"
)

// FileStore keeps each collection in <dir>/<collection>.json. Each write
// atomically replaces the whole file.
type FileStore struct {
	dir string

	mu    sync.Mutex
	colls map[string]map[string]json.RawMessage
	now   func() time.Time
}

// NewFileStore creates dir if needed and returns a store rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileStore{
		dir:   dir,
		colls: make(map[string]map[string]json.RawMessage),
		now:   time.Now,
	}, nil
}

func (s *FileStore) path(coll string) string {
	return filepath.Join(s.dir, coll+".json")
}

// load returns the in-memory collection, reading it from disk on first use.
// A file that fails to decode is moved aside and replaced by an empty collection.
func (s *FileStore) load(ctx context.Context, coll string) (map[string]json.RawMessage, error) {
	if docs, ok := s.colls[coll]; ok {
		return docs, nil
	}
	docs := make(map[string]json.RawMessage)
	data, err := os.ReadFile(s.path(coll))
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("read %s: %w", coll, err)
	case len(data) == 0:
	default:
		if err := json.Unmarshal(data, &docs); err != nil {
			backup := fmt.Sprintf("%s.corrupt-%s", s.path(coll), s.now().UTC().Format("20060102T150405.000000000"))
			if renameErr := os.Rename(s.path(coll), backup); renameErr != nil {
				return nil, fmt.Errorf("back up corrupt %s: %w", coll, renameErr)
			}
			logger.Warn(ctx, "storage", "storage.corrupt",
				slog.String("status", "recovered"),
				slog.String("path", backup),
				logger.Err(err),
			)
			docs = make(map[string]json.RawMessage)
		}
	}
	s.colls[coll] = docs
	return docs, nil
}

func (s *FileStore) persist(coll string, docs map[string]json.RawMessage) error {
	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", coll, err)
	}
	if err := renameio.WriteFile(s.path(coll), data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", coll, err)
	}
	return nil
}

// Get implements Store.
func (s *FileStore) Get(ctx context.Context, coll, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs, err := s.load(ctx, coll)
	if err != nil {
		return nil, err
	}
	body, ok := docs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), body...), nil
}

// Update implements Store.
func (s *FileStore) Update(ctx context.Context, coll, key string, fn func(cur []byte) ([]byte, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	docs, err := s.load(ctx, coll)
	if err != nil {
		return err
	}
	var cur []byte
	if body, ok := docs[key]; ok {
		cur = append([]byte(nil), body...)
	}
	next, err := fn(cur)
	if err != nil || next == nil {
		return err
	}
	prev, had := docs[key]
	docs[key] = json.RawMessage(next)
	if err := s.persist(coll, docs); err != nil {
		if had {
			docs[key] = prev
		} else {
			delete(docs, key)
		}
		return err
	}
	return nil
}

// Scan implements Store. fn runs on a snapshot taken in key order, so it may
// call back into the store.
func (s *FileStore) Scan(ctx context.Context, coll string, fn func(key string, body []byte) error) error {
	s.mu.Lock()
	docs, err := s.load(ctx, coll)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	keys := make([]string, 0, len(docs))
	for k := range docs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	snapshot := make([][]byte, len(keys))
	for i, k := range keys {
		snapshot[i] = append([]byte(nil), docs[k]...)
	}
	s.mu.Unlock()

	for i, k := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(k, snapshot[i]); err != nil {
			return err
		}
	}
	return nil
}

// Delete implements Store. Deleting a missing key is not an error.
func (s *FileStore) Delete(ctx context.Context, coll, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs, err := s.load(ctx, coll)
	if err != nil {
		return err
	}
	prev, ok := docs[key]
	if !ok {
		return nil
	}
	delete(docs, key)
	if err := s.persist(coll, docs); err != nil {
		docs[key] = prev
		return err
	}
	return nil
}

// Close implements Store.
func (s *FileStore) Close() error { return nil }
