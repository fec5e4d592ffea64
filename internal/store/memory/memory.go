// Package memory provides an in-process DocumentStore used by tests and by
// development setups that run without Postgres.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/tempochess/game-server/internal/store"
)

type Store struct {
	mu   sync.RWMutex
	docs map[string]map[string]interface{}
}

func New() *Store {
	return &Store{docs: make(map[string]map[string]interface{})}
}

func (s *Store) GetDocument(ctx context.Context, path string) (map[string]interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[path]
	if !ok {
		return nil, store.ErrNotFound
	}
	return deepCopy(doc), nil
}

func (s *Store) SetDocument(ctx context.Context, path string, data map[string]interface{}, merge bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(path, data, merge)
	return nil
}

func (s *Store) setLocked(path string, data map[string]interface{}, merge bool) {
	if merge {
		if existing, ok := s.docs[path]; ok {
			s.docs[path] = store.MergeMaps(deepCopy(existing), deepCopy(data))
			return
		}
	}
	s.docs[path] = deepCopy(data)
}

func (s *Store) UpdateDocument(ctx context.Context, path string, data map[string]interface{}, updateMask ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.docs[path]
	if !ok {
		return store.ErrNotFound
	}

	applied := deepCopy(data)
	if len(updateMask) > 0 {
		masked := make(map[string]interface{}, len(updateMask))
		for _, field := range updateMask {
			if v, ok := applied[field]; ok {
				masked[field] = v
			}
		}
		applied = masked
	}
	s.docs[path] = store.MergeMaps(deepCopy(existing), applied)
	return nil
}

func (s *Store) DeleteDocument(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, path)
	return nil
}

func (s *Store) QueryDocuments(ctx context.Context, collection string, filters []store.Filter) ([]store.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.Snapshot
	for path, doc := range s.docs {
		if store.Collection(path) != collection {
			continue
		}
		if !store.MatchFilters(doc, filters) {
			continue
		}
		out = append(out, store.Snapshot{Path: path, Data: deepCopy(doc)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (s *Store) BatchWrite(ctx context.Context, ops []store.WriteOp) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, op := range ops {
		if op.Delete {
			delete(s.docs, op.Path)
			continue
		}
		s.setLocked(op.Path, op.Data, op.Merge)
	}
	return nil
}

// Reset drops every document. Test helper.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = make(map[string]map[string]interface{})
}

// Len reports the number of stored documents. Test helper.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// deepCopy round-trips through JSON so callers can never alias stored maps.
func deepCopy(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return map[string]interface{}{}
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]interface{}{}
	}
	return out
}
