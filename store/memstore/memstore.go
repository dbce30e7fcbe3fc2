// Package memstore provides a map-backed DocumentStore for tests and
// single-process embedding.
package memstore

import (
	"context"
	"encoding/json"
	"sync"

	featmy "github.com/AFJoao/FEATMY-V2"
	goerrors "github.com/goliatone/go-errors"
)

// Store is an in-memory DocumentStore. Documents are deep-copied on the way
// in and out, so callers never share state with the store.
type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string]featmy.Document
}

var _ featmy.DocumentStore = (*Store)(nil)

func New() *Store {
	return &Store{collections: map[string]map[string]featmy.Document{}}
}

func (s *Store) Get(ctx context.Context, collection, key string) (featmy.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.collections[collection][key]
	if !ok {
		return nil, featmy.NewRecordNotFound(collection, key)
	}
	return cloneDocument(doc)
}

func (s *Store) Set(ctx context.Context, collection, key string, doc featmy.Document) error {
	copied, err := cloneDocument(doc)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.collections[collection] == nil {
		s.collections[collection] = map[string]featmy.Document{}
	}
	s.collections[collection][key] = copied
	return nil
}

func (s *Store) Update(ctx context.Context, collection, key string, fields featmy.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.collections[collection][key]
	if !ok {
		return featmy.NewRecordNotFound(collection, key)
	}

	copied, err := cloneDocument(fields)
	if err != nil {
		return err
	}
	for k, v := range copied {
		doc[k] = v
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections[collection], key)
	return nil
}

func (s *Store) Query(ctx context.Context, collection string, filters featmy.Document) ([]featmy.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []featmy.Document
	for _, doc := range s.collections[collection] {
		if !matches(doc, filters) {
			continue
		}
		copied, err := cloneDocument(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, copied)
	}
	return out, nil
}

func (s *Store) AppendToArray(ctx context.Context, collection, key, field string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.collections[collection][key]
	if !ok {
		return featmy.NewRecordNotFound(collection, key)
	}

	doc[field] = appendUnique(asSlice(doc[field]), value)
	return nil
}

func (s *Store) RemoveFromArray(ctx context.Context, collection, key, field string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.collections[collection][key]
	if !ok {
		return featmy.NewRecordNotFound(collection, key)
	}

	current := asSlice(doc[field])
	next := make([]any, 0, len(current))
	for _, item := range current {
		if !equalValues(item, value) {
			next = append(next, item)
		}
	}
	doc[field] = next
	return nil
}

func matches(doc, filters featmy.Document) bool {
	for field, want := range filters {
		if !equalValues(doc[field], want) {
			return false
		}
	}
	return true
}

func asSlice(v any) []any {
	if v == nil {
		return nil
	}
	if items, ok := v.([]any); ok {
		return items
	}
	if items, ok := v.([]string); ok {
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = item
		}
		return out
	}
	return nil
}

func appendUnique(items []any, value any) []any {
	for _, item := range items {
		if equalValues(item, value) {
			return items
		}
	}
	return append(items, value)
}

// equalValues compares by JSON rendering so numeric representation
// differences from codec round-trips do not break equality.
func equalValues(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	rawA, errA := json.Marshal(a)
	rawB, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(rawA) == string(rawB)
}

func cloneDocument(doc featmy.Document) (featmy.Document, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to clone document")
	}
	copied := featmy.Document{}
	if err := json.Unmarshal(raw, &copied); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to clone document")
	}
	return copied, nil
}
