// Package memory is an in-process store for tests and ephemeral runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/walteh/docpatch/pkg/config"
	"github.com/walteh/docpatch/pkg/store"
	"gitlab.com/tozd/go/errors"
)

func init() {
	store.Register("memory", func(ctx context.Context, cfg config.Store) (store.Store, error) {
		return New(), nil
	})
}

// Store keeps objects in a map
type Store struct {
	mu      sync.RWMutex
	objects map[string]store.Object
}

// 🏭 New creates an empty memory store
func New() *Store {
	return &Store{objects: make(map[string]store.Object)}
}

func (s *Store) Get(ctx context.Context, key string) (*store.Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[key]
	if !ok {
		return nil, errors.Errorf("getting %s: %w", key, store.ErrNotFound)
	}
	obj.Content = append([]byte(nil), obj.Content...)
	return &obj, nil
}

func (s *Store) Put(ctx context.Context, key string, content []byte, opts store.PutOptions) error {
	if err := ctx.Err(); err != nil {
		return errors.Errorf("putting %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var current *store.Object
	if obj, ok := s.objects[key]; ok {
		current = &obj
	}
	if err := store.CheckMatch(key, current, opts.IfMatch); err != nil {
		return err
	}

	s.objects[key] = store.Object{
		Key:         key,
		Content:     append([]byte(nil), content...),
		ContentType: opts.ContentType,
		Checksum:    store.Checksum(content),
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.objects[key]; !ok {
		return errors.Errorf("deleting %s: %w", key, store.ErrNotFound)
	}
	delete(s.objects, key)
	return nil
}

// Keys returns every stored key in sorted order
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
