// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"sort"
	"sync"

	"github.com/walteh/docpatch/pkg/config"
	"gitlab.com/tozd/go/errors"
)

var (
	// ErrNotFound is returned when a key does not exist
	ErrNotFound = errors.Base("object not found")

	// ErrConflict is returned when a conditional write does not match the
	// current content
	ErrConflict = errors.Base("object changed since it was read")
)

const (
	ContentTypeMarkdown = "text/markdown; charset=utf-8"
	ContentTypeJSON     = "application/json"
)

// 📦 Object is a stored blob and its metadata
type Object struct {
	Key         string
	Content     []byte
	ContentType string
	Checksum    string
}

// PutOptions controls a write
type PutOptions struct {
	ContentType string
	// IfMatch, when set, makes the write fail with ErrConflict unless the
	// current content has this checksum
	IfMatch string
}

// 🗄️ Store is a key/value document store
type Store interface {
	// Get returns the object stored under key or ErrNotFound
	Get(ctx context.Context, key string) (*Object, error)

	// Put stores content under key
	Put(ctx context.Context, key string, content []byte, opts PutOptions) error

	// Delete removes key; deleting a missing key returns ErrNotFound
	Delete(ctx context.Context, key string) error
}

// 🔍 Checksum returns the hex sha256 of content
func Checksum(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}

// 🏭 Factory creates a store from its config section
type Factory func(ctx context.Context, cfg config.Store) (Store, error)

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// 📝 Register registers a store factory under name
func Register(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[name] = factory
}

// Registered returns the names of all registered backends
func Registered() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// 🎯 Open creates the store selected by cfg.Type. The backend package must
// be imported for its factory to be registered.
func Open(ctx context.Context, cfg config.Store) (Store, error) {
	mu.RLock()
	factory, ok := factories[cfg.Type]
	mu.RUnlock()
	if !ok {
		return nil, errors.Errorf("store backend %q is not registered", cfg.Type)
	}

	s, err := factory(ctx, cfg)
	if err != nil {
		return nil, errors.Errorf("opening %s store: %w", cfg.Type, err)
	}
	return s, nil
}

// Close closes s if it holds resources
func Close(s Store) error {
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// CheckMatch returns ErrConflict when ifMatch is set and differs from the
// checksum of current. A missing object (current nil) never matches a
// non-empty ifMatch.
func CheckMatch(key string, current *Object, ifMatch string) error {
	if ifMatch == "" {
		return nil
	}
	if current == nil {
		return errors.Errorf("%w: %s does not exist", ErrConflict, key)
	}
	if current.Checksum != ifMatch {
		return errors.Errorf("%w: %s has checksum %s, expected %s", ErrConflict, key, current.Checksum, ifMatch)
	}
	return nil
}
