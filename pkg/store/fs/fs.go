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

// Package fs stores documents as files below a base directory.
package fs

import (
	"context"
	"mime"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"github.com/walteh/docpatch/pkg/config"
	"github.com/walteh/docpatch/pkg/store"
	"gitlab.com/tozd/go/errors"
)

func init() {
	store.Register("fs", func(ctx context.Context, cfg config.Store) (store.Store, error) {
		return New(cfg.Path)
	})
}

// 🔧 Store maps keys to files below baseDir
type Store struct {
	baseDir string

	// serializes conditional writes within this process
	mu sync.Mutex
}

// 🏭 New creates a file store rooted at baseDir, creating it if needed
func New(baseDir string) (*Store, error) {
	if baseDir == "" {
		return nil, errors.New("base directory is required")
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, errors.Errorf("creating base directory: %w", err)
	}
	return &Store{baseDir: filepath.Clean(baseDir)}, nil
}

// 🔒 absPath returns the file path for key, rejecting keys that escape baseDir
func (s *Store) absPath(key string) (string, error) {
	rel := filepath.FromSlash(key)
	if !filepath.IsLocal(rel) {
		return "", errors.Errorf("invalid key %q: must be a local path", key)
	}
	return filepath.Join(s.baseDir, rel), nil
}

func contentType(key string) string {
	if t := mime.TypeByExtension(filepath.Ext(key)); t != "" {
		return t
	}
	switch filepath.Ext(key) {
	case ".md", ".markdown":
		return store.ContentTypeMarkdown
	}
	return "application/octet-stream"
}

func (s *Store) Get(ctx context.Context, key string) (*store.Object, error) {
	absPath, err := s.absPath(key)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Errorf("reading %s: %w", key, store.ErrNotFound)
		}
		return nil, errors.Errorf("reading file: %w", err)
	}

	return &store.Object{
		Key:         key,
		Content:     content,
		ContentType: contentType(key),
		Checksum:    store.Checksum(content),
	}, nil
}

func (s *Store) Put(ctx context.Context, key string, content []byte, opts store.PutOptions) error {
	absPath, err := s.absPath(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if opts.IfMatch != "" {
		current, err := s.Get(ctx, key)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if err := store.CheckMatch(key, current, opts.IfMatch); err != nil {
			return err
		}
	}

	// Create parent directories
	if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
		return errors.Errorf("creating parent directories: %w", err)
	}

	if err := writeFileAtomic(absPath, content); err != nil {
		return err
	}

	zerolog.Ctx(ctx).Debug().Str("key", key).Int("bytes", len(content)).Msg("wrote file")
	return nil
}

// writeFileAtomic writes to a temp file in the same directory and renames
// it over the target
func writeFileAtomic(absPath string, content []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(absPath), "."+filepath.Base(absPath)+".*.tmp")
	if err != nil {
		return errors.Errorf("creating temp file: %w", err)
	}
	tempPath := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tempPath)
		return errors.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tempPath)
		return errors.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tempPath, 0644); err != nil {
		os.Remove(tempPath)
		return errors.Errorf("setting file mode: %w", err)
	}

	// Rename temp file to target (atomic operation)
	if err := os.Rename(tempPath, absPath); err != nil {
		os.Remove(tempPath)
		return errors.Errorf("renaming temp file: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	absPath, err := s.absPath(key)
	if err != nil {
		return err
	}

	if err := os.Remove(absPath); err != nil {
		if os.IsNotExist(err) {
			return errors.Errorf("deleting %s: %w", key, store.ErrNotFound)
		}
		return errors.Errorf("deleting file: %w", err)
	}
	return nil
}
