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

package fs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/docpatch/pkg/config"
	"github.com/walteh/docpatch/pkg/store"
	"gitlab.com/tozd/go/errors"
)

func setupTest(t *testing.T) (context.Context, *Store, string) {
	t.Helper()
	ctx := zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background())
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err, "creating store should succeed")
	return ctx, s, dir
}

func TestStore_PutGet(t *testing.T) {
	ctx, s, dir := setupTest(t)

	err := s.Put(ctx, "docs/setup.md", []byte("# Setup\n"), store.PutOptions{ContentType: store.ContentTypeMarkdown})
	require.NoError(t, err, "put should succeed")

	data, err := os.ReadFile(filepath.Join(dir, "docs", "setup.md"))
	require.NoError(t, err, "file should exist on disk")
	assert.Equal(t, "# Setup\n", string(data))

	obj, err := s.Get(ctx, "docs/setup.md")
	require.NoError(t, err, "get should succeed")
	assert.Equal(t, "docs/setup.md", obj.Key)
	assert.Equal(t, "# Setup\n", string(obj.Content))
	assert.Equal(t, store.Checksum([]byte("# Setup\n")), obj.Checksum)
	assert.Contains(t, obj.ContentType, "markdown")

	entries, err := os.ReadDir(filepath.Join(dir, "docs"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files should remain")
}

func TestStore_ConditionalPut(t *testing.T) {
	ctx, s, _ := setupTest(t)

	require.NoError(t, s.Put(ctx, "a.md", []byte("one"), store.PutOptions{}))

	tests := []struct {
		name     string
		ifMatch  string
		key      string
		conflict bool
	}{
		{name: "matching_checksum", key: "a.md", ifMatch: store.Checksum([]byte("one"))},
		{name: "stale_checksum", key: "a.md", ifMatch: store.Checksum([]byte("zero")), conflict: true},
		{name: "missing_key", key: "b.md", ifMatch: store.Checksum([]byte("one")), conflict: true},
		{name: "unconditional", key: "b.md"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Put(ctx, tt.key, []byte("one"), store.PutOptions{IfMatch: tt.ifMatch})
			if tt.conflict {
				assert.True(t, errors.Is(err, store.ErrConflict), "expected conflict, got %v", err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestStore_Errors(t *testing.T) {
	ctx, s, _ := setupTest(t)

	_, err := s.Get(ctx, "missing.md")
	assert.True(t, errors.Is(err, store.ErrNotFound), "get of missing key should be not found")

	err = s.Delete(ctx, "missing.md")
	assert.True(t, errors.Is(err, store.ErrNotFound), "delete of missing key should be not found")

	for _, key := range []string{"../escape.md", "/etc/passwd", ""} {
		err = s.Put(ctx, key, []byte("x"), store.PutOptions{})
		require.Error(t, err, "key %q should be rejected", key)
		assert.Contains(t, err.Error(), "must be a local path")
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	s, err := store.Open(context.Background(), config.Store{Type: "fs", Path: dir})
	require.NoError(t, err)
	assert.IsType(t, &Store{}, s)
}
