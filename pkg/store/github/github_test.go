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

package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-github/v60/github"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/docpatch/pkg/config"
	"github.com/walteh/docpatch/pkg/store"
	"gitlab.com/tozd/go/errors"
)

// fakeContents serves the subset of the contents API the store uses
type fakeContents struct {
	mu      sync.Mutex
	files   map[string][]byte
	commits []string
}

func blobSHA(content []byte) string {
	return store.Checksum(content)[:40]
}

func (f *fakeContents) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const prefix = "/repos/walteh/docs/contents/"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		http.NotFound(w, r)
		return
	}
	p := strings.TrimPrefix(r.URL.Path, prefix)

	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")

	current, exists := f.files[p]

	switch r.Method {
	case http.MethodGet:
		if !exists {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"Not Found"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"type":     "file",
			"encoding": "base64",
			"path":     p,
			"sha":      blobSHA(current),
			"content":  base64.StdEncoding.EncodeToString(current),
		})
	case http.MethodPut, http.MethodDelete:
		var body struct {
			Message string `json:"message"`
			Content []byte `json:"content"`
			SHA     string `json:"sha"`
			Branch  string `json:"branch"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if exists && body.SHA != blobSHA(current) {
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"message":"sha does not match"}`))
			return
		}
		f.commits = append(f.commits, body.Message)
		if r.Method == http.MethodDelete {
			delete(f.files, p)
			_, _ = w.Write([]byte(`{}`))
			return
		}
		f.files[p] = body.Content
		if !exists {
			w.WriteHeader(http.StatusCreated)
		}
		_, _ = w.Write([]byte(`{"content":{"path":"` + p + `"}}`))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func setupTest(t *testing.T) (context.Context, *Store, *fakeContents) {
	t.Helper()

	fake := &fakeContents{files: map[string][]byte{
		"content/setup.md": []byte("# Setup\n"),
	}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client := github.NewClient(nil)
	base, err := url.Parse(srv.URL + "/")
	require.NoError(t, err)
	client.BaseURL = base

	s, err := NewWithClient(client, config.GitHubStore{Repo: "github.com/walteh/docs", Path: "content"})
	require.NoError(t, err, "creating store should succeed")

	ctx := zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background())
	return ctx, s, fake
}

func TestParseRepo(t *testing.T) {
	tests := []struct {
		name        string
		repo        string
		wantOwner   string
		wantName    string
		wantErr     bool
		errContains string
	}{
		{
			name:      "valid_repo",
			repo:      "github.com/walteh/docs",
			wantOwner: "walteh",
			wantName:  "docs",
		},
		{
			name:      "valid_repo_with_https",
			repo:      "https://github.com/walteh/docs.git",
			wantOwner: "walteh",
			wantName:  "docs",
		},
		{
			name:        "invalid_repo",
			repo:        "invalid",
			wantErr:     true,
			errContains: "invalid repository format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			owner, name, err := parseRepo(tt.repo)
			if tt.wantErr {
				require.Error(t, err, "parseRepo should return error")
				assert.Contains(t, err.Error(), tt.errContains, "error should contain expected message")
				return
			}

			require.NoError(t, err, "parseRepo should succeed")
			assert.Equal(t, tt.wantOwner, owner, "owner should match")
			assert.Equal(t, tt.wantName, name, "name should match")
		})
	}
}

func TestStore_Get(t *testing.T) {
	ctx, s, _ := setupTest(t)

	obj, err := s.Get(ctx, "setup.md")
	require.NoError(t, err, "get should succeed")
	assert.Equal(t, "# Setup\n", string(obj.Content))
	assert.Equal(t, store.ContentTypeMarkdown, obj.ContentType)
	assert.Equal(t, store.Checksum([]byte("# Setup\n")), obj.Checksum)

	_, err = s.Get(ctx, "missing.md")
	assert.True(t, errors.Is(err, store.ErrNotFound), "missing file should be not found, got %v", err)
}

func TestStore_Put(t *testing.T) {
	ctx, s, fake := setupTest(t)

	// update with a matching checksum
	err := s.Put(ctx, "setup.md", []byte("# Setup v2\n"), store.PutOptions{
		ContentType: store.ContentTypeMarkdown,
		IfMatch:     store.Checksum([]byte("# Setup\n")),
	})
	require.NoError(t, err, "conditional update should succeed")
	assert.Equal(t, "# Setup v2\n", string(fake.files["content/setup.md"]))
	require.Len(t, fake.commits, 1)
	assert.Contains(t, fake.commits[0], "Content-Type: "+store.ContentTypeMarkdown)

	// stale checksum
	err = s.Put(ctx, "setup.md", []byte("# Setup v3\n"), store.PutOptions{
		IfMatch: store.Checksum([]byte("# Setup\n")),
	})
	assert.True(t, errors.Is(err, store.ErrConflict), "stale update should conflict, got %v", err)
	assert.Equal(t, "# Setup v2\n", string(fake.files["content/setup.md"]))

	// create
	err = s.Put(ctx, "setup.html", []byte("<h1>Setup</h1>"), store.PutOptions{ContentType: "text/html; charset=utf-8"})
	require.NoError(t, err, "create should succeed")
	assert.Equal(t, "<h1>Setup</h1>", string(fake.files["content/setup.html"]))
}

func TestStore_Delete(t *testing.T) {
	ctx, s, fake := setupTest(t)

	require.NoError(t, s.Delete(ctx, "setup.md"))
	assert.NotContains(t, fake.files, "content/setup.md")

	err := s.Delete(ctx, "setup.md")
	assert.True(t, errors.Is(err, store.ErrNotFound), "second delete should be not found, got %v", err)
}

func TestNew_RequiresToken(t *testing.T) {
	t.Setenv("DOCPATCH_TEST_TOKEN", "")

	_, err := New(context.Background(), config.GitHubStore{Repo: "github.com/walteh/docs", TokenEnv: "DOCPATCH_TEST_TOKEN"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DOCPATCH_TEST_TOKEN environment variable not set")

	t.Setenv("DOCPATCH_TEST_TOKEN", "mock_token")
	s, err := New(context.Background(), config.GitHubStore{Repo: "github.com/walteh/docs", TokenEnv: "DOCPATCH_TEST_TOKEN"})
	require.NoError(t, err)
	assert.Equal(t, "main", s.ref, "ref should default to main")
}
