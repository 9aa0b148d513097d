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
	"fmt"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/google/go-github/v60/github"
	"github.com/rs/zerolog"
	"github.com/walteh/docpatch/pkg/config"
	"github.com/walteh/docpatch/pkg/store"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/oauth2"
)

func init() {
	store.Register("github", func(ctx context.Context, cfg config.Store) (store.Store, error) {
		if cfg.GitHub == nil {
			return nil, errors.New("github section is required")
		}
		return New(ctx, *cfg.GitHub)
	})
}

// 🎯 Store keeps documents in a GitHub repository, one commit per write
type Store struct {
	client *github.Client
	owner  string
	name   string
	ref    string
	base   string
}

// 🏭 New creates a GitHub store authenticated with the token in cfg.TokenEnv
func New(ctx context.Context, cfg config.GitHubStore) (*Store, error) {
	// Get token from environment
	token := os.Getenv(cfg.TokenEnv)
	if token == "" {
		return nil, errors.Errorf("%s environment variable not set", cfg.TokenEnv)
	}

	// Create OAuth2 client
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(ctx, ts)

	return NewWithClient(github.NewClient(tc), cfg)
}

// NewWithClient creates a GitHub store that uses client for API calls
func NewWithClient(client *github.Client, cfg config.GitHubStore) (*Store, error) {
	owner, name, err := parseRepo(cfg.Repo)
	if err != nil {
		return nil, errors.Errorf("parsing repo: %w", err)
	}

	ref := cfg.Ref
	if ref == "" {
		ref = "main"
	}

	return &Store{
		client: client,
		owner:  owner,
		name:   name,
		ref:    ref,
		base:   strings.Trim(cfg.Path, "/"),
	}, nil
}

// 🔍 parseRepo parses a GitHub repository URL
func parseRepo(repo string) (owner, name string, err error) {
	parts := strings.Split(strings.Trim(repo, "/"), "/")
	if len(parts) < 2 || parts[len(parts)-2] == "" || parts[len(parts)-1] == "" {
		return "", "", errors.Errorf("invalid repository format: %s", repo)
	}

	return parts[len(parts)-2], strings.TrimSuffix(parts[len(parts)-1], ".git"), nil
}

func (s *Store) repoPath(key string) string {
	if s.base == "" {
		return key
	}
	return path.Join(s.base, key)
}

func statusCode(resp *github.Response, err error) int {
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		return ghErr.Response.StatusCode
	}
	if resp != nil {
		return resp.StatusCode
	}
	return 0
}

// getContent returns the decoded file and its blob sha
func (s *Store) getContent(ctx context.Context, key string) ([]byte, string, error) {
	file, _, resp, err := s.client.Repositories.GetContents(ctx, s.owner, s.name, s.repoPath(key), &github.RepositoryContentGetOptions{
		Ref: s.ref,
	})
	if err != nil {
		if statusCode(resp, err) == http.StatusNotFound {
			return nil, "", errors.Errorf("getting %s: %w", key, store.ErrNotFound)
		}
		return nil, "", errors.Errorf("getting file content: %w", err)
	}
	if file == nil {
		// a directory lives at this path
		return nil, "", errors.Errorf("getting %s: %w", key, store.ErrNotFound)
	}

	// Decode content
	data, err := file.GetContent()
	if err != nil {
		return nil, "", errors.Errorf("decoding content: %w", err)
	}

	return []byte(data), file.GetSHA(), nil
}

// 🔍 Get retrieves a single file's contents
func (s *Store) Get(ctx context.Context, key string) (*store.Object, error) {
	content, _, err := s.getContent(ctx, key)
	if err != nil {
		return nil, err
	}

	return &store.Object{
		Key:         key,
		Content:     content,
		ContentType: contentType(key),
		Checksum:    store.Checksum(content),
	}, nil
}

// 📝 Put commits content to the configured branch. The blob sha read here is
// sent with the update so GitHub rejects writes that race with another commit.
func (s *Store) Put(ctx context.Context, key string, content []byte, opts store.PutOptions) error {
	current, sha, err := s.getContent(ctx, key)
	exists := err == nil
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}

	if opts.IfMatch != "" {
		var obj *store.Object
		if exists {
			obj = &store.Object{Key: key, Checksum: store.Checksum(current)}
		}
		if err := store.CheckMatch(key, obj, opts.IfMatch); err != nil {
			return err
		}
	}

	msg := fmt.Sprintf("docpatch: update %s", key)
	if opts.ContentType != "" {
		msg += fmt.Sprintf("\n\nContent-Type: %s", opts.ContentType)
	}

	fileOpts := &github.RepositoryContentFileOptions{
		Message: github.String(msg),
		Content: content,
		Branch:  github.String(s.ref),
	}

	var resp *github.Response
	if exists {
		fileOpts.SHA = github.String(sha)
		_, resp, err = s.client.Repositories.UpdateFile(ctx, s.owner, s.name, s.repoPath(key), fileOpts)
	} else {
		_, resp, err = s.client.Repositories.CreateFile(ctx, s.owner, s.name, s.repoPath(key), fileOpts)
	}
	if err != nil {
		switch statusCode(resp, err) {
		case http.StatusConflict, http.StatusUnprocessableEntity:
			return errors.Errorf("%w: %s was committed concurrently", store.ErrConflict, key)
		}
		return errors.Errorf("committing %s: %w", key, err)
	}

	zerolog.Ctx(ctx).Debug().Str("repo", s.owner+"/"+s.name).Str("key", key).Msg("committed file")
	return nil
}

// 🗑️ Delete removes the file with a commit
func (s *Store) Delete(ctx context.Context, key string) error {
	_, sha, err := s.getContent(ctx, key)
	if err != nil {
		return err
	}

	_, _, err = s.client.Repositories.DeleteFile(ctx, s.owner, s.name, s.repoPath(key), &github.RepositoryContentFileOptions{
		Message: github.String(fmt.Sprintf("docpatch: delete %s", key)),
		SHA:     github.String(sha),
		Branch:  github.String(s.ref),
	})
	if err != nil {
		return errors.Errorf("deleting %s: %w", key, err)
	}
	return nil
}

func contentType(key string) string {
	switch path.Ext(key) {
	case ".md", ".markdown":
		return store.ContentTypeMarkdown
	case ".html":
		return "text/html; charset=utf-8"
	case ".json":
		return store.ContentTypeJSON
	}
	return "text/plain; charset=utf-8"
}
