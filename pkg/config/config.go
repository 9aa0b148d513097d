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

package config

import (
	"fmt"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gitlab.com/tozd/go/errors"
)

// SessionPlaceholder is replaced by the session id in session keys
const SessionPlaceholder = "{session}"

// 🗄️ Store selects and configures the document store backend
type Store struct {
	Type   string       `json:"type" yaml:"type"`                         // fs, sqlite, github or memory
	Path   string       `json:"path,omitempty" yaml:"path,omitempty"`     // root dir (fs) or data dir (sqlite)
	GitHub *GitHubStore `json:"github,omitempty" yaml:"github,omitempty"` // required when type is github
}

// 🐙 GitHubStore keeps documents in a GitHub repository
type GitHubStore struct {
	Repo     string `json:"repo" yaml:"repo"`                               // github.com/org/repo
	Ref      string `json:"ref,omitempty" yaml:"ref,omitempty"`             // branch to read and commit to
	Path     string `json:"path,omitempty" yaml:"path,omitempty"`           // base directory inside the repo
	TokenEnv string `json:"token_env,omitempty" yaml:"token_env,omitempty"` // env var holding the token
}

// 🔍 Locator tunes the fuzzy token strategy
type Locator struct {
	MaxGap         int `json:"max_gap,omitempty" yaml:"max_gap,omitempty"`
	MinTokenLength int `json:"min_token_length,omitempty" yaml:"min_token_length,omitempty"`
	MinTokens      int `json:"min_tokens,omitempty" yaml:"min_tokens,omitempty"`
}

// 📄 Documents controls which documents may be patched and where they live
type Documents struct {
	Prefix  string   `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	Allowed []string `json:"allowed,omitempty" yaml:"allowed,omitempty"`
}

// 🧾 Session names the per-session keys in the store
type Session struct {
	FixListKey   string   `json:"fix_list_key,omitempty" yaml:"fix_list_key,omitempty"`
	AnalysisKeys []string `json:"analysis_keys,omitempty" yaml:"analysis_keys,omitempty"`
}

// 🌐 CDN configures content delivery cache invalidation
type CDN struct {
	Type          string `json:"type,omitempty" yaml:"type,omitempty"` // log or nats
	NATSURL       string `json:"nats_url,omitempty" yaml:"nats_url,omitempty"`
	Subject       string `json:"subject,omitempty" yaml:"subject,omitempty"`
	ChangelogPath string `json:"changelog_path,omitempty" yaml:"changelog_path,omitempty"`
}

// 🖥️ Server configures the HTTP transport
type Server struct {
	Host string `json:"host,omitempty" yaml:"host,omitempty"`
	Port int    `json:"port,omitempty" yaml:"port,omitempty"`
}

// 📚 Config represents the complete docpatch configuration
type Config struct {
	Store             Store     `json:"store" yaml:"store"`
	Locator           Locator   `json:"locator,omitempty" yaml:"locator,omitempty"`
	Documents         Documents `json:"documents,omitempty" yaml:"documents,omitempty"`
	Session           Session   `json:"session,omitempty" yaml:"session,omitempty"`
	CDN               CDN       `json:"cdn,omitempty" yaml:"cdn,omitempty"`
	Server            Server    `json:"server,omitempty" yaml:"server,omitempty"`
	ConditionalWrites *bool     `json:"conditional_writes,omitempty" yaml:"conditional_writes,omitempty"`

	location string
}

// 🏭 Default returns a validated in-memory configuration
func Default() *Config {
	cfg := &Config{Store: Store{Type: "memory"}}
	if err := Validate(cfg); err != nil {
		panic(err)
	}
	return cfg
}

// Location returns the file the config was loaded from, if any
func (cfg *Config) Location() string {
	return cfg.location
}

// UseConditionalWrites reports whether document writes must match the
// checksum read at the start of the run
func (cfg *Config) UseConditionalWrites() bool {
	return cfg.ConditionalWrites == nil || *cfg.ConditionalWrites
}

// 🔍 Validate fills defaults and checks that the configuration is usable
func Validate(cfg *Config) error {
	switch cfg.Store.Type {
	case "fs", "sqlite":
		if cfg.Store.Path == "" {
			return errors.Errorf("store.path is required for %s store", cfg.Store.Type)
		}
	case "github":
		if cfg.Store.GitHub == nil || cfg.Store.GitHub.Repo == "" {
			return errors.Errorf("store.github.repo is required for github store")
		}
		if cfg.Store.GitHub.Ref == "" {
			cfg.Store.GitHub.Ref = "main"
		}
		if cfg.Store.GitHub.TokenEnv == "" {
			cfg.Store.GitHub.TokenEnv = "GITHUB_TOKEN"
		}
	case "memory":
	case "":
		return errors.Errorf("store.type is required")
	default:
		return errors.Errorf("unknown store type %q", cfg.Store.Type)
	}

	if cfg.Locator.MaxGap == 0 {
		cfg.Locator.MaxGap = 50
	}
	if cfg.Locator.MinTokenLength == 0 {
		cfg.Locator.MinTokenLength = 3
	}
	if cfg.Locator.MinTokens == 0 {
		cfg.Locator.MinTokens = 3
	}
	// regexp caps counted repetition at 1000
	if cfg.Locator.MaxGap < 0 || cfg.Locator.MaxGap > 1000 {
		return errors.Errorf("locator.max_gap must be between 1 and 1000, got %d", cfg.Locator.MaxGap)
	}
	if cfg.Locator.MinTokenLength < 0 || cfg.Locator.MinTokens < 0 {
		return errors.Errorf("locator token limits must be positive")
	}

	cfg.Documents.Prefix = strings.Trim(cfg.Documents.Prefix, "/")
	if len(cfg.Documents.Allowed) == 0 {
		cfg.Documents.Allowed = []string{"*.md", "*.markdown", "*.txt"}
	}
	for _, pattern := range cfg.Documents.Allowed {
		if !doublestar.ValidatePattern(pattern) {
			return errors.Errorf("documents.allowed: invalid pattern %q", pattern)
		}
	}

	if cfg.Session.FixListKey == "" {
		cfg.Session.FixListKey = "sessions/{session}/fixes.json"
	}
	if !strings.Contains(cfg.Session.FixListKey, SessionPlaceholder) {
		return errors.Errorf("session.fix_list_key must contain %s", SessionPlaceholder)
	}
	if len(cfg.Session.AnalysisKeys) == 0 {
		cfg.Session.AnalysisKeys = []string{
			"sessions/{session}/analysis.json",
			"sessions/{session}/structure.json",
			"sessions/{session}/processed-content.json",
		}
	}

	switch cfg.CDN.Type {
	case "":
		cfg.CDN.Type = "log"
	case "log":
	case "nats":
		if cfg.CDN.NATSURL == "" {
			return errors.Errorf("cdn.nats_url is required for nats invalidation")
		}
	default:
		return errors.Errorf("unknown cdn type %q", cfg.CDN.Type)
	}
	if cfg.CDN.Subject == "" {
		cfg.CDN.Subject = "docpatch.cdn.invalidate"
	}
	if cfg.CDN.ChangelogPath == "" {
		cfg.CDN.ChangelogPath = "/changelog.md"
	}
	if !strings.HasPrefix(cfg.CDN.ChangelogPath, "/") {
		cfg.CDN.ChangelogPath = "/" + cfg.CDN.ChangelogPath
	}

	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}

	return nil
}

// 🔑 DocumentKey returns the store key of a document filename
func (cfg *Config) DocumentKey(filename string) string {
	if cfg.Documents.Prefix == "" {
		return filename
	}
	return path.Join(cfg.Documents.Prefix, filename)
}

// IsAllowedDocument reports whether filename matches one of the allowed globs
func (cfg *Config) IsAllowedDocument(filename string) bool {
	for _, pattern := range cfg.Documents.Allowed {
		if ok, err := doublestar.Match(pattern, filename); err == nil && ok {
			return true
		}
	}
	return false
}

// FixListKey returns the key of the fix list for session
func (cfg *Config) FixListKey(session string) string {
	return strings.ReplaceAll(cfg.Session.FixListKey, SessionPlaceholder, session)
}

// AnalysisKeys returns the cached analysis keys for session
func (cfg *Config) AnalysisKeys(session string) []string {
	keys := make([]string, 0, len(cfg.Session.AnalysisKeys))
	for _, k := range cfg.Session.AnalysisKeys {
		keys = append(keys, strings.ReplaceAll(k, SessionPlaceholder, session))
	}
	return keys
}

// 📝 String returns a short description of the config
func (cfg *Config) String() string {
	return fmt.Sprintf("store=%s cdn=%s gap=%d", cfg.Store.Type, cfg.CDN.Type, cfg.Locator.MaxGap)
}
