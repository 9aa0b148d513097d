package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRootConfig(t *testing.T) {
	dir := t.TempDir()
	valid := filepath.Join(dir, "docpatch.yaml")
	require.NoError(t, os.WriteFile(valid, []byte("store:\n  type: sqlite\n  path: "+dir+"\n"), 0644))

	tests := []struct {
		name      string
		file      string
		explicit  bool
		wantStore string
		wantErr   string
	}{
		{name: "missing_default_falls_back", file: filepath.Join(dir, ".docpatch.yaml"), wantStore: "fs"},
		{name: "explicit_file", file: valid, explicit: true, wantStore: "sqlite"},
		{name: "missing_explicit_file", file: filepath.Join(dir, "nope.yaml"), explicit: true, wantErr: "loading config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prev := configFile
			configFile = tt.file
			t.Cleanup(func() { configFile = prev })

			ctx := zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background())
			cfg, err := loadRootConfig(ctx, tt.explicit)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStore, cfg.Store.Type)
		})
	}
}

func TestVersionCmd(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		check func(t *testing.T, out string)
	}{
		{
			name: "table",
			args: []string{"version"},
			check: func(t *testing.T, out string) {
				assert.Contains(t, out, "version")
				assert.Contains(t, out, "platform")
			},
		},
		{
			name: "json",
			args: []string{"version", "--json"},
			check: func(t *testing.T, out string) {
				var info map[string]any
				require.NoError(t, json.Unmarshal([]byte(out), &info))
				assert.NotEmpty(t, info["version"])
				assert.NotEmpty(t, info["go"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newRootCmd()
			var out bytes.Buffer
			cmd.SetOut(&out)
			cmd.SetArgs(tt.args)

			require.NoError(t, cmd.ExecuteContext(context.Background()))
			tt.check(t, out.String())
		})
	}
}

func TestReadBuildInfo(t *testing.T) {
	tests := []struct {
		name string
		read func() (*debug.BuildInfo, bool)
		want buildInfo
	}{
		{
			name: "no_build_info",
			read: func() (*debug.BuildInfo, bool) { return nil, false },
			want: buildInfo{Version: "dev"},
		},
		{
			name: "devel_build",
			read: func() (*debug.BuildInfo, bool) {
				return &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}}, true
			},
			want: buildInfo{Version: "dev"},
		},
		{
			name: "stamped_release",
			read: func() (*debug.BuildInfo, bool) {
				return &debug.BuildInfo{
					Main: debug.Module{Version: "v1.2.3"},
					Settings: []debug.BuildSetting{
						{Key: "vcs.revision", Value: "abc123"},
						{Key: "vcs.time", Value: "2025-03-14T00:00:00Z"},
						{Key: "vcs.modified", Value: "true"},
					},
				}, true
			},
			want: buildInfo{Version: "v1.2.3", Commit: "abc123", Built: "2025-03-14T00:00:00Z", Dirty: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := readBuildInfo(tt.read)
			assert.Equal(t, runtime.Version(), got.Go)
			got.Go, got.Platform = "", ""
			assert.Equal(t, tt.want, got)
		})
	}
}

// captureStdout runs fn with os.Stdout redirected and returns what was written
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()

	r, w, err := os.Pipe()
	require.NoError(t, err)

	orig := os.Stdout
	os.Stdout = w
	t.Cleanup(func() { os.Stdout = orig })

	done := make(chan []byte)
	go func() {
		data, _ := io.ReadAll(r)
		done <- data
	}()

	fn()

	os.Stdout = orig
	require.NoError(t, w.Close())
	return string(<-done)
}

func TestApplyJSON_StdoutIsParseable(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sessions", "s1"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sessions", "s1", "fixes.json"), []byte(`{
  "documentUrl": "https://docs.example.com/setup.md",
  "fixes": [{"id": "f1", "category": "CODE_UPDATE", "originalContent": "Array for results", "proposedContent": "Array<T> for results", "rationale": "generic typing"}]
}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "setup.md"), []byte("Use Array<Finding> for results.\n"), 0644))
	cfgPath := filepath.Join(dir, "docpatch.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("store:\n  type: fs\n  path: "+dir+"\n"), 0644))

	tests := []struct {
		name    string
		args    []string
		wantKey string
	}{
		{name: "dry_run", args: []string{"--dry-run"}, wantKey: "diff"},
		{name: "apply", args: nil, wantKey: "success"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var runErr error
			out := captureStdout(t, func() {
				cmd := newRootCmd()
				cmd.SetArgs(append([]string{"-c", cfgPath, "apply", "s1", "--fix", "f1", "--json"}, tt.args...))
				runErr = cmd.ExecuteContext(context.Background())
			})
			require.NoError(t, runErr)

			var body map[string]any
			require.NoError(t, json.Unmarshal([]byte(out), &body), "stdout should be a single json document, got %q", out)
			assert.Contains(t, body, tt.wantKey)
			assert.EqualValues(t, 1, body["fixesApplied"])
		})
	}
}
