package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/docpatch/pkg/cdn"
	"github.com/walteh/docpatch/pkg/config"
	"github.com/walteh/docpatch/pkg/operation"
	"github.com/walteh/docpatch/pkg/store"
	"github.com/walteh/docpatch/pkg/store/memory"
	"gitlab.com/tozd/go/errors"
)

const fixListJSON = `{
  "documentUrl": "https://docs.example.com/setup.md",
  "fixes": [
    {
      "id": "fix-1",
      "category": "CODE_UPDATE",
      "originalContent": "Array for results",
      "proposedContent": "Array<T> for results",
      "rationale": "generic typing",
      "confidence": 0.8
    }
  ]
}`

const doc = "Use Array<Finding> for results.\n\n## Support\nContact us."

func setupServer(t *testing.T) (*httptest.Server, *memory.Store) {
	t.Helper()

	ctx := zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background())
	st := memory.New()
	require.NoError(t, st.Put(ctx, "sessions/s1/fixes.json", []byte(fixListJSON), store.PutOptions{}))
	require.NoError(t, st.Put(ctx, "setup.md", []byte(doc), store.PutOptions{}))

	op, err := operation.New(operation.Options{
		Config:      config.Default(),
		Store:       st,
		Invalidator: &cdn.Log{},
		Now:         func() time.Time { return time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)

	srv, err := NewServer(ctx, op, config.Server{})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, st
}

func post(t *testing.T, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Contains(t, resp.Header.Get("Content-Type"), "application/json", "every response should be json")

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestHealth(t *testing.T) {
	ts, _ := setupServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"), "request id should be set")
}

func TestApply(t *testing.T) {
	ts, st := setupServer(t)

	resp, body := post(t, ts.URL+"/api/v1/sessions/s1/apply", `{"fixIds": ["fix-1"]}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "setup.md", body["filename"])
	assert.Equal(t, "Applied 1 fix to setup.md", body["message"])
	assert.EqualValues(t, 1, body["fixesApplied"])
	assert.NotEmpty(t, body["invalidationId"])
	assert.NotContains(t, body, "error")

	obj, err := st.Get(context.Background(), "setup.md")
	require.NoError(t, err)
	assert.Contains(t, string(obj.Content), "## Changelog")
}

func TestApply_Errors(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		wantError  string
	}{
		{
			name:       "unknown_session",
			path:       "/api/v1/sessions/nope/apply",
			body:       `{"fixIds": ["fix-1"]}`,
			wantStatus: http.StatusNotFound,
			wantError:  "fix list for session nope",
		},
		{
			name:       "invalid_body",
			path:       "/api/v1/sessions/s1/apply",
			body:       `{"fixIds": `,
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid request body",
		},
		{
			name:       "unknown_route",
			path:       "/api/v1/sessions/s1/revert",
			body:       `{}`,
			wantStatus: http.StatusNotFound,
			wantError:  "Not Found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, _ := setupServer(t)

			resp, body := post(t, ts.URL+tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Len(t, body, 1, "error body should only carry error")
			assert.Contains(t, body["error"], tt.wantError)
		})
	}
}

func TestPreview(t *testing.T) {
	ts, st := setupServer(t)

	resp, body := post(t, ts.URL+"/api/v1/sessions/s1/preview", `{"fixIds": ["fix-1"]}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "setup.md", body["filename"])
	assert.EqualValues(t, 1, body["fixesApplied"])
	assert.Contains(t, body["diff"], "@@")

	outcomes, ok := body["outcomes"].([]any)
	require.True(t, ok)
	require.Len(t, outcomes, 1)
	assert.Equal(t, "fuzzy", outcomes[0].(map[string]any)["strategy"])

	obj, err := st.Get(context.Background(), "setup.md")
	require.NoError(t, err)
	assert.Equal(t, doc, string(obj.Content), "preview must not write")
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "invalid_input", err: errors.Errorf("%w: bad", operation.ErrInvalidInput), want: http.StatusBadRequest},
		{name: "not_found", err: errors.Errorf("%w: gone", operation.ErrNotFound), want: http.StatusNotFound},
		{name: "conflict", err: errors.Errorf("%w: raced", store.ErrConflict), want: http.StatusConflict},
		{name: "deadline", err: errors.Errorf("slow: %w", context.DeadlineExceeded), want: http.StatusGatewayTimeout},
		{name: "other", err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusCode(tt.err))
		})
	}
}
