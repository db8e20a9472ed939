package server

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unzipd/unzipd/internal/archive"
	"github.com/unzipd/unzipd/internal/engine"
	"github.com/unzipd/unzipd/internal/extract"
	"github.com/unzipd/unzipd/internal/operation"
	"github.com/unzipd/unzipd/internal/pathguard"
)

func newTestServer(cfg Config) *Server {
	return New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func doRequest(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.RemoteAddr = "192.0.2.1:12345"
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	s := newTestServer(Config{})

	rec := doRequest(s, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp LivezResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "alive", resp.Status)
}

func TestSecurityHeaders(t *testing.T) {
	s := newTestServer(Config{})

	rec := doRequest(s, http.MethodGet, "/healthz", "")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestExtract_Accepted(t *testing.T) {
	s := newTestServer(Config{})

	var gotReq ExtractRequest
	s.SetExtractFunc(func(ctx context.Context, req ExtractRequest) (string, error) {
		gotReq = req
		return "op-123", nil
	})

	rec := doRequest(s, http.MethodPost, "/api/operations/extract",
		`{"root":"/srv/archives","conflict_policy":"suffix"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp StartResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "op-123", resp.OperationID)
	assert.Equal(t, "/srv/archives", gotReq.Root)
	assert.Equal(t, "suffix", gotReq.Policy)
}

func TestExtract_MissingRoot(t *testing.T) {
	s := newTestServer(Config{})
	s.SetExtractFunc(func(ctx context.Context, req ExtractRequest) (string, error) {
		return "unused", nil
	})

	rec := doRequest(s, http.MethodPost, "/api/operations/extract", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExtract_PathRejectedMapsToBadRequest(t *testing.T) {
	s := newTestServer(Config{})
	s.SetExtractFunc(func(ctx context.Context, req ExtractRequest) (string, error) {
		return "", &pathguard.PathRejectedError{Path: req.Root, Reason: "outside allowed root"}
	})

	rec := doRequest(s, http.MethodPost, "/api/operations/extract", `{"root":"/etc"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp["error"], "outside allowed root")
}

func TestExtract_NotConfigured(t *testing.T) {
	s := newTestServer(Config{})

	rec := doRequest(s, http.MethodPost, "/api/operations/extract", `{"root":"/srv"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCleanup_Accepted(t *testing.T) {
	s := newTestServer(Config{})
	s.SetCleanupFunc(func(ctx context.Context, root string) (string, error) {
		assert.Equal(t, "/srv/archives", root)
		return "op-456", nil
	})

	rec := doRequest(s, http.MethodPost, "/api/operations/cleanup", `{"root":"/srv/archives"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp StartResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "op-456", resp.OperationID)
}

func TestSnapshot_Found(t *testing.T) {
	s := newTestServer(Config{})
	s.SetSnapshotFunc(func(id string) (operation.Snapshot, error) {
		return operation.Snapshot{
			ID:      id,
			Kind:    operation.KindExtract,
			State:   operation.StateRunning,
			Found:   3,
			Success: 1,
		}, nil
	})

	rec := doRequest(s, http.MethodGet, "/api/operations/op-789", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var snap operation.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, "op-789", snap.ID)
	assert.Equal(t, operation.StateRunning, snap.State)
	assert.Equal(t, 3, snap.Found)
}

func TestSnapshot_NotFound(t *testing.T) {
	s := newTestServer(Config{})
	s.SetSnapshotFunc(func(id string) (operation.Snapshot, error) {
		return operation.Snapshot{}, &operation.NotFoundError{ID: id}
	})

	rec := doRequest(s, http.MethodGet, "/api/operations/ghost", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestList(t *testing.T) {
	s := newTestServer(Config{})
	s.SetListFunc(func() []operation.Snapshot {
		return []operation.Snapshot{
			{ID: "a", Kind: operation.KindExtract, State: operation.StateDone},
			{ID: "b", Kind: operation.KindCleanup, State: operation.StateRunning},
		}
	})

	rec := doRequest(s, http.MethodGet, "/api/operations", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var snaps []operation.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snaps))
	assert.Len(t, snaps, 2)
}

func TestBasicAuth(t *testing.T) {
	s := newTestServer(Config{
		AuthEnabled:  true,
		AuthUsername: "admin",
		AuthPassword: "secret",
	})

	// No credentials
	rec := doRequest(s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")

	// Wrong credentials
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "192.0.2.1:12345"
	req.SetBasicAuth("admin", "wrong")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Correct credentials
	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "192.0.2.1:12345"
	req.SetBasicAuth("admin", "secret")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(Config{
		RateLimitEnabled: true,
		RequestsPerMin:   1,
		Burst:            2,
	})

	// Burst allows the first two requests, the third is rejected.
	assert.Equal(t, http.StatusOK, doRequest(s, http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusOK, doRequest(s, http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, doRequest(s, http.MethodGet, "/healthz", "").Code)

	// A different client has its own bucket.
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "192.0.2.99:54321"
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// TestExtract_OperationSurvivesRequestContext wires a real engine behind the
// handler and cancels the request context right after the 202, the way
// net/http does once the response is written. The operation must still run
// to completion.
func TestExtract_OperationSurvivesRequestContext(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("f.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("f"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.zip"), buf.Bytes(), 0644))

	guard, err := pathguard.New(dir)
	require.NoError(t, err)
	eng := engine.New(engine.Config{
		Guard:     guard,
		Limits:    archive.DefaultLimits(),
		Workers:   2,
		Recursive: true,
	}, operation.NewRegistry(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	s := newTestServer(Config{})
	s.SetExtractFunc(func(ctx context.Context, req ExtractRequest) (string, error) {
		return eng.StartExtraction(ctx, req.Root, extract.PolicySkip, true)
	})

	reqCtx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodPost, "/api/operations/extract",
		strings.NewReader(fmt.Sprintf(`{"root":%q}`, dir)))
	req = req.WithContext(reqCtx)
	req.RemoteAddr = "192.0.2.1:12345"
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	cancel()

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp StartResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	deadline := time.Now().Add(5 * time.Second)
	for {
		snap, err := eng.Snapshot(resp.OperationID)
		require.NoError(t, err)
		if snap.State.IsTerminal() {
			assert.Equal(t, operation.StateDone, snap.State)
			assert.Equal(t, 1, snap.Success)
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("operation did not finish, state %s", snap.State)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(Config{})
	s.SetMetricsHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("# metrics"))
	}))

	rec := doRequest(s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "# metrics")
}
