package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"veritas-media/internal/api"
	"veritas-media/internal/auth"
	"veritas-media/internal/observability/metrics"
	"veritas-media/internal/storage"
)

const testAPIKey = "server-test-key"

type stubVerifier struct {
	identity auth.Identity
	err      error
}

func (s *stubVerifier) Verify(ctx context.Context, token string) (auth.Identity, error) {
	if s.err != nil {
		return auth.Identity{}, s.err
	}
	return s.identity, nil
}

func newTestHandler(t *testing.T) (*api.Handler, *storage.Storage) {
	t.Helper()
	store, err := storage.NewStorage(filepath.Join(t.TempDir(), "catalog.json"))
	if err != nil {
		t.Fatalf("NewStorage error: %v", err)
	}
	keys, err := auth.NewKeyring([]string{testAPIKey}, nil)
	if err != nil {
		t.Fatalf("NewKeyring error: %v", err)
	}
	verifier := &stubVerifier{identity: auth.Identity{
		Subject:   "admin-1",
		ExpiresAt: time.Now().Add(time.Hour),
	}}
	handler := api.NewHandler(store, keys, verifier)
	handler.MediaDir = t.TempDir()
	handler.Metrics = metrics.New()
	return handler, store
}

func newTestServer(t *testing.T, handler *api.Handler, cfg Config) *Server {
	t.Helper()
	if cfg.Metrics == nil {
		cfg.Metrics = handler.Metrics
	}
	srv, err := New(handler, cfg)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	return srv
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func uploadBody(t *testing.T, title, category, fileName string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if err := writer.WriteField("title", title); err != nil {
		t.Fatalf("write title: %v", err)
	}
	if err := writer.WriteField("category", category); err != nil {
		t.Fatalf("write category: %v", err)
	}
	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func uploadRequest(t *testing.T, title, category, fileName string, content []byte) *http.Request {
	t.Helper()
	body, contentType := uploadBody(t, title, category, fileName, content)
	req := httptest.NewRequest(http.MethodPost, "/mobile/upload", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-API-Key", testAPIKey)
	return req
}

func TestUploadClearsReadDeadlineThroughChain(t *testing.T) {
	handler, _ := newTestHandler(t)
	var logs bytes.Buffer
	handler.Logger = slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	srv := newTestServer(t, handler, Config{Logger: discardLogger()})

	ts := httptest.NewServer(srv.Handler())
	body, contentType := uploadBody(t, "Deadline Clip", "Video", "clip.mp4", []byte("payload"))
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/mobile/upload", body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-API-Key", testAPIKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload request failed: %v", err)
	}
	respBody, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	ts.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d (body %s)", resp.StatusCode, http.StatusOK, respBody)
	}
	logged := logs.String()
	if strings.Contains(logged, "read deadline not adjustable") {
		t.Fatalf("read deadline override failed behind the middleware chain:\n%s", logged)
	}
	if !strings.Contains(logged, "upload stored") {
		t.Fatalf("expected an upload stored log entry, got:\n%s", logged)
	}
}

func TestServerRoutesUploadThroughChain(t *testing.T) {
	handler, store := newTestHandler(t)
	srv := newTestServer(t, handler, Config{Logger: discardLogger()})

	req := uploadRequest(t, "Chain Clip", "Video", "clip.mp4", []byte("payload"))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusOK, rec.Body.String())
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatal("missing X-Request-Id header")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("missing security headers on API response")
	}
	items, err := store.ListMediaItems(storage.ListFilter{})
	if err != nil {
		t.Fatalf("ListMediaItems error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}
}

func TestServerRoutesContentAndFiles(t *testing.T) {
	handler, _ := newTestHandler(t)
	srv := newTestServer(t, handler, Config{})

	req := uploadRequest(t, "Listed", "Audio", "track.mp3", []byte("notes"))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload status = %d (body %s)", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/content", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var envelope struct {
		Success bool `json:"success"`
		Data    []struct {
			FilePath string `json:"file_path"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if !envelope.Success || len(envelope.Data) != 1 {
		t.Fatalf("unexpected list payload: %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/files/"+envelope.Data[0].FilePath, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("file status = %d", rec.Code)
	}
	if rec.Body.String() != "notes" {
		t.Fatal("served bytes differ from uploaded bytes")
	}
}

func TestServerHealthAndMetricsEndpoints(t *testing.T) {
	handler, _ := newTestHandler(t)
	srv := newTestServer(t, handler, Config{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d (body %s)", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "veritas_http_requests_total") {
		t.Fatalf("metrics body missing request counter: %s", rec.Body.String())
	}
}

func TestServerRejectsInvalidCORSOrigin(t *testing.T) {
	handler, _ := newTestHandler(t)
	if _, err := New(handler, Config{CORS: CORSConfig{AllowedOrigins: []string{"not a url"}}}); err == nil {
		t.Fatal("expected error for malformed origin")
	}
}

func TestAuditLogRecordsSubjectForMutations(t *testing.T) {
	handler, _ := newTestHandler(t)

	var audit bytes.Buffer
	srv := newTestServer(t, handler, Config{
		AuditLogger: slog.New(slog.NewJSONHandler(&audit, nil)),
	})

	req := uploadRequest(t, "Audited", "Video", "a.mp4", []byte("x"))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload status = %d", rec.Code)
	}

	body := strings.NewReader(`{"title":"Renamed"}`)
	patch := httptest.NewRequest(http.MethodPatch, "/content/1", body)
	patch.Header.Set("Authorization", "Bearer good-token")
	patch.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, patch)
	if rec.Code != http.StatusOK {
		t.Fatalf("patch status = %d (body %s)", rec.Code, rec.Body.String())
	}

	lines := strings.Split(strings.TrimSpace(audit.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("audit lines = %d, want 2: %s", len(lines), audit.String())
	}
	var entry struct {
		Msg     string `json:"msg"`
		Method  string `json:"method"`
		Status  int    `json:"status"`
		Subject string `json:"subject"`
	}
	if err := json.Unmarshal([]byte(lines[1]), &entry); err != nil {
		t.Fatalf("decode audit line: %v", err)
	}
	if entry.Msg != "audit" || entry.Method != http.MethodPatch {
		t.Fatalf("unexpected audit entry: %s", lines[1])
	}
	if entry.Subject != "admin-1" {
		t.Fatalf("subject = %q, want admin-1", entry.Subject)
	}
}

func TestAuditLogSkipsReads(t *testing.T) {
	handler, _ := newTestHandler(t)

	var audit bytes.Buffer
	srv := newTestServer(t, handler, Config{
		AuditLogger: slog.New(slog.NewJSONHandler(&audit, nil)),
	})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/content", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	if audit.Len() != 0 {
		t.Fatalf("unexpected audit output for read: %s", audit.String())
	}
}

func TestExtractClientIP(t *testing.T) {
	cases := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{"remote addr only", "198.51.100.10:1234", nil, "198.51.100.10"},
		{"forwarded for", "10.0.0.1:1234", map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.1"}, "203.0.113.5"},
		{"real ip", "10.0.0.1:1234", map[string]string{"X-Real-IP": "203.0.113.9"}, "203.0.113.9"},
		{"no port", "203.0.113.7", nil, "203.0.113.7"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remoteAddr
			for name, value := range tc.headers {
				req.Header.Set(name, value)
			}
			if got := extractClientIP(req); got != tc.want {
				t.Fatalf("extractClientIP = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestShouldAudit(t *testing.T) {
	cases := []struct {
		method string
		path   string
		want   bool
	}{
		{http.MethodPost, "/mobile/upload", true},
		{http.MethodPatch, "/content/1", true},
		{http.MethodDelete, "/content/1", true},
		{http.MethodGet, "/content", false},
		{http.MethodHead, "/files/a.mp4", false},
		{http.MethodPost, "/healthz", false},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		if got := shouldAudit(req); got != tc.want {
			t.Fatalf("shouldAudit(%s %s) = %v, want %v", tc.method, tc.path, got, tc.want)
		}
	}
}
