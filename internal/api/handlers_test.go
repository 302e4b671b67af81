package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"veritas-media/internal/auth"
	"veritas-media/internal/models"
	"veritas-media/internal/observability/metrics"
	"veritas-media/internal/storage"
)

const testAPIKey = "test-api-key"

type stubVerifier struct {
	identity auth.Identity
	err      error
	calls    int
}

func (s *stubVerifier) Verify(ctx context.Context, token string) (auth.Identity, error) {
	s.calls++
	if s.err != nil {
		return auth.Identity{}, s.err
	}
	return s.identity, nil
}

func newTestHandler(t *testing.T) (*Handler, *storage.Storage) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewStorage(filepath.Join(dir, "catalog.json"))
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
	handler := NewHandler(store, keys, verifier)
	handler.MediaDir = t.TempDir()
	handler.Metrics = metrics.New()
	return handler, store
}

type testEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) testEnvelope {
	t.Helper()
	var envelope testEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v (body %q)", err, rec.Body.String())
	}
	return envelope
}

func decodeItem(t *testing.T, data json.RawMessage) models.MediaItem {
	t.Helper()
	var item models.MediaItem
	if err := json.Unmarshal(data, &item); err != nil {
		t.Fatalf("decode media item: %v", err)
	}
	return item
}

func newUploadRequest(t *testing.T, apiKey string, fields map[string]string, fileName string, fileContent []byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			t.Fatalf("write field %s: %v", name, err)
		}
	}
	if fileName != "" {
		part, err := writer.CreateFormFile("file", fileName)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write(fileContent); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/mobile/upload", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if apiKey != "" {
		req.Header.Set(apiKeyHeader, apiKey)
	}
	return req
}

func uploadItem(t *testing.T, handler *Handler, title, category, fileName string, content []byte) models.MediaItem {
	t.Helper()
	req := newUploadRequest(t, testAPIKey, map[string]string{"title": title, "category": category}, fileName, content)
	rec := httptest.NewRecorder()
	handler.MobileUpload(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload status = %d, want %d (body %s)", rec.Code, http.StatusOK, rec.Body.String())
	}
	envelope := decodeEnvelope(t, rec)
	if !envelope.Success {
		t.Fatalf("upload success = false, message %q", envelope.Message)
	}
	return decodeItem(t, envelope.Data)
}
