package api

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestMediaFileServesStoredBytes(t *testing.T) {
	handler, _ := newTestHandler(t)
	content := []byte("stored media bytes")
	item := uploadItem(t, handler, "Clip", "Video", "clip.mp4", content)

	req := httptest.NewRequest(http.MethodGet, "/files/"+item.FilePath, nil)
	rec := httptest.NewRecorder()
	handler.MediaFile(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec.Body.String() != string(content) {
		t.Fatal("served bytes differ from stored bytes")
	}

	head := httptest.NewRequest(http.MethodHead, "/files/"+item.FilePath, nil)
	rec = httptest.NewRecorder()
	handler.MediaFile(rec, head)
	if rec.Code != http.StatusOK {
		t.Fatalf("HEAD status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestMediaFileRejectsTraversal(t *testing.T) {
	handler, _ := newTestHandler(t)

	secret := filepath.Join(t.TempDir(), "secret.txt")
	if err := os.WriteFile(secret, []byte("secret"), 0o600); err != nil {
		t.Fatalf("write secret: %v", err)
	}

	for _, path := range []string{
		"/files/../secret.txt",
		"/files/..%2Fsecret.txt",
		"/files/sub/dir.mp4",
		"/files/.hidden",
		"/files/",
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		handler.MediaFile(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d for %q, want %d", rec.Code, path, http.StatusNotFound)
		}
	}
}

func TestMediaFileUnknownName(t *testing.T) {
	handler, _ := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/files/nope.mp4", nil)
	rec := httptest.NewRecorder()
	handler.MediaFile(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestMediaFileMethodNotAllowed(t *testing.T) {
	handler, _ := newTestHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/files/a.mp4", nil)
	rec := httptest.NewRecorder()
	handler.MediaFile(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}
