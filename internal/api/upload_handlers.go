package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"veritas-media/internal/events"
	"veritas-media/internal/observability/logging"
	"veritas-media/internal/storage"
)

const (
	maxTitleLength    = 255
	maxCategoryLength = 50

	// storedNameAttempts bounds the rename retry loop when a generated name
	// already exists on disk.
	storedNameAttempts = 5
)

// Function seams for fault injection in tests.
var (
	renameStoredMedia = os.Rename
	syncUploadedFile  = func(f *os.File) error { return f.Sync() }
)

type uploadedFile struct {
	tempPath     string
	size         int64
	originalName string
}

func (u *uploadedFile) discard() {
	if u != nil && u.tempPath != "" {
		_ = os.Remove(u.tempPath)
		u.tempPath = ""
	}
}

// MobileUpload accepts the multipart media submission from mobile builds. The
// file bytes are made durable before the catalog row is inserted, and neither
// side survives when the other fails.
func (h *Handler) MobileUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !h.requireAPIKey(w, r) {
		return
	}

	recorder := h.recorder()
	recorder.UploadStarted()

	// Large uploads outlive the server-wide read timeout, so clear the
	// deadline for the duration of this request.
	if err := http.NewResponseController(w).SetReadDeadline(time.Time{}); err != nil {
		logging.WithContext(r.Context(), h.logger()).Debug("read deadline not adjustable", "error", err)
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes())

	title, category, media, ok := h.readUploadForm(w, r)
	if media != nil {
		defer media.discard()
	}
	if !ok {
		recorder.UploadRejected()
		return
	}

	storedName, err := h.persistUploadedFile(media)
	if err != nil {
		recorder.UploadFailed()
		logging.WithContext(r.Context(), h.logger()).Error("failed to store upload", "error", err)
		WriteFailure(w, http.StatusInternalServerError, "Failed to store uploaded file")
		return
	}

	item, err := h.Store.CreateMediaItem(storage.CreateMediaItemParams{
		Title:    title,
		Category: category,
		FilePath: storedName,
	})
	if err != nil {
		// The catalog row never landed, so the stored bytes must not
		// survive either.
		_ = os.Remove(filepath.Join(h.mediaDir(), storedName))
		recorder.UploadFailed()
		logging.WithContext(r.Context(), h.logger()).Error("failed to record upload", "stored_name", storedName, "error", err)
		WriteFailure(w, http.StatusInternalServerError, "Failed to save media item")
		return
	}

	recorder.UploadStored(media.size)
	recorder.ObserveCatalogEvent("created")
	ctx := logging.ContextWithUploadID(r.Context(), storedName)
	logging.WithContext(ctx, h.logger()).Info("upload stored",
		"item_id", item.ID,
		"category", item.Category,
		"bytes", media.size)
	h.publishEvent(ctx, events.EventTypeMediaCreated, item)

	WriteSuccess(w, http.StatusOK, "Upload successful", h.withDownloadURL(r, item))
}

// readUploadForm streams the multipart body, parking the file part in a temp
// file and validating the metadata fields. On failure it writes the error
// envelope and returns ok=false; the caller owns temp-file cleanup through
// the returned uploadedFile.
func (h *Handler) readUploadForm(w http.ResponseWriter, r *http.Request) (title, category string, media *uploadedFile, ok bool) {
	reader, err := r.MultipartReader()
	if err != nil {
		WriteFailure(w, http.StatusBadRequest, "Multipart form data is required")
		return "", "", nil, false
	}

	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			h.writeUploadReadError(w, err)
			return "", "", media, false
		}
		name := part.FormName()
		if name == "" {
			_ = part.Close()
			continue
		}
		if name == "file" {
			if media != nil {
				_ = part.Close()
				continue
			}
			saved, saveErr := h.saveMultipartFile(part)
			if saveErr != nil {
				h.writeUploadReadError(w, saveErr)
				return "", "", media, false
			}
			media = saved
			continue
		}
		payload, readErr := io.ReadAll(part)
		_ = part.Close()
		if readErr != nil {
			h.writeUploadReadError(w, readErr)
			return "", "", media, false
		}
		value := strings.TrimSpace(string(payload))
		switch name {
		case "title":
			title = value
		case "category":
			category = value
		}
	}

	switch {
	case title == "":
		WriteFailure(w, http.StatusBadRequest, "Title is required")
	case utf8.RuneCountInString(title) > maxTitleLength:
		WriteFailure(w, http.StatusBadRequest, fmt.Sprintf("Title must be at most %d characters", maxTitleLength))
	case category == "":
		WriteFailure(w, http.StatusBadRequest, "Category is required")
	case utf8.RuneCountInString(category) > maxCategoryLength:
		WriteFailure(w, http.StatusBadRequest, fmt.Sprintf("Category must be at most %d characters", maxCategoryLength))
	case media == nil:
		WriteFailure(w, http.StatusBadRequest, "File is required")
	default:
		return title, category, media, true
	}
	return "", "", media, false
}

func (h *Handler) writeUploadReadError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		WriteFailure(w, http.StatusBadRequest, fmt.Sprintf("Upload exceeds the %d byte limit", tooLarge.Limit))
		return
	}
	WriteFailure(w, http.StatusBadRequest, "Failed to read multipart form data")
}

// saveMultipartFile streams the file part into a temp file inside the media
// directory so the final rename stays on one filesystem. The bytes are synced
// before the handle closes.
func (h *Handler) saveMultipartFile(part *multipart.Part) (*uploadedFile, error) {
	defer part.Close()
	tmp, err := os.CreateTemp(h.mediaDir(), "pending-upload-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	cleanup := true
	defer func() {
		_ = tmp.Close()
		if cleanup {
			_ = os.Remove(tmp.Name())
		}
	}()

	written, err := io.Copy(tmp, part)
	if err != nil {
		return nil, fmt.Errorf("save upload: %w", err)
	}
	if err := syncUploadedFile(tmp); err != nil {
		return nil, fmt.Errorf("flush upload: %w", err)
	}
	cleanup = false
	return &uploadedFile{
		tempPath:     tmp.Name(),
		size:         written,
		originalName: part.FileName(),
	}, nil
}

// persistUploadedFile moves the temp file under a generated storage name. The
// name never derives from client input, which rules out collisions with other
// uploads and path injection in one stroke.
func (h *Handler) persistUploadedFile(media *uploadedFile) (string, error) {
	if media == nil || media.tempPath == "" {
		return "", fmt.Errorf("media payload missing")
	}
	ext := strings.ToLower(filepath.Ext(media.originalName))
	if ext == "" {
		ext = ".bin"
	}
	dir := h.mediaDir()
	for attempt := 0; attempt < storedNameAttempts; attempt++ {
		storedName := uuid.NewString() + ext
		finalPath := filepath.Join(dir, storedName)
		if _, err := os.Lstat(finalPath); err == nil {
			continue
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("probe storage name: %w", err)
		}
		if err := renameStoredMedia(media.tempPath, finalPath); err != nil {
			return "", fmt.Errorf("store upload: %w", err)
		}
		media.tempPath = ""
		return storedName, nil
	}
	return "", fmt.Errorf("could not allocate a storage name after %d attempts", storedNameAttempts)
}

func (h *Handler) mediaDir() string {
	h.mediaDirOnce.Do(func() {
		dir := strings.TrimSpace(h.MediaDir)
		if dir == "" {
			dir = "uploads"
		}
		dir = filepath.Clean(dir)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fallback := filepath.Join(os.TempDir(), "veritas-media")
			_ = os.MkdirAll(fallback, 0o755)
			dir = fallback
		}
		h.mediaDirPath = dir
	})
	return h.mediaDirPath
}
