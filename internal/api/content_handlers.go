package api

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"veritas-media/internal/events"
	"veritas-media/internal/models"
	"veritas-media/internal/observability/logging"
	"veritas-media/internal/storage"
)

type updateMediaItemRequest struct {
	Title    *string `json:"title"`
	Category *string `json:"category"`
}

// Content lists the catalog. Listing is public; filters narrow by exact
// category (the ALL wildcard disables it) and case-insensitive title
// substring.
func (h *Handler) Content(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, r, http.MethodGet)
		return
	}

	filter := storage.ListFilter{
		Category:   strings.TrimSpace(r.URL.Query().Get("category")),
		TitleQuery: strings.TrimSpace(r.URL.Query().Get("q")),
	}
	items, err := h.Store.ListMediaItems(filter)
	if err != nil {
		logging.WithContext(r.Context(), h.logger()).Error("failed to list media items", "error", err)
		WriteFailure(w, http.StatusInternalServerError, "Failed to list media items")
		return
	}

	response := make([]models.MediaItem, 0, len(items))
	for _, item := range items {
		response = append(response, h.withDownloadURL(r, item))
	}
	WriteSuccess(w, http.StatusOK, "Content retrieved", response)
}

// ContentByID handles metadata edits and removals for a single catalog item.
// Both operations require a verified bearer identity.
func (h *Handler) ContentByID(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPatch, http.MethodDelete:
	default:
		writeMethodNotAllowed(w, r, "PATCH, DELETE")
		return
	}

	identity, ok := h.requireBearerIdentity(w, r)
	if !ok {
		return
	}
	r = r.WithContext(ContextWithIdentity(r.Context(), identity))

	rawID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/content/"), "/")
	id, err := strconv.Atoi(rawID)
	if err != nil || id <= 0 {
		WriteFailure(w, http.StatusNotFound, "Media item not found")
		return
	}

	if r.Method == http.MethodPatch {
		h.updateContent(w, r, id)
		return
	}
	h.deleteContent(w, r, id)
}

func (h *Handler) updateContent(w http.ResponseWriter, r *http.Request, id int) {
	var req updateMediaItemRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteFailure(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		WriteFailure(w, http.StatusBadRequest, "Title cannot be empty")
		return
	}
	if req.Category != nil && strings.TrimSpace(*req.Category) == "" {
		WriteFailure(w, http.StatusBadRequest, "Category cannot be empty")
		return
	}
	if req.Title != nil && utf8.RuneCountInString(strings.TrimSpace(*req.Title)) > maxTitleLength {
		WriteFailure(w, http.StatusBadRequest, "Title is too long")
		return
	}
	if req.Category != nil && utf8.RuneCountInString(strings.TrimSpace(*req.Category)) > maxCategoryLength {
		WriteFailure(w, http.StatusBadRequest, "Category is too long")
		return
	}

	item, err := h.Store.UpdateMediaItem(id, storage.MediaItemUpdate{
		Title:    req.Title,
		Category: req.Category,
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			WriteFailure(w, http.StatusNotFound, "Media item not found")
			return
		}
		logging.WithContext(r.Context(), h.logger()).Error("failed to update media item", "item_id", id, "error", err)
		WriteFailure(w, http.StatusInternalServerError, "Failed to update media item")
		return
	}

	h.recorder().ObserveCatalogEvent("updated")
	h.publishEvent(r.Context(), events.EventTypeMediaUpdated, item)
	WriteSuccess(w, http.StatusOK, "Update successful", h.withDownloadURL(r, item))
}

// deleteContent removes the stored file before the catalog row so a failed
// file removal never strands metadata pointing at a file that might still be
// served. A file that is already gone is tolerated.
func (h *Handler) deleteContent(w http.ResponseWriter, r *http.Request, id int) {
	item, err := h.Store.GetMediaItem(id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			WriteFailure(w, http.StatusNotFound, "Media item not found")
			return
		}
		logging.WithContext(r.Context(), h.logger()).Error("failed to load media item", "item_id", id, "error", err)
		WriteFailure(w, http.StatusInternalServerError, "Failed to delete media item")
		return
	}

	fullPath := filepath.Join(h.mediaDir(), filepath.Base(item.FilePath))
	if err := os.Remove(fullPath); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logging.WithContext(r.Context(), h.logger()).Error("failed to remove media file", "item_id", id, "path", item.FilePath, "error", err)
			WriteFailure(w, http.StatusInternalServerError, "Failed to delete media file")
			return
		}
		logging.WithContext(r.Context(), h.logger()).Warn("media file already missing", "item_id", id, "path", item.FilePath)
	}

	if err := h.Store.DeleteMediaItem(id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			WriteFailure(w, http.StatusNotFound, "Media item not found")
			return
		}
		logging.WithContext(r.Context(), h.logger()).Error("failed to delete media item", "item_id", id, "error", err)
		WriteFailure(w, http.StatusInternalServerError, "Failed to delete media item")
		return
	}

	h.recorder().ObserveCatalogEvent("deleted")
	h.publishEvent(r.Context(), events.EventTypeMediaDeleted, item)
	WriteSuccess(w, http.StatusOK, "Deleted "+item.Title, nil)
}
