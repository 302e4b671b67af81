package api

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"veritas-media/internal/auth"
	"veritas-media/internal/events"
	"veritas-media/internal/models"
	"veritas-media/internal/observability/logging"
	"veritas-media/internal/observability/metrics"
	"veritas-media/internal/storage"
)

const defaultMaxUploadBytes = 512 << 20

type Handler struct {
	Store    storage.Repository
	Keys     *auth.Keyring
	Verifier auth.TokenVerifier
	Events   events.Publisher

	// MediaDir is the directory holding stored media objects. Defaults to
	// "uploads" relative to the working directory.
	MediaDir string
	// PublicBaseURL, when set, anchors the derived download URLs. When empty
	// the URL is reconstructed per request from the forwarded scheme and Host.
	PublicBaseURL  string
	MaxUploadBytes int64
	Logger         *slog.Logger
	Metrics        *metrics.Recorder

	mediaDirOnce sync.Once
	mediaDirPath string
	now          func() time.Time
}

func NewHandler(store storage.Repository, keys *auth.Keyring, verifier auth.TokenVerifier) *Handler {
	return &Handler{
		Store:    store,
		Keys:     keys,
		Verifier: verifier,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func (h *Handler) recorder() *metrics.Recorder {
	if h.Metrics != nil {
		return h.Metrics
	}
	return metrics.Default()
}

func (h *Handler) clock() time.Time {
	if h.now != nil {
		return h.now()
	}
	return time.Now().UTC()
}

func (h *Handler) maxUploadBytes() int64 {
	if h.MaxUploadBytes > 0 {
		return h.MaxUploadBytes
	}
	return defaultMaxUploadBytes
}

// publishEvent emits a catalog event when a publisher is configured. Failures
// are logged and never surfaced to the API client.
func (h *Handler) publishEvent(ctx context.Context, eventType events.EventType, item models.MediaItem) {
	if h.Events == nil {
		return
	}
	event := events.NewEvent(eventType, item, h.clock())
	if err := h.Events.Publish(ctx, event); err != nil {
		logging.WithContext(ctx, h.logger()).Warn("event publish failed",
			"event", string(eventType),
			"item_id", item.ID,
			"error", err)
	}
}

// withDownloadURL returns a copy of the item carrying its derived public URL.
func (h *Handler) withDownloadURL(r *http.Request, item models.MediaItem) models.MediaItem {
	item.URL = h.mediaURL(r, item.FilePath)
	return item
}

func (h *Handler) mediaURL(r *http.Request, storedName string) string {
	if base := strings.TrimSpace(h.PublicBaseURL); base != "" {
		return strings.TrimRight(base, "/") + "/files/" + url.PathEscape(storedName)
	}
	if r == nil {
		return "/files/" + url.PathEscape(storedName)
	}
	host := r.Host
	if host == "" && r.URL != nil {
		host = r.URL.Host
	}
	if host == "" {
		host = "localhost"
	}
	download := url.URL{
		Scheme: requestScheme(r),
		Host:   host,
		Path:   "/files/" + storedName,
	}
	return download.String()
}

func requestScheme(r *http.Request) string {
	if r == nil {
		return "http"
	}
	if proto := strings.TrimSpace(r.Header.Get("X-Forwarded-Proto")); proto != "" {
		parts := strings.Split(proto, ",")
		return strings.TrimSpace(parts[0])
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}
