package models

import "time"

// MediaItem is a single entry in the media catalog. The ID is assigned by the
// datastore, increases monotonically, and is never reused after deletion.
// FilePath is the stored object name under the media directory, unique across
// the catalog.
type MediaItem struct {
	ID         int       `json:"id"`
	Title      string    `json:"title"`
	Category   string    `json:"category"`
	FilePath   string    `json:"file_path"`
	UploadedAt time.Time `json:"uploaded_at"`

	// URL is derived from the public base URL on read paths and never
	// persisted.
	URL string `json:"url,omitempty"`
}
