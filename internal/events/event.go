package events

import (
	"time"

	"veritas-media/internal/models"
)

// EventType enumerates the catalog changes flowing to downstream consumers.
type EventType string

const (
	// EventTypeMediaCreated is emitted after an upload lands in the catalog.
	EventTypeMediaCreated EventType = "media.created"
	// EventTypeMediaUpdated is emitted after a metadata edit.
	EventTypeMediaUpdated EventType = "media.updated"
	// EventTypeMediaDeleted is emitted after an item and its file are removed.
	EventTypeMediaDeleted EventType = "media.deleted"
)

// Event is the wire representation appended to the media stream.
type Event struct {
	Type       EventType `json:"type"`
	ItemID     int       `json:"itemId"`
	Title      string    `json:"title"`
	Category   string    `json:"category"`
	FilePath   string    `json:"filePath"`
	OccurredAt time.Time `json:"occurredAt"`
}

// NewEvent snapshots the item state into an event of the provided type.
func NewEvent(eventType EventType, item models.MediaItem, occurredAt time.Time) Event {
	return Event{
		Type:       eventType,
		ItemID:     item.ID,
		Title:      item.Title,
		Category:   item.Category,
		FilePath:   item.FilePath,
		OccurredAt: occurredAt,
	}
}
