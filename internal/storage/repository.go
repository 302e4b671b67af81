package storage

import (
	"context"

	"veritas-media/internal/models"
)

// Repository exposes the catalog operations required by API handlers and the
// migration tooling.
type Repository interface {
	Ping(ctx context.Context) error

	CreateMediaItem(params CreateMediaItemParams) (models.MediaItem, error)
	ListMediaItems(filter ListFilter) ([]models.MediaItem, error)
	GetMediaItem(id int) (models.MediaItem, error)
	UpdateMediaItem(id int, update MediaItemUpdate) (models.MediaItem, error)
	DeleteMediaItem(id int) error
}

var _ Repository = (*Storage)(nil)

var _ Repository = (*postgresRepository)(nil)
