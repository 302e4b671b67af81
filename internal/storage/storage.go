package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"veritas-media/internal/models"

	"golang.org/x/text/cases"
)

var (
	// ErrNotFound reports a catalog lookup for an ID that does not exist.
	ErrNotFound = errors.New("media item not found")
	// ErrDuplicatePath reports an insert whose stored file name is already
	// claimed by another catalog entry.
	ErrDuplicatePath = errors.New("file path already in catalog")
)

// CategoryAll is the wildcard accepted by list requests to disable category
// filtering.
const CategoryAll = "ALL"

// CreateMediaItemParams captures the attributes persisted for a new catalog
// entry. FilePath is the stored object name, not the client filename.
type CreateMediaItemParams struct {
	Title    string
	Category string
	FilePath string
}

// MediaItemUpdate describes a partial update. Nil fields keep their current
// values; present-but-blank fields are rejected.
type MediaItemUpdate struct {
	Title    *string
	Category *string
}

// ListFilter narrows ListMediaItems results. An empty Category (or the
// CategoryAll wildcard) disables category filtering; TitleQuery matches
// case-insensitively as a substring.
type ListFilter struct {
	Category   string
	TitleQuery string
}

type dataset struct {
	Items  map[int]models.MediaItem `json:"items"`
	NextID int                      `json:"nextId"`
}

type Storage struct {
	mu       sync.RWMutex
	filePath string
	data     dataset
	now      func() time.Time
	// persistOverride allows tests to intercept persist operations.
	persistOverride func(dataset) error
}

func newDataset() dataset {
	return dataset{
		Items:  make(map[int]models.MediaItem),
		NextID: 1,
	}
}

func (s *Storage) ensureDatasetInitializedLocked() {
	if s.data.Items == nil {
		s.data.Items = make(map[int]models.MediaItem)
	}
	if s.data.NextID <= 0 {
		s.data.NextID = 1
	}
	// Catalogs written before the counter existed resume above the highest
	// stored ID so deleted IDs are never handed out again.
	for id := range s.data.Items {
		if id >= s.data.NextID {
			s.data.NextID = id + 1
		}
	}
}

func NewStorage(path string, opts ...Option) (*Storage, error) {
	store := &Storage{
		filePath: path,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt.applyJSON(store)
		}
	}
	if store.now == nil {
		store.now = func() time.Time { return time.Now().UTC() }
	}
	if err := store.load(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *Storage) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.filePath), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	file, err := os.Open(s.filePath)
	if errors.Is(err, os.ErrNotExist) {
		s.data = newDataset()
		return nil
	} else if err != nil {
		return fmt.Errorf("open catalog file: %w", err)
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	if err := decoder.Decode(&s.data); err != nil {
		if errors.Is(err, io.EOF) {
			s.data = newDataset()
			return nil
		}
		return fmt.Errorf("decode catalog file: %w", err)
	}

	s.ensureDatasetInitializedLocked()

	return nil
}

func (s *Storage) persist() error {
	return s.persistDataset(s.data)
}

func (s *Storage) persistDataset(data dataset) error {
	if s.persistOverride != nil {
		if err := s.persistOverride(data); err != nil {
			return err
		}
	}

	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, "catalog-*.json")
	if err != nil {
		return fmt.Errorf("create temp catalog file: %w", err)
	}
	tmpPath := tmpFile.Name()
	success := false
	defer func() {
		if !success {
			_ = tmpFile.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	encoder := json.NewEncoder(tmpFile)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encode catalog file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("flush catalog file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp catalog file: %w", err)
	}

	if err := os.Rename(tmpPath, s.filePath); err != nil {
		return fmt.Errorf("replace catalog file: %w", err)
	}
	success = true
	return nil
}

func cloneDataset(src dataset) dataset {
	clone := dataset{NextID: src.NextID}
	if src.Items != nil {
		clone.Items = make(map[int]models.MediaItem, len(src.Items))
		for id, item := range src.Items {
			clone.Items[id] = item
		}
	}
	return clone
}

// Ping reports whether the backing file's directory is still reachable.
func (s *Storage) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	path := s.filePath
	s.mu.RUnlock()
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		return fmt.Errorf("catalog directory unavailable: %w", err)
	}
	return nil
}

func (s *Storage) CreateMediaItem(params CreateMediaItemParams) (models.MediaItem, error) {
	title := strings.TrimSpace(params.Title)
	category := strings.TrimSpace(params.Category)
	storedPath := strings.TrimSpace(params.FilePath)
	if title == "" {
		return models.MediaItem{}, fmt.Errorf("title is required")
	}
	if category == "" {
		return models.MediaItem{}, fmt.Errorf("category is required")
	}
	if storedPath == "" {
		return models.MediaItem{}, fmt.Errorf("file path is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensureDatasetInitializedLocked()

	for _, item := range s.data.Items {
		if item.FilePath == storedPath {
			return models.MediaItem{}, fmt.Errorf("%w: %s", ErrDuplicatePath, storedPath)
		}
	}

	id := s.data.NextID
	item := models.MediaItem{
		ID:         id,
		Title:      title,
		Category:   category,
		FilePath:   storedPath,
		UploadedAt: s.now(),
	}

	s.data.Items[id] = item
	s.data.NextID = id + 1
	if err := s.persist(); err != nil {
		delete(s.data.Items, id)
		s.data.NextID = id
		return models.MediaItem{}, err
	}

	return item, nil
}

func (s *Storage) ListMediaItems(filter ListFilter) ([]models.MediaItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	category := strings.TrimSpace(filter.Category)
	anyCategory := category == "" || strings.EqualFold(category, CategoryAll)
	query := strings.TrimSpace(filter.TitleQuery)

	items := make([]models.MediaItem, 0, len(s.data.Items))
	for _, item := range s.data.Items {
		if !anyCategory && item.Category != category {
			continue
		}
		if query != "" && !containsFold(item.Title, query) {
			continue
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].ID < items[j].ID
	})
	return items, nil
}

func (s *Storage) GetMediaItem(id int) (models.MediaItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.data.Items[id]
	if !ok {
		return models.MediaItem{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return item, nil
}

func (s *Storage) UpdateMediaItem(id int, update MediaItemUpdate) (models.MediaItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.data.Items[id]
	if !ok {
		return models.MediaItem{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}

	original := item

	if update.Title != nil {
		trimmed := strings.TrimSpace(*update.Title)
		if trimmed == "" {
			return models.MediaItem{}, fmt.Errorf("title cannot be empty")
		}
		item.Title = trimmed
	}
	if update.Category != nil {
		trimmed := strings.TrimSpace(*update.Category)
		if trimmed == "" {
			return models.MediaItem{}, fmt.Errorf("category cannot be empty")
		}
		item.Category = trimmed
	}

	s.data.Items[id] = item
	if err := s.persist(); err != nil {
		s.data.Items[id] = original
		return models.MediaItem{}, err
	}
	return item, nil
}

func (s *Storage) DeleteMediaItem(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.data.Items[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}

	delete(s.data.Items, id)
	if err := s.persist(); err != nil {
		s.data.Items[id] = item
		return err
	}
	return nil
}

// containsFold reports whether needle occurs in haystack under Unicode case
// folding, the in-memory analogue of the Postgres driver's ILIKE match.
func containsFold(haystack, needle string) bool {
	fold := cases.Fold()
	return strings.Contains(fold.String(haystack), fold.String(needle))
}
