package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"drawdeck/core"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// memStore implements DocumentStore, CanvasStore and the recent/favorite
// tracker in memory. Each instance owns its own maps.
type memStore struct {
	mu        sync.RWMutex
	documents map[string]core.Document
	canvases  map[string]map[string]*core.CanvasFile // userID -> canvasID -> file
	recents   map[string][]string                    // userID -> canvas IDs, most recent first
	favorites map[string]map[string]bool             // userID -> canvas IDs
}

// NewStore creates a new in-memory store.
func NewStore() *memStore {
	return &memStore{
		documents: make(map[string]core.Document),
		canvases:  make(map[string]map[string]*core.CanvasFile),
		recents:   make(map[string][]string),
		favorites: make(map[string]map[string]bool),
	}
}

// FindID retrieves a shared document by its ID.
func (s *memStore) FindID(ctx context.Context, id string) (*core.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := logrus.WithField("document_id", id)
	if val, ok := s.documents[id]; ok {
		log.Info("Document retrieved successfully")
		return &val, nil
	}
	log.WithField("error", "document not found").Warn("Document with specified ID not found")
	return nil, fmt.Errorf("document with id %s not found", id)
}

// Create stores a new shared document under a fresh ULID.
func (s *memStore) Create(ctx context.Context, document *core.Document) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := ulid.Make().String()
	s.documents[id] = *document
	logrus.WithFields(logrus.Fields{
		"document_id": id,
		"data_length": len(document.Data.Bytes()),
	}).Info("Document created successfully")

	return id, nil
}

// List returns metadata for all canvases owned by a user.
func (s *memStore) List(ctx context.Context, userID string) ([]*core.CanvasFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userCanvases, ok := s.canvases[userID]
	if !ok {
		return []*core.CanvasFile{}, nil
	}

	files := make([]*core.CanvasFile, 0, len(userCanvases))
	for _, file := range userCanvases {
		// List views carry no Data blob.
		files = append(files, &core.CanvasFile{
			ID:        file.ID,
			UserID:    file.UserID,
			Name:      file.Name,
			Thumbnail: file.Thumbnail,
			CreatedAt: file.CreatedAt,
			UpdatedAt: file.UpdatedAt,
		})
	}

	logrus.WithField("user_id", userID).Infof("Listed %d canvases", len(files))
	return files, nil
}

// Get returns a single canvas by its ID, ensuring it belongs to the user.
func (s *memStore) Get(ctx context.Context, userID, id string) (*core.CanvasFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := logrus.WithFields(logrus.Fields{"user_id": userID, "canvas_id": id})

	file, ok := s.canvases[userID][id]
	if !ok {
		log.Warn("Canvas not found for user")
		return nil, fmt.Errorf("canvas with id %s not found for user %s", id, userID)
	}

	log.Info("Canvas retrieved successfully")
	dup := *file
	return &dup, nil
}

// Save creates or updates a canvas for a user.
func (s *memStore) Save(ctx context.Context, file *core.CanvasFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if file.UserID == "" {
		return fmt.Errorf("user id cannot be empty")
	}
	if file.ID == "" {
		return fmt.Errorf("canvas id cannot be empty")
	}

	userCanvases, ok := s.canvases[file.UserID]
	if !ok {
		userCanvases = make(map[string]*core.CanvasFile)
		s.canvases[file.UserID] = userCanvases
	}

	now := time.Now()
	stored := *file
	if existing, exists := userCanvases[file.ID]; exists {
		stored.CreatedAt = existing.CreatedAt
	} else {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	userCanvases[file.ID] = &stored

	logrus.WithFields(logrus.Fields{"user_id": file.UserID, "canvas_id": file.ID}).Info("Canvas saved successfully")
	return nil
}

// Delete removes a canvas, ensuring it belongs to the user.
func (s *memStore) Delete(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := logrus.WithFields(logrus.Fields{"user_id": userID, "canvas_id": id})

	if _, ok := s.canvases[userID][id]; !ok {
		log.Warn("Canvas not found for deletion")
		return fmt.Errorf("canvas with id %s not found for user %s", id, userID)
	}

	delete(s.canvases[userID], id)
	log.Info("Canvas deleted successfully")
	return nil
}

// TouchRecent moves a canvas to the front of the user's recent list,
// deduplicating and truncating to max entries.
func (s *memStore) TouchRecent(ctx context.Context, userID, canvasID string, max int) error {
	if canvasID == "" {
		return fmt.Errorf("canvas id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	recent := []string{canvasID}
	for _, id := range s.recents[userID] {
		if id != canvasID {
			recent = append(recent, id)
		}
	}
	if max > 0 && len(recent) > max {
		recent = recent[:max]
	}
	s.recents[userID] = recent
	return nil
}

// ListRecent returns the user's recently used canvas IDs, most recent first.
func (s *memStore) ListRecent(ctx context.Context, userID string, max int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recent := s.recents[userID]
	if max > 0 && len(recent) > max {
		recent = recent[:max]
	}
	out := make([]string, len(recent))
	copy(out, recent)
	return out, nil
}

// SetFavorite marks a canvas as a favorite for the user.
func (s *memStore) SetFavorite(ctx context.Context, userID, canvasID string) error {
	if canvasID == "" {
		return fmt.Errorf("canvas id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.favorites[userID] == nil {
		s.favorites[userID] = make(map[string]bool)
	}
	s.favorites[userID][canvasID] = true
	return nil
}

// ClearFavorite removes a canvas from the user's favorites.
func (s *memStore) ClearFavorite(ctx context.Context, userID, canvasID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.favorites[userID], canvasID)
	return nil
}

// ListFavorites returns the user's favorited canvas IDs.
func (s *memStore) ListFavorites(ctx context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.favorites[userID]))
	for id := range s.favorites[userID] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}
