package filesystem

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"drawdeck/core"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// fsStore keeps shared documents as flat files under basePath/documents and
// user canvases as JSON files under basePath/<userID>/.
type fsStore struct {
	basePath string
}

// NewStore creates a new filesystem-based store.
func NewStore(basePath string) *fsStore {
	if err := os.MkdirAll(filepath.Join(basePath, "documents"), 0755); err != nil {
		log.Fatalf("failed to create base directory: %v", err)
	}
	return &fsStore{basePath: basePath}
}

// userPath maps a user to their canvas directory, refusing IDs that would
// escape the base path.
func (s *fsStore) userPath(userID string) (string, error) {
	return s.securePath(s.basePath, userID)
}

func (s *fsStore) securePath(dir, name string) (string, error) {
	if name == "" || name == "." || name == ".." || name != filepath.Base(name) {
		return "", fmt.Errorf("invalid identifier %q", name)
	}
	full := filepath.Join(dir, name)
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	absFull, err := filepath.Abs(full)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(absFull, absDir+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid path: access denied")
	}
	return full, nil
}

// DocumentStore implementation
func (s *fsStore) FindID(ctx context.Context, id string) (*core.Document, error) {
	log := logrus.WithField("document_id", id)

	filePath, err := s.securePath(filepath.Join(s.basePath, "documents"), id)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.WithField("error", "document not found").Warn("Document with specified ID not found")
			return nil, fmt.Errorf("document with id %s not found", id)
		}
		log.WithError(err).Error("Failed to retrieve document")
		return nil, err
	}

	log.Info("Document retrieved successfully")
	return &core.Document{Data: *bytes.NewBuffer(data)}, nil
}

func (s *fsStore) Create(ctx context.Context, document *core.Document) (string, error) {
	id := ulid.Make().String()
	filePath := filepath.Join(s.basePath, "documents", id)
	log := logrus.WithFields(logrus.Fields{
		"document_id": id,
		"file_path":   filePath,
	})

	if err := os.WriteFile(filePath, document.Data.Bytes(), 0644); err != nil {
		log.WithError(err).Error("Failed to create document")
		return "", err
	}

	log.Info("Document created successfully")
	return id, nil
}

// CanvasStore implementation
func (s *fsStore) List(ctx context.Context, userID string) ([]*core.CanvasFile, error) {
	userPath, err := s.userPath(userID)
	if err != nil {
		return nil, err
	}
	log := logrus.WithFields(logrus.Fields{"user_id": userID, "path": userPath})

	entries, err := os.ReadDir(userPath)
	if err != nil {
		if os.IsNotExist(err) {
			return []*core.CanvasFile{}, nil
		}
		log.WithError(err).Error("Failed to read user directory")
		return nil, err
	}

	files := make([]*core.CanvasFile, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(userPath, entry.Name()))
		if err != nil {
			log.WithError(err).Warnf("Failed to read canvas file %s, skipping", entry.Name())
			continue
		}

		var file core.CanvasFile
		if err := json.Unmarshal(data, &file); err != nil {
			log.WithError(err).Warnf("Failed to unmarshal canvas file %s, skipping", entry.Name())
			continue
		}

		file.UserID = userID
		file.Data = nil // list views carry no blob
		files = append(files, &file)
	}

	log.Infof("Listed %d canvases", len(files))
	return files, nil
}

func (s *fsStore) Get(ctx context.Context, userID, id string) (*core.CanvasFile, error) {
	userPath, err := s.userPath(userID)
	if err != nil {
		return nil, err
	}
	filePath, err := s.securePath(userPath, id)
	if err != nil {
		return nil, err
	}
	log := logrus.WithFields(logrus.Fields{"user_id": userID, "canvas_id": id})

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn("Canvas file not found")
			return nil, fmt.Errorf("canvas with id %s not found for user %s", id, userID)
		}
		log.WithError(err).Error("Failed to read canvas file")
		return nil, err
	}

	var file core.CanvasFile
	if err := json.Unmarshal(data, &file); err != nil {
		log.WithError(err).Error("Failed to unmarshal canvas data")
		return nil, err
	}
	file.UserID = userID

	log.Info("Canvas retrieved successfully")
	return &file, nil
}

func (s *fsStore) Save(ctx context.Context, file *core.CanvasFile) error {
	userPath, err := s.userPath(file.UserID)
	if err != nil {
		return err
	}
	filePath, err := s.securePath(userPath, file.ID)
	if err != nil {
		return err
	}
	log := logrus.WithFields(logrus.Fields{"user_id": file.UserID, "canvas_id": file.ID})

	if err := os.MkdirAll(userPath, 0755); err != nil {
		log.WithError(err).Error("Failed to create user directory")
		return err
	}

	stored := *file
	now := time.Now()
	if existing, err := s.Get(ctx, file.UserID, file.ID); err == nil {
		stored.CreatedAt = existing.CreatedAt
	} else {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now

	data, err := json.Marshal(&stored)
	if err != nil {
		log.WithError(err).Error("Failed to marshal canvas for saving")
		return err
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		log.WithError(err).Error("Failed to write canvas file")
		return err
	}

	log.Info("Canvas saved successfully")
	return nil
}

func (s *fsStore) Delete(ctx context.Context, userID, id string) error {
	userPath, err := s.userPath(userID)
	if err != nil {
		return err
	}
	filePath, err := s.securePath(userPath, id)
	if err != nil {
		return err
	}
	log := logrus.WithFields(logrus.Fields{"user_id": userID, "canvas_id": id})

	if err := os.Remove(filePath); err != nil {
		if os.IsNotExist(err) {
			log.Warn("Canvas file not found for deletion, considered successful.")
			return nil
		}
		log.WithError(err).Error("Failed to delete canvas file")
		return err
	}

	log.Info("Canvas deleted successfully")
	return nil
}
