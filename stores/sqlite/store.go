package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"drawdeck/core"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

type sqliteStore struct {
	db *sql.DB
}

// NewStore creates a new SQLite-based store.
func NewStore(dataSourceName string) *sqliteStore {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		log.Fatalf("failed to open sqlite database: %v", err)
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS documents (id TEXT PRIMARY KEY, data BLOB);`,
		`CREATE TABLE IF NOT EXISTS canvases (
			id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			name TEXT,
			thumbnail TEXT,
			data BLOB,
			created_at DATETIME,
			updated_at DATETIME,
			PRIMARY KEY (user_id, id)
		);`,
		`CREATE TABLE IF NOT EXISTS recent_canvases (
			user_id TEXT NOT NULL,
			canvas_id TEXT NOT NULL,
			touched_at INTEGER NOT NULL,
			PRIMARY KEY (user_id, canvas_id)
		);`,
		`CREATE TABLE IF NOT EXISTS favorites (
			user_id TEXT NOT NULL,
			canvas_id TEXT NOT NULL,
			PRIMARY KEY (user_id, canvas_id)
		);`,
	}
	for _, stmt := range stmts {
		if _, err = db.Exec(stmt); err != nil {
			log.Fatalf("failed to initialize sqlite schema: %v", err)
		}
	}

	return &sqliteStore{db}
}

// DocumentStore implementation
func (s *sqliteStore) FindID(ctx context.Context, id string) (*core.Document, error) {
	log := logrus.WithField("document_id", id)
	log.Debug("Retrieving document by ID")
	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT data FROM documents WHERE id = ?", id).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			log.WithField("error", "document not found").Warn("Document with specified ID not found")
			return nil, fmt.Errorf("document with id %s not found", id)
		}
		log.WithError(err).Error("Failed to retrieve document")
		return nil, err
	}
	document := core.Document{
		Data: *bytes.NewBuffer(data),
	}
	log.Info("Document retrieved successfully")
	return &document, nil
}

func (s *sqliteStore) Create(ctx context.Context, document *core.Document) (string, error) {
	id := ulid.Make().String()
	data := document.Data.Bytes()
	log := logrus.WithFields(logrus.Fields{
		"document_id": id,
		"data_length": len(data),
	})

	_, err := s.db.ExecContext(ctx, "INSERT INTO documents (id, data) VALUES (?, ?)", id, data)
	if err != nil {
		log.WithError(err).Error("Failed to create document")
		return "", err
	}
	log.Info("Document created successfully")
	return id, nil
}

// CanvasStore implementation
func (s *sqliteStore) List(ctx context.Context, userID string) ([]*core.CanvasFile, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, thumbnail, created_at, updated_at FROM canvases WHERE user_id = ?", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []*core.CanvasFile
	for rows.Next() {
		var file core.CanvasFile
		file.UserID = userID
		if err := rows.Scan(&file.ID, &file.Name, &file.Thumbnail, &file.CreatedAt, &file.UpdatedAt); err != nil {
			return nil, err
		}
		files = append(files, &file)
	}
	return files, rows.Err()
}

func (s *sqliteStore) Get(ctx context.Context, userID, id string) (*core.CanvasFile, error) {
	var file core.CanvasFile
	file.UserID = userID
	file.ID = id
	err := s.db.QueryRowContext(ctx,
		"SELECT name, thumbnail, data, created_at, updated_at FROM canvases WHERE user_id = ? AND id = ?",
		userID, id).Scan(&file.Name, &file.Thumbnail, &file.Data, &file.CreatedAt, &file.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("canvas with id %s not found for user %s", id, userID)
		}
		return nil, err
	}
	return &file, nil
}

func (s *sqliteStore) Save(ctx context.Context, file *core.CanvasFile) error {
	if file.UserID == "" {
		return fmt.Errorf("user id cannot be empty")
	}
	if file.ID == "" {
		return fmt.Errorf("canvas id cannot be empty")
	}

	now := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO canvases (id, user_id, name, thumbnail, data, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, id) DO UPDATE SET name = excluded.name, thumbnail = excluded.thumbnail,
		 data = excluded.data, updated_at = excluded.updated_at`,
		file.ID, file.UserID, file.Name, file.Thumbnail, file.Data, now, now)
	if err != nil {
		logrus.WithFields(logrus.Fields{"user_id": file.UserID, "canvas_id": file.ID}).
			WithError(err).Error("Failed to save canvas")
		return err
	}
	return nil
}

func (s *sqliteStore) Delete(ctx context.Context, userID, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM canvases WHERE user_id = ? AND id = ?", userID, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("canvas with id %s not found for user %s", id, userID)
	}
	return nil
}

// TouchRecent upserts a recent-use entry and evicts the oldest entries
// beyond max, keeping the list bounded per user.
func (s *sqliteStore) TouchRecent(ctx context.Context, userID, canvasID string, max int) error {
	if canvasID == "" {
		return fmt.Errorf("canvas id is required")
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO recent_canvases (user_id, canvas_id, touched_at) VALUES (?, ?, ?)
		 ON CONFLICT(user_id, canvas_id) DO UPDATE SET touched_at = excluded.touched_at`,
		userID, canvasID, time.Now().UnixMilli())
	if err != nil {
		return err
	}

	if max > 0 {
		_, err = s.db.ExecContext(ctx,
			`DELETE FROM recent_canvases WHERE user_id = ? AND canvas_id NOT IN (
				SELECT canvas_id FROM recent_canvases WHERE user_id = ? ORDER BY touched_at DESC LIMIT ?
			)`, userID, userID, max)
	}
	return err
}

// ListRecent returns the user's recently used canvas IDs, most recent first.
func (s *sqliteStore) ListRecent(ctx context.Context, userID string, max int) ([]string, error) {
	if max <= 0 {
		max = -1 // sqlite: no limit
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT canvas_id FROM recent_canvases WHERE user_id = ? ORDER BY touched_at DESC LIMIT ?",
		userID, max)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recent := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		recent = append(recent, id)
	}
	return recent, rows.Err()
}

// SetFavorite marks a canvas as a favorite for the user.
func (s *sqliteStore) SetFavorite(ctx context.Context, userID, canvasID string) error {
	if canvasID == "" {
		return fmt.Errorf("canvas id is required")
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO favorites (user_id, canvas_id) VALUES (?, ?)", userID, canvasID)
	return err
}

// ClearFavorite removes a canvas from the user's favorites.
func (s *sqliteStore) ClearFavorite(ctx context.Context, userID, canvasID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM favorites WHERE user_id = ? AND canvas_id = ?", userID, canvasID)
	return err
}

// ListFavorites returns the user's favorited canvas IDs.
func (s *sqliteStore) ListFavorites(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT canvas_id FROM favorites WHERE user_id = ? ORDER BY canvas_id", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	favorites := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		favorites = append(favorites, id)
	}
	return favorites, rows.Err()
}
