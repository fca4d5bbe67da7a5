package core

import (
	"bytes"
	"context"
	"time"
)

type (
	// Document is an anonymously shared canvas snapshot: an opaque
	// serialized blob handed outward once editing is done.
	Document struct {
		Data bytes.Buffer
	}

	// DocumentStore is the narrow save contract the editor core depends
	// on: hand in a completed snapshot, get back an opaque identifier.
	DocumentStore interface {
		FindID(ctx context.Context, id string) (*Document, error)
		Create(ctx context.Context, document *Document) (string, error)
	}

	// CanvasFile is the stored form of a user-owned canvas: metadata plus
	// the serialized canvas in Data.
	CanvasFile struct {
		ID        string    `json:"id"`
		UserID    string    `json:"-"` // scoping key, never exposed in responses
		Name      string    `json:"name"`
		Thumbnail string    `json:"thumbnail,omitempty"`
		Data      []byte    `json:"data,omitempty"` // omitted in list views
		CreatedAt time.Time `json:"createdAt"`
		UpdatedAt time.Time `json:"updatedAt"`
	}

	// CanvasStore defines the persistence layer for user-owned canvases.
	// All operations are scoped to a specific user.
	CanvasStore interface {
		// List returns metadata for all canvases owned by a user, without
		// the Data blobs.
		List(ctx context.Context, userID string) ([]*CanvasFile, error)

		// Get returns a single canvas by its ID, ensuring it belongs to
		// the user.
		Get(ctx context.Context, userID, id string) (*CanvasFile, error)

		// Save creates or updates a canvas for a user.
		Save(ctx context.Context, file *CanvasFile) error

		// Delete removes a canvas, ensuring it belongs to the user.
		Delete(ctx context.Context, userID, id string) error
	}

	// Renderer turns a canvas snapshot into a rendered surface (raster
	// image or vector document) at the requested target size. The editing
	// core never renders; it only supplies isolated snapshots.
	Renderer interface {
		Render(ctx context.Context, canvas *Canvas, target Size) ([]byte, error)
	}
)
