package filesystem

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"drawdeck/core"
)

func setupTestStore(t *testing.T) *fsStore {
	t.Helper()
	return NewStore(t.TempDir())
}

func TestNewStore_CreatesDocumentsDir(t *testing.T) {
	basePath := t.TempDir()
	NewStore(basePath)

	if _, err := os.Stat(filepath.Join(basePath, "documents")); os.IsNotExist(err) {
		t.Error("NewStore() did not create documents directory")
	}
}

func TestCreate_And_FindID(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	testData := "test canvas data"
	doc := &core.Document{
		Data: *bytes.NewBufferString(testData),
	}

	id, err := store.Create(ctx, doc)
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if id == "" {
		t.Error("Create() returned empty ID")
	}

	retrieved, err := store.FindID(ctx, id)
	if err != nil {
		t.Fatalf("FindID() failed: %v", err)
	}
	if retrieved.Data.String() != testData {
		t.Errorf("Data mismatch: got %q, want %q", retrieved.Data.String(), testData)
	}
}

func TestFindID_NotFound(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.FindID(ctx, "01ARZ3NDEKTSV4RRFFQ69G5FAV")
	if err == nil {
		t.Error("FindID() should return error for nonexistent ID")
	}
}

func TestFindID_PathTraversal(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	maliciousIDs := []string{
		"../secret",
		"..",
		".",
		"",
		"nested/../../escape",
	}

	for _, id := range maliciousIDs {
		if _, err := store.FindID(ctx, id); err == nil {
			t.Errorf("FindID(%q) should be rejected", id)
		}
	}
}

func TestSave_And_Get(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	file := &core.CanvasFile{
		ID:     "canvas-1",
		UserID: "user-1",
		Name:   "My Canvas",
		Data:   []byte(`{"id":"canvas-1","items":[]}`),
	}

	if err := store.Save(ctx, file); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	retrieved, err := store.Get(ctx, "user-1", "canvas-1")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if retrieved.Name != "My Canvas" {
		t.Errorf("Name mismatch: got %q, want %q", retrieved.Name, "My Canvas")
	}
	if !bytes.Equal(retrieved.Data, file.Data) {
		t.Errorf("Data mismatch: got %q, want %q", retrieved.Data, file.Data)
	}
	if retrieved.UserID != "user-1" {
		t.Errorf("UserID mismatch: got %q, want %q", retrieved.UserID, "user-1")
	}
}

func TestSave_PathTraversal(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		userID string
		id     string
	}{
		{"traversal in user id", "../outside", "canvas-1"},
		{"traversal in canvas id", "user-1", "../../etc/passwd"},
		{"empty user id", "", "canvas-1"},
		{"dot canvas id", "user-1", ".."},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			file := &core.CanvasFile{ID: tc.id, UserID: tc.userID}
			if err := store.Save(ctx, file); err == nil {
				t.Error("Save() should reject identifiers that escape the base path")
			}
		})
	}
}

func TestList(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"canvas-1", "canvas-2"} {
		file := &core.CanvasFile{ID: id, UserID: "user-1", Name: id, Data: []byte("data")}
		if err := store.Save(ctx, file); err != nil {
			t.Fatalf("Save(%q) failed: %v", id, err)
		}
	}

	files, err := store.List(ctx, "user-1")
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(files) != 2 {
		t.Errorf("Canvas count mismatch: got %d, want 2", len(files))
	}
	for _, file := range files {
		if file.Data != nil {
			t.Error("List() should not include the data blob")
		}
	}
}

func TestList_UnknownUser(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	files, err := store.List(ctx, "nobody")
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(files) != 0 {
		t.Errorf("Expected 0 canvases, got %d", len(files))
	}
}

func TestSave_UpdatePreservesCreatedAt(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	file := &core.CanvasFile{ID: "canvas-1", UserID: "user-1", Name: "First", Data: []byte("v1")}
	if err := store.Save(ctx, file); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	first, err := store.Get(ctx, "user-1", "canvas-1")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}

	file.Name = "Second"
	if err := store.Save(ctx, file); err != nil {
		t.Fatalf("Second Save() failed: %v", err)
	}
	second, err := store.Get(ctx, "user-1", "canvas-1")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}

	if second.Name != "Second" {
		t.Errorf("Name not updated: got %q", second.Name)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Error("Update should not change CreatedAt")
	}
}

func TestDelete(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	file := &core.CanvasFile{ID: "canvas-1", UserID: "user-1"}
	if err := store.Save(ctx, file); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	if err := store.Delete(ctx, "user-1", "canvas-1"); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if _, err := store.Get(ctx, "user-1", "canvas-1"); err == nil {
		t.Error("Canvas should be deleted")
	}

	// Deleting a missing file is treated as success.
	if err := store.Delete(ctx, "user-1", "canvas-1"); err != nil {
		t.Errorf("Delete() of missing canvas should succeed: %v", err)
	}
}
