package editor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"drawdeck/core"
	"drawdeck/handlers/auth"
	"drawdeck/middleware"
	"drawdeck/sessions"
	"drawdeck/stores/memory"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
)

func testClaims(subject string) *auth.AppClaims {
	return &auth.AppClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: subject},
		Login:            "tester",
	}
}

// authedRequest builds a request carrying claims and the sessionId route
// parameter, the way the middleware and router would.
func authedRequest(method, target, sessionID string, body string, claims *auth.AppClaims) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}

	ctx := context.WithValue(req.Context(), middleware.ClaimsContextKey, claims)
	rctx := chi.NewRouteContext()
	if sessionID != "" {
		rctx.URLParams.Add("sessionId", sessionID)
	}
	ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	return req.WithContext(ctx)
}

func decodeState(t *testing.T, rec *httptest.ResponseRecorder) StateResponse {
	t.Helper()
	var state StateResponse
	if err := json.NewDecoder(rec.Body).Decode(&state); err != nil {
		t.Fatalf("Failed to decode state response: %v", err)
	}
	return state
}

func openSession(t *testing.T, manager *sessions.Manager, store core.CanvasStore, claims *auth.AppClaims) StateResponse {
	t.Helper()
	handler := HandleOpen(manager, store, 0)

	req := authedRequest(http.MethodPost, "/api/v2/sessions", "", "", claims)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("Open failed: status %d, body %s", rec.Code, rec.Body.String())
	}
	return decodeState(t, rec)
}

func applyRaw(t *testing.T, manager *sessions.Manager, sessionID, body string, claims *auth.AppClaims) *httptest.ResponseRecorder {
	t.Helper()
	handler := HandleApply(manager)
	req := authedRequest(http.MethodPost, "/api/v2/sessions/"+sessionID+"/ops", sessionID, body, claims)
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func apply(t *testing.T, manager *sessions.Manager, sessionID, body string, claims *auth.AppClaims) StateResponse {
	t.Helper()
	rec := applyRaw(t, manager, sessionID, body, claims)
	if rec.Code != http.StatusOK {
		t.Fatalf("Apply failed: status %d, body %s", rec.Code, rec.Body.String())
	}
	return decodeState(t, rec)
}

const shapeItem = `{"op":"add","item":{"type":"shape","id":"rect-1","shapeType":"rectangle","position":{"x":10,"y":20},"size":{"width":100,"height":50},"opacity":1}}`

func TestHandleOpen_FreshCanvas(t *testing.T) {
	manager := sessions.NewManager()
	store := memory.NewStore()
	claims := testClaims("user-1")

	state := openSession(t, manager, store, claims)

	if state.SessionID == "" {
		t.Error("Open did not return a session id")
	}
	if state.Canvas == nil {
		t.Fatal("Open did not return a canvas")
	}
	if state.Canvas.Name != "Untitled" {
		t.Errorf("Default name mismatch: got %q, want %q", state.Canvas.Name, "Untitled")
	}
	if state.CanUndo || state.CanRedo {
		t.Error("Fresh session should have no history")
	}
}

func TestHandleOpen_StoredCanvasNotFound(t *testing.T) {
	manager := sessions.NewManager()
	store := memory.NewStore()
	handler := HandleOpen(manager, store, 0)

	req := authedRequest(http.MethodPost, "/api/v2/sessions", "", `{"canvasId":"missing"}`, testClaims("user-1"))
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("Status code mismatch: got %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHandleOpen_InvalidStoredCanvas(t *testing.T) {
	manager := sessions.NewManager()
	store := memory.NewStore()
	ctx := context.Background()

	file := &core.CanvasFile{ID: "broken", UserID: "user-1", Data: []byte(`{"id":"broken"`)}
	if err := store.Save(ctx, file); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	handler := HandleOpen(manager, store, 0)
	req := authedRequest(http.MethodPost, "/api/v2/sessions", "", `{"canvasId":"broken"}`, testClaims("user-1"))
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("Status code mismatch: got %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}
}

func TestEditFlow_AddMoveUndoRedo(t *testing.T) {
	manager := sessions.NewManager()
	store := memory.NewStore()
	claims := testClaims("user-1")

	state := openSession(t, manager, store, claims)
	sid := state.SessionID

	state = apply(t, manager, sid, shapeItem, claims)
	if len(state.Canvas.Items) != 1 {
		t.Fatalf("Item count mismatch: got %d, want 1", len(state.Canvas.Items))
	}
	if state.Selection != "rect-1" {
		t.Errorf("Added item should be selected: got %q", state.Selection)
	}

	state = apply(t, manager, sid, `{"op":"move","itemId":"rect-1","position":{"x":99,"y":88}}`, claims)
	if got := state.Canvas.Items[0].Base().Position; got.X != 99 || got.Y != 88 {
		t.Errorf("Position mismatch after move: got %+v", got)
	}
	if !state.CanUndo {
		t.Error("CanUndo should be true after edits")
	}

	// Undo the move
	undoHandler := HandleUndo(manager)
	req := authedRequest(http.MethodPost, "/api/v2/sessions/"+sid+"/undo", sid, "", claims)
	rec := httptest.NewRecorder()
	undoHandler(rec, req)
	state = decodeState(t, rec)

	if got := state.Canvas.Items[0].Base().Position; got.X != 10 || got.Y != 20 {
		t.Errorf("Position mismatch after undo: got %+v", got)
	}
	if !state.CanRedo {
		t.Error("CanRedo should be true after undo")
	}

	// Redo it
	redoHandler := HandleRedo(manager)
	req = authedRequest(http.MethodPost, "/api/v2/sessions/"+sid+"/redo", sid, "", claims)
	rec = httptest.NewRecorder()
	redoHandler(rec, req)
	state = decodeState(t, rec)

	if got := state.Canvas.Items[0].Base().Position; got.X != 99 || got.Y != 88 {
		t.Errorf("Position mismatch after redo: got %+v", got)
	}
}

func TestHandleUndo_ExhaustedIsNoOp(t *testing.T) {
	manager := sessions.NewManager()
	store := memory.NewStore()
	claims := testClaims("user-1")

	state := openSession(t, manager, store, claims)
	sid := state.SessionID

	handler := HandleUndo(manager)
	req := authedRequest(http.MethodPost, "/api/v2/sessions/"+sid+"/undo", sid, "", claims)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Exhausted undo should still return state: got %d", rec.Code)
	}
}

func TestHandleApply_UnknownItem(t *testing.T) {
	manager := sessions.NewManager()
	store := memory.NewStore()
	claims := testClaims("user-1")

	state := openSession(t, manager, store, claims)

	rec := applyRaw(t, manager, state.SessionID,
		`{"op":"move","itemId":"ghost","position":{"x":1,"y":1}}`, claims)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Status code mismatch: got %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHandleApply_LockedItem(t *testing.T) {
	manager := sessions.NewManager()
	store := memory.NewStore()
	claims := testClaims("user-1")

	state := openSession(t, manager, store, claims)
	sid := state.SessionID

	apply(t, manager, sid, shapeItem, claims)
	apply(t, manager, sid, `{"op":"lock","itemId":"rect-1"}`, claims)

	rec := applyRaw(t, manager, sid, `{"op":"move","itemId":"rect-1","position":{"x":0,"y":0}}`, claims)
	if rec.Code != http.StatusConflict {
		t.Errorf("Status code mismatch: got %d, want %d", rec.Code, http.StatusConflict)
	}

	// Unlock is still allowed on a locked item.
	state = apply(t, manager, sid, `{"op":"lock","itemId":"rect-1"}`, claims)
	if state.Canvas.Items[0].Base().Locked {
		t.Error("Item should be unlocked")
	}
}

func TestHandleApply_RejectedOpLeavesNoHistory(t *testing.T) {
	manager := sessions.NewManager()
	store := memory.NewStore()
	claims := testClaims("user-1")

	state := openSession(t, manager, store, claims)
	sid := state.SessionID

	state = apply(t, manager, sid, shapeItem, claims)

	rec := applyRaw(t, manager, sid, `{"op":"resize","itemId":"rect-1","size":{"width":-5,"height":10}}`, claims)
	if rec.Code != http.StatusConflict {
		t.Fatalf("Status code mismatch: got %d, want %d", rec.Code, http.StatusConflict)
	}

	stateHandler := HandleState(manager)
	req := authedRequest(http.MethodGet, "/api/v2/sessions/"+sid, sid, "", claims)
	recState := httptest.NewRecorder()
	stateHandler(recState, req)
	after := decodeState(t, recState)

	if got := after.Canvas.Items[0].Base().Size; got.Width != 100 || got.Height != 50 {
		t.Errorf("Rejected resize changed the canvas: got %+v", got)
	}
	if after.CanRedo {
		t.Error("Rejected operation should not touch history")
	}
}

func TestHandleApply_BadRequests(t *testing.T) {
	manager := sessions.NewManager()
	store := memory.NewStore()
	claims := testClaims("user-1")

	state := openSession(t, manager, store, claims)
	sid := state.SessionID

	cases := []struct {
		name string
		body string
	}{
		{"unknown op", `{"op":"teleport","itemId":"rect-1"}`},
		{"missing argument", `{"op":"move","itemId":"rect-1"}`},
		{"broken json", `{"op":`},
		{"unknown item kind", `{"op":"add","item":{"type":"hologram","id":"x","size":{"width":1,"height":1}}}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := applyRaw(t, manager, sid, tc.body, claims)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("Status code mismatch: got %d, want %d", rec.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestHandleApply_AddAssignsID(t *testing.T) {
	manager := sessions.NewManager()
	store := memory.NewStore()
	claims := testClaims("user-1")

	state := openSession(t, manager, store, claims)

	body := `{"op":"add","item":{"type":"text","content":"hello","size":{"width":80,"height":20}}}`
	state = apply(t, manager, state.SessionID, body, claims)

	if len(state.Canvas.Items) != 1 {
		t.Fatalf("Item count mismatch: got %d, want 1", len(state.Canvas.Items))
	}
	if state.Canvas.Items[0].Base().ID == "" {
		t.Error("Add should assign an id when none is given")
	}
}

func TestHandleSelect(t *testing.T) {
	manager := sessions.NewManager()
	store := memory.NewStore()
	claims := testClaims("user-1")

	state := openSession(t, manager, store, claims)
	sid := state.SessionID
	apply(t, manager, sid, shapeItem, claims)

	handler := HandleSelect(manager)

	// Selecting an unknown item is rejected.
	req := authedRequest(http.MethodPost, "/api/v2/sessions/"+sid+"/select", sid, `{"itemId":"ghost"}`, claims)
	rec := httptest.NewRecorder()
	handler(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Status code mismatch: got %d, want %d", rec.Code, http.StatusNotFound)
	}

	// Clearing works with an empty item id.
	req = authedRequest(http.MethodPost, "/api/v2/sessions/"+sid+"/select", sid, `{"itemId":""}`, claims)
	rec = httptest.NewRecorder()
	handler(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("Clear selection failed: status %d", rec.Code)
	}
	state = decodeState(t, rec)
	if state.Selection != "" {
		t.Errorf("Selection should be cleared: got %q", state.Selection)
	}
}

func TestSelectionClearedWhenItemRemoved(t *testing.T) {
	manager := sessions.NewManager()
	store := memory.NewStore()
	claims := testClaims("user-1")

	state := openSession(t, manager, store, claims)
	sid := state.SessionID

	state = apply(t, manager, sid, shapeItem, claims)
	if state.Selection != "rect-1" {
		t.Fatalf("Added item should be selected: got %q", state.Selection)
	}

	state = apply(t, manager, sid, `{"op":"remove","itemId":"rect-1"}`, claims)
	if state.Selection != "" {
		t.Errorf("Selection should be cleared when item is removed: got %q", state.Selection)
	}
}

func TestHandleSave_And_Reopen(t *testing.T) {
	manager := sessions.NewManager()
	store := memory.NewStore()
	claims := testClaims("user-1")

	state := openSession(t, manager, store, claims)
	sid := state.SessionID
	state = apply(t, manager, sid, shapeItem, claims)
	canvasID := state.Canvas.ID

	saveHandler := HandleSave(manager, store)
	req := authedRequest(http.MethodPost, "/api/v2/sessions/"+sid+"/save", sid, "", claims)
	rec := httptest.NewRecorder()
	saveHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Save failed: status %d, body %s", rec.Code, rec.Body.String())
	}

	// Reopen the stored canvas in a new session
	openHandler := HandleOpen(manager, store, 0)
	body := fmt.Sprintf(`{"canvasId":%q}`, canvasID)
	req = authedRequest(http.MethodPost, "/api/v2/sessions", "", body, claims)
	rec = httptest.NewRecorder()
	openHandler(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("Reopen failed: status %d, body %s", rec.Code, rec.Body.String())
	}
	reopened := decodeState(t, rec)
	if len(reopened.Canvas.Items) != 1 {
		t.Errorf("Reopened item count mismatch: got %d, want 1", len(reopened.Canvas.Items))
	}
	if reopened.Canvas.ID != canvasID {
		t.Errorf("Canvas id mismatch: got %q, want %q", reopened.Canvas.ID, canvasID)
	}
}

func TestHandleShare(t *testing.T) {
	manager := sessions.NewManager()
	store := memory.NewStore()
	claims := testClaims("user-1")

	state := openSession(t, manager, store, claims)
	sid := state.SessionID
	apply(t, manager, sid, shapeItem, claims)

	handler := HandleShare(manager, store)
	req := authedRequest(http.MethodPost, "/api/v2/sessions/"+sid+"/share", sid, "", claims)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("Share failed: status %d, body %s", rec.Code, rec.Body.String())
	}

	var response struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode share response: %v", err)
	}
	if response.ID == "" {
		t.Fatal("Share returned empty id")
	}

	doc, err := store.FindID(context.Background(), response.ID)
	if err != nil {
		t.Fatalf("Shared document not stored: %v", err)
	}
	var shared core.Canvas
	if err := shared.UnmarshalJSON(doc.Data.Bytes()); err != nil {
		t.Fatalf("Shared snapshot does not load: %v", err)
	}
	if len(shared.Items) != 1 {
		t.Errorf("Shared item count mismatch: got %d, want 1", len(shared.Items))
	}
}

func TestHandleExport_NoRenderer(t *testing.T) {
	manager := sessions.NewManager()
	store := memory.NewStore()
	claims := testClaims("user-1")

	state := openSession(t, manager, store, claims)
	sid := state.SessionID

	handler := HandleExport(manager, nil)
	req := authedRequest(http.MethodPost, "/api/v2/sessions/"+sid+"/export", sid, `{"width":800,"height":600}`, claims)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusNotImplemented {
		t.Errorf("Status code mismatch: got %d, want %d", rec.Code, http.StatusNotImplemented)
	}
}

type stubRenderer struct {
	lastSize core.Size
}

func (s *stubRenderer) Render(ctx context.Context, canvas *core.Canvas, size core.Size) ([]byte, error) {
	s.lastSize = size
	return []byte("\x89PNG\r\n\x1a\nstub"), nil
}

func TestHandleExport_WithRenderer(t *testing.T) {
	manager := sessions.NewManager()
	store := memory.NewStore()
	claims := testClaims("user-1")

	state := openSession(t, manager, store, claims)
	sid := state.SessionID

	renderer := &stubRenderer{}
	handler := HandleExport(manager, renderer)
	req := authedRequest(http.MethodPost, "/api/v2/sessions/"+sid+"/export", sid, `{"width":800,"height":600}`, claims)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Export failed: status %d", rec.Code)
	}
	if renderer.lastSize.Width != 800 || renderer.lastSize.Height != 600 {
		t.Errorf("Render size mismatch: got %+v", renderer.lastSize)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")) {
		t.Error("Export did not return the rendered surface")
	}
}

func TestSessionScopedToOwner(t *testing.T) {
	manager := sessions.NewManager()
	store := memory.NewStore()

	state := openSession(t, manager, store, testClaims("user-1"))
	sid := state.SessionID

	// Another user cannot read or edit the session.
	handler := HandleState(manager)
	req := authedRequest(http.MethodGet, "/api/v2/sessions/"+sid, sid, "", testClaims("user-2"))
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("Status code mismatch: got %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHandleClose(t *testing.T) {
	manager := sessions.NewManager()
	store := memory.NewStore()
	claims := testClaims("user-1")

	state := openSession(t, manager, store, claims)
	sid := state.SessionID

	handler := HandleClose(manager)
	req := authedRequest(http.MethodDelete, "/api/v2/sessions/"+sid, sid, "", claims)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("Status code mismatch: got %d, want %d", rec.Code, http.StatusNoContent)
	}

	// The session is gone afterwards.
	stateHandler := HandleState(manager)
	req = authedRequest(http.MethodGet, "/api/v2/sessions/"+sid, sid, "", claims)
	rec = httptest.NewRecorder()
	stateHandler(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Closed session should be gone: got %d", rec.Code)
	}
}

func TestUnauthenticatedRequest(t *testing.T) {
	manager := sessions.NewManager()
	handler := HandleState(manager)

	req := httptest.NewRequest(http.MethodGet, "/api/v2/sessions/whatever", http.NoBody)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("sessionId", "whatever")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Status code mismatch: got %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}
