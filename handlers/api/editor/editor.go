package editor

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"drawdeck/core"
	"drawdeck/middleware"
	"drawdeck/sessions"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

type (
	// OpRequest is the wire form of one editing operation. Op selects the
	// operation; the matching field carries its argument. One request is
	// one committed change (one undo step).
	OpRequest struct {
		Op         string          `json:"op"`
		ItemID     string          `json:"itemId,omitempty"`
		Position   *core.Point     `json:"position,omitempty"`
		Size       *core.Size      `json:"size,omitempty"`
		Rotation   *float64        `json:"rotation,omitempty"`
		Opacity    *float64        `json:"opacity,omitempty"`
		ZIndex     *int            `json:"zIndex,omitempty"`
		Background *string         `json:"background,omitempty"`
		Name       *string         `json:"name,omitempty"`
		Item       json.RawMessage `json:"item,omitempty"`
	}

	OpenRequest struct {
		CanvasID string     `json:"canvasId,omitempty"`
		Name     string     `json:"name,omitempty"`
		Size     *core.Size `json:"size,omitempty"`
	}

	SelectRequest struct {
		ItemID string `json:"itemId"`
	}

	ExportRequest struct {
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
	}

	// StateResponse is the read-only view of a session handed to clients.
	StateResponse struct {
		SessionID string       `json:"sessionId"`
		Canvas    *core.Canvas `json:"canvas"`
		CanUndo   bool         `json:"canUndo"`
		CanRedo   bool         `json:"canRedo"`
		Selection string       `json:"selection,omitempty"`
	}
)

func stateResponse(session *sessions.Session) StateResponse {
	var resp StateResponse
	resp.SessionID = session.ID
	session.Do(func(e *core.Editor) error {
		resp.Canvas = e.Snapshot()
		resp.CanUndo = e.CanUndo()
		resp.CanRedo = e.CanRedo()
		resp.Selection, _ = e.Selection()
		return nil
	})
	return resp
}

// opStatus maps core mutation errors onto HTTP statuses.
func opStatus(err error) int {
	switch {
	case errors.Is(err, core.ErrItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrItemLocked),
		errors.Is(err, core.ErrInvalidSize),
		errors.Is(err, core.ErrDuplicateItem):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func rejectOp(w http.ResponseWriter, r *http.Request, err error) {
	render.Status(r, opStatus(err))
	render.JSON(w, r, map[string]string{"error": err.Error()})
}

func getSession(manager *sessions.Manager, w http.ResponseWriter, r *http.Request) *sessions.Session {
	claims, ok := middleware.Claims(r.Context())
	if !ok {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, map[string]string{"error": "User claims not found"})
		return nil
	}

	session, err := manager.Get(chi.URLParam(r, "sessionId"), claims.Subject)
	if err != nil {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, map[string]string{"error": "Session not found"})
		return nil
	}
	return session
}

// HandleOpen starts an editing session on a fresh canvas, or on a stored
// one when canvasId is given.
func HandleOpen(manager *sessions.Manager, store core.CanvasStore, historyDepth int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.Claims(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}

		// An empty body opens a fresh default canvas.
		var req OpenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid request body"})
			return
		}

		var canvas *core.Canvas
		if req.CanvasID != "" {
			file, err := store.Get(r.Context(), claims.Subject, req.CanvasID)
			if err != nil {
				logrus.WithFields(logrus.Fields{
					"error":     err,
					"userID":    claims.Subject,
					"canvas_id": req.CanvasID,
				}).Warn("Failed to load canvas for session")
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, map[string]string{"error": "Canvas not found"})
				return
			}

			canvas = &core.Canvas{}
			if err := canvas.UnmarshalJSON(file.Data); err != nil {
				logrus.WithFields(logrus.Fields{"error": err, "canvas_id": req.CanvasID}).
					Error("Stored canvas does not load")
				render.Status(r, http.StatusUnprocessableEntity)
				render.JSON(w, r, map[string]string{"error": "Stored canvas is not loadable"})
				return
			}
		} else {
			name := req.Name
			if name == "" {
				name = "Untitled"
			}
			size := core.Size{Width: 1920, Height: 1080}
			if req.Size != nil {
				size = *req.Size
			}
			if size.Width <= 0 || size.Height <= 0 {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, map[string]string{"error": "Canvas size must be positive"})
				return
			}
			canvas = core.NewCanvas(ulid.Make().String(), name, size)
		}

		session := manager.Open(claims.Subject, canvas, historyDepth)
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, stateResponse(session))
	}
}

// HandleState returns the current canvas, undo/redo availability and
// selection for a session.
func HandleState(manager *sessions.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := getSession(manager, w, r)
		if session == nil {
			return
		}
		render.JSON(w, r, stateResponse(session))
	}
}

// HandleApply decodes one operation and commits it against the session's
// canvas. Rejected operations leave canvas and history untouched.
func HandleApply(manager *sessions.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := getSession(manager, w, r)
		if session == nil {
			return
		}

		var req OpRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid request body"})
			return
		}

		if err := applyOp(session, &req); err != nil {
			logrus.WithFields(logrus.Fields{
				"error":      err,
				"session_id": session.ID,
				"op":         req.Op,
			}).Warn("Operation rejected")
			rejectOp(w, r, err)
			return
		}

		render.JSON(w, r, stateResponse(session))
	}
}

var errMissingArgument = errors.New("missing operation argument")

func applyOp(session *sessions.Session, req *OpRequest) error {
	return session.Do(func(e *core.Editor) error {
		switch req.Op {
		case "move":
			if req.Position == nil {
				return errMissingArgument
			}
			return e.MoveItem(req.ItemID, *req.Position)
		case "resize":
			if req.Size == nil {
				return errMissingArgument
			}
			return e.ResizeItem(req.ItemID, *req.Size)
		case "rotate":
			if req.Rotation == nil {
				return errMissingArgument
			}
			return e.RotateItem(req.ItemID, *req.Rotation)
		case "opacity":
			if req.Opacity == nil {
				return errMissingArgument
			}
			return e.SetOpacity(req.ItemID, *req.Opacity)
		case "zindex":
			if req.ZIndex == nil {
				return errMissingArgument
			}
			return e.SetZIndex(req.ItemID, *req.ZIndex)
		case "lock":
			return e.ToggleLock(req.ItemID)
		case "add":
			if len(req.Item) == 0 {
				return errMissingArgument
			}
			item, err := core.DecodeItem(req.Item)
			if err != nil {
				return err
			}
			if item.Base().ID == "" {
				item.Base().ID = ulid.Make().String()
			}
			return e.AddItem(item)
		case "remove":
			return e.RemoveItem(req.ItemID)
		case "background":
			if req.Background == nil {
				return errMissingArgument
			}
			e.SetBackground(*req.Background)
			return nil
		case "rename":
			if req.Name == nil {
				return errMissingArgument
			}
			e.SetName(*req.Name)
			return nil
		case "canvasSize":
			if req.Size == nil {
				return errMissingArgument
			}
			return e.ResizeCanvas(*req.Size)
		default:
			return errors.New("unknown operation " + req.Op)
		}
	})
}

// HandleUndo steps the session back one committed change.
func HandleUndo(manager *sessions.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := getSession(manager, w, r)
		if session == nil {
			return
		}

		// Exhausted history is a no-op, never an error.
		session.Do(func(e *core.Editor) error {
			e.Undo()
			return nil
		})
		render.JSON(w, r, stateResponse(session))
	}
}

// HandleRedo steps the session forward one undone change.
func HandleRedo(manager *sessions.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := getSession(manager, w, r)
		if session == nil {
			return
		}

		session.Do(func(e *core.Editor) error {
			e.Redo()
			return nil
		})
		render.JSON(w, r, stateResponse(session))
	}
}

// HandleSelect sets or clears the session's editing target.
func HandleSelect(manager *sessions.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := getSession(manager, w, r)
		if session == nil {
			return
		}

		var req SelectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid request body"})
			return
		}

		err := session.Do(func(e *core.Editor) error {
			if req.ItemID == "" {
				e.ClearSelection()
				return nil
			}
			return e.Select(req.ItemID)
		})
		if err != nil {
			rejectOp(w, r, err)
			return
		}

		render.JSON(w, r, stateResponse(session))
	}
}

// HandleSave persists an isolated snapshot of the session's canvas. A
// failed save leaves the session fully usable.
func HandleSave(manager *sessions.Manager, store core.CanvasStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := getSession(manager, w, r)
		if session == nil {
			return
		}

		var snapshot *core.Canvas
		session.Do(func(e *core.Editor) error {
			snapshot = e.Snapshot()
			return nil
		})

		data, err := json.Marshal(snapshot)
		if err != nil {
			logrus.WithField("error", err).Error("Failed to marshal canvas snapshot")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to serialize canvas"})
			return
		}

		file := &core.CanvasFile{
			ID:     snapshot.ID,
			UserID: session.UserID,
			Name:   snapshot.Name,
			Data:   data,
		}
		if err := store.Save(r.Context(), file); err != nil {
			logrus.WithFields(logrus.Fields{
				"error":      err,
				"session_id": session.ID,
				"canvas_id":  snapshot.ID,
			}).Error("Failed to save canvas")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to save canvas"})
			return
		}

		render.JSON(w, r, map[string]string{"id": snapshot.ID})
	}
}

// HandleShare stores an anonymous snapshot of the session's canvas and
// returns the share identifier.
func HandleShare(manager *sessions.Manager, store core.DocumentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := getSession(manager, w, r)
		if session == nil {
			return
		}

		var snapshot *core.Canvas
		session.Do(func(e *core.Editor) error {
			snapshot = e.Snapshot()
			return nil
		})

		data, err := json.Marshal(snapshot)
		if err != nil {
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to serialize canvas"})
			return
		}

		var document core.Document
		document.Data.Write(data)
		id, err := store.Create(r.Context(), &document)
		if err != nil {
			logrus.WithFields(logrus.Fields{"error": err, "session_id": session.ID}).
				Error("Failed to share canvas")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to share canvas"})
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, map[string]string{"id": id})
	}
}

// HandleExport renders the session's canvas through the injected
// renderer. Without one the endpoint reports 501.
func HandleExport(manager *sessions.Manager, renderer core.Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := getSession(manager, w, r)
		if session == nil {
			return
		}

		if renderer == nil {
			render.Status(r, http.StatusNotImplemented)
			render.JSON(w, r, map[string]string{"error": "No renderer configured"})
			return
		}

		var req ExportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid request body"})
			return
		}

		var snapshot *core.Canvas
		session.Do(func(e *core.Editor) error {
			snapshot = e.Snapshot()
			return nil
		})

		target := core.Size{Width: req.Width, Height: req.Height}
		if target.Width <= 0 || target.Height <= 0 {
			target = snapshot.Size
		}

		surface, err := renderer.Render(r.Context(), snapshot, target)
		if err != nil {
			logrus.WithFields(logrus.Fields{"error": err, "session_id": session.ID}).
				Error("Failed to export canvas")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to export canvas"})
			return
		}

		w.Header().Set("Content-Type", http.DetectContentType(surface))
		w.Write(surface)
	}
}

// HandleClose ends a session without saving.
func HandleClose(manager *sessions.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.Claims(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}

		if err := manager.Close(chi.URLParam(r, "sessionId"), claims.Subject); err != nil {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, map[string]string{"error": "Session not found"})
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
