package recent

import (
	"context"
	"net/http"

	"drawdeck/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

// DefaultMaxEntries bounds the recent list when no explicit maximum is
// configured.
const DefaultMaxEntries = 10

// TrackerStore persists recently used and favorited canvas identifiers.
// Stores that cannot track usage simply don't implement it; the routes are
// registered only when the active store does.
type TrackerStore interface {
	TouchRecent(ctx context.Context, userID, canvasID string, max int) error
	ListRecent(ctx context.Context, userID string, max int) ([]string, error)
	SetFavorite(ctx context.Context, userID, canvasID string) error
	ClearFavorite(ctx context.Context, userID, canvasID string) error
	ListFavorites(ctx context.Context, userID string) ([]string, error)
}

// HandleTouch records a canvas as most recently used; re-touching moves it
// to the front and the list stays bounded.
func HandleTouch(store TrackerStore, max int) http.HandlerFunc {
	if max <= 0 {
		max = DefaultMaxEntries
	}
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.Claims(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}

		canvasID := chi.URLParam(r, "id")
		if err := store.TouchRecent(r.Context(), claims.Subject, canvasID, max); err != nil {
			logrus.WithFields(logrus.Fields{
				"error":     err,
				"userID":    claims.Subject,
				"canvas_id": canvasID,
			}).Error("Failed to record recent canvas")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to record recent canvas"})
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleListRecent returns the caller's recently used canvas IDs, most
// recent first.
func HandleListRecent(store TrackerStore, max int) http.HandlerFunc {
	if max <= 0 {
		max = DefaultMaxEntries
	}
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.Claims(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}

		recent, err := store.ListRecent(r.Context(), claims.Subject, max)
		if err != nil {
			logrus.WithFields(logrus.Fields{"error": err, "userID": claims.Subject}).
				Error("Failed to list recent canvases")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to list recent canvases"})
			return
		}

		if recent == nil {
			recent = []string{}
		}
		render.JSON(w, r, recent)
	}
}

// HandleFavorite marks a canvas as a favorite.
func HandleFavorite(store TrackerStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.Claims(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}

		canvasID := chi.URLParam(r, "id")
		if err := store.SetFavorite(r.Context(), claims.Subject, canvasID); err != nil {
			logrus.WithFields(logrus.Fields{
				"error":     err,
				"userID":    claims.Subject,
				"canvas_id": canvasID,
			}).Error("Failed to set favorite")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to set favorite"})
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleUnfavorite removes a canvas from the caller's favorites.
func HandleUnfavorite(store TrackerStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.Claims(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}

		canvasID := chi.URLParam(r, "id")
		if err := store.ClearFavorite(r.Context(), claims.Subject, canvasID); err != nil {
			logrus.WithFields(logrus.Fields{
				"error":     err,
				"userID":    claims.Subject,
				"canvas_id": canvasID,
			}).Error("Failed to clear favorite")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to clear favorite"})
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleListFavorites returns the caller's favorited canvas IDs.
func HandleListFavorites(store TrackerStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.Claims(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}

		favorites, err := store.ListFavorites(r.Context(), claims.Subject)
		if err != nil {
			logrus.WithFields(logrus.Fields{"error": err, "userID": claims.Subject}).
				Error("Failed to list favorites")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to list favorites"})
			return
		}

		if favorites == nil {
			favorites = []string{}
		}
		render.JSON(w, r, favorites)
	}
}
