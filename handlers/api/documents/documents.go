package documents

import (
	"bytes"
	"io"
	"net/http"

	"drawdeck/core"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

type CreateResponse struct {
	ID string `json:"id"`
}

// HandleCreate stores an anonymously shared canvas snapshot and returns
// its identifier.
func HandleCreate(store core.DocumentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			logrus.WithField("error", err).Error("Failed to read request body")
			http.Error(w, "Failed to read request body", http.StatusInternalServerError)
			return
		}
		defer r.Body.Close()

		document := core.Document{Data: *bytes.NewBuffer(data)}
		id, err := store.Create(r.Context(), &document)
		if err != nil {
			logrus.WithField("error", err).Error("Failed to create document")
			http.Error(w, "Failed to create document", http.StatusInternalServerError)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, CreateResponse{ID: id})
	}
}

// HandleGet returns a shared snapshot by its identifier.
func HandleGet(store core.DocumentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		document, err := store.FindID(r.Context(), id)
		if err != nil {
			logrus.WithFields(logrus.Fields{"error": err, "document_id": id}).Warn("Document not found")
			http.Error(w, "Document not found", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write(document.Data.Bytes())
	}
}
