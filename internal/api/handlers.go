// Package api exposes the notebook service and the upload gateway over HTTP.
//
// Every response uses the Envelope shape. Errors are mapped to status codes
// through internal/errs.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/kuitang/notebook/internal/errs"
	"github.com/kuitang/notebook/internal/notebook"
	"github.com/kuitang/notebook/internal/obs"
	"github.com/kuitang/notebook/internal/upload"
)

// healthTimeout bounds the database ping behind GET /api/health.
const healthTimeout = 2 * time.Second

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler wraps the notebook service and upload gateway and provides HTTP handlers
type Handler struct {
	notebook *notebook.Service
	uploads  *upload.Gateway
	db       Pinger
}

// NewHandler creates a new API handler.
func NewHandler(nb *notebook.Service, uploads *upload.Gateway, db Pinger) *Handler {
	return &Handler{notebook: nb, uploads: uploads, db: db}
}

// RegisterRoutes registers all API routes on the given mux
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/folders", h.ListFolders)
	mux.HandleFunc("POST /api/folders", h.CreateFolder)
	mux.HandleFunc("PUT /api/folders/{id}", h.RenameFolder)
	mux.HandleFunc("DELETE /api/folders/{id}", h.DeleteFolder)

	mux.HandleFunc("GET /api/notes", h.ListNotes)
	mux.HandleFunc("GET /api/notes/{id}", h.GetNote)
	mux.HandleFunc("POST /api/notes", h.CreateNote)
	mux.HandleFunc("PUT /api/notes/{id}", h.UpdateNote)
	mux.HandleFunc("DELETE /api/notes/{id}", h.DeleteNote)

	mux.HandleFunc("POST /api/upload", h.UploadImage)

	mux.HandleFunc("GET /api/health", h.Health)

	mux.HandleFunc("/api/", h.NotFound)
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Health handles GET /api/health - reports whether the API and its database are up
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			obs.From(ctx).Error("health check failed", "pkg", "api", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "UNAVAILABLE", Message: "Database unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "OK", Message: "Notebook API is running"})
}

// NotFound handles unmatched /api/ paths.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, errs.New(errs.NotFound, "Route not found"))
}
