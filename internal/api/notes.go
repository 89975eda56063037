package api

import (
	"net/http"

	"github.com/kuitang/notebook/internal/notebook"
	"github.com/kuitang/notebook/internal/urlutil"
)

// ListNotes handles GET /api/notes - returns notes, optionally filtered by ?folderId=
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := h.notebook.ListNotes(r.Context(), r.URL.Query().Get("folderId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, notes)
}

// GetNote handles GET /api/notes/{id} - returns a single note
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	note, err := h.notebook.GetNote(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, note)
}

// CreateNote handles POST /api/notes - creates a new note
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var params notebook.CreateNoteParams
	if err := decodeJSON(w, r, &params); err != nil {
		writeError(w, r, err)
		return
	}

	note, err := h.notebook.CreateNote(r.Context(), params)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Location", urlutil.BuildAbsolute(urlutil.OriginFromRequest(r, ""), "/api/notes/"+note.ID))
	writeData(w, http.StatusCreated, note)
}

// UpdateNote handles PUT /api/notes/{id} - updates a note. A folderId in the
// body is ignored.
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	var params notebook.UpdateNoteParams
	if err := decodeJSON(w, r, &params); err != nil {
		writeError(w, r, err)
		return
	}

	note, err := h.notebook.UpdateNote(r.Context(), r.PathValue("id"), params)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, note)
}

// DeleteNote handles DELETE /api/notes/{id} - deletes a note
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	if err := h.notebook.DeleteNote(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, notebook.MsgNoteDeleted)
}
