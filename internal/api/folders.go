package api

import (
	"net/http"

	"github.com/kuitang/notebook/internal/notebook"
)

// FolderRequest is the body of POST and PUT /api/folders.
type FolderRequest struct {
	Name string `json:"name"`
}

// ListFolders handles GET /api/folders - returns every folder, newest update first
func (h *Handler) ListFolders(w http.ResponseWriter, r *http.Request) {
	folders, err := h.notebook.ListFolders(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, folders)
}

// CreateFolder handles POST /api/folders - creates a new folder
func (h *Handler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	var req FolderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	folder, err := h.notebook.CreateFolder(r.Context(), req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, folder)
}

// RenameFolder handles PUT /api/folders/{id} - renames a folder
func (h *Handler) RenameFolder(w http.ResponseWriter, r *http.Request) {
	var req FolderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	folder, err := h.notebook.RenameFolder(r.Context(), r.PathValue("id"), req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, folder)
}

// DeleteFolder handles DELETE /api/folders/{id} - deletes a folder and its notes
func (h *Handler) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	if err := h.notebook.DeleteFolder(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, notebook.MsgFolderDeleted)
}
