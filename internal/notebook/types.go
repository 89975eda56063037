package notebook

import (
	"time"

	"github.com/kuitang/notebook/internal/store"
)

// Folder is a named container of notes.
type Folder struct {
	ID        string    `json:"_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FolderRef is the populated form of a note's folder reference.
type FolderRef struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

// Note is a note as returned to callers, with its folder reference populated.
// URL and ImageURL are omitted when absent.
type Note struct {
	ID        string    `json:"_id"`
	Folder    FolderRef `json:"folderId"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	URL       *string   `json:"url,omitempty"`
	ImageURL  *string   `json:"imageUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CreateNoteParams are the inputs of CreateNote. Empty URL and ImageURL mean absent.
type CreateNoteParams struct {
	FolderID string `json:"folderId"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	URL      string `json:"url,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// UpdateNoteParams are the inputs of UpdateNote. There is deliberately no
// folder field: a note never moves between folders. Empty URL and ImageURL
// leave the stored values unchanged.
type UpdateNoteParams struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	URL      string `json:"url,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
}

func folderFromStore(f *store.Folder) *Folder {
	return &Folder{
		ID:        f.ID,
		Name:      f.Name,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

func noteFromStore(n *store.Note, folderName string) *Note {
	return &Note{
		ID:        n.ID,
		Folder:    FolderRef{ID: n.FolderID, Name: folderName},
		Title:     n.Title,
		Content:   n.Content,
		URL:       n.URL,
		ImageURL:  n.ImageURL,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
}
