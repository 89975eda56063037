// Package notebook implements folder and note operations on top of a store.Store.
//
// The service owns input validation, the folder → notes cascade and the
// populated folder reference on every note it returns. Uniqueness and
// referential integrity are left to the store so that concurrent writers are
// arbitrated by the database rather than by check-then-write sequences here.
package notebook

import (
	"errors"

	"github.com/kuitang/notebook/internal/errs"
	"github.com/kuitang/notebook/internal/store"
)

// User-facing messages.
const (
	MsgFolderNotFound      = "Folder not found"
	MsgFolderExists        = "Folder name already exists"
	MsgNoteNotFound        = "Note not found"
	MsgNoteFieldsRequired  = "Folder ID, title, and content are required"
	MsgTitleContentMissing = "Title and content are required"
	MsgFolderDeleted       = "Folder and its notes deleted successfully"
	MsgNoteDeleted         = "Note deleted successfully"
)

// Service handles folder and note operations.
type Service struct {
	store store.Store
}

// NewService creates a notebook service backed by s.
func NewService(s store.Store) *Service {
	return &Service{store: s}
}

// classify maps store sentinels to coded errors. Already-coded errors pass through.
func classify(err error, notFoundMsg string) error {
	if err == nil {
		return nil
	}
	var coded *errs.Error
	if errors.As(err, &coded) {
		return err
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		return errs.Wrap(errs.NotFound, notFoundMsg, err)
	case errors.Is(err, store.ErrConflict):
		return errs.Wrap(errs.AlreadyExists, MsgFolderExists, err)
	case errors.Is(err, store.ErrMissingReference):
		return errs.Wrap(errs.NotFound, MsgFolderNotFound, err)
	default:
		return err
	}
}
