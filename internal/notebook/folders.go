package notebook

import (
	"context"
	"fmt"
	"strings"

	"github.com/kuitang/notebook/internal/obs"
	"github.com/kuitang/notebook/internal/store"
)

// ListFolders returns every folder, most recently updated first.
func (s *Service) ListFolders(ctx context.Context) ([]Folder, error) {
	rows, err := s.store.FindFolders(ctx)
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	folders := make([]Folder, 0, len(rows))
	for i := range rows {
		folders = append(folders, *folderFromStore(&rows[i]))
	}
	return folders, nil
}

// CreateFolder creates a folder with the trimmed name.
func (s *Service) CreateFolder(ctx context.Context, name string) (*Folder, error) {
	name = strings.TrimSpace(name)
	if err := validateFolderName(name); err != nil {
		return nil, err
	}

	f, err := s.store.InsertFolder(ctx, name)
	if err != nil {
		return nil, classify(err, MsgFolderNotFound)
	}

	obs.From(ctx).Info("folder created", "pkg", "notebook", "folder_id", f.ID)
	return folderFromStore(f), nil
}

// RenameFolder changes a folder's name.
func (s *Service) RenameFolder(ctx context.Context, id, name string) (*Folder, error) {
	name = strings.TrimSpace(name)
	if err := validateFolderName(name); err != nil {
		return nil, err
	}

	f, err := s.store.UpdateFolder(ctx, id, store.FolderPatch{Name: name})
	if err != nil {
		return nil, classify(err, MsgFolderNotFound)
	}

	obs.From(ctx).Info("folder renamed", "pkg", "notebook", "folder_id", f.ID)
	return folderFromStore(f), nil
}

// DeleteFolder removes a folder together with all of its notes. Notes go first
// and both steps share one transaction.
func (s *Service) DeleteFolder(ctx context.Context, id string) error {
	var notesDeleted int64
	err := s.store.ExecTx(ctx, func(ctx context.Context) error {
		if _, err := s.store.FindFolder(ctx, id); err != nil {
			return err
		}
		n, err := s.store.DeleteNotes(ctx, store.NoteFilter{FolderID: id})
		if err != nil {
			return err
		}
		notesDeleted = n
		_, err = s.store.DeleteFolder(ctx, id)
		return err
	})
	if err != nil {
		return classify(err, MsgFolderNotFound)
	}

	obs.From(ctx).Info("folder deleted",
		"pkg", "notebook",
		"folder_id", id,
		"notes_deleted", notesDeleted,
	)
	return nil
}
