package notebook

import (
	"context"
	"fmt"
	"strings"

	"github.com/kuitang/notebook/internal/errs"
	"github.com/kuitang/notebook/internal/obs"
	"github.com/kuitang/notebook/internal/store"
)

// folderNames resolves folder names for one read. It is discarded when the
// read returns so renames are always visible to the next call.
type folderNames struct {
	store store.Store
	names map[string]string
}

func (s *Service) newFolderNames() *folderNames {
	return &folderNames{store: s.store, names: make(map[string]string)}
}

func (r *folderNames) lookup(ctx context.Context, id string) (string, error) {
	if name, ok := r.names[id]; ok {
		return name, nil
	}
	f, err := r.store.FindFolder(ctx, id)
	if err != nil {
		return "", err
	}
	r.names[id] = f.Name
	return f.Name, nil
}

// ListNotes returns notes, most recently updated first. A non-empty folderID
// restricts the result to that folder.
func (s *Service) ListNotes(ctx context.Context, folderID string) ([]Note, error) {
	var notes []Note
	err := s.store.ExecTx(ctx, func(ctx context.Context) error {
		rows, err := s.store.FindNotes(ctx, store.NoteFilter{FolderID: strings.TrimSpace(folderID)})
		if err != nil {
			return fmt.Errorf("list notes: %w", err)
		}

		names := s.newFolderNames()
		notes = make([]Note, 0, len(rows))
		for i := range rows {
			name, err := names.lookup(ctx, rows[i].FolderID)
			if err != nil {
				return fmt.Errorf("populate folder %s: %w", rows[i].FolderID, err)
			}
			notes = append(notes, *noteFromStore(&rows[i], name))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return notes, nil
}

// GetNote returns a single note with its folder populated.
func (s *Service) GetNote(ctx context.Context, id string) (*Note, error) {
	var note *Note
	err := s.store.ExecTx(ctx, func(ctx context.Context) error {
		n, err := s.store.FindNote(ctx, id)
		if err != nil {
			return classify(err, MsgNoteNotFound)
		}
		note, err = s.populate(ctx, n)
		return err
	})
	if err != nil {
		return nil, err
	}
	return note, nil
}

// CreateNote creates a note in an existing folder.
func (s *Service) CreateNote(ctx context.Context, params CreateNoteParams) (*Note, error) {
	folderID := strings.TrimSpace(params.FolderID)
	fields := noteFields{
		Title:   strings.TrimSpace(params.Title),
		Content: strings.TrimSpace(params.Content),
		URL:     strings.TrimSpace(params.URL),
	}
	if folderID == "" || fields.Title == "" || fields.Content == "" {
		return nil, errs.New(errs.InvalidArgument, MsgNoteFieldsRequired)
	}
	if err := fields.validate(); err != nil {
		return nil, err
	}

	var note *Note
	err := s.store.ExecTx(ctx, func(ctx context.Context) error {
		folder, err := s.store.FindFolder(ctx, folderID)
		if err != nil {
			return classify(err, MsgFolderNotFound)
		}
		n, err := s.store.InsertNote(ctx, store.Note{
			FolderID: folder.ID,
			Title:    fields.Title,
			Content:  fields.Content,
			URL:      optional(fields.URL),
			ImageURL: optional(params.ImageURL),
		})
		if err != nil {
			return classify(err, MsgFolderNotFound)
		}
		note = noteFromStore(n, folder.Name)
		return nil
	})
	if err != nil {
		return nil, err
	}

	obs.From(ctx).Info("note created", "pkg", "notebook", "note_id", note.ID, "folder_id", folderID)
	return note, nil
}

// UpdateNote replaces a note's title and content and, when supplied, its url
// and image url. The owning folder never changes.
func (s *Service) UpdateNote(ctx context.Context, id string, params UpdateNoteParams) (*Note, error) {
	fields := noteFields{
		Title:   strings.TrimSpace(params.Title),
		Content: strings.TrimSpace(params.Content),
		URL:     strings.TrimSpace(params.URL),
	}
	if fields.Title == "" || fields.Content == "" {
		return nil, errs.New(errs.InvalidArgument, MsgTitleContentMissing)
	}
	if err := fields.validate(); err != nil {
		return nil, err
	}

	var note *Note
	err := s.store.ExecTx(ctx, func(ctx context.Context) error {
		n, err := s.store.UpdateNote(ctx, id, store.NotePatch{
			Title:    fields.Title,
			Content:  fields.Content,
			URL:      optional(fields.URL),
			ImageURL: optional(params.ImageURL),
		})
		if err != nil {
			return classify(err, MsgNoteNotFound)
		}
		note, err = s.populate(ctx, n)
		return err
	})
	if err != nil {
		return nil, err
	}

	obs.From(ctx).Info("note updated", "pkg", "notebook", "note_id", id)
	return note, nil
}

// DeleteNote removes a single note.
func (s *Service) DeleteNote(ctx context.Context, id string) error {
	if _, err := s.store.DeleteNote(ctx, id); err != nil {
		return classify(err, MsgNoteNotFound)
	}
	obs.From(ctx).Info("note deleted", "pkg", "notebook", "note_id", id)
	return nil
}

func (s *Service) populate(ctx context.Context, n *store.Note) (*Note, error) {
	name, err := s.newFolderNames().lookup(ctx, n.FolderID)
	if err != nil {
		return nil, fmt.Errorf("populate folder %s: %w", n.FolderID, err)
	}
	return noteFromStore(n, name), nil
}
