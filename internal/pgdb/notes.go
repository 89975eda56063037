package pgdb

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kuitang/notebook/internal/store"
)

const noteColumns = `id::text, folder_id::text, title, content, url, image_url, created_at, updated_at`

func scanNote(row pgx.Row) (*store.Note, error) {
	var n store.Note
	if err := row.Scan(&n.ID, &n.FolderID, &n.Title, &n.Content, &n.URL, &n.ImageURL, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return nil, err
	}
	n.CreatedAt = n.CreatedAt.UTC()
	n.UpdatedAt = n.UpdatedAt.UTC()
	return &n, nil
}

// InsertNote stores note under a fresh id. ID and timestamps on the argument
// are ignored. A folder id that does not exist fails with store.ErrMissingReference.
func (s *Store) InsertNote(ctx context.Context, note store.Note) (*store.Note, error) {
	if !validID(note.FolderID) {
		return nil, fmt.Errorf("folder %s: %w", note.FolderID, store.ErrMissingReference)
	}
	n, err := scanNote(s.getExecutor(ctx).QueryRow(ctx, `
		INSERT INTO notes (id, folder_id, title, content, url, image_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING `+noteColumns,
		uuid.New().String(), note.FolderID, note.Title, note.Content, note.URL, note.ImageURL, s.now(),
	))
	if err != nil {
		if isForeignKeyError(err) {
			return nil, fmt.Errorf("folder %s: %w", note.FolderID, store.ErrMissingReference)
		}
		return nil, fmt.Errorf("insert note: %w", err)
	}
	return n, nil
}

// FindNote returns the note with the given id.
func (s *Store) FindNote(ctx context.Context, id string) (*store.Note, error) {
	if !validID(id) {
		return nil, fmt.Errorf("note %s: %w", id, store.ErrNotFound)
	}
	n, err := scanNote(s.getExecutor(ctx).QueryRow(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE id = $1`, id))
	if err != nil {
		if isNoRowsError(err) {
			return nil, fmt.Errorf("note %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("find note: %w", err)
	}
	return n, nil
}

// FindNotes returns the notes matching filter, most recently updated first.
func (s *Store) FindNotes(ctx context.Context, filter store.NoteFilter) ([]store.Note, error) {
	query := `SELECT ` + noteColumns + ` FROM notes`
	var args []any
	if filter.FolderID != "" {
		if !validID(filter.FolderID) {
			return []store.Note{}, nil
		}
		query += ` WHERE folder_id = $1`
		args = append(args, filter.FolderID)
	}
	query += ` ORDER BY updated_at DESC, created_at DESC, id DESC`

	rows, err := s.getExecutor(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find notes: %w", err)
	}
	defer rows.Close()

	notes := []store.Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		notes = append(notes, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notes: %w", err)
	}
	return notes, nil
}

// UpdateNote applies patch and refreshes updated_at. folder_id is never written.
func (s *Store) UpdateNote(ctx context.Context, id string, patch store.NotePatch) (*store.Note, error) {
	if !validID(id) {
		return nil, fmt.Errorf("note %s: %w", id, store.ErrNotFound)
	}
	n, err := scanNote(s.getExecutor(ctx).QueryRow(ctx, `
		UPDATE notes
		SET title = $1, content = $2,
		    url = COALESCE($3, url),
		    image_url = COALESCE($4, image_url),
		    updated_at = $5
		WHERE id = $6
		RETURNING `+noteColumns,
		patch.Title, patch.Content, patch.URL, patch.ImageURL, s.now(), id,
	))
	if err != nil {
		if isNoRowsError(err) {
			return nil, fmt.Errorf("note %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("update note: %w", err)
	}
	return n, nil
}

// DeleteNote removes a note and returns it.
func (s *Store) DeleteNote(ctx context.Context, id string) (*store.Note, error) {
	if !validID(id) {
		return nil, fmt.Errorf("note %s: %w", id, store.ErrNotFound)
	}
	n, err := scanNote(s.getExecutor(ctx).QueryRow(ctx,
		`DELETE FROM notes WHERE id = $1 RETURNING `+noteColumns, id))
	if err != nil {
		if isNoRowsError(err) {
			return nil, fmt.Errorf("note %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("delete note: %w", err)
	}
	return n, nil
}

// DeleteNotes removes every note matching filter and returns how many went.
func (s *Store) DeleteNotes(ctx context.Context, filter store.NoteFilter) (int64, error) {
	query := `DELETE FROM notes`
	var args []any
	if filter.FolderID != "" {
		if !validID(filter.FolderID) {
			return 0, nil
		}
		query += ` WHERE folder_id = $1`
		args = append(args, filter.FolderID)
	}
	tag, err := s.getExecutor(ctx).Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete notes: %w", err)
	}
	return tag.RowsAffected(), nil
}
