package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/kuitang/notebook/internal/store"
)

const noteColumns = `id, folder_id, title, content, url, image_url, created_at, updated_at`

func scanNote(row rowScanner) (*store.Note, error) {
	var (
		n         store.Note
		url       sql.NullString
		imageURL  sql.NullString
		createdAt int64
		updatedAt int64
	)
	if err := row.Scan(&n.ID, &n.FolderID, &n.Title, &n.Content, &url, &imageURL, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	n.URL = stringPtr(url)
	n.ImageURL = stringPtr(imageURL)
	n.CreatedAt = fromMicros(createdAt)
	n.UpdatedAt = fromMicros(updatedAt)
	return &n, nil
}

func noteWhere(filter store.NoteFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if filter.FolderID != "" {
		clauses = append(clauses, "folder_id = ?")
		args = append(args, filter.FolderID)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// InsertNote stores note under a fresh id. ID and timestamps on the argument
// are ignored. A folder id that does not exist fails with store.ErrMissingReference.
func (s *Store) InsertNote(ctx context.Context, note store.Note) (*store.Note, error) {
	now := s.now()
	note.ID = uuid.New().String()
	note.CreatedAt = now
	note.UpdatedAt = now

	_, err := s.conn(ctx).ExecContext(ctx,
		`INSERT INTO notes (`+noteColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		note.ID, note.FolderID, note.Title, note.Content,
		nullString(note.URL), nullString(note.ImageURL),
		toMicros(now), toMicros(now),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("folder %s: %w", note.FolderID, store.ErrMissingReference)
		}
		return nil, fmt.Errorf("insert note: %w", err)
	}
	return &note, nil
}

// FindNote returns the note with the given id.
func (s *Store) FindNote(ctx context.Context, id string) (*store.Note, error) {
	n, err := scanNote(s.conn(ctx).QueryRowContext(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE id = ?`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("note %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("find note: %w", err)
	}
	return n, nil
}

// FindNotes returns the notes matching filter, most recently updated first.
func (s *Store) FindNotes(ctx context.Context, filter store.NoteFilter) ([]store.Note, error) {
	where, args := noteWhere(filter)
	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT `+noteColumns+` FROM notes`+where+` ORDER BY updated_at DESC, created_at DESC, id DESC`, args...)
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
	var updated *store.Note
	err := s.ExecTx(ctx, func(ctx context.Context) error {
		result, err := s.conn(ctx).ExecContext(ctx,
			`UPDATE notes
			 SET title = ?, content = ?,
			     url = COALESCE(?, url),
			     image_url = COALESCE(?, image_url),
			     updated_at = ?
			 WHERE id = ?`,
			patch.Title, patch.Content,
			nullString(patch.URL), nullString(patch.ImageURL),
			toMicros(s.now()), id,
		)
		if err != nil {
			return fmt.Errorf("update note: %w", err)
		}
		if n, err := result.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("note %s: %w", id, store.ErrNotFound)
		}
		updated, err = s.FindNote(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteNote removes a note and returns it.
func (s *Store) DeleteNote(ctx context.Context, id string) (*store.Note, error) {
	var deleted *store.Note
	err := s.ExecTx(ctx, func(ctx context.Context) error {
		n, err := s.FindNote(ctx, id)
		if err != nil {
			return err
		}
		if _, err := s.conn(ctx).ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete note: %w", err)
		}
		deleted = n
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// DeleteNotes removes every note matching filter and returns how many went.
func (s *Store) DeleteNotes(ctx context.Context, filter store.NoteFilter) (int64, error) {
	where, args := noteWhere(filter)
	result, err := s.conn(ctx).ExecContext(ctx, `DELETE FROM notes`+where, args...)
	if err != nil {
		return 0, fmt.Errorf("delete notes: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete notes: %w", err)
	}
	return n, nil
}
