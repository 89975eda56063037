package pgdb

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kuitang/notebook/internal/store"
)

const folderColumns = `id::text, name, created_at, updated_at`

func scanFolder(row pgx.Row) (*store.Folder, error) {
	var f store.Folder
	if err := row.Scan(&f.ID, &f.Name, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	f.CreatedAt = f.CreatedAt.UTC()
	f.UpdatedAt = f.UpdatedAt.UTC()
	return &f, nil
}

// InsertFolder creates a folder. A duplicate name fails with store.ErrConflict.
func (s *Store) InsertFolder(ctx context.Context, name string) (*store.Folder, error) {
	now := s.now()
	f, err := scanFolder(s.getExecutor(ctx).QueryRow(ctx, `
		INSERT INTO folders (id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		RETURNING `+folderColumns,
		uuid.New().String(), name, now,
	))
	if err != nil {
		if isDuplicateError(err) {
			return nil, fmt.Errorf("folder %q: %w", name, store.ErrConflict)
		}
		return nil, fmt.Errorf("insert folder: %w", err)
	}
	return f, nil
}

// FindFolder returns the folder with the given id.
func (s *Store) FindFolder(ctx context.Context, id string) (*store.Folder, error) {
	if !validID(id) {
		return nil, fmt.Errorf("folder %s: %w", id, store.ErrNotFound)
	}
	query := `SELECT ` + folderColumns + ` FROM folders WHERE id = $1`
	if inTx(ctx) {
		// Holds the row until commit: a cascade and a note insert on the same
		// folder run one after the other instead of racing the foreign key.
		query += ` FOR UPDATE`
	}
	f, err := scanFolder(s.getExecutor(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if isNoRowsError(err) {
			return nil, fmt.Errorf("folder %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("find folder: %w", err)
	}
	return f, nil
}

// FindFolders returns every folder, most recently updated first.
func (s *Store) FindFolders(ctx context.Context) ([]store.Folder, error) {
	rows, err := s.getExecutor(ctx).Query(ctx,
		`SELECT `+folderColumns+` FROM folders ORDER BY updated_at DESC, created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("find folders: %w", err)
	}
	defer rows.Close()

	folders := []store.Folder{}
	for rows.Next() {
		f, err := scanFolder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan folder: %w", err)
		}
		folders = append(folders, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate folders: %w", err)
	}
	return folders, nil
}

// UpdateFolder applies patch and refreshes updated_at.
func (s *Store) UpdateFolder(ctx context.Context, id string, patch store.FolderPatch) (*store.Folder, error) {
	if !validID(id) {
		return nil, fmt.Errorf("folder %s: %w", id, store.ErrNotFound)
	}
	f, err := scanFolder(s.getExecutor(ctx).QueryRow(ctx, `
		UPDATE folders SET name = $1, updated_at = $2
		WHERE id = $3
		RETURNING `+folderColumns,
		patch.Name, s.now(), id,
	))
	if err != nil {
		if isNoRowsError(err) {
			return nil, fmt.Errorf("folder %s: %w", id, store.ErrNotFound)
		}
		if isDuplicateError(err) {
			return nil, fmt.Errorf("folder %q: %w", patch.Name, store.ErrConflict)
		}
		return nil, fmt.Errorf("update folder: %w", err)
	}
	return f, nil
}

// DeleteFolder removes a folder and returns it. It fails with
// store.ErrMissingReference while notes still point at the folder.
func (s *Store) DeleteFolder(ctx context.Context, id string) (*store.Folder, error) {
	if !validID(id) {
		return nil, fmt.Errorf("folder %s: %w", id, store.ErrNotFound)
	}
	f, err := scanFolder(s.getExecutor(ctx).QueryRow(ctx,
		`DELETE FROM folders WHERE id = $1 RETURNING `+folderColumns, id))
	if err != nil {
		if isNoRowsError(err) {
			return nil, fmt.Errorf("folder %s: %w", id, store.ErrNotFound)
		}
		if isForeignKeyError(err) {
			return nil, fmt.Errorf("folder %s still has notes: %w", id, store.ErrMissingReference)
		}
		return nil, fmt.Errorf("delete folder: %w", err)
	}
	return f, nil
}
