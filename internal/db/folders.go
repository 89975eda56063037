package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/kuitang/notebook/internal/store"
)

const folderColumns = `id, name, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFolder(row rowScanner) (*store.Folder, error) {
	var (
		f         store.Folder
		createdAt int64
		updatedAt int64
	)
	if err := row.Scan(&f.ID, &f.Name, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	f.CreatedAt = fromMicros(createdAt)
	f.UpdatedAt = fromMicros(updatedAt)
	return &f, nil
}

// InsertFolder creates a folder. A duplicate name fails with store.ErrConflict.
func (s *Store) InsertFolder(ctx context.Context, name string) (*store.Folder, error) {
	now := s.now()
	f := &store.Folder{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.conn(ctx).ExecContext(ctx,
		`INSERT INTO folders (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		f.ID, f.Name, toMicros(now), toMicros(now),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("folder %q: %w", name, store.ErrConflict)
		}
		return nil, fmt.Errorf("insert folder: %w", err)
	}
	return f, nil
}

// FindFolder returns the folder with the given id.
func (s *Store) FindFolder(ctx context.Context, id string) (*store.Folder, error) {
	f, err := scanFolder(s.conn(ctx).QueryRowContext(ctx,
		`SELECT `+folderColumns+` FROM folders WHERE id = ?`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("folder %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("find folder: %w", err)
	}
	return f, nil
}

// FindFolders returns every folder, most recently updated first.
func (s *Store) FindFolders(ctx context.Context) ([]store.Folder, error) {
	rows, err := s.conn(ctx).QueryContext(ctx,
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
	var updated *store.Folder
	err := s.ExecTx(ctx, func(ctx context.Context) error {
		result, err := s.conn(ctx).ExecContext(ctx,
			`UPDATE folders SET name = ?, updated_at = ? WHERE id = ?`,
			patch.Name, toMicros(s.now()), id,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("folder %q: %w", patch.Name, store.ErrConflict)
			}
			return fmt.Errorf("update folder: %w", err)
		}
		if n, err := result.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("folder %s: %w", id, store.ErrNotFound)
		}
		updated, err = s.FindFolder(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteFolder removes a folder and returns it. It fails with
// store.ErrMissingReference while notes still point at the folder.
func (s *Store) DeleteFolder(ctx context.Context, id string) (*store.Folder, error) {
	var deleted *store.Folder
	err := s.ExecTx(ctx, func(ctx context.Context) error {
		f, err := s.FindFolder(ctx, id)
		if err != nil {
			return err
		}
		if _, err := s.conn(ctx).ExecContext(ctx, `DELETE FROM folders WHERE id = ?`, id); err != nil {
			if isForeignKeyViolation(err) {
				return fmt.Errorf("folder %s still has notes: %w", id, store.ErrMissingReference)
			}
			return fmt.Errorf("delete folder: %w", err)
		}
		deleted = f
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}
