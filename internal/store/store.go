// Package store defines the persistence contract for folders and notes.
//
// Backends live in their own packages (SQLite in internal/db, PostgreSQL in
// internal/pgdb). Every backend enforces folder name uniqueness and the
// note → folder reference itself, so callers never need a check-then-insert
// to stay consistent under concurrency.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when an id does not resolve to a stored record.
	ErrNotFound = errors.New("store: not found")

	// ErrConflict is returned when a write violates a uniqueness constraint.
	ErrConflict = errors.New("store: unique constraint violated")

	// ErrMissingReference is returned when a write references a record that
	// does not exist, or a delete would leave dangling references behind.
	ErrMissingReference = errors.New("store: reference constraint violated")
)

// Folder is a stored folder row.
type Folder struct {
	ID        string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Note is a stored note row. URL and ImageURL are nil when absent.
type Note struct {
	ID        string
	FolderID  string
	Title     string
	Content   string
	URL       *string
	ImageURL  *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FolderPatch holds the mutable folder fields.
type FolderPatch struct {
	Name string
}

// NotePatch holds the mutable note fields. A nil URL or ImageURL leaves the
// stored value unchanged.
type NotePatch struct {
	Title    string
	Content  string
	URL      *string
	ImageURL *string
}

// NoteFilter narrows FindNotes and DeleteNotes. The zero value matches all notes.
type NoteFilter struct {
	FolderID string
}

// TxFn runs inside a transaction. Store calls made with the ctx it receives
// participate in that transaction.
type TxFn func(ctx context.Context) error

// Store is the persistence contract consumed by the notebook service.
//
// Insert methods assign the id and both timestamps. Update methods refresh
// UpdatedAt. Find* list methods return rows ordered by UpdatedAt descending.
type Store interface {
	InsertFolder(ctx context.Context, name string) (*Folder, error)
	FindFolder(ctx context.Context, id string) (*Folder, error)
	FindFolders(ctx context.Context) ([]Folder, error)
	UpdateFolder(ctx context.Context, id string, patch FolderPatch) (*Folder, error)
	DeleteFolder(ctx context.Context, id string) (*Folder, error)

	InsertNote(ctx context.Context, note Note) (*Note, error)
	FindNote(ctx context.Context, id string) (*Note, error)
	FindNotes(ctx context.Context, filter NoteFilter) ([]Note, error)
	UpdateNote(ctx context.Context, id string, patch NotePatch) (*Note, error)
	DeleteNote(ctx context.Context, id string) (*Note, error)
	DeleteNotes(ctx context.Context, filter NoteFilter) (int64, error)

	// ExecTx runs fn in a single transaction, committing when fn returns nil.
	// A folder read inside the transaction stays locked against concurrent
	// transactions until it ends.
	ExecTx(ctx context.Context, fn TxFn) error

	Ping(ctx context.Context) error
	Close() error
}

// Clock returns the current time truncated to the precision every backend
// can round-trip.
func Clock() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
