// Package storetest is a conformance suite for store.Store implementations.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/kuitang/notebook/internal/store"
	"pgregory.net/rapid"
)

// Factory returns an empty store. Implementations register their own cleanup on t.
type Factory func(t testing.TB) store.Store

var nameCounter atomic.Int64

func uniqueName(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, nameCounter.Add(1))
}

func strPtr(s string) *string { return &s }

// Run executes every conformance test against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("FolderRoundtrip", func(t *testing.T) { testFolderRoundtrip(t, newStore) })
	t.Run("FolderNameUnique", func(t *testing.T) { testFolderNameUnique(t, newStore) })
	t.Run("ConcurrentInsertSameName", func(t *testing.T) { testConcurrentInsertSameName(t, newStore) })
	t.Run("UpdateFolder", func(t *testing.T) { testUpdateFolder(t, newStore) })
	t.Run("FindFoldersOrdering", func(t *testing.T) { testFindFoldersOrdering(t, newStore) })
	t.Run("NoteRoundtrip", func(t *testing.T) { testNoteRoundtrip(t, newStore) })
	t.Run("NoteRequiresFolder", func(t *testing.T) { testNoteRequiresFolder(t, newStore) })
	t.Run("UpdateNotePatch", func(t *testing.T) { testUpdateNotePatch(t, newStore) })
	t.Run("FindNotesFilter", func(t *testing.T) { testFindNotesFilter(t, newStore) })
	t.Run("DeleteFolderWithNotesRejected", func(t *testing.T) { testDeleteFolderWithNotesRejected(t, newStore) })
	t.Run("DeleteNotes", func(t *testing.T) { testDeleteNotes(t, newStore) })
	t.Run("ExecTxRollback", func(t *testing.T) { testExecTxRollback(t, newStore) })
	t.Run("ConcurrentCascadeAndInsert", func(t *testing.T) { testConcurrentCascadeAndInsert(t, newStore) })
	t.Run("MissingIDs", func(t *testing.T) { testMissingIDs(t, newStore) })
}

// =============================================================================
// Folders
// =============================================================================

func testFolderRoundtrip(t *testing.T, newStore Factory) {
	rapid.Check(t, func(rt *rapid.T) {
		s := newStore(t)
		ctx := context.Background()
		name := rapid.StringMatching(`[A-Za-z0-9 ]{1,100}`).Draw(rt, "name")

		f, err := s.InsertFolder(ctx, name)
		if err != nil {
			rt.Fatalf("InsertFolder failed: %v", err)
		}
		if f.ID == "" {
			rt.Fatal("folder ID should be assigned")
		}
		if f.CreatedAt.IsZero() || !f.UpdatedAt.Equal(f.CreatedAt) {
			rt.Fatalf("timestamps not initialized: created=%v updated=%v", f.CreatedAt, f.UpdatedAt)
		}

		got, err := s.FindFolder(ctx, f.ID)
		if err != nil {
			rt.Fatalf("FindFolder failed: %v", err)
		}
		if got.Name != name {
			rt.Fatalf("name mismatch: got %q want %q", got.Name, name)
		}
		if !got.CreatedAt.Equal(f.CreatedAt) || !got.UpdatedAt.Equal(f.UpdatedAt) {
			rt.Fatalf("timestamps did not round-trip: inserted=%v/%v read=%v/%v",
				f.CreatedAt, f.UpdatedAt, got.CreatedAt, got.UpdatedAt)
		}
	})
}

func testFolderNameUnique(t *testing.T, newStore Factory) {
	s := newStore(t)
	ctx := context.Background()
	name := uniqueName("dup")

	if _, err := s.InsertFolder(ctx, name); err != nil {
		t.Fatalf("first InsertFolder failed: %v", err)
	}
	_, err := s.InsertFolder(ctx, name)
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("second InsertFolder: want ErrConflict, got %v", err)
	}

	// Uniqueness is case-sensitive.
	if _, err := s.InsertFolder(ctx, name+"-X"); err != nil {
		t.Fatalf("distinct name rejected: %v", err)
	}
}

func testConcurrentInsertSameName(t *testing.T, newStore Factory) {
	s := newStore(t)
	ctx := context.Background()
	name := uniqueName("race")

	const workers = 8
	var (
		wg        sync.WaitGroup
		successes atomic.Int64
		conflicts atomic.Int64
		others    = make(chan error, workers)
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := s.InsertFolder(ctx, name)
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, store.ErrConflict):
				conflicts.Add(1)
			default:
				others <- err
			}
		}()
	}
	close(start)
	wg.Wait()
	close(others)

	for err := range others {
		t.Errorf("unexpected error: %v", err)
	}
	if successes.Load() != 1 {
		t.Fatalf("want exactly 1 success, got %d", successes.Load())
	}
	if conflicts.Load() != workers-1 {
		t.Fatalf("want %d conflicts, got %d", workers-1, conflicts.Load())
	}
}

func testUpdateFolder(t *testing.T, newStore Factory) {
	s := newStore(t)
	ctx := context.Background()

	a, err := s.InsertFolder(ctx, uniqueName("a"))
	if err != nil {
		t.Fatalf("InsertFolder failed: %v", err)
	}
	b, err := s.InsertFolder(ctx, uniqueName("b"))
	if err != nil {
		t.Fatalf("InsertFolder failed: %v", err)
	}

	renamed := uniqueName("renamed")
	updated, err := s.UpdateFolder(ctx, a.ID, store.FolderPatch{Name: renamed})
	if err != nil {
		t.Fatalf("UpdateFolder failed: %v", err)
	}
	if updated.Name != renamed {
		t.Fatalf("name not updated: got %q", updated.Name)
	}
	if updated.UpdatedAt.Before(a.UpdatedAt) {
		t.Fatalf("updated_at went backwards: %v < %v", updated.UpdatedAt, a.UpdatedAt)
	}
	if !updated.CreatedAt.Equal(a.CreatedAt) {
		t.Fatalf("created_at changed: %v != %v", updated.CreatedAt, a.CreatedAt)
	}

	if _, err := s.UpdateFolder(ctx, a.ID, store.FolderPatch{Name: b.Name}); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("rename onto existing name: want ErrConflict, got %v", err)
	}
	if _, err := s.UpdateFolder(ctx, "does-not-exist", store.FolderPatch{Name: uniqueName("x")}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("rename of unknown id: want ErrNotFound, got %v", err)
	}
}

func testFindFoldersOrdering(t *testing.T, newStore Factory) {
	rapid.Check(t, func(rt *rapid.T) {
		s := newStore(t)
		ctx := context.Background()
		n := rapid.IntRange(0, 8).Draw(rt, "n")

		ids := make([]string, 0, n)
		for i := 0; i < n; i++ {
			f, err := s.InsertFolder(ctx, uniqueName("order"))
			if err != nil {
				rt.Fatalf("InsertFolder failed: %v", err)
			}
			ids = append(ids, f.ID)
		}
		if n > 0 {
			// Touch one folder so it moves to the front.
			touched := ids[rapid.IntRange(0, n-1).Draw(rt, "touched")]
			if _, err := s.UpdateFolder(ctx, touched, store.FolderPatch{Name: uniqueName("touched")}); err != nil {
				rt.Fatalf("UpdateFolder failed: %v", err)
			}
		}

		folders, err := s.FindFolders(ctx)
		if err != nil {
			rt.Fatalf("FindFolders failed: %v", err)
		}
		if folders == nil {
			rt.Fatal("FindFolders should return an empty slice, not nil")
		}
		if len(folders) != n {
			rt.Fatalf("want %d folders, got %d", n, len(folders))
		}
		for i := 1; i < len(folders); i++ {
			if folders[i].UpdatedAt.After(folders[i-1].UpdatedAt) {
				rt.Fatalf("folders not sorted by updated_at desc at %d: %v after %v",
					i, folders[i].UpdatedAt, folders[i-1].UpdatedAt)
			}
		}
	})
}

// =============================================================================
// Notes
// =============================================================================

func mustFolder(t testing.TB, s store.Store) *store.Folder {
	t.Helper()
	f, err := s.InsertFolder(context.Background(), uniqueName("folder"))
	if err != nil {
		t.Fatalf("InsertFolder failed: %v", err)
	}
	return f
}

func testNoteRoundtrip(t *testing.T, newStore Factory) {
	rapid.Check(t, func(rt *rapid.T) {
		s := newStore(t)
		ctx := context.Background()
		f := mustFolder(t, s)

		in := store.Note{
			FolderID: f.ID,
			Title:    rapid.StringMatching(`[A-Za-z0-9 ]{1,200}`).Draw(rt, "title"),
			Content:  rapid.StringMatching(`[A-Za-z0-9 .,!?]{1,300}`).Draw(rt, "content"),
		}
		if rapid.Bool().Draw(rt, "hasURL") {
			in.URL = strPtr("https://example.com/" + rapid.StringMatching(`[a-z]{1,10}`).Draw(rt, "path"))
		}
		if rapid.Bool().Draw(rt, "hasImage") {
			in.ImageURL = strPtr("https://img.example.com/" + rapid.StringMatching(`[a-z]{1,10}`).Draw(rt, "img"))
		}

		created, err := s.InsertNote(ctx, in)
		if err != nil {
			rt.Fatalf("InsertNote failed: %v", err)
		}
		got, err := s.FindNote(ctx, created.ID)
		if err != nil {
			rt.Fatalf("FindNote failed: %v", err)
		}
		if got.FolderID != f.ID || got.Title != in.Title || got.Content != in.Content {
			rt.Fatalf("note mismatch: got %+v want %+v", got, in)
		}
		if !equalPtr(got.URL, in.URL) || !equalPtr(got.ImageURL, in.ImageURL) {
			rt.Fatalf("optional fields mismatch: url=%v/%v image=%v/%v", got.URL, in.URL, got.ImageURL, in.ImageURL)
		}
	})
}

func equalPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func testNoteRequiresFolder(t *testing.T, newStore Factory) {
	s := newStore(t)
	_, err := s.InsertNote(context.Background(), store.Note{
		FolderID: "00000000-0000-0000-0000-000000000000",
		Title:    "orphan",
		Content:  "no parent",
	})
	if !errors.Is(err, store.ErrMissingReference) {
		t.Fatalf("want ErrMissingReference, got %v", err)
	}
}

func testUpdateNotePatch(t *testing.T, newStore Factory) {
	s := newStore(t)
	ctx := context.Background()
	f := mustFolder(t, s)

	created, err := s.InsertNote(ctx, store.Note{
		FolderID: f.ID,
		Title:    "before",
		Content:  "body",
		URL:      strPtr("https://example.com/a"),
	})
	if err != nil {
		t.Fatalf("InsertNote failed: %v", err)
	}

	updated, err := s.UpdateNote(ctx, created.ID, store.NotePatch{
		Title:    "after",
		Content:  "new body",
		ImageURL: strPtr("https://img.example.com/x.png"),
	})
	if err != nil {
		t.Fatalf("UpdateNote failed: %v", err)
	}
	if updated.Title != "after" || updated.Content != "new body" {
		t.Fatalf("fields not updated: %+v", updated)
	}
	if updated.FolderID != f.ID {
		t.Fatalf("folder id changed: %q", updated.FolderID)
	}
	if updated.URL == nil || *updated.URL != "https://example.com/a" {
		t.Fatalf("nil URL patch should keep the stored url, got %v", updated.URL)
	}
	if updated.ImageURL == nil || *updated.ImageURL != "https://img.example.com/x.png" {
		t.Fatalf("image url not set: %v", updated.ImageURL)
	}
	if updated.UpdatedAt.Before(created.UpdatedAt) {
		t.Fatalf("updated_at went backwards")
	}

	if _, err := s.UpdateNote(ctx, "does-not-exist", store.NotePatch{Title: "t", Content: "c"}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func testFindNotesFilter(t *testing.T, newStore Factory) {
	rapid.Check(t, func(rt *rapid.T) {
		s := newStore(t)
		ctx := context.Background()
		a := mustFolder(t, s)
		b := mustFolder(t, s)

		inA := rapid.IntRange(0, 5).Draw(rt, "inA")
		inB := rapid.IntRange(0, 5).Draw(rt, "inB")
		for i := 0; i < inA; i++ {
			if _, err := s.InsertNote(ctx, store.Note{FolderID: a.ID, Title: "a", Content: "a"}); err != nil {
				rt.Fatalf("InsertNote failed: %v", err)
			}
		}
		for i := 0; i < inB; i++ {
			if _, err := s.InsertNote(ctx, store.Note{FolderID: b.ID, Title: "b", Content: "b"}); err != nil {
				rt.Fatalf("InsertNote failed: %v", err)
			}
		}

		onlyA, err := s.FindNotes(ctx, store.NoteFilter{FolderID: a.ID})
		if err != nil {
			rt.Fatalf("FindNotes failed: %v", err)
		}
		if len(onlyA) != inA {
			rt.Fatalf("want %d notes in folder A, got %d", inA, len(onlyA))
		}
		for _, n := range onlyA {
			if n.FolderID != a.ID {
				rt.Fatalf("filter leaked note from folder %s", n.FolderID)
			}
		}

		all, err := s.FindNotes(ctx, store.NoteFilter{})
		if err != nil {
			rt.Fatalf("FindNotes failed: %v", err)
		}
		if len(all) != inA+inB {
			rt.Fatalf("want %d notes, got %d", inA+inB, len(all))
		}
		for i := 1; i < len(all); i++ {
			if all[i].UpdatedAt.After(all[i-1].UpdatedAt) {
				rt.Fatalf("notes not sorted by updated_at desc at %d", i)
			}
		}
	})
}

func testDeleteFolderWithNotesRejected(t *testing.T, newStore Factory) {
	s := newStore(t)
	ctx := context.Background()
	f := mustFolder(t, s)
	if _, err := s.InsertNote(ctx, store.Note{FolderID: f.ID, Title: "t", Content: "c"}); err != nil {
		t.Fatalf("InsertNote failed: %v", err)
	}

	if _, err := s.DeleteFolder(ctx, f.ID); !errors.Is(err, store.ErrMissingReference) {
		t.Fatalf("deleting a folder with notes: want ErrMissingReference, got %v", err)
	}
	if _, err := s.FindFolder(ctx, f.ID); err != nil {
		t.Fatalf("folder should survive the rejected delete: %v", err)
	}
}

func testDeleteNotes(t *testing.T, newStore Factory) {
	s := newStore(t)
	ctx := context.Background()
	a := mustFolder(t, s)
	b := mustFolder(t, s)
	for i := 0; i < 3; i++ {
		if _, err := s.InsertNote(ctx, store.Note{FolderID: a.ID, Title: "a", Content: "a"}); err != nil {
			t.Fatalf("InsertNote failed: %v", err)
		}
	}
	keep, err := s.InsertNote(ctx, store.Note{FolderID: b.ID, Title: "b", Content: "b"})
	if err != nil {
		t.Fatalf("InsertNote failed: %v", err)
	}

	n, err := s.DeleteNotes(ctx, store.NoteFilter{FolderID: a.ID})
	if err != nil {
		t.Fatalf("DeleteNotes failed: %v", err)
	}
	if n != 3 {
		t.Fatalf("want 3 deleted, got %d", n)
	}
	if _, err := s.FindNote(ctx, keep.ID); err != nil {
		t.Fatalf("note in other folder should survive: %v", err)
	}

	deleted, err := s.DeleteFolder(ctx, a.ID)
	if err != nil {
		t.Fatalf("DeleteFolder after emptying failed: %v", err)
	}
	if deleted.ID != a.ID {
		t.Fatalf("DeleteFolder returned %s, want %s", deleted.ID, a.ID)
	}
	if _, err := s.DeleteNote(ctx, keep.ID); err != nil {
		t.Fatalf("DeleteNote failed: %v", err)
	}
	if _, err := s.DeleteNote(ctx, keep.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("second DeleteNote: want ErrNotFound, got %v", err)
	}
}

func testExecTxRollback(t *testing.T, newStore Factory) {
	s := newStore(t)
	ctx := context.Background()
	f := mustFolder(t, s)
	note, err := s.InsertNote(ctx, store.Note{FolderID: f.ID, Title: "t", Content: "c"})
	if err != nil {
		t.Fatalf("InsertNote failed: %v", err)
	}

	boom := errors.New("boom")
	err = s.ExecTx(ctx, func(ctx context.Context) error {
		if _, err := s.DeleteNotes(ctx, store.NoteFilter{FolderID: f.ID}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("ExecTx should return fn's error, got %v", err)
	}
	if _, err := s.FindNote(ctx, note.ID); err != nil {
		t.Fatalf("rolled back delete should leave the note: %v", err)
	}

	err = s.ExecTx(ctx, func(ctx context.Context) error {
		if _, err := s.DeleteNotes(ctx, store.NoteFilter{FolderID: f.ID}); err != nil {
			return err
		}
		_, err := s.DeleteFolder(ctx, f.ID)
		return err
	})
	if err != nil {
		t.Fatalf("committed cascade failed: %v", err)
	}
	if _, err := s.FindFolder(ctx, f.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("folder should be gone, got %v", err)
	}
}

// testConcurrentCascadeAndInsert races, per folder, a read-then-write cascade
// against a read-then-write note insert and a plain listing. Every cascade must
// commit; an insert either lands before the cascade (and is swept by it) or
// sees the folder gone.
func testConcurrentCascadeAndInsert(t *testing.T, newStore Factory) {
	s := newStore(t)
	ctx := context.Background()

	const folders, notesPerFolder = 12, 4
	ids := make([]string, folders)
	for i := range ids {
		f := mustFolder(t, s)
		ids[i] = f.ID
		for j := 0; j < notesPerFolder; j++ {
			if _, err := s.InsertNote(ctx, store.Note{FolderID: f.ID, Title: "t", Content: "c"}); err != nil {
				t.Fatalf("InsertNote failed: %v", err)
			}
		}
	}

	var wg sync.WaitGroup
	errCh := make(chan error, folders*3)
	start := make(chan struct{})
	for _, id := range ids {
		wg.Add(3)
		go func() {
			defer wg.Done()
			<-start
			err := s.ExecTx(ctx, func(ctx context.Context) error {
				if _, err := s.FindFolder(ctx, id); err != nil {
					return err
				}
				if _, err := s.DeleteNotes(ctx, store.NoteFilter{FolderID: id}); err != nil {
					return err
				}
				_, err := s.DeleteFolder(ctx, id)
				return err
			})
			if err != nil {
				errCh <- fmt.Errorf("cascade %s: %w", id, err)
			}
		}()
		go func() {
			defer wg.Done()
			<-start
			err := s.ExecTx(ctx, func(ctx context.Context) error {
				if _, err := s.FindFolder(ctx, id); err != nil {
					return err
				}
				_, err := s.InsertNote(ctx, store.Note{FolderID: id, Title: "late", Content: "c"})
				return err
			})
			if err != nil && !errors.Is(err, store.ErrNotFound) && !errors.Is(err, store.ErrMissingReference) {
				errCh <- fmt.Errorf("insert %s: %w", id, err)
			}
		}()
		go func() {
			defer wg.Done()
			<-start
			if _, err := s.FindNotes(ctx, store.NoteFilter{FolderID: id}); err != nil {
				errCh <- fmt.Errorf("list %s: %w", id, err)
			}
		}()
	}
	close(start)
	wg.Wait()
	close(errCh)

	for err := range errCh {
		t.Errorf("unexpected error: %v", err)
	}
	for _, id := range ids {
		if _, err := s.FindFolder(ctx, id); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("folder %s should be gone, got %v", id, err)
		}
		left, err := s.FindNotes(ctx, store.NoteFilter{FolderID: id})
		if err != nil {
			t.Fatalf("FindNotes failed: %v", err)
		}
		if len(left) != 0 {
			t.Errorf("folder %s left %d notes behind", id, len(left))
		}
	}
}

func testMissingIDs(t *testing.T, newStore Factory) {
	s := newStore(t)
	ctx := context.Background()
	for _, id := range []string{"", "missing", "00000000-0000-0000-0000-000000000000", "not a uuid at all"} {
		if _, err := s.FindFolder(ctx, id); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("FindFolder(%q): want ErrNotFound, got %v", id, err)
		}
		if _, err := s.FindNote(ctx, id); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("FindNote(%q): want ErrNotFound, got %v", id, err)
		}
		if _, err := s.DeleteFolder(ctx, id); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("DeleteFolder(%q): want ErrNotFound, got %v", id, err)
		}
		if _, err := s.DeleteNote(ctx, id); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("DeleteNote(%q): want ErrNotFound, got %v", id, err)
		}
	}
}
