package notebook

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/kuitang/notebook/internal/errs"
	"pgregory.net/rapid"
)

func mustCreateNote(t fatalf, svc *Service, params CreateNoteParams) *Note {
	n, err := svc.CreateNote(context.Background(), params)
	if err != nil {
		t.Fatalf("CreateNote(%+v) failed: %v", params, err)
	}
	return n
}

// urlGenerator generates URLs accepted by the note url rule
func urlGenerator() *rapid.Generator[string] {
	return rapid.Custom(func(t *rapid.T) string {
		scheme := rapid.SampledFrom([]string{"http", "https"}).Draw(t, "scheme")
		host := rapid.StringMatching(`[a-z]{1,12}`).Draw(t, "host")
		tld := rapid.SampledFrom([]string{"com", "org", "io", "co.uk"}).Draw(t, "tld")
		path := rapid.StringMatching(`(/[a-z0-9]{1,8}){0,3}`).Draw(t, "path")
		return scheme + "://" + host + "." + tld + path
	})
}

// =============================================================================
// Property: created notes are trimmed and populated with their folder
// =============================================================================

func testCreateNote_TrimsAndPopulates(t *rapid.T) {
	svc := setupService(t)
	folder := mustCreateFolder(t, svc, "Inbox")

	title := titleGenerator().Draw(t, "title")
	content := contentGenerator().Draw(t, "content")
	withURL := rapid.Bool().Draw(t, "withURL")
	params := CreateNoteParams{
		FolderID: folder.ID,
		Title:    "  " + title + "\n",
		Content:  "\t" + content + " ",
	}
	var url string
	if withURL {
		url = urlGenerator().Draw(t, "url")
		params.URL = " " + url + " "
	}

	note := mustCreateNote(t, svc, params)

	if note.Title != strings.TrimSpace(title) || note.Content != strings.TrimSpace(content) {
		t.Fatalf("fields not trimmed: %+v", note)
	}
	if note.Folder.ID != folder.ID || note.Folder.Name != "Inbox" {
		t.Fatalf("folder not populated: %+v", note.Folder)
	}
	if withURL {
		if note.URL == nil || *note.URL != url {
			t.Fatalf("url mismatch: got %v want %q", note.URL, url)
		}
	} else if note.URL != nil {
		t.Fatalf("absent url stored as %q", *note.URL)
	}
	if note.ImageURL != nil {
		t.Fatalf("absent imageUrl stored as %q", *note.ImageURL)
	}

	got, err := svc.GetNote(context.Background(), note.ID)
	if err != nil {
		t.Fatalf("GetNote failed: %v", err)
	}
	if got.Title != note.Title || got.Content != note.Content || got.Folder != note.Folder {
		t.Fatalf("GetNote mismatch: got %+v want %+v", got, note)
	}
}

func TestCreateNote_TrimsAndPopulates(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testCreateNote_TrimsAndPopulates)
}

func FuzzCreateNote_TrimsAndPopulates(f *testing.F) {
	f.Add([]byte{0x00})
	f.Fuzz(rapid.MakeFuzz(testCreateNote_TrimsAndPopulates))
}

func TestCreateNote_AbsentOptionalFieldsOmittedFromJSON(t *testing.T) {
	t.Parallel()
	svc := setupService(t)
	folder := mustCreateFolder(t, svc, "Inbox")
	note := mustCreateNote(t, svc, CreateNoteParams{FolderID: folder.ID, Title: "t", Content: "c", URL: "   ", ImageURL: ""})

	raw, err := json.Marshal(note)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	for _, key := range []string{"url", "imageUrl"} {
		if _, ok := fields[key]; ok {
			t.Fatalf("absent %s present in %s", key, raw)
		}
	}
	ref, ok := fields["folderId"].(map[string]any)
	if !ok || ref["_id"] != folder.ID || ref["name"] != "Inbox" {
		t.Fatalf("folderId not populated: %s", raw)
	}
}

// =============================================================================
// Validation
// =============================================================================

func TestCreateNote_Validation(t *testing.T) {
	t.Parallel()
	svc := setupService(t)
	folder := mustCreateFolder(t, svc, "Inbox")

	tests := []struct {
		name    string
		params  CreateNoteParams
		code    errs.Code
		message string
	}{
		{"missing folder id", CreateNoteParams{Title: "t", Content: "c"}, errs.InvalidArgument, MsgNoteFieldsRequired},
		{"blank title", CreateNoteParams{FolderID: folder.ID, Title: "   ", Content: "c"}, errs.InvalidArgument, MsgNoteFieldsRequired},
		{"blank content", CreateNoteParams{FolderID: folder.ID, Title: "t", Content: "\n"}, errs.InvalidArgument, MsgNoteFieldsRequired},
		{"long title", CreateNoteParams{FolderID: folder.ID, Title: strings.Repeat("x", MaxNoteTitleLength+1), Content: "c"}, errs.InvalidArgument, "Title cannot exceed 200 characters"},
		{"url without scheme", CreateNoteParams{FolderID: folder.ID, Title: "t", Content: "c", URL: "example.com"}, errs.InvalidArgument, "Please enter a valid URL"},
		{"url without dot", CreateNoteParams{FolderID: folder.ID, Title: "t", Content: "c", URL: "http://localhost"}, errs.InvalidArgument, "Please enter a valid URL"},
		{"ftp url", CreateNoteParams{FolderID: folder.ID, Title: "t", Content: "c", URL: "ftp://example.com"}, errs.InvalidArgument, "Please enter a valid URL"},
		{"unknown folder", CreateNoteParams{FolderID: "no-such-folder", Title: "t", Content: "c"}, errs.NotFound, MsgFolderNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateNote(context.Background(), tt.params)
			requireCode(t, err, tt.code)
			if got := errs.MessageOf(err); got != tt.message {
				t.Fatalf("message = %q, want %q", got, tt.message)
			}
		})
	}

	// Exactly 200 characters is accepted.
	mustCreateNote(t, svc, CreateNoteParams{FolderID: folder.ID, Title: strings.Repeat("é", MaxNoteTitleLength), Content: "c"})

	notes, err := svc.ListNotes(context.Background(), "")
	if err != nil {
		t.Fatalf("ListNotes failed: %v", err)
	}
	if len(notes) != 1 {
		t.Fatalf("rejected notes were persisted: %d notes", len(notes))
	}
}

func testCreateNote_RejectsMalformedURLs(t *rapid.T) {
	svc := setupService(t)
	folder := mustCreateFolder(t, svc, "Inbox")
	bad := rapid.OneOf(
		rapid.StringMatching(`[a-z]{1,10}\.[a-z]{2,3}`),
		rapid.StringMatching(`https?://[a-z]{1,10}`),
		rapid.StringMatching(`(ftp|file|mailto):[a-z/]{1,10}\.[a-z]{2,3}`),
	).Draw(t, "url")

	_, err := svc.CreateNote(context.Background(), CreateNoteParams{FolderID: folder.ID, Title: "t", Content: "c", URL: bad})
	requireCode(t, err, errs.InvalidArgument)
}

func TestCreateNote_RejectsMalformedURLs(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testCreateNote_RejectsMalformedURLs)
}

func FuzzCreateNote_RejectsMalformedURLs(f *testing.F) {
	f.Add([]byte{0x00})
	f.Fuzz(rapid.MakeFuzz(testCreateNote_RejectsMalformedURLs))
}

// =============================================================================
// Property: updateNote never changes the owning folder
// =============================================================================

func testUpdateNote_KeepsFolder(t *rapid.T) {
	svc := setupService(t)
	ctx := context.Background()
	home := mustCreateFolder(t, svc, "Home")
	other := mustCreateFolder(t, svc, "Other")

	note := mustCreateNote(t, svc, CreateNoteParams{FolderID: home.ID, Title: "t", Content: "c"})

	// A request body naming another folder decodes without a folder field.
	body := map[string]string{
		"folderId": other.ID,
		"title":    titleGenerator().Draw(t, "title"),
		"content":  contentGenerator().Draw(t, "content"),
	}
	raw, _ := json.Marshal(body)
	var params UpdateNoteParams
	if err := json.Unmarshal(raw, &params); err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	updated, err := svc.UpdateNote(ctx, note.ID, params)
	if err != nil {
		t.Fatalf("UpdateNote failed: %v", err)
	}
	if updated.Folder.ID != home.ID || updated.Folder.Name != "Home" {
		t.Fatalf("note moved to %+v", updated.Folder)
	}
	if updated.Title != strings.TrimSpace(body["title"]) {
		t.Fatalf("title not updated: %q", updated.Title)
	}

	others, err := svc.ListNotes(ctx, other.ID)
	if err != nil {
		t.Fatalf("ListNotes failed: %v", err)
	}
	if len(others) != 0 {
		t.Fatalf("other folder gained notes: %+v", others)
	}
}

func TestUpdateNote_KeepsFolder(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testUpdateNote_KeepsFolder)
}

func FuzzUpdateNote_KeepsFolder(f *testing.F) {
	f.Add([]byte{0x00})
	f.Fuzz(rapid.MakeFuzz(testUpdateNote_KeepsFolder))
}

func TestUpdateNote_OptionalFields(t *testing.T) {
	t.Parallel()
	svc := setupSteppedService(t)
	ctx := context.Background()
	folder := mustCreateFolder(t, svc, "Inbox")
	note := mustCreateNote(t, svc, CreateNoteParams{
		FolderID: folder.ID,
		Title:    "t",
		Content:  "c",
		URL:      "https://example.com",
		ImageURL: "https://img.example.com/a.png",
	})

	// Empty optional fields keep the stored values.
	updated, err := svc.UpdateNote(ctx, note.ID, UpdateNoteParams{Title: "t2", Content: "c2"})
	if err != nil {
		t.Fatalf("UpdateNote failed: %v", err)
	}
	if updated.URL == nil || *updated.URL != "https://example.com" {
		t.Fatalf("url lost: %v", updated.URL)
	}
	if updated.ImageURL == nil || *updated.ImageURL != "https://img.example.com/a.png" {
		t.Fatalf("imageUrl lost: %v", updated.ImageURL)
	}
	if !updated.UpdatedAt.After(note.UpdatedAt) || !updated.CreatedAt.Equal(note.CreatedAt) {
		t.Fatalf("timestamps not maintained: before %+v after %+v", note, updated)
	}

	// Supplied values replace them.
	updated, err = svc.UpdateNote(ctx, note.ID, UpdateNoteParams{Title: "t3", Content: "c3", URL: "http://other.org/x", ImageURL: "https://img.example.com/b.png"})
	if err != nil {
		t.Fatalf("UpdateNote failed: %v", err)
	}
	if *updated.URL != "http://other.org/x" || *updated.ImageURL != "https://img.example.com/b.png" {
		t.Fatalf("optional fields not replaced: %+v", updated)
	}

	_, err = svc.UpdateNote(ctx, note.ID, UpdateNoteParams{Title: " ", Content: "c"})
	requireCode(t, err, errs.InvalidArgument)
	if errs.MessageOf(err) != MsgTitleContentMissing {
		t.Fatalf("unexpected message: %q", errs.MessageOf(err))
	}

	_, err = svc.UpdateNote(ctx, note.ID, UpdateNoteParams{Title: "t", Content: "c", URL: "nope"})
	requireCode(t, err, errs.InvalidArgument)

	_, err = svc.UpdateNote(ctx, "missing", UpdateNoteParams{Title: "t", Content: "c"})
	requireCode(t, err, errs.NotFound)
	if errs.MessageOf(err) != MsgNoteNotFound {
		t.Fatalf("unexpected message: %q", errs.MessageOf(err))
	}
}

// =============================================================================
// Property: folder renames are visible on the next read
// =============================================================================

func testGetNote_SeesRename(t *rapid.T) {
	svc := setupService(t)
	ctx := context.Background()
	folder := mustCreateFolder(t, svc, "Before")
	note := mustCreateNote(t, svc, CreateNoteParams{FolderID: folder.ID, Title: "t", Content: "c"})

	newName := strings.TrimSpace(folderNameGenerator().Draw(t, "name"))
	if _, err := svc.RenameFolder(ctx, folder.ID, newName); err != nil {
		t.Fatalf("RenameFolder failed: %v", err)
	}

	got, err := svc.GetNote(ctx, note.ID)
	if err != nil {
		t.Fatalf("GetNote failed: %v", err)
	}
	if got.Folder.Name != newName {
		t.Fatalf("GetNote folder name = %q, want %q", got.Folder.Name, newName)
	}
	listed, err := svc.ListNotes(ctx, folder.ID)
	if err != nil {
		t.Fatalf("ListNotes failed: %v", err)
	}
	if len(listed) != 1 || listed[0].Folder.Name != newName {
		t.Fatalf("ListNotes folder name stale: %+v", listed)
	}
}

func TestGetNote_SeesRename(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testGetNote_SeesRename)
}

func FuzzGetNote_SeesRename(f *testing.F) {
	f.Add([]byte{0x00})
	f.Fuzz(rapid.MakeFuzz(testGetNote_SeesRename))
}

// =============================================================================
// Property: ListNotes filters by folder and orders by update time
// =============================================================================

func testListNotes_FilterAndOrder(t *rapid.T) {
	svc := setupSteppedService(t)
	ctx := context.Background()
	folders := []*Folder{
		mustCreateFolder(t, svc, "A"),
		mustCreateFolder(t, svc, "B"),
	}

	n := rapid.IntRange(0, 12).Draw(t, "n")
	perFolder := map[string]int{}
	var ids []string
	for i := 0; i < n; i++ {
		f := folders[rapid.IntRange(0, 1).Draw(t, "folder")]
		note := mustCreateNote(t, svc, CreateNoteParams{FolderID: f.ID, Title: "t", Content: "c"})
		perFolder[f.ID]++
		ids = append(ids, note.ID)
	}

	// Touch a random note so it jumps to the front.
	if n > 0 {
		touched := ids[rapid.IntRange(0, n-1).Draw(t, "touched")]
		if _, err := svc.UpdateNote(ctx, touched, UpdateNoteParams{Title: "touched", Content: "c"}); err != nil {
			t.Fatalf("UpdateNote failed: %v", err)
		}
		all, err := svc.ListNotes(ctx, "")
		if err != nil {
			t.Fatalf("ListNotes failed: %v", err)
		}
		if all[0].ID != touched {
			t.Fatalf("most recently updated note not first: %s vs %s", all[0].ID, touched)
		}
	}

	all, err := svc.ListNotes(ctx, "")
	if err != nil {
		t.Fatalf("ListNotes failed: %v", err)
	}
	if len(all) != n {
		t.Fatalf("ListNotes returned %d notes, want %d", len(all), n)
	}
	for i := 1; i < len(all); i++ {
		if all[i].UpdatedAt.After(all[i-1].UpdatedAt) {
			t.Fatalf("notes out of order at %d", i)
		}
	}

	for _, f := range folders {
		got, err := svc.ListNotes(ctx, f.ID)
		if err != nil {
			t.Fatalf("ListNotes(%s) failed: %v", f.Name, err)
		}
		if len(got) != perFolder[f.ID] {
			t.Fatalf("folder %s: got %d notes, want %d", f.Name, len(got), perFolder[f.ID])
		}
		for _, note := range got {
			if note.Folder.ID != f.ID || note.Folder.Name != f.Name {
				t.Fatalf("note %s in wrong folder: %+v", note.ID, note.Folder)
			}
		}
	}
}

func TestListNotes_FilterAndOrder(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testListNotes_FilterAndOrder)
}

func FuzzListNotes_FilterAndOrder(f *testing.F) {
	f.Add([]byte{0x00})
	f.Fuzz(rapid.MakeFuzz(testListNotes_FilterAndOrder))
}

func TestListNotes_UnknownFolderIsEmpty(t *testing.T) {
	t.Parallel()
	svc := setupService(t)
	notes, err := svc.ListNotes(context.Background(), "no-such-folder")
	if err != nil {
		t.Fatalf("ListNotes failed: %v", err)
	}
	if notes == nil || len(notes) != 0 {
		t.Fatalf("want empty non-nil slice, got %#v", notes)
	}
}

func TestDeleteNote(t *testing.T) {
	t.Parallel()
	svc := setupService(t)
	ctx := context.Background()
	folder := mustCreateFolder(t, svc, "Inbox")
	note := mustCreateNote(t, svc, CreateNoteParams{FolderID: folder.ID, Title: "t", Content: "c"})

	if err := svc.DeleteNote(ctx, note.ID); err != nil {
		t.Fatalf("DeleteNote failed: %v", err)
	}
	_, err := svc.GetNote(ctx, note.ID)
	requireCode(t, err, errs.NotFound)

	err = svc.DeleteNote(ctx, note.ID)
	requireCode(t, err, errs.NotFound)
	if errs.MessageOf(err) != MsgNoteNotFound {
		t.Fatalf("unexpected message: %q", errs.MessageOf(err))
	}

	// The folder survives its last note.
	if _, err := svc.RenameFolder(ctx, folder.ID, "Still here"); err != nil {
		t.Fatalf("folder removed with its note: %v", err)
	}
}

// =============================================================================
// Scenario: Recipes / Soup lifecycle
// =============================================================================

func TestScenario_RecipesSoup(t *testing.T) {
	t.Parallel()
	svc := setupService(t)
	ctx := context.Background()

	recipes, err := svc.CreateFolder(ctx, "Recipes")
	if err != nil {
		t.Fatalf("CreateFolder failed: %v", err)
	}

	soup, err := svc.CreateNote(ctx, CreateNoteParams{
		FolderID: recipes.ID,
		Title:    "Soup",
		Content:  "boil water",
	})
	if err != nil {
		t.Fatalf("CreateNote failed: %v", err)
	}

	notes, err := svc.ListNotes(ctx, recipes.ID)
	if err != nil {
		t.Fatalf("ListNotes failed: %v", err)
	}
	if len(notes) != 1 || notes[0].Title != "Soup" || notes[0].Folder.Name != "Recipes" {
		t.Fatalf("want one populated Soup note, got %+v", notes)
	}

	if err := svc.DeleteFolder(ctx, recipes.ID); err != nil {
		t.Fatalf("DeleteFolder failed: %v", err)
	}

	notes, err = svc.ListNotes(ctx, recipes.ID)
	if err != nil {
		t.Fatalf("ListNotes failed: %v", err)
	}
	if len(notes) != 0 {
		t.Fatalf("notes survived folder delete: %+v", notes)
	}
	if _, err := svc.GetNote(ctx, soup.ID); !errs.Is(err, errs.NotFound) {
		t.Fatalf("note after cascade: want NotFound, got %v", err)
	}
}
