package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kuitang/notebook/internal/notebook"
	"github.com/kuitang/notebook/internal/testdb"
	"github.com/kuitang/notebook/internal/upload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// =============================================================================
// Test Setup Helpers
// =============================================================================

var apiTestCounter atomic.Int64

var uploadTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fatalf interface {
	Fatalf(format string, args ...any)
}

// apiTestServer holds an httptest server wired to a fresh in-memory database.
type apiTestServer struct {
	server *httptest.Server
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

// newAPITestServer creates a server with every API route and a placeholder upload backend.
func newAPITestServer(t fatalf, pinger Pinger) *apiTestServer {
	s, err := testdb.NewStoreInMemory(fmt.Sprintf("api-test-%d", apiTestCounter.Add(1)))
	if err != nil {
		t.Fatalf("failed to create in-memory database: %v", err)
	}
	if pinger == nil {
		pinger = s
	}

	placeholder := upload.NewPlaceholderBackend()
	placeholder.SetClock(func() time.Time { return uploadTime })

	h := NewHandler(notebook.NewService(s), upload.New(placeholder), pinger)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	return &apiTestServer{server: httptest.NewServer(Recovery(mux))}
}

func setupAPITestServer(t *testing.T) *apiTestServer {
	t.Helper()
	srv := newAPITestServer(t, nil)
	t.Cleanup(srv.server.Close)
	return srv
}

// =============================================================================
// HTTP Client Helpers
// =============================================================================

type folderResponse struct {
	ID        string `json:"_id"`
	Name      string `json:"name"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

type noteResponse struct {
	ID     string `json:"_id"`
	Folder struct {
		ID   string `json:"_id"`
		Name string `json:"name"`
	} `json:"folderId"`
	Title    string  `json:"title"`
	Content  string  `json:"content"`
	URL      *string `json:"url"`
	ImageURL *string `json:"imageUrl"`
}

type envelope[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (s *apiTestServer) do(t fatalf, method, path string, body any) (*http.Response, []byte) {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, s.server.URL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, data
}

func decode[T any](t fatalf, data []byte) envelope[T] {
	var env envelope[T]
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return env
}

func (s *apiTestServer) createFolder(t fatalf, name string) folderResponse {
	resp, data := s.do(t, http.MethodPost, "/api/folders", map[string]string{"name": name})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create folder %q: status %d body %s", name, resp.StatusCode, data)
	}
	return decode[folderResponse](t, data).Data
}

func (s *apiTestServer) createNote(t fatalf, body map[string]string) noteResponse {
	resp, data := s.do(t, http.MethodPost, "/api/notes", body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create note: status %d body %s", resp.StatusCode, data)
	}
	return decode[noteResponse](t, data).Data
}

func (s *apiTestServer) upload(t fatalf, contentType string, payload []byte) (*http.Response, []byte) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if payload != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="image"; filename="picture"`)
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		if _, err := part.Write(payload); err != nil {
			t.Fatalf("write part: %v", err)
		}
	} else if err := mw.WriteField("caption", "nothing attached"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	resp, err := http.Post(s.server.URL+"/api/upload", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("POST /api/upload: %v", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, data
}

// =============================================================================
// Folders
// =============================================================================

func TestFolders_CRUD(t *testing.T) {
	srv := setupAPITestServer(t)

	resp, data := srv.do(t, http.MethodGet, "/api/folders", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"success":true,"data":[]}`, string(data))

	folder := srv.createFolder(t, "  Work  ")
	assert.Equal(t, "Work", folder.Name)
	assert.NotEmpty(t, folder.ID)

	resp, data = srv.do(t, http.MethodPost, "/api/folders", map[string]string{"name": "Work"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	env := decode[json.RawMessage](t, data)
	assert.False(t, env.Success)
	assert.Equal(t, notebook.MsgFolderExists, env.Error)

	resp, data = srv.do(t, http.MethodPut, "/api/folders/"+folder.ID, map[string]string{"name": "Office"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Office", decode[folderResponse](t, data).Data.Name)

	resp, data = srv.do(t, http.MethodDelete, "/api/folders/"+folder.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"success":true,"message":"`+notebook.MsgFolderDeleted+`"}`, string(data))

	resp, _ = srv.do(t, http.MethodDelete, "/api/folders/"+folder.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func testFoldersAPI_BlankNameRejected(t *rapid.T) {
	srv := newAPITestServer(t, nil)
	defer srv.server.Close()

	name := rapid.StringMatching(`[ \t\n]{0,8}`).Draw(t, "name")
	resp, data := srv.do(t, http.MethodPost, "/api/folders", map[string]string{"name": name})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("blank name %q: expected 400, got %d (%s)", name, resp.StatusCode, data)
	}
	if env := decode[json.RawMessage](t, data); env.Success || env.Error == "" {
		t.Fatalf("expected failure envelope, got %s", data)
	}
}

func TestFoldersAPI_BlankNameRejected(t *testing.T) {
	rapid.Check(t, testFoldersAPI_BlankNameRejected)
}

func FuzzFoldersAPI_BlankNameRejected(f *testing.F) {
	f.Add([]byte{0x00})
	f.Fuzz(rapid.MakeFuzz(testFoldersAPI_BlankNameRejected))
}

func TestFolders_InvalidJSON(t *testing.T) {
	srv := setupAPITestServer(t)

	resp, data := srv.do(t, http.MethodPost, "/api/folders", `{"name":`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, MsgInvalidJSON, decode[json.RawMessage](t, data).Error)
}

func TestFolders_EmptyBodyIsValidationError(t *testing.T) {
	srv := setupAPITestServer(t)

	resp, _ := srv.do(t, http.MethodPost, "/api/folders", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// Notes
// =============================================================================

func TestNotes_CRUD(t *testing.T) {
	srv := setupAPITestServer(t)
	folder := srv.createFolder(t, "Reading")

	resp, data := srv.do(t, http.MethodPost, "/api/notes", map[string]string{
		"folderId": folder.ID,
		"title":    "  Go memory model ",
		"content":  "happens-before",
		"url":      "https://go.dev/ref/mem",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	note := decode[noteResponse](t, data).Data
	assert.Equal(t, "Go memory model", note.Title)
	assert.Equal(t, folder.ID, note.Folder.ID)
	assert.Equal(t, "Reading", note.Folder.Name)
	require.NotNil(t, note.URL)
	assert.Equal(t, "https://go.dev/ref/mem", *note.URL)
	assert.Nil(t, note.ImageURL)
	assert.NotContains(t, string(data), "imageUrl")
	assert.True(t, strings.HasSuffix(resp.Header.Get("Location"), "/api/notes/"+note.ID))

	resp, data = srv.do(t, http.MethodGet, "/api/notes/"+note.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, note.ID, decode[noteResponse](t, data).Data.ID)

	resp, data = srv.do(t, http.MethodPut, "/api/notes/"+note.ID, map[string]string{
		"title":   "Go memory model (2022)",
		"content": "sequentially consistent atomics",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	updated := decode[noteResponse](t, data).Data
	assert.Equal(t, "Go memory model (2022)", updated.Title)
	require.NotNil(t, updated.URL)
	assert.Equal(t, "https://go.dev/ref/mem", *updated.URL)

	resp, data = srv.do(t, http.MethodDelete, "/api/notes/"+note.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, notebook.MsgNoteDeleted, decode[json.RawMessage](t, data).Message)

	resp, data = srv.do(t, http.MethodGet, "/api/notes/"+note.ID, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, notebook.MsgNoteNotFound, decode[json.RawMessage](t, data).Error)
}

func TestNotes_ValidationStatuses(t *testing.T) {
	srv := setupAPITestServer(t)
	folder := srv.createFolder(t, "Inbox")

	tests := []struct {
		name   string
		body   map[string]string
		status int
	}{
		{"missing folder", map[string]string{"title": "t", "content": "c"}, http.StatusBadRequest},
		{"missing title", map[string]string{"folderId": folder.ID, "content": "c"}, http.StatusBadRequest},
		{"missing content", map[string]string{"folderId": folder.ID, "title": "t"}, http.StatusBadRequest},
		{"bad url", map[string]string{"folderId": folder.ID, "title": "t", "content": "c", "url": "ftp://x.y"}, http.StatusBadRequest},
		{"long title", map[string]string{"folderId": folder.ID, "title": strings.Repeat("a", 201), "content": "c"}, http.StatusBadRequest},
		{"unknown folder", map[string]string{"folderId": "00000000-0000-0000-0000-000000000000", "title": "t", "content": "c"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := srv.do(t, http.MethodPost, "/api/notes", tt.body)
			require.Equal(t, tt.status, resp.StatusCode, string(data))
			env := decode[json.RawMessage](t, data)
			assert.False(t, env.Success)
			assert.NotEmpty(t, env.Error)
		})
	}
}

func testNotesAPI_UpdateIgnoresFolderID(rt *rapid.T) {
	srv := newAPITestServer(rt, nil)
	defer srv.server.Close()

	home := srv.createFolder(rt, "Home")
	away := srv.createFolder(rt, "Away")
	note := srv.createNote(rt, map[string]string{"folderId": home.ID, "title": "t", "content": "c"})

	title := rapid.StringMatching(`[A-Za-z][A-Za-z ]{0,30}`).Draw(rt, "title")
	resp, data := srv.do(rt, http.MethodPut, "/api/notes/"+note.ID, map[string]string{
		"folderId": away.ID,
		"title":    title,
		"content":  "moved?",
	})
	if resp.StatusCode != http.StatusOK {
		rt.Fatalf("update: status %d body %s", resp.StatusCode, data)
	}
	if got := decode[noteResponse](rt, data).Data.Folder.ID; got != home.ID {
		rt.Fatalf("folder changed from %s to %s", home.ID, got)
	}
}

func TestNotesAPI_UpdateIgnoresFolderID(t *testing.T) {
	rapid.Check(t, testNotesAPI_UpdateIgnoresFolderID)
}

func FuzzNotesAPI_UpdateIgnoresFolderID(f *testing.F) {
	f.Add([]byte{0x00})
	f.Fuzz(rapid.MakeFuzz(testNotesAPI_UpdateIgnoresFolderID))
}

func TestNotes_ListFilter(t *testing.T) {
	srv := setupAPITestServer(t)
	a := srv.createFolder(t, "A")
	b := srv.createFolder(t, "B")
	srv.createNote(t, map[string]string{"folderId": a.ID, "title": "a1", "content": "x"})
	srv.createNote(t, map[string]string{"folderId": b.ID, "title": "b1", "content": "x"})
	srv.createNote(t, map[string]string{"folderId": a.ID, "title": "a2", "content": "x"})

	resp, data := srv.do(t, http.MethodGet, "/api/notes", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]noteResponse](t, data).Data, 3)

	resp, data = srv.do(t, http.MethodGet, "/api/notes?folderId="+a.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	notes := decode[[]noteResponse](t, data).Data
	require.Len(t, notes, 2)
	for _, n := range notes {
		assert.Equal(t, a.ID, n.Folder.ID)
		assert.Equal(t, "A", n.Folder.Name)
	}
}

// =============================================================================
// Upload
// =============================================================================

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestUpload_PlaceholderURL(t *testing.T) {
	srv := setupAPITestServer(t)

	resp, data := srv.upload(t, "image/png", pngHeader)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	res := decode[upload.Result](t, data)
	assert.True(t, res.Success)
	assert.Equal(t, upload.PlaceholderURL(uploadTime), res.Data.URL)
	assert.Equal(t, upload.PlaceholderMessage, res.Data.Message)
}

func TestUpload_Rejections(t *testing.T) {
	srv := setupAPITestServer(t)

	t.Run("no file", func(t *testing.T) {
		resp, data := srv.upload(t, "", nil)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, upload.MsgNoFile, decode[json.RawMessage](t, data).Error)
	})

	t.Run("not an image", func(t *testing.T) {
		resp, data := srv.upload(t, "text/plain", []byte("hello"))
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, upload.MsgImagesOnly, decode[json.RawMessage](t, data).Error)
	})

	t.Run("too large", func(t *testing.T) {
		payload := append(append([]byte{}, pngHeader...), make([]byte, upload.DefaultMaxBytes)...)
		resp, data := srv.upload(t, "image/png", payload)
		require.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
		assert.Equal(t, upload.MsgTooLarge, decode[json.RawMessage](t, data).Error)
	})

	t.Run("oversized non-image reports the type", func(t *testing.T) {
		payload := bytes.Repeat([]byte("a"), int(upload.DefaultMaxBytes)+1024)
		resp, data := srv.upload(t, "text/plain", payload)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, upload.MsgImagesOnly, decode[json.RawMessage](t, data).Error)
	})

	t.Run("not multipart", func(t *testing.T) {
		resp, _ := srv.do(t, http.MethodPost, "/api/upload", `{"image":"data"}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

// =============================================================================
// Health, routing, recovery
// =============================================================================

func TestHealth(t *testing.T) {
	srv := setupAPITestServer(t)
	resp, data := srv.do(t, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"OK","message":"Notebook API is running"}`, string(data))

	down := newAPITestServer(t, failingPinger{})
	defer down.server.Close()
	resp, _ = down.do(t, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestUnknownRoute(t *testing.T) {
	srv := setupAPITestServer(t)
	resp, data := srv.do(t, http.MethodGet, "/api/nope", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Route not found", decode[json.RawMessage](t, data).Error)
}

func TestRecovery(t *testing.T) {
	h := Recovery(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/folders", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"internal error"}`, rec.Body.String())
}

func TestRecovery_AbortHandlerPropagates(t *testing.T) {
	h := Recovery(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

// =============================================================================
// End to end
// =============================================================================

func TestScenario_FolderLifecycle(t *testing.T) {
	srv := setupAPITestServer(t)

	recipes := srv.createFolder(t, "Recipes")
	soup := srv.createNote(t, map[string]string{"folderId": recipes.ID, "title": "Soup", "content": "boil water"})

	resp, data := srv.do(t, http.MethodGet, "/api/notes?folderId="+recipes.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	notes := decode[[]noteResponse](t, data).Data
	require.Len(t, notes, 1)
	assert.Equal(t, "Soup", notes[0].Title)
	assert.Equal(t, "Recipes", notes[0].Folder.Name)

	resp, _ = srv.do(t, http.MethodDelete, "/api/folders/"+recipes.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, data = srv.do(t, http.MethodGet, "/api/notes?folderId="+recipes.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"success":true,"data":[]}`, string(data))

	resp, _ = srv.do(t, http.MethodGet, "/api/notes/"+soup.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
