package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"campushub/composer/internal/config"
	"campushub/composer/internal/draft"
	"campushub/composer/internal/localref"
	"campushub/composer/internal/richtext"
	"campushub/composer/internal/upload"
)

type fakeUploader struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (f *fakeUploader) Upload(_ context.Context, file upload.File) (upload.Result, error) {
	f.mu.Lock()
	f.calls++
	fail := f.fail
	f.mu.Unlock()
	if fail {
		return upload.Result{}, errors.New("upload refused")
	}
	return upload.Result{URL: "https://cdn.example.com/" + file.Name, Width: 320, Height: 200}, nil
}

type failingPingStorage struct{}

func (failingPingStorage) Put(context.Context, string, []byte) error { return nil }
func (failingPingStorage) Get(context.Context, string) ([]byte, error) {
	return nil, draft.ErrNoDraft
}
func (failingPingStorage) Delete(context.Context, string) error { return nil }
func (failingPingStorage) Ping(context.Context) error           { return errors.New("storage offline") }

func testConfig() config.Config {
	return config.Config{
		SessionTTL:     time.Hour,
		UploadPolicy:   "immediate",
		MaxUploadBytes: 1 << 20,
		DraftDebounce:  time.Hour,
	}
}

func newTestServer(uploader upload.Uploader, storage draft.Storage) *HTTPServer {
	return NewHTTPServer(New(testConfig(), uploader, storage), "*")
}

type snapshotBody struct {
	SessionID string         `json:"session_id"`
	Key       string         `json:"context_key"`
	Value     richtext.Value `json:"value"`
	Uploads   []upload.Entry `json:"uploads"`
	Restored  bool           `json:"restored_draft"`
}

func postJSON(t *testing.T, server *HTTPServer, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	return rr
}

func doRequest(server *HTTPServer, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeSnapshot(t *testing.T, rr *httptest.ResponseRecorder) snapshotBody {
	t.Helper()
	var snap snapshotBody
	if err := json.Unmarshal(rr.Body.Bytes(), &snap); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	return snap
}

func createSession(t *testing.T, server *HTTPServer, key, policy string) snapshotBody {
	t.Helper()
	rr := postJSON(t, server, "/api/compose/sessions", map[string]any{"context_key": key, "policy": policy})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	return decodeSnapshot(t, rr)
}

// pngPayload carries the PNG signature so content sniffing identifies
// it as an image.
func pngPayload() []byte {
	return append([]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}, bytes.Repeat([]byte{0x42}, 64)...)
}

func uploadImage(t *testing.T, server *HTTPServer, sessionID, filename string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/compose/sessions/"+sessionID+"/images", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	return rr
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(&fakeUploader{}, draft.NewMemoryStorage())

	rr := doRequest(server, http.MethodGet, "/api/health")
	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}

	var response map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if ok, exists := response["ok"]; !exists || ok != true {
		t.Errorf("expected ok=true, got %v", ok)
	}
}

func TestReadyEndpoint_Success(t *testing.T) {
	server := newTestServer(&fakeUploader{}, draft.NewMemoryStorage())

	rr := doRequest(server, http.MethodGet, "/api/ready")
	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
}

func TestReadyEndpoint_StorageDown(t *testing.T) {
	server := newTestServer(&fakeUploader{}, failingPingStorage{})

	rr := doRequest(server, http.MethodGet, "/api/ready")
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rr.Code)
	}

	var response map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if response["status"] != "not_ready" {
		t.Errorf("expected status not_ready, got %v", response["status"])
	}
}

func TestCreateSessionRequiresContextKey(t *testing.T) {
	server := newTestServer(&fakeUploader{}, draft.NewMemoryStorage())

	rr := postJSON(t, server, "/api/compose/sessions", map[string]any{})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "VALIDATION_ERROR") {
		t.Errorf("expected VALIDATION_ERROR, got %s", rr.Body.String())
	}
}

func TestCreateSessionRejectsUnknownPolicy(t *testing.T) {
	server := newTestServer(&fakeUploader{}, draft.NewMemoryStorage())

	rr := postJSON(t, server, "/api/compose/sessions", map[string]any{"context_key": "post:new", "policy": "eventually"})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", rr.Code)
	}
}

func TestSessionNotFound(t *testing.T) {
	server := newTestServer(&fakeUploader{}, draft.NewMemoryStorage())

	rr := doRequest(server, http.MethodGet, "/api/compose/sessions/cmp_missing")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "SESSION_NOT_FOUND") {
		t.Errorf("expected SESSION_NOT_FOUND, got %s", rr.Body.String())
	}
}

func TestEditRejectsBadBlock(t *testing.T) {
	server := newTestServer(&fakeUploader{}, draft.NewMemoryStorage())
	snap := createSession(t, server, "post:new", "")

	rr := postJSON(t, server, "/api/compose/sessions/"+snap.SessionID+"/edits", map[string]any{"block": 9, "text": "x"})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestComposeFlow(t *testing.T) {
	uploader := &fakeUploader{}
	storage := draft.NewMemoryStorage()
	server := newTestServer(uploader, storage)

	snap := createSession(t, server, "post:new", "deferred")
	if snap.SessionID == "" || snap.Key != "post:new" {
		t.Fatalf("unexpected session snapshot: %+v", snap)
	}
	if snap.Restored {
		t.Fatal("fresh session should not restore a draft")
	}
	base := "/api/compose/sessions/" + snap.SessionID

	rr := postJSON(t, server, base+"/edits", map[string]any{"block": 0, "text": "hello forum"})
	if rr.Code != http.StatusOK {
		t.Fatalf("edit failed: %d %s", rr.Code, rr.Body.String())
	}
	edited := decodeSnapshot(t, rr)
	if edited.Value.Text != "hello forum" {
		t.Fatalf("text = %q, want %q", edited.Value.Text, "hello forum")
	}

	rr = uploadImage(t, server, snap.SessionID, "photo.png", pngPayload())
	if rr.Code != http.StatusCreated {
		t.Fatalf("image insert failed: %d %s", rr.Code, rr.Body.String())
	}
	var inserted struct {
		UploadID string         `json:"upload_id"`
		Uploads  []upload.Entry `json:"uploads"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &inserted); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if inserted.UploadID == "" || len(inserted.Uploads) != 1 {
		t.Fatalf("unexpected insert response: %+v", inserted)
	}
	if inserted.Uploads[0].Status != upload.StatusPending {
		t.Fatalf("deferred upload status = %q, want pending", inserted.Uploads[0].Status)
	}

	// The placeholder blob is servable before the upload runs.
	ref := strings.TrimPrefix(inserted.Uploads[0].LocalRef, localref.Scheme)
	rr = doRequest(server, http.MethodGet, base+"/blobs/"+ref)
	if rr.Code != http.StatusOK {
		t.Fatalf("blob fetch failed: %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "image/") {
		t.Errorf("blob content type = %q, want image/*", ct)
	}

	rr = postJSON(t, server, base+"/flush", map[string]any{})
	if rr.Code != http.StatusOK {
		t.Fatalf("flush failed: %d %s", rr.Code, rr.Body.String())
	}
	var flushed struct {
		AnyFailed bool           `json:"any_failed"`
		Value     richtext.Value `json:"value"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &flushed); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if flushed.AnyFailed {
		t.Fatal("flush reported failures")
	}
	if img := richtext.FindImage(flushed.Value.Doc, inserted.UploadID); img == nil {
		t.Fatal("flush response value missing the image")
	}

	rr = doRequest(server, http.MethodGet, base)
	after := decodeSnapshot(t, rr)
	img := richtext.FindImage(after.Value.Doc, inserted.UploadID)
	if img == nil {
		t.Fatal("image node missing after flush")
	}
	if src := img.AttrString(richtext.AttrSrc); src != "https://cdn.example.com/photo.png" {
		t.Fatalf("image src = %q", src)
	}
	if len(after.Uploads) != 0 {
		t.Fatalf("uploads still tracked after flush: %+v", after.Uploads)
	}

	// Blob is released once the hosted copy exists.
	rr = doRequest(server, http.MethodGet, base+"/blobs/"+ref)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected blob 404 after flush, got %d", rr.Code)
	}

	rr = postJSON(t, server, base+"/submit", map[string]any{"tags": []string{"Go", "Go", "help"}})
	if rr.Code != http.StatusOK {
		t.Fatalf("submit failed: %d %s", rr.Code, rr.Body.String())
	}
	var submitted struct {
		Payload struct {
			ContentText string         `json:"content_text"`
			ContentTree *richtext.Node `json:"content_tree"`
			Tags        []string       `json:"tags"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &submitted); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if submitted.Payload.ContentText != "hello forum" {
		t.Errorf("content_text = %q", submitted.Payload.ContentText)
	}
	if submitted.Payload.ContentTree == nil {
		t.Error("content_tree missing")
	}
	if fmt.Sprint(submitted.Payload.Tags) != "[Go help]" {
		t.Errorf("tags = %v", submitted.Payload.Tags)
	}

	// Submit resets the surface.
	rr = doRequest(server, http.MethodGet, base)
	reset := decodeSnapshot(t, rr)
	if reset.Value.Text != "" {
		t.Errorf("value text after submit = %q, want empty", reset.Value.Text)
	}
}

func TestInsertImageRejectsNonImage(t *testing.T) {
	server := newTestServer(&fakeUploader{}, draft.NewMemoryStorage())
	snap := createSession(t, server, "post:new", "")

	rr := uploadImage(t, server, snap.SessionID, "notes.txt", []byte("plain text, not pixels"))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "UNSUPPORTED_MEDIA") {
		t.Errorf("expected UNSUPPORTED_MEDIA, got %s", rr.Body.String())
	}
}

func TestInsertImageRejectsOversizedFile(t *testing.T) {
	cfg := testConfig()
	cfg.MaxUploadBytes = 1024
	server := NewHTTPServer(New(cfg, &fakeUploader{}, draft.NewMemoryStorage()), "*")
	snap := createSession(t, server, "post:new", "")

	big := append(pngPayload(), bytes.Repeat([]byte{0x00}, 4096)...)
	rr := uploadImage(t, server, snap.SessionID, "big.png", big)
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected status 413, got %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "FILE_TOO_LARGE") {
		t.Errorf("expected FILE_TOO_LARGE, got %s", rr.Body.String())
	}
}

func TestSubmitBlockedByFailedUploads(t *testing.T) {
	uploader := &fakeUploader{fail: true}
	server := newTestServer(uploader, draft.NewMemoryStorage())
	snap := createSession(t, server, "post:new", "deferred")
	base := "/api/compose/sessions/" + snap.SessionID

	if rr := uploadImage(t, server, snap.SessionID, "broken.png", pngPayload()); rr.Code != http.StatusCreated {
		t.Fatalf("image insert failed: %d", rr.Code)
	}

	rr := postJSON(t, server, base+"/submit", map[string]any{})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "UPLOADS_INCOMPLETE") {
		t.Errorf("expected UPLOADS_INCOMPLETE, got %s", rr.Body.String())
	}
}

func TestSubmitEmptyContent(t *testing.T) {
	server := newTestServer(&fakeUploader{}, draft.NewMemoryStorage())
	snap := createSession(t, server, "post:new", "")

	rr := postJSON(t, server, "/api/compose/sessions/"+snap.SessionID+"/submit", map[string]any{})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestRetryUnknownUpload(t *testing.T) {
	server := newTestServer(&fakeUploader{}, draft.NewMemoryStorage())
	snap := createSession(t, server, "post:new", "")

	rr := postJSON(t, server, "/api/compose/sessions/"+snap.SessionID+"/uploads/up_missing/retry", map[string]any{})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "UPLOAD_NOT_FOUND") {
		t.Errorf("expected UPLOAD_NOT_FOUND, got %s", rr.Body.String())
	}
}

func TestRemoveUpload(t *testing.T) {
	server := newTestServer(&fakeUploader{}, draft.NewMemoryStorage())
	snap := createSession(t, server, "post:new", "deferred")
	base := "/api/compose/sessions/" + snap.SessionID

	rr := uploadImage(t, server, snap.SessionID, "oops.png", pngPayload())
	var inserted struct {
		UploadID string `json:"upload_id"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &inserted); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}

	rr = doRequest(server, http.MethodDelete, base+"/uploads/"+inserted.UploadID)
	if rr.Code != http.StatusOK {
		t.Fatalf("remove failed: %d %s", rr.Code, rr.Body.String())
	}
	var removed struct {
		Removed bool           `json:"removed"`
		Uploads []upload.Entry `json:"uploads"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &removed); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if !removed.Removed || len(removed.Uploads) != 0 {
		t.Fatalf("unexpected remove response: %+v", removed)
	}
}

func TestDeleteSession(t *testing.T) {
	server := newTestServer(&fakeUploader{}, draft.NewMemoryStorage())
	snap := createSession(t, server, "post:new", "")

	rr := doRequest(server, http.MethodDelete, "/api/compose/sessions/"+snap.SessionID)
	if rr.Code != http.StatusOK {
		t.Fatalf("delete failed: %d", rr.Code)
	}

	rr = doRequest(server, http.MethodGet, "/api/compose/sessions/"+snap.SessionID)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 after delete, got %d", rr.Code)
	}
}

func TestDraftRestoredAcrossSessions(t *testing.T) {
	storage := draft.NewMemoryStorage()
	server := newTestServer(&fakeUploader{}, storage)

	first := createSession(t, server, "post:1042", "")
	rr := postJSON(t, server, "/api/compose/sessions/"+first.SessionID+"/edits", map[string]any{"block": 0, "text": "work in progress"})
	if rr.Code != http.StatusOK {
		t.Fatalf("edit failed: %d", rr.Code)
	}
	// Closing the session flushes the debounced draft.
	if rr := doRequest(server, http.MethodDelete, "/api/compose/sessions/"+first.SessionID); rr.Code != http.StatusOK {
		t.Fatalf("delete failed: %d", rr.Code)
	}

	second := createSession(t, server, "post:1042", "")
	if !second.Restored {
		t.Fatal("expected restored_draft=true")
	}
	if second.Value.Text != "work in progress" {
		t.Fatalf("restored text = %q", second.Value.Text)
	}

	// A different context key starts clean.
	other := createSession(t, server, "post:9", "")
	if other.Restored {
		t.Fatal("unrelated key restored a draft")
	}
}

func TestClearDraftEndpoint(t *testing.T) {
	storage := draft.NewMemoryStorage()
	server := newTestServer(&fakeUploader{}, storage)

	first := createSession(t, server, "post:7", "")
	base := "/api/compose/sessions/" + first.SessionID
	if rr := postJSON(t, server, base+"/edits", map[string]any{"block": 0, "text": "scratch"}); rr.Code != http.StatusOK {
		t.Fatalf("edit failed: %d", rr.Code)
	}
	if rr := doRequest(server, http.MethodDelete, base+"/draft"); rr.Code != http.StatusOK {
		t.Fatalf("clear draft failed: %d", rr.Code)
	}
	if rr := doRequest(server, http.MethodDelete, base); rr.Code != http.StatusOK {
		t.Fatalf("delete failed: %d", rr.Code)
	}

	second := createSession(t, server, "post:7", "")
	if second.Restored {
		t.Fatal("draft survived clearing")
	}
}

func TestValueRoundTrip(t *testing.T) {
	server := newTestServer(&fakeUploader{}, draft.NewMemoryStorage())
	snap := createSession(t, server, "post:new", "")

	doc := richtext.EmptyDoc()
	doc.Content = []*richtext.Node{richtext.NewParagraph("pushed from the client")}
	rr := postJSON(t, server, "/api/compose/sessions/"+snap.SessionID+"/value", map[string]any{
		"doc":  doc,
		"text": "pushed from the client",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("value push failed: %d %s", rr.Code, rr.Body.String())
	}
	got := decodeSnapshot(t, rr)
	if got.Value.Text != "pushed from the client" {
		t.Fatalf("text = %q", got.Value.Text)
	}
}

func TestThreadTreeEndpoint(t *testing.T) {
	server := newTestServer(&fakeUploader{}, draft.NewMemoryStorage())

	rr := postJSON(t, server, "/api/threads/tree", map[string]any{
		"comments": []map[string]any{
			{"id": "c1", "created_at": "2026-08-20T10:00:00Z"},
			{"id": "c2", "parent_id": "c1", "created_at": "2026-08-20T11:00:00Z"},
			{"id": "c3", "created_at": "2026-08-20T12:00:00Z"},
		},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("thread tree failed: %d %s", rr.Code, rr.Body.String())
	}
	var response struct {
		Threads []struct {
			ID       string `json:"id"`
			Children []struct {
				ID string `json:"id"`
			} `json:"children"`
		} `json:"threads"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(response.Threads) != 2 {
		t.Fatalf("got %d roots, want 2", len(response.Threads))
	}
	if response.Threads[0].ID != "c3" || response.Threads[1].ID != "c1" {
		t.Fatalf("root order = %s, %s; want c3, c1", response.Threads[0].ID, response.Threads[1].ID)
	}
	if len(response.Threads[1].Children) != 1 || response.Threads[1].Children[0].ID != "c2" {
		t.Fatalf("c1 children = %+v", response.Threads[1].Children)
	}
}

func TestImportMarkdownEndpoint(t *testing.T) {
	server := newTestServer(&fakeUploader{}, draft.NewMemoryStorage())

	rr := postJSON(t, server, "/api/import/markdown", map[string]any{"markdown": "# Title\n\nSome **bold** text"})
	if rr.Code != http.StatusOK {
		t.Fatalf("import failed: %d %s", rr.Code, rr.Body.String())
	}
	var response struct {
		Value richtext.Value `json:"value"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if !strings.Contains(response.Value.Text, "Some bold text") {
		t.Fatalf("imported text = %q", response.Value.Text)
	}
}

func TestImportHTMLEndpoint(t *testing.T) {
	server := newTestServer(&fakeUploader{}, draft.NewMemoryStorage())

	rr := postJSON(t, server, "/api/import/html", map[string]any{"html": "<p>pasted <em>rich</em> text</p>"})
	if rr.Code != http.StatusOK {
		t.Fatalf("import failed: %d %s", rr.Code, rr.Body.String())
	}
	var response struct {
		Value richtext.Value `json:"value"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if response.Value.Text != "pasted rich text" {
		t.Fatalf("imported text = %q", response.Value.Text)
	}
}

func TestAuthTokenGuardsAPI(t *testing.T) {
	cfg := testConfig()
	cfg.AuthToken = "sekrit"
	server := NewHTTPServer(New(cfg, &fakeUploader{}, draft.NewMemoryStorage()), "*")

	// Health stays public.
	if rr := doRequest(server, http.MethodGet, "/api/health"); rr.Code != http.StatusOK {
		t.Fatalf("health blocked: %d", rr.Code)
	}

	rr := postJSON(t, server, "/api/compose/sessions", map[string]any{"context_key": "post:new"})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/compose/sessions", strings.NewReader(`{"context_key":"post:new"}`))
	req.Header.Set("Authorization", "Bearer sekrit")
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201 with token, got %d: %s", rec.Code, rec.Body.String())
	}

	// The events route accepts the token as a query parameter for
	// websocket clients; a wrong one is still refused.
	if rr := doRequest(server, http.MethodGet, "/api/compose/sessions/x/events?token=wrong"); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 for bad query token, got %d", rr.Code)
	}
}

func TestRequestIDHeader(t *testing.T) {
	server := newTestServer(&fakeUploader{}, draft.NewMemoryStorage())

	rr := doRequest(server, http.MethodGet, "/api/health")
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "req-123" {
		t.Errorf("X-Request-ID = %q, want req-123", got)
	}
}
