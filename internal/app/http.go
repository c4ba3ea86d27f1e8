package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"campushub/composer/internal/compose"
	"campushub/composer/internal/draft"
	"campushub/composer/internal/editor"
	"campushub/composer/internal/localref"
	"campushub/composer/internal/richtext"
	"campushub/composer/internal/threads"
	"campushub/composer/internal/upload"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
	authToken  string
	maxUpload  int64
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	maxUpload := service.cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 8 << 20
	}
	return &HTTPServer{
		service:    service,
		corsOrigin: corsOrigin,
		authToken:  service.cfg.AuthToken,
		maxUpload:  maxUpload,
	}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		// Check draft storage connectivity
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"storage": map[string]any{"status": "ok"},
		}
		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["storage"] = map[string]any{"status": "error", "error": err.Error()}
		}
		writeJSON(w, statusCode, map[string]any{
			"ok":     statusCode == http.StatusOK,
			"status": status,
			"checks": checks,
		})
		return
	}

	if !s.authorize(w, r) {
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/threads/tree" {
		var body struct {
			Comments []threads.Comment `json:"comments"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"threads": s.service.BuildThreadTree(body.Comments)})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/import/markdown" {
		var body struct {
			Markdown string `json:"markdown"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"value": s.service.ImportMarkdown([]byte(body.Markdown))})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/import/html" {
		var body struct {
			HTML string `json:"html"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		value, err := s.service.ImportHTML(strings.NewReader(body.HTML))
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"value": value})
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) >= 3 && parts[0] == "api" && parts[1] == "compose" && parts[2] == "sessions" {
		s.handleComposeSessions(w, r, parts[3:])
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

// authorize enforces the configured bearer token on everything behind
// the health probes. Websocket clients cannot set headers, so the
// events route also accepts the token as a query parameter.
func (s *HTTPServer) authorize(w http.ResponseWriter, r *http.Request) bool {
	if s.authToken == "" {
		return true
	}
	token := bearerToken(r)
	if token == "" {
		token = strings.TrimSpace(r.URL.Query().Get("token"))
	}
	if token != s.authToken {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return false
	}
	return true
}

// handleComposeSessions dispatches everything under
// /api/compose/sessions. parts holds the path segments after
// "sessions".
func (s *HTTPServer) handleComposeSessions(w http.ResponseWriter, r *http.Request, parts []string) {
	if len(parts) == 0 {
		if r.Method == http.MethodPost {
			s.handleCreateSession(w, r)
			return
		}
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	session, err := s.service.Session(parts[0])
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, session.Snapshot())
		case http.MethodDelete:
			if err := s.service.CloseSession(session.ID); err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		default:
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		}
		return
	}

	switch {
	case r.Method == http.MethodPost && len(parts) == 2 && parts[1] == "value":
		var body struct {
			Doc  *richtext.Node `json:"doc"`
			Text string         `json:"text"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		session.ApplyExternal(richtext.Value{Doc: body.Doc, Text: body.Text})
		writeJSON(w, http.StatusOK, session.Snapshot())

	case r.Method == http.MethodPost && len(parts) == 2 && parts[1] == "edits":
		var body struct {
			Block int    `json:"block"`
			Text  string `json:"text"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if _, err := session.Edit(body.Block, body.Text); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, session.Snapshot())

	case r.Method == http.MethodPost && len(parts) == 2 && parts[1] == "images":
		s.handleInsertImage(w, r, session)

	case len(parts) >= 3 && parts[1] == "uploads":
		uploadID := parts[2]
		switch {
		case r.Method == http.MethodPost && len(parts) == 4 && parts[3] == "retry":
			if err := session.RetryUpload(uploadID); err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true, "uploads": session.Uploads()})
		case r.Method == http.MethodDelete && len(parts) == 3:
			removed := session.RemoveUpload(uploadID)
			writeJSON(w, http.StatusOK, map[string]any{"removed": removed, "uploads": session.Uploads()})
		default:
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		}

	case r.Method == http.MethodPost && len(parts) == 2 && parts[1] == "flush":
		result, err := session.Flush(r.Context())
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		state := session.Snapshot()
		writeJSON(w, http.StatusOK, map[string]any{"any_failed": result.AnyFailed, "value": state.Value, "uploads": state.Uploads})

	case r.Method == http.MethodPost && len(parts) == 2 && parts[1] == "submit":
		var body struct {
			Tags []string `json:"tags"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := session.Submit(r.Context(), body.Tags)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"payload": payload})

	case r.Method == http.MethodDelete && len(parts) == 2 && parts[1] == "draft":
		if err := session.ClearDraft(r.Context()); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	case r.Method == http.MethodGet && len(parts) == 3 && parts[1] == "blobs":
		s.handleServeBlob(w, session, parts[2])

	case r.Method == http.MethodGet && len(parts) == 2 && parts[1] == "events":
		s.handleEvents(w, r, session)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ContextKey string `json:"context_key"`
		Policy     string `json:"policy"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	session, restored, err := s.service.CreateSession(r.Context(), body.ContextKey, body.Policy)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	state := session.Snapshot()
	writeJSON(w, http.StatusCreated, map[string]any{
		"session_id":     state.SessionID,
		"context_key":    state.Key,
		"value":          state.Value,
		"uploads":        state.Uploads,
		"restored_draft": restored,
	})
}

// handleInsertImage accepts a multipart upload under the "file" field
// and inserts the image into the session document.
func (s *HTTPServer) handleInsertImage(w http.ResponseWriter, r *http.Request, session *compose.Session) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", fmt.Sprintf("File exceeds %d bytes", s.maxUpload), nil)
			return
		}
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "Could not parse multipart form", nil)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "file field is required", nil)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "Could not read file", nil)
		return
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(contentType, "image/") {
		writeError(w, http.StatusUnprocessableEntity, "UNSUPPORTED_MEDIA", "Only image uploads are supported", map[string]any{"content_type": contentType})
		return
	}

	id, err := session.InsertImage(upload.File{Name: header.Filename, ContentType: contentType, Data: data})
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"upload_id": id, "uploads": session.Uploads()})
}

// handleServeBlob serves the raw bytes behind a local image reference,
// so previews work before the hosted copy exists. ref is the opaque
// part of the local URL.
func (s *HTTPServer) handleServeBlob(w http.ResponseWriter, session *compose.Session, ref string) {
	blob, ok := session.ResolveBlob(localref.Scheme + ref)
	if !ok {
		writeError(w, http.StatusNotFound, "BLOB_NOT_FOUND", "Blob not found or already released", nil)
		return
	}
	contentType := blob.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(blob.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(blob.Data)
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, compose.ErrUploadsIncomplete) {
		return http.StatusUnprocessableEntity, "UPLOADS_INCOMPLETE", "Some uploads did not finish", nil
	}
	if errors.Is(err, compose.ErrLocalRef) {
		return http.StatusUnprocessableEntity, "LOCAL_REFERENCE", "Content still references unuploaded media", nil
	}
	if errors.Is(err, compose.ErrNoContent) {
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Content is required", nil
	}
	if errors.Is(err, upload.ErrUnknownUpload) {
		return http.StatusNotFound, "UPLOAD_NOT_FOUND", "Upload not found", nil
	}
	if errors.Is(err, draft.ErrNoDraft) {
		return http.StatusNotFound, "NO_DRAFT", "No draft stored", nil
	}
	if errors.Is(err, editor.ErrSelectionOutOfRange) || errors.Is(err, editor.ErrBlockNotEditable) {
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Invalid edit target", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}

type requestIDKey struct{}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID, r.Method, r.URL.Path, writer.status, time.Since(start).Milliseconds())
	})
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "unknown"
	}
	return hex.EncodeToString(buf)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	body := map[string]any{"code": code, "error": message}
	if details != nil {
		body["details"] = details
	}
	writeJSON(w, status, body)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return ""
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}
