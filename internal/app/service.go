package app

import (
	"context"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"campushub/composer/internal/compose"
	"campushub/composer/internal/config"
	"campushub/composer/internal/draft"
	"campushub/composer/internal/richtext"
	"campushub/composer/internal/threads"
	"campushub/composer/internal/upload"
)

const defaultSessionTTL = 30 * time.Minute

// Service owns the live compose sessions plus the collaborators every
// session shares: the image uploader and the draft storage backend.
type Service struct {
	cfg      config.Config
	uploader upload.Uploader
	storage  draft.Storage

	mu       sync.Mutex
	sessions map[string]*compose.Session
	seen     map[string]time.Time
	ttl      time.Duration
}

// New builds a Service. storage may be nil, which disables draft
// persistence for every session.
func New(cfg config.Config, uploader upload.Uploader, storage draft.Storage) *Service {
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &Service{
		cfg:      cfg,
		uploader: uploader,
		storage:  storage,
		sessions: make(map[string]*compose.Session),
		seen:     make(map[string]time.Time),
		ttl:      ttl,
	}
}

// CreateSession opens a compose session for a context key and restores
// the stored draft when one exists. The bool reports whether a draft
// was restored.
func (s *Service) CreateSession(ctx context.Context, key, policy string) (*compose.Session, bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, false, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "context_key is required", nil)
	}
	if policy == "" {
		policy = s.cfg.UploadPolicy
	}
	uploadPolicy := upload.PolicyImmediate
	switch policy {
	case "", string(upload.PolicyImmediate):
	case string(upload.PolicyDeferred):
		uploadPolicy = upload.PolicyDeferred
	default:
		return nil, false, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown upload policy", map[string]any{"policy": policy})
	}

	var drafts *draft.Store
	if s.storage != nil {
		drafts = draft.NewStore(s.storage, "compose:"+key, s.cfg.DraftDebounce)
	}
	session := compose.NewSession(compose.Config{
		Key:      key,
		Uploader: s.uploader,
		Drafts:   drafts,
		Policy:   uploadPolicy,
	})
	restored := session.LoadDraft(ctx)

	s.mu.Lock()
	expired := s.pruneLocked()
	s.sessions[session.ID] = session
	s.seen[session.ID] = time.Now()
	s.mu.Unlock()
	closeAll(expired)

	return session, restored, nil
}

// Session resolves a live session by id and refreshes its idle clock.
func (s *Service) Session(id string) (*compose.Session, error) {
	s.mu.Lock()
	expired := s.pruneLocked()
	session, ok := s.sessions[id]
	if ok {
		s.seen[id] = time.Now()
	}
	s.mu.Unlock()
	closeAll(expired)

	if !ok {
		return nil, errSessionNotFound()
	}
	return session, nil
}

// CloseSession tears a session down and forgets it.
func (s *Service) CloseSession(id string) error {
	s.mu.Lock()
	session, ok := s.sessions[id]
	delete(s.sessions, id)
	delete(s.seen, id)
	s.mu.Unlock()

	if !ok {
		return errSessionNotFound()
	}
	session.Close()
	return nil
}

// pruneLocked collects sessions idle past the TTL. Caller holds s.mu;
// the returned sessions must be closed after the lock is released
// because Close flushes drafts to storage.
func (s *Service) pruneLocked() []*compose.Session {
	cutoff := time.Now().Add(-s.ttl)
	var expired []*compose.Session
	for id, at := range s.seen {
		if at.Before(cutoff) {
			if session, ok := s.sessions[id]; ok {
				expired = append(expired, session)
				delete(s.sessions, id)
			}
			delete(s.seen, id)
		}
	}
	return expired
}

func closeAll(sessions []*compose.Session) {
	for _, session := range sessions {
		log.Printf("closing idle compose session %s", session.ID)
		session.Close()
	}
}

// BuildThreadTree nests a flat comment list for display.
func (s *Service) BuildThreadTree(comments []threads.Comment) []*threads.Node {
	return threads.Build(comments)
}

// ImportMarkdown converts pasted markdown into a document value.
func (s *Service) ImportMarkdown(src []byte) richtext.Value {
	return richtext.ValueOf(richtext.FromMarkdown(src))
}

// ImportHTML converts pasted HTML into a document value.
func (s *Service) ImportHTML(r io.Reader) (richtext.Value, error) {
	doc, err := richtext.FromHTML(r)
	if err != nil {
		return richtext.Value{}, domainError(http.StatusBadRequest, "INVALID_BODY", "Could not parse HTML", nil)
	}
	return richtext.ValueOf(doc), nil
}

// Ping reports draft storage health for the readiness probe.
func (s *Service) Ping(ctx context.Context) error {
	type pinger interface {
		Ping(context.Context) error
	}
	if p, ok := s.storage.(pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Close shuts every live session down. Used on graceful shutdown so
// pending drafts get flushed.
func (s *Service) Close() {
	s.mu.Lock()
	sessions := make([]*compose.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}
	s.sessions = make(map[string]*compose.Session)
	s.seen = make(map[string]time.Time)
	s.mu.Unlock()

	for _, session := range sessions {
		session.Close()
	}
}
