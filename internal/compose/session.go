// Package compose glues one editing context together: the surface, the
// synchronizer, the upload coordinator, the local blob registry, and
// the draft store, all serialized behind a session lock.
package compose

import (
	"context"
	"log"
	"sync"
	"time"

	"campushub/composer/internal/draft"
	"campushub/composer/internal/editor"
	"campushub/composer/internal/localref"
	"campushub/composer/internal/richtext"
	"campushub/composer/internal/upload"
	"campushub/composer/internal/util"
)

// Config assembles a session's collaborators.
type Config struct {
	// Key identifies what is being composed, e.g. "post:new" or
	// "comment:1042". Drafts persist under it.
	Key      string
	Uploader upload.Uploader
	// Drafts may be nil to disable persistence.
	Drafts *draft.Store
	Policy upload.Policy
}

// State is the wire snapshot of a session.
type State struct {
	SessionID string         `json:"session_id"`
	Key       string         `json:"context_key"`
	Value     richtext.Value `json:"value"`
	Uploads   []upload.Entry `json:"uploads"`
}

// Session is one live compose context.
type Session struct {
	ID  string
	Key string

	mu      sync.Mutex
	surface *editor.BufferSurface
	syncer  *editor.Synchronizer
	coord   *upload.Coordinator
	refs    *localref.Registry
	drafts  *draft.Store
	value   richtext.Value

	subMu  sync.Mutex
	subs   map[chan Event]struct{}
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
}

func NewSession(cfg Config) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:      util.NewID("cmp"),
		Key:     cfg.Key,
		surface: editor.NewBufferSurface(),
		refs:    localref.NewRegistry(),
		drafts:  cfg.Drafts,
		subs:    make(map[chan Event]struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
	s.syncer = editor.NewSynchronizer(s.surface, s.handleChange)
	s.surface.OnChange(func() { s.syncer.Schedule(s.syncer.NotifyInternalChange) })

	if s.drafts != nil {
		// Fires from the debounce timer goroutine; publish takes
		// only the subscriber lock.
		s.drafts.OnSaved(func(at time.Time) {
			s.publish(Event{Type: EventDraft, SavedAt: &at})
		})
	}

	s.coord = upload.NewCoordinator(&sessionHost{s}, cfg.Uploader, s.refs)
	if cfg.Policy != "" {
		s.coord.SetPolicy(cfg.Policy)
	}
	s.coord.SetNotify(s.handleUpload)

	s.value = richtext.ValueOf(s.surface.Root())
	return s
}

// handleChange receives genuine local changes from the synchronizer.
// It always runs inside a Settle pass, under the session lock.
func (s *Session) handleChange(v richtext.Value) {
	s.value = v
	// The draft timer and event subscribers read off the session
	// lock, so they get a frozen copy of the tree.
	snapshot := richtext.Value{Doc: v.Doc.Clone(), Text: v.Text}
	if s.drafts != nil {
		s.drafts.Observe(snapshot)
	}
	s.publish(Event{Type: EventChange, Value: &snapshot})
}

// handleUpload fans upload status moves out to subscribers. It runs
// from upload goroutines and must not take the session lock.
func (s *Session) handleUpload(id string, status upload.Status, src string) {
	s.publish(Event{Type: EventUpload, UploadID: id, Status: status, Src: src})
}

// sessionHost adapts the session for the upload coordinator. Both
// entry points serialize on the session lock and settle queued work
// before returning, so coordinator mutations behave like any edit.
type sessionHost struct {
	s *Session
}

func (h *sessionHost) InsertAtCursor(nodes ...*richtext.Node) {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	h.s.surface.InsertAtCursor(nodes...)
	h.s.syncer.Settle()
}

func (h *sessionHost) MutateDocument(fn func(root *richtext.Node) bool) {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	h.s.surface.Mutate(fn)
	h.s.syncer.Settle()
}

// ApplyExternal pushes a full value from the transport into the
// session and returns the canonical value afterwards.
func (s *Session) ApplyExternal(v richtext.Value) richtext.Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncer.ApplyExternal(v)
	s.syncer.Settle()
	s.value = richtext.ValueOf(s.surface.Root())
	if s.drafts != nil {
		s.drafts.Observe(richtext.Value{Doc: s.value.Doc.Clone(), Text: s.value.Text})
	}
	return s.value
}

// Edit replaces one block's text, standing in for keystrokes arriving
// over the simple transport.
func (s *Session) Edit(block int, text string) (richtext.Value, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.surface.SetBlockText(block, text); err != nil {
		return s.value, err
	}
	s.syncer.Settle()
	return s.value, nil
}

// InsertImage hands a file to the coordinator, which splices the
// placeholder into the document and, policy permitting, starts the
// upload against the session's lifetime context.
func (s *Session) InsertImage(file upload.File) (string, error) {
	return s.coord.Insert(s.ctx, file)
}

// RetryUpload restarts a failed upload.
func (s *Session) RetryUpload(id string) error {
	return s.coord.Retry(s.ctx, id)
}

// RemoveUpload deletes the image for id from the document and drops
// its blob.
func (s *Session) RemoveUpload(id string) bool {
	return s.coord.Remove(id)
}

// Flush drives every pending upload to a terminal state.
func (s *Session) Flush(ctx context.Context) (upload.FlushResult, error) {
	return s.coord.Flush(ctx)
}

// Uploads snapshots the tracked uploads.
func (s *Session) Uploads() []upload.Entry {
	return s.coord.Entries()
}

// Value returns the current canonical value. The tree is shared; use
// Snapshot for something safe to encode concurrently.
func (s *Session) Value() richtext.Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Snapshot returns a deep-copied state safe to encode while the
// session keeps moving.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	value := richtext.Value{Doc: s.value.Doc.Clone(), Text: s.value.Text}
	s.mu.Unlock()
	return State{SessionID: s.ID, Key: s.Key, Value: value, Uploads: s.coord.Entries()}
}

// LoadDraft restores a persisted draft into the surface, reporting
// whether anything was restored.
func (s *Session) LoadDraft(ctx context.Context) bool {
	if s.drafts == nil {
		return false
	}
	snap, err := s.drafts.Load(ctx)
	if err != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncer.ApplyExternal(richtext.Value{Doc: snap.Doc, Text: snap.Text})
	s.syncer.Settle()
	s.value = richtext.ValueOf(s.surface.Root())
	return true
}

// ClearDraft drops the persisted draft.
func (s *Session) ClearDraft(ctx context.Context) error {
	if s.drafts == nil {
		return nil
	}
	return s.drafts.Clear(ctx)
}

// ResolveBlob serves the bytes behind a local reference.
func (s *Session) ResolveBlob(ref string) (localref.Blob, bool) {
	return s.refs.Resolve(ref)
}

// Subscribe returns a channel of session events plus a cancel func.
// Slow consumers lose events rather than stalling the session.
func (s *Session) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)
	s.subMu.Lock()
	if s.closed {
		s.subMu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.subs[ch] = struct{}{}
	s.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.subMu.Lock()
			if _, ok := s.subs[ch]; ok {
				delete(s.subs, ch)
				close(ch)
			}
			s.subMu.Unlock()
		})
	}
	return ch, cancel
}

func (s *Session) publish(ev Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if s.closed {
		return
	}
	for ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Submit finalizes the composition: pending uploads are flushed, the
// payload is validated and shaped, the draft is cleared, and the
// surface resets to empty. The caller delivers the returned payload.
func (s *Session) Submit(ctx context.Context, tags []string) (Payload, error) {
	res, err := s.coord.Flush(ctx)
	if err != nil {
		return Payload{}, err
	}
	if res.AnyFailed {
		return Payload{}, ErrUploadsIncomplete
	}

	s.mu.Lock()
	value := richtext.Value{Doc: s.value.Doc.Clone(), Text: s.value.Text}
	s.mu.Unlock()

	payload, err := BuildPayload(value, tags)
	if err != nil {
		return Payload{}, err
	}

	if s.drafts != nil {
		if err := s.drafts.Clear(ctx); err != nil {
			log.Printf("session %s: clear draft: %v", s.ID, err)
		}
	}

	s.mu.Lock()
	s.syncer.SetContent(richtext.EmptyDoc())
	s.syncer.Settle()
	s.value = richtext.ValueOf(s.surface.Root())
	s.mu.Unlock()

	return payload, nil
}

// Close tears the session down: subscribers close, the upload context
// cancels, any pending draft write goes out, and local blobs release.
func (s *Session) Close() {
	s.subMu.Lock()
	if s.closed {
		s.subMu.Unlock()
		return
	}
	s.closed = true
	for ch := range s.subs {
		close(ch)
	}
	s.subs = make(map[chan Event]struct{})
	s.subMu.Unlock()

	s.cancel()
	if s.drafts != nil {
		s.drafts.Flush()
	}
	s.coord.ReleaseAll()
}
