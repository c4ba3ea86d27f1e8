package draft

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"campushub/composer/internal/richtext"
)

// DefaultDebounce is how long typing has to pause before a draft write
// goes out.
const DefaultDebounce = 1200 * time.Millisecond

// Snapshot is the persisted draft shape.
type Snapshot struct {
	Doc     *richtext.Node `json:"doc"`
	Text    string         `json:"text"`
	SavedAt time.Time      `json:"saved_at"`
}

// Store debounces the draft writes of one compose context. Values are
// observed on every change; a write fires only after the configured
// quiet period, carries a sanitized tree, and is skipped entirely when
// the sanitized content matches what was last persisted.
type Store struct {
	storage Storage
	key     string
	delay   time.Duration
	clock   func() time.Time
	onSaved func(at time.Time)

	mu       sync.Mutex
	timer    *time.Timer
	pending  *richtext.Value
	lastHash string
}

func NewStore(storage Storage, key string, delay time.Duration) *Store {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Store{storage: storage, key: key, delay: delay, clock: time.Now}
}

// Key returns the storage key this store writes under.
func (s *Store) Key() string {
	return s.key
}

// OnSaved registers a hook fired after a draft write lands. Skipped
// and failed writes do not fire it. Set it before the first Observe.
func (s *Store) OnSaved(fn func(at time.Time)) {
	s.onSaved = fn
}

// Observe notes a new document value and re-arms the debounce timer.
func (s *Store) Observe(v richtext.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value := v
	s.pending = &value
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.delay, s.savePending)
}

// Flush writes any pending draft immediately instead of waiting out
// the debounce.
func (s *Store) Flush() {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	v := s.pending
	s.pending = nil
	s.mu.Unlock()
	if v != nil {
		s.write(*v)
	}
}

func (s *Store) savePending() {
	s.mu.Lock()
	v := s.pending
	s.pending = nil
	s.mu.Unlock()
	if v != nil {
		s.write(*v)
	}
}

// write persists one value. Images that never finished uploading are
// stripped first, and a value whose sanitized tree matches the last
// persisted one is skipped. Storage trouble is logged and swallowed:
// drafts are best effort and must never surface to the editor.
func (s *Store) write(v richtext.Value) {
	clean := richtext.StripLocalImages(v.Doc)
	hash := richtext.Fingerprint(clean)

	s.mu.Lock()
	last := s.lastHash
	s.mu.Unlock()
	if richtext.SameFingerprint(hash, last) {
		return
	}

	at := s.clock().UTC()
	payload, err := json.Marshal(Snapshot{Doc: clean, Text: v.Text, SavedAt: at})
	if err != nil {
		log.Printf("draft %s: marshal: %v", s.key, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.storage.Put(ctx, s.key, payload); err != nil {
		log.Printf("draft %s: save: %v", s.key, err)
		return
	}

	s.mu.Lock()
	s.lastHash = hash
	s.mu.Unlock()
	if s.onSaved != nil {
		s.onSaved(at)
	}
}

// Load returns the stored draft. Anything unusable, from a storage
// miss to a corrupt or empty payload, degrades to ErrNoDraft; a broken
// draft must never block composing.
func (s *Store) Load(ctx context.Context) (Snapshot, error) {
	payload, err := s.storage.Get(ctx, s.key)
	if err != nil {
		return Snapshot{}, ErrNoDraft
	}
	var snap Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return Snapshot{}, ErrNoDraft
	}
	if snap.Doc == nil {
		return Snapshot{}, ErrNoDraft
	}
	// Old payloads could predate sanitize-on-save.
	snap.Doc = richtext.StripLocalImages(snap.Doc)
	if strings.TrimSpace(richtext.PlainText(snap.Doc)) == "" && !richtext.HasImages(snap.Doc) {
		return Snapshot{}, ErrNoDraft
	}
	return snap, nil
}

// Clear drops the stored draft along with anything still pending.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.pending = nil
	s.lastHash = ""
	s.mu.Unlock()

	if err := s.storage.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("clear draft: %w", err)
	}
	return nil
}
