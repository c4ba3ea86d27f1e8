package editor

import "campushub/composer/internal/richtext"

// Synchronizer reconciles externally supplied document values with the
// surface without ping-ponging. Applying an external value suppresses
// the surface's own change notifications until the tick after the
// apply finishes, and fingerprint comparison drops echoes of values
// already seen in either direction.
type Synchronizer struct {
	surface  *BufferSurface
	emit     func(richtext.Value)
	lastHash string
	applying bool
	queue    []func()
}

// NewSynchronizer wires a surface to emit, the callback that receives
// every genuine local change as a full value pair.
func NewSynchronizer(surface *BufferSurface, emit func(richtext.Value)) *Synchronizer {
	if emit == nil {
		emit = func(richtext.Value) {}
	}
	return &Synchronizer{surface: surface, emit: emit}
}

// NotifyInternalChange handles a change notification raised by the
// surface itself. Notifications arriving while an external value is
// being applied are dropped outright, not deduplicated, so an external
// apply never echoes back out as a local change.
func (s *Synchronizer) NotifyInternalChange() {
	if s.applying {
		return
	}
	root := s.surface.Root()
	hash := richtext.Fingerprint(root)
	if richtext.SameFingerprint(hash, s.lastHash) {
		return
	}
	s.lastHash = hash
	s.emit(richtext.Value{Doc: root, Text: richtext.PlainText(root)})
}

// ApplyExternal pushes a value from outside the surface into it. A
// value whose tree fingerprints identically to the last synchronized
// state is a no-op; a tree that cannot be fingerprinted always counts
// as different. The suppression flag stays up until the next Settle
// pass, never just until ApplyExternal returns.
func (s *Synchronizer) ApplyExternal(v richtext.Value) {
	root := v.Doc
	if root == nil {
		root = richtext.EmptyDoc()
	}
	hash := richtext.Fingerprint(root)
	if richtext.SameFingerprint(hash, s.lastHash) {
		return
	}

	sel, hadSel := s.surface.Selection()
	s.applying = true
	s.surface.SetRoot(root)
	s.lastHash = hash
	if hadSel {
		// Restore is best effort; a blockless tree refuses any
		// selection and the cursor just resets.
		_ = s.surface.Select(sel.ClampTo(root))
	}
	s.Schedule(func() { s.applying = false })
}

// SetContent replaces the document programmatically through the same
// suppressed path as an external apply.
func (s *Synchronizer) SetContent(root *richtext.Node) {
	s.ApplyExternal(richtext.ValueOf(root))
}

// Schedule queues fn for the next Settle pass. The queue stands in for
// the host event loop's next tick.
func (s *Synchronizer) Schedule(fn func()) {
	s.queue = append(s.queue, fn)
}

// Settle drains the task queue, including tasks the drained tasks
// queue themselves.
func (s *Synchronizer) Settle() {
	for len(s.queue) > 0 {
		next := s.queue[0]
		s.queue = s.queue[1:]
		next()
	}
}
