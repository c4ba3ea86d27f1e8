package upload

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"campushub/composer/internal/localref"
	"campushub/composer/internal/richtext"
)

// Status of one tracked upload.
type Status string

const (
	StatusPending   Status = "pending"
	StatusUploading Status = "uploading"
	StatusSuccess   Status = "success"
	StatusError     Status = "error"
)

var ErrUnknownUpload = errors.New("unknown upload")

// Policy controls when a newly inserted file starts uploading.
type Policy string

const (
	// PolicyImmediate starts the upload as soon as the file is inserted.
	PolicyImmediate Policy = "immediate"
	// PolicyDeferred leaves files pending until Flush.
	PolicyDeferred Policy = "deferred"
)

// Host is the document side the coordinator drives. Both calls are
// serialized by the host's owner; the coordinator never holds its own
// lock while making them.
type Host interface {
	InsertAtCursor(nodes ...*richtext.Node)
	MutateDocument(fn func(root *richtext.Node) bool)
}

type entry struct {
	id       string
	file     File
	localRef string
	status   Status
	attempt  chan struct{} // closed when the running attempt ends
}

// Entry is a read-only snapshot of one tracked upload.
type Entry struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Status   Status `json:"status"`
	LocalRef string `json:"local_ref"`
}

// FlushResult reports the outcome of a flush pass.
type FlushResult struct {
	AnyFailed bool `json:"any_failed"`
}

// Coordinator tracks every image inserted into the document from
// insertion through durable upload: it allocates the local blob,
// places the image node, rewrites the node when the upload resolves,
// and guarantees the blob is released exactly once.
type Coordinator struct {
	host     Host
	uploader Uploader
	refs     *localref.Registry
	launch   func(func())
	notify   func(id string, status Status, src string)

	mu      sync.Mutex
	policy  Policy
	entries map[string]*entry
	order   []string
}

func NewCoordinator(host Host, uploader Uploader, refs *localref.Registry) *Coordinator {
	return &Coordinator{
		host:     host,
		uploader: uploader,
		refs:     refs,
		launch:   func(fn func()) { go fn() },
		policy:   PolicyImmediate,
		entries:  make(map[string]*entry),
	}
}

func (c *Coordinator) SetPolicy(p Policy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p == PolicyDeferred {
		c.policy = PolicyDeferred
	} else {
		c.policy = PolicyImmediate
	}
}

// SetNotify registers the status listener. Call before the first
// Insert; the coordinator invokes it from upload goroutines.
func (c *Coordinator) SetNotify(fn func(id string, status Status, src string)) {
	c.notify = fn
}

func (c *Coordinator) publish(id string, status Status, src string) {
	if c.notify != nil {
		c.notify(id, status, src)
	}
}

// Insert registers file, stores its bytes behind a fresh local
// reference, and splices an image node plus an empty paragraph into
// the document at the cursor. Under the immediate policy the upload
// starts right away.
func (c *Coordinator) Insert(ctx context.Context, file File) (string, error) {
	if len(file.Data) == 0 {
		return "", errors.New("empty file")
	}
	id := uuid.NewString()
	ref := c.refs.Alloc(file.Name, file.ContentType, file.Data)

	node := richtext.NewImage(ref, file.Name)
	node.SetAttr(richtext.AttrUploadID, id)

	c.mu.Lock()
	c.entries[id] = &entry{id: id, file: file, localRef: ref, status: StatusPending}
	c.order = append(c.order, id)
	policy := c.policy
	c.mu.Unlock()

	// The empty paragraph keeps the cursor usable right after the image.
	c.host.InsertAtCursor(node, richtext.NewParagraph(""))
	c.publish(id, StatusPending, ref)

	if policy == PolicyImmediate {
		c.StartUpload(ctx, id)
	}
	return id, nil
}

// StartUpload begins an attempt for id. Unknown ids and attempts
// already running are left alone.
func (c *Coordinator) StartUpload(ctx context.Context, id string) {
	c.mu.Lock()
	e, ok := c.entries[id]
	if !ok || e.status == StatusUploading {
		c.mu.Unlock()
		return
	}
	e.status = StatusUploading
	e.attempt = make(chan struct{})
	file := e.file
	c.mu.Unlock()

	c.markUploading(id)
	c.publish(id, StatusUploading, "")
	c.launch(func() {
		res, err := c.uploader.Upload(ctx, file)
		c.finish(id, res, err)
	})
}

// Retry restarts a failed or pending upload.
func (c *Coordinator) Retry(ctx context.Context, id string) error {
	c.mu.Lock()
	_, ok := c.entries[id]
	c.mu.Unlock()
	if !ok {
		return ErrUnknownUpload
	}
	c.StartUpload(ctx, id)
	return nil
}

// Remove deletes the image node for id from the document, together
// with the empty spacer paragraph inserted after it, and forgets the
// upload. When the node is no longer in the tree nothing happens at
// all; if an attempt is still in flight its resolution finds no entry
// and goes nowhere.
func (c *Coordinator) Remove(id string) bool {
	removed := false
	c.host.MutateDocument(func(root *richtext.Node) bool {
		parent, index := richtext.FindImagePosition(root, id)
		if parent == nil {
			return false
		}
		end := index + 1
		if end < len(parent.Content) && isEmptySpacer(parent.Content[end]) {
			end++
		}
		parent.Content = append(parent.Content[:index], parent.Content[end:]...)
		removed = true
		return true
	})
	if !removed {
		return false
	}

	c.mu.Lock()
	e, ok := c.entries[id]
	var ref string
	if ok {
		ref = e.localRef
		delete(c.entries, id)
		c.removeFromOrder(id)
		c.endAttempt(e)
	}
	c.mu.Unlock()
	if ok {
		c.refs.Release(ref)
	}
	return true
}

// Flush drives every tracked upload to a terminal state, in insertion
// order, and reports whether any failed. Pending and errored entries
// get one fresh attempt per call; calling with nothing tracked is a
// cheap no-op, and repeated calls are safe.
func (c *Coordinator) Flush(ctx context.Context) (FlushResult, error) {
	attempted := make(map[string]bool)
	for {
		c.mu.Lock()
		var next *entry
		var inflight chan struct{}
		for _, id := range c.order {
			e := c.entries[id]
			if e == nil {
				continue
			}
			switch e.status {
			case StatusPending, StatusError:
				if next == nil && !attempted[id] {
					next = e
				}
			case StatusUploading:
				if inflight == nil {
					inflight = e.attempt
				}
			}
		}
		if next == nil && inflight == nil {
			anyFailed := false
			for _, e := range c.entries {
				if e.status == StatusError {
					anyFailed = true
					break
				}
			}
			c.mu.Unlock()
			return FlushResult{AnyFailed: anyFailed}, nil
		}

		if next != nil {
			attempted[next.id] = true
			next.status = StatusUploading
			next.attempt = make(chan struct{})
			id, file := next.id, next.file
			c.mu.Unlock()

			c.markUploading(id)
			c.publish(id, StatusUploading, "")
			res, err := c.uploader.Upload(ctx, file)
			c.finish(id, res, err)
			continue
		}

		c.mu.Unlock()
		select {
		case <-inflight:
		case <-ctx.Done():
			return FlushResult{AnyFailed: true}, ctx.Err()
		}
	}
}

// Entries snapshots the tracked uploads in insertion order.
func (c *Coordinator) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entry, 0, len(c.order))
	for _, id := range c.order {
		if e := c.entries[id]; e != nil {
			out = append(out, Entry{ID: e.id, Name: e.file.Name, Status: e.status, LocalRef: e.localRef})
		}
	}
	return out
}

// ReleaseAll forgets every tracked upload and frees its blob. Session
// teardown only; the document is not touched.
func (c *Coordinator) ReleaseAll() {
	c.mu.Lock()
	refs := make([]string, 0, len(c.entries))
	for _, e := range c.entries {
		refs = append(refs, e.localRef)
		c.endAttempt(e)
	}
	c.entries = make(map[string]*entry)
	c.order = nil
	c.mu.Unlock()
	for _, ref := range refs {
		c.refs.Release(ref)
	}
}

func (c *Coordinator) markUploading(id string) {
	c.host.MutateDocument(func(root *richtext.Node) bool {
		node := richtext.FindImage(root, id)
		if node == nil {
			return false
		}
		node.SetAttr(richtext.AttrUploading, true)
		node.SetAttr(richtext.AttrError, false)
		return true
	})
}

// finish settles one attempt. An entry that vanished mid-flight was
// removed; its blob is already released, so the result is dropped on
// the floor.
func (c *Coordinator) finish(id string, res Result, err error) {
	c.mu.Lock()
	e, ok := c.entries[id]
	if !ok {
		c.mu.Unlock()
		return
	}

	if err != nil {
		e.status = StatusError
		c.endAttempt(e)
		c.mu.Unlock()

		c.host.MutateDocument(func(root *richtext.Node) bool {
			node := richtext.FindImage(root, id)
			if node == nil {
				return false
			}
			node.SetAttr(richtext.AttrUploading, false)
			node.SetAttr(richtext.AttrError, true)
			return true
		})
		c.publish(id, StatusError, "")
		return
	}

	ref := e.localRef
	delete(c.entries, id)
	c.removeFromOrder(id)
	c.endAttempt(e)
	c.mu.Unlock()

	// Rewrite the node if it is still there; when the user deleted the
	// image while the bytes were in flight the tree stays untouched and
	// the hosted copy is simply never referenced.
	c.host.MutateDocument(func(root *richtext.Node) bool {
		node := richtext.FindImage(root, id)
		if node == nil {
			return false
		}
		node.SetAttr(richtext.AttrSrc, res.URL)
		if res.Width > 0 {
			node.SetAttr(richtext.AttrWidth, res.Width)
		}
		if res.Height > 0 {
			node.SetAttr(richtext.AttrHeight, res.Height)
		}
		delete(node.Attrs, richtext.AttrUploading)
		delete(node.Attrs, richtext.AttrError)
		return true
	})
	c.refs.Release(ref)
	c.publish(id, StatusSuccess, res.URL)
}

func (c *Coordinator) endAttempt(e *entry) {
	if e.attempt != nil {
		close(e.attempt)
		e.attempt = nil
	}
}

func (c *Coordinator) removeFromOrder(id string) {
	for i, other := range c.order {
		if other == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

func isEmptySpacer(n *richtext.Node) bool {
	return n != nil && n.Type == richtext.TypeParagraph && len(n.Content) == 0
}
