// Package localref stages media bytes behind local-only preview
// references. A reference is valid for rendering inside the compose
// surface and nowhere else: drafts and submissions must not carry one.
package localref

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Scheme prefixes every reference handed out by a Registry.
const Scheme = "local://"

// IsLocal reports whether src is a local-only reference rather than a
// remote URL.
func IsLocal(src string) bool {
	return strings.HasPrefix(src, Scheme)
}

// Blob is the staged media behind a reference.
type Blob struct {
	Name        string
	ContentType string
	Data        []byte
}

// Registry tracks live references for one compose surface. References
// are freed exactly once; releasing twice is a no-op.
type Registry struct {
	mu    sync.Mutex
	blobs map[string]Blob
}

func NewRegistry() *Registry {
	return &Registry{blobs: make(map[string]Blob)}
}

// Alloc stages data and returns a fresh reference for it.
func (r *Registry) Alloc(name, contentType string, data []byte) string {
	ref := Scheme + uuid.NewString()
	r.mu.Lock()
	r.blobs[ref] = Blob{Name: name, ContentType: contentType, Data: data}
	r.mu.Unlock()
	return ref
}

// Resolve returns the staged blob for ref, if it is still live.
func (r *Registry) Resolve(ref string) (Blob, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	blob, ok := r.blobs[ref]
	return blob, ok
}

// Release frees ref and reports whether this call was the one that freed
// it. Unknown and already-released references return false.
func (r *Registry) Release(ref string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.blobs[ref]; !ok {
		return false
	}
	delete(r.blobs, ref)
	return true
}

// Len returns the number of live references.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.blobs)
}
