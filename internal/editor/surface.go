// Package editor models the editing surface the composer drives: a
// document root, a cursor, and the change notifications the
// synchronizer reconciles against externally supplied values.
package editor

import (
	"errors"
	"unicode/utf8"

	"campushub/composer/internal/richtext"
)

var (
	ErrSelectionOutOfRange = errors.New("selection out of range")
	ErrBlockNotEditable    = errors.New("block is not editable")
)

// Selection addresses the cursor as a top-level block index plus a rune
// offset into that block's plain text.
type Selection struct {
	Block  int `json:"block"`
	Offset int `json:"offset"`
}

// ClampTo returns the nearest valid selection for root. A selection
// recorded against one tree stays usable after the tree is replaced.
func (s Selection) ClampTo(root *richtext.Node) Selection {
	if root == nil || len(root.Content) == 0 {
		return Selection{}
	}
	out := s
	if out.Block < 0 {
		out.Block = 0
	}
	if out.Block >= len(root.Content) {
		out.Block = len(root.Content) - 1
	}
	max := utf8.RuneCountInString(richtext.PlainText(root.Content[out.Block]))
	if out.Offset < 0 {
		out.Offset = 0
	}
	if out.Offset > max {
		out.Offset = max
	}
	return out
}

// Surface is the editor contract the synchronizer drives.
type Surface interface {
	Root() *richtext.Node
	SetRoot(root *richtext.Node)
	Selection() (Selection, bool)
	Select(sel Selection) error
}

// BufferSurface is an in-memory Surface. Change notifications fire
// synchronously from every mutating call, the way a headless editor
// view would raise them.
type BufferSurface struct {
	root   *richtext.Node
	sel    Selection
	hasSel bool
	notify []func()
}

func NewBufferSurface() *BufferSurface {
	return &BufferSurface{root: richtext.EmptyDoc()}
}

// OnChange registers fn to run after every document mutation. Selection
// moves alone do not count as mutations.
func (b *BufferSurface) OnChange(fn func()) {
	b.notify = append(b.notify, fn)
}

func (b *BufferSurface) changed() {
	for _, fn := range b.notify {
		fn()
	}
}

func (b *BufferSurface) Root() *richtext.Node {
	return b.root
}

// SetRoot swaps the whole document. The selection is dropped; callers
// that want to keep it re-apply a clamped copy afterwards.
func (b *BufferSurface) SetRoot(root *richtext.Node) {
	if root == nil {
		root = richtext.EmptyDoc()
	}
	b.root = root
	b.hasSel = false
	b.changed()
}

func (b *BufferSurface) Selection() (Selection, bool) {
	return b.sel, b.hasSel
}

// Select moves the cursor. Unlike ClampTo it is strict: an out of range
// selection is refused rather than adjusted.
func (b *BufferSurface) Select(sel Selection) error {
	if sel.Block < 0 || sel.Block >= len(b.root.Content) {
		return ErrSelectionOutOfRange
	}
	max := utf8.RuneCountInString(richtext.PlainText(b.root.Content[sel.Block]))
	if sel.Offset < 0 || sel.Offset > max {
		return ErrSelectionOutOfRange
	}
	b.sel = sel
	b.hasSel = true
	return nil
}

// InsertAtCursor splices blocks in after the block holding the cursor,
// or at the end of the document when there is no selection. The cursor
// lands on the last inserted block.
func (b *BufferSurface) InsertAtCursor(nodes ...*richtext.Node) {
	if len(nodes) == 0 {
		return
	}
	at := len(b.root.Content)
	if b.hasSel && b.sel.Block+1 < at {
		at = b.sel.Block + 1
	}
	content := make([]*richtext.Node, 0, len(b.root.Content)+len(nodes))
	content = append(content, b.root.Content[:at]...)
	content = append(content, nodes...)
	content = append(content, b.root.Content[at:]...)
	b.root.Content = content
	b.sel = Selection{Block: at + len(nodes) - 1}
	b.hasSel = true
	b.changed()
}

// SetBlockText replaces the text of one paragraph block.
func (b *BufferSurface) SetBlockText(block int, text string) error {
	if block < 0 || block >= len(b.root.Content) {
		return ErrSelectionOutOfRange
	}
	target := b.root.Content[block]
	if target.IsImage() {
		return ErrBlockNotEditable
	}
	if text == "" {
		target.Content = nil
	} else {
		target.Content = []*richtext.Node{richtext.NewText(text)}
	}
	b.sel = Selection{Block: block, Offset: utf8.RuneCountInString(text)}
	b.hasSel = true
	b.changed()
	return nil
}

// Mutate runs fn against the document root and fires change
// notifications when fn reports that it modified the tree.
func (b *BufferSurface) Mutate(fn func(root *richtext.Node) bool) {
	if fn(b.root) {
		b.changed()
	}
}
