package richtext

import "campushub/composer/internal/localref"

// Walk visits n and every descendant in document order until fn returns
// false. It reports whether the walk ran to completion.
func Walk(n *Node, fn func(*Node) bool) bool {
	if n == nil {
		return true
	}
	if !fn(n) {
		return false
	}
	for _, child := range n.Content {
		if !Walk(child, fn) {
			return false
		}
	}
	return true
}

// FindImage scans the tree for the image node tagged with uploadID.
func FindImage(root *Node, uploadID string) *Node {
	var found *Node
	Walk(root, func(n *Node) bool {
		if n.IsImage() && n.AttrString(AttrUploadID) == uploadID {
			found = n
			return false
		}
		return true
	})
	return found
}

// FindImagePosition locates the image tagged with uploadID and returns
// its parent and index, or (nil, -1) when absent.
func FindImagePosition(root *Node, uploadID string) (*Node, int) {
	var parent *Node
	index := -1
	Walk(root, func(n *Node) bool {
		for i, child := range n.Content {
			if child.IsImage() && child.AttrString(AttrUploadID) == uploadID {
				parent = n
				index = i
				return false
			}
		}
		return true
	})
	return parent, index
}

// HasImages reports whether the tree contains any image node.
func HasImages(root *Node) bool {
	has := false
	Walk(root, func(n *Node) bool {
		if n.IsImage() {
			has = true
			return false
		}
		return true
	})
	return has
}

// LocalRefs collects the src of every image node still pointing at a
// local-only reference.
func LocalRefs(root *Node) []string {
	var refs []string
	Walk(root, func(n *Node) bool {
		if n.IsImage() {
			if src := n.AttrString(AttrSrc); localref.IsLocal(src) {
				refs = append(refs, src)
			}
		}
		return true
	})
	return refs
}
