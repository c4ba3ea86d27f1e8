package richtext

import "campushub/composer/internal/localref"

// StripLocalImages returns a rebuilt tree with every image node whose
// src is still a local-only reference removed outright. Sibling order is
// preserved and the input is never modified, so the operation is
// idempotent: a second pass finds nothing left to strip. Persisted
// drafts and submission payloads go through here.
func StripLocalImages(n *Node) *Node {
	if n == nil {
		return nil
	}
	out := &Node{Type: n.Type, Text: n.Text}
	if n.Attrs != nil {
		out.Attrs = make(map[string]any, len(n.Attrs))
		for key, value := range n.Attrs {
			out.Attrs[key] = value
		}
	}
	if n.Marks != nil {
		out.Marks = append(out.Marks, n.Marks...)
	}
	for _, child := range n.Content {
		if child == nil {
			continue
		}
		if child.IsImage() && localref.IsLocal(child.AttrString(AttrSrc)) {
			continue
		}
		out.Content = append(out.Content, StripLocalImages(child))
	}
	return out
}
