package richtext

import "strings"

// PlainText renders the tree as plain text: text leaves concatenate,
// blocks join with newlines, hard breaks become newlines, and images
// contribute nothing.
func PlainText(n *Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	writePlainText(&b, n)
	return strings.TrimRight(b.String(), "\n")
}

func writePlainText(b *strings.Builder, n *Node) {
	switch n.Type {
	case TypeText:
		b.WriteString(n.Text)
	case TypeHardBreak:
		b.WriteByte('\n')
	case TypeImage:
	default:
		for i, child := range n.Content {
			if child == nil {
				continue
			}
			if i > 0 && isBlock(child) {
				b.WriteByte('\n')
			}
			writePlainText(b, child)
		}
	}
}

func isBlock(n *Node) bool {
	switch n.Type {
	case TypeText, TypeHardBreak:
		return false
	}
	return true
}
