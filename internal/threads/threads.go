// Package threads builds nested comment trees out of the flat rows the
// forum stores.
package threads

import (
	"encoding/json"
	"sort"
	"time"
)

// Comment is one flat comment row.
type Comment struct {
	ID          string          `json:"id"`
	ParentID    *string         `json:"parent_id"`
	Author      string          `json:"author,omitempty"`
	Content     string          `json:"content,omitempty"`
	ContentTree json.RawMessage `json:"content_tree,omitempty"`
	Score       int             `json:"score,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Node is a comment with its replies attached. Children is always
// present, empty for leaves.
type Node struct {
	Comment
	Children []*Node `json:"children"`
}

// Build turns a flat comment batch into a forest. Top-level threads
// order newest first; replies order oldest first at every deeper
// level. A comment whose parent is missing from the batch is promoted
// to a top-level thread rather than dropped.
func Build(comments []Comment) []*Node {
	byID := make(map[string]*Node, len(comments))
	nodes := make([]*Node, len(comments))
	for i, c := range comments {
		n := &Node{Comment: c, Children: []*Node{}}
		nodes[i] = n
		byID[c.ID] = n
	}

	roots := []*Node{}
	for _, n := range nodes {
		pid := n.ParentID
		if pid != nil && *pid != "" && *pid != n.ID {
			if parent, ok := byID[*pid]; ok {
				parent.Children = append(parent.Children, n)
				continue
			}
		}
		roots = append(roots, n)
	}

	sortLevel(roots, true)
	return roots
}

// sortLevel orders one sibling level and recurses into the replies.
// Only the top level runs newest first.
func sortLevel(nodes []*Node, newestFirst bool) {
	sort.SliceStable(nodes, func(i, j int) bool {
		if newestFirst {
			return nodes[i].CreatedAt.After(nodes[j].CreatedAt)
		}
		return nodes[i].CreatedAt.Before(nodes[j].CreatedAt)
	})
	for _, n := range nodes {
		sortLevel(n.Children, false)
	}
}
