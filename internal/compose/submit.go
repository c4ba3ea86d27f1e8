package compose

import (
	"errors"
	"fmt"
	"strings"

	"campushub/composer/internal/richtext"
)

// MaxTags caps how many tags a submission carries.
const MaxTags = 8

var (
	ErrLocalRef          = errors.New("content references unuploaded media")
	ErrNoContent         = errors.New("missing content")
	ErrUploadsIncomplete = errors.New("uploads incomplete")
)

// Payload is the submission body handed to the forum.
type Payload struct {
	ContentText string         `json:"content_text"`
	ContentTree *richtext.Node `json:"content_tree,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
}

// BuildPayload validates a value and shapes it for submission. A tree
// still holding local references is refused outright, whatever the
// upload bookkeeping says: this is the last gate before content leaves
// the composer.
func BuildPayload(v richtext.Value, tags []string) (Payload, error) {
	if refs := richtext.LocalRefs(v.Doc); len(refs) > 0 {
		return Payload{}, fmt.Errorf("%w: %d pending", ErrLocalRef, len(refs))
	}
	if strings.TrimSpace(v.Text) == "" && !richtext.HasImages(v.Doc) {
		return Payload{}, ErrNoContent
	}
	return Payload{
		ContentText: v.Text,
		ContentTree: v.Doc,
		Tags:        NormalizeTags(tags),
	}, nil
}

// NormalizeTags trims, drops empties and exact duplicates, and caps
// the list at MaxTags. First occurrence wins.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
		if len(out) == MaxTags {
			break
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
