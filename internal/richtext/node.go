// Package richtext models the composer's document tree and the
// projections derived from it. The wire format is the editor's JSON:
// nodes carry type, attrs, marks, text and child content, and decoding
// tolerates fields and attributes this version does not know about.
package richtext

// Node is one node of the document tree. Interior nodes hold Content,
// text leaves hold Text and Marks, image leaves hold everything in Attrs.
type Node struct {
	Type    string         `json:"type"`
	Attrs   map[string]any `json:"attrs,omitempty"`
	Text    string         `json:"text,omitempty"`
	Marks   []Mark         `json:"marks,omitempty"`
	Content []*Node        `json:"content,omitempty"`
}

// Mark is inline formatting attached to a text node.
type Mark struct {
	Type  string         `json:"type"`
	Attrs map[string]any `json:"attrs,omitempty"`
}

// Value pairs a document tree with its derived plain-text projection.
type Value struct {
	Doc  *Node  `json:"doc"`
	Text string `json:"text"`
}

// Node types used by the composer.
const (
	TypeDoc       = "doc"
	TypeParagraph = "paragraph"
	TypeText      = "text"
	TypeImage     = "image"
	TypeHardBreak = "hardBreak"
)

// Mark types.
const (
	MarkBold   = "bold"
	MarkItalic = "italic"
	MarkCode   = "code"
	MarkLink   = "link"
)

// Image node attributes.
const (
	AttrSrc       = "src"
	AttrAlt       = "alt"
	AttrUploadID  = "uploadId"
	AttrUploading = "uploading"
	AttrError     = "error"
	AttrWidth     = "width"
	AttrHeight    = "height"
)

// EmptyDoc returns a document with a single empty paragraph, the state
// of a freshly mounted compose surface.
func EmptyDoc() *Node {
	return &Node{Type: TypeDoc, Content: []*Node{{Type: TypeParagraph}}}
}

func NewDoc(blocks ...*Node) *Node {
	return &Node{Type: TypeDoc, Content: blocks}
}

// NewParagraph returns a paragraph block, empty when text is "".
func NewParagraph(text string) *Node {
	p := &Node{Type: TypeParagraph}
	if text != "" {
		p.Content = []*Node{NewText(text)}
	}
	return p
}

func NewText(text string, marks ...Mark) *Node {
	return &Node{Type: TypeText, Text: text, Marks: marks}
}

func NewImage(src, alt string) *Node {
	return &Node{Type: TypeImage, Attrs: map[string]any{AttrSrc: src, AttrAlt: alt}}
}

func LinkMark(href string) Mark {
	return Mark{Type: MarkLink, Attrs: map[string]any{"href": href}}
}

// IsImage reports whether n is an image leaf.
func (n *Node) IsImage() bool {
	return n != nil && n.Type == TypeImage
}

// AttrString returns the string attribute for key, or "" when absent or
// of another type.
func (n *Node) AttrString(key string) string {
	if n == nil || n.Attrs == nil {
		return ""
	}
	value, _ := n.Attrs[key].(string)
	return value
}

// AttrBool returns the boolean attribute for key. Absent or mistyped
// values read as false.
func (n *Node) AttrBool(key string) bool {
	if n == nil || n.Attrs == nil {
		return false
	}
	value, _ := n.Attrs[key].(bool)
	return value
}

// AttrInt returns the integer attribute for key. JSON numbers arrive as
// float64, so both representations are accepted.
func (n *Node) AttrInt(key string) int {
	if n == nil || n.Attrs == nil {
		return 0
	}
	switch value := n.Attrs[key].(type) {
	case int:
		return value
	case int64:
		return int(value)
	case float64:
		return int(value)
	}
	return 0
}

// SetAttr sets an attribute, allocating the map on first use.
func (n *Node) SetAttr(key string, value any) {
	if n == nil {
		return
	}
	if n.Attrs == nil {
		n.Attrs = make(map[string]any)
	}
	n.Attrs[key] = value
}

// Clone returns a deep copy of the tree rooted at n.
func (n *Node) Clone() *Node {
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
		out.Marks = make([]Mark, len(n.Marks))
		for i, mark := range n.Marks {
			copied := Mark{Type: mark.Type}
			if mark.Attrs != nil {
				copied.Attrs = make(map[string]any, len(mark.Attrs))
				for key, value := range mark.Attrs {
					copied.Attrs[key] = value
				}
			}
			out.Marks[i] = copied
		}
	}
	if n.Content != nil {
		out.Content = make([]*Node, len(n.Content))
		for i, child := range n.Content {
			out.Content[i] = child.Clone()
		}
	}
	return out
}

// ValueOf derives the full value pair for a tree.
func ValueOf(doc *Node) Value {
	return Value{Doc: doc, Text: PlainText(doc)}
}
