package richtext

import (
	"io"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"
)

var htmlSkipTags = map[string]bool{
	"script": true, "style": true, "head": true, "template": true,
	"noscript": true, "iframe": true, "svg": true,
	"nav": true, "footer": true, "aside": true,
}

var htmlBlockTags = map[string]bool{
	"p": true, "div": true, "section": true, "article": true,
	"ul": true, "ol": true, "li": true, "blockquote": true,
	"table": true, "tr": true, "figure": true, "figcaption": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// FromHTML converts pasted HTML into a document tree. Block elements
// become paragraph boundaries, b/strong/i/em/code/a become marks, and
// img elements become block-level image nodes.
func FromHTML(r io.Reader) (*Node, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	scope := findBody(root)
	if scope == nil {
		scope = root
	}

	st := &htmlState{doc: &Node{Type: TypeDoc}, para: &Node{Type: TypeParagraph}}
	st.walk(scope, nil)
	st.flush()
	if len(st.doc.Content) == 0 {
		st.doc.Content = []*Node{{Type: TypeParagraph}}
	}
	return st.doc, nil
}

type htmlState struct {
	doc  *Node
	para *Node
}

func (s *htmlState) walk(n *html.Node, marks []Mark) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			s.appendText(c.Data, marks)
		case html.ElementNode:
			s.element(c, marks)
		}
	}
}

func (s *htmlState) element(n *html.Node, marks []Mark) {
	tag := n.Data
	if htmlSkipTags[tag] {
		return
	}
	switch {
	case tag == "br":
		s.para.Content = append(s.para.Content, &Node{Type: TypeHardBreak})
	case tag == "hr":
		s.flush()
	case tag == "img":
		if src := htmlAttr(n, "src"); src != "" {
			s.flush()
			s.doc.Content = append(s.doc.Content, NewImage(src, htmlAttr(n, "alt")))
		}
	case tag == "pre":
		s.flush()
		if code := strings.Trim(rawText(n), "\n"); code != "" {
			s.doc.Content = append(s.doc.Content, &Node{
				Type:    TypeParagraph,
				Content: []*Node{NewText(code, Mark{Type: MarkCode})},
			})
		}
	case tag == "b" || tag == "strong":
		s.walk(n, appendMark(marks, Mark{Type: MarkBold}))
	case tag == "i" || tag == "em":
		s.walk(n, appendMark(marks, Mark{Type: MarkItalic}))
	case tag == "code":
		s.walk(n, appendMark(marks, Mark{Type: MarkCode}))
	case tag == "a":
		if href := htmlAttr(n, "href"); href != "" {
			s.walk(n, appendMark(marks, LinkMark(href)))
			return
		}
		s.walk(n, marks)
	case htmlBlockTags[tag]:
		s.flush()
		s.walk(n, marks)
		s.flush()
	default:
		s.walk(n, marks)
	}
}

func (s *htmlState) appendText(raw string, marks []Mark) {
	text := collapseSpace(raw)
	if len(s.para.Content) == 0 {
		text = strings.TrimLeft(text, " ")
	} else if prev := s.para.Content[len(s.para.Content)-1]; prev.Type == TypeText && strings.HasSuffix(prev.Text, " ") {
		text = strings.TrimLeft(text, " ")
	}
	if text == "" {
		return
	}
	s.para.Content = append(s.para.Content, NewText(text, marks...))
}

// flush closes the paragraph being built, dropping trailing whitespace.
func (s *htmlState) flush() {
	for len(s.para.Content) > 0 {
		last := s.para.Content[len(s.para.Content)-1]
		if last.Type != TypeText {
			break
		}
		last.Text = strings.TrimRight(last.Text, " ")
		if last.Text != "" {
			break
		}
		s.para.Content = s.para.Content[:len(s.para.Content)-1]
	}
	if len(s.para.Content) > 0 {
		s.doc.Content = append(s.doc.Content, s.para)
	}
	s.para = &Node{Type: TypeParagraph}
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if body := findBody(c); body != nil {
			return body
		}
	}
	return nil
}

func htmlAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// rawText concatenates the text nodes under n without collapsing
// whitespace, for pre blocks.
func rawText(n *html.Node) string {
	var b strings.Builder
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(n)
	return b.String()
}

// collapseSpace folds whitespace runs to single spaces, keeping a
// leading or trailing space when the input had one.
func collapseSpace(in string) string {
	fields := strings.Fields(in)
	if len(fields) == 0 {
		if in == "" {
			return ""
		}
		return " "
	}
	out := strings.Join(fields, " ")
	if first, _ := utf8.DecodeRuneInString(in); unicode.IsSpace(first) {
		out = " " + out
	}
	if last, _ := utf8.DecodeLastRuneInString(in); unicode.IsSpace(last) {
		out += " "
	}
	return out
}
