package richtext

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// FromMarkdown converts pasted markdown into a document tree. Headings
// and list items flatten to paragraphs, emphasis and links survive as
// marks, and inline images are lifted to block-level image nodes.
func FromMarkdown(src []byte) *Node {
	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(src))

	out := &Node{Type: TypeDoc}
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		appendMarkdownBlock(out, n, src)
	}
	if len(out.Content) == 0 {
		out.Content = []*Node{{Type: TypeParagraph}}
	}
	return out
}

func appendMarkdownBlock(out *Node, n ast.Node, src []byte) {
	switch block := n.(type) {
	case *ast.Heading, *ast.Paragraph, *ast.TextBlock:
		para := collectInlines(out, &Node{Type: TypeParagraph}, n, src, nil)
		if len(para.Content) > 0 {
			out.Content = append(out.Content, para)
		}
	case *ast.List:
		for item := block.FirstChild(); item != nil; item = item.NextSibling() {
			for child := item.FirstChild(); child != nil; child = child.NextSibling() {
				appendMarkdownBlock(out, child, src)
			}
		}
	case *ast.Blockquote:
		for child := block.FirstChild(); child != nil; child = child.NextSibling() {
			appendMarkdownBlock(out, child, src)
		}
	case *ast.FencedCodeBlock:
		if code := blockLines(block, src); code != "" {
			out.Content = append(out.Content, &Node{
				Type:    TypeParagraph,
				Content: []*Node{NewText(code, Mark{Type: MarkCode})},
			})
		}
	case *ast.CodeBlock:
		if code := blockLines(block, src); code != "" {
			out.Content = append(out.Content, &Node{
				Type:    TypeParagraph,
				Content: []*Node{NewText(code, Mark{Type: MarkCode})},
			})
		}
	}
}

// collectInlines fills para with the inline children of n. Images are
// block-level in this model, so hitting one closes the paragraph being
// built and opens a fresh one; the currently open paragraph is returned.
func collectInlines(out, para *Node, n ast.Node, src []byte, marks []Mark) *Node {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch inline := c.(type) {
		case *ast.Text:
			if segment := string(inline.Value(src)); segment != "" {
				para.Content = append(para.Content, NewText(segment, marks...))
			}
			if inline.HardLineBreak() {
				para.Content = append(para.Content, &Node{Type: TypeHardBreak})
			} else if inline.SoftLineBreak() {
				para.Content = append(para.Content, NewText(" ", marks...))
			}
		case *ast.String:
			if len(inline.Value) > 0 {
				para.Content = append(para.Content, NewText(string(inline.Value), marks...))
			}
		case *ast.Emphasis:
			mark := Mark{Type: MarkItalic}
			if inline.Level >= 2 {
				mark = Mark{Type: MarkBold}
			}
			para = collectInlines(out, para, c, src, appendMark(marks, mark))
		case *ast.Link:
			para = collectInlines(out, para, c, src, appendMark(marks, LinkMark(string(inline.Destination))))
		case *ast.AutoLink:
			url := string(inline.URL(src))
			para.Content = append(para.Content, NewText(url, appendMark(marks, LinkMark(url))...))
		case *ast.CodeSpan:
			para = collectInlines(out, para, c, src, appendMark(marks, Mark{Type: MarkCode}))
		case *ast.Image:
			if len(para.Content) > 0 {
				out.Content = append(out.Content, para)
			}
			out.Content = append(out.Content, NewImage(string(inline.Destination), string(inline.Text(src))))
			para = &Node{Type: TypeParagraph}
		default:
			para = collectInlines(out, para, c, src, marks)
		}
	}
	return para
}

func appendMark(marks []Mark, mark Mark) []Mark {
	out := make([]Mark, 0, len(marks)+1)
	out = append(out, marks...)
	return append(out, mark)
}

// blockLines joins the raw source lines of a block node.
func blockLines(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		buf.Write(line.Value(src))
	}
	return strings.TrimRight(buf.String(), "\n")
}
