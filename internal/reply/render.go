package reply

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/vidsum/vidsumd/internal/llm"
)

// RenderPlain flattens markdown into plain text suitable for a comment
// box that renders no formatting. Headings and paragraphs become lines,
// list items keep a leading dash, inline markup is dropped.
func RenderPlain(markdown string) string {
	src := []byte(markdown)
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var b strings.Builder

	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus,
		error) {

		switch node := n.(type) {
		case *ast.Text:
			if entering {
				b.Write(node.Segment.Value(src))
				if node.SoftLineBreak() ||
					node.HardLineBreak() {

					b.WriteByte('\n')
				}
			}

		case *ast.Paragraph, *ast.Heading:
			if !entering {
				b.WriteByte('\n')
			}

		case *ast.ListItem:
			if entering {
				b.WriteString("- ")
			}

		case *ast.CodeSpan:
			// Inline code keeps its text via child Text nodes.

		case *ast.FencedCodeBlock:
			if entering {
				lines := node.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					b.Write(seg.Value(src))
				}
				b.WriteByte('\n')
			}
		}

		return ast.WalkContinue, nil
	})

	return strings.TrimSpace(b.String())
}

// BuildReplyText assembles the outgoing comment body from a validated
// summary and the video's tag line.
func BuildReplyText(summary *llm.Summary, tags string) string {
	var b strings.Builder

	b.WriteString(RenderPlain(summary.Summary))

	if summary.Score != "" {
		fmt.Fprintf(&b, "\n\nWatch-worthiness: %s/100", summary.Score)
	}
	if tags != "" {
		b.WriteString("\n")
		b.WriteString(tags)
	}

	return b.String()
}
