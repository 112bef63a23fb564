package processor

import (
	"bytes"
	"context"
	"fmt"

	"github.com/harrison/filescout/internal/filteredlog"
	"github.com/harrison/filescout/internal/visitor"
	"github.com/spf13/afero"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var markdown = goldmark.New()

// MarkdownOutline extracts the headings of a Markdown file.
// A file without headings is logged but still returns a record; a file that
// cannot be read is logged and fails.
func MarkdownOutline(_ context.Context, fs afero.Fs, path string, cs visitor.Charset, log *filteredlog.Log) (Record, error) {
	source, err := readDecoded(fs, path, cs, log)
	if err != nil {
		return Record{}, err
	}

	doc := markdown.Parser().Parse(text.NewReader(source))

	headings := make([]Heading, 0)
	err = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if heading, ok := n.(*ast.Heading); ok {
			headings = append(headings, Heading{
				Level: heading.Level,
				Text:  extractText(heading, source),
			})
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return Record{}, fmt.Errorf("walk markdown: %w", err)
	}

	if len(headings) == 0 {
		log.LogInfof("File '%s' has no headings", path)
	}

	return Record{
		Path:     path,
		Kind:     "markdown",
		Bytes:    int64(len(source)),
		Headings: headings,
	}, nil
}

// extractText concatenates the text segments below n, including emphasis and links.
func extractText(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch node := c.(type) {
		case *ast.Text:
			buf.Write(node.Segment.Value(source))
			if node.SoftLineBreak() {
				buf.WriteByte(' ')
			}
		default:
			buf.WriteString(extractText(node, source))
		}
	}
	return buf.String()
}
