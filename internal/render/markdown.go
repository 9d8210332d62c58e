package render

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
)

var md = goldmark.New()

// MarkdownToHTML converts CommonMark source to an HTML fragment. Raw HTML
// in the source is omitted by goldmark's default renderer.
func MarkdownToHTML(src string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}
	return buf.String(), nil
}

// Markdown converts src straight to flow nodes.
func (r *Renderer) Markdown(src string) ([]Node, error) {
	htmlSrc, err := MarkdownToHTML(src)
	if err != nil {
		return nil, err
	}
	return r.Render(htmlSrc)
}
