// Package render converts an AI response from markdown into a flow
// document (headings, paragraphs, lists, quotes, code blocks with styled
// inline runs) and writes that document as PDF or plain text.
package render

import "strings"

// Style is a set of inline formatting flags.
type Style uint8

const (
	Bold Style = 1 << iota
	Italic
	Underline
	Code
	Link
)

func (s Style) Has(flag Style) bool { return s&flag != 0 }

// Run is a span of text sharing one style. Href is set only for links.
type Run struct {
	Text  string
	Style Style
	Href  string
}

type NodeKind int

const (
	KindHeading NodeKind = iota
	KindParagraph
	KindList
	KindQuote
	KindCodeBlock
	KindSpacer
)

// Node is one block in the flow document.
type Node interface {
	Kind() NodeKind
}

type Heading struct {
	Level int // 1-3
	Runs  []Run
}

type Paragraph struct {
	Runs []Run
}

type List struct {
	Ordered bool
	Items   []ListItem
}

// ListItem holds the item's inline text. Sublists is only populated when
// nested lists are kept as structure rather than flattened.
type ListItem struct {
	Runs     []Run
	Sublists []*List
}

type Quote struct {
	Runs []Run
}

type CodeBlock struct {
	Text string
}

// Spacer is vertical space inserted after every top-level block.
type Spacer struct {
	Height float64
}

func (*Heading) Kind() NodeKind   { return KindHeading }
func (*Paragraph) Kind() NodeKind { return KindParagraph }
func (*List) Kind() NodeKind      { return KindList }
func (*Quote) Kind() NodeKind     { return KindQuote }
func (*CodeBlock) Kind() NodeKind { return KindCodeBlock }
func (*Spacer) Kind() NodeKind    { return KindSpacer }

// RunsText concatenates the visible text of runs.
func RunsText(runs []Run) string {
	var b strings.Builder
	for _, r := range runs {
		b.WriteString(r.Text)
	}
	return b.String()
}

// blockRuns flattens a block into inline runs so it can be merged into an
// enclosing container's text.
func blockRuns(n Node) []Run {
	switch v := n.(type) {
	case *Heading:
		return v.Runs
	case *Paragraph:
		return v.Runs
	case *Quote:
		return v.Runs
	case *CodeBlock:
		return []Run{{Text: v.Text, Style: Code}}
	case *List:
		var runs []Run
		for i, item := range v.Items {
			if i > 0 {
				runs = append(runs, Run{Text: " "})
			}
			runs = append(runs, item.Runs...)
			for _, sub := range item.Sublists {
				runs = append(runs, Run{Text: " "})
				runs = append(runs, blockRuns(sub)...)
			}
		}
		return runs
	}
	return nil
}

func isCollapsibleSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\f':
		return true
	}
	return false
}

// normalizeRuns applies HTML whitespace collapsing across run boundaries,
// trims the block edges, drops empty runs and merges neighbours that
// share a style. A collapsed space between runs attaches to the preceding
// run unless that run is underlined.
func normalizeRuns(runs []Run) []Run {
	out := make([]Run, 0, len(runs))
	pendingSpace := false

	for _, run := range runs {
		var b strings.Builder
		for _, ch := range run.Text {
			if isCollapsibleSpace(ch) {
				pendingSpace = true
				continue
			}
			if pendingSpace {
				switch {
				case b.Len() > 0:
					b.WriteByte(' ')
				case len(out) > 0 && !out[len(out)-1].Style.Has(Underline|Link):
					out[len(out)-1].Text += " "
				case len(out) > 0:
					b.WriteByte(' ')
				}
				pendingSpace = false
			}
			b.WriteRune(ch)
		}
		if b.Len() == 0 {
			continue
		}

		r := Run{Text: b.String(), Style: run.Style, Href: run.Href}
		if n := len(out); n > 0 && out[n-1].Style == r.Style && out[n-1].Href == r.Href {
			out[n-1].Text += r.Text
			continue
		}
		out = append(out, r)
	}

	return out
}
