package render

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// SpacerHeight is the vertical gap, in points, after each top-level block.
const SpacerHeight = 12

type Options struct {
	// FlattenNestedLists merges a list nested inside an item into that
	// item's text. When false the nested list is kept as a sublist.
	FlattenNestedLists bool
}

func DefaultOptions() Options {
	return Options{FlattenNestedLists: true}
}

// Renderer maps parsed HTML onto flow nodes. It holds no mutable state and
// is safe for concurrent use.
type Renderer struct {
	opts Options
}

func NewRenderer(opts Options) *Renderer {
	return &Renderer{opts: opts}
}

// Render parses htmlSrc and converts each element child of <body>, in
// document order, into exactly one top-level node followed by a Spacer.
func (r *Renderer) Render(htmlSrc string) ([]Node, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlSrc))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var nodes []Node
	doc.Find("body").Children().Each(func(_ int, s *goquery.Selection) {
		nodes = append(nodes, r.topLevel(s), &Spacer{Height: SpacerHeight})
	})
	return nodes, nil
}

func (r *Renderer) topLevel(s *goquery.Selection) Node {
	res := r.walk(s, false)
	switch res.kind {
	case resultBlock:
		return res.block
	case resultInline:
		return &Paragraph{Runs: normalizeRuns(res.runs)}
	default:
		return &Paragraph{}
	}
}

type resultKind int

const (
	resultEmpty resultKind = iota
	resultInline
	resultBlock
)

// walkResult is what a single DOM node contributes: nothing, inline runs,
// or a complete block.
type walkResult struct {
	kind  resultKind
	runs  []Run
	block Node
}

func empty() walkResult            { return walkResult{kind: resultEmpty} }
func inline(runs []Run) walkResult { return walkResult{kind: resultInline, runs: runs} }
func block(n Node) walkResult      { return walkResult{kind: resultBlock, block: n} }

// plain degrades an unrecognised element to its text content.
func plain(s *goquery.Selection) walkResult {
	if text := s.Text(); text != "" {
		return inline([]Run{{Text: text}})
	}
	return empty()
}

// walk converts one DOM node. nested is false only for direct children of
// <body>; it decides whether a bare <code> is a block or an inline run.
func (r *Renderer) walk(s *goquery.Selection, nested bool) walkResult {
	n := s.Get(0)
	switch n.Type {
	case html.TextNode:
		if n.Data == "" {
			return empty()
		}
		return inline([]Run{{Text: n.Data}})
	case html.ElementNode:
	default:
		return empty()
	}

	switch n.Data {
	case "h1", "h2", "h3":
		return block(&Heading{Level: int(n.Data[1] - '0'), Runs: normalizeRuns(r.children(s))})
	case "p":
		return block(&Paragraph{Runs: normalizeRuns(r.children(s))})
	case "strong", "b":
		return inline(withStyle(r.children(s), Bold, ""))
	case "em", "i":
		return inline(withStyle(r.children(s), Italic, ""))
	case "u":
		return inline(withStyle(r.children(s), Underline, ""))
	case "a":
		href, _ := s.Attr("href")
		return inline(withStyle(r.children(s), Link, href))
	case "ul", "ol":
		return block(r.list(s, n.Data == "ol"))
	case "blockquote":
		return block(&Quote{Runs: normalizeRuns(r.children(s))})
	case "pre":
		return block(&CodeBlock{Text: strings.TrimSuffix(s.Text(), "\n")})
	case "code":
		if !nested {
			return block(&CodeBlock{Text: strings.TrimSuffix(s.Text(), "\n")})
		}
		return inline([]Run{{Text: s.Text(), Style: Code}})
	case "br":
		return inline([]Run{{Text: " "}})
	default:
		return plain(s)
	}
}

// children walks every child node of s and merges the results into one
// run sequence. Blocks found inside a container contribute their text,
// padded with spaces so it does not fuse with neighbouring words.
func (r *Renderer) children(s *goquery.Selection) []Run {
	var runs []Run
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		res := r.walk(c, true)
		switch res.kind {
		case resultInline:
			runs = append(runs, res.runs...)
		case resultBlock:
			runs = append(runs, Run{Text: " "})
			runs = append(runs, blockRuns(res.block)...)
			runs = append(runs, Run{Text: " "})
		}
	})
	return runs
}

// list uses only the direct <li> children of s.
func (r *Renderer) list(s *goquery.Selection, ordered bool) *List {
	l := &List{Ordered: ordered}
	s.ChildrenFiltered("li").Each(func(_ int, li *goquery.Selection) {
		l.Items = append(l.Items, r.listItem(li))
	})
	return l
}

func (r *Renderer) listItem(li *goquery.Selection) ListItem {
	if r.opts.FlattenNestedLists {
		return ListItem{Runs: normalizeRuns(r.children(li))}
	}

	var (
		item ListItem
		runs []Run
	)
	li.Contents().Each(func(_ int, c *goquery.Selection) {
		if c.Is("ul, ol") {
			item.Sublists = append(item.Sublists, r.list(c, goquery.NodeName(c) == "ol"))
			return
		}
		res := r.walk(c, true)
		switch res.kind {
		case resultInline:
			runs = append(runs, res.runs...)
		case resultBlock:
			runs = append(runs, Run{Text: " "})
			runs = append(runs, blockRuns(res.block)...)
			runs = append(runs, Run{Text: " "})
		}
	})
	item.Runs = normalizeRuns(runs)
	return item
}

func withStyle(runs []Run, style Style, href string) []Run {
	out := make([]Run, len(runs))
	for i, run := range runs {
		run.Style |= style
		if style == Link {
			run.Href = href
		}
		out[i] = run
	}
	return out
}
