package render

import (
	_ "embed"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
)

const pageMargin = 72

// The core PDF fonts only cover cp1252. Documents with text outside it are
// set entirely in DejaVu Sans Condensed instead, which is embedded as a
// subset.
var (
	//go:embed fonts/DejaVuSansCondensed.ttf
	unicodeRegular []byte
	//go:embed fonts/DejaVuSansCondensed-Bold.ttf
	unicodeBold []byte
)

const unicodeFamily = "DejaVu"

// documentTime is stamped into every PDF so identical input produces
// identical bytes.
var documentTime = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

type textStyle struct {
	family     string
	style      string
	size       float64
	leading    float64
	spaceAfter float64
	indent     float64
}

var (
	normalStyle = textStyle{family: "Helvetica", size: 10, leading: 12}
	quoteStyle  = textStyle{family: "Times", style: "I", size: 10, leading: 14}
	codeStyle   = textStyle{family: "Courier", size: 10, leading: 12, indent: 20}
	listStyle   = textStyle{family: "Helvetica", size: 10, leading: 12, spaceAfter: 5, indent: 20}

	headingStyles = map[int]textStyle{
		1: {family: "Helvetica", style: "B", size: 16, leading: 18, spaceAfter: 12},
		2: {family: "Helvetica", style: "B", size: 14, leading: 16, spaceAfter: 10},
		3: {family: "Helvetica", style: "B", size: 12, leading: 14, spaceAfter: 8},
	}
)

// bulletIndent is where a list marker sits relative to the list's left edge.
const bulletIndent = 10

// WritePDF lays out nodes on US Letter pages with 72pt margins and writes
// the finished document to w. Output is deterministic for a given input.
func WritePDF(w io.Writer, nodes []Node, title string) error {
	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	pdf.SetCreationDate(documentTime)
	pdf.SetModificationDate(documentTime)
	pdf.SetCatalogSort(true)
	if title != "" {
		pdf.SetTitle(title, true)
	}
	pw := &pdfWriter{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
	if !coreEncodable(nodes, pw.tr) {
		// no oblique faces are bundled, italics fall back to upright
		pdf.AddUTF8FontFromBytes(unicodeFamily, "", unicodeRegular)
		pdf.AddUTF8FontFromBytes(unicodeFamily, "I", unicodeRegular)
		pdf.AddUTF8FontFromBytes(unicodeFamily, "B", unicodeBold)
		pdf.AddUTF8FontFromBytes(unicodeFamily, "BI", unicodeBold)
		pw.unicode = true
		pw.tr = func(s string) string { return s }
	}
	pdf.AddPage()

	for _, n := range nodes {
		pw.node(n)
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("layout pdf: %w", err)
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

type pdfWriter struct {
	pdf     *fpdf.Fpdf
	tr      func(string) string
	unicode bool
}

func (pw *pdfWriter) setFont(family, style string, size float64) {
	if pw.unicode {
		family = unicodeFamily
	}
	pw.pdf.SetFont(family, style, size)
}

func (pw *pdfWriter) node(n Node) {
	switch v := n.(type) {
	case *Heading:
		st, ok := headingStyles[v.Level]
		if !ok {
			st = headingStyles[3]
		}
		pw.block(v.Runs, st, pageMargin)
	case *Paragraph:
		pw.block(v.Runs, normalStyle, pageMargin)
	case *Quote:
		pw.block(v.Runs, quoteStyle, pageMargin)
	case *CodeBlock:
		pw.code(v.Text)
	case *List:
		pw.list(v, pageMargin)
	case *Spacer:
		pw.pdf.Ln(v.Height)
	}
}

// block writes runs as one wrapped paragraph whose left edge is left plus
// the style's indent.
func (pw *pdfWriter) block(runs []Run, st textStyle, left float64) {
	if len(runs) == 0 {
		return
	}
	pw.at(left + st.indent)
	pw.runs(runs, st)
	pw.pdf.Ln(st.leading)
	if st.spaceAfter > 0 {
		pw.pdf.Ln(st.spaceAfter)
	}
	pw.at(pageMargin)
}

func (pw *pdfWriter) code(text string) {
	pw.at(pageMargin + codeStyle.indent)
	pw.setFont(codeStyle.family, codeStyle.style, codeStyle.size)
	pw.pdf.Write(codeStyle.leading, pw.tr(strings.ReplaceAll(text, "\t", "    ")))
	pw.pdf.Ln(codeStyle.leading)
	pw.at(pageMargin)
}

func (pw *pdfWriter) list(l *List, left float64) {
	for i, item := range l.Items {
		marker := "•"
		if l.Ordered {
			marker = fmt.Sprintf("%d.", i+1)
		}

		pw.at(left + bulletIndent)
		pw.setFont(listStyle.family, listStyle.style, listStyle.size)
		pw.pdf.Write(listStyle.leading, pw.tr(marker))

		pw.at(left + listStyle.indent)
		pw.runs(item.Runs, listStyle)
		pw.pdf.Ln(listStyle.leading)
		pw.pdf.Ln(listStyle.spaceAfter)

		for _, sub := range item.Sublists {
			pw.list(sub, left+listStyle.indent)
		}
	}
	pw.at(pageMargin)
}

// at moves the wrap margin and the cursor to x without changing the line.
func (pw *pdfWriter) at(x float64) {
	pw.pdf.SetLeftMargin(x)
	pw.pdf.SetX(x)
}

func (pw *pdfWriter) runs(runs []Run, st textStyle) {
	for _, run := range runs {
		family, style := st.family, st.style
		if run.Style.Has(Code) {
			family, style = codeStyle.family, ""
		}
		if run.Style.Has(Bold) && !strings.Contains(style, "B") {
			style += "B"
		}
		if run.Style.Has(Italic) && !strings.Contains(style, "I") {
			style += "I"
		}
		if run.Style.Has(Underline) || run.Style.Has(Link) {
			style += "U"
		}
		pw.setFont(family, style, st.size)

		text := pw.tr(run.Text)
		if run.Style.Has(Link) && run.Href != "" {
			pw.pdf.SetTextColor(0, 0, 238)
			pw.pdf.WriteLinkString(st.leading, text, run.Href)
			pw.pdf.SetTextColor(0, 0, 0)
			continue
		}
		pw.pdf.Write(st.leading, text)
	}
}

// coreEncodable reports whether every rune in the flow survives the cp1252
// translation. The translator turns anything it cannot map into '.'.
func coreEncodable(nodes []Node, tr func(string) string) bool {
	ok := true
	eachText(nodes, func(s string) {
		if !ok {
			return
		}
		for _, r := range s {
			if r >= 0x80 && tr(string(r)) == "." {
				ok = false
				return
			}
		}
	})
	return ok
}

func eachText(nodes []Node, fn func(string)) {
	runs := func(rs []Run) {
		for _, r := range rs {
			fn(r.Text)
		}
	}
	var list func(*List)
	list = func(l *List) {
		for _, item := range l.Items {
			runs(item.Runs)
			for _, sub := range item.Sublists {
				list(sub)
			}
		}
	}

	for _, n := range nodes {
		switch v := n.(type) {
		case *Heading:
			runs(v.Runs)
		case *Paragraph:
			runs(v.Runs)
		case *Quote:
			runs(v.Runs)
		case *CodeBlock:
			fn(v.Text)
		case *List:
			list(v)
		}
	}
}
