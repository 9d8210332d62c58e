package render

import "strings"

// PlainText renders nodes as text: one line per block and one line per
// list item (sublists included), without list markers. Spacers are
// skipped and there is no trailing newline.
func PlainText(nodes []Node) string {
	var lines []string
	for _, n := range nodes {
		switch v := n.(type) {
		case *Spacer:
		case *List:
			lines = appendListLines(lines, v)
		case *CodeBlock:
			lines = append(lines, v.Text)
		default:
			lines = append(lines, RunsText(blockRuns(n)))
		}
	}
	return strings.Join(lines, "\n")
}

func appendListLines(lines []string, l *List) []string {
	for _, item := range l.Items {
		lines = append(lines, RunsText(item.Runs))
		for _, sub := range item.Sublists {
			lines = appendListLines(lines, sub)
		}
	}
	return lines
}
