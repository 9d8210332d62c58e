package extract

import (
	"bytes"
	"context"
	"strings"

	"doc-analysis-platform/internal/apperrors"

	"github.com/ledongthuc/pdf"
)

// extractPDF concatenates the plain text of every page in order, one
// page per line group. Pages without a text layer contribute "".
func (e *Extractor) extractPDF(ctx context.Context, data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", apperrors.ExtractionFailed(string(FormatPDF), err)
	}

	pages := reader.NumPage()
	texts := make([]string, 0, pages)

	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			texts = append(texts, "")
			continue
		}

		// Font resource names are page-scoped, so each page gets its own map.
		text, err := page.GetPlainText(make(map[string]*pdf.Font))
		if err != nil {
			e.logger.Debug("pdf page has no extractable text", "page", i, "error", err)
			text = ""
		}
		texts = append(texts, text)
	}

	return strings.Join(texts, "\n"), nil
}
