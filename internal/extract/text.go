package extract

import (
	"bytes"
	"errors"
	"unicode/utf8"

	"doc-analysis-platform/internal/apperrors"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func stripBOM(data []byte) []byte {
	return bytes.TrimPrefix(data, utf8BOM)
}

func extractText(data []byte) (string, error) {
	data = stripBOM(data)
	if !utf8.Valid(data) {
		return "", apperrors.ExtractionFailed(string(FormatTXT), errors.New("text is not valid UTF-8"))
	}
	return string(data), nil
}
