package extract

import (
	"path"
	"strings"

	"doc-analysis-platform/internal/apperrors"
)

// Format is the canonical document format, derived once from the
// filename extension.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatJPG  Format = "jpg"
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatDOCX Format = "docx"
	FormatCSV  Format = "csv"
	FormatXLS  Format = "xls"
	FormatXLSX Format = "xlsx"
	FormatTXT  Format = "txt"
)

var supported = map[Format]struct{}{
	FormatPDF: {}, FormatJPG: {}, FormatJPEG: {}, FormatPNG: {},
	FormatDOCX: {}, FormatCSV: {}, FormatXLS: {}, FormatXLSX: {}, FormatTXT: {},
}

// ParseFormat maps a filename to its Format using the text after the
// last dot, case-insensitively. A name without an extension, or with
// one outside the supported set, is an UnsupportedFormat error.
func ParseFormat(filename string) (Format, error) {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	dot := strings.LastIndexByte(base, '.')
	if dot < 0 || dot == len(base)-1 {
		return "", apperrors.UnsupportedFormat(filename)
	}
	f := Format(strings.ToLower(base[dot+1:]))
	if _, ok := supported[f]; !ok {
		return "", apperrors.UnsupportedFormat(filename)
	}
	return f, nil
}

// SupportedFormats lists every accepted extension in a stable order.
func SupportedFormats() []Format {
	return []Format{FormatPDF, FormatJPG, FormatJPEG, FormatPNG, FormatDOCX, FormatCSV, FormatXLS, FormatXLSX, FormatTXT}
}
