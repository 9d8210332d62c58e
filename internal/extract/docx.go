package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"doc-analysis-platform/internal/apperrors"
)

const wordNS = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

var errNoDocumentPart = errors.New("word/document.xml not found")

// extractDOCX returns the text of the body's top-level paragraphs joined
// with "\n". Paragraphs inside tables, text boxes and other containers are
// not part of the body flow and are skipped.
func extractDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", apperrors.ExtractionFailed(string(FormatDOCX), err)
	}

	var part *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			part = f
			break
		}
	}
	if part == nil {
		return "", apperrors.ExtractionFailed(string(FormatDOCX), errNoDocumentPart)
	}

	rc, err := part.Open()
	if err != nil {
		return "", apperrors.ExtractionFailed(string(FormatDOCX), err)
	}
	defer rc.Close()

	paragraphs, err := bodyParagraphs(rc)
	if err != nil {
		return "", apperrors.ExtractionFailed(string(FormatDOCX), err)
	}
	return strings.Join(paragraphs, "\n"), nil
}

func bodyParagraphs(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)

	var (
		stack      []xml.Name
		paragraphs []string
		cur        *strings.Builder
		curDepth   int // stack depth of the open body paragraph
		nested     int // paragraphs opened inside cur (text boxes)
		inText     bool
	)

	isWord := func(n xml.Name, local string) bool {
		return n.Space == wordNS && n.Local == local
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse document.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case isWord(t.Name, "p") && cur == nil && len(stack) > 0 && isWord(stack[len(stack)-1], "body"):
				cur = &strings.Builder{}
				curDepth = len(stack)
			case isWord(t.Name, "p") && cur != nil:
				nested++
			case cur != nil && nested == 0:
				switch {
				case isWord(t.Name, "t"):
					inText = true
				case isWord(t.Name, "tab"):
					cur.WriteByte('\t')
				case isWord(t.Name, "br"), isWord(t.Name, "cr"):
					cur.WriteByte('\n')
				}
			}
			stack = append(stack, t.Name)

		case xml.EndElement:
			if len(stack) == 0 {
				return nil, errors.New("unbalanced document.xml")
			}
			stack = stack[:len(stack)-1]
			switch {
			case isWord(t.Name, "t"):
				inText = false
			case isWord(t.Name, "p") && cur != nil && len(stack) == curDepth:
				paragraphs = append(paragraphs, cur.String())
				cur = nil
			case isWord(t.Name, "p") && cur != nil:
				nested--
			}

		case xml.CharData:
			if cur != nil && inText && nested == 0 {
				cur.Write(t)
			}
		}
	}

	return paragraphs, nil
}
