package extract

import (
	"bytes"
	"context"
	"errors"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"doc-analysis-platform/internal/apperrors"
)

var errNoOCR = errors.New("no OCR engine configured")

// extractImage validates that data decodes as a raster image, then hands
// the original bytes to the OCR engine.
func (e *Extractor) extractImage(ctx context.Context, data []byte) (string, error) {
	_, kind, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", apperrors.ExtractionFailed("image", err)
	}
	if e.ocr == nil {
		return "", apperrors.ExtractionFailed(kind, errNoOCR)
	}

	text, err := e.ocr.Recognize(ctx, data, kind)
	if err != nil {
		return "", apperrors.ExtractionFailed(kind, err)
	}
	return text, nil
}
