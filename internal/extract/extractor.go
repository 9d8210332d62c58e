// Package extract turns uploaded documents and images into plain text.
//
// Every supported format is dispatched through a single table keyed by
// Format. Empty input yields empty text for every format; malformed input
// yields an ExtractionFailed error carrying the format and the parser's
// cause.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"doc-analysis-platform/internal/apperrors"
	"doc-analysis-platform/internal/telemetry"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

type extractFunc func(ctx context.Context, data []byte) (string, error)

// Extractor is safe for concurrent use.
type Extractor struct {
	ocr      OCREngine
	logger   *slog.Logger
	dispatch map[Format]extractFunc
}

func New(ocr OCREngine, logger *slog.Logger) *Extractor {
	e := &Extractor{ocr: ocr, logger: logger}
	e.dispatch = map[Format]extractFunc{
		FormatPDF:  e.extractPDF,
		FormatJPG:  e.extractImage,
		FormatJPEG: e.extractImage,
		FormatPNG:  e.extractImage,
		FormatDOCX: func(_ context.Context, data []byte) (string, error) { return extractDOCX(data) },
		FormatCSV:  func(_ context.Context, data []byte) (string, error) { return extractCSV(data) },
		FormatXLSX: func(_ context.Context, data []byte) (string, error) { return extractXLSX(data) },
		FormatXLS:  func(_ context.Context, data []byte) (string, error) { return extractXLS(data) },
		FormatTXT:  func(_ context.Context, data []byte) (string, error) { return extractText(data) },
	}
	return e
}

// Extract resolves the format from filename and extracts its text.
func (e *Extractor) Extract(ctx context.Context, data []byte, filename string) (string, error) {
	format, err := ParseFormat(filename)
	if err != nil {
		return "", err
	}
	return e.ExtractFormat(ctx, data, format)
}

func (e *Extractor) ExtractFormat(ctx context.Context, data []byte, format Format) (text string, err error) {
	fn, ok := e.dispatch[format]
	if !ok {
		return "", apperrors.UnsupportedFormat(string(format))
	}
	if len(data) == 0 {
		return "", nil
	}

	ctx, span := otel.Tracer("extract").Start(ctx, "extract."+string(format))
	span.SetAttributes(attribute.Int("extract.bytes", len(data)))
	start := time.Now()

	defer func() {
		// Parsers for binary formats can panic on hostile input.
		if r := recover(); r != nil {
			text, err = "", apperrors.ExtractionFailed(string(format), fmt.Errorf("parser panic: %v", r))
		}
		telemetry.ExtractionDuration.WithLabelValues(string(format), telemetry.StatusLabel(err)).
			Observe(time.Since(start).Seconds())
		span.SetAttributes(attribute.Int("extract.chars", len(text)), attribute.Bool("extract.error", err != nil))
		span.End()
	}()

	text, err = fn(ctx, data)
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindInternal {
			err = apperrors.ExtractionFailed(string(format), err)
		}
		e.logger.Warn("text extraction failed", "format", format, "error", err)
		return "", err
	}
	return text, nil
}
