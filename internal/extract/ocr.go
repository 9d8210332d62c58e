package extract

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
)

// OCREngine recognizes text in an encoded raster image. kind is the
// decoder name reported by image.Decode ("jpeg" or "png").
type OCREngine interface {
	Recognize(ctx context.Context, img []byte, kind string) (string, error)
}

// TesseractOCR shells out to the tesseract CLI, streaming the image on
// stdin and reading the text from stdout.
type TesseractOCR struct {
	Path     string
	Language string
	Timeout  time.Duration
}

func NewTesseractOCR(path, language string) *TesseractOCR {
	if path == "" {
		path = "tesseract"
	}
	if language == "" {
		language = "eng"
	}
	return &TesseractOCR{Path: path, Language: language, Timeout: 60 * time.Second}
}

// Available reports whether the tesseract binary can be found.
func (t *TesseractOCR) Available() bool {
	_, err := exec.LookPath(t.Path)
	return err == nil
}

func (t *TesseractOCR) Recognize(ctx context.Context, img []byte, _ string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, t.Path, "stdin", "stdout", "-l", t.Language)
	cmd.Stdin = bytes.NewReader(img)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract failed: %v, stderr: %s", err, strings.TrimSpace(stderr.String()))
	}

	return strings.TrimRight(stdout.String(), " \n\f"), nil
}

// GeminiOCR asks a Gemini vision model for a verbatim transcription.
type GeminiOCR struct {
	client *genai.Client
	model  string
}

func NewGeminiOCR(client *genai.Client, model string) *GeminiOCR {
	return &GeminiOCR{client: client, model: model}
}

func (g *GeminiOCR) Recognize(ctx context.Context, img []byte, kind string) (string, error) {
	model := g.client.GenerativeModel(g.model)
	model.SetTemperature(0)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text("You are an OCR engine. Transcribe all English text in the image exactly as it appears. Output only the text.")},
	}

	resp, err := model.GenerateContent(ctx, genai.ImageData(kind, img), genai.Text("Transcribe the text in this image."))
	if err != nil {
		return "", fmt.Errorf("gemini ocr failed: %w", err)
	}

	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
		break
	}
	return b.String(), nil
}
