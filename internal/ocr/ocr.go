package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"time"

	"jordanella.com/screen-mapper/internal/config"
)

// ErrNoBackend is returned when text recognition is disabled
var ErrNoBackend = errors.New("text recognition is disabled (ocrBackend = none)")

// Recognizer turns an image into text
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image) (string, error)
}

// New selects the recognizer named by cfg.OCRBackend
func New(cfg *config.Config) (Recognizer, error) {
	switch cfg.OCRBackend {
	case config.BackendTesseract:
		return NewTesseract(cfg.TesseractPath, cfg.OCRLanguage), nil
	case config.BackendOllama:
		return NewOllama(cfg.OllamaURL, cfg.OllamaModel), nil
	case config.BackendNone:
		return &Static{Err: ErrNoBackend}, nil
	default:
		return nil, fmt.Errorf("unknown OCR backend %q", cfg.OCRBackend)
	}
}

// Static always returns the same text, or Err when set
type Static struct {
	Text string
	Err  error
}

// Recognize returns s.Text or s.Err
func (s *Static) Recognize(ctx context.Context, img image.Image) (string, error) {
	if s.Err != nil {
		return "", s.Err
	}
	return s.Text, nil
}

// Func adapts a function to the Recognizer interface
type Func func(ctx context.Context, img image.Image) (string, error)

// Recognize calls f
func (f Func) Recognize(ctx context.Context, img image.Image) (string, error) {
	return f(ctx, img)
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 2 * time.Minute}
}
