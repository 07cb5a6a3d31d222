package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os/exec"
	"strconv"
	"strings"
)

// Tesseract runs the tesseract command line tool, piping a PNG through stdin and stdout
type Tesseract struct {
	Path        string
	Language    string
	PageSegMode int // 0 leaves tesseract's default
}

// NewTesseract creates a recognizer for the tesseract binary at path
func NewTesseract(path, language string) *Tesseract {
	if path == "" {
		path = "tesseract"
	}
	return &Tesseract{Path: path, Language: language}
}

// Recognize returns the recognized text with trailing whitespace removed
func (t *Tesseract) Recognize(ctx context.Context, img image.Image) (string, error) {
	data, err := encodePNG(img)
	if err != nil {
		return "", err
	}

	cmd := exec.CommandContext(ctx, t.Path, t.args()...)
	cmd.Stdin = bytes.NewReader(data)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract failed: %w, output: %s", err, strings.TrimSpace(stderr.String()))
	}

	return strings.TrimRight(stdout.String(), " \t\r\n\f"), nil
}

func (t *Tesseract) args() []string {
	args := []string{"stdin", "stdout"}
	if t.Language != "" {
		args = append(args, "-l", t.Language)
	}
	if t.PageSegMode > 0 {
		args = append(args, "--psm", strconv.Itoa(t.PageSegMode))
	}
	return args
}
