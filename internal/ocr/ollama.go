package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net/http"
	"strings"
)

const transcribePrompt = `Transcribe the text in this image exactly as it appears.
Output only the text, with no commentary. If there is no text, output nothing.`

// Ollama sends images to a vision model served by Ollama's /api/generate
type Ollama struct {
	URL    string
	Model  string
	Client *http.Client
}

// NewOllama creates a recognizer for the Ollama server at url
func NewOllama(url, model string) *Ollama {
	if url == "" {
		url = "http://localhost:11434"
	}
	return &Ollama{
		URL:    strings.TrimRight(url, "/"),
		Model:  model,
		Client: defaultHTTPClient(),
	}
}

// Recognize returns the model's transcription with surrounding whitespace removed
func (o *Ollama) Recognize(ctx context.Context, img image.Image) (string, error) {
	data, err := encodePNG(img)
	if err != nil {
		return "", err
	}

	requestBody, err := json.Marshal(map[string]interface{}{
		"model":  o.Model,
		"prompt": transcribePrompt,
		"images": []string{base64.StdEncoding.EncodeToString(data)},
		"stream": false,
		"options": map[string]interface{}{
			"temperature": 0,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.URL+"/api/generate", bytes.NewReader(requestBody))
	if err != nil {
		return "", fmt.Errorf("failed to create new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("received non-200 status code: %d - %s", resp.StatusCode, string(body))
	}

	var response struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to decode response body: %w", err)
	}

	return strings.TrimSpace(response.Response), nil
}
