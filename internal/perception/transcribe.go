package perception

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"vibetex/internal/logging"
)

// Transcriber turns recorded speech into prompt text.
type Transcriber interface {
	Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error)
}

// WhisperTranscriber calls an OpenAI-compatible /audio/transcriptions endpoint.
type WhisperTranscriber struct {
	apiKey     string
	baseURL    string
	model      string
	language   string
	httpClient *http.Client
}

// NewWhisperTranscriber creates a transcriber. Empty model means whisper-large-v3.
func NewWhisperTranscriber(apiKey, baseURL, model string, timeout time.Duration) *WhisperTranscriber {
	if model == "" {
		model = "whisper-large-v3"
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &WhisperTranscriber{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		language:   "en",
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Transcribe uploads the audio and returns the plain-text transcript.
func (w *WhisperTranscriber) Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error) {
	if w.apiKey == "" {
		return "", ErrNoAPIKey
	}
	if filename == "" {
		filename = "audio.m4a"
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, audio); err != nil {
		return "", fmt.Errorf("failed to read audio: %w", err)
	}
	fields := map[string]string{
		"model":           w.model,
		"response_format": "text",
		"language":        w.language,
		"temperature":     "0",
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return "", fmt.Errorf("failed to write field %s: %w", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+w.apiKey)

	start := time.Now()
	resp, err := w.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("transcription failed with status %d: %s", resp.StatusCode, truncate(string(data), 300))
	}

	text := strings.TrimSpace(string(data))
	logging.Perception("Transcribed %s in %v (%d chars)", filename, time.Since(start), len(text))
	return text, nil
}
