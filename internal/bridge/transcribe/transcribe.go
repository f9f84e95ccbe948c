// Package transcribe calls the speech-to-text provider chain used to turn
// voice/audio attachments into agent prompts.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/remotevibe/bridge/internal/config"
)

// provider is one speech-to-text HTTP endpoint.
type provider struct {
	url   string
	key   string
	model string
}

func (p provider) configured() bool { return p.url != "" }

// Chain tries the primary provider, then the fallback, on failure.
type Chain struct {
	primary  provider
	fallback provider
	http     *http.Client
}

// NewChain builds a Chain from the voice config's transcribe_primary and
// transcribe_fallback sections.
func NewChain(cfg config.VoiceConfig) *Chain {
	return &Chain{
		primary:  provider{url: cfg.TranscribePrimary.URL(), key: cfg.TranscribePrimary.Key(), model: cfg.TranscribePrimary.Model},
		fallback: provider{url: cfg.TranscribeFallback.URL(), key: cfg.TranscribeFallback.Key(), model: cfg.TranscribeFallback.Model},
		http:     &http.Client{Timeout: 60 * time.Second},
	}
}

// Transcribe uploads audio to the primary provider, falling back to the
// secondary on failure. fileTree is a best-effort project listing appended
// to the prompt so the model prefers technical vocabulary; language is an
// optional hint. Returns a single plain-text transcript.
func (c *Chain) Transcribe(ctx context.Context, audio []byte, mime, filename string, fileTree []string, language string) (string, error) {
	if c.primary.configured() {
		text, err := c.call(ctx, c.primary, audio, mime, filename, fileTree, language)
		if err == nil {
			return text, nil
		}
		if !c.fallback.configured() {
			return "", err
		}
	}
	if !c.fallback.configured() {
		return "", fmt.Errorf("transcribe: no provider configured")
	}
	return c.call(ctx, c.fallback, audio, mime, filename, fileTree, language)
}

func (c *Chain) call(ctx context.Context, p provider, audio []byte, mime, filename string, fileTree []string, language string) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("transcribe: form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("transcribe: write audio: %w", err)
	}

	if p.model != "" {
		_ = w.WriteField("model", p.model)
	}
	if language != "" {
		_ = w.WriteField("language", language)
	}
	if len(fileTree) > 0 {
		prompt := "This transcription feeds a coding agent. Prefer technical and " +
			"programming vocabulary over literal phonetics. Project files:\n" +
			strings.Join(fileTree, "\n")
		_ = w.WriteField("prompt", prompt)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("transcribe: close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, &buf)
	if err != nil {
		return "", fmt.Errorf("transcribe: build request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	if p.key != "" {
		req.Header.Set("Authorization", "Bearer "+p.key)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcribe: request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("transcribe: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("transcribe: status %d: %s", resp.StatusCode, string(body))
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("transcribe: decode response: %w", err)
	}
	return out.Text, nil
}
