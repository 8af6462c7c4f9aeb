// Package media wraps the remote text-to-speech and text-to-image endpoints
// and stores generated artifacts for public serving.
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aura-chat/aura/ai/provider"
)

const synthesisTimeout = 45 * time.Second

// TTSConfig configures the text-to-speech client.
type TTSConfig struct {
	Endpoint string
	APIKey   string
	Voice    string
}

// TTSClient calls an OpenAI-compatible speech synthesis endpoint.
type TTSClient struct {
	config TTSConfig
	client *http.Client
}

// NewTTSClient creates a text-to-speech client.
func NewTTSClient(config TTSConfig) *TTSClient {
	return &TTSClient{
		config: config,
		client: &http.Client{
			Timeout: synthesisTimeout,
			Transport: &http.Transport{
				MaxIdleConns:       10,
				IdleConnTimeout:    90 * time.Second,
				DisableCompression: true,
			},
		},
	}
}

type ttsRequest struct {
	Input string `json:"input"`
	Voice string `json:"voice"`
}

// Synthesize converts text to audio bytes. Failure yields a provider error;
// the caller falls back to text delivery.
func (c *TTSClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, synthesisTimeout)
	defer cancel()

	payload, err := json.Marshal(ttsRequest{Input: text, Voice: c.config.Voice})
	if err != nil {
		return nil, err
	}

	resp, err := provider.Do(ctx, c.client, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if c.config.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
		}
		return req, nil
	})
	if err != nil {
		slog.Error("media: tts synthesis failed", "error", err)
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio body: %w", err)
	}

	slog.Debug("media: voice synthesized", "bytes", len(data), "voice", c.config.Voice)
	return data, nil
}
