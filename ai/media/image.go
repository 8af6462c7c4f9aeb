package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aura-chat/aura/ai/provider"
)

// ImageConfig configures the text-to-image client.
type ImageConfig struct {
	Endpoint string
	APIKey   string
	Model    string
}

// ImageClient calls a remote text-to-image endpoint. The endpoint may answer
// with raw image bytes or a JSON envelope carrying a URL or base64 payload.
type ImageClient struct {
	config ImageConfig
	client *http.Client
}

// NewImageClient creates a text-to-image client.
func NewImageClient(config ImageConfig) *ImageClient {
	return &ImageClient{
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

type imageRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model,omitempty"`
}

type imageEnvelope struct {
	URL  string `json:"url"`
	Data []struct {
		URL     string `json:"url"`
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

// Generate produces image bytes and their MIME type from a prompt. Failure
// yields a provider error; the caller falls back to text delivery.
func (c *ImageClient) Generate(ctx context.Context, prompt string) ([]byte, string, error) {
	ctx, cancel := context.WithTimeout(ctx, synthesisTimeout)
	defer cancel()

	payload, err := json.Marshal(imageRequest{Prompt: prompt, Model: c.config.Model})
	if err != nil {
		return nil, "", err
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
		slog.Error("media: image generation failed", "error", err)
		return nil, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image response: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "application/json") {
		if contentType == "" {
			contentType = http.DetectContentType(body)
		}
		return body, contentType, nil
	}

	var envelope imageEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, "", provider.Wrap(err, "malformed image response envelope")
	}

	switch {
	case len(envelope.Data) > 0 && envelope.Data[0].B64JSON != "":
		data, err := base64.StdEncoding.DecodeString(envelope.Data[0].B64JSON)
		if err != nil {
			return nil, "", provider.Wrap(err, "invalid base64 image payload")
		}
		return data, http.DetectContentType(data), nil
	case len(envelope.Data) > 0 && envelope.Data[0].URL != "":
		return c.download(ctx, envelope.Data[0].URL)
	case envelope.URL != "":
		return c.download(ctx, envelope.URL)
	default:
		return nil, "", provider.Errorf("image response envelope missing url and data")
	}
}

func (c *ImageClient) download(ctx context.Context, url string) ([]byte, string, error) {
	resp, err := provider.Do(ctx, c.client, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	})
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download generated image: %w", err)
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return data, mimeType, nil
}
