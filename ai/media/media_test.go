package media

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-chat/aura/ai/provider"
)

func TestTTSSynthesize(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var req ttsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hello there", req.Input)
		assert.Equal(t, "alloy", req.Voice)
		w.Header().Set("Content-Type", "audio/ogg")
		_, _ = w.Write([]byte("OGGDATA"))
	}))
	defer server.Close()

	client := NewTTSClient(TTSConfig{Endpoint: server.URL, APIKey: "key", Voice: "alloy"})
	data, err := client.Synthesize(context.Background(), "hello there")
	require.NoError(t, err)
	assert.Equal(t, []byte("OGGDATA"), data)
	assert.Equal(t, "Bearer key", gotAuth)
}

func TestTTSNon2xxIsProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewTTSClient(TTSConfig{Endpoint: server.URL})
	_, err := client.Synthesize(context.Background(), "hello")
	require.Error(t, err)

	pe, ok := provider.AsError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, pe.Status)
	assert.False(t, pe.IsRetryable())
}

func TestTTSRetriesOnServerError(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			http.Error(w, "flaky", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("OK"))
	}))
	defer server.Close()

	client := NewTTSClient(TTSConfig{Endpoint: server.URL})
	data, err := client.Synthesize(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []byte("OK"), data)
	assert.Equal(t, 2, attempts)
}

func TestImageGenerateRawBytes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("PNGDATA"))
	}))
	defer server.Close()

	client := NewImageClient(ImageConfig{Endpoint: server.URL})
	data, mimeType, err := client.Generate(context.Background(), "a sunset")
	require.NoError(t, err)
	assert.Equal(t, []byte("PNGDATA"), data)
	assert.Equal(t, "image/png", mimeType)
}

func TestImageGenerateBase64Envelope(t *testing.T) {
	payload := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{{"b64_json": base64.StdEncoding.EncodeToString(payload)}},
		})
	}))
	defer server.Close()

	client := NewImageClient(ImageConfig{Endpoint: server.URL})
	data, _, err := client.Generate(context.Background(), "a sunset")
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestImageGenerateURLEnvelope(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/generate", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"url": server.URL + "/img"})
	})
	mux.HandleFunc("/img", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("JPEGDATA"))
	})

	client := NewImageClient(ImageConfig{Endpoint: server.URL + "/generate"})
	data, mimeType, err := client.Generate(context.Background(), "a sunset")
	require.NoError(t, err)
	assert.Equal(t, []byte("JPEGDATA"), data)
	assert.Equal(t, "image/jpeg", mimeType)
}

func TestImageMalformedEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"unexpected": true}`))
	}))
	defer server.Close()

	client := NewImageClient(ImageConfig{Endpoint: server.URL})
	_, _, err := client.Generate(context.Background(), "a sunset")
	require.Error(t, err)
	_, ok := provider.AsError(err)
	assert.True(t, ok)
}

func TestExtensionFor(t *testing.T) {
	cases := []struct {
		mimeType string
		want     string
	}{
		{"audio/ogg", ".ogg"},
		{"audio/mpeg", ".mp3"},
		{"image/png", ".png"},
		{"image/jpeg", ".jpg"},
		{"application/x-unknown", ".bin"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ExtensionFor(tc.mimeType), tc.mimeType)
	}
}

func TestArtifactStoreSave(t *testing.T) {
	dir := t.TempDir()
	store, err := NewArtifactStore(dir, "https://aura.example.com/")
	require.NoError(t, err)

	name, publicURL, err := store.Save([]byte("OGGDATA"), "audio/ogg")
	require.NoError(t, err)
	assert.Contains(t, name, ".ogg")
	assert.Equal(t, "https://aura.example.com/media/"+name, publicURL)

	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	assert.Equal(t, []byte("OGGDATA"), data)
}
