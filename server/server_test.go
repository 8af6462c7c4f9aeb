package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-chat/aura/ai/llm"
	"github.com/aura-chat/aura/ai/memory"
	"github.com/aura-chat/aura/ai/modality"
	"github.com/aura-chat/aura/ai/persona"
	"github.com/aura-chat/aura/ai/pipeline"
	"github.com/aura-chat/aura/internal/profile"
	"github.com/aura-chat/aura/plugin/chat_apps/channels"
	"github.com/aura-chat/aura/plugin/chat_apps/channels/whatsapp"
	"github.com/aura-chat/aura/plugin/chat_apps/metrics"
)

type scriptedLLM struct {
	mu      sync.Mutex
	reply   string
	prompts [][]llm.Message
}

func (s *scriptedLLM) Chat(_ context.Context, messages []llm.Message) (string, *llm.CallStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, messages)
	return s.reply, &llm.CallStats{}, nil
}

func (s *scriptedLLM) Warmup(context.Context) {}

func newTestServer(t *testing.T, svc llm.Service) (*Server, *channels.ChannelRouter) {
	t.Helper()

	driver, err := memory.NewFileDriver(t.TempDir())
	require.NoError(t, err)
	store := memory.NewStore(driver, memory.DefaultLimits())
	t.Cleanup(func() { _ = store.Close() })

	router := channels.NewChannelRouter()
	pl := pipeline.New(store, svc, persona.NewProvider(), nil, pipeline.Options{
		Dispatcher: router,
		ModalityConfig: &modality.Config{
			VoiceKeywords:    []string{"say this"},
			EmotionKeywords:  []string{"lonely"},
			VoiceProbability: 0,
			ImageProbability: 0,
		},
	})

	p := &profile.Profile{Mode: "dev", Port: 0, Version: "0.1.0-test"}
	return NewServer(p, pl, router, metrics.NewExporter(metrics.DefaultConfig()), ""), router
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t, &scriptedLLM{reply: "hi"})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	s.Echo().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.Contains(t, rec.Body.String(), "0.1.0-test")
}

func TestChatEndpointCarriesMemoryAcrossTurns(t *testing.T) {
	svc := &scriptedLLM{reply: "you like painting!"}
	s, _ := newTestServer(t, svc)

	first := postChat(t, s, `{"message":"hi, my name is Aria and I like painting"}`)
	require.NotEmpty(t, first.ConversationID)
	assert.Equal(t, "you like painting!", first.Reply)
	assert.Equal(t, "text", first.Modality)

	second := postChat(t, s, `{"message":"what do I like?","conversation_id":"`+first.ConversationID+`"}`)
	assert.Equal(t, first.ConversationID, second.ConversationID)

	require.Len(t, svc.prompts, 2)
	system := svc.prompts[1][0]
	require.Equal(t, "system", system.Role)
	assert.Contains(t, system.Content, "Aria")
	assert.Contains(t, system.Content, "painting")
}

func TestChatEndpointRejectsEmptyMessage(t *testing.T) {
	s, _ := newTestServer(t, &scriptedLLM{reply: "hi"})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(`{"message":""}`))
	req.Header.Set(echoContentType, "application/json")
	s.Echo().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWhatsAppWebhookRepliesWithTwiML(t *testing.T) {
	s, router := newTestServer(t, &scriptedLLM{reply: "hello from Aura"})
	router.Register(whatsapp.NewChannel(whatsapp.Config{
		AccountSID: "AC123",
		AuthToken:  "secret",
		FromNumber: "whatsapp:+14155238886",
	}))

	form := url.Values{}
	form.Set("From", "whatsapp:+15551234567")
	form.Set("Body", "hi there")
	form.Set("MessageSid", "SM123")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader(form.Encode()))
	req.Header.Set(echoContentType, "application/x-www-form-urlencoded")
	s.Echo().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/xml")
	assert.Contains(t, rec.Body.String(), "<Body>hello from Aura</Body>")
}

func TestTelegramWebhookWithoutChannel(t *testing.T) {
	s, _ := newTestServer(t, &scriptedLLM{reply: "hi"})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/telegram", strings.NewReader(`{}`))
	s.Echo().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

const echoContentType = "Content-Type"

func postChat(t *testing.T, s *Server, body string) ChatResponse {
	t.Helper()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(body))
	req.Header.Set(echoContentType, "application/json")
	s.Echo().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}
