package whatsapp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-chat/aura/plugin/chat_apps"
	"github.com/aura-chat/aura/plugin/chat_apps/channels"
)

func TestParseMessage(t *testing.T) {
	payload := url.Values{}
	payload.Set("From", "whatsapp:+15551234567")
	payload.Set("Body", "hello aura")
	payload.Set("MessageSid", "SM123")

	ch := NewChannel(Config{})
	msg, err := ch.ParseMessage(context.Background(), []byte(payload.Encode()))
	require.NoError(t, err)

	assert.Equal(t, chat_apps.PlatformWhatsApp, msg.Platform)
	assert.Equal(t, "whatsapp:+15551234567", msg.PlatformChatID)
	assert.Equal(t, "hello aura", msg.Content)
	assert.Equal(t, chat_apps.MessageTypeText, msg.Type)
	assert.Equal(t, "SM123", msg.Metadata["message_sid"])
}

func TestParseMessageMissingSender(t *testing.T) {
	ch := NewChannel(Config{})
	_, err := ch.ParseMessage(context.Background(), []byte("Body=hi"))
	assert.ErrorIs(t, err, channels.ErrInvalidPayload)
}

func TestParseMessageAudioMedia(t *testing.T) {
	payload := url.Values{}
	payload.Set("From", "whatsapp:+15551234567")
	payload.Set("NumMedia", "1")
	payload.Set("MediaContentType0", "audio/ogg")

	ch := NewChannel(Config{})
	msg, err := ch.ParseMessage(context.Background(), []byte(payload.Encode()))
	require.NoError(t, err)
	assert.Equal(t, chat_apps.MessageTypeAudio, msg.Type)
}

func TestSendMessage(t *testing.T) {
	var gotForm url.Values
	var gotUser string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm
		gotUser, _, _ = r.BasicAuth()
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid": "SM999"}`))
	}))
	defer server.Close()

	ch := NewChannel(Config{AccountSID: "AC1", AuthToken: "secret", FromNumber: "whatsapp:+14155238886"})
	ch.apiBase = server.URL

	err := ch.SendMessage(context.Background(), &chat_apps.OutgoingMessage{
		PlatformChatID: "whatsapp:+15551234567",
		Content:        "hi",
		MediaURL:       "https://aura.example.com/media/x.ogg",
	})
	require.NoError(t, err)

	assert.Equal(t, "AC1", gotUser)
	assert.Equal(t, "whatsapp:+15551234567", gotForm.Get("To"))
	assert.Equal(t, "whatsapp:+14155238886", gotForm.Get("From"))
	assert.Equal(t, "hi", gotForm.Get("Body"))
	assert.Equal(t, "https://aura.example.com/media/x.ogg", gotForm.Get("MediaUrl"))
}

func TestSendMessageRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message": "bad number"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	ch := NewChannel(Config{AccountSID: "AC1", AuthToken: "secret"})
	ch.apiBase = server.URL

	err := ch.SendMessage(context.Background(), &chat_apps.OutgoingMessage{PlatformChatID: "whatsapp:+1", Content: "hi"})
	require.Error(t, err)

	var channelErr *channels.ChannelError
	require.ErrorAs(t, err, &channelErr)
	assert.Equal(t, "SEND_FAILED", channelErr.Code)
}

func TestTwiML(t *testing.T) {
	out, err := TwiML("hello & welcome", "")
	require.NoError(t, err)
	assert.Contains(t, string(out), "<Response><Message><Body>hello &amp; welcome</Body></Message></Response>")
}

func TestTwiMLWithMedia(t *testing.T) {
	out, err := TwiML("listen to this", "https://aura.example.com/media/abc.mp3")
	require.NoError(t, err)
	assert.Contains(t, string(out), "<Body>listen to this</Body>")
	assert.Contains(t, string(out), "<Media>https://aura.example.com/media/abc.mp3</Media>")
}
