// Package whatsapp implements WhatsApp integration via the Twilio Messages API.
package whatsapp

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aura-chat/aura/plugin/chat_apps"
	"github.com/aura-chat/aura/plugin/chat_apps/channels"
)

const twilioAPIBase = "https://api.twilio.com/2010-04-01"

// Config holds configuration for the Twilio WhatsApp channel.
type Config struct {
	AccountSID string
	AuthToken  string
	FromNumber string // e.g. "whatsapp:+14155238886"
}

// Channel implements ChatChannel for WhatsApp through Twilio.
type Channel struct {
	config     Config
	apiBase    string
	httpClient *http.Client
}

// NewChannel creates a new Twilio WhatsApp channel.
func NewChannel(config Config) *Channel {
	return &Channel{
		config:  config,
		apiBase: twilioAPIBase,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Name returns the platform name.
func (w *Channel) Name() chat_apps.Platform {
	return chat_apps.PlatformWhatsApp
}

// ParseMessage parses the form-encoded Twilio webhook payload.
func (w *Channel) ParseMessage(ctx context.Context, payload []byte) (*chat_apps.IncomingMessage, error) {
	values, err := url.ParseQuery(string(payload))
	if err != nil {
		slog.Warn("whatsapp: failed to parse webhook payload", "error", err)
		return nil, channels.ErrInvalidPayload
	}

	from := values.Get("From")
	if from == "" {
		return nil, channels.ErrInvalidPayload
	}

	msg := &chat_apps.IncomingMessage{
		Platform:       chat_apps.PlatformWhatsApp,
		PlatformUserID: from,
		PlatformChatID: from,
		Type:           chat_apps.MessageTypeText,
		Content:        values.Get("Body"),
		Timestamp:      time.Now(),
		Metadata:       make(map[string]string),
	}
	msg.Metadata["message_sid"] = values.Get("MessageSid")

	if values.Get("NumMedia") != "" && values.Get("NumMedia") != "0" {
		switch {
		case strings.HasPrefix(values.Get("MediaContentType0"), "audio/"):
			msg.Type = chat_apps.MessageTypeAudio
		case strings.HasPrefix(values.Get("MediaContentType0"), "image/"):
			msg.Type = chat_apps.MessageTypePhoto
		}
	}

	return msg, nil
}

// SendMessage sends a message through the Twilio Messages API.
// Media is referenced by public URL; Twilio fetches it itself.
func (w *Channel) SendMessage(ctx context.Context, msg *chat_apps.OutgoingMessage) error {
	form := url.Values{}
	form.Set("To", msg.PlatformChatID)
	form.Set("From", w.config.FromNumber)
	if msg.Content != "" {
		form.Set("Body", msg.Content)
	}
	if msg.MediaURL != "" {
		form.Set("MediaUrl", msg.MediaURL)
	}

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", w.apiBase, w.config.AccountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(w.config.AccountSID, w.config.AuthToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return channels.SendFailed("twilio send failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		slog.Error("whatsapp: twilio rejected message",
			"status", resp.StatusCode,
			"body", string(body),
		)
		return channels.SendFailed(fmt.Sprintf("twilio returned status %d", resp.StatusCode), nil)
	}

	var created struct {
		SID string `json:"sid"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err == nil {
		slog.Debug("whatsapp: message queued", "sid", created.SID, "to", msg.PlatformChatID)
	}
	return nil
}

// SendTyping is a no-op: the Twilio WhatsApp API has no typing indicator.
func (w *Channel) SendTyping(ctx context.Context, chatID string) error {
	return nil
}

// Close closes the channel.
func (w *Channel) Close() error {
	return nil
}

// twimlResponse is the synchronous webhook reply envelope.
type twimlResponse struct {
	XMLName xml.Name     `xml:"Response"`
	Message twimlMessage `xml:"Message"`
}

type twimlMessage struct {
	Body  string `xml:"Body,omitempty"`
	Media string `xml:"Media,omitempty"`
}

// TwiML renders the synchronous webhook reply. Twilio delivers it to the
// sender without a separate API call. mediaURL attaches voice or image media
// and may be empty.
func TwiML(reply, mediaURL string) ([]byte, error) {
	out, err := xml.Marshal(twimlResponse{Message: twimlMessage{Body: reply, Media: mediaURL}})
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}

// Ensure Channel implements ChatChannel
var _ channels.ChatChannel = (*Channel)(nil)
