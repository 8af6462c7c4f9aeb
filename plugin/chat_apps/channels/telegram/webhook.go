// Webhook registration helpers for the Telegram Bot.
package telegram

import (
	"context"
	"net/url"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// WebhookHandler manages the bot-side webhook registration.
type WebhookHandler struct {
	channel *Channel
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(channel *Channel) *WebhookHandler {
	return &WebhookHandler{channel: channel}
}

// SetWebhook sets the webhook for the Telegram bot.
func (h *WebhookHandler) SetWebhook(ctx context.Context, webhookURL string, dropPendingUpdates bool) error {
	parsedURL, err := url.Parse(webhookURL)
	if err != nil {
		return err
	}
	_, err = h.channel.bot.Request(tgbotapi.WebhookConfig{
		URL:                parsedURL,
		DropPendingUpdates: dropPendingUpdates,
	})
	return err
}

// DeleteWebhook removes the webhook for the Telegram bot.
func (h *WebhookHandler) DeleteWebhook(ctx context.Context) error {
	_, err := h.channel.bot.Request(tgbotapi.DeleteWebhookConfig{
		DropPendingUpdates: true,
	})
	return err
}

// GetWebhookInfo returns information about the current webhook.
func (h *WebhookHandler) GetWebhookInfo(ctx context.Context) (tgbotapi.WebhookInfo, error) {
	return h.channel.bot.GetWebhookInfo()
}
