// Package telegram implements the Telegram Bot channel.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/aura-chat/aura/plugin/chat_apps"
	"github.com/aura-chat/aura/plugin/chat_apps/channels"
)

const DefaultParseMode = "Markdown"

// Telegram allows roughly 30 messages per second bot-wide.
const sendRateLimit = rate.Limit(25)

// Config holds configuration for the Telegram channel.
type Config struct {
	BotToken string
}

// Channel implements ChatChannel for the Telegram Bot API.
type Channel struct {
	bot     *tgbotapi.BotAPI
	limiter *rate.Limiter
}

// NewChannel creates a new Telegram channel.
func NewChannel(config *Config) (*Channel, error) {
	bot, err := tgbotapi.NewBotAPI(config.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	return &Channel{
		bot:     bot,
		limiter: rate.NewLimiter(sendRateLimit, 5),
	}, nil
}

// Name returns the platform name.
func (t *Channel) Name() chat_apps.Platform {
	return chat_apps.PlatformTelegram
}

// ParseMessage parses the incoming webhook payload into an IncomingMessage.
func (t *Channel) ParseMessage(ctx context.Context, payload []byte) (*chat_apps.IncomingMessage, error) {
	var update tgbotapi.Update
	if err := json.Unmarshal(payload, &update); err != nil {
		slog.Warn("telegram: failed to parse webhook payload", "error", err)
		return nil, channels.ErrInvalidPayload
	}

	// Only fresh messages start a turn. Edits, channel posts, and other
	// update kinds are dropped so the same utterance never replays a turn.
	tgMsg := update.Message
	if tgMsg == nil {
		return nil, channels.ErrInvalidPayload
	}

	if tgMsg.From == nil || tgMsg.Chat == nil {
		return nil, channels.ErrInvalidPayload
	}

	msg := &chat_apps.IncomingMessage{
		Platform:       chat_apps.PlatformTelegram,
		PlatformUserID: strconv.FormatInt(tgMsg.From.ID, 10),
		PlatformChatID: strconv.FormatInt(tgMsg.Chat.ID, 10),
		Content:        tgMsg.Text,
		Timestamp:      time.Now(),
		Metadata:       make(map[string]string),
	}

	msg.Metadata["update_id"] = strconv.Itoa(update.UpdateID)
	msg.Metadata["username"] = tgMsg.From.UserName

	switch {
	case len(tgMsg.Photo) > 0:
		msg.Type = chat_apps.MessageTypePhoto
		msg.Content = tgMsg.Caption
	case tgMsg.Voice != nil, tgMsg.Audio != nil:
		msg.Type = chat_apps.MessageTypeAudio
	default:
		msg.Type = chat_apps.MessageTypeText
	}

	return msg, nil
}

// SendMessage sends a message to Telegram.
func (t *Channel) SendMessage(ctx context.Context, msg *chat_apps.OutgoingMessage) error {
	slog.Debug("telegram: sending message",
		"chat_id", msg.PlatformChatID,
		"type", msg.Type,
	)

	chatID, err := strconv.ParseInt(msg.PlatformChatID, 10, 64)
	if err != nil {
		slog.Error("telegram: invalid chat ID", "chat_id", msg.PlatformChatID, "error", err)
		return fmt.Errorf("invalid chat ID: %w", err)
	}

	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}

	switch msg.Type {
	case chat_apps.MessageTypePhoto:
		return t.sendPhoto(chatID, msg)
	case chat_apps.MessageTypeAudio:
		return t.sendVoice(chatID, msg)
	default:
		return t.sendText(chatID, msg)
	}
}

// SendTyping shows the typing indicator in the chat.
func (t *Channel) SendTyping(ctx context.Context, chatIDStr string) error {
	chatID, err := strconv.ParseInt(chatIDStr, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat ID: %w", err)
	}
	_, err = t.bot.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping))
	return err
}

// Close closes the Telegram channel.
func (t *Channel) Close() error {
	return nil
}

func (t *Channel) sendText(chatID int64, msg *chat_apps.OutgoingMessage) error {
	tgMsg := tgbotapi.NewMessage(chatID, msg.Content)
	if msg.ParseMode != "" {
		tgMsg.ParseMode = msg.ParseMode
	}
	_, err := t.bot.Send(tgMsg)
	if err != nil {
		return channels.SendFailed("telegram text send failed", err)
	}
	return nil
}

func (t *Channel) sendPhoto(chatID int64, msg *chat_apps.OutgoingMessage) error {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{
		Name:  msg.FileName,
		Bytes: msg.MediaData,
	})
	photo.Caption = msg.Content
	if msg.ParseMode != "" {
		photo.ParseMode = msg.ParseMode
	}
	_, err := t.bot.Send(photo)
	if err != nil {
		return channels.SendFailed("telegram photo send failed", err)
	}
	return nil
}

func (t *Channel) sendVoice(chatID int64, msg *chat_apps.OutgoingMessage) error {
	voice := tgbotapi.NewVoice(chatID, tgbotapi.FileBytes{
		Name:  msg.FileName,
		Bytes: msg.MediaData,
	})
	_, err := t.bot.Send(voice)
	if err != nil {
		return channels.SendFailed("telegram voice send failed", err)
	}
	return nil
}

// Ensure Channel implements ChatChannel
var _ channels.ChatChannel = (*Channel)(nil)
