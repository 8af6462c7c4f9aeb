// Package channels provides the ChatChannel interface for all chat platform
// integrations.
package channels

import (
	"context"
	"io"
	"sync"

	"github.com/aura-chat/aura/plugin/chat_apps"
)

// ChatChannel defines the interface for all chat platform integrations.
type ChatChannel interface {
	// Name returns the platform name (e.g., "telegram", "whatsapp").
	Name() chat_apps.Platform

	// ParseMessage parses the incoming webhook payload into an IncomingMessage.
	// The payload format is platform-specific (JSON for Telegram,
	// form-encoded for Twilio).
	ParseMessage(ctx context.Context, payload []byte) (*chat_apps.IncomingMessage, error)

	// SendMessage sends a single message to the chat platform.
	SendMessage(ctx context.Context, msg *chat_apps.OutgoingMessage) error

	// SendTyping signals a typing indicator where the platform supports one.
	// Best-effort: failures are ignored by callers.
	SendTyping(ctx context.Context, chatID string) error

	// Close closes any open connections and releases resources.
	Close() error
}

// ChannelRouter routes outgoing payloads to the appropriate platform channel.
// Concurrent-safe for Register and GetChannel operations.
type ChannelRouter struct {
	mu       sync.RWMutex
	registry map[chat_apps.Platform]ChatChannel
}

// NewChannelRouter creates a new channel router.
func NewChannelRouter() *ChannelRouter {
	return &ChannelRouter{
		registry: make(map[chat_apps.Platform]ChatChannel),
	}
}

// Register registers a chat channel for a platform.
func (r *ChannelRouter) Register(channel ChatChannel) {
	r.mu.Lock()
	r.registry[channel.Name()] = channel
	r.mu.Unlock()
}

// GetChannel returns the channel for a platform, or nil if not registered.
func (r *ChannelRouter) GetChannel(platform chat_apps.Platform) ChatChannel {
	r.mu.RLock()
	ch := r.registry[platform]
	r.mu.RUnlock()
	return ch
}

// SendResponse sends a single response message to a chat platform.
func (r *ChannelRouter) SendResponse(ctx context.Context, platform chat_apps.Platform, msg *chat_apps.OutgoingMessage) error {
	channel := r.GetChannel(platform)
	if channel == nil {
		return ErrNoChannelForPlatform
	}
	return channel.SendMessage(ctx, msg)
}

// Errors
var (
	ErrNoChannelForPlatform = &ChannelError{Code: "NO_CHANNEL", Message: "no channel registered for platform"}
	ErrInvalidPayload       = &ChannelError{Code: "INVALID_PAYLOAD", Message: "could not parse webhook payload"}
	ErrSendFailed           = &ChannelError{Code: "SEND_FAILED", Message: "failed to deliver message"}
)

// ChannelError represents an error in channel operations.
type ChannelError struct {
	Code    string
	Message string
	Err     error
}

// SendFailed wraps a delivery failure under the ErrSendFailed code.
func SendFailed(message string, err error) *ChannelError {
	return &ChannelError{Code: ErrSendFailed.Code, Message: message, Err: err}
}

func (e *ChannelError) Error() string {
	if e.Err != nil {
		return e.Code + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Code + ": " + e.Message
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is transient and the operation can be retried.
func (e *ChannelError) IsRetryable() bool {
	switch e.Code {
	case "NO_CHANNEL", "INVALID_PAYLOAD":
		return false
	default:
		return true
	}
}

// io.Closer interface for cleanup
var _ io.Closer = (*ChannelRouter)(nil)

// Close closes all registered channels.
func (r *ChannelRouter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for _, channel := range r.registry {
		if err := channel.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
