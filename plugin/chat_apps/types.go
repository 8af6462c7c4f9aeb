// Package chat_apps provides multi-platform chat app integration for Aura.
// Supported platforms: Telegram, WhatsApp (via Twilio), plus the generic web
// test endpoint.
package chat_apps

import "time"

// MessageType represents the type of message.
type MessageType int

const (
	MessageTypeText MessageType = iota
	MessageTypePhoto
	MessageTypeAudio
)

// String returns the string representation of MessageType.
func (m MessageType) String() string {
	switch m {
	case MessageTypeText:
		return "text"
	case MessageTypePhoto:
		return "photo"
	case MessageTypeAudio:
		return "audio"
	default:
		return "unknown"
	}
}

// Platform represents a supported chat platform.
type Platform string

const (
	PlatformTelegram Platform = "telegram"
	PlatformWhatsApp Platform = "whatsapp"
	PlatformWeb      Platform = "web"
)

// IsValid checks if the platform is valid.
func (p Platform) IsValid() bool {
	switch p {
	case PlatformTelegram, PlatformWhatsApp, PlatformWeb:
		return true
	default:
		return false
	}
}

// IncomingMessage represents a message from a chat platform.
type IncomingMessage struct {
	Platform       Platform          // Source platform
	PlatformUserID string            // Platform-specific user ID
	PlatformChatID string            // Conversation identifier, scopes memory
	Type           MessageType       // Message type
	Content        string            // Text content
	Metadata       map[string]string // Additional platform-specific metadata
	Timestamp      time.Time         // Message timestamp
}

// OutgoingMessage represents a message to send to a chat platform.
type OutgoingMessage struct {
	PlatformChatID string      // Destination chat ID
	Type           MessageType // Message type
	Content        string      // Text content (caption for photo messages)
	MediaData      []byte      // Media bytes for platforms that upload directly
	MediaURL       string      // Public media URL for platforms that fetch it
	MimeType       string      // MIME type of media
	FileName       string      // Filename for media uploads
	ParseMode      string      // Markdown/HTML parsing mode (optional)
}
