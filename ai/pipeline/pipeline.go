// Package pipeline orchestrates one conversation turn end to end: memory
// update, prompt assembly, chat completion, modality decision, media
// synthesis, and channel dispatch.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/aura-chat/aura/ai/knowledge"
	"github.com/aura-chat/aura/ai/llm"
	"github.com/aura-chat/aura/ai/media"
	"github.com/aura-chat/aura/ai/memory"
	"github.com/aura-chat/aura/ai/modality"
	"github.com/aura-chat/aura/ai/persona"
	"github.com/aura-chat/aura/ai/prompt"
	chat_apps "github.com/aura-chat/aura/plugin/chat_apps"
	"github.com/aura-chat/aura/plugin/chat_apps/channels"
	"github.com/aura-chat/aura/plugin/chat_apps/metrics"
)

const (
	// mediaConcurrency bounds in-flight TTS and image synthesis calls.
	mediaConcurrency = 4

	// typingDelayPerRune approximates a human typing cadence for the
	// simulated typing indicator. Capped by maxTypingDelay.
	typingDelayPerRune = 18 * time.Millisecond
	maxTypingDelay     = 3 * time.Second

	voiceMimeType = "audio/mpeg"
)

// Degrade texts returned when a remote dependency fails. The turn still
// completes with a text reply.
const (
	llmDegradeText     = "(Error: I couldn't reach my thoughts just now. Give me a moment and try again?)"
	storageDegradeText = "(Error: my memory is acting up right now, but I'm still here with you.)"
)

// Speech synthesizes spoken audio for a reply.
type Speech interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// ImageGenerator renders an image for a prompt and returns the raw bytes with
// their MIME type.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) ([]byte, string, error)
}

// Artifacts persists generated media and returns the filename and public URL.
type Artifacts interface {
	Save(data []byte, mimeType string) (string, string, error)
}

// Dispatcher delivers outgoing messages to a chat platform. Satisfied by
// channels.ChannelRouter.
type Dispatcher interface {
	SendResponse(ctx context.Context, platform chat_apps.Platform, msg *chat_apps.OutgoingMessage) error
	GetChannel(platform chat_apps.Platform) channels.ChatChannel
}

// Reply is the assembled outcome of one turn.
type Reply struct {
	Text      string
	Voice     []byte // non-nil when the reply is spoken
	VoiceMime string
	VoiceURL  string // public URL when an artifact store is configured
	Image     []byte // non-nil when an image accompanies the text
	ImageMime string
	ImageURL  string
	Modality  string // "text", "voice", or "image"
}

// Pipeline wires the turn stages together. Zero-value optional dependencies
// (speech, image, artifacts, dispatcher, metrics) degrade to text-only
// behavior.
type Pipeline struct {
	store      *memory.Store
	llm        llm.Service
	persona    *persona.Provider
	corpus     *knowledge.Corpus
	policy     *modality.Policy
	speech     Speech
	image      ImageGenerator
	artifacts  Artifacts
	dispatcher Dispatcher
	metrics    *metrics.Exporter

	mediaSem *semaphore.Weighted

	// turnMu serializes turns per conversation so memory updates and
	// session replay observe arrival order. Never held across the remote
	// media dispatch.
	mu    sync.Mutex
	turns map[string]*sync.Mutex
}

// Options carries the optional pipeline dependencies.
type Options struct {
	Speech         Speech
	Image          ImageGenerator
	Artifacts      Artifacts
	Dispatcher     Dispatcher
	Metrics        *metrics.Exporter
	ModalityRand   *rand.Rand
	ModalityConfig *modality.Config
}

// New creates a turn pipeline.
func New(store *memory.Store, svc llm.Service, pers *persona.Provider, corpus *knowledge.Corpus, opts Options) *Pipeline {
	cfg := modality.DefaultConfig()
	if opts.ModalityConfig != nil {
		cfg = *opts.ModalityConfig
	}
	return &Pipeline{
		store:      store,
		llm:        svc,
		persona:    pers,
		corpus:     corpus,
		policy:     modality.NewPolicy(cfg, opts.ModalityRand),
		speech:     opts.Speech,
		image:      opts.Image,
		artifacts:  opts.Artifacts,
		dispatcher: opts.Dispatcher,
		metrics:    opts.Metrics,
		mediaSem:   semaphore.NewWeighted(mediaConcurrency),
		turns:      make(map[string]*sync.Mutex),
	}
}

func (p *Pipeline) turnLock(conversationID string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	lock, ok := p.turns[conversationID]
	if !ok {
		lock = &sync.Mutex{}
		p.turns[conversationID] = lock
	}
	return lock
}

// Respond runs one full turn for a conversation and returns the reply. Remote
// failures degrade to a text reply; the returned error is reserved for
// context cancellation.
func (p *Pipeline) Respond(ctx context.Context, conversationID, message string) (*Reply, error) {
	start := time.Now()
	status := "ok"

	lock := p.turnLock(conversationID)
	lock.Lock()
	defer lock.Unlock()

	reply, err := p.respondLocked(ctx, conversationID, message, &status)
	if p.metrics != nil {
		p.metrics.RecordTurn(platformOf(conversationID), status, time.Since(start))
		if reply != nil {
			p.metrics.RecordModality(reply.Modality)
		}
	}
	return reply, err
}

func (p *Pipeline) respondLocked(ctx context.Context, conversationID, message string, status *string) (*Reply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return &Reply{Text: "I didn't catch that. Say something?", Modality: "text"}, nil
	}

	record, err := p.store.Update(ctx, conversationID, message)
	if err != nil {
		slog.Error("pipeline: memory update failed", "conversation", conversationID, "error", err)
		*status = "storage_error"
		return &Reply{Text: storageDegradeText, Modality: "text"}, nil
	}

	session := p.store.Session(conversationID)
	session.AddEmotions(memory.DetectEmotions(message))
	recent := session.RecentTurns(p.store.Limits().MaxShortTermTurns)

	in := prompt.Input{
		Safety:           p.persona.Safety(),
		Persona:          p.persona.Persona(),
		Behavior:         p.persona.Behavior(),
		Mood:             p.persona.Mood(),
		MemorySummary:    record.ContextSummary(),
		EmotionalSummary: session.EmotionalSummary(),
		RecentTurns:      recent,
		UserMessage:      message,
	}
	if p.corpus != nil {
		if snippet := p.corpus.Lookup(message); snippet != nil {
			in.Knowledge = snippet.Text
		}
	}

	text, stats, err := p.llm.Chat(ctx, prompt.BuildPrompt(in))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		slog.Error("pipeline: chat completion failed", "conversation", conversationID, "error", err)
		*status = "llm_error"
		text = llmDegradeText
	} else if stats != nil && p.metrics != nil {
		p.metrics.RecordProviderCall("chat", "ok", time.Duration(stats.TotalDurationMs)*time.Millisecond)
	}

	session.AddTurn("user", message)
	session.AddTurn("assistant", text)

	reply := &Reply{Text: text, Modality: "text"}
	if *status != "ok" {
		return reply, nil
	}

	decision := p.policy.Decide(message)
	if decision.Voice {
		p.attachVoice(ctx, reply)
	}
	if decision.Image {
		p.attachImage(ctx, reply, message)
	}
	return reply, nil
}

// attachVoice synthesizes the spoken reply. Failure keeps the text reply.
func (p *Pipeline) attachVoice(ctx context.Context, reply *Reply) {
	if p.speech == nil {
		return
	}
	if err := p.mediaSem.Acquire(ctx, 1); err != nil {
		return
	}
	defer p.mediaSem.Release(1)

	start := time.Now()
	audio, err := p.speech.Synthesize(ctx, reply.Text)
	if err != nil {
		slog.Warn("pipeline: voice synthesis failed, falling back to text", "error", err)
		p.recordProviderCall("tts", "error", time.Since(start))
		return
	}
	p.recordProviderCall("tts", "ok", time.Since(start))

	reply.Voice = audio
	reply.VoiceMime = voiceMimeType
	reply.Modality = "voice"
	if p.artifacts != nil {
		if _, url, err := p.artifacts.Save(audio, voiceMimeType); err != nil {
			slog.Warn("pipeline: failed to store voice artifact", "error", err)
		} else {
			reply.VoiceURL = url
		}
	}
}

// attachImage renders an accompanying image. Failure keeps the text reply.
func (p *Pipeline) attachImage(ctx context.Context, reply *Reply, userMessage string) {
	if p.image == nil {
		return
	}
	if err := p.mediaSem.Acquire(ctx, 1); err != nil {
		return
	}
	defer p.mediaSem.Release(1)

	start := time.Now()
	data, mimeType, err := p.image.Generate(ctx, imagePrompt(userMessage))
	if err != nil {
		slog.Warn("pipeline: image generation failed, falling back to text", "error", err)
		p.recordProviderCall("image", "error", time.Since(start))
		return
	}
	p.recordProviderCall("image", "ok", time.Since(start))

	reply.Image = data
	reply.ImageMime = mimeType
	reply.Modality = "image"
	if p.artifacts != nil {
		if _, url, err := p.artifacts.Save(data, mimeType); err != nil {
			slog.Warn("pipeline: failed to store image artifact", "error", err)
		} else {
			reply.ImageURL = url
		}
	}
}

func (p *Pipeline) recordProviderCall(operation, status string, d time.Duration) {
	if p.metrics != nil {
		p.metrics.RecordProviderCall(operation, status, d)
	}
}

// HandleIncoming processes a platform message and dispatches the reply back
// over the originating channel. Used by the asynchronous webhook paths.
func (p *Pipeline) HandleIncoming(ctx context.Context, msg *chat_apps.IncomingMessage) error {
	if p.dispatcher == nil {
		return fmt.Errorf("no dispatcher configured")
	}

	if ch := p.dispatcher.GetChannel(msg.Platform); ch != nil {
		if err := ch.SendTyping(ctx, msg.PlatformChatID); err != nil {
			slog.Debug("pipeline: typing indicator failed", "platform", msg.Platform, "error", err)
		}
	}

	reply, err := p.Respond(ctx, ConversationID(msg.Platform, msg.PlatformChatID), msg.Content)
	if err != nil {
		return err
	}

	waitTyping(ctx, reply.Text)
	if err := p.dispatcher.SendResponse(ctx, msg.Platform, outgoing(msg.PlatformChatID, reply)); err != nil {
		retryable := false
		var cerr *channels.ChannelError
		if errors.As(err, &cerr) {
			retryable = cerr.IsRetryable()
		}
		// Delivery is not retried; the turn ends here either way.
		slog.Error("pipeline: delivery failed",
			"platform", msg.Platform,
			"chat", msg.PlatformChatID,
			"retryable", retryable,
			"error", err,
		)
		return err
	}
	return nil
}

// ConversationID scopes memory per platform chat so conversations never
// bleed into each other.
func ConversationID(platform chat_apps.Platform, chatID string) string {
	return string(platform) + ":" + chatID
}

func platformOf(conversationID string) string {
	if i := strings.IndexByte(conversationID, ':'); i > 0 {
		return conversationID[:i]
	}
	return "web"
}

// outgoing maps a reply onto the wire message for a channel. Voice replaces
// the text payload; an image carries the text as its caption.
func outgoing(chatID string, reply *Reply) *chat_apps.OutgoingMessage {
	out := &chat_apps.OutgoingMessage{
		PlatformChatID: chatID,
		Type:           chat_apps.MessageTypeText,
		Content:        reply.Text,
	}
	switch {
	case reply.Voice != nil:
		out.Type = chat_apps.MessageTypeAudio
		out.MediaData = reply.Voice
		out.MediaURL = reply.VoiceURL
		out.MimeType = reply.VoiceMime
		out.FileName = "voice" + media.ExtensionFor(reply.VoiceMime)
	case reply.Image != nil:
		out.Type = chat_apps.MessageTypePhoto
		out.MediaData = reply.Image
		out.MediaURL = reply.ImageURL
		out.MimeType = reply.ImageMime
		out.FileName = "image" + media.ExtensionFor(reply.ImageMime)
	}
	return out
}

// imagePrompt derives the image description from the user's message.
func imagePrompt(userMessage string) string {
	return "A warm, softly lit illustration inspired by: " + userMessage
}

// waitTyping simulates a human typing cadence before the reply is dispatched.
func waitTyping(ctx context.Context, text string) {
	delay := time.Duration(len(text)) * typingDelayPerRune
	if delay > maxTypingDelay {
		delay = maxTypingDelay
	}
	if delay <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(delay):
	}
}
