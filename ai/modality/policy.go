// Package modality decides the output form of a reply turn: text, synthesized
// voice, or generated image.
package modality

import (
	"log/slog"
	"math/rand"
	"strings"
	"sync"
)

// Decision is the modality outcome for one turn. Voice replaces the text
// payload; an image accompanies it. When neither fires, text is the fallback.
type Decision struct {
	Voice bool
	Image bool
}

// Config holds the keyword triggers and sampling thresholds.
type Config struct {
	// VoiceKeywords force a voice reply when present in the user message.
	VoiceKeywords []string
	// EmotionKeywords force a voice reply when present in the user message.
	EmotionKeywords []string
	// VoiceProbability is the Bernoulli threshold for a spontaneous voice reply.
	VoiceProbability float64
	// ImageProbability is the independent Bernoulli threshold for an image.
	ImageProbability float64
}

// DefaultConfig returns the default triggers and thresholds.
func DefaultConfig() Config {
	return Config{
		VoiceKeywords:    []string{"voice", "say this", "send audio", "repeat", "speak"},
		EmotionKeywords:  []string{"sad", "tired", "lonely", "stressed", "miss you"},
		VoiceProbability: 0.25,
		ImageProbability: 0.12,
	}
}

// Policy is the layered modality decision. The random source is injected so
// decisions are reproducible in tests.
type Policy struct {
	config Config

	mu  sync.Mutex
	rng *rand.Rand
}

// NewPolicy creates a policy. A nil rng falls back to an unseeded source.
func NewPolicy(config Config, rng *rand.Rand) *Policy {
	if len(config.VoiceKeywords) == 0 {
		config.VoiceKeywords = DefaultConfig().VoiceKeywords
	}
	if len(config.EmotionKeywords) == 0 {
		config.EmotionKeywords = DefaultConfig().EmotionKeywords
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return &Policy{config: config, rng: rng}
}

// Decide evaluates the layered decision for one turn, with a fresh random
// draw per layer. The voice layers are a logical OR: an explicit request, an
// emotional trigger, or the random sample can each force voice. The image
// draw is independent and evaluated after the voice decision; a turn that
// chose voice skips the image.
func (p *Policy) Decide(userMessage string) Decision {
	lower := strings.ToLower(userMessage)

	var d Decision
	switch {
	case containsAny(lower, p.config.VoiceKeywords):
		d.Voice = true
		slog.Debug("modality: voice forced by explicit request")
	case containsAny(lower, p.config.EmotionKeywords):
		d.Voice = true
		slog.Debug("modality: voice forced by emotional trigger")
	case p.draw() < p.config.VoiceProbability:
		d.Voice = true
		slog.Debug("modality: voice chosen by random sample")
	}

	if !d.Voice && p.draw() < p.config.ImageProbability {
		d.Image = true
		slog.Debug("modality: image chosen by random sample")
	}

	return d
}

func (p *Policy) draw() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.Float64()
}

func containsAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
