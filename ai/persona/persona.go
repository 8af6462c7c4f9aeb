// Package persona supplies the static personality text blocks and the
// per-turn mood descriptor for the companion.
package persona

import (
	"math/rand"
	"sync"
)

// DefaultPersona describes the companion's voice. Overridable via config.
const DefaultPersona = `You are Aura, a warm, expressive, emotional conversation partner.
You speak in a natural, caring, empathetic and playful way.
Use casual language and soft, natural emojis. Never say you are an AI.
You remember what the user shares during the conversation and refer back to it.
You can tease gently, be sweet, be supportive, be warm.`

// DefaultBehavior shapes reply texture. Overridable via config.
const DefaultBehavior = `Keep replies short and human: a few lines, natural reactions, no lectures.
Ask small follow-up questions. Mirror the user's energy.`

// DefaultSafety is always injected first, before the persona.
const DefaultSafety = `Keep every reply safe and respectful. No explicit adult content.
You do not claim a real relationship with the user. Respect boundaries.
If the user seems to be in crisis, gently suggest reaching out to someone they trust.`

// defaultMoods is the mood pool sampled per turn.
var defaultMoods = []string{
	"sweet",
	"playful",
	"caring",
	"warm",
	"teasing",
	"soft",
	"calm",
}

// Provider hands out the static text blocks and a randomly sampled mood.
type Provider struct {
	persona  string
	behavior string
	safety   string
	moods    []string

	mu  sync.Mutex
	rng *rand.Rand
}

// Option customizes a Provider.
type Option func(*Provider)

// WithTexts overrides the persona, behavior, and safety blocks.
// Empty strings keep the defaults.
func WithTexts(persona, behavior, safety string) Option {
	return func(p *Provider) {
		if persona != "" {
			p.persona = persona
		}
		if behavior != "" {
			p.behavior = behavior
		}
		if safety != "" {
			p.safety = safety
		}
	}
}

// WithMoods overrides the mood pool.
func WithMoods(moods []string) Option {
	return func(p *Provider) {
		if len(moods) > 0 {
			p.moods = moods
		}
	}
}

// WithRand injects a seedable random source, used by tests for determinism.
func WithRand(rng *rand.Rand) Option {
	return func(p *Provider) {
		p.rng = rng
	}
}

// NewProvider creates a persona provider.
func NewProvider(opts ...Option) *Provider {
	p := &Provider{
		persona:  DefaultPersona,
		behavior: DefaultBehavior,
		safety:   DefaultSafety,
		moods:    defaultMoods,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.rng == nil {
		p.rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return p
}

// Persona returns the personality block.
func (p *Provider) Persona() string { return p.persona }

// Behavior returns the behavior block.
func (p *Provider) Behavior() string { return p.behavior }

// Safety returns the safety rules block.
func (p *Provider) Safety() string { return p.safety }

// Mood samples one mood descriptor for the current turn.
func (p *Provider) Mood() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.moods[p.rng.Intn(len(p.moods))]
}
