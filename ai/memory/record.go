// Package memory provides per-conversation long-term memory and session state
// for the companion pipeline.
package memory

import (
	"fmt"
	"strings"
)

// Limits caps the bounded list fields of a Record and the session history.
type Limits struct {
	MaxPreferences     int
	MaxEmotionalTrends int
	MaxTopicInterests  int
	MaxFacts           int
	MaxHistory         int
	MaxShortTermTurns  int
}

// DefaultLimits returns the default truncation limits.
func DefaultLimits() Limits {
	return Limits{
		MaxPreferences:     10,
		MaxEmotionalTrends: 10,
		MaxTopicInterests:  10,
		MaxFacts:           10,
		MaxHistory:         40,
		MaxShortTermTurns:  10,
	}
}

// Record is the persisted long-term memory for one conversation.
// Every list field is oldest-first and capped by Limits; truncation always
// drops the oldest entries.
type Record struct {
	ConversationID  string   `json:"conversation_id"`
	UserName        string   `json:"user_name,omitempty"`
	Preferences     []string `json:"preferences"`
	EmotionalTrends []string `json:"emotional_trends"`
	TopicInterests  []string `json:"topic_interests"`
	Facts           []string `json:"facts"`
	History         []string `json:"history"`
	UpdatedTs       int64    `json:"updated_ts"`
}

// NewRecord creates a default-initialized record for a conversation.
func NewRecord(conversationID string) *Record {
	return &Record{
		ConversationID:  conversationID,
		Preferences:     []string{},
		EmotionalTrends: []string{},
		TopicInterests:  []string{},
		Facts:           []string{},
		History:         []string{},
	}
}

// truncate enforces the oldest-dropped-first invariant on every list field.
func (r *Record) truncate(limits Limits) {
	r.Preferences = keepLast(r.Preferences, limits.MaxPreferences)
	r.EmotionalTrends = keepLast(r.EmotionalTrends, limits.MaxEmotionalTrends)
	r.TopicInterests = keepLast(r.TopicInterests, limits.MaxTopicInterests)
	r.Facts = keepLast(r.Facts, limits.MaxFacts)
	r.History = keepLast(r.History, limits.MaxHistory)
}

func keepLast(list []string, max int) []string {
	if max <= 0 || len(list) <= max {
		return list
	}
	return list[len(list)-max:]
}

// ContextSummary renders the record into a single human-readable string for
// prompt injection. Deterministic for an unmutated record.
func (r *Record) ContextSummary() string {
	var b strings.Builder
	if r.UserName != "" {
		fmt.Fprintf(&b, "The user's name is %s.\n", r.UserName)
	}
	writeSummaryLine(&b, "Things the user likes", r.Preferences)
	writeSummaryLine(&b, "Emotional patterns", r.EmotionalTrends)
	writeSummaryLine(&b, "Topics the user cares about", r.TopicInterests)
	writeSummaryLine(&b, "Things the user asked you to remember", r.Facts)
	if b.Len() == 0 {
		return "Nothing is known about the user yet."
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeSummaryLine(b *strings.Builder, label string, list []string) {
	last := keepLast(list, 5)
	if len(last) == 0 {
		return
	}
	fmt.Fprintf(b, "%s: %s\n", label, strings.Join(last, "; "))
}
