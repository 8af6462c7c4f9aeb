// Package prompt assembles the completion request for one turn.
package prompt

import (
	"strings"

	"github.com/aura-chat/aura/ai/llm"
	"github.com/aura-chat/aura/ai/memory"
)

// Input carries everything the assembler composes for one turn.
type Input struct {
	Safety           string
	Persona          string
	Behavior         string
	Mood             string
	MemorySummary    string
	EmotionalSummary string
	Knowledge        string // optional snippet text, "" to skip
	RecentTurns      []memory.Turn
	UserMessage      string
}

// BuildPrompt composes the message list sent to the completion API.
//
// The concatenation order is fixed and significant: safety rules precede the
// persona, the persona precedes dynamic context (mood, memory, emotional
// patterns), dynamic context precedes the optional knowledge injection, which
// precedes the replayed recent turns, which precede the new user message.
// Reordering these sections changes model behavior and is a breaking change.
//
// The user message is passed through untruncated; no token budgeting is done
// here.
func BuildPrompt(in Input) []llm.Message {
	var system strings.Builder

	writeSection(&system, in.Safety)
	writeSection(&system, in.Persona)
	writeSection(&system, in.Behavior)
	if in.Mood != "" {
		writeSection(&system, "Current mood: "+in.Mood)
	}
	if in.MemorySummary != "" {
		writeSection(&system, "What you remember about the user:\n"+in.MemorySummary)
	}
	if in.EmotionalSummary != "" {
		writeSection(&system, in.EmotionalSummary)
	}
	if in.Knowledge != "" {
		writeSection(&system, "Reference material that may help:\n"+in.Knowledge)
	}

	messages := make([]llm.Message, 0, len(in.RecentTurns)+2)
	messages = append(messages, llm.SystemPrompt(strings.TrimRight(system.String(), "\n")))

	// Recent turns are replayed oldest-first, never reordered.
	for _, turn := range in.RecentTurns {
		if turn.Role == "assistant" {
			messages = append(messages, llm.AssistantMessage(turn.Content))
		} else {
			messages = append(messages, llm.UserMessage(turn.Content))
		}
	}

	messages = append(messages, llm.UserMessage(in.UserMessage))
	return messages
}

func writeSection(b *strings.Builder, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	b.WriteString(text)
	b.WriteString("\n\n")
}
