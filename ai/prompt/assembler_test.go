package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-chat/aura/ai/memory"
)

func TestBuildPromptSectionOrder(t *testing.T) {
	in := Input{
		Safety:           "SAFETY-BLOCK",
		Persona:          "PERSONA-BLOCK",
		Behavior:         "BEHAVIOR-BLOCK",
		Mood:             "playful",
		MemorySummary:    "MEMORY-BLOCK",
		EmotionalSummary: "EMOTION-BLOCK",
		Knowledge:        "KNOWLEDGE-BLOCK",
		UserMessage:      "hello",
	}

	messages := BuildPrompt(in)
	require.Len(t, messages, 2)
	require.Equal(t, "system", messages[0].Role)

	system := messages[0].Content
	order := []string{
		"SAFETY-BLOCK", "PERSONA-BLOCK", "BEHAVIOR-BLOCK",
		"playful", "MEMORY-BLOCK", "EMOTION-BLOCK", "KNOWLEDGE-BLOCK",
	}
	prev := -1
	for _, marker := range order {
		idx := strings.Index(system, marker)
		require.GreaterOrEqual(t, idx, 0, "missing section %q", marker)
		assert.Greater(t, idx, prev, "section %q out of order", marker)
		prev = idx
	}
}

func TestBuildPromptReplaysTurnsOldestFirst(t *testing.T) {
	in := Input{
		Safety:      "safety",
		Persona:     "persona",
		UserMessage: "newest",
		RecentTurns: []memory.Turn{
			{Role: "user", Content: "first"},
			{Role: "assistant", Content: "second"},
			{Role: "user", Content: "third"},
		},
	}

	messages := BuildPrompt(in)
	require.Len(t, messages, 5)
	assert.Equal(t, "first", messages[1].Content)
	assert.Equal(t, "second", messages[2].Content)
	assert.Equal(t, "third", messages[3].Content)
	assert.Equal(t, "user", messages[4].Role)
	assert.Equal(t, "newest", messages[4].Content)
}

func TestBuildPromptSkipsEmptySections(t *testing.T) {
	in := Input{
		Safety:      "safety",
		Persona:     "persona",
		UserMessage: "hi",
	}

	messages := BuildPrompt(in)
	system := messages[0].Content
	assert.NotContains(t, system, "Reference material")
	assert.NotContains(t, system, "What you remember")
	assert.NotContains(t, system, "Current mood")
}

func TestBuildPromptUserMessageUntruncated(t *testing.T) {
	long := strings.Repeat("x", 40000)
	messages := BuildPrompt(Input{Safety: "s", Persona: "p", UserMessage: long})
	assert.Equal(t, long, messages[len(messages)-1].Content)
}
