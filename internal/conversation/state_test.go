package conversation

import (
	"strings"
	"testing"

	"github.com/CrewClaw/CrewClaw/internal/provider"
)

func TestNewWithSystemPrompt(t *testing.T) {
	s := New("be helpful")
	msgs := s.Messages()
	if len(msgs) != 1 || msgs[0].Role != "system" || msgs[0].Content != "be helpful" {
		t.Fatalf("messages = %+v", msgs)
	}
	if empty := New(""); empty.Len() != 0 {
		t.Fatalf("empty prompt produced %d messages", empty.Len())
	}
}

func TestAppendToolMessageInvariant(t *testing.T) {
	s := New("")
	if err := s.Append(provider.Message{Role: "user", Content: "hi"}); err != nil {
		t.Fatalf("append user: %v", err)
	}
	if err := s.Append(provider.Message{
		Role: "assistant",
		ToolCalls: []provider.ToolCall{
			{ID: "call-1", Name: "ReadFile"},
			{ID: "call-2", Name: "Exec"},
		},
	}); err != nil {
		t.Fatalf("append assistant: %v", err)
	}

	if err := s.Append(provider.Message{Role: "tool", ToolCallID: "call-1", Content: "ok"}); err != nil {
		t.Fatalf("first tool result: %v", err)
	}
	// A second result for the same assistant turn is allowed.
	if err := s.Append(provider.Message{Role: "tool", ToolCallID: "call-2", Content: "ok"}); err != nil {
		t.Fatalf("second tool result: %v", err)
	}

	// Unknown call ID is rejected.
	if err := s.Append(provider.Message{Role: "tool", ToolCallID: "call-9", Content: "x"}); err == nil {
		t.Fatal("expected error for unreferenced tool message")
	}
	// Missing call ID is rejected.
	if err := s.Append(provider.Message{Role: "tool", Content: "x"}); err == nil {
		t.Fatal("expected error for tool message without id")
	}
}

func TestAppendToolAfterNonAssistantRejected(t *testing.T) {
	s := New("")
	s.Append(provider.Message{Role: "user", Content: "hi"})
	if err := s.Append(provider.Message{Role: "tool", ToolCallID: "call-1"}); err == nil {
		t.Fatal("expected error when no assistant message precedes")
	}
}

func TestMessagesReturnsCopy(t *testing.T) {
	s := New("sys")
	msgs := s.Messages()
	msgs[0].Content = "mutated"
	if s.Messages()[0].Content != "sys" {
		t.Fatal("caller mutation leaked into state")
	}
}

func TestEstimateTokensGrowsWithContent(t *testing.T) {
	s := New("")
	base := s.EstimateTokens()
	s.Append(provider.Message{Role: "user", Content: strings.Repeat("a", 400)})
	grown := s.EstimateTokens()
	if grown <= base {
		t.Fatalf("estimate did not grow: %d -> %d", base, grown)
	}
	// 400 chars at 4 chars/token plus overhead.
	if grown < 100 {
		t.Fatalf("estimate %d too small for 400 chars", grown)
	}
}

func TestNeedsCompaction(t *testing.T) {
	s := New("")
	if s.NeedsCompaction("gpt-4o") {
		t.Fatal("empty state should not need compaction")
	}
	// Out-of-range thresholds are ignored and the default applies.
	s.SetCompactThreshold(0)
	s.SetCompactThreshold(2)

	s.Append(provider.Message{Role: "user", Content: strings.Repeat("x", 100000)})
	if s.NeedsCompaction("gpt-4o") {
		t.Fatal("25k tokens should fit a 128k window at the default threshold")
	}
	s.SetCompactThreshold(0.01)
	if !s.NeedsCompaction("gpt-4o") {
		t.Fatal("expected compaction at 1% threshold")
	}
}
