// Package conversation manages one agent's message history and keeps it
// inside the model's token budget via compaction.
package conversation

import (
	"fmt"
	"sync"

	"github.com/CrewClaw/CrewClaw/internal/provider"
)

// Token estimation heuristic: a fixed chars-per-token ratio plus a small
// per-message overhead. Only used to decide when to compact.
const (
	charsPerToken      = 4
	perMessageOverhead = 8
)

// DefaultCompactThreshold is the share of the context window the
// estimate may reach before compaction triggers.
const DefaultCompactThreshold = 0.8

// State is the ordered message history for one agent. Appends only;
// compaction replaces the whole list atomically.
type State struct {
	mu               sync.RWMutex
	messages         []provider.Message
	compactThreshold float64
}

// New creates a conversation state. A non-empty system prompt becomes
// the leading system message.
func New(systemPrompt string) *State {
	s := &State{compactThreshold: DefaultCompactThreshold}
	if systemPrompt != "" {
		s.messages = append(s.messages, provider.Message{Role: "system", Content: systemPrompt})
	}
	return s
}

// SetCompactThreshold overrides the compaction trigger ratio.
// Values outside (0,1] are ignored.
func (s *State) SetCompactThreshold(t float64) {
	if t > 0 && t <= 1 {
		s.mu.Lock()
		s.compactThreshold = t
		s.mu.Unlock()
	}
}

// Append adds a message. A tool message must reference a tool call in
// the immediately preceding assistant message.
func (s *State) Append(msg provider.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.Role == "tool" {
		if err := s.checkToolReference(msg); err != nil {
			return err
		}
	}
	s.messages = append(s.messages, msg)
	return nil
}

// checkToolReference validates the tool message invariant. Caller holds
// the lock. Tool messages may follow other tool results for the same
// assistant turn.
func (s *State) checkToolReference(msg provider.Message) error {
	if msg.ToolCallID == "" {
		return fmt.Errorf("tool message missing tool_call_id")
	}
	for i := len(s.messages) - 1; i >= 0; i-- {
		prev := s.messages[i]
		if prev.Role == "tool" {
			continue
		}
		if prev.Role != "assistant" {
			break
		}
		for _, tc := range prev.ToolCalls {
			if tc.ID == msg.ToolCallID {
				return nil
			}
		}
		break
	}
	return fmt.Errorf("tool message %s does not reference the preceding assistant message", msg.ToolCallID)
}

// Messages returns a copy of the history.
func (s *State) Messages() []provider.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]provider.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the number of messages.
func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Replace swaps the whole history atomically.
func (s *State) Replace(messages []provider.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append([]provider.Message(nil), messages...)
}

// EstimateTokens returns a cheap token estimate for the history.
func (s *State) EstimateTokens() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, msg := range s.messages {
		chars := len(msg.Content)
		for _, tc := range msg.ToolCalls {
			chars += len(tc.Name)
			chars += len(fmt.Sprint(tc.Arguments))
		}
		total += chars/charsPerToken + perMessageOverhead
	}
	return total
}

// NeedsCompaction reports whether the estimate exceeds the model's
// budgeted share of the context window.
func (s *State) NeedsCompaction(model string) bool {
	s.mu.RLock()
	threshold := s.compactThreshold
	s.mu.RUnlock()
	budget := float64(provider.ContextWindow(model)) * threshold
	return float64(s.EstimateTokens()) > budget
}
