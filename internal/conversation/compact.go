package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/CrewClaw/CrewClaw/internal/provider"
)

const (
	// tailKeep is how many trailing messages survive compaction verbatim.
	tailKeep = 4
	// previewChars bounds each middle-message preview sent to the model.
	previewChars = 500
)

const summarizeInstruction = `Summarize the following conversation excerpt so the assistant can continue working with full awareness of what happened. Preserve: decisions made, files touched, commands run and their outcomes, open problems, and anything the user asked for that is not yet done. Be concise.`

// Compact summarizes the middle of the history through the provider and
// rebuilds it as [system?, summary, ack, last 4]. Histories too short to
// have a middle are left unchanged. A summarization failure falls back
// to dropping the middle without a summary.
func (s *State) Compact(ctx context.Context, prov provider.LLMProvider, model string) error {
	messages := s.Messages()
	if len(messages) < tailKeep {
		return nil
	}

	var lead []provider.Message
	rest := messages
	if rest[0].Role == "system" {
		lead = rest[:1]
		rest = rest[1:]
	}
	if len(rest) <= tailKeep {
		return nil
	}

	middle := rest[:len(rest)-tailKeep]
	tail := rest[len(rest)-tailKeep:]

	summary, err := summarize(ctx, prov, model, middle)
	if err != nil {
		slog.Warn("Compaction summarization failed, truncating without summary", "error", err)
		rebuilt := append(append([]provider.Message(nil), lead...), tail...)
		s.Replace(rebuilt)
		return nil
	}

	rebuilt := append([]provider.Message(nil), lead...)
	rebuilt = append(rebuilt,
		provider.Message{Role: "user", Content: "Conversation summary of earlier turns:\n\n" + summary},
		provider.Message{Role: "assistant", Content: "Understood. I will continue from the summarized context."},
	)
	rebuilt = append(rebuilt, tail...)
	s.Replace(rebuilt)

	slog.Info("Conversation compacted", "before", len(messages), "after", len(rebuilt))
	return nil
}

// summarize sends bounded previews of the middle messages to the
// provider with a summarization instruction.
func summarize(ctx context.Context, prov provider.LLMProvider, model string, middle []provider.Message) (string, error) {
	var sb strings.Builder
	for _, msg := range middle {
		content := msg.Content
		if content == "" && len(msg.ToolCalls) > 0 {
			names := make([]string, len(msg.ToolCalls))
			for i, tc := range msg.ToolCalls {
				names[i] = tc.Name
			}
			content = "[requested tools: " + strings.Join(names, ", ") + "]"
		}
		if len(content) > previewChars {
			content = content[:previewChars] + "…"
		}
		sb.WriteString(fmt.Sprintf("%s: %s\n", msg.Role, content))
	}

	resp, err := prov.Chat(ctx, &provider.ChatRequest{
		Model: model,
		Messages: []provider.Message{
			{Role: "system", Content: summarizeInstruction},
			{Role: "user", Content: sb.String()},
		},
		MaxTokens: 1024,
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.Content) == "" {
		return "", fmt.Errorf("empty summary from provider")
	}
	return resp.Content, nil
}
