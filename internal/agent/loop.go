// Package agent implements the core agent loop.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/CrewClaw/CrewClaw/internal/conversation"
	"github.com/CrewClaw/CrewClaw/internal/dispatch"
	"github.com/CrewClaw/CrewClaw/internal/hooks"
	"github.com/CrewClaw/CrewClaw/internal/provider"
)

// TurnLimitMarker appears in FinalContent when a run exhausts its turn
// budget without the model producing a final answer.
const TurnLimitMarker = "turn limit reached"

// AbortMarker appears in FinalContent when a run is aborted.
const AbortMarker = "run aborted"

// LoopOptions contains configuration for the agent loop.
type LoopOptions struct {
	Provider    provider.LLMProvider
	Dispatcher  *dispatch.Dispatcher
	State       *conversation.State
	Hooks       *hooks.Runner
	Transcripts *conversation.Transcripts
	SessionKey  string
	Model       string
	MaxTurns    int
	MaxTokens   int
	Temperature float64
}

// Loop drives one conversation: provider calls interleaved with tool
// dispatch until the model stops requesting tools or a limit fires.
type Loop struct {
	provider    provider.LLMProvider
	dispatcher  *dispatch.Dispatcher
	state       *conversation.State
	hooks       *hooks.Runner
	transcripts *conversation.Transcripts
	sessionKey  string
	model       string
	maxTurns    int
	maxTokens   int
	temperature float64
	aborted     atomic.Bool
	started     atomic.Bool
	ended       atomic.Bool
}

// RunResult is the outcome of one Run.
type RunResult struct {
	FinalContent string
	Turns        int
	TotalTokens  int
	Aborted      bool
}

// NewLoop creates a new agent loop.
func NewLoop(opts LoopOptions) *Loop {
	maxTurns := opts.MaxTurns
	if maxTurns == 0 {
		maxTurns = 100
	}
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}
	h := opts.Hooks
	if h == nil {
		h = hooks.NewRunner()
	}
	state := opts.State
	if state == nil {
		state = conversation.New("")
	}
	model := opts.Model
	if model == "" && opts.Provider != nil {
		model = opts.Provider.DefaultModel()
	}
	return &Loop{
		provider:    opts.Provider,
		dispatcher:  opts.Dispatcher,
		state:       state,
		hooks:       h,
		transcripts: opts.Transcripts,
		sessionKey:  opts.SessionKey,
		model:       model,
		maxTurns:    maxTurns,
		maxTokens:   maxTokens,
		temperature: opts.Temperature,
	}
}

// State returns the loop's conversation state.
func (l *Loop) State() *conversation.State { return l.state }

// Abort requests a cooperative stop. The flag is polled at turn start
// and between sequential tool executions; an in-flight provider or tool
// call always completes.
func (l *Loop) Abort() {
	l.aborted.Store(true)
}

// End marks the session finished. Safe to call more than once; only
// the first call emits the SessionEnd event.
func (l *Loop) End() {
	if l.started.Load() && l.ended.CompareAndSwap(false, true) {
		l.hooks.Emit(hooks.Event{Kind: hooks.SessionEnd})
	}
}

// Run appends the user input and drives turns until the model answers
// without tool calls, the turn budget runs out, or the loop is aborted.
// A provider failure is fatal to the run and not retried.
func (l *Loop) Run(ctx context.Context, userInput string) (*RunResult, error) {
	if l.started.CompareAndSwap(false, true) {
		l.hooks.Emit(hooks.Event{Kind: hooks.SessionStart})
	}
	if feedback := l.hooks.Emit(hooks.Event{Kind: hooks.UserPromptSubmit, ToolResult: userInput}); len(feedback) > 0 {
		userInput = userInput + "\n\n" + strings.Join(feedback, "\n")
	}

	if err := l.state.Append(provider.Message{Role: "user", Content: userInput}); err != nil {
		return nil, err
	}

	result := &RunResult{}
	defer l.saveTranscript()

	toolDefs := l.toolDefinitions()
	for turn := 0; turn < l.maxTurns; turn++ {
		if l.aborted.Load() {
			result.Aborted = true
			result.FinalContent = AbortMarker
			return result, nil
		}

		if l.state.NeedsCompaction(l.model) {
			if err := l.state.Compact(ctx, l.provider, l.model); err != nil {
				slog.Warn("Compaction failed", "error", err)
			}
		}

		start := time.Now()
		resp, err := l.provider.Chat(ctx, &provider.ChatRequest{
			Messages:    l.state.Messages(),
			Tools:       toolDefs,
			Model:       l.model,
			MaxTokens:   l.maxTokens,
			Temperature: l.temperature,
		})
		if err != nil {
			result.FinalContent = fmt.Sprintf("Error: LLM call failed: %v", err)
			return result, fmt.Errorf("LLM call failed: %w", err)
		}
		result.Turns++
		result.TotalTokens += resp.Usage.TotalTokens
		slog.Debug("LLM turn", "model", l.model, "tokens", resp.Usage.TotalTokens,
			"duration_ms", time.Since(start).Milliseconds(), "tool_calls", len(resp.ToolCalls))

		if len(resp.ToolCalls) == 0 {
			result.FinalContent = resp.Content
			l.appendMessage(provider.Message{Role: "assistant", Content: resp.Content})
			return result, nil
		}

		l.appendMessage(provider.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		l.executeToolCalls(ctx, resp.ToolCalls)

		if l.aborted.Load() {
			result.Aborted = true
			result.FinalContent = AbortMarker
			return result, nil
		}
	}

	result.FinalContent = fmt.Sprintf("Stopping: %s after %d turns without a final answer.", TurnLimitMarker, l.maxTurns)
	return result, nil
}

// executeToolCalls runs each requested tool strictly sequentially,
// appending one tool-result message per call. After an abort the
// remaining calls are answered with a placeholder so the history stays
// well formed.
func (l *Loop) executeToolCalls(ctx context.Context, calls []provider.ToolCall) {
	for _, tc := range calls {
		if l.aborted.Load() {
			l.appendMessage(provider.Message{
				Role:       "tool",
				Content:    "Error: execution aborted before this tool ran",
				ToolCallID: tc.ID,
			})
			continue
		}
		if l.dispatcher == nil {
			l.appendMessage(provider.Message{
				Role:       "tool",
				Content:    fmt.Sprintf("Error: tool not found: %s", tc.Name),
				ToolCallID: tc.ID,
			})
			continue
		}
		res := l.dispatcher.Execute(ctx, tc)
		l.appendMessage(provider.Message{
			Role:       "tool",
			Content:    dispatch.ResultMessage(res),
			ToolCallID: tc.ID,
		})
	}
}

func (l *Loop) appendMessage(msg provider.Message) {
	if err := l.state.Append(msg); err != nil {
		slog.Warn("Dropping malformed message", "role", msg.Role, "error", err)
	}
}

func (l *Loop) toolDefinitions() []provider.ToolDefinition {
	if l.dispatcher == nil {
		return nil
	}
	raw := l.dispatcher.Registry().Definitions()
	defs := make([]provider.ToolDefinition, 0, len(raw))
	for _, d := range raw {
		fn, _ := d["function"].(map[string]any)
		if fn == nil {
			continue
		}
		name, _ := fn["name"].(string)
		desc, _ := fn["description"].(string)
		params, _ := fn["parameters"].(map[string]any)
		defs = append(defs, provider.ToolDefinition{
			Type:     "function",
			Function: provider.FunctionDef{Name: name, Description: desc, Parameters: params},
		})
	}
	return defs
}

func (l *Loop) saveTranscript() {
	if l.transcripts == nil || l.sessionKey == "" {
		return
	}
	if err := l.transcripts.Save(l.sessionKey, l.state.Messages()); err != nil {
		slog.Warn("Transcript save failed", "session", l.sessionKey, "error", err)
	}
}
