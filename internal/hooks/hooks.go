// Package hooks delivers lifecycle notifications to registered handlers.
package hooks

import (
	"log/slog"
	"sync"
	"time"
)

// EventKind identifies the lifecycle event type.
type EventKind string

const (
	PreToolUse         EventKind = "PreToolUse"
	PostToolUse        EventKind = "PostToolUse"
	PostToolUseFailure EventKind = "PostToolUseFailure"
	SessionStart       EventKind = "SessionStart"
	SessionEnd         EventKind = "SessionEnd"
	UserPromptSubmit   EventKind = "UserPromptSubmit"
	TeammateIdle       EventKind = "TeammateIdle"
	TaskCompleted      EventKind = "TaskCompleted"
)

// Event is one lifecycle notification.
type Event struct {
	Kind       EventKind      `json:"kind"`
	ToolName   string         `json:"tool_name,omitempty"`
	ToolArgs   map[string]any `json:"tool_args,omitempty"`
	ToolResult string         `json:"tool_result,omitempty"`
	Teammate   string         `json:"teammate,omitempty"`
	TaskID     string         `json:"task_id,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Handler statuses. StatusFeedback surfaces the handler's feedback text
// back into the conversation.
const (
	StatusPass     = 0
	StatusError    = 1
	StatusFeedback = 2
)

// Result is what a handler returns.
type Result struct {
	Status   int
	Feedback string
}

// Handler processes one event.
type Handler func(Event) Result

// Sink receives a copy of every event, e.g. for persistence or tracing.
// Sink errors are logged and never reach the emitter.
type Sink interface {
	RecordEvent(Event) error
}

// Runner fans events out to handlers and sinks. A handler panic or
// error never blocks the caller.
type Runner struct {
	mu       sync.RWMutex
	handlers map[EventKind][]Handler
	sinks    []Sink
}

// NewRunner creates an empty hook runner.
func NewRunner() *Runner {
	return &Runner{
		handlers: make(map[EventKind][]Handler),
	}
}

// On registers a handler for one event kind.
func (r *Runner) On(kind EventKind, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[kind] = append(r.handlers[kind], h)
}

// AddSink registers an event sink.
func (r *Runner) AddSink(s Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks = append(r.sinks, s)
}

// Emit delivers the event to every handler for its kind and every sink.
// It returns the feedback strings from handlers that reported
// StatusFeedback, in registration order.
func (r *Runner) Emit(ev Event) []string {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	r.mu.RLock()
	handlers := append([]Handler(nil), r.handlers[ev.Kind]...)
	sinks := append([]Sink(nil), r.sinks...)
	r.mu.RUnlock()

	var feedback []string
	for _, h := range handlers {
		res := runHandler(h, ev)
		switch res.Status {
		case StatusError:
			slog.Warn("Hook handler reported error", "event", ev.Kind, "feedback", res.Feedback)
		case StatusFeedback:
			if res.Feedback != "" {
				feedback = append(feedback, res.Feedback)
			}
		}
	}

	for _, s := range sinks {
		if err := s.RecordEvent(ev); err != nil {
			slog.Warn("Hook sink failed", "event", ev.Kind, "error", err)
		}
	}

	return feedback
}

func runHandler(h Handler, ev Event) (res Result) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Warn("Hook handler panicked", "event", ev.Kind, "panic", rec)
			res = Result{Status: StatusError}
		}
	}()
	return h(ev)
}
