// Package dispatch resolves, authorizes, and executes tool calls.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/CrewClaw/CrewClaw/internal/hooks"
	"github.com/CrewClaw/CrewClaw/internal/policy"
	"github.com/CrewClaw/CrewClaw/internal/provider"
	"github.com/CrewClaw/CrewClaw/internal/tools"
)

// Result is the normalized outcome of one tool call. Every failure mode
// (unknown tool, denial, refusal, execution error, panic) lands here;
// Execute never returns a Go error.
type Result struct {
	OK     bool   `json:"ok"`
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

// AskFunc resolves a human approval question. The answer "yes" allows
// once; "always" allows and registers a session grant; anything else
// denies.
type AskFunc func(ctx context.Context, question string) (string, error)

// Options configures a Dispatcher.
type Options struct {
	Registry *tools.Registry
	Policy   *policy.Engine
	Hooks    *hooks.Runner
	AskUser  AskFunc
	WorkDir  string
}

// Dispatcher executes tool calls through the permission pipeline.
type Dispatcher struct {
	registry *tools.Registry
	policy   *policy.Engine
	hooks    *hooks.Runner
	askUser  AskFunc
	workDir  string
}

// New creates a Dispatcher. Registry is required; a nil policy allows
// everything and a nil hooks runner emits nothing.
func New(opts Options) *Dispatcher {
	h := opts.Hooks
	if h == nil {
		h = hooks.NewRunner()
	}
	return &Dispatcher{
		registry: opts.Registry,
		policy:   opts.Policy,
		hooks:    h,
		askUser:  opts.AskUser,
		workDir:  opts.WorkDir,
	}
}

// Registry returns the dispatcher's tool registry.
func (d *Dispatcher) Registry() *tools.Registry { return d.registry }

// Execute runs one tool call and returns its normalized result.
func (d *Dispatcher) Execute(ctx context.Context, call provider.ToolCall) Result {
	tool, ok := d.registry.Get(call.Name)
	if !ok {
		return Result{OK: false, Error: fmt.Sprintf("tool not found: %s", call.Name)}
	}

	if res, denied := d.authorize(ctx, tool, call); denied {
		return res
	}

	d.hooks.Emit(hooks.Event{
		Kind:     hooks.PreToolUse,
		ToolName: call.Name,
		ToolArgs: call.Arguments,
	})

	start := time.Now()
	output, err := d.run(ctx, tool, call)
	duration := time.Since(start)

	if err != nil {
		slog.Warn("Tool execution failed", "tool", call.Name, "error", err)
		feedback := d.hooks.Emit(hooks.Event{
			Kind:       hooks.PostToolUseFailure,
			ToolName:   call.Name,
			ToolArgs:   call.Arguments,
			ToolResult: err.Error(),
		})
		return Result{OK: false, Error: err.Error(), Output: joinFeedback(feedback)}
	}

	slog.Debug("Tool executed", "tool", call.Name, "duration_ms", duration.Milliseconds(), "result_len", len(output))
	feedback := d.hooks.Emit(hooks.Event{
		Kind:       hooks.PostToolUse,
		ToolName:   call.Name,
		ToolArgs:   call.Arguments,
		ToolResult: output,
	})
	if fb := joinFeedback(feedback); fb != "" {
		output = output + "\n" + fb
	}
	return Result{OK: true, Output: output}
}

// authorize consults the policy engine, prompting the user when the
// decision is ask. The second return is true when execution must stop.
func (d *Dispatcher) authorize(ctx context.Context, tool tools.Tool, call provider.ToolCall) (Result, bool) {
	if d.policy == nil {
		return Result{}, false
	}

	decision := d.policy.Evaluate(policy.Context{
		Tool:      call.Name,
		Class:     tools.ToolClass(tool),
		Arguments: call.Arguments,
	})

	switch decision.Verdict {
	case policy.VerdictAllow:
		return Result{}, false
	case policy.VerdictDeny:
		slog.Warn("Tool denied by policy", "tool", call.Name, "reason", decision.Reason)
		return Result{OK: false, Error: fmt.Sprintf("permission denied: %s", decision.Reason)}, true
	}

	if d.askUser == nil {
		return Result{OK: false, Error: "permission denied: approval required but no approver is available"}, true
	}

	answer, err := d.askUser(ctx, decision.Description)
	if err != nil {
		return Result{OK: false, Error: fmt.Sprintf("permission denied: approval failed: %v", err)}, true
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return Result{}, false
	case "a", "always":
		d.policy.Grant(call.Name, call.Arguments)
		return Result{}, false
	default:
		return Result{OK: false, Error: "permission denied: user declined"}, true
	}
}

// run executes the tool with panic recovery.
func (d *Dispatcher) run(ctx context.Context, tool tools.Tool, call provider.ToolCall) (output string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("tool %s panicked: %v", call.Name, rec)
		}
	}()
	ec := &tools.ExecContext{WorkDir: d.workDir, AskUser: d.askUser}
	return tool.Execute(ctx, call.Arguments, ec)
}

func joinFeedback(feedback []string) string {
	if len(feedback) == 0 {
		return ""
	}
	return "Hook feedback:\n" + strings.Join(feedback, "\n")
}

// ResultMessage renders a dispatch result as the tool message content
// appended to the conversation.
func ResultMessage(res Result) string {
	if res.OK {
		return res.Output
	}
	if res.Output != "" {
		return fmt.Sprintf("Error: %s\n%s", res.Error, res.Output)
	}
	return fmt.Sprintf("Error: %s", res.Error)
}
