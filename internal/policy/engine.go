// Package policy provides tool execution authorization.
package policy

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/CrewClaw/CrewClaw/internal/tools"
)

// Mode is a named default policy governing tool approval when no
// explicit rule matches.
type Mode string

const (
	ModeDefault     Mode = "default"     // ask for write-class, allow otherwise
	ModeAcceptEdits Mode = "acceptEdits" // allow file edits, ask for shell
	ModePlan        Mode = "plan"        // deny all write-class tools
	ModeDontAsk     Mode = "dontAsk"     // allow everything
	ModeBypass      Mode = "bypass"      // allow everything, skip all checks
)

// Verdict is the outcome of a policy evaluation.
type Verdict int

const (
	VerdictAllow Verdict = iota
	VerdictDeny
	VerdictAsk
)

// Context holds information about a pending tool execution.
type Context struct {
	Tool      string
	Class     tools.Class
	Arguments map[string]any
}

// Decision is the result of a policy evaluation.
type Decision struct {
	Verdict     Verdict
	Reason      string // set for deny
	Description string // set for ask
	Ts          time.Time
}

// Engine evaluates whether a tool execution should proceed.
// First match wins, in a fixed order: bypass mode, deny rules, allow
// rules, session grants, read-only class, then the mode default.
type Engine struct {
	mode   Mode
	deny   []Rule
	allow  []Rule
	mu     sync.Mutex
	grants map[string]bool
}

// NewEngine creates a policy engine. Rules with an unexpected
// disposition are ignored.
func NewEngine(mode Mode, rules []Rule) *Engine {
	e := &Engine{
		mode:   mode,
		grants: make(map[string]bool),
	}
	for _, r := range rules {
		switch r.Disposition {
		case Deny:
			e.deny = append(e.deny, r)
		case Allow:
			e.allow = append(e.allow, r)
		}
	}
	return e
}

// Mode returns the engine's permission mode.
func (e *Engine) Mode() Mode { return e.mode }

// Evaluate checks a tool call against rules, grants, and the mode default.
func (e *Engine) Evaluate(ctx Context) Decision {
	d := Decision{Ts: time.Now()}

	if e.mode == ModeBypass {
		d.Verdict = VerdictAllow
		return d
	}

	for _, r := range e.deny {
		if r.Matches(ctx.Tool, ctx.Arguments) {
			d.Verdict = VerdictDeny
			d.Reason = fmt.Sprintf("denied by rule %s", r.String())
			return d
		}
	}
	for _, r := range e.allow {
		if r.Matches(ctx.Tool, ctx.Arguments) {
			d.Verdict = VerdictAllow
			return d
		}
	}

	e.mu.Lock()
	granted := e.grants[grantKey(ctx.Tool, ctx.Arguments)]
	e.mu.Unlock()
	if granted {
		d.Verdict = VerdictAllow
		return d
	}

	if ctx.Class == tools.ClassReadOnly {
		d.Verdict = VerdictAllow
		return d
	}

	switch e.mode {
	case ModeDontAsk:
		d.Verdict = VerdictAllow
	case ModeAcceptEdits:
		if ctx.Class == tools.ClassFileEdit {
			d.Verdict = VerdictAllow
		} else {
			d.Verdict = VerdictAsk
			d.Description = askDescription(ctx)
		}
	case ModePlan:
		d.Verdict = VerdictDeny
		d.Reason = "write tools are disabled in plan mode"
	default:
		d.Verdict = VerdictAsk
		d.Description = askDescription(ctx)
	}
	return d
}

// Grant records a session-level approval so the same tool (or the same
// shell command prefix) is allowed for the rest of the session.
func (e *Engine) Grant(tool string, args map[string]any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.grants[grantKey(tool, args)] = true
}

// grantKey keys session grants by tool name, plus the first command
// token for shell tools so "git status" does not grant "rm".
func grantKey(tool string, args map[string]any) string {
	if cmd, ok := args["command"].(string); ok {
		if fields := strings.Fields(cmd); len(fields) > 0 {
			return tool + ":" + fields[0]
		}
	}
	return tool
}

func askDescription(ctx Context) string {
	target := specifierTarget(ctx.Tool, ctx.Arguments)
	if target != "" {
		return fmt.Sprintf("Tool %q wants to run with %q", ctx.Tool, target)
	}
	return fmt.Sprintf("Tool %q requires approval", ctx.Tool)
}

// String renders the rule in the config grammar.
func (r Rule) String() string {
	if r.Specifier == "" {
		return r.Tool
	}
	return fmt.Sprintf("%s(%s)", r.Tool, r.Specifier)
}
