package team

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/CrewClaw/CrewClaw/internal/agent"
	"github.com/CrewClaw/CrewClaw/internal/conversation"
	"github.com/CrewClaw/CrewClaw/internal/dispatch"
	"github.com/CrewClaw/CrewClaw/internal/hooks"
	"github.com/CrewClaw/CrewClaw/internal/policy"
	"github.com/CrewClaw/CrewClaw/internal/provider"
	"github.com/CrewClaw/CrewClaw/internal/tools"
)

// Status is a teammate's lifecycle state.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusWorking  Status = "working"
	StatusWaiting  Status = "waiting"
	StatusShutdown Status = "shutdown"
)

// claimRetryInterval is how long a waiting teammate sleeps before
// re-scanning the queue for newly unblocked tasks.
const claimRetryInterval = 200 * time.Millisecond

// TeammateConfig describes one worker on a team.
type TeammateConfig struct {
	Name           string      `json:"name"`
	Role           string      `json:"role"`
	Prompt         string      `json:"prompt,omitempty"`
	Model          string      `json:"model,omitempty"`
	Tools          []string    `json:"tools,omitempty"`
	PermissionMode policy.Mode `json:"permission_mode,omitempty"`
	MaxTurns       int         `json:"max_turns,omitempty"`
}

// TeammateDeps are the shared resources a teammate operates on.
type TeammateDeps struct {
	Queue    *TaskQueue
	Bus      *Bus
	Provider provider.LLMProvider
	Registry *tools.Registry
	Rules    []policy.Rule
	Hooks    *hooks.Runner
	WorkDir  string
}

// Teammate claims tasks off the shared queue and runs a fresh agent
// loop per task. Bus messages land in an inbox that is drained between
// tasks; a shutdown message ends the current loop cooperatively.
type Teammate struct {
	cfg   TeammateConfig
	queue *TaskQueue
	bus   *Bus
	deps  TeammateDeps

	status   atomic.Value // Status
	shutdown atomic.Bool

	mu      sync.Mutex
	inbox   []TeamMessage
	current *agent.Loop
}

// NewTeammate creates a teammate and subscribes it on the bus.
func NewTeammate(cfg TeammateConfig, deps TeammateDeps) *Teammate {
	t := &Teammate{
		cfg:   cfg,
		queue: deps.Queue,
		bus:   deps.Bus,
		deps:  deps,
	}
	t.status.Store(StatusIdle)
	if t.bus != nil {
		t.bus.Subscribe(cfg.Name, t.receive)
	}
	return t
}

// Name returns the teammate's name.
func (t *Teammate) Name() string { return t.cfg.Name }

// Status returns the teammate's current lifecycle state.
func (t *Teammate) Status() Status {
	return t.status.Load().(Status)
}

// receive is the bus handler. It must never block: a shutdown message
// flips the flag and aborts the running loop, everything else queues
// in the inbox for the next drain.
func (t *Teammate) receive(msg TeamMessage) {
	if msg.Type == MessageShutdown {
		t.shutdown.Store(true)
		t.mu.Lock()
		loop := t.current
		t.mu.Unlock()
		if loop != nil {
			loop.Abort()
		}
		return
	}
	t.mu.Lock()
	t.inbox = append(t.inbox, msg)
	t.mu.Unlock()
}

// Run claims and works tasks until the queue fully completes, a
// shutdown arrives, or the context ends. A failed claim while
// unfinished tasks remain means another teammate holds the blocker, so
// the teammate waits and retries.
func (t *Teammate) Run(ctx context.Context) error {
	announcedIdle := false
	for {
		if t.shutdown.Load() {
			t.status.Store(StatusShutdown)
			return nil
		}
		if err := ctx.Err(); err != nil {
			t.status.Store(StatusShutdown)
			return err
		}

		task, ok := t.queue.ClaimNext(t.cfg.Name)
		if !ok {
			if t.queue.AllComplete() {
				t.status.Store(StatusIdle)
				return nil
			}
			if !announcedIdle {
				announcedIdle = true
				t.bus.SendIdle(t.cfg.Name, CoordinatorName)
				t.emitHook(hooks.Event{Kind: hooks.TeammateIdle, Teammate: t.cfg.Name})
			}
			t.status.Store(StatusWaiting)
			select {
			case <-ctx.Done():
				t.status.Store(StatusShutdown)
				return ctx.Err()
			case <-time.After(claimRetryInterval):
			}
			continue
		}

		announcedIdle = false
		if err := t.work(ctx, task); err != nil {
			return fmt.Errorf("teammate %s: task %q: %w", t.cfg.Name, task.Title, err)
		}
	}
}

// work runs one agent loop for a claimed task, records the result, and
// drains any messages that arrived while working.
func (t *Teammate) work(ctx context.Context, task TaskItem) error {
	t.status.Store(StatusWorking)
	slog.Info("teammate claimed task", "teammate", t.cfg.Name, "task", task.Title)

	loop := t.buildLoop()
	t.mu.Lock()
	t.current = loop
	t.mu.Unlock()
	defer func() {
		loop.End()
		t.mu.Lock()
		t.current = nil
		t.mu.Unlock()
	}()

	input := fmt.Sprintf("Your current task: %s", task.Title)
	if task.Description != "" {
		input += "\n\n" + task.Description
	}
	res, err := loop.Run(ctx, input)
	if err != nil {
		t.queue.Complete(task.ID, "Error: "+err.Error())
		t.bus.SendTaskUpdate(t.cfg.Name, CoordinatorName,
			fmt.Sprintf("task %q failed: %v", task.Title, err))
		return err
	}

	t.queue.Complete(task.ID, res.FinalContent)
	t.bus.SendTaskUpdate(t.cfg.Name, CoordinatorName,
		fmt.Sprintf("task %q completed", task.Title))
	t.emitHook(hooks.Event{
		Kind:       hooks.TaskCompleted,
		Teammate:   t.cfg.Name,
		TaskID:     task.ID,
		ToolResult: res.FinalContent,
	})

	return t.drainInbox(ctx, loop)
}

// drainInbox replays queued messages into the finished loop, one extra
// turn per message, so the teammate can react before claiming again.
func (t *Teammate) drainInbox(ctx context.Context, loop *agent.Loop) error {
	for {
		t.mu.Lock()
		if len(t.inbox) == 0 {
			t.mu.Unlock()
			return nil
		}
		msg := t.inbox[0]
		t.inbox = t.inbox[1:]
		t.mu.Unlock()

		if t.shutdown.Load() {
			return nil
		}
		input := fmt.Sprintf("Message from %s: %s", msg.From, msg.Content)
		if _, err := loop.Run(ctx, input); err != nil {
			slog.Warn("teammate message turn failed",
				"teammate", t.cfg.Name, "from", msg.From, "error", err)
			return nil
		}
	}
}

// buildLoop assembles a fresh loop for one task: subset registry, the
// teammate's permission mode, and a role prompt that includes the
// current queue.
func (t *Teammate) buildLoop() *agent.Loop {
	registry := t.deps.Registry
	if len(t.cfg.Tools) > 0 && registry != nil {
		registry = registry.Subset(t.cfg.Tools)
	}

	mode := t.cfg.PermissionMode
	if mode == "" {
		mode = policy.ModeDontAsk
	}
	engine := policy.NewEngine(mode, t.deps.Rules)

	disp := dispatch.New(dispatch.Options{
		Registry: registry,
		Policy:   engine,
		Hooks:    t.deps.Hooks,
		WorkDir:  t.deps.WorkDir,
	})

	extra := "## Team\nYou are part of a team working a shared task queue.\n\n### Task Queue\n" + t.queue.Summary()
	if t.cfg.Prompt != "" {
		extra = t.cfg.Prompt + "\n\n" + extra
	}
	prompt := agent.BuildSystemPrompt(agent.PromptOptions{
		Name:     t.cfg.Name,
		Role:     t.cfg.Role,
		WorkDir:  t.deps.WorkDir,
		Registry: registry,
		Extra:    extra,
	})

	return agent.NewLoop(agent.LoopOptions{
		Provider:   t.deps.Provider,
		Dispatcher: disp,
		State:      conversation.New(prompt),
		Hooks:      t.deps.Hooks,
		Model:      t.cfg.Model,
		MaxTurns:   t.cfg.MaxTurns,
	})
}

func (t *Teammate) emitHook(ev hooks.Event) {
	if t.deps.Hooks != nil {
		t.deps.Hooks.Emit(ev)
	}
}
