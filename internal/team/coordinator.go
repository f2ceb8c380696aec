package team

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/CrewClaw/CrewClaw/internal/hooks"
	"github.com/CrewClaw/CrewClaw/internal/policy"
	"github.com/CrewClaw/CrewClaw/internal/provider"
	"github.com/CrewClaw/CrewClaw/internal/tools"
)

// CoordinatorName is the bus name the coordinator subscribes under.
// Teammates address idle and progress reports to it.
const CoordinatorName = "coordinator"

// TaskSpec seeds one task on the queue. BlockedBy refers to other
// specs by index (0-based) in the same list.
type TaskSpec struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	BlockedBy   []int  `json:"blocked_by,omitempty"`
}

// CoordinatorConfig assembles a full team run.
type CoordinatorConfig struct {
	TeamName  string           `json:"team_name"`
	Teammates []TeammateConfig `json:"teammates"`
	Tasks     []TaskSpec       `json:"tasks"`
}

// CoordinatorDeps are the shared resources the coordinator hands to
// its teammates.
type CoordinatorDeps struct {
	Provider provider.LLMProvider
	Registry *tools.Registry
	Rules    []policy.Rule
	Hooks    *hooks.Runner
	WorkDir  string
	Observer func(TeamMessage)
}

// Coordinator builds the queue and bus, spawns the teammates, and
// observes their traffic until every task completes.
type Coordinator struct {
	cfg       CoordinatorConfig
	queue     *TaskQueue
	bus       *Bus
	teammates []*Teammate
	hooks     *hooks.Runner

	mu       sync.Mutex
	observed []TeamMessage
}

// NewCoordinator seeds the queue from the config's task specs, wiring
// index-based blockers to the generated task IDs, and creates one
// teammate per config entry.
func NewCoordinator(cfg CoordinatorConfig, deps CoordinatorDeps) (*Coordinator, error) {
	if len(cfg.Teammates) == 0 {
		return nil, errors.New("team has no teammates")
	}
	c := &Coordinator{
		cfg:   cfg,
		queue: NewTaskQueue(),
		bus:   NewBus(),
		hooks: deps.Hooks,
	}

	ids := make([]string, len(cfg.Tasks))
	for i, spec := range cfg.Tasks {
		var blockedBy []string
		for _, dep := range spec.BlockedBy {
			if dep < 0 || dep >= len(cfg.Tasks) {
				return nil, fmt.Errorf("task %q: blocker index %d out of range", spec.Title, dep)
			}
			if dep >= i {
				return nil, fmt.Errorf("task %q: blocker index %d must refer to an earlier task", spec.Title, dep)
			}
			blockedBy = append(blockedBy, ids[dep])
		}
		task := c.queue.Add(spec.Title, spec.Description, blockedBy)
		ids[i] = task.ID
	}

	c.bus.Subscribe(CoordinatorName, func(msg TeamMessage) {
		c.mu.Lock()
		c.observed = append(c.observed, msg)
		c.mu.Unlock()
		slog.Info("coordinator observed", "from", msg.From, "type", msg.Type, "content", msg.Content)
		if deps.Observer != nil {
			deps.Observer(msg)
		}
	})

	for _, tc := range cfg.Teammates {
		c.teammates = append(c.teammates, NewTeammate(tc, TeammateDeps{
			Queue:    c.queue,
			Bus:      c.bus,
			Provider: deps.Provider,
			Registry: deps.Registry,
			Rules:    deps.Rules,
			Hooks:    deps.Hooks,
			WorkDir:  deps.WorkDir,
		}))
	}
	return c, nil
}

// Queue returns the shared task queue.
func (c *Coordinator) Queue() *TaskQueue { return c.queue }

// Bus returns the team message bus.
func (c *Coordinator) Bus() *Bus { return c.bus }

// Teammates returns the coordinator's workers.
func (c *Coordinator) Teammates() []*Teammate { return c.teammates }

// Observed returns a copy of every message the coordinator has seen.
func (c *Coordinator) Observed() []TeamMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]TeamMessage(nil), c.observed...)
}

// AllComplete reports whether every seeded task has completed.
func (c *Coordinator) AllComplete() bool { return c.queue.AllComplete() }

// Run starts every teammate and waits for all of them. One teammate
// failing does not cancel the others; their errors are collected and
// joined after everyone returns.
func (c *Coordinator) Run(ctx context.Context) error {
	slog.Info("team run starting",
		"team", c.cfg.TeamName,
		"teammates", len(c.teammates),
		"tasks", len(c.queue.List()))

	var (
		mu   sync.Mutex
		errs []error
	)
	var g errgroup.Group
	for _, tm := range c.teammates {
		tm := tm
		g.Go(func() error {
			if err := tm.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if c.queue.AllComplete() {
		slog.Info("team run finished, all tasks complete", "team", c.cfg.TeamName)
	} else {
		slog.Warn("team run finished with incomplete tasks", "team", c.cfg.TeamName)
	}
	return errors.Join(errs...)
}

// Shutdown broadcasts a shutdown request to every teammate.
func (c *Coordinator) Shutdown() {
	c.bus.Broadcast(CoordinatorName, "shutdown requested", MessageShutdown)
}
