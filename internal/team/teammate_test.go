package team

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/CrewClaw/CrewClaw/internal/provider"
	"github.com/CrewClaw/CrewClaw/internal/tools"
)

// signalingProvider answers chats, signals when the first one starts,
// and optionally holds that first chat open until resume closes so a
// test can inject bus traffic while the teammate is mid-task.
type signalingProvider struct {
	mu        sync.Mutex
	firstChat chan struct{}
	resume    chan struct{}
	once      sync.Once
	inputs    []string
}

func (p *signalingProvider) Chat(ctx context.Context, req *provider.ChatRequest) (*provider.ChatResponse, error) {
	p.mu.Lock()
	if len(req.Messages) > 0 {
		p.inputs = append(p.inputs, req.Messages[len(req.Messages)-1].Content)
	}
	p.mu.Unlock()
	var first bool
	p.once.Do(func() {
		first = true
		close(p.firstChat)
	})
	if first && p.resume != nil {
		<-p.resume
	}
	return &provider.ChatResponse{Content: "ok", FinishReason: "stop"}, nil
}

func (p *signalingProvider) ChatStream(ctx context.Context, req *provider.ChatRequest, fn func(provider.StreamEvent)) (*provider.ChatResponse, error) {
	return p.Chat(ctx, req)
}

func (p *signalingProvider) ListModels(ctx context.Context) ([]string, error) { return nil, nil }
func (p *signalingProvider) DefaultModel() string                            { return "test-model" }

func (p *signalingProvider) lastInputs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.inputs...)
}

func TestTeammateDrainsInboxAfterTask(t *testing.T) {
	queue := NewTaskQueue()
	queue.Add("build", "", nil)
	bus := NewBus()
	prov := &signalingProvider{
		firstChat: make(chan struct{}),
		resume:    make(chan struct{}),
	}

	tm := NewTeammate(TeammateConfig{Name: "alice", MaxTurns: 3}, TeammateDeps{
		Queue:    queue,
		Bus:      bus,
		Provider: prov,
		Registry: tools.NewRegistry(),
		WorkDir:  t.TempDir(),
	})

	done := make(chan error, 1)
	go func() { done <- tm.Run(context.Background()) }()

	// Wait for alice to start working, message her while the provider
	// call is still in flight, then let the task finish.
	select {
	case <-prov.firstChat:
	case <-time.After(5 * time.Second):
		t.Fatal("teammate never started the task")
	}
	bus.Send("bob", "alice", "remember to update the changelog", MessageChat)
	close(prov.resume)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish")
	}

	var sawMessageTurn bool
	for _, input := range prov.lastInputs() {
		if input == "Message from bob: remember to update the changelog" {
			sawMessageTurn = true
		}
	}
	if !sawMessageTurn {
		t.Fatalf("inbox message never became a turn; inputs = %q", prov.lastInputs())
	}
}

func TestTeammateShutdownMessageStopsRun(t *testing.T) {
	queue := NewTaskQueue()
	queue.Add("held", "", nil)
	queue.Assign(queue.List()[0].ID, "someone-else")

	bus := NewBus()
	tm := NewTeammate(TeammateConfig{Name: "alice"}, TeammateDeps{
		Queue:    queue,
		Bus:      bus,
		Provider: &signalingProvider{firstChat: make(chan struct{})},
		Registry: tools.NewRegistry(),
	})

	done := make(chan error, 1)
	go func() { done <- tm.Run(context.Background()) }()

	// Let alice reach the waiting state, then ask her to stop.
	deadline := time.Now().Add(5 * time.Second)
	for tm.Status() != StatusWaiting {
		if time.Now().After(deadline) {
			t.Fatal("teammate never started waiting")
		}
		time.Sleep(5 * time.Millisecond)
	}
	bus.SendShutdown(CoordinatorName, "alice")

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after shutdown message")
	}
	if tm.Status() != StatusShutdown {
		t.Fatalf("status = %s", tm.Status())
	}
}

func TestTeammateContextCancelStopsRun(t *testing.T) {
	queue := NewTaskQueue()
	queue.Add("held", "", nil)
	queue.Assign(queue.List()[0].ID, "someone-else")

	tm := NewTeammate(TeammateConfig{Name: "alice"}, TeammateDeps{
		Queue:    queue,
		Bus:      NewBus(),
		Provider: &signalingProvider{firstChat: make(chan struct{})},
		Registry: tools.NewRegistry(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tm.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected context error")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after cancel")
	}
}
