package team

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MessageType classifies traffic on the team bus.
type MessageType string

const (
	MessageChat       MessageType = "message"
	MessageBroadcast  MessageType = "broadcast"
	MessageIdle       MessageType = "idle"
	MessageTaskUpdate MessageType = "task_update"
	MessageShutdown   MessageType = "shutdown"
)

// TeamMessage is one delivered message between team members.
type TeamMessage struct {
	ID        string      `json:"id"`
	From      string      `json:"from"`
	To        string      `json:"to"`
	Type      MessageType `json:"type"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
}

// BusHandler receives messages addressed to its subscriber name.
type BusHandler func(TeamMessage)

// Bus is an in-process, named-subscriber message bus. Delivery is
// synchronous: Send invokes every handler subscribed under the
// recipient name before returning. Handlers run outside the bus lock
// so they may send further messages without deadlocking; a panicking
// handler is isolated and never takes down the sender.
type Bus struct {
	mu      sync.RWMutex
	subs    map[string][]BusHandler
	history []TeamMessage
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string][]BusHandler)}
}

// Subscribe registers a handler under a name. A name may carry several
// handlers; each delivery invokes all of them.
func (b *Bus) Subscribe(name string, h BusHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[name] = append(b.subs[name], h)
}

// Subscribers returns the set of currently subscribed names.
func (b *Bus) Subscribers() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.subs))
	for name := range b.subs {
		names = append(names, name)
	}
	return names
}

// Send delivers one message to every handler subscribed under to. The
// message is recorded in history whether or not anyone is subscribed.
func (b *Bus) Send(from, to, content string, typ MessageType) TeamMessage {
	msg := TeamMessage{
		ID:        uuid.NewString(),
		From:      from,
		To:        to,
		Type:      typ,
		Content:   content,
		Timestamp: time.Now(),
	}

	b.mu.Lock()
	b.history = append(b.history, msg)
	handlers := append([]BusHandler(nil), b.subs[to]...)
	b.mu.Unlock()

	for _, h := range handlers {
		b.deliver(h, msg)
	}
	return msg
}

// Broadcast sends a copy of the message to every subscriber except the
// sender, in no particular order.
func (b *Bus) Broadcast(from, content string, typ MessageType) []TeamMessage {
	b.mu.RLock()
	names := make([]string, 0, len(b.subs))
	for name := range b.subs {
		if name != from {
			names = append(names, name)
		}
	}
	b.mu.RUnlock()

	out := make([]TeamMessage, 0, len(names))
	for _, name := range names {
		out = append(out, b.Send(from, name, content, typ))
	}
	return out
}

// SendIdle announces that from has no claimable work.
func (b *Bus) SendIdle(from, to string) TeamMessage {
	return b.Send(from, to, "idle: no claimable tasks", MessageIdle)
}

// SendTaskUpdate reports progress on a task.
func (b *Bus) SendTaskUpdate(from, to, content string) TeamMessage {
	return b.Send(from, to, content, MessageTaskUpdate)
}

// SendShutdown asks to to stop after its current work.
func (b *Bus) SendShutdown(from, to string) TeamMessage {
	return b.Send(from, to, "shutdown requested", MessageShutdown)
}

// History returns a copy of every message sent or received by the
// participant, in send order. An empty participant returns everything.
func (b *Bus) History(participant string) []TeamMessage {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]TeamMessage, 0, len(b.history))
	for _, msg := range b.history {
		if participant == "" || msg.From == participant || msg.To == participant {
			out = append(out, msg)
		}
	}
	return out
}

// Undelivered returns messages addressed to name that were sent while
// it had no subscription, strictly after since.
func (b *Bus) Undelivered(name string, since time.Time) []TeamMessage {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []TeamMessage
	for _, msg := range b.history {
		if msg.To == name && msg.Timestamp.After(since) {
			out = append(out, msg)
		}
	}
	return out
}

func (b *Bus) deliver(h BusHandler, msg TeamMessage) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("bus handler panicked", "to", msg.To, "type", msg.Type, "panic", r)
		}
	}()
	h(msg)
}
