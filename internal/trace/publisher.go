// Package trace mirrors hook events and team traffic to Kafka topics
// so a run can be observed and audited from outside the process. The
// publisher is fully optional: a nil *Publisher is a no-op.
package trace

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/CrewClaw/CrewClaw/internal/hooks"
)

const publishTimeout = 10 * time.Second

// Publisher writes JSON-encoded events to crew.<team>.traces and team
// messages to crew.<team>.audit. Writes are best-effort: a broker
// failure is logged and never surfaces to the agent loop.
type Publisher struct {
	team   string
	traces *kafka.Writer
	audit  *kafka.Writer
}

// NewPublisher connects writers for the given brokers and team name.
// Topics must exist or the cluster must allow auto-creation.
func NewPublisher(brokers []string, team string) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no kafka brokers configured")
	}
	addr := kafka.TCP(brokers...)
	newWriter := func(topic string) *kafka.Writer {
		return &kafka.Writer{
			Addr:         addr,
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
			Async:        true,
			ErrorLogger: kafka.LoggerFunc(func(msg string, args ...any) {
				slog.Warn("trace publish failed", "detail", fmt.Sprintf(msg, args...))
			}),
		}
	}
	return &Publisher{
		team:   team,
		traces: newWriter(fmt.Sprintf("crew.%s.traces", sanitizeTopic(team))),
		audit:  newWriter(fmt.Sprintf("crew.%s.audit", sanitizeTopic(team))),
	}, nil
}

// RecordEvent mirrors one hook event to the traces topic. Implements
// hooks.Sink.
func (p *Publisher) RecordEvent(ev hooks.Event) error {
	if p == nil {
		return nil
	}
	return p.write(p.traces, string(ev.Kind), ev)
}

// AuditMessage mirrors one team message to the audit topic.
func (p *Publisher) AuditMessage(msg any, key string) {
	if p == nil {
		return
	}
	if err := p.write(p.audit, key, msg); err != nil {
		slog.Warn("audit mirror failed", "team", p.team, "error", err)
	}
}

// Close flushes and closes both writers.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	err1 := p.traces.Close()
	err2 := p.audit.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

func (p *Publisher) write(w *kafka.Writer, key string, payload any) error {
	blob, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode trace payload: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	return w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: blob,
		Time:  time.Now(),
	})
}

// sanitizeTopic keeps team names safe as topic fragments.
func sanitizeTopic(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	var sb strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			sb.WriteRune(r)
		default:
			sb.WriteRune('-')
		}
	}
	if sb.Len() == 0 {
		return "default"
	}
	return sb.String()
}
