// Package store persists hook events, team traffic, and task outcomes
// in a local SQLite database.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/CrewClaw/CrewClaw/internal/hooks"
)

// Service wraps the SQLite database. It satisfies hooks.Sink, so it
// can be attached directly to a hook runner.
type Service struct {
	db *sql.DB
}

// NewService opens (or creates) the database at dbPath and applies the
// schema.
func NewService(dbPath string) (*Service, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open store db: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	// Best-effort migration for databases created before tool_args
	// was recorded (no-op if the column exists).
	_, _ = db.Exec(`ALTER TABLE hook_events ADD COLUMN tool_args TEXT`)
	return &Service{db: db}, nil
}

// Close closes the underlying database.
func (s *Service) Close() error { return s.db.Close() }

// RecordEvent persists one hook event. Implements hooks.Sink.
func (s *Service) RecordEvent(ev hooks.Event) error {
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	var args []byte
	if len(ev.ToolArgs) > 0 {
		args, _ = json.Marshal(ev.ToolArgs)
	}
	_, err := s.db.Exec(
		`INSERT INTO hook_events (kind, tool_name, tool_args, tool_result, teammate, task_id, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(ev.Kind), ev.ToolName, string(args), ev.ToolResult, ev.Teammate, ev.TaskID, ts,
	)
	if err != nil {
		return fmt.Errorf("failed to record hook event: %w", err)
	}
	return nil
}

// EventRecord is one persisted hook event row.
type EventRecord struct {
	ID         int64     `json:"id"`
	Kind       string    `json:"kind"`
	ToolName   string    `json:"tool_name,omitempty"`
	ToolResult string    `json:"tool_result,omitempty"`
	Teammate   string    `json:"teammate,omitempty"`
	TaskID     string    `json:"task_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// RecentEvents returns the newest limit events, newest first.
func (s *Service) RecentEvents(limit int) ([]EventRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT id, kind, COALESCE(tool_name,''), COALESCE(tool_result,''),
		        COALESCE(teammate,''), COALESCE(task_id,''), timestamp
		 FROM hook_events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query hook events: %w", err)
	}
	defer rows.Close()

	var out []EventRecord
	for rows.Next() {
		var rec EventRecord
		if err := rows.Scan(&rec.ID, &rec.Kind, &rec.ToolName, &rec.ToolResult,
			&rec.Teammate, &rec.TaskID, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan hook event: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// MessageRecord is one persisted team message row.
type MessageRecord struct {
	MessageID string    `json:"message_id"`
	Team      string    `json:"team"`
	Sender    string    `json:"sender"`
	Recipient string    `json:"recipient"`
	Type      string    `json:"type"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// RecordMessage persists one team message. Duplicate message IDs are
// ignored so a replay cannot double-insert.
func (s *Service) RecordMessage(rec MessageRecord) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO team_messages (message_id, team, sender, recipient, type, content, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.MessageID, rec.Team, rec.Sender, rec.Recipient, rec.Type, rec.Content, rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to record team message: %w", err)
	}
	return nil
}

// MessagesForTeam returns every persisted message of a team in send order.
func (s *Service) MessagesForTeam(team string) ([]MessageRecord, error) {
	rows, err := s.db.Query(
		`SELECT message_id, team, sender, recipient, type, COALESCE(content,''), timestamp
		 FROM team_messages WHERE team = ? ORDER BY id ASC`, team)
	if err != nil {
		return nil, fmt.Errorf("failed to query team messages: %w", err)
	}
	defer rows.Close()

	var out []MessageRecord
	for rows.Next() {
		var rec MessageRecord
		if err := rows.Scan(&rec.MessageID, &rec.Team, &rec.Sender, &rec.Recipient,
			&rec.Type, &rec.Content, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan team message: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// TaskRecord is one persisted task row.
type TaskRecord struct {
	TaskID      string     `json:"task_id"`
	Team        string     `json:"team"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status"`
	Assignee    string     `json:"assignee,omitempty"`
	Result      string     `json:"result,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// UpsertTask inserts or refreshes one task row keyed by task ID.
func (s *Service) UpsertTask(rec TaskRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO team_tasks (task_id, team, title, description, status, assignee, result, created_at, updated_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(task_id) DO UPDATE SET
		   status = excluded.status,
		   assignee = excluded.assignee,
		   result = excluded.result,
		   updated_at = excluded.updated_at,
		   completed_at = excluded.completed_at`,
		rec.TaskID, rec.Team, rec.Title, rec.Description, rec.Status, rec.Assignee,
		rec.Result, rec.CreatedAt, rec.UpdatedAt, rec.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert task: %w", err)
	}
	return nil
}

// TasksForTeam returns every persisted task of a team in insert order.
func (s *Service) TasksForTeam(team string) ([]TaskRecord, error) {
	rows, err := s.db.Query(
		`SELECT task_id, team, title, COALESCE(description,''), status, COALESCE(assignee,''),
		        COALESCE(result,''), created_at, updated_at, completed_at
		 FROM team_tasks WHERE team = ? ORDER BY id ASC`, team)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var out []TaskRecord
	for rows.Next() {
		var rec TaskRecord
		if err := rows.Scan(&rec.TaskID, &rec.Team, &rec.Title, &rec.Description, &rec.Status,
			&rec.Assignee, &rec.Result, &rec.CreatedAt, &rec.UpdatedAt, &rec.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SaveTeam stores or refreshes a team descriptor as JSON.
func (s *Service) SaveTeam(name string, descriptor any) error {
	blob, err := json.Marshal(descriptor)
	if err != nil {
		return fmt.Errorf("failed to marshal team descriptor: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO teams (name, descriptor, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(name) DO UPDATE SET descriptor = excluded.descriptor, updated_at = CURRENT_TIMESTAMP`,
		name, string(blob),
	)
	if err != nil {
		return fmt.Errorf("failed to save team: %w", err)
	}
	return nil
}

// LoadTeam unmarshals a stored team descriptor into out.
func (s *Service) LoadTeam(name string, out any) error {
	var blob string
	err := s.db.QueryRow(`SELECT descriptor FROM teams WHERE name = ?`, name).Scan(&blob)
	if err != nil {
		return fmt.Errorf("failed to load team %q: %w", name, err)
	}
	return json.Unmarshal([]byte(blob), out)
}
