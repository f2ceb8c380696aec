package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/CrewClaw/CrewClaw/internal/hooks"
)

func testService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { svc.Close() })
	return svc
}

func TestRecordAndQueryEvents(t *testing.T) {
	svc := testService(t)

	events := []hooks.Event{
		{Kind: hooks.SessionStart, Teammate: "alice"},
		{Kind: hooks.PreToolUse, ToolName: "exec", ToolArgs: map[string]any{"command": "ls"}},
		{Kind: hooks.TaskCompleted, Teammate: "alice", TaskID: "t1", ToolResult: "done"},
	}
	for _, ev := range events {
		if err := svc.RecordEvent(ev); err != nil {
			t.Fatalf("record %s: %v", ev.Kind, err)
		}
	}

	recent, err := svc.RecentEvents(10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("events = %d, want 3", len(recent))
	}
	// Newest first.
	if recent[0].Kind != string(hooks.TaskCompleted) || recent[0].TaskID != "t1" {
		t.Fatalf("newest = %+v", recent[0])
	}
	if recent[2].Kind != string(hooks.SessionStart) {
		t.Fatalf("oldest = %+v", recent[2])
	}
}

func TestRecentEventsLimit(t *testing.T) {
	svc := testService(t)
	for i := 0; i < 5; i++ {
		svc.RecordEvent(hooks.Event{Kind: hooks.PreToolUse})
	}
	recent, err := svc.RecentEvents(2)
	if err != nil || len(recent) != 2 {
		t.Fatalf("recent = %d, %v", len(recent), err)
	}
}

func TestMessagesDeduplicated(t *testing.T) {
	svc := testService(t)
	rec := MessageRecord{
		MessageID: "m1",
		Team:      "crew",
		Sender:    "alice",
		Recipient: "bob",
		Type:      "message",
		Content:   "hi",
		Timestamp: time.Now(),
	}
	if err := svc.RecordMessage(rec); err != nil {
		t.Fatalf("record: %v", err)
	}
	// Replays are ignored, not doubled.
	if err := svc.RecordMessage(rec); err != nil {
		t.Fatalf("replay: %v", err)
	}

	msgs, err := svc.MessagesForTeam("crew")
	if err != nil || len(msgs) != 1 {
		t.Fatalf("messages = %d, %v", len(msgs), err)
	}
	if msgs[0].Sender != "alice" || msgs[0].Content != "hi" {
		t.Fatalf("message = %+v", msgs[0])
	}
	if other, _ := svc.MessagesForTeam("other"); len(other) != 0 {
		t.Fatalf("other team messages = %d", len(other))
	}
}

func TestUpsertTaskRefreshes(t *testing.T) {
	svc := testService(t)
	now := time.Now()
	rec := TaskRecord{
		TaskID: "t1", Team: "crew", Title: "Write tests",
		Status: "pending", CreatedAt: now, UpdatedAt: now,
	}
	if err := svc.UpsertTask(rec); err != nil {
		t.Fatalf("insert: %v", err)
	}

	done := now.Add(time.Minute)
	rec.Status = "completed"
	rec.Assignee = "alice"
	rec.Result = "all green"
	rec.UpdatedAt = done
	rec.CompletedAt = &done
	if err := svc.UpsertTask(rec); err != nil {
		t.Fatalf("update: %v", err)
	}

	tasks, err := svc.TasksForTeam("crew")
	if err != nil || len(tasks) != 1 {
		t.Fatalf("tasks = %d, %v", len(tasks), err)
	}
	got := tasks[0]
	if got.Status != "completed" || got.Assignee != "alice" || got.Result != "all green" {
		t.Fatalf("task = %+v", got)
	}
	if got.CompletedAt == nil {
		t.Fatal("completed_at not stored")
	}
}

func TestTeamDescriptorRoundtrip(t *testing.T) {
	svc := testService(t)
	type descriptor struct {
		TeamName  string   `json:"team_name"`
		Teammates []string `json:"teammates"`
	}
	in := descriptor{TeamName: "crew", Teammates: []string{"alice", "bob"}}
	if err := svc.SaveTeam("crew", in); err != nil {
		t.Fatalf("save: %v", err)
	}
	// Saving again updates in place.
	in.Teammates = append(in.Teammates, "carol")
	if err := svc.SaveTeam("crew", in); err != nil {
		t.Fatalf("resave: %v", err)
	}

	var out descriptor
	if err := svc.LoadTeam("crew", &out); err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(out.Teammates) != 3 || out.TeamName != "crew" {
		t.Fatalf("descriptor = %+v", out)
	}
	if err := svc.LoadTeam("ghost", &out); err == nil {
		t.Fatal("expected error for unknown team")
	}
}
