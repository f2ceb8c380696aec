// Package team layers multi-agent coordination on top of single agent
// loops: a dependency-ordered task queue, a synchronous message bus,
// and teammates driven by a coordinator.
package team

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the lifecycle state of a queued task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskBlocked    TaskStatus = "blocked"
)

// TaskItem is one unit of work on the queue.
type TaskItem struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status"`
	Assignee    string     `json:"assignee,omitempty"`
	BlockedBy   []string   `json:"blocked_by,omitempty"`
	Result      string     `json:"result,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt time.Time  `json:"completed_at,omitempty"`
}

// TaskQueue is the shared, dependency-ordered work queue. All state is
// guarded by one mutex; ClaimNext is a single indivisible
// scan-and-assign so each task ends up with exactly one claimant.
type TaskQueue struct {
	mu    sync.Mutex
	tasks []*TaskItem
	byID  map[string]*TaskItem
}

// NewTaskQueue creates an empty task queue.
func NewTaskQueue() *TaskQueue {
	return &TaskQueue{byID: make(map[string]*TaskItem)}
}

// Add appends a task. A task with blockers starts blocked, otherwise
// pending. Returns a copy of the created task.
func (q *TaskQueue) Add(title, description string, blockedBy []string) TaskItem {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	status := TaskPending
	if len(blockedBy) > 0 {
		status = TaskBlocked
	}
	task := &TaskItem{
		ID:          uuid.NewString(),
		Title:       title,
		Description: description,
		Status:      status,
		BlockedBy:   append([]string(nil), blockedBy...),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	q.tasks = append(q.tasks, task)
	q.byID[task.ID] = task
	return *task
}

// Assign moves a task from pending to in_progress for the given
// assignee. Returns false for unknown tasks or any other status.
func (q *TaskQueue) Assign(id, who string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.byID[id]
	if !ok || task.Status != TaskPending {
		return false
	}
	task.Status = TaskInProgress
	task.Assignee = who
	task.UpdatedAt = time.Now()
	return true
}

// ClaimNext atomically finds and assigns the first claimable task in
// creation order: pending, with every blocker completed.
func (q *TaskQueue) ClaimNext(who string) (TaskItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, task := range q.tasks {
		if task.Status != TaskPending {
			continue
		}
		if !q.blockersDone(task) {
			continue
		}
		task.Status = TaskInProgress
		task.Assignee = who
		task.UpdatedAt = time.Now()
		return *task, true
	}
	return TaskItem{}, false
}

// Complete marks an in_progress task completed, stores its result, and
// promotes every blocked task whose blockers are now all completed.
func (q *TaskQueue) Complete(id, result string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.byID[id]
	if !ok || task.Status != TaskInProgress {
		return false
	}
	now := time.Now()
	task.Status = TaskCompleted
	task.Result = result
	task.UpdatedAt = now
	task.CompletedAt = now

	for _, t := range q.tasks {
		if t.Status == TaskBlocked && q.blockersDone(t) {
			t.Status = TaskPending
			t.UpdatedAt = now
		}
	}
	return true
}

// blockersDone reports whether every blocker of a task is completed.
// Caller holds the lock. An unknown blocker ID never completes.
func (q *TaskQueue) blockersDone(task *TaskItem) bool {
	for _, dep := range task.BlockedBy {
		blocker, ok := q.byID[dep]
		if !ok || blocker.Status != TaskCompleted {
			return false
		}
	}
	return true
}

// Get returns a copy of a task by ID.
func (q *TaskQueue) Get(id string) (TaskItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	task, ok := q.byID[id]
	if !ok {
		return TaskItem{}, false
	}
	return *task, true
}

// List returns copies of all tasks in creation order.
func (q *TaskQueue) List() []TaskItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]TaskItem, len(q.tasks))
	for i, task := range q.tasks {
		out[i] = *task
	}
	return out
}

// AllComplete reports whether the queue has no uncompleted tasks.
func (q *TaskQueue) AllComplete() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, task := range q.tasks {
		if task.Status != TaskCompleted {
			return false
		}
	}
	return true
}

// Summary renders the queue for inclusion in a teammate's system prompt.
func (q *TaskQueue) Summary() string {
	tasks := q.List()
	if len(tasks) == 0 {
		return "The task queue is empty."
	}
	var sb strings.Builder
	for i, task := range tasks {
		line := fmt.Sprintf("%d. [%s] %s", i+1, task.Status, task.Title)
		if task.Assignee != "" {
			line += fmt.Sprintf(" (assignee: %s)", task.Assignee)
		}
		if len(task.BlockedBy) > 0 {
			line += fmt.Sprintf(" (blocked by %d task(s))", len(task.BlockedBy))
		}
		sb.WriteString(line + "\n")
	}
	return strings.TrimSpace(sb.String())
}
