// Package progress tracks analysis execution and streams structured
// events to an observer. Observers receive immutable snapshots and are
// called synchronously on the orchestrator's goroutine, so callbacks
// must stay cheap; a UI that needs buffering owns its own queue.
package progress

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Status is the state carried by a progress event.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Level is the granularity of a progress event.
type Level string

const (
	LevelPhase  Level = "phase"
	LevelTask   Level = "task"
	LevelSkill  Level = "skill"
	LevelAPI    Level = "api"
	LevelLLM    Level = "llm"
	LevelAction Level = "action"
)

// Event is a single progress event.
type Event struct {
	TaskID    string         `json:"task_id"`
	TaskName  string         `json:"task_name"`
	Action    string         `json:"action"`
	Status    Status         `json:"status"`
	Level     Level          `json:"level"`
	Timestamp time.Time      `json:"timestamp"`
	Details   map[string]any `json:"details,omitempty"`
}

// Action is one recorded step in a task's history.
type Action struct {
	Action    string    `json:"action"`
	Level     Level     `json:"level"`
	Timestamp time.Time `json:"timestamp"`
}

// TaskView is the observer-facing view of one task.
type TaskView struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Status  Status   `json:"status"`
	Actions []Action `json:"actions"` // last 5 actions
}

// CurrentAction describes the most recent in-progress event.
type CurrentAction struct {
	TaskID   string `json:"task_id"`
	TaskName string `json:"task_name"`
	Action   string `json:"action"`
	Level    Level  `json:"level"`
}

// Snapshot is an immutable view of run progress at one instant.
type Snapshot struct {
	Phase           string         `json:"phase"`
	TotalTasks      int            `json:"total_tasks"`
	Completed       int            `json:"completed"`
	Failed          int            `json:"failed"`
	InProgress      bool           `json:"in_progress"`
	ProgressPercent float64        `json:"progress_percent"`
	CurrentAction   *CurrentAction `json:"current_action,omitempty"`
	Tasks           []TaskView     `json:"tasks"`
	ETA             string         `json:"eta"`
	Elapsed         string         `json:"elapsed"`
}

// Observer receives snapshots after every emitted event.
type Observer func(Snapshot)

type taskRecord struct {
	name      string
	status    Status
	actions   []Action
	startTime time.Time
	endTime   time.Time
}

// Tracker maintains the per-task timeline, computes ETA from observed
// task durations, and pushes snapshots to the observer. Safe for
// concurrent use; skills may emit from fan-out goroutines.
type Tracker struct {
	mu sync.Mutex

	totalTasks int
	observer   Observer
	logger     *zap.Logger

	events    []Event
	tasks     map[string]*taskRecord
	taskOrder []string

	startTime    time.Time
	durations    []time.Duration
	currentPhase string
	completed    int
	failed       int
}

// NewTracker creates a tracker for the given task count. The observer
// may be nil.
func NewTracker(totalTasks int, observer Observer, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		totalTasks: totalTasks,
		observer:   observer,
		logger:     logger,
		tasks:      make(map[string]*taskRecord),
		startTime:  time.Now(),
	}
}

// SetTotalTasks adjusts the expected task count, e.g. once planning
// has produced the actual task list.
func (t *Tracker) SetTotalTasks(n int) {
	t.mu.Lock()
	t.totalTasks = n
	t.mu.Unlock()
	t.notify()
}

// Emit records a progress event, updates the task record, and notifies
// the observer with a fresh snapshot.
func (t *Tracker) Emit(taskID, taskName, action string, status Status, level Level, details map[string]any) {
	event := Event{
		TaskID:    taskID,
		TaskName:  taskName,
		Action:    action,
		Status:    status,
		Level:     level,
		Timestamp: time.Now(),
		Details:   details,
	}

	t.mu.Lock()
	t.events = append(t.events, event)

	record, ok := t.tasks[taskID]
	if !ok {
		record = &taskRecord{name: taskName}
		t.tasks[taskID] = record
		t.taskOrder = append(t.taskOrder, taskID)
	}
	record.status = status
	record.actions = append(record.actions, Action{
		Action:    action,
		Level:     level,
		Timestamp: event.Timestamp,
	})

	switch status {
	case StatusInProgress:
		if record.startTime.IsZero() {
			record.startTime = event.Timestamp
		}
	case StatusCompleted:
		if !record.startTime.IsZero() && record.endTime.IsZero() {
			record.endTime = event.Timestamp
			t.durations = append(t.durations, record.endTime.Sub(record.startTime))
		}
		if level == LevelTask {
			t.completed++
		}
	case StatusFailed:
		if !record.startTime.IsZero() && record.endTime.IsZero() {
			record.endTime = event.Timestamp
		}
		if level == LevelTask {
			t.failed++
		}
	}
	t.mu.Unlock()

	t.logger.Debug("progress event",
		zap.String("task", taskID),
		zap.String("action", action),
		zap.String("status", string(status)),
		zap.String("level", string(level)))

	t.notify()
}

// SetPhase updates the current phase label and notifies the observer.
func (t *Tracker) SetPhase(phase string) {
	t.mu.Lock()
	t.currentPhase = phase
	t.mu.Unlock()
	t.notify()
}

// Status returns the current snapshot.
func (t *Tracker) Status() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// History returns the full action history for one task.
func (t *Tracker) History(taskID string) []Action {
	t.mu.Lock()
	defer t.mu.Unlock()
	record, ok := t.tasks[taskID]
	if !ok {
		return nil
	}
	out := make([]Action, len(record.actions))
	copy(out, record.actions)
	return out
}

func (t *Tracker) notify() {
	if t.observer == nil {
		return
	}
	t.mu.Lock()
	snapshot := t.snapshotLocked()
	t.mu.Unlock()
	t.observer(snapshot)
}

func (t *Tracker) snapshotLocked() Snapshot {
	terminal := t.completed + t.failed
	percent := 0.0
	if t.totalTasks > 0 {
		percent = float64(terminal) / float64(t.totalTasks) * 100
	}
	if percent > 100 {
		percent = 100
	}

	var current *CurrentAction
	if len(t.events) > 0 {
		latest := t.events[len(t.events)-1]
		if latest.Status == StatusInProgress {
			current = &CurrentAction{
				TaskID:   latest.TaskID,
				TaskName: latest.TaskName,
				Action:   latest.Action,
				Level:    latest.Level,
			}
		}
	}

	views := make([]TaskView, 0, len(t.taskOrder))
	for _, id := range t.taskOrder {
		record := t.tasks[id]
		actions := record.actions
		if len(actions) > 5 {
			actions = actions[len(actions)-5:]
		}
		copied := make([]Action, len(actions))
		copy(copied, actions)
		views = append(views, TaskView{
			ID:      id,
			Name:    record.name,
			Status:  record.status,
			Actions: copied,
		})
	}

	return Snapshot{
		Phase:           t.currentPhase,
		TotalTasks:      t.totalTasks,
		Completed:       t.completed,
		Failed:          t.failed,
		InProgress:      terminal < t.totalTasks,
		ProgressPercent: percent,
		CurrentAction:   current,
		Tasks:           views,
		ETA:             t.etaLocked(),
		Elapsed:         FormatDuration(time.Since(t.startTime)),
	}
}

// etaLocked estimates remaining time as mean completed-task duration
// times the remaining task count.
func (t *Tracker) etaLocked() string {
	remaining := t.totalTasks - t.completed - t.failed
	if remaining <= 0 {
		return "Almost done..."
	}
	if len(t.durations) == 0 {
		return "Calculating..."
	}
	var sum time.Duration
	for _, d := range t.durations {
		sum += d
	}
	avg := sum / time.Duration(len(t.durations))

	return FormatDuration(avg * time.Duration(remaining))
}

// FormatDuration renders a duration the way the progress UI shows it.
func FormatDuration(d time.Duration) string {
	seconds := int(d.Seconds())
	switch {
	case seconds < 60:
		return fmt.Sprintf("%d seconds", seconds)
	case seconds < 3600:
		minutes := seconds / 60
		return fmt.Sprintf("%d %s %d seconds", minutes, plural("minute", minutes), seconds%60)
	default:
		hours := seconds / 3600
		minutes := (seconds % 3600) / 60
		return fmt.Sprintf("%d %s %d minutes", hours, plural("hour", hours), minutes)
	}
}

func plural(unit string, n int) string {
	if n == 1 {
		return unit
	}
	return unit + "s"
}
