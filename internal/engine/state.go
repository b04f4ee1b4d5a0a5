package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// StateManager owns the mutable run state: company identity, the task
// list, and the per-phase context buckets that hold accepted skill
// output. All methods are safe for concurrent use.
type StateManager struct {
	mu sync.Mutex

	companyName    string
	companyWebsite string
	industry       string

	tasks     []*Task
	taskIndex map[string]*Task

	phase1Context map[string]any
	phase2Context map[string]any

	currentPhase      Phase
	startedAt         time.Time
	phase1CompletedAt *time.Time
	phase2CompletedAt *time.Time

	logger *zap.Logger
}

// NewStateManager returns an empty state manager. A nil logger is
// replaced with a no-op one.
func NewStateManager(logger *zap.Logger) *StateManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StateManager{
		taskIndex:     make(map[string]*Task),
		phase1Context: make(map[string]any),
		phase2Context: make(map[string]any),
		currentPhase:  Phase1,
		startedAt:     time.Now().UTC(),
		logger:        logger,
	}
}

// SetCompany records the company under analysis. Name is required;
// website and industry may be empty.
func (s *StateManager) SetCompany(name, website, industry string) error {
	if name == "" {
		return fmt.Errorf("%w: company name is required", ErrInvalidArgument)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.companyName = name
	s.companyWebsite = website
	s.industry = industry
	return nil
}

// Company returns the recorded company identity.
func (s *StateManager) Company() (name, website, industry string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.companyName, s.companyWebsite, s.industry
}

// AddTask registers a new task in Pending state. Duplicate IDs are
// rejected.
func (s *StateManager) AddTask(task *Task) error {
	if task == nil || task.ID == "" {
		return fmt.Errorf("%w: task id is required", ErrInvalidArgument)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.taskIndex[task.ID]; exists {
		return fmt.Errorf("%w: duplicate task id %q", ErrInvalidArgument, task.ID)
	}
	t := *task
	t.Status = TaskPending
	if t.Dependencies == nil {
		t.Dependencies = []string{}
	}
	s.tasks = append(s.tasks, &t)
	s.taskIndex[t.ID] = &t
	return nil
}

// Task returns a copy of the task with the given ID.
func (s *StateManager) Task(id string) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.taskIndex[id]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

// Tasks returns copies of all tasks in creation order.
func (s *StateManager) Tasks() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Task, len(s.tasks))
	for i, t := range s.tasks {
		out[i] = *t
	}
	return out
}

// UpdateTaskStatus moves a task through its lifecycle. Pending may
// become InProgress; InProgress may become Completed or Failed.
// Result is stored on completion, errMsg on failure. Any transition
// out of a terminal state is rejected.
func (s *StateManager) UpdateTaskStatus(id string, status TaskStatus, result map[string]any, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.taskIndex[id]
	if !ok {
		return fmt.Errorf("%w: unknown task %q", ErrInvalidArgument, id)
	}
	if !validTransition(t.Status, status) {
		return fmt.Errorf("%w: task %q cannot move %s -> %s", ErrInvalidState, id, t.Status, status)
	}
	now := time.Now().UTC()
	switch status {
	case TaskInProgress:
		t.StartedAt = &now
	case TaskCompleted:
		t.Result = result
		t.CompletedAt = &now
	case TaskFailed:
		t.Error = errMsg
		t.CompletedAt = &now
	}
	t.Status = status
	s.logger.Debug("task status updated",
		zap.String("task_id", id),
		zap.String("status", string(status)))
	return nil
}

func validTransition(from, to TaskStatus) bool {
	switch from {
	case TaskPending:
		return to == TaskInProgress || to == TaskFailed
	case TaskInProgress:
		return to == TaskCompleted || to == TaskFailed
	default:
		return false
	}
}

// StorePhase1Result stores accepted skill output in the Phase 1
// context under the slot mapped from the skill identifier.
func (s *StateManager) StorePhase1Result(skill string, data any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase1Context[SlotFor(Phase1, skill)] = data
}

// StorePhase2Result stores accepted skill output in the Phase 2
// context under the slot mapped from the skill identifier.
func (s *StateManager) StorePhase2Result(skill string, data any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase2Context[SlotFor(Phase2, skill)] = data
}

// Phase1Snapshot returns a copy of the Phase 1 context plus the
// company identity under "company". Mutating the copy does not affect
// stored state.
func (s *StateManager) Phase1Snapshot() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := make(map[string]any, len(s.phase1Context)+1)
	for k, v := range s.phase1Context {
		snap[k] = v
	}
	snap["company"] = map[string]any{
		"name":     s.companyName,
		"website":  s.companyWebsite,
		"industry": s.industry,
	}
	return snap
}

// Phase1Context returns a copy of the stored Phase 1 slots without
// the company entry, for inclusion in the result envelope.
func (s *StateManager) Phase1Context() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(s.phase1Context))
	for k, v := range s.phase1Context {
		out[k] = v
	}
	return out
}

// HasPhase1Data reports whether any Phase 1 slot has been filled.
func (s *StateManager) HasPhase1Data() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.phase1Context) > 0
}

// Phase2Snapshot returns a copy of the Phase 2 context.
func (s *StateManager) Phase2Snapshot() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := make(map[string]any, len(s.phase2Context))
	for k, v := range s.phase2Context {
		snap[k] = v
	}
	return snap
}

// SetPhase records the phase the run is currently executing. Moving
// past a phase stamps its completion time.
func (s *StateManager) SetPhase(phase Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentPhase == Phase1 && phase == Phase2 && s.phase1CompletedAt == nil {
		now := time.Now().UTC()
		s.phase1CompletedAt = &now
	}
	s.currentPhase = phase
}

// MarkPhaseComplete stamps the completion time for a phase.
func (s *StateManager) MarkPhaseComplete(phase Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	switch phase {
	case Phase1:
		if s.phase1CompletedAt == nil {
			s.phase1CompletedAt = &now
		}
	case Phase2:
		if s.phase2CompletedAt == nil {
			s.phase2CompletedAt = &now
		}
	}
}

// CurrentPhase returns the phase the run is executing.
func (s *StateManager) CurrentPhase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentPhase
}

// StartedAt returns when this run state was created.
func (s *StateManager) StartedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startedAt
}

// Summary reports task counts and run identity.
func (s *StateManager) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := TaskCounts{Total: len(s.tasks)}
	for _, t := range s.tasks {
		switch t.Status {
		case TaskCompleted:
			counts.Completed++
		case TaskFailed:
			counts.Failed++
		case TaskPending, TaskInProgress:
			counts.Pending++
		}
	}
	started := s.startedAt
	return Summary{
		Company:      s.companyName,
		CurrentPhase: s.currentPhase,
		Tasks:        counts,
		StartedAt:    &started,
	}
}

// persistedState is the on-disk JSON shape. Timestamps serialize as
// RFC 3339; absent ones as null.
type persistedState struct {
	CompanyName       string         `json:"company_name"`
	CompanyWebsite    string         `json:"company_website"`
	Industry          string         `json:"industry"`
	Phase1Context     map[string]any `json:"phase1_context"`
	Phase2Context     map[string]any `json:"phase2_context"`
	Tasks             []Task         `json:"tasks"`
	CurrentPhase      Phase          `json:"current_phase"`
	StartedAt         time.Time      `json:"started_at"`
	Phase1CompletedAt *time.Time     `json:"phase1_completed_at"`
	Phase2CompletedAt *time.Time     `json:"phase2_completed_at"`
}

// Save writes the state as pretty-printed JSON, creating parent
// directories as needed.
func (s *StateManager) Save(path string) error {
	s.mu.Lock()
	ps := persistedState{
		CompanyName:       s.companyName,
		CompanyWebsite:    s.companyWebsite,
		Industry:          s.industry,
		Phase1Context:     s.phase1Context,
		Phase2Context:     s.phase2Context,
		CurrentPhase:      s.currentPhase,
		StartedAt:         s.startedAt,
		Phase1CompletedAt: s.phase1CompletedAt,
		Phase2CompletedAt: s.phase2CompletedAt,
	}
	ps.Tasks = make([]Task, len(s.tasks))
	for i, t := range s.tasks {
		ps.Tasks[i] = *t
	}
	s.mu.Unlock()

	data, err := json.MarshalIndent(ps, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}

// Load replaces the state with the contents of a saved file. Tasks
// persisted as InProgress restore as Pending so interrupted work is
// retried; unknown fields in the file are ignored.
func (s *StateManager) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read state: %w", err)
	}
	var ps persistedState
	if err := json.Unmarshal(data, &ps); err != nil {
		return fmt.Errorf("parse state: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.companyName = ps.CompanyName
	s.companyWebsite = ps.CompanyWebsite
	s.industry = ps.Industry
	s.phase1Context = ps.Phase1Context
	if s.phase1Context == nil {
		s.phase1Context = make(map[string]any)
	}
	s.phase2Context = ps.Phase2Context
	if s.phase2Context == nil {
		s.phase2Context = make(map[string]any)
	}
	s.currentPhase = ps.CurrentPhase
	if s.currentPhase == "" {
		s.currentPhase = Phase1
	}
	s.startedAt = ps.StartedAt
	s.phase1CompletedAt = ps.Phase1CompletedAt
	s.phase2CompletedAt = ps.Phase2CompletedAt

	s.tasks = make([]*Task, 0, len(ps.Tasks))
	s.taskIndex = make(map[string]*Task, len(ps.Tasks))
	for i := range ps.Tasks {
		t := ps.Tasks[i]
		if t.Status == TaskInProgress {
			t.Status = TaskPending
			t.StartedAt = nil
		}
		if t.Dependencies == nil {
			t.Dependencies = []string{}
		}
		s.tasks = append(s.tasks, &t)
		s.taskIndex[t.ID] = &t
	}
	return nil
}
