// Package engine implements the research orchestration core: planning
// tasks from configuration, routing them to skills, validating output,
// and accumulating results into phase contexts that downstream tasks
// read. Phase 1 gathers foundation intelligence about a company;
// Phase 2 applies strategic frameworks over the Phase 1 context.
package engine

import (
	"context"
	"time"

	"bcos/internal/config"
	"bcos/internal/progress"
	"bcos/internal/truth"
)

// Phase identifies which stage of a run a task belongs to.
type Phase string

const (
	Phase1 Phase = "phase1" // Foundation building
	Phase2 Phase = "phase2" // Strategy analysis
)

// TaskStatus is the lifecycle state of a task. A task is created
// Pending, transitions once to InProgress, and ends Completed or
// Failed. Terminal states never transition back.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// terminal reports whether a status is final.
func (s TaskStatus) terminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// Task is a single unit of work within a phase, dispatched to one
// skill.
type Task struct {
	ID           string         `json:"id"`
	Description  string         `json:"description"`
	Phase        Phase          `json:"phase"`
	Skill        string         `json:"skill"`
	Dependencies []string       `json:"dependencies"`
	Status       TaskStatus     `json:"status"`
	Result       map[string]any `json:"result,omitempty"`
	Error        string         `json:"error,omitempty"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
}

// SkillResult is what a skill returns from Execute.
type SkillResult struct {
	Success  bool           `json:"success"`
	Data     any            `json:"data,omitempty"`
	Error    string         `json:"error,omitempty"`
	Sources  []truth.Source `json:"sources,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ExecContext carries everything a skill may touch during execution.
type ExecContext struct {
	// Context is the current-phase context snapshot: slot name to
	// stored payload, plus a "company" entry.
	Context map[string]any
	// Config is the run configuration.
	Config *config.Config
	// Guard records action signatures for loop detection. Skills that
	// retry internally should record each attempt.
	Guard *LoopGuard
	// Tracker streams skill-level progress events; may be nil.
	Tracker *progress.Tracker
}

// Skill is a pluggable implementation producing the payload for one
// context slot.
type Skill interface {
	Execute(ctx context.Context, task *Task, exec *ExecContext) (*SkillResult, error)
}

// SkillFunc adapts a function to Skill.
type SkillFunc func(ctx context.Context, task *Task, exec *ExecContext) (*SkillResult, error)

// Execute implements Skill.
func (f SkillFunc) Execute(ctx context.Context, task *Task, exec *ExecContext) (*SkillResult, error) {
	return f(ctx, task, exec)
}

// ExecResult is the executor's envelope around one task execution.
type ExecResult struct {
	Success bool           `json:"success"`
	Data    any            `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
	TaskID  string         `json:"task_id"`
	Method  string         `json:"method,omitempty"`
	Sources []truth.Source `json:"sources,omitempty"`
}

// TaskCounts summarizes task states for the run summary.
type TaskCounts struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Pending   int `json:"pending"`
}

// Summary is the run summary included in the result envelope.
type Summary struct {
	Company      string     `json:"company"`
	CurrentPhase Phase      `json:"current_phase"`
	Tasks        TaskCounts `json:"tasks"`
	StartedAt    *time.Time `json:"started_at"`
}

// Envelope is the final result of a run.
type Envelope struct {
	Company      string         `json:"company"`
	Phase1       map[string]any `json:"phase1"`
	Phase2       map[string]any `json:"phase2"`
	Summary      Summary        `json:"summary"`
	AnalysisType string         `json:"analysis_type"`
	Error        string         `json:"error,omitempty"`
}

// phase1Slots routes Phase 1 skill identifiers to context slots.
var phase1Slots = map[string]string{
	"company-intelligence":    "company_intelligence",
	"business-model-canvas":   "business_model_canvas",
	"value-chain-mapper":      "value_chain",
	"org-structure-analyzer":  "org_structure",
	"market-intelligence":     "market_intelligence",
	"competitor-intelligence": "competitor_intelligence",
}

// phase2Slots routes Phase 2 skill identifiers to context slots.
var phase2Slots = map[string]string{
	"swot-analyzer":        "swot",
	"porters-five-forces":  "porters_five_forces",
	"bcg-matrix":           "bcg_matrix",
	"blue-ocean-strategy":  "blue_ocean",
	"pestel-analyzer":      "pestel",
	"competitive-strategy": "competitive_strategy",
	"sales-intelligence":   "sales_intelligence",
}

// SlotFor maps a skill identifier to its context slot for the phase.
// Unknown skills store under their own identifier.
func SlotFor(phase Phase, skill string) string {
	table := phase1Slots
	if phase == Phase2 {
		table = phase2Slots
	}
	if slot, ok := table[skill]; ok {
		return slot
	}
	return skill
}
