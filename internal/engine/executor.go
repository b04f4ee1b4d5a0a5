package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"bcos/internal/config"
	"bcos/internal/llm"
	"bcos/internal/progress"
)

const (
	// loopWindow is how many recent action signatures are kept.
	loopWindow = 5
	// loopRepeat identical trailing signatures trigger loop detection.
	loopRepeat = 4
)

// LoopGuard watches action signatures emitted during one task and
// flags runaway repetition. The executor resets it between tasks.
type LoopGuard struct {
	mu       sync.Mutex
	recent   []string
	steps    int
	maxSteps int
	looped   bool
}

// NewLoopGuard returns a guard with a per-task step budget. A zero or
// negative budget means unlimited.
func NewLoopGuard(maxSteps int) *LoopGuard {
	return &LoopGuard{maxSteps: maxSteps}
}

// Record registers one action signature. It returns ErrLoop when the
// last loopRepeat signatures are identical and ErrSkillFailure when
// the per-task step budget is exhausted. Skills running multi-step
// internal loops should record each step and stop on error.
func (g *LoopGuard) Record(signature string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.steps++
	if g.maxSteps > 0 && g.steps > g.maxSteps {
		return fmt.Errorf("%w: task exceeded %d steps", ErrSkillFailure, g.maxSteps)
	}
	g.recent = append(g.recent, signature)
	if len(g.recent) > loopWindow {
		g.recent = g.recent[len(g.recent)-loopWindow:]
	}
	if len(g.recent) >= loopRepeat {
		tail := g.recent[len(g.recent)-loopRepeat:]
		same := true
		for _, s := range tail {
			if s != tail[0] {
				same = false
				break
			}
		}
		if same {
			g.looped = true
			return fmt.Errorf("%w: action %q repeated %d times", ErrLoop, signature, loopRepeat)
		}
	}
	return nil
}

// Looped reports whether a loop has been detected.
func (g *LoopGuard) Looped() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.looped
}

// Reset clears the signature window and step count.
func (g *LoopGuard) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.recent = g.recent[:0]
	g.steps = 0
	g.looped = false
}

// Executor runs tasks through registered skills. Unknown skills fall
// back to a knowledge-base LLM completion so a run degrades instead
// of stopping. Execution never panics or returns a Go error to the
// caller; failures surface as unsuccessful ExecResults.
type Executor struct {
	registry *Registry
	llm      llm.Client
	tracker  *progress.Tracker
	guard    *LoopGuard
	logger   *zap.Logger
}

// NewExecutor builds an executor. The LLM client may be nil, which
// disables the fallback path.
func NewExecutor(registry *Registry, client llm.Client, tracker *progress.Tracker, cfg *config.Config, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	maxSteps := 0
	if cfg != nil {
		maxSteps = cfg.Advanced.MaxStepsPerTask
	}
	return &Executor{
		registry: registry,
		llm:      client,
		tracker:  tracker,
		guard:    NewLoopGuard(maxSteps),
		logger:   logger,
	}
}

// ResetLoopDetection clears the action window. The orchestrator calls
// this at each task boundary.
func (e *Executor) ResetLoopDetection() {
	e.guard.Reset()
}

// ExecuteTask runs one task and returns its result envelope. Panics
// inside skills are recovered and reported as failures.
func (e *Executor) ExecuteTask(ctx context.Context, task *Task, phaseContext map[string]any, cfg *config.Config) (res ExecResult) {
	res = ExecResult{TaskID: task.ID}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("skill panicked",
				zap.String("task_id", task.ID),
				zap.String("skill", task.Skill),
				zap.Any("panic", r))
			res = ExecResult{
				TaskID: task.ID,
				Error:  fmt.Sprintf("%v: skill %s panicked: %v", ErrSkillFailure, task.Skill, r),
			}
		}
	}()

	if err := ctx.Err(); err != nil {
		res.Error = fmt.Sprintf("%v: %v", ErrCancelled, err)
		return res
	}
	if err := e.guard.Record("skill:" + task.Skill); err != nil {
		res.Error = err.Error()
		return res
	}

	skill, ok := e.registry.Lookup(task.Skill)
	if !ok {
		return e.llmFallback(ctx, task, phaseContext)
	}

	e.emit(task, progress.StatusInProgress)
	out, err := skill.Execute(ctx, task, &ExecContext{
		Context: phaseContext,
		Config:  cfg,
		Guard:   e.guard,
		Tracker: e.tracker,
	})
	if e.guard.Looped() {
		e.emit(task, progress.StatusFailed)
		res.Error = fmt.Sprintf("%v: skill %s repeated the same action", ErrLoop, task.Skill)
		return res
	}
	if err != nil {
		e.emit(task, progress.StatusFailed)
		res.Error = fmt.Sprintf("%v: %v", ErrSkillFailure, err)
		return res
	}
	if out == nil {
		e.emit(task, progress.StatusFailed)
		res.Error = fmt.Sprintf("%v: skill %s returned no result", ErrSkillFailure, task.Skill)
		return res
	}

	res.Success = out.Success
	res.Data = out.Data
	res.Error = out.Error
	res.Sources = out.Sources
	res.Method = "skill"
	if res.Success {
		e.emit(task, progress.StatusCompleted)
	} else {
		e.emit(task, progress.StatusFailed)
	}
	return res
}

// llmFallback answers a task from the LLM's own knowledge when no
// skill is registered for it. Results are marked so downstream
// consumers know they are unverified.
func (e *Executor) llmFallback(ctx context.Context, task *Task, phaseContext map[string]any) ExecResult {
	res := ExecResult{TaskID: task.ID, Method: "llm_fallback"}
	if e.llm == nil {
		res.Error = fmt.Sprintf("%v: no skill registered for %q and no LLM fallback available", ErrSkillFailure, task.Skill)
		return res
	}

	e.logger.Info("no skill registered, using LLM fallback",
		zap.String("task_id", task.ID),
		zap.String("skill", task.Skill))
	e.emit(task, progress.StatusInProgress)

	prompt := fmt.Sprintf(`Complete this research task using your own knowledge.

Task: %s
Intended skill: %s
Known context so far: %s

Respond with ONLY a JSON object containing your findings.`,
		task.Description, task.Skill, summarizeContext(phaseContext))

	raw, err := e.llm.Complete(ctx, prompt, 2000, 0.3)
	if err != nil {
		e.emit(task, progress.StatusFailed)
		res.Error = fmt.Sprintf("%v: fallback completion: %v", ErrProvider, err)
		return res
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(llm.ExtractJSON(raw)), &data); err != nil {
		// Keep unparseable answers as raw text rather than losing them.
		data = map[string]any{"analysis": strings.TrimSpace(raw)}
	}
	data["_fallback"] = true

	res.Success = true
	res.Data = data
	e.emit(task, progress.StatusCompleted)
	return res
}

// summarizeContext lists which slots are populated without dumping
// full payloads into the prompt.
func summarizeContext(phaseContext map[string]any) string {
	if len(phaseContext) == 0 {
		return "(none)"
	}
	keys := make([]string, 0, len(phaseContext))
	for k := range phaseContext {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}

func (e *Executor) emit(task *Task, status progress.Status) {
	if e.tracker == nil {
		return
	}
	e.tracker.Emit(task.ID, task.Description, "Running skill "+task.Skill, status, progress.LevelSkill, nil)
}
