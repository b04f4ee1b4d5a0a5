package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"bcos/internal/config"
	"bcos/internal/llm"
	"bcos/internal/progress"
)

// Options carries the collaborators an orchestrator is wired with.
// Every field is optional; a zero Options yields an offline engine
// that plans deterministically and validates heuristically.
type Options struct {
	// LLM powers planning, fallback execution, and result review.
	LLM llm.Client
	// Registry maps skill identifiers to implementations.
	Registry *Registry
	// Observer receives a progress snapshot after every event.
	Observer progress.Observer
	// StatePath, when set, is where state autosaves after each phase
	// and on cancellation.
	StatePath string
	// Logger defaults to a no-op logger.
	Logger *zap.Logger
}

// Orchestrator drives one analysis run: it plans tasks per phase,
// executes them in dependency order under a global step budget, routes
// validated results into the phase context, and assembles the final
// envelope.
type Orchestrator struct {
	cfg       config.Config
	state     *StateManager
	planner   *Planner
	executor  *Executor
	validator *Validator
	tracker   *progress.Tracker
	logger    *zap.Logger

	statePath string
	maxSteps  int
	step      int
}

// NewOrchestrator validates the configuration and wires the engine.
func NewOrchestrator(cfg config.Config, opts Options) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	registry := opts.Registry
	if registry == nil {
		registry = NewRegistry()
	}

	state := NewStateManager(logger)
	if err := state.SetCompany(cfg.Company.Name, cfg.Company.Website, cfg.Company.Industry); err != nil {
		return nil, err
	}
	tracker := progress.NewTracker(0, opts.Observer, logger)

	return &Orchestrator{
		cfg:       cfg,
		state:     state,
		planner:   NewPlanner(opts.LLM, registry, logger),
		executor:  NewExecutor(registry, opts.LLM, tracker, &cfg, logger),
		validator: NewValidator(opts.LLM, logger),
		tracker:   tracker,
		logger:    logger,
		statePath: opts.StatePath,
		maxSteps:  cfg.Advanced.MaxSteps,
	}, nil
}

// Tracker exposes the progress tracker for status queries.
func (o *Orchestrator) Tracker() *progress.Tracker {
	return o.tracker
}

// State exposes the state manager, primarily for persistence.
func (o *Orchestrator) State() *StateManager {
	return o.state
}

// SaveState persists the run state to the given path.
func (o *Orchestrator) SaveState(path string) error {
	return o.state.Save(path)
}

// LoadState restores a previously saved run state, e.g. the Phase 1
// context for a frameworks-only run or an interrupted run to resume.
func (o *Orchestrator) LoadState(path string) error {
	return o.state.Load(path)
}

// Run executes the configured analysis and returns the result
// envelope. Failed or skipped tasks degrade the envelope rather than
// aborting it; the returned error is non-nil only for structural
// problems (unmet preconditions, cancellation).
func (o *Orchestrator) Run(ctx context.Context) (Envelope, error) {
	o.logger.Info("starting analysis run",
		zap.String("company", o.cfg.Company.Name),
		zap.String("mode", string(o.cfg.Mode)))

	var runErr error
	switch o.cfg.Mode {
	case config.ModeBusinessOverview:
		runErr = o.runPhase(ctx, Phase1)

	case config.ModeFrameworksOnly:
		if !o.state.HasPhase1Data() {
			runErr = fmt.Errorf("%w: frameworks-only run requires a Phase 1 context; load one with LoadState", ErrPrecondition)
		} else {
			o.state.SetPhase(Phase2)
			runErr = o.runPhase(ctx, Phase2)
		}

	case config.ModeFull:
		runErr = o.runPhase(ctx, Phase1)
		if runErr == nil {
			o.state.SetPhase(Phase2)
			runErr = o.runPhase(ctx, Phase2)
		}
	}

	env := o.buildEnvelope(runErr)
	if runErr != nil {
		o.logger.Warn("run finished with error", zap.Error(runErr))
		return env, runErr
	}
	o.logger.Info("run complete",
		zap.Int("tasks_completed", env.Summary.Tasks.Completed),
		zap.Int("tasks_failed", env.Summary.Tasks.Failed))
	return env, nil
}

func (o *Orchestrator) runPhase(ctx context.Context, phase Phase) error {
	label := "Phase 1: Foundation Building"
	if phase == Phase2 {
		label = "Phase 2: Strategy Analysis"
	}
	o.tracker.SetPhase(label)

	var tasks []Task
	if phase == Phase1 {
		tasks = o.planner.PlanPhase1(ctx, &o.cfg)
	} else {
		tasks = o.planner.PlanPhase2(ctx, &o.cfg)
	}
	for i := range tasks {
		// A resumed run already carries this phase's tasks; keep their
		// recorded status instead of re-adding them. An ID held by a
		// task from another phase is a planning bug, not a resume.
		if existing, exists := o.state.Task(tasks[i].ID); exists {
			if existing.Phase != phase {
				return fmt.Errorf("%w: planned task id %q already belongs to %s",
					ErrInvalidState, existing.ID, existing.Phase)
			}
			continue
		}
		if err := o.state.AddTask(&tasks[i]); err != nil {
			return err
		}
	}
	o.tracker.SetTotalTasks(len(o.state.Tasks()))

	completed := make(map[string]bool)
	for _, t := range o.state.Tasks() {
		if t.Status == TaskCompleted {
			completed[t.ID] = true
		}
	}

	for _, planned := range tasks {
		if err := ctx.Err(); err != nil {
			o.cancelOutstanding(tasks)
			o.autosave()
			return fmt.Errorf("%w: %v", ErrCancelled, err)
		}
		if o.step >= o.maxSteps {
			o.logger.Warn("step budget exhausted, leaving remaining tasks pending",
				zap.Int("max_steps", o.maxSteps))
			break
		}

		task, ok := o.state.Task(planned.ID)
		if !ok || task.Status != TaskPending {
			continue
		}
		if !o.validator.CheckDependenciesMet(&task, completed) {
			o.logger.Info("skipping task with unmet dependencies",
				zap.String("task_id", task.ID),
				zap.Strings("dependencies", task.Dependencies))
			continue
		}

		if err := o.state.UpdateTaskStatus(task.ID, TaskInProgress, nil, ""); err != nil {
			return err
		}
		o.tracker.Emit(task.ID, task.Description, "Starting: "+task.Description,
			progress.StatusInProgress, progress.LevelTask, nil)
		o.executor.ResetLoopDetection()

		result := o.executor.ExecuteTask(ctx, &task, o.executionContext(phase), &o.cfg)
		o.step++

		valid, feedback := o.validator.ValidateTaskCompletion(ctx, &task, result)
		if valid {
			if phase == Phase1 {
				o.state.StorePhase1Result(task.Skill, result.Data)
			} else {
				o.state.StorePhase2Result(task.Skill, result.Data)
			}
			if err := o.state.UpdateTaskStatus(task.ID, TaskCompleted, resultRecord(result), ""); err != nil {
				return err
			}
			completed[task.ID] = true
			o.tracker.Emit(task.ID, task.Description, "Completed: "+task.Description,
				progress.StatusCompleted, progress.LevelTask, nil)
		} else {
			if err := o.state.UpdateTaskStatus(task.ID, TaskFailed, nil, feedback); err != nil {
				return err
			}
			o.logger.Warn("task rejected",
				zap.String("task_id", task.ID),
				zap.String("skill", task.Skill),
				zap.String("feedback", feedback))
			o.tracker.Emit(task.ID, task.Description, "Failed: "+feedback,
				progress.StatusFailed, progress.LevelTask, nil)
		}
	}

	o.state.MarkPhaseComplete(phase)
	o.autosave()
	return nil
}

// executionContext assembles the context snapshot a task sees. Phase 2
// tasks see the full Phase 1 context plus Phase 2 results so far.
func (o *Orchestrator) executionContext(phase Phase) map[string]any {
	snap := o.state.Phase1Snapshot()
	if phase == Phase2 {
		for k, v := range o.state.Phase2Snapshot() {
			snap[k] = v
		}
	}
	return snap
}

// cancelOutstanding marks every non-terminal task failed with a
// cancellation error.
func (o *Orchestrator) cancelOutstanding(tasks []Task) {
	for _, planned := range tasks {
		task, ok := o.state.Task(planned.ID)
		if !ok || task.Status.terminal() {
			continue
		}
		_ = o.state.UpdateTaskStatus(task.ID, TaskFailed, nil, ErrCancelled.Error())
		o.tracker.Emit(task.ID, task.Description, "Cancelled",
			progress.StatusFailed, progress.LevelTask, nil)
	}
}

func (o *Orchestrator) autosave() {
	if o.statePath == "" {
		return
	}
	if err := o.state.Save(o.statePath); err != nil {
		o.logger.Error("state autosave failed",
			zap.String("path", o.statePath),
			zap.Error(err))
	}
}

// resultRecord normalizes skill output into the map shape stored on
// the task record.
func resultRecord(result ExecResult) map[string]any {
	if m, ok := result.Data.(map[string]any); ok {
		return m
	}
	record := map[string]any{"data": result.Data}
	if result.Method != "" {
		record["method"] = result.Method
	}
	return record
}

func (o *Orchestrator) buildEnvelope(runErr error) Envelope {
	env := Envelope{
		Company:      o.cfg.Company.Name,
		Phase1:       o.state.Phase1Context(),
		Phase2:       o.state.Phase2Snapshot(),
		Summary:      o.state.Summary(),
		AnalysisType: string(o.cfg.Mode),
	}
	if runErr != nil {
		env.Error = runErr.Error()
	}
	return env
}
