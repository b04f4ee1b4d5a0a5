package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"bcos/internal/config"
	"bcos/internal/llm"
)

// Planner turns run configuration into phase task lists. When an LLM
// client is available it asks for a tailored plan; any failure or
// malformed answer falls back to the deterministic built-in plan, so
// planning never blocks a run.
type Planner struct {
	llm      llm.Client
	registry *Registry
	logger   *zap.Logger
}

// NewPlanner builds a planner. The LLM client may be nil, in which
// case the fallback plan is always used.
func NewPlanner(client llm.Client, registry *Registry, logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{llm: client, registry: registry, logger: logger}
}

// taskIDPrefix returns the phase-scoped ID prefix. Keeping IDs
// namespaced per phase means a Phase 2 plan can never collide with a
// Phase 1 task already recorded in state.
func taskIDPrefix(phase Phase) string {
	if phase == Phase2 {
		return "phase2_task_"
	}
	return "phase1_task_"
}

// plannedTask is the JSON shape the LLM is asked to emit.
type plannedTask struct {
	ID           string   `json:"id"`
	Description  string   `json:"description"`
	Skill        string   `json:"skill"`
	Dependencies []string `json:"dependencies"`
}

// PlanPhase1 produces the foundation-building task list.
func (p *Planner) PlanPhase1(ctx context.Context, cfg *config.Config) []Task {
	if p.llm != nil {
		tasks, err := p.planWithLLM(ctx, cfg, Phase1)
		if err == nil {
			return tasks
		}
		p.logger.Warn("phase 1 planning fell back to default plan", zap.Error(err))
	}
	return p.FallbackPhase1Tasks(cfg)
}

// PlanPhase2 produces the strategy task list for the selected
// frameworks.
func (p *Planner) PlanPhase2(ctx context.Context, cfg *config.Config) []Task {
	if p.llm != nil {
		tasks, err := p.planWithLLM(ctx, cfg, Phase2)
		if err == nil {
			return tasks
		}
		p.logger.Warn("phase 2 planning fell back to default plan", zap.Error(err))
	}
	return p.FallbackPhase2Tasks(cfg)
}

func (p *Planner) planWithLLM(ctx context.Context, cfg *config.Config, phase Phase) ([]Task, error) {
	prompt := p.buildPrompt(cfg, phase)
	raw, err := p.llm.Complete(ctx, prompt, 2000, 0.2)
	if err != nil {
		return nil, fmt.Errorf("%w: plan completion: %v", ErrProvider, err)
	}
	var planned []plannedTask
	if err := json.Unmarshal([]byte(llm.ExtractJSON(raw)), &planned); err != nil {
		return nil, fmt.Errorf("plan response is not a JSON task list: %w", err)
	}
	if len(planned) == 0 {
		return nil, fmt.Errorf("plan response contained no tasks")
	}
	prefix := taskIDPrefix(phase)
	tasks := make([]Task, 0, len(planned))
	seen := make(map[string]bool, len(planned))
	for _, pt := range planned {
		if pt.ID == "" || pt.Skill == "" {
			return nil, fmt.Errorf("planned task missing id or skill")
		}
		if !strings.HasPrefix(pt.ID, prefix) {
			return nil, fmt.Errorf("planned task id %q does not follow the %sN scheme", pt.ID, prefix)
		}
		if seen[pt.ID] {
			return nil, fmt.Errorf("planned task id %q repeated", pt.ID)
		}
		if p.registry != nil && !p.registry.Has(pt.Skill) {
			return nil, fmt.Errorf("planned task %q names unknown skill %q", pt.ID, pt.Skill)
		}
		for _, dep := range pt.Dependencies {
			if !seen[dep] {
				return nil, fmt.Errorf("planned task %q depends on %q which is not an earlier task", pt.ID, dep)
			}
		}
		seen[pt.ID] = true
		deps := pt.Dependencies
		if deps == nil {
			deps = []string{}
		}
		tasks = append(tasks, Task{
			ID:           pt.ID,
			Description:  pt.Description,
			Phase:        phase,
			Skill:        pt.Skill,
			Dependencies: deps,
			Status:       TaskPending,
		})
	}
	return tasks, nil
}

func (p *Planner) buildPrompt(cfg *config.Config, phase Phase) string {
	var b strings.Builder
	b.WriteString("You are planning a business research run.\n\n")
	fmt.Fprintf(&b, "Company: %s\n", cfg.Company.Name)
	if cfg.Company.Website != "" {
		fmt.Fprintf(&b, "Website: %s\n", cfg.Company.Website)
	}
	if cfg.Company.Industry != "" {
		fmt.Fprintf(&b, "Industry: %s\n", cfg.Company.Industry)
	}
	if cfg.Goal != "" {
		fmt.Fprintf(&b, "Goal: %s\n", cfg.Goal)
	}

	switch phase {
	case Phase1:
		b.WriteString("\nPhase 1 builds foundation intelligence: company profile, business model, value chain, market, and competitors.\n")
	case Phase2:
		b.WriteString("\nPhase 2 applies strategic frameworks over the gathered foundation context.\n")
		if len(cfg.Frameworks) > 0 {
			b.WriteString("Selected frameworks:\n")
			for _, f := range cfg.Frameworks {
				fmt.Fprintf(&b, "- %s (skill: %s)\n", f, f.Skill())
			}
		}
	}

	if p.registry != nil {
		b.WriteString("\nAvailable skills:\n")
		for _, id := range p.registry.IDs() {
			fmt.Fprintf(&b, "- %s\n", id)
		}
	}

	prefix := taskIDPrefix(phase)
	fmt.Fprintf(&b, `
Respond with ONLY a JSON array of task objects, ordered so that every
dependency is an earlier task. Task ids must be %s1, %s2, ... in order:
[
  {"id": "%s1", "description": "...", "skill": "<skill id>", "dependencies": []}
]
`, prefix, prefix, prefix)
	return b.String()
}

// FallbackPhase1Tasks is the deterministic Phase 1 plan used when LLM
// planning is unavailable or produced an invalid plan.
func (p *Planner) FallbackPhase1Tasks(cfg *config.Config) []Task {
	name := cfg.Company.Name
	return []Task{
		{
			ID:           "phase1_task_1",
			Description:  fmt.Sprintf("Gather core intelligence about %s", name),
			Phase:        Phase1,
			Skill:        "company-intelligence",
			Dependencies: []string{},
			Status:       TaskPending,
		},
		{
			ID:           "phase1_task_2",
			Description:  fmt.Sprintf("Map the business model canvas for %s", name),
			Phase:        Phase1,
			Skill:        "business-model-canvas",
			Dependencies: []string{"phase1_task_1"},
			Status:       TaskPending,
		},
		{
			ID:           "phase1_task_3",
			Description:  fmt.Sprintf("Map the value chain for %s", name),
			Phase:        Phase1,
			Skill:        "value-chain-mapper",
			Dependencies: []string{"phase1_task_1"},
			Status:       TaskPending,
		},
		{
			ID:           "phase1_task_4",
			Description:  fmt.Sprintf("Analyze the market %s operates in", name),
			Phase:        Phase1,
			Skill:        "market-intelligence",
			Dependencies: []string{"phase1_task_1"},
			Status:       TaskPending,
		},
		{
			ID:           "phase1_task_5",
			Description:  fmt.Sprintf("Profile the main competitors of %s", name),
			Phase:        Phase1,
			Skill:        "competitor-intelligence",
			Dependencies: []string{"phase1_task_4"},
			Status:       TaskPending,
		},
	}
}

// FallbackPhase2Tasks is the deterministic Phase 2 plan: one task per
// selected framework, in configuration order.
func (p *Planner) FallbackPhase2Tasks(cfg *config.Config) []Task {
	tasks := make([]Task, 0, len(cfg.Frameworks))
	for i, f := range cfg.Frameworks {
		tasks = append(tasks, Task{
			ID:           fmt.Sprintf("phase2_task_%d", i+1),
			Description:  fmt.Sprintf("Apply %s to %s", f, cfg.Company.Name),
			Phase:        Phase2,
			Skill:        f.Skill(),
			Dependencies: []string{},
			Status:       TaskPending,
		})
	}
	return tasks
}
