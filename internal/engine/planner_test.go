package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"bcos/internal/config"
)

func TestPlannerFallbackPhase1Plan(t *testing.T) {
	cfg := testConfig(config.ModeFull)
	p := NewPlanner(nil, phase1Registry(), nil)

	tasks := p.PlanPhase1(context.Background(), &cfg)
	if len(tasks) != 5 {
		t.Fatalf("fallback plan has %d tasks, want 5", len(tasks))
	}

	wantSkills := []string{
		"company-intelligence",
		"business-model-canvas",
		"value-chain-mapper",
		"market-intelligence",
		"competitor-intelligence",
	}
	seen := map[string]bool{}
	for i, task := range tasks {
		if task.Skill != wantSkills[i] {
			t.Errorf("task %d skill = %s, want %s", i, task.Skill, wantSkills[i])
		}
		if task.Phase != Phase1 {
			t.Errorf("task %d phase = %s", i, task.Phase)
		}
		if task.Status != TaskPending {
			t.Errorf("task %d status = %s", i, task.Status)
		}
		for _, dep := range task.Dependencies {
			if !seen[dep] {
				t.Errorf("task %d depends on %q before it exists", i, dep)
			}
		}
		seen[task.ID] = true
	}
	for i, task := range tasks {
		if want := fmt.Sprintf("phase1_task_%d", i+1); task.ID != want {
			t.Errorf("task %d id = %s, want %s", i, task.ID, want)
		}
	}
	// Competitor profiling builds on the market view.
	if got := tasks[4].Dependencies; len(got) != 1 || got[0] != "phase1_task_4" {
		t.Errorf("competitor task dependencies = %v, want [phase1_task_4]", got)
	}
}

func TestPlannerFallbackPhase2OneTaskPerFramework(t *testing.T) {
	cfg := testConfig(config.ModeFull)
	cfg.Frameworks = []config.Framework{
		config.FrameworkSWOT,
		config.FrameworkBCGMatrix,
		config.FrameworkPESTEL,
	}
	p := NewPlanner(nil, nil, nil)

	tasks := p.PlanPhase2(context.Background(), &cfg)
	if len(tasks) != 3 {
		t.Fatalf("got %d tasks, want 3", len(tasks))
	}
	wantSkills := []string{"swot-analyzer", "bcg-matrix", "pestel-analyzer"}
	for i, task := range tasks {
		if task.Skill != wantSkills[i] {
			t.Errorf("task %d skill = %s, want %s", i, task.Skill, wantSkills[i])
		}
		if task.Phase != Phase2 {
			t.Errorf("task %d phase = %s", i, task.Phase)
		}
		if want := fmt.Sprintf("phase2_task_%d", i+1); task.ID != want {
			t.Errorf("task %d id = %s, want %s", i, task.ID, want)
		}
	}
}

func TestPlannerAcceptsValidLLMPlan(t *testing.T) {
	plan := `[
  {"id": "phase1_task_1", "description": "profile the company", "skill": "company-intelligence", "dependencies": []},
  {"id": "phase1_task_2", "description": "map the model", "skill": "business-model-canvas", "dependencies": ["phase1_task_1"]}
]`
	client := &fakeLLM{completeFn: func(context.Context, string, int, float64) (string, error) {
		return "```json\n" + plan + "\n```", nil
	}}
	cfg := testConfig(config.ModeFull)
	p := NewPlanner(client, phase1Registry(), nil)

	tasks := p.PlanPhase1(context.Background(), &cfg)
	if len(tasks) != 2 {
		t.Fatalf("got %d tasks, want the 2 planned ones", len(tasks))
	}
	if tasks[1].Dependencies[0] != "phase1_task_1" {
		t.Errorf("dependency lost: %v", tasks[1].Dependencies)
	}
}

func TestPlannerRejectsPhase1IDsInPhase2Plan(t *testing.T) {
	// A Phase 2 plan reusing Phase 1 ids would shadow already-completed
	// tasks, so it must not survive validation.
	plan := `[{"id": "phase1_task_1", "description": "swot", "skill": "swot-analyzer", "dependencies": []}]`
	client := &fakeLLM{completeFn: func(context.Context, string, int, float64) (string, error) {
		return plan, nil
	}}
	cfg := testConfig(config.ModeFull)
	cfg.Frameworks = []config.Framework{config.FrameworkSWOT, config.FrameworkPESTEL}

	registry := frameworkRegistry(config.FrameworkSWOT, config.FrameworkPESTEL)
	p := NewPlanner(client, registry, nil)

	tasks := p.PlanPhase2(context.Background(), &cfg)
	if len(tasks) != 2 {
		t.Fatalf("got %d tasks, want the 2-framework fallback plan", len(tasks))
	}
	for i, task := range tasks {
		if want := fmt.Sprintf("phase2_task_%d", i+1); task.ID != want {
			t.Errorf("task %d id = %s, want %s", i, task.ID, want)
		}
	}
}

func TestPlannerFallsBackOnBadPlans(t *testing.T) {
	cases := []struct {
		name     string
		response string
		err      error
	}{
		{name: "llm error", err: errors.New("rate limited")},
		{name: "not json", response: "I think you should research the company first."},
		{name: "empty list", response: "[]"},
		{name: "duplicate ids", response: `[{"id":"phase1_task_1","skill":"company-intelligence"},{"id":"phase1_task_1","skill":"market-intelligence"}]`},
		{name: "unknown skill", response: `[{"id":"phase1_task_1","skill":"quantum-oracle"}]`},
		{name: "forward dependency", response: `[{"id":"phase1_task_1","skill":"company-intelligence","dependencies":["phase1_task_2"]},{"id":"phase1_task_2","skill":"market-intelligence"}]`},
		{name: "missing skill", response: `[{"id":"phase1_task_1","description":"x"}]`},
		{name: "unscoped id", response: `[{"id":"task_1","skill":"company-intelligence"}]`},
	}
	cfg := testConfig(config.ModeFull)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := &fakeLLM{completeFn: func(context.Context, string, int, float64) (string, error) {
				return tc.response, tc.err
			}}
			p := NewPlanner(client, phase1Registry(), nil)
			tasks := p.PlanPhase1(context.Background(), &cfg)
			if len(tasks) != 5 {
				t.Errorf("got %d tasks, want the 5-task fallback plan", len(tasks))
			}
			if client.calls != 1 {
				t.Errorf("LLM called %d times, want 1", client.calls)
			}
		})
	}
}
