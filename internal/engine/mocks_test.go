package engine

import (
	"context"
	"errors"

	"bcos/internal/config"
)

// fakeLLM is a function-field LLM client for tests.
type fakeLLM struct {
	completeFn func(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error)
	calls      int
}

func (f *fakeLLM) Complete(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	f.calls++
	if f.completeFn == nil {
		return "", errors.New("no completion configured")
	}
	return f.completeFn(ctx, prompt, maxTokens, temperature)
}

// stubSkill is a function-field skill for tests.
type stubSkill struct {
	executeFn func(ctx context.Context, task *Task, exec *ExecContext) (*SkillResult, error)
}

func (s *stubSkill) Execute(ctx context.Context, task *Task, exec *ExecContext) (*SkillResult, error) {
	if s.executeFn == nil {
		return &SkillResult{Success: true, Data: map[string]any{"stub": true}}, nil
	}
	return s.executeFn(ctx, task, exec)
}

// dataSkill returns a skill that always succeeds with the given data.
func dataSkill(data map[string]any) Skill {
	return &stubSkill{executeFn: func(context.Context, *Task, *ExecContext) (*SkillResult, error) {
		return &SkillResult{Success: true, Data: data}, nil
	}}
}

// phase1Registry registers working stubs for the default Phase 1 plan.
func phase1Registry() *Registry {
	r := NewRegistry()
	for _, id := range []string{
		"company-intelligence",
		"business-model-canvas",
		"value-chain-mapper",
		"market-intelligence",
		"competitor-intelligence",
	} {
		r.Register(id, dataSkill(map[string]any{"skill": id, "summary": "substantive findings for " + id}))
	}
	return r
}

// testConfig returns a minimal valid configuration.
func testConfig(mode config.RunMode) config.Config {
	cfg := config.Defaults()
	cfg.Company = config.Company{Name: "Acme Robotics", Website: "https://acme.test", Industry: "Industrial Automation"}
	cfg.Mode = mode
	return cfg
}
