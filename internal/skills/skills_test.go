package skills

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bcos/internal/config"
	"bcos/internal/engine"
)

type fakeLLM struct {
	respond func(prompt string) (string, error)
	calls   int
}

func (f *fakeLLM) Complete(_ context.Context, prompt string, _ int, _ float64) (string, error) {
	f.calls++
	if f.respond == nil {
		return "", errors.New("no completion configured")
	}
	return f.respond(prompt)
}

func testExec(cfg *config.Config) *engine.ExecContext {
	return &engine.ExecContext{
		Context: map[string]any{
			"company": map[string]any{
				"name":     cfg.Company.Name,
				"website":  cfg.Company.Website,
				"industry": cfg.Company.Industry,
			},
		},
		Config: cfg,
	}
}

func offlineConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Company = config.Company{Name: "Acme Robotics", Website: "https://acme.test", Industry: "Industrial Automation"}
	return &cfg
}

func TestRegisterCoversAllSkills(t *testing.T) {
	r := engine.NewRegistry()
	Register(r, Deps{})

	for _, id := range []string{
		"company-intelligence",
		"business-model-canvas",
		"value-chain-mapper",
		"org-structure-analyzer",
		"market-intelligence",
		"competitor-intelligence",
		"swot-analyzer",
		"porters-five-forces",
		"pestel-analyzer",
		"bcg-matrix",
		"blue-ocean-strategy",
		"competitive-strategy",
		"sales-intelligence",
	} {
		assert.True(t, r.Has(id), "skill %s not registered", id)
	}

	// Every configured framework resolves to a registered skill.
	for _, f := range []config.Framework{
		config.FrameworkSWOT,
		config.FrameworkPortersFiveForces,
		config.FrameworkPESTEL,
		config.FrameworkBCGMatrix,
		config.FrameworkBlueOcean,
		config.FrameworkCompetitiveStrategy,
		config.FrameworkSalesIntelligence,
	} {
		assert.True(t, r.Has(f.Skill()), "framework %s has no skill", f)
	}
}

func TestFrameworkSkillParsesAnalysis(t *testing.T) {
	client := &fakeLLM{respond: func(string) (string, error) {
		return "```json\n{\"strengths\": [\"strong brand\"], \"weaknesses\": [], \"opportunities\": [], \"threats\": [], \"strategic_implications\": [\"invest in brand\"]}\n```", nil
	}}
	skill := newFrameworkSkill(Deps{LLM: client}, "swot-analyzer", swotPrompt)

	result, err := skill.Execute(context.Background(),
		&engine.Task{ID: "t1", Skill: "swot-analyzer"}, testExec(offlineConfig()))
	require.NoError(t, err)
	require.True(t, result.Success, "result error: %s", result.Error)

	data := result.Data.(map[string]any)
	assert.Contains(t, data, "strengths")
	assert.Contains(t, data, "strategic_implications")
}

func TestFrameworkSkillReportsLLMFailure(t *testing.T) {
	client := &fakeLLM{respond: func(string) (string, error) {
		return "", errors.New("rate limited")
	}}
	skill := newFrameworkSkill(Deps{LLM: client}, "bcg-matrix", bcgPrompt)

	result, err := skill.Execute(context.Background(),
		&engine.Task{ID: "t1", Skill: "bcg-matrix"}, testExec(offlineConfig()))
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "bcg-matrix analysis failed")
}

func TestFrameworkPromptIncludesContext(t *testing.T) {
	var captured string
	client := &fakeLLM{respond: func(prompt string) (string, error) {
		captured = prompt
		return `{"rivalry": "intense"}`, nil
	}}
	skill := newFrameworkSkill(Deps{LLM: client}, "porters-five-forces", portersPrompt)

	exec := testExec(offlineConfig())
	exec.Context["market_intelligence"] = map[string]any{"market_size": "$4B"}

	_, err := skill.Execute(context.Background(), &engine.Task{ID: "t1"}, exec)
	require.NoError(t, err)
	assert.Contains(t, captured, "Acme Robotics")
	assert.Contains(t, captured, "$4B", "prior context not fed into the prompt")
}

func TestFrameworkSkillStopsWhenStepBudgetTrips(t *testing.T) {
	client := &fakeLLM{respond: func(string) (string, error) {
		return `{"strengths": ["never reached"]}`, nil
	}}
	skill := newFrameworkSkill(Deps{LLM: client}, "swot-analyzer", swotPrompt)

	exec := testExec(offlineConfig())
	exec.Guard = engine.NewLoopGuard(1)
	require.NoError(t, exec.Guard.Record("setup"))

	result, err := skill.Execute(context.Background(),
		&engine.Task{ID: "t1", Skill: "swot-analyzer"}, exec)
	require.ErrorIs(t, err, engine.ErrSkillFailure)
	assert.Nil(t, result)
	assert.Zero(t, client.calls, "exhausted budget must not reach the LLM")
}

func TestCompanyIntelligenceKnowledgeBaseFallback(t *testing.T) {
	client := &fakeLLM{respond: func(string) (string, error) {
		return `{"founded": "2015", "headquarters": "Austin, TX", "products": ["robotic arms"]}`, nil
	}}
	skill := &companyIntelligence{deps: Deps{LLM: client}}

	// All data sources disabled: the skill answers from the LLM alone
	// and marks the result accordingly.
	result, err := skill.Execute(context.Background(),
		&engine.Task{ID: "t1", Skill: "company-intelligence"}, testExec(offlineConfig()))
	require.NoError(t, err)
	require.True(t, result.Success, "result error: %s", result.Error)

	data := result.Data.(map[string]any)
	assert.Equal(t, true, data["_knowledge_base_only"])
	assert.Equal(t, "2015", data["founded"])
}

func TestCompanyIntelligenceFailsWithoutAnySource(t *testing.T) {
	skill := &companyIntelligence{deps: Deps{}}
	result, err := skill.Execute(context.Background(),
		&engine.Task{ID: "t1"}, testExec(offlineConfig()))
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
}

func TestCompetitorIntelligenceProfilesConfiguredCompetitors(t *testing.T) {
	client := &fakeLLM{respond: func(string) (string, error) {
		return `{"positioning": "premium", "strengths": ["scale"], "weaknesses": ["price"], "recent_moves": []}`, nil
	}}
	cfg := offlineConfig()
	cfg.Competitors = []string{"Globex Automation", "Initech Robotics"}

	skill := &competitorIntelligence{deps: Deps{LLM: client}}
	result, err := skill.Execute(context.Background(),
		&engine.Task{ID: "t1", Skill: "competitor-intelligence"}, testExec(cfg))
	require.NoError(t, err)
	require.True(t, result.Success, "result error: %s", result.Error)

	data := result.Data.(map[string]any)
	profiles := data["competitors"].(map[string]any)
	assert.Len(t, profiles, 2)
	assert.Contains(t, profiles, "Globex Automation")
	assert.Contains(t, profiles, "Initech Robotics")
	assert.Equal(t, 2, data["count"])
}

func TestCompetitorIntelligenceWithoutListAsksLLM(t *testing.T) {
	client := &fakeLLM{respond: func(string) (string, error) {
		return `{"competitors": {"Globex": {"positioning": "budget"}}}`, nil
	}}
	cfg := offlineConfig()
	cfg.Company.Website = "" // no discovery possible

	skill := &competitorIntelligence{deps: Deps{LLM: client}}
	result, err := skill.Execute(context.Background(),
		&engine.Task{ID: "t1"}, testExec(cfg))
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, 1, client.calls)
}

func TestMarketIntelligenceWithoutProviders(t *testing.T) {
	client := &fakeLLM{respond: func(string) (string, error) {
		return `{"market_size": "$4B", "growth_rate": "12%", "key_trends": ["automation"], "customer_segments": [], "regulatory_factors": [], "outlook": "positive"}`, nil
	}}
	skill := &marketIntelligence{deps: Deps{LLM: client}}

	result, err := skill.Execute(context.Background(),
		&engine.Task{ID: "t1"}, testExec(offlineConfig()))
	require.NoError(t, err)
	require.True(t, result.Success, "result error: %s", result.Error)
	assert.Equal(t, "$4B", result.Data.(map[string]any)["market_size"])
}

func TestUseProviderGuardsNilAndDisabled(t *testing.T) {
	deps := Deps{}
	enabled := config.Provider{Enabled: true}
	disabled := config.Provider{Enabled: false, APIKey: "key"}

	assert.False(t, useProvider(enabled, deps.Exa), "typed-nil client treated as usable")
	assert.False(t, useProvider(disabled, deps.Exa))
}
