package skills

import (
	"context"
	"fmt"

	"bcos/internal/config"
	"bcos/internal/engine"
)

// promptBuilder renders the analysis prompt for one framework from
// the run configuration and the current phase context.
type promptBuilder func(cfg *config.Config, execContext map[string]any) string

// frameworkSkill is the shared core for every LLM-driven analytical
// skill: build the framework prompt over the accumulated context, run
// one completion, and return the parsed JSON analysis.
type frameworkSkill struct {
	deps   Deps
	id     string
	prompt promptBuilder
}

func newFrameworkSkill(deps Deps, id string, prompt promptBuilder) *frameworkSkill {
	return &frameworkSkill{deps: deps, id: id, prompt: prompt}
}

func (s *frameworkSkill) Execute(ctx context.Context, task *engine.Task, exec *engine.ExecContext) (*engine.SkillResult, error) {
	if err := recordAction(exec, "framework:"+s.id); err != nil {
		return nil, err
	}
	data, err := completeJSON(ctx, s.deps.LLM, s.prompt(exec.Config, exec.Context), 2000)
	if err != nil {
		return &engine.SkillResult{Error: fmt.Sprintf("%s analysis failed: %v", s.id, err)}, nil
	}
	return &engine.SkillResult{Success: true, Data: data}, nil
}

func bmcPrompt(cfg *config.Config, execContext map[string]any) string {
	return fmt.Sprintf(`Build a Business Model Canvas for %s.

Known context:
%s

Respond with ONLY a JSON object with keys: key_partners, key_activities,
key_resources, value_propositions, customer_relationships, channels,
customer_segments, cost_structure, revenue_streams. Each value is a
list of short statements.`,
		cfg.Company.Name,
		contextDigest(execContext, "company_intelligence"))
}

func valueChainPrompt(cfg *config.Config, execContext map[string]any) string {
	return fmt.Sprintf(`Map the value chain of %s.

Known context:
%s

Respond with ONLY a JSON object with keys: primary_activities (object
with inbound_logistics, operations, outbound_logistics,
marketing_sales, service) and support_activities (object with
firm_infrastructure, human_resources, technology_development,
procurement). Each value is a list of observations.`,
		cfg.Company.Name,
		contextDigest(execContext, "company_intelligence", "business_model_canvas"))
}

func orgStructurePrompt(cfg *config.Config, execContext map[string]any) string {
	return fmt.Sprintf(`Analyze the organizational structure of %s.

Known context:
%s

Respond with ONLY a JSON object with keys: leadership (list of
{name, role}), structure_type, departments (list), decision_making,
culture_signals (list).`,
		cfg.Company.Name,
		contextDigest(execContext, "company_intelligence"))
}

func swotPrompt(cfg *config.Config, execContext map[string]any) string {
	return fmt.Sprintf(`Perform a SWOT analysis of %s.

Foundation research:
%s

Respond with ONLY a JSON object with keys: strengths, weaknesses,
opportunities, threats. Each is a list of specific, evidence-based
statements, and a final key strategic_implications with 2-3 takeaways.`,
		cfg.Company.Name,
		contextDigest(execContext, "company_intelligence", "market_intelligence", "competitor_intelligence"))
}

func portersPrompt(cfg *config.Config, execContext map[string]any) string {
	return fmt.Sprintf(`Apply Porter's Five Forces to %s in the %s industry.

Foundation research:
%s

Respond with ONLY a JSON object with keys: competitive_rivalry,
supplier_power, buyer_power, threat_of_substitutes,
threat_of_new_entrants. Each is an object {intensity: "low|medium|high",
analysis: "...", factors: [...]}. Add overall_attractiveness.`,
		cfg.Company.Name, cfg.Company.Industry,
		contextDigest(execContext, "market_intelligence", "competitor_intelligence", "value_chain"))
}

func pestelPrompt(cfg *config.Config, execContext map[string]any) string {
	return fmt.Sprintf(`Perform a PESTEL analysis for %s in the %s industry.

Foundation research:
%s

Respond with ONLY a JSON object with keys: political, economic, social,
technological, environmental, legal. Each is a list of factors with
their likely impact.`,
		cfg.Company.Name, cfg.Company.Industry,
		contextDigest(execContext, "market_intelligence", "company_intelligence"))
}

func bcgPrompt(cfg *config.Config, execContext map[string]any) string {
	return fmt.Sprintf(`Place the product portfolio of %s on the BCG growth-share matrix.

Foundation research:
%s

Respond with ONLY a JSON object with keys: stars, cash_cows,
question_marks, dogs. Each is a list of {product, rationale}. Add
portfolio_recommendations (list).`,
		cfg.Company.Name,
		contextDigest(execContext, "company_intelligence", "business_model_canvas", "market_intelligence"))
}

func blueOceanPrompt(cfg *config.Config, execContext map[string]any) string {
	return fmt.Sprintf(`Apply Blue Ocean Strategy thinking to %s.

Foundation research:
%s

Respond with ONLY a JSON object with keys: eliminate, reduce, raise,
create (each a list of factors), and uncontested_spaces (list of
market opportunities competitors ignore).`,
		cfg.Company.Name,
		contextDigest(execContext, "competitor_intelligence", "market_intelligence", "business_model_canvas"))
}

func competitiveStrategyPrompt(cfg *config.Config, execContext map[string]any) string {
	return fmt.Sprintf(`Assess the competitive strategy of %s.

Foundation research:
%s

Respond with ONLY a JSON object with keys: current_strategy
("cost_leadership", "differentiation", or "focus"), evidence (list),
sustainability_assessment, recommended_moves (list).`,
		cfg.Company.Name,
		contextDigest(execContext, "competitor_intelligence", "value_chain", "market_intelligence"))
}

func salesIntelligencePrompt(cfg *config.Config, execContext map[string]any) string {
	return fmt.Sprintf(`Build sales intelligence for selling to %s.

Foundation research:
%s

Respond with ONLY a JSON object with keys: buying_signals (list),
likely_pain_points (list), decision_makers (list of roles),
recommended_approach, conversation_starters (list).`,
		cfg.Company.Name,
		contextDigest(execContext, "company_intelligence", "org_structure", "market_intelligence"))
}
