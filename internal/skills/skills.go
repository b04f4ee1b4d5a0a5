// Package skills implements the research skills the engine dispatches
// tasks to. Phase 1 skills gather foundation intelligence from the
// configured data sources, cross-checking multi-source findings with
// the truth engine; Phase 2 skills apply strategic frameworks over the
// accumulated context using the LLM.
package skills

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"bcos/internal/engine"
	"bcos/internal/llm"
	"bcos/internal/providers"
	"bcos/internal/truth"
)

// Deps bundles the collaborators shared by all skills.
type Deps struct {
	LLM        llm.Client
	Firecrawl  *providers.FirecrawlClient
	Exa        *providers.ExaClient
	Perplexity *providers.PerplexityClient
	Truth      *truth.Engine
	Logger     *zap.Logger
}

func (d *Deps) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

// Register wires every skill into the registry.
func Register(r *engine.Registry, deps Deps) {
	r.Register("company-intelligence", &companyIntelligence{deps: deps})
	r.Register("business-model-canvas", newFrameworkSkill(deps, "business-model-canvas", bmcPrompt))
	r.Register("value-chain-mapper", newFrameworkSkill(deps, "value-chain-mapper", valueChainPrompt))
	r.Register("org-structure-analyzer", newFrameworkSkill(deps, "org-structure-analyzer", orgStructurePrompt))
	r.Register("market-intelligence", &marketIntelligence{deps: deps})
	r.Register("competitor-intelligence", &competitorIntelligence{deps: deps})

	r.Register("swot-analyzer", newFrameworkSkill(deps, "swot-analyzer", swotPrompt))
	r.Register("porters-five-forces", newFrameworkSkill(deps, "porters-five-forces", portersPrompt))
	r.Register("pestel-analyzer", newFrameworkSkill(deps, "pestel-analyzer", pestelPrompt))
	r.Register("bcg-matrix", newFrameworkSkill(deps, "bcg-matrix", bcgPrompt))
	r.Register("blue-ocean-strategy", newFrameworkSkill(deps, "blue-ocean-strategy", blueOceanPrompt))
	r.Register("competitive-strategy", newFrameworkSkill(deps, "competitive-strategy", competitiveStrategyPrompt))
	r.Register("sales-intelligence", newFrameworkSkill(deps, "sales-intelligence", salesIntelligencePrompt))
}

// completeJSON runs an LLM completion and parses the answer as a JSON
// object.
func completeJSON(ctx context.Context, client llm.Client, prompt string, maxTokens int) (map[string]any, error) {
	if client == nil {
		return nil, fmt.Errorf("no LLM client configured")
	}
	raw, err := client.Complete(ctx, prompt, maxTokens, 0.3)
	if err != nil {
		return nil, fmt.Errorf("completion: %w", err)
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(llm.ExtractJSON(raw)), &data); err != nil {
		return nil, fmt.Errorf("response is not a JSON object: %w", err)
	}
	return data, nil
}

// contextDigest renders selected context slots as compact JSON for
// prompt inclusion, truncated per slot to keep prompts bounded.
func contextDigest(execContext map[string]any, slots ...string) string {
	var b strings.Builder
	for _, slot := range slots {
		value, ok := execContext[slot]
		if !ok {
			continue
		}
		blob, err := json.Marshal(value)
		if err != nil {
			continue
		}
		if len(blob) > 3000 {
			blob = blob[:3000]
		}
		fmt.Fprintf(&b, "%s: %s\n", slot, blob)
	}
	if b.Len() == 0 {
		return "(no prior context)"
	}
	return b.String()
}

// sourcesFromAnswer converts Perplexity citations to truth sources.
func sourcesFromAnswer(answer *providers.Answer) []truth.Source {
	sources := make([]truth.Source, 0, len(answer.Sources))
	for _, url := range answer.Sources {
		sources = append(sources, truth.Source{
			URL:              url,
			SourceName:       "Perplexity",
			SourceType:       truth.SourceVerification,
			DateAccessed:     time.Now(),
			ReliabilityScore: truth.ReliabilityFor(truth.SourceVerification),
		})
	}
	return sources
}
