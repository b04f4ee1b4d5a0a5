package skills

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"bcos/internal/config"
	"bcos/internal/engine"
	"bcos/internal/providers"
	"bcos/internal/truth"
)

// competitorFanOut bounds concurrent competitor lookups.
const competitorFanOut = 3

// companyIntelligence builds the core company profile. It pulls from
// every enabled data source, extracts structured claims per source,
// and cross-references them through the truth engine when more than
// one source answered.
type companyIntelligence struct {
	deps Deps
}

func (s *companyIntelligence) Execute(ctx context.Context, task *engine.Task, exec *engine.ExecContext) (*engine.SkillResult, error) {
	cfg := exec.Config
	company := cfg.Company
	log := s.deps.logger().With(zap.String("skill", "company-intelligence"))

	var (
		sourceData []truth.SourceData
		citations  []truth.Source
	)

	if useProvider(cfg.DataSources.Perplexity, s.deps.Perplexity) {
		if err := recordAction(exec, "perplexity:company-profile"); err != nil {
			return nil, err
		}
		question := fmt.Sprintf(
			"Provide a factual profile of %s: founding year, headquarters, employee count, annual revenue, main products or services, key executives, and business model.",
			company.Name)
		answer, err := s.deps.Perplexity.Query(ctx, question, "month")
		if err != nil {
			log.Warn("perplexity profile lookup failed", zap.Error(err))
		} else {
			claims, err := s.extractClaims(ctx, company.Name, "Perplexity research", answer.Answer)
			if err == nil {
				sourceData = append(sourceData, truth.SourceData{
					SourceName: "Perplexity",
					SourceType: truth.SourceVerification,
					Data:       claims,
				})
			}
			citations = append(citations, sourcesFromAnswer(answer)...)
		}
	}

	if company.Website != "" && useProvider(cfg.DataSources.Firecrawl, s.deps.Firecrawl) {
		if err := recordAction(exec, "scrape:"+company.Website); err != nil {
			return nil, err
		}
		page, err := s.deps.Firecrawl.Scrape(ctx, company.Website)
		if err != nil {
			log.Warn("website scrape failed", zap.Error(err))
		} else {
			claims, err := s.extractClaims(ctx, company.Name, "official website", page.Content)
			if err == nil {
				sourceData = append(sourceData, truth.SourceData{
					URL:        company.Website,
					SourceName: "Company Website",
					SourceType: truth.SourcePrimary,
					Data:       claims,
				})
			}
		}
	}

	if useProvider(cfg.DataSources.Exa, s.deps.Exa) {
		if err := recordAction(exec, "exa:company-info"); err != nil {
			return nil, err
		}
		hits, err := s.deps.Exa.SearchCompanyInfo(ctx, company.Name)
		if err != nil {
			log.Warn("exa company search failed", zap.Error(err))
		} else if len(hits) > 0 {
			var excerpt strings.Builder
			for _, hit := range hits {
				fmt.Fprintf(&excerpt, "[%s] %s\n", hit.Title, hit.Text)
			}
			claims, err := s.extractClaims(ctx, company.Name, "web search", excerpt.String())
			if err == nil {
				sourceData = append(sourceData, truth.SourceData{
					URL:        hits[0].URL,
					SourceName: "Exa Search",
					SourceType: truth.SourceSecondary,
					Data:       claims,
				})
			}
		}
	}

	// Every source offline: answer from the LLM's own knowledge.
	if len(sourceData) == 0 {
		profile, err := completeJSON(ctx, s.deps.LLM, fmt.Sprintf(
			`Using your own knowledge, profile the company %s (%s industry).
Respond with ONLY a JSON object with keys like founded, headquarters,
employees, revenue, products, leadership, business_model. Use "Unknown"
for anything you are not sure of.`, company.Name, company.Industry), 1500)
		if err != nil {
			return &engine.SkillResult{Error: "no data source produced a company profile: " + err.Error()}, nil
		}
		profile["_knowledge_base_only"] = true
		return &engine.SkillResult{Success: true, Data: profile}, nil
	}

	if len(sourceData) > 1 && s.deps.Truth != nil {
		dataset := s.deps.Truth.CrossReference(sourceData, company.Name, "company")
		profile := make(map[string]any, len(dataset.Facts))
		for _, fact := range dataset.Facts {
			profile[fact.Claim] = fact.Value
		}
		return &engine.SkillResult{
			Success: true,
			Data: map[string]any{
				"profile": profile,
				"verification": map[string]any{
					"overall_confidence": dataset.OverallConfidence,
					"verified_count":     dataset.VerifiedCount,
					"unverified_count":   dataset.UnverifiedCount,
					"conflict_count":     dataset.ConflictCount,
					"total_sources":      dataset.TotalSources,
				},
			},
			Sources: citations,
		}, nil
	}

	return &engine.SkillResult{
		Success: true,
		Data:    map[string]any{"profile": sourceData[0].Data},
		Sources: citations,
	}, nil
}

// extractClaims turns one source's raw text into a flat claim map.
func (s *companyIntelligence) extractClaims(ctx context.Context, company, sourceName, text string) (map[string]any, error) {
	if len(text) > 6000 {
		text = text[:6000]
	}
	return completeJSON(ctx, s.deps.LLM, fmt.Sprintf(
		`Extract factual claims about %s from this %s text.

%s

Respond with ONLY a flat JSON object mapping claim names to values,
e.g. {"founded": "2015", "headquarters": "Austin, TX"}. Omit anything
the text does not state.`, company, sourceName, text), 1200)
}

// marketIntelligence analyzes the market the company operates in,
// combining live search and research answers into one view.
type marketIntelligence struct {
	deps Deps
}

func (s *marketIntelligence) Execute(ctx context.Context, task *engine.Task, exec *engine.ExecContext) (*engine.SkillResult, error) {
	cfg := exec.Config
	log := s.deps.logger().With(zap.String("skill", "market-intelligence"))

	var (
		findings  strings.Builder
		citations []truth.Source
	)

	if useProvider(cfg.DataSources.Exa, s.deps.Exa) {
		if err := recordAction(exec, "exa:market-trends"); err != nil {
			return nil, err
		}
		hits, err := s.deps.Exa.SearchMarketTrends(ctx, cfg.Company.Industry)
		if err != nil {
			log.Warn("market trend search failed", zap.Error(err))
		} else {
			for _, hit := range hits {
				fmt.Fprintf(&findings, "[%s] %s\n", hit.Title, hit.Text)
			}
		}
	}

	if useProvider(cfg.DataSources.Perplexity, s.deps.Perplexity) {
		if err := recordAction(exec, "perplexity:market-size"); err != nil {
			return nil, err
		}
		question := fmt.Sprintf(
			"What is the market size, growth rate, and key trends of the %s industry that %s operates in?",
			cfg.Company.Industry, cfg.Company.Name)
		answer, err := s.deps.Perplexity.Query(ctx, question, "month")
		if err != nil {
			log.Warn("market research query failed", zap.Error(err))
		} else {
			findings.WriteString("\n[Research answer] " + answer.Answer + "\n")
			citations = append(citations, sourcesFromAnswer(answer)...)
		}
	}

	research := findings.String()
	if research == "" {
		research = "(no external research available; use your own knowledge)"
	}
	if len(research) > 8000 {
		research = research[:8000]
	}

	data, err := completeJSON(ctx, s.deps.LLM, fmt.Sprintf(
		`Analyze the market for %s (%s industry) from this research:

%s

Company context:
%s

Respond with ONLY a JSON object with keys: market_size, growth_rate,
key_trends (list), customer_segments (list), regulatory_factors (list),
outlook.`, cfg.Company.Name, cfg.Company.Industry, research,
		contextDigest(exec.Context, "company_intelligence")), 1800)
	if err != nil {
		return &engine.SkillResult{Error: "market analysis failed: " + err.Error()}, nil
	}
	return &engine.SkillResult{Success: true, Data: data, Sources: citations}, nil
}

// competitorIntelligence profiles the main competitors. Configured
// competitors win; otherwise similar companies are discovered from the
// website. Profiles are fetched concurrently with a bounded fan-out.
type competitorIntelligence struct {
	deps Deps
}

func (s *competitorIntelligence) Execute(ctx context.Context, task *engine.Task, exec *engine.ExecContext) (*engine.SkillResult, error) {
	cfg := exec.Config
	log := s.deps.logger().With(zap.String("skill", "competitor-intelligence"))

	competitors := cfg.Competitors
	if len(competitors) == 0 && cfg.Company.Website != "" && useProvider(cfg.DataSources.Exa, s.deps.Exa) {
		if err := recordAction(exec, "exa:find-similar"); err != nil {
			return nil, err
		}
		hits, err := s.deps.Exa.FindSimilarCompanies(ctx, cfg.Company.Website, config.MaxCompetitors)
		if err != nil {
			log.Warn("similar company discovery failed", zap.Error(err))
		} else {
			for _, hit := range hits {
				if hit.Title != "" {
					competitors = append(competitors, hit.Title)
				}
			}
		}
	}
	if len(competitors) > config.MaxCompetitors {
		competitors = competitors[:config.MaxCompetitors]
	}

	if len(competitors) == 0 {
		// Nothing discovered; ask the LLM to name and profile them.
		data, err := completeJSON(ctx, s.deps.LLM, fmt.Sprintf(
			`Identify up to %d main competitors of %s (%s industry) and
profile each briefly. Respond with ONLY a JSON object:
{"competitors": {"<name>": {"positioning": "...", "strengths": [...], "weaknesses": [...]}}}`,
			config.MaxCompetitors, cfg.Company.Name, cfg.Company.Industry), 1800)
		if err != nil {
			return &engine.SkillResult{Error: "competitor analysis failed: " + err.Error()}, nil
		}
		return &engine.SkillResult{Success: true, Data: data}, nil
	}

	profiles := make(map[string]any, len(competitors))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(competitorFanOut)
	for _, name := range competitors {
		g.Go(func() error {
			profile, err := s.profileCompetitor(gctx, exec, cfg.Company.Name, name)
			if err != nil {
				if errors.Is(err, engine.ErrLoop) || errors.Is(err, engine.ErrSkillFailure) {
					return err
				}
				log.Warn("competitor profile failed",
					zap.String("competitor", name),
					zap.Error(err))
				profile = map[string]any{"error": err.Error()}
			}
			mu.Lock()
			profiles[name] = profile
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &engine.SkillResult{
		Success: true,
		Data: map[string]any{
			"competitors": profiles,
			"count":       len(profiles),
		},
	}, nil
}

func (s *competitorIntelligence) profileCompetitor(ctx context.Context, exec *engine.ExecContext, company, competitor string) (map[string]any, error) {
	if err := recordAction(exec, "profile:"+competitor); err != nil {
		return nil, err
	}

	research := ""
	if useProvider(exec.Config.DataSources.Perplexity, s.deps.Perplexity) {
		answer, err := s.deps.Perplexity.Query(ctx, fmt.Sprintf(
			"Profile %s as a competitor of %s: positioning, strengths, weaknesses, and recent moves.",
			competitor, company), "month")
		if err == nil {
			research = answer.Answer
		}
	}
	if research == "" {
		research = "(no external research; use your own knowledge)"
	}
	if len(research) > 4000 {
		research = research[:4000]
	}

	return completeJSON(ctx, s.deps.LLM, fmt.Sprintf(
		`Summarize %s as a competitor of %s from this research:

%s

Respond with ONLY a JSON object with keys: positioning, strengths
(list), weaknesses (list), recent_moves (list).`,
		competitor, company, research), 1000)
}

// useProvider reports whether a data source is both switched on and
// configured.
func useProvider(p config.Provider, client interface{ Available() bool }) bool {
	return p.Enabled && client != nil && !isNilClient(client) && client.Available()
}

// isNilClient guards against typed-nil provider pointers.
func isNilClient(client interface{ Available() bool }) bool {
	switch c := client.(type) {
	case *providers.FirecrawlClient:
		return c == nil
	case *providers.ExaClient:
		return c == nil
	case *providers.PerplexityClient:
		return c == nil
	default:
		return false
	}
}

// recordAction feeds the executor's loop guard. A non-nil error means
// the guard tripped (repeat loop or step budget) and the skill must
// stop.
func recordAction(exec *engine.ExecContext, signature string) error {
	if exec.Guard == nil {
		return nil
	}
	return exec.Guard.Record(signature)
}
