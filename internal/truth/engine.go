package truth

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Mode selects the verification predicate.
type Mode string

const (
	// ModePermissive accepts a fact with any supporting source and
	// confidence >= 0.2; conflicts are recorded but do not disqualify.
	// The research phase is user-editable, so transparency beats
	// strictness here.
	ModePermissive Mode = "permissive"

	// ModeStrict requires confidence >= 0.5 and zero conflicts.
	ModeStrict Mode = "strict"
)

const (
	permissiveMinConfidence = 0.2
	strictMinConfidence     = 0.5

	permissiveConflictPenalty = 0.02
	strictConflictPenalty     = 0.10

	primaryBonus     = 1.10 // any primary source supports
	multiSourceBonus = 1.05 // three or more supporting sources
)

// Config configures an Engine.
type Config struct {
	Mode          Mode
	MinConfidence float64 // 0 = mode default
}

// Engine cross-references claims against multiple sources. It is pure
// apart from its configuration and safe for concurrent use.
type Engine struct {
	mode          Mode
	minConfidence float64
	logger        *zap.Logger
}

// NewEngine creates a truth engine. A zero Config yields permissive
// mode with the 0.2 default threshold.
func NewEngine(cfg Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	mode := cfg.Mode
	if mode == "" {
		mode = ModePermissive
	}
	minConfidence := cfg.MinConfidence
	if minConfidence == 0 {
		if mode == ModeStrict {
			minConfidence = strictMinConfidence
		} else {
			minConfidence = permissiveMinConfidence
		}
	}
	return &Engine{mode: mode, minConfidence: minConfidence, logger: logger}
}

// SourceData is one source's contribution to verification: provenance
// fields plus the claim->value map extracted from that source.
type SourceData struct {
	URL              string
	SourceName       string
	SourceType       SourceType
	ReliabilityScore float64 // 0 = default for the type
	DatePublished    *time.Time
	Data             map[string]any
}

// Source converts the raw source record into an attributed Source.
func (sd *SourceData) Source() Source {
	reliability := sd.ReliabilityScore
	if reliability == 0 {
		reliability = ReliabilityFor(sd.sourceType())
	}
	url := sd.URL
	if url == "" {
		url = "unknown"
	}
	name := sd.SourceName
	if name == "" {
		name = "Unknown Source"
	}
	return Source{
		URL:              url,
		SourceType:       sd.sourceType(),
		SourceName:       name,
		DateAccessed:     time.Now(),
		DatePublished:    sd.DatePublished,
		ReliabilityScore: reliability,
	}
}

func (sd *SourceData) sourceType() SourceType {
	switch sd.SourceType {
	case SourcePrimary, SourceSecondary, SourceTertiary, SourceVerification:
		return sd.SourceType
	default:
		return SourceSecondary
	}
}

// VerifyClaim verifies a single claim across the given sources and
// returns the fact with confidence and attribution.
func (e *Engine) VerifyClaim(claim string, value any, sourcesData []SourceData) VerifiedFact {
	e.logger.Debug("verifying claim", zap.String("claim", claim))

	var allSources, supporting []Source
	type conflictEntry struct {
		value  any
		source Source
	}
	var conflicting []conflictEntry

	for i := range sourcesData {
		sd := &sourcesData[i]
		source := sd.Source()
		allSources = append(allSources, source)

		if e.sourceSupports(sd, claim, value) {
			supporting = append(supporting, source)
			continue
		}
		if alt, ok := e.extractValue(sd, claim); ok && !ValuesMatch(alt, value) {
			conflicting = append(conflicting, conflictEntry{value: alt, source: source})
		}
	}

	confidence := e.confidence(supporting, len(allSources), len(conflicting))

	var conflicts []Conflict
	if len(conflicting) > 0 {
		values := []any{value}
		var conflictSources []Source
		for _, ce := range conflicting {
			values = append(values, ce.value)
			conflictSources = append(conflictSources, ce.source)
		}
		conflicts = append(conflicts, Conflict{
			Claim:             claim,
			ConflictingValues: values,
			Sources:           conflictSources,
			Severity:          severityFor(len(conflicting)),
		})
	}

	verified := len(supporting) > 0 && confidence >= e.minConfidence
	if e.mode == ModeStrict && len(conflicts) > 0 {
		verified = false
	}

	sources := supporting
	if len(sources) == 0 {
		sources = allSources
	}

	return VerifiedFact{
		Claim:        claim,
		Value:        value,
		Verified:     verified,
		Confidence:   confidence,
		Sources:      sources,
		Conflicts:    conflicts,
		Notes:        verificationNotes(supporting, len(conflicting)),
		LastVerified: time.Now(),
	}
}

// CrossReference merges claims from multiple source datasets and
// verifies each one, producing a dataset for the entity.
func (e *Engine) CrossReference(datasets []SourceData, entityName, entityType string) VerifiedDataset {
	e.logger.Info("cross-referencing sources",
		zap.String("entity", entityName),
		zap.Int("datasets", len(datasets)))

	claims := e.extractClaims(datasets)

	facts := make([]VerifiedFact, 0, len(claims.order))
	for _, key := range claims.order {
		info := claims.byKey[key]
		facts = append(facts, e.VerifyClaim(info.claim, info.value, info.sources))
	}

	dataset := NewDataset(entityName, entityType, facts)

	e.logger.Info("verification complete",
		zap.String("entity", entityName),
		zap.Int("verified", dataset.VerifiedCount),
		zap.Int("unverified", dataset.UnverifiedCount),
		zap.Int("conflicts", dataset.ConflictCount))

	return dataset
}

// sourceSupports reports whether the source's data map contains the
// claim (exact or fuzzy key) with an agreeing value.
func (e *Engine) sourceSupports(sd *SourceData, claim string, value any) bool {
	claimKey := NormalizeKey(claim)

	if sourceValue, ok := sd.Data[claimKey]; ok {
		return ValuesMatch(value, sourceValue)
	}
	for key, val := range sd.Data {
		if keysSimilar(claimKey, NormalizeKey(key)) && ValuesMatch(value, val) {
			return true
		}
	}
	return false
}

// extractValue pulls whatever value the source holds for the claim,
// agreeing or not. Empty values do not count as a competing claim: a
// source that holds "" or an empty list for a key simply has nothing
// to say about it.
func (e *Engine) extractValue(sd *SourceData, claim string) (any, bool) {
	claimKey := NormalizeKey(claim)

	if v, ok := sd.Data[claimKey]; ok {
		return v, substantive(v)
	}
	for key, val := range sd.Data {
		if keysSimilar(claimKey, NormalizeKey(key)) {
			return val, substantive(val)
		}
	}
	return nil, false
}

// substantive reports whether a value carries actual content: nil,
// empty strings, zero numbers, false, and empty collections do not.
func substantive(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return x != ""
	case bool:
		return x
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	}
	if f, ok := asFloat(v); ok {
		return f != 0
	}
	return true
}

// confidence scores agreement: support ratio, weighted by mean source
// reliability, boosted for primary and 3+ source support, docked per
// conflict, clamped to [0,1].
func (e *Engine) confidence(supporting []Source, totalSources, conflictCount int) float64 {
	if len(supporting) == 0 {
		return 0.0
	}

	total := totalSources
	if total < 1 {
		total = 1
	}
	confidence := float64(len(supporting)) / float64(total)

	var reliabilitySum float64
	hasPrimary := false
	for _, s := range supporting {
		reliabilitySum += s.ReliabilityScore
		if s.SourceType == SourcePrimary {
			hasPrimary = true
		}
	}
	confidence *= reliabilitySum / float64(len(supporting))

	if hasPrimary {
		confidence *= primaryBonus
	}

	if conflictCount > 0 {
		penalty := permissiveConflictPenalty
		if e.mode == ModeStrict {
			penalty = strictConflictPenalty
		}
		confidence -= float64(conflictCount) * penalty
	}

	if len(supporting) >= 3 {
		confidence *= multiSourceBonus
	}

	if confidence < 0 {
		return 0.0
	}
	if confidence > 1 {
		return 1.0
	}
	return confidence
}

// claimSet preserves first-seen order so CrossReference output is
// deterministic across runs.
type claimSet struct {
	order []string
	byKey map[string]*claimInfo
}

type claimInfo struct {
	claim   string
	value   any
	sources []SourceData
}

// extractClaims unions top-level claims across datasets, merging
// values so real data wins over placeholders.
func (e *Engine) extractClaims(datasets []SourceData) claimSet {
	claims := claimSet{byKey: make(map[string]*claimInfo)}

	for i := range datasets {
		ds := &datasets[i]
		for _, key := range sortedKeys(ds.Data) {
			value := ds.Data[key]
			claimKey := NormalizeKey(key)

			info, ok := claims.byKey[claimKey]
			if !ok {
				info = &claimInfo{claim: key, value: value}
				claims.byKey[claimKey] = info
				claims.order = append(claims.order, claimKey)
			} else {
				info.value = BetterValue(value, info.value)
			}
			info.sources = append(info.sources, *ds)
		}
	}
	return claims
}

func severityFor(conflictCount int) ConflictSeverity {
	switch conflictCount {
	case 1:
		return SeverityMinor
	case 2:
		return SeverityModerate
	default:
		return SeverityCritical
	}
}

func verificationNotes(supporting []Source, conflictCount int) string {
	var notes []string

	if len(supporting) == 0 {
		notes = append(notes, "No sources found supporting this claim.")
	}
	if len(supporting) == 1 {
		notes = append(notes, "Verified by single source only - confidence limited.")
	}
	if conflictCount > 0 {
		notes = append(notes, fmt.Sprintf("Found %d conflicting value(s) in other sources.", conflictCount))
	}
	primaryCount := 0
	for _, s := range supporting {
		if s.SourceType == SourcePrimary {
			primaryCount++
		}
	}
	if primaryCount > 0 {
		notes = append(notes, fmt.Sprintf("Confirmed by %d primary source(s).", primaryCount))
	}

	return strings.Join(notes, " ")
}

// sortedKeys gives a stable iteration order over a data map.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
