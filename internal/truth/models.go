// Package truth implements multi-source fact verification for business
// research. Claims extracted from independent data sources are
// cross-referenced, scored for confidence, and tagged with full source
// attribution so that nothing enters the analysis without evidence.
package truth

import "time"

// SourceType classifies the provenance of a data source.
type SourceType string

const (
	SourcePrimary      SourceType = "primary"      // Company website, official docs
	SourceSecondary    SourceType = "secondary"    // News articles, research reports
	SourceTertiary     SourceType = "tertiary"     // Third-party databases, aggregators
	SourceVerification SourceType = "verification" // Fact-checking services
)

// defaultReliability holds the per-type reliability weight used when a
// source does not carry its own score.
var defaultReliability = map[SourceType]float64{
	SourcePrimary:      1.0,
	SourceSecondary:    0.8,
	SourceTertiary:     0.6,
	SourceVerification: 0.9,
}

// ReliabilityFor returns the default reliability weight for a source type.
func ReliabilityFor(t SourceType) float64 {
	if r, ok := defaultReliability[t]; ok {
		return r
	}
	return defaultReliability[SourceSecondary]
}

// ConfidenceLevel is a human-readable bucket for a confidence score.
type ConfidenceLevel string

const (
	ConfidenceVeryHigh ConfidenceLevel = "very_high" // 0.90-1.00
	ConfidenceHigh     ConfidenceLevel = "high"      // 0.75-0.89
	ConfidenceMedium   ConfidenceLevel = "medium"    // 0.50-0.74
	ConfidenceLow      ConfidenceLevel = "low"       // 0.25-0.49
	ConfidenceVeryLow  ConfidenceLevel = "very_low"  // 0.00-0.24
)

// LevelFor buckets a confidence score into a ConfidenceLevel.
func LevelFor(confidence float64) ConfidenceLevel {
	switch {
	case confidence >= 0.90:
		return ConfidenceVeryHigh
	case confidence >= 0.75:
		return ConfidenceHigh
	case confidence >= 0.50:
		return ConfidenceMedium
	case confidence >= 0.25:
		return ConfidenceLow
	default:
		return ConfidenceVeryLow
	}
}

// Source is a provenance record for a fact.
type Source struct {
	URL              string     `json:"url"`
	SourceType       SourceType `json:"source_type"`
	SourceName       string     `json:"source_name"`
	DateAccessed     time.Time  `json:"date_accessed"`
	DatePublished    *time.Time `json:"date_published,omitempty"`
	ReliabilityScore float64    `json:"reliability_score"`
}

// ConflictSeverity grades how badly sources disagree on a claim.
type ConflictSeverity string

const (
	SeverityMinor    ConflictSeverity = "minor"    // 1 conflicting value
	SeverityModerate ConflictSeverity = "moderate" // 2 conflicting values
	SeverityCritical ConflictSeverity = "critical" // 3+
)

// Conflict records disagreement between sources on a single claim.
type Conflict struct {
	Claim             string           `json:"claim"`
	ConflictingValues []any            `json:"conflicting_values"`
	Sources           []Source         `json:"sources"`
	Severity          ConflictSeverity `json:"severity"`
	Resolution        string           `json:"resolution,omitempty"`
}

// VerifiedFact is a claim reconciled across sources with a confidence
// score. A fact is never fabricated: if no source supports it, it is
// kept but marked unverified.
type VerifiedFact struct {
	Claim        string     `json:"claim"`
	Value        any        `json:"value"`
	Verified     bool       `json:"verified"`
	Confidence   float64    `json:"confidence"`
	Sources      []Source   `json:"sources"`
	Conflicts    []Conflict `json:"conflicts,omitempty"`
	Notes        string     `json:"notes,omitempty"`
	LastVerified time.Time  `json:"last_verified"`
}

// ConfidenceLevel returns the human-readable bucket for this fact.
func (f *VerifiedFact) ConfidenceLevel() ConfidenceLevel {
	return LevelFor(f.Confidence)
}

// HasConflicts reports whether any source disagreed on this fact.
func (f *VerifiedFact) HasConflicts() bool {
	return len(f.Conflicts) > 0
}

// PrimarySources returns only the primary sources attached to the fact.
func (f *VerifiedFact) PrimarySources() []Source {
	var primary []Source
	for _, s := range f.Sources {
		if s.SourceType == SourcePrimary {
			primary = append(primary, s)
		}
	}
	return primary
}

// VerifiedDataset is a collection of verified facts about one entity.
type VerifiedDataset struct {
	EntityName        string         `json:"entity_name"`
	EntityType        string         `json:"entity_type"`
	Facts             []VerifiedFact `json:"facts"`
	OverallConfidence float64        `json:"overall_confidence"`
	TotalSources      int            `json:"total_sources"`
	VerifiedCount     int            `json:"verified_count"`
	UnverifiedCount   int            `json:"unverified_count"`
	ConflictCount     int            `json:"conflict_count"`
	CreatedAt         time.Time      `json:"created_at"`
}

// NewDataset builds a dataset from facts, deriving the aggregate
// statistics: overall confidence is the mean over verified facts (0 if
// none), total sources counts unique (url, name) pairs.
func NewDataset(entityName, entityType string, facts []VerifiedFact) VerifiedDataset {
	var verified, conflicted int
	var confidenceSum float64
	for i := range facts {
		if facts[i].Verified {
			verified++
			confidenceSum += facts[i].Confidence
		}
		if facts[i].HasConflicts() {
			conflicted++
		}
	}

	overall := 0.0
	if verified > 0 {
		overall = confidenceSum / float64(verified)
	}

	type sourceKey struct{ url, name string }
	unique := make(map[sourceKey]struct{})
	for i := range facts {
		for _, s := range facts[i].Sources {
			unique[sourceKey{s.URL, s.SourceName}] = struct{}{}
		}
	}

	return VerifiedDataset{
		EntityName:        entityName,
		EntityType:        entityType,
		Facts:             facts,
		OverallConfidence: overall,
		TotalSources:      len(unique),
		VerifiedCount:     verified,
		UnverifiedCount:   len(facts) - verified,
		ConflictCount:     conflicted,
		CreatedAt:         time.Now(),
	}
}
