package truth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func secondarySource(name string, data map[string]any) SourceData {
	return SourceData{
		URL:        "https://" + name + ".example.com",
		SourceName: name,
		SourceType: SourceSecondary,
		Data:       data,
	}
}

func TestVerifyClaimThreeAgreeingSources(t *testing.T) {
	engine := NewEngine(Config{}, nil)

	sources := []SourceData{
		secondarySource("newswire", map[string]any{"revenue": "$100M"}),
		secondarySource("analyst", map[string]any{"revenue": "$100M"}),
		secondarySource("registry", map[string]any{"revenue": "$100M"}),
	}

	fact := engine.VerifyClaim("revenue", "$100M", sources)

	// (3/3) * 0.8 reliability * 1.05 multi-source bonus
	assert.InDelta(t, 0.840, fact.Confidence, 1e-9)
	assert.True(t, fact.Verified)
	assert.Equal(t, ConfidenceHigh, fact.ConfidenceLevel())
	assert.Len(t, fact.Sources, 3)
	assert.Empty(t, fact.Conflicts)
}

func TestVerifyClaimPrimaryBonus(t *testing.T) {
	engine := NewEngine(Config{}, nil)

	sources := []SourceData{
		{
			URL:        "https://acme.test",
			SourceName: "acme.test",
			SourceType: SourcePrimary,
			Data:       map[string]any{"founded": "2015"},
		},
	}

	fact := engine.VerifyClaim("founded", "2015", sources)

	// (1/1) * 1.0 reliability * 1.10 primary bonus, clamped to 1.0
	assert.Equal(t, 1.0, fact.Confidence)
	assert.True(t, fact.Verified)
	assert.Equal(t, ConfidenceVeryHigh, fact.ConfidenceLevel())
}

func TestVerifyClaimConflictRecorded(t *testing.T) {
	engine := NewEngine(Config{}, nil)

	sources := []SourceData{
		secondarySource("agree", map[string]any{"headquarters": "Austin, TX"}),
		secondarySource("disagree", map[string]any{"headquarters": "Remote-first"}),
	}

	fact := engine.VerifyClaim("headquarters", "Austin, TX", sources)

	require.Len(t, fact.Conflicts, 1)
	conflict := fact.Conflicts[0]
	assert.Equal(t, SeverityMinor, conflict.Severity)
	assert.Contains(t, conflict.ConflictingValues, "Austin, TX")
	assert.Contains(t, conflict.ConflictingValues, "Remote-first")

	// Permissive: one supporting source plus conflict penalty still verifies.
	// (1/2) * 0.8 - 0.02 = 0.38
	assert.InDelta(t, 0.38, fact.Confidence, 1e-9)
	assert.True(t, fact.Verified)
}

func TestVerifyClaimEmptyAlternateIsNotAConflict(t *testing.T) {
	engine := NewEngine(Config{}, nil)

	cases := []struct {
		name string
		alt  any
	}{
		{name: "empty string", alt: ""},
		{name: "zero", alt: float64(0)},
		{name: "empty list", alt: []any{}},
		{name: "nil", alt: nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sources := []SourceData{
				secondarySource("agree", map[string]any{"headquarters": "Austin, TX"}),
				secondarySource("sparse", map[string]any{"headquarters": tc.alt}),
			}

			fact := engine.VerifyClaim("headquarters", "Austin, TX", sources)

			// A source with nothing to say about the key neither
			// supports nor disputes it.
			assert.Empty(t, fact.Conflicts)
			assert.InDelta(t, 0.40, fact.Confidence, 1e-9)
			assert.True(t, fact.Verified)
		})
	}
}

func TestVerifyClaimStrictModeConflictDisqualifies(t *testing.T) {
	engine := NewEngine(Config{Mode: ModeStrict}, nil)

	sources := []SourceData{
		secondarySource("agree", map[string]any{"employees": "500"}),
		secondarySource("disagree", map[string]any{"employees": "5000"}),
	}

	fact := engine.VerifyClaim("employees", "500", sources)

	assert.False(t, fact.Verified)
	require.Len(t, fact.Conflicts, 1)
}

func TestVerifyClaimNoSupport(t *testing.T) {
	engine := NewEngine(Config{}, nil)

	sources := []SourceData{
		secondarySource("unrelated", map[string]any{"ceo": "J. Smith"}),
	}

	fact := engine.VerifyClaim("annual revenue", "$50M", sources)

	assert.False(t, fact.Verified)
	assert.Equal(t, 0.0, fact.Confidence)
	// When nothing supports, all consulted sources stay attributed.
	assert.Len(t, fact.Sources, 1)
	assert.Contains(t, fact.Notes, "No sources found")
}

func TestVerifyClaimFuzzyKeyMatch(t *testing.T) {
	engine := NewEngine(Config{}, nil)

	// "annual revenues" normalizes close enough to "annual revenue".
	sources := []SourceData{
		secondarySource("report", map[string]any{"Annual Revenues": "$100M"}),
	}

	fact := engine.VerifyClaim("Annual Revenue", "$100M", sources)
	assert.True(t, fact.Verified)
}

func TestVerifiedPredicateAlwaysHasSupport(t *testing.T) {
	engine := NewEngine(Config{}, nil)

	cases := [][]SourceData{
		nil,
		{secondarySource("a", nil)},
		{secondarySource("a", map[string]any{"x": "y"})},
		{
			secondarySource("a", map[string]any{"metric": "10"}),
			secondarySource("b", map[string]any{"metric": "12"}),
		},
	}
	for _, sources := range cases {
		fact := engine.VerifyClaim("metric", "10", sources)
		if fact.Verified {
			assert.GreaterOrEqual(t, fact.Confidence, permissiveMinConfidence)
			assert.NotEmpty(t, fact.Sources)
		}
	}
}

func TestCrossReferenceMergesAndCounts(t *testing.T) {
	engine := NewEngine(Config{}, nil)

	datasets := []SourceData{
		secondarySource("sparse", map[string]any{
			"industry": "Unknown",
			"revenue":  "$100M",
		}),
		secondarySource("rich", map[string]any{
			"industry": "SaaS",
			"revenue":  "$100M",
		}),
	}

	dataset := engine.CrossReference(datasets, "Acme", "company")

	assert.Equal(t, "Acme", dataset.EntityName)
	assert.Equal(t, "company", dataset.EntityType)
	require.Len(t, dataset.Facts, 2)

	byClaim := make(map[string]VerifiedFact)
	for _, f := range dataset.Facts {
		byClaim[NormalizeKey(f.Claim)] = f
	}

	// Merge prefers the real value over "Unknown".
	assert.Equal(t, "SaaS", byClaim["industry"].Value)
	assert.Equal(t, "$100M", byClaim["revenue"].Value)

	// Two unique (url, name) pairs across all facts.
	assert.Equal(t, 2, dataset.TotalSources)
	assert.Equal(t, dataset.VerifiedCount+dataset.UnverifiedCount, len(dataset.Facts))
}

func TestDatasetOverallConfidenceIsMeanOfVerified(t *testing.T) {
	facts := []VerifiedFact{
		{Claim: "a", Verified: true, Confidence: 0.8},
		{Claim: "b", Verified: true, Confidence: 0.6},
		{Claim: "c", Verified: false, Confidence: 0.1},
	}
	dataset := NewDataset("Acme", "company", facts)
	assert.InDelta(t, 0.7, dataset.OverallConfidence, 1e-9)

	empty := NewDataset("Acme", "company", nil)
	assert.Equal(t, 0.0, empty.OverallConfidence)
}
