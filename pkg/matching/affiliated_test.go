package matching

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
)

// fakePipeline maps entity names to canned matches.
type fakePipeline struct {
	mu      sync.Mutex
	results map[string][]models.DatasetMatch
	errs    map[string]error
	calls   int
}

func (f *fakePipeline) Match(ctx context.Context, query models.MatchQuery) ([]models.DatasetMatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.errs[query.Entity]; err != nil {
		return nil, err
	}
	return f.results[query.Entity], nil
}

func directMatch(name string, confidence float64) models.DatasetMatch {
	return models.DatasetMatch{
		OrganizationName:   name,
		MatchType:          models.MatchTypeFuzzy,
		ConfidenceScore:    confidence,
		Coverage:           0.9,
		RelationshipSource: models.RelationshipSourceDirect,
	}
}

func affiliatedQuery(opts models.MatchOptions, companies ...models.AffiliatedCompany) models.MatchQuery {
	return models.MatchQuery{
		Entity:              "Primary Holdings",
		Options:             opts,
		AffiliatedCompanies: companies,
	}
}

func TestBoostAppliesMultiplier(t *testing.T) {
	pipeline := &fakePipeline{
		results: map[string][]models.DatasetMatch{
			"Zenith Defense": {directMatch("Zenith Defense Systems", 0.8)},
		},
	}
	b := NewAffiliatedBooster(pipeline, noopLogger())

	keyword := "defense"
	results, stats := b.Boost(context.Background(), affiliatedQuery(models.MatchOptions{},
		models.AffiliatedCompany{CompanyName: "Zenith Defense", RiskKeyword: &keyword},
	))

	require.Contains(t, results, "Zenith Defense")
	m := results["Zenith Defense"][0]
	assert.InDelta(t, 0.8*models.DefaultAffiliatedBoost, m.ConfidenceScore, 0.0001)
	assert.True(t, m.BoostApplied)
	assert.Equal(t, models.RelationshipSourceAffiliated, m.RelationshipSource)
	assert.Equal(t, "defense", m.SourceRiskKeyword)

	assert.Equal(t, 1, stats.Considered)
	assert.Equal(t, 1, stats.Matched)
	assert.Equal(t, 1, stats.TotalMatches)
}

func TestBoostCapsAtOne(t *testing.T) {
	pipeline := &fakePipeline{
		results: map[string][]models.DatasetMatch{
			"Zenith Defense": {directMatch("Zenith Defense Systems", 0.95)},
		},
	}
	b := NewAffiliatedBooster(pipeline, noopLogger())

	results, _ := b.Boost(context.Background(), affiliatedQuery(models.MatchOptions{},
		models.AffiliatedCompany{CompanyName: "Zenith Defense"},
	))

	m := results["Zenith Defense"][0]
	assert.Equal(t, 1.0, m.ConfidenceScore)
	assert.True(t, m.BoostApplied)
}

func TestBoostFactorOfOneChangesNothing(t *testing.T) {
	pipeline := &fakePipeline{
		results: map[string][]models.DatasetMatch{
			"Zenith Defense": {directMatch("Zenith Defense Systems", 0.7)},
		},
	}
	b := NewAffiliatedBooster(pipeline, noopLogger())

	results, _ := b.Boost(context.Background(), affiliatedQuery(models.MatchOptions{AffiliatedBoost: 1.0},
		models.AffiliatedCompany{CompanyName: "Zenith Defense"},
	))

	m := results["Zenith Defense"][0]
	assert.Equal(t, 0.7, m.ConfidenceScore)
	assert.False(t, m.BoostApplied)
	// The relationship is still re-attributed even when no boost applied.
	assert.Equal(t, models.RelationshipSourceAffiliated, m.RelationshipSource)
}

func TestBoostIsolatesFailures(t *testing.T) {
	pipeline := &fakePipeline{
		results: map[string][]models.DatasetMatch{
			"Zenith Defense": {directMatch("Zenith Defense Systems", 0.8)},
		},
		errs: map[string]error{
			"Broken Subsidiary": errors.New("store exploded"),
		},
	}
	b := NewAffiliatedBooster(pipeline, noopLogger())

	results, stats := b.Boost(context.Background(), affiliatedQuery(models.MatchOptions{},
		models.AffiliatedCompany{CompanyName: "Broken Subsidiary"},
		models.AffiliatedCompany{CompanyName: "Zenith Defense"},
	))

	assert.NotContains(t, results, "Broken Subsidiary")
	assert.Contains(t, results, "Zenith Defense")
	assert.Equal(t, 2, stats.Considered)
	assert.Equal(t, 1, stats.Matched)
}

func TestBoostStats(t *testing.T) {
	pipeline := &fakePipeline{
		results: map[string][]models.DatasetMatch{
			"Alpha": {directMatch("Alpha Corp", 0.9), directMatch("Alpha Group", 0.5)},
			"Bravo": {directMatch("Bravo Ltd", 0.8)},
		},
	}
	b := NewAffiliatedBooster(pipeline, noopLogger())

	_, stats := b.Boost(context.Background(), affiliatedQuery(models.MatchOptions{},
		models.AffiliatedCompany{CompanyName: "Alpha"},
		models.AffiliatedCompany{CompanyName: "Bravo"},
		models.AffiliatedCompany{CompanyName: "Charlie"},
	))

	assert.Equal(t, 3, stats.Considered)
	assert.Equal(t, 2, stats.Matched)
	assert.Equal(t, 3, stats.TotalMatches)
	// Boosted: 0.9*1.15 capped at 1.0, 0.5*1.15=0.575, 0.8*1.15=0.92.
	assert.Equal(t, 2, stats.HighConfidence)
	assert.InDelta(t, (1.0+0.575+0.92)/3.0, stats.MeanConfidence, 0.0001)
}

func TestBoostNoCompanies(t *testing.T) {
	pipeline := &fakePipeline{}
	b := NewAffiliatedBooster(pipeline, noopLogger())

	results, stats := b.Boost(context.Background(), affiliatedQuery(models.MatchOptions{}))
	assert.Nil(t, results)
	assert.Equal(t, AffiliatedStats{}, stats)
	assert.Zero(t, pipeline.calls)
}
