package matching

import (
	"context"
	"math"
	"sync"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/stem/pkg/tracing"

	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
)

const (
	// HighConfidenceThreshold marks matches counted as high confidence in
	// summaries and affiliated stats.
	HighConfidenceThreshold = 0.8

	// affiliatedConcurrency bounds the fan-out over affiliated companies so a
	// single query cannot overwhelm the backing store.
	affiliatedConcurrency = 5
)

// AffiliatedStats aggregates outcomes across a query's affiliated companies.
type AffiliatedStats struct {
	Considered     int     `json:"considered"`
	Matched        int     `json:"matched"`
	TotalMatches   int     `json:"total_matches"`
	HighConfidence int     `json:"high_confidence"`
	MeanConfidence float64 `json:"mean_confidence"`
}

// AffiliatedBooster matches each affiliated company independently through the
// injected pipeline and reweights the resulting confidence.
type AffiliatedBooster struct {
	pipeline Pipeline
	logger   ectologger.Logger
}

// NewAffiliatedBooster creates a new AffiliatedBooster.
func NewAffiliatedBooster(pipeline Pipeline, logger ectologger.Logger) *AffiliatedBooster {
	return &AffiliatedBooster{
		pipeline: pipeline,
		logger:   logger,
	}
}

// Boost runs the pipeline for every affiliated company with bounded
// parallelism and applies the multiplicative confidence boost, capped at 1.0.
// A failure on one affiliated company is logged and counted as unmatched; it
// never affects its siblings.
func (b *AffiliatedBooster) Boost(ctx context.Context, query models.MatchQuery) (map[string][]models.DatasetMatch, AffiliatedStats) {
	ctx, span := tracing.StartSpan(ctx, "matching.AffiliatedBooster.Boost")
	defer span.End()

	companies := query.AffiliatedCompanies
	stats := AffiliatedStats{Considered: len(companies)}
	if len(companies) == 0 {
		return nil, stats
	}

	opts := query.Options.Clamped()
	boost := opts.AffiliatedBoost

	type indexedMatches struct {
		index   int
		matches []models.DatasetMatch
	}

	concurrency := affiliatedConcurrency
	if concurrency > len(companies) {
		concurrency = len(companies)
	}

	itemChan := make(chan int, len(companies))
	resultChan := make(chan indexedMatches, len(companies))

	var wg sync.WaitGroup
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range itemChan {
				resultChan <- indexedMatches{index: i, matches: b.matchCompany(ctx, companies[i], opts, boost)}
			}
		}()
	}

	for i := range companies {
		itemChan <- i
	}
	close(itemChan)

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	byIndex := make([][]models.DatasetMatch, len(companies))
	for res := range resultChan {
		byIndex[res.index] = res.matches
	}

	results := make(map[string][]models.DatasetMatch, len(companies))
	var confidenceSum float64

	for i, company := range companies {
		matches := byIndex[i]
		if len(matches) == 0 {
			continue
		}
		stats.Matched++
		stats.TotalMatches += len(matches)
		for _, m := range matches {
			confidenceSum += m.ConfidenceScore
			if m.ConfidenceScore >= HighConfidenceThreshold {
				stats.HighConfidence++
			}
			metrics.RecordMatch(string(m.MatchType), string(m.RelationshipSource))
		}
		results[company.CompanyName] = matches
	}

	if stats.TotalMatches > 0 {
		stats.MeanConfidence = confidenceSum / float64(stats.TotalMatches)
	}

	return results, stats
}

// matchCompany runs one affiliated company through the pipeline and boosts
// its matches.
func (b *AffiliatedBooster) matchCompany(ctx context.Context, company models.AffiliatedCompany, opts models.MatchOptions, boost float64) []models.DatasetMatch {
	log := b.logger.WithContext(ctx).WithFields(map[string]any{
		"method":             "matchCompany",
		"affiliated_company": company.CompanyName,
	})

	subQuery := models.MatchQuery{
		Entity:  company.CompanyName,
		Options: opts,
	}

	matches, err := b.pipeline.Match(ctx, subQuery)
	if err != nil {
		log.WithError(err).Warn("Affiliated company match failed; skipping")
		return nil
	}

	riskKeyword := ""
	if company.RiskKeyword != nil {
		riskKeyword = *company.RiskKeyword
	}

	boosted := make([]models.DatasetMatch, 0, len(matches))
	for _, m := range matches {
		before := m.ConfidenceScore
		m.ConfidenceScore = math.Min(1.0, before*boost)
		m.RelationshipSource = models.RelationshipSourceAffiliated
		m.SourceRiskKeyword = riskKeyword
		m.BoostApplied = m.ConfidenceScore != before
		if m.BoostApplied {
			metrics.AffiliatedBoostsTotal.Inc()
		}
		boosted = append(boosted, m)
	}

	return boosted
}
