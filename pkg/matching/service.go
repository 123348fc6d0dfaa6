// Package matching implements the entity screening pipeline:
// normalize -> cache check -> retrieve -> classify/score -> assess.
// Retrieval is the only I/O suspension point; everything downstream of it is
// pure CPU work.
package matching

import (
	"context"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/stem/pkg/tracing"
	"github.com/go-playground/validator/v10"

	"github.com/Ramsey-B/fern/pkg/cache"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/normalize"
)

// AlgorithmVersion is reported in response metadata so callers can tell which
// scoring revision produced a result.
const AlgorithmVersion = "1.3.0"

// Pipeline is the single-query matching capability. The affiliated booster
// consumes it as an injected dependency so it can be tested against an
// in-memory fake with no store behind it.
type Pipeline interface {
	Match(ctx context.Context, query models.MatchQuery) ([]models.DatasetMatch, error)
}

// Service runs the full screening pipeline for one query at a time.
type Service struct {
	logger    ectologger.Logger
	validate  *validator.Validate
	retriever *Retriever
	scorer    *Scorer
	classify  *Classifier
	assessor  *QualityAssessor
	cache     *cache.MatchCache
	booster   *AffiliatedBooster
}

// NewService creates a new matching service. The cache is shared with any
// batch coordinator wrapping this service.
func NewService(
	logger ectologger.Logger,
	retriever *Retriever,
	matchCache *cache.MatchCache,
) *Service {
	scorer := NewScorer()
	s := &Service{
		logger:    logger,
		validate:  validator.New(),
		retriever: retriever,
		scorer:    scorer,
		classify:  NewClassifier(scorer),
		assessor:  NewQualityAssessor(),
		cache:     matchCache,
	}
	s.booster = NewAffiliatedBooster(s, logger)
	return s
}

// Match implements Pipeline: it returns the ranked direct matches for one
// query. Only a structurally invalid query (missing entity) returns an error.
func (s *Service) Match(ctx context.Context, query models.MatchQuery) ([]models.DatasetMatch, error) {
	matches, _, _, err := s.match(ctx, query)
	return matches, err
}

// Screen runs the full pipeline including affiliated companies and assembles
// the complete response. Store failures and empty result sets still report
// success; success=false is reserved for structural failures.
func (s *Service) Screen(ctx context.Context, query models.MatchQuery) *models.MatchResponse {
	ctx, span := tracing.StartSpan(ctx, "matching.Service.Screen")
	defer span.End()

	start := time.Now()

	direct, cacheHit, degraded, err := s.match(ctx, query)
	if err != nil {
		metrics.RecordQuery("invalid", time.Since(start).Seconds())
		return &models.MatchResponse{
			Success: false,
			Entity:  query.Entity,
			Error:   err.Error(),
			Metadata: models.MatchMetadata{
				ProcessingTimeMS: time.Since(start).Milliseconds(),
				AlgorithmVersion: AlgorithmVersion,
			},
		}
	}

	affiliated, affStats := s.booster.Boost(ctx, query)

	for _, m := range direct {
		metrics.RecordMatch(string(m.MatchType), string(m.RelationshipSource))
	}
	metrics.RecordQuery("ok", time.Since(start).Seconds())

	return &models.MatchResponse{
		Success:           true,
		Entity:            query.Entity,
		DirectMatches:     direct,
		AffiliatedMatches: affiliated,
		MatchSummary:      buildSummary(direct, affiliated, affStats),
		Metadata: models.MatchMetadata{
			ProcessingTimeMS: time.Since(start).Milliseconds(),
			AlgorithmVersion: AlgorithmVersion,
			CacheHit:         cacheHit,
			Degraded:         degraded,
		},
	}
}

// match is the single-query pipeline core.
func (s *Service) match(ctx context.Context, query models.MatchQuery) (matches []models.DatasetMatch, cacheHit, degraded bool, err error) {
	ctx, span := tracing.StartSpan(ctx, "matching.Service.match")
	defer span.End()

	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"method": "match",
		"entity": query.Entity,
	})

	if verr := s.validateQuery(query); verr != nil {
		log.WithError(verr).Warn("Rejected structurally invalid query")
		return nil, false, false, verr
	}

	query.Options = query.Options.Clamped()

	variants := normalize.QueryVariants(query.Entity, query.Aliases)
	if len(variants) == 0 {
		// Non-empty input that normalizes to nothing finds nothing; this is
		// a valid empty result, not a structural failure.
		return []models.DatasetMatch{}, false, false, nil
	}

	key := cache.Key(query)
	if !query.Options.ForceRefresh {
		if cached, ok := s.cache.Get(key); ok {
			metrics.RecordCacheLookup(true)
			log.Debug("Cache hit")
			return cached, true, false, nil
		}
		metrics.RecordCacheLookup(false)
	}

	candidates, degraded := s.retriever.Retrieve(ctx, variants)

	scored := make([]models.DatasetMatch, 0, len(candidates))
	for _, cand := range candidates {
		cls, ok := s.classify.Classify(query.Entity, variants, cand)
		if !ok {
			continue
		}
		scored = append(scored, models.DatasetMatch{
			DatasetID:          cand.Entity.DatasetID,
			DatasetName:        cand.Entity.DatasetName,
			OrganizationName:   cand.Entity.OrganizationName,
			MatchType:          cls.MatchType,
			ConfidenceScore:    cls.Confidence,
			Coverage:           cls.Coverage,
			MatchedVariant:     cls.Variant,
			MatchedAlias:       cls.MatchedAlias,
			Category:           cand.Entity.Category,
			Countries:          cand.Entity.Countries,
			RelationshipSource: models.RelationshipSourceDirect,
		})
	}

	matches = s.assessor.Assess(scored, query.Options)

	// A degraded result is not cached; it would pin an empty answer for a
	// full TTL after a transient store outage.
	if !degraded {
		s.cache.Set(key, matches)
	}

	log.WithFields(map[string]any{
		"candidate_count": len(candidates),
		"match_count":     len(matches),
		"degraded":        degraded,
	}).Debug("Completed match")

	return matches, false, degraded, nil
}

// validateQuery enforces the structural contract: entity present, 1..300
// chars. Everything else is clamped, not rejected.
func (s *Service) validateQuery(query models.MatchQuery) error {
	if strings.TrimSpace(query.Entity) == "" {
		return &InputValidationError{Field: "entity", Reason: "is required"}
	}
	if err := s.validate.Struct(query); err != nil {
		return &InputValidationError{Field: "entity", Reason: "must be 1-300 characters"}
	}
	return nil
}

// buildSummary aggregates direct and affiliated results for the response.
func buildSummary(direct []models.DatasetMatch, affiliated map[string][]models.DatasetMatch, affStats AffiliatedStats) models.MatchSummary {
	highConfidence := 0
	var confidenceSum float64
	total := 0

	count := func(matches []models.DatasetMatch) {
		for _, m := range matches {
			total++
			confidenceSum += m.ConfidenceScore
			if m.ConfidenceScore >= HighConfidenceThreshold {
				highConfidence++
			}
		}
	}

	count(direct)
	for _, matches := range affiliated {
		count(matches)
	}

	avg := 0.0
	if total > 0 {
		avg = confidenceSum / float64(total)
	}

	return models.MatchSummary{
		TotalDirectMatches:        len(direct),
		TotalAffiliatedEntities:   affStats.Considered,
		MatchedAffiliatedEntities: affStats.Matched,
		TotalAffiliatedMatches:    affStats.TotalMatches,
		HighConfidenceMatches:     highConfidence,
		AverageConfidence:         avg,
	}
}
