package matching

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/stem/pkg/tracing"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/normalize"
)

// Store is the read-only reference store consumed by the retriever. All
// lookups are scoped to active datasets by the implementation; the alias
// lookup must execute as an indexed set-membership predicate at the store, a
// client-side scan over all entries does not scale.
type Store interface {
	// FindByNames returns entities whose normalized name equals any variant.
	FindByNames(ctx context.Context, variants []string) ([]models.ReferenceEntity, error)
	// FindByAliases returns entities whose normalized alias set contains any variant.
	FindByAliases(ctx context.Context, variants []string) ([]models.ReferenceEntity, error)
	// CandidateWindow returns a bounded window of near candidates for a
	// variant via a cheap similarity index, for downstream fuzzy scoring.
	CandidateWindow(ctx context.Context, variant string, limit int) ([]models.ReferenceEntity, error)
}

// RetrieverConfig bounds the retriever's store usage.
type RetrieverConfig struct {
	Timeout    time.Duration // Per-query store time limit (default: 3s)
	WindowSize int           // Candidate window per variant (default: 50)
}

// DefaultRetrieverConfig returns sensible defaults.
func DefaultRetrieverConfig() RetrieverConfig {
	return RetrieverConfig{
		Timeout:    3 * time.Second,
		WindowSize: 50,
	}
}

// Retriever fetches a bounded, deduplicated candidate set for a query's
// variants. Store failures degrade to an empty candidate set with a
// diagnostic flag; they never surface as errors.
type Retriever struct {
	store  Store
	logger ectologger.Logger
	cfg    RetrieverConfig
}

// NewRetriever creates a new Retriever.
func NewRetriever(store Store, logger ectologger.Logger, cfg RetrieverConfig) *Retriever {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRetrieverConfig().Timeout
	}
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = DefaultRetrieverConfig().WindowSize
	}
	return &Retriever{
		store:  store,
		logger: logger,
		cfg:    cfg,
	}
}

// Retrieve runs the exact and alias lookups for all variants, widening to the
// candidate window only when both come back empty. Candidates are
// deduplicated by (dataset_id, organization_name). Malformed candidate rows
// are skipped and logged; the rest of the retrieval continues. The degraded
// flag is set when the store timed out or failed.
func (r *Retriever) Retrieve(ctx context.Context, variants []string) (candidates []Candidate, degraded bool) {
	ctx, span := tracing.StartSpan(ctx, "matching.Retriever.Retrieve")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"method":        "Retrieve",
		"variant_count": len(variants),
	})

	if len(variants) == 0 {
		return nil, false
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	seen := make(map[dedupKey]struct{})

	exact, err := r.store.FindByNames(ctx, variants)
	if err != nil {
		log.WithError(&StoreUnavailableError{Err: err}).Warn("Exact lookup failed; degrading to zero matches")
		return nil, true
	}
	candidates = r.appendCandidates(candidates, seen, exact, log)

	byAlias, err := r.store.FindByAliases(ctx, variants)
	if err != nil {
		log.WithError(&StoreUnavailableError{Err: err}).Warn("Alias lookup failed; degrading to partial results")
		return candidates, true
	}
	candidates = r.appendCandidates(candidates, seen, byAlias, log)

	// Widen only when the precise lookups found nothing.
	if len(candidates) == 0 {
		for _, variant := range variants {
			window, err := r.store.CandidateWindow(ctx, variant, r.cfg.WindowSize)
			if err != nil {
				log.WithError(&StoreUnavailableError{Err: err}).Warn("Candidate window lookup failed; degrading to partial results")
				return candidates, true
			}
			candidates = r.appendCandidates(candidates, seen, window, log)
		}
	}

	log.WithFields(map[string]any{"candidate_count": len(candidates)}).Debug("Retrieved candidates")
	return candidates, false
}

type dedupKey struct {
	datasetID string
	name      string
}

// appendCandidates converts rows to Candidates, skipping duplicates and
// malformed rows.
func (r *Retriever) appendCandidates(dst []Candidate, seen map[dedupKey]struct{}, rows []models.ReferenceEntity, log ectologger.Logger) []Candidate {
	for _, row := range rows {
		cand, err := buildCandidate(row)
		if err != nil {
			log.WithError(err).Warn("Skipping malformed candidate")
			continue
		}

		key := dedupKey{datasetID: row.DatasetID.String(), name: row.OrganizationName}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		dst = append(dst, cand)
	}
	return dst
}

// buildCandidate assembles the normalized facts for one row. The store
// precomputes normalized columns at import time; rows that predate a
// normalizer change are re-normalized here rather than dropped.
func buildCandidate(row models.ReferenceEntity) (Candidate, error) {
	if row.OrganizationName == "" {
		return Candidate{}, &ParseError{OrganizationName: row.OrganizationName, Reason: "empty organization name"}
	}

	nameNorm := row.NameNormalized
	if nameNorm == "" {
		nameNorm = normalize.Normalize(row.OrganizationName)
	}
	if nameNorm == "" {
		return Candidate{}, &ParseError{OrganizationName: row.OrganizationName, Reason: "name normalizes to empty string"}
	}

	coreNorm := row.CoreNormalized
	if coreNorm == "" {
		coreNorm = normalize.CoreForm(row.OrganizationName)
	}

	aliasesNorm := make([]string, len(row.Aliases))
	for i, alias := range row.Aliases {
		if i < len(row.AliasesNormalized) && row.AliasesNormalized[i] != "" {
			aliasesNorm[i] = row.AliasesNormalized[i]
		} else {
			aliasesNorm[i] = normalize.Normalize(alias)
		}
	}

	return Candidate{
		Entity:      row,
		NameNorm:    nameNorm,
		CoreNorm:    coreNorm,
		AliasesNorm: aliasesNorm,
	}, nil
}
