// Package referenceentity implements the reference store lookups against
// PostgreSQL. All matching predicates run on precomputed normalized columns:
// the alias lookup is a GIN array-overlap predicate and the candidate window
// rides the trigram index, so nothing here scans or normalizes at query time.
package referenceentity

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/stem/pkg/database"
	"github.com/Ramsey-B/stem/pkg/tracing"
	"github.com/lib/pq"

	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
)

// minWindowSimilarity is the trigram floor for the candidate window; anything
// below it is noise the scorer would discard anyway.
const minWindowSimilarity = 0.1

// selectColumns lists the entity columns with the dataset name joined in.
const selectColumns = `
	re.id,
	re.dataset_id,
	d.name AS dataset_name,
	re.organization_name,
	re.name_normalized,
	re.core_normalized,
	re.aliases,
	re.aliases_normalized,
	re.category,
	re.countries,
	re.created_at,
	re.updated_at`

// activeScope restricts every lookup to entities in active datasets.
const activeScope = `d.is_active = true AND d.deleted_at IS NULL`

// Repository handles reference entity lookups
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new reference entity repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// FindByNames returns entities whose normalized name equals any variant,
// scoped to active datasets.
func (r *Repository) FindByNames(ctx context.Context, variants []string) ([]models.ReferenceEntity, error) {
	ctx, span := tracing.StartSpan(ctx, "referenceentity.Repository.FindByNames")
	defer span.End()

	if len(variants) == 0 {
		return []models.ReferenceEntity{}, nil
	}

	query := `
		SELECT ` + selectColumns + `
		FROM reference_entities re
		JOIN datasets d ON d.id = re.dataset_id
		WHERE ` + activeScope + `
		  AND re.name_normalized = ANY($1)`

	start := time.Now()
	var entities []models.ReferenceEntity
	err := r.db.SelectContext(ctx, &entities, query, pq.Array(variants))
	metrics.RecordStoreLookup("find_by_names", time.Since(start).Seconds())
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to find entities by name")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to find entities by name")
	}

	return entities, nil
}

// FindByAliases returns entities whose normalized alias array overlaps the
// variants. The && predicate runs on the GIN index over aliases_normalized.
func (r *Repository) FindByAliases(ctx context.Context, variants []string) ([]models.ReferenceEntity, error) {
	ctx, span := tracing.StartSpan(ctx, "referenceentity.Repository.FindByAliases")
	defer span.End()

	if len(variants) == 0 {
		return []models.ReferenceEntity{}, nil
	}

	query := `
		SELECT ` + selectColumns + `
		FROM reference_entities re
		JOIN datasets d ON d.id = re.dataset_id
		WHERE ` + activeScope + `
		  AND re.aliases_normalized && $1::text[]`

	start := time.Now()
	var entities []models.ReferenceEntity
	err := r.db.SelectContext(ctx, &entities, query, pq.Array(variants))
	metrics.RecordStoreLookup("find_by_aliases", time.Since(start).Seconds())
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to find entities by alias")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to find entities by alias")
	}

	return entities, nil
}

// CandidateWindow returns the top candidates by trigram similarity against
// the normalized name, for downstream fuzzy scoring.
func (r *Repository) CandidateWindow(ctx context.Context, variant string, limit int) ([]models.ReferenceEntity, error) {
	ctx, span := tracing.StartSpan(ctx, "referenceentity.Repository.CandidateWindow")
	defer span.End()

	if variant == "" || limit <= 0 {
		return []models.ReferenceEntity{}, nil
	}

	query := `
		SELECT ` + selectColumns + `
		FROM reference_entities re
		JOIN datasets d ON d.id = re.dataset_id
		WHERE ` + activeScope + `
		  AND similarity(re.name_normalized, $1) > $2
		ORDER BY similarity(re.name_normalized, $1) DESC, re.organization_name ASC
		LIMIT $3`

	start := time.Now()
	var entities []models.ReferenceEntity
	err := r.db.SelectContext(ctx, &entities, query, variant, minWindowSimilarity, limit)
	metrics.RecordStoreLookup("candidate_window", time.Since(start).Seconds())
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to fetch candidate window")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to fetch candidate window")
	}

	return entities, nil
}
