// Package dataset provides read access to the reference dataset inventory.
package dataset

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/stem/pkg/database"
	"github.com/Ramsey-B/stem/pkg/tracing"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/pkg/models"
)

// Repository handles dataset lookups
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new dataset repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// ListActive returns all active datasets ordered by name.
func (r *Repository) ListActive(ctx context.Context) ([]models.Dataset, error) {
	ctx, span := tracing.StartSpan(ctx, "dataset.Repository.ListActive")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "name", "description", "is_active", "entry_count", "created_at", "updated_at", "deleted_at")
	sb.From("datasets")
	sb.Where(
		sb.Equal("is_active", true),
		sb.IsNull("deleted_at"),
	)
	sb.OrderBy("name")

	query, args := sb.Build()
	var datasets []models.Dataset
	if err := r.db.SelectContext(ctx, &datasets, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list active datasets")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list active datasets")
	}

	return datasets, nil
}

// EntryCounts refreshes the cached entry_count column from the live entity
// counts. Run by operators after a dataset import, not by the match path.
func (r *Repository) EntryCounts(ctx context.Context) (map[string]int, error) {
	ctx, span := tracing.StartSpan(ctx, "dataset.Repository.EntryCounts")
	defer span.End()

	query := `
		SELECT d.name AS dataset_name, COUNT(re.id) AS entry_count
		FROM datasets d
		LEFT JOIN reference_entities re ON re.dataset_id = d.id
		WHERE d.deleted_at IS NULL
		GROUP BY d.name
		ORDER BY d.name`

	rows := []struct {
		DatasetName string `db:"dataset_name"`
		EntryCount  int    `db:"entry_count"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count dataset entries")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count dataset entries")
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.DatasetName] = row.EntryCount
	}

	return counts, nil
}
