package matching

import (
	"sort"

	"github.com/Ramsey-B/fern/pkg/models"
)

// QualityAssessor filters, ranks and truncates classified matches.
// Ordering is deterministic: confidence descending, then coverage descending,
// then organization name ascending.
type QualityAssessor struct{}

// NewQualityAssessor creates a new QualityAssessor.
func NewQualityAssessor() *QualityAssessor {
	return &QualityAssessor{}
}

// Assess applies the confidence floor, sorts, and truncates to the result
// limit. Options are expected to be clamped already; the hard cap is applied
// again here so a raw options value can never widen the result set.
func (q *QualityAssessor) Assess(matches []models.DatasetMatch, opts models.MatchOptions) []models.DatasetMatch {
	kept := make([]models.DatasetMatch, 0, len(matches))
	for _, m := range matches {
		if m.ConfidenceScore >= opts.MinConfidence {
			kept = append(kept, m)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].ConfidenceScore != kept[j].ConfidenceScore {
			return kept[i].ConfidenceScore > kept[j].ConfidenceScore
		}
		if kept[i].Coverage != kept[j].Coverage {
			return kept[i].Coverage > kept[j].Coverage
		}
		return kept[i].OrganizationName < kept[j].OrganizationName
	})

	limit := opts.MaxResults
	if limit <= 0 || limit > models.MaxResultsHardCap {
		limit = models.MaxResultsHardCap
	}
	if len(kept) > limit {
		kept = kept[:limit]
	}

	return kept
}
