package models

// MatchSummary aggregates direct and affiliated match counts for one query.
type MatchSummary struct {
	TotalDirectMatches        int     `json:"total_direct_matches"`
	TotalAffiliatedEntities   int     `json:"total_affiliated_entities"`
	MatchedAffiliatedEntities int     `json:"matched_affiliated_entities"`
	TotalAffiliatedMatches    int     `json:"total_affiliated_matches"`
	HighConfidenceMatches     int     `json:"high_confidence_matches"`
	AverageConfidence         float64 `json:"average_confidence"`
}

// MatchMetadata carries per-query processing diagnostics.
type MatchMetadata struct {
	ProcessingTimeMS int64  `json:"processing_time_ms"`
	AlgorithmVersion string `json:"algorithm_version"`
	CacheHit         bool   `json:"cache_hit"`
	// Degraded is set when the reference store was unavailable and the query
	// fell back to zero matches instead of failing.
	Degraded bool `json:"degraded,omitempty"`
}

// MatchResponse is the full screening result for one MatchQuery.
// Success is false only for structurally invalid requests (missing entity);
// store failures and empty result sets still report success so callers can
// tell "found nothing" apart from "engine broken".
type MatchResponse struct {
	Success           bool                      `json:"success"`
	Entity            string                    `json:"entity"`
	Error             string                    `json:"error,omitempty"`
	DirectMatches     []DatasetMatch            `json:"direct_matches"`
	AffiliatedMatches map[string][]DatasetMatch `json:"affiliated_matches,omitempty"`
	MatchSummary      MatchSummary              `json:"match_summary"`
	Metadata          MatchMetadata             `json:"metadata"`
}

// BatchItemResult pairs one batch item's response with its latency.
type BatchItemResult struct {
	Index      int            `json:"index"`
	Response   *MatchResponse `json:"response"`
	Err        string         `json:"error,omitempty"`
	DurationMS int64          `json:"duration_ms"`
}

// BatchStats aggregates outcomes across a whole batch. Every submitted item
// is counted exactly once, including items failed by early cancellation.
type BatchStats struct {
	TotalProcessed int   `json:"total_processed"`
	SuccessCount   int   `json:"success_count"`
	FailureCount   int   `json:"failure_count"`
	CacheHits      int   `json:"cache_hits"`
	TotalMatches   int   `json:"total_matches"`
	DurationMS     int64 `json:"duration_ms"`
}

// BatchResult holds per-item results in submission order plus aggregates.
type BatchResult struct {
	Items []BatchItemResult `json:"items"`
	Stats BatchStats        `json:"stats"`
}
