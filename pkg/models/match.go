package models

import "github.com/google/uuid"

// MatchType classifies why a candidate was considered related to the query.
// The classifier assigns exactly one type per candidate using a fixed
// precedence order; the scorer keys its confidence formulas off the same set,
// so a new type must be added in both places.
type MatchType string

const (
	MatchTypeExact        MatchType = "exact"         // Normalized names are equal
	MatchTypeAlias        MatchType = "alias"         // Query equals a normalized alias
	MatchTypeAliasPartial MatchType = "alias_partial" // Query contains or is contained by an alias
	MatchTypeCoreMatch    MatchType = "core_match"    // Core forms equal (legal suffixes stripped)
	MatchTypeFuzzy        MatchType = "fuzzy"         // High string similarity
	MatchTypePartial      MatchType = "partial"       // Substring containment or weak similarity
)

// RelationshipSource records whether a match came from the queried entity
// itself or from one of its affiliated companies.
type RelationshipSource string

const (
	RelationshipSourceDirect     RelationshipSource = "direct"
	RelationshipSourceAffiliated RelationshipSource = "affiliated_company"
)

// MatchQuery is a single screening request for one organization name.
// Entity and affiliated company names arrive as untrusted free text from
// upstream discovery; nothing here re-validates their factual content.
type MatchQuery struct {
	Entity              string              `json:"entity" validate:"required,min=1,max=300"`
	Aliases             []string            `json:"aliases,omitempty"`
	Context             *QueryContext       `json:"context,omitempty"`
	Options             MatchOptions        `json:"options"`
	AffiliatedCompanies []AffiliatedCompany `json:"affiliated_companies,omitempty"`
}

// QueryContext carries optional caller-supplied hints. It is echoed through
// for display and never influences classification.
type QueryContext struct {
	Location *string `json:"location,omitempty"`
	Note     *string `json:"note,omitempty"`
}

// MatchOptions tune filtering, truncation and cache behavior for one query.
// Out-of-range values are clamped to sane defaults rather than rejected.
type MatchOptions struct {
	MinConfidence   float64 `json:"min_confidence"`
	MaxResults      int     `json:"max_results"`
	ForceRefresh    bool    `json:"force_refresh"`
	AffiliatedBoost float64 `json:"affiliated_boost"`
}

const (
	DefaultMinConfidence   = 0.3
	DefaultMaxResults      = 20
	MaxResultsHardCap      = 100
	DefaultAffiliatedBoost = 1.15
)

// Clamped returns a copy with defaults applied and out-of-range values pulled
// back into bounds.
func (o MatchOptions) Clamped() MatchOptions {
	if o.MinConfidence <= 0 || o.MinConfidence > 1 {
		o.MinConfidence = DefaultMinConfidence
	}
	if o.MaxResults <= 0 {
		o.MaxResults = DefaultMaxResults
	}
	if o.MaxResults > MaxResultsHardCap {
		o.MaxResults = MaxResultsHardCap
	}
	if o.AffiliatedBoost <= 0 {
		o.AffiliatedBoost = DefaultAffiliatedBoost
	}
	return o
}

// AffiliatedCompany is a secondary entity discovered via risk/relationship
// analysis of the primary entity. It is matched independently and its match
// confidence is boosted.
type AffiliatedCompany struct {
	CompanyName      string   `json:"company_name" validate:"required"`
	RiskKeyword      *string  `json:"risk_keyword,omitempty"`
	RelationshipType *string  `json:"relationship_type,omitempty"`
	ConfidenceScore  *float64 `json:"confidence_score,omitempty"`
}

// DatasetMatch is one ranked candidate match against a reference entity.
type DatasetMatch struct {
	DatasetID          uuid.UUID          `json:"dataset_id"`
	DatasetName        string             `json:"dataset_name"`
	OrganizationName   string             `json:"organization_name"`
	MatchType          MatchType          `json:"match_type"`
	ConfidenceScore    float64            `json:"confidence_score"`
	Coverage           float64            `json:"coverage"`
	MatchedVariant     string             `json:"matched_variant,omitempty"`
	MatchedAlias       string             `json:"matched_alias,omitempty"`
	Category           *string            `json:"category,omitempty"`
	Countries          []string           `json:"countries,omitempty"`
	RelationshipSource RelationshipSource `json:"relationship_source"`
	SourceRiskKeyword  string             `json:"source_risk_keyword,omitempty"`
	BoostApplied       bool               `json:"boost_applied,omitempty"`
}
