package matching

import (
	"math"
	"strings"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/normalize"
)

// minCoreLength guards trivial short-acronym collisions: core forms shorter
// than this never produce a core_match.
const minCoreLength = 4

// Candidate is one reference entity with its precomputed normalized facts.
type Candidate struct {
	Entity      models.ReferenceEntity
	NameNorm    string
	CoreNorm    string
	AliasesNorm []string
}

// Classification is the outcome of classifying one candidate against the
// query variants: a single discrete match type plus its confidence and
// coverage, and the variant/alias that produced it.
type Classification struct {
	MatchType    models.MatchType
	Confidence   float64
	Coverage     float64
	Variant      string
	MatchedAlias string
}

// Classifier assigns one match type per candidate using a fixed precedence
// order, then computes confidence and coverage from the per-type formula
// tables. Adding a new match type requires updating both switches below.
type Classifier struct {
	scorer *Scorer
}

// NewClassifier creates a new Classifier.
func NewClassifier(scorer *Scorer) *Classifier {
	return &Classifier{scorer: scorer}
}

// Classify evaluates a candidate against every query variant and keeps the
// strongest classification. Returns ok=false when no variant classifies the
// candidate, in which case the candidate is dropped.
func (c *Classifier) Classify(rawQuery string, variants []string, cand Candidate) (Classification, bool) {
	var best Classification
	found := false

	for _, variant := range variants {
		cls, ok := c.classifyVariant(rawQuery, variant, cand)
		if !ok {
			continue
		}
		if !found || cls.Confidence > best.Confidence ||
			(cls.Confidence == best.Confidence && typeRank(cls.MatchType) < typeRank(best.MatchType)) {
			best = cls
			found = true
		}
	}

	return best, found
}

// classifyVariant applies the precedence order for a single variant.
// First match wins: exact, alias, alias_partial, core_match, fuzzy, partial.
func (c *Classifier) classifyVariant(rawQuery, variant string, cand Candidate) (Classification, bool) {
	if variant == "" || cand.NameNorm == "" {
		return Classification{}, false
	}

	// 1. exact
	if variant == cand.NameNorm {
		return c.build(models.MatchTypeExact, rawQuery, variant, "", cand), true
	}

	// 2. alias
	for i, alias := range cand.AliasesNorm {
		if variant == alias {
			return c.build(models.MatchTypeAlias, rawQuery, variant, rawAlias(cand, i), cand), true
		}
	}

	// 3. alias_partial
	for i, alias := range cand.AliasesNorm {
		if alias == "" {
			continue
		}
		if strings.Contains(alias, variant) || strings.Contains(variant, alias) {
			return c.build(models.MatchTypeAliasPartial, rawQuery, variant, rawAlias(cand, i), cand), true
		}
	}

	// 4. core_match
	coreVariant := normalize.CoreForm(variant)
	if coreVariant != "" && coreVariant == cand.CoreNorm && len(cand.CoreNorm) >= minCoreLength {
		return c.build(models.MatchTypeCoreMatch, rawQuery, variant, "", cand), true
	}

	// 5. fuzzy
	sim := c.scorer.Compare(variant, cand.NameNorm)
	if sim.JaroWinkler > 0.8 || sim.Levenshtein > 0.8 || sim.NGram > 0.7 {
		return c.build(models.MatchTypeFuzzy, rawQuery, variant, "", cand), true
	}

	// 6. partial
	if strings.Contains(cand.NameNorm, variant) || strings.Contains(variant, cand.NameNorm) || sim.Best() > 0.3 {
		return c.build(models.MatchTypePartial, rawQuery, variant, "", cand), true
	}

	return Classification{}, false
}

// build fills in confidence and coverage for an assigned match type.
func (c *Classifier) build(mt models.MatchType, rawQuery, variant, matchedAlias string, cand Candidate) Classification {
	return Classification{
		MatchType:    mt,
		Confidence:   c.confidence(mt, variant, cand),
		Coverage:     c.coverage(mt, rawQuery, variant, matchedAlias, cand),
		Variant:      variant,
		MatchedAlias: matchedAlias,
	}
}

// confidence implements the per-type formula table. The default arm is a
// defensive floor for a type the table does not know about.
func (c *Classifier) confidence(mt models.MatchType, variant string, cand Candidate) float64 {
	sim := c.scorer.Compare(variant, cand.NameNorm)

	switch mt {
	case models.MatchTypeExact:
		return 1.0
	case models.MatchTypeAlias:
		best := 0.0
		for _, alias := range cand.AliasesNorm {
			if jw := c.scorer.JaroWinkler(variant, alias); jw > best {
				best = jw
			}
		}
		return math.Min(0.95, best)
	case models.MatchTypeAliasPartial:
		return 0.8
	case models.MatchTypeCoreMatch:
		return c.scorer.JaroWinkler(normalize.CoreForm(variant), cand.CoreNorm) * 0.85
	case models.MatchTypeFuzzy:
		return (0.5*sim.JaroWinkler + 0.3*sim.Levenshtein + 0.2*sim.NGram) * 0.8
	case models.MatchTypePartial:
		return math.Max(sim.WordOverlap, sim.Containment) * 0.6
	default:
		return 0.3
	}
}

// coverage estimates the fraction of the searched term accounted for by the
// candidate; distinct from confidence.
func (c *Classifier) coverage(mt models.MatchType, rawQuery, variant, matchedAlias string, cand Candidate) float64 {
	sim := c.scorer.Compare(variant, cand.NameNorm)

	switch mt {
	case models.MatchTypeExact:
		if rawQuery == cand.Entity.OrganizationName {
			return 1.0
		}
		return 0.9
	case models.MatchTypeAlias:
		if strings.EqualFold(rawQuery, matchedAlias) {
			return 0.95
		}
		return 0.85
	case models.MatchTypeAliasPartial, models.MatchTypeCoreMatch:
		return sim.WordOverlap
	case models.MatchTypeFuzzy, models.MatchTypePartial:
		return math.Max(sim.JaroWinkler, math.Max(sim.WordOverlap, sim.Containment))
	default:
		return sim.WordOverlap
	}
}

// typeRank orders match types by precedence for tie-breaking.
func typeRank(mt models.MatchType) int {
	switch mt {
	case models.MatchTypeExact:
		return 0
	case models.MatchTypeAlias:
		return 1
	case models.MatchTypeAliasPartial:
		return 2
	case models.MatchTypeCoreMatch:
		return 3
	case models.MatchTypeFuzzy:
		return 4
	case models.MatchTypePartial:
		return 5
	default:
		return 6
	}
}

// rawAlias returns the display form of the alias at the normalized index.
// The normalized alias list is built positionally from the raw list, so the
// indexes line up; fall back to the normalized form if they ever do not.
func rawAlias(cand Candidate, i int) string {
	if i < len(cand.Entity.Aliases) {
		return cand.Entity.Aliases[i]
	}
	return cand.AliasesNorm[i]
}
