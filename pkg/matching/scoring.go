package matching

import (
	"math"
	"strings"
)

// Scorer provides the string similarity primitives used by classification
// and confidence scoring. All methods expect normalized input and are pure
// CPU work; nothing here touches I/O.
type Scorer struct{}

// NewScorer creates a new Scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// ExactMatch returns 1.0 for exact match, 0.0 otherwise
func (s *Scorer) ExactMatch(a, b string, caseSensitive bool) float64 {
	if !caseSensitive {
		a = strings.ToLower(a)
		b = strings.ToLower(b)
	}
	if a == b {
		return 1.0
	}
	return 0.0
}

// JaroWinkler calculates the Jaro-Winkler similarity between two strings
// Returns a value between 0.0 (no similarity) and 1.0 (exact match)
func (s *Scorer) JaroWinkler(a, b string) float64 {
	if a == b {
		return 1.0
	}

	jaro := s.Jaro(a, b)

	// Winkler modification: boost for common prefix
	prefixLen := 0
	maxPrefix := 4
	for i := 0; i < len(a) && i < len(b) && i < maxPrefix; i++ {
		if a[i] == b[i] {
			prefixLen++
		} else {
			break
		}
	}

	// Winkler scaling factor is typically 0.1
	scalingFactor := 0.1
	return jaro + float64(prefixLen)*scalingFactor*(1.0-jaro)
}

// Jaro calculates the Jaro similarity between two strings
func (s *Scorer) Jaro(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	// Maximum distance for character matching
	matchDist := max(len(a), len(b))/2 - 1
	if matchDist < 0 {
		matchDist = 0
	}

	aMatches := make([]bool, len(a))
	bMatches := make([]bool, len(b))

	matches := 0
	transpositions := 0

	// Find matches
	for i := 0; i < len(a); i++ {
		start := max(0, i-matchDist)
		end := min(len(b), i+matchDist+1)

		for j := start; j < end; j++ {
			if bMatches[j] || a[i] != b[j] {
				continue
			}
			aMatches[i] = true
			bMatches[j] = true
			matches++
			break
		}
	}

	if matches == 0 {
		return 0.0
	}

	// Count transpositions
	k := 0
	for i := 0; i < len(a); i++ {
		if !aMatches[i] {
			continue
		}
		for !bMatches[k] {
			k++
		}
		if a[i] != b[k] {
			transpositions++
		}
		k++
	}

	m := float64(matches)
	t := float64(transpositions) / 2

	return (m/float64(len(a)) + m/float64(len(b)) + (m-t)/m) / 3
}

// Levenshtein calculates the Levenshtein distance between two strings
// Returns a similarity score between 0.0 and 1.0
func (s *Scorer) Levenshtein(a, b string) float64 {
	distance := s.LevenshteinDistance(a, b)
	maxLen := max(len(a), len(b))
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(distance)/float64(maxLen)
}

// LevenshteinDistance calculates the edit distance between two strings
func (s *Scorer) LevenshteinDistance(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	// Create two rows for dynamic programming
	row := make([]int, len(b)+1)
	prevRow := make([]int, len(b)+1)

	for j := 0; j <= len(b); j++ {
		prevRow[j] = j
	}

	for i := 1; i <= len(a); i++ {
		row[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 0
			if a[i-1] != b[j-1] {
				cost = 1
			}
			row[j] = min(min(row[j-1]+1, prevRow[j]+1), prevRow[j-1]+cost)
		}
		row, prevRow = prevRow, row
	}

	return prevRow[len(b)]
}

// NGramJaccard calculates the Jaccard similarity of character bigram sets.
// Equal strings score 1.0; strings shorter than the gram size fall back to
// equality comparison.
func (s *Scorer) NGramJaccard(a, b string) float64 {
	const n = 2

	if a == b {
		if a == "" {
			return 0.0
		}
		return 1.0
	}
	if len(a) < n || len(b) < n {
		return 0.0
	}

	gramsA := bigrams(a)
	gramsB := bigrams(b)

	intersection := 0
	for g := range gramsA {
		if _, ok := gramsB[g]; ok {
			intersection++
		}
	}

	union := len(gramsA) + len(gramsB) - intersection
	if union == 0 {
		return 0.0
	}

	return float64(intersection) / float64(union)
}

func bigrams(s string) map[string]struct{} {
	grams := make(map[string]struct{}, len(s))
	for i := 0; i+2 <= len(s); i++ {
		grams[s[i:i+2]] = struct{}{}
	}
	return grams
}

// WordOverlap returns the fraction of query words that also appear in the
// candidate, relative to the larger word count.
func (s *Scorer) WordOverlap(a, b string) float64 {
	wordsA := strings.Fields(a)
	wordsB := strings.Fields(b)
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0.0
	}

	setB := make(map[string]struct{}, len(wordsB))
	for _, w := range wordsB {
		setB[w] = struct{}{}
	}

	shared := 0
	for _, w := range wordsA {
		if _, ok := setB[w]; ok {
			shared++
		}
	}

	return float64(shared) / float64(max(len(wordsA), len(wordsB)))
}

// ContainmentRatio returns the length ratio of the shorter string to the
// longer when one contains the other, 0.0 otherwise.
func (s *Scorer) ContainmentRatio(a, b string) float64 {
	if a == "" || b == "" {
		return 0.0
	}
	shorter, longer := a, b
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if !strings.Contains(longer, shorter) {
		return 0.0
	}
	return float64(len(shorter)) / float64(len(longer))
}

// LengthRatio is an advisory signal: shorter length over longer length.
// Never used for classification.
func (s *Scorer) LengthRatio(a, b string) float64 {
	la, lb := len(a), len(b)
	if la == 0 || lb == 0 {
		return 0.0
	}
	return float64(min(la, lb)) / float64(max(la, lb))
}

// WordCountRatio is an advisory signal: smaller word count over larger.
// Never used for classification.
func (s *Scorer) WordCountRatio(a, b string) float64 {
	wa, wb := len(strings.Fields(a)), len(strings.Fields(b))
	if wa == 0 || wb == 0 {
		return 0.0
	}
	return float64(min(wa, wb)) / float64(max(wa, wb))
}

// Similarity bundles the scores the classifier and confidence formulas need
// for one variant/candidate-name pair.
type Similarity struct {
	JaroWinkler float64
	Levenshtein float64
	NGram       float64
	WordOverlap float64
	Containment float64
}

// Compare computes all similarity signals for a pair of normalized strings.
func (s *Scorer) Compare(a, b string) Similarity {
	return Similarity{
		JaroWinkler: s.JaroWinkler(a, b),
		Levenshtein: s.Levenshtein(a, b),
		NGram:       s.NGramJaccard(a, b),
		WordOverlap: s.WordOverlap(a, b),
		Containment: s.ContainmentRatio(a, b),
	}
}

// Best returns the maximum of the primary similarity signals.
func (sim Similarity) Best() float64 {
	return math.Max(sim.JaroWinkler, math.Max(sim.Levenshtein, math.Max(sim.NGram, math.Max(sim.WordOverlap, sim.Containment))))
}
