// Package normalize canonicalizes organization names for matching.
// All functions are pure and never fail; malformed input yields an empty
// string rather than an error.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks removes combining diacritical marks after NFD decomposition.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// legalSuffixes are trailing organizational/legal tokens stripped to produce
// the core form. Compared against whole trailing words of the normalized name.
var legalSuffixes = map[string]struct{}{
	"inc": {}, "incorporated": {}, "ltd": {}, "limited": {}, "llc": {},
	"llp": {}, "plc": {}, "gmbh": {}, "ag": {}, "sa": {}, "srl": {},
	"bv": {}, "nv": {}, "oy": {}, "ab": {}, "as": {}, "spa": {},
	"co": {}, "corp": {}, "corporation": {}, "company": {}, "group": {},
	"holdings": {}, "holding": {}, "university": {}, "institute": {},
	"institution": {}, "laboratory": {}, "laboratories": {}, "labs": {},
	"academy": {}, "center": {}, "centre": {}, "foundation": {},
	"association": {}, "organization": {}, "organisation": {},
}

// parentheticalRe matches "Base Name (ACRONYM)" with a non-empty base.
var parentheticalRe = regexp.MustCompile(`^(.*\S)\s*\(([^()]+)\)\s*$`)

// Normalize lower-cases, strips diacritics, replaces punctuation with spaces
// and collapses whitespace.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}

	if stripped, _, err := transform.String(stripMarks, s); err == nil {
		s = stripped
	}

	var result strings.Builder
	prevSpace := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			result.WriteRune(r)
			prevSpace = false
		} else if !prevSpace && result.Len() > 0 {
			result.WriteRune(' ')
			prevSpace = true
		}
	}

	return strings.TrimSpace(result.String())
}

// CoreForm normalizes and then repeatedly strips trailing legal/organizational
// suffix words. The last remaining word is never stripped, so "Institute"
// stays "institute" rather than collapsing to nothing.
func CoreForm(s string) string {
	words := strings.Fields(Normalize(s))
	for len(words) > 1 {
		last := words[len(words)-1]
		if _, ok := legalSuffixes[last]; !ok {
			break
		}
		words = words[:len(words)-1]
	}
	return strings.Join(words, " ")
}

// ExtractParenthetical splits "Base Name (ACRONYM)" into two independent
// search variants. Returns ok=false when the text carries no trailing
// parenthetical. The literal bracketed string must never itself be searched;
// it will not appear verbatim in any reference dataset.
func ExtractParenthetical(s string) (base, acronym string, ok bool) {
	m := parentheticalRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return "", "", false
	}
	base = strings.TrimSpace(m[1])
	acronym = strings.TrimSpace(m[2])
	if base == "" || acronym == "" {
		return "", "", false
	}
	return base, acronym, true
}

// QueryVariants builds the ordered, deduplicated set of normalized search
// variants for an entity: base name (or the whole entity), extracted acronym,
// core form, then any caller-supplied aliases. Empty variants are dropped.
func QueryVariants(entity string, aliases []string) []string {
	var raw []string

	name := entity
	if base, acronym, ok := ExtractParenthetical(entity); ok {
		name = base
		raw = append(raw, base, acronym)
	} else {
		raw = append(raw, entity)
	}

	raw = append(raw, CoreForm(name))
	raw = append(raw, aliases...)

	seen := make(map[string]struct{}, len(raw))
	variants := make([]string, 0, len(raw))
	for _, v := range raw {
		n := Normalize(v)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		variants = append(variants, n)
	}

	return variants
}
