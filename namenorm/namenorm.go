// Package namenorm canonicalizes free-text company and person names into
// comparable keys.
//
// Two strengths exist: Person keeps every meaningful token (case, accents
// and connector particles only), Company additionally strips corporate-form
// suffixes so that "Acme Unipessoal, Lda." and "Acme" compare equal. Empty
// output always means "unmatched", never a wildcard.
package namenorm

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	companyPunctuation = regexp.MustCompile(`[.,;:\-_/()\[\]{}&'"+]`)
	whitespaceRun      = regexp.MustCompile(`\s+`)
	nonAlphanumUpper   = regexp.MustCompile(`[^A-Z0-9]+`)
	nonAlphanumLower   = regexp.MustCompile(`[^a-z0-9]+`)

	legalSuffixes = regexp.MustCompile(`\b(?:lda|ltda|ltd|limited|unipessoal|unip|sociedade|por|quotas?|sa|s a|llc|inc|company)\b`)

	// Connector particles dropped from person names so that variant
	// spellings with and without them resolve to the same alias key.
	personStopwords = map[string]struct{}{
		"DE": {}, "DA": {}, "DO": {}, "DOS": {}, "DAS": {}, "E": {},
	}

	// Corporate-form and connector tokens carrying no identity weight when
	// comparing company names token-wise.
	companyStopTokens = map[string]struct{}{
		"LDA": {}, "LTD": {}, "LTDA": {}, "SA": {}, "SOCIEDADE": {},
		"UNIPESSOAL": {}, "UNIP": {}, "E": {}, "ME": {},
	}
)

// StripDiacritics removes combining marks ("São" -> "Sao").
func StripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return result
}

// Person normalizes a technician name for alias lookups: uppercase, no
// accents, connector particles removed, single spaces.
func Person(s string) string {
	text := StripDiacritics(strings.TrimSpace(s))
	if text == "" {
		return ""
	}
	text = strings.ToUpper(text)

	tokens := whitespaceRun.Split(text, -1)
	kept := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if token == "" {
			continue
		}
		if _, stop := personStopwords[token]; stop {
			continue
		}
		kept = append(kept, token)
	}
	return strings.Join(kept, " ")
}

// Company strongly normalizes a company name for matching: lowercase, no
// accents, punctuation folded to spaces, legal-entity suffixes removed.
// When stripping suffixes would leave nothing, the pre-strip form is kept
// so that a company literally named after its corporate form still matches.
func Company(s string) string {
	text := StripDiacritics(strings.TrimSpace(s))
	if text == "" {
		return ""
	}
	text = strings.ToLower(text)
	text = companyPunctuation.ReplaceAllString(text, " ")
	text = collapse(text)
	if text == "" {
		return ""
	}

	stripped := collapse(legalSuffixes.ReplaceAllString(text, " "))
	if stripped == "" {
		return text
	}
	return stripped
}

// MatchKey normalizes a name for the matcher index: uppercase, no accents,
// every non-alphanumeric run folded to a single space.
func MatchKey(s string) string {
	text := StripDiacritics(strings.TrimSpace(s))
	if text == "" {
		return ""
	}
	text = strings.ToUpper(text)
	text = nonAlphanumUpper.ReplaceAllString(text, " ")
	return collapse(text)
}

// Tokens splits a MatchKey into its significant tokens, discarding
// corporate-form and connector words.
func Tokens(matchKey string) []string {
	out := make([]string, 0, 4)
	for _, token := range strings.Fields(matchKey) {
		if _, stop := companyStopTokens[token]; stop {
			continue
		}
		out = append(out, token)
	}
	return out
}

// Header normalizes a spreadsheet header cell for case- and
// accent-insensitive comparison.
func Header(s string) string {
	text := StripDiacritics(strings.TrimSpace(s))
	if text == "" {
		return ""
	}
	text = strings.ToLower(text)
	text = strings.ReplaceAll(text, "/", " ")
	text = nonAlphanumLower.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

func collapse(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}
