// Package match resolves registry company names against the ledger's
// free-text spellings. Resolution is tiered: exact normalized equality,
// then token-inclusion (one name's significant tokens contained in the
// other's), then bounded fuzzy similarity with a high acceptance floor and
// a separation margin so near-ties are surfaced instead of guessed.
package match

import (
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"timeledger/ledger"
	"timeledger/namenorm"
)

// Tier identifies how a match was established.
type Tier string

const (
	TierExact  Tier = "exact"
	TierTokens Tier = "tokens"
	TierFuzzy  Tier = "fuzzy"
	TierNone   Tier = "none"
)

const (
	acceptRatio  = 0.92
	marginRatio  = 0.03
	quickFloor   = 0.80
	quickTopN    = 20
	fallbackScan = 200
)

// Candidate is a rejected near-match surfaced for manual review.
type Candidate struct {
	Company string
	Ratio   float64
}

// Result is the outcome of resolving one registry name.
type Result struct {
	Tier       Tier
	Company    string      // ledger spelling, set unless Tier is TierNone
	Candidates []Candidate // best rejected candidates when Tier is TierNone
}

type entry struct {
	key      string
	tokens   map[string]struct{}
	original string
}

// Index is a matcher over one ledger year. Build it once per request; it is
// read-only afterwards.
type Index struct {
	entries []entry
	byKey   map[string][]string
}

// NewIndex indexes the active (non-deleted) companies of a ledger year.
func NewIndex(year ledger.Year) *Index {
	names := make([]string, 0, len(year))
	for name, rec := range year {
		if rec == nil || rec.Deleted {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	idx := &Index{byKey: make(map[string][]string)}
	seen := make(map[string]struct{})
	for _, name := range names {
		key := namenorm.MatchKey(name)
		if key == "" {
			continue
		}
		idx.byKey[key] = append(idx.byKey[key], name)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		idx.entries = append(idx.entries, entry{
			key:      key,
			tokens:   tokenSet(key),
			original: name,
		})
	}
	return idx
}

// Match resolves one registry name against the index.
func (idx *Index) Match(name string) Result {
	key := namenorm.MatchKey(name)
	if key == "" {
		return Result{Tier: TierNone}
	}

	if originals, ok := idx.byKey[key]; ok {
		return Result{Tier: TierExact, Company: chooseOriginal(originals, name)}
	}

	if company, ok := idx.matchTokens(key); ok {
		return Result{Tier: TierTokens, Company: company}
	}

	return idx.matchFuzzy(key)
}

// matchTokens accepts an entry when the significant tokens of one side are a
// subset of the other's, covering abbreviated spellings ("Acme" for "Acme
// Consulting"). Ties break on overlap size, then similarity, then the
// shorter key: when a short name is contained in several longer ones the
// least-decorated spelling is the safest claim.
func (idx *Index) matchTokens(key string) (string, bool) {
	queryTokens := tokenSet(key)
	if len(queryTokens) == 0 {
		return "", false
	}

	best := -1
	bestOverlap := 0
	bestRatio := 0.0
	for i, ent := range idx.entries {
		if len(ent.tokens) == 0 {
			continue
		}
		overlap := intersection(queryTokens, ent.tokens)
		if overlap != len(queryTokens) && overlap != len(ent.tokens) {
			continue
		}
		r := ratio(key, ent.key)
		switch {
		case best < 0,
			overlap > bestOverlap,
			overlap == bestOverlap && r > bestRatio,
			overlap == bestOverlap && r == bestRatio && len(ent.key) < len(idx.entries[best].key):
			best = i
			bestOverlap = overlap
			bestRatio = r
		}
	}
	if best < 0 {
		return "", false
	}
	return idx.entries[best].original, true
}

// matchFuzzy runs full similarity against a bounded candidate set: the top
// candidates by quick upper-bound ratio, or a fixed-size prefix of the index
// when nothing clears the quick floor. A match is accepted only when it is
// both high (>= 0.92) and clearly separated from the runner-up (>= 0.03);
// otherwise the best rejected candidates are returned for manual review.
func (idx *Index) matchFuzzy(key string) Result {
	type scored struct {
		i int
		r float64
	}

	quick := make([]scored, 0, len(idx.entries))
	for i, ent := range idx.entries {
		if q := quickRatio(key, ent.key); q >= quickFloor {
			quick = append(quick, scored{i, q})
		}
	}

	var pool []int
	if len(quick) > 0 {
		sort.SliceStable(quick, func(a, b int) bool { return quick[a].r > quick[b].r })
		if len(quick) > quickTopN {
			quick = quick[:quickTopN]
		}
		for _, s := range quick {
			pool = append(pool, s.i)
		}
	} else {
		limit := len(idx.entries)
		if limit > fallbackScan {
			limit = fallbackScan
		}
		for i := 0; i < limit; i++ {
			pool = append(pool, i)
		}
	}

	full := make([]scored, 0, len(pool))
	for _, i := range pool {
		full = append(full, scored{i, ratio(key, idx.entries[i].key)})
	}
	sort.SliceStable(full, func(a, b int) bool { return full[a].r > full[b].r })

	if len(full) > 0 {
		best := full[0]
		margin := best.r
		if len(full) > 1 {
			margin = best.r - full[1].r
		}
		if best.r >= acceptRatio && margin >= marginRatio {
			return Result{Tier: TierFuzzy, Company: idx.entries[best.i].original}
		}
	}

	result := Result{Tier: TierNone}
	for i := 0; i < len(full) && i < 3; i++ {
		result.Candidates = append(result.Candidates, Candidate{
			Company: idx.entries[full[i].i].original,
			Ratio:   full[i].r,
		})
	}
	return result
}

// chooseOriginal picks among several ledger spellings sharing the same
// normalized key, preferring the one closest to the query's raw form.
func chooseOriginal(originals []string, name string) string {
	if len(originals) == 1 {
		return originals[0]
	}
	best := originals[0]
	bestRatio := ratio(strings.TrimSpace(name), best)
	for _, original := range originals[1:] {
		if r := ratio(strings.TrimSpace(name), original); r > bestRatio {
			best = original
			bestRatio = r
		}
	}
	return best
}

func tokenSet(key string) map[string]struct{} {
	tokens := namenorm.Tokens(key)
	set := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		set[token] = struct{}{}
	}
	return set
}

func intersection(a, b map[string]struct{}) int {
	if len(b) < len(a) {
		a, b = b, a
	}
	n := 0
	for token := range a {
		if _, ok := b[token]; ok {
			n++
		}
	}
	return n
}

func ratio(a, b string) float64 {
	return difflib.NewMatcher(splitChars(a), splitChars(b)).Ratio()
}

func quickRatio(a, b string) float64 {
	return difflib.NewMatcher(splitChars(a), splitChars(b)).QuickRatio()
}

func splitChars(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
