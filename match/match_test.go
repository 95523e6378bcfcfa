package match

import (
	"testing"

	"timeledger/ledger"
)

func yearWith(names ...string) ledger.Year {
	year := make(ledger.Year, len(names))
	for _, name := range names {
		year[name] = &ledger.Record{Months: map[int]int{1: 60}}
	}
	return year
}

func TestMatchExact(t *testing.T) {
	t.Parallel()

	idx := NewIndex(yearWith("Acme, Lda", "Beta SA"))

	result := idx.Match("ACME LDA")
	if result.Tier != TierExact {
		t.Fatalf("expected exact tier, got %v", result.Tier)
	}
	if result.Company != "Acme, Lda" {
		t.Fatalf("expected original ledger spelling, got %q", result.Company)
	}
}

func TestMatchSkipsDeleted(t *testing.T) {
	t.Parallel()

	year := yearWith("Acme, Lda")
	year["Acme, Lda"].Deleted = true
	idx := NewIndex(year)

	if result := idx.Match("Acme, Lda"); result.Tier != TierNone {
		t.Fatalf("deleted companies must not match, got %v", result.Tier)
	}
}

func TestMatchTokenInclusion(t *testing.T) {
	t.Parallel()

	idx := NewIndex(yearWith("Acme Consulting, Lda", "Beta SA"))

	// The registry's short form is contained in the ledger's long form.
	result := idx.Match("Acme Consulting")
	if result.Tier != TierExact && result.Tier != TierTokens {
		t.Fatalf("expected a match, got %v", result.Tier)
	}

	result = idx.Match("Acme Consulting Unipessoal Lda")
	if result.Tier != TierTokens {
		t.Fatalf("expected token tier, got %v", result.Tier)
	}
	if result.Company != "Acme Consulting, Lda" {
		t.Fatalf("unexpected company: %q", result.Company)
	}
}

func TestMatchTokenTieBreaksToShorterKey(t *testing.T) {
	t.Parallel()

	idx := NewIndex(yearWith("Gamma", "Gamma Serviços II"))

	result := idx.Match("Gamma, Lda")
	if result.Tier != TierTokens {
		t.Fatalf("expected token tier, got %v", result.Tier)
	}
	if result.Company != "Gamma" {
		t.Fatalf("ties must prefer the least-decorated spelling, got %q", result.Company)
	}
}

func TestMatchFuzzyAcceptsCloseTypo(t *testing.T) {
	t.Parallel()

	idx := NewIndex(yearWith("Transportes Figueiredo", "Beta SA"))

	result := idx.Match("Transportes Figueireddo")
	if result.Tier != TierFuzzy {
		t.Fatalf("expected fuzzy tier, got %v (candidates %v)", result.Tier, result.Candidates)
	}
	if result.Company != "Transportes Figueiredo" {
		t.Fatalf("unexpected company: %q", result.Company)
	}
}

func TestMatchFuzzyRejectsNearTie(t *testing.T) {
	t.Parallel()

	// Two ledger entries one character apart: any query close to both lacks
	// the separation margin and must surface candidates instead of guessing.
	idx := NewIndex(yearWith("Construcoes Almeida I", "Construcoes Almeida J"))

	result := idx.Match("Construcoes Almeida X")
	if result.Tier != TierNone {
		t.Fatalf("expected no match, got %v -> %q", result.Tier, result.Company)
	}
	if len(result.Candidates) == 0 {
		t.Fatalf("expected rejected candidates for manual review")
	}
}

func TestMatchRejectsDistantNames(t *testing.T) {
	t.Parallel()

	idx := NewIndex(yearWith("Acme, Lda"))

	if result := idx.Match("Totally Different Business"); result.Tier != TierNone {
		t.Fatalf("expected no match, got %v -> %q", result.Tier, result.Company)
	}
}

func TestMatchEmptyQuery(t *testing.T) {
	t.Parallel()

	idx := NewIndex(yearWith("Acme, Lda"))
	if result := idx.Match("   "); result.Tier != TierNone {
		t.Fatalf("expected no match for blank input, got %v", result.Tier)
	}
}
