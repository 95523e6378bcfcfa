package importer

import (
	"testing"
)

func TestDeduplicateAcrossFiles(t *testing.T) {
	t.Parallel()

	first := &ParseResult{
		Diagnostics: newDiagnostics(),
		Facts: []Fact{
			{Company: "Acme, Lda", CompanyKey: "acme", Kind: FactKnown, Technician: "Pedro Almeida", Minutes: 150},
			{Company: "Acme, Lda", CompanyKey: "acme", Kind: FactKnown, Technician: "Pedro Almeida", Minutes: 60},
			{Company: "Beta SA", CompanyKey: "beta", Kind: FactSummary, Minutes: 90},
		},
	}
	second := &ParseResult{
		Diagnostics: newDiagnostics(),
		Facts: []Fact{
			// Same observation under a different company spelling: suppressed.
			{Company: "ACME LDA", CompanyKey: "acme", Kind: FactKnown, Technician: "Pedro Almeida", Minutes: 150},
			// Same pair but different minutes: a distinct legitimate entry.
			{Company: "ACME LDA", CompanyKey: "acme", Kind: FactKnown, Technician: "Pedro Almeida", Minutes: 30},
			{Company: "Beta SA", CompanyKey: "beta", Kind: FactSummary, Minutes: 90},
		},
	}

	batch := Deduplicate([]*ParseResult{first, second}, 3)

	if len(batch.Facts) != 4 {
		t.Fatalf("expected 4 unique facts, got %d: %+v", len(batch.Facts), batch.Facts)
	}
	if batch.DuplicateMinutes != 240 {
		t.Fatalf("expected 240 duplicate minutes, got %d", batch.DuplicateMinutes)
	}
	if got := batch.DuplicatesByCompany["Acme, Lda"]; got != 150 {
		t.Fatalf("expected 150 duplicate minutes for Acme, got %d", got)
	}
	if got := batch.DuplicatesByCompany["Beta SA"]; got != 90 {
		t.Fatalf("expected 90 duplicate minutes for Beta, got %d", got)
	}
	if batch.DisplayNames["acme"] != "Acme, Lda" {
		t.Fatalf("expected first-seen spelling, got %q", batch.DisplayNames["acme"])
	}
}

func TestDeduplicateSkipsEmptyFacts(t *testing.T) {
	t.Parallel()

	parse := &ParseResult{
		Diagnostics: newDiagnostics(),
		Facts: []Fact{
			{Company: "Acme", CompanyKey: "acme", Kind: FactSummary, Minutes: 0},
			{Company: "Nameless", CompanyKey: "", Kind: FactSummary, Minutes: 60},
		},
	}

	batch := Deduplicate([]*ParseResult{parse}, 1)
	if len(batch.Facts) != 0 {
		t.Fatalf("expected no facts, got %+v", batch.Facts)
	}
}

func TestResolveBatchInfersSpecial(t *testing.T) {
	t.Parallel()

	batch := &Batch{
		DisplayNames: map[string]string{"acme": "Acme, Lda", "beta": "Beta SA"},
		Facts: []Fact{
			{Company: "Acme, Lda", CompanyKey: "acme", Kind: FactSpecial, Minutes: 60},
			{Company: "Beta SA", CompanyKey: "beta", Kind: FactSpecial, Minutes: 30},
			{Company: "Beta SA", CompanyKey: "beta", Kind: FactKnown, Technician: "Pedro Almeida", Minutes: 45},
		},
		Diagnostics: newDiagnostics(),
	}
	report := NewReport(nil, batch)

	infer := func(companyKey string) string {
		if companyKey == "acme" {
			return "Ana Rodrigues"
		}
		return ""
	}

	facts := ResolveBatch(batch, infer, report)
	if len(facts) != 3 {
		t.Fatalf("expected 3 facts, got %d", len(facts))
	}
	if facts[0].Technician != "Ana Rodrigues" {
		t.Fatalf("expected inferred technician, got %q", facts[0].Technician)
	}
	if facts[1].Technician != "" {
		t.Fatalf("expected unattributed minutes, got %q", facts[1].Technician)
	}
	if got := report.UninferredSpecial["Beta SA"]; got != 30 {
		t.Fatalf("expected 30 uninferred minutes for Beta, got %d", got)
	}
	if facts[1].Minutes != 30 {
		t.Fatalf("uninferred minutes must still count toward the company, got %d", facts[1].Minutes)
	}
}
