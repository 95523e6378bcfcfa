package importer

import (
	"fmt"
	"os"

	"timeledger/ledger"
	"timeledger/technician"
)

// InferTechnician resolves the special identity's real attribution for a
// company key, typically from the client registry's recorded primary
// technician. An empty result means inference failed.
type InferTechnician func(companyKey string) string

// ResolveBatch converts deduplicated facts into ledger import facts. Special
// facts are attributed via infer; when inference fails their minutes still
// count toward the company total but stay unattributed, and the failure is
// recorded on the report.
func ResolveBatch(batch *Batch, infer InferTechnician, report *Report) []ledger.ImportFact {
	facts := make([]ledger.ImportFact, 0, len(batch.Facts))

	for _, fact := range batch.Facts {
		display := batch.DisplayNames[fact.CompanyKey]
		if display == "" {
			display = fact.Company
		}

		out := ledger.ImportFact{
			CompanyKey:  fact.CompanyKey,
			CompanyName: display,
			Minutes:     fact.Minutes,
		}

		switch fact.Kind {
		case FactKnown:
			out.Technician = fact.Technician
		case FactSpecial:
			inferred := ""
			if infer != nil {
				inferred = infer(fact.CompanyKey)
			}
			if inferred == "" {
				report.UninferredSpecial[display] += fact.Minutes
			}
			out.Technician = inferred
		}

		facts = append(facts, out)
	}

	return facts
}

// Result summarizes one full import run.
type Result struct {
	FilesProcessed int
	FactsApplied   int
	Report         *Report
}

// Run parses every workbook, deduplicates across them, resolves special
// attributions and merges the batch into the ledger as the authoritative
// data for (year, month).
func Run(paths []string, year, month int, resolver *technician.Resolver, store *ledger.Store, infer InferTechnician) (*Result, error) {
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("month must be 1..12, got %d", month)
	}

	parser := NewParser(resolver)
	parses := make([]*ParseResult, 0, len(paths))
	names := make([]string, 0, len(paths))

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read workbook %s: %w", path, err)
		}
		if len(data) == 0 {
			continue
		}
		parsed, err := parser.ParseWorkbook(data)
		if err != nil {
			return nil, fmt.Errorf("parse workbook %s: %w", path, err)
		}
		parses = append(parses, parsed)
		names = append(names, path)
	}

	batch := Deduplicate(parses, month)
	report := NewReport(names, batch)
	facts := ResolveBatch(batch, infer, report)

	if len(facts) > 0 {
		if err := store.ApplyImport(year, month, facts); err != nil {
			return nil, err
		}
	}

	return &Result{
		FilesProcessed: len(names),
		FactsApplied:   len(facts),
		Report:         report,
	}, nil
}
