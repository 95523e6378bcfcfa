package importer

import "timeledger/namenorm"

// Batch is the deduplicated outcome of one import upload: the unique facts
// to apply, the first-seen display spelling per company, and the duplicates
// that were suppressed.
type Batch struct {
	Facts               []Fact
	DisplayNames        map[string]string // company key -> first-seen spelling
	DuplicatesByCompany map[string]int    // display name -> suppressed minutes
	DuplicateMinutes    int
	Diagnostics         *Diagnostics
}

type dedupKey struct {
	company    string
	technician string
	month      int
	minutes    int
}

const (
	specialKey = "__special__"
	summaryKey = "__summary__"
)

// Deduplicate collapses repeated facts across all workbooks of one import.
// Two facts are the same observation only when company, attributed identity
// and minute count all match; the same company/technician pair with a
// different minute value is a distinct legitimate entry. Spreadsheets are
// routinely re-uploaded with overlapping sheets — without this guard the
// ledger would double on every re-import.
func Deduplicate(parses []*ParseResult, month int) *Batch {
	batch := &Batch{
		DisplayNames:        make(map[string]string),
		DuplicatesByCompany: make(map[string]int),
		Diagnostics:         newDiagnostics(),
	}
	seen := make(map[dedupKey]struct{})

	for _, parsed := range parses {
		if parsed == nil {
			continue
		}
		batch.Diagnostics.merge(parsed.Diagnostics)

		for _, fact := range parsed.Facts {
			if fact.Minutes <= 0 || fact.CompanyKey == "" {
				continue
			}
			if _, ok := batch.DisplayNames[fact.CompanyKey]; !ok {
				batch.DisplayNames[fact.CompanyKey] = fact.Company
			}

			key := dedupKey{
				company:    fact.CompanyKey,
				technician: technicianKey(fact),
				month:      month,
				minutes:    fact.Minutes,
			}
			if _, dup := seen[key]; dup {
				display := batch.DisplayNames[fact.CompanyKey]
				batch.DuplicatesByCompany[display] += fact.Minutes
				batch.DuplicateMinutes += fact.Minutes
				continue
			}
			seen[key] = struct{}{}
			batch.Facts = append(batch.Facts, fact)
		}
	}

	return batch
}

func technicianKey(fact Fact) string {
	switch fact.Kind {
	case FactKnown:
		return namenorm.Person(fact.Technician)
	case FactSpecial:
		return specialKey
	default:
		return summaryKey
	}
}
