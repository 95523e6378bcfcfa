package importer

import (
	"encoding/json"
	"fmt"
	"os"
)

// Report is the diagnostics file written after an import so that unresolved
// names and suppressed minutes can be followed up manually.
type Report struct {
	Files                 []string       `json:"files"`
	UnknownTechnicians    map[string]int `json:"unknown_technicians"`
	IgnoredByCompany      map[string]int `json:"ignored_minutes_by_company"`
	IgnoredSummaries      map[string]int `json:"ignored_summary_minutes_by_company"`
	DuplicatesByCompany   map[string]int `json:"duplicate_minutes_by_company"`
	DuplicateMinutesTotal int            `json:"duplicate_minutes_total"`
	UninferredSpecial     map[string]int `json:"uninferred_special_minutes_by_company"`
}

// NewReport seeds a report from a deduplicated batch.
func NewReport(files []string, batch *Batch) *Report {
	return &Report{
		Files:                 files,
		UnknownTechnicians:    batch.Diagnostics.UnknownTechnicians,
		IgnoredByCompany:      batch.Diagnostics.IgnoredByCompany,
		IgnoredSummaries:      batch.Diagnostics.IgnoredSummaries,
		DuplicatesByCompany:   batch.DuplicatesByCompany,
		DuplicateMinutesTotal: batch.DuplicateMinutes,
		UninferredSpecial:     make(map[string]int),
	}
}

// HasFindings reports whether anything needs manual follow-up.
func (r *Report) HasFindings() bool {
	return len(r.UnknownTechnicians) > 0 ||
		len(r.IgnoredByCompany) > 0 ||
		len(r.IgnoredSummaries) > 0 ||
		len(r.DuplicatesByCompany) > 0 ||
		len(r.UninferredSpecial) > 0
}

// Write persists the report as indented JSON.
func (r *Report) Write(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal import report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write import report %s: %w", path, err)
	}
	return nil
}
