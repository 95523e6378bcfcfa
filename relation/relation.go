// Package relation joins the client registry with the ledger into the
// per-client workload report: how much time each client actually consumes
// against what its monthly fee pays for.
package relation

import (
	"math"
	"sort"
	"strings"

	"timeledger/internal/timeparse"
	"timeledger/ledger"
	"timeledger/match"
	"timeledger/registry"
)

// Quality flags surfaced per row for manual data cleanup.
const (
	FlagNoTechnician = "No technician"
	FlagNoFee        = "No monthly fee"
	FlagNoLedger     = "No ledger entry"
)

// Row is one client's line in the relation report.
type Row struct {
	Name       string
	VATNumber  string
	Technician string
	MonthlyFee float64

	MatchTier     match.Tier
	LedgerCompany string
	Candidates    []match.Candidate

	AverageMinutes int
	AverageLabel   string

	Quality []string
}

// Capacity is the fee-derived time budget of one row.
type Capacity struct {
	MaxMinutes int
	CutMinutes int
	MaxLabel   string
	CutLabel   string
}

// BuildRows produces the report rows for one year, ordered by technician and
// then name, with technician-less clients last.
func BuildRows(clients []registry.Client, year ledger.Year) []Row {
	idx := match.NewIndex(year)

	rows := make([]Row, 0, len(clients))
	for _, c := range clients {
		row := Row{
			Name:       strings.TrimSpace(c.Name),
			VATNumber:  strings.TrimSpace(c.VATNumber),
			Technician: strings.TrimSpace(c.Technician),
			MonthlyFee: c.MonthlyFee,
		}

		result := idx.Match(row.Name)
		row.MatchTier = result.Tier
		row.LedgerCompany = result.Company
		row.Candidates = result.Candidates

		if rec := year[result.Company]; result.Tier != match.TierNone && rec != nil {
			row.AverageMinutes = rec.MonthlyAverage()
		}
		row.AverageLabel = timeparse.FormatMinutes(row.AverageMinutes)

		if row.Technician == "" {
			row.Quality = append(row.Quality, FlagNoTechnician)
		}
		if row.MonthlyFee <= 0 {
			row.Quality = append(row.Quality, FlagNoFee)
		}
		if row.MatchTier == match.TierNone {
			row.Quality = append(row.Quality, FlagNoLedger)
		}

		rows = append(rows, row)
	}

	sortRows(rows)
	return rows
}

// sortRows orders by technician then name; clients without a technician sink
// to the bottom so the cleanup work is grouped together.
func sortRows(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if (a.Technician == "") != (b.Technician == "") {
			return a.Technician != ""
		}
		at, bt := strings.ToLower(a.Technician), strings.ToLower(b.Technician)
		if at != bt {
			return at < bt
		}
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	})
}

// ComputeCapacity derives the fee-funded time budget of a row: the fee
// divided by the hourly rate gives the maximum billable minutes per month,
// and anything the client consumes beyond that is time to cut.
func ComputeCapacity(row Row, hourlyRate float64) Capacity {
	maxMinutes := 0
	if hourlyRate > 0 && row.MonthlyFee > 0 {
		maxMinutes = int(math.Round(row.MonthlyFee / hourlyRate * 60))
	}
	cut := row.AverageMinutes - maxMinutes
	if cut < 0 {
		cut = 0
	}
	return Capacity{
		MaxMinutes: maxMinutes,
		CutMinutes: cut,
		MaxLabel:   timeparse.FormatMinutes(maxMinutes),
		CutLabel:   timeparse.FormatMinutes(cut),
	}
}

// Totals sums the report for its footer line.
type Totals struct {
	AverageMinutes int
	MaxMinutes     int
	CutMinutes     int
	AverageLabel   string
	MaxLabel       string
	CutLabel       string
}

// ComputeTotals aggregates every row at the given hourly rate.
func ComputeTotals(rows []Row, hourlyRate float64) Totals {
	var t Totals
	for _, row := range rows {
		budget := ComputeCapacity(row, hourlyRate)
		t.AverageMinutes += row.AverageMinutes
		t.MaxMinutes += budget.MaxMinutes
		t.CutMinutes += budget.CutMinutes
	}
	t.AverageLabel = timeparse.FormatMinutes(t.AverageMinutes)
	t.MaxLabel = timeparse.FormatMinutes(t.MaxMinutes)
	t.CutLabel = timeparse.FormatMinutes(t.CutMinutes)
	return t
}

// Technicians lists the distinct technician names present, sorted, for
// filter dropdowns.
func Technicians(rows []Row) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, row := range rows {
		if row.Technician == "" {
			continue
		}
		if _, ok := seen[row.Technician]; ok {
			continue
		}
		seen[row.Technician] = struct{}{}
		out = append(out, row.Technician)
	}
	sort.Strings(out)
	return out
}

// Filter keeps the rows matching a technician and/or a case-insensitive
// search over name, VAT number and technician.
func Filter(rows []Row, technicianFilter, search string) []Row {
	term := strings.ToLower(strings.TrimSpace(search))
	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		if technicianFilter != "" && row.Technician != technicianFilter {
			continue
		}
		if term != "" {
			blob := strings.ToLower(row.Name + " " + row.VATNumber + " " + row.Technician)
			if !strings.Contains(blob, term) {
				continue
			}
		}
		out = append(out, row)
	}
	return out
}
