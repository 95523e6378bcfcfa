package web

import (
	"sort"

	"timeledger/internal/timeparse"
	"timeledger/ledger"
)

// CompanyRow is one company's line in the yearly grid.
type CompanyRow struct {
	Name           string
	Months         [12]int
	MonthLabels    [12]string
	TotalMinutes   int
	TotalLabel     string
	ExtraMonthly   int
	ExtraLabel     string
	AverageMinutes int
	AverageLabel   string
	Technicians    []TechnicianShare
}

// TechnicianShare is one technician's yearly share of a company's time.
type TechnicianShare struct {
	Name    string
	Minutes int
	Label   string
}

// YearView is the full grid for one ledger year.
type YearView struct {
	Rows         []CompanyRow
	TotalMinutes int
	TotalLabel   string
}

// BuildYearView turns a ledger year into display rows, hiding soft-deleted
// companies and sorting by name.
func BuildYearView(year ledger.Year) YearView {
	names := make([]string, 0, len(year))
	for name, rec := range year {
		if rec == nil || rec.Deleted {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	view := YearView{Rows: make([]CompanyRow, 0, len(names))}
	for _, name := range names {
		rec := year[name]
		row := CompanyRow{
			Name:         name,
			ExtraMonthly: rec.ExtraMonthly,
			ExtraLabel:   timeparse.FormatMinutes(rec.ExtraMonthly),
		}
		for month := 1; month <= 12; month++ {
			minutes := rec.Months[month]
			row.Months[month-1] = minutes
			if minutes > 0 {
				row.MonthLabels[month-1] = timeparse.FormatMinutes(minutes)
			}
		}
		row.TotalMinutes = rec.TotalMinutes()
		row.TotalLabel = timeparse.FormatMinutes(row.TotalMinutes)
		row.AverageMinutes = rec.MonthlyAverage()
		row.AverageLabel = timeparse.FormatMinutes(row.AverageMinutes)
		row.Technicians = buildShares(rec)

		view.TotalMinutes += row.TotalMinutes
		view.Rows = append(view.Rows, row)
	}
	view.TotalLabel = timeparse.FormatMinutes(view.TotalMinutes)
	return view
}

func buildShares(rec *ledger.Record) []TechnicianShare {
	if len(rec.ByTechnician) == 0 {
		return nil
	}
	names := make([]string, 0, len(rec.ByTechnician))
	for name := range rec.ByTechnician {
		names = append(names, name)
	}
	sort.Strings(names)

	shares := make([]TechnicianShare, 0, len(names))
	for _, name := range names {
		total := 0
		for _, minutes := range rec.ByTechnician[name] {
			total += minutes
		}
		if total <= 0 {
			continue
		}
		shares = append(shares, TechnicianShare{
			Name:    name,
			Minutes: total,
			Label:   timeparse.FormatMinutes(total),
		})
	}
	return shares
}
