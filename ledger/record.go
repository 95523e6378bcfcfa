// Package ledger owns the durable per-year, per-company time aggregate: its
// on-disk representation, format migrations and every mutating operation.
package ledger

// Record is one company's yearly time data. Months holds integer minutes
// keyed 1..12; ExtraMonthly is a recurring addend applied to every month
// (fixed retainer work not tied to a specific week); ByTechnician is a
// coarse attribution breakdown, additive but never authoritative over
// Months. Deleted is a soft flag: the record stays for audit and to keep a
// re-import from reviving it under a different spelling.
type Record struct {
	Months       map[int]int            `json:"months"`
	ExtraMonthly int                    `json:"extra_monthly"`
	Deleted      bool                   `json:"deleted"`
	ByTechnician map[string]map[int]int `json:"by_technician,omitempty"`
}

// Year maps a company display name to its record.
type Year map[string]*Record

func newRecord() *Record {
	return &Record{Months: make(map[int]int)}
}

// TotalMinutes is the record's yearly volume: all months plus twelve times
// the recurring extra.
func (r *Record) TotalMinutes() int {
	total := 0
	for _, minutes := range r.Months {
		if minutes > 0 {
			total += minutes
		}
	}
	return total + r.ExtraMonthly*12
}

// MonthlyAverage is the record's average monthly load in minutes:
// (sum of months / 12) + recurring extra, rounded.
func (r *Record) MonthlyAverage() int {
	total := 0
	for _, minutes := range r.Months {
		if minutes > 0 {
			total += minutes
		}
	}
	avg := (total + 6) / 12
	avg += r.ExtraMonthly
	if avg < 0 {
		return 0
	}
	return avg
}

// ImportFact is one resolved observation ready to be merged: minutes for a
// company, optionally attributed to a canonical technician.
type ImportFact struct {
	CompanyKey  string
	CompanyName string
	Technician  string // empty for company-level minutes
	Minutes     int
}
