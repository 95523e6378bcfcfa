package importer

// FactKind tags how a parsed fact attributes its minutes.
type FactKind int

const (
	// FactSummary carries company-level minutes with no technician detail.
	FactSummary FactKind = iota
	// FactKnown carries minutes resolved to a canonical technician.
	FactKnown
	// FactSpecial carries minutes logged under the special identity; the
	// real technician is inferred from the client registry at apply time.
	FactSpecial
)

// Fact is one raw observation extracted from a sheet: minutes worked for a
// company, possibly attributed to a technician.
type Fact struct {
	Company    string
	CompanyKey string
	Kind       FactKind
	Technician string // canonical name, set only for FactKnown
	Minutes    int
}

// Diagnostics aggregates the per-sheet findings that are reported instead of
// merged: unknown technician spellings, minutes dropped with them, and
// summary rows ignored because per-technician detail was present.
type Diagnostics struct {
	UnknownTechnicians map[string]int
	IgnoredByCompany   map[string]int
	IgnoredSummaries   map[string]int
}

func newDiagnostics() *Diagnostics {
	return &Diagnostics{
		UnknownTechnicians: make(map[string]int),
		IgnoredByCompany:   make(map[string]int),
		IgnoredSummaries:   make(map[string]int),
	}
}

func (d *Diagnostics) unknownTechnician(name, company string, minutes int) {
	d.UnknownTechnicians[name] += minutes
	d.IgnoredByCompany[company] += minutes
}

func (d *Diagnostics) ignoredSummary(company string, minutes int) {
	d.IgnoredByCompany[company] += minutes
	d.IgnoredSummaries[company] += minutes
}

func (d *Diagnostics) merge(other *Diagnostics) {
	for name, minutes := range other.UnknownTechnicians {
		d.UnknownTechnicians[name] += minutes
	}
	for company, minutes := range other.IgnoredByCompany {
		d.IgnoredByCompany[company] += minutes
	}
	for company, minutes := range other.IgnoredSummaries {
		d.IgnoredSummaries[company] += minutes
	}
}
