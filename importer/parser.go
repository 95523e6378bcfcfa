package importer

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"timeledger/internal/timeparse"
	"timeledger/namenorm"
	"timeledger/technician"
)

// Header synonyms observed across the firm's spreadsheet exports. Compared
// after namenorm.Header, so case, accents and punctuation do not matter.
var (
	companyHeaders = map[string]struct{}{
		"company": {}, "client": {}, "client company": {}, "company client": {},
		"company name": {}, "client name": {},
		"empresa": {}, "cliente": {}, "cliente empresa": {}, "empresa cliente": {},
		"designacao": {}, "designacao social": {}, "nome cliente": {}, "cliente nome": {},
	}
	technicianHeaders = map[string]struct{}{
		"technician": {}, "responsible": {}, "responsible technician": {}, "staff": {},
		"tecnico": {}, "tecnica": {}, "tecnico responsavel": {},
		"responsavel": {}, "responsavel tecnico": {}, "colaborador": {},
	}
	durationHeaders = map[string]struct{}{
		"time": {}, "hours": {}, "total hours": {}, "minutes": {}, "total minutes": {},
		"duration": {}, "duration minutes": {}, "duration m": {},
		"tempo": {}, "horas": {}, "horas totais": {}, "tempo m": {}, "tempo min": {},
		"tempo minutos": {}, "minutos": {}, "duracao": {}, "duracao minutos": {},
	}
)

var totalMarkers = []string{"total", "subtotal", "grand total", "soma", "sum"}

// isTotalMarker reports whether a cell is a report artifact (total/subtotal
// row) rather than data.
func isTotalMarker(text string) bool {
	norm := namenorm.Header(text)
	if norm == "" {
		return false
	}
	for _, marker := range totalMarkers {
		if strings.Contains(norm, marker) {
			return true
		}
	}
	return false
}

// ParseResult holds everything extracted from one workbook.
type ParseResult struct {
	Facts       []Fact
	Diagnostics *Diagnostics
}

// Parser reads uploaded workbooks under the two supported physical layouts.
type Parser struct {
	resolver *technician.Resolver
}

func NewParser(resolver *technician.Resolver) *Parser {
	return &Parser{resolver: resolver}
}

// ParseWorkbook extracts raw facts from every sheet. Per sheet, the tabular
// detector runs first; only when no valid header row exists does the legacy
// indented-workload detector take over.
func (p *Parser) ParseWorkbook(data []byte) (*ParseResult, error) {
	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer file.Close()

	result := &ParseResult{Diagnostics: newDiagnostics()}

	for _, sheet := range file.GetSheetList() {
		rows, err := file.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read rows from sheet %s: %w", sheet, err)
		}

		facts, fallback, ok := p.parseTabular(rows, result.Diagnostics)
		if !ok {
			facts, fallback = p.parseWorkload(rows, result.Diagnostics)
		}

		for _, fact := range facts {
			if fact.Minutes <= 0 {
				continue
			}
			fact.CompanyKey = namenorm.Company(fact.Company)
			if fact.CompanyKey == "" {
				continue
			}
			result.Facts = append(result.Facts, fact)
		}

		for _, company := range sortedKeys(fallback) {
			minutes := fallback[company]
			if minutes <= 0 {
				continue
			}
			key := namenorm.Company(company)
			if key == "" {
				continue
			}
			result.Facts = append(result.Facts, Fact{
				Company:    company,
				CompanyKey: key,
				Kind:       FactSummary,
				Minutes:    minutes,
			})
		}
	}

	return result, nil
}

// parseTabular reads a sheet laid out as (company, technician, duration)
// columns below a header row. Returns ok=false when no header row is found.
func (p *Parser) parseTabular(rows [][]string, diag *Diagnostics) ([]Fact, map[string]int, bool) {
	companyCol, technicianCol, durationCol := -1, -1, -1
	headerRow := -1

	for i, row := range rows {
		for col, cell := range row {
			name := namenorm.Header(cell)
			if name == "" {
				continue
			}
			if _, ok := companyHeaders[name]; ok && companyCol < 0 {
				companyCol = col
			}
			if _, ok := technicianHeaders[name]; ok && technicianCol < 0 {
				technicianCol = col
			}
			if _, ok := durationHeaders[name]; ok && durationCol < 0 {
				durationCol = col
			}
		}
		if companyCol >= 0 && technicianCol >= 0 && durationCol >= 0 {
			headerRow = i
			break
		}
	}
	if headerRow < 0 {
		return nil, nil, false
	}

	detailByCompany := make(map[string][]Fact)
	summaryByCompany := make(map[string]int)
	companyOrder := make([]string, 0, 16)

	seen := func(company string) {
		if _, ok := detailByCompany[company]; ok {
			return
		}
		if _, ok := summaryByCompany[company]; ok {
			return
		}
		companyOrder = append(companyOrder, company)
	}

	for _, row := range rows[headerRow+1:] {
		company := cellAt(row, companyCol)
		if company == "" || isTotalMarker(company) {
			continue
		}

		minutes := timeparse.ParseDuration(cellAt(row, durationCol))
		if minutes <= 0 {
			continue
		}

		rawTechnician := cellAt(row, technicianCol)
		if rawTechnician == "" {
			seen(company)
			summaryByCompany[company] += minutes
			continue
		}

		cls := p.resolver.Resolve(rawTechnician)
		if cls.Kind == technician.Unknown {
			if !isTotalMarker(rawTechnician) {
				diag.unknownTechnician(rawTechnician, company, minutes)
			}
			continue
		}

		seen(company)
		detailByCompany[company] = append(detailByCompany[company], Fact{
			Company:    company,
			Kind:       factKind(cls),
			Technician: cls.Canonical,
			Minutes:    minutes,
		})
	}

	facts := make([]Fact, 0, len(companyOrder))
	fallback := make(map[string]int)

	for _, company := range companyOrder {
		detail := detailByCompany[company]
		if len(detail) > 0 {
			// Detail rows are authoritative; an inline summary for the
			// same company would double-count the month.
			if summary := summaryByCompany[company]; summary > 0 {
				diag.ignoredSummary(company, summary)
			}
			facts = append(facts, detail...)
			continue
		}
		if summary := summaryByCompany[company]; summary > 0 {
			fallback[company] += summary
		}
	}

	return facts, fallback, true
}

// parseWorkload reads the legacy layout: a non-indented row opens a company
// block with an optional inline total, indented rows underneath are
// per-technician breakdown lines.
func (p *Parser) parseWorkload(rows [][]string, diag *Diagnostics) ([]Fact, map[string]int) {
	facts := make([]Fact, 0, 32)
	fallback := make(map[string]int)

	var currentCompany string
	var summaryMinutes int
	var companyFacts []Fact

	finishCompany := func() {
		if currentCompany == "" {
			return
		}
		if len(companyFacts) > 0 {
			if summaryMinutes > 0 {
				diag.ignoredSummary(currentCompany, summaryMinutes)
			}
			facts = append(facts, companyFacts...)
		} else if summaryMinutes > 0 {
			fallback[currentCompany] += summaryMinutes
		}
		currentCompany = ""
		summaryMinutes = 0
		companyFacts = nil
	}

	for _, row := range rows {
		first := cellAt(row, 0)
		raw := ""
		if len(row) > 0 {
			raw = row[0]
		}
		if first == "" {
			continue
		}
		upper := strings.ToUpper(first)
		if upper == "EMPRESA" || upper == "COMPANY" || upper == "TOTAL" || isTotalMarker(first) {
			continue
		}
		if strings.Contains(namenorm.Header(first), "mapa de tempo trabalhado") {
			continue
		}

		if strings.HasPrefix(raw, "    ") {
			if currentCompany == "" {
				continue
			}
			minutes := timeparse.ParseDuration(cellAt(row, 1))
			if minutes <= 0 {
				continue
			}
			cls := p.resolver.Resolve(first)
			if cls.Kind == technician.Unknown {
				diag.unknownTechnician(first, currentCompany, minutes)
				continue
			}
			companyFacts = append(companyFacts, Fact{
				Company:    currentCompany,
				Kind:       factKind(cls),
				Technician: cls.Canonical,
				Minutes:    minutes,
			})
			continue
		}

		finishCompany()
		currentCompany = first
		summaryMinutes = timeparse.ParseDuration(cellAt(row, 1))
	}

	finishCompany()

	return facts, fallback
}

func factKind(cls technician.Classification) FactKind {
	if cls.Kind == technician.Inferred {
		return FactSpecial
	}
	return FactKnown
}

func cellAt(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
