// Package web serves a localhost-only single-user UI; it intentionally has no
// auth/CSRF protection in this mode.
package web

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"timeledger/config"
	"timeledger/importer"
	"timeledger/internal/timeparse"
	"timeledger/ledger"
	"timeledger/output"
	"timeledger/registry"
	"timeledger/relation"
	"timeledger/technician"
)

//go:embed templates/*.html
var templateFS embed.FS

// clearConfirmation must be typed into the clear form verbatim; it is the
// only path that bypasses the ledger's drop guard.
const clearConfirmation = "DELETE"

type Server struct {
	store    *ledger.Store
	reg      *registry.Store
	resolver *technician.Resolver
	cfg      config.Config
	log      *zap.Logger
	mux      *http.ServeMux
}

type timingsPageView struct {
	Title string
	Year  int
	Years []int
	View  YearView
}

type relationRowView struct {
	relation.Row
	MaxLabel string
	CutLabel string
	Flags    string
}

type relationPageView struct {
	Title       string
	Year        int
	Years       []int
	Rows        []relationRowView
	Totals      relation.Totals
	Technicians []string
	Technician  string
	Search      string
	HourlyRate  float64
}

func NewServer(store *ledger.Store, reg *registry.Store, resolver *technician.Resolver, cfg config.Config, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	server := &Server{
		store:    store,
		reg:      reg,
		resolver: resolver,
		cfg:      cfg,
		log:      log,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", server.handleIndex)
	mux.HandleFunc("GET /timings", server.handleTimings)
	mux.HandleFunc("POST /timings/import", server.handleImport)
	mux.HandleFunc("POST /timings/average", server.handleAverage)
	mux.HandleFunc("POST /timings/extras", server.handleExtras)
	mux.HandleFunc("POST /timings/delete", server.handleDelete)
	mux.HandleFunc("POST /timings/sync", server.handleSync)
	mux.HandleFunc("POST /timings/clear", server.handleClear)
	mux.HandleFunc("GET /relation", server.handleRelation)
	mux.HandleFunc("GET /relation/export/{format}", server.handleRelationExport)
	server.mux = mux

	return server
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/timings", http.StatusFound)
}

func (s *Server) handleTimings(w http.ResponseWriter, r *http.Request) {
	year := s.yearParam(r)

	view := timingsPageView{
		Title: fmt.Sprintf("timeledger - timings %d", year),
		Year:  year,
		Years: s.yearOptions(year),
		View:  BuildYearView(s.store.Year(year)),
	}
	if err := renderTemplate(w, "timings.html", view); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, fmt.Sprintf("parse multipart form: %v", err), http.StatusBadRequest)
		return
	}

	year, err := strconv.Atoi(strings.TrimSpace(r.FormValue("year")))
	if err != nil {
		http.Error(w, "invalid year", http.StatusBadRequest)
		return
	}
	month, err := strconv.Atoi(strings.TrimSpace(r.FormValue("month")))
	if err != nil || month < 1 || month > 12 {
		http.Error(w, "invalid month (expected 1..12)", http.StatusBadRequest)
		return
	}

	files := r.MultipartForm.File["workbooks"]
	if len(files) == 0 {
		http.Error(w, "no workbooks uploaded", http.StatusBadRequest)
		return
	}

	parser := importer.NewParser(s.resolver)
	parses := make([]*importer.ParseResult, 0, len(files))
	names := make([]string, 0, len(files))
	for _, header := range files {
		file, err := header.Open()
		if err != nil {
			http.Error(w, fmt.Sprintf("open upload %s: %v", header.Filename, err), http.StatusBadRequest)
			return
		}
		data, err := io.ReadAll(file)
		_ = file.Close()
		if err != nil {
			http.Error(w, fmt.Sprintf("read upload %s: %v", header.Filename, err), http.StatusBadRequest)
			return
		}
		parsed, err := parser.ParseWorkbook(data)
		if err != nil {
			http.Error(w, fmt.Sprintf("parse workbook %s: %v", header.Filename, err), http.StatusBadRequest)
			return
		}
		parses = append(parses, parsed)
		names = append(names, header.Filename)
	}

	batch := importer.Deduplicate(parses, month)
	report := importer.NewReport(names, batch)
	facts := importer.ResolveBatch(batch, s.inferTechnician(), report)

	if len(facts) > 0 {
		if err := s.store.ApplyImport(year, month, facts); err != nil {
			s.writeSaveError(w, err)
			return
		}
	}

	if err := report.Write(s.cfg.Ledger.ReportFile); err != nil {
		s.log.Warn("write import report", zap.Error(err))
	}
	s.log.Info("import applied",
		zap.Int("year", year),
		zap.Int("month", month),
		zap.Int("files", len(names)),
		zap.Int("facts", len(facts)))

	s.redirectToTimings(w, r, year)
}

func (s *Server) handleAverage(w http.ResponseWriter, r *http.Request) {
	year := s.yearForm(r)
	company := strings.TrimSpace(r.FormValue("company"))
	if company == "" {
		http.Error(w, "company is required", http.StatusBadRequest)
		return
	}
	minutes := timeparse.ParseDuration(r.FormValue("value"))
	if minutes <= 0 {
		http.Error(w, "value must be a positive duration", http.StatusBadRequest)
		return
	}

	if err := s.store.SetAverage(year, company, minutes); err != nil {
		s.writeSaveError(w, err)
		return
	}
	s.redirectToTimings(w, r, year)
}

func (s *Server) handleExtras(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, fmt.Sprintf("parse form: %v", err), http.StatusBadRequest)
		return
	}
	year := s.yearForm(r)

	companies := r.PostForm["company"]
	values := r.PostForm["value"]
	if len(companies) != len(values) {
		http.Error(w, "company/value fields must pair up", http.StatusBadRequest)
		return
	}

	extras := make(map[string]int, len(companies))
	for i, company := range companies {
		company = strings.TrimSpace(company)
		if company == "" {
			continue
		}
		extras[company] = timeparse.ParseDuration(values[i])
	}

	if err := s.store.SetExtras(year, extras); err != nil {
		s.writeSaveError(w, err)
		return
	}
	s.redirectToTimings(w, r, year)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	year := s.yearForm(r)
	company := strings.TrimSpace(r.FormValue("company"))
	if company == "" {
		http.Error(w, "company is required", http.StatusBadRequest)
		return
	}

	if err := s.store.SoftDelete(year, company); err != nil {
		s.writeSaveError(w, err)
		return
	}
	s.redirectToTimings(w, r, year)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	year := s.yearForm(r)

	clients, err := s.reg.ListClients()
	if err != nil {
		http.Error(w, fmt.Sprintf("list registry clients: %v", err), http.StatusInternalServerError)
		return
	}
	names := make([]string, 0, len(clients))
	for _, c := range clients {
		names = append(names, c.Name)
	}

	added, err := s.store.SyncCompanies(year, names)
	if err != nil {
		s.writeSaveError(w, err)
		return
	}
	s.log.Info("registry sync", zap.Int("year", year), zap.Int("added", added))
	s.redirectToTimings(w, r, year)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if strings.TrimSpace(r.FormValue("confirm")) != clearConfirmation {
		http.Error(w, fmt.Sprintf("type %s to confirm clearing all data", clearConfirmation), http.StatusBadRequest)
		return
	}
	if err := s.store.Clear(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.log.Warn("ledger cleared by user request")
	http.Redirect(w, r, "/timings", http.StatusSeeOther)
}

func (s *Server) handleRelation(w http.ResponseWriter, r *http.Request) {
	year := s.yearParam(r)
	rate := s.rateParam(r)
	technicianFilter := strings.TrimSpace(r.URL.Query().Get("technician"))
	search := strings.TrimSpace(r.URL.Query().Get("search"))

	rows, err := s.relationRows(year)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	filtered := relation.Filter(rows, technicianFilter, search)

	rowViews := make([]relationRowView, 0, len(filtered))
	for _, row := range filtered {
		budget := relation.ComputeCapacity(row, rate)
		rowViews = append(rowViews, relationRowView{
			Row:      row,
			MaxLabel: budget.MaxLabel,
			CutLabel: budget.CutLabel,
			Flags:    strings.Join(row.Quality, ", "),
		})
	}

	view := relationPageView{
		Title:       fmt.Sprintf("timeledger - relation %d", year),
		Year:        year,
		Years:       s.yearOptions(year),
		Rows:        rowViews,
		Totals:      relation.ComputeTotals(filtered, rate),
		Technicians: relation.Technicians(rows),
		Technician:  technicianFilter,
		Search:      search,
		HourlyRate:  rate,
	}
	if err := renderTemplate(w, "relation.html", view); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleRelationExport(w http.ResponseWriter, r *http.Request) {
	format := strings.TrimSpace(r.PathValue("format"))
	writer, err := output.WriterForFormat(format)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	year := s.yearParam(r)
	rate := s.rateParam(r)
	rows, err := s.relationRows(year)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	rows = relation.Filter(rows,
		strings.TrimSpace(r.URL.Query().Get("technician")),
		strings.TrimSpace(r.URL.Query().Get("search")))

	filename := fmt.Sprintf("relation-%d.%s", year, exportExtension(format))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Type", exportContentType(format))

	if err := writer.Write(w, rows, rate); err != nil {
		s.log.Error("relation export", zap.Error(err))
	}
}

func (s *Server) relationRows(year int) ([]relation.Row, error) {
	clients, err := s.reg.ListClients()
	if err != nil {
		return nil, fmt.Errorf("list registry clients: %w", err)
	}
	return relation.BuildRows(clients, s.store.Year(year)), nil
}

// inferTechnician attributes the special identity's minutes from the
// registry's recorded technician, one registry read per import.
func (s *Server) inferTechnician() importer.InferTechnician {
	clients, err := s.reg.ListClients()
	if err != nil {
		s.log.Warn("registry unavailable for technician inference", zap.Error(err))
		return nil
	}
	return func(companyKey string) string {
		return registry.PrimaryTechnician(clients, s.resolver, companyKey)
	}
}

func (s *Server) yearParam(r *http.Request) int {
	if year, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get("year"))); err == nil && year > 0 {
		return year
	}
	return s.defaultYear()
}

func (s *Server) yearForm(r *http.Request) int {
	if year, err := strconv.Atoi(strings.TrimSpace(r.FormValue("year"))); err == nil && year > 0 {
		return year
	}
	return s.defaultYear()
}

func (s *Server) defaultYear() int {
	if years := s.store.Years(); len(years) > 0 {
		return years[len(years)-1]
	}
	return time.Now().Year()
}

func (s *Server) yearOptions(selected int) []int {
	years := s.store.Years()
	for _, year := range years {
		if year == selected {
			return years
		}
	}
	return append(years, selected)
}

func (s *Server) rateParam(r *http.Request) float64 {
	if rate, err := strconv.ParseFloat(strings.TrimSpace(r.URL.Query().Get("rate")), 64); err == nil && rate > 0 {
		return rate
	}
	return s.cfg.Billing.HourlyRate
}

func (s *Server) redirectToTimings(w http.ResponseWriter, r *http.Request, year int) {
	http.Redirect(w, r, fmt.Sprintf("/timings?year=%d", year), http.StatusSeeOther)
}

// writeSaveError maps the ledger's drop guard to a conflict so the UI can
// explain the rejection instead of reporting a server fault.
func (s *Server) writeSaveError(w http.ResponseWriter, err error) {
	if errors.Is(err, ledger.ErrSaveRejected) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func renderTemplate(w http.ResponseWriter, pageTemplate string, data any) error {
	tmpl, err := template.New("base.html").Funcs(template.FuncMap{
		"fmtMinutes": timeparse.FormatMinutes,
	}).ParseFS(templateFS, "templates/base.html", "templates/"+pageTemplate)
	if err != nil {
		return fmt.Errorf("parse template %s: %w", pageTemplate, err)
	}
	if err := tmpl.ExecuteTemplate(w, "base", data); err != nil {
		return fmt.Errorf("render template %s: %w", pageTemplate, err)
	}
	return nil
}

func exportExtension(format string) string {
	if strings.EqualFold(format, "csv") {
		return "csv"
	}
	return "xlsx"
}

func exportContentType(format string) string {
	if strings.EqualFold(format, "csv") {
		return "text/csv"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}
