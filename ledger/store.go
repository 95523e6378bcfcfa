package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"time"

	"go.uber.org/zap"

	"timeledger/internal/timeparse"
	"timeledger/namenorm"
	"timeledger/technician"
)

// ErrSaveRejected is returned when a save would shrink the ledger's total
// minute volume by more than half. Such a drop is almost always a bug (an
// empty structure from a failed read) rather than an intentional mass
// deletion; intentional deletions go through the soft-delete path. The
// in-memory ledger stays authoritative for the process, the file on disk
// stays stale.
var ErrSaveRejected = errors.New("ledger save rejected: total minutes dropped by more than half")

// Store owns the ledger file: loading (including one-time migration of the
// two legacy shapes), normalization, every mutating operation, and atomic
// persistence. Single-process, synchronous; every mutator persists before
// returning.
type Store struct {
	path     string
	resolver *technician.Resolver
	log      *zap.Logger

	data map[string]Year

	needsBackup bool
	backupDone  bool
}

// Open loads the ledger from path. A missing, corrupt or unreadable file is
// treated as an empty ledger and logged, never as a fatal error.
func Open(path string, resolver *technician.Resolver, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store{
		path:     path,
		resolver: resolver,
		log:      log,
		data:     make(map[string]Year),
	}

	raw, migrated, err := s.read()
	if err != nil {
		s.log.Warn("ledger file unreadable, starting empty",
			zap.String("path", path), zap.Error(err))
		return s, nil
	}
	if raw == nil {
		return s, nil
	}

	s.data = s.normalize(raw)

	if migrated {
		s.needsBackup = true
	}
	if migrated || s.needsBackup {
		if err := s.Save(); err != nil && !errors.Is(err, ErrSaveRejected) {
			s.log.Warn("persist migrated ledger", zap.Error(err))
		}
	}

	return s, nil
}

// read parses the file into the current year->company shape, converting the
// legacy split format (separate "timings" and "extras" sections) when found.
// The second return reports whether a migration or lossy normalization
// occurred and the result should be rewritten.
func (s *Store) read() (map[string]any, bool, error) {
	payload, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, false, fmt.Errorf("decode ledger: %w", err)
	}

	_, hasTimings := raw["timings"]
	_, hasExtras := raw["extras"]
	if hasTimings || hasExtras {
		return s.migrateSplit(raw), true, nil
	}
	return raw, false, nil
}

// migrateSplit converts the oldest shape, where monthly values and yearly
// extras lived in separate top-level sections:
//
//	{"timings": {"2024": {"companies": {"X": {"1": 2.5}}}},
//	 "extras":  {"2024": {"companies": {"X": 360}}}}
//
// Yearly extras become a recurring monthly addend (total/12, rounded).
func (s *Store) migrateSplit(raw map[string]any) map[string]any {
	out := make(map[string]any)

	timings, _ := raw["timings"].(map[string]any)
	extras, _ := raw["extras"].(map[string]any)

	for yearKey, yearVal := range timings {
		yearMap, ok := yearVal.(map[string]any)
		if !ok {
			continue
		}
		companies, ok := yearMap["companies"].(map[string]any)
		if !ok {
			continue
		}

		extrasForYear := map[string]any{}
		if yearExtras, ok := extras[yearKey].(map[string]any); ok {
			if m, ok := yearExtras["companies"].(map[string]any); ok {
				extrasForYear = m
			}
		}

		yearOut := make(map[string]any)
		for company, monthsVal := range companies {
			months, ok := monthsVal.(map[string]any)
			if !ok {
				continue
			}
			rec := map[string]any{"months": months, "deleted": false}
			if extraVal, ok := extrasForYear[company]; ok {
				yearlyExtra := coerceMinutes(extraVal)
				if yearlyExtra > 0 {
					rec["extra_monthly"] = int(math.Round(float64(yearlyExtra) / 12))
				}
			}
			yearOut[company] = rec
		}
		out[yearKey] = yearOut
	}

	return out
}

// normalize coerces a raw decoded structure into the typed ledger: integer
// non-negative minutes, zero-valued month entries dropped, missing flags
// defaulted, historical per-technician spellings collapsed into canonical
// identities (summing on collision). Idempotent; applied on every load.
func (s *Store) normalize(raw map[string]any) map[string]Year {
	out := make(map[string]Year)

	for yearKey, yearVal := range raw {
		companies, ok := yearVal.(map[string]any)
		if !ok {
			continue
		}
		yearOut := make(Year)

		for company, recVal := range companies {
			rec, ok := recVal.(map[string]any)
			if !ok {
				continue
			}

			normalized := newRecord()

			if months, ok := rec["months"].(map[string]any); ok {
				for monthKey, value := range months {
					month, err := parseMonth(monthKey)
					if err != nil {
						continue
					}
					minutes := coerceMinutes(value)
					if minutes > 0 {
						normalized.Months[month] = minutes
					}
					if !isIntegralNumber(value) {
						// Decimal-hours legacy values; rewrite with backup.
						s.needsBackup = true
					}
				}
			}

			if extra, ok := rec["extra_monthly"]; ok {
				normalized.ExtraMonthly = coerceMinutes(extra)
			}
			if deleted, ok := rec["deleted"].(bool); ok {
				normalized.Deleted = deleted
			}

			if byTech, ok := rec["by_technician"].(map[string]any); ok {
				for rawName, monthsVal := range byTech {
					months, ok := monthsVal.(map[string]any)
					if !ok {
						continue
					}
					canonical := s.resolver.Canonicalize(rawName)
					for monthKey, value := range months {
						month, err := parseMonth(monthKey)
						if err != nil {
							continue
						}
						minutes := coerceMinutes(value)
						if minutes <= 0 {
							continue
						}
						if normalized.ByTechnician == nil {
							normalized.ByTechnician = make(map[string]map[int]int)
						}
						if normalized.ByTechnician[canonical] == nil {
							normalized.ByTechnician[canonical] = make(map[int]int)
						}
						normalized.ByTechnician[canonical][month] += minutes
					}
					if canonical != rawName {
						s.needsBackup = true
					}
				}
			}

			yearOut[company] = normalized
		}

		out[yearKey] = yearOut
	}

	return out
}

// Save writes the full ledger atomically (temporary file plus rename).
// Before writing it compares the new total minute volume against the file
// already on disk and rejects drops of more than half with ErrSaveRejected.
func (s *Store) Save() error {
	return s.save(false)
}

func (s *Store) save(force bool) error {
	newTotal := totalMinutes(s.data)

	if !force {
		if oldTotal, ok := s.persistedTotal(); ok && oldTotal > 0 && newTotal*2 < oldTotal {
			s.log.Warn("ledger save rejected",
				zap.Int("previous_total_minutes", oldTotal),
				zap.Int("new_total_minutes", newTotal))
			return ErrSaveRejected
		}
	}

	if s.needsBackup && !s.backupDone {
		s.backupOnce()
	}

	payload, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return fmt.Errorf("write ledger temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace ledger file: %w", err)
	}
	return nil
}

// backupOnce copies the current file aside before the first
// migration-triggering save of this process. Later saves never overwrite it.
func (s *Store) backupOnce() {
	src, err := os.Open(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.Warn("ledger backup skipped", zap.Error(err))
		}
		s.backupDone = true
		s.needsBackup = false
		return
	}
	defer src.Close()

	backupPath := fmt.Sprintf("%s.bak.%s", s.path, time.Now().Format("20060102-150405"))
	dst, err := os.Create(backupPath)
	if err != nil {
		s.log.Warn("ledger backup failed", zap.Error(err))
		return
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		s.log.Warn("ledger backup failed", zap.Error(err))
		return
	}
	s.log.Info("ledger backup created", zap.String("path", backupPath))
	s.backupDone = true
	s.needsBackup = false
}

// persistedTotal reads the total minute volume currently on disk. Unreadable
// or legacy-shaped content yields no total, which disables the guard.
func (s *Store) persistedTotal() (int, bool) {
	payload, err := os.ReadFile(s.path)
	if err != nil {
		return 0, false
	}
	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		return 0, false
	}
	return totalMinutesRaw(raw), true
}

// ApplyImport merges one deduplicated batch as the authoritative data for
// (year, month): every company touched by the batch first has that month
// zeroed in both the aggregate and the per-technician breakdown, then the
// facts are written. A company regaining positive minutes is reactivated.
func (s *Store) ApplyImport(year, month int, facts []ImportFact) error {
	if month < 1 || month > 12 {
		return fmt.Errorf("month must be 1..12, got %d", month)
	}
	yearData := s.year(year)

	targets := make(map[string]string)
	for _, fact := range facts {
		if fact.Minutes <= 0 || fact.CompanyKey == "" {
			continue
		}
		if _, ok := targets[fact.CompanyKey]; ok {
			continue
		}
		targets[fact.CompanyKey] = s.companyFor(yearData, fact.CompanyKey, fact.CompanyName)
	}

	// This batch replaces the month, it does not add to it.
	for _, name := range targets {
		rec := yearData[name]
		if rec == nil {
			continue
		}
		delete(rec.Months, month)
		for _, months := range rec.ByTechnician {
			delete(months, month)
		}
	}

	for _, fact := range facts {
		if fact.Minutes <= 0 || fact.CompanyKey == "" {
			continue
		}
		s.addMinutes(yearData, targets[fact.CompanyKey], month, fact.Minutes, fact.Technician)
	}

	return s.Save()
}

// SetAverage overwrites all twelve months of a company with a uniform
// value. The recurring extra is preserved; per-technician detail is cleared
// because a manual override cannot honestly retain the old attribution. The
// company is reactivated if it was soft-deleted.
func (s *Store) SetAverage(year int, company string, minutes int) error {
	if minutes <= 0 {
		return nil
	}
	yearData := s.year(year)
	rec := yearData[company]
	extra := 0
	if rec != nil {
		extra = rec.ExtraMonthly
	}

	fresh := newRecord()
	fresh.ExtraMonthly = extra
	for month := 1; month <= 12; month++ {
		fresh.Months[month] = minutes
	}
	yearData[company] = fresh

	return s.Save()
}

// SetExtras updates the recurring monthly extras for several companies at
// once, preserving months and per-technician detail.
func (s *Store) SetExtras(year int, extras map[string]int) error {
	yearData := s.year(year)
	for company, minutes := range extras {
		if company == "" {
			continue
		}
		rec := yearData[company]
		if rec == nil {
			rec = newRecord()
			yearData[company] = rec
		}
		if minutes < 0 {
			minutes = 0
		}
		rec.ExtraMonthly = minutes
	}
	return s.Save()
}

// SoftDelete hides a company from all reports for the given year while
// retaining its data for audit and undo. A company known only to the client
// registry gets an empty deleted record so it stops appearing in maps.
func (s *Store) SoftDelete(year int, company string) error {
	yearData := s.year(year)
	rec := yearData[company]
	if rec == nil {
		rec = newRecord()
		yearData[company] = rec
	}
	rec.Deleted = true
	return s.Save()
}

// SyncCompanies ensures every registry company has a ledger record for the
// year, adding zero-valued placeholders without disturbing existing entries.
func (s *Store) SyncCompanies(year int, names []string) (int, error) {
	yearData := s.year(year)

	existing := make(map[string]struct{}, len(yearData))
	for company := range yearData {
		if key := namenorm.Company(company); key != "" {
			existing[key] = struct{}{}
		}
	}

	added := 0
	for _, name := range names {
		display := name
		key := namenorm.Company(display)
		if key == "" {
			continue
		}
		if _, ok := existing[key]; ok {
			continue
		}
		yearData[display] = newRecord()
		existing[key] = struct{}{}
		added++
	}

	if err := s.Save(); err != nil {
		return added, err
	}
	return added, nil
}

// Clear wipes every year. The drop guard is bypassed deliberately: callers
// gate this behind an explicit confirmation token.
func (s *Store) Clear() error {
	s.data = make(map[string]Year)
	return s.save(true)
}

// Rewrite forces a backup plus a full rewrite of the file in the current
// schema, reporting total minute volume before and after. Used by the
// manual migration command.
func (s *Store) Rewrite() (oldTotal, newTotal int, err error) {
	oldTotal, _ = s.persistedTotal()
	newTotal = totalMinutes(s.data)
	s.needsBackup = true
	s.backupDone = false
	if err := s.save(false); err != nil {
		return oldTotal, newTotal, err
	}
	return oldTotal, newTotal, nil
}

// Year returns the data for one year, creating it on demand.
func (s *Store) Year(year int) Year {
	return s.year(year)
}

// Years lists the years present, ascending.
func (s *Store) Years() []int {
	years := make([]int, 0, len(s.data))
	for key := range s.data {
		var year int
		if _, err := fmt.Sscanf(key, "%d", &year); err == nil {
			years = append(years, year)
		}
	}
	sort.Ints(years)
	return years
}

// TotalMinutes is the volume of the whole in-memory ledger.
func (s *Store) TotalMinutes() int {
	return totalMinutes(s.data)
}

func (s *Store) year(year int) Year {
	key := fmt.Sprintf("%d", year)
	if s.data[key] == nil {
		s.data[key] = make(Year)
	}
	return s.data[key]
}

// companyFor reuses an existing ledger key whose strong normalization
// matches; records are never silently renamed, re-imports reuse the
// first-seen spelling.
func (s *Store) companyFor(yearData Year, companyKey, display string) string {
	names := make([]string, 0, len(yearData))
	for name := range yearData {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if namenorm.Company(name) == companyKey {
			return name
		}
	}
	if display != "" {
		return display
	}
	return companyKey
}

func (s *Store) addMinutes(yearData Year, company string, month, minutes int, tech string) {
	rec := yearData[company]
	if rec == nil {
		rec = newRecord()
		yearData[company] = rec
	}
	rec.Deleted = false
	rec.Months[month] += minutes

	if tech == "" {
		return
	}
	if rec.ByTechnician == nil {
		rec.ByTechnician = make(map[string]map[int]int)
	}
	if rec.ByTechnician[tech] == nil {
		rec.ByTechnician[tech] = make(map[int]int)
	}
	rec.ByTechnician[tech][month] += minutes
}

func totalMinutes(data map[string]Year) int {
	total := 0
	for _, yearData := range data {
		for _, rec := range yearData {
			total += rec.TotalMinutes()
		}
	}
	return total
}

// totalMinutesRaw sums an undecoded structure in the current shape; legacy
// shapes yield 0, which disables the drop guard for their first rewrite.
func totalMinutesRaw(raw map[string]any) int {
	total := 0
	for _, yearVal := range raw {
		companies, ok := yearVal.(map[string]any)
		if !ok {
			continue
		}
		for _, recVal := range companies {
			rec, ok := recVal.(map[string]any)
			if !ok {
				continue
			}
			if months, ok := rec["months"].(map[string]any); ok {
				for _, value := range months {
					total += coerceMinutes(value)
				}
			}
			if extra, ok := rec["extra_monthly"]; ok {
				total += coerceMinutes(extra) * 12
			}
		}
	}
	return total
}

// coerceMinutes applies the duration-parsing rule to a decoded JSON value:
// integral numbers are minutes, fractional numbers up to 24 are decimal
// hours, strings go through the full duration parser.
func coerceMinutes(value any) int {
	switch v := value.(type) {
	case float64:
		if v == math.Trunc(v) {
			if v < 0 {
				return 0
			}
			return int(v)
		}
		if math.Abs(v) <= 24 {
			minutes := int(math.Round(v * 60))
			if minutes < 0 {
				return 0
			}
			return minutes
		}
		minutes := int(math.Round(v))
		if minutes < 0 {
			return 0
		}
		return minutes
	case string:
		return timeparse.ParseDuration(v)
	case int:
		if v < 0 {
			return 0
		}
		return v
	default:
		return 0
	}
}

func isIntegralNumber(value any) bool {
	v, ok := value.(float64)
	if !ok {
		return false
	}
	return v == math.Trunc(v)
}

func parseMonth(key string) (int, error) {
	var month int
	if _, err := fmt.Sscanf(key, "%d", &month); err != nil {
		return 0, err
	}
	if month < 1 || month > 12 {
		return 0, fmt.Errorf("month out of range: %d", month)
	}
	return month, nil
}
