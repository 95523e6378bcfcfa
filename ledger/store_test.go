package ledger

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"timeledger/technician"
)

func openTestStore(t *testing.T, path string) *Store {
	t.Helper()
	store, err := Open(path, technician.NewResolver(), zap.NewNop())
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	return store
}

func TestOpenMissingFileStartsEmpty(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "timings.json")
	store := openTestStore(t, path)

	if got := store.TotalMinutes(); got != 0 {
		t.Fatalf("expected empty ledger, got %d minutes", got)
	}
	if years := store.Years(); len(years) != 0 {
		t.Fatalf("expected no years, got %v", years)
	}
}

func TestOpenCorruptFileStartsEmpty(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "timings.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	store := openTestStore(t, path)
	if got := store.TotalMinutes(); got != 0 {
		t.Fatalf("expected empty ledger, got %d minutes", got)
	}
}

func TestApplyImportRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "timings.json")
	store := openTestStore(t, path)

	facts := []ImportFact{
		{CompanyKey: "acme", CompanyName: "Acme, Lda", Technician: "Pedro Almeida", Minutes: 150},
		{CompanyKey: "acme", CompanyName: "Acme, Lda", Technician: "Ana Rodrigues", Minutes: 60},
		{CompanyKey: "beta", CompanyName: "Beta SA", Minutes: 90},
	}
	if err := store.ApplyImport(2026, 3, facts); err != nil {
		t.Fatalf("apply import: %v", err)
	}

	reopened := openTestStore(t, path)
	year := reopened.Year(2026)

	acme := year["Acme, Lda"]
	if acme == nil {
		t.Fatalf("missing Acme record, have %v", year)
	}
	if acme.Months[3] != 210 {
		t.Fatalf("expected 210 minutes for March, got %d", acme.Months[3])
	}
	if acme.ByTechnician["Pedro Almeida"][3] != 150 {
		t.Fatalf("unexpected technician breakdown: %v", acme.ByTechnician)
	}

	beta := year["Beta SA"]
	if beta == nil || beta.Months[3] != 90 {
		t.Fatalf("unexpected Beta record: %+v", beta)
	}
	if len(beta.ByTechnician) != 0 {
		t.Fatalf("summary minutes must not create attribution: %v", beta.ByTechnician)
	}
}

func TestApplyImportReplacesMonth(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "timings.json")
	store := openTestStore(t, path)

	facts := []ImportFact{
		{CompanyKey: "acme", CompanyName: "Acme", Technician: "Pedro Almeida", Minutes: 100},
	}
	if err := store.ApplyImport(2026, 3, facts); err != nil {
		t.Fatalf("first import: %v", err)
	}
	// Re-importing the same batch must not double the month.
	if err := store.ApplyImport(2026, 3, facts); err != nil {
		t.Fatalf("second import: %v", err)
	}

	rec := store.Year(2026)["Acme"]
	if rec.Months[3] != 100 {
		t.Fatalf("expected 100 minutes after re-import, got %d", rec.Months[3])
	}
	if rec.ByTechnician["Pedro Almeida"][3] != 100 {
		t.Fatalf("unexpected breakdown after re-import: %v", rec.ByTechnician)
	}
}

func TestApplyImportReusesExistingSpelling(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "timings.json")
	store := openTestStore(t, path)

	if err := store.ApplyImport(2026, 1, []ImportFact{
		{CompanyKey: "acme", CompanyName: "Acme, Lda", Minutes: 60},
	}); err != nil {
		t.Fatalf("first import: %v", err)
	}
	if err := store.ApplyImport(2026, 2, []ImportFact{
		{CompanyKey: "acme", CompanyName: "ACME LDA", Minutes: 30},
	}); err != nil {
		t.Fatalf("second import: %v", err)
	}

	year := store.Year(2026)
	if len(year) != 1 {
		t.Fatalf("expected a single record, got %v", year)
	}
	rec := year["Acme, Lda"]
	if rec == nil || rec.Months[1] != 60 || rec.Months[2] != 30 {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestApplyImportReactivatesDeleted(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "timings.json")
	store := openTestStore(t, path)

	if err := store.ApplyImport(2026, 1, []ImportFact{
		{CompanyKey: "acme", CompanyName: "Acme", Minutes: 60},
	}); err != nil {
		t.Fatalf("import: %v", err)
	}
	if err := store.SoftDelete(2026, "Acme"); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	if !store.Year(2026)["Acme"].Deleted {
		t.Fatalf("expected record to be deleted")
	}

	if err := store.ApplyImport(2026, 2, []ImportFact{
		{CompanyKey: "acme", CompanyName: "Acme", Minutes: 30},
	}); err != nil {
		t.Fatalf("re-import: %v", err)
	}
	if store.Year(2026)["Acme"].Deleted {
		t.Fatalf("positive minutes must reactivate the record")
	}
}

func TestSaveRejectsLargeDrop(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "timings.json")
	store := openTestStore(t, path)

	if err := store.ApplyImport(2026, 1, []ImportFact{
		{CompanyKey: "acme", CompanyName: "Acme", Minutes: 1000},
	}); err != nil {
		t.Fatalf("seed import: %v", err)
	}

	// Replacing the only month with a fraction of the volume trips the
	// guard: the file keeps the previous state.
	err := store.ApplyImport(2026, 1, []ImportFact{
		{CompanyKey: "acme", CompanyName: "Acme", Minutes: 100},
	})
	if !errors.Is(err, ErrSaveRejected) {
		t.Fatalf("expected ErrSaveRejected, got %v", err)
	}

	reopened := openTestStore(t, path)
	if got := reopened.Year(2026)["Acme"].Months[1]; got != 1000 {
		t.Fatalf("expected file to keep 1000 minutes, got %d", got)
	}
}

func TestClearBypassesGuard(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "timings.json")
	store := openTestStore(t, path)

	if err := store.ApplyImport(2026, 1, []ImportFact{
		{CompanyKey: "acme", CompanyName: "Acme", Minutes: 1000},
	}); err != nil {
		t.Fatalf("seed import: %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}

	reopened := openTestStore(t, path)
	if got := reopened.TotalMinutes(); got != 0 {
		t.Fatalf("expected empty ledger after clear, got %d", got)
	}
}

func TestSetAverage(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "timings.json")
	store := openTestStore(t, path)

	if err := store.ApplyImport(2026, 1, []ImportFact{
		{CompanyKey: "acme", CompanyName: "Acme", Technician: "Pedro Almeida", Minutes: 500},
	}); err != nil {
		t.Fatalf("seed import: %v", err)
	}
	if err := store.SetExtras(2026, map[string]int{"Acme": 15}); err != nil {
		t.Fatalf("set extras: %v", err)
	}

	if err := store.SetAverage(2026, "Acme", 120); err != nil {
		t.Fatalf("set average: %v", err)
	}

	rec := store.Year(2026)["Acme"]
	for month := 1; month <= 12; month++ {
		if rec.Months[month] != 120 {
			t.Fatalf("expected 120 minutes in month %d, got %d", month, rec.Months[month])
		}
	}
	if rec.ExtraMonthly != 15 {
		t.Fatalf("expected extra to survive the override, got %d", rec.ExtraMonthly)
	}
	if rec.ByTechnician != nil {
		t.Fatalf("manual override must clear attribution, got %v", rec.ByTechnician)
	}
}

func TestSetExtras(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "timings.json")
	store := openTestStore(t, path)

	if err := store.SetExtras(2026, map[string]int{"Acme": 30, "Beta": 0}); err != nil {
		t.Fatalf("set extras: %v", err)
	}

	year := store.Year(2026)
	if year["Acme"].ExtraMonthly != 30 {
		t.Fatalf("expected 30 extra minutes, got %d", year["Acme"].ExtraMonthly)
	}
	if year["Beta"].ExtraMonthly != 0 {
		t.Fatalf("expected 0 extra minutes, got %d", year["Beta"].ExtraMonthly)
	}
}

func TestSyncCompanies(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "timings.json")
	store := openTestStore(t, path)

	if err := store.ApplyImport(2026, 1, []ImportFact{
		{CompanyKey: "acme", CompanyName: "Acme, Lda", Minutes: 60},
	}); err != nil {
		t.Fatalf("seed import: %v", err)
	}

	added, err := store.SyncCompanies(2026, []string{"ACME LDA", "Beta SA", ""})
	if err != nil {
		t.Fatalf("sync companies: %v", err)
	}
	if added != 1 {
		t.Fatalf("expected 1 added record, got %d", added)
	}

	year := store.Year(2026)
	if year["Beta SA"] == nil {
		t.Fatalf("expected Beta placeholder, have %v", year)
	}
	if year["Acme, Lda"].Months[1] != 60 {
		t.Fatalf("existing record must be untouched: %+v", year["Acme, Lda"])
	}
}

func TestMigrateSplitLegacyFormat(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "timings.json")
	legacy := `{
  "timings": {"2023": {"companies": {"Acme": {"1": 2.5, "2": 120}}}},
  "extras": {"2023": {"companies": {"Acme": 360}}}
}`
	if err := os.WriteFile(path, []byte(legacy), 0o644); err != nil {
		t.Fatalf("write legacy file: %v", err)
	}

	store := openTestStore(t, path)
	rec := store.Year(2023)["Acme"]
	if rec == nil {
		t.Fatalf("missing migrated record")
	}
	if rec.Months[1] != 150 {
		t.Fatalf("decimal hours must convert to minutes, got %d", rec.Months[1])
	}
	if rec.Months[2] != 120 {
		t.Fatalf("integral values stay minutes, got %d", rec.Months[2])
	}
	if rec.ExtraMonthly != 30 {
		t.Fatalf("yearly extras must become monthly twelfths, got %d", rec.ExtraMonthly)
	}

	// The migrated shape is persisted and a backup of the original kept.
	var raw map[string]any
	payload, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read migrated file: %v", err)
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		t.Fatalf("decode migrated file: %v", err)
	}
	if _, legacy := raw["timings"]; legacy {
		t.Fatalf("legacy sections must not survive migration")
	}

	backups, err := filepath.Glob(path + ".bak.*")
	if err != nil {
		t.Fatalf("glob backups: %v", err)
	}
	if len(backups) != 1 {
		t.Fatalf("expected exactly one backup, got %v", backups)
	}
}

func TestMigrateDecimalHoursValues(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "timings.json")
	legacy := `{"2024": {"Acme": {"months": {"1": 1.5, "2": 90}, "extra_monthly": 0, "deleted": false}}}`
	if err := os.WriteFile(path, []byte(legacy), 0o644); err != nil {
		t.Fatalf("write legacy file: %v", err)
	}

	store := openTestStore(t, path)
	rec := store.Year(2024)["Acme"]
	if rec.Months[1] != 90 {
		t.Fatalf("expected 1.5 hours as 90 minutes, got %d", rec.Months[1])
	}
	if rec.Months[2] != 90 {
		t.Fatalf("expected integral 90 to stay minutes, got %d", rec.Months[2])
	}

	backups, _ := filepath.Glob(path + ".bak.*")
	if len(backups) != 1 {
		t.Fatalf("expected a backup before rewrite, got %v", backups)
	}
}

func TestLoadCanonicalizesTechnicianKeys(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "timings.json")
	content := `{"2025": {"Acme": {"months": {"1": 100}, "extra_monthly": 0, "deleted": false,
  "by_technician": {
    "Pedro Miguel Santos Almeida": {"1": 40},
    "Pedro Almeida": {"1": 20},
    "Artur Palhares Mendes": {"1": 40}
  }}}}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	store := openTestStore(t, path)
	rec := store.Year(2025)["Acme"]

	if got := rec.ByTechnician["Pedro Almeida"][1]; got != 60 {
		t.Fatalf("alias spellings must merge into the canonical name, got %d", got)
	}
	if got := rec.ByTechnician[technician.Unassigned][1]; got != 40 {
		t.Fatalf("inferred identity must collapse into Unassigned, got %d", got)
	}
	if _, stale := rec.ByTechnician["Pedro Miguel Santos Almeida"]; stale {
		t.Fatalf("old spelling must not survive: %v", rec.ByTechnician)
	}
}

func TestRecordTotals(t *testing.T) {
	t.Parallel()

	rec := &Record{
		Months:       map[int]int{1: 60, 2: 120},
		ExtraMonthly: 10,
	}
	if got := rec.TotalMinutes(); got != 300 {
		t.Fatalf("TotalMinutes = %d, want 300", got)
	}
	// (180+6)/12 = 15, plus the recurring extra.
	if got := rec.MonthlyAverage(); got != 25 {
		t.Fatalf("MonthlyAverage = %d, want 25", got)
	}
}
