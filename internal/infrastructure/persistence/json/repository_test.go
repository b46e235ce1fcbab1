package json

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/khanhnv2901/ctaudit/internal/domain/observation"
	"github.com/khanhnv2901/ctaudit/internal/domain/scan"
	sharedErrors "github.com/khanhnv2901/ctaudit/internal/shared/errors"
)

func sampleReport(indices ...int64) *scan.Report {
	r := scan.NewReport()
	for _, idx := range indices {
		if idx%2 == 0 {
			r.Add(idx)
			continue
		}
		r.Add(idx, observation.StrictWithDetail("certificate failed strict decoding", "bad IP"))
	}
	return r
}

func TestReportRepository_SaveAndList(t *testing.T) {
	dir := t.TempDir()
	repo, err := NewReportRepository(dir)
	if err != nil {
		t.Fatalf("NewReportRepository: %v", err)
	}
	ctx := context.Background()

	if err := repo.SaveReport(ctx, "log_a", 10, 11, sampleReport(10, 11)); err != nil {
		t.Fatalf("SaveReport: %v", err)
	}
	if err := repo.SaveReport(ctx, "log_a", 0, 9, sampleReport(0, 1, 2)); err != nil {
		t.Fatalf("SaveReport: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "log_a", "reports", "10-11.json")); err != nil {
		t.Errorf("expected report file on disk: %v", err)
	}

	reports, err := repo.ListReports(ctx, "log_a")
	if err != nil {
		t.Fatalf("ListReports: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(reports))
	}
	if reports[0].Start != 0 || reports[1].Start != 10 {
		t.Errorf("reports not ordered by start: %d, %d", reports[0].Start, reports[1].Start)
	}
	if !reports[1].Report.Equal(sampleReport(10, 11)) {
		t.Error("stored report does not round-trip")
	}
	if reports[0].ScannedAt.IsZero() {
		t.Error("expected scanned_at to be set")
	}

	empty, err := repo.ListReports(ctx, "never_scanned")
	if err != nil {
		t.Fatalf("ListReports on unknown log: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected no reports, got %d", len(empty))
	}
}

func TestReportRepository_FindObservations(t *testing.T) {
	repo, err := NewReportRepository(t.TempDir())
	if err != nil {
		t.Fatalf("NewReportRepository: %v", err)
	}
	ctx := context.Background()

	if err := repo.SaveReport(ctx, "log_a", 0, 3, sampleReport(0, 1, 2, 3)); err != nil {
		t.Fatalf("SaveReport: %v", err)
	}

	obs, err := repo.FindObservations(ctx, "log_a", 1)
	if err != nil {
		t.Fatalf("FindObservations: %v", err)
	}
	if len(obs) != 1 || obs[0].Kind() != observation.KindStrict {
		t.Errorf("unexpected observations %v", obs)
	}

	obs, err = repo.FindObservations(ctx, "log_a", 2)
	if err != nil {
		t.Fatalf("FindObservations: %v", err)
	}
	if len(obs) != 0 {
		t.Errorf("expected clean entry to have no observations, got %v", obs)
	}

	if _, err := repo.FindObservations(ctx, "log_a", 99); !errors.Is(err, sharedErrors.ErrReportNotFound) {
		t.Errorf("expected ErrReportNotFound, got %v", err)
	}
}

func TestReportRepository_FindObservationsNewestCoveringReportWins(t *testing.T) {
	repo, err := NewReportRepository(t.TempDir())
	if err != nil {
		t.Fatalf("NewReportRepository: %v", err)
	}
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	older := scan.NewReport()
	older.Add(7, observation.New("compliance", "older scan"))
	repo.now = func() time.Time { return base }
	if err := repo.SaveReport(ctx, "log_a", 5, 9, older); err != nil {
		t.Fatalf("SaveReport: %v", err)
	}

	rescan := scan.NewReport()
	for idx := int64(0); idx <= 9; idx++ {
		rescan.Add(idx)
	}
	repo.now = func() time.Time { return base.Add(time.Hour) }
	if err := repo.SaveReport(ctx, "log_a", 0, 9, rescan); err != nil {
		t.Fatalf("SaveReport: %v", err)
	}

	obs, err := repo.FindObservations(ctx, "log_a", 7)
	if err != nil {
		t.Fatalf("FindObservations: %v", err)
	}
	if len(obs) != 0 {
		t.Errorf("expected the rescan to win with no observations, got %v", obs)
	}
}

func TestReportRepository_SubSecondScansAreOrdered(t *testing.T) {
	repo, err := NewReportRepository(t.TempDir())
	if err != nil {
		t.Fatalf("NewReportRepository: %v", err)
	}
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first := scan.NewReport()
	first.Add(3)
	repo.now = func() time.Time { return base.Add(100 * time.Millisecond) }
	if err := repo.SaveReport(ctx, "log_a", 2, 4, first); err != nil {
		t.Fatalf("SaveReport: %v", err)
	}

	second := scan.NewReport()
	second.Add(3, observation.New("zlint", "e_sub_cert_aia_missing"))
	repo.now = func() time.Time { return base.Add(900 * time.Millisecond) }
	if err := repo.SaveReport(ctx, "log_a", 0, 3, second); err != nil {
		t.Fatalf("SaveReport: %v", err)
	}

	obs, err := repo.FindObservations(ctx, "log_a", 3)
	if err != nil {
		t.Fatalf("FindObservations: %v", err)
	}
	if len(obs) != 1 || obs[0].Description() != "e_sub_cert_aia_missing" {
		t.Errorf("expected the later save to win, got %v", obs)
	}
}

func TestReportRepository_RejectsBadInput(t *testing.T) {
	repo, err := NewReportRepository(t.TempDir())
	if err != nil {
		t.Fatalf("NewReportRepository: %v", err)
	}
	ctx := context.Background()

	if err := repo.SaveReport(ctx, "../escape", 0, 1, nil); err == nil {
		t.Error("expected traversal log ID to be rejected")
	}
	if err := repo.SaveReport(ctx, "log_a", 5, 1, nil); !errors.Is(err, sharedErrors.ErrInvalidRange) {
		t.Errorf("expected ErrInvalidRange, got %v", err)
	}
	if _, err := NewReportRepository(""); err == nil {
		t.Error("expected error for empty results dir")
	}
}

func TestReportRepository_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	repo, err := NewReportRepository(dir)
	if err != nil {
		t.Fatalf("NewReportRepository: %v", err)
	}

	reportsDir := filepath.Join(dir, "log_a", "reports")
	if err := os.MkdirAll(reportsDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(reportsDir, "0-1.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	// Files that are not named <start>-<end>.json are ignored.
	if err := os.WriteFile(filepath.Join(reportsDir, "notes.json"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := repo.ListReports(context.Background(), "log_a"); !errors.Is(err, sharedErrors.ErrDeserializationFailed) {
		t.Errorf("expected ErrDeserializationFailed, got %v", err)
	}
}

func TestProgressRepository(t *testing.T) {
	repo, err := NewProgressRepository(t.TempDir())
	if err != nil {
		t.Fatalf("NewProgressRepository: %v", err)
	}
	ctx := context.Background()

	if _, err := repo.GetProgress(ctx, "log_a"); !errors.Is(err, sharedErrors.ErrProgressNotFound) {
		t.Fatalf("expected ErrProgressNotFound, got %v", err)
	}

	updated := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	if err := repo.SaveProgress(ctx, scan.Progress{LogID: "log_a", NextIndex: 512, TreeSize: 1000, UpdatedAt: updated}); err != nil {
		t.Fatalf("SaveProgress: %v", err)
	}

	got, err := repo.GetProgress(ctx, "log_a")
	if err != nil {
		t.Fatalf("GetProgress: %v", err)
	}
	if got.NextIndex != 512 || got.TreeSize != 1000 || !got.UpdatedAt.Equal(updated) {
		t.Errorf("unexpected progress %+v", got)
	}

	if err := repo.SaveProgress(ctx, scan.Progress{LogID: "log_a", NextIndex: -1}); !errors.Is(err, sharedErrors.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
	if err := repo.SaveProgress(ctx, scan.Progress{}); !errors.Is(err, sharedErrors.ErrEmptyLogID) {
		t.Errorf("expected ErrEmptyLogID, got %v", err)
	}
}
