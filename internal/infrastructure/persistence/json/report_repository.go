package json

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/khanhnv2901/ctaudit/internal/domain/observation"
	"github.com/khanhnv2901/ctaudit/internal/domain/scan"
	consts "github.com/khanhnv2901/ctaudit/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/ctaudit/internal/shared/errors"
	"github.com/khanhnv2901/ctaudit/internal/shared/security"
)

const reportsDirName = "reports"

// storedReportDTO is the data transfer object for JSON serialization
type storedReportDTO struct {
	LogID     string       `json:"log_id"`
	Start     int64        `json:"start"`
	End       int64        `json:"end"`
	ScannedAt string       `json:"scanned_at"`
	Report    *scan.Report `json:"report"`
}

// ReportRepository implements the scan.ReportRepository interface using JSON file storage.
// Each scanned range is stored as <resultsDir>/<logID>/reports/<start>-<end>.json.
type ReportRepository struct {
	resultsDir string
	mu         sync.RWMutex
	now        func() time.Time
}

// NewReportRepository creates a new JSON-based report repository
func NewReportRepository(resultsDir string) (*ReportRepository, error) {
	if resultsDir == "" {
		return nil, fmt.Errorf("results directory cannot be empty")
	}

	if err := os.MkdirAll(resultsDir, consts.DefaultDirPerm); err != nil {
		return nil, fmt.Errorf("failed to create results directory: %w", err)
	}

	return &ReportRepository{
		resultsDir: resultsDir,
		now:        time.Now,
	}, nil
}

// SaveReport persists the report for [start, end], replacing any earlier report of the same range
func (r *ReportRepository) SaveReport(ctx context.Context, logID string, start, end int64, report *scan.Report) error {
	if err := scan.ValidateLogID(logID); err != nil {
		return err
	}
	if start < 0 || end < start {
		return fmt.Errorf("%w: [%d, %d]", sharedErrors.ErrInvalidRange, start, end)
	}
	if report == nil {
		report = scan.NewReport()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	dto := storedReportDTO{
		LogID:     logID,
		Start:     start,
		End:       end,
		ScannedAt: r.now().UTC().Format(time.RFC3339Nano),
		Report:    report,
	}

	data, err := json.MarshalIndent(dto, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", sharedErrors.ErrSerializationFailed, err)
	}

	if _, err := security.WriteFileWithin(r.resultsDir, data, logID, reportsDirName, reportFileName(start, end)); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}

	return nil
}

// FindObservations returns the observations stored for index. The most
// recently scanned report covering index wins.
func (r *ReportRepository) FindObservations(ctx context.Context, logID string, index int64) ([]observation.Observation, error) {
	reports, err := r.ListReports(ctx, logID)
	if err != nil {
		return nil, err
	}

	var (
		found  []observation.Observation
		latest time.Time
		ok     bool
	)
	for _, stored := range reports {
		if index < stored.Start || index > stored.End {
			continue
		}
		obs, has := stored.Report.Observations(index)
		if !has || (ok && stored.ScannedAt.Before(latest)) {
			continue
		}
		found, latest, ok = obs, stored.ScannedAt, true
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s index %d", sharedErrors.ErrReportNotFound, logID, index)
	}
	return found, nil
}

// ListReports returns the stored reports of a log ordered by start index
func (r *ReportRepository) ListReports(ctx context.Context, logID string) ([]scan.StoredReport, error) {
	if err := scan.ValidateLogID(logID); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	dir, err := security.ResolveWithin(r.resultsDir, logID, reportsDirName)
	if err != nil {
		return nil, fmt.Errorf("invalid reports path: %w", err)
	}

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return []scan.StoredReport{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read reports directory: %w", err)
	}

	reports := make([]scan.StoredReport, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		if _, _, ok := parseReportFileName(entry.Name()); !ok {
			continue
		}
		stored, err := r.loadFromFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		reports = append(reports, *stored)
	}

	sort.SliceStable(reports, func(i, j int) bool {
		if reports[i].Start != reports[j].Start {
			return reports[i].Start < reports[j].Start
		}
		return reports[i].ScannedAt.Before(reports[j].ScannedAt)
	})

	return reports, nil
}

func (r *ReportRepository) loadFromFile(filePath string) (*scan.StoredReport, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read report file: %w", err)
	}

	var dto storedReportDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", sharedErrors.ErrDeserializationFailed, filepath.Base(filePath), err)
	}

	scannedAt, err := time.Parse(time.RFC3339Nano, dto.ScannedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse scanned_at: %w", err)
	}

	report := dto.Report
	if report == nil {
		report = scan.NewReport()
	}

	return &scan.StoredReport{
		LogID:     dto.LogID,
		Start:     dto.Start,
		End:       dto.End,
		ScannedAt: scannedAt,
		Report:    report,
	}, nil
}

func reportFileName(start, end int64) string {
	return strconv.FormatInt(start, 10) + "-" + strconv.FormatInt(end, 10) + ".json"
}

// parseReportFileName is the inverse of reportFileName.
func parseReportFileName(name string) (start, end int64, ok bool) {
	base := strings.TrimSuffix(name, ".json")
	parts := strings.SplitN(base, "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	start, err1 := strconv.ParseInt(parts[0], 10, 64)
	end, err2 := strconv.ParseInt(parts[1], 10, 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return start, end, true
}
