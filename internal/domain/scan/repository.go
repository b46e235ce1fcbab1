package scan

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/khanhnv2901/ctaudit/internal/domain/observation"
	sharedErrors "github.com/khanhnv2901/ctaudit/internal/shared/errors"
)

// Progress records how far a log has been scanned.
type Progress struct {
	LogID     string    `json:"log_id"`
	NextIndex int64     `json:"next_index"`
	TreeSize  int64     `json:"tree_size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StoredReport is a report persisted for one scanned range of a log.
type StoredReport struct {
	LogID     string    `json:"log_id"`
	Start     int64     `json:"start"`
	End       int64     `json:"end"`
	ScannedAt time.Time `json:"scanned_at"`
	Report    *Report   `json:"report"`
}

// ReportRepository defines the interface for report persistence
type ReportRepository interface {
	// SaveReport persists the report for the inclusive range [start, end]
	SaveReport(ctx context.Context, logID string, start, end int64, report *Report) error

	// FindObservations returns the observations stored for a single log index
	FindObservations(ctx context.Context, logID string, index int64) ([]observation.Observation, error)

	// ListReports returns every stored report of a log ordered by start index
	ListReports(ctx context.Context, logID string) ([]StoredReport, error)
}

// ProgressRepository defines the interface for scan progress persistence
type ProgressRepository interface {
	GetProgress(ctx context.Context, logID string) (*Progress, error)
	SaveProgress(ctx context.Context, progress Progress) error
}

// LogIDFromURL derives a stable log identifier from a log URL, e.g.
// "https://ct.example.com/logs/2025h1/" becomes "ct.example.com_logs_2025h1".
func LogIDFromURL(raw string) string {
	id := strings.TrimSpace(strings.ToLower(raw))
	id = strings.TrimPrefix(id, "https://")
	id = strings.TrimPrefix(id, "http://")
	id = strings.Trim(id, "/")
	return strings.NewReplacer("/", "_", ":", "_", "\\", "_").Replace(id)
}

// ValidateLogID rejects identifiers that are empty or could address another
// log's storage.
func ValidateLogID(logID string) error {
	if strings.TrimSpace(logID) == "" {
		return sharedErrors.ErrEmptyLogID
	}
	if logID == "." || strings.Contains(logID, "..") || strings.ContainsAny(logID, `/\`) {
		return fmt.Errorf("%w: invalid log ID %q", sharedErrors.ErrValidation, logID)
	}
	return nil
}
