package report

import (
	"context"
	"fmt"

	"github.com/khanhnv2901/ctaudit/internal/domain/observation"
	"github.com/khanhnv2901/ctaudit/internal/domain/scan"
)

// Service provides read access to stored reports and progress
type Service struct {
	reports  scan.ReportRepository
	progress scan.ProgressRepository
}

// NewService creates a new report service
func NewService(reports scan.ReportRepository, progress scan.ProgressRepository) *Service {
	return &Service{
		reports:  reports,
		progress: progress,
	}
}

// Progress returns the scan progress of a log
func (s *Service) Progress(ctx context.Context, logID string) (*scan.Progress, error) {
	p, err := s.progress.GetProgress(ctx, logID)
	if err != nil {
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}
	return p, nil
}

// Reports returns every stored report of a log
func (s *Service) Reports(ctx context.Context, logID string) ([]scan.StoredReport, error) {
	reports, err := s.reports.ListReports(ctx, logID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	return reports, nil
}

// Observations returns what was recorded for one log entry
func (s *Service) Observations(ctx context.Context, logID string, index int64) ([]observation.Observation, error) {
	obs, err := s.reports.FindObservations(ctx, logID, index)
	if err != nil {
		return nil, fmt.Errorf("failed to find observations: %w", err)
	}
	return obs, nil
}

// Summary counts observations by kind across every stored report of a log.
func (s *Service) Summary(ctx context.Context, logID string) (map[observation.Kind]int, error) {
	reports, err := s.Reports(ctx, logID)
	if err != nil {
		return nil, err
	}
	counts := map[observation.Kind]int{}
	for _, r := range reports {
		for _, o := range r.Report.All() {
			counts[o.Kind()]++
		}
	}
	return counts, nil
}
