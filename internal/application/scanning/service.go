package scanning

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/khanhnv2901/ctaudit/internal/checker"
	"github.com/khanhnv2901/ctaudit/internal/domain/scan"
	"github.com/khanhnv2901/ctaudit/internal/scanner"
)

// Result is the outcome of scanning one batch.
type Result struct {
	Report      *scan.Report
	Descriptors map[int64]scanner.CertDescriptor
	Stats       scanner.Stats
}

// Service provides application-level scan operations
type Service struct {
	checks      []checker.Check
	concurrency int
	reports     scan.ReportRepository
	logger      *zap.Logger
}

// NewService resolves checkNames against registry. reports may be nil when
// results are never persisted.
func NewService(registry *checker.Registry, checkNames []string, concurrency int, reports scan.ReportRepository, logger *zap.Logger) (*Service, error) {
	checks, err := registry.Build(checkNames)
	if err != nil {
		return nil, fmt.Errorf("failed to configure checks: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		checks:      checks,
		concurrency: concurrency,
		reports:     reports,
		logger:      logger,
	}, nil
}

// CheckNames returns the configured checks in execution order
func (s *Service) CheckNames() []string {
	names := make([]string, 0, len(s.checks))
	for _, chk := range s.checks {
		names = append(names, chk.Name())
	}
	return names
}

// Scan runs a fresh scanner over entries
func (s *Service) Scan(ctx context.Context, entries []scan.LogEntry) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sc := scanner.New(s.checks, scanner.WithConcurrency(s.concurrency), scanner.WithLogger(s.logger))
	report, err := sc.Scan(entries)
	if err != nil {
		return nil, err
	}

	return &Result{
		Report:      report,
		Descriptors: sc.Descriptors(),
		Stats:       sc.Stats(),
	}, nil
}

// ScanAndSave scans entries and stores the report for [start, end] under logID
func (s *Service) ScanAndSave(ctx context.Context, logID string, start, end int64, entries []scan.LogEntry) (*Result, error) {
	if s.reports == nil {
		return nil, fmt.Errorf("no report repository configured")
	}

	result, err := s.Scan(ctx, entries)
	if err != nil {
		return nil, err
	}

	if err := s.reports.SaveReport(ctx, logID, start, end, result.Report); err != nil {
		return nil, fmt.Errorf("failed to save report: %w", err)
	}
	return result, nil
}

// IndexRange returns the smallest and largest log index in entries.
func IndexRange(entries []scan.LogEntry) (start, end int64, ok bool) {
	if len(entries) == 0 {
		return 0, 0, false
	}
	start, end = entries[0].LogIndex, entries[0].LogIndex
	for _, e := range entries[1:] {
		if e.LogIndex < start {
			start = e.LogIndex
		}
		if e.LogIndex > end {
			end = e.LogIndex
		}
	}
	return start, end, true
}
