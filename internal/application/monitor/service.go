package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/khanhnv2901/ctaudit/internal/application/scanning"
	"github.com/khanhnv2901/ctaudit/internal/domain/scan"
	sharedErrors "github.com/khanhnv2901/ctaudit/internal/shared/errors"
)

const DefaultBatchSize = 256

// EntrySource is the part of a CT log client the monitor needs.
type EntrySource interface {
	TreeSize(ctx context.Context) (int64, error)
	FetchBatch(ctx context.Context, start, end int64) ([]scan.LogEntry, error)
}

// BatchResult describes one scanned and persisted batch.
type BatchResult struct {
	LogID        string
	Start        int64
	End          int64
	TreeSize     int64
	Observations int
	Failed       int
}

// Summary describes one RunOnce pass.
type Summary struct {
	LogID        string        `json:"log_id"`
	StartIndex   int64         `json:"start_index"`
	NextIndex    int64         `json:"next_index"`
	TreeSize     int64         `json:"tree_size"`
	Batches      int           `json:"batches"`
	Entries      int64         `json:"entries"`
	Observations int           `json:"observations"`
	Duration     time.Duration `json:"duration"`
}

type Option func(*Service)

// WithBatchSize sets the number of entries fetched and scanned per batch.
func WithBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchSize = int64(n)
		}
	}
}

// WithMaxEntries caps the number of entries scanned by one RunOnce call; 0 means no cap.
func WithMaxEntries(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxEntries = n
		}
	}
}

// WithStartIndex sets where a log without stored progress starts.
func WithStartIndex(n int64) Option {
	return func(s *Service) {
		if n >= 0 {
			s.startIndex = n
		}
	}
}

// WithBatchCallback is invoked after every persisted batch.
func WithBatchCallback(fn func(BatchResult)) Option {
	return func(s *Service) {
		s.onBatch = fn
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Service walks a log from its stored progress up to the current tree size.
type Service struct {
	source   EntrySource
	scans    *scanning.Service
	progress scan.ProgressRepository

	batchSize  int64
	maxEntries int64
	startIndex int64
	onBatch    func(BatchResult)
	logger     *zap.Logger
}

// NewService creates a new monitor service
func NewService(source EntrySource, scans *scanning.Service, progress scan.ProgressRepository, opts ...Option) *Service {
	s := &Service{
		source:    source,
		scans:     scans,
		progress:  progress,
		batchSize: DefaultBatchSize,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunOnce scans every entry between the stored progress and the current
// tree size. Progress advances only after a batch's report is saved, so an
// interrupted run resumes at the first unsaved batch.
func (s *Service) RunOnce(ctx context.Context, logID string) (*Summary, error) {
	started := time.Now()
	if err := scan.ValidateLogID(logID); err != nil {
		return nil, err
	}

	next, err := s.resumeIndex(ctx, logID)
	if err != nil {
		return nil, err
	}

	treeSize, err := s.source.TreeSize(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get tree size: %w", err)
	}

	summary := &Summary{LogID: logID, StartIndex: next, NextIndex: next, TreeSize: treeSize}
	limit := treeSize
	if s.maxEntries > 0 && next+s.maxEntries < limit {
		limit = next + s.maxEntries
	}

	log := s.logger.With(zap.String("log_id", logID))
	log.Info("monitor pass starting", zap.Int64("next_index", next), zap.Int64("tree_size", treeSize))

	for next < limit {
		end := next + s.batchSize - 1
		if end >= limit {
			end = limit - 1
		}

		entries, err := s.source.FetchBatch(ctx, next, end)
		if err != nil {
			return summary, fmt.Errorf("failed to fetch [%d, %d]: %w", next, end, err)
		}

		result, err := s.scans.ScanAndSave(ctx, logID, next, end, entries)
		if err != nil {
			return summary, fmt.Errorf("failed to scan [%d, %d]: %w", next, end, err)
		}

		if err := s.progress.SaveProgress(ctx, scan.Progress{
			LogID:     logID,
			NextIndex: end + 1,
			TreeSize:  treeSize,
			UpdatedAt: time.Now(),
		}); err != nil {
			return summary, fmt.Errorf("failed to save progress: %w", err)
		}

		summary.Batches++
		summary.Entries += end - next + 1
		summary.Observations += result.Stats.Observations
		summary.NextIndex = end + 1

		log.Debug("batch complete",
			zap.Int64("start", next),
			zap.Int64("end", end),
			zap.Int("observations", result.Stats.Observations),
		)
		if s.onBatch != nil {
			s.onBatch(BatchResult{
				LogID:        logID,
				Start:        next,
				End:          end,
				TreeSize:     treeSize,
				Observations: result.Stats.Observations,
				Failed:       result.Stats.Failed,
			})
		}

		next = end + 1
	}

	summary.Duration = time.Since(started)
	log.Info("monitor pass finished",
		zap.Int("batches", summary.Batches),
		zap.Int64("entries", summary.Entries),
		zap.Int("observations", summary.Observations),
	)
	return summary, nil
}

func (s *Service) resumeIndex(ctx context.Context, logID string) (int64, error) {
	p, err := s.progress.GetProgress(ctx, logID)
	if errors.Is(err, sharedErrors.ErrProgressNotFound) {
		return s.startIndex, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get progress: %w", err)
	}
	return p.NextIndex, nil
}
