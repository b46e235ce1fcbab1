package json

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/khanhnv2901/ctaudit/internal/domain/scan"
	consts "github.com/khanhnv2901/ctaudit/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/ctaudit/internal/shared/errors"
	"github.com/khanhnv2901/ctaudit/internal/shared/security"
)

const progressFileName = "progress.json"

type progressDTO struct {
	LogID     string `json:"log_id"`
	NextIndex int64  `json:"next_index"`
	TreeSize  int64  `json:"tree_size"`
	UpdatedAt string `json:"updated_at"`
}

// ProgressRepository implements the scan.ProgressRepository interface using JSON file storage
type ProgressRepository struct {
	resultsDir string
	mu         sync.RWMutex
}

// NewProgressRepository creates a new JSON-based progress repository
func NewProgressRepository(resultsDir string) (*ProgressRepository, error) {
	if resultsDir == "" {
		return nil, fmt.Errorf("results directory cannot be empty")
	}

	if err := os.MkdirAll(resultsDir, consts.DefaultDirPerm); err != nil {
		return nil, fmt.Errorf("failed to create results directory: %w", err)
	}

	return &ProgressRepository{resultsDir: resultsDir}, nil
}

// GetProgress returns sharedErrors.ErrProgressNotFound for a log that was never scanned
func (r *ProgressRepository) GetProgress(ctx context.Context, logID string) (*scan.Progress, error) {
	if err := scan.ValidateLogID(logID); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	filePath, err := security.ResolveWithin(r.resultsDir, logID, progressFileName)
	if err != nil {
		return nil, fmt.Errorf("invalid progress path: %w", err)
	}

	data, err := os.ReadFile(filePath)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", sharedErrors.ErrProgressNotFound, logID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read progress file: %w", err)
	}

	var dto progressDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, fmt.Errorf("%w: %v", sharedErrors.ErrDeserializationFailed, err)
	}

	updatedAt, err := time.Parse(time.RFC3339Nano, dto.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return &scan.Progress{
		LogID:     dto.LogID,
		NextIndex: dto.NextIndex,
		TreeSize:  dto.TreeSize,
		UpdatedAt: updatedAt,
	}, nil
}

// SaveProgress overwrites the stored progress of progress.LogID
func (r *ProgressRepository) SaveProgress(ctx context.Context, progress scan.Progress) error {
	if err := scan.ValidateLogID(progress.LogID); err != nil {
		return err
	}
	if progress.NextIndex < 0 {
		return fmt.Errorf("%w: next index %d", sharedErrors.ErrValidation, progress.NextIndex)
	}
	if progress.UpdatedAt.IsZero() {
		progress.UpdatedAt = time.Now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.MarshalIndent(progressDTO{
		LogID:     progress.LogID,
		NextIndex: progress.NextIndex,
		TreeSize:  progress.TreeSize,
		UpdatedAt: progress.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", sharedErrors.ErrSerializationFailed, err)
	}

	if _, err := security.WriteFileWithin(r.resultsDir, data, progress.LogID, progressFileName); err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}

	return nil
}
