package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/khanhnv2901/ctaudit/internal/domain/observation"
	"github.com/khanhnv2901/ctaudit/internal/domain/scan"
	sharedErrors "github.com/khanhnv2901/ctaudit/internal/shared/errors"
)

// ReportRepository implements scan.ReportRepository.
type ReportRepository struct {
	db *DB
}

func NewReportRepository(db *DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// SaveReport replaces any report previously stored for the same range.
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

	return pgx.BeginFunc(ctx, r.db.Pool, func(tx pgx.Tx) error {
		var reportID int64
		err := tx.QueryRow(ctx, `
			INSERT INTO scan_reports (log_id, start_index, end_index, scanned_at)
			VALUES ($1, $2, $3, now())
			ON CONFLICT (log_id, start_index, end_index) DO UPDATE SET scanned_at = EXCLUDED.scanned_at
			RETURNING id
		`, logID, start, end).Scan(&reportID)
		if err != nil {
			return fmt.Errorf("%w: insert report: %v", sharedErrors.ErrRepositoryOperation, err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM observations WHERE report_id = $1`, reportID); err != nil {
			return fmt.Errorf("%w: clear observations: %v", sharedErrors.ErrRepositoryOperation, err)
		}

		batch := &pgx.Batch{}
		for pos, idx := range report.Indices() {
			obs, _ := report.Observations(idx)
			if obs == nil {
				obs = []observation.Observation{}
			}
			payload, err := json.Marshal(obs)
			if err != nil {
				return fmt.Errorf("%w: %v", sharedErrors.ErrSerializationFailed, err)
			}
			batch.Queue(`
				INSERT INTO observations (report_id, log_id, log_index, position, observations)
				VALUES ($1, $2, $3, $4, $5)
			`, reportID, logID, idx, pos, payload)
		}
		if batch.Len() == 0 {
			return nil
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("%w: insert observations: %v", sharedErrors.ErrRepositoryOperation, err)
		}
		return nil
	})
}

// FindObservations returns the observations from the most recently scanned report covering index.
func (r *ReportRepository) FindObservations(ctx context.Context, logID string, index int64) ([]observation.Observation, error) {
	if err := scan.ValidateLogID(logID); err != nil {
		return nil, err
	}

	var payload []byte
	err := r.db.Pool.QueryRow(ctx, `
		SELECT o.observations
		FROM observations o
		JOIN scan_reports s ON s.id = o.report_id
		WHERE o.log_id = $1 AND o.log_index = $2
		ORDER BY s.scanned_at DESC, s.id DESC
		LIMIT 1
	`, logID, index).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s index %d", sharedErrors.ErrReportNotFound, logID, index)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sharedErrors.ErrRepositoryOperation, err)
	}

	obs := []observation.Observation{}
	if err := json.Unmarshal(payload, &obs); err != nil {
		return nil, fmt.Errorf("%w: %v", sharedErrors.ErrDeserializationFailed, err)
	}
	return obs, nil
}

// ListReports returns the stored reports of a log ordered by start index.
func (r *ReportRepository) ListReports(ctx context.Context, logID string) ([]scan.StoredReport, error) {
	if err := scan.ValidateLogID(logID); err != nil {
		return nil, err
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT s.id, s.start_index, s.end_index, s.scanned_at, o.log_index, o.observations
		FROM scan_reports s
		LEFT JOIN observations o ON o.report_id = s.id
		WHERE s.log_id = $1
		ORDER BY s.start_index, s.scanned_at, s.id, o.position
	`, logID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sharedErrors.ErrRepositoryOperation, err)
	}
	defer rows.Close()

	reports := []scan.StoredReport{}
	var current *scan.StoredReport
	var currentID int64
	for rows.Next() {
		var (
			id         int64
			start, end int64
			scannedAt  time.Time
			logIndex   *int64
			payload    []byte
		)
		if err := rows.Scan(&id, &start, &end, &scannedAt, &logIndex, &payload); err != nil {
			return nil, fmt.Errorf("%w: %v", sharedErrors.ErrRepositoryOperation, err)
		}

		if current == nil || id != currentID {
			reports = append(reports, scan.StoredReport{
				LogID:     logID,
				Start:     start,
				End:       end,
				ScannedAt: scannedAt,
				Report:    scan.NewReport(),
			})
			current = &reports[len(reports)-1]
			currentID = id
		}
		if logIndex == nil {
			continue
		}

		var obs []observation.Observation
		if err := json.Unmarshal(payload, &obs); err != nil {
			return nil, fmt.Errorf("%w: %v", sharedErrors.ErrDeserializationFailed, err)
		}
		current.Report.Add(*logIndex, obs...)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", sharedErrors.ErrRepositoryOperation, err)
	}
	return reports, nil
}

// ProgressRepository implements scan.ProgressRepository.
type ProgressRepository struct {
	db *DB
}

func NewProgressRepository(db *DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

func (r *ProgressRepository) GetProgress(ctx context.Context, logID string) (*scan.Progress, error) {
	if err := scan.ValidateLogID(logID); err != nil {
		return nil, err
	}

	p := &scan.Progress{LogID: logID}
	err := r.db.Pool.QueryRow(ctx, `
		SELECT next_index, tree_size, updated_at FROM scan_progress WHERE log_id = $1
	`, logID).Scan(&p.NextIndex, &p.TreeSize, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", sharedErrors.ErrProgressNotFound, logID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sharedErrors.ErrRepositoryOperation, err)
	}
	return p, nil
}

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

	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO scan_progress (log_id, next_index, tree_size, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (log_id) DO UPDATE
		SET next_index = EXCLUDED.next_index, tree_size = EXCLUDED.tree_size, updated_at = EXCLUDED.updated_at
	`, progress.LogID, progress.NextIndex, progress.TreeSize, progress.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%w: %v", sharedErrors.ErrRepositoryOperation, err)
	}
	return nil
}
