package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/khanhnv2901/ctaudit/internal/scanner"
	consts "github.com/khanhnv2901/ctaudit/internal/shared/constants"
)

type telemetryRecord struct {
	Timestamp        time.Time `json:"timestamp"`
	Command          string    `json:"command"`
	LogID            string    `json:"log_id,omitempty"`
	Entries          int       `json:"entries"`
	StrictOK         int       `json:"strict_ok"`
	LenientOK        int       `json:"lenient_ok"`
	Failed           int       `json:"failed"`
	Observations     int       `json:"observations"`
	CheckFailures    int       `json:"check_failures"`
	DurationSeconds  float64   `json:"duration_seconds"`
	EntriesPerSecond float64   `json:"entries_per_second"`
}

// recordTelemetry appends one JSON line describing a run to telemetry.jsonl
// in the results directory.
func recordTelemetry(appCtx *AppContext, logID string, command string, stats scanner.Stats, duration time.Duration) error {
	rate := 0.0
	if duration > 0 {
		rate = float64(stats.Entries) / duration.Seconds()
	}

	record := telemetryRecord{
		Timestamp:        time.Now().UTC(),
		Command:          command,
		LogID:            logID,
		Entries:          stats.Entries,
		StrictOK:         stats.StrictOK,
		LenientOK:        stats.LenientOK,
		Failed:           stats.Failed,
		Observations:     stats.Observations,
		CheckFailures:    stats.CheckFailures,
		DurationSeconds:  duration.Seconds(),
		EntriesPerSecond: rate,
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal telemetry: %w", err)
	}

	telemetryPath := filepath.Join(appCtx.ResultsDir, consts.TelemetryFilename)
	f, err := os.OpenFile(telemetryPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, consts.DefaultFilePerm)
	if err != nil {
		return fmt.Errorf("open telemetry file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write telemetry: %w", err)
	}

	return nil
}

// maybeRecordTelemetry records when telemetry is enabled and only logs failures.
func maybeRecordTelemetry(appCtx *AppContext, logID, command string, stats scanner.Stats, duration time.Duration) {
	if appCtx == nil || appCtx.Config == nil || !appCtx.Config.Defaults.TelemetryEnabled {
		return
	}
	if err := recordTelemetry(appCtx, logID, command, stats, duration); err != nil {
		appCtx.logger().Warnw("failed to record telemetry", "error", err)
	}
}
