package cmd

import (
	"bufio"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/khanhnv2901/ctaudit/internal/scanner"
)

func TestRecordTelemetry_WritesMetrics(t *testing.T) {
	appCtx := &AppContext{ResultsDir: t.TempDir()}

	stats := scanner.Stats{Entries: 10, StrictOK: 7, LenientOK: 2, Failed: 1, Observations: 5, CheckFailures: 1}
	if err := recordTelemetry(appCtx, "argon2026", "monitor", stats, 2*time.Second); err != nil {
		t.Fatalf("recordTelemetry returned error: %v", err)
	}
	if err := recordTelemetry(appCtx, "", "scan", scanner.Stats{}, 0); err != nil {
		t.Fatalf("recordTelemetry returned error: %v", err)
	}

	f, err := os.Open(filepath.Join(appCtx.ResultsDir, "telemetry.jsonl"))
	if err != nil {
		t.Fatalf("failed to open telemetry file: %v", err)
	}
	defer f.Close()

	var records []telemetryRecord
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var rec telemetryRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			t.Fatalf("failed to decode telemetry: %v", err)
		}
		records = append(records, rec)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 telemetry records, got %d", len(records))
	}

	rec := records[0]
	if rec.Command != "monitor" || rec.LogID != "argon2026" {
		t.Errorf("unexpected record identity %+v", rec)
	}
	if rec.Entries != 10 || rec.StrictOK != 7 || rec.LenientOK != 2 || rec.Failed != 1 || rec.Observations != 5 || rec.CheckFailures != 1 {
		t.Errorf("unexpected counts %+v", rec)
	}
	if math.Abs(rec.EntriesPerSecond-5) > 1e-9 {
		t.Errorf("expected 5 entries/s, got %f", rec.EntriesPerSecond)
	}
	if records[1].EntriesPerSecond != 0 {
		t.Errorf("expected zero rate for zero duration, got %f", records[1].EntriesPerSecond)
	}
}

func TestMaybeRecordTelemetryRespectsConfig(t *testing.T) {
	dir := t.TempDir()
	appCtx := &AppContext{ResultsDir: dir, Config: newCLIConfig()}

	maybeRecordTelemetry(appCtx, "", "scan", scanner.Stats{Entries: 1}, time.Second)
	if _, err := os.Stat(filepath.Join(dir, "telemetry.jsonl")); !os.IsNotExist(err) {
		t.Fatalf("telemetry must not be written when disabled, stat err=%v", err)
	}

	appCtx.Config.Defaults.TelemetryEnabled = true
	maybeRecordTelemetry(appCtx, "", "scan", scanner.Stats{Entries: 1}, time.Second)
	if _, err := os.Stat(filepath.Join(dir, "telemetry.jsonl")); err != nil {
		t.Fatalf("expected telemetry file when enabled: %v", err)
	}
}
