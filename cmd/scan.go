package cmd

import (
	"bytes"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/khanhnv2901/ctaudit/internal/application/scanning"
	"github.com/khanhnv2901/ctaudit/internal/domain/scan"
	sharedErrors "github.com/khanhnv2901/ctaudit/internal/shared/errors"
)

type scanParams struct {
	BatchFile      string
	Format         string
	Save           bool
	LogID          string
	StartIndex     int64
	Precert        bool
	FailOnFindings bool
}

var scanOpts scanParams

var scanCmd = &cobra.Command{
	Use:   "scan [files...]",
	Short: "Scan certificate files or a JSON batch of log entries",
	Long: `Scan decodes every input strictly, falls back to lenient decoding, runs the
configured checks on each decodable certificate and prints the observations
keyed by log index.

Files may hold DER or PEM (every CERTIFICATE block becomes one entry). Entries
read from files are numbered from --start-index. A JSON batch (--batch, "-" for
stdin) is either an array of entries or {"entries": [...]}, each entry having
log_index, der (base64) and an optional entry_type.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appCtx := getAppContext(cmd)
		if err := validateFormat(scanOpts.Format); err != nil {
			return err
		}

		entries, err := loadScanInput(cmd.InOrStdin(), args, scanOpts)
		if err != nil {
			return err
		}

		services, err := appCtx.Services(cmd.Context())
		if err != nil {
			return err
		}

		started := time.Now()
		var result *scanning.Result
		if scanOpts.Save {
			start, end, _ := scanning.IndexRange(entries)
			result, err = services.ScanService.ScanAndSave(cmd.Context(), scanOpts.LogID, start, end, entries)
		} else {
			result, err = services.ScanService.Scan(cmd.Context(), entries)
		}
		if err != nil {
			return err
		}
		maybeRecordTelemetry(appCtx, scanOpts.LogID, "scan", result.Stats, time.Since(started))

		out := cmd.OutOrStdout()
		if strings.EqualFold(scanOpts.Format, formatJSON) {
			if err := writeJSONOutput(out, newScanOutput(result)); err != nil {
				return err
			}
		} else {
			renderScanText(out, result)
			if scanOpts.Save {
				fmt.Fprintf(out, "%s Report saved for log %s\n", colorInfo("→"), scanOpts.LogID)
			}
		}

		if scanOpts.FailOnFindings && result.Stats.Observations > 0 {
			return &FindingsError{Observations: result.Stats.Observations, Entries: result.Report.Len()}
		}
		return nil
	},
}

func init() {
	scanCmd.Flags().StringVar(&scanOpts.BatchFile, "batch", "", "JSON batch of log entries to scan (\"-\" reads stdin)")
	scanCmd.Flags().StringVar(&scanOpts.Format, "format", formatText, "output format: text or json")
	scanCmd.Flags().BoolVar(&scanOpts.Save, "save", false, "store the report in the configured repository")
	scanCmd.Flags().StringVar(&scanOpts.LogID, "log-id", "local", "log ID under which --save stores the report")
	scanCmd.Flags().Int64Var(&scanOpts.StartIndex, "start-index", 0, "log index assigned to the first file entry")
	scanCmd.Flags().BoolVar(&scanOpts.Precert, "precert", false, "treat file entries as precertificates")
	scanCmd.Flags().BoolVar(&scanOpts.FailOnFindings, "fail-on-findings", false, "exit non-zero when any observation is recorded")
	addScanRuntimeFlags(scanCmd)
}

// addScanRuntimeFlags registers the flags shared by commands that run the scanner.
func addScanRuntimeFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&cliConfig.Scan.Concurrency, "concurrency", cliConfig.Scan.Concurrency, "number of decode/check workers")
	cmd.Flags().String("checks", strings.Join(cliConfig.Scan.Checks, ","), "comma-separated checks to run, in order (see 'ctaudit checks')")
	cmd.Flags().BoolVar(&cliConfig.Defaults.TelemetryEnabled, "telemetry", cliConfig.Defaults.TelemetryEnabled, "append run metrics to telemetry.jsonl")
}

func loadScanInput(stdin io.Reader, files []string, params scanParams) ([]scan.LogEntry, error) {
	if params.BatchFile != "" && len(files) > 0 {
		return nil, fmt.Errorf("%w: use either --batch or files, not both", sharedErrors.ErrInvalidInput)
	}
	if params.BatchFile != "" {
		return loadBatchFile(stdin, params.BatchFile)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no input files", sharedErrors.ErrMissingRequired)
	}

	entryType := scan.X509Entry
	if params.Precert {
		entryType = scan.PrecertEntry
	}

	var entries []scan.LogEntry
	next := params.StartIndex
	for _, path := range files {
		ders, err := readCertificateFile(path)
		if err != nil {
			return nil, err
		}
		for _, der := range ders {
			entries = append(entries, scan.LogEntry{LogIndex: next, DER: der, EntryType: entryType})
			next++
		}
	}
	return entries, nil
}

// readCertificateFile returns the CERTIFICATE blocks of a PEM file or the raw
// bytes of anything else. Raw bytes are passed through untouched so that
// undecodable input is reported rather than rejected.
func readCertificateFile(path string) ([][]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &InputFileError{Path: path, Err: err}
	}
	if !bytes.Contains(data, []byte("-----BEGIN")) {
		return [][]byte{data}, nil
	}

	var ders [][]byte
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type == "CERTIFICATE" {
			ders = append(ders, block.Bytes)
		}
	}
	if len(ders) == 0 {
		return nil, &InputFileError{Path: path, Err: errors.New("no CERTIFICATE blocks found")}
	}
	return ders, nil
}

func loadBatchFile(stdin io.Reader, path string) ([]scan.LogEntry, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, &InputFileError{Path: path, Err: err}
	}

	trimmed := bytes.TrimSpace(data)
	var entries []scan.LogEntry
	if len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &entries)
	} else {
		var wrapped struct {
			Entries []scan.LogEntry `json:"entries"`
		}
		err = json.Unmarshal(trimmed, &wrapped)
		entries = wrapped.Entries
	}
	if err != nil {
		return nil, &InputFileError{Path: path, Err: err}
	}
	if len(entries) == 0 {
		return nil, &InputFileError{Path: path, Err: sharedErrors.ErrEmptyBatch}
	}
	return entries, nil
}
