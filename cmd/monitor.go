package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/khanhnv2901/ctaudit/internal/application/monitor"
	"github.com/khanhnv2901/ctaudit/internal/ctlog"
	"github.com/khanhnv2901/ctaudit/internal/domain/scan"
	"github.com/khanhnv2901/ctaudit/internal/scanner"
	sharedErrors "github.com/khanhnv2901/ctaudit/internal/shared/errors"
)

type monitorParams struct {
	LogURL     string
	LogID      string
	MaxEntries int64
	StartIndex int64
	Progress   bool
	Format     string
}

var monitorOpts monitorParams

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Scan a CT log from its stored progress up to the current tree size",
	Long: `Monitor runs one pass over a CT log: it resumes from the stored progress of the
log, fetches entries in batches, scans them and saves one report per batch.
Progress advances only after a batch is saved, so an interrupted pass can be
rerun safely.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appCtx := getAppContext(cmd)
		if strings.TrimSpace(monitorOpts.LogURL) == "" {
			return fmt.Errorf("%w: --log-url", sharedErrors.ErrMissingRequired)
		}
		if err := validateFormat(monitorOpts.Format); err != nil {
			return err
		}

		logID := monitorOpts.LogID
		if logID == "" {
			logID = scan.LogIDFromURL(monitorOpts.LogURL)
		}
		if err := scan.ValidateLogID(logID); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		services, err := appCtx.Services(ctx)
		if err != nil {
			return err
		}

		fetcher, err := ctlog.NewFetcher(ctlog.Config{
			URL:       monitorOpts.LogURL,
			RateLimit: appCtx.Config.Log.RateLimit,
			Timeout:   time.Duration(appCtx.Config.Log.TimeoutSecs) * time.Second,
			Logger:    appCtx.logger().Desugar(),
		})
		if err != nil {
			return err
		}

		opts := []monitor.Option{
			monitor.WithBatchSize(appCtx.Config.Scan.BatchSize),
			monitor.WithMaxEntries(monitorOpts.MaxEntries),
			monitor.WithStartIndex(monitorOpts.StartIndex),
		}

		var totals scanner.Stats
		var printer *progressPrinter
		if monitorOpts.Progress {
			printer = newProgressPrinter(cmd.ErrOrStderr(), 0, logID)
			printer.Start()
		}
		totalsKnown := false
		opts = append(opts, monitor.WithBatchCallback(func(b monitor.BatchResult) {
			totals.Entries += int(b.End - b.Start + 1)
			totals.Failed += b.Failed
			totals.Observations += b.Observations
			if printer == nil {
				return
			}
			if !totalsKnown {
				total := b.TreeSize - b.Start
				if monitorOpts.MaxEntries > 0 && monitorOpts.MaxEntries < total {
					total = monitorOpts.MaxEntries
				}
				printer.SetTotal(total)
				totalsKnown = true
			}
			printer.Add(b.End-b.Start+1, b.Failed, b.Observations)
		}))

		started := time.Now()
		summary, runErr := services.MonitorService(fetcher, opts...).RunOnce(ctx, logID)
		maybeRecordTelemetry(appCtx, logID, "monitor", totals, time.Since(started))
		if printer != nil {
			printer.Stop()
		}

		if summary != nil {
			if err := printMonitorSummary(cmd, summary); err != nil {
				return err
			}
		}
		if runErr != nil {
			return fmt.Errorf("monitor pass for %s stopped: %w", logID, runErr)
		}
		return nil
	},
}

func init() {
	monitorCmd.Flags().StringVar(&monitorOpts.LogURL, "log-url", "", "base URL of the CT log (required)")
	monitorCmd.Flags().StringVar(&monitorOpts.LogID, "log-id", "", "storage ID of the log (default derived from --log-url)")
	monitorCmd.Flags().Int64Var(&monitorOpts.MaxEntries, "max-entries", 0, "stop after this many entries (0 = up to the tree size)")
	monitorCmd.Flags().Int64Var(&monitorOpts.StartIndex, "start-index", 0, "first index when the log has no stored progress")
	monitorCmd.Flags().BoolVar(&monitorOpts.Progress, "progress", true, "show a progress line on stderr")
	monitorCmd.Flags().StringVar(&monitorOpts.Format, "format", formatText, "summary format: text or json")
	monitorCmd.Flags().IntVar(&cliConfig.Scan.BatchSize, "batch-size", cliConfig.Scan.BatchSize, "entries fetched and scanned per batch")
	monitorCmd.Flags().Float64Var(&cliConfig.Log.RateLimit, "log-rate-limit", cliConfig.Log.RateLimit, "maximum requests per second against the log (0 = unlimited)")
	monitorCmd.Flags().IntVar(&cliConfig.Log.TimeoutSecs, "log-timeout", cliConfig.Log.TimeoutSecs, "HTTP timeout in seconds for log requests")
	addScanRuntimeFlags(monitorCmd)
}

func printMonitorSummary(cmd *cobra.Command, summary *monitor.Summary) error {
	out := cmd.OutOrStdout()
	if strings.EqualFold(monitorOpts.Format, formatJSON) {
		return writeJSONOutput(out, summary)
	}

	if summary.Batches == 0 {
		fmt.Fprintf(out, "%s %s is up to date at index %d (tree size %d)\n",
			colorSuccess("✓"), summary.LogID, summary.NextIndex, summary.TreeSize)
		return nil
	}
	fmt.Fprintf(out, "%s %s: scanned %d entries [%d, %d) in %d batches, %d observations (%s)\n",
		colorSuccess("✓"), summary.LogID, summary.Entries, summary.StartIndex, summary.NextIndex,
		summary.Batches, summary.Observations, summary.Duration.Round(time.Millisecond))
	if summary.NextIndex < summary.TreeSize {
		fmt.Fprintf(out, "%s %d entries remain before tree size %d\n",
			colorWarn("!"), summary.TreeSize-summary.NextIndex, summary.TreeSize)
	}
	return nil
}
