package cmd

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/khanhnv2901/ctaudit/internal/domain/observation"
	"github.com/khanhnv2901/ctaudit/internal/domain/scan"
	sharedErrors "github.com/khanhnv2901/ctaudit/internal/shared/errors"
)

type reportParams struct {
	LogID  string
	Index  int64
	Format string
}

var reportOpts reportParams

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print stored observations for a log",
	Long: `Report prints what earlier scans stored for a log. Without --index it lists
the progress and every stored report with observation counts by kind; with
--index it prints the observations recorded for that log entry.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appCtx := getAppContext(cmd)
		if err := scan.ValidateLogID(reportOpts.LogID); err != nil {
			return err
		}
		if err := validateFormat(reportOpts.Format); err != nil {
			return err
		}

		services, err := appCtx.Services(cmd.Context())
		if err != nil {
			return err
		}
		reports := services.ReportService
		out := cmd.OutOrStdout()
		asJSON := strings.EqualFold(reportOpts.Format, formatJSON)

		if cmd.Flags().Changed("index") {
			obs, err := reports.Observations(cmd.Context(), reportOpts.LogID, reportOpts.Index)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSONOutput(out, entryOutput{
					LogID:        reportOpts.LogID,
					LogIndex:     reportOpts.Index,
					Observations: obs,
				})
			}
			fmt.Fprintf(out, "%s #%d\n", reportOpts.LogID, reportOpts.Index)
			renderObservations(out, obs)
			return nil
		}

		progress, err := reports.Progress(cmd.Context(), reportOpts.LogID)
		if err != nil && !errors.Is(err, sharedErrors.ErrProgressNotFound) {
			return err
		}
		stored, err := reports.Reports(cmd.Context(), reportOpts.LogID)
		if err != nil {
			return err
		}

		if asJSON {
			return writeJSONOutput(out, logOutput{LogID: reportOpts.LogID, Progress: progress, Reports: stored})
		}
		renderLogText(out, reportOpts.LogID, progress, stored)
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportOpts.LogID, "log", "", "log ID to report on (required)")
	reportCmd.Flags().Int64Var(&reportOpts.Index, "index", 0, "print the observations of one log entry")
	reportCmd.Flags().StringVar(&reportOpts.Format, "format", formatText, "output format: text or json")
	_ = reportCmd.MarkFlagRequired("log")
}

type entryOutput struct {
	LogID        string                    `json:"log_id"`
	LogIndex     int64                     `json:"log_index"`
	Observations []observation.Observation `json:"observations"`
}

type logOutput struct {
	LogID    string              `json:"log_id"`
	Progress *scan.Progress      `json:"progress,omitempty"`
	Reports  []scan.StoredReport `json:"reports"`
}

func renderLogText(w io.Writer, logID string, progress *scan.Progress, reports []scan.StoredReport) {
	fmt.Fprintf(w, "Log: %s\n", logID)
	if progress != nil {
		fmt.Fprintf(w, "Progress: next index %d of tree size %d (updated %s)\n",
			progress.NextIndex, progress.TreeSize, progress.UpdatedAt.Format(time.RFC3339))
	} else {
		fmt.Fprintln(w, "Progress: none recorded")
	}

	if len(reports) == 0 {
		fmt.Fprintln(w, colorWarn("No reports stored"))
		return
	}

	totals := map[observation.Kind]int{}
	for _, r := range reports {
		counts := map[observation.Kind]int{}
		for _, o := range r.Report.All() {
			counts[o.Kind()]++
			totals[o.Kind()]++
		}
		fmt.Fprintf(w, "  [%d, %d] %d entries scanned %s  %s\n",
			r.Start, r.End, r.Report.Len(), r.ScannedAt.Format(time.RFC3339), formatKindCounts(counts))
	}
	fmt.Fprintf(w, "Total: %s\n", formatKindCounts(totals))
}

// formatKindCounts renders counts sorted by kind, e.g. "all=1 strict=2".
func formatKindCounts(counts map[observation.Kind]int) string {
	if len(counts) == 0 {
		return colorSuccess("no observations")
	}
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)

	parts := make([]string, 0, len(kinds))
	for _, k := range kinds {
		parts = append(parts, fmt.Sprintf("%s=%d", formatKindWithColor(observation.Kind(k)), counts[observation.Kind(k)]))
	}
	return strings.Join(parts, " ")
}
