package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/khanhnv2901/ctaudit/internal/application/scanning"
	"github.com/khanhnv2901/ctaudit/internal/domain/observation"
	"github.com/khanhnv2901/ctaudit/internal/domain/scan"
	"github.com/khanhnv2901/ctaudit/internal/scanner"
)

const (
	formatText = "text"
	formatJSON = "json"
)

func validateFormat(format string) error {
	switch strings.ToLower(format) {
	case formatText, formatJSON:
		return nil
	}
	return &UnsupportedFormatError{Format: format}
}

func writeJSONOutput(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// scanOutput is the --format json shape of a scan.
type scanOutput struct {
	Report      *scan.Report             `json:"report"`
	Descriptors []scanner.CertDescriptor `json:"descriptors"`
	Stats       scanner.Stats            `json:"stats"`
}

func newScanOutput(result *scanning.Result) scanOutput {
	descriptors := make([]scanner.CertDescriptor, 0, len(result.Descriptors))
	for _, d := range result.Descriptors {
		descriptors = append(descriptors, d)
	}
	sort.Slice(descriptors, func(i, j int) bool { return descriptors[i].LogIndex < descriptors[j].LogIndex })
	return scanOutput{Report: result.Report, Descriptors: descriptors, Stats: result.Stats}
}

// renderScanText prints one block per entry in report order followed by totals.
func renderScanText(w io.Writer, result *scanning.Result) {
	stats := result.Stats
	fmt.Fprintf(w, "Scanned %d entries in %s (strict %d, lenient %d, failed %d)\n",
		stats.Entries, stats.Duration.Round(time.Millisecond), stats.StrictOK, stats.LenientOK, stats.Failed)

	for _, index := range result.Report.Indices() {
		d := result.Descriptors[index]
		line := fmt.Sprintf("#%d  %s  %s", index, formatOutcomeWithColor(d.Outcome), d.EntryType)
		if d.Certificate != nil && d.Certificate.Certificate != nil {
			if cn := d.Certificate.Certificate.Subject.CommonName; cn != "" {
				line += "  " + cn
			}
		}
		fmt.Fprintln(w, line)

		obs, _ := result.Report.Observations(index)
		renderObservations(w, obs)
	}

	summary := fmt.Sprintf("Observations: %d", stats.Observations)
	if stats.CheckFailures > 0 {
		summary += colorError(fmt.Sprintf(" (check failures: %d)", stats.CheckFailures))
	}
	fmt.Fprintln(w, summary)
}

func renderObservations(w io.Writer, obs []observation.Observation) {
	if len(obs) == 0 {
		fmt.Fprintf(w, "    %s\n", colorSuccess("no observations"))
		return
	}
	for _, o := range obs {
		line := fmt.Sprintf("    [%s] %s", formatKindWithColor(o.Kind()), o.Description())
		if detail, ok := o.Detail(); ok && detail != "" {
			line += ": " + detail
		}
		fmt.Fprintln(w, line)
	}
}
