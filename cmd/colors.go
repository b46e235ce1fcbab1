package cmd

import (
	"github.com/fatih/color"

	"github.com/khanhnv2901/ctaudit/internal/certdecode"
	"github.com/khanhnv2901/ctaudit/internal/domain/observation"
)

var (
	colorSuccess = color.New(color.FgGreen).SprintFunc()
	colorInfo    = color.New(color.FgCyan).SprintFunc()
	colorWarn    = color.New(color.FgYellow).SprintFunc()
	colorError   = color.New(color.FgRed).SprintFunc()
)

// formatOutcomeWithColor colors a decode outcome as printed in text reports.
func formatOutcomeWithColor(outcome certdecode.Outcome) string {
	s := outcome.String()
	switch outcome {
	case certdecode.StrictOK:
		return colorSuccess(s)
	case certdecode.LenientOK:
		return colorWarn(s)
	case certdecode.Failed:
		return colorError(s)
	default:
		return s
	}
}

func formatKindWithColor(kind observation.Kind) string {
	s := string(kind)
	switch kind {
	case observation.KindStrict:
		return colorWarn(s)
	case observation.KindAll, observation.KindCheckFailure:
		return colorError(s)
	default:
		return colorInfo(s)
	}
}
