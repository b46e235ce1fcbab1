package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/khanhnv2901/ctaudit/internal/application/monitor"
)

const (
	defaultScanConcurrency = 4
	defaultLogTimeoutSecs  = 30
	defaultLogRateLimit    = 0
)

// CLIConfig captures runtime configuration shared across commands.
type CLIConfig struct {
	Defaults DefaultValues
	Scan     ScanRuntimeConfig
	Log      LogConfig
}

// DefaultValues represent storage and telemetry defaults, typically derived from env/config.
type DefaultValues struct {
	ResultsDir       string
	DatabaseURL      string
	TelemetryEnabled bool
}

// ScanRuntimeConfig consolidates flag-driven settings for scan and monitor.
type ScanRuntimeConfig struct {
	Concurrency int
	// Checks names the registered checks to run, in order. Empty runs none.
	Checks    []string
	BatchSize int
}

// LogConfig controls how a CT log is contacted.
type LogConfig struct {
	// RateLimit is requests per second against the log (0 = unlimited).
	RateLimit   float64
	TimeoutSecs int
}

type defaultOverrides struct {
	ResultsDir       string
	DatabaseURL      string
	TelemetryEnabled *bool
	Concurrency      *int
	Checks           []string
	ChecksSet        bool
	BatchSize        *int
	RateLimit        *float64
	TimeoutSecs      *int
}

var cliConfig = newCLIConfig()

func newCLIConfig() *CLIConfig {
	return &CLIConfig{
		Defaults: DefaultValues{
			TelemetryEnabled: false,
		},
		Scan: ScanRuntimeConfig{
			Concurrency: defaultScanConcurrency,
			Checks:      []string{"compliance", "zlint"},
			BatchSize:   monitor.DefaultBatchSize,
		},
		Log: LogConfig{
			RateLimit:   defaultLogRateLimit,
			TimeoutSecs: defaultLogTimeoutSecs,
		},
	}
}

func loadDefaultOverrides() defaultOverrides {
	overrides := defaultOverrides{}

	if viper.IsSet("results_dir") {
		overrides.ResultsDir = viper.GetString("results_dir")
	}

	if viper.IsSet("database_url") {
		overrides.DatabaseURL = viper.GetString("database_url")
	}

	if viper.IsSet("telemetry") {
		val := viper.GetBool("telemetry")
		overrides.TelemetryEnabled = &val
	}

	if viper.IsSet("scan.concurrency") {
		val := viper.GetInt("scan.concurrency")
		overrides.Concurrency = &val
	}

	if viper.IsSet("scan.checks") {
		overrides.Checks = splitList(strings.Join(viper.GetStringSlice("scan.checks"), ","))
		overrides.ChecksSet = true
	}

	if viper.IsSet("scan.batch_size") {
		val := viper.GetInt("scan.batch_size")
		overrides.BatchSize = &val
	}

	if viper.IsSet("log.rate_limit") {
		val := viper.GetFloat64("log.rate_limit")
		overrides.RateLimit = &val
	}

	if viper.IsSet("log.timeout_secs") {
		val := viper.GetInt("log.timeout_secs")
		overrides.TimeoutSecs = &val
	}

	return overrides
}

// applyConfigDefaults merges config file and environment defaults into the
// runtime config when the user did not explicitly override the corresponding flag.
func applyConfigDefaults(cmd *cobra.Command) {
	overrides := loadDefaultOverrides()
	flags := cmd.Flags()

	if overrides.ResultsDir != "" {
		applyStringDefault(flags, "results-dir", overrides.ResultsDir, func(v string) {
			cliConfig.Defaults.ResultsDir = v
		})
	}

	if overrides.DatabaseURL != "" {
		applyStringDefault(flags, "database-url", overrides.DatabaseURL, func(v string) {
			cliConfig.Defaults.DatabaseURL = v
		})
	}

	if overrides.TelemetryEnabled != nil {
		applyBoolDefault(flags, "telemetry", *overrides.TelemetryEnabled, func(v bool) {
			cliConfig.Defaults.TelemetryEnabled = v
		})
	}

	if overrides.Concurrency != nil {
		applyIntDefault(flags, "concurrency", *overrides.Concurrency, func(v int) {
			cliConfig.Scan.Concurrency = v
		})
	}

	if overrides.ChecksSet {
		if flag := flags.Lookup("checks"); flag == nil || !flag.Changed {
			cliConfig.Scan.Checks = overrides.Checks
		}
	}

	if overrides.BatchSize != nil {
		applyIntDefault(flags, "batch-size", *overrides.BatchSize, func(v int) {
			cliConfig.Scan.BatchSize = v
		})
	}

	if overrides.RateLimit != nil {
		if flag := flags.Lookup("log-rate-limit"); flag == nil || !flag.Changed {
			cliConfig.Log.RateLimit = *overrides.RateLimit
		}
	}

	if overrides.TimeoutSecs != nil {
		applyIntDefault(flags, "log-timeout", *overrides.TimeoutSecs, func(v int) {
			cliConfig.Log.TimeoutSecs = v
		})
	}

	applyChecksFlag(flags)
}

// applyChecksFlag copies an explicit comma-separated --checks value into the
// runtime config. An empty value disables every check.
func applyChecksFlag(flags *pflag.FlagSet) {
	if flags == nil {
		return
	}
	flag := flags.Lookup("checks")
	if flag == nil || !flag.Changed {
		return
	}
	cliConfig.Scan.Checks = splitList(flag.Value.String())
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func applyIntDefault(flags *pflag.FlagSet, name string, value int, setter func(int)) {
	if flags == nil || setter == nil {
		return
	}
	flag := flags.Lookup(name)
	if flag != nil && flag.Changed {
		return
	}
	setter(value)
}

func applyBoolDefault(flags *pflag.FlagSet, name string, value bool, setter func(bool)) {
	if flags == nil || setter == nil {
		return
	}
	flag := flags.Lookup(name)
	if flag != nil && flag.Changed {
		return
	}
	setter(value)
}

func applyStringDefault(flags *pflag.FlagSet, name, value string, setter func(string)) {
	if flags == nil || setter == nil {
		return
	}
	flag := flags.Lookup(name)
	if flag != nil && flag.Changed {
		return
	}
	setter(value)
}
