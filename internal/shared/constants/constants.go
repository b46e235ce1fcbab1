package constants

import (
	"io/fs"
)

const (
	// DefaultDirPerm is the default permission used when creating directories.
	DefaultDirPerm fs.FileMode = 0o755
	// DefaultFilePerm is the default permission used when creating files.
	DefaultFilePerm fs.FileMode = 0o644
)

const (
	// TelemetryFilename is the append-only JSON Lines file of per-run metrics.
	TelemetryFilename = "telemetry.jsonl"
	// PluginAPIVersion is the plugin definition format understood by this build.
	PluginAPIVersion = 1
	// DefaultPluginTimeoutSecs bounds one plugin invocation when the definition omits a timeout.
	DefaultPluginTimeoutSecs = 10
)
