package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/khanhnv2901/ctaudit/internal/checker"
	consts "github.com/khanhnv2901/ctaudit/internal/shared/constants"
)

// checkerPluginDefinition is the on-disk form of an external check:
// one JSON file per plugin in the plugins directory.
type checkerPluginDefinition struct {
	Name           string            `json:"name"`
	Description    string            `json:"description"`
	Command        string            `json:"command"`
	Args           []string          `json:"args"`
	Env            map[string]string `json:"env"`
	TimeoutSeconds int               `json:"timeout"`
	APIVersion     int               `json:"api_version"`
}

func loadCheckerPlugins() ([]checker.ExternalCheckConfig, error) {
	pluginsDir, err := getPluginsDir()
	if err != nil {
		return nil, err
	}
	defs, err := loadPluginDefinitions(pluginsDir)
	if err != nil {
		return nil, err
	}

	configs := make([]checker.ExternalCheckConfig, 0, len(defs))
	for _, def := range defs {
		configs = append(configs, checker.ExternalCheckConfig{
			Name:           def.Name,
			Command:        def.Command,
			Args:           def.Args,
			Env:            def.Env,
			TimeoutSeconds: def.TimeoutSeconds,
		})
	}
	return configs, nil
}

// loadPluginDefinitions reads every *.json definition in dir. Invalid files
// are reported on stderr and skipped; a missing dir yields no plugins.
func loadPluginDefinitions(dir string) ([]checkerPluginDefinition, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	defs := make([]checkerPluginDefinition, 0, len(entries))
	seen := make(map[string]bool)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to read plugin %s: %v\n", entry.Name(), err)
			continue
		}

		var def checkerPluginDefinition
		if err := json.Unmarshal(data, &def); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to parse plugin %s: %v\n", entry.Name(), err)
			continue
		}

		if def.APIVersion == 0 {
			def.APIVersion = consts.PluginAPIVersion
		}

		if def.APIVersion != consts.PluginAPIVersion {
			fmt.Fprintf(os.Stderr, "Warning: unsupported plugin API version %d in %s (expected %d)\n", def.APIVersion, entry.Name(), consts.PluginAPIVersion)
			continue
		}

		def.Name = strings.TrimSpace(def.Name)
		if def.Name == "" || def.Command == "" {
			fmt.Fprintf(os.Stderr, "Warning: invalid plugin %s (name and command required)\n", entry.Name())
			continue
		}

		if seen[def.Name] {
			fmt.Fprintf(os.Stderr, "Warning: duplicate plugin name %s in %s\n", def.Name, entry.Name())
			continue
		}
		seen[def.Name] = true

		if def.TimeoutSeconds <= 0 {
			def.TimeoutSeconds = consts.DefaultPluginTimeoutSecs
		}

		defs = append(defs, def)
	}

	return defs, nil
}
