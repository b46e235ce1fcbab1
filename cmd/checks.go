package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

var checksCmd = &cobra.Command{
	Use:   "checks",
	Short: "List registered checks and plugins",
	RunE: func(cmd *cobra.Command, args []string) error {
		appCtx := getAppContext(cmd)
		services, err := appCtx.Services(cmd.Context())
		if err != nil {
			return err
		}

		pluginsDir, _ := getPluginsDir()
		renderChecks(cmd.OutOrStdout(), services.Registry.Names(), services.ScanService.CheckNames(), pluginsDir)
		return nil
	},
}

func renderChecks(w io.Writer, registered, enabled []string, pluginsDir string) {
	position := make(map[string]int, len(enabled))
	for i, name := range enabled {
		position[name] = i + 1
	}

	fmt.Fprintln(w, "Registered checks:")
	for _, name := range registered {
		source := "built-in"
		if strings.HasPrefix(name, "plugin:") {
			source = "plugin"
		}
		status := colorWarn("disabled")
		if n, ok := position[name]; ok {
			status = colorSuccess(fmt.Sprintf("enabled #%d", n))
		}
		fmt.Fprintf(w, "  %-24s %-9s %s\n", name, source, status)
	}
	if pluginsDir != "" {
		fmt.Fprintf(w, "Plugin definitions are read from %s\n", pluginsDir)
	}
}
