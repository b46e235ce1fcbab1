package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/khanhnv2901/ctaudit/internal/application"
	consts "github.com/khanhnv2901/ctaudit/internal/shared/constants"
)

var cfgFile string
var verbose bool

// AppContext carries what every subcommand needs once the root has run.
type AppContext struct {
	Logger     *zap.SugaredLogger
	ResultsDir string
	Config     *CLIConfig

	services *application.Container
}

var globalAppContext *AppContext

var rootCmd = &cobra.Command{
	Use:           "ctaudit",
	Short:         "Audit certificates logged in Certificate Transparency logs",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initConfig(); err != nil {
			return err
		}
		applyConfigDefaults(cmd)

		resultsDir := cliConfig.Defaults.ResultsDir
		if resultsDir == "" {
			dir, err := getResultsDir()
			if err != nil {
				return err
			}
			resultsDir = dir
		}
		if err := os.MkdirAll(resultsDir, consts.DefaultDirPerm); err != nil {
			return fmt.Errorf("failed to create results directory: %w", err)
		}
		// Make final resultsDir absolute (for clarity in logs)
		if abs, err := filepath.Abs(resultsDir); err == nil {
			resultsDir = abs
		}

		l, err := newLogger(verbose)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		logger := l.Sugar()
		logger.Debugw("configuration loaded",
			"results_dir", resultsDir,
			"config_file", viper.ConfigFileUsed(),
			"database", cliConfig.Defaults.DatabaseURL != "",
		)

		storeAppContext(cmd, &AppContext{
			Logger:     logger,
			ResultsDir: resultsDir,
			Config:     cliConfig,
		})
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		appCtx := getAppContext(cmd)
		if appCtx == nil {
			return
		}
		appCtx.Close()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, colorError("Error:"), err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.ctaudit.yaml)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable development logging")
	rootCmd.PersistentFlags().StringVar(&cliConfig.Defaults.ResultsDir, "results-dir", "", "directory for JSON reports (default is the user data directory)")
	rootCmd.PersistentFlags().StringVar(&cliConfig.Defaults.DatabaseURL, "database-url", "", "PostgreSQL URL; reports are stored in the database when set")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(checksCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".ctaudit")
		viper.SetConfigType("yaml")
	}
	viper.SetEnvPrefix("CTAUDIT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}

func newLogger(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func storeAppContext(cmd *cobra.Command, appCtx *AppContext) {
	globalAppContext = appCtx
	if cmd != nil {
		cmd.SetContext(context.WithValue(commandContext(cmd), appContextKey{}, appCtx))
	}
}

func getAppContext(cmd *cobra.Command) *AppContext {
	if cmd != nil && cmd.Context() != nil {
		if appCtx, ok := cmd.Context().Value(appContextKey{}).(*AppContext); ok {
			return appCtx
		}
	}
	return globalAppContext
}

type appContextKey struct{}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// Services lazily builds the application container so commands that never
// touch storage do not open a database connection.
func (a *AppContext) Services(ctx context.Context) (*application.Container, error) {
	if a.services != nil {
		return a.services, nil
	}

	plugins, err := loadCheckerPlugins()
	if err != nil {
		a.logger().Warnw("unable to load plugins", "error", err)
	}

	var zl *zap.Logger
	if a.Logger != nil {
		zl = a.Logger.Desugar()
	}

	c, err := application.NewContainer(ctx, application.Config{
		ResultsDir:  a.ResultsDir,
		DatabaseURL: a.Config.Defaults.DatabaseURL,
		Checks:      a.Config.Scan.Checks,
		Concurrency: a.Config.Scan.Concurrency,
		Plugins:     plugins,
		Logger:      zl,
	})
	if err != nil {
		return nil, err
	}
	a.services = c
	return c, nil
}

// Close releases the container and flushes the logger.
func (a *AppContext) Close() {
	if a.services != nil {
		a.services.Close()
		a.services = nil
	}
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
}

func (a *AppContext) logger() *zap.SugaredLogger {
	if a.Logger == nil {
		return zap.NewNop().Sugar()
	}
	return a.Logger
}
