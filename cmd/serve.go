package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/khanhnv2901/ctaudit/internal/api"
	"github.com/khanhnv2901/ctaudit/internal/application"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run ctaudit as a REST API service",
	RunE: func(cmd *cobra.Command, args []string) error {
		appCtx := getAppContext(cmd)
		addr, _ := cmd.Flags().GetString("addr")
		authToken, _ := cmd.Flags().GetString("auth-token")
		shutdownTimeout, _ := cmd.Flags().GetDuration("shutdown-timeout")
		rateLimit, _ := cmd.Flags().GetInt("rate-limit")
		rateBurst, _ := cmd.Flags().GetInt("rate-burst")
		maxBatch, _ := cmd.Flags().GetInt("max-batch")
		trustedProxies, _ := cmd.Flags().GetString("trusted-proxies")

		if authToken == "" {
			authToken = os.Getenv("CTAUDIT_AUTH_TOKEN")
		}

		services, err := appCtx.Services(cmd.Context())
		if err != nil {
			return err
		}
		logger := appCtx.logger().Desugar()

		server := api.NewServer(api.Config{
			Scans:          services.ScanService,
			Reports:        services.ReportService,
			Health:         &healthAPIService{container: services, resultsDir: appCtx.ResultsDir},
			AuthToken:      authToken,
			Logger:         logger,
			RateLimit:      rateLimit,
			RateBurst:      rateBurst,
			MaxBatchSize:   maxBatch,
			TrustedProxies: splitList(trustedProxies),
		})
		defer server.Close()

		httpServer := &http.Server{
			Addr:         addr,
			Handler:      server,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		}

		// Channel to listen for errors from the server
		serverErrors := make(chan error, 1)

		go func() {
			fmt.Printf("%s API server listening on %s (checks: %v)\n", colorInfo("→"), addr, services.ScanService.CheckNames())
			fmt.Printf("%s Press Ctrl+C to gracefully shutdown\n", colorInfo("→"))
			serverErrors <- httpServer.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(shutdown)

		// Block until we receive a signal or an error
		select {
		case err := <-serverErrors:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}
		case sig := <-shutdown:
			fmt.Printf("\n%s Received signal %v, initiating graceful shutdown...\n", colorInfo("→"), sig)

			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if err := httpServer.Shutdown(ctx); err != nil {
				// Force close if graceful shutdown fails
				if closeErr := httpServer.Close(); closeErr != nil {
					return fmt.Errorf("failed to gracefully shutdown server: %w (close error: %v)", err, closeErr)
				}
				return fmt.Errorf("failed to gracefully shutdown server: %w", err)
			}

			fmt.Printf("%s Server shutdown complete\n", colorSuccess("✓"))
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().String("addr", "127.0.0.1:8080", "Address for the API server")
	serveCmd.Flags().String("auth-token", "", "Shared secret for API requests (or CTAUDIT_AUTH_TOKEN)")
	serveCmd.Flags().Duration("shutdown-timeout", 30*time.Second, "Graceful shutdown timeout")
	serveCmd.Flags().Int("rate-limit", 10, "Rate limit per IP (requests/second, 0 = disabled)")
	serveCmd.Flags().Int("rate-burst", 20, "Rate limit burst size")
	serveCmd.Flags().Int("max-batch", 1024, "Maximum entries accepted by POST /api/v1/scan")
	serveCmd.Flags().String("trusted-proxies", "", "Comma-separated proxy addresses or CIDRs whose X-Forwarded-For is honoured")
	addScanRuntimeFlags(serveCmd)
}

type healthAPIService struct {
	container  *application.Container
	resultsDir string
}

func (s *healthAPIService) Check(ctx context.Context) error {
	if s.container == nil {
		return fmt.Errorf("services not initialized")
	}
	if s.resultsDir == "" {
		return fmt.Errorf("results directory not configured")
	}
	return s.container.Ping(ctx)
}
