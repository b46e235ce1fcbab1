package application

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	monitorapp "github.com/khanhnv2901/ctaudit/internal/application/monitor"
	reportapp "github.com/khanhnv2901/ctaudit/internal/application/report"
	scanapp "github.com/khanhnv2901/ctaudit/internal/application/scanning"
	"github.com/khanhnv2901/ctaudit/internal/checker"
	"github.com/khanhnv2901/ctaudit/internal/domain/scan"
	"github.com/khanhnv2901/ctaudit/internal/infrastructure/persistence/json"
	"github.com/khanhnv2901/ctaudit/internal/infrastructure/persistence/postgres"
)

// Config selects storage and scan settings for a Container.
type Config struct {
	ResultsDir  string
	DatabaseURL string
	Checks      []string
	Concurrency int
	Plugins     []checker.ExternalCheckConfig
	Logger      *zap.Logger
}

// Container holds all application services and repositories
// This is a simple dependency injection container
type Container struct {
	// Repositories
	ReportRepo   scan.ReportRepository
	ProgressRepo scan.ProgressRepository

	Registry *checker.Registry

	// Services
	ScanService   *scanapp.Service
	ReportService *reportapp.Service

	logger *zap.Logger
	db     *postgres.DB
}

// NewContainer creates a new application service container. Reports go to
// PostgreSQL when DatabaseURL is set and to JSON files under ResultsDir otherwise.
func NewContainer(ctx context.Context, cfg Config) (*Container, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	registry := checker.DefaultRegistry()
	for _, p := range cfg.Plugins {
		if err := registry.Register(checker.NewExternalCheck(p)); err != nil {
			return nil, fmt.Errorf("failed to register plugin %s: %w", p.Name, err)
		}
	}

	c := &Container{Registry: registry, logger: logger}

	if cfg.DatabaseURL != "" {
		db, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		c.db = db
		c.ReportRepo = postgres.NewReportRepository(db)
		c.ProgressRepo = postgres.NewProgressRepository(db)
	} else {
		reportRepo, err := json.NewReportRepository(cfg.ResultsDir)
		if err != nil {
			return nil, fmt.Errorf("failed to create report repository: %w", err)
		}
		progressRepo, err := json.NewProgressRepository(cfg.ResultsDir)
		if err != nil {
			return nil, fmt.Errorf("failed to create progress repository: %w", err)
		}
		c.ReportRepo = reportRepo
		c.ProgressRepo = progressRepo
	}

	scanService, err := scanapp.NewService(registry, cfg.Checks, cfg.Concurrency, c.ReportRepo, logger)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.ScanService = scanService
	c.ReportService = reportapp.NewService(c.ReportRepo, c.ProgressRepo)

	return c, nil
}

// MonitorService builds a monitor for one log source
func (c *Container) MonitorService(source monitorapp.EntrySource, opts ...monitorapp.Option) *monitorapp.Service {
	opts = append([]monitorapp.Option{monitorapp.WithLogger(c.logger)}, opts...)
	return monitorapp.NewService(source, c.ScanService, c.ProgressRepo, opts...)
}

// Ping reports whether the report store is reachable.
func (c *Container) Ping(ctx context.Context) error {
	if c.db != nil {
		return c.db.Pool.Ping(ctx)
	}
	return nil
}

// Close releases the database pool, if any
func (c *Container) Close() {
	if c.db != nil {
		c.db.Close()
		c.db = nil
	}
}
