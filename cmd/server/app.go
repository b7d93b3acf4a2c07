package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/warp/creative-boost/config"
	"github.com/warp/creative-boost/credits"
	"github.com/warp/creative-boost/logging"
	"github.com/warp/creative-boost/store/sqlite"
)

// app is the wired dependency graph shared by every command.
type app struct {
	cfg     config.Config
	logger  *zap.Logger
	store   *sqlite.Store
	service *credits.Service
}

func newApp(cmd *cobra.Command) (*app, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if db, _ := cmd.Flags().GetString("db"); db != "" {
		cfg.Database.Path = db
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}

	logger, err := logging.New(logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		Production: cfg.Log.Production,
	})
	if err != nil {
		return nil, err
	}

	if cfg.Database.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	opts, err := cfg.CreditOptions()
	if err != nil {
		store.Close()
		return nil, err
	}
	serviceOpts := []credits.ServiceOption{credits.WithLogger(logger)}
	if cfg.Credits.SummaryCacheTTL > 0 {
		serviceOpts = append(serviceOpts, credits.WithSummaryCache(credits.NewSummaryCache(cfg.Credits.SummaryCacheTTL)))
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		service: credits.NewService(store, store, store, opts, serviceOpts...),
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("close database", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// periodFlags reads --year/--month, defaulting to the current month.
func periodFlags(cmd *cobra.Command) (credits.Period, error) {
	year, _ := cmd.Flags().GetInt("year")
	month, _ := cmd.Flags().GetInt("month")

	now := credits.PeriodOf(time.Now())
	if year == 0 {
		year = now.Year
	}
	if month == 0 {
		month = int(now.Month)
	}
	return credits.ParsePeriod(year, month)
}

func addPeriodFlags(cmd *cobra.Command) {
	cmd.Flags().Int("year", 0, "Year (default: current)")
	cmd.Flags().Int("month", 0, "Month 1-12 (default: current)")
}
