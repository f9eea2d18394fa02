package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"leadgen_backend/internal/adapters/storage"
	"leadgen_backend/internal/email"
	"leadgen_backend/internal/events"
	"leadgen_backend/internal/forecasting"
	"leadgen_backend/internal/leads"
	"leadgen_backend/internal/notification"
	"leadgen_backend/internal/regions"
	"leadgen_backend/platform/config"
	"leadgen_backend/platform/db"
	"leadgen_backend/platform/logger"
	"leadgen_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

var flagRegionsFile string

var rootCmd = &cobra.Command{
	Use:           "surgectl",
	Short:         "Operate demand-surge forecasting and lead scoring",
	Long:          "surgectl labels activity, builds features, trains and predicts surge models, runs the weekly batch and scores leads against the configured database.",
	SilenceUsage:  true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagRegionsFile, "regions", "", "path to the region registry (default REGIONS_FILE)")

	rootCmd.AddCommand(labelCmd)
	rootCmd.AddCommand(featuresCmd)
	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(predictCmd)
	rootCmd.AddCommand(weeklyCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(exportKeyCmd)
}

// runtime is the wiring shared by every subcommand.
type runtime struct {
	cfg      *config.Config
	log      *logger.Logger
	pool     *pgxpool.Pool
	bus      *events.InMemoryBus
	registry *regions.Registry
	forecast *forecasting.Module
	leads    *leads.Module
}

func newRuntime(ctx context.Context, withLeads bool) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if flagRegionsFile != "" {
		cfg.RegionsFile = flagRegionsFile
	}

	// stdout carries command output.
	log := logger.NewWithWriter(cfg.Env, os.Stderr)

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	registry, err := regions.Load(cfg.GetRegionsFile())
	if err != nil {
		pool.Close()
		return nil, err
	}

	var blobs storage.BlobStore
	if cfg.IsMinIOEnabled() {
		svc, err := storage.NewMinIOService(cfg)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("init storage: %w", err)
		}
		blobs = svc
	}

	bus := events.NewInMemoryBus(log)
	notification.New(email.NewSender(cfg), cfg.GetOperatorEmails(), log).RegisterHandlers(bus)
	fm, err := forecasting.NewModule(forecasting.Infra{
		Pool:     pool,
		Bus:      bus,
		Blobs:    blobs,
		Registry: registry,
	}, validator.New(), cfg, log)
	if err != nil {
		pool.Close()
		return nil, err
	}

	rt := &runtime{cfg: cfg, log: log, pool: pool, bus: bus, registry: registry, forecast: fm}
	if withLeads {
		lm, err := leads.NewModule(ctx, pool, bus, cfg, log)
		if err != nil {
			pool.Close()
			return nil, err
		}
		rt.leads = lm
	}
	return rt, nil
}

func (r *runtime) Close() {
	r.bus.Wait()
	r.pool.Close()
}

func (r *runtime) requireRegion(id string) error {
	if id == "" {
		return fmt.Errorf("--region is required")
	}
	if !r.registry.Has(id) {
		return fmt.Errorf("unknown region %q", id)
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseDate accepts YYYY-MM-DD; empty returns fallback.
func parseDate(value string, fallback time.Time) (time.Time, error) {
	if value == "" {
		return fallback, nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", value)
	}
	return t, nil
}
