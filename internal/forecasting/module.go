// Package forecasting provides the demand-surge bounded context module.
// This file wires labeling, features, training, prediction, the weekly batch
// and the HTTP handler onto shared infrastructure.
package forecasting

import (
	"leadgen_backend/internal/adapters/storage"
	"leadgen_backend/internal/events"
	"leadgen_backend/internal/forecasting/artifacts"
	"leadgen_backend/internal/forecasting/cache"
	"leadgen_backend/internal/forecasting/features"
	"leadgen_backend/internal/forecasting/forecaster"
	"leadgen_backend/internal/forecasting/handler"
	"leadgen_backend/internal/forecasting/jobs"
	"leadgen_backend/internal/forecasting/labeling"
	"leadgen_backend/internal/forecasting/ports"
	"leadgen_backend/internal/forecasting/repository"
	apphttp "leadgen_backend/internal/http"
	"leadgen_backend/internal/regions"
	"leadgen_backend/platform/config"
	"leadgen_backend/platform/logger"
	"leadgen_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Infra holds the shared clients. Blobs and Redis are optional.
type Infra struct {
	Pool     *pgxpool.Pool
	Bus      events.Bus
	Blobs    storage.BlobStore
	Redis    *redis.Client
	Registry *regions.Registry
	// TrainQueue enqueues background training from the API; nil disables it.
	TrainQueue handler.TrainEnqueuer
}

// Module is the forecasting bounded context module implementing http.Module.
type Module struct {
	repo       *repository.Repository
	labeler    *labeling.Labeler
	engineer   *features.Engineer
	forecaster *forecaster.Forecaster
	weekly     *jobs.WeeklyInferenceJob
	forecasts  ports.ForecastStore
	models     *artifacts.ModelStore
	handler    *handler.Handler
}

// NewModule creates and initializes the forecasting module.
func NewModule(infra Infra, val *validator.Validator, cfg config.ForecastConfig, log *logger.Logger) (*Module, error) {
	repo := repository.New(infra.Pool)

	policy, err := forecaster.PolicyByName(cfg.GetModelSelection())
	if err != nil {
		return nil, err
	}

	var forecasts ports.ForecastStore = repo
	if infra.Redis != nil {
		fc := cache.New(repo, infra.Redis, cfg.GetForecastCacheTTL(), log)
		fc.Subscribe(infra.Bus)
		forecasts = fc
	}

	models := artifacts.NewModelStore(repo, infra.Blobs, cfg.GetModelBucket())
	var reports ports.ReportStore
	if infra.Blobs != nil {
		reports = artifacts.NewReportStore(infra.Blobs, cfg.GetReportBucket())
	}

	labeler := labeling.New(repo, repo, val, log)
	engineer := features.New(repo, repo, repo, log)
	fc := forecaster.New(forecaster.Deps{
		Labeler:   labeler,
		Features:  engineer,
		Latest:    repo,
		Models:    models,
		Forecasts: forecasts,
		Policy:    policy,
		Bus:       infra.Bus,
		Log:       log,
	}, forecaster.Settings{
		LookbackWeeks:       cfg.GetLookbackWeeks(),
		PercentileThreshold: cfg.GetPercentileThreshold(),
		MinSamples:          cfg.GetMinTrainingSamples(),
		CVSplits:            cfg.GetCVSplits(),
		FeatureLookbackDays: cfg.GetFeatureLookbackDays(),
	})

	var regionIDs func() []string
	if infra.Registry != nil {
		regionIDs = infra.Registry.IDs
	}
	weekly := jobs.NewWeeklyInferenceJob(jobs.Deps{
		Regions:   regionIDs,
		Trainer:   fc,
		Predictor: fc,
		Features:  engineer,
		Forecasts: forecasts,
		Reports:   reports,
		Bus:       infra.Bus,
		Log:       log,
	}, jobs.Settings{
		Concurrency: cfg.GetRegionConcurrency(),
		RegionRate:  cfg.GetRegionRate(),
		OpTimeout:   cfg.GetStoreTimeout(),
		Budget:      cfg.GetBatchBudget(),
	})

	var known handler.Regions
	if infra.Registry != nil {
		known = infra.Registry
	}
	h := handler.New(forecasts, models, fc, infra.TrainQueue, known, val)

	return &Module{
		repo:       repo,
		labeler:    labeler,
		engineer:   engineer,
		forecaster: fc,
		weekly:     weekly,
		forecasts:  forecasts,
		models:     models,
		handler:    h,
	}, nil
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "forecasting"
}

// Labeler returns the surge labeler for CLI use.
func (m *Module) Labeler() *labeling.Labeler { return m.labeler }

// Features returns the feature engineer for CLI use.
func (m *Module) Features() *features.Engineer { return m.engineer }

// Forecaster returns the trainer/predictor.
func (m *Module) Forecaster() *forecaster.Forecaster { return m.forecaster }

// WeeklyJob returns the weekly inference batch.
func (m *Module) WeeklyJob() *jobs.WeeklyInferenceJob { return m.weekly }

// Forecasts returns the (possibly cached) forecast store.
func (m *Module) Forecasts() ports.ForecastStore { return m.forecasts }

// Repository returns the Postgres repository for ingestion tooling.
func (m *Module) Repository() *repository.Repository { return m.repo }

// RegisterRoutes mounts forecasting routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.V1.Group("/forecasts"))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
