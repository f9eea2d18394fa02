// Package leads provides the lead scoring bounded context module.
// This file defines the module that encapsulates scoring setup and route registration.
package leads

import (
	"context"

	"leadgen_backend/internal/events"
	apphttp "leadgen_backend/internal/http"
	"leadgen_backend/internal/leads/handler"
	"leadgen_backend/internal/leads/jobs"
	"leadgen_backend/internal/leads/repository"
	"leadgen_backend/internal/leads/scoring"
	"leadgen_backend/platform/config"
	"leadgen_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	repo    *repository.Repository
	job     *jobs.ScoringJob
}

// NewModule creates and initializes the leads module with all its dependencies.
// Stored calibrations are loaded so the API serves calibrated scores right away.
func NewModule(ctx context.Context, pool *pgxpool.Pool, eventBus events.Bus, cfg config.ScoringConfig, log *logger.Logger) (*Module, error) {
	repo := repository.New(pool)

	engine := scoring.NewEngine(
		scoring.NewDecayScorer(repo, cfg.GetFeedbackHalfLifeDays()),
		scoring.NewPersonalizedAdjuster(repo),
		scoring.NewRegionCalibrator(cfg.GetCalibrationMinRegionSamples(), cfg.GetCalibrationMinStateSamples()),
		log,
	)
	job := jobs.NewScoringJob(repo, repo, repo, engine, eventBus, cfg.GetScoringBatchSize(), log)
	if err := job.LoadCalibrators(ctx); err != nil {
		log.Warn("starting without stored calibrations", "error", err)
	}

	return &Module{
		handler: handler.New(job, repo),
		repo:    repo,
		job:     job,
	}, nil
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// ScoringJob returns the nightly scoring job for the scheduler and CLI.
func (m *Module) ScoringJob() *jobs.ScoringJob {
	return m.job
}

// Repository returns the leads repository.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// RegisterRoutes mounts leads routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.V1.Group("/leads"))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
