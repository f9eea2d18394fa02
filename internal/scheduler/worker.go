package scheduler

import (
	"context"
	"fmt"
	"time"

	"leadgen_backend/internal/forecasting/forecaster"
	forecastjobs "leadgen_backend/internal/forecasting/jobs"
	leadjobs "leadgen_backend/internal/leads/jobs"
	"leadgen_backend/platform/config"
	"leadgen_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// WeeklyRunner runs the weekly forecast batch.
type WeeklyRunner interface {
	Run(ctx context.Context, opts forecastjobs.Options) (*forecastjobs.WeeklyResult, error)
}

// RegionTrainer trains one region's models.
type RegionTrainer interface {
	Train(ctx context.Context, regionID string, endDate time.Time) (*forecaster.TrainingResult, error)
}

// LeadScorer runs the nightly scoring batch.
type LeadScorer interface {
	Run(ctx context.Context) (*leadjobs.ScoringResult, error)
}

// Handlers are the job entry points a Worker dispatches to.
type Handlers struct {
	Weekly  WeeklyRunner
	Trainer RegionTrainer
	Scoring LeadScorer
}

type Worker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	handlers Handlers
	log      *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, handlers Handlers, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 4
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	w := newWorker(handlers, log)
	w.server = server
	return w, nil
}

func newWorker(handlers Handlers, log *logger.Logger) *Worker {
	if log == nil {
		log = logger.Nop()
	}
	w := &Worker{mux: asynq.NewServeMux(), handlers: handlers, log: log}
	w.mux.HandleFunc(TaskWeeklyInference, w.handleWeeklyInference)
	w.mux.HandleFunc(TaskTrainRegion, w.handleTrainRegion)
	w.mux.HandleFunc(TaskNightlyScoring, w.handleNightlyScoring)
	return w
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleWeeklyInference(ctx context.Context, task *asynq.Task) error {
	if w.handlers.Weekly == nil {
		return fmt.Errorf("%w: weekly inference not configured", asynq.SkipRetry)
	}
	payload, err := ParseWeeklyInferencePayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	res, err := w.handlers.Weekly.Run(ctx, forecastjobs.Options{Retrain: payload.Retrain, Regions: payload.Regions})
	if err != nil {
		return err
	}
	w.log.JobEvent(TaskWeeklyInference, res.TargetWeekStart.Format(time.DateOnly), weeklyStatus(res), nil)
	return nil
}

func (w *Worker) handleTrainRegion(ctx context.Context, task *asynq.Task) error {
	if w.handlers.Trainer == nil {
		return fmt.Errorf("%w: training not configured", asynq.SkipRetry)
	}
	payload, err := ParseTrainRegionPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	end, err := payload.End()
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	_, err = w.handlers.Trainer.Train(ctx, payload.RegionID, end)
	w.log.JobEvent(TaskTrainRegion, payload.RegionID, status(err), err)
	return err
}

func (w *Worker) handleNightlyScoring(ctx context.Context, _ *asynq.Task) error {
	if w.handlers.Scoring == nil {
		return fmt.Errorf("%w: scoring not configured", asynq.SkipRetry)
	}
	_, err := w.handlers.Scoring.Run(ctx)
	w.log.JobEvent(TaskNightlyScoring, "all", status(err), err)
	return err
}

func weeklyStatus(res *forecastjobs.WeeklyResult) string {
	switch {
	case res.Partial:
		return "partial"
	case len(res.Failed) > 0:
		return "completed_with_failures"
	default:
		return "succeeded"
	}
}

func status(err error) string {
	if err != nil {
		return "failed"
	}
	return "succeeded"
}
