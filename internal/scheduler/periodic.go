package scheduler

import (
	"context"
	"fmt"
	"time"

	"leadgen_backend/platform/config"
	"leadgen_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// Periodic enqueues the weekly forecast batch and nightly scoring on their cron schedules.
type Periodic struct {
	scheduler *asynq.Scheduler
	log       *logger.Logger
}

func NewPeriodic(cfg config.SchedulerConfig, log *logger.Logger) (*Periodic, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(cfg.GetSchedulerTimezone())
	if err != nil {
		return nil, fmt.Errorf("scheduler timezone: %w", err)
	}

	s := asynq.NewScheduler(opt, &asynq.SchedulerOpts{
		Location: loc,
		PostEnqueueFunc: func(info *asynq.TaskInfo, err error) {
			if err != nil {
				log.Warn("periodic enqueue failed", "error", err)
				return
			}
			log.Info("periodic task enqueued", "task", info.Type, "id", info.ID)
		},
	})

	weekly, err := NewWeeklyInferenceTask(WeeklyInferencePayload{Retrain: true})
	if err != nil {
		return nil, err
	}
	queue := asynq.Queue(queueName(cfg))
	if _, err := s.Register(cfg.GetWeeklyInferenceCron(), weekly, queue, asynq.MaxRetry(1)); err != nil {
		return nil, fmt.Errorf("register weekly inference: %w", err)
	}
	if _, err := s.Register(cfg.GetNightlyScoringCron(), NewNightlyScoringTask(), queue, asynq.MaxRetry(2)); err != nil {
		return nil, fmt.Errorf("register nightly scoring: %w", err)
	}

	return &Periodic{scheduler: s, log: log}, nil
}

// Run blocks until ctx is cancelled.
func (p *Periodic) Run(ctx context.Context) {
	if p == nil || p.scheduler == nil {
		return
	}
	if err := p.scheduler.Start(); err != nil {
		p.log.Error("periodic scheduler failed to start", "error", err)
		return
	}
	<-ctx.Done()
	p.scheduler.Shutdown()
}
