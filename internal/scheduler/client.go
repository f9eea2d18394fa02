package scheduler

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"leadgen_backend/platform/config"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

const trainTaskTimeout = 2 * time.Hour

type Client struct {
	client *asynq.Client
	queue  string
}

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	return &Client{
		client: asynq.NewClient(opt),
		queue:  queueName(cfg),
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueTrainRegion schedules a training run. Duplicate requests for the
// same region and day collapse into one task.
func (c *Client) EnqueueTrainRegion(ctx context.Context, regionID string, endDate time.Time) error {
	if c == nil || c.client == nil {
		return nil
	}

	payload := TrainRegionPayload{RegionID: regionID}
	day := time.Now().UTC().Format(time.DateOnly)
	if !endDate.IsZero() {
		payload.EndDate = endDate.UTC().Format(time.DateOnly)
		day = payload.EndDate
	}
	task, err := NewTrainRegionTask(payload)
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task,
		asynq.Queue(c.queue),
		asynq.Timeout(trainTaskTimeout),
		asynq.TaskID(fmt.Sprintf("train:%s:%s", regionID, day)),
	)
	if err == asynq.ErrTaskIDConflict {
		return nil
	}
	return err
}

// EnqueueWeeklyInference runs the weekly batch out of schedule.
func (c *Client) EnqueueWeeklyInference(ctx context.Context, payload WeeklyInferencePayload) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewWeeklyInferenceTask(payload)
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(c.queue), asynq.MaxRetry(1))
	return err
}

func queueName(cfg config.SchedulerConfig) string {
	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}
	return queue
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
