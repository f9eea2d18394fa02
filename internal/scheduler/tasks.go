package scheduler

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const TaskWeeklyInference = "forecast.weekly_inference"

const TaskTrainRegion = "forecast.train_region"

const TaskNightlyScoring = "leads.nightly_scoring"

type WeeklyInferencePayload struct {
	Retrain bool     `json:"retrain"`
	Regions []string `json:"regions,omitempty"`
}

type TrainRegionPayload struct {
	RegionID string `json:"regionId"`
	// EndDate is YYYY-MM-DD; empty trains up to the time the task runs.
	EndDate string `json:"endDate,omitempty"`
}

func NewWeeklyInferenceTask(payload WeeklyInferencePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskWeeklyInference, data), nil
}

func ParseWeeklyInferencePayload(task *asynq.Task) (WeeklyInferencePayload, error) {
	var payload WeeklyInferencePayload
	if len(task.Payload()) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return WeeklyInferencePayload{}, err
	}
	return payload, nil
}

func NewTrainRegionTask(payload TrainRegionPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTrainRegion, data), nil
}

func ParseTrainRegionPayload(task *asynq.Task) (TrainRegionPayload, error) {
	var payload TrainRegionPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return TrainRegionPayload{}, err
	}
	if payload.RegionID == "" {
		return TrainRegionPayload{}, fmt.Errorf("regionId is required")
	}
	return payload, nil
}

// End returns the parsed end date, or the zero time when unset.
func (p TrainRegionPayload) End() (time.Time, error) {
	if p.EndDate == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.DateOnly, p.EndDate)
}

func NewNightlyScoringTask() *asynq.Task {
	return asynq.NewTask(TaskNightlyScoring, nil)
}
