package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/edutalk/api/internal/config"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
)

// TaskTypeGenerateVideo is the asynq task that runs one video job.
const TaskTypeGenerateVideo = "video:generate"

type videoTaskPayload struct {
	JobID string `json:"jobId"`
}

// AsynqDispatcher enqueues jobs on Redis for worker processes to pick up.
type AsynqDispatcher struct {
	client    *asynq.Client
	timeout   time.Duration
	retention time.Duration
}

// NewAsynqDispatcher creates a dispatcher backed by an asynq client.
func NewAsynqDispatcher(client *asynq.Client, jobs config.JobsConfig) *AsynqDispatcher {
	return &AsynqDispatcher{
		client:    client,
		timeout:   jobs.TaskTimeout(),
		retention: jobs.Retention,
	}
}

// Dispatch enqueues the job. Stages are never retried.
func (d *AsynqDispatcher) Dispatch(ctx context.Context, jobID string) error {
	task, err := newVideoTask(jobID)
	if err != nil {
		return err
	}

	info, err := d.client.EnqueueContext(ctx, task,
		asynq.TaskID(jobID),
		asynq.MaxRetry(0),
		asynq.Timeout(d.timeout),
		asynq.Retention(d.retention),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}

	log.Debug().Str("job_id", jobID).Str("queue", info.Queue).Msg("job enqueued")
	return nil
}

func newVideoTask(jobID string) (*asynq.Task, error) {
	payload, err := json.Marshal(videoTaskPayload{JobID: jobID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task payload: %w", err)
	}
	return asynq.NewTask(TaskTypeGenerateVideo, payload), nil
}

// ProcessTask handles video tasks delivered by asynq
func (w *VideoWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload videoTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %v: %w", err, asynq.SkipRetry)
	}

	if err := w.Run(ctx, payload.JobID); err != nil {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	return nil
}

// NewAsynqServer builds the worker server that consumes video tasks.
func NewAsynqServer(cfg *config.Config) *asynq.Server {
	return asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: cfg.Jobs.Workers,
			Logger:      asynqLogger{},
			LogLevel:    asynqLogLevel(cfg.Server.LogLevel),
		},
	)
}

// NewAsynqMux routes video tasks to the worker.
func NewAsynqMux(w *VideoWorker) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypeGenerateVideo, w.ProcessTask)
	return mux
}

func asynqLogLevel(level string) asynq.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return asynq.DebugLevel
	case "warn":
		return asynq.WarnLevel
	case "error":
		return asynq.ErrorLevel
	default:
		return asynq.InfoLevel
	}
}

// asynqLogger routes asynq's own logging through zerolog.
type asynqLogger struct{}

func (asynqLogger) Debug(args ...interface{}) {
	log.Debug().Str("component", "asynq").Msg(fmt.Sprint(args...))
}

func (asynqLogger) Info(args ...interface{}) {
	log.Info().Str("component", "asynq").Msg(fmt.Sprint(args...))
}

func (asynqLogger) Warn(args ...interface{}) {
	log.Warn().Str("component", "asynq").Msg(fmt.Sprint(args...))
}

func (asynqLogger) Error(args ...interface{}) {
	log.Error().Str("component", "asynq").Msg(fmt.Sprint(args...))
}

func (asynqLogger) Fatal(args ...interface{}) {
	log.Fatal().Str("component", "asynq").Msg(fmt.Sprint(args...))
}
