package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/edutalk/api/internal/model"
	"github.com/edutalk/api/internal/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Dispatcher hands accepted jobs to whatever runs the pipeline.
// Dispatch must not wait for the pipeline to run.
type Dispatcher interface {
	Dispatch(ctx context.Context, jobID string) error
}

// VideoService owns the job table: it accepts submissions and records every status
// change made by the workers.
type VideoService struct {
	store        store.JobStore
	dispatcher   Dispatcher
	presenterDir string
	defaultVoice model.Voice
	now          func() time.Time
}

// NewVideoService creates a new video service
func NewVideoService(jobs store.JobStore, dispatcher Dispatcher, presenterDir string, defaultVoice string) *VideoService {
	return &VideoService{
		store:        jobs,
		dispatcher:   dispatcher,
		presenterDir: presenterDir,
		defaultVoice: model.ResolveVoice(defaultVoice, model.DefaultVoice),
		now:          time.Now,
	}
}

// Submit validates a request, records a queued job and dispatches it.
func (s *VideoService) Submit(ctx context.Context, req *model.GenerateVideoRequest) (*model.Job, error) {
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		return nil, model.InvalidRequest("Please enter a topic")
	}

	imagePath, err := ResolveInDir(s.presenterDir, req.PresenterImage)
	if err != nil {
		return nil, model.InvalidRequest("Presenter image not found")
	}
	if info, err := os.Stat(imagePath); err != nil || !info.Mode().IsRegular() {
		return nil, model.InvalidRequest("Presenter image not found")
	}

	voice := model.ResolveVoice(req.Voice, s.defaultVoice)
	job := model.NewJob(uuid.New().String(), topic, string(voice), req.PresenterImage, s.now())

	if err := s.store.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	if err := s.dispatcher.Dispatch(ctx, job.ID); err != nil {
		// The job never reached a worker, so it must not linger as queued.
		if delErr := s.store.Delete(context.WithoutCancel(ctx), job.ID); delErr != nil {
			log.Error().Err(delErr).Str("job_id", job.ID).Msg("failed to remove undispatched job")
		}
		if errors.Is(err, model.ErrQueueFull) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: failed to dispatch job: %v", model.ErrInternal, err)
	}

	log.Info().
		Str("job_id", job.ID).
		Str("topic", topic).
		Str("voice", job.Voice).
		Msg("job queued")

	return job, nil
}

// Status returns a snapshot of a job.
func (s *VideoService) Status(ctx context.Context, jobID string) (*model.Job, error) {
	return s.store.Get(ctx, jobID)
}

// Stats returns active and total job counts.
func (s *VideoService) Stats(ctx context.Context) (model.JobStats, error) {
	return s.store.Stats(ctx)
}

// MarkProcessing moves a queued job to processing.
func (s *VideoService) MarkProcessing(ctx context.Context, jobID, message string) (*model.Job, error) {
	return s.store.Update(ctx, jobID, func(job *model.Job) error {
		return job.Start(message, s.now())
	})
}

// UpdateMessage changes the progress message of a running job.
func (s *VideoService) UpdateMessage(ctx context.Context, jobID, message string) (*model.Job, error) {
	return s.store.Update(ctx, jobID, func(job *model.Job) error {
		return job.SetMessage(message)
	})
}

// Complete records a finished video. videoURL is the optional mirrored copy.
func (s *VideoService) Complete(ctx context.Context, jobID, result, videoURL string) (*model.Job, error) {
	return s.store.Update(ctx, jobID, func(job *model.Job) error {
		if err := job.Complete(result, s.now()); err != nil {
			return err
		}
		job.VideoURL = videoURL
		return nil
	})
}

// Fail records a failure, classifying cause into an error code and description.
func (s *VideoService) Fail(ctx context.Context, jobID string, cause error) (*model.Job, error) {
	return s.store.Update(ctx, jobID, func(job *model.Job) error {
		return job.Fail(model.ErrorCode(cause), model.Describe(cause), s.now())
	})
}
