package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/edutalk/api/internal/client"
	"github.com/edutalk/api/internal/config"
	"github.com/edutalk/api/internal/model"
	"github.com/edutalk/api/internal/service"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ScriptGenerator writes the narration for a topic.
type ScriptGenerator interface {
	Generate(ctx context.Context, topic string, durationSeconds int, audience string) (string, error)
}

// SpeechSynthesizer speaks a script and returns the audio file path.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text string, voice model.Voice, outputDir string) (string, error)
}

// VideoSynthesizer animates a presenter image and returns the video file path.
type VideoSynthesizer interface {
	Animate(ctx context.Context, audioPath, imagePath, outputDir string) (string, error)
}

// Notifier receives job events, typically the WebSocket hub.
type Notifier interface {
	BroadcastProgress(jobID string, status model.JobStatus, message string)
	BroadcastComplete(jobID string, result *model.JobStatusResponse)
	BroadcastError(jobID string, code, message string)
}

// Stages are the external collaborators of the pipeline, in execution order.
type Stages struct {
	Script ScriptGenerator
	Speech SpeechSynthesizer
	Video  VideoSynthesizer
}

// VideoWorker runs the script, speech and video stages for one job at a time.
type VideoWorker struct {
	videos   *service.VideoService
	stages   Stages
	mirror   client.ObjectStore
	notifier Notifier
	storage  config.StorageConfig
	jobs     config.JobsConfig
}

// NewVideoWorker creates a new video worker. mirror may be nil.
func NewVideoWorker(videos *service.VideoService, stages Stages, mirror client.ObjectStore, notifier Notifier, storage config.StorageConfig, jobs config.JobsConfig) *VideoWorker {
	return &VideoWorker{
		videos:   videos,
		stages:   stages,
		mirror:   mirror,
		notifier: notifier,
		storage:  storage,
		jobs:     jobs,
	}
}

// Run executes the pipeline for a queued job and records the outcome. The returned
// error is the failure already recorded on the job, if any.
func (w *VideoWorker) Run(ctx context.Context, jobID string) (err error) {
	logger := log.With().Str("job_id", jobID).Logger()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %w: %v", model.ErrInternal, errPanic, r)
			logger.Error().Str("stack", string(debug.Stack())).Msgf("pipeline panicked: %v", r)
			w.fail(ctx, jobID, err, &logger)
		}
	}()

	job, err := w.videos.MarkProcessing(ctx, jobID, model.MessageScript)
	if err != nil {
		logger.Error().Err(err).Msg("cannot start job")
		return err
	}
	w.notifier.BroadcastProgress(jobID, job.Status, job.Message)
	logger.Info().Str("topic", job.Topic).Msg("job started")

	workDir := filepath.Join(w.storage.WorkDir, jobID)
	defer os.RemoveAll(workDir)

	result, videoURL, err := w.execute(ctx, job, workDir, &logger)
	if err != nil {
		w.fail(ctx, jobID, err, &logger)
		return err
	}

	done, err := w.videos.Complete(context.WithoutCancel(ctx), jobID, result, videoURL)
	if err != nil {
		if rmErr := os.Remove(filepath.Join(w.storage.VideoDir, jobID+".mp4")); rmErr != nil && !os.IsNotExist(rmErr) {
			logger.Warn().Err(rmErr).Msg("failed to remove video of unrecorded job")
		}
		err = fmt.Errorf("%w: failed to record completion: %w", model.ErrInternal, err)
		w.fail(ctx, jobID, err, &logger)
		return err
	}

	w.notifier.BroadcastComplete(jobID, model.NewJobStatusResponse(done))
	logger.Info().Float64("elapsed", *done.ElapsedTime).Str("result", result).Msg("job complete")
	return nil
}

func (w *VideoWorker) execute(ctx context.Context, job *model.Job, workDir string, logger *zerolog.Logger) (string, string, error) {
	script, err := runStage(ctx, model.StageScript, w.jobs.ScriptTimeout, func(ctx context.Context) (string, error) {
		return w.stages.Script.Generate(ctx, job.Topic, 0, "")
	})
	if err != nil {
		return "", "", err
	}
	if n := len(strings.TrimSpace(script)); n < w.jobs.MinScriptChars {
		return "", "", model.NewStageError(model.StageScript, model.ErrScript,
			fmt.Errorf("script too short (%d characters)", n))
	}
	logger.Debug().Int("chars", len(script)).Msg("script ready")

	w.progress(ctx, job.ID, model.MessageAudio, logger)
	audioPath, err := runStage(ctx, model.StageSpeech, w.jobs.SpeechTimeout, func(ctx context.Context) (string, error) {
		return w.stages.Speech.Synthesize(ctx, script, model.Voice(job.Voice), w.storage.AudioDir)
	})
	if err != nil {
		return "", "", err
	}
	if err := checkFile(audioPath, w.jobs.MinAudioBytes); err != nil {
		return "", "", model.NewStageError(model.StageSpeech, model.ErrAudio, err)
	}
	logger.Debug().Str("audio", filepath.Base(audioPath)).Msg("speech ready")

	w.progress(ctx, job.ID, model.MessageVideo, logger)
	imagePath := filepath.Join(w.storage.PresenterDir, job.PresenterImage)
	rendered, err := runStage(ctx, model.StageVideo, w.jobs.VideoTimeout, func(ctx context.Context) (string, error) {
		return w.stages.Video.Animate(ctx, audioPath, imagePath, workDir)
	})
	if err != nil {
		return "", "", err
	}
	if err := checkFile(rendered, 1); err != nil {
		return "", "", model.NewStageError(model.StageVideo, model.ErrVideo, err)
	}

	w.progress(ctx, job.ID, model.MessageFinalizing, logger)
	filename := job.ID + ".mp4"
	final := filepath.Join(w.storage.VideoDir, filename)
	if err := moveFile(rendered, final); err != nil {
		return "", "", model.NewStageError(model.StageVideo, model.ErrInternal, fmt.Errorf("failed to store video: %w", err))
	}

	return "/video/" + filename, w.mirrorVideo(ctx, final, filename, logger), nil
}

var errPanic = errors.New("panic")

// runStage runs fn under the stage deadline. A collaborator that ignores its
// context is abandoned once the deadline passes.
func runStage(ctx context.Context, stage model.Stage, timeout time.Duration, fn func(context.Context) (string, error)) (string, error) {
	stageCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		out string
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		var o outcome
		defer func() {
			if r := recover(); r != nil {
				o.err = fmt.Errorf("%w: %v", errPanic, r)
			}
			done <- o
		}()
		o.out, o.err = fn(stageCtx)
	}()

	var o outcome
	select {
	case o = <-done:
	case <-stageCtx.Done():
		o.err = stageCtx.Err()
	}

	if o.err == nil {
		return o.out, nil
	}
	if errors.Is(stageCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return "", model.NewStageError(stage, model.StageKind(stage),
			fmt.Errorf("%w after %s: %w", model.ErrTimeout, timeout, o.err))
	}
	if errors.Is(o.err, errPanic) {
		return "", model.NewStageError(stage, model.ErrInternal, o.err)
	}
	return "", model.NewStageError(stage, model.StageKind(stage), o.err)
}

func (w *VideoWorker) progress(ctx context.Context, jobID, message string, logger *zerolog.Logger) {
	job, err := w.videos.UpdateMessage(ctx, jobID, message)
	if err != nil {
		logger.Warn().Err(err).Str("message", message).Msg("failed to update progress")
		return
	}
	w.notifier.BroadcastProgress(jobID, job.Status, job.Message)
}

func (w *VideoWorker) fail(ctx context.Context, jobID string, cause error, logger *zerolog.Logger) {
	event := logger.Error().Err(cause).Str("code", model.ErrorCode(cause))
	var se *model.StageError
	if errors.As(cause, &se) {
		event = event.Str("stage", string(se.Stage))
	}
	event.Msg("job failed")

	job, err := w.videos.Fail(context.WithoutCancel(ctx), jobID, cause)
	if err != nil {
		logger.Error().Err(err).Msg("failed to record job failure")
		return
	}
	w.notifier.BroadcastError(jobID, job.ErrorCode, job.Result)
}

// mirrorVideo copies the finished video to object storage. Failures only cost the
// CDN link.
func (w *VideoWorker) mirrorVideo(ctx context.Context, path, filename string, logger *zerolog.Logger) string {
	if w.mirror == nil {
		return ""
	}
	url, err := w.mirror.UploadFile(ctx, "videos/"+filename, path, "video/mp4")
	if err != nil {
		logger.Warn().Err(err).Msg("failed to mirror video")
		return ""
	}
	return url
}

func checkFile(path string, minBytes int64) error {
	if path == "" {
		return errors.New("no output file produced")
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("output file missing: %w", err)
	}
	if info.Size() < minBytes {
		return fmt.Errorf("output file too small (%d bytes)", info.Size())
	}
	return nil
}

// moveFile renames src to dst, copying when they live on different filesystems.
// dst only ever appears complete.
func moveFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dst + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Remove(src)
}
