package model

import (
	"errors"
	"fmt"
	"time"
)

// JobStatus is the lifecycle state of a generation job.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusComplete   JobStatus = "complete"
	JobStatusError      JobStatus = "error"
)

// IsTerminal reports whether no further transitions are possible.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusComplete || s == JobStatusError
}

// Stage names one step of the generation pipeline.
type Stage string

const (
	StageScript Stage = "script"
	StageSpeech Stage = "speech"
	StageVideo  Stage = "video"
)

// Progress messages shown while a job runs.
const (
	MessageQueued     = "Waiting for a free worker..."
	MessageScript     = "Generating script..."
	MessageAudio      = "Generating audio..."
	MessageVideo      = "Animating face..."
	MessageFinalizing = "Finalizing video..."
	MessageComplete   = "Video generated successfully"
	MessageFailed     = "Video generation failed"
)

// ErrInvalidTransition is returned when a status change would move a job backwards
// or out of a terminal state.
var ErrInvalidTransition = errors.New("invalid job transition")

// Job represents one end-to-end generation request
type Job struct {
	ID             string     `json:"id"`
	Status         JobStatus  `json:"status"`
	Message        string     `json:"message"`
	Result         string     `json:"result,omitempty"`
	ErrorCode      string     `json:"errorCode,omitempty"`
	ElapsedTime    *float64   `json:"elapsedTime,omitempty"` // seconds
	Topic          string     `json:"topic"`
	Voice          string     `json:"voice"`
	PresenterImage string     `json:"presenterImage"`
	VideoURL       string     `json:"videoUrl,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	StartedAt      *time.Time `json:"startedAt,omitempty"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
}

// NewJob creates a queued job.
func NewJob(id, topic, voice, presenterImage string, now time.Time) *Job {
	return &Job{
		ID:             id,
		Status:         JobStatusQueued,
		Message:        MessageQueued,
		Topic:          topic,
		Voice:          voice,
		PresenterImage: presenterImage,
		CreatedAt:      now,
	}
}

// Clone returns a deep copy so callers never share pointers with the job table.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	c := *j
	if j.ElapsedTime != nil {
		v := *j.ElapsedTime
		c.ElapsedTime = &v
	}
	if j.StartedAt != nil {
		v := *j.StartedAt
		c.StartedAt = &v
	}
	if j.CompletedAt != nil {
		v := *j.CompletedAt
		c.CompletedAt = &v
	}
	return &c
}

// Start moves a queued job to processing.
func (j *Job) Start(message string, now time.Time) error {
	if err := j.transition(JobStatusProcessing); err != nil {
		return err
	}
	j.Message = message
	j.StartedAt = &now
	return nil
}

// SetMessage updates the progress message of a running job.
func (j *Job) SetMessage(message string) error {
	if j.Status != JobStatusProcessing {
		return fmt.Errorf("%w: cannot update message of %s job", ErrInvalidTransition, j.Status)
	}
	j.Message = message
	return nil
}

// Complete moves a processing job to complete with a reference to the video.
func (j *Job) Complete(result string, now time.Time) error {
	if err := j.transition(JobStatusComplete); err != nil {
		return err
	}
	j.Message = MessageComplete
	j.Result = result
	j.finish(now)
	return nil
}

// Fail moves a queued or processing job to error with a description of the failure.
func (j *Job) Fail(code, result string, now time.Time) error {
	if err := j.transition(JobStatusError); err != nil {
		return err
	}
	j.Message = MessageFailed
	j.ErrorCode = code
	j.Result = result
	j.finish(now)
	return nil
}

func (j *Job) finish(now time.Time) {
	start := j.CreatedAt
	if j.StartedAt != nil {
		start = *j.StartedAt
	}
	elapsed := now.Sub(start).Seconds()
	j.ElapsedTime = &elapsed
	j.CompletedAt = &now
}

func (j *Job) transition(to JobStatus) error {
	if !isValidTransition(j.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, to)
	}
	j.Status = to
	return nil
}

// isValidTransition enforces the one-directional job state machine.
func isValidTransition(from, to JobStatus) bool {
	switch from {
	case JobStatusQueued:
		return to == JobStatusProcessing || to == JobStatusError
	case JobStatusProcessing:
		return to == JobStatusComplete || to == JobStatusError
	default:
		return false
	}
}
