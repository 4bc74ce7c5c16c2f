package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrNotFound       = errors.New("not found")
	ErrScript         = errors.New("script generation failed")
	ErrAudio          = errors.New("audio generation failed")
	ErrVideo          = errors.New("video generation failed")
	ErrTimeout        = errors.New("timed out")
	ErrInternal       = errors.New("internal error")
	ErrQueueFull      = errors.New("job queue is full")
)

// Error codes reported in job records and error responses.
const (
	CodeScriptError   = "SCRIPT_ERROR"
	CodeAudioError    = "AUDIO_ERROR"
	CodeVideoError    = "VIDEO_ERROR"
	CodeTimeout       = "TIMEOUT"
	CodeInternalError = "INTERNAL_ERROR"
)

// RequestError is a rejected request. Message is shown to the caller as is.
type RequestError struct {
	Message string
}

// InvalidRequest builds a RequestError.
func InvalidRequest(message string) error {
	return &RequestError{Message: message}
}

func (e *RequestError) Error() string {
	return e.Message
}

func (e *RequestError) Unwrap() error {
	return ErrInvalidRequest
}

// StageError is a pipeline failure tagged with the stage it happened in.
// Kind is one of the sentinel errors above; Err is the underlying cause.
type StageError struct {
	Stage Stage
	Kind  error
	Err   error
}

// NewStageError builds a StageError for a stage.
func NewStageError(stage Stage, kind error, err error) *StageError {
	return &StageError{Stage: stage, Kind: kind, Err: err}
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s stage: %v", e.Stage, e.Kind)
	}
	return fmt.Sprintf("%s stage: %v: %v", e.Stage, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause for errors.Is / errors.As.
func (e *StageError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Code returns the machine-readable code for the failure.
func (e *StageError) Code() string {
	return ErrorCode(e)
}

// ErrorCode maps an error to the code recorded on a failed job.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrTimeout):
		return CodeTimeout
	case errors.Is(err, ErrScript):
		return CodeScriptError
	case errors.Is(err, ErrAudio):
		return CodeAudioError
	case errors.Is(err, ErrVideo):
		return CodeVideoError
	default:
		return CodeInternalError
	}
}

// Describe renders a failure as the human-readable result stored on a job.
func Describe(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		if se.Err == nil {
			return capitalize(se.Kind.Error())
		}
		return fmt.Sprintf("%s: %v", capitalize(se.Kind.Error()), se.Err)
	}
	if errors.Is(err, ErrInternal) {
		return capitalize(err.Error())
	}
	return fmt.Sprintf("Internal error: %v", err)
}

// StageKind returns the sentinel error for failures of a stage.
func StageKind(s Stage) error {
	switch s {
	case StageScript:
		return ErrScript
	case StageSpeech:
		return ErrAudio
	case StageVideo:
		return ErrVideo
	default:
		return ErrInternal
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
