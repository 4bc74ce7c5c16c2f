package model

import "time"

// GenerateVideoRequest represents the request body for POST /generate-video
type GenerateVideoRequest struct {
	Topic          string `json:"topic" validate:"required,max=500"`
	Voice          string `json:"voice"`
	PresenterImage string `json:"presenter_image" validate:"required,max=255"`
}

// GenerateVideoResponse is returned once the job is accepted
type GenerateVideoResponse struct {
	Success bool      `json:"success"`
	JobID   string    `json:"job_id"`
	Status  JobStatus `json:"status"`
}

// JobStatusResponse is the polling view of a job
type JobStatusResponse struct {
	JobID       string     `json:"job_id"`
	Status      JobStatus  `json:"status"`
	Message     string     `json:"message"`
	Result      string     `json:"result,omitempty"`
	ErrorCode   string     `json:"error_code,omitempty"`
	ElapsedTime *float64   `json:"elapsed_time,omitempty"`
	VideoURL    string     `json:"video_url,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewJobStatusResponse builds the polling view from a job snapshot.
func NewJobStatusResponse(job *Job) *JobStatusResponse {
	return &JobStatusResponse{
		JobID:       job.ID,
		Status:      job.Status,
		Message:     job.Message,
		Result:      job.Result,
		ErrorCode:   job.ErrorCode,
		ElapsedTime: job.ElapsedTime,
		VideoURL:    job.VideoURL,
		CreatedAt:   job.CreatedAt,
		CompletedAt: job.CompletedAt,
	}
}

// JobNotFoundResponse is the body returned for unknown job ids
type JobNotFoundResponse struct {
	Status JobStatus `json:"status"`
	Result string    `json:"result"`
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status     string          `json:"status"`
	ActiveJobs int             `json:"active_jobs"`
	TotalJobs  int             `json:"total_jobs"`
	Services   map[string]bool `json:"services"`
}

// JobStats summarises the job table.
type JobStats struct {
	Active int
	Total  int
}
