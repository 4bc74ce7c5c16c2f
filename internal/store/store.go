// Package store holds the job table shared by the HTTP surface and the workers.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/edutalk/api/internal/model"
)

// ErrJobExists is returned when a job id is created twice.
var ErrJobExists = errors.New("job already exists")

// JobStore is the job table. Reads return snapshots; callers never share a *model.Job
// with the store.
type JobStore interface {
	Create(ctx context.Context, job *model.Job) error
	Get(ctx context.Context, id string) (*model.Job, error)
	// Update applies fn to the current job atomically and stores the result when fn
	// returns nil. The updated snapshot is returned.
	Update(ctx context.Context, id string, fn func(job *model.Job) error) (*model.Job, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (model.JobStats, error)
}

func notFound(id string) error {
	return fmt.Errorf("job %s: %w", id, model.ErrNotFound)
}
