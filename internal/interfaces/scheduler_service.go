package interfaces

import (
	"context"
	"time"
)

// JobStatus represents the current status of a scheduled job
type JobStatus struct {
	Name      string
	Schedule  string
	LastRun   *time.Time
	NextRun   *time.Time
	IsRunning bool
	LastError string
	Runs      int
	// Completed is set once a run succeeded and the job left the schedule.
	Completed bool
}

// JobHandler runs one scheduled job. A nil error counts as success.
type JobHandler func(ctx context.Context) error

// SchedulerService manages cron-based scheduling
type SchedulerService interface {
	// Start begins firing registered jobs. ctx bounds every job run.
	Start(ctx context.Context) error

	// Stop halts the scheduler and waits for running jobs
	Stop() error

	// RegisterJob adds a job. Unless keepAfterSuccess is set the job is
	// removed from the schedule after its first successful run.
	RegisterJob(name, schedule string, keepAfterSuccess bool, handler JobHandler) error

	// TriggerJob runs a job now, in the background
	TriggerJob(name string) error

	GetJobStatus(name string) (*JobStatus, error)
	GetAllJobStatuses() map[string]*JobStatus

	// Done is closed once every registered job has completed
	Done() <-chan struct{}
}
