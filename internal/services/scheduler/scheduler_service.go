package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/earningsear/internal/common"
	"github.com/ternarybob/earningsear/internal/interfaces"
)

// jobEntry represents a registered job with metadata
type jobEntry struct {
	name      string
	schedule  string
	handler   interfaces.JobHandler
	keepAfter bool
	cronID    cron.EntryID
	lastRun   *time.Time
	isRunning bool
	lastError string
	runs      int
	completed bool
}

// Service runs watch jobs on cron schedules. Different jobs may run at the
// same time; a job never overlaps itself.
type Service struct {
	cron   *cron.Cron
	logger arbor.ILogger

	jobMu   sync.Mutex // protects jobs, running, ctx
	jobs    map[string]*jobEntry
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	done     chan struct{}
	doneOnce sync.Once
}

var _ interfaces.SchedulerService = (*Service)(nil)

// NewService creates a scheduler using 6-field (seconds first) cron specs
func NewService(logger arbor.ILogger) *Service {
	return &Service{
		cron:   cron.New(cron.WithSeconds()),
		logger: logger,
		jobs:   make(map[string]*jobEntry),
		done:   make(chan struct{}),
	}
}

// Start begins the scheduler
func (s *Service) Start(ctx context.Context) error {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron.Start()
	s.running = true

	s.logger.Info().Int("jobs", len(s.jobs)).Msg("Scheduler started")
	return nil
}

// Stop halts the scheduler, cancels running jobs and waits for them to return
func (s *Service) Stop() error {
	s.jobMu.Lock()
	if !s.running {
		s.jobMu.Unlock()
		return nil
	}
	s.running = false
	cancel := s.cancel
	s.jobMu.Unlock()

	<-s.cron.Stop().Done()
	cancel()
	s.wg.Wait()

	s.logger.Info().Msg("Scheduler stopped")
	return nil
}

// RegisterJob registers a new job with the scheduler
func (s *Service) RegisterJob(name, schedule string, keepAfterSuccess bool, handler interfaces.JobHandler) error {
	if err := common.ValidateJobSchedule(schedule); err != nil {
		return fmt.Errorf("invalid schedule for job %s: %w", name, err)
	}

	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already registered", name)
	}

	entry := &jobEntry{
		name:      name,
		schedule:  schedule,
		handler:   handler,
		keepAfter: keepAfterSuccess,
	}

	cronID, err := s.cron.AddFunc(schedule, func() {
		s.executeJob(name)
	})
	if err != nil {
		return fmt.Errorf("failed to add job to cron: %w", err)
	}

	entry.cronID = cronID
	s.jobs[name] = entry

	s.logger.Info().
		Str("job_name", name).
		Str("schedule", schedule).
		Bool("keep_after_success", keepAfterSuccess).
		Msg("Job registered")

	return nil
}

// TriggerJob runs a job immediately in the background
func (s *Service) TriggerJob(name string) error {
	s.jobMu.Lock()
	entry, exists := s.jobs[name]
	if !exists {
		s.jobMu.Unlock()
		return fmt.Errorf("job %s not found", name)
	}
	if entry.isRunning {
		s.jobMu.Unlock()
		return fmt.Errorf("job %s is already running", name)
	}
	s.jobMu.Unlock()

	s.logger.Info().Str("job_name", name).Msg("Manually triggering job execution")

	common.SafeGo(s.logger, "scheduler:"+name, func() {
		s.executeJob(name)
	})
	return nil
}

func (s *Service) executeJob(name string) {
	s.jobMu.Lock()
	entry, exists := s.jobs[name]
	if !exists || entry.completed {
		s.jobMu.Unlock()
		return
	}
	if entry.isRunning {
		s.jobMu.Unlock()
		s.logger.Warn().Str("job_name", name).Msg("Previous run still in progress, skipping")
		return
	}
	entry.isRunning = true
	entry.runs++
	handler := entry.handler
	ctx := s.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	s.wg.Add(1)
	s.jobMu.Unlock()

	defer s.wg.Done()

	start := time.Now()
	s.logger.Info().Str("job_name", name).Msg("Job execution started")

	err := s.runHandler(ctx, name, handler)

	finished := time.Now()
	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	entry.isRunning = false
	entry.lastRun = &finished
	if err != nil {
		entry.lastError = err.Error()
		s.logger.Error().
			Str("job_name", name).
			Err(err).
			Dur("duration", finished.Sub(start)).
			Msg("Job execution failed")
		return
	}

	entry.lastError = ""
	s.logger.Info().
		Str("job_name", name).
		Dur("duration", finished.Sub(start)).
		Msg("Job execution completed successfully")

	if entry.keepAfter {
		return
	}

	s.cron.Remove(entry.cronID)
	entry.completed = true
	s.logger.Info().Str("job_name", name).Msg("Job removed from schedule after success")

	for _, e := range s.jobs {
		if !e.completed {
			return
		}
	}
	s.doneOnce.Do(func() { close(s.done) })
}

// runHandler converts a handler panic into an error so the job stays scheduled.
func (s *Service) runHandler(ctx context.Context, name string, handler interfaces.JobHandler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("job_name", name).
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("Panic recovered in job execution")
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return handler(ctx)
}

// GetJobStatus returns the status of a specific job
func (s *Service) GetJobStatus(name string) (*interfaces.JobStatus, error) {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	entry, exists := s.jobs[name]
	if !exists {
		return nil, fmt.Errorf("job %s not found", name)
	}
	return s.status(entry), nil
}

// GetAllJobStatuses returns all job statuses
func (s *Service) GetAllJobStatuses() map[string]*interfaces.JobStatus {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	statuses := make(map[string]*interfaces.JobStatus, len(s.jobs))
	for name, entry := range s.jobs {
		statuses[name] = s.status(entry)
	}
	return statuses
}

func (s *Service) status(entry *jobEntry) *interfaces.JobStatus {
	var nextRun *time.Time
	if !entry.completed {
		if next := s.cron.Entry(entry.cronID).Next; !next.IsZero() {
			nextRun = &next
		}
	}
	return &interfaces.JobStatus{
		Name:      entry.name,
		Schedule:  entry.schedule,
		LastRun:   entry.lastRun,
		NextRun:   nextRun,
		IsRunning: entry.isRunning,
		LastError: entry.lastError,
		Runs:      entry.runs,
		Completed: entry.completed,
	}
}

// Done is closed once every registered job has succeeded and left the schedule
func (s *Service) Done() <-chan struct{} {
	return s.done
}
