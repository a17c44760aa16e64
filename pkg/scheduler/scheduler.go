package scheduler

import (
	"github.com/robfig/cron/v3"

	applogger "TradePulse/pkg/logger"
)

// Job represents a scheduled job.
type Job interface {
	Run() error
	Name() string
}

// Scheduler manages background jobs on cron schedules.
type Scheduler struct {
	cron *cron.Cron
	l    *applogger.Logger
}

// New creates a new scheduler.
func New(l *applogger.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(),
		l:    l,
	}
}

// Start starts the scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.l.Info("scheduler: started")
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.l.Info("scheduler: stopped")
}

// AddJob registers a job with a cron schedule.
// Schedule examples:
//   - "*/5 * * * *"     - Every 5 minutes
//   - "@hourly"         - Every hour
//   - "@every 30s"      - Every 30 seconds
func (s *Scheduler) AddJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() {
		if err := job.Run(); err != nil {
			s.l.Error("scheduler: job failed",
				applogger.String("job", job.Name()),
				applogger.Error(err),
			)
		}
	})
	if err != nil {
		return err
	}
	s.l.Info("scheduler: job registered",
		applogger.String("job", job.Name()),
		applogger.String("schedule", schedule),
	)
	return nil
}

// RunNow executes a job immediately, outside its schedule.
func (s *Scheduler) RunNow(job Job) error {
	s.l.Info("scheduler: running job now", applogger.String("job", job.Name()))
	return job.Run()
}
