package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/renewables-etl/internal/logging"
	"github.com/i474232898/renewables-etl/internal/renewables"
)

// Runner executes one ETL cycle.
type Runner interface {
	Execute(ctx context.Context) (renewables.RunReport, error)
}

// Scheduler runs the weekly ETL on a cron expression in UTC.
type Scheduler struct {
	scheduler  *gocron.Scheduler
	runner     Runner
	expr       string
	runOnStart bool
	logger     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	job    *gocron.Job
}

// New creates a new Scheduler. Nothing runs until Start.
func New(expr string, runOnStart bool, runner Runner, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Discard()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		scheduler:  gocron.NewScheduler(time.UTC),
		runner:     runner,
		expr:       expr,
		runOnStart: runOnStart,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start schedules the job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if s.runner == nil {
		return errors.New("scheduler: no runner configured")
	}

	sched := s.scheduler.Cron(s.expr).SingletonMode()
	if s.runOnStart {
		sched = sched.StartImmediately()
	}

	job, err := sched.Do(s.runOnce)
	if err != nil {
		return fmt.Errorf("schedule %q: %w", s.expr, err)
	}
	s.job = job

	s.scheduler.StartAsync()
	s.logger.Info("[SCHEDULER_START] weekly ETL scheduled",
		"cron", s.expr, "run_on_start", s.runOnStart, "next_run", s.NextRun())
	return nil
}

func (s *Scheduler) runOnce() {
	s.logger.Info("[SCHEDULER_RUN] running weekly ETL job")

	report, err := s.runner.Execute(s.ctx)
	switch {
	case errors.Is(err, renewables.ErrRunInProgress):
		s.logger.Warn("[SCHEDULER_SKIP] previous run still in progress")
		return
	case err != nil:
		s.logger.Error("[SCHEDULER_RUN_FAILED] weekly ETL job failed", "error", err)
		return
	}

	s.logger.Info("[SCHEDULER_RUN_COMPLETE] weekly ETL job finished",
		"run_id", report.ID.String(), "succeeded", report.Succeeded(), "next_run", s.NextRun())
}

// NextRun returns when the job fires next, or the zero time before Start.
func (s *Scheduler) NextRun() time.Time {
	if s.job == nil {
		return time.Time{}
	}
	return s.job.NextRun()
}

// Stop cancels an in-flight run and stops future ones.
func (s *Scheduler) Stop() {
	s.cancel()
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
