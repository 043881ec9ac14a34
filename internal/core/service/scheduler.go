package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rowan/backstop/internal/core/repository"
)

// Scheduler polls for due jobs and hands them to the execution engine.
// Each due job runs in its own goroutine; the engine's per-job lock keeps
// a slow run from stacking up with the next tick.
type Scheduler struct {
	jobRepo  repository.JobRepository
	engine   *ExecutionEngine
	logger   zerolog.Logger
	interval time.Duration

	stop chan struct{}
	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

func NewScheduler(
	jobRepo repository.JobRepository,
	engine *ExecutionEngine,
	logger zerolog.Logger,
	interval time.Duration,
) *Scheduler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Scheduler{
		jobRepo:  jobRepo,
		engine:   engine,
		logger:   logger.With().Str("component", "scheduler").Logger(),
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the polling loop. It returns immediately; Stop blocks until
// the loop and any in-flight executions have wound down.
func (s *Scheduler) Start(ctx context.Context) {
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info().Dur("interval", s.interval).Msg("scheduler started")
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-ticker.C:
				s.tick(ctx)
			}
		}
	}()
}

// Stop shuts the loop down and waits for in-flight executions.
func (s *Scheduler) Stop() {
	s.once.Do(func() { close(s.stop) })
	<-s.done
	s.wg.Wait()
	s.logger.Info().Msg("scheduler stopped")
}

func (s *Scheduler) tick(ctx context.Context) {
	jobs, err := s.jobRepo.FindDue(ctx, time.Now())
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to find due jobs")
		return
	}

	for _, job := range jobs {
		job := job
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			run, err := s.engine.Execute(ctx, job.ID)
			if err != nil {
				var alreadyRunning *JobAlreadyRunningError
				if errors.As(err, &alreadyRunning) {
					// Previous run still in flight; the next tick will catch up.
					s.logger.Debug().Str("job_id", job.ID).Msg("skipping job with run in progress")
					return
				}
				s.logger.Error().Err(err).Str("job_id", job.ID).Msg("scheduled execution failed")
				return
			}
			s.logger.Info().
				Str("job_id", job.ID).
				Str("run_id", run.ID).
				Str("status", string(run.Status)).
				Msg("scheduled run finished")
		}()
	}
}
