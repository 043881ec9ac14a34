package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/rowan/backstop/internal/core/domain"
	"github.com/rowan/backstop/internal/core/repository"
)

func TestSchedulerExecutesDueJob(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	past := time.Now().Add(-time.Minute)
	due := env.newTestJob(t, func(job *domain.BackupJob) {
		job.Schedule = domain.ScheduleConfig{Enabled: true, Interval: 1, Unit: domain.ScheduleUnitHours}
		job.NextRunAt = &past
	})
	// A paused job never runs, due or not
	paused := env.newTestJob(t, func(job *domain.BackupJob) {
		job.Status = domain.JobStatusPaused
		job.Schedule = domain.ScheduleConfig{Enabled: true, Interval: 1, Unit: domain.ScheduleUnitHours}
		job.NextRunAt = &past
	})

	scheduler := NewScheduler(env.jobRepo, env.engine, zerolog.Nop(), 20*time.Millisecond)
	scheduler.Start(context.Background())
	defer scheduler.Stop()

	deadline := time.Now().Add(5 * time.Second)
	for {
		runs, err := env.runRepo.FindByJob(context.Background(), due.ID)
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(runs) > 0 && runs[0].IsTerminal() {
			if runs[0].Status != domain.RunStatusCompleted {
				t.Fatalf("expected completed scheduled run, got %s", runs[0].Status)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("scheduler never executed the due job")
		}
		time.Sleep(10 * time.Millisecond)
	}

	pausedRuns, err := env.runRepo.FindByJob(context.Background(), paused.ID)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(pausedRuns) != 0 {
		t.Errorf("paused job must not run, got %d runs", len(pausedRuns))
	}

	// A successful run pushes next_run_at into the future
	updated, err := env.jobRepo.FindByID(context.Background(), due.ID)
	if err != nil {
		t.Fatalf("failed to reload job: %v", err)
	}
	if updated.NextRunAt == nil || !updated.NextRunAt.After(time.Now()) {
		t.Errorf("expected future next_run_at, got %v", updated.NextRunAt)
	}
}

func TestSchedulerStopIsIdempotent(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	scheduler := NewScheduler(env.jobRepo, env.engine, zerolog.Nop(), 10*time.Millisecond)
	scheduler.Start(context.Background())
	scheduler.Stop()
	scheduler.Stop()
}

func TestSchedulerDefaultInterval(t *testing.T) {
	var jobRepo repository.JobRepository
	scheduler := NewScheduler(jobRepo, nil, zerolog.Nop(), 0)
	if scheduler.interval != 30*time.Second {
		t.Errorf("expected 30s default interval, got %s", scheduler.interval)
	}
}
