package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/rowan/backstop/internal/core/domain"
	"github.com/rowan/backstop/internal/core/repository"
	"github.com/rowan/backstop/internal/storage"
)

// RetentionService prunes expired runs per each job's retention config.
// Archive and manifest files are removed first; only runs whose files are
// gone get their records deleted, so a failed filesystem delete never
// orphans an archive.
type RetentionService struct {
	jobRepo repository.JobRepository
	runRepo repository.RunRepository
	logger  zerolog.Logger
}

func NewRetentionService(
	jobRepo repository.JobRepository,
	runRepo repository.RunRepository,
	logger zerolog.Logger,
) *RetentionService {
	return &RetentionService{
		jobRepo: jobRepo,
		runRepo: runRepo,
		logger:  logger.With().Str("component", "retention").Logger(),
	}
}

// SweepJob prunes one job's expired runs and returns how many were removed.
func (s *RetentionService) SweepJob(ctx context.Context, jobID string) (int, error) {
	job, err := s.jobRepo.FindByID(ctx, jobID)
	if err != nil {
		return 0, err
	}

	runs, err := s.runRepo.FindByJob(ctx, jobID)
	if err != nil {
		return 0, err
	}

	expired := expiredRuns(job.Retention, runs, time.Now())
	if len(expired) == 0 {
		return 0, nil
	}

	var deletable []string
	for _, run := range expired {
		if err := storage.RemoveArchive(run.ArchivePath); err != nil {
			s.logger.Warn().Err(err).Str("run_id", run.ID).Msg("failed to remove expired archive")
			continue
		}
		deletable = append(deletable, run.ID)
	}
	if len(deletable) == 0 {
		return 0, nil
	}

	if err := s.runRepo.DeleteMany(ctx, deletable); err != nil {
		return 0, fmt.Errorf("failed to delete expired runs: %w", err)
	}
	s.logger.Info().Str("job_id", jobID).Int("pruned", len(deletable)).Msg("retention sweep finished")
	return len(deletable), nil
}

// SweepAll prunes every job, continuing past per-job failures.
func (s *RetentionService) SweepAll(ctx context.Context) (int, error) {
	jobs, err := s.jobRepo.List(ctx, repository.JobFilter{})
	if err != nil {
		return 0, err
	}

	total := 0
	for _, job := range jobs {
		pruned, err := s.SweepJob(ctx, job.ID)
		if err != nil {
			s.logger.Error().Err(err).Str("job_id", job.ID).Msg("retention sweep failed for job")
			continue
		}
		total += pruned
	}
	return total, nil
}

// expiredRuns selects terminal runs eligible for pruning under the retention
// config. Time and hybrid policies expire runs older than the window; count
// and hybrid policies expire completed runs beyond the newest MaxVersions.
// Running runs are never eligible.
func expiredRuns(retention domain.RetentionConfig, runs []*domain.BackupRun, now time.Time) []*domain.BackupRun {
	byTime := retention.Policy == domain.RetentionPolicyTime || retention.Policy == domain.RetentionPolicyHybrid
	byCount := retention.Policy == domain.RetentionPolicyCount || retention.Policy == domain.RetentionPolicyHybrid

	expired := make(map[string]*domain.BackupRun)

	if byTime {
		cutoff := now.AddDate(-retention.Years, -retention.Months, -(retention.Days + retention.Weeks*7))
		for _, run := range runs {
			if run.IsTerminal() && run.StartedAt.Before(cutoff) {
				expired[run.ID] = run
			}
		}
	}

	if byCount && retention.MaxVersions > 0 {
		var completed []*domain.BackupRun
		for _, run := range runs {
			if run.Status == domain.RunStatusCompleted {
				completed = append(completed, run)
			}
		}
		sort.Slice(completed, func(i, j int) bool {
			return completed[i].StartedAt.After(completed[j].StartedAt)
		})
		for _, run := range completed[min(retention.MaxVersions, len(completed)):] {
			expired[run.ID] = run
		}
	}

	out := make([]*domain.BackupRun, 0, len(expired))
	for _, run := range runs {
		if _, ok := expired[run.ID]; ok {
			out = append(out, run)
		}
	}
	return out
}
