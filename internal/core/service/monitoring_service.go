package service

import (
	"context"
	"time"

	"github.com/rowan/backstop/internal/core/domain"
	"github.com/rowan/backstop/internal/core/repository"
)

// MonitoringService computes the aggregate health snapshot. Nothing here is
// persisted; every call recomputes from the stores.
type MonitoringService struct {
	jobRepo  repository.JobRepository
	runRepo  repository.RunRepository
	testRepo repository.TestRepository
}

func NewMonitoringService(
	jobRepo repository.JobRepository,
	runRepo repository.RunRepository,
	testRepo repository.TestRepository,
) *MonitoringService {
	return &MonitoringService{
		jobRepo:  jobRepo,
		runRepo:  runRepo,
		testRepo: testRepo,
	}
}

// Snapshot aggregates jobs, runs and tests into one monitoring view. Ratios
// with a zero denominator report 100: an empty system has nothing out of
// compliance.
func (s *MonitoringService) Snapshot(ctx context.Context) (*domain.BackupMonitoring, error) {
	m := &domain.BackupMonitoring{LastUpdated: time.Now()}

	jobs, err := s.jobRepo.List(ctx, repository.JobFilter{})
	if err != nil {
		return nil, err
	}
	for _, job := range jobs {
		m.TotalJobs++
		switch job.Status {
		case domain.JobStatusActive:
			m.ActiveJobs++
		case domain.JobStatusPaused:
			m.PausedJobs++
		case domain.JobStatusDisabled:
			m.DisabledJobs++
		case domain.JobStatusError:
			m.ErrorJobs++
		}
	}

	runs, err := s.runRepo.List(ctx, repository.RunFilter{})
	if err != nil {
		return nil, err
	}
	for _, run := range runs {
		m.TotalRuns++
		switch run.Status {
		case domain.RunStatusRunning:
			m.RunningRuns++
		case domain.RunStatusCompleted:
			m.CompletedRuns++
			m.TotalSize += run.Size
			m.CompressedSize += run.CompressedSize
			if run.CompletedAt != nil && (m.LastSuccessfulBackup == nil || run.CompletedAt.After(*m.LastSuccessfulBackup)) {
				m.LastSuccessfulBackup = run.CompletedAt
			}
		case domain.RunStatusFailed:
			m.FailedRuns++
			if run.CompletedAt != nil && (m.LastFailedBackup == nil || run.CompletedAt.After(*m.LastFailedBackup)) {
				m.LastFailedBackup = run.CompletedAt
			}
		case domain.RunStatusCancelled:
			m.CancelledRuns++
		}
	}

	tests, err := s.testRepo.List(ctx, repository.TestFilter{})
	if err != nil {
		return nil, err
	}
	var integrityPassed, integrityTotal, restorePassed, restoreTotal int
	for _, test := range tests {
		m.TotalTests++
		switch test.Status {
		case domain.TestStatusPassed:
			m.PassedTests++
		case domain.TestStatusFailed:
			m.FailedTests++
		}
		switch test.Type {
		case domain.TestTypeIntegrity:
			integrityTotal++
			if test.Status == domain.TestStatusPassed {
				integrityPassed++
			}
		case domain.TestTypeRestore:
			restoreTotal++
			if test.Status == domain.TestStatusPassed {
				restorePassed++
			}
		}
	}

	m.IntegrityCheckPassRate = rate(integrityPassed, integrityTotal)
	m.RestoreTestPassRate = rate(restorePassed, restoreTotal)

	// Compliance is the unweighted mean of three ratios: active jobs over
	// all jobs, completed runs over all runs, passed tests over all tests.
	jobRate := rate(m.ActiveJobs, m.TotalJobs)
	runRate := rate(m.CompletedRuns, m.TotalRuns)
	testRate := rate(m.PassedTests, m.TotalTests)
	m.CompliancePercentage = clamp((jobRate + runRate + testRate) / 3)

	return m, nil
}

func rate(passed, total int) float64 {
	if total == 0 {
		return 100
	}
	return clamp(float64(passed) / float64(total) * 100)
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
