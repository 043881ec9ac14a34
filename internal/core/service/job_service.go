package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rowan/backstop/internal/core/domain"
	"github.com/rowan/backstop/internal/core/repository"
)

type JobService struct {
	jobRepo repository.JobRepository
}

func NewJobService(jobRepo repository.JobRepository) *JobService {
	return &JobService{jobRepo: jobRepo}
}

// CreateJob validates the job configuration, fills in defaults and persists
// the job in ACTIVE status.
func (s *JobService) CreateJob(ctx context.Context, job *domain.BackupJob) (*domain.BackupJob, error) {
	if err := ValidateJob(job); err != nil {
		return nil, err
	}

	now := time.Now()
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	job.Status = domain.JobStatusActive
	job.CreatedAt = now
	job.UpdatedAt = now
	if job.Schedule.Enabled {
		next := job.Schedule.NextRunAfter(now)
		job.NextRunAt = &next
	}

	if err := s.jobRepo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	return job, nil
}

// PauseJob transitions an ACTIVE job to PAUSED.
func (s *JobService) PauseJob(ctx context.Context, id string) (*domain.BackupJob, error) {
	return s.transition(ctx, id, domain.JobStatusPaused, func(from domain.JobStatus) bool {
		return from == domain.JobStatusActive
	})
}

// ResumeJob transitions a PAUSED job back to ACTIVE.
func (s *JobService) ResumeJob(ctx context.Context, id string) (*domain.BackupJob, error) {
	return s.transition(ctx, id, domain.JobStatusActive, func(from domain.JobStatus) bool {
		return from == domain.JobStatusPaused
	})
}

// DisableJob transitions a job to DISABLED from any status.
func (s *JobService) DisableJob(ctx context.Context, id string) (*domain.BackupJob, error) {
	return s.transition(ctx, id, domain.JobStatusDisabled, func(domain.JobStatus) bool {
		return true
	})
}

// MarkError flags a job as faulty. Idempotent: marking a job that is
// already in ERROR is a no-op.
func (s *JobService) MarkError(ctx context.Context, id string) (*domain.BackupJob, error) {
	job, err := s.jobRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status == domain.JobStatusError {
		return job, nil
	}
	job.Status = domain.JobStatusError
	job.UpdatedAt = time.Now()
	if err := s.jobRepo.Update(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to mark job as errored: %w", err)
	}
	return job, nil
}

// GetJob retrieves a job by ID
func (s *JobService) GetJob(ctx context.Context, id string) (*domain.BackupJob, error) {
	return s.jobRepo.FindByID(ctx, id)
}

// ListJobs lists jobs with filtering
func (s *JobService) ListJobs(ctx context.Context, filter repository.JobFilter) ([]*domain.BackupJob, error) {
	return s.jobRepo.List(ctx, filter)
}

// CountJobs counts jobs with filtering
func (s *JobService) CountJobs(ctx context.Context, filter repository.JobFilter) (int, error) {
	return s.jobRepo.Count(ctx, filter)
}

func (s *JobService) transition(
	ctx context.Context,
	id string,
	to domain.JobStatus,
	allowed func(from domain.JobStatus) bool,
) (*domain.BackupJob, error) {
	job, err := s.jobRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status == to {
		return job, nil
	}
	if !allowed(job.Status) {
		return nil, &InvalidTransitionError{JobID: id, From: job.Status, To: to}
	}
	job.Status = to
	job.UpdatedAt = time.Now()
	if err := s.jobRepo.Update(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to update job status: %w", err)
	}
	return job, nil
}

var validBackupTypes = map[domain.BackupType]bool{
	domain.BackupTypeFull:         true,
	domain.BackupTypeIncremental:  true,
	domain.BackupTypeDifferential: true,
	domain.BackupTypeContinuous:   true,
}

var validScheduleUnits = map[domain.ScheduleUnit]bool{
	domain.ScheduleUnitMinutes: true,
	domain.ScheduleUnitHours:   true,
	domain.ScheduleUnitDays:    true,
	domain.ScheduleUnitWeeks:   true,
	domain.ScheduleUnitMonths:  true,
}

var validRetentionPolicies = map[domain.RetentionPolicy]bool{
	domain.RetentionPolicyTime:   true,
	domain.RetentionPolicyCount:  true,
	domain.RetentionPolicySize:   true,
	domain.RetentionPolicyHybrid: true,
}

// ValidateJob checks a job for malformed configuration.
// Every rejection is an *InvalidConfigError naming the offending field.
func ValidateJob(job *domain.BackupJob) error {
	if strings.TrimSpace(job.Name) == "" {
		return &InvalidConfigError{Field: "name", Reason: "must not be empty"}
	}
	if !validBackupTypes[job.Type] {
		return &InvalidConfigError{Field: "type", Reason: fmt.Sprintf("unknown backup type %q", job.Type)}
	}
	if job.Source.Path == "" {
		return &InvalidConfigError{Field: "source.path", Reason: "must not be empty"}
	}
	if job.Destination.Path == "" {
		return &InvalidConfigError{Field: "destination.path", Reason: "must not be empty"}
	}

	if job.Schedule.Enabled {
		if job.Schedule.Interval <= 0 {
			return &InvalidConfigError{Field: "schedule.interval", Reason: "must be positive"}
		}
		if !validScheduleUnits[job.Schedule.Unit] {
			return &InvalidConfigError{Field: "schedule.unit", Reason: fmt.Sprintf("unknown unit %q", job.Schedule.Unit)}
		}
		if job.Schedule.TimeOfDay != nil {
			if _, err := time.Parse("15:04", *job.Schedule.TimeOfDay); err != nil {
				return &InvalidConfigError{Field: "schedule.time_of_day", Reason: "must be in HH:MM form"}
			}
		}
	}

	if !validRetentionPolicies[job.Retention.Policy] {
		return &InvalidConfigError{Field: "retention.policy", Reason: fmt.Sprintf("unknown policy %q", job.Retention.Policy)}
	}
	switch job.Retention.Policy {
	case domain.RetentionPolicyTime:
		if job.Retention.Days <= 0 && job.Retention.Weeks <= 0 && job.Retention.Months <= 0 && job.Retention.Years <= 0 {
			return &InvalidConfigError{Field: "retention", Reason: "time policy needs a positive window"}
		}
	case domain.RetentionPolicyCount:
		if job.Retention.MaxVersions <= 0 {
			return &InvalidConfigError{Field: "retention.max_versions", Reason: "count policy needs a positive limit"}
		}
	}

	if job.Destination.Encryption {
		switch job.Encryption.Algorithm {
		case domain.EncryptionAlgorithmAESGCM, domain.EncryptionAlgorithmChaCha20:
		case domain.EncryptionAlgorithmNone, "":
			return &InvalidConfigError{Field: "encryption.algorithm", Reason: "destination requires encryption but no algorithm is set"}
		default:
			return &InvalidConfigError{Field: "encryption.algorithm", Reason: fmt.Sprintf("unknown algorithm %q", job.Encryption.Algorithm)}
		}
		if job.Encryption.KeyFile == nil || *job.Encryption.KeyFile == "" {
			return &InvalidConfigError{Field: "encryption.key_file", Reason: "must point at a key file"}
		}
		if _, err := os.Stat(*job.Encryption.KeyFile); err != nil {
			return &InvalidConfigError{Field: "encryption.key_file", Reason: fmt.Sprintf("not readable: %v", err)}
		}
	}

	if job.Destination.Compression {
		if job.Compression.Algorithm != domain.CompressionAlgorithmGzip {
			return &InvalidConfigError{Field: "compression.algorithm", Reason: fmt.Sprintf("unsupported algorithm %q", job.Compression.Algorithm)}
		}
		if job.Compression.Level < -1 || job.Compression.Level > 9 {
			return &InvalidConfigError{Field: "compression.level", Reason: "must be between -1 and 9"}
		}
	}

	return nil
}
