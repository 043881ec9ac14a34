package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rowan/backstop/internal/core/domain"
	"github.com/rowan/backstop/internal/core/repository"
	"github.com/rowan/backstop/internal/integrity"
	"github.com/rowan/backstop/internal/storage"
)

// ExecutionEngine turns a job into a run: transfer, verify, record. At most
// one run per job is in flight at any time.
type ExecutionEngine struct {
	jobRepo  repository.JobRepository
	runRepo  repository.RunRepository
	archiver *storage.Archiver
	verifier *integrity.Verifier
	logger   zerolog.Logger

	mu      sync.Mutex
	running map[string]struct{}
}

func NewExecutionEngine(
	jobRepo repository.JobRepository,
	runRepo repository.RunRepository,
	logger zerolog.Logger,
) *ExecutionEngine {
	return &ExecutionEngine{
		jobRepo:  jobRepo,
		runRepo:  runRepo,
		archiver: storage.NewArchiver(),
		verifier: integrity.NewVerifier(),
		logger:   logger.With().Str("component", "engine").Logger(),
		running:  make(map[string]struct{}),
	}
}

// Execute runs the job identified by jobID and returns the resulting run.
// Execution failures are recorded on the run rather than returned; the error
// return covers preconditions (unknown job, not runnable, already running)
// and persistence failures.
func (e *ExecutionEngine) Execute(ctx context.Context, jobID string) (*domain.BackupRun, error) {
	job, err := e.jobRepo.FindByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !job.IsRunnable() {
		return nil, &JobNotRunnableError{JobID: jobID, Status: job.Status}
	}
	if !e.acquire(jobID) {
		return nil, &JobAlreadyRunningError{JobID: jobID}
	}
	defer e.release(jobID)

	runID := uuid.New().String()
	archivePath := filepath.Join(job.Destination.Path, runID+".bkp")

	run := domain.NewBackupRun(runID, job.ID)
	run.ArchivePath = archivePath
	run.ManifestPath = storage.ManifestPath(archivePath)
	if err := e.runRepo.Create(ctx, run); err != nil {
		return nil, err
	}

	e.logger.Info().Str("job_id", job.ID).Str("run_id", runID).Msg("backup run started")

	result, archiveErr := e.archiver.Create(ctx, job, archivePath)
	switch {
	case archiveErr != nil && ctx.Err() != nil:
		// Cancelled mid-transfer: no archive, no manifest, no check.
		run.Cancel()
		e.logger.Warn().Str("run_id", runID).Msg("backup run cancelled")

	case archiveErr != nil:
		errType, severity := classifyArchiveError(archiveErr)
		run.AppendError(domain.NewBackupError(errType, severity, archiveErr.Error()))
		run.Fail()
		e.logger.Error().Err(archiveErr).Str("run_id", runID).Msg("backup run failed")

	default:
		for _, skipped := range result.Skipped {
			run.AppendWarning("skipped: " + skipped)
		}
		e.finishRun(ctx, job, run, result, archivePath)
	}

	if err := e.runRepo.Update(ctx, run); err != nil {
		return nil, err
	}
	if err := e.rescheduleJob(ctx, job, run); err != nil {
		return nil, err
	}
	return run, nil
}

// finishRun writes the manifest, verifies the archive and completes the run.
// An integrity failure degrades the run but does not fail it; the check row
// carries the verdict.
func (e *ExecutionEngine) finishRun(
	ctx context.Context,
	job *domain.BackupJob,
	run *domain.BackupRun,
	result *storage.ArchiveResult,
	archivePath string,
) {
	manifest := &storage.Manifest{
		RunID:     run.ID,
		JobID:     job.ID,
		CreatedAt: time.Now(),
		Files:     result.Files,
	}
	if job.Destination.Compression {
		manifest.Compression = job.Compression.Algorithm
	} else {
		manifest.Compression = domain.CompressionAlgorithmNone
	}
	if job.Destination.Encryption {
		manifest.Encryption = job.Encryption.Algorithm
	} else {
		manifest.Encryption = domain.EncryptionAlgorithmNone
	}
	if err := storage.WriteManifest(archivePath, manifest); err != nil {
		run.AppendError(domain.NewBackupError(domain.ErrorTypeOther, domain.SeverityHigh, err.Error()))
		run.Fail()
		storage.RemoveArchive(archivePath)
		return
	}

	check := domain.NewIntegrityCheck(uuid.New().String(), run.ID, domain.CheckTypeChecksum, domain.AlgorithmSHA256)
	digest, err := e.verifier.ComputeFile(archivePath, domain.AlgorithmSHA256)
	if err != nil {
		check.FailError(err)
		run.AppendError(domain.NewBackupError(domain.ErrorTypeIntegrity, domain.SeverityMedium, err.Error()))
		e.logger.Error().Err(err).Str("run_id", run.ID).Msg("integrity check errored")
	} else {
		check.Pass(digest)
	}
	if err := e.runRepo.CreateCheck(ctx, check); err != nil {
		e.logger.Error().Err(err).Str("run_id", run.ID).Msg("failed to record integrity check")
	}
	run.Checks = append(run.Checks, *check)

	run.Complete(result.Size, result.CompressedSize, result.FileCount)
	e.logger.Info().
		Str("run_id", run.ID).
		Int64("size", run.Size).
		Int64("compressed_size", run.CompressedSize).
		Int("file_count", run.FileCount).
		Msg("backup run completed")
}

// rescheduleJob recomputes nextRunAt after every terminal run, so a failed
// scheduled job waits a full interval instead of retriggering immediately.
// lastRunAt only advances on success.
func (e *ExecutionEngine) rescheduleJob(ctx context.Context, job *domain.BackupJob, run *domain.BackupRun) error {
	now := time.Now()
	if run.Status == domain.RunStatusCompleted {
		job.LastRunAt = run.CompletedAt
	}
	if job.Schedule.Enabled {
		next := job.Schedule.NextRunAfter(now)
		job.NextRunAt = &next
	}
	job.UpdatedAt = now
	if err := e.jobRepo.Update(ctx, job); err != nil {
		return fmt.Errorf("failed to reschedule job: %w", err)
	}
	return nil
}

func (e *ExecutionEngine) acquire(jobID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.running[jobID]; busy {
		return false
	}
	e.running[jobID] = struct{}{}
	return true
}

func (e *ExecutionEngine) release(jobID string) {
	e.mu.Lock()
	delete(e.running, jobID)
	e.mu.Unlock()
}

// classifyArchiveError maps a pipeline failure to the error taxonomy recorded
// on the run.
func classifyArchiveError(err error) (domain.ErrorType, domain.ErrorSeverity) {
	var stageErr *storage.StageError
	if !errors.As(err, &stageErr) {
		return domain.ErrorTypeOther, domain.SeverityHigh
	}

	switch stageErr.Stage {
	case storage.StageEnumerate:
		if errors.Is(err, fs.ErrPermission) {
			return domain.ErrorTypePermissionDenied, domain.SeverityHigh
		}
		if errors.Is(err, fs.ErrNotExist) {
			return domain.ErrorTypeFileNotFound, domain.SeverityHigh
		}
		return domain.ErrorTypeOther, domain.SeverityHigh
	case storage.StagePrepare:
		// Destination unreachable before any bytes moved.
		return domain.ErrorTypeNetwork, domain.SeverityHigh
	case storage.StageTransfer:
		if errors.Is(err, syscall.ENOSPC) {
			return domain.ErrorTypeDiskFull, domain.SeverityCritical
		}
		return domain.ErrorTypeNetwork, domain.SeverityHigh
	case storage.StageCompress:
		return domain.ErrorTypeCompression, domain.SeverityHigh
	case storage.StageEncrypt:
		return domain.ErrorTypeEncryption, domain.SeverityHigh
	default:
		return domain.ErrorTypeOther, domain.SeverityHigh
	}
}
