package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rowan/backstop/internal/core/domain"
	"github.com/rowan/backstop/internal/core/policy"
	"github.com/rowan/backstop/internal/core/repository"
	"github.com/rowan/backstop/internal/integrity"
	"github.com/rowan/backstop/internal/storage"
)

const (
	fixRerunBackup    = "re-run the backup job to produce a fresh archive"
	fixCheckSandbox   = "check that the sandbox directory exists and is writable"
	fixVerifyArchive  = "run an integrity test against this run; the archive may be corrupted"
	fixRerunWithFiles = "re-run the backup job; the archive is missing files listed in its manifest"
)

// TestService runs post-hoc diagnostics against completed runs. Tests are
// strictly read-only with respect to the run they examine: a failed test
// never changes run state, it only records its own verdict.
type TestService struct {
	runRepo    repository.RunRepository
	jobRepo    repository.JobRepository
	testRepo   repository.TestRepository
	evaluator  *policy.Evaluator
	archiver   *storage.Archiver
	verifier   *integrity.Verifier
	sandboxDir string
	logger     zerolog.Logger
}

func NewTestService(
	runRepo repository.RunRepository,
	jobRepo repository.JobRepository,
	testRepo repository.TestRepository,
	evaluator *policy.Evaluator,
	sandboxDir string,
	logger zerolog.Logger,
) *TestService {
	return &TestService{
		runRepo:    runRepo,
		jobRepo:    jobRepo,
		testRepo:   testRepo,
		evaluator:  evaluator,
		archiver:   storage.NewArchiver(),
		verifier:   integrity.NewVerifier(),
		sandboxDir: sandboxDir,
		logger:     logger.With().Str("component", "tests").Logger(),
	}
}

// RunIntegrityTest re-verifies a completed run's archive: stored checksums,
// envelope (decryption/decompression) and manifest agreement.
func (s *TestService) RunIntegrityTest(ctx context.Context, runID string) (*domain.BackupTest, error) {
	run, job, err := s.prepare(ctx, runID, "integrity-test")
	if err != nil {
		return nil, err
	}

	test := domain.NewBackupTest(uuid.New().String(), runID, domain.TestTypeIntegrity)
	if err := s.testRepo.Create(ctx, test); err != nil {
		return nil, err
	}

	s.checkArchivePresent(test, run)
	if test.DeriveStatus() == domain.TestStatusPassed {
		s.checkStoredChecksums(test, run)
		s.checkArchiveStructure(ctx, test, run, job)
	}

	test.Finish()
	if err := s.testRepo.Update(ctx, test); err != nil {
		return nil, err
	}
	s.logger.Info().Str("run_id", runID).Str("test_id", test.ID).
		Str("status", string(test.Status)).Msg("integrity test finished")
	return test, nil
}

// RunRestoreTest extracts the run's archive into a disposable sandbox and
// verifies every restored file against the manifest. The sandbox is removed
// afterwards regardless of outcome.
func (s *TestService) RunRestoreTest(ctx context.Context, runID string) (*domain.BackupTest, error) {
	run, job, err := s.prepare(ctx, runID, "restore-test")
	if err != nil {
		return nil, err
	}

	test := domain.NewBackupTest(uuid.New().String(), runID, domain.TestTypeRestore)
	if err := s.testRepo.Create(ctx, test); err != nil {
		return nil, err
	}

	sandbox := filepath.Join(s.sandboxDir, test.ID)
	defer os.RemoveAll(sandbox)

	if s.checkSandboxReady(test, sandbox) {
		s.checkSandboxRestore(ctx, test, run, job, sandbox)
	}

	test.Finish()
	if err := s.testRepo.Update(ctx, test); err != nil {
		return nil, err
	}
	s.logger.Info().Str("run_id", runID).Str("test_id", test.ID).
		Str("status", string(test.Status)).Msg("restore test finished")
	return test, nil
}

// GetTest retrieves a test by ID
func (s *TestService) GetTest(ctx context.Context, id string) (*domain.BackupTest, error) {
	return s.testRepo.FindByID(ctx, id)
}

// ListTests lists tests with filtering
func (s *TestService) ListTests(ctx context.Context, filter repository.TestFilter) ([]*domain.BackupTest, error) {
	return s.testRepo.List(ctx, filter)
}

// CountTests counts tests with filtering
func (s *TestService) CountTests(ctx context.Context, filter repository.TestFilter) (int, error) {
	return s.testRepo.Count(ctx, filter)
}

// ListTestsByRun lists the tests recorded against one run
func (s *TestService) ListTestsByRun(ctx context.Context, runID string) ([]*domain.BackupTest, error) {
	return s.testRepo.FindByRun(ctx, runID)
}

// prepare loads the run and its job and consults the policy evaluator.
// Anything but an allow decision aborts before any test record exists.
func (s *TestService) prepare(ctx context.Context, runID, operation string) (*domain.BackupRun, *domain.BackupJob, error) {
	run, err := s.runRepo.FindByID(ctx, runID)
	if err != nil {
		return nil, nil, err
	}
	if run.Status != domain.RunStatusCompleted {
		return nil, nil, &RunNotRestorableError{RunID: runID, Status: run.Status}
	}

	decision := s.evaluator.Decide(runID, policy.Context{
		"operation": operation,
		"job_id":    run.JobID,
	})
	if decision != policy.DecisionAllow {
		return nil, nil, &NotPermittedError{Subject: runID, Operation: operation, Decision: decision}
	}

	job, err := s.jobRepo.FindByID(ctx, run.JobID)
	if err != nil {
		return nil, nil, err
	}
	return run, job, nil
}

func (s *TestService) checkArchivePresent(test *domain.BackupTest, run *domain.BackupRun) {
	started := time.Now()
	if _, err := os.Stat(run.ArchivePath); err != nil {
		s.fail(test, "archive-present", started, err.Error(), domain.SeverityCritical, fixRerunBackup)
		return
	}
	s.pass(test, "archive-present", started, run.ArchivePath)
}

func (s *TestService) checkStoredChecksums(test *domain.BackupTest, run *domain.BackupRun) {
	for _, check := range run.Checks {
		started := time.Now()
		name := fmt.Sprintf("checksum-%s", check.Algorithm)

		// A check that never passed carries no trustworthy reference
		// digest; report it as skipped rather than pretending it was
		// re-verified.
		if check.Status != domain.CheckStatusPassed {
			s.skip(test, name, started,
				fmt.Sprintf("recorded check status is %s, no reference digest to verify against", check.Status))
			continue
		}

		outcome, err := s.verifier.VerifyFile(run.ArchivePath, check.Checksum, check.Algorithm)
		switch outcome {
		case integrity.VerifyPassed:
			s.pass(test, name, started, "archive digest matches recorded checksum")
		case integrity.VerifyFailed:
			s.fail(test, name, started, "archive digest does not match recorded checksum",
				domain.SeverityCritical, fixRerunBackup)
		default:
			s.fail(test, name, started, err.Error(), domain.SeverityHigh, fixRerunBackup)
		}
	}
}

// checkArchiveStructure walks the full payload, exercising decryption,
// decompression and tar framing, then cross-checks the entry list against
// the manifest.
func (s *TestService) checkArchiveStructure(ctx context.Context, test *domain.BackupTest, run *domain.BackupRun, job *domain.BackupJob) {
	started := time.Now()

	manifest, err := storage.ReadManifest(run.ArchivePath)
	if err != nil {
		s.fail(test, "manifest-readable", started, err.Error(), domain.SeverityHigh, fixRerunBackup)
		return
	}
	s.pass(test, "manifest-readable", started, fmt.Sprintf("%d files listed", len(manifest.Files)))

	started = time.Now()
	entries, err := s.archiver.ListEntries(ctx, run.ArchivePath, manifest, job.Encryption.KeyFile)
	if err != nil {
		s.fail(test, "archive-structure", started, err.Error(), domain.SeverityCritical, fixRerunBackup)
		return
	}
	s.pass(test, "archive-structure", started, fmt.Sprintf("%d entries walked", len(entries)))

	started = time.Now()
	present := make(map[string]bool, len(entries))
	for _, name := range entries {
		present[name] = true
	}
	var missing []string
	for _, f := range manifest.Files {
		if !present[f.Path] {
			missing = append(missing, f.Path)
		}
	}
	if len(missing) > 0 {
		s.fail(test, "manifest-agreement", started,
			fmt.Sprintf("%d manifest entries missing from archive: %v", len(missing), missing),
			domain.SeverityHigh, fixRerunWithFiles)
		return
	}
	s.pass(test, "manifest-agreement", started, "every manifest entry is present in the archive")
}

func (s *TestService) checkSandboxReady(test *domain.BackupTest, sandbox string) bool {
	started := time.Now()
	if err := os.MkdirAll(sandbox, 0o750); err != nil {
		s.fail(test, "sandbox-ready", started, err.Error(), domain.SeverityMedium, fixCheckSandbox)
		return false
	}
	probe := filepath.Join(sandbox, ".probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
		s.fail(test, "sandbox-ready", started, err.Error(), domain.SeverityMedium, fixCheckSandbox)
		return false
	}
	os.Remove(probe)
	s.pass(test, "sandbox-ready", started, sandbox)
	return true
}

func (s *TestService) checkSandboxRestore(ctx context.Context, test *domain.BackupTest, run *domain.BackupRun, job *domain.BackupJob, sandbox string) {
	started := time.Now()

	manifest, err := storage.ReadManifest(run.ArchivePath)
	if err != nil {
		s.fail(test, "sandbox-restore", started, err.Error(), domain.SeverityHigh, fixVerifyArchive)
		return
	}

	restored, err := s.archiver.Extract(ctx, run.ArchivePath, manifest, job.Encryption.KeyFile, sandbox, nil)
	if err != nil {
		s.fail(test, "sandbox-restore", started, err.Error(), domain.SeverityCritical, fixVerifyArchive)
		return
	}
	if restored != len(manifest.Files) {
		s.fail(test, "sandbox-restore", started,
			fmt.Sprintf("restored %d of %d files", restored, len(manifest.Files)),
			domain.SeverityHigh, fixRerunWithFiles)
		return
	}
	s.pass(test, "sandbox-restore", started, fmt.Sprintf("%d files restored", restored))

	started = time.Now()
	for _, f := range manifest.Files {
		path := filepath.Join(sandbox, filepath.FromSlash(f.Path))
		outcome, verr := s.verifier.VerifyFile(path, f.Checksum, domain.AlgorithmSHA256)
		if outcome == integrity.VerifyPassed {
			continue
		}
		details := fmt.Sprintf("restored file %s does not match its manifest checksum", f.Path)
		if verr != nil {
			details = fmt.Sprintf("restored file %s could not be verified: %v", f.Path, verr)
		}
		s.fail(test, "restored-checksums", started, details, domain.SeverityCritical, fixRerunBackup)
		return
	}
	s.pass(test, "restored-checksums", started, "all restored files match their manifest checksums")
}

func (s *TestService) pass(test *domain.BackupTest, name string, started time.Time, details string) {
	test.AddResult(domain.TestResult{
		Name:     name,
		Outcome:  domain.TestOutcomePass,
		Duration: time.Since(started),
		Details:  details,
	})
}

func (s *TestService) skip(test *domain.BackupTest, name string, started time.Time, details string) {
	test.AddResult(domain.TestResult{
		Name:     name,
		Outcome:  domain.TestOutcomeSkip,
		Duration: time.Since(started),
		Details:  details,
	})
}

func (s *TestService) fail(test *domain.BackupTest, name string, started time.Time, details string, severity domain.ErrorSeverity, fix string) {
	test.AddResult(domain.TestResult{
		Name:     name,
		Outcome:  domain.TestOutcomeFail,
		Duration: time.Since(started),
		Details:  details,
		Error:    &details,
	})
	test.AddFailure(domain.TestFailure{
		Name:         name,
		Error:        details,
		Severity:     severity,
		SuggestedFix: &fix,
	})
}
