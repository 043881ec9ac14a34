package service

import (
	"context"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rowan/backstop/internal/core/domain"
	"github.com/rowan/backstop/internal/core/policy"
	"github.com/rowan/backstop/internal/core/repository"
	"github.com/rowan/backstop/internal/storage"
)

// RestoreSelection narrows a partial or selective restore. Patterns are glob
// patterns matched against archive paths, Paths are exact archive paths.
// Partial and selective restores require at least one of the two.
type RestoreSelection struct {
	Patterns []string
	Paths    []string
}

func (sel RestoreSelection) empty() bool {
	return len(sel.Patterns) == 0 && len(sel.Paths) == 0
}

type RestoreService struct {
	runRepo     repository.RunRepository
	restoreRepo repository.RestoreRepository
	jobRepo     repository.JobRepository
	evaluator   *policy.Evaluator
	archiver    *storage.Archiver
	sandboxDir  string
	logger      zerolog.Logger
}

func NewRestoreService(
	runRepo repository.RunRepository,
	restoreRepo repository.RestoreRepository,
	jobRepo repository.JobRepository,
	evaluator *policy.Evaluator,
	sandboxDir string,
	logger zerolog.Logger,
) *RestoreService {
	return &RestoreService{
		runRepo:     runRepo,
		restoreRepo: restoreRepo,
		jobRepo:     jobRepo,
		evaluator:   evaluator,
		archiver:    storage.NewArchiver(),
		sandboxDir:  sandboxDir,
		logger:      logger.With().Str("component", "restore").Logger(),
	}
}

// Restore materializes files from a completed run at targetPath. TEST
// restores ignore targetPath and go to a disposable sandbox instead; they
// are flagged so restore history excludes them.
func (s *RestoreService) Restore(
	ctx context.Context,
	runID string,
	restoreType domain.RestoreType,
	targetPath string,
	sel RestoreSelection,
) (*domain.BackupRestore, error) {
	run, err := s.runRepo.FindByID(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Status != domain.RunStatusCompleted {
		return nil, &RunNotRestorableError{RunID: runID, Status: run.Status}
	}

	decision := s.evaluator.Decide(runID, policy.Context{
		"operation": "restore",
		"job_id":    run.JobID,
	})
	if decision != policy.DecisionAllow {
		return nil, &NotPermittedError{Subject: runID, Operation: "restore", Decision: decision}
	}

	job, err := s.jobRepo.FindByID(ctx, run.JobID)
	if err != nil {
		return nil, err
	}
	manifest, err := storage.ReadManifest(run.ArchivePath)
	if err != nil {
		return nil, err
	}

	accept, err := s.selector(runID, restoreType, manifest, sel)
	if err != nil {
		return nil, err
	}

	restoreID := uuid.New().String()
	if restoreType == domain.RestoreTypeTest {
		targetPath = filepath.Join(s.sandboxDir, restoreID)
	}

	restore := domain.NewBackupRestore(restoreID, runID, restoreType, targetPath)
	if err := s.restoreRepo.Create(ctx, restore); err != nil {
		return nil, err
	}
	s.logger.Info().Str("run_id", runID).Str("restore_id", restoreID).
		Str("type", string(restoreType)).Str("target", targetPath).Msg("restore started")

	restored, extractErr := s.archiver.Extract(ctx, run.ArchivePath, manifest, job.Encryption.KeyFile, targetPath, accept)
	switch {
	case extractErr != nil && ctx.Err() != nil:
		restore.Cancel()
		s.logger.Warn().Str("restore_id", restoreID).Msg("restore cancelled")
	case extractErr != nil:
		errType, severity := classifyArchiveError(extractErr)
		restore.AppendError(domain.NewBackupError(errType, severity, extractErr.Error()))
		restore.Fail()
		s.logger.Error().Err(extractErr).Str("restore_id", restoreID).Msg("restore failed")
	default:
		restore.Complete(restored)
		s.logger.Info().Str("restore_id", restoreID).Int("files", restored).Msg("restore completed")
	}

	if err := s.restoreRepo.Update(ctx, restore); err != nil {
		return nil, err
	}
	return restore, nil
}

// selector builds the accept function for Extract and rejects selections
// that match nothing in the manifest.
func (s *RestoreService) selector(
	runID string,
	restoreType domain.RestoreType,
	manifest *storage.Manifest,
	sel RestoreSelection,
) (func(path string) bool, error) {
	if restoreType == domain.RestoreTypeFull || restoreType == domain.RestoreTypeTest {
		return nil, nil
	}
	// Partial and selective restores must say what they want; an empty
	// selection is a caller error, not an implicit full restore.
	if sel.empty() {
		return nil, &NoMatchingFilesError{RunID: runID}
	}

	exact := make(map[string]bool, len(sel.Paths))
	for _, p := range sel.Paths {
		exact[filepath.ToSlash(p)] = true
	}
	accept := func(path string) bool {
		return exact[path] || storage.MatchesAny(sel.Patterns, path)
	}

	matched := false
	for _, f := range manifest.Files {
		if accept(f.Path) {
			matched = true
			break
		}
	}
	if !matched {
		patterns := append([]string{}, sel.Patterns...)
		patterns = append(patterns, sel.Paths...)
		return nil, &NoMatchingFilesError{RunID: runID, Patterns: patterns}
	}
	return accept, nil
}

// GetRestore retrieves a restore by ID
func (s *RestoreService) GetRestore(ctx context.Context, id string) (*domain.BackupRestore, error) {
	return s.restoreRepo.FindByID(ctx, id)
}

// ListRestores lists restores with filtering
func (s *RestoreService) ListRestores(ctx context.Context, filter repository.RestoreFilter) ([]*domain.BackupRestore, error) {
	return s.restoreRepo.List(ctx, filter)
}

// CountRestores counts restores with filtering
func (s *RestoreService) CountRestores(ctx context.Context, filter repository.RestoreFilter) (int, error) {
	return s.restoreRepo.Count(ctx, filter)
}
