package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rowan/backstop/internal/core/domain"
	"github.com/rowan/backstop/internal/core/policy"
	"github.com/rowan/backstop/internal/core/repository"
)

func TestFullRestoreRoundtrip(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	job := env.newTestJob(t, nil)
	run := env.completedRun(t, job.ID)
	target := t.TempDir()

	restore, err := env.restoreService().Restore(context.Background(), run.ID, domain.RestoreTypeFull, target, RestoreSelection{})
	if err != nil {
		t.Fatalf("restore failed to run: %v", err)
	}
	if restore.Status != domain.RestoreStatusCompleted {
		t.Fatalf("expected completed restore, got %s (errors: %v)", restore.Status, restore.Errors)
	}
	if restore.RestoredFiles != 3 {
		t.Errorf("expected 3 restored files, got %d", restore.RestoredFiles)
	}
	if restore.Sandbox {
		t.Error("full restore must not be flagged as sandbox")
	}

	expected := map[string]string{
		"a.txt":     "alpha content",
		"c.txt":     "charlie content",
		"sub/b.log": "bravo log line",
	}
	for rel, content := range expected {
		data, err := os.ReadFile(filepath.Join(target, filepath.FromSlash(rel)))
		if err != nil {
			t.Errorf("restored file %s missing: %v", rel, err)
			continue
		}
		if string(data) != content {
			t.Errorf("restored file %s: expected %q, got %q", rel, content, data)
		}
	}
}

func TestEncryptedRestoreRoundtrip(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	keyFile := newKeyFile(t)
	job := env.newTestJob(t, func(job *domain.BackupJob) {
		job.Destination.Compression = true
		job.Compression = domain.CompressionConfig{Algorithm: domain.CompressionAlgorithmGzip, Level: 9}
		job.Destination.Encryption = true
		job.Encryption = domain.EncryptionConfig{
			Algorithm: domain.EncryptionAlgorithmAESGCM,
			KeyFile:   ptr(keyFile),
		}
	})
	run := env.completedRun(t, job.ID)
	target := t.TempDir()

	restore, err := env.restoreService().Restore(context.Background(), run.ID, domain.RestoreTypeFull, target, RestoreSelection{})
	if err != nil {
		t.Fatalf("restore failed to run: %v", err)
	}
	if restore.Status != domain.RestoreStatusCompleted {
		t.Fatalf("expected completed restore, got %s (errors: %v)", restore.Status, restore.Errors)
	}

	data, err := os.ReadFile(filepath.Join(target, "a.txt"))
	if err != nil {
		t.Fatalf("restored file missing: %v", err)
	}
	if string(data) != "alpha content" {
		t.Errorf("expected %q, got %q", "alpha content", data)
	}
}

func TestSelectiveRestoreByPattern(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	job := env.newTestJob(t, nil)
	run := env.completedRun(t, job.ID)
	target := t.TempDir()

	restore, err := env.restoreService().Restore(context.Background(), run.ID, domain.RestoreTypeSelective, target,
		RestoreSelection{Patterns: []string{"*.txt"}})
	if err != nil {
		t.Fatalf("restore failed to run: %v", err)
	}
	if restore.Status != domain.RestoreStatusCompleted {
		t.Fatalf("expected completed restore, got %s (errors: %v)", restore.Status, restore.Errors)
	}
	if restore.RestoredFiles != 2 {
		t.Errorf("expected 2 restored files, got %d", restore.RestoredFiles)
	}
	if _, err := os.Stat(filepath.Join(target, "sub", "b.log")); !os.IsNotExist(err) {
		t.Error("log file must not be restored by *.txt pattern")
	}
}

func TestSelectiveRestoreByExactPath(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	job := env.newTestJob(t, nil)
	run := env.completedRun(t, job.ID)
	target := t.TempDir()

	restore, err := env.restoreService().Restore(context.Background(), run.ID, domain.RestoreTypePartial, target,
		RestoreSelection{Paths: []string{"sub/b.log"}})
	if err != nil {
		t.Fatalf("restore failed to run: %v", err)
	}
	if restore.RestoredFiles != 1 {
		t.Errorf("expected 1 restored file, got %d", restore.RestoredFiles)
	}
	if _, err := os.Stat(filepath.Join(target, "sub", "b.log")); err != nil {
		t.Errorf("selected file missing: %v", err)
	}
}

func TestSelectiveRestoreRejectsNoMatches(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	job := env.newTestJob(t, nil)
	run := env.completedRun(t, job.ID)

	_, err := env.restoreService().Restore(context.Background(), run.ID, domain.RestoreTypeSelective, t.TempDir(),
		RestoreSelection{Patterns: []string{"*.pdf"}})
	var noMatches *NoMatchingFilesError
	if !errors.As(err, &noMatches) {
		t.Fatalf("expected NoMatchingFilesError, got %v", err)
	}

	// No restore record may exist for the rejected selection
	count, cerr := env.restoreRepo.Count(context.Background(), repository.RestoreFilter{IncludeSandbox: true})
	if cerr != nil {
		t.Fatalf("failed to count restores: %v", cerr)
	}
	if count != 0 {
		t.Errorf("expected no restore records, got %d", count)
	}
}

func TestSelectiveRestoreRejectsEmptySelection(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	job := env.newTestJob(t, nil)
	run := env.completedRun(t, job.ID)
	svc := env.restoreService()

	// An empty selection must not degrade into a full restore
	for _, restoreType := range []domain.RestoreType{domain.RestoreTypePartial, domain.RestoreTypeSelective} {
		_, err := svc.Restore(context.Background(), run.ID, restoreType, t.TempDir(), RestoreSelection{})
		var noMatches *NoMatchingFilesError
		if !errors.As(err, &noMatches) {
			t.Fatalf("%s: expected NoMatchingFilesError, got %v", restoreType, err)
		}
	}

	count, err := env.restoreRepo.Count(context.Background(), repository.RestoreFilter{IncludeSandbox: true})
	if err != nil {
		t.Fatalf("failed to count restores: %v", err)
	}
	if count != 0 {
		t.Errorf("expected no restore records, got %d", count)
	}
}

func TestTestRestoreGoesToSandbox(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	job := env.newTestJob(t, nil)
	run := env.completedRun(t, job.ID)

	restore, err := env.restoreService().Restore(context.Background(), run.ID, domain.RestoreTypeTest, "/should/be/ignored", RestoreSelection{})
	if err != nil {
		t.Fatalf("restore failed to run: %v", err)
	}
	if !restore.Sandbox {
		t.Error("test restore must be flagged as sandbox")
	}
	expected := filepath.Join(env.sandboxDir, restore.ID)
	if restore.TargetPath != expected {
		t.Errorf("expected sandbox target %s, got %s", expected, restore.TargetPath)
	}
	if _, err := os.Stat(filepath.Join(expected, "a.txt")); err != nil {
		t.Errorf("sandboxed file missing: %v", err)
	}
}

func TestListRestoresExcludesSandbox(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	job := env.newTestJob(t, nil)
	run := env.completedRun(t, job.ID)
	svc := env.restoreService()

	if _, err := svc.Restore(context.Background(), run.ID, domain.RestoreTypeFull, t.TempDir(), RestoreSelection{}); err != nil {
		t.Fatalf("full restore failed: %v", err)
	}
	if _, err := svc.Restore(context.Background(), run.ID, domain.RestoreTypeTest, "", RestoreSelection{}); err != nil {
		t.Fatalf("test restore failed: %v", err)
	}

	visible, err := svc.ListRestores(context.Background(), repository.RestoreFilter{})
	if err != nil {
		t.Fatalf("failed to list restores: %v", err)
	}
	if len(visible) != 1 {
		t.Fatalf("expected 1 visible restore, got %d", len(visible))
	}
	if visible[0].Type != domain.RestoreTypeFull {
		t.Errorf("expected the full restore, got %s", visible[0].Type)
	}

	all, err := svc.ListRestores(context.Background(), repository.RestoreFilter{IncludeSandbox: true})
	if err != nil {
		t.Fatalf("failed to list restores: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 restores with sandbox included, got %d", len(all))
	}
}

func TestRestoreRequiresPolicyAllow(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	job := env.newTestJob(t, nil)
	run := env.completedRun(t, job.ID)

	denying := NewRestoreService(env.runRepo, env.restoreRepo, env.jobRepo, policy.NewEvaluator(), env.sandboxDir, env.engine.logger)

	_, err := denying.Restore(context.Background(), run.ID, domain.RestoreTypeFull, t.TempDir(), RestoreSelection{})
	var notPermitted *NotPermittedError
	if !errors.As(err, &notPermitted) {
		t.Fatalf("expected NotPermittedError, got %v", err)
	}
	if notPermitted.Operation != "restore" {
		t.Errorf("expected restore operation in error, got %s", notPermitted.Operation)
	}
}
