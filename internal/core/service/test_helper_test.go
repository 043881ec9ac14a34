package service

import (
	"context"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rowan/backstop/internal/core/domain"
	"github.com/rowan/backstop/internal/core/policy"
	"github.com/rowan/backstop/internal/core/repository"
	"github.com/rowan/backstop/internal/infrastructure/sqlite"
	"github.com/rowan/backstop/internal/storage"
)

// testEnv holds all test dependencies
type testEnv struct {
	db          *sqlite.DB
	jobRepo     repository.JobRepository
	runRepo     repository.RunRepository
	testRepo    repository.TestRepository
	restoreRepo repository.RestoreRepository
	evaluator   *policy.Evaluator
	engine      *ExecutionEngine
	sandboxDir  string
}

// setupTestEnv creates a test environment with an in-memory SQLite database
// and an evaluator that allows test and restore operations.
func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	jobRepo := sqlite.NewJobRepository(db)
	runRepo := sqlite.NewRunRepository(db)

	evaluator := policy.NewEvaluator()
	evaluator.AddPolicy(policy.Policy{
		ID:       "test-allow",
		Name:     "allow tests and restores",
		Priority: 0,
		Enabled:  true,
		Rules: []policy.Rule{{
			Name:   "allow-operations",
			Action: policy.DecisionAllow,
			Conditions: []policy.Condition{
				policy.In{Key: "operation", Values: []string{"integrity-test", "restore-test", "restore"}},
			},
		}},
	})

	return &testEnv{
		db:          db,
		jobRepo:     jobRepo,
		runRepo:     runRepo,
		testRepo:    sqlite.NewTestRepository(db),
		restoreRepo: sqlite.NewRestoreRepository(db),
		evaluator:   evaluator,
		engine:      NewExecutionEngine(jobRepo, runRepo, zerolog.Nop()),
		sandboxDir:  t.TempDir(),
	}
}

func (env *testEnv) cleanup() {
	if env.db != nil {
		env.db.Close()
	}
}

func (env *testEnv) testService() *TestService {
	return NewTestService(env.runRepo, env.jobRepo, env.testRepo, env.evaluator, env.sandboxDir, zerolog.Nop())
}

func (env *testEnv) restoreService() *RestoreService {
	return NewRestoreService(env.runRepo, env.restoreRepo, env.jobRepo, env.evaluator, env.sandboxDir, zerolog.Nop())
}

// writeSourceTree creates a small directory tree to back up
func writeSourceTree(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	files := map[string]string{
		"a.txt":     "alpha content",
		"c.txt":     "charlie content",
		"sub/b.log": "bravo log line",
	}
	for rel, content := range files {
		path := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			t.Fatalf("failed to create source dir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("failed to write source file: %v", err)
		}
	}
	return dir
}

// newTestJob builds a valid directory-to-local job and persists it
func (env *testEnv) newTestJob(t *testing.T, mutate func(job *domain.BackupJob)) *domain.BackupJob {
	t.Helper()

	job := domain.NewBackupJob(uuid.New().String(), "test job", domain.BackupTypeFull)
	job.Source = domain.SourceConfig{
		Type: domain.SourceTypeDirectory,
		Path: writeSourceTree(t),
	}
	job.Destination = domain.DestinationConfig{
		Type: domain.DestinationTypeLocal,
		Path: filepath.Join(t.TempDir(), "archives"),
	}
	job.Retention = domain.RetentionConfig{
		Policy: domain.RetentionPolicyTime,
		Days:   30,
	}
	if mutate != nil {
		mutate(job)
	}
	if err := env.jobRepo.Create(context.Background(), job); err != nil {
		t.Fatalf("failed to create job: %v", err)
	}
	return job
}

// newKeyFile writes a random archive key and returns its path
func newKeyFile(t *testing.T) string {
	t.Helper()

	key := make([]byte, storage.KeySize)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	path := filepath.Join(t.TempDir(), "archive.key")
	if err := storage.WriteKeyFile(path, key); err != nil {
		t.Fatalf("failed to write key file: %v", err)
	}
	return path
}

// completedRun executes the job and asserts the run completed
func (env *testEnv) completedRun(t *testing.T, jobID string) *domain.BackupRun {
	t.Helper()

	run, err := env.engine.Execute(context.Background(), jobID)
	if err != nil {
		t.Fatalf("failed to execute job: %v", err)
	}
	if run.Status != domain.RunStatusCompleted {
		t.Fatalf("expected completed run, got %s (errors: %v)", run.Status, run.Errors)
	}
	return run
}

// ptr is a helper to create a pointer to a value
func ptr[T any](v T) *T {
	return &v
}
