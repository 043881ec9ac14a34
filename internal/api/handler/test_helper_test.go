package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/rowan/backstop/internal/api/dto"
	"github.com/rowan/backstop/internal/core/domain"
	"github.com/rowan/backstop/internal/core/policy"
	"github.com/rowan/backstop/internal/core/repository"
	"github.com/rowan/backstop/internal/core/service"
	"github.com/rowan/backstop/internal/infrastructure/sqlite"
)

// testEnv holds all test dependencies
type testEnv struct {
	db         *sqlite.DB
	router     *gin.Engine
	jobRepo    repository.JobRepository
	sandboxDir string
}

// setupTestEnv creates a test environment with an in-memory SQLite database
// and the full route table, without auth middleware.
func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	jobRepo := sqlite.NewJobRepository(db)
	runRepo := sqlite.NewRunRepository(db)
	testRepo := sqlite.NewTestRepository(db)
	restoreRepo := sqlite.NewRestoreRepository(db)

	evaluator := policy.NewEvaluator()
	evaluator.AddPolicy(policy.Policy{
		ID:      "test-allow",
		Name:    "allow tests and restores",
		Enabled: true,
		Rules: []policy.Rule{{
			Name:   "allow-operations",
			Action: policy.DecisionAllow,
			Conditions: []policy.Condition{
				policy.In{Key: "operation", Values: []string{"integrity-test", "restore-test", "restore"}},
			},
		}},
	})

	sandboxDir := t.TempDir()
	logger := zerolog.Nop()

	jobService := service.NewJobService(jobRepo)
	engine := service.NewExecutionEngine(jobRepo, runRepo, logger)
	testService := service.NewTestService(runRepo, jobRepo, testRepo, evaluator, sandboxDir, logger)
	restoreService := service.NewRestoreService(runRepo, restoreRepo, jobRepo, evaluator, sandboxDir, logger)
	monitoringService := service.NewMonitoringService(jobRepo, runRepo, testRepo)

	jobHandler := NewJobHandler(jobService, engine)
	runHandler := NewRunHandler(runRepo)
	testHandler := NewTestHandler(testService)
	restoreHandler := NewRestoreHandler(restoreService)
	monitoringHandler := NewMonitoringHandler(monitoringService)

	gin.SetMode(gin.TestMode)
	router := gin.New()

	router.POST("/jobs", jobHandler.CreateJob)
	router.GET("/jobs", jobHandler.ListJobs)
	router.GET("/jobs/:id", jobHandler.GetJob)
	router.POST("/jobs/:id/pause", jobHandler.PauseJob)
	router.POST("/jobs/:id/resume", jobHandler.ResumeJob)
	router.POST("/jobs/:id/disable", jobHandler.DisableJob)
	router.POST("/jobs/:id/execute", jobHandler.ExecuteJob)
	router.GET("/runs", runHandler.ListRuns)
	router.GET("/runs/failed", runHandler.ListFailedRuns)
	router.GET("/runs/integrity-issues", runHandler.ListIntegrityIssues)
	router.GET("/runs/:id", runHandler.GetRun)
	router.POST("/runs/:id/tests/integrity", testHandler.RunIntegrityTest)
	router.POST("/runs/:id/tests/restore", testHandler.RunRestoreTest)
	router.GET("/tests", testHandler.ListTests)
	router.GET("/tests/:id", testHandler.GetTest)
	router.POST("/restores", restoreHandler.CreateRestore)
	router.GET("/restores", restoreHandler.ListRestores)
	router.GET("/restores/:id", restoreHandler.GetRestore)
	router.GET("/monitoring", monitoringHandler.GetMonitoring)

	return &testEnv{
		db:         db,
		router:     router,
		jobRepo:    jobRepo,
		sandboxDir: sandboxDir,
	}
}

// cleanup closes the test database
func (env *testEnv) cleanup() {
	if env.db != nil {
		env.db.Close()
	}
}

// seedTestData populates jobs, runs, checks, tests and restores for the
// list and filter tests.
func (env *testEnv) seedTestData(t *testing.T) {
	t.Helper()

	// Base time: Nov 1, 2025
	baseTime := time.Date(2025, 11, 1, 10, 0, 0, 0, time.UTC)

	jobs := []struct {
		id     string
		name   string
		status string
	}{
		{"job-001", "nightly documents", "active"},
		{"job-002", "weekly media", "paused"},
	}
	for _, j := range jobs {
		_, err := env.db.Exec(`
			INSERT INTO job (id, name, type, source, destination, schedule, retention,
				encryption, compression, status, labels, schedule_enabled, created_at, updated_at)
			VALUES (?, ?, 'full', '{}', '{}', '{}', '{}', '{}', '{}', ?, '{}', 0, ?, ?)
		`, j.id, j.name, j.status, baseTime.Format(time.RFC3339), baseTime.Format(time.RFC3339))
		if err != nil {
			t.Fatalf("failed to seed job %s: %v", j.id, err)
		}
	}

	// 8 runs: 5 completed, 2 failed, 1 running
	runs := []struct {
		id        string
		jobID     string
		status    string
		startedAt time.Time
		size      int64
		fileCount int
	}{
		{"run-001", "job-001", "completed", baseTime, 1000, 10},
		{"run-002", "job-001", "completed", baseTime.Add(1 * 24 * time.Hour), 2000, 20},
		{"run-003", "job-001", "completed", baseTime.Add(2 * 24 * time.Hour), 3000, 30},
		{"run-004", "job-002", "completed", baseTime.Add(3 * 24 * time.Hour), 4000, 40},
		{"run-005", "job-002", "completed", baseTime.Add(4 * 24 * time.Hour), 5000, 50},
		{"run-006", "job-001", "failed", baseTime.Add(5 * 24 * time.Hour), 0, 0},
		{"run-007", "job-002", "failed", baseTime.Add(6 * 24 * time.Hour), 0, 0},
		{"run-008", "job-001", "running", baseTime.Add(7 * 24 * time.Hour), 0, 0},
	}
	for _, r := range runs {
		var completedAt interface{}
		if r.status == "completed" || r.status == "failed" {
			completedAt = r.startedAt.Add(10 * time.Minute).Format(time.RFC3339)
		}
		_, err := env.db.Exec(`
			INSERT INTO run (id, job_id, status, started_at, completed_at, duration_ms,
				size, compressed_size, file_count, archive_path, manifest_path, errors, warnings)
			VALUES (?, ?, ?, ?, ?, 600000, ?, ?, ?, '', '', '[]', '[]')
		`, r.id, r.jobID, r.status, r.startedAt.Format(time.RFC3339), completedAt, r.size, r.size, r.fileCount)
		if err != nil {
			t.Fatalf("failed to seed run %s: %v", r.id, err)
		}
	}

	// Integrity checks: run-002 carries a failed checksum
	checks := []struct {
		id     string
		runID  string
		status string
	}{
		{"check-001", "run-001", "passed"},
		{"check-002", "run-002", "failed"},
		{"check-003", "run-003", "passed"},
	}
	for _, c := range checks {
		_, err := env.db.Exec(`
			INSERT INTO integrity_check (id, run_id, type, algorithm, checksum, status, verified_at)
			VALUES (?, ?, 'checksum', 'sha256', 'abc123', ?, ?)
		`, c.id, c.runID, c.status, baseTime.Format(time.RFC3339))
		if err != nil {
			t.Fatalf("failed to seed check %s: %v", c.id, err)
		}
	}

	// Tests: one passed integrity, one failed restore
	tests := []struct {
		id       string
		runID    string
		testType string
		status   string
	}{
		{"test-001", "run-001", "integrity", "passed"},
		{"test-002", "run-002", "restore", "failed"},
	}
	for _, ts := range tests {
		_, err := env.db.Exec(`
			INSERT INTO test (id, run_id, type, status, started_at, completed_at, results, failures)
			VALUES (?, ?, ?, ?, ?, ?, '[]', '[]')
		`, ts.id, ts.runID, ts.testType, ts.status,
			baseTime.Format(time.RFC3339), baseTime.Add(time.Minute).Format(time.RFC3339))
		if err != nil {
			t.Fatalf("failed to seed test %s: %v", ts.id, err)
		}
	}

	// Restores: one user restore, one sandboxed test restore
	restores := []struct {
		id      string
		runID   string
		resType string
		sandbox int
	}{
		{"restore-001", "run-001", "full", 0},
		{"restore-002", "run-001", "test", 1},
	}
	for _, r := range restores {
		_, err := env.db.Exec(`
			INSERT INTO restore (id, run_id, type, target_path, status, restored_files,
				sandbox, started_at, completed_at, errors)
			VALUES (?, ?, ?, '/tmp/restored', 'completed', 10, ?, ?, ?, '[]')
		`, r.id, r.runID, r.resType, r.sandbox,
			baseTime.Format(time.RFC3339), baseTime.Add(time.Minute).Format(time.RFC3339))
		if err != nil {
			t.Fatalf("failed to seed restore %s: %v", r.id, err)
		}
	}
}

// seedExecutableJob creates a job whose source and destination really exist,
// for endpoints that run the engine.
func (env *testEnv) seedExecutableJob(t *testing.T) *domain.BackupJob {
	t.Helper()

	source := t.TempDir()
	files := map[string]string{
		"a.txt":     "alpha content",
		"sub/b.log": "bravo log line",
	}
	for rel, content := range files {
		path := filepath.Join(source, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			t.Fatalf("failed to create source dir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("failed to write source file: %v", err)
		}
	}

	job := domain.NewBackupJob("job-live", "live job", domain.BackupTypeFull)
	job.Source = domain.SourceConfig{Type: domain.SourceTypeDirectory, Path: source}
	job.Destination = domain.DestinationConfig{Type: domain.DestinationTypeLocal, Path: filepath.Join(t.TempDir(), "archives")}
	job.Retention = domain.RetentionConfig{Policy: domain.RetentionPolicyTime, Days: 30}
	if err := env.jobRepo.Create(context.Background(), job); err != nil {
		t.Fatalf("failed to create job: %v", err)
	}
	return job
}

// makeRequest performs a GET request and returns the response
func (env *testEnv) makeRequest(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, path, nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

// postRequest performs a POST request with an optional JSON body
func (env *testEnv) postRequest(t *testing.T, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(http.MethodPost, path, reader)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

// parseRunListResponse parses the response body into RunListResponse
func parseRunListResponse(t *testing.T, w *httptest.ResponseRecorder) dto.RunListResponse {
	t.Helper()

	var resp dto.RunListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v\nBody: %s", err, w.Body.String())
	}
	return resp
}

// parseJobListResponse parses the response body into JobListResponse
func parseJobListResponse(t *testing.T, w *httptest.ResponseRecorder) dto.JobListResponse {
	t.Helper()

	var resp dto.JobListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v\nBody: %s", err, w.Body.String())
	}
	return resp
}

// parseTestListResponse parses the response body into TestListResponse
func parseTestListResponse(t *testing.T, w *httptest.ResponseRecorder) dto.TestListResponse {
	t.Helper()

	var resp dto.TestListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v\nBody: %s", err, w.Body.String())
	}
	return resp
}

// parseRestoreListResponse parses the response body into RestoreListResponse
func parseRestoreListResponse(t *testing.T, w *httptest.ResponseRecorder) dto.RestoreListResponse {
	t.Helper()

	var resp dto.RestoreListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v\nBody: %s", err, w.Body.String())
	}
	return resp
}

// parseErrorResponse parses the response body into ErrorResponse
func parseErrorResponse(t *testing.T, w *httptest.ResponseRecorder) dto.ErrorResponse {
	t.Helper()

	var resp dto.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, w.Body.String())
	}
	return resp
}

// ptr is a helper to create a pointer to a value
func ptr[T any](v T) *T {
	return &v
}
