package handler

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/rowan/backstop/internal/api/dto"
)

func validCreateJobRequest(t *testing.T) dto.CreateJobRequest {
	t.Helper()

	source := t.TempDir()
	if err := os.WriteFile(filepath.Join(source, "a.txt"), []byte("content"), 0o600); err != nil {
		t.Fatalf("failed to write source file: %v", err)
	}
	return dto.CreateJobRequest{
		Name: "nightly docs",
		Type: "full",
		Source: dto.SourceDTO{
			Type: "directory",
			Path: source,
		},
		Destination: dto.DestinationDTO{
			Type: "local",
			Path: filepath.Join(t.TempDir(), "archives"),
		},
		Retention: dto.RetentionDTO{
			Policy: "time",
			Days:   30,
		},
		Labels: map[string]string{"team": "platform"},
	}
}

func parseJobResponse(t *testing.T, body []byte) dto.JobResponse {
	t.Helper()

	var resp dto.JobResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("failed to parse job response: %v\nBody: %s", err, body)
	}
	return resp
}

func TestCreateJob(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	w := env.postRequest(t, "/jobs", validCreateJobRequest(t))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d\nBody: %s", w.Code, w.Body.String())
	}
	job := parseJobResponse(t, w.Body.Bytes())
	if job.ID == "" {
		t.Error("expected generated job ID")
	}
	if job.Status != "active" {
		t.Errorf("expected active status, got %s", job.Status)
	}
	if job.Labels["team"] != "platform" {
		t.Errorf("expected labels to round-trip, got %v", job.Labels)
	}

	w = env.makeRequest(t, "/jobs/"+job.ID)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	fetched := parseJobResponse(t, w.Body.Bytes())
	if fetched.Name != "nightly docs" {
		t.Errorf("expected persisted name, got %q", fetched.Name)
	}
}

func TestCreateJobValidation(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	tests := []struct {
		name   string
		mutate func(req *dto.CreateJobRequest)
	}{
		{
			name:   "missing name",
			mutate: func(req *dto.CreateJobRequest) { req.Name = "" },
		},
		{
			name:   "unknown backup type",
			mutate: func(req *dto.CreateJobRequest) { req.Type = "snapshot" },
		},
		{
			name:   "unknown source type",
			mutate: func(req *dto.CreateJobRequest) { req.Source.Type = "carrier-pigeon" },
		},
		{
			name:   "missing destination path",
			mutate: func(req *dto.CreateJobRequest) { req.Destination.Path = "" },
		},
		{
			name:   "unknown retention policy",
			mutate: func(req *dto.CreateJobRequest) { req.Retention.Policy = "forever" },
		},
		{
			name: "time retention without a window",
			mutate: func(req *dto.CreateJobRequest) {
				req.Retention = dto.RetentionDTO{Policy: "time"}
			},
		},
		{
			name: "scheduled without interval",
			mutate: func(req *dto.CreateJobRequest) {
				req.Schedule = dto.ScheduleDTO{Enabled: true, Unit: "hours"}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validCreateJobRequest(t)
			tt.mutate(&req)

			w := env.postRequest(t, "/jobs", req)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d\nBody: %s", w.Code, w.Body.String())
			}
			resp := parseErrorResponse(t, w)
			if resp.Message == "" {
				t.Error("expected error message")
			}
		})
	}
}

func TestListJobs(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()
	env.seedTestData(t)

	tests := []struct {
		name          string
		queryString   string
		expectedCount int
		expectedIDs   []string
	}{
		{
			name:          "list all jobs",
			queryString:   "",
			expectedCount: 2,
		},
		{
			name:          "filter by status",
			queryString:   "?status=paused",
			expectedCount: 1,
			expectedIDs:   []string{"job-002"},
		},
		{
			name:          "filter by type",
			queryString:   "?type=full",
			expectedCount: 2,
		},
		{
			name:          "no matches",
			queryString:   "?status=disabled",
			expectedCount: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.makeRequest(t, "/jobs"+tt.queryString)
			if w.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d\nBody: %s", w.Code, w.Body.String())
			}
			resp := parseJobListResponse(t, w)
			if len(resp.Items) != tt.expectedCount {
				t.Errorf("expected %d jobs, got %d", tt.expectedCount, len(resp.Items))
			}
			for i, id := range tt.expectedIDs {
				if i >= len(resp.Items) {
					break
				}
				if resp.Items[i].ID != id {
					t.Errorf("item %d: expected %s, got %s", i, id, resp.Items[i].ID)
				}
			}
		})
	}
}

func TestJobLifecycleEndpoints(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()
	env.seedTestData(t)

	// active -> paused
	w := env.postRequest(t, "/jobs/job-001/pause", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("pause: expected 200, got %d\nBody: %s", w.Code, w.Body.String())
	}
	if job := parseJobResponse(t, w.Body.Bytes()); job.Status != "paused" {
		t.Errorf("expected paused, got %s", job.Status)
	}

	// paused -> active
	w = env.postRequest(t, "/jobs/job-001/resume", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("resume: expected 200, got %d", w.Code)
	}
	if job := parseJobResponse(t, w.Body.Bytes()); job.Status != "active" {
		t.Errorf("expected active, got %s", job.Status)
	}

	// any -> disabled
	w = env.postRequest(t, "/jobs/job-001/disable", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("disable: expected 200, got %d", w.Code)
	}
	if job := parseJobResponse(t, w.Body.Bytes()); job.Status != "disabled" {
		t.Errorf("expected disabled, got %s", job.Status)
	}

	// disabled jobs cannot be paused
	w = env.postRequest(t, "/jobs/job-001/pause", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d\nBody: %s", w.Code, w.Body.String())
	}

	// unknown job
	w = env.postRequest(t, "/jobs/job-missing/pause", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestExecuteJobEndpoint(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	job := env.seedExecutableJob(t)

	w := env.postRequest(t, "/jobs/"+job.ID+"/execute", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d\nBody: %s", w.Code, w.Body.String())
	}
	var run dto.RunResponse
	if err := json.Unmarshal(w.Body.Bytes(), &run); err != nil {
		t.Fatalf("failed to parse run response: %v\nBody: %s", err, w.Body.String())
	}
	if run.Status != "completed" {
		t.Fatalf("expected completed run, got %s (errors: %+v)", run.Status, run.Errors)
	}
	if run.FileCount != 2 {
		t.Errorf("expected 2 files, got %d", run.FileCount)
	}
	if len(run.Checks) != 1 || run.Checks[0].Status != "passed" {
		t.Errorf("expected a passed check, got %+v", run.Checks)
	}

	// A second execute produces a second run
	w = env.postRequest(t, "/jobs/"+job.ID+"/execute", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}

	// Paused jobs refuse to execute
	if w = env.postRequest(t, "/jobs/"+job.ID+"/pause", nil); w.Code != http.StatusOK {
		t.Fatalf("pause failed: %d", w.Code)
	}
	w = env.postRequest(t, "/jobs/"+job.ID+"/execute", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for paused job, got %d\nBody: %s", w.Code, w.Body.String())
	}
}
