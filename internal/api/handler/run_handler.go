package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rowan/backstop/internal/api/dto"
	"github.com/rowan/backstop/internal/core/domain"
	"github.com/rowan/backstop/internal/core/repository"
)

// Allowed fields for run queries and ordering
var (
	runQueryFields = []string{"id", "job_id", "status", "started_at", "completed_at", "size", "file_count"}
	runOrderFields = []string{"id", "started_at", "completed_at", "size"}
)

type RunHandler struct {
	runRepo repository.RunRepository
}

func NewRunHandler(runRepo repository.RunRepository) *RunHandler {
	return &RunHandler{runRepo: runRepo}
}

// GetRun handles GET /runs/:id
func (h *RunHandler) GetRun(c *gin.Context) {
	run, err := h.runRepo.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toRunResponse(run))
}

// ListRuns handles GET /runs
func (h *RunHandler) ListRuns(c *gin.Context) {
	listFilter, ok := parseListFilter(c, runQueryFields, runOrderFields)
	if !ok {
		return
	}

	filter := repository.RunFilter{ListFilter: listFilter}
	if jobID := c.Query("job_id"); jobID != "" {
		filter.JobID = &jobID
	}
	if status := c.Query("status"); status != "" {
		s := domain.RunStatus(status)
		filter.Status = &s
	}

	h.respondRunList(c, filter)
}

// ListFailedRuns handles GET /runs/failed
func (h *RunHandler) ListFailedRuns(c *gin.Context) {
	listFilter, ok := parseListFilter(c, runQueryFields, runOrderFields)
	if !ok {
		return
	}

	failed := domain.RunStatusFailed
	filter := repository.RunFilter{ListFilter: listFilter, Status: &failed}
	if jobID := c.Query("job_id"); jobID != "" {
		filter.JobID = &jobID
	}

	h.respondRunList(c, filter)
}

// ListIntegrityIssues handles GET /runs/integrity-issues: completed runs
// whose archives can no longer be trusted.
func (h *RunHandler) ListIntegrityIssues(c *gin.Context) {
	runs, err := h.runRepo.FindWithIntegrityIssues(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	response := dto.RunListResponse{
		Items:      make([]dto.RunResponse, len(runs)),
		Pagination: paginationInfo(len(runs), 1, len(runs)),
	}
	for i, run := range runs {
		response.Items[i] = toRunResponse(run)
	}
	c.JSON(http.StatusOK, response)
}

func (h *RunHandler) respondRunList(c *gin.Context, filter repository.RunFilter) {
	runs, err := h.runRepo.List(c.Request.Context(), filter)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	count, _ := h.runRepo.Count(c.Request.Context(), filter)

	response := dto.RunListResponse{
		Items:      make([]dto.RunResponse, len(runs)),
		Pagination: paginationInfo(count, filter.Page, filter.PerPage),
	}
	for i, run := range runs {
		response.Items[i] = toRunResponse(run)
	}
	c.JSON(http.StatusOK, response)
}

func toRunResponse(run *domain.BackupRun) dto.RunResponse {
	resp := dto.RunResponse{
		ID:             run.ID,
		JobID:          run.JobID,
		Status:         string(run.Status),
		StartedAt:      run.StartedAt,
		CompletedAt:    run.CompletedAt,
		DurationMS:     run.Duration.Milliseconds(),
		Size:           run.Size,
		CompressedSize: run.CompressedSize,
		FileCount:      run.FileCount,
		ArchivePath:    run.ArchivePath,
		Errors:         make([]dto.BackupErrorDTO, len(run.Errors)),
		Warnings:       run.Warnings,
		Checks:         make([]dto.IntegrityCheckDTO, len(run.Checks)),
	}
	if resp.Warnings == nil {
		resp.Warnings = []string{}
	}
	for i, e := range run.Errors {
		resp.Errors[i] = toBackupErrorDTO(e)
	}
	for i, check := range run.Checks {
		resp.Checks[i] = dto.IntegrityCheckDTO{
			ID:         check.ID,
			Type:       string(check.Type),
			Algorithm:  string(check.Algorithm),
			Checksum:   check.Checksum,
			Status:     string(check.Status),
			VerifiedAt: check.VerifiedAt,
			Error:      check.Error,
		}
	}
	return resp
}

func toBackupErrorDTO(e domain.BackupError) dto.BackupErrorDTO {
	return dto.BackupErrorDTO{
		Type:       string(e.Type),
		Severity:   string(e.Severity),
		Message:    e.Message,
		FilePath:   e.FilePath,
		Timestamp:  e.Timestamp,
		Resolved:   e.Resolved,
		Resolution: e.Resolution,
	}
}
