package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rowan/backstop/internal/api/dto"
	"github.com/rowan/backstop/internal/core/domain"
	"github.com/rowan/backstop/internal/core/repository"
	"github.com/rowan/backstop/internal/core/service"
)

// Allowed fields for restore queries and ordering
var (
	restoreQueryFields = []string{"id", "run_id", "type", "status", "target_path", "started_at", "completed_at"}
	restoreOrderFields = []string{"id", "started_at", "completed_at"}
)

type RestoreHandler struct {
	restoreService *service.RestoreService
}

func NewRestoreHandler(restoreService *service.RestoreService) *RestoreHandler {
	return &RestoreHandler{restoreService: restoreService}
}

// CreateRestore handles POST /restores. The restore runs synchronously; the
// response carries the terminal restore record.
func (h *RestoreHandler) CreateRestore(c *gin.Context) {
	var req dto.CreateRestoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	restoreType := domain.RestoreType(req.Type)
	if restoreType != domain.RestoreTypeTest && req.TargetPath == "" {
		respondError(c, http.StatusBadRequest, "target_path is required for non-test restores")
		return
	}

	restore, err := h.restoreService.Restore(
		c.Request.Context(),
		req.RunID,
		restoreType,
		req.TargetPath,
		service.RestoreSelection{Patterns: req.Patterns, Paths: req.Paths},
	)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toRestoreResponse(restore))
}

// GetRestore handles GET /restores/:id
func (h *RestoreHandler) GetRestore(c *gin.Context) {
	restore, err := h.restoreService.GetRestore(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toRestoreResponse(restore))
}

// ListRestores handles GET /restores. Sandbox (test) restores are excluded
// unless include_sandbox=true.
func (h *RestoreHandler) ListRestores(c *gin.Context) {
	listFilter, ok := parseListFilter(c, restoreQueryFields, restoreOrderFields)
	if !ok {
		return
	}

	filter := repository.RestoreFilter{
		ListFilter:     listFilter,
		IncludeSandbox: c.Query("include_sandbox") == "true",
	}
	if runID := c.Query("run_id"); runID != "" {
		filter.RunID = &runID
	}

	restores, err := h.restoreService.ListRestores(c.Request.Context(), filter)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	count, _ := h.restoreService.CountRestores(c.Request.Context(), filter)

	response := dto.RestoreListResponse{
		Items:      make([]dto.RestoreResponse, len(restores)),
		Pagination: paginationInfo(count, filter.Page, filter.PerPage),
	}
	for i, restore := range restores {
		response.Items[i] = toRestoreResponse(restore)
	}
	c.JSON(http.StatusOK, response)
}

func toRestoreResponse(restore *domain.BackupRestore) dto.RestoreResponse {
	resp := dto.RestoreResponse{
		ID:            restore.ID,
		RunID:         restore.RunID,
		Type:          string(restore.Type),
		TargetPath:    restore.TargetPath,
		Status:        string(restore.Status),
		RestoredFiles: restore.RestoredFiles,
		Sandbox:       restore.Sandbox,
		StartedAt:     restore.StartedAt,
		CompletedAt:   restore.CompletedAt,
		Errors:        make([]dto.BackupErrorDTO, len(restore.Errors)),
	}
	for i, e := range restore.Errors {
		resp.Errors[i] = toBackupErrorDTO(e)
	}
	return resp
}
