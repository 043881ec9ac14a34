package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rowan/backstop/internal/api/dto"
	"github.com/rowan/backstop/internal/core/domain"
	"github.com/rowan/backstop/internal/core/repository"
	"github.com/rowan/backstop/internal/core/service"
)

// Allowed fields for test queries and ordering
var (
	testQueryFields = []string{"id", "run_id", "type", "status", "started_at", "completed_at"}
	testOrderFields = []string{"id", "started_at", "completed_at"}
)

type TestHandler struct {
	testService *service.TestService
}

func NewTestHandler(testService *service.TestService) *TestHandler {
	return &TestHandler{testService: testService}
}

// RunIntegrityTest handles POST /runs/:id/tests/integrity
func (h *TestHandler) RunIntegrityTest(c *gin.Context) {
	test, err := h.testService.RunIntegrityTest(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toTestResponse(test))
}

// RunRestoreTest handles POST /runs/:id/tests/restore
func (h *TestHandler) RunRestoreTest(c *gin.Context) {
	test, err := h.testService.RunRestoreTest(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toTestResponse(test))
}

// GetTest handles GET /tests/:id
func (h *TestHandler) GetTest(c *gin.Context) {
	test, err := h.testService.GetTest(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTestResponse(test))
}

// ListTests handles GET /tests
func (h *TestHandler) ListTests(c *gin.Context) {
	listFilter, ok := parseListFilter(c, testQueryFields, testOrderFields)
	if !ok {
		return
	}

	filter := repository.TestFilter{ListFilter: listFilter}
	if runID := c.Query("run_id"); runID != "" {
		filter.RunID = &runID
	}
	if testType := c.Query("type"); testType != "" {
		t := domain.TestType(testType)
		filter.Type = &t
	}

	tests, err := h.testService.ListTests(c.Request.Context(), filter)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	count, _ := h.testService.CountTests(c.Request.Context(), filter)

	response := dto.TestListResponse{
		Items:      make([]dto.TestResponse, len(tests)),
		Pagination: paginationInfo(count, filter.Page, filter.PerPage),
	}
	for i, test := range tests {
		response.Items[i] = toTestResponse(test)
	}
	c.JSON(http.StatusOK, response)
}

func toTestResponse(test *domain.BackupTest) dto.TestResponse {
	resp := dto.TestResponse{
		ID:          test.ID,
		RunID:       test.RunID,
		Type:        string(test.Type),
		Status:      string(test.Status),
		StartedAt:   test.StartedAt,
		CompletedAt: test.CompletedAt,
		Results:     make([]dto.TestResultDTO, len(test.Results)),
		Failures:    make([]dto.TestFailureDTO, len(test.Failures)),
	}
	for i, r := range test.Results {
		resp.Results[i] = dto.TestResultDTO{
			Name:       r.Name,
			Outcome:    string(r.Outcome),
			DurationMS: r.Duration.Milliseconds(),
			Details:    r.Details,
			Error:      r.Error,
		}
	}
	for i, f := range test.Failures {
		resp.Failures[i] = dto.TestFailureDTO{
			Name:         f.Name,
			Error:        f.Error,
			Severity:     string(f.Severity),
			SuggestedFix: f.SuggestedFix,
		}
	}
	return resp
}
