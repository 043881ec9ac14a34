package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/rowan/backstop/internal/api/dto"
	"github.com/rowan/backstop/internal/api/util"
	"github.com/rowan/backstop/internal/core/service"
)

func respondError(c *gin.Context, code int, message string) {
	c.JSON(code, dto.ErrorResponse{
		Error:   http.StatusText(code),
		Message: message,
		Code:    code,
	})
}

// respondServiceError maps typed service errors onto HTTP status codes.
// Unknown errors with a "not found" message become 404s, matching the
// repository convention; everything else is a 500.
func respondServiceError(c *gin.Context, err error) {
	var (
		invalidConfig  *service.InvalidConfigError
		notRunnable    *service.JobNotRunnableError
		alreadyRunning *service.JobAlreadyRunningError
		badTransition  *service.InvalidTransitionError
		notRestorable  *service.RunNotRestorableError
		noMatches      *service.NoMatchingFilesError
		notPermitted   *service.NotPermittedError
	)

	switch {
	case errors.As(err, &invalidConfig):
		respondError(c, http.StatusBadRequest, err.Error())
	case errors.As(err, &noMatches):
		respondError(c, http.StatusBadRequest, err.Error())
	case errors.As(err, &notPermitted):
		respondError(c, http.StatusForbidden, err.Error())
	case errors.As(err, &notRunnable),
		errors.As(err, &alreadyRunning),
		errors.As(err, &badTransition),
		errors.As(err, &notRestorable):
		respondError(c, http.StatusConflict, err.Error())
	case strings.Contains(err.Error(), "not found"):
		respondError(c, http.StatusNotFound, err.Error())
	default:
		respondError(c, http.StatusInternalServerError, err.Error())
	}
}

// parseListFilter reads page/per_page plus the query/order filter dialect
// from the request. Returns false after writing an error response when the
// query is malformed.
func parseListFilter(c *gin.Context, queryFields, orderFields []string) (util.ListFilter, bool) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "25"))

	filter := util.ListFilter{
		Page:    page,
		PerPage: perPage,
	}

	if queryStr := c.Query("query"); queryStr != "" {
		filters, err := util.ParseQueryString(queryStr)
		if err != nil {
			respondError(c, http.StatusBadRequest, err.Error())
			return filter, false
		}
		if err := util.ValidateFilterFields(filters, queryFields); err != nil {
			respondError(c, http.StatusBadRequest, err.Error())
			return filter, false
		}
		filter.Filters = filters
	}

	if orderStr := c.Query("order"); orderStr != "" {
		orders, err := util.ParseOrderString(orderStr)
		if err != nil {
			respondError(c, http.StatusBadRequest, err.Error())
			return filter, false
		}
		if err := util.ValidateOrderFields(orders, orderFields); err != nil {
			respondError(c, http.StatusBadRequest, err.Error())
			return filter, false
		}
		filter.Order = orders
	}

	return filter, true
}

func paginationInfo(total, page, perPage int) dto.PaginationInfo {
	totalPages := 0
	if perPage > 0 {
		totalPages = (total + perPage - 1) / perPage
	}
	return dto.PaginationInfo{
		Total:      total,
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages,
	}
}
