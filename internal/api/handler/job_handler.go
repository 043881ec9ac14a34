package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rowan/backstop/internal/api/dto"
	"github.com/rowan/backstop/internal/core/domain"
	"github.com/rowan/backstop/internal/core/repository"
	"github.com/rowan/backstop/internal/core/service"
)

type JobHandler struct {
	jobService *service.JobService
	engine     *service.ExecutionEngine
}

func NewJobHandler(jobService *service.JobService, engine *service.ExecutionEngine) *JobHandler {
	return &JobHandler{
		jobService: jobService,
		engine:     engine,
	}
}

// CreateJob handles POST /jobs
func (h *JobHandler) CreateJob(c *gin.Context) {
	var req dto.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	job, err := h.jobService.CreateJob(c.Request.Context(), fromCreateJobRequest(&req))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toJobResponse(job))
}

// GetJob handles GET /jobs/:id
func (h *JobHandler) GetJob(c *gin.Context) {
	job, err := h.jobService.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toJobResponse(job))
}

// ListJobs handles GET /jobs
func (h *JobHandler) ListJobs(c *gin.Context) {
	filter := repository.JobFilter{}

	if status := c.Query("status"); status != "" {
		s := domain.JobStatus(status)
		filter.Status = &s
	}
	if backupType := c.Query("type"); backupType != "" {
		t := domain.BackupType(backupType)
		filter.Type = &t
	}

	jobs, err := h.jobService.ListJobs(c.Request.Context(), filter)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	count, _ := h.jobService.CountJobs(c.Request.Context(), filter)

	response := dto.JobListResponse{
		Items:      make([]dto.JobResponse, len(jobs)),
		Pagination: paginationInfo(count, 1, len(jobs)),
	}
	for i, job := range jobs {
		response.Items[i] = toJobResponse(job)
	}
	c.JSON(http.StatusOK, response)
}

// PauseJob handles POST /jobs/:id/pause
func (h *JobHandler) PauseJob(c *gin.Context) {
	job, err := h.jobService.PauseJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toJobResponse(job))
}

// ResumeJob handles POST /jobs/:id/resume
func (h *JobHandler) ResumeJob(c *gin.Context) {
	job, err := h.jobService.ResumeJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toJobResponse(job))
}

// DisableJob handles POST /jobs/:id/disable
func (h *JobHandler) DisableJob(c *gin.Context) {
	job, err := h.jobService.DisableJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toJobResponse(job))
}

// ExecuteJob handles POST /jobs/:id/execute. Execution is synchronous; the
// response carries the terminal run.
func (h *JobHandler) ExecuteJob(c *gin.Context) {
	run, err := h.engine.Execute(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toRunResponse(run))
}

func fromCreateJobRequest(req *dto.CreateJobRequest) *domain.BackupJob {
	job := domain.NewBackupJob("", req.Name, domain.BackupType(req.Type))
	job.Source = domain.SourceConfig{
		Type:        domain.SourceType(req.Source.Type),
		Path:        req.Source.Path,
		Credentials: req.Source.Credentials,
		Include:     req.Source.Include,
		Exclude:     req.Source.Exclude,
	}
	job.Destination = domain.DestinationConfig{
		Type:        domain.DestinationType(req.Destination.Type),
		Path:        req.Destination.Path,
		Credentials: req.Destination.Credentials,
		Encryption:  req.Destination.Encryption,
		Compression: req.Destination.Compression,
	}
	job.Schedule = domain.ScheduleConfig{
		Interval:  req.Schedule.Interval,
		Unit:      domain.ScheduleUnit(req.Schedule.Unit),
		TimeOfDay: req.Schedule.TimeOfDay,
		Enabled:   req.Schedule.Enabled,
	}
	for _, d := range req.Schedule.DaysOfWeek {
		job.Schedule.DaysOfWeek = append(job.Schedule.DaysOfWeek, time.Weekday(d))
	}
	job.Retention = domain.RetentionConfig{
		Policy:      domain.RetentionPolicy(req.Retention.Policy),
		Days:        req.Retention.Days,
		Weeks:       req.Retention.Weeks,
		Months:      req.Retention.Months,
		Years:       req.Retention.Years,
		MaxVersions: req.Retention.MaxVersions,
	}
	if req.Encryption != nil {
		job.Encryption = domain.EncryptionConfig{
			Algorithm: domain.EncryptionAlgorithm(req.Encryption.Algorithm),
			KeySize:   req.Encryption.KeySize,
			KeyFile:   req.Encryption.KeyFile,
		}
	}
	if req.Compression != nil {
		job.Compression = domain.CompressionConfig{
			Algorithm: domain.CompressionAlgorithm(req.Compression.Algorithm),
			Level:     req.Compression.Level,
		}
	} else if req.Destination.Compression {
		job.Compression = domain.CompressionConfig{Algorithm: domain.CompressionAlgorithmGzip}
	}
	job.Labels = req.Labels
	return job
}

func toJobResponse(job *domain.BackupJob) dto.JobResponse {
	resp := dto.JobResponse{
		ID:     job.ID,
		Name:   job.Name,
		Type:   string(job.Type),
		Status: string(job.Status),
		Source: dto.SourceDTO{
			Type:        string(job.Source.Type),
			Path:        job.Source.Path,
			Credentials: job.Source.Credentials,
			Include:     job.Source.Include,
			Exclude:     job.Source.Exclude,
		},
		Destination: dto.DestinationDTO{
			Type:        string(job.Destination.Type),
			Path:        job.Destination.Path,
			Credentials: job.Destination.Credentials,
			Encryption:  job.Destination.Encryption,
			Compression: job.Destination.Compression,
		},
		Schedule: dto.ScheduleDTO{
			Interval:  job.Schedule.Interval,
			Unit:      string(job.Schedule.Unit),
			TimeOfDay: job.Schedule.TimeOfDay,
			Enabled:   job.Schedule.Enabled,
		},
		Retention: dto.RetentionDTO{
			Policy:      string(job.Retention.Policy),
			Days:        job.Retention.Days,
			Weeks:       job.Retention.Weeks,
			Months:      job.Retention.Months,
			Years:       job.Retention.Years,
			MaxVersions: job.Retention.MaxVersions,
		},
		Encryption: dto.EncryptionDTO{
			Algorithm: string(job.Encryption.Algorithm),
			KeySize:   job.Encryption.KeySize,
			KeyFile:   job.Encryption.KeyFile,
		},
		Compression: dto.CompressionDTO{
			Algorithm: string(job.Compression.Algorithm),
			Level:     job.Compression.Level,
		},
		Labels:    job.Labels,
		LastRunAt: job.LastRunAt,
		NextRunAt: job.NextRunAt,
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	}
	for _, d := range job.Schedule.DaysOfWeek {
		resp.Schedule.DaysOfWeek = append(resp.Schedule.DaysOfWeek, int(d))
	}
	return resp
}
