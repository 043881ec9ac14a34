package dto

import "time"

// SourceDTO mirrors a job's source config on the wire
type SourceDTO struct {
	Type        string   `json:"type" binding:"required,oneof=directory database remote"`
	Path        string   `json:"path" binding:"required"`
	Credentials *string  `json:"credentials,omitempty"`
	Include     []string `json:"include,omitempty"`
	Exclude     []string `json:"exclude,omitempty"`
}

// DestinationDTO mirrors a job's destination config on the wire
type DestinationDTO struct {
	Type        string  `json:"type" binding:"required,oneof=local remote"`
	Path        string  `json:"path" binding:"required"`
	Credentials *string `json:"credentials,omitempty"`
	Encryption  bool    `json:"encryption"`
	Compression bool    `json:"compression"`
}

type ScheduleDTO struct {
	Interval   int     `json:"interval"`
	Unit       string  `json:"unit,omitempty"`
	TimeOfDay  *string `json:"time_of_day,omitempty"`
	DaysOfWeek []int   `json:"days_of_week,omitempty"`
	Enabled    bool    `json:"enabled"`
}

type RetentionDTO struct {
	Policy      string `json:"policy" binding:"required,oneof=time count size hybrid"`
	Days        int    `json:"days,omitempty"`
	Weeks       int    `json:"weeks,omitempty"`
	Months      int    `json:"months,omitempty"`
	Years       int    `json:"years,omitempty"`
	MaxVersions int    `json:"max_versions,omitempty"`
}

type EncryptionDTO struct {
	Algorithm string  `json:"algorithm,omitempty"`
	KeySize   int     `json:"key_size,omitempty"`
	KeyFile   *string `json:"key_file,omitempty"`
}

type CompressionDTO struct {
	Algorithm string `json:"algorithm,omitempty"`
	Level     int    `json:"level,omitempty"`
}

// CreateJobRequest represents the job creation request
type CreateJobRequest struct {
	Name        string            `json:"name" binding:"required"`
	Type        string            `json:"type" binding:"required,oneof=full incremental differential continuous"`
	Source      SourceDTO         `json:"source" binding:"required"`
	Destination DestinationDTO    `json:"destination" binding:"required"`
	Schedule    ScheduleDTO       `json:"schedule"`
	Retention   RetentionDTO      `json:"retention" binding:"required"`
	Encryption  *EncryptionDTO    `json:"encryption,omitempty"`
	Compression *CompressionDTO   `json:"compression,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
}

// JobResponse represents a backup job
type JobResponse struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Type        string            `json:"type"`
	Status      string            `json:"status"`
	Source      SourceDTO         `json:"source"`
	Destination DestinationDTO    `json:"destination"`
	Schedule    ScheduleDTO       `json:"schedule"`
	Retention   RetentionDTO      `json:"retention"`
	Encryption  EncryptionDTO     `json:"encryption"`
	Compression CompressionDTO    `json:"compression"`
	Labels      map[string]string `json:"labels,omitempty"`
	LastRunAt   *time.Time        `json:"last_run_at,omitempty"`
	NextRunAt   *time.Time        `json:"next_run_at,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// JobListResponse represents a list of jobs
type JobListResponse struct {
	Items      []JobResponse  `json:"items"`
	Pagination PaginationInfo `json:"pagination"`
}
