package dto

import "time"

// BackupErrorDTO represents one recorded execution error
type BackupErrorDTO struct {
	Type       string    `json:"type"`
	Severity   string    `json:"severity"`
	Message    string    `json:"message"`
	FilePath   *string   `json:"file_path,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Resolved   bool      `json:"resolved"`
	Resolution *string   `json:"resolution,omitempty"`
}

// IntegrityCheckDTO represents a digest verification attached to a run
type IntegrityCheckDTO struct {
	ID         string     `json:"id"`
	Type       string     `json:"type"`
	Algorithm  string     `json:"algorithm"`
	Checksum   string     `json:"checksum,omitempty"`
	Status     string     `json:"status"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
	Error      *string    `json:"error,omitempty"`
}

// RunResponse represents a backup run
type RunResponse struct {
	ID             string              `json:"id"`
	JobID          string              `json:"job_id"`
	Status         string              `json:"status"`
	StartedAt      time.Time           `json:"started_at"`
	CompletedAt    *time.Time          `json:"completed_at,omitempty"`
	DurationMS     int64               `json:"duration_ms"`
	Size           int64               `json:"size"`
	CompressedSize int64               `json:"compressed_size"`
	FileCount      int                 `json:"file_count"`
	ArchivePath    string              `json:"archive_path,omitempty"`
	Errors         []BackupErrorDTO    `json:"errors"`
	Warnings       []string            `json:"warnings"`
	Checks         []IntegrityCheckDTO `json:"checks"`
}

// RunListResponse represents a list of runs
type RunListResponse struct {
	Items      []RunResponse  `json:"items"`
	Pagination PaginationInfo `json:"pagination"`
}
