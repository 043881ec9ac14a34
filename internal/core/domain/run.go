package domain

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

type ErrorType string

const (
	ErrorTypePermissionDenied ErrorType = "permission_denied"
	ErrorTypeFileNotFound     ErrorType = "file_not_found"
	ErrorTypeDiskFull         ErrorType = "disk_full"
	ErrorTypeNetwork          ErrorType = "network_error"
	ErrorTypeEncryption       ErrorType = "encryption_error"
	ErrorTypeCompression      ErrorType = "compression_error"
	ErrorTypeIntegrity        ErrorType = "integrity_error"
	ErrorTypeOther            ErrorType = "other"
)

type ErrorSeverity string

const (
	SeverityLow      ErrorSeverity = "low"
	SeverityMedium   ErrorSeverity = "medium"
	SeverityHigh     ErrorSeverity = "high"
	SeverityCritical ErrorSeverity = "critical"
)

// BackupError is an execution error recorded on a run or restore.
// Append-only: entries are never rewritten, only marked resolved.
type BackupError struct {
	Type       ErrorType     `json:"type"`
	Severity   ErrorSeverity `json:"severity"`
	Message    string        `json:"message"`
	FilePath   *string       `json:"file_path,omitempty"`
	Timestamp  time.Time     `json:"timestamp"`
	Resolved   bool          `json:"resolved"`
	Resolution *string       `json:"resolution,omitempty"`
}

func NewBackupError(errType ErrorType, severity ErrorSeverity, message string) BackupError {
	return BackupError{
		Type:      errType,
		Severity:  severity,
		Message:   message,
		Timestamp: time.Now(),
	}
}

func (e ErrorSeverity) IsFatal() bool {
	return e == SeverityHigh || e == SeverityCritical
}

// BackupRun is one execution attempt of a job. The run references its job;
// the job never owns its runs. Once a run reaches a terminal status its
// fields are read-only except for the test back-reference list.
type BackupRun struct {
	ID             string        `db:"id"`
	JobID          string        `db:"job_id"`
	Status         RunStatus     `db:"status"`
	StartedAt      time.Time     `db:"started_at"`
	CompletedAt    *time.Time    `db:"completed_at"`
	Duration       time.Duration `db:"duration"`
	Size           int64         `db:"size"`
	CompressedSize int64         `db:"compressed_size"`
	FileCount      int           `db:"file_count"`
	ArchivePath    string        `db:"archive_path"`
	ManifestPath   string        `db:"manifest_path"`
	Errors         []BackupError `db:"errors"`   // JSON column
	Warnings       []string      `db:"warnings"` // JSON column
	Checks         []IntegrityCheck
}

func NewBackupRun(id, jobID string) *BackupRun {
	return &BackupRun{
		ID:        id,
		JobID:     jobID,
		Status:    RunStatusRunning,
		StartedAt: time.Now(),
	}
}

func (r *BackupRun) AppendError(e BackupError) {
	r.Errors = append(r.Errors, e)
}

func (r *BackupRun) AppendWarning(w string) {
	r.Warnings = append(r.Warnings, w)
}

func (r *BackupRun) Complete(size, compressedSize int64, fileCount int) {
	now := time.Now()
	r.CompletedAt = &now
	r.Duration = now.Sub(r.StartedAt)
	r.Size = size
	r.CompressedSize = compressedSize
	r.FileCount = fileCount
	r.Status = RunStatusCompleted
}

func (r *BackupRun) Fail() {
	now := time.Now()
	r.CompletedAt = &now
	r.Duration = now.Sub(r.StartedAt)
	r.Status = RunStatusFailed
}

func (r *BackupRun) Cancel() {
	now := time.Now()
	r.CompletedAt = &now
	r.Duration = now.Sub(r.StartedAt)
	r.Status = RunStatusCancelled
}

func (r *BackupRun) IsTerminal() bool {
	return r.Status == RunStatusCompleted || r.Status == RunStatusFailed || r.Status == RunStatusCancelled
}

// HasIntegrityIssue reports whether any attached check did not pass.
// A run in this state is completed but its payload cannot be trusted.
func (r *BackupRun) HasIntegrityIssue() bool {
	for _, c := range r.Checks {
		if c.Status == CheckStatusFailed || c.Status == CheckStatusError {
			return true
		}
	}
	return false
}
