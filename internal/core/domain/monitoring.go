package domain

import "time"

// BackupMonitoring is a computed aggregate snapshot over jobs, runs and
// tests. It is never persisted; dashboards query it fresh.
type BackupMonitoring struct {
	TotalJobs    int `json:"total_jobs"`
	ActiveJobs   int `json:"active_jobs"`
	PausedJobs   int `json:"paused_jobs"`
	DisabledJobs int `json:"disabled_jobs"`
	ErrorJobs    int `json:"error_jobs"`

	TotalRuns     int `json:"total_runs"`
	RunningRuns   int `json:"running_runs"`
	CompletedRuns int `json:"completed_runs"`
	FailedRuns    int `json:"failed_runs"`
	CancelledRuns int `json:"cancelled_runs"`

	TotalTests  int `json:"total_tests"`
	PassedTests int `json:"passed_tests"`
	FailedTests int `json:"failed_tests"`

	TotalSize      int64 `json:"total_size"`
	CompressedSize int64 `json:"compressed_size"`

	LastSuccessfulBackup *time.Time `json:"last_successful_backup,omitempty"`
	LastFailedBackup     *time.Time `json:"last_failed_backup,omitempty"`

	IntegrityCheckPassRate float64 `json:"integrity_check_pass_rate"`
	RestoreTestPassRate    float64 `json:"restore_test_pass_rate"`
	CompliancePercentage   float64 `json:"compliance_percentage"`

	LastUpdated time.Time `json:"last_updated"`
}
