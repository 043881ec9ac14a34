package dto

import "time"

// CreateRestoreRequest represents the restore creation request
type CreateRestoreRequest struct {
	RunID      string   `json:"run_id" binding:"required"`
	Type       string   `json:"type" binding:"required,oneof=full partial selective test"`
	TargetPath string   `json:"target_path"`
	Patterns   []string `json:"patterns,omitempty"`
	Paths      []string `json:"paths,omitempty"`
}

// RestoreResponse represents a restore
type RestoreResponse struct {
	ID            string           `json:"id"`
	RunID         string           `json:"run_id"`
	Type          string           `json:"type"`
	TargetPath    string           `json:"target_path"`
	Status        string           `json:"status"`
	RestoredFiles int              `json:"restored_files"`
	Sandbox       bool             `json:"sandbox"`
	StartedAt     time.Time        `json:"started_at"`
	CompletedAt   *time.Time       `json:"completed_at,omitempty"`
	Errors        []BackupErrorDTO `json:"errors"`
}

// RestoreListResponse represents a list of restores
type RestoreListResponse struct {
	Items      []RestoreResponse `json:"items"`
	Pagination PaginationInfo    `json:"pagination"`
}
