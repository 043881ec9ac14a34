package domain

import "time"

type RestoreType string

const (
	RestoreTypeFull      RestoreType = "full"
	RestoreTypePartial   RestoreType = "partial"
	RestoreTypeSelective RestoreType = "selective"
	RestoreTypeTest      RestoreType = "test"
)

type RestoreStatus string

const (
	RestoreStatusPending   RestoreStatus = "pending"
	RestoreStatusRunning   RestoreStatus = "running"
	RestoreStatusCompleted RestoreStatus = "completed"
	RestoreStatusFailed    RestoreStatus = "failed"
	RestoreStatusCancelled RestoreStatus = "cancelled"
)

// BackupRestore materializes a run's content at a target location. Test
// restores go to a disposable sandbox and are excluded from restore history.
type BackupRestore struct {
	ID            string        `db:"id"`
	RunID         string        `db:"run_id"`
	Type          RestoreType   `db:"type"`
	TargetPath    string        `db:"target_path"`
	Status        RestoreStatus `db:"status"`
	RestoredFiles int           `db:"restored_files"`
	Sandbox       bool          `db:"sandbox"`
	StartedAt     time.Time     `db:"started_at"`
	CompletedAt   *time.Time    `db:"completed_at"`
	Errors        []BackupError `db:"errors"` // JSON column
}

func NewBackupRestore(id, runID string, restoreType RestoreType, targetPath string) *BackupRestore {
	return &BackupRestore{
		ID:         id,
		RunID:      runID,
		Type:       restoreType,
		TargetPath: targetPath,
		Status:     RestoreStatusRunning,
		Sandbox:    restoreType == RestoreTypeTest,
		StartedAt:  time.Now(),
	}
}

func (r *BackupRestore) AppendError(e BackupError) {
	r.Errors = append(r.Errors, e)
}

func (r *BackupRestore) Complete(restoredFiles int) {
	now := time.Now()
	r.CompletedAt = &now
	r.RestoredFiles = restoredFiles
	r.Status = RestoreStatusCompleted
}

func (r *BackupRestore) Fail() {
	now := time.Now()
	r.CompletedAt = &now
	r.Status = RestoreStatusFailed
}

func (r *BackupRestore) Cancel() {
	now := time.Now()
	r.CompletedAt = &now
	r.Status = RestoreStatusCancelled
}
