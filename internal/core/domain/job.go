package domain

import "time"

type BackupType string

const (
	BackupTypeFull         BackupType = "full"
	BackupTypeIncremental  BackupType = "incremental"
	BackupTypeDifferential BackupType = "differential"
	BackupTypeContinuous   BackupType = "continuous"
)

type JobStatus string

const (
	JobStatusActive   JobStatus = "active"
	JobStatusPaused   JobStatus = "paused"
	JobStatusDisabled JobStatus = "disabled"
	JobStatusError    JobStatus = "error"
)

type SourceType string

const (
	SourceTypeDirectory SourceType = "directory"
	SourceTypeDatabase  SourceType = "database"
	SourceTypeRemote    SourceType = "remote"
)

type DestinationType string

const (
	DestinationTypeLocal  DestinationType = "local"
	DestinationTypeRemote DestinationType = "remote"
)

type ScheduleUnit string

const (
	ScheduleUnitMinutes ScheduleUnit = "minutes"
	ScheduleUnitHours   ScheduleUnit = "hours"
	ScheduleUnitDays    ScheduleUnit = "days"
	ScheduleUnitWeeks   ScheduleUnit = "weeks"
	ScheduleUnitMonths  ScheduleUnit = "months"
)

type RetentionPolicy string

const (
	RetentionPolicyTime   RetentionPolicy = "time"
	RetentionPolicyCount  RetentionPolicy = "count"
	RetentionPolicySize   RetentionPolicy = "size"
	RetentionPolicyHybrid RetentionPolicy = "hybrid"
)

type EncryptionAlgorithm string

const (
	EncryptionAlgorithmNone     EncryptionAlgorithm = "none"
	EncryptionAlgorithmAESGCM   EncryptionAlgorithm = "aes256-gcm"
	EncryptionAlgorithmChaCha20 EncryptionAlgorithm = "chacha20-poly1305"
)

type CompressionAlgorithm string

const (
	CompressionAlgorithmNone CompressionAlgorithm = "none"
	CompressionAlgorithmGzip CompressionAlgorithm = "gzip"
)

// SourceConfig describes what gets backed up. Include/Exclude hold
// path/filepath.Match patterns applied to paths relative to Path.
type SourceConfig struct {
	Type        SourceType `json:"type"`
	Path        string     `json:"path"`
	Credentials *string    `json:"credentials,omitempty"`
	Include     []string   `json:"include,omitempty"`
	Exclude     []string   `json:"exclude,omitempty"`
}

// DestinationConfig describes where archives land.
type DestinationConfig struct {
	Type        DestinationType `json:"type"`
	Path        string          `json:"path"`
	Credentials *string         `json:"credentials,omitempty"`
	Encryption  bool            `json:"encryption"`
	Compression bool            `json:"compression"`
}

// ScheduleConfig drives nextRunAt computation. Interval/Unit is the primary
// cadence; TimeOfDay ("15:04") and DaysOfWeek narrow day-or-longer cadences.
type ScheduleConfig struct {
	Interval   int            `json:"interval"`
	Unit       ScheduleUnit   `json:"unit"`
	TimeOfDay  *string        `json:"time_of_day,omitempty"`
	DaysOfWeek []time.Weekday `json:"days_of_week,omitempty"`
	Enabled    bool           `json:"enabled"`
}

type RetentionConfig struct {
	Policy      RetentionPolicy `json:"policy"`
	Days        int             `json:"days"`
	Weeks       int             `json:"weeks"`
	Months      int             `json:"months"`
	Years       int             `json:"years"`
	MaxVersions int             `json:"max_versions"`
}

type EncryptionConfig struct {
	Algorithm EncryptionAlgorithm `json:"algorithm"`
	KeySize   int                 `json:"key_size"`
	KeyFile   *string             `json:"key_file,omitempty"`
}

type CompressionConfig struct {
	Algorithm CompressionAlgorithm `json:"algorithm"`
	Level     int                  `json:"level"`
}

type BackupJob struct {
	ID          string            `db:"id"`
	Name        string            `db:"name"`
	Type        BackupType        `db:"type"`
	Source      SourceConfig      `db:"source"`
	Destination DestinationConfig `db:"destination"`
	Schedule    ScheduleConfig    `db:"schedule"`
	Retention   RetentionConfig   `db:"retention"`
	Encryption  EncryptionConfig  `db:"encryption"`
	Compression CompressionConfig `db:"compression"`
	Status      JobStatus         `db:"status"`
	// Labels is the only open-ended extension point. Known keys:
	// "owner", "cost-centre", "environment".
	Labels    map[string]string `db:"labels"`
	LastRunAt *time.Time        `db:"last_run_at"`
	NextRunAt *time.Time        `db:"next_run_at"`
	CreatedAt time.Time         `db:"created_at"`
	UpdatedAt time.Time         `db:"updated_at"`
}

func NewBackupJob(id, name string, backupType BackupType) *BackupJob {
	now := time.Now()
	return &BackupJob{
		ID:        id,
		Name:      name,
		Type:      backupType,
		Status:    JobStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (j *BackupJob) IsRunnable() bool {
	return j.Status == JobStatusActive
}

// NextRunAfter computes the next trigger time from t using calendar-aware
// addition, so month and week cadences track real month lengths.
func (s ScheduleConfig) NextRunAfter(t time.Time) time.Time {
	switch s.Unit {
	case ScheduleUnitMinutes:
		return t.Add(time.Duration(s.Interval) * time.Minute)
	case ScheduleUnitHours:
		return t.Add(time.Duration(s.Interval) * time.Hour)
	case ScheduleUnitDays:
		return t.AddDate(0, 0, s.Interval)
	case ScheduleUnitWeeks:
		return t.AddDate(0, 0, s.Interval*7)
	case ScheduleUnitMonths:
		return t.AddDate(0, s.Interval, 0)
	default:
		return t.AddDate(0, 0, s.Interval)
	}
}
