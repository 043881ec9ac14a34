package domain

import "time"

type CheckType string

const (
	CheckTypeChecksum     CheckType = "checksum"
	CheckTypeSignature    CheckType = "signature"
	CheckTypeHash         CheckType = "hash"
	CheckTypeVerification CheckType = "verification"
)

type ChecksumAlgorithm string

const (
	AlgorithmMD5    ChecksumAlgorithm = "md5"
	AlgorithmSHA1   ChecksumAlgorithm = "sha1"
	AlgorithmSHA256 ChecksumAlgorithm = "sha256"
	AlgorithmSHA512 ChecksumAlgorithm = "sha512"
	AlgorithmBLAKE2 ChecksumAlgorithm = "blake2b"
	AlgorithmCRC32  ChecksumAlgorithm = "crc32"
)

type CheckStatus string

const (
	CheckStatusPending CheckStatus = "pending"
	CheckStatusRunning CheckStatus = "running"
	CheckStatusPassed  CheckStatus = "passed"
	CheckStatusFailed  CheckStatus = "failed"
	CheckStatusError   CheckStatus = "error"
)

// IntegrityCheck records a digest verification over a run's payload.
// The algorithm is stored so a later re-verification under a different
// policy stays auditable.
type IntegrityCheck struct {
	ID         string            `db:"id"`
	RunID      string            `db:"run_id"`
	Type       CheckType         `db:"type"`
	Algorithm  ChecksumAlgorithm `db:"algorithm"`
	Checksum   string            `db:"checksum"`
	Status     CheckStatus       `db:"status"`
	VerifiedAt *time.Time        `db:"verified_at"`
	Error      *string           `db:"error"`
}

func NewIntegrityCheck(id, runID string, checkType CheckType, algorithm ChecksumAlgorithm) *IntegrityCheck {
	return &IntegrityCheck{
		ID:        id,
		RunID:     runID,
		Type:      checkType,
		Algorithm: algorithm,
		Status:    CheckStatusPending,
	}
}

func (c *IntegrityCheck) Pass(checksum string) {
	now := time.Now()
	c.Checksum = checksum
	c.Status = CheckStatusPassed
	c.VerifiedAt = &now
}

func (c *IntegrityCheck) FailMismatch(got string) {
	now := time.Now()
	c.Status = CheckStatusFailed
	c.VerifiedAt = &now
	msg := "checksum mismatch: got " + got
	c.Error = &msg
}

func (c *IntegrityCheck) FailError(err error) {
	now := time.Now()
	c.Status = CheckStatusError
	c.VerifiedAt = &now
	msg := err.Error()
	c.Error = &msg
}
