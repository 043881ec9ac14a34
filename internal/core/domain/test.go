package domain

import "time"

type TestType string

const (
	TestTypeIntegrity     TestType = "integrity"
	TestTypeRestore       TestType = "restore"
	TestTypePerformance   TestType = "performance"
	TestTypeCompatibility TestType = "compatibility"
	TestTypeSecurity      TestType = "security"
)

type TestStatus string

const (
	TestStatusPending TestStatus = "pending"
	TestStatusRunning TestStatus = "running"
	TestStatusPassed  TestStatus = "passed"
	TestStatusFailed  TestStatus = "failed"
	TestStatusTimeout TestStatus = "timeout"
)

type TestOutcome string

const (
	TestOutcomePass TestOutcome = "pass"
	TestOutcomeFail TestOutcome = "fail"
	TestOutcomeSkip TestOutcome = "skip"
)

type TestResult struct {
	Name     string        `json:"name"`
	Outcome  TestOutcome   `json:"outcome"`
	Duration time.Duration `json:"duration"`
	Details  string        `json:"details,omitempty"`
	Error    *string       `json:"error,omitempty"`
}

// TestFailure is derived from a failed TestResult, enriched with a severity
// estimate and a suggested fix where one can be inferred.
type TestFailure struct {
	Name         string        `json:"name"`
	Error        string        `json:"error"`
	Severity     ErrorSeverity `json:"severity"`
	SuggestedFix *string       `json:"suggested_fix,omitempty"`
}

// BackupTest is a post-hoc diagnostic against a completed run. It references
// the run and never mutates it.
type BackupTest struct {
	ID          string        `db:"id"`
	RunID       string        `db:"run_id"`
	Type        TestType      `db:"type"`
	Status      TestStatus    `db:"status"`
	StartedAt   time.Time     `db:"started_at"`
	CompletedAt *time.Time    `db:"completed_at"`
	Results     []TestResult  `db:"results"`  // JSON column
	Failures    []TestFailure `db:"failures"` // JSON column
}

func NewBackupTest(id, runID string, testType TestType) *BackupTest {
	return &BackupTest{
		ID:        id,
		RunID:     runID,
		Type:      testType,
		Status:    TestStatusRunning,
		StartedAt: time.Now(),
	}
}

func (t *BackupTest) AddResult(r TestResult) {
	t.Results = append(t.Results, r)
}

func (t *BackupTest) AddFailure(f TestFailure) {
	t.Failures = append(t.Failures, f)
}

// Finish derives the overall status: failed iff any result is a fail.
func (t *BackupTest) Finish() {
	now := time.Now()
	t.CompletedAt = &now
	t.Status = t.DeriveStatus()
}

// DeriveStatus recomputes the overall status from the result list. The stored
// status must always agree with this derivation.
func (t *BackupTest) DeriveStatus() TestStatus {
	for _, r := range t.Results {
		if r.Outcome == TestOutcomeFail {
			return TestStatusFailed
		}
	}
	return TestStatusPassed
}
