package dto

import "time"

// TestResultDTO represents one named test stage result
type TestResultDTO struct {
	Name       string  `json:"name"`
	Outcome    string  `json:"outcome"`
	DurationMS int64   `json:"duration_ms"`
	Details    string  `json:"details,omitempty"`
	Error      *string `json:"error,omitempty"`
}

// TestFailureDTO represents a failed stage with remediation advice
type TestFailureDTO struct {
	Name         string  `json:"name"`
	Error        string  `json:"error"`
	Severity     string  `json:"severity"`
	SuggestedFix *string `json:"suggested_fix,omitempty"`
}

// TestResponse represents a backup test
type TestResponse struct {
	ID          string           `json:"id"`
	RunID       string           `json:"run_id"`
	Type        string           `json:"type"`
	Status      string           `json:"status"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	Results     []TestResultDTO  `json:"results"`
	Failures    []TestFailureDTO `json:"failures"`
}

// TestListResponse represents a list of tests
type TestListResponse struct {
	Items      []TestResponse `json:"items"`
	Pagination PaginationInfo `json:"pagination"`
}
