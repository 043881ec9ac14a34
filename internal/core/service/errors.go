package service

import (
	"fmt"

	"github.com/rowan/backstop/internal/core/domain"
	"github.com/rowan/backstop/internal/core/policy"
)

// InvalidConfigError reports a job configuration that failed validation.
type InvalidConfigError struct {
	Field  string
	Reason string
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid job config: %s: %s", e.Field, e.Reason)
}

// JobNotRunnableError is returned when execution is requested for a job
// whose status does not permit it.
type JobNotRunnableError struct {
	JobID  string
	Status domain.JobStatus
}

func (e *JobNotRunnableError) Error() string {
	return fmt.Sprintf("job %s is not runnable (status %s)", e.JobID, e.Status)
}

// JobAlreadyRunningError is returned when a job already has an execution
// in flight.
type JobAlreadyRunningError struct {
	JobID string
}

func (e *JobAlreadyRunningError) Error() string {
	return fmt.Sprintf("job %s already has a run in progress", e.JobID)
}

// InvalidTransitionError reports a job status transition that is not allowed.
type InvalidTransitionError struct {
	JobID string
	From  domain.JobStatus
	To    domain.JobStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("job %s cannot transition from %s to %s", e.JobID, e.From, e.To)
}

// RunNotRestorableError is returned when a restore or test is requested
// against a run that did not complete.
type RunNotRestorableError struct {
	RunID  string
	Status domain.RunStatus
}

func (e *RunNotRestorableError) Error() string {
	return fmt.Sprintf("run %s is not restorable (status %s)", e.RunID, e.Status)
}

// NoMatchingFilesError is returned when a partial or selective restore has
// an empty selection or matches nothing in the manifest.
type NoMatchingFilesError struct {
	RunID    string
	Patterns []string
}

func (e *NoMatchingFilesError) Error() string {
	return fmt.Sprintf("no files in run %s match %v", e.RunID, e.Patterns)
}

// NotPermittedError is returned when the policy evaluator resolves an
// operation to anything other than allow.
type NotPermittedError struct {
	Subject   string
	Operation string
	Decision  policy.Decision
}

func (e *NotPermittedError) Error() string {
	return fmt.Sprintf("%s on %s not permitted: policy decision %s", e.Operation, e.Subject, e.Decision)
}
