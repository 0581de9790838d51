package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	ErrAutomationNotFound = errors.New("automation not found")
	ErrVersionNotFound    = errors.New("automation version not found")
	ErrTriggerNotFound    = errors.New("automation trigger not found")
	ErrRunNotFound        = errors.New("automation run not found")
	ErrJobNotFound        = errors.New("job not found")
	ErrStageNotFound      = errors.New("stage not found")
	ErrUserNotFound       = errors.New("user not found")

	// ErrStageNotInWorkflow is returned when moving a job to a stage of another workflow.
	ErrStageNotInWorkflow = errors.New("stage does not belong to the job workflow")
)

// AutomationError wraps automation-related errors with additional context.
type AutomationError struct {
	Op           string // Operation being performed (e.g., "GetByID", "CreateVersion")
	AutomationID string
	Err          error
}

func (e *AutomationError) Error() string {
	return fmt.Sprintf("%s operation failed for automation %s: %v", e.Op, e.AutomationID, e.Err)
}

func (e *AutomationError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for automation errors.
func (e *AutomationError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func NewAutomationError(op, automationID string, err error) *AutomationError {
	return &AutomationError{Op: op, AutomationID: automationID, Err: err}
}

// RunError wraps run-related errors with additional context.
type RunError struct {
	Op    string
	RunID string
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("%s operation failed for run %s: %v", e.Op, e.RunID, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

func (e *RunError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func NewRunError(op, runID string, err error) *RunError {
	return &RunError{Op: op, RunID: runID, Err: err}
}

func IsAutomationNotFound(err error) bool {
	return errors.Is(err, ErrAutomationNotFound)
}

func IsVersionNotFound(err error) bool {
	return errors.Is(err, ErrVersionNotFound)
}

func IsTriggerNotFound(err error) bool {
	return errors.Is(err, ErrTriggerNotFound)
}

func IsRunNotFound(err error) bool {
	return errors.Is(err, ErrRunNotFound)
}

// IsNotFound reports whether err is any of the not-found errors.
func IsNotFound(err error) bool {
	for _, target := range []error{
		ErrAutomationNotFound, ErrVersionNotFound, ErrTriggerNotFound, ErrRunNotFound,
		ErrJobNotFound, ErrStageNotFound, ErrUserNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}

	return false
}
