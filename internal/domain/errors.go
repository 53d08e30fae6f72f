// Package domain provides the deploy hook's core types and its error taxonomy.
package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind identifies why a deployment was refused or failed.
type ErrorKind string

const (
	// ErrorKindValidation indicates the notification payload is missing or malformed.
	ErrorKindValidation ErrorKind = "validation_error"

	// ErrorKindProjectNotFound indicates no project is configured for the repository.
	ErrorKindProjectNotFound ErrorKind = "project_not_found"

	// ErrorKindBranchMismatch indicates the notification ref is not the configured branch.
	ErrorKindBranchMismatch ErrorKind = "branch_mismatch"

	// ErrorKindBuildNotSuccessful indicates the CI build did not succeed.
	ErrorKindBuildNotSuccessful ErrorKind = "build_not_successful"

	// ErrorKindScriptNotFound indicates the configured script path does not exist.
	ErrorKindScriptNotFound ErrorKind = "script_not_found"

	// ErrorKindScriptNotExecutable indicates the script exists but may not be executed.
	ErrorKindScriptNotExecutable ErrorKind = "script_not_executable"

	// ErrorKindExecutionFailed indicates the script was started but did not exit cleanly.
	ErrorKindExecutionFailed ErrorKind = "execution_failed"

	// ErrorKindDeployInProgress indicates another deployment of the project is running.
	ErrorKindDeployInProgress ErrorKind = "deploy_in_progress"

	// ErrorKindUnauthorized indicates the webhook token was missing or invalid.
	ErrorKindUnauthorized ErrorKind = "unauthorized"
)

// Canonical failure messages reported to webhook callers.
const (
	MessageBranchMismatch      = "matching branch not found"
	MessageBuildNotSuccessful  = "build not succeeded"
	MessageScriptNotFound      = "script not found"
	MessageScriptNotExecutable = "script not executable"
	MessageExecutionFailed     = "script execution failed"
	MessageDeployInProgress    = "deployment already in progress"
)

// DeployError is the single failure value produced by the deploy pipeline.
// Exactly one DeployError is returned per failed notification.
type DeployError struct {
	// Kind is the failure category
	Kind ErrorKind `json:"code"`

	// Message is the caller-facing reason
	Message string `json:"message"`

	// Stage is the pipeline stage that produced the failure
	Stage Stage `json:"-"`

	// Err is the underlying cause, if any. It is logged but never sent to callers.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *DeployError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *DeployError) Unwrap() error {
	return e.Err
}

// HTTPStatusCode returns the HTTP status code for this error.
// Every pipeline failure is a client error.
func (e *DeployError) HTTPStatusCode() int {
	switch e.Kind {
	case ErrorKindUnauthorized:
		return http.StatusUnauthorized
	case ErrorKindDeployInProgress:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

// ExecutionAttempted reports whether the script was started before the failure.
func (e *DeployError) ExecutionAttempted() bool {
	return e.Kind == ErrorKindExecutionFailed
}

// NewDeployError creates a new deploy error.
func NewDeployError(kind ErrorKind, message string) *DeployError {
	return &DeployError{
		Kind:    kind,
		Message: message,
	}
}

// WithStage records the pipeline stage that failed.
func (e *DeployError) WithStage(stage Stage) *DeployError {
	e.Stage = stage
	return e
}

// WithCause attaches the underlying error.
func (e *DeployError) WithCause(err error) *DeployError {
	e.Err = err
	return e
}

// KindOf returns the kind of err if it is (or wraps) a DeployError.
func KindOf(err error) (ErrorKind, bool) {
	var de *DeployError
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return "", false
}

// IsKind reports whether err is a DeployError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// Convenience constructors, one per failure kind

// ErrValidation creates a payload validation error.
func ErrValidation(detail string) *DeployError {
	return NewDeployError(ErrorKindValidation, "invalid payload: "+detail).
		WithStage(StageValidating)
}

// ErrProjectNotFound creates a project lookup error.
func ErrProjectNotFound(name string) *DeployError {
	return NewDeployError(ErrorKindProjectNotFound, "no project found for name: "+name).
		WithStage(StageResolving)
}

// ErrBranchMismatch creates a branch mismatch error.
func ErrBranchMismatch() *DeployError {
	return NewDeployError(ErrorKindBranchMismatch, MessageBranchMismatch).
		WithStage(StageResolving)
}

// ErrBuildNotSuccessful creates a build status error.
func ErrBuildNotSuccessful() *DeployError {
	return NewDeployError(ErrorKindBuildNotSuccessful, MessageBuildNotSuccessful).
		WithStage(StageResolving)
}

// ErrScriptNotFound creates a missing script error.
func ErrScriptNotFound(cause error) *DeployError {
	return NewDeployError(ErrorKindScriptNotFound, MessageScriptNotFound).
		WithStage(StageCheckingExistence).
		WithCause(cause)
}

// ErrScriptNotExecutable creates a script permission error.
func ErrScriptNotExecutable(cause error) *DeployError {
	return NewDeployError(ErrorKindScriptNotExecutable, MessageScriptNotExecutable).
		WithStage(StageCheckingExecutable).
		WithCause(cause)
}

// ErrExecutionFailed creates a script execution error.
func ErrExecutionFailed(cause error) *DeployError {
	return NewDeployError(ErrorKindExecutionFailed, MessageExecutionFailed).
		WithStage(StageExecuting).
		WithCause(cause)
}

// ErrDeployInProgress creates a concurrent deployment error.
func ErrDeployInProgress() *DeployError {
	return NewDeployError(ErrorKindDeployInProgress, MessageDeployInProgress).
		WithStage(StageExecuting)
}

// ErrUnauthorized creates an authentication error.
func ErrUnauthorized(message string) *DeployError {
	return NewDeployError(ErrorKindUnauthorized, message)
}
