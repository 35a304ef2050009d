// Package models defines the public domain models and error types for the
// workflow graph: nodes, connections, execution results, and the sentinel
// and wrapped errors the rest of the engine returns.
package models

import "errors"

// Common error types for the workflow engine.
var (
	// Workflow errors
	ErrInvalidWorkflowID = errors.New("invalid workflow ID")
	ErrInvalidWorkflow   = errors.New("invalid workflow")
	ErrCyclicDependency  = errors.New("cyclic dependency detected")
	ErrOrphanedNodes     = errors.New("orphaned nodes detected")
	ErrInvalidNodeType   = errors.New("invalid node type")
	ErrNodeNotFound      = errors.New("node not found")
	ErrDuplicateNode     = errors.New("duplicate node name")
	ErrConnectionInvalid = errors.New("invalid connection")
	ErrNoStartNodes      = errors.New("no valid start nodes found")

	// Execution errors
	ErrInvalidExecutionID  = errors.New("invalid execution ID")
	ErrExecutionNotFound   = errors.New("execution not found")
	ErrExecutionFailed     = errors.New("execution failed")
	ErrExecutionCancelled  = errors.New("execution cancelled")
	ErrExecutionTimeout    = errors.New("execution timeout")
	ErrNodeExecutionFailed = errors.New("node execution failed")
	ErrInvalidInput        = errors.New("invalid input")
	ErrInvalidOutput       = errors.New("invalid output")

	// Node type dispatch errors
	ErrNodeTypeNotFound = errors.New("node type not found")
	ErrExecutorFailed   = errors.New("executor failed")
	ErrInvalidConfig    = errors.New("invalid configuration")

	// Validation errors
	ErrValidationFailed = errors.New("validation failed")
	ErrRequired         = errors.New("required field is missing")
)

// WorkflowError represents an error that occurred during a workflow-level
// operation: building, validating, or loading a graph.
type WorkflowError struct {
	WorkflowID string
	Operation  string
	Err        error
}

func (e *WorkflowError) Error() string {
	return "workflow " + e.WorkflowID + " " + e.Operation + ": " + e.Err.Error()
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

// ExecutionError is a terminal node failure carried on NodeResult.Error
// (the sub-workflow invoker sets it when a child run fails); the executor
// ends the run when it sees one. Failures the executor detects itself
// (stopWorkflow, exhausted retries, no valid start nodes) are reported as a
// RunReportError on the RunReport, not as an ExecutionError.
type ExecutionError struct {
	ExecutionID string
	NodeName    string
	Err         error
}

func (e *ExecutionError) Error() string {
	msg := "execution " + e.ExecutionID
	if e.NodeName != "" {
		msg += " node " + e.NodeName
	}
	msg += ": " + e.Err.Error()
	return msg
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// ValidationError represents a validation error with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidationErrors represents multiple validation errors. Error() reports
// only the first one, matching how Workflow.Validate short-circuits on the
// first structural problem it finds.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	return e[0].Error()
}
