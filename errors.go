package main

import "fmt"

// ConnectionError indicates the database pool could not be opened or reused.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to database: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// UnknownOperationError indicates a request for an operation not in the catalog.
type UnknownOperationError struct {
	Name string
}

func (e *UnknownOperationError) Error() string {
	return fmt.Sprintf("Tool not found: %s", e.Name)
}

// ForbiddenStatementError indicates query_database was given a statement it
// must not execute. Reason is set only by strict validation.
type ForbiddenStatementError struct {
	Reason string
}

func (e *ForbiddenStatementError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("Query rejected: %s", e.Reason)
	}
	return "Only SELECT queries are allowed for security."
}

// ExecutionError wraps a failure reported by the database for a permitted
// statement. The driver message is passed through unchanged.
type ExecutionError struct {
	Err error
}

func (e *ExecutionError) Error() string { return e.Err.Error() }

func (e *ExecutionError) Unwrap() error { return e.Err }

// InvalidArgumentError indicates a missing or mistyped operation argument.
type InvalidArgumentError struct {
	Name string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("Missing or invalid '%s' parameter", e.Name)
}
