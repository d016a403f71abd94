package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected while building or running the
// engine.
//
// Runtime errors include:
//   - Unknown state: a condition or mutex list names a state nobody declared
//   - Op failure: an atomic op returned an error (logged, never fatal)
//   - Pool closed: work submitted after shutdown
//   - Invalid config: a scene or handler that cannot be scheduled
type RuntimeError struct {
	Code    RuntimeErrorCode
	Message string

	// Scene identifies the affected scene, if any.
	Scene string

	// TaskID identifies the affected task, if any.
	TaskID string

	Details map[string]string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	ErrCodeUnknownState  RuntimeErrorCode = "UNKNOWN_STATE"
	ErrCodeOpFailed      RuntimeErrorCode = "OP_FAILED"
	ErrCodePoolClosed    RuntimeErrorCode = "POOL_CLOSED"
	ErrCodeInvalidConfig RuntimeErrorCode = "INVALID_CONFIG"
)

// ErrAlreadyStarted is returned by RunAsync on a task that was started before.
var ErrAlreadyStarted = errors.New("task already started")

func (e *RuntimeError) Error() string {
	switch {
	case e.Scene != "" && e.TaskID != "":
		return fmt.Sprintf("%s: %s (scene=%s, task=%s)", e.Code, e.Message, e.Scene, e.TaskID)
	case e.Scene != "":
		return fmt.Sprintf("%s: %s (scene=%s)", e.Code, e.Message, e.Scene)
	case e.TaskID != "":
		return fmt.Sprintf("%s: %s (task=%s)", e.Code, e.Message, e.TaskID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsUnknownStateError reports whether err is an unknown-state error.
// Uses errors.As to handle wrapped errors.
func IsUnknownStateError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeUnknownState
	}
	return false
}

// IsPoolClosed reports whether err means the executor was shut down.
func IsPoolClosed(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodePoolClosed
	}
	return false
}

// NewUnknownStateError reports a reference to an undeclared state.
func NewUnknownStateError(scene, stateName, where string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeUnknownState,
		Message: fmt.Sprintf("state %q is not declared", stateName),
		Scene:   scene,
		Details: map[string]string{
			"state": stateName,
			"where": where,
		},
	}
}

// NewOpError wraps an op failure inside a task.
func NewOpError(taskID, opName string, err error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeOpFailed,
		Message: fmt.Sprintf("op %s: %v", opName, err),
		TaskID:  taskID,
		Details: map[string]string{"op": opName},
	}
}

// NewInvalidConfigError reports a scene that cannot be scheduled.
func NewInvalidConfigError(scene, message string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeInvalidConfig,
		Message: message,
		Scene:   scene,
	}
}

// ErrPoolClosed is returned when work is submitted to a shut-down executor.
var ErrPoolClosed = &RuntimeError{
	Code:    ErrCodePoolClosed,
	Message: "executor is shut down",
}
