package error

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidReference           = errors.New("invalid variable reference")
	ErrBackendRead                = errors.New("backend read failure")
	ErrValidation                 = errors.New("invalid arguments")
	ErrSessionState               = errors.New("invalid session state")
	ErrUserCancelled              = errors.New("cancelled")
	ErrUnknownCommand             = errors.New("unknown command")
	ErrDebuggerIsClosed           = errors.New("debug is closed")
	ErrProgramIsRunningOptionFail = errors.New("The program is running")
	ErrNoExecutionContext         = errors.New("no execution context for thread")
	ErrBackendNotSupported        = errors.New("This backend is not supported")
)

// InvalidReferenceError 客户端使用了未知或者已经失效的引用
type InvalidReferenceError struct {
	Handle int
}

func NewInvalidReferenceError(handle int) *InvalidReferenceError {
	return &InvalidReferenceError{Handle: handle}
}

func (e *InvalidReferenceError) Error() string {
	return fmt.Sprintf("%s: %d", ErrInvalidReference, e.Handle)
}

func (e *InvalidReferenceError) Unwrap() error {
	return ErrInvalidReference
}

// BackendReadError 内存或者值无法读取
type BackendReadError struct {
	What string
	Err  error
}

func NewBackendReadError(what string, err error) *BackendReadError {
	return &BackendReadError{What: what, Err: err}
}

func (e *BackendReadError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrBackendRead, e.What, e.Err)
}

func (e *BackendReadError) Is(target error) bool {
	return target == ErrBackendRead
}

func (e *BackendReadError) Unwrap() error {
	return e.Err
}

// ValidationError 命令参数不合法，在进入处理函数之前拒绝
type ValidationError struct {
	Command string
	Field   string
	Message string
}

func NewValidationError(command string, field string, message string) *ValidationError {
	return &ValidationError{Command: command, Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s: %s", ErrValidation, e.Command, e.Message)
	}
	return fmt.Sprintf("%s: %s.%s: %s", ErrValidation, e.Command, e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// SessionStateError 命令在当前会话状态下不允许执行
type SessionStateError struct {
	Command string
	State   string
}

func NewSessionStateError(command string, state string) *SessionStateError {
	return &SessionStateError{Command: command, State: state}
}

func (e *SessionStateError) Error() string {
	return fmt.Sprintf("%s: %s not allowed while session is %s", ErrSessionState, e.Command, e.State)
}

func (e *SessionStateError) Unwrap() error {
	return ErrSessionState
}
