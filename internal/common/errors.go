package common

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrDatabase     = errors.New("database error")
	ErrValidation   = errors.New("validation failed")
)

// Capture pipeline error kinds. All of them are recoverable: the caller
// surfaces a notice and returns to an interactive state.
var (
	ErrCameraUnavailable  = errors.New("camera unavailable")
	ErrNoFrameAvailable   = errors.New("no frame available")
	ErrRecognitionFailure = errors.New("recognition failed")
	ErrPublishFailure     = errors.New("publish failed")
)

// NewAppError builds an AppError.
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Kind wraps cause under one of the sentinel kinds so errors.Is(err, kind)
// holds while the cause message is kept for logs.
func Kind(kind, cause error) error {
	if cause == nil {
		return kind
	}
	if errors.Is(cause, kind) {
		return cause
	}
	return fmt.Errorf("%w: %v", kind, cause)
}

// InvalidArgumentError returns a gRPC InvalidArgument status error.
func InvalidArgumentError(message string) error {
	return status.Error(codes.InvalidArgument, message)
}

// ToStatus maps an application error onto a gRPC status error.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, ErrCameraUnavailable), errors.Is(err, ErrPublishFailure):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, ErrNoFrameAvailable):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
