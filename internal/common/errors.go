package common

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Machine-readable error codes carried in failure envelopes.
const (
	CodeInvalidInput       = "INVALID_INPUT"
	CodeInvalidImageFormat = "INVALID_IMAGE_FORMAT"
	CodeAcquisitionFailure = "ACQUISITION_FAILURE"
	CodeExtractionFailure  = "EXTRACTION_FAILURE"
	CodeConfiguration      = "CONFIGURATION_FAILURE"
	CodeProcessing         = "PROCESSING_ERROR"
	CodeBatchCancelled     = "BATCH_CANCELLED"
	CodeNotFound           = "NOT_FOUND"
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
	ErrNotFound          = errors.New("resource not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInternal          = errors.New("internal error")
	ErrDatabase          = errors.New("database error")
	ErrAcquisition       = errors.New("image acquisition failed")
	ErrExtraction        = errors.New("extraction failed")
	ErrUnavailable       = errors.New("collaborator unavailable")
	ErrCancelled         = errors.New("batch cancelled")
	ErrUnsupportedFormat = errors.New("unsupported image format")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

func InvalidInput(message string) *AppError {
	return NewAppError(CodeInvalidInput, message, ErrInvalidInput)
}

func InvalidImage(message string) *AppError {
	return NewAppError(CodeInvalidImageFormat, message, ErrUnsupportedFormat)
}

func AcquisitionFailure(message string, cause error) *AppError {
	if cause == nil {
		cause = ErrAcquisition
	}
	return NewAppError(CodeAcquisitionFailure, message, cause)
}

func ExtractionFailure(message string, cause error) *AppError {
	if cause == nil {
		cause = ErrExtraction
	}
	return NewAppError(CodeExtractionFailure, message, cause)
}

func ConfigurationFailure(message string, cause error) *AppError {
	if cause == nil {
		cause = ErrUnavailable
	}
	return NewAppError(CodeConfiguration, message, cause)
}

func NotFound(message string) *AppError {
	return NewAppError(CodeNotFound, message, ErrNotFound)
}

// CodeOf returns the AppError code found in err's chain, or PROCESSING_ERROR.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeProcessing
}

// MessageOf returns the human-readable part of err without the code prefix.
func MessageOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		if appErr.Cause != nil && !isSentinel(appErr.Cause) {
			return fmt.Sprintf("%s: %v", appErr.Message, appErr.Cause)
		}
		return appErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

func isSentinel(err error) bool {
	switch err {
	case ErrNotFound, ErrInvalidInput, ErrInternal, ErrDatabase, ErrAcquisition,
		ErrExtraction, ErrUnavailable, ErrCancelled, ErrUnsupportedFormat:
		return true
	}
	return false
}

// ToStatus maps err onto a gRPC status error.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	msg := MessageOf(err)
	switch CodeOf(err) {
	case CodeInvalidInput, CodeInvalidImageFormat:
		return status.Error(codes.InvalidArgument, msg)
	case CodeNotFound:
		return status.Error(codes.NotFound, msg)
	case CodeConfiguration:
		return status.Error(codes.Unavailable, msg)
	case CodeAcquisitionFailure:
		return status.Error(codes.FailedPrecondition, msg)
	case CodeBatchCancelled:
		return status.Error(codes.Canceled, msg)
	default:
		return status.Error(codes.Internal, msg)
	}
}

// gRPC error helpers
func InvalidArgumentError(message string) error {
	return status.Error(codes.InvalidArgument, message)
}

func InvalidArgumentErrorf(format string, args ...interface{}) error {
	return InvalidArgumentError(fmt.Sprintf(format, args...))
}
