package common

import (
	"errors"
	"fmt"
	"net/http"

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

// Comparison pipeline errors. Wrap them in an AppError to attach a user-facing message.
var (
	ErrInvalidInput           = errors.New("invalid input")
	ErrUnsupportedType        = errors.New("unsupported file type")
	ErrOCRFailure             = errors.New("ocr failure")
	ErrPDFExtraction          = errors.New("pdf extraction failure")
	ErrEmptyExtraction        = errors.New("empty extraction")
	ErrModelInvocation        = errors.New("model invocation failure")
	ErrMalformedModelResponse = errors.New("malformed model response")
	ErrStorageWrite           = errors.New("storage write failure")
	ErrStorageRead            = errors.New("storage read failure")
)

// Error codes carried by AppError.Code.
const (
	CodeInvalidInput      = "INVALID_INPUT"
	CodeUnsupportedType   = "UNSUPPORTED_TYPE"
	CodeOCRFailure        = "OCR_FAILURE"
	CodePDFExtraction     = "PDF_EXTRACTION_FAILURE"
	CodeEmptyExtraction   = "EMPTY_EXTRACTION"
	CodeModelInvocation   = "MODEL_INVOCATION_FAILURE"
	CodeMalformedResponse = "MALFORMED_MODEL_RESPONSE"
	CodeStorageWrite      = "STORAGE_WRITE_FAILURE"
	CodeStorageRead       = "STORAGE_READ_FAILURE"
	CodeConfig            = "CONFIG_ERROR"
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// PublicMessage returns the short message meant for API callers.
func PublicMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return "An unexpected error occurred."
}

// HTTPStatus maps the error taxonomy onto an HTTP status code.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrUnsupportedType),
		errors.Is(err, ErrEmptyExtraction):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// GRPCCode maps the error taxonomy onto a gRPC status code.
func GRPCCode(err error) codes.Code {
	switch {
	case err == nil:
		return codes.OK
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrUnsupportedType),
		errors.Is(err, ErrEmptyExtraction):
		return codes.InvalidArgument
	default:
		return codes.Internal
	}
}

// ToGRPCError converts any pipeline error into a gRPC status error.
func ToGRPCError(err error) error {
	if err == nil {
		return nil
	}
	return status.Error(GRPCCode(err), PublicMessage(err))
}

// gRPC error helpers
func InvalidArgumentError(message string) error {
	return status.Error(codes.InvalidArgument, message)
}

func InternalError(message string) error {
	return status.Error(codes.Internal, message)
}

