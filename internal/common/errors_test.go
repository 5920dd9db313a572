package common

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		httpCode int
		grpcCode codes.Code
	}{
		{"unsupported", NewAppError(CodeUnsupportedType, "Unsupported file type: .docx", ErrUnsupportedType), http.StatusBadRequest, codes.InvalidArgument},
		{"empty", NewAppError(CodeEmptyExtraction, "empty", ErrEmptyExtraction), http.StatusBadRequest, codes.InvalidArgument},
		{"ocr", NewAppError(CodeOCRFailure, "ocr", ErrOCRFailure), http.StatusInternalServerError, codes.Internal},
		{"model wrapped", fmt.Errorf("compare: %w", NewAppError(CodeModelInvocation, "m", ErrModelInvocation)), http.StatusInternalServerError, codes.Internal},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, codes.Internal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatus(tt.err); got != tt.httpCode {
				t.Errorf("HTTPStatus = %d, want %d", got, tt.httpCode)
			}
			if got := GRPCCode(tt.err); got != tt.grpcCode {
				t.Errorf("GRPCCode = %v, want %v", got, tt.grpcCode)
			}
		})
	}
}

func TestPublicMessage(t *testing.T) {
	err := fmt.Errorf("wrap: %w", NewAppError(CodeUnsupportedType, "Unsupported file type: .docx", ErrUnsupportedType))
	if got := PublicMessage(err); got != "Unsupported file type: .docx" {
		t.Errorf("PublicMessage = %q", got)
	}
	if got := PublicMessage(errors.New("raw")); got != "An unexpected error occurred." {
		t.Errorf("PublicMessage(raw) = %q", got)
	}
	st, _ := status.FromError(ToGRPCError(err))
	if st.Code() != codes.InvalidArgument || st.Message() != "Unsupported file type: .docx" {
		t.Errorf("ToGRPCError = %v %q", st.Code(), st.Message())
	}
}
