// Package uploaderror defines the error taxonomy of upload sessions and classifies
// arbitrary failures into it.
package uploaderror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Code is an error code reported by the upload backend or produced by the client.
type Code string

const (
	CodeBadRequest          Code = "BAD_REQUEST"
	CodeNotFound            Code = "NOT_FOUND"
	CodeForbidden           Code = "FORBIDDEN"
	CodeInternalServerError Code = "INTERNAL_SERVER_ERROR"
	CodeInternalClientError Code = "INTERNAL_CLIENT_ERROR"
	CodeTooLarge            Code = "TOO_LARGE"
	CodeTooSmall            Code = "TOO_SMALL"
	CodeTooManyFiles        Code = "TOO_MANY_FILES"
	CodeKeyTooLong          Code = "KEY_TOO_LONG"
	CodeURLGenerationFailed Code = "URL_GENERATION_FAILED"
	CodeUploadFailed        Code = "UPLOAD_FAILED"
	CodeMissingEnv          Code = "MISSING_ENV"
	CodeInvalidServerConfig Code = "INVALID_SERVER_CONFIG"
	CodeFileLimitExceeded   Code = "FILE_LIMIT_EXCEEDED"
)

const fatalClientMessage = "Something went wrong. Please report this to UploadThing."

var statusByCode = map[Code]int{
	CodeBadRequest:          http.StatusBadRequest,
	CodeNotFound:            http.StatusNotFound,
	CodeForbidden:           http.StatusForbidden,
	CodeInternalServerError: http.StatusInternalServerError,
	CodeInternalClientError: http.StatusInternalServerError,
	CodeTooLarge:            http.StatusRequestEntityTooLarge,
	CodeTooSmall:            http.StatusBadRequest,
	CodeTooManyFiles:        http.StatusBadRequest,
	CodeKeyTooLong:          http.StatusBadRequest,
	CodeURLGenerationFailed: http.StatusInternalServerError,
	CodeUploadFailed:        http.StatusInternalServerError,
	CodeMissingEnv:          http.StatusInternalServerError,
	CodeInvalidServerConfig: http.StatusInternalServerError,
	CodeFileLimitExceeded:   http.StatusInternalServerError,
}

// StatusForCode returns the HTTP status the backend uses for code.
func StatusForCode(code Code) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// CodeForStatus maps an HTTP status to the closest error code.
func CodeForStatus(status int) Code {
	switch {
	case status == http.StatusNotFound:
		return CodeNotFound
	case status == http.StatusForbidden || status == http.StatusUnauthorized:
		return CodeForbidden
	case status == http.StatusRequestEntityTooLarge:
		return CodeTooLarge
	case status >= 400 && status < 500:
		return CodeBadRequest
	default:
		return CodeInternalServerError
	}
}

// UploadThingError is the structured error shape of the upload protocol.
// Data carries the optional server-provided payload (validation details, handler errors).
type UploadThingError struct {
	Code    Code
	Message string
	Data    json.RawMessage
	Status  int
	Cause   error
}

// New creates an UploadThingError for code.
func New(code Code, message string) *UploadThingError {
	return &UploadThingError{
		Code:    code,
		Message: message,
		Status:  StatusForCode(code),
	}
}

// NewFatalClientError wraps an unrecognised failure.
func NewFatalClientError(cause error) *UploadThingError {
	return &UploadThingError{
		Code:    CodeInternalClientError,
		Message: fatalClientMessage,
		Status:  StatusForCode(CodeInternalClientError),
		Cause:   cause,
	}
}

func (e *UploadThingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *UploadThingError) Unwrap() error {
	return e.Cause
}

type errorBody struct {
	Code    Code            `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// FromResponseBody builds an error from a non-2xx backend response.
// Bodies that are not the protocol's JSON error shape are kept as the message.
func FromResponseBody(status int, body []byte) *UploadThingError {
	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Code != "" {
		return &UploadThingError{
			Code:    parsed.Code,
			Message: parsed.Message,
			Data:    parsed.Data,
			Status:  status,
		}
	}

	message := strings.TrimSpace(string(body))
	if message == "" {
		message = http.StatusText(status)
	}
	return &UploadThingError{
		Code:    CodeForStatus(status),
		Message: fmt.Sprintf("HTTP %d: %s", status, message),
		Status:  status,
	}
}

// UploadAbortedError signals that the caller cancelled the upload.
type UploadAbortedError struct {
	Cause error
}

// NewAbortedError wraps cause (usually ctx.Err()) as an abort.
func NewAbortedError(cause error) *UploadAbortedError {
	return &UploadAbortedError{Cause: cause}
}

func (e *UploadAbortedError) Error() string {
	if e.Cause != nil {
		return "upload aborted: " + e.Cause.Error()
	}
	return "upload aborted"
}

func (e *UploadAbortedError) Unwrap() error {
	return e.Cause
}

// IsAborted reports whether err is abort-classified.
func IsAborted(err error) bool {
	var aborted *UploadAbortedError
	return errors.As(err, &aborted) || errors.Is(err, context.Canceled)
}
