package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
)

// AppError is an error with an HTTP status and a stable machine-readable code.
type AppError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Meta    any    `json:"meta,omitempty"`
}

const (
	CodeBadRequest      = "BAD_REQUEST"
	CodeNotFound        = "NOT_FOUND"
	CodeKeyNotFound     = "KEY_NOT_FOUND"
	CodeInternalError   = "INTERNAL_ERROR"
	CodeInvalidJSON     = "INVALID_JSON"
	CodeMissingValue    = "MISSING_VALUE"
	CodeEntryTooLarge   = "ENTRY_TOO_LARGE"
	CodeRequestTooLarge = "REQUEST_TOO_LARGE"
	CodeTimeout         = "TIMEOUT"
	CodeCanceled        = "CANCELED"
	CodeUnavailable     = "UNAVAILABLE"
)

func (e *AppError) Error() string { return e.Code + ": " + e.Message }

// NewAppError creates an AppError.
func NewAppError(status int, code, message string, meta any) *AppError {
	return &AppError{
		Status:  status,
		Code:    code,
		Message: message,
		Meta:    meta,
	}
}

// BadRequest is a 400 with CodeBadRequest.
func BadRequest(msg string) *AppError {
	return NewAppError(http.StatusBadRequest, CodeBadRequest, msg, nil)
}

// NotFound is a 404 with CodeNotFound.
func NotFound(msg string) *AppError {
	return NewAppError(http.StatusNotFound, CodeNotFound, msg, nil)
}

// Internal is a 500 with CodeInternalError.
func Internal(msg string) *AppError {
	return NewAppError(http.StatusInternalServerError, CodeInternalError, msg, nil)
}

// InvalidJSON is a 400 with CodeInvalidJSON.
func InvalidJSON(msg string) *AppError {
	return NewAppError(http.StatusBadRequest, CodeInvalidJSON, msg, nil)
}

// FromStdError converts any error into an AppError.
func FromStdError(err error) *AppError {
	if err == nil {
		return nil
	}

	var app *AppError
	if errors.As(err, &app) {
		return app
	}
	switch {
	case errors.Is(err, context.Canceled):
		return NewAppError(http.StatusRequestTimeout, CodeCanceled, "request canceled", nil)
	case errors.Is(err, context.DeadlineExceeded):
		return NewAppError(http.StatusRequestTimeout, CodeTimeout, "request timeout", nil)
	default:
		return Internal("unexpected error")
	}
}

// Response envelopes: {"data": ...} on success, {"error": ...} on failure.
type successEnvelope struct {
	Data any `json:"data"`
}

type errorEnvelope struct {
	Err *AppError `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeSuccess(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, successEnvelope{Data: data})
}

func writeError(w http.ResponseWriter, err error) {
	app := FromStdError(err)
	writeJSON(w, app.Status, errorEnvelope{Err: app})
}
