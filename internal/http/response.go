// Package http provides the JSON API over the visit service.
//
// This file implements a small builder for JSON responses so that handlers
// format bodies, headers and error payloads the same way.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"visitmap/internal/core"
	"visitmap/internal/importer"
)

// JSONResponse provides a fluent API for building JSON responses.
type JSONResponse struct {
	statusCode int
	headers    map[string]string
	data       any
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponse {
	return &JSONResponse{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponse) Status(code int) *JSONResponse {
	b.statusCode = code
	return b
}

// Header adds a response header.
func (b *JSONResponse) Header(name, value string) *JSONResponse {
	b.headers[name] = value
	return b
}

// Data sets the value encoded as the body.
func (b *JSONResponse) Data(v any) *JSONResponse {
	b.data = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponse) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.data == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	body, err := json.Marshal(b.data)
	if err != nil {
		slog.Error("Failed to encode response", "error", err)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(body)
	_, _ = w.Write([]byte("\n"))
}

// errorBody is the payload of every non-2xx response.
type errorBody struct {
	Error   string               `json:"error"`
	Details []importer.LineError `json:"details,omitempty"`
}

// ErrorResponse creates a standard error response.
func ErrorResponse(statusCode int, message string) *JSONResponse {
	return NewJSONResponse().Status(statusCode).Data(errorBody{Error: message})
}

func BadRequestError(message string) *JSONResponse {
	return ErrorResponse(http.StatusBadRequest, message)
}

func NotFoundError(message string) *JSONResponse {
	return ErrorResponse(http.StatusNotFound, message)
}

func InternalServerError(message string) *JSONResponse {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// statusFor maps service errors to HTTP status codes. Unknown errors are 500.
func statusFor(err error) int {
	var importErr *importer.Error
	switch {
	case errors.As(err, &importErr), errors.Is(err, core.ErrUnknownPurpose):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrCategoryNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrDuplicateCategory), errors.Is(err, core.ErrLastCategory):
		return http.StatusConflict
	case errors.Is(err, core.ErrEmptyCity),
		errors.Is(err, core.ErrEmptyPurpose),
		errors.Is(err, core.ErrEmptyDate),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrInvalidColor),
		errors.Is(err, core.ErrInvalidCategory),
		errors.Is(err, importer.ErrEmptyImport),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// ServiceError builds the response for an error returned by the service.
// Internal errors are not echoed to the client.
func ServiceError(err error) *JSONResponse {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		return InternalServerError("internal error")
	}
	body := errorBody{Error: err.Error()}
	var importErr *importer.Error
	if errors.As(err, &importErr) {
		body.Error = "import rejected"
		body.Details = importErr.Lines
	}
	return NewJSONResponse().Status(status).Data(body)
}
