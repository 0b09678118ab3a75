// Package http provides HTTP server and handler implementations.
//
// This file implements the Builder Pattern for constructing JSON responses
// and the mapping of domain errors to status codes.

package http

import (
	"encoding/json"
	"net/http"

	"bilancio/internal/core"
	"bilancio/internal/log"
	"bilancio/internal/middleware/trace"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response to the http.ResponseWriter. A nil body with
// 204 writes no content.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.statusCode == http.StatusNoContent || b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	var payload []byte
	switch v := b.body.(type) {
	case json.RawMessage:
		payload = v
	default:
		var err error
		payload, err = json.Marshal(v)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"failed to encode response","code":"internal"}`))
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(payload)
	_, _ = w.Write([]byte("\n"))
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse creates a standard error response.
func ErrorResponse(statusCode int, code, message string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		Body(ErrorBody{Error: message, Code: code})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, core.KindInvalidArgument.String(), message)
}

// UnauthorizedError creates a 401 Unauthorized error response.
func UnauthorizedError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnauthorized, "unauthorized", message).
		Header("WWW-Authenticate", `Bearer realm="bilancio"`)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, core.KindNotFound.String(), message)
}

// TooManyRequestsError creates a 429 response.
func TooManyRequestsError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, "rate_limited", "rate limit exceeded, please try again later").
		Header("Retry-After", "60")
}

// InternalServerError creates a 500 response with a generic message.
func InternalServerError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, core.KindInternal.String(), "internal server error")
}

// StatusForKind maps an error kind to its HTTP status.
func StatusForKind(k core.Kind) int {
	switch k {
	case core.KindInvalidArgument:
		return http.StatusBadRequest
	case core.KindNotFound:
		return http.StatusNotFound
	case core.KindConflict:
		return http.StatusConflict
	case core.KindFailedPrecondition:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// errorTypeForKind maps an error kind onto the log category.
func errorTypeForKind(k core.Kind) string {
	switch k {
	case core.KindInvalidArgument:
		return log.ErrorTypeValidation
	case core.KindNotFound:
		return log.ErrorTypeNotFound
	case core.KindConflict:
		return log.ErrorTypeConflict
	case core.KindFailedPrecondition:
		return log.ErrorTypePrecondition
	default:
		return log.ErrorTypeInternal
	}
}

// writeError renders err with the status of its kind. Internal failures are
// logged and answered with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	kind := core.KindOf(err)
	status := StatusForKind(kind)
	requestID := trace.GetRequestID(ctx)

	var resp *JSONResponseBuilder
	if status == http.StatusInternalServerError {
		fields := log.NewFields().
			WithErrorType(errorTypeForKind(kind)).
			WithRequestID(requestID)
		fields[log.FieldPath] = r.URL.Path
		log.NewStructuredLogger(log.FromContext(ctx)).
			LogError(ctx, "Request failed", err, log.ComponentHTTP, r.Method, fields)
		resp = InternalServerError()
	} else {
		log.FromContext(ctx).DebugContext(ctx, "Request rejected",
			log.FieldErrorType, errorTypeForKind(kind),
			log.FieldPath, r.URL.Path,
			log.FieldError, err)
		resp = ErrorResponse(status, kind.String(), err.Error())
	}

	if requestID != "" {
		if body, ok := resp.body.(ErrorBody); ok {
			body.RequestID = requestID
			resp.Body(body)
		}
	}
	resp.Write(w)
}
