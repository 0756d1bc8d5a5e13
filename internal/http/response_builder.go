package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"ledger/internal/core"
	"ledger/internal/log"
)

// errBadRequest marks a request the decoder could not read at all.
var errBadRequest = errors.New("bad request")

type errorBody struct {
	Error string `json:"error"`
}

// JSONResponse provides a fluent API for building JSON responses.
type JSONResponse struct {
	statusCode int
	headers    map[string]string
	body       any
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

// Body sets the value encoded as the response body. A nil body writes none.
func (b *JSONResponse) Body(v any) *JSONResponse {
	b.body = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponse) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}
	writeJSON(w, b.statusCode, b.body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ErrorResponse creates a standard {"error": message} response.
func ErrorResponse(statusCode int, message string) *JSONResponse {
	return NewJSONResponse().Status(statusCode).Body(errorBody{Error: message})
}

// statusFor maps an error class to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError responds with the error's class. Storage faults are logged
// and hidden behind a generic message.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.NewStructuredLogger(log.FromContext(r.Context())).
			LogError(r.Context(), "Request failed", err, log.ComponentHTTP, op, nil)
		ErrorResponse(status, "internal error").Write(w)
		return
	}
	ErrorResponse(status, err.Error()).Write(w)
}
