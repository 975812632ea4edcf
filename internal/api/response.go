// Daily Recap Pipeline
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/dailyrecap/pipeline/internal/errtrack"
	"github.com/dailyrecap/pipeline/internal/logging"
)

// APIResponse is the standard envelope for every admin API response.
// Success responses carry success:true and Data; error responses carry
// success:false and Error. Meta is always present.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    APIMeta     `json:"meta"`
}

// APIError describes a failed request using the pipeline's error taxonomy
// (validation, not-found, authz, rate-limited, schema, internal, ...).
type APIError struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

// APIMeta carries request-scoped metadata attached to every response.
type APIMeta struct {
	RequestID  string          `json:"request_id,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
	DurationMS int64           `json:"duration_ms,omitempty"`
	Pagination *PaginationMeta `json:"pagination,omitempty"`
}

// PaginationMeta describes a cursor-paginated listing.
type PaginationMeta struct {
	Cursor  string `json:"cursor,omitempty"`
	HasMore bool   `json:"has_more"`
	Limit   int    `json:"limit"`
}

// Error codes used across handlers. These map directly onto the taxonomy
// entries: validation, not-found, authz, rate-limited, schema, internal.
const (
	CodeValidation         = "validation"
	CodeNotFound           = "not-found"
	CodeAuthz              = "authz"
	CodeRateLimited        = "rate-limited"
	CodeCollaboratorFailed = "collaborator-failed"
	CodeSchema             = "schema"
	CodeInternal           = "internal"
)

// ResponseWriter writes APIResponse envelopes, stamping request ID and
// timing metadata from the request context.
type ResponseWriter struct {
	w         http.ResponseWriter
	r         *http.Request
	startedAt time.Time
	tracker   *errtrack.Tracker
}

// NewResponseWriter builds a ResponseWriter for a single request. tracker
// may be nil, in which case InternalError and CollaboratorFailed simply
// skip recording.
func NewResponseWriter(w http.ResponseWriter, r *http.Request, tracker *errtrack.Tracker) *ResponseWriter {
	return &ResponseWriter{w: w, r: r, startedAt: time.Now(), tracker: tracker}
}

func (rw *ResponseWriter) meta(pagination *PaginationMeta) APIMeta {
	return APIMeta{
		RequestID:  logging.RequestIDFromContext(rw.r.Context()),
		Timestamp:  time.Now().UTC(),
		DurationMS: time.Since(rw.startedAt).Milliseconds(),
		Pagination: pagination,
	}
}

func (rw *ResponseWriter) write(status int, resp APIResponse) {
	rw.w.Header().Set("Content-Type", "application/json")
	rw.w.WriteHeader(status)
	if err := json.NewEncoder(rw.w).Encode(resp); err != nil {
		logging.CtxErr(rw.r.Context(), err).Msg("api: failed to encode response body")
	}
}

// Success writes a 200 with data and no pagination.
func (rw *ResponseWriter) Success(data interface{}) {
	rw.write(http.StatusOK, APIResponse{Success: true, Data: data, Meta: rw.meta(nil)})
}

// SuccessPaginated writes a 200 with data and pagination metadata.
func (rw *ResponseWriter) SuccessPaginated(data interface{}, pagination PaginationMeta) {
	rw.write(http.StatusOK, APIResponse{Success: true, Data: data, Meta: rw.meta(&pagination)})
}

// Accepted writes a 202, used for asynchronous job acceptance.
func (rw *ResponseWriter) Accepted(data interface{}) {
	rw.write(http.StatusAccepted, APIResponse{Success: true, Data: data, Meta: rw.meta(nil)})
}

// Error writes an error envelope at the given status code.
func (rw *ResponseWriter) Error(status int, code, message string, details interface{}) {
	requestID := logging.RequestIDFromContext(rw.r.Context())
	rw.write(status, APIResponse{
		Success: false,
		Error: &APIError{
			Code:      code,
			Message:   message,
			Details:   details,
			RequestID: requestID,
		},
		Meta: rw.meta(nil),
	})
}

// ValidationError writes a 400 validation error.
func (rw *ResponseWriter) ValidationError(message string, details interface{}) {
	rw.Error(http.StatusBadRequest, CodeValidation, message, details)
}

// NotFound writes a 404.
func (rw *ResponseWriter) NotFound(message string) {
	rw.Error(http.StatusNotFound, CodeNotFound, message, nil)
}

// Unauthorized writes a 401.
func (rw *ResponseWriter) Unauthorized(message string) {
	rw.Error(http.StatusUnauthorized, CodeAuthz, message, nil)
}

// TooManyRequests writes a 429.
func (rw *ResponseWriter) TooManyRequests(message string) {
	rw.Error(http.StatusTooManyRequests, CodeRateLimited, message, nil)
}

// SchemaError writes a 422 for a body that parsed but failed schema checks.
func (rw *ResponseWriter) SchemaError(message string, details interface{}) {
	rw.Error(http.StatusUnprocessableEntity, CodeSchema, message, details)
}

// CollaboratorFailed writes a 502 for a downstream collaborator failure.
func (rw *ResponseWriter) CollaboratorFailed(message string) {
	rw.track(message)
	rw.Error(http.StatusBadGateway, CodeCollaboratorFailed, message, nil)
}

// InternalError writes a generic 500. The underlying error is logged but
// never included in the response body.
func (rw *ResponseWriter) InternalError(err error) {
	logging.CtxErr(rw.r.Context(), err).Msg("api: internal error")
	rw.track(err.Error())
	rw.Error(http.StatusInternalServerError, CodeInternal, "internal error", nil)
}

// track records a failure against the process-wide error tracker, keyed by
// the request's URL path. A nil tracker (e.g. in tests) is a no-op.
func (rw *ResponseWriter) track(message string) {
	if rw.tracker == nil {
		return
	}
	component := rw.r.URL.Path
	rw.tracker.TrackError(component, errtrack.SanitizeMessage(message), map[string]string{
		"request_id": logging.RequestIDFromContext(rw.r.Context()),
		"method":     rw.r.Method,
	})
}
