package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/couchcryptid/polygon-weather-dashboard/internal/dashboard"
	"github.com/couchcryptid/polygon-weather-dashboard/internal/domain"
	"github.com/go-playground/validator/v10"
)

const maxRequestBodySize = 1 << 20

// Error codes returned in the error envelope.
const (
	codeInvalidJSON      = "invalid_json"
	codeValidationFailed = "validation_failed"
	codeInvalidRequest   = "invalid_request"
	codeNotFound         = "not_found"
	codeConflict         = "conflict"
	codeUnavailable      = "unavailable"
	codeInternal         = "internal_error"
)

type errorResponse struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// requestError is a client error with an explicit status and code.
type requestError struct {
	status int
	code   string
	msg    string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(code, format string, args ...any) error {
	return &requestError{status: http.StatusBadRequest, code: code, msg: fmt.Sprintf(format, args...)}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}

// writeError maps err to a status and writes the error envelope. Messages of
// unexpected errors are not exposed.
func writeError(w http.ResponseWriter, err error) {
	status, code, msg := classify(err)
	writeJSON(w, status, errorResponse{Error: errorDetail{Code: code, Message: msg}})
}

func classify(err error) (int, string, string) {
	var reqErr *requestError
	var valErrs validator.ValidationErrors
	switch {
	case errors.As(err, &reqErr):
		return reqErr.status, reqErr.code, reqErr.msg
	case errors.As(err, &valErrs):
		return http.StatusBadRequest, codeValidationFailed, validationMessage(valErrs)
	case errors.Is(err, domain.ErrPolygonNotFound),
		errors.Is(err, domain.ErrDataSourceNotFound),
		errors.Is(err, domain.ErrRuleNotFound):
		return http.StatusNotFound, codeNotFound, err.Error()
	case errors.Is(err, domain.ErrInvalidOperator),
		errors.Is(err, domain.ErrHourOutOfRange),
		errors.Is(err, domain.ErrInvalidMode),
		errors.Is(err, domain.ErrUnknownPreset),
		errors.Is(err, dashboard.ErrInvalidPolygon):
		return http.StatusBadRequest, codeInvalidRequest, err.Error()
	case errors.Is(err, dashboard.ErrDrawingBusy):
		return http.StatusConflict, codeConflict, err.Error()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, codeUnavailable, "request cancelled before weather data was available"
	default:
		return http.StatusInternalServerError, codeInternal, "an unexpected error occurred"
	}
}

func validationMessage(errs validator.ValidationErrors) string {
	fe := errs[0]
	if fe.Param() != "" {
		return fmt.Sprintf("field %s failed %s=%s", fe.Field(), fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("field %s failed %s", fe.Field(), fe.Tag())
}

// decodeJSON reads a single JSON object into dst, rejecting unknown fields.
// An empty body leaves dst untouched when allowEmpty is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			if allowEmpty {
				return nil
			}
			return badRequest(codeInvalidJSON, "request body must not be empty")
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return badRequest(codeInvalidJSON, "request body too large")
		}
		return badRequest(codeInvalidJSON, "malformed JSON: %v", err)
	}
	if dec.More() {
		return badRequest(codeInvalidJSON, "request body must contain a single JSON object")
	}
	return nil
}
