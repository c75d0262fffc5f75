package httpx

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Code is a stable machine-readable error code. Clients branch on these
// values, so existing codes must not change.
type Code string

// Error codes surfaced by the API.
const (
	CodeAuthRequired       Code = "AUTH_REQUIRED"
	CodeTenantRequired     Code = "TENANT_REQUIRED"
	CodeTenantAccessDenied Code = "TENANT_ACCESS_DENIED"
	CodeOwnerRequired      Code = "OWNER_REQUIRED"
	CodeAdminRequired      Code = "ADMIN_REQUIRED"
	CodePermissionDenied   Code = "PERMISSION_DENIED"
	CodeInternal           Code = "INTERNAL_ERROR"
	CodeValidation         Code = "VALIDATION_FAILED"
	CodeNotFound           Code = "NOT_FOUND"
	CodeConflict           Code = "CONFLICT"
	CodeRateLimited        Code = "RATE_LIMITED"
	CodeCSRFInvalid        Code = "CSRF_INVALID"
	CodeUnavailable        Code = "SERVICE_UNAVAILABLE"
)

var codeStatus = map[Code]int{
	CodeAuthRequired:       http.StatusUnauthorized,
	CodeTenantRequired:     http.StatusBadRequest,
	CodeTenantAccessDenied: http.StatusForbidden,
	CodeOwnerRequired:      http.StatusForbidden,
	CodeAdminRequired:      http.StatusForbidden,
	CodePermissionDenied:   http.StatusForbidden,
	CodeInternal:           http.StatusInternalServerError,
	CodeValidation:         http.StatusBadRequest,
	CodeNotFound:           http.StatusNotFound,
	CodeConflict:           http.StatusConflict,
	CodeRateLimited:        http.StatusTooManyRequests,
	CodeCSRFInvalid:        http.StatusForbidden,
	CodeUnavailable:        http.StatusServiceUnavailable,
}

// Status returns the HTTP status bound to the code.
func (c Code) Status() int {
	if status, ok := codeStatus[c]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Sentinel errors for domain layer.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrDuplicate    = errors.New("duplicate entry")
	ErrConflict     = errors.New("conflicting state")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// RespondError maps domain errors to coded responses. Unknown errors become
// INTERNAL_ERROR without any detail from err.
func RespondError(w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		Write(w, ErrorDetail{Code: CodeValidation, Message: "validation failed", Fields: FieldErrors(verrs)})
	case errors.Is(err, ErrNotFound):
		Error(w, CodeNotFound, "resource not found")
	case errors.Is(err, ErrDuplicate), errors.Is(err, ErrConflict):
		Error(w, CodeConflict, publicMessage(err, ErrDuplicate, ErrConflict))
	case errors.Is(err, ErrValidation):
		Error(w, CodeValidation, publicMessage(err, ErrValidation))
	case errors.Is(err, ErrForbidden):
		Error(w, CodePermissionDenied, "forbidden")
	case errors.Is(err, ErrUnauthorized):
		Error(w, CodeAuthRequired, "authentication required")
	default:
		Error(w, CodeInternal, "internal error")
	}
}

// publicMessage returns the detail a domain error attaches after its
// sentinel, as in "students: duplicate entry: email already registered".
// Package prefixes and wrapping context are dropped. Without a detail the
// sentinel's own text is used.
func publicMessage(err error, sentinels ...error) string {
	msg := err.Error()
	for _, sentinel := range sentinels {
		if !errors.Is(err, sentinel) {
			continue
		}
		marker := sentinel.Error() + ": "
		if i := strings.LastIndex(msg, marker); i >= 0 && len(msg) > i+len(marker) {
			return msg[i+len(marker):]
		}
		return sentinel.Error()
	}
	return "request failed"
}

// IsClientError reports whether err maps to a 4xx response.
func IsClientError(err error) bool {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return true
	}
	for _, target := range []error{ErrNotFound, ErrDuplicate, ErrConflict, ErrValidation, ErrForbidden, ErrUnauthorized} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// FieldErrors flattens validator errors into field -> tag.
func FieldErrors(verrs validator.ValidationErrors) map[string]string {
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	return fields
}
