// Package httpx provides JSON response helpers shared by every API module.
package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/lehine87/educanvas/internal/shared"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// ErrorDetail is the machine-readable part of an error response.
type ErrorDetail struct {
	Code    Code              `json:"code"`
	Message string            `json:"message"`
	Missing any               `json:"missing,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// ErrorBody wraps ErrorDetail under the "error" key.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ListBody is the envelope for paginated listings.
type ListBody struct {
	Data any               `json:"data"`
	Page shared.Pagination `json:"page"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// List sends a paginated listing.
func List(w http.ResponseWriter, data any, page shared.Pagination) {
	JSON(w, http.StatusOK, ListBody{Data: data, Page: page})
}

// Error writes an error body using the status registered for code.
func Error(w http.ResponseWriter, code Code, message string) {
	JSON(w, code.Status(), ErrorBody{Error: ErrorDetail{Code: code, Message: message}})
}

// Write sends a fully populated ErrorDetail.
func Write(w http.ResponseWriter, detail ErrorDetail) {
	JSON(w, detail.Code.Status(), ErrorBody{Error: detail})
}

// DecodeJSON decodes a JSON request body into target, rejecting unknown
// fields and trailing data.
func DecodeJSON(r *http.Request, target any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return errors.Join(ErrValidation, err)
	}
	if dec.More() {
		return ErrValidation
	}
	return nil
}
