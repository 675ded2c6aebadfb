package api

import (
	"fmt"
	"net/http"

	"filedrop/internal/models"
)

// APIError is a structured error returned by the HTTP API.
type APIError struct {
	Status    int
	Code      string
	ErrorCode int
	Message   string
	// Existing is set when an upload was rejected as duplicate content.
	Existing *models.FileInfo
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" && e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Status > 0 {
		return fmt.Sprintf("api error: %d", e.Status)
	}
	return "api error"
}

// IsDuplicate reports whether the error is a duplicate-content rejection.
func (e *APIError) IsDuplicate() bool {
	return e != nil && e.Status == http.StatusConflict
}
