package api

import "net/http"

type APIErrorCode string

const (
	InvalidRequest  APIErrorCode = "invalid_request"
	InvalidID       APIErrorCode = "invalid_id"
	PayloadTooLarge APIErrorCode = "payload_too_large"
	NotReady        APIErrorCode = "not_ready"
)

// APIError represents a transport level error with a code and description
type APIError struct {
	Code        APIErrorCode
	Description string
}

// Implement the error interface for APIError
func (e *APIError) Error() string {
	if e.Description != "" {
		return string(e.Code) + ": " + e.Description
	}
	return string(e.Code)
}

func (e *APIError) status() int {
	switch e.Code {
	case PayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case NotReady:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}
