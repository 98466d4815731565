package api

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Stellouuuuu/mojaloop-pension/internal/errors"
)

// WithMethod is a middleware that checks if the endpoint was called using a
// specific HTTP method and rejects it otherwise.
func WithMethod(next http.HandlerFunc, method string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			http.Error(w, fmt.Sprintf("Only %s method is allowed", method), http.StatusMethodNotAllowed)
			return
		}

		next.ServeHTTP(w, r)
	}
}

// WithJSONResponse wraps an APIHandler and handles JSON response formatting
func WithJSONResponse(handler APIHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Call the handler to get data or error
		data, err := handler(w, r)

		// Set the Content-Type header
		w.Header().Set("Content-Type", "application/json")

		if err != nil {
			status, errorResponse := errorResponseFor(err)

			slog.Debug("API error", "path", r.URL.Path, "status", status, "error", err)

			w.WriteHeader(status)

			// Encode and send the error response
			if err := json.NewEncoder(w).Encode(errorResponse); err != nil {
				slog.Error("couldn't encode error response", "error", err)
			}
			return
		}

		// Create the success response
		successResponse := SuccessResponse{
			Ok:   true,
			Data: data,
		}

		// Encode and send the success response
		if err := json.NewEncoder(w).Encode(successResponse); err != nil {
			http.Error(w, `{"ok": false, "errorCode": "internal_error", "errorDescription": "Failed to encode success response"}`, http.StatusInternalServerError)
			return
		}
	}
}

func errorResponseFor(err error) (int, ErrorResponse) {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr.status(), ErrorResponse{
			ErrorCode:        string(apiErr.Code),
			ErrorDescription: apiErr.Description,
		}
	}

	var se errors.ServiceError
	if stderrors.As(err, &se) {
		response := ErrorResponse{ErrorCode: string(se.Code), ErrorDescription: se.Message}

		switch se.Code {
		case errors.CodeInvalidStatus, errors.CodeMalformedInput:
			return http.StatusBadRequest, response
		case errors.CodeNotFound, errors.CodeReferentialViolation:
			return http.StatusNotFound, response
		default:
			slog.Error("storage failure", "error", se, "stack", se.Err)
			return http.StatusInternalServerError, response
		}
	}

	slog.Error("unexpected API error", "error", err)

	return http.StatusInternalServerError, ErrorResponse{ErrorCode: "internal_error"}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// WithRequestLogging logs every request once it has been served.
func WithRequestLogging(next http.Handler, log *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		log.Info("request served",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}
