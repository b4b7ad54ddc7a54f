package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"diaryhub-backend/internal/models"
	"diaryhub-backend/internal/services"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse is returned by operations that have nothing else to report
type MessageResponse struct {
	Message string `json:"message"`
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}

func respondJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

func statusFor(kind services.Kind) int {
	switch kind {
	case services.KindValidation:
		return http.StatusBadRequest
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindForbidden:
		return http.StatusForbidden
	case services.KindConflict:
		return http.StatusConflict
	case services.KindUnauthorized:
		return http.StatusUnauthorized
	case services.KindDependencyFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError maps a service failure to a response. Internal failures never
// expose their cause to the client.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, action string) {
	kind := services.KindOf(err)
	status := statusFor(kind)

	message := "Internal server error"
	var svcErr *services.Error
	if kind != services.KindInternal && errors.As(err, &svcErr) {
		message = svcErr.Message
	}

	event := log.Debug()
	if status >= http.StatusInternalServerError {
		event = log.Error()
	}
	event.
		Err(err).
		Str("request_id", chiMiddleware.GetReqID(r.Context())).
		Str("kind", kind.String()).
		Msg(action)

	respondError(w, message, status)
}

// parsePage reads limit and skip. Missing or unparsable values fall back to defaults.
func parsePage(r *http.Request) models.Page {
	var page models.Page
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil {
			page.Limit = parsedLimit
		}
	}
	if skipStr := r.URL.Query().Get("skip"); skipStr != "" {
		if parsedSkip, err := strconv.Atoi(skipStr); err == nil {
			page.Skip = parsedSkip
		}
	}
	return page.Normalize()
}
