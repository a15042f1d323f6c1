// Convene - Personality-Aware Place Ratings and Group Decisions
// Copyright 2026 The Convene Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/convene-app/convene

package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	json "github.com/goccy/go-json"

	"github.com/convene-app/convene/internal/logging"
	"github.com/convene-app/convene/internal/models"
	"github.com/convene-app/convene/internal/validation"
)

// respondJSON writes an APIResponse with proper headers.
func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// respondData wraps data in a success envelope.
func respondData(w http.ResponseWriter, status int, data interface{}) {
	respondJSON(w, status, &models.APIResponse{
		Status:   "success",
		Data:     data,
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
	})
}

// respondError wraps an error code and message in an error envelope.
func respondError(w http.ResponseWriter, status int, code, message string, details map[string]interface{}) {
	respondJSON(w, status, &models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
		Error: &models.APIError{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// respondDomainError maps a kind-classified error to its HTTP status and
// API code. Unclassified errors become a 500 with a generic message; the
// cause goes to the log, never to the client.
func respondDomainError(w http.ResponseWriter, err error) {
	var e *models.Error
	if errors.As(err, &e) && e.Kind != models.KindUnknown {
		respondError(w, e.Kind.HTTPStatus(), e.Kind.String(), e.Message, nil)
		return
	}
	logging.Error().Err(err).Msg("Unclassified error reached the API boundary")
	respondError(w, http.StatusInternalServerError, "INTERNAL", "internal server error", nil)
}

// validateRequest validates a request DTO, returning a VALIDATION_ERROR
// payload with translated field messages on failure.
func validateRequest(v interface{}) *models.APIError {
	validationErr := validation.ValidateStruct(v)
	if validationErr == nil {
		return nil
	}
	apiErr := validationErr.ToAPIError()
	return &models.APIError{
		Code:    apiErr.Code,
		Message: apiErr.Message,
		Details: apiErr.Details,
	}
}

// decodeBody parses and validates a JSON request body into dst.
func decodeBody(r *http.Request, dst interface{}) *models.APIError {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &models.APIError{Code: "VALIDATION_ERROR", Message: "invalid JSON body"}
	}
	return validateRequest(dst)
}

// caller returns the gateway-injected actor identity, empty when absent.
func caller(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

// requireCaller extracts the actor identity or writes an UNAUTHORIZED
// response. The second return is false when the response was written.
func requireCaller(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := caller(r)
	if id == "" {
		respondError(w, http.StatusForbidden, "UNAUTHORIZED", "X-User-ID header required", nil)
		return "", false
	}
	return id, true
}

// getIntParam extracts an integer query parameter with a default value.
func getIntParam(r *http.Request, key string, defaultValue int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

// getFloatParam extracts a float query parameter. The second return is
// false when the parameter is absent or malformed.
func getFloatParam(r *http.Request, key string) (float64, bool) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
