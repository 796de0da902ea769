// Adlink - Ad Platform Connection Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlink

package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/adlink/internal/logging"
	"github.com/tomtom215/adlink/internal/oauth"
	"github.com/tomtom215/adlink/internal/validation"
)

// API error codes that do not come from the orchestrator.
const (
	CodeUnauthorized     = "unauthorized"
	CodeInvalidRequest   = validation.CodeInvalidRequest
	CodeRateLimited      = "rate_limited"
	CodeMethodNotAllowed = "method_not_allowed"
)

const maxBodyBytes = 16 << 10

// ErrorBody is the error object of every failed response.
type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse is the envelope of every failed response.
type ErrorResponse struct {
	Error       ErrorBody `json:"error"`
	NeedsReauth bool      `json:"needsReauth,omitempty"`
}

// kindStatus maps orchestrator error kinds to HTTP statuses.
var kindStatus = map[error]int{
	oauth.ErrAuthorizationDenied: http.StatusBadRequest,
	oauth.ErrInvalidState:        http.StatusBadRequest,
	oauth.ErrTokenExchange:       http.StatusBadRequest,
	oauth.ErrNoAccounts:          http.StatusUnprocessableEntity,
	oauth.ErrExpiredPendingToken: http.StatusGone,
	oauth.ErrInvalidSelection:    http.StatusBadRequest,
	oauth.ErrDuplicateConnection: http.StatusConflict,
	oauth.ErrReauthRequired:      http.StatusUnauthorized,
	oauth.ErrTransientProvider:   http.StatusServiceUnavailable,
	oauth.ErrNotFound:            http.StatusNotFound,
	oauth.ErrProviderResponse:    http.StatusBadGateway,
	oauth.ErrInternal:            http.StatusInternalServerError,
}

// statusFor returns the HTTP status for an orchestrator error.
func statusFor(err error) int {
	if status, ok := kindStatus[oauth.KindOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// sanitizeLogValue escapes control characters so client input cannot forge
// log lines.
func sanitizeLogValue(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			fmt.Fprintf(&b, "\\x%02x", r)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// respondJSON writes v as JSON. API responses carry per-user data and are
// never cached.
func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// respondError writes the error envelope.
func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	respondJSON(w, status, &ErrorResponse{
		Error: ErrorBody{
			Code:      code,
			Message:   message,
			RequestID: logging.RequestIDFromContext(r.Context()),
		},
	})
}

// respondServiceError maps an orchestrator error onto the error envelope.
// Server-side failures are logged with their cause; client errors are not
// system faults and log at debug.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	logger := logging.Ctx(r.Context())
	ev := logger.Debug()
	if status >= http.StatusInternalServerError {
		ev = logger.Error()
	}
	ev.Str("code", oauth.CodeOf(err)).
		Str("error", sanitizeLogValue(err.Error())).
		Int("status", status).
		Msg("Request failed")

	respondJSON(w, status, &ErrorResponse{
		Error: ErrorBody{
			Code:      oauth.CodeOf(err),
			Message:   oauth.UserMessage(err),
			RequestID: logging.RequestIDFromContext(r.Context()),
		},
		NeedsReauth: errors.Is(err, oauth.ErrReauthRequired),
	})
}

// decodeJSON reads a bounded JSON body into v and validates it. On failure
// it has already written the 400 response.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		respondError(w, r, http.StatusBadRequest, CodeInvalidRequest, "request body is too large or unreadable")
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		respondError(w, r, http.StatusBadRequest, CodeInvalidRequest, "request body must be a JSON object")
		return false
	}
	if verr := validation.ValidateStruct(v); verr != nil {
		respondError(w, r, http.StatusBadRequest, verr.Code(), verr.Error())
		return false
	}
	return true
}
