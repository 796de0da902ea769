// Adlink - Ad Platform Connection Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlink

package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
	"golang.org/x/oauth2"

	"github.com/tomtom215/adlink/internal/models"
)

// Error kinds. Match with errors.Is.
var (
	// ErrInvalidGrant means the provider definitively rejected the code or
	// token (reused, expired, revoked). Retrying will not help.
	ErrInvalidGrant = errors.New("invalid grant")

	// ErrTransient covers timeouts, network failures, 5xx and 429 responses
	// and open circuits. The same call may succeed later.
	ErrTransient = errors.New("transient provider failure")

	// ErrProviderResponse means the provider answered with something
	// unexpected: an unclassified 4xx or a body that does not parse.
	ErrProviderResponse = errors.New("unexpected provider response")
)

// Operation names used in errors and metrics.
const (
	OpExchange     = "exchange"
	OpRefresh      = "refresh"
	OpListAccounts = "list_accounts"
	OpRevoke       = "revoke"
)

// Error describes a failed provider call. Message never contains token
// material; the underlying cause is available through Unwrap only.
type Error struct {
	Platform models.Platform
	Op       string
	Kind     error
	Status   int
	Code     string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s: %v", e.Platform, e.Op, e.Kind)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Status != 0 {
		msg += " (status " + strconv.Itoa(e.Status)
		if e.Code != "" {
			msg += ", code " + e.Code
		}
		msg += ")"
	} else if e.Code != "" {
		msg += " (code " + e.Code + ")"
	}
	return msg
}

// Is matches the error kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a provider error, or nil for other errors.
func KindOf(err error) error {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind
	}
	return nil
}

// Outcome returns the metrics label for err.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrInvalidGrant):
		return "invalid_grant"
	case errors.Is(err, ErrTransient):
		return "transient"
	default:
		return "provider_response"
	}
}

func newError(p models.Platform, op string, kind error, message string) *Error {
	return &Error{Platform: p, Op: op, Kind: kind, Message: message}
}

// transportError classifies a failure to get any HTTP response.
func transportError(p models.Platform, op string, err error) *Error {
	e := &Error{Platform: p, Op: op, Kind: ErrTransient, Err: err}
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		e.Message = "request timed out"
	case errors.Is(err, context.Canceled):
		e.Message = "request canceled"
	case errors.As(err, &netErr) && netErr.Timeout():
		e.Message = "request timed out"
	default:
		e.Message = "network error"
	}
	return e
}

// statusKind returns the kind implied by an HTTP status alone.
func statusKind(status int) error {
	switch {
	case status == http.StatusTooManyRequests || status >= 500:
		return ErrTransient
	case status == http.StatusUnauthorized:
		return ErrInvalidGrant
	default:
		return ErrProviderResponse
	}
}

// oauthErrorKinds maps RFC 6749 token endpoint error codes.
var oauthErrorKinds = map[string]error{
	"invalid_grant":           ErrInvalidGrant,
	"invalid_token":           ErrInvalidGrant,
	"invalid_client":          ErrProviderResponse,
	"unauthorized_client":     ErrProviderResponse,
	"invalid_request":         ErrProviderResponse,
	"unsupported_grant_type":  ErrProviderResponse,
	"invalid_scope":           ErrProviderResponse,
	"temporarily_unavailable": ErrTransient,
	"server_error":            ErrTransient,
}

// graphErrorBody is the Meta Graph API error envelope.
type graphErrorBody struct {
	Error struct {
		Message      string `json:"message"`
		Type         string `json:"type"`
		Code         int    `json:"code"`
		ErrorSubcode int    `json:"error_subcode"`
	} `json:"error"`
}

// fromOAuth2Error classifies errors returned by golang.org/x/oauth2.
func fromOAuth2Error(p models.Platform, op string, err error) *Error {
	var rerr *oauth2.RetrieveError
	if !errors.As(err, &rerr) {
		var perr *Error
		if errors.As(err, &perr) {
			return perr
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || isNetError(err) {
			return transportError(p, op, err)
		}
		return &Error{Platform: p, Op: op, Kind: ErrProviderResponse, Message: "invalid token response", Err: err}
	}

	e := &Error{Platform: p, Op: op, Err: err}
	if rerr.Response != nil {
		e.Status = rerr.Response.StatusCode
	}

	if rerr.ErrorCode != "" {
		e.Code = rerr.ErrorCode
		e.Message = rerr.ErrorDescription
		if kind, ok := oauthErrorKinds[rerr.ErrorCode]; ok {
			e.Kind = kind
		}
	} else if g := parseGraphError(rerr.Body); g != nil {
		e.Code = strconv.Itoa(g.Error.Code)
		e.Message = g.Error.Message
		e.Kind = graphKind(g.Error.Code, e.Status)
	}

	if e.Kind == nil {
		// Token endpoints answer a bad grant with 400 per RFC 6749 §5.2.
		if e.Status == http.StatusBadRequest {
			e.Kind = ErrInvalidGrant
		} else {
			e.Kind = statusKind(e.Status)
		}
	}
	if e.Status == http.StatusTooManyRequests || e.Status >= 500 {
		e.Kind = ErrTransient
	}
	return e
}

func isNetError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr)
}

func parseGraphError(body []byte) *graphErrorBody {
	if len(body) == 0 {
		return nil
	}
	var g graphErrorBody
	if err := json.Unmarshal(body, &g); err != nil || g.Error.Code == 0 {
		return nil
	}
	return &g
}

// graphKind classifies Meta Graph API error codes.
//
//	100 invalid parameter (on the token endpoint: bad or used code)
//	102 session key invalid
//	190 access token invalid or expired
//	4, 17, 32, 613 rate limited
//	1, 2 temporary API error
func graphKind(code, status int) error {
	switch code {
	case 102, 190:
		return ErrInvalidGrant
	case 4, 17, 32, 613, 1, 2:
		return ErrTransient
	case 100:
		if status == http.StatusBadRequest {
			return ErrInvalidGrant
		}
	}
	return nil
}
