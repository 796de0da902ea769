// Adlink - Ad Platform Connection Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlink

package oauth

import (
	"errors"
	"fmt"

	"github.com/tomtom215/adlink/internal/models"
	"github.com/tomtom215/adlink/internal/providers"
)

// Error kinds. Every error returned by Service is an *Error whose Kind is
// one of these; match with errors.Is.
var (
	ErrAuthorizationDenied = errors.New("authorization denied")
	ErrInvalidState        = errors.New("invalid oauth state")
	ErrTokenExchange       = errors.New("token exchange failed")
	ErrNoAccounts          = errors.New("no ad accounts")
	ErrExpiredPendingToken = errors.New("pending selection expired")
	ErrInvalidSelection    = errors.New("invalid account selection")
	ErrDuplicateConnection = errors.New("account already connected")
	ErrReauthRequired      = errors.New("reauthorization required")
	ErrTransientProvider   = errors.New("provider temporarily unavailable")
	ErrNotFound            = errors.New("not found")
	ErrProviderResponse    = errors.New("unexpected provider response")
	ErrInternal            = errors.New("internal error")
)

var kindCodes = map[error]string{
	ErrAuthorizationDenied: "authorization_denied",
	ErrInvalidState:        "invalid_state",
	ErrTokenExchange:       "token_exchange_failed",
	ErrNoAccounts:          "no_accounts",
	ErrExpiredPendingToken: "pending_expired",
	ErrInvalidSelection:    "invalid_selection",
	ErrDuplicateConnection: "duplicate_connection",
	ErrReauthRequired:      "reauth_required",
	ErrTransientProvider:   "provider_unavailable",
	ErrNotFound:            "not_found",
	ErrProviderResponse:    "provider_response",
	ErrInternal:            "internal_error",
}

// Error is a typed orchestrator failure. Message is safe to show to the
// user; it never contains tokens or keys.
type Error struct {
	Kind     error
	Platform models.Platform
	Message  string
	Err      error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Platform != "" {
		msg = string(e.Platform) + ": " + msg
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
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

// Code returns the stable machine-readable code for the error kind.
func (e *Error) Code() string {
	return kindCodes[e.Kind]
}

// KindOf returns the kind of err, or ErrInternal for foreign errors.
func KindOf(err error) error {
	var oerr *Error
	if errors.As(err, &oerr) {
		return oerr.Kind
	}
	return ErrInternal
}

// CodeOf returns the machine-readable code for err.
func CodeOf(err error) string {
	return kindCodes[KindOf(err)]
}

// UserMessage returns the text shown to the user for err.
func UserMessage(err error) string {
	var oerr *Error
	if errors.As(err, &oerr) && oerr.Message != "" {
		return oerr.Message
	}
	return "an unexpected error occurred"
}

func newError(kind error, p models.Platform, message string, cause error) *Error {
	return &Error{Kind: kind, Platform: p, Message: message, Err: cause}
}

func internalError(p models.Platform, what string, cause error) *Error {
	return newError(ErrInternal, p, "an unexpected error occurred", fmt.Errorf("%s: %w", what, cause))
}

func notFound(p models.Platform, what string) *Error {
	return newError(ErrNotFound, p, what+" not found", nil)
}

func transient(p models.Platform, cause error) *Error {
	return newError(ErrTransientProvider, p,
		p.DisplayName()+" is temporarily unavailable; please try again", cause)
}

// exchangeError classifies a failed code exchange.
func exchangeError(p models.Platform, err error) *Error {
	if errors.Is(err, providers.ErrTransient) {
		return transient(p, err)
	}
	return newError(ErrTokenExchange, p,
		"failed to connect "+p.DisplayName()+"; please start the connect flow again", err)
}

// listError classifies a failed account listing.
func listError(p models.Platform, err error) *Error {
	if errors.Is(err, providers.ErrTransient) {
		return transient(p, err)
	}
	return newError(ErrProviderResponse, p,
		"could not read ad accounts from "+p.DisplayName(), err)
}
