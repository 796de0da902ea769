// Adlink - Ad Platform Connection Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlink

package logging

import (
	"strings"

	"github.com/rs/zerolog"
)

// SecurityEvent is a security-relevant event in the connection lifecycle.
type SecurityEvent struct {
	// Event is the event name, e.g. "oauth_state_rejected".
	Event string
	// UserID is the owning user, masked before it is written.
	UserID string
	// Platform is the ad platform (google_ads, meta_ads, tiktok_ads).
	Platform string
	// ConnectionID identifies the connection row, if any.
	ConnectionID string
	// IPAddress is the client address when the event came from HTTP.
	IPAddress string
	// Success marks the outcome.
	Success bool
	// Reason is a short failure reason; sanitized before it is written.
	Reason string
	// Details carries extra fields; values are sanitized by key name.
	Details map[string]string
}

// SecurityLogger writes SecurityEvents with sensitive values masked.
type SecurityLogger struct {
	logger zerolog.Logger
}

// NewSecurityLogger returns a SecurityLogger on the global logger.
func NewSecurityLogger() *SecurityLogger {
	return &SecurityLogger{logger: With().Str("component", "security").Logger()}
}

// NewSecurityLoggerWithLogger returns a SecurityLogger writing to logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewSecurityLoggerWithLogger(logger zerolog.Logger) *SecurityLogger {
	return &SecurityLogger{logger: logger.With().Str("component", "security").Logger()}
}

// LogEvent writes event. Failures are logged at warn level.
func (l *SecurityLogger) LogEvent(event *SecurityEvent) {
	e := l.logger.Info()
	if !event.Success {
		e = l.logger.Warn()
	}
	e = e.Str("event", event.Event).Bool("success", event.Success)

	if event.UserID != "" {
		e = e.Str("user_id", SanitizeUserID(event.UserID))
	}
	if event.Platform != "" {
		e = e.Str("platform", event.Platform)
	}
	if event.ConnectionID != "" {
		e = e.Str("connection_id", event.ConnectionID)
	}
	if event.IPAddress != "" {
		e = e.Str("ip", event.IPAddress)
	}
	if event.Reason != "" && !event.Success {
		e = e.Str("reason", SanitizeError(event.Reason))
	}
	for k, v := range event.Details {
		e = e.Str(k, SanitizeValue(k, v))
	}
	e.Msg("security event")
}

// LogStateRejected records a callback whose OAuth state failed validation.
func (l *SecurityLogger) LogStateRejected(userID, platform, reason, ip string) {
	l.LogEvent(&SecurityEvent{
		Event:     "oauth_state_rejected",
		UserID:    userID,
		Platform:  platform,
		IPAddress: ip,
		Reason:    reason,
	})
}

// LogConnected records a newly stored or reconnected ad account.
func (l *SecurityLogger) LogConnected(userID, platform, connectionID string, reconnect bool) {
	event := "connection_created"
	if reconnect {
		event = "connection_reconnected"
	}
	l.LogEvent(&SecurityEvent{
		Event:        event,
		UserID:       userID,
		Platform:     platform,
		ConnectionID: connectionID,
		Success:      true,
	})
}

// LogTokenRefresh records the outcome of a refresh or extend call.
func (l *SecurityLogger) LogTokenRefresh(userID, platform, connectionID string, success bool, reason string) {
	l.LogEvent(&SecurityEvent{
		Event:        "token_refresh",
		UserID:       userID,
		Platform:     platform,
		ConnectionID: connectionID,
		Success:      success,
		Reason:       reason,
	})
}

// LogReauthRequired records a connection flipping to needs_reauth.
func (l *SecurityLogger) LogReauthRequired(userID, platform, connectionID, reason string) {
	l.LogEvent(&SecurityEvent{
		Event:        "connection_needs_reauth",
		UserID:       userID,
		Platform:     platform,
		ConnectionID: connectionID,
		Reason:       reason,
	})
}

// LogDisconnected records a user disconnect and whether provider revoke worked.
func (l *SecurityLogger) LogDisconnected(userID, platform, connectionID string, revoked bool) {
	revokedStr := "false"
	if revoked {
		revokedStr = "true"
	}
	l.LogEvent(&SecurityEvent{
		Event:        "connection_disconnected",
		UserID:       userID,
		Platform:     platform,
		ConnectionID: connectionID,
		Success:      true,
		Details:      map[string]string{"revoked": revokedStr},
	})
}

// LogCronRejected records a sweep trigger with a missing or wrong secret.
func (l *SecurityLogger) LogCronRejected(platform, ip string) {
	l.LogEvent(&SecurityEvent{
		Event:     "cron_auth_failed",
		Platform:  platform,
		IPAddress: ip,
		Reason:    "invalid cron credentials",
	})
}

// SanitizeToken keeps the first and last four characters of a token.
func SanitizeToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 12 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// SanitizeUserID masks the middle of a user id.
func SanitizeUserID(userID string) string {
	if userID == "" {
		return ""
	}
	if len(userID) <= 8 {
		return "***"
	}
	return userID[:4] + "..." + userID[len(userID)-4:]
}

var sensitiveErrorPatterns = []string{
	"password",
	"secret",
	"token",
	"key",
	"bearer",
	"authorization",
	"cookie",
}

// SanitizeError replaces messages that may quote a credential with a generic text.
func SanitizeError(msg string) string {
	lower := strings.ToLower(msg)
	for _, pattern := range sensitiveErrorPatterns {
		if strings.Contains(lower, pattern) {
			return "credential error"
		}
	}
	return truncateString(msg, 200)
}

var sensitiveKeys = map[string]bool{
	"access_token":  true,
	"refresh_token": true,
	"token":         true,
	"code":          true,
	"state":         true,
	"secret":        true,
	"client_secret": true,
	"authorization": true,
	"cookie":        true,
}

// SanitizeValue masks value when key names a credential.
func SanitizeValue(key, value string) string {
	if sensitiveKeys[strings.ToLower(key)] {
		return SanitizeToken(value)
	}
	return truncateString(value, 200)
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
