// Adlink - Ad Platform Connection Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlink

package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoSession is returned when a request carries no session token.
var ErrNoSession = errors.New("no session token")

// Claims is the session token payload. The subject is the user ID.
type Claims struct {
	jwt.RegisteredClaims
}

// SessionManager validates the HS256 session tokens issued by the
// dashboard. Only the subject is used; the token must name one.
type SessionManager struct {
	secret     []byte
	cookieName string
	now        func() time.Time
}

// NewSessionManager creates a SessionManager. cookieName is the cookie
// consulted when no Authorization header is present.
func NewSessionManager(secret, cookieName string) (*SessionManager, error) {
	if secret == "" {
		return nil, fmt.Errorf("session secret is required but was empty")
	}
	return &SessionManager{
		secret:     []byte(secret),
		cookieName: cookieName,
		now:        time.Now,
	}, nil
}

// IssueToken signs a session token for userID valid for ttl. The service
// never issues sessions itself; tests and local tooling do.
func (m *SessionManager) IssueToken(userID string, ttl time.Duration) (string, error) {
	now := m.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Validate checks the signature, algorithm and time claims of tokenString
// and returns its subject.
func (m *SessionManager) Validate(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid token claims")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return claims.Subject, nil
}

// Authenticate resolves the user of r from its session token.
func (m *SessionManager) Authenticate(r *http.Request) (string, error) {
	token := TokenFromRequest(r, m.cookieName)
	if token == "" {
		return "", ErrNoSession
	}
	return m.Validate(token)
}

// TokenFromRequest returns the bearer token of r, falling back to the
// named cookie.
func TokenFromRequest(r *http.Request, cookieName string) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	if cookieName == "" {
		return ""
	}
	if c, err := r.Cookie(cookieName); err == nil {
		return c.Value
	}
	return ""
}
