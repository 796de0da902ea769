// Adlink - Ad Platform Connection Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlink

package providers

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/adlink/internal/logging"
	"github.com/tomtom215/adlink/internal/metrics"
	"github.com/tomtom215/adlink/internal/models"
)

// CodeCircuitOpen is the Error.Code of calls rejected by an open circuit.
const CodeCircuitOpen = "circuit_open"

// BreakerClient wraps a Client with a circuit breaker and provider metrics.
//
// Only transient failures count against the circuit. An invalid grant is a
// healthy answer from the provider about one token, so a burst of revoked
// tokens does not open the circuit for every other connection.
//
// Circuit breaker configuration:
// - Max 3 concurrent requests in half-open state
// - 1 minute measurement window
// - 2 minute timeout before attempting recovery
// - Opens after 60% failure rate with minimum 10 requests
type BreakerClient struct {
	next Client
	cb   *gobreaker.CircuitBreaker[any]
	name string
}

// WithBreaker wraps c. Wrapping an already wrapped client returns it as is.
func WithBreaker(c Client) *BreakerClient {
	if b, ok := c.(*BreakerClient); ok {
		return b
	}
	name := "provider-" + c.Platform().String()

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= 0.6
			if shouldTrip {
				logging.Warn().Str("breaker", name).Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).Msg("[CIRCUIT BREAKER] Opening circuit")
			}
			return shouldTrip
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, ErrTransient)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr, toStr := stateToString(from), stateToString(to)
			logging.Info().Str("breaker", name).Str("from", fromStr).Str("to", toStr).
				Msg("[CIRCUIT BREAKER] State transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &BreakerClient{next: c, cb: cb, name: name}
}

// State reports the circuit state: "closed", "half-open" or "open".
func (b *BreakerClient) State() string {
	return stateToString(b.cb.State())
}

// Platform implements Client.
func (b *BreakerClient) Platform() models.Platform { return b.next.Platform() }

// Lifecycle implements Client.
func (b *BreakerClient) Lifecycle() Lifecycle { return b.next.Lifecycle() }

// BuildAuthURL implements Client. No network call is involved.
func (b *BreakerClient) BuildAuthURL(state string) string { return b.next.BuildAuthURL(state) }

// ExchangeCode implements Client.
func (b *BreakerClient) ExchangeCode(ctx context.Context, code string) (*models.TokenSet, error) {
	return castResult[models.TokenSet](b.execute(OpExchange, func() (any, error) {
		return b.next.ExchangeCode(ctx, code)
	}))
}

// RefreshToken implements Client.
func (b *BreakerClient) RefreshToken(ctx context.Context, grant Grant) (*models.TokenSet, error) {
	return castResult[models.TokenSet](b.execute(OpRefresh, func() (any, error) {
		return b.next.RefreshToken(ctx, grant)
	}))
}

// ListAccounts implements Client.
func (b *BreakerClient) ListAccounts(ctx context.Context, accessToken string) ([]models.CandidateAccount, error) {
	res, err := b.execute(OpListAccounts, func() (any, error) {
		return b.next.ListAccounts(ctx, accessToken)
	})
	if err != nil {
		return nil, err
	}
	accounts, ok := res.([]models.CandidateAccount)
	if !ok && res != nil {
		return nil, fmt.Errorf("circuit breaker: unexpected result type %T", res)
	}
	return accounts, nil
}

// RevokeToken implements Client.
func (b *BreakerClient) RevokeToken(ctx context.Context, accessToken string) error {
	_, err := b.execute(OpRevoke, func() (any, error) {
		return nil, b.next.RevokeToken(ctx, accessToken)
	})
	return err
}

// execute runs fn through the breaker and records the call.
func (b *BreakerClient) execute(op string, fn func() (any, error)) (any, error) {
	start := time.Now()
	result, err := b.cb.Execute(fn)

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
		logging.Warn().Str("breaker", b.name).Str("op", op).Msg("[CIRCUIT BREAKER] Request rejected")
		perr := &Error{
			Platform: b.next.Platform(),
			Op:       op,
			Kind:     ErrTransient,
			Code:     CodeCircuitOpen,
			Message:  "provider temporarily unavailable",
			Err:      err,
		}
		metrics.RecordProviderRequest(b.next.Platform().String(), op, Outcome(perr), time.Since(start))
		return nil, perr
	}

	if err != nil && errors.Is(err, ErrTransient) {
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
	} else {
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
	}
	metrics.RecordProviderRequest(b.next.Platform().String(), op, Outcome(err), time.Since(start))

	if err != nil {
		return nil, err
	}
	return result, nil
}

// castResult type-casts a breaker result.
func castResult[T any](result any, err error) (*T, error) {
	if err != nil {
		return nil, err
	}
	typed, ok := result.(*T)
	if !ok {
		return nil, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
