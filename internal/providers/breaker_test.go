// Adlink - Ad Platform Connection Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlink

package providers

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/adlink/internal/metrics"
	"github.com/tomtom215/adlink/internal/models"
)

// stubClient returns err from every network call and counts calls.
type stubClient struct {
	platform models.Platform
	err      error
	calls    atomic.Int32
}

func (s *stubClient) Platform() models.Platform { return s.platform }

func (s *stubClient) Lifecycle() Lifecycle {
	return Lifecycle{Refresh: RefreshGrant, IssuesRefreshToken: true}
}

func (s *stubClient) BuildAuthURL(state string) string {
	return "https://consent.example/?state=" + state
}

func (s *stubClient) ExchangeCode(ctx context.Context, code string) (*models.TokenSet, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return &models.TokenSet{AccessToken: "at"}, nil
}

func (s *stubClient) RefreshToken(ctx context.Context, grant Grant) (*models.TokenSet, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return &models.TokenSet{AccessToken: "at2", RefreshToken: grant.RefreshToken}, nil
}

func (s *stubClient) ListAccounts(ctx context.Context, accessToken string) ([]models.CandidateAccount, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return []models.CandidateAccount{{ExternalAccountID: "1", DisplayName: "One"}}, nil
}

func (s *stubClient) RevokeToken(ctx context.Context, accessToken string) error {
	s.calls.Add(1)
	return s.err
}

// ============================================================================
// Circuit breaker behaviour
// ============================================================================

func TestBreakerClient_PassesThrough(t *testing.T) {
	stub := &stubClient{platform: models.PlatformGoogleAds}
	b := WithBreaker(stub)
	ctx := context.Background()

	if b.Platform() != models.PlatformGoogleAds {
		t.Errorf("Platform = %s", b.Platform())
	}
	if got := b.BuildAuthURL("s"); got != "https://consent.example/?state=s" {
		t.Errorf("BuildAuthURL = %q", got)
	}

	ts, err := b.ExchangeCode(ctx, "code")
	if err != nil || ts.AccessToken != "at" {
		t.Fatalf("ExchangeCode = %v, %v", ts, err)
	}
	ts, err = b.RefreshToken(ctx, Grant{RefreshToken: "rt"})
	if err != nil || ts.RefreshToken != "rt" {
		t.Fatalf("RefreshToken = %v, %v", ts, err)
	}
	accounts, err := b.ListAccounts(ctx, "at")
	if err != nil || len(accounts) != 1 {
		t.Fatalf("ListAccounts = %v, %v", accounts, err)
	}
	if err := b.RevokeToken(ctx, "at"); err != nil {
		t.Fatalf("RevokeToken: %v", err)
	}
	if stub.calls.Load() != 4 {
		t.Errorf("calls = %d, want 4", stub.calls.Load())
	}
}

func TestBreakerClient_OpensOnTransientFailures(t *testing.T) {
	stub := &stubClient{
		platform: models.PlatformTikTokAds,
		err:      newError(models.PlatformTikTokAds, OpRefresh, ErrTransient, "upstream down"),
	}
	b := WithBreaker(stub)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		_, _ = b.RefreshToken(ctx, Grant{RefreshToken: "rt"})
	}
	if b.State() != "open" {
		t.Fatalf("State = %s, want open", b.State())
	}

	before := stub.calls.Load()
	_, err := b.RefreshToken(ctx, Grant{RefreshToken: "rt"})
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("err = %v, want ErrTransient", err)
	}
	var perr *Error
	if !errors.As(err, &perr) || perr.Code != CodeCircuitOpen {
		t.Errorf("err = %v, want code %s", err, CodeCircuitOpen)
	}
	if stub.calls.Load() != before {
		t.Error("open circuit still called the provider")
	}

	if got := testutil.ToFloat64(metrics.CircuitBreakerState.WithLabelValues("provider-tiktok_ads")); got != 2 {
		t.Errorf("circuit_breaker_state = %v, want 2", got)
	}
}

func TestBreakerClient_InvalidGrantDoesNotTrip(t *testing.T) {
	stub := &stubClient{
		platform: models.PlatformMetaAds,
		err:      newError(models.PlatformMetaAds, OpRefresh, ErrInvalidGrant, "token expired"),
	}
	b := WithBreaker(stub)

	for i := 0; i < 25; i++ {
		_, err := b.RefreshToken(context.Background(), Grant{AccessToken: "at"})
		if !errors.Is(err, ErrInvalidGrant) {
			t.Fatalf("call %d: err = %v, want ErrInvalidGrant", i, err)
		}
	}
	if b.State() != "closed" {
		t.Errorf("State = %s, want closed", b.State())
	}
	if stub.calls.Load() != 25 {
		t.Errorf("calls = %d, want 25", stub.calls.Load())
	}
}

func TestBreakerClient_RecordsProviderMetrics(t *testing.T) {
	stub := &stubClient{platform: models.PlatformGoogleAds}
	b := WithBreaker(stub)

	counter := metrics.ProviderRequestsTotal.WithLabelValues("google_ads", OpRevoke, "success")
	before := testutil.ToFloat64(counter)
	if err := b.RevokeToken(context.Background(), "at"); err != nil {
		t.Fatalf("RevokeToken: %v", err)
	}
	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Errorf("provider_requests_total delta = %v, want 1", got)
	}
}

func TestWithBreaker_Idempotent(t *testing.T) {
	b := WithBreaker(&stubClient{platform: models.PlatformGoogleAds})
	if WithBreaker(b) != b {
		t.Error("wrapping a BreakerClient twice created a new breaker")
	}
}
