// Adlink - Ad Platform Connection Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlink

package oauth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/adlink/internal/codec"
	"github.com/tomtom215/adlink/internal/events"
	"github.com/tomtom215/adlink/internal/models"
	"github.com/tomtom215/adlink/internal/providers"
	"github.com/tomtom215/adlink/internal/store"
)

var threeMetaAccounts = []models.CandidateAccount{
	{ExternalAccountID: "act_1", DisplayName: "Brand One", Currency: "USD"},
	{ExternalAccountID: "act_2", DisplayName: "Brand Two", Currency: "EUR"},
	{ExternalAccountID: "act_3", DisplayName: "Brand Three", Currency: "GBP"},
}

// ========================================
// Initiate
// ========================================

func TestInitiate(t *testing.T) {
	h := newHarness(t)
	res, err := h.svc.Initiate(context.Background(), "user-1", models.PlatformGoogleAds)
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}

	nonce := stateFromURL(t, res.RedirectURL)
	if nonce == "" {
		t.Fatal("redirect URL carries no state")
	}
	if strings.Contains(res.StateToken, nonce) {
		t.Error("state token carries the nonce in clear")
	}
	if want := testEpoch.Add(DefaultStateTTL); !res.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", res.ExpiresAt, want)
	}

	state, err := codec.DecryptJSON[models.OAuthState](h.codec, res.StateToken)
	if err != nil {
		t.Fatalf("decrypt state: %v", err)
	}
	if state.Nonce != nonce || state.UserID != "user-1" || state.Platform != models.PlatformGoogleAds {
		t.Errorf("state = %+v", state)
	}

	again, err := h.svc.Initiate(context.Background(), "user-1", models.PlatformGoogleAds)
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if stateFromURL(t, again.RedirectURL) == nonce {
		t.Error("nonce reused across initiations")
	}
}

func TestInitiate_DisabledPlatform(t *testing.T) {
	h := newHarness(t)
	delete(h.svc.providers.(fakeProviders), models.PlatformTikTokAds)

	_, err := h.svc.Initiate(context.Background(), "user-1", models.PlatformTikTokAds)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

// ========================================
// Callback
// ========================================

func TestCallback_GoogleSingleAccount(t *testing.T) {
	h := newHarness(t)
	h.google.accounts = []models.CandidateAccount{{ExternalAccountID: "123-456-7890", DisplayName: "Acme"}}

	res, err := h.connectFlow(t, "user-1", models.PlatformGoogleAds, "code-1")
	if err != nil {
		t.Fatalf("Callback: %v", err)
	}
	if res.Kind != CallbackConnected || res.ConnectionID == "" || res.PendingID != "" {
		t.Fatalf("result = %+v, want connected", res)
	}

	conn := h.connection(t, "user-1", res.ConnectionID)
	if conn.ExternalAccountID != "123-456-7890" {
		t.Errorf("ExternalAccountID = %q", conn.ExternalAccountID)
	}
	if conn.AccountDisplayName == nil || *conn.AccountDisplayName != "Acme" {
		t.Errorf("AccountDisplayName = %v", conn.AccountDisplayName)
	}
	if conn.Status != models.StatusActive {
		t.Errorf("Status = %q", conn.Status)
	}
	if conn.AccessTokenCiphertext == "access-initial" {
		t.Fatal("access token stored in clear")
	}
	if got := h.decrypt(t, conn.AccessTokenCiphertext); got != "access-initial" {
		t.Errorf("access token = %q", got)
	}
	if !conn.HasRefreshToken() || h.decrypt(t, *conn.RefreshTokenCiphertext) != "refresh-initial" {
		t.Error("refresh token not stored")
	}
	if want := testEpoch.Add(time.Hour); conn.TokenExpiresAt == nil || !conn.TokenExpiresAt.Equal(want) {
		t.Errorf("TokenExpiresAt = %v, want %v", conn.TokenExpiresAt, want)
	}

	n, err := h.store.DeleteExpiredPending(context.Background(), testEpoch.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteExpiredPending: %v", err)
	}
	if n != 0 {
		t.Errorf("single-account connect left %d pending rows", n)
	}

	if got := h.publisher.types(); len(got) != 1 || got[0] != events.TypeConnected {
		t.Errorf("events = %v, want [connected]", got)
	}
	if !strings.Contains(h.security.String(), "connection_created") {
		t.Error("connect not recorded on the security log")
	}
}

func TestCallback_MetaMultiAccountSelection(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.meta.accounts = threeMetaAccounts

	res, err := h.connectFlow(t, "user-1", models.PlatformMetaAds, "code-1")
	if err != nil {
		t.Fatalf("Callback: %v", err)
	}
	if res.Kind != CallbackPendingSelection || res.PendingID == "" || res.ConnectionID != "" {
		t.Fatalf("result = %+v, want pending selection", res)
	}

	view, err := h.svc.GetPending(ctx, "user-1", models.PlatformMetaAds, res.PendingID)
	if err != nil {
		t.Fatalf("GetPending: %v", err)
	}
	if len(view.Accounts) != 3 {
		t.Errorf("accounts = %d, want 3", len(view.Accounts))
	}
	if want := testEpoch.Add(600 * time.Second); !view.ExpiresAt.Equal(want) {
		t.Errorf("pending ExpiresAt = %v, want %v", view.ExpiresAt, want)
	}

	connID, err := h.svc.SelectAccount(ctx, "user-1", models.PlatformMetaAds, res.PendingID, view.Accounts[1].ExternalAccountID)
	if err != nil {
		t.Fatalf("SelectAccount: %v", err)
	}
	conn := h.connection(t, "user-1", connID)
	if conn.ExternalAccountID != "act_2" || conn.AccountDisplayName == nil || *conn.AccountDisplayName != "Brand Two" {
		t.Errorf("connection = %+v", conn)
	}
	if conn.HasRefreshToken() {
		t.Error("meta connection stored a refresh token")
	}

	_, err = h.svc.SelectAccount(ctx, "user-1", models.PlatformMetaAds, res.PendingID, "act_1")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("second select err = %v, want ErrNotFound", err)
	}
	list, err := h.svc.ListConnections(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListConnections: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("connections = %d, want 1", len(list))
	}
}

func TestCallback_StateRejected(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(h *harness, req *CallbackRequest)
	}{
		{"nonce mismatch", func(h *harness, req *CallbackRequest) {
			req.ReturnedState = "forged-state"
		}},
		{"missing returned state", func(h *harness, req *CallbackRequest) {
			req.ReturnedState = ""
		}},
		{"missing state token", func(h *harness, req *CallbackRequest) {
			req.StateToken = ""
		}},
		{"tampered state token", func(h *harness, req *CallbackRequest) {
			b := []byte(req.StateToken)
			i := len(b) / 2
			if b[i] == 'A' {
				b[i] = 'B'
			} else {
				b[i] = 'A'
			}
			req.StateToken = string(b)
		}},
		{"expired state", func(h *harness, req *CallbackRequest) {
			h.clock.Advance(DefaultStateTTL)
		}},
		{"another user", func(h *harness, req *CallbackRequest) {
			req.UserID = "user-2"
		}},
		{"another platform", func(h *harness, req *CallbackRequest) {
			req.Platform = models.PlatformTikTokAds
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.google.accounts = []models.CandidateAccount{{ExternalAccountID: "1", DisplayName: "One"}}

			started, err := h.svc.Initiate(ctx, "user-1", models.PlatformGoogleAds)
			if err != nil {
				t.Fatalf("Initiate: %v", err)
			}
			req := CallbackRequest{
				UserID:        "user-1",
				Platform:      models.PlatformGoogleAds,
				Code:          "code-1",
				ReturnedState: stateFromURL(t, started.RedirectURL),
				StateToken:    started.StateToken,
				ClientIP:      "203.0.113.9",
			}
			tt.mutate(h, &req)

			_, err = h.svc.Callback(ctx, req)
			if !errors.Is(err, ErrInvalidState) {
				t.Fatalf("err = %v, want ErrInvalidState", err)
			}
			for _, c := range []*fakeClient{h.google, h.tiktok} {
				if exchange, _, _ := c.calls(); exchange != 0 {
					t.Errorf("%s exchange invoked %d times", c.platform, exchange)
				}
			}
			if !strings.Contains(h.security.String(), "oauth_state_rejected") {
				t.Error("state rejection not recorded on the security log")
			}
		})
	}
}

func TestCallback_Failures(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(h *harness)
		req     func(req *CallbackRequest)
		wantErr error
	}{
		{
			name:    "user denied consent",
			req:     func(req *CallbackRequest) { req.ProviderError = "access_denied" },
			wantErr: ErrAuthorizationDenied,
		},
		{
			name:    "missing code",
			req:     func(req *CallbackRequest) { req.Code = "" },
			wantErr: ErrTokenExchange,
		},
		{
			name:    "exchange rejected",
			setup:   func(h *harness) { h.tiktok.exchangeErr = invalidGrant(models.PlatformTikTokAds, "exchange") },
			wantErr: ErrTokenExchange,
		},
		{
			name:    "exchange transient",
			setup:   func(h *harness) { h.tiktok.exchangeErr = transientErr(models.PlatformTikTokAds, "exchange") },
			wantErr: ErrTransientProvider,
		},
		{
			name:    "no accounts",
			setup:   func(h *harness) { h.tiktok.accounts = nil },
			wantErr: ErrNoAccounts,
		},
		{
			name:    "account listing transient",
			setup:   func(h *harness) { h.tiktok.listErr = transientErr(models.PlatformTikTokAds, "list_accounts") },
			wantErr: ErrTransientProvider,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			h := newHarness(t)
			h.tiktok.accounts = []models.CandidateAccount{{ExternalAccountID: "7001", DisplayName: "Shop"}}
			if tt.setup != nil {
				tt.setup(h)
			}

			started, err := h.svc.Initiate(ctx, "user-1", models.PlatformTikTokAds)
			if err != nil {
				t.Fatalf("Initiate: %v", err)
			}
			req := CallbackRequest{
				UserID:        "user-1",
				Platform:      models.PlatformTikTokAds,
				Code:          "auth-code",
				ReturnedState: stateFromURL(t, started.RedirectURL),
				StateToken:    started.StateToken,
			}
			if tt.req != nil {
				tt.req(&req)
			}

			_, err = h.svc.Callback(ctx, req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if msg := UserMessage(err); msg == "" || strings.Contains(msg, "access-initial") {
				t.Errorf("UserMessage = %q", msg)
			}
			list, _ := h.svc.ListConnections(ctx, "user-1")
			if len(list) != 0 {
				t.Errorf("failed callback stored %d connections", len(list))
			}
		})
	}
}

func TestCallback_CodeReplay(t *testing.T) {
	h := newHarness(t)
	h.tiktok.accounts = []models.CandidateAccount{{ExternalAccountID: "7001", DisplayName: "Shop"}}

	if _, err := h.connectFlow(t, "user-1", models.PlatformTikTokAds, "code-1"); err != nil {
		t.Fatalf("first callback: %v", err)
	}
	_, err := h.connectFlow(t, "user-1", models.PlatformTikTokAds, "code-1")
	if !errors.Is(err, ErrTokenExchange) {
		t.Errorf("replayed code err = %v, want ErrTokenExchange", err)
	}
}

func TestCallback_NullExpiryUsesDefaultLifetime(t *testing.T) {
	h := newHarness(t)
	h.tiktok.accounts = []models.CandidateAccount{{ExternalAccountID: "7001"}}
	h.tiktok.tokens.ExpiresIn = 0

	res, err := h.connectFlow(t, "user-1", models.PlatformTikTokAds, "code-1")
	if err != nil {
		t.Fatalf("Callback: %v", err)
	}
	conn := h.connection(t, "user-1", res.ConnectionID)
	want := testEpoch.Add(DefaultPolicies[models.PlatformTikTokAds].DefaultTokenLifetime)
	if conn.TokenExpiresAt == nil || !conn.TokenExpiresAt.Equal(want) {
		t.Errorf("TokenExpiresAt = %v, want %v", conn.TokenExpiresAt, want)
	}
}

// ========================================
// Conflict policy
// ========================================

func TestConnect_ConflictPolicy(t *testing.T) {
	t.Run("google rejects", func(t *testing.T) {
		h := newHarness(t)
		h.google.accounts = []models.CandidateAccount{{ExternalAccountID: "123-456-7890", DisplayName: "Acme"}}
		if _, err := h.connectFlow(t, "user-1", models.PlatformGoogleAds, "code-1"); err != nil {
			t.Fatalf("first connect: %v", err)
		}
		_, err := h.connectFlow(t, "user-1", models.PlatformGoogleAds, "code-2")
		if !errors.Is(err, ErrDuplicateConnection) {
			t.Errorf("err = %v, want ErrDuplicateConnection", err)
		}
	})

	t.Run("google reconnect recovers needs_reauth", func(t *testing.T) {
		ctx := context.Background()
		h := newHarness(t)
		h.google.accounts = []models.CandidateAccount{{ExternalAccountID: "123-456-7890", DisplayName: "Acme"}}
		first, err := h.connectFlow(t, "user-1", models.PlatformGoogleAds, "code-1")
		if err != nil {
			t.Fatalf("first connect: %v", err)
		}

		h.google.refreshErr = invalidGrant(models.PlatformGoogleAds, providers.OpRefresh)
		if _, err := h.svc.Refresh(ctx, "user-1", first.ConnectionID); !errors.Is(err, ErrReauthRequired) {
			t.Fatalf("refresh err = %v, want ErrReauthRequired", err)
		}
		if conn := h.connection(t, "user-1", first.ConnectionID); conn.Status != models.StatusNeedsReauth {
			t.Fatalf("Status = %q, want needs_reauth", conn.Status)
		}

		h.google.refreshErr = nil
		h.google.tokens = models.TokenSet{AccessToken: "access-second", RefreshToken: "refresh-second", ExpiresIn: time.Hour}
		h.google.currentGrant = "refresh-second"
		second, err := h.connectFlow(t, "user-1", models.PlatformGoogleAds, "code-2")
		if err != nil {
			t.Fatalf("reconnect: %v", err)
		}
		if second.ConnectionID != first.ConnectionID || !second.Reconnect {
			t.Errorf("reconnect result = %+v, want update of %s", second, first.ConnectionID)
		}

		conn := h.connection(t, "user-1", first.ConnectionID)
		if conn.Status != models.StatusActive {
			t.Errorf("Status = %q, want active after reconnect", conn.Status)
		}
		if got := h.decrypt(t, conn.AccessTokenCiphertext); got != "access-second" {
			t.Errorf("access token = %q", got)
		}
		if _, err := h.svc.Refresh(ctx, "user-1", first.ConnectionID); err != nil {
			t.Errorf("refresh after reconnect: %v", err)
		}

		// Reconnecting the now active account is rejected again.
		if _, err := h.connectFlow(t, "user-1", models.PlatformGoogleAds, "code-3"); !errors.Is(err, ErrDuplicateConnection) {
			t.Errorf("err = %v, want ErrDuplicateConnection", err)
		}
	})

	t.Run("tiktok updates in place", func(t *testing.T) {
		h := newHarness(t)
		h.tiktok.accounts = []models.CandidateAccount{{ExternalAccountID: "7001", DisplayName: "Shop"}}
		first, err := h.connectFlow(t, "user-1", models.PlatformTikTokAds, "code-1")
		if err != nil {
			t.Fatalf("first connect: %v", err)
		}
		if err := h.store.SetStatus(context.Background(), "user-1", first.ConnectionID, models.StatusNeedsReauth, testEpoch); err != nil {
			t.Fatalf("SetStatus: %v", err)
		}

		h.tiktok.tokens = models.TokenSet{AccessToken: "access-second", RefreshToken: "refresh-second", ExpiresIn: 24 * time.Hour}
		h.tiktok.accounts = []models.CandidateAccount{{ExternalAccountID: "7001", DisplayName: "Shop Renamed"}}
		h.clock.Advance(time.Hour)
		second, err := h.connectFlow(t, "user-1", models.PlatformTikTokAds, "code-2")
		if err != nil {
			t.Fatalf("reconnect: %v", err)
		}
		if second.ConnectionID != first.ConnectionID || !second.Reconnect {
			t.Errorf("reconnect result = %+v, want update of %s", second, first.ConnectionID)
		}

		conn := h.connection(t, "user-1", first.ConnectionID)
		if conn.Status != models.StatusActive {
			t.Errorf("Status = %q, want active after reconnect", conn.Status)
		}
		if got := h.decrypt(t, conn.AccessTokenCiphertext); got != "access-second" {
			t.Errorf("access token = %q", got)
		}
		if got := h.decrypt(t, *conn.RefreshTokenCiphertext); got != "refresh-second" {
			t.Errorf("refresh token = %q", got)
		}
		if *conn.AccountDisplayName != "Shop Renamed" {
			t.Errorf("display name = %q", *conn.AccountDisplayName)
		}
	})

	t.Run("meta selection of connected account updates", func(t *testing.T) {
		ctx := context.Background()
		h := newHarness(t)
		h.meta.accounts = threeMetaAccounts
		first, err := h.connectFlow(t, "user-1", models.PlatformMetaAds, "code-1")
		if err != nil {
			t.Fatalf("callback: %v", err)
		}
		connID, err := h.svc.SelectAccount(ctx, "user-1", models.PlatformMetaAds, first.PendingID, "act_3")
		if err != nil {
			t.Fatalf("select: %v", err)
		}

		second, err := h.connectFlow(t, "user-1", models.PlatformMetaAds, "code-2")
		if err != nil {
			t.Fatalf("callback: %v", err)
		}
		again, err := h.svc.SelectAccount(ctx, "user-1", models.PlatformMetaAds, second.PendingID, "act_3")
		if err != nil {
			t.Fatalf("reselect: %v", err)
		}
		if again != connID {
			t.Errorf("reselect created %s, want update of %s", again, connID)
		}
		if _, err := h.store.GetPending(ctx, "user-1", models.PlatformMetaAds, second.PendingID); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("pending row survived reconnect: %v", err)
		}
	})
}

// ========================================
// Pending selection
// ========================================

func TestPending_TTLBoundary(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.meta.accounts = threeMetaAccounts

	res, err := h.connectFlow(t, "user-1", models.PlatformMetaAds, "code-1")
	if err != nil {
		t.Fatalf("Callback: %v", err)
	}
	expiresAt := testEpoch.Add(models.DefaultPendingTTL)

	h.clock.Set(expiresAt.Add(-time.Second))
	if _, err := h.svc.GetPending(ctx, "user-1", models.PlatformMetaAds, res.PendingID); err != nil {
		t.Fatalf("GetPending one second before expiry: %v", err)
	}

	h.clock.Set(expiresAt.Add(time.Second))
	_, err = h.svc.GetPending(ctx, "user-1", models.PlatformMetaAds, res.PendingID)
	if !errors.Is(err, ErrExpiredPendingToken) {
		t.Fatalf("GetPending one second after expiry err = %v, want ErrExpiredPendingToken", err)
	}
	if _, err := h.store.GetPending(ctx, "user-1", models.PlatformMetaAds, res.PendingID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expired pending row not removed: %v", err)
	}
}

func TestSelectAccount_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("expired", func(t *testing.T) {
		h := newHarness(t)
		h.meta.accounts = threeMetaAccounts
		res, err := h.connectFlow(t, "user-1", models.PlatformMetaAds, "code-1")
		if err != nil {
			t.Fatalf("Callback: %v", err)
		}
		h.clock.Advance(models.DefaultPendingTTL + time.Second)
		_, err = h.svc.SelectAccount(ctx, "user-1", models.PlatformMetaAds, res.PendingID, "act_1")
		if !errors.Is(err, ErrExpiredPendingToken) {
			t.Errorf("err = %v, want ErrExpiredPendingToken", err)
		}
		if _, err := h.store.GetPending(ctx, "user-1", models.PlatformMetaAds, res.PendingID); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("expired pending row not removed: %v", err)
		}
	})

	t.Run("account not offered", func(t *testing.T) {
		h := newHarness(t)
		h.meta.accounts = threeMetaAccounts
		res, err := h.connectFlow(t, "user-1", models.PlatformMetaAds, "code-1")
		if err != nil {
			t.Fatalf("Callback: %v", err)
		}
		_, err = h.svc.SelectAccount(ctx, "user-1", models.PlatformMetaAds, res.PendingID, "act_999")
		if !errors.Is(err, ErrInvalidSelection) {
			t.Errorf("err = %v, want ErrInvalidSelection", err)
		}
		list, _ := h.svc.ListConnections(ctx, "user-1")
		if len(list) != 0 {
			t.Errorf("invalid selection stored %d connections", len(list))
		}

		// The selection survives the mistake and can still be completed.
		connID, err := h.svc.SelectAccount(ctx, "user-1", models.PlatformMetaAds, res.PendingID, "act_1")
		if err != nil {
			t.Fatalf("select after invalid choice: %v", err)
		}
		if conn := h.connection(t, "user-1", connID); conn.ExternalAccountID != "act_1" {
			t.Errorf("ExternalAccountID = %q, want act_1", conn.ExternalAccountID)
		}
	})

	t.Run("another user's pending", func(t *testing.T) {
		h := newHarness(t)
		h.meta.accounts = threeMetaAccounts
		res, err := h.connectFlow(t, "user-1", models.PlatformMetaAds, "code-1")
		if err != nil {
			t.Fatalf("Callback: %v", err)
		}
		_, err = h.svc.SelectAccount(ctx, "user-2", models.PlatformMetaAds, res.PendingID, "act_1")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
		if _, err := h.svc.GetPending(ctx, "user-1", models.PlatformMetaAds, res.PendingID); err != nil {
			t.Errorf("owner lost pending row to a foreign select: %v", err)
		}
	})
}

func TestSelectAccount_ConcurrentClaims(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.meta.accounts = threeMetaAccounts
	res, err := h.connectFlow(t, "user-1", models.PlatformMetaAds, "code-1")
	if err != nil {
		t.Fatalf("Callback: %v", err)
	}

	const workers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		wins     int
		notFound int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.svc.SelectAccount(ctx, "user-1", models.PlatformMetaAds, res.PendingID, "act_1")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrNotFound):
				notFound++
			default:
				t.Errorf("unexpected err: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins != 1 || notFound != workers-1 {
		t.Errorf("wins = %d, notFound = %d; want 1 and %d", wins, notFound, workers-1)
	}
	list, _ := h.svc.ListConnections(ctx, "user-1")
	if len(list) != 1 {
		t.Errorf("connections = %d, want 1", len(list))
	}
}

// ========================================
// Disconnect and listing
// ========================================

func TestDisconnect(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		revokeErr   error
		wantRevoked bool
	}{
		{"revoke succeeds", nil, true},
		{"revoke fails", transientErr(models.PlatformGoogleAds, "revoke"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.google.revokeErr = tt.revokeErr
			exp := testEpoch.Add(time.Hour)
			h.seedConnection(t, "c1", "user-1", models.PlatformGoogleAds, "access", "refresh", &exp)

			if err := h.svc.Disconnect(ctx, "user-1", "c1"); err != nil {
				t.Fatalf("Disconnect: %v", err)
			}
			if _, _, revokes := h.google.calls(); revokes != 1 {
				t.Errorf("revoke calls = %d, want 1", revokes)
			}
			if _, err := h.store.GetConnection(ctx, "user-1", "c1"); !errors.Is(err, store.ErrNotFound) {
				t.Errorf("connection survived disconnect: %v", err)
			}
			wantRevoked := `"revoked":"false"`
			if tt.wantRevoked {
				wantRevoked = `"revoked":"true"`
			}
			if !strings.Contains(h.security.String(), wantRevoked) {
				t.Errorf("security log missing %s: %s", wantRevoked, h.security.String())
			}
			if got := h.publisher.types(); len(got) != 1 || got[0] != events.TypeDisconnected {
				t.Errorf("events = %v, want [disconnected]", got)
			}
		})
	}

	t.Run("owner scoped", func(t *testing.T) {
		h := newHarness(t)
		h.seedConnection(t, "c1", "user-1", models.PlatformGoogleAds, "access", "refresh", nil)
		if err := h.svc.Disconnect(ctx, "user-2", "c1"); !errors.Is(err, ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
		if _, _, revokes := h.google.calls(); revokes != 0 {
			t.Errorf("revoke called for a foreign connection")
		}
		h.connection(t, "user-1", "c1")
	})
}

func TestListConnections_NoTokenMaterial(t *testing.T) {
	h := newHarness(t)
	h.seedConnection(t, "c1", "user-1", models.PlatformGoogleAds, "access", "refresh", nil)
	h.seedConnection(t, "c2", "user-1", models.PlatformMetaAds, "access", "", nil)
	h.seedConnection(t, "c3", "user-2", models.PlatformMetaAds, "access", "", nil)

	list, err := h.svc.ListConnections(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("ListConnections: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("connections = %d, want 2", len(list))
	}
	for _, s := range list {
		if s.ID == "c3" {
			t.Error("listed another user's connection")
		}
	}
}

func TestGetConnection_PlatformScoped(t *testing.T) {
	h := newHarness(t)
	h.seedConnection(t, "c1", "user-1", models.PlatformGoogleAds, "access", "refresh", nil)
	ctx := context.Background()

	got, err := h.svc.GetConnection(ctx, "user-1", models.PlatformGoogleAds, "c1")
	if err != nil {
		t.Fatalf("GetConnection: %v", err)
	}
	if got.ID != "c1" || got.Platform != models.PlatformGoogleAds {
		t.Errorf("summary = %+v", got)
	}
	if _, err := h.svc.GetConnection(ctx, "user-1", models.PlatformMetaAds, "c1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("wrong platform: err = %v, want ErrNotFound", err)
	}
	if _, err := h.svc.GetConnection(ctx, "user-2", models.PlatformGoogleAds, "c1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("other user: err = %v, want ErrNotFound", err)
	}
}

func TestErrorCodes(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{newError(ErrInvalidState, models.PlatformMetaAds, "", nil), "invalid_state"},
		{reauthRequired(models.PlatformMetaAds, nil), "reauth_required"},
		{expiredPending(models.PlatformMetaAds), "pending_expired"},
		{errors.New("boom"), "internal_error"},
	}
	for _, tt := range tests {
		if got := CodeOf(tt.err); got != tt.code {
			t.Errorf("CodeOf(%v) = %q, want %q", tt.err, got, tt.code)
		}
	}
	if msg := UserMessage(internalError("", "load", errors.New("dsn=postgres://secret"))); strings.Contains(msg, "secret") {
		t.Errorf("UserMessage leaks cause: %q", msg)
	}
}
