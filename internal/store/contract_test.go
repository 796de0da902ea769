// Adlink - Ad Platform Connection Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlink

package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/adlink/internal/models"
)

// Shared behaviour every Store backend must satisfy. Backend test files call
// runStoreContract with a constructor for a fresh, empty store.

var contractBase = time.Now().UTC().Truncate(time.Second)

func newTestConnection(id, userID string, p models.Platform, ext string, expiresIn time.Duration) *models.Connection {
	c := &models.Connection{
		ID:                     id,
		UserID:                 userID,
		Platform:               p,
		ExternalAccountID:      ext,
		AccountDisplayName:     models.StringPtr("Account " + ext),
		AccessTokenCiphertext:  "at-" + id,
		RefreshTokenCiphertext: models.StringPtr("rt-" + id),
		Status:                 models.StatusActive,
		CreatedAt:              contractBase,
		UpdatedAt:              contractBase,
	}
	if expiresIn != 0 {
		exp := contractBase.Add(expiresIn)
		c.TokenExpiresAt = &exp
	}
	return c
}

func newTestPending(id, userID string, p models.Platform) *models.PendingConnection {
	return &models.PendingConnection{
		ID:                     id,
		UserID:                 userID,
		Platform:               p,
		AccessTokenCiphertext:  "at-" + id,
		RefreshTokenCiphertext: models.StringPtr("rt-" + id),
		CandidateAccounts: []models.CandidateAccount{
			{ExternalAccountID: "111", DisplayName: "One", Currency: "USD"},
			{ExternalAccountID: "222", DisplayName: "Two", Currency: "EUR"},
			{ExternalAccountID: "333", DisplayName: "Three"},
		},
		CreatedAt: contractBase,
		ExpiresAt: contractBase.Add(models.DefaultPendingTTL),
	}
}

func runStoreContract(t *testing.T, open func(t *testing.T) Store) {
	t.Helper()

	t.Run("ConnectionRoundTrip", func(t *testing.T) {
		testConnectionRoundTrip(t, open(t))
	})
	t.Run("DuplicateConnection", func(t *testing.T) {
		testDuplicateConnection(t, open(t))
	})
	t.Run("OwnerScoping", func(t *testing.T) {
		testOwnerScoping(t, open(t))
	})
	t.Run("UpdateTokens", func(t *testing.T) {
		testUpdateTokens(t, open(t))
	})
	t.Run("StatusAndDelete", func(t *testing.T) {
		testStatusAndDelete(t, open(t))
	})
	t.Run("ListExpiring", func(t *testing.T) {
		testListExpiring(t, open(t))
	})
	t.Run("PendingLifecycle", func(t *testing.T) {
		testPendingLifecycle(t, open(t))
	})
	t.Run("ConcurrentClaim", func(t *testing.T) {
		testConcurrentClaim(t, open(t))
	})
	t.Run("DeleteExpiredPending", func(t *testing.T) {
		testDeleteExpiredPending(t, open(t))
	})
}

// ========================================
// Connections
// ========================================

func testConnectionRoundTrip(t *testing.T, s Store) {
	ctx := context.Background()
	c := newTestConnection("c1", "u1", models.PlatformGoogleAds, "1234567890", time.Hour)
	if err := s.CreateConnection(ctx, c); err != nil {
		t.Fatalf("CreateConnection: %v", err)
	}

	got, err := s.GetConnection(ctx, "u1", "c1")
	if err != nil {
		t.Fatalf("GetConnection: %v", err)
	}
	if got.ExternalAccountID != "1234567890" || got.Platform != models.PlatformGoogleAds {
		t.Errorf("got %+v", got)
	}
	if got.AccessTokenCiphertext != "at-c1" || got.RefreshTokenCiphertext == nil || *got.RefreshTokenCiphertext != "rt-c1" {
		t.Errorf("ciphertexts not preserved: %q %v", got.AccessTokenCiphertext, got.RefreshTokenCiphertext)
	}
	if got.TokenExpiresAt == nil || !got.TokenExpiresAt.Equal(contractBase.Add(time.Hour)) {
		t.Errorf("TokenExpiresAt = %v", got.TokenExpiresAt)
	}
	if got.AccountDisplayName == nil || *got.AccountDisplayName != "Account 1234567890" {
		t.Errorf("AccountDisplayName = %v", got.AccountDisplayName)
	}

	found, err := s.FindConnection(ctx, "u1", models.PlatformGoogleAds, "1234567890")
	if err != nil {
		t.Fatalf("FindConnection: %v", err)
	}
	if found.ID != "c1" {
		t.Errorf("FindConnection id = %q", found.ID)
	}
	if _, err := s.FindConnection(ctx, "u1", models.PlatformMetaAds, "1234567890"); !errors.Is(err, ErrNotFound) {
		t.Errorf("FindConnection other platform err = %v, want ErrNotFound", err)
	}

	c2 := newTestConnection("c2", "u1", models.PlatformMetaAds, "555", 0)
	c2.CreatedAt = contractBase.Add(time.Minute)
	if err := s.CreateConnection(ctx, c2); err != nil {
		t.Fatalf("CreateConnection c2: %v", err)
	}
	list, err := s.ListConnections(ctx, "u1")
	if err != nil {
		t.Fatalf("ListConnections: %v", err)
	}
	if len(list) != 2 || list[0].ID != "c1" || list[1].ID != "c2" {
		t.Fatalf("ListConnections = %v", connectionIDs(list))
	}
	if list[1].TokenExpiresAt != nil {
		t.Errorf("null expiry came back as %v", list[1].TokenExpiresAt)
	}
}

func testDuplicateConnection(t *testing.T, s Store) {
	ctx := context.Background()
	if err := s.CreateConnection(ctx, newTestConnection("c1", "u1", models.PlatformMetaAds, "222", time.Hour)); err != nil {
		t.Fatalf("CreateConnection: %v", err)
	}
	err := s.CreateConnection(ctx, newTestConnection("c2", "u1", models.PlatformMetaAds, "222", time.Hour))
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("second CreateConnection err = %v, want ErrDuplicate", err)
	}

	// Same account for another user or platform is a different connection.
	if err := s.CreateConnection(ctx, newTestConnection("c3", "u2", models.PlatformMetaAds, "222", time.Hour)); err != nil {
		t.Errorf("other user: %v", err)
	}
	if err := s.CreateConnection(ctx, newTestConnection("c4", "u1", models.PlatformTikTokAds, "222", time.Hour)); err != nil {
		t.Errorf("other platform: %v", err)
	}
}

func testOwnerScoping(t *testing.T, s Store) {
	ctx := context.Background()
	if err := s.CreateConnection(ctx, newTestConnection("c1", "owner", models.PlatformGoogleAds, "1", time.Hour)); err != nil {
		t.Fatalf("CreateConnection: %v", err)
	}

	if _, err := s.GetConnection(ctx, "intruder", "c1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetConnection err = %v, want ErrNotFound", err)
	}
	if err := s.UpdateTokens(ctx, "intruder", "c1", TokenUpdate{AccessTokenCiphertext: "x"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateTokens err = %v, want ErrNotFound", err)
	}
	if err := s.SetStatus(ctx, "intruder", "c1", models.StatusNeedsReauth, contractBase); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetStatus err = %v, want ErrNotFound", err)
	}
	if err := s.DeleteConnection(ctx, "intruder", "c1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteConnection err = %v, want ErrNotFound", err)
	}
	list, err := s.ListConnections(ctx, "intruder")
	if err != nil {
		t.Fatalf("ListConnections: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("intruder sees %d connections", len(list))
	}

	got, err := s.GetConnection(ctx, "owner", "c1")
	if err != nil {
		t.Fatalf("owner GetConnection: %v", err)
	}
	if got.AccessTokenCiphertext != "at-c1" || got.Status != models.StatusActive {
		t.Errorf("row changed by another user: %+v", got)
	}
}

func testUpdateTokens(t *testing.T, s Store) {
	ctx := context.Background()
	if err := s.CreateConnection(ctx, newTestConnection("c1", "u1", models.PlatformTikTokAds, "7001", time.Hour)); err != nil {
		t.Fatalf("CreateConnection: %v", err)
	}

	// Nil refresh/display name keep the stored values.
	exp := contractBase.Add(24 * time.Hour)
	at := contractBase.Add(time.Minute)
	err := s.UpdateTokens(ctx, "u1", "c1", TokenUpdate{
		AccessTokenCiphertext: "at-new",
		TokenExpiresAt:        &exp,
		UpdatedAt:             at,
	})
	if err != nil {
		t.Fatalf("UpdateTokens: %v", err)
	}
	got, err := s.GetConnection(ctx, "u1", "c1")
	if err != nil {
		t.Fatalf("GetConnection: %v", err)
	}
	if got.AccessTokenCiphertext != "at-new" {
		t.Errorf("access = %q", got.AccessTokenCiphertext)
	}
	if got.RefreshTokenCiphertext == nil || *got.RefreshTokenCiphertext != "rt-c1" {
		t.Errorf("refresh should be kept, got %v", got.RefreshTokenCiphertext)
	}
	if got.AccountDisplayName == nil || *got.AccountDisplayName != "Account 7001" {
		t.Errorf("display name should be kept, got %v", got.AccountDisplayName)
	}
	if got.TokenExpiresAt == nil || !got.TokenExpiresAt.Equal(exp) {
		t.Errorf("expiry = %v, want %v", got.TokenExpiresAt, exp)
	}
	if !got.UpdatedAt.Equal(at) {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, at)
	}

	// Rotation plus reactivation; nil expiry clears it.
	if err := s.SetStatus(ctx, "u1", "c1", models.StatusNeedsReauth, at); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	rotated := "rt-rotated"
	name := "Renamed"
	err = s.UpdateTokens(ctx, "u1", "c1", TokenUpdate{
		AccessTokenCiphertext:  "at-3",
		RefreshTokenCiphertext: &rotated,
		AccountDisplayName:     &name,
		Status:                 models.StatusActive,
		UpdatedAt:              at.Add(time.Minute),
	})
	if err != nil {
		t.Fatalf("UpdateTokens rotate: %v", err)
	}
	got, err = s.GetConnection(ctx, "u1", "c1")
	if err != nil {
		t.Fatalf("GetConnection: %v", err)
	}
	if got.RefreshTokenCiphertext == nil || *got.RefreshTokenCiphertext != rotated {
		t.Errorf("refresh = %v, want rotated", got.RefreshTokenCiphertext)
	}
	if got.AccountDisplayName == nil || *got.AccountDisplayName != name {
		t.Errorf("display name = %v", got.AccountDisplayName)
	}
	if got.Status != models.StatusActive {
		t.Errorf("status = %q", got.Status)
	}
	if got.TokenExpiresAt != nil {
		t.Errorf("expiry should be cleared, got %v", got.TokenExpiresAt)
	}

	if err := s.UpdateTokens(ctx, "u1", "missing", TokenUpdate{AccessTokenCiphertext: "x"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing id err = %v, want ErrNotFound", err)
	}
}

func testStatusAndDelete(t *testing.T, s Store) {
	ctx := context.Background()
	if err := s.CreateConnection(ctx, newTestConnection("c1", "u1", models.PlatformGoogleAds, "1", time.Hour)); err != nil {
		t.Fatalf("CreateConnection: %v", err)
	}
	if err := s.SetStatus(ctx, "u1", "c1", models.StatusNeedsReauth, contractBase.Add(time.Second)); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	got, err := s.GetConnection(ctx, "u1", "c1")
	if err != nil {
		t.Fatalf("GetConnection: %v", err)
	}
	if got.Status != models.StatusNeedsReauth {
		t.Errorf("status = %q", got.Status)
	}

	if err := s.DeleteConnection(ctx, "u1", "c1"); err != nil {
		t.Fatalf("DeleteConnection: %v", err)
	}
	if _, err := s.GetConnection(ctx, "u1", "c1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("after delete err = %v", err)
	}
	if err := s.DeleteConnection(ctx, "u1", "c1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}

	// The unique slot is free again.
	if err := s.CreateConnection(ctx, newTestConnection("c2", "u1", models.PlatformGoogleAds, "1", time.Hour)); err != nil {
		t.Errorf("reconnect after delete: %v", err)
	}
}

func testListExpiring(t *testing.T, s Store) {
	ctx := context.Background()
	conns := []*models.Connection{
		newTestConnection("t2h", "u1", models.PlatformTikTokAds, "a", 2*time.Hour),
		newTestConnection("t8h", "u1", models.PlatformTikTokAds, "b", 8*time.Hour),
		newTestConnection("t30h", "u2", models.PlatformTikTokAds, "c", 30*time.Hour),
		newTestConnection("tnull", "u2", models.PlatformTikTokAds, "d", 0),
		newTestConnection("tpast", "u3", models.PlatformTikTokAds, "e", -time.Hour),
		newTestConnection("g1h", "u1", models.PlatformGoogleAds, "f", time.Hour),
	}
	reauth := newTestConnection("treauth", "u3", models.PlatformTikTokAds, "g", time.Hour)
	reauth.Status = models.StatusNeedsReauth
	conns = append(conns, reauth)

	for _, c := range conns {
		if err := s.CreateConnection(ctx, c); err != nil {
			t.Fatalf("CreateConnection %s: %v", c.ID, err)
		}
	}

	before := contractBase.Add(6 * time.Hour)
	got, err := s.ListExpiring(ctx, models.PlatformTikTokAds, before, false)
	if err != nil {
		t.Fatalf("ListExpiring: %v", err)
	}
	if ids := connectionIDs(got); fmt.Sprint(ids) != "[tpast t2h]" {
		t.Errorf("ListExpiring = %v, want [tpast t2h]", ids)
	}

	got, err = s.ListExpiring(ctx, models.PlatformTikTokAds, before, true)
	if err != nil {
		t.Fatalf("ListExpiring with null: %v", err)
	}
	if ids := connectionIDs(got); fmt.Sprint(ids) != "[tnull tpast t2h]" {
		t.Errorf("ListExpiring with null = %v, want [tnull tpast t2h]", ids)
	}

	// Boundary: expiry exactly at the horizon is included.
	got, err = s.ListExpiring(ctx, models.PlatformTikTokAds, contractBase.Add(8*time.Hour), false)
	if err != nil {
		t.Fatalf("ListExpiring boundary: %v", err)
	}
	if ids := connectionIDs(got); fmt.Sprint(ids) != "[tpast t2h t8h]" {
		t.Errorf("ListExpiring boundary = %v", ids)
	}
}

// ========================================
// Pending connections
// ========================================

func testPendingLifecycle(t *testing.T, s Store) {
	ctx := context.Background()
	pc := newTestPending("p1", "u1", models.PlatformMetaAds)
	if err := s.CreatePending(ctx, pc); err != nil {
		t.Fatalf("CreatePending: %v", err)
	}
	if err := s.CreatePending(ctx, newTestPending("p1", "u1", models.PlatformMetaAds)); !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate CreatePending err = %v, want ErrDuplicate", err)
	}

	got, err := s.GetPending(ctx, "u1", models.PlatformMetaAds, "p1")
	if err != nil {
		t.Fatalf("GetPending: %v", err)
	}
	if len(got.CandidateAccounts) != 3 || got.CandidateAccounts[1].ExternalAccountID != "222" || got.CandidateAccounts[1].Currency != "EUR" {
		t.Errorf("candidates = %+v", got.CandidateAccounts)
	}
	if !got.ExpiresAt.Equal(pc.ExpiresAt) {
		t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, pc.ExpiresAt)
	}
	if got.RefreshTokenCiphertext == nil || *got.RefreshTokenCiphertext != "rt-p1" {
		t.Errorf("refresh ciphertext = %v", got.RefreshTokenCiphertext)
	}

	// Wrong owner or platform sees nothing and cannot claim.
	if _, err := s.GetPending(ctx, "u2", models.PlatformMetaAds, "p1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("other user GetPending err = %v", err)
	}
	if _, err := s.GetPending(ctx, "u1", models.PlatformTikTokAds, "p1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("other platform GetPending err = %v", err)
	}
	if _, err := s.ClaimPending(ctx, "u2", models.PlatformMetaAds, "p1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("other user ClaimPending err = %v", err)
	}

	claimed, err := s.ClaimPending(ctx, "u1", models.PlatformMetaAds, "p1")
	if err != nil {
		t.Fatalf("ClaimPending: %v", err)
	}
	if claimed.AccessTokenCiphertext != "at-p1" {
		t.Errorf("claimed = %+v", claimed)
	}
	if _, err := s.ClaimPending(ctx, "u1", models.PlatformMetaAds, "p1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second ClaimPending err = %v, want ErrNotFound", err)
	}
	if _, err := s.GetPending(ctx, "u1", models.PlatformMetaAds, "p1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetPending after claim err = %v", err)
	}

	if err := s.CreatePending(ctx, newTestPending("p2", "u1", models.PlatformMetaAds)); err != nil {
		t.Fatalf("CreatePending p2: %v", err)
	}
	if err := s.DeletePending(ctx, "u1", models.PlatformMetaAds, "p2"); err != nil {
		t.Errorf("DeletePending: %v", err)
	}
	if err := s.DeletePending(ctx, "u1", models.PlatformMetaAds, "p2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeletePending err = %v", err)
	}
}

func testConcurrentClaim(t *testing.T, s Store) {
	ctx := context.Background()
	if err := s.CreatePending(ctx, newTestPending("race", "u1", models.PlatformMetaAds)); err != nil {
		t.Fatalf("CreatePending: %v", err)
	}

	const workers = 8
	var (
		wg       sync.WaitGroup
		winners  atomic.Int32
		notFound atomic.Int32
		start    = make(chan struct{})
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := s.ClaimPending(ctx, "u1", models.PlatformMetaAds, "race")
			switch {
			case err == nil:
				winners.Add(1)
			case errors.Is(err, ErrNotFound):
				notFound.Add(1)
			default:
				t.Errorf("unexpected claim error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if winners.Load() != 1 {
		t.Errorf("winners = %d, want exactly 1", winners.Load())
	}
	if notFound.Load() != workers-1 {
		t.Errorf("not found = %d, want %d", notFound.Load(), workers-1)
	}
}

func testDeleteExpiredPending(t *testing.T, s Store) {
	ctx := context.Background()
	old := newTestPending("old", "u1", models.PlatformMetaAds)
	old.ExpiresAt = contractBase.Add(-time.Minute)
	fresh := newTestPending("fresh", "u1", models.PlatformMetaAds)

	for _, pc := range []*models.PendingConnection{old, fresh} {
		if err := s.CreatePending(ctx, pc); err != nil {
			t.Fatalf("CreatePending %s: %v", pc.ID, err)
		}
	}

	n, err := s.DeleteExpiredPending(ctx, contractBase)
	if err != nil {
		t.Fatalf("DeleteExpiredPending: %v", err)
	}
	if n != 1 {
		t.Errorf("removed %d, want 1", n)
	}
	if _, err := s.GetPending(ctx, "u1", models.PlatformMetaAds, "old"); !errors.Is(err, ErrNotFound) {
		t.Errorf("old pending still readable: %v", err)
	}
	if _, err := s.GetPending(ctx, "u1", models.PlatformMetaAds, "fresh"); err != nil {
		t.Errorf("fresh pending removed: %v", err)
	}
}

func connectionIDs(list []*models.Connection) []string {
	ids := make([]string, len(list))
	for i, c := range list {
		ids[i] = c.ID
	}
	return ids
}
