// Adlink - Ad Platform Connection Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlink

package oauth

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/adlink/internal/codec"
	"github.com/tomtom215/adlink/internal/events"
	"github.com/tomtom215/adlink/internal/logging"
	"github.com/tomtom215/adlink/internal/models"
	"github.com/tomtom215/adlink/internal/providers"
	"github.com/tomtom215/adlink/internal/store"
)

// fakeClient is a scriptable providers.Client.
type fakeClient struct {
	platform  models.Platform
	lifecycle providers.Lifecycle

	mu            sync.Mutex
	tokens        models.TokenSet
	accounts      []models.CandidateAccount
	exchangeErr   error
	listErr       error
	refreshErr    error
	revokeErr     error
	refreshDelay  time.Duration
	refreshLife   time.Duration
	currentGrant  string
	seq           int
	exchangeCalls int
	refreshCalls  int
	revokeCalls   int
	usedCodes     map[string]bool

	// refreshStarted, when set, is signalled as each refresh call begins.
	refreshStarted chan struct{}
}

func newFakeClient(p models.Platform) *fakeClient {
	f := &fakeClient{
		platform:    p,
		refreshLife: time.Hour,
		usedCodes:   make(map[string]bool),
		tokens: models.TokenSet{
			AccessToken:  "access-initial",
			RefreshToken: "refresh-initial",
			ExpiresIn:    time.Hour,
		},
	}
	switch p {
	case models.PlatformGoogleAds:
		f.lifecycle = providers.Lifecycle{Refresh: providers.RefreshGrant, IssuesRefreshToken: true}
	case models.PlatformMetaAds:
		f.lifecycle = providers.Lifecycle{Refresh: providers.ExtendToken}
		f.tokens = models.TokenSet{AccessToken: "access-initial", ExpiresIn: 60 * 24 * time.Hour}
		f.refreshLife = 60 * 24 * time.Hour
	case models.PlatformTikTokAds:
		f.lifecycle = providers.Lifecycle{Refresh: providers.RefreshGrant, IssuesRefreshToken: true, RotatesRefreshToken: true}
		f.tokens.ExpiresIn = 24 * time.Hour
		f.refreshLife = 24 * time.Hour
	}
	f.currentGrant = f.tokens.RefreshToken
	if f.lifecycle.Refresh == providers.ExtendToken {
		f.currentGrant = f.tokens.AccessToken
	}
	return f
}

func (f *fakeClient) Platform() models.Platform      { return f.platform }
func (f *fakeClient) Lifecycle() providers.Lifecycle { return f.lifecycle }

func (f *fakeClient) BuildAuthURL(state string) string {
	return "https://consent.example.com/" + string(f.platform) + "?state=" + url.QueryEscape(state)
}

func (f *fakeClient) ExchangeCode(ctx context.Context, code string) (*models.TokenSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exchangeCalls++
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	if f.usedCodes[code] {
		return nil, invalidGrant(f.platform, providers.OpExchange)
	}
	f.usedCodes[code] = true
	t := f.tokens
	return &t, nil
}

// RefreshToken accepts only the most recently issued grant. Rotating
// platforms issue a new refresh token on every call. A call cancelled during
// refreshDelay fails as a transient provider error.
func (f *fakeClient) RefreshToken(ctx context.Context, grant providers.Grant) (*models.TokenSet, error) {
	if f.refreshStarted != nil {
		select {
		case f.refreshStarted <- struct{}{}:
		default:
		}
	}
	if f.refreshDelay > 0 {
		select {
		case <-time.After(f.refreshDelay):
		case <-ctx.Done():
			return nil, transientErr(f.platform, providers.OpRefresh)
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshCalls++
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}

	presented := grant.RefreshToken
	if f.lifecycle.Refresh == providers.ExtendToken {
		presented = grant.AccessToken
	}
	if presented != f.currentGrant {
		return nil, invalidGrant(f.platform, providers.OpRefresh)
	}

	f.seq++
	out := &models.TokenSet{
		AccessToken: fmt.Sprintf("access-%d", f.seq),
		ExpiresIn:   f.refreshLife,
	}
	switch {
	case f.lifecycle.Refresh == providers.ExtendToken:
		f.currentGrant = out.AccessToken
	case f.lifecycle.RotatesRefreshToken:
		out.RefreshToken = fmt.Sprintf("refresh-%d", f.seq)
		f.currentGrant = out.RefreshToken
	}
	return out, nil
}

func (f *fakeClient) ListAccounts(ctx context.Context, accessToken string) ([]models.CandidateAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]models.CandidateAccount(nil), f.accounts...), nil
}

func (f *fakeClient) RevokeToken(ctx context.Context, accessToken string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revokeCalls++
	return f.revokeErr
}

func (f *fakeClient) calls() (exchange, refresh, revoke int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exchangeCalls, f.refreshCalls, f.revokeCalls
}

func invalidGrant(p models.Platform, op string) error {
	return &providers.Error{Platform: p, Op: op, Kind: providers.ErrInvalidGrant, Status: 400, Code: "invalid_grant"}
}

func transientErr(p models.Platform, op string) error {
	return &providers.Error{Platform: p, Op: op, Kind: providers.ErrTransient, Status: 503}
}

// fakeProviders resolves fake clients; missing platforms are disabled.
type fakeProviders map[models.Platform]providers.Client

func (f fakeProviders) Get(p models.Platform) (providers.Client, error) {
	if c, ok := f[p]; ok {
		return c, nil
	}
	return nil, providers.ErrPlatformDisabled
}

// testClock is a settable clock.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingPublisher) Publish(ctx context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

func (r *recordingPublisher) types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Type, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

// syncBuffer is a bytes.Buffer safe for concurrent log writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type harness struct {
	svc       *Service
	store     *store.MemoryStore
	codec     *codec.Codec
	clock     *testClock
	publisher *recordingPublisher
	security  *syncBuffer
	google    *fakeClient
	meta      *fakeClient
	tiktok    *fakeClient
}

var testEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newHarness(t *testing.T) *harness {
	t.Helper()
	key, err := codec.GenerateMasterKey()
	if err != nil {
		t.Fatalf("GenerateMasterKey: %v", err)
	}
	c, err := codec.New(codec.Config{MasterKey: key})
	if err != nil {
		t.Fatalf("codec.New: %v", err)
	}

	h := &harness{
		store:     store.NewMemoryStore(),
		codec:     c,
		clock:     &testClock{t: testEpoch},
		publisher: &recordingPublisher{},
		security:  &syncBuffer{},
		google:    newFakeClient(models.PlatformGoogleAds),
		meta:      newFakeClient(models.PlatformMetaAds),
		tiktok:    newFakeClient(models.PlatformTikTokAds),
	}
	h.svc, err = NewService(Deps{
		Codec: c,
		Providers: fakeProviders{
			models.PlatformGoogleAds: h.google,
			models.PlatformMetaAds:   h.meta,
			models.PlatformTikTokAds: h.tiktok,
		},
		Store:     h.store,
		Publisher: h.publisher,
		Security:  logging.NewSecurityLoggerWithLogger(logging.NewTestLogger(h.security)),
		Now:       h.clock.Now,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return h
}

// connectFlow runs initiate and callback for userID with a fresh code.
func (h *harness) connectFlow(t *testing.T, userID string, p models.Platform, code string) (*CallbackResult, error) {
	t.Helper()
	ctx := context.Background()
	started, err := h.svc.Initiate(ctx, userID, p)
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	return h.svc.Callback(ctx, CallbackRequest{
		UserID:        userID,
		Platform:      p,
		Code:          code,
		ReturnedState: stateFromURL(t, started.RedirectURL),
		StateToken:    started.StateToken,
	})
}

func stateFromURL(t *testing.T, raw string) string {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse redirect URL: %v", err)
	}
	return u.Query().Get("state")
}

// seedConnection stores an encrypted connection directly.
func (h *harness) seedConnection(t *testing.T, id, userID string, p models.Platform, access, refresh string, expiresAt *time.Time) *models.Connection {
	t.Helper()
	accessCT, err := h.codec.EncryptString(access)
	if err != nil {
		t.Fatalf("EncryptString: %v", err)
	}
	c := &models.Connection{
		ID:                    id,
		UserID:                userID,
		Platform:              p,
		ExternalAccountID:     "ext-" + id,
		AccessTokenCiphertext: accessCT,
		TokenExpiresAt:        expiresAt,
		Status:                models.StatusActive,
		CreatedAt:             h.clock.Now(),
		UpdatedAt:             h.clock.Now(),
	}
	if refresh != "" {
		refreshCT, err := h.codec.EncryptString(refresh)
		if err != nil {
			t.Fatalf("EncryptString: %v", err)
		}
		c.RefreshTokenCiphertext = &refreshCT
	}
	if err := h.store.CreateConnection(context.Background(), c); err != nil {
		t.Fatalf("CreateConnection: %v", err)
	}
	return c
}

func (h *harness) connection(t *testing.T, userID, id string) *models.Connection {
	t.Helper()
	c, err := h.store.GetConnection(context.Background(), userID, id)
	if err != nil {
		t.Fatalf("GetConnection(%s): %v", id, err)
	}
	return c
}

func (h *harness) decrypt(t *testing.T, ct string) string {
	t.Helper()
	pt, err := h.codec.DecryptString(ct)
	if err != nil {
		t.Fatalf("DecryptString: %v", err)
	}
	return pt
}
