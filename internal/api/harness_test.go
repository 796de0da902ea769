// Adlink - Ad Platform Connection Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlink

package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/adlink/internal/auth"
	"github.com/tomtom215/adlink/internal/codec"
	"github.com/tomtom215/adlink/internal/config"
	"github.com/tomtom215/adlink/internal/logging"
	"github.com/tomtom215/adlink/internal/models"
	"github.com/tomtom215/adlink/internal/oauth"
	"github.com/tomtom215/adlink/internal/providers"
	"github.com/tomtom215/adlink/internal/scheduler"
	"github.com/tomtom215/adlink/internal/store"
)

const testSessionSecret = "this_is_a_very_long_session_secret_for_tests"

// stubClient is a minimal providers.Client. Codes are single-use.
type stubClient struct {
	platform  models.Platform
	lifecycle providers.Lifecycle

	mu          sync.Mutex
	accounts    []models.CandidateAccount
	exchangeErr error
	refreshErr  error
	exchanges   int
	usedCodes   map[string]bool
}

func newStubClient(p models.Platform, accounts ...models.CandidateAccount) *stubClient {
	lc := providers.Lifecycle{Refresh: providers.RefreshGrant, IssuesRefreshToken: true}
	switch p {
	case models.PlatformMetaAds:
		lc = providers.Lifecycle{Refresh: providers.ExtendToken}
	case models.PlatformTikTokAds:
		lc.RotatesRefreshToken = true
	}
	return &stubClient{platform: p, lifecycle: lc, accounts: accounts, usedCodes: map[string]bool{}}
}

func (s *stubClient) Platform() models.Platform      { return s.platform }
func (s *stubClient) Lifecycle() providers.Lifecycle { return s.lifecycle }

func (s *stubClient) BuildAuthURL(state string) string {
	return "https://consent.example.com/" + string(s.platform) + "?state=" + url.QueryEscape(state)
}

func (s *stubClient) ExchangeCode(ctx context.Context, code string) (*models.TokenSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exchanges++
	if s.exchangeErr != nil {
		return nil, s.exchangeErr
	}
	if s.usedCodes[code] {
		return nil, &providers.Error{Platform: s.platform, Op: providers.OpExchange, Kind: providers.ErrInvalidGrant, Status: 400}
	}
	s.usedCodes[code] = true
	return &models.TokenSet{AccessToken: "access-" + code, RefreshToken: "refresh-" + code, ExpiresIn: time.Hour}, nil
}

func (s *stubClient) RefreshToken(ctx context.Context, grant providers.Grant) (*models.TokenSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refreshErr != nil {
		return nil, s.refreshErr
	}
	return &models.TokenSet{AccessToken: "access-refreshed", ExpiresIn: 2 * time.Hour}, nil
}

func (s *stubClient) ListAccounts(ctx context.Context, accessToken string) ([]models.CandidateAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.CandidateAccount(nil), s.accounts...), nil
}

func (s *stubClient) RevokeToken(ctx context.Context, accessToken string) error { return nil }

func (s *stubClient) exchangeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exchanges
}

type stubProviders map[models.Platform]providers.Client

func (s stubProviders) Get(p models.Platform) (providers.Client, error) {
	if c, ok := s[p]; ok {
		return c, nil
	}
	return nil, providers.ErrPlatformDisabled
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(ctx context.Context) error { return p.err }

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type server struct {
	handler  http.Handler
	cfg      *config.Config
	sessions *auth.SessionManager
	store    *store.MemoryStore
	clock    *clock
	security *bytes.Buffer
	google   *stubClient
	meta     *stubClient
	tiktok   *stubClient
}

type serverOption func(*config.Config)

func production(cronSecret string) serverOption {
	return func(c *config.Config) {
		c.Server.Environment = "production"
		c.Security.CronSecret = cronSecret
	}
}

func newServer(t *testing.T, opts ...serverOption) *server {
	t.Helper()
	return newServerWithPinger(t, stubPinger{}, opts...)
}

func newServerWithPinger(t *testing.T, pinger Pinger, opts ...serverOption) *server {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{Environment: "development"},
		Security: config.SecurityConfig{
			SessionSecret:     testSessionSecret,
			SessionCookieName: "session",
			CORSOrigins:       []string{"https://dashboard.example.com"},
			RateLimitDisabled: true,
		},
		Redirects: config.RedirectConfig{
			DashboardURL:     "https://dashboard.example.com/integrations",
			SelectAccountURL: "https://dashboard.example.com/integrations/select",
		},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	key, err := codec.GenerateMasterKey()
	if err != nil {
		t.Fatalf("GenerateMasterKey: %v", err)
	}
	c, err := codec.New(codec.Config{MasterKey: key})
	if err != nil {
		t.Fatalf("codec.New: %v", err)
	}

	s := &server{
		cfg:      cfg,
		store:    store.NewMemoryStore(),
		clock:    &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		security: &bytes.Buffer{},
		google:   newStubClient(models.PlatformGoogleAds, models.CandidateAccount{ExternalAccountID: "123-456-7890", DisplayName: "Acme"}),
		meta: newStubClient(models.PlatformMetaAds,
			models.CandidateAccount{ExternalAccountID: "act_1", DisplayName: "One"},
			models.CandidateAccount{ExternalAccountID: "act_2", DisplayName: "Two"},
			models.CandidateAccount{ExternalAccountID: "act_3", DisplayName: "Three"},
		),
		tiktok: newStubClient(models.PlatformTikTokAds, models.CandidateAccount{ExternalAccountID: "tt-1", DisplayName: "Shop"}),
	}
	security := logging.NewSecurityLoggerWithLogger(logging.NewTestLogger(s.security))

	svc, err := oauth.NewService(oauth.Deps{
		Codec: c,
		Providers: stubProviders{
			models.PlatformGoogleAds: s.google,
			models.PlatformMetaAds:   s.meta,
			models.PlatformTikTokAds: s.tiktok,
		},
		Store:    s.store,
		Security: security,
		Now:      s.clock.Now,
	})
	if err != nil {
		t.Fatalf("oauth.NewService: %v", err)
	}
	s.sessions, err = auth.NewSessionManager(testSessionSecret, "session")
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}

	h, err := NewHandler(Dependencies{
		Service:  svc,
		Sweeper:  scheduler.NewSweeper(svc, s.store, scheduler.Config{Concurrency: 2}),
		Store:    pinger,
		Sessions: s.sessions,
		Config:   cfg,
		Security: security,
	})
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	s.handler = NewRouter(h, NewLimits(MiddlewareConfigFromSecurity(&cfg.Security))).Setup()
	return s
}

func (s *server) token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := s.sessions.IssueToken(userID, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	return tok
}

// request builds a request. An empty userID sends no session.
func (s *server) request(t *testing.T, method, target, userID string, body interface{}) *http.Request {
	t.Helper()
	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rdr = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, rdr)
	if rdr != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+s.token(t, userID))
	}
	return req
}

func (s *server) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

// connect runs initiate and callback through HTTP and returns the
// callback response.
func (s *server) connect(t *testing.T, userID string, p models.Platform, code string) *httptest.ResponseRecorder {
	t.Helper()
	start := s.do(s.request(t, http.MethodGet, "/auth/"+string(p), userID, nil))
	if start.Code != http.StatusFound {
		t.Fatalf("initiate status = %d: %s", start.Code, start.Body.String())
	}
	cookie := findCookie(start.Result().Cookies(), p.StateCookieName())
	if cookie == nil {
		t.Fatal("initiate did not set the state cookie")
	}
	consent, err := url.Parse(start.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse Location: %v", err)
	}

	codeParam := "code"
	if p == models.PlatformTikTokAds {
		codeParam = "auth_code"
	}
	q := url.Values{codeParam: {code}, "state": {consent.Query().Get("state")}}
	req := s.request(t, http.MethodGet, "/auth/"+string(p)+"/callback?"+q.Encode(), userID, nil)
	req.AddCookie(cookie)
	return s.do(req)
}

func findCookie(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	decodeBody(t, rec, &resp)
	return resp
}

func location(t *testing.T, rec *httptest.ResponseRecorder) *url.URL {
	t.Helper()
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302: %s", rec.Code, rec.Body.String())
	}
	u, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse Location: %v", err)
	}
	return u
}

var errStoreDown = errors.New("store down")
