// Adlink - Ad Platform Connection Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlink

package providers

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/adlink/internal/logging"
	"github.com/tomtom215/adlink/internal/models"
)

// tiktokOK is the envelope code of a successful Business API call.
const tiktokOK = 0

// tiktokEnvelope wraps every TikTok Business API response. HTTP status is
// usually 200 even on failure; the code field carries the outcome.
type tiktokEnvelope struct {
	Code      int             `json:"code"`
	Message   string          `json:"message"`
	RequestID string          `json:"request_id"`
	Data      json.RawMessage `json:"data"`
}

type tiktokTokenData struct {
	AccessToken           string `json:"access_token"`
	RefreshToken          string `json:"refresh_token"`
	ExpiresIn             int64  `json:"expires_in"`
	RefreshTokenExpiresIn int64  `json:"refresh_token_expires_in"`
}

// TikTokClient implements Client for the TikTok Business (Marketing) API.
//
// Access tokens live for 24 hours. Every refresh returns a new refresh
// token and invalidates the old one, so the caller must persist the
// returned pair before using it.
type TikTokClient struct {
	api      apiClient
	authURL  string
	apiBase  string
	appID    string
	secret   string
	redirect string
	timeout  time.Duration
}

// NewTikTokClient creates a TikTok Ads client. AuthURL is the portal
// consent page; APIBaseURL and APIVersion address open_api.
func NewTikTokClient(cfg Config) *TikTokClient {
	return &TikTokClient{
		api: apiClient{
			platform: models.PlatformTikTokAds,
			http:     cfg.httpClient(),
			decode:   decodeTikTokError,
		},
		authURL:  cfg.AuthURL,
		apiBase:  joinURL(cfg.APIBaseURL, cfg.APIVersion),
		appID:    cfg.ClientID,
		secret:   cfg.ClientSecret,
		redirect: cfg.RedirectURI,
		timeout:  cfg.timeout(),
	}
}

// Platform implements Client.
func (c *TikTokClient) Platform() models.Platform { return models.PlatformTikTokAds }

// Lifecycle implements Client.
func (c *TikTokClient) Lifecycle() Lifecycle {
	return Lifecycle{Refresh: RefreshGrant, IssuesRefreshToken: true, RotatesRefreshToken: true}
}

// BuildAuthURL implements Client. TikTok takes scopes from the app
// registration, not from the request.
func (c *TikTokClient) BuildAuthURL(state string) string {
	q := url.Values{
		"app_id":       {c.appID},
		"state":        {state},
		"redirect_uri": {c.redirect},
	}
	return c.authURL + "?" + q.Encode()
}

// ExchangeCode implements Client.
func (c *TikTokClient) ExchangeCode(ctx context.Context, code string) (*models.TokenSet, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body := map[string]string{
		"app_id":    c.appID,
		"secret":    c.secret,
		"auth_code": code,
	}
	return c.token(ctx, OpExchange, "/oauth2/access_token/", body)
}

// RefreshToken implements Client. The returned refresh token replaces
// grant.RefreshToken.
func (c *TikTokClient) RefreshToken(ctx context.Context, grant Grant) (*models.TokenSet, error) {
	if grant.RefreshToken == "" {
		return nil, newError(models.PlatformTikTokAds, OpRefresh, ErrInvalidGrant, "no refresh token")
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body := map[string]string{
		"app_id":        c.appID,
		"secret":        c.secret,
		"refresh_token": grant.RefreshToken,
		"grant_type":    "refresh_token",
	}
	ts, err := c.token(ctx, OpRefresh, "/oauth2/refresh_token/", body)
	if err != nil {
		return nil, err
	}
	if ts.RefreshToken == "" {
		return nil, newError(models.PlatformTikTokAds, OpRefresh, ErrProviderResponse, "refresh response missing refresh_token")
	}
	return ts, nil
}

func (c *TikTokClient) token(ctx context.Context, op, path string, body any) (*models.TokenSet, error) {
	req, err := c.api.newRequest(ctx, http.MethodPost, c.apiBase+path, body)
	if err != nil {
		return nil, err
	}
	var data tiktokTokenData
	if err := c.call(op, req, &data); err != nil {
		return nil, err
	}
	if data.AccessToken == "" {
		return nil, newError(models.PlatformTikTokAds, op, ErrProviderResponse, "token response missing access_token")
	}
	return &models.TokenSet{
		AccessToken:           data.AccessToken,
		RefreshToken:          data.RefreshToken,
		ExpiresIn:             time.Duration(data.ExpiresIn) * time.Second,
		RefreshTokenExpiresIn: time.Duration(data.RefreshTokenExpiresIn) * time.Second,
	}, nil
}

type tiktokAdvertiserList struct {
	List []struct {
		AdvertiserID   string `json:"advertiser_id"`
		AdvertiserName string `json:"advertiser_name"`
	} `json:"list"`
}

type tiktokAdvertiserInfo struct {
	List []struct {
		AdvertiserID string `json:"advertiser_id"`
		Name         string `json:"name"`
		Currency     string `json:"currency"`
		Timezone     string `json:"timezone"`
	} `json:"list"`
}

// ListAccounts implements Client. Currency and timezone are looked up in a
// single best-effort advertiser/info call.
func (c *TikTokClient) ListAccounts(ctx context.Context, accessToken string) ([]models.CandidateAccount, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	q := url.Values{"app_id": {c.appID}, "secret": {c.secret}}
	req, err := c.api.newRequest(ctx, http.MethodGet, c.apiBase+"/oauth2/advertiser/get/?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Access-Token", accessToken)

	var listed tiktokAdvertiserList
	if err := c.call(OpListAccounts, req, &listed); err != nil {
		return nil, err
	}

	accounts := make([]models.CandidateAccount, 0, len(listed.List))
	ids := make([]string, 0, len(listed.List))
	for _, a := range listed.List {
		if a.AdvertiserID == "" {
			continue
		}
		name := a.AdvertiserName
		if name == "" {
			name = a.AdvertiserID
		}
		accounts = append(accounts, models.CandidateAccount{ExternalAccountID: a.AdvertiserID, DisplayName: name})
		ids = append(ids, a.AdvertiserID)
	}
	if len(ids) == 0 {
		return accounts, nil
	}

	info, err := c.advertiserInfo(ctx, accessToken, ids)
	if err != nil {
		logging.Ctx(ctx).Debug().Err(err).Int("advertisers", len(ids)).Msg("TikTok advertiser info unavailable")
		return accounts, nil
	}
	for i := range accounts {
		if d, ok := info[accounts[i].ExternalAccountID]; ok {
			accounts[i].Currency = d.Currency
			accounts[i].Timezone = d.Timezone
		}
	}
	return accounts, nil
}

func (c *TikTokClient) advertiserInfo(ctx context.Context, accessToken string, ids []string) (map[string]models.CandidateAccount, error) {
	encoded, err := json.Marshal(ids)
	if err != nil {
		return nil, err
	}
	q := url.Values{
		"advertiser_ids": {string(encoded)},
		"fields":         {`["advertiser_id","name","currency","timezone"]`},
	}
	req, err := c.api.newRequest(ctx, http.MethodGet, c.apiBase+"/advertiser/info/?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Access-Token", accessToken)

	var info tiktokAdvertiserInfo
	if err := c.call(OpListAccounts, req, &info); err != nil {
		return nil, err
	}
	out := make(map[string]models.CandidateAccount, len(info.List))
	for _, a := range info.List {
		out[a.AdvertiserID] = models.CandidateAccount{Currency: a.Currency, Timezone: a.Timezone}
	}
	return out, nil
}

// RevokeToken implements Client.
func (c *TikTokClient) RevokeToken(ctx context.Context, accessToken string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body := map[string]string{
		"app_id":       c.appID,
		"secret":       c.secret,
		"access_token": accessToken,
	}
	req, err := c.api.newRequest(ctx, http.MethodPost, c.apiBase+"/oauth2/revoke_token/", body)
	if err != nil {
		return err
	}
	return c.call(OpRevoke, req, nil)
}

// call performs req and unwraps the envelope into out.
func (c *TikTokClient) call(op string, req *http.Request, out any) error {
	var env tiktokEnvelope
	if err := c.api.do(op, req, &env); err != nil {
		return err
	}
	if env.Code != tiktokOK {
		e := newError(models.PlatformTikTokAds, op, tiktokKind(env.Code), env.Message)
		e.Code = strconv.Itoa(env.Code)
		return e
	}
	if out == nil {
		return nil
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return newError(models.PlatformTikTokAds, op, ErrProviderResponse, "response missing data")
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		e := newError(models.PlatformTikTokAds, op, ErrProviderResponse, "malformed response data")
		e.Err = err
		return e
	}
	return nil
}

// tiktokKind classifies Business API envelope codes.
//
//	40100        rate limited
//	40102-40110  auth code or token invalid, expired or revoked
//	5xxxx        platform-side failure
func tiktokKind(code int) error {
	switch {
	case code == 40100:
		return ErrTransient
	case code >= 40101 && code <= 40110:
		return ErrInvalidGrant
	case code >= 50000 && code < 60000:
		return ErrTransient
	default:
		return ErrProviderResponse
	}
}

func decodeTikTokError(status int, body []byte) *Error {
	var env tiktokEnvelope
	if err := json.Unmarshal(body, &env); err != nil || env.Code == tiktokOK {
		return nil
	}
	return &Error{Kind: tiktokKind(env.Code), Code: strconv.Itoa(env.Code), Message: env.Message}
}
