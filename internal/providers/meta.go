// Adlink - Ad Platform Connection Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlink

package providers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/tomtom215/adlink/internal/models"
)

// metaAccountPrefix is stripped from Meta ad account ids before storage.
const metaAccountPrefix = "act_"

// metaMaxPages bounds /me/adaccounts pagination.
const metaMaxPages = 20

// MetaClient implements Client for the Meta (Facebook) Marketing API.
//
// Meta issues no refresh tokens. The short-lived token from the code
// exchange is immediately upgraded to a 60-day long-lived token, and
// "refresh" extends a still-valid long-lived token into a new one. An
// expired token cannot be extended.
type MetaClient struct {
	oauth        *oauth2.Config
	api          apiClient
	graphBase    string
	clientID     string
	clientSecret string
	timeout      time.Duration
}

// NewMetaClient creates a Meta Ads client.
func NewMetaClient(cfg Config) *MetaClient {
	return &MetaClient{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		api: apiClient{
			platform: models.PlatformMetaAds,
			http:     cfg.httpClient(),
			decode:   decodeGraphError,
		},
		graphBase:    joinURL(cfg.APIBaseURL, cfg.APIVersion),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		timeout:      cfg.timeout(),
	}
}

// Platform implements Client.
func (c *MetaClient) Platform() models.Platform { return models.PlatformMetaAds }

// Lifecycle implements Client.
func (c *MetaClient) Lifecycle() Lifecycle {
	return Lifecycle{Refresh: ExtendToken}
}

// BuildAuthURL implements Client.
func (c *MetaClient) BuildAuthURL(state string) string {
	return c.oauth.AuthCodeURL(state)
}

// ExchangeCode implements Client. The returned token is already long-lived.
func (c *MetaClient) ExchangeCode(ctx context.Context, code string) (*models.TokenSet, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	tok, err := c.oauth.Exchange(context.WithValue(ctx, oauth2.HTTPClient, c.api.http), code)
	if err != nil {
		return nil, fromOAuth2Error(models.PlatformMetaAds, OpExchange, err)
	}
	if tok.AccessToken == "" {
		return nil, newError(models.PlatformMetaAds, OpExchange, ErrProviderResponse, "token response missing access_token")
	}

	ts, err := c.exchangeLongLived(ctx, OpExchange, tok.AccessToken)
	if err != nil {
		return nil, err
	}
	return ts, nil
}

// RefreshToken implements Client by extending grant.AccessToken.
func (c *MetaClient) RefreshToken(ctx context.Context, grant Grant) (*models.TokenSet, error) {
	if grant.AccessToken == "" {
		return nil, newError(models.PlatformMetaAds, OpRefresh, ErrInvalidGrant, "no access token to extend")
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.exchangeLongLived(ctx, OpRefresh, grant.AccessToken)
}

type metaTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (c *MetaClient) exchangeLongLived(ctx context.Context, op, accessToken string) (*models.TokenSet, error) {
	q := url.Values{
		"grant_type":        {"fb_exchange_token"},
		"client_id":         {c.clientID},
		"client_secret":     {c.clientSecret},
		"fb_exchange_token": {accessToken},
	}
	req, err := c.api.newRequest(ctx, http.MethodGet, c.graphBase+"/oauth/access_token?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var resp metaTokenResponse
	if err := c.api.do(op, req, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, newError(models.PlatformMetaAds, op, ErrProviderResponse, "token response missing access_token")
	}
	return &models.TokenSet{
		AccessToken: resp.AccessToken,
		ExpiresIn:   time.Duration(resp.ExpiresIn) * time.Second,
	}, nil
}

type metaAdAccountsPage struct {
	Data []struct {
		ID           string `json:"id"`
		AccountID    string `json:"account_id"`
		Name         string `json:"name"`
		Currency     string `json:"currency"`
		TimezoneName string `json:"timezone_name"`
	} `json:"data"`
	Paging struct {
		Next string `json:"next"`
	} `json:"paging"`
}

// ListAccounts implements Client. Account ids are returned without "act_".
func (c *MetaClient) ListAccounts(ctx context.Context, accessToken string) ([]models.CandidateAccount, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	q := url.Values{
		"fields":          {"account_id,name,currency,timezone_name"},
		"limit":           {"100"},
		"appsecret_proof": {c.appSecretProof(accessToken)},
	}
	next := c.graphBase + "/me/adaccounts?" + q.Encode()

	var accounts []models.CandidateAccount
	seen := make(map[string]bool)
	for page := 0; next != "" && page < metaMaxPages; page++ {
		req, err := c.api.newRequest(ctx, http.MethodGet, next, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+accessToken)

		var resp metaAdAccountsPage
		if err := c.api.do(OpListAccounts, req, &resp); err != nil {
			return nil, err
		}
		for _, a := range resp.Data {
			id := a.AccountID
			if id == "" {
				id = a.ID
			}
			id = StripMetaAccountPrefix(id)
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			name := a.Name
			if name == "" {
				name = id
			}
			accounts = append(accounts, models.CandidateAccount{
				ExternalAccountID: id,
				DisplayName:       name,
				Currency:          a.Currency,
				Timezone:          a.TimezoneName,
			})
		}
		next = resp.Paging.Next
	}
	return accounts, nil
}

// RevokeToken implements Client by deleting the app's permissions.
func (c *MetaClient) RevokeToken(ctx context.Context, accessToken string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	q := url.Values{"appsecret_proof": {c.appSecretProof(accessToken)}}
	req, err := c.api.newRequest(ctx, http.MethodDelete, c.graphBase+"/me/permissions?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	var resp struct {
		Success bool `json:"success"`
	}
	if err := c.api.do(OpRevoke, req, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return newError(models.PlatformMetaAds, OpRevoke, ErrProviderResponse, "permissions not revoked")
	}
	return nil
}

// appSecretProof signs accessToken with the app secret, as Graph API calls
// from a server are expected to.
func (c *MetaClient) appSecretProof(accessToken string) string {
	mac := hmac.New(sha256.New, []byte(c.clientSecret))
	mac.Write([]byte(accessToken))
	return hex.EncodeToString(mac.Sum(nil))
}

// StripMetaAccountPrefix removes the "act_" prefix from a Meta ad account id.
func StripMetaAccountPrefix(id string) string {
	return strings.TrimPrefix(strings.TrimSpace(id), metaAccountPrefix)
}

func decodeGraphError(status int, body []byte) *Error {
	g := parseGraphError(body)
	if g == nil {
		return nil
	}
	kind := graphKind(g.Error.Code, status)
	if kind == nil {
		kind = statusKind(status)
	}
	return &Error{Kind: kind, Code: strconv.Itoa(g.Error.Code), Message: g.Error.Message}
}
