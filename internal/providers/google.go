// Adlink - Ad Platform Connection Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlink

package providers

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/oauth2"

	"github.com/tomtom215/adlink/internal/logging"
	"github.com/tomtom215/adlink/internal/models"
)

const defaultGoogleRevokeURL = "https://oauth2.googleapis.com/revoke"

// customerQuery fetches the descriptive fields of a directly accessible customer.
const customerQuery = "SELECT customer.id, customer.descriptive_name, customer.currency_code, customer.time_zone FROM customer LIMIT 1"

// GoogleClient implements Client for the Google Ads API.
//
// Consent requests offline access with prompt=consent so Google always
// returns a refresh token. The refresh token is stable and reused.
type GoogleClient struct {
	oauth          *oauth2.Config
	api            apiClient
	apiBase        string
	revokeURL      string
	developerToken string
	timeout        time.Duration
}

// NewGoogleClient creates a Google Ads client.
func NewGoogleClient(cfg Config) *GoogleClient {
	revokeURL := cfg.RevokeURL
	if revokeURL == "" {
		revokeURL = defaultGoogleRevokeURL
	}
	return &GoogleClient{
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
			platform: models.PlatformGoogleAds,
			http:     cfg.httpClient(),
			decode:   decodeGoogleError,
		},
		apiBase:        joinURL(cfg.APIBaseURL, cfg.APIVersion),
		revokeURL:      revokeURL,
		developerToken: cfg.DeveloperToken,
		timeout:        cfg.timeout(),
	}
}

// Platform implements Client.
func (c *GoogleClient) Platform() models.Platform { return models.PlatformGoogleAds }

// Lifecycle implements Client.
func (c *GoogleClient) Lifecycle() Lifecycle {
	return Lifecycle{Refresh: RefreshGrant, IssuesRefreshToken: true}
}

// BuildAuthURL implements Client.
func (c *GoogleClient) BuildAuthURL(state string) string {
	return c.oauth.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	)
}

// ExchangeCode implements Client.
func (c *GoogleClient) ExchangeCode(ctx context.Context, code string) (*models.TokenSet, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	tok, err := c.oauth.Exchange(c.oauthContext(ctx), code)
	if err != nil {
		return nil, fromOAuth2Error(models.PlatformGoogleAds, OpExchange, err)
	}
	if tok.AccessToken == "" {
		return nil, newError(models.PlatformGoogleAds, OpExchange, ErrProviderResponse, "token response missing access_token")
	}
	return tokenSetFromOAuth2(tok), nil
}

// RefreshToken implements Client. The stored refresh token is kept when
// Google omits one from the response.
func (c *GoogleClient) RefreshToken(ctx context.Context, grant Grant) (*models.TokenSet, error) {
	if grant.RefreshToken == "" {
		return nil, newError(models.PlatformGoogleAds, OpRefresh, ErrInvalidGrant, "no refresh token")
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	src := c.oauth.TokenSource(c.oauthContext(ctx), &oauth2.Token{RefreshToken: grant.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, fromOAuth2Error(models.PlatformGoogleAds, OpRefresh, err)
	}
	ts := tokenSetFromOAuth2(tok)
	if ts.RefreshToken == "" {
		ts.RefreshToken = grant.RefreshToken
	}
	return ts, nil
}

type googleAccessibleCustomers struct {
	ResourceNames []string `json:"resourceNames"`
}

type googleSearchResponse struct {
	Results []struct {
		Customer struct {
			ID              string `json:"id"`
			DescriptiveName string `json:"descriptiveName"`
			CurrencyCode    string `json:"currencyCode"`
			TimeZone        string `json:"timeZone"`
		} `json:"customer"`
	} `json:"results"`
}

// ListAccounts implements Client. Customer details are best effort: a
// customer whose details cannot be read is still listed by id.
func (c *GoogleClient) ListAccounts(ctx context.Context, accessToken string) ([]models.CandidateAccount, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.api.newRequest(ctx, http.MethodGet, c.apiBase+"/customers:listAccessibleCustomers", nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req, accessToken)

	var listed googleAccessibleCustomers
	if err := c.api.do(OpListAccounts, req, &listed); err != nil {
		return nil, err
	}

	accounts := make([]models.CandidateAccount, 0, len(listed.ResourceNames))
	for _, rn := range listed.ResourceNames {
		id := strings.TrimPrefix(rn, "customers/")
		if id == "" || id == rn {
			continue
		}
		account := models.CandidateAccount{ExternalAccountID: FormatGoogleCustomerID(id)}

		details, err := c.customerDetails(ctx, accessToken, id)
		if err != nil {
			logging.Ctx(ctx).Debug().Err(err).Str("customer_id", account.ExternalAccountID).
				Msg("Google Ads customer details unavailable")
		} else {
			account.DisplayName = details.DisplayName
			account.Currency = details.Currency
			account.Timezone = details.Timezone
		}
		if account.DisplayName == "" {
			account.DisplayName = account.ExternalAccountID
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

func (c *GoogleClient) customerDetails(ctx context.Context, accessToken, id string) (*models.CandidateAccount, error) {
	body := map[string]string{"query": customerQuery}
	req, err := c.api.newRequest(ctx, http.MethodPost, c.apiBase+"/customers/"+id+"/googleAds:search", body)
	if err != nil {
		return nil, err
	}
	c.authorize(req, accessToken)
	req.Header.Set("login-customer-id", id)

	var resp googleSearchResponse
	if err := c.api.do(OpListAccounts, req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, newError(models.PlatformGoogleAds, OpListAccounts, ErrProviderResponse, "customer query returned no rows")
	}
	cust := resp.Results[0].Customer
	return &models.CandidateAccount{
		DisplayName: cust.DescriptiveName,
		Currency:    cust.CurrencyCode,
		Timezone:    cust.TimeZone,
	}, nil
}

// RevokeToken implements Client.
func (c *GoogleClient) RevokeToken(ctx context.Context, accessToken string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	form := url.Values{"token": {accessToken}}
	req, err := c.api.newRequest(ctx, http.MethodPost, c.revokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	return c.api.do(OpRevoke, req, nil)
}

func (c *GoogleClient) authorize(req *http.Request, accessToken string) {
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("developer-token", c.developerToken)
}

func (c *GoogleClient) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.api.http)
}

// FormatGoogleCustomerID renders a 10-digit customer id as 123-456-7890.
// Other inputs are returned unchanged.
func FormatGoogleCustomerID(id string) string {
	digits := strings.ReplaceAll(id, "-", "")
	if len(digits) != 10 {
		return id
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return id
		}
	}
	return digits[:3] + "-" + digits[3:6] + "-" + digits[6:]
}

type googleErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// decodeGoogleError handles both the API error object and the flat RFC 6749
// shape ({"error":"invalid_token"}) used by the OAuth endpoints.
func decodeGoogleError(status int, body []byte) *Error {
	var g googleErrorBody
	if err := json.Unmarshal(body, &g); err != nil {
		var flat struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		if json.Unmarshal(body, &flat) != nil || flat.Error == "" {
			return nil
		}
		kind, ok := oauthErrorKinds[flat.Error]
		if !ok {
			kind = statusKind(status)
		}
		return &Error{Kind: kind, Code: flat.Error, Message: flat.ErrorDescription}
	}
	if g.Error.Status == "" && g.Error.Message == "" {
		return nil
	}
	e := &Error{Code: g.Error.Status, Message: g.Error.Message}
	switch g.Error.Status {
	case "UNAUTHENTICATED":
		e.Kind = ErrInvalidGrant
	case "RESOURCE_EXHAUSTED", "UNAVAILABLE", "INTERNAL", "DEADLINE_EXCEEDED":
		e.Kind = ErrTransient
	default:
		e.Kind = statusKind(status)
	}
	return e
}

func tokenSetFromOAuth2(tok *oauth2.Token) *models.TokenSet {
	ts := &models.TokenSet{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}
	if tok.ExpiresIn > 0 {
		ts.ExpiresIn = time.Duration(tok.ExpiresIn) * time.Second
	} else if !tok.Expiry.IsZero() {
		ts.ExpiresIn = time.Until(tok.Expiry).Round(time.Second)
	}
	return ts
}
