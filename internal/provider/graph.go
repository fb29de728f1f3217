// Package provider implements the Microsoft Graph calendar provider: the OAuth
// authorization-code flow, token refresh, and event creation.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"
)

const (
	// DefaultBaseURL is the Microsoft Graph v1.0 endpoint.
	DefaultBaseURL = "https://graph.microsoft.com/v1.0"

	graphTimeFormat = "2006-01-02T15:04:05"
)

// DefaultScopes are requested when none are configured.
var DefaultScopes = []string{"offline_access", "User.Read", "Calendars.ReadWrite"}

// ErrInvalidGrant is returned when the provider rejects a code or refresh token outright.
var ErrInvalidGrant = errors.New("provider rejected grant")

// Config holds the Graph client settings.
type Config struct {
	BaseURL      string
	Tenant       string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	Timeout      time.Duration

	// AuthURL and TokenURL override the Azure AD endpoint derived from Tenant.
	AuthURL  string
	TokenURL string
}

// TokenGrant is the result of a code exchange or refresh.
type TokenGrant struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64 // seconds
}

// Account identifies the remote calendar owner.
type Account struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
}

// EventRequest describes a calendar event to create. Start and End are absolute instants.
type EventRequest struct {
	Title       string
	Description string
	Start       time.Time
	End         time.Time
}

// CreatedEvent is the provider's reference to a newly created event.
type CreatedEvent struct {
	ID      string `json:"id"`
	WebLink string `json:"webLink"`
}

// APIError is a non-2xx response from Graph.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("graph returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("graph returned status %d: %s: %s", e.StatusCode, e.Code, e.Message)
}

type graphErrorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type graphDateTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type graphItemBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type graphEvent struct {
	Subject string        `json:"subject"`
	Body    graphItemBody `json:"body"`
	Start   graphDateTime `json:"start"`
	End     graphDateTime `json:"end"`
}

// GraphClient talks to Microsoft identity and Graph.
type GraphClient struct {
	oauth     *oauth2.Config
	rest      *resty.Client
	tokenHTTP *http.Client
}

// NewGraphClient creates a Graph client from cfg.
func NewGraphClient(cfg Config) *GraphClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Tenant == "" {
		cfg.Tenant = "common"
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	endpoint := microsoft.AzureADEndpoint(cfg.Tenant)
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	rest := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetTimeout(cfg.Timeout)

	return &GraphClient{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint:     endpoint,
		},
		rest:      rest,
		tokenHTTP: &http.Client{Timeout: cfg.Timeout},
	}
}

// AuthCodeURL returns the consent URL the user is sent to.
func (c *GraphClient) AuthCodeURL(state string) string {
	return c.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("response_mode", "query"))
}

// ExchangeCode trades an authorization code for a token pair.
func (c *GraphClient) ExchangeCode(ctx context.Context, code string) (*TokenGrant, error) {
	tok, err := c.oauth.Exchange(c.tokenContext(ctx), code)
	if err != nil {
		return nil, wrapTokenError("exchanging code", err)
	}
	return grantFromToken(tok), nil
}

// RefreshToken obtains a fresh access token. The returned refresh token is the
// rotated one when the provider issued a new one, otherwise the input.
func (c *GraphClient) RefreshToken(ctx context.Context, refreshToken string) (*TokenGrant, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("refreshing token: %w", ErrInvalidGrant)
	}

	src := c.oauth.TokenSource(c.tokenContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, wrapTokenError("refreshing token", err)
	}

	grant := grantFromToken(tok)
	if grant.RefreshToken == "" {
		grant.RefreshToken = refreshToken
	}
	return grant, nil
}

// GetAccount returns the profile of the token's owner.
func (c *GraphClient) GetAccount(ctx context.Context, accessToken string) (*Account, error) {
	var account Account
	var apiErr graphErrorBody

	resp, err := c.rest.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetResult(&account).
		SetError(&apiErr).
		Get("/me")
	if err != nil {
		return nil, fmt.Errorf("graph request: %w", err)
	}
	if resp.IsError() {
		return nil, newAPIError(resp.StatusCode(), apiErr)
	}

	return &account, nil
}

// CreateEvent creates an event on the user's default calendar. Instants are sent in UTC.
func (c *GraphClient) CreateEvent(ctx context.Context, accessToken string, ev EventRequest) (*CreatedEvent, error) {
	body := graphEvent{
		Subject: ev.Title,
		Body:    graphItemBody{ContentType: "text", Content: ev.Description},
		Start:   graphDateTime{DateTime: ev.Start.UTC().Format(graphTimeFormat), TimeZone: "UTC"},
		End:     graphDateTime{DateTime: ev.End.UTC().Format(graphTimeFormat), TimeZone: "UTC"},
	}

	var created CreatedEvent
	var apiErr graphErrorBody

	resp, err := c.rest.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetBody(&body).
		SetResult(&created).
		SetError(&apiErr).
		Post("/me/calendar/events")
	if err != nil {
		return nil, fmt.Errorf("graph request: %w", err)
	}
	if resp.IsError() {
		return nil, newAPIError(resp.StatusCode(), apiErr)
	}
	if created.ID == "" {
		return nil, fmt.Errorf("graph returned event without id")
	}

	return &created, nil
}

func (c *GraphClient) tokenContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.tokenHTTP)
}

func grantFromToken(tok *oauth2.Token) *TokenGrant {
	expiresIn := tok.ExpiresIn
	if expiresIn <= 0 && !tok.Expiry.IsZero() {
		expiresIn = int64(time.Until(tok.Expiry).Round(time.Second).Seconds())
	}
	return &TokenGrant{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresIn:    expiresIn,
	}
}

func wrapTokenError(op string, err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.ErrorCode == "invalid_grant" {
		return fmt.Errorf("%s: %w: %s", op, ErrInvalidGrant, re.ErrorDescription)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func newAPIError(status int, body graphErrorBody) *APIError {
	return &APIError{
		StatusCode: status,
		Code:       body.Error.Code,
		Message:    body.Error.Message,
	}
}
