package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	retry "github.com/appleboy/go-httpretry"
	"go.uber.org/zap"
)

// Timeout configuration for token endpoint calls
const (
	tokenExchangeTimeout = 10 * time.Second
	refreshTokenTimeout  = 10 * time.Second
)

// Config identifies the client at the token endpoint.
type Config struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Client performs the authorization-code and refresh-token exchanges.
// It never retries on its own unless given a retrying HTTP client.
type Client struct {
	cfg  Config
	http *retry.Client
	log  *zap.SugaredLogger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for token requests.
func WithHTTPClient(c *retry.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithLogger sets the diagnostics logger.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(cl *Client) { cl.log = log }
}

// NewClient creates a Client. Without WithHTTPClient it uses a go-httpretry
// client with retries disabled.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	c := &Client{cfg: cfg}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = zap.NewNop().Sugar()
	}
	if c.http == nil {
		httpClient, err := retry.NewClient(retry.WithMaxRetries(0))
		if err != nil {
			return nil, fmt.Errorf("failed to create http client: %w", err)
		}
		c.http = httpClient
	}
	return c, nil
}

// ExchangeCode trades an authorization code for an access token.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*AccessToken, error) {
	ctx, cancel := context.WithTimeout(ctx, tokenExchangeTimeout)
	defer cancel()

	data := url.Values{}
	data.Set("code", code)
	data.Set("client_id", c.cfg.ClientID)
	data.Set("client_secret", c.cfg.ClientSecret)
	data.Set("grant_type", "authorization_code")
	data.Set("redirect_uri", c.cfg.RedirectURL)

	return c.post(ctx, "exchange code", data)
}

// Refresh trades a refresh token for a new access token. The result carries
// an empty RefreshToken when the provider did not rotate it.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*AccessToken, error) {
	ctx, cancel := context.WithTimeout(ctx, refreshTokenTimeout)
	defer cancel()

	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("client_id", c.cfg.ClientID)
	data.Set("client_secret", c.cfg.ClientSecret)
	data.Set("refresh_token", refreshToken)

	return c.post(ctx, "refresh token", data)
}

func (c *Client) post(ctx context.Context, op string, data url.Values) (*AccessToken, error) {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.cfg.TokenURL,
		strings.NewReader(data.Encode()),
	)
	if err != nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	c.log.Debugw("token request", "op", op, "url", c.cfg.TokenURL, "grant_type", data.Get("grant_type"))

	resp, err := c.http.DoWithContext(ctx, req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Debugw("token endpoint error", "op", op, "status", resp.StatusCode)
		return nil, newExchangeError(resp, body)
	}

	var tokenResp struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		TokenType    string `json:"token_type"`
		ExpiresIn    int64  `json:"expires_in"`
		Scope        string `json:"scope"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("failed to parse token response: %w", err)}
	}

	if err := validateTokenResponse(
		tokenResp.AccessToken,
		tokenResp.TokenType,
		tokenResp.ExpiresIn,
	); err != nil {
		return nil, fmt.Errorf("invalid token response: %w", err)
	}

	return &AccessToken{
		AccessToken:  tokenResp.AccessToken,
		ExpiresIn:    tokenResp.ExpiresIn,
		RefreshToken: tokenResp.RefreshToken,
		TokenType:    tokenResp.TokenType,
		Scope:        tokenResp.Scope,
	}, nil
}

func newExchangeError(resp *http.Response, body []byte) *ExchangeError {
	status := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if status == "" {
		status = http.StatusText(resp.StatusCode)
	}

	e := &ExchangeError{
		StatusCode: resp.StatusCode,
		Status:     status,
		Body:       body,
	}

	var errResp errorResponse
	if jsonErr := json.Unmarshal(body, &errResp); jsonErr == nil {
		e.ErrorCode = errResp.Error
		e.ErrorDescription = errResp.ErrorDescription
	}
	return e
}

// validateTokenResponse performs basic sanity checks on a token response.
func validateTokenResponse(accessToken, tokenType string, expiresIn int64) error {
	if accessToken == "" {
		return errors.New("access_token is empty")
	}

	if expiresIn < 0 {
		return fmt.Errorf("expires_in must not be negative, got: %d", expiresIn)
	}

	// Token type is optional in OAuth 2.0, but if present, should be "Bearer"
	if tokenType != "" && !strings.EqualFold(tokenType, "Bearer") {
		return fmt.Errorf("unexpected token_type: %s (expected Bearer)", tokenType)
	}

	return nil
}
