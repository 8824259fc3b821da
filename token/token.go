// Package token holds the cached access token record, its file store and the
// client that talks to the provider's token endpoint.
package token

import (
	"time"

	"golang.org/x/oauth2"
)

// AccessToken is the record persisted in the token file.
type AccessToken struct {
	AccessToken  string `json:"access_token"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	Scope        string `json:"scope,omitempty"`
	// CreatedAt is the issue instant in epoch milliseconds. Zero means "not yet stamped".
	CreatedAt int64 `json:"created_at,omitempty"`
}

// ExpiresAt returns the absolute expiry instant: created_at + expires_in.
func (t *AccessToken) ExpiresAt() time.Time {
	return time.UnixMilli(t.CreatedAt + t.ExpiresIn*1000)
}

// IsExpired reports whether now is at or past the expiry instant.
func (t *AccessToken) IsExpired(now time.Time) bool {
	return now.UnixMilli() >= t.CreatedAt+t.ExpiresIn*1000
}

// OAuth2 converts the record for use with golang.org/x/oauth2 clients.
func (t *AccessToken) OAuth2() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		Expiry:       t.ExpiresAt(),
		ExpiresIn:    t.ExpiresIn,
	}
	if tok.TokenType == "" {
		tok.TokenType = "Bearer"
	}
	return tok
}
