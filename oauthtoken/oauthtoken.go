// Package oauthtoken supplies imapkit.TokenSource implementations for
// XOAUTH2 authentication against providers that issue IMAP access over
// OAuth2 (Gmail, Outlook/Graph). Each wraps an oauth2.TokenSource so token
// refresh follows the provider's standard flow rather than being
// reimplemented here.
package oauthtoken

import (
	"context"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/microsoft"
)

// TokenSource adapts an oauth2.TokenSource to imapkit.TokenSource's single
// AccessToken(ctx) method.
type TokenSource struct {
	inner oauth2.TokenSource
}

// AccessToken implements imapkit.TokenSource.
func (t *TokenSource) AccessToken(ctx context.Context) (string, error) {
	tok, err := t.inner.Token()
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

// GoogleConfig holds the client credentials for a Gmail XOAUTH2 source.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
}

// NewGoogleTokenSource builds a TokenSource that refreshes Gmail IMAP
// access tokens using refreshToken, obtained once via the standard
// authorization-code flow (out of scope for this package — see
// golang.org/x/oauth2/google for AuthCodeURL/Exchange).
func NewGoogleTokenSource(cfg GoogleConfig, refreshToken string) *TokenSource {
	oc := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{"https://mail.google.com/"},
	}
	src := oc.TokenSource(context.Background(), &oauth2.Token{RefreshToken: refreshToken})
	return &TokenSource{inner: oauth2.ReuseTokenSource(nil, src)}
}

// MicrosoftConfig holds the client credentials for an Outlook/Graph
// XOAUTH2 source.
type MicrosoftConfig struct {
	ClientID     string
	ClientSecret string
	TenantID     string
}

// NewMicrosoftTokenSource builds a TokenSource that refreshes Outlook IMAP
// access tokens using refreshToken.
func NewMicrosoftTokenSource(cfg MicrosoftConfig, refreshToken string) *TokenSource {
	endpoint := microsoft.AzureADEndpoint(cfg.TenantID)
	oc := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     endpoint,
		Scopes:       []string{"https://outlook.office.com/IMAP.AccessAsUser.All", "offline_access"},
	}
	src := oc.TokenSource(context.Background(), &oauth2.Token{RefreshToken: refreshToken})
	return &TokenSource{inner: oauth2.ReuseTokenSource(nil, src)}
}
