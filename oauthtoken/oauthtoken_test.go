package oauthtoken

import (
	"context"
	"testing"

	"golang.org/x/oauth2"
)

func TestTokenSourceAccessToken(t *testing.T) {
	ts := &TokenSource{inner: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "abc123"})}
	tok, err := ts.AccessToken(context.Background())
	if err != nil {
		t.Fatalf("AccessToken: %v", err)
	}
	if tok != "abc123" {
		t.Errorf("got %q, want %q", tok, "abc123")
	}
}
