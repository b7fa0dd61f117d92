package imapkit

import (
	"context"
	"fmt"

	"github.com/emersion/go-sasl"

	"github.com/oakmoss/imapkit/internal/wire"
)

// AuthMethod selects how authenticate() proves identity to the server.
type AuthMethod string

const (
	AuthLogin   AuthMethod = "login"   // plain LOGIN command
	AuthPlain   AuthMethod = "plain"   // AUTHENTICATE PLAIN via SASL
	AuthOAuth   AuthMethod = "xoauth2" // AUTHENTICATE XOAUTH2 via SASL
	AuthSASLLogin AuthMethod = "sasl-login"
)

// TokenSource supplies a fresh OAuth2 access token for XOAUTH2
// authentication. A golang.org/x/oauth2 TokenSource does not satisfy
// this directly; the oauthtoken package adapts one (its Token().AccessToken)
// to this interface. The root package does not import x/oauth2, which
// keeps token refresh policy the caller's choice.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

func (c *Client) authenticate(ctx context.Context) error {
	switch c.opts.Auth {
	case AuthPlain:
		return c.authSASL(sasl.NewPlainClient("", c.opts.Username, c.opts.Password))
	case AuthSASLLogin:
		return c.authSASL(sasl.NewLoginClient(c.opts.Username, c.opts.Password))
	case AuthOAuth:
		if c.opts.TokenSource == nil {
			return fmt.Errorf("imapkit: xoauth2 auth requires a TokenSource")
		}
		token, err := c.opts.TokenSource.AccessToken(ctx)
		if err != nil {
			return wrapAuthErr(err)
		}
		return c.authSASL(sasl.NewXoauth2Client(c.opts.Username, token))
	case AuthLogin, "":
		return c.authLogin()
	default:
		return fmt.Errorf("%w: %s", ErrProtocolNotSupported, c.opts.Auth)
	}
}

func (c *Client) authLogin() error {
	resp, err := c.engine.Do("LOGIN", wire.Literal([]byte(c.opts.Username)), wire.Literal([]byte(c.opts.Password)))
	if err != nil {
		return wrapAuthErr(err)
	}
	if _, err := resp.Data(); err != nil {
		return wrapAuthErr(fmt.Errorf("login rejected"))
	}
	return nil
}

func (c *Client) authSASL(client sasl.Client) error {
	mechanism, initial, err := client.Start()
	if err != nil {
		return wrapAuthErr(err)
	}
	sent := false
	resp, err := c.engine.AuthExchange(mechanism, func(challenge []byte) ([]byte, error) {
		if !sent {
			sent = true
			return initial, nil
		}
		next, err := client.Next(challenge)
		if err != nil {
			return nil, err
		}
		return next, nil
	})
	if err != nil {
		return wrapAuthErr(err)
	}
	if _, err := resp.Data(); err != nil {
		return wrapAuthErr(fmt.Errorf("authenticate rejected"))
	}
	return nil
}

// wrapAuthErr classifies any authentication-path failure as ErrAuthFailed
// without including credentials in the resulting message.
func wrapAuthErr(err error) error {
	return fmt.Errorf("%w: %v", ErrAuthFailed, err)
}
