package client

import (
	"context"
	"net/http"

	"github.com/recoread/recoread-client/internal/domain"
	domainerrors "github.com/recoread/recoread-client/internal/errors"
)

// Register creates an account and stores the issued token.
func (c *Client) Register(ctx context.Context, reg domain.Registration) (*domain.Session, error) {
	if err := c.validate.Validate(reg); err != nil {
		return nil, err
	}
	return c.startSession(ctx, "auth.register", "/auth/register", reg)
}

// Login signs in and stores the issued token.
func (c *Client) Login(ctx context.Context, creds domain.Credentials) (*domain.Session, error) {
	if err := c.validate.Validate(creds); err != nil {
		return nil, err
	}
	return c.startSession(ctx, "auth.login", "/auth/login", creds)
}

func (c *Client) startSession(ctx context.Context, op, path string, body any) (*domain.Session, error) {
	resp, err := c.do(ctx, request{op: op, method: http.MethodPost, path: path, body: body, signIn: true})
	if err != nil {
		return nil, err
	}

	var session domain.Session
	if err := resp.decode(&session); err != nil {
		return nil, err
	}
	if session.Token == "" {
		return nil, domainerrors.Internal("sign-in response carried no token")
	}
	if err := c.creds.SetToken(session.Token); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "store credential")
	}
	return &session, nil
}

// Logout forgets the stored token. The backend keeps no session state.
func (c *Client) Logout() error {
	return c.creds.Clear()
}

// Profile returns the signed-in user.
func (c *Client) Profile(ctx context.Context) (*domain.User, error) {
	resp, err := c.do(ctx, request{op: "auth.profile", method: http.MethodGet, path: "/auth/profile"})
	if err != nil {
		return nil, err
	}

	var user domain.User
	if err := resp.decode(&user); err != nil {
		return nil, err
	}
	return &user, nil
}
