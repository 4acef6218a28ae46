package clients

import (
	"context"
	"errors"
	"net/http"

	"chamada/internal/model"
)

type SessionClient struct {
	t *transport
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

// Login exchanges credentials for a session token and stores it.
func (c *SessionClient) Login(ctx context.Context, email, password string) (model.User, error) {
	const op = "session.login"
	resp, err := c.t.call(ctx, request{
		op:        op,
		method:    http.MethodPost,
		path:      "/auth/login",
		body:      loginRequest{Email: email, Password: password},
		anonymous: true,
	})
	if err != nil {
		return model.User{}, err
	}
	payload, err := decodeOne[loginResponse](op, resp.status, resp.body)
	if err != nil {
		return model.User{}, err
	}
	if payload.Token == "" {
		return model.User{}, &DecodeError{Op: op, Reason: "missing token"}
	}
	if c.t.tokens == nil {
		return model.User{}, errors.New("no token store configured")
	}
	if err := c.t.tokens.Save(ctx, payload.Token); err != nil {
		return model.User{}, err
	}
	return payload.User, nil
}

// Logout forgets the stored token. The backend keeps no session state to end.
func (c *SessionClient) Logout(ctx context.Context) error {
	if c.t.tokens == nil {
		return nil
	}
	return c.t.tokens.Clear(ctx)
}

func (c *SessionClient) Me(ctx context.Context) (model.User, error) {
	const op = "session.me"
	resp, err := c.t.call(ctx, request{op: op, method: http.MethodGet, path: "/auth/me"})
	if err != nil {
		return model.User{}, err
	}
	return decodeOne[model.User](op, resp.status, resp.body)
}
