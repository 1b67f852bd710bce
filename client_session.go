package tanglr

import (
	"context"
	"fmt"
	"net/http"

	"github.com/artyultra/tanglr-client/internal/flows"
	"github.com/artyultra/tanglr-client/internal/transport"
	"github.com/artyultra/tanglr-client/session"
)

// Login authenticates username and stores the returned session, replacing
// any previous one. Login is never refreshed or retried.
func (c *Client) Login(ctx context.Context, username, password string, opts ...CallOption) (*User, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	in := LoginInput{Username: username, Password: password}
	if err := c.validateInput(in); err != nil {
		return nil, err
	}

	resp, err := anonymous[LoginResponse](ctx, c, transport.Request{
		Method: http.MethodPost,
		Path:   "/login",
		Body:   in,
	}, opts)
	if err == nil && (resp.Token == "" || resp.RefreshToken == "") {
		err = ErrMalformedLoginResponse
	}
	if err != nil {
		c.metrics.Inc(MetricLoginFailure)
		c.auditSession(ctx, AuditLoginFailure, &sessionIdentity{username: username}, err)
		return nil, err
	}

	s := sessionFromLogin(resp)
	if s.UserID == "" || s.Username == "" {
		id, name := c.tracker.Identity(resp.Token)
		if s.UserID == "" {
			s.UserID = id
		}
		if s.Username == "" {
			s.Username = name
		}
	}
	if s.Username == "" {
		s.Username = username
	}
	s.AccessTokenExpiresAt = c.tracker.ExpiresAtMillis(resp.Token)

	c.sessionMu.Lock()
	err = c.store.Set(ctx, s)
	if err == nil {
		c.refresh.Reset()
	}
	c.sessionMu.Unlock()
	if err != nil {
		c.metrics.Inc(MetricLoginFailure)
		return nil, fmt.Errorf("store session: %w", err)
	}

	c.metrics.Inc(MetricLoginSuccess)
	c.auditSession(ctx, AuditLoginSuccess, &sessionIdentity{userID: s.UserID, username: s.Username}, nil)
	c.logger.Debug().Str("username", s.Username).Msg("logged in")
	c.observers.updated.notify(*s)

	user := resp.User
	user.ID = s.UserID
	user.Username = s.Username
	return &user, nil
}

func sessionFromLogin(resp LoginResponse) *session.Session {
	return &session.Session{
		UserID:       resp.ID,
		Username:     resp.Username,
		Email:        resp.Email,
		AvatarURL:    resp.AvatarURL,
		CoverURL:     resp.CoverURL,
		DarkMode:     resp.DarkMode,
		AccessToken:  resp.Token,
		RefreshToken: resp.RefreshToken,
	}
}

// Refresh exchanges the stored refresh token for a new access token, joining
// a refresh already in flight. On failure the session is cleared and
// ErrSessionExpired returned.
func (c *Client) Refresh(ctx context.Context) (string, error) {
	if err := c.checkOpen(); err != nil {
		return "", err
	}
	out := c.refresh.Await(ctx, "")
	return out.AccessToken, out.Err
}

// RevokeToken revokes the stored refresh token on the server and then clears
// the local session. The local session is cleared even when revocation fails;
// the revocation error is returned.
func (c *Client) RevokeToken(ctx context.Context) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	res := c.runLogout(ctx, true)
	if res.Err != nil {
		return res.Err
	}
	return res.RevokeErr
}

// Logout ends the session: the refresh token is revoked on a best-effort
// basis when configured, the store is cleared and every observer
// subscription is dropped. Logout is idempotent and never reports a
// revocation failure.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	res := c.runLogout(ctx, c.cfg.Refresh.RevokeOnLogout)
	c.observers.clear()
	return res.Err
}

func (c *Client) runLogout(ctx context.Context, revoke bool) flows.LogoutResult {
	id := c.identity(ctx)
	res := flows.RunLogout(ctx, revoke, c.logout)

	if res.RevokeErr != nil {
		c.metrics.Inc(MetricRevokeFailure)
		c.auditSession(ctx, AuditRevokeFailure, id, res.RevokeErr)
		c.logger.Warn().Err(res.RevokeErr).Msg("refresh token revocation failed")
	}
	if res.Err == nil && id != nil {
		c.metrics.Inc(MetricLogout)
		c.auditSession(ctx, AuditLogout, id, nil)
	}
	return res
}

func (c *Client) logoutDeps() flows.LogoutDeps {
	return flows.LogoutDeps{
		LoadRefreshToken: c.storedRefreshToken,
		Revoke:           c.revokeRefreshToken,
		Clear: func(ctx context.Context) error {
			c.sessionMu.Lock()
			defer c.sessionMu.Unlock()
			if err := c.store.Clear(ctx); err != nil {
				return err
			}
			c.refresh.Reset()
			return nil
		},
	}
}

func (c *Client) revokeRefreshToken(ctx context.Context, refreshToken string) error {
	_, err := send[struct{}](ctx, c, transport.Request{
		Method: http.MethodDelete,
		Path:   "/refresh-token",
	}, refreshToken)
	return err
}
