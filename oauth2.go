package tanglr

import (
	"context"

	"golang.org/x/oauth2"
)

// Token returns the stored session as an oauth2 token, refreshing first when
// the stored access token has expired. It lets a Client serve as an
// [oauth2.TokenSource].
func (c *Client) Token() (*oauth2.Token, error) {
	return c.token(context.Background())
}

func (c *Client) token(ctx context.Context) (*oauth2.Token, error) {
	s, err := c.CurrentSession(ctx)
	if err != nil {
		return nil, err
	}
	if c.tracker.Expired(s.AccessToken) {
		if _, err := c.RenewAccessToken(ctx, s.AccessToken); err != nil {
			return nil, err
		}
		if s, err = c.CurrentSession(ctx); err != nil {
			return nil, err
		}
	}
	return s.OAuth2Token(), nil
}

type contextTokenSource struct {
	ctx    context.Context
	client *Client
}

func (s contextTokenSource) Token() (*oauth2.Token, error) {
	return s.client.token(s.ctx)
}

// TokenSource returns a caching [oauth2.TokenSource] bound to ctx, suitable
// for [oauth2.NewClient].
func (c *Client) TokenSource(ctx context.Context) oauth2.TokenSource {
	var initial *oauth2.Token
	if s, err := c.CurrentSession(ctx); err == nil {
		initial = s.OAuth2Token()
	}
	return oauth2.ReuseTokenSource(initial, contextTokenSource{ctx: ctx, client: c})
}
