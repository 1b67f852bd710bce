package tanglr

import (
	"context"
	"net/http"
	"net/url"

	"github.com/artyultra/tanglr-client/internal/transport"
)

// CreatePost publishes a post as the logged-in user.
func (c *Client) CreatePost(ctx context.Context, in CreatePostInput, opts ...CallOption) (*Post, error) {
	if err := c.validateInput(in); err != nil {
		return nil, err
	}
	post, err := authorized[Post](ctx, c, transport.Request{
		Method: http.MethodPost,
		Path:   "/posts",
		Body:   in,
	}, opts)
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// GetPosts returns the posts written by username, newest first.
func (c *Client) GetPosts(ctx context.Context, username string, opts ...CallOption) ([]PostDisplay, error) {
	if username == "" {
		return nil, ErrUsernameRequired
	}
	return authorized[[]PostDisplay](ctx, c, transport.Request{
		Method: http.MethodGet,
		Path:   "/posts/" + url.PathEscape(username),
	}, opts)
}

// GetAllPosts returns the global feed.
func (c *Client) GetAllPosts(ctx context.Context, opts ...CallOption) ([]PostDisplay, error) {
	return authorized[[]PostDisplay](ctx, c, transport.Request{
		Method: http.MethodGet,
		Path:   "/posts",
	}, opts)
}
