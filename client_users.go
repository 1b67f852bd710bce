package tanglr

import (
	"context"
	"net/http"
	"net/url"

	"github.com/artyultra/tanglr-client/internal/transport"
)

// CreateUser registers a new account. It does not log in.
func (c *Client) CreateUser(ctx context.Context, in CreateUserInput, opts ...CallOption) (*User, error) {
	if err := c.validateInput(in); err != nil {
		return nil, err
	}
	user, err := anonymous[User](ctx, c, transport.Request{
		Method: http.MethodPost,
		Path:   "/users",
		Body:   in,
	}, opts)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUser returns the public profile of username.
func (c *Client) GetUser(ctx context.Context, username string, opts ...CallOption) (*User, error) {
	if username == "" {
		return nil, ErrUsernameRequired
	}
	user, err := authorized[User](ctx, c, transport.Request{
		Method: http.MethodGet,
		Path:   "/users/" + url.PathEscape(username),
	}, opts)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// PutAvatar sets the avatar of the logged-in user and updates the cached
// profile.
func (c *Client) PutAvatar(ctx context.Context, avatarURL string, opts ...CallOption) error {
	in := UpdateAvatarInput{AvatarURL: avatarURL}
	if err := c.validateInput(in); err != nil {
		return err
	}
	if _, err := authorized[struct{}](ctx, c, transport.Request{
		Method: http.MethodPut,
		Path:   "/users/avatar",
		Body:   in,
	}, opts); err != nil {
		return err
	}

	c.sessionMu.Lock()
	defer c.sessionMu.Unlock()
	s, err := c.store.Get(ctx)
	if err != nil {
		// Logged out meanwhile; nothing cached to update.
		return nil
	}
	s.AvatarURL = avatarURL
	return c.store.Set(ctx, s)
}

// GetNonFriends lists users that username is not yet friends with.
func (c *Client) GetNonFriends(ctx context.Context, username string, opts ...CallOption) ([]User, error) {
	if username == "" {
		return nil, ErrUsernameRequired
	}
	return authorized[[]User](ctx, c, transport.Request{
		Method: http.MethodGet,
		Path:   "/users/" + url.PathEscape(username) + "/friends",
	}, opts)
}

// GetFriendsList lists the friendships of username.
func (c *Client) GetFriendsList(ctx context.Context, username string, opts ...CallOption) ([]Friend, error) {
	if username == "" {
		return nil, ErrUsernameRequired
	}
	return authorized[[]Friend](ctx, c, transport.Request{
		Method: http.MethodGet,
		Path:   "/users/" + url.PathEscape(username) + "/friendslist",
	}, opts)
}

// AddFriend sends a friend request from username to friend.
func (c *Client) AddFriend(ctx context.Context, username, friend string, opts ...CallOption) (*FriendRequestResponse, error) {
	if username == "" || friend == "" {
		return nil, ErrUsernameRequired
	}
	resp, err := authorized[FriendRequestResponse](ctx, c, transport.Request{
		Method: http.MethodPost,
		Path:   "/users/" + url.PathEscape(username) + "/friends/" + url.PathEscape(friend),
	}, opts)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}
