package tanglr

import "time"

// User is a Tanglr profile.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	AvatarURL string    `json:"avatar_url"`
	CoverURL  string    `json:"cover_url"`
	DarkMode  bool      `json:"dark_mode"`
	Exists    bool      `json:"exists,omitempty"`
}

// LoginResponse is the profile plus the token pair returned by POST /login.
type LoginResponse struct {
	User
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
}

// LoginInput is the body of POST /login.
type LoginInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// CreateUserInput is the body of POST /users.
type CreateUserInput struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// UpdateAvatarInput is the body of PUT /users/avatar.
type UpdateAvatarInput struct {
	AvatarURL string `json:"avatar_url" validate:"required,url"`
}

type refreshTokenResponse struct {
	AccessToken string `json:"access_token"`
}

// Post is a post as returned on creation.
type Post struct {
	ID        string    `json:"id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
}

// PostDisplay is a feed entry, carrying the author's avatar.
type PostDisplay struct {
	Post
	AvatarURL string `json:"avatar_url"`
}

// CreatePostInput is the body of POST /posts.
type CreatePostInput struct {
	Body string `json:"body" validate:"required,min=1,max=5000"`
}

// Friend is one friendship edge as returned by the friends list.
type Friend struct {
	UserID          string    `json:"user_id"`
	FriendID        string    `json:"friend_id"`
	Status          string    `json:"status"`
	InitiatorID     string    `json:"initiator_id"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	FriendUsername  string    `json:"friend_username"`
	FriendAvatarURL string    `json:"friend_avatar_url"`
}

// FriendRequestResponse acknowledges a friend request.
type FriendRequestResponse struct {
	Message string `json:"message"`
}
