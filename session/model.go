package session

import (
	"time"

	"golang.org/x/oauth2"
)

// Session is the authenticated state of one client.
//
// A Session is either complete (both tokens present) or absent; stores never
// return a partial one.
type Session struct {
	UserID    string
	Username  string
	Email     string
	AvatarURL string
	CoverURL  string
	DarkMode  bool

	AccessToken  string
	RefreshToken string

	// AccessTokenExpiresAt is the exp claim of AccessToken in epoch milliseconds.
	AccessTokenExpiresAt int64

	// LastError is the unauthorized error of the latest request replayed after
	// a refresh. Storing a new access token clears it.
	LastError string
}

// Complete reports whether s carries both tokens.
func (s *Session) Complete() bool {
	return s != nil && s.AccessToken != "" && s.RefreshToken != ""
}

// Clone returns a copy of s.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// WithAccessToken returns a copy of s carrying a new access token and expiry.
// The refresh token and cached profile are kept.
func (s *Session) WithAccessToken(token string, expiresAtMillis int64) *Session {
	c := s.Clone()
	c.AccessToken = token
	c.AccessTokenExpiresAt = expiresAtMillis
	c.LastError = ""
	return c
}

// ExpiresAt returns the access-token expiry as a time.
func (s *Session) ExpiresAt() time.Time {
	return time.UnixMilli(s.AccessTokenExpiresAt)
}

// OAuth2Token exposes the session as an [oauth2.Token] so it can be handed to
// code built on golang.org/x/oauth2.
func (s *Session) OAuth2Token() *oauth2.Token {
	if s == nil {
		return nil
	}
	return &oauth2.Token{
		AccessToken:  s.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: s.RefreshToken,
		Expiry:       s.ExpiresAt(),
	}
}
