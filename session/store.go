package session

import (
	"context"
	"errors"
)

// ErrNotFound is returned by [Store.Get] when no complete session is stored.
var ErrNotFound = errors.New("session not found")

// ErrIncomplete is returned by [Store.Set] for a session missing either token.
var ErrIncomplete = errors.New("session is missing a token")

// ErrCorrupt is returned when a stored user record cannot be decoded.
var ErrCorrupt = errors.New("session record corrupt")

// ErrRedisUnavailable wraps failures talking to Redis.
var ErrRedisUnavailable = errors.New("redis unavailable")

// Store persists the current session.
//
// Implementations must be safe for concurrent use and must replace all three
// storage keys as one unit in Set and Clear.
type Store interface {
	Get(ctx context.Context) (*Session, error)
	Set(ctx context.Context, s *Session) error
	Clear(ctx context.Context) error
}

// Keys names the three storage slots of a session.
type Keys struct {
	AccessToken  string
	RefreshToken string
	User         string
}

// DefaultKeys returns the key names used by the Tanglr web client.
func DefaultKeys() Keys {
	return Keys{
		AccessToken:  "access_token",
		RefreshToken: "refresh_token",
		User:         "user",
	}
}

func (k Keys) withDefaults() Keys {
	d := DefaultKeys()
	if k.AccessToken == "" {
		k.AccessToken = d.AccessToken
	}
	if k.RefreshToken == "" {
		k.RefreshToken = d.RefreshToken
	}
	if k.User == "" {
		k.User = d.User
	}
	return k
}

// Validate reports whether the key names are usable.
func (k Keys) Validate() error {
	if k.AccessToken == "" || k.RefreshToken == "" || k.User == "" {
		return errors.New("storage keys must be non-empty")
	}
	if k.AccessToken == k.RefreshToken || k.AccessToken == k.User || k.RefreshToken == k.User {
		return errors.New("storage keys must be distinct")
	}
	return nil
}

// assemble joins the three stored parts into a session, or reports absence.
func assemble(access, refresh string, user []byte) (*Session, error) {
	if access == "" || refresh == "" {
		return nil, ErrNotFound
	}
	s := &Session{}
	if len(user) > 0 {
		decoded, err := Decode(user)
		if err != nil {
			return nil, errors.Join(ErrCorrupt, err)
		}
		s = decoded
	}
	s.AccessToken = access
	s.RefreshToken = refresh
	return s, nil
}
