package jwt

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrSegmentCount is returned by [Tracker.Claims] when a token is not three dot-separated segments.
	ErrSegmentCount = errors.New("token must have three segments")
	// ErrNoExpiry is returned by [Tracker.ExpiresAt] when the payload carries no numeric exp claim.
	ErrNoExpiry = errors.New("token has no exp claim")
)

// Option customizes a [Tracker].
type Option func(*Tracker)

// WithClock replaces the wall clock used for the malformed-token fallback and
// for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// WithSkew makes [Tracker.Expired] report tokens as expired d before their
// actual exp instant.
func WithSkew(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.skew = d
		}
	}
}

// Tracker derives expiry instants from access tokens.
//
// Tracker is safe for concurrent use.
type Tracker struct {
	now    func() time.Time
	skew   time.Duration
	parser *jwt.Parser
}

// NewTracker returns a tracker using the wall clock and no skew unless
// overridden by opts.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		now:    time.Now,
		parser: jwt.NewParser(jwt.WithPaddingAllowed()),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Claims decodes the payload segment of token. Only the payload is inspected;
// header and signature segments must be present but are not decoded.
func (t *Tracker) Claims(token string) (jwt.MapClaims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, ErrSegmentCount
	}

	raw, err := t.parser.DecodeSegment(parts[1])
	if err != nil {
		return nil, err
	}

	claims := jwt.MapClaims{}
	if err := json.Unmarshal(raw, &claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// ExpiresAt returns the exp claim of token.
func (t *Tracker) ExpiresAt(token string) (time.Time, error) {
	ms, err := t.expiryMillis(token)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms), nil
}

// ExpiresAtMillis returns the exp claim of token in epoch milliseconds. A
// token that cannot be read yields the current instant.
func (t *Tracker) ExpiresAtMillis(token string) int64 {
	ms, err := t.expiryMillis(token)
	if err != nil {
		return t.now().UnixMilli()
	}
	return ms
}

// expiryMillis converts exp, in possibly fractional epoch seconds, to
// milliseconds without going through jwt.NumericDate.
func (t *Tracker) expiryMillis(token string) (int64, error) {
	claims, err := t.Claims(token)
	if err != nil {
		return 0, err
	}
	var exp float64
	switch v := claims["exp"].(type) {
	case float64:
		exp = v
	case json.Number:
		if exp, err = v.Float64(); err != nil {
			return 0, ErrNoExpiry
		}
	default:
		return 0, ErrNoExpiry
	}
	ms := math.Round(exp * 1000)
	if math.IsNaN(ms) || ms >= math.MaxInt64 || ms < math.MinInt64 {
		return 0, ErrNoExpiry
	}
	return int64(ms), nil
}

// Expired reports whether token is at or past its expiry, less the configured
// skew. Unreadable tokens are always expired.
func (t *Tracker) Expired(token string) bool {
	return t.now().Add(t.skew).UnixMilli() >= t.ExpiresAtMillis(token)
}

// Identity returns the best-effort user id and username carried by token.
// Missing claims come back empty.
func (t *Tracker) Identity(token string) (userID, username string) {
	claims, err := t.Claims(token)
	if err != nil {
		return "", ""
	}
	if sub, err := claims.GetSubject(); err == nil {
		userID = sub
	}
	if v, ok := claims["user_id"].(string); ok && userID == "" {
		userID = v
	}
	if v, ok := claims["username"].(string); ok {
		username = v
	}
	return userID, username
}
