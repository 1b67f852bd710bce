package jwt

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestExpiresAtMillisExact(t *testing.T) {
	tr := NewTracker()
	tok := signed(t, jwt.MapClaims{"exp": 1700000000})

	require.Equal(t, int64(1700000000000), tr.ExpiresAtMillis(tok))
}

func TestExpiresAtMillisKeepsFractionalSeconds(t *testing.T) {
	tr := NewTracker()
	payload := base64.RawURLEncoding.EncodeToString([]byte(`{"exp":1700000000.5}`))

	require.Equal(t, int64(1700000000500), tr.ExpiresAtMillis("h."+payload+".s"))

	at, err := tr.ExpiresAt("h." + payload + ".s")
	require.NoError(t, err)
	require.Equal(t, int64(1700000000500), at.UnixMilli())
}

func TestExpiresAtMillisIgnoresHeaderAndSignature(t *testing.T) {
	tr := NewTracker()
	payload := base64.RawURLEncoding.EncodeToString([]byte(`{"exp":1700000001}`))

	require.Equal(t, int64(1700000001000), tr.ExpiresAtMillis("garbage."+payload+".sig"))
}

func TestExpiresAtMillisMalformedReturnsNow(t *testing.T) {
	now := time.UnixMilli(1_750_000_000_123)
	tr := NewTracker(WithClock(fixedClock(now)))

	noExp := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"u-1"}`))
	stringExp := base64.RawURLEncoding.EncodeToString([]byte(`{"exp":"tomorrow"}`))
	hugeExp := base64.RawURLEncoding.EncodeToString([]byte(`{"exp":1e300}`))
	notJSON := base64.RawURLEncoding.EncodeToString([]byte(`not json`))

	cases := map[string]string{
		"empty":          "",
		"single segment": "A",
		"two segments":   "a.b",
		"four segments":  "a.b.c.d",
		"bad base64":     "h.***.s",
		"not json":       "h." + notJSON + ".s",
		"missing exp":    "h." + noExp + ".s",
		"string exp":     "h." + stringExp + ".s",
		"huge exp":       "h." + hugeExp + ".s",
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, now.UnixMilli(), tr.ExpiresAtMillis(tok))
			require.True(t, tr.Expired(tok))
		})
	}
}

func TestExpiredHonorsSkew(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	tok := signed(t, jwt.MapClaims{"exp": now.Add(20 * time.Second).Unix()})

	require.False(t, NewTracker(WithClock(fixedClock(now))).Expired(tok))
	require.True(t, NewTracker(WithClock(fixedClock(now)), WithSkew(30*time.Second)).Expired(tok))
	require.True(t, NewTracker(WithClock(fixedClock(now.Add(20*time.Second)))).Expired(tok))
}

func TestIdentity(t *testing.T) {
	tr := NewTracker()

	id, name := tr.Identity(signed(t, jwt.MapClaims{"sub": "u-42", "username": "alice"}))
	require.Equal(t, "u-42", id)
	require.Equal(t, "alice", name)

	id, name = tr.Identity(signed(t, jwt.MapClaims{"user_id": "u-7"}))
	require.Equal(t, "u-7", id)
	require.Empty(t, name)

	id, name = tr.Identity("A")
	require.Empty(t, id)
	require.Empty(t, name)
}
