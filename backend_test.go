package tanglr

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const (
	testUsername = "alice"
	testPassword = "secret1"
	testUserID   = "0b9c7a3e-6f5e-4c3a-9d0e-1f2a3b4c5d6e"
)

// fakeAPI is an in-memory Tanglr backend. Access tokens are accepted only
// while present in valid; the exp claim is not enforced server-side so tests
// control expiry independently.
type fakeAPI struct {
	t      *testing.T
	server *httptest.Server

	mu           sync.Mutex
	valid        map[string]bool
	refreshToken string
	revoked      bool
	accessExp    time.Time
	seen         map[string][]string
	issued       int

	refreshCalls atomic.Int32
	revokeCalls  atomic.Int32
	loginCalls   atomic.Int32

	failRefresh atomic.Bool

	// Guarded by mu. refreshGate, when set, blocks refresh handling until
	// closed; alwaysReject makes the named path answer 401 for every token.
	// holdPath requests wait on hold before their token is checked.
	refreshGate  chan struct{}
	alwaysReject string
	slow         time.Duration
	holdPath     string
	hold         chan struct{}
}

func (a *fakeAPI) set(fn func(a *fakeAPI)) {
	a.mu.Lock()
	fn(a)
	a.mu.Unlock()
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	api := &fakeAPI{
		t:            t,
		valid:        map[string]bool{},
		refreshToken: "refresh-R",
		accessExp:    time.Now().Add(time.Hour),
		seen:         map[string][]string{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/login", api.handleLogin)
	mux.HandleFunc("POST /v1/users", api.handleCreateUser)
	mux.HandleFunc("POST /v1/refresh-token", api.handleRefresh)
	mux.HandleFunc("DELETE /v1/refresh-token", api.handleRevoke)
	mux.HandleFunc("GET /v1/users/{username}", api.protected(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, User{ID: testUserID, Username: r.PathValue("username"), Email: "alice@example.com"})
	}))
	mux.HandleFunc("PUT /v1/users/avatar", api.protected(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, struct{}{})
	}))
	mux.HandleFunc("GET /v1/users/{username}/friends", api.protected(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []User{{ID: "u2", Username: "bob"}})
	}))
	mux.HandleFunc("GET /v1/users/{username}/friendslist", api.protected(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []Friend{{UserID: testUserID, FriendID: "u3", Status: "accepted", FriendUsername: "carol"}})
	}))
	mux.HandleFunc("POST /v1/users/{username}/friends/{friend}", api.protected(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, FriendRequestResponse{Message: "friend request sent to " + r.PathValue("friend")})
	}))
	mux.HandleFunc("GET /v1/posts", api.protected(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []PostDisplay{{Post: Post{ID: "p1", Body: "hello", Username: "bob"}, AvatarURL: "https://img.example/bob.png"}})
	}))
	mux.HandleFunc("GET /v1/posts/{username}", api.protected(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []PostDisplay{{Post: Post{ID: "p2", Body: "mine", Username: r.PathValue("username")}}})
	}))
	mux.HandleFunc("POST /v1/posts", api.protected(func(w http.ResponseWriter, r *http.Request) {
		var in CreatePostInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad body"})
			return
		}
		writeJSON(w, http.StatusCreated, Post{ID: "p3", Body: in.Body, UserID: testUserID, Username: testUsername})
	}))

	api.server = httptest.NewServer(mux)
	t.Cleanup(api.server.Close)
	return api
}

func (a *fakeAPI) mint(exp time.Time) string {
	a.mu.Lock()
	a.issued++
	n := a.issued
	a.mu.Unlock()

	token, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, gojwt.MapClaims{
		"sub":      testUserID,
		"username": testUsername,
		"exp":      exp.Unix(),
		"n":        n,
	}).SignedString([]byte("test-secret"))
	require.NoError(a.t, err)

	a.mu.Lock()
	a.valid[token] = true
	a.mu.Unlock()
	return token
}

// expireAll rejects every access token issued so far.
func (a *fakeAPI) expireAll() {
	a.mu.Lock()
	a.valid = map[string]bool{}
	a.mu.Unlock()
}

func (a *fakeAPI) seenAuth(path string) []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.seen[path]...)
}

func (a *fakeAPI) record(r *http.Request) {
	a.mu.Lock()
	a.seen[r.URL.Path] = append(a.seen[r.URL.Path], r.Header.Get("Authorization"))
	a.mu.Unlock()
}

func (a *fakeAPI) protected(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a.record(r)
		a.mu.Lock()
		slow := a.slow
		var hold chan struct{}
		if r.URL.Path == a.holdPath {
			hold = a.hold
		}
		a.mu.Unlock()
		if slow > 0 {
			select {
			case <-time.After(slow):
			case <-r.Context().Done():
				return
			}
		}
		if hold != nil {
			select {
			case <-hold:
			case <-r.Context().Done():
				return
			}
		}
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		a.mu.Lock()
		ok := a.valid[token] && r.URL.Path != a.alwaysReject
		a.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized: missing or invalid token"})
			return
		}
		next(w, r)
	}
}

func (a *fakeAPI) handleLogin(w http.ResponseWriter, r *http.Request) {
	a.loginCalls.Add(1)
	var in LoginInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad body"})
		return
	}
	if in.Username != testUsername || in.Password != testPassword {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid username or password"})
		return
	}

	a.mu.Lock()
	exp := a.accessExp
	a.revoked = false
	a.mu.Unlock()

	writeJSON(w, http.StatusOK, LoginResponse{
		User: User{
			ID:        testUserID,
			Username:  testUsername,
			Email:     "alice@example.com",
			AvatarURL: "https://img.example/alice.png",
			DarkMode:  false,
		},
		Token:        a.mint(exp),
		RefreshToken: a.refreshToken,
	})
}

func (a *fakeAPI) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var in CreateUserInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad body"})
		return
	}
	if in.Username == testUsername {
		writeJSON(w, http.StatusConflict, map[string]string{"message": "username already taken"})
		return
	}
	writeJSON(w, http.StatusCreated, User{ID: "new-id", Username: in.Username, Email: in.Email})
}

func (a *fakeAPI) handleRefresh(w http.ResponseWriter, r *http.Request) {
	a.refreshCalls.Add(1)
	a.record(r)
	a.mu.Lock()
	gate := a.refreshGate
	a.mu.Unlock()
	if gate != nil {
		<-gate
	}

	a.mu.Lock()
	ok := !a.revoked && r.Header.Get("Authorization") == "Bearer "+a.refreshToken
	a.mu.Unlock()
	if !ok || a.failRefresh.Load() {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized: invalid refresh token"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access_token": a.mint(time.Now().Add(time.Hour))})
}

func (a *fakeAPI) handleRevoke(w http.ResponseWriter, r *http.Request) {
	a.revokeCalls.Add(1)
	a.record(r)
	a.mu.Lock()
	a.revoked = true
	a.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func testConfig(api *fakeAPI) Config {
	cfg := DefaultConfig()
	cfg.API.BaseURL = api.server.URL
	cfg.API.Timeout = 5 * time.Second
	cfg.Metrics.Enabled = true
	return cfg
}

func newTestClient(t *testing.T, api *fakeAPI, mutate ...func(*Config)) *Client {
	t.Helper()
	cfg := testConfig(api)
	for _, m := range mutate {
		m(&cfg)
	}
	c, err := New().WithConfig(cfg).Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func loggedInClient(t *testing.T, api *fakeAPI, mutate ...func(*Config)) *Client {
	t.Helper()
	c := newTestClient(t, api, mutate...)
	_, err := c.Login(t.Context(), testUsername, testPassword)
	require.NoError(t, err)
	return c
}
