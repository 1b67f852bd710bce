package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// DefaultTimeout applies when neither the executor nor the request sets one.
	DefaultTimeout = 30 * time.Second

	// RequestIDHeader carries a per-request correlation id.
	RequestIDHeader = "X-Request-ID"

	maxResponseBytes = 8 << 20
)

// TokenFunc returns the stored access token, or "" when there is none.
type TokenFunc func(ctx context.Context) string

// ObserveFunc receives the outcome of every executed request.
type ObserveFunc func(req Request, status int, elapsed time.Duration, err error)

// Config configures an [Executor].
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	UserAgent  string

	// AccessToken supplies the stored token when a request carries none.
	AccessToken TokenFunc
	Observe     ObserveFunc
	Logger      zerolog.Logger
}

// Request describes one API call.
type Request struct {
	Method string
	// Path is appended to the base URL and must start with "/".
	Path string
	// Body is JSON-encoded unless it is already []byte or json.RawMessage.
	Body any
	// BearerToken overrides the stored access token.
	BearerToken string
	// Timeout overrides the executor timeout for this request.
	Timeout time.Duration
}

// Executor performs API requests.
type Executor struct {
	baseURL     string
	timeout     time.Duration
	client      *http.Client
	userAgent   string
	accessToken TokenFunc
	observe     ObserveFunc
	logger      zerolog.Logger
}

// New returns an executor for cfg. A nil HTTPClient uses a fresh client with
// no client-level timeout; timeouts are applied per request.
func New(cfg Config) *Executor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	return &Executor{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		timeout:     cfg.Timeout,
		client:      cfg.HTTPClient,
		userAgent:   cfg.UserAgent,
		accessToken: cfg.AccessToken,
		observe:     cfg.Observe,
		logger:      cfg.Logger,
	}
}

// BaseURL returns the versioned API root requests are resolved against.
func (e *Executor) BaseURL() string {
	return e.baseURL
}

// Do executes req once. A 204 or empty 2xx body yields a nil result.
func (e *Executor) Do(ctx context.Context, req Request) (json.RawMessage, error) {
	started := time.Now()
	raw, status, err := e.do(ctx, req)
	if e.observe != nil {
		e.observe(req, status, time.Since(started), err)
	}
	return raw, err
}

func (e *Executor) do(ctx context.Context, req Request) (json.RawMessage, int, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = e.timeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := encodeBody(req.Body)
	if err != nil {
		return nil, 0, err
	}

	httpReq, err := http.NewRequestWithContext(reqCtx, req.Method, e.baseURL+req.Path, body)
	if err != nil {
		return nil, 0, err
	}

	requestID := uuid.NewString()
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(RequestIDHeader, requestID)
	if e.userAgent != "" {
		httpReq.Header.Set("User-Agent", e.userAgent)
	}
	if token := e.bearer(ctx, req); token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	log := e.logger.With().
		Str("method", req.Method).
		Str("path", req.Path).
		Str("request_id", requestID).
		Logger()

	resp, err := e.client.Do(httpReq)
	if err != nil {
		err = e.classify(ctx, reqCtx, err, timeout)
		log.Warn().Err(err).Msg("api request failed")
		return nil, 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		err = e.classify(ctx, reqCtx, err, timeout)
		log.Warn().Err(err).Int("status", resp.StatusCode).Msg("api response read failed")
		return nil, resp.StatusCode, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		httpErr := newHTTPError(resp.StatusCode, data)
		log.Debug().Int("status", resp.StatusCode).Str("message", httpErr.Message).Msg("api request rejected")
		return nil, resp.StatusCode, httpErr
	}

	log.Debug().Int("status", resp.StatusCode).Msg("api request completed")
	if resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(data)) == 0 {
		return nil, resp.StatusCode, nil
	}
	return json.RawMessage(data), resp.StatusCode, nil
}

func (e *Executor) bearer(ctx context.Context, req Request) string {
	if req.BearerToken != "" {
		return req.BearerToken
	}
	if e.accessToken != nil {
		return e.accessToken(ctx)
	}
	return ""
}

// classify maps an expired per-request deadline to ErrTimeout. Cancellation
// or deadlines owned by the caller are returned as the caller's context error.
func (e *Executor) classify(parent, reqCtx context.Context, err error, timeout time.Duration) error {
	if parentErr := parent.Err(); parentErr != nil {
		return parentErr
	}
	if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrTimeout, timeout)
	}
	return err
}

func encodeBody(body any) (io.Reader, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return bytes.NewReader(b), nil
	case []byte:
		return bytes.NewReader(b), nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		return bytes.NewReader(data), nil
	}
}

// DecodeJSON unmarshals raw into a T. An empty result yields the zero T.
func DecodeJSON[T any](raw json.RawMessage) (T, error) {
	var out T
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}
