package middleware

import (
	"context"
	"io"
	"net/http"
)

// TokenSource is the part of a session the transport needs.
// *tanglr.Client implements it.
type TokenSource interface {
	// AccessToken returns the stored access token, or "" without a session.
	AccessToken(ctx context.Context) (string, error)
	// RenewAccessToken returns a token newer than rejected, sharing any
	// refresh already in flight.
	RenewAccessToken(ctx context.Context, rejected string) (string, error)
}

// Transport attaches bearer tokens and retries once after a coordinated
// refresh.
type Transport struct {
	Source TokenSource
	// Base performs the requests. Nil uses http.DefaultTransport.
	Base http.RoundTripper
}

// NewTransport returns a Transport over base.
func NewTransport(source TokenSource, base http.RoundTripper) *Transport {
	return &Transport{Source: source, Base: base}
}

// NewHTTPClient returns an http.Client whose requests go through a Transport.
func NewHTTPClient(source TokenSource) *http.Client {
	return &http.Client{Transport: NewTransport(source, nil)}
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

// RoundTrip implements http.RoundTripper. The caller's request is never
// modified.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	token, explicit := bearerToken(req.Header.Get("Authorization"))
	if !explicit {
		stored, err := t.Source.AccessToken(ctx)
		if err != nil {
			closeBody(req)
			return nil, err
		}
		token = stored
	}

	resp, err := t.base().RoundTrip(withBearer(req, token))
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		return resp, nil
	}

	fresh, err := t.Source.RenewAccessToken(ctx, token)
	if err != nil {
		drain(resp)
		return nil, err
	}

	retry := withBearer(req, fresh)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			drain(resp)
			return nil, err
		}
		retry.Body = body
	}
	drain(resp)
	return t.base().RoundTrip(retry)
}

func withBearer(req *http.Request, token string) *http.Request {
	out := req.Clone(req.Context())
	if token == "" {
		out.Header.Del("Authorization")
	} else {
		out.Header.Set("Authorization", bearerPrefix+token)
	}
	return out
}

func closeBody(req *http.Request) {
	if req.Body != nil {
		_ = req.Body.Close()
	}
}

func drain(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	_ = resp.Body.Close()
}

var _ http.RoundTripper = (*Transport)(nil)
