package tanglr

import "time"

// CallOption adjusts a single API call.
type CallOption func(*callOptions)

type callOptions struct {
	accessToken string
	timeout     time.Duration
}

// WithAccessToken sends token instead of the stored access token. After a
// refresh the retry uses the refreshed token.
func WithAccessToken(token string) CallOption {
	return func(o *callOptions) {
		o.accessToken = token
	}
}

// WithTimeout overrides the configured request timeout for this call.
func WithTimeout(d time.Duration) CallOption {
	return func(o *callOptions) {
		o.timeout = d
	}
}

func collectOptions(opts []CallOption) callOptions {
	var o callOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
