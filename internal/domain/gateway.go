package domain

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// UpstreamRequest describes one call to the third-party ticketing API.
// Retries and Timeout override the configured defaults when set; a nil
// Retries means "use the default", which is distinct from an explicit zero.
type UpstreamRequest struct {
	Method  string
	Path    string
	Query   url.Values
	Body    any // JSON-serializable; nil for body-less requests
	Retries *int
	Timeout time.Duration
}

// UpstreamResponse is the raw result of an upstream call. Any received HTTP
// response is returned through this struct regardless of status; interpreting
// the status code is the caller's concern.
type UpstreamResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports whether the response carries a 2xx status.
func (r *UpstreamResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// RequestGateway issues upstream requests with a bounded per-attempt timeout
// and automatic retry on transport failure. Retry-worthiness is strictly a
// transport-level concept: a response with an error status is returned as-is
// and never retried. After exhausting all attempts the last transport error
// is returned.
type RequestGateway interface {
	Do(ctx context.Context, req UpstreamRequest) (*UpstreamResponse, error)
}
