package http

import (
	"context"
	"fmt"
	"time"

	"resty.dev/v3"

	"gitlab.com/timkado/api/daisi-helpdesk-service/internal/adapters/config"
	"gitlab.com/timkado/api/daisi-helpdesk-service/internal/adapters/metrics"
	"gitlab.com/timkado/api/daisi-helpdesk-service/internal/domain"
)

// Gateway implements domain.RequestGateway against the third-party ticketing
// API using Resty.
//
// Retry handling is deliberately explicit here instead of delegated to
// Resty's retry middleware: retry-worthiness is a transport-level concept
// only. A received HTTP response is returned to the caller whatever its
// status; a transport failure (connect error, timeout, abort) is retried up
// to the configured bound with a fixed inter-attempt delay.
type Gateway struct {
	client      *resty.Client
	cfgProvider config.Provider
	logger      domain.Logger
}

// NewGateway creates a new upstream request gateway. The upstream base URL
// and the static API credential come from the ticketing configuration.
func NewGateway(cfgProvider config.Provider, logger domain.Logger) *Gateway {
	if cfgProvider == nil {
		panic("config provider cannot be nil in NewGateway")
	}
	if logger == nil {
		panic("logger cannot be nil in NewGateway")
	}

	ticketing := cfgProvider.Get().Ticketing
	client := resty.New().
		SetBaseURL(ticketing.BaseURL).
		SetHeader("Accept", "application/json")
	if ticketing.APIToken != "" {
		client.SetAuthToken(ticketing.APIToken)
	}

	return &Gateway{
		client:      client,
		cfgProvider: cfgProvider,
		logger:      logger,
	}
}

// Close releases the underlying HTTP client resources.
func (g *Gateway) Close() error {
	return g.client.Close()
}

// Do issues the request with a hard per-attempt timeout. Omitted retry/timeout
// overrides fall back to the configured defaults. After exhausting all
// attempts without receiving a response, the last transport error is returned.
func (g *Gateway) Do(ctx context.Context, req domain.UpstreamRequest) (*domain.UpstreamResponse, error) {
	ticketing := g.cfgProvider.Get().Ticketing

	retries := ticketing.DefaultRetries
	if req.Retries != nil {
		retries = *req.Retries
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = time.Duration(ticketing.TimeoutSeconds) * time.Second
	}
	// Fixed, non-exponential delay between attempts.
	delay := time.Duration(ticketing.RetryDelayMs) * time.Millisecond

	attempts := retries + 1
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			metrics.GatewayRetriesTotal.Inc()
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, fmt.Errorf("upstream request %s %s aborted while waiting to retry: %w", req.Method, req.Path, ctx.Err())
			}
		}

		metrics.GatewayAttemptsTotal.Inc()
		resp, err := g.attempt(ctx, req, timeout)
		if err != nil {
			lastErr = err
			g.logger.Warn(ctx, "Upstream request attempt failed",
				"method", req.Method, "path", req.Path,
				"attempt", attempt, "max_attempts", attempts,
				"error", err.Error())
			continue
		}

		if !resp.OK() {
			g.logger.Debug(ctx, "Upstream responded with error status; returning without retry",
				"method", req.Method, "path", req.Path, "status", resp.StatusCode)
		}
		return resp, nil
	}

	metrics.GatewayFailuresTotal.Inc()
	return nil, fmt.Errorf("upstream request %s %s failed after %d attempt(s): %w", req.Method, req.Path, attempts, lastErr)
}

func (g *Gateway) attempt(ctx context.Context, req domain.UpstreamRequest, timeout time.Duration) (*domain.UpstreamResponse, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	r := g.client.R().SetContext(attemptCtx)
	if len(req.Query) > 0 {
		r.SetQueryParamsFromValues(req.Query)
	}
	if req.Body != nil {
		r.SetHeader("Content-Type", "application/json").SetBody(req.Body)
	}

	resp, err := r.Execute(req.Method, req.Path)
	if err != nil {
		return nil, err
	}

	return &domain.UpstreamResponse{
		StatusCode: resp.StatusCode(),
		Header:     resp.Header(),
		Body:       resp.Bytes(),
	}, nil
}
