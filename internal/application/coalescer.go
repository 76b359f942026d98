package application

import (
	"context"

	"golang.org/x/sync/singleflight"

	"gitlab.com/timkado/api/daisi-helpdesk-service/internal/adapters/metrics"
	"gitlab.com/timkado/api/daisi-helpdesk-service/internal/domain"
)

// Coalescer deduplicates concurrent identical requests for slow-changing
// reference data: while a fetch for a key is in flight, every additional
// caller for the same key waits on that one fetch instead of issuing its own.
//
// singleflight removes the in-flight record when the call settles, success or
// failure, so a failed fetch never poisons subsequent calls for the key.
type Coalescer struct {
	group  singleflight.Group
	logger domain.Logger
}

// NewCoalescer creates a new Coalescer.
func NewCoalescer(logger domain.Logger) *Coalescer {
	if logger == nil {
		panic("logger cannot be nil in NewCoalescer")
	}
	return &Coalescer{logger: logger}
}

// Do invokes fn for key unless a call for the same key is already in flight,
// in which case the caller shares that call's result. The returned boolean
// reports whether the result was shared with other callers.
func (c *Coalescer) Do(ctx context.Context, key string, fn func() ([]byte, error)) ([]byte, bool, error) {
	value, err, shared := c.group.Do(key, func() (any, error) {
		return fn()
	})
	if shared {
		metrics.CoalescerSharedTotal.Inc()
		c.logger.Debug(ctx, "Coalesced duplicate in-flight request", "key", key)
	}
	if err != nil {
		return nil, shared, err
	}
	return value.([]byte), shared, nil
}
