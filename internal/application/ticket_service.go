package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"gitlab.com/timkado/api/daisi-helpdesk-service/internal/adapters/config"
	"gitlab.com/timkado/api/daisi-helpdesk-service/internal/domain"
	"gitlab.com/timkado/api/daisi-helpdesk-service/pkg/cachekeys"
)

var (
	ErrTicketNotFound       = errors.New("ticket not found")
	ErrInvalidFilter        = errors.New("ticket list filter requires status, year and user id")
	ErrEmptyQuery           = errors.New("search query must not be empty")
	ErrUnknownReferenceKind = errors.New("unknown reference data kind")
)

// listStatuses are the status variants a filtered list view can show; a
// mutation invalidates all of them for the acting user's current period
// because the mutated ticket may have changed list membership.
var listStatuses = []string{domain.TicketStatusOpen, domain.TicketStatusPending, domain.TicketStatusClosed}

// referenceKinds are the reference-data lists the upstream exposes.
var referenceKinds = map[string]bool{
	domain.ReferenceKindCategories: true,
	domain.ReferenceKindPriorities: true,
	domain.ReferenceKindQueues:     true,
}

// TicketService fronts the upstream ticketing API for the portal. Reads go
// through the two-tier cache with policy-selected TTLs; reference-data
// fetches are additionally coalesced. The cache has no server-push
// invalidation, so every confirmed mutation must invalidate the cache keys
// it could have staled before returning.
type TicketService struct {
	logger      domain.Logger
	cfgProvider config.Provider
	cache       domain.CacheStore
	gateway     domain.RequestGateway
	ttlPolicy   *TTLPolicy
	coalescer   *Coalescer
	now         func() time.Time
}

// NewTicketService creates a new TicketService.
func NewTicketService(
	logger domain.Logger,
	cfgProvider config.Provider,
	cache domain.CacheStore,
	gateway domain.RequestGateway,
	ttlPolicy *TTLPolicy,
	coalescer *Coalescer,
) *TicketService {
	if logger == nil {
		panic("logger is nil in NewTicketService")
	}
	if cfgProvider == nil {
		panic("config provider is nil in NewTicketService")
	}
	if cache == nil {
		panic("cache store is nil in NewTicketService")
	}
	if gateway == nil {
		panic("request gateway is nil in NewTicketService")
	}
	if ttlPolicy == nil {
		panic("ttl policy is nil in NewTicketService")
	}
	if coalescer == nil {
		panic("coalescer is nil in NewTicketService")
	}
	return &TicketService{
		logger:      logger,
		cfgProvider: cfgProvider,
		cache:       cache,
		gateway:     gateway,
		ttlPolicy:   ttlPolicy,
		coalescer:   coalescer,
		now:         time.Now,
	}
}

// GetTicket returns one ticket's detail payload, cache-first. The cache
// lifetime is selected from the fetched ticket's own period and status.
func (s *TicketService) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	key := cachekeys.TicketDetailKey(ticketID)

	if cached, ok := s.cache.Get(ctx, key, domain.NamespaceTicketDetail); ok {
		var ticket domain.Ticket
		if err := json.Unmarshal(cached, &ticket); err == nil {
			return &ticket, nil
		}
		// A cached payload that no longer parses is dropped and refetched.
		s.logger.Warn(ctx, "Dropping unparsable cached ticket detail", "key", key)
		s.cache.Invalidate(ctx, key)
	}

	resp, err := s.gateway.Do(ctx, domain.UpstreamRequest{
		Method: http.MethodGet,
		Path:   "/api/v1/tickets/" + url.PathEscape(ticketID),
	})
	if err != nil {
		return nil, fmt.Errorf("fetch ticket '%s': %w", ticketID, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrTicketNotFound
	}
	if !resp.OK() {
		return nil, &domain.UpstreamStatusError{StatusCode: resp.StatusCode, Body: resp.Body}
	}

	var ticket domain.Ticket
	if err := json.Unmarshal(resp.Body, &ticket); err != nil {
		return nil, fmt.Errorf("decode ticket '%s' response: %w", ticketID, err)
	}

	now := s.now()
	category := s.ttlPolicy.Categorize(ticket.Status, ticket.CreatedAt, now)
	ttl := s.ttlPolicy.TTLFor(category, ticket.CreatedAt, now)
	if err := s.cache.Set(ctx, key, domain.NamespaceTicketDetail, resp.Body, ttl); err != nil {
		s.logger.Warn(ctx, "Failed to cache ticket detail", "key", key, "error", err.Error())
	}

	return &ticket, nil
}

// ListTickets returns a filtered ticket list, cache-first. The cache lifetime
// is selected from the filter itself: lists of prior-period tickets cache far
// longer than lists of active ones.
func (s *TicketService) ListTickets(ctx context.Context, filter domain.TicketFilter) ([]domain.Ticket, error) {
	if filter.Status == "" || filter.Year <= 0 || filter.UserID == "" {
		return nil, ErrInvalidFilter
	}

	key := cachekeys.TicketListKey(filter.Status, filter.Year, filter.UserID)

	if cached, ok := s.cache.Get(ctx, key, domain.NamespaceTicketList); ok {
		var tickets []domain.Ticket
		if err := json.Unmarshal(cached, &tickets); err == nil {
			return tickets, nil
		}
		s.logger.Warn(ctx, "Dropping unparsable cached ticket list", "key", key)
		s.cache.Invalidate(ctx, key)
	}

	query := url.Values{}
	query.Set("status", filter.Status)
	query.Set("year", strconv.Itoa(filter.Year))
	query.Set("user_id", filter.UserID)

	resp, err := s.gateway.Do(ctx, domain.UpstreamRequest{
		Method: http.MethodGet,
		Path:   "/api/v1/tickets",
		Query:  query,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch ticket list '%s': %w", key, err)
	}
	if !resp.OK() {
		return nil, &domain.UpstreamStatusError{StatusCode: resp.StatusCode, Body: resp.Body}
	}

	var tickets []domain.Ticket
	if err := json.Unmarshal(resp.Body, &tickets); err != nil {
		return nil, fmt.Errorf("decode ticket list '%s' response: %w", key, err)
	}

	now := s.now()
	periodStart := time.Date(filter.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
	category := s.ttlPolicy.Categorize(filter.Status, periodStart, now)
	ttl := s.ttlPolicy.TTLFor(category, periodStart, now)
	if err := s.cache.Set(ctx, key, domain.NamespaceTicketList, resp.Body, ttl); err != nil {
		s.logger.Warn(ctx, "Failed to cache ticket list", "key", key, "error", err.Error())
	}

	return tickets, nil
}

// SearchTickets returns the result rows for a free-text search. Results cache
// only in the volatile tier and only briefly; they must track near-live
// content and are cheap to refetch.
func (s *TicketService) SearchTickets(ctx context.Context, query string) ([]domain.SearchResult, error) {
	if query == "" {
		return nil, ErrEmptyQuery
	}

	key := cachekeys.SearchKey(query)

	if cached, ok := s.cache.Get(ctx, key, domain.NamespaceSearch); ok {
		var results []domain.SearchResult
		if err := json.Unmarshal(cached, &results); err == nil {
			return results, nil
		}
		s.cache.Invalidate(ctx, key)
	}

	params := url.Values{}
	params.Set("query", query)

	resp, err := s.gateway.Do(ctx, domain.UpstreamRequest{
		Method: http.MethodGet,
		Path:   "/api/v1/search",
		Query:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("search tickets: %w", err)
	}
	if !resp.OK() {
		return nil, &domain.UpstreamStatusError{StatusCode: resp.StatusCode, Body: resp.Body}
	}

	var results []domain.SearchResult
	if err := json.Unmarshal(resp.Body, &results); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	now := s.now()
	ttl := s.ttlPolicy.TTLFor(CategorySearch, now, now)
	if err := s.cache.Set(ctx, key, domain.NamespaceSearch, resp.Body, ttl); err != nil {
		s.logger.Warn(ctx, "Failed to cache search results", "key", key, "error", err.Error())
	}

	return results, nil
}

// ReferenceData returns a selectable reference list (categories, priorities,
// queues), cache-first. Concurrent misses for the same kind are coalesced
// into a single upstream fetch; reference lists change rarely, so every
// waiter sharing one slightly stale snapshot is acceptable.
func (s *TicketService) ReferenceData(ctx context.Context, kind string) ([]domain.ReferenceItem, error) {
	if !referenceKinds[kind] {
		return nil, ErrUnknownReferenceKind
	}

	key := cachekeys.ReferenceKey(kind)

	if cached, ok := s.cache.Get(ctx, key, domain.NamespaceReference); ok {
		var items []domain.ReferenceItem
		if err := json.Unmarshal(cached, &items); err == nil {
			return items, nil
		}
		s.logger.Warn(ctx, "Dropping unparsable cached reference data", "key", key)
		s.cache.Invalidate(ctx, key)
	}

	body, _, err := s.coalescer.Do(ctx, key, func() ([]byte, error) {
		resp, err := s.gateway.Do(ctx, domain.UpstreamRequest{
			Method: http.MethodGet,
			Path:   "/api/v1/reference/" + url.PathEscape(kind),
		})
		if err != nil {
			return nil, fmt.Errorf("fetch reference data '%s': %w", kind, err)
		}
		if !resp.OK() {
			return nil, &domain.UpstreamStatusError{StatusCode: resp.StatusCode, Body: resp.Body}
		}

		now := s.now()
		ttl := s.ttlPolicy.TTLFor(CategoryReference, now, now)
		if err := s.cache.Set(ctx, key, domain.NamespaceReference, resp.Body, ttl); err != nil {
			s.logger.Warn(ctx, "Failed to cache reference data", "key", key, "error", err.Error())
		}
		return resp.Body, nil
	})
	if err != nil {
		return nil, err
	}

	var items []domain.ReferenceItem
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("decode reference data '%s' response: %w", kind, err)
	}
	return items, nil
}

// CreateTicket creates a ticket upstream and, on confirmed success,
// invalidates the owner's list keys that could now be stale.
func (s *TicketService) CreateTicket(ctx context.Context, newTicket domain.NewTicket) (*domain.Ticket, error) {
	resp, err := s.gateway.Do(ctx, domain.UpstreamRequest{
		Method: http.MethodPost,
		Path:   "/api/v1/tickets",
		Body:   newTicket,
	})
	if err != nil {
		return nil, fmt.Errorf("create ticket: %w", err)
	}
	if !resp.OK() {
		return nil, &domain.UpstreamStatusError{StatusCode: resp.StatusCode, Body: resp.Body}
	}

	var ticket domain.Ticket
	if err := json.Unmarshal(resp.Body, &ticket); err != nil {
		return nil, fmt.Errorf("decode create ticket response: %w", err)
	}

	s.invalidateAfterMutation(ctx, ticket.ID, newTicket.OwnerID)
	return &ticket, nil
}

// ReplyToTicket appends an article to a ticket. userID identifies the acting
// portal user whose filtered list views must be invalidated.
func (s *TicketService) ReplyToTicket(ctx context.Context, ticketID string, reply domain.Reply, userID string) error {
	resp, err := s.gateway.Do(ctx, domain.UpstreamRequest{
		Method: http.MethodPost,
		Path:   "/api/v1/tickets/" + url.PathEscape(ticketID) + "/replies",
		Body:   reply,
	})
	if err != nil {
		return fmt.Errorf("reply to ticket '%s': %w", ticketID, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return ErrTicketNotFound
	}
	if !resp.OK() {
		return &domain.UpstreamStatusError{StatusCode: resp.StatusCode, Body: resp.Body}
	}

	s.invalidateAfterMutation(ctx, ticketID, userID)
	return nil
}

// CloseTicket transitions a ticket to its terminal status. userID identifies
// the acting portal user whose filtered list views must be invalidated.
func (s *TicketService) CloseTicket(ctx context.Context, ticketID string, userID string) error {
	resp, err := s.gateway.Do(ctx, domain.UpstreamRequest{
		Method: http.MethodPut,
		Path:   "/api/v1/tickets/" + url.PathEscape(ticketID) + "/close",
	})
	if err != nil {
		return fmt.Errorf("close ticket '%s': %w", ticketID, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return ErrTicketNotFound
	}
	if !resp.OK() {
		return &domain.UpstreamStatusError{StatusCode: resp.StatusCode, Body: resp.Body}
	}

	s.invalidateAfterMutation(ctx, ticketID, userID)
	return nil
}

// invalidateAfterMutation drops every cache key the mutation could have
// staled: the ticket's detail key plus all current-period list variants for
// the acting user. Runs only after upstream confirmed the mutation.
func (s *TicketService) invalidateAfterMutation(ctx context.Context, ticketID, userID string) {
	year := s.now().Year()
	keys := make([]string, 0, len(listStatuses)+1)
	keys = append(keys, cachekeys.TicketDetailKey(ticketID))
	if userID != "" {
		for _, status := range listStatuses {
			keys = append(keys, cachekeys.TicketListKey(status, year, userID))
		}
	}
	s.cache.Invalidate(ctx, keys...)
}
