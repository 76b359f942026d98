package application

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"gitlab.com/timkado/api/daisi-helpdesk-service/internal/adapters/logger"
	"gitlab.com/timkado/api/daisi-helpdesk-service/internal/domain"
	"gitlab.com/timkado/api/daisi-helpdesk-service/pkg/cachekeys"
)

// fakeCache records sets and invalidations; TTL accounting is the cache
// store's own concern and is tested there.
type fakeCache struct {
	mu          sync.Mutex
	values      map[string][]byte
	ttls        map[string]time.Duration
	invalidated []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: make(map[string][]byte), ttls: make(map[string]time.Duration)}
}

func (c *fakeCache) Set(ctx context.Context, key string, ns domain.Namespace, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return domain.ErrInvalidTTL
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
	c.ttls[key] = ttl
	return nil
}

func (c *fakeCache) Get(ctx context.Context, key string, ns domain.Namespace) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	return v, ok
}

func (c *fakeCache) Invalidate(ctx context.Context, keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.values, k)
		c.invalidated = append(c.invalidated, k)
	}
}

func (c *fakeCache) Clear(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values = make(map[string][]byte)
}

// fakeGateway serves scripted responses keyed by "<METHOD> <path>".
type fakeGateway struct {
	mu        sync.Mutex
	responses map[string]*domain.UpstreamResponse
	err       error
	calls     []string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{responses: make(map[string]*domain.UpstreamResponse)}
}

func (g *fakeGateway) Do(ctx context.Context, req domain.UpstreamRequest) (*domain.UpstreamResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	call := req.Method + " " + req.Path
	g.calls = append(g.calls, call)
	if g.err != nil {
		return nil, g.err
	}
	if resp, ok := g.responses[call]; ok {
		return resp, nil
	}
	return &domain.UpstreamResponse{StatusCode: http.StatusNotFound}, nil
}

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

func (g *fakeGateway) respond(method, path string, status int, payload any) {
	body, _ := json.Marshal(payload)
	g.mu.Lock()
	defer g.mu.Unlock()
	g.responses[method+" "+path] = &domain.UpstreamResponse{StatusCode: status, Body: body}
}

func newTestService(t *testing.T) (*TicketService, *fakeCache, *fakeGateway) {
	t.Helper()
	cfg := testConfig()
	cache := newFakeCache()
	gateway := newFakeGateway()
	svc := NewTicketService(logger.NewNop(), cfg, cache, gateway, NewTTLPolicy(cfg), NewCoalescer(logger.NewNop()))
	svc.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return svc, cache, gateway
}

func TestGetTicketCachesWithPolicyTTL(t *testing.T) {
	ctx := context.Background()
	svc, cache, gateway := newTestService(t)

	ticket := domain.Ticket{
		ID:        "42",
		Subject:   "printer on fire",
		Status:    domain.TicketStatusOpen,
		OwnerID:   "u17",
		CreatedAt: time.Date(2025, 5, 30, 9, 0, 0, 0, time.UTC),
	}
	gateway.respond(http.MethodGet, "/api/v1/tickets/42", http.StatusOK, ticket)

	got, err := svc.GetTicket(ctx, "42")
	if err != nil {
		t.Fatalf("GetTicket failed: %v", err)
	}
	if got.Subject != "printer on fire" {
		t.Fatalf("unexpected ticket: %+v", got)
	}

	// Active current-period ticket caches for the short TTL.
	key := cachekeys.TicketDetailKey("42")
	if ttl := cache.ttls[key]; ttl != 5*time.Minute {
		t.Fatalf("cached with ttl %v, want 5m", ttl)
	}

	// Second read is served from cache without another upstream call.
	if _, err := svc.GetTicket(ctx, "42"); err != nil {
		t.Fatalf("cached GetTicket failed: %v", err)
	}
	if n := gateway.callCount(); n != 1 {
		t.Fatalf("upstream called %d times, want 1", n)
	}
}

func TestGetTicketArchivedGetsLongTTL(t *testing.T) {
	ctx := context.Background()
	svc, cache, gateway := newTestService(t)

	ticket := domain.Ticket{
		ID:        "7",
		Status:    domain.TicketStatusClosed,
		CreatedAt: time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	gateway.respond(http.MethodGet, "/api/v1/tickets/7", http.StatusOK, ticket)

	if _, err := svc.GetTicket(ctx, "7"); err != nil {
		t.Fatalf("GetTicket failed: %v", err)
	}
	if ttl := cache.ttls[cachekeys.TicketDetailKey("7")]; ttl != 72*time.Hour {
		t.Fatalf("archived ticket cached with ttl %v, want 72h", ttl)
	}
}

func TestGetTicketUpstreamErrors(t *testing.T) {
	ctx := context.Background()
	svc, _, gateway := newTestService(t)

	if _, err := svc.GetTicket(ctx, "missing"); !errors.Is(err, ErrTicketNotFound) {
		t.Fatalf("expected ErrTicketNotFound, got %v", err)
	}

	gateway.respond(http.MethodGet, "/api/v1/tickets/500", http.StatusInternalServerError, map[string]string{"error": "boom"})
	_, err := svc.GetTicket(ctx, "500")
	var statusErr *domain.UpstreamStatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected UpstreamStatusError(500), got %v", err)
	}

	gateway.err = errors.New("connection refused")
	if _, err := svc.GetTicket(ctx, "42"); err == nil {
		t.Fatal("expected a transport error to propagate")
	}
}

func TestListTicketsValidatesFilter(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	bad := []domain.TicketFilter{
		{Status: "", Year: 2025, UserID: "u1"},
		{Status: "open", Year: 0, UserID: "u1"},
		{Status: "open", Year: 2025, UserID: ""},
	}
	for _, f := range bad {
		if _, err := svc.ListTickets(ctx, f); !errors.Is(err, ErrInvalidFilter) {
			t.Fatalf("filter %+v: expected ErrInvalidFilter, got %v", f, err)
		}
	}
}

func TestListTicketsCachesByFilterPeriod(t *testing.T) {
	ctx := context.Background()
	svc, cache, gateway := newTestService(t)

	tickets := []domain.Ticket{{ID: "1"}, {ID: "2"}}
	gateway.respond(http.MethodGet, "/api/v1/tickets", http.StatusOK, tickets)

	got, err := svc.ListTickets(ctx, domain.TicketFilter{Status: "open", Year: 2025, UserID: "u17"})
	if err != nil {
		t.Fatalf("ListTickets failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d tickets, want 2", len(got))
	}
	if ttl := cache.ttls[cachekeys.TicketListKey("open", 2025, "u17")]; ttl != 5*time.Minute {
		t.Fatalf("active list cached with ttl %v, want 5m", ttl)
	}

	// A prior-period list caches for the archived TTL.
	if _, err := svc.ListTickets(ctx, domain.TicketFilter{Status: "closed", Year: 2023, UserID: "u17"}); err != nil {
		t.Fatalf("ListTickets failed: %v", err)
	}
	if ttl := cache.ttls[cachekeys.TicketListKey("closed", 2023, "u17")]; ttl != 72*time.Hour {
		t.Fatalf("archived list cached with ttl %v, want 72h", ttl)
	}
}

func TestSearchTicketsUsesShortTTL(t *testing.T) {
	ctx := context.Background()
	svc, cache, gateway := newTestService(t)

	gateway.respond(http.MethodGet, "/api/v1/search", http.StatusOK, []domain.SearchResult{{TicketID: "9"}})

	if _, err := svc.SearchTickets(ctx, "printer"); err != nil {
		t.Fatalf("SearchTickets failed: %v", err)
	}
	if ttl := cache.ttls[cachekeys.SearchKey("printer")]; ttl != 2*time.Minute {
		t.Fatalf("search cached with ttl %v, want 2m", ttl)
	}

	if _, err := svc.SearchTickets(ctx, ""); !errors.Is(err, ErrEmptyQuery) {
		t.Fatalf("expected ErrEmptyQuery, got %v", err)
	}
}

func TestReferenceDataValidatesKindAndCaches(t *testing.T) {
	ctx := context.Background()
	svc, cache, gateway := newTestService(t)

	if _, err := svc.ReferenceData(ctx, "flavors"); !errors.Is(err, ErrUnknownReferenceKind) {
		t.Fatalf("expected ErrUnknownReferenceKind, got %v", err)
	}

	gateway.respond(http.MethodGet, "/api/v1/reference/categories", http.StatusOK, []domain.ReferenceItem{{ID: "c1", Label: "Billing"}})

	items, err := svc.ReferenceData(ctx, domain.ReferenceKindCategories)
	if err != nil {
		t.Fatalf("ReferenceData failed: %v", err)
	}
	if len(items) != 1 || items[0].Label != "Billing" {
		t.Fatalf("unexpected items: %+v", items)
	}
	if ttl := cache.ttls[cachekeys.ReferenceKey("categories")]; ttl != 24*time.Hour {
		t.Fatalf("reference data cached with ttl %v, want 24h", ttl)
	}

	if _, err := svc.ReferenceData(ctx, domain.ReferenceKindCategories); err != nil {
		t.Fatalf("cached ReferenceData failed: %v", err)
	}
	if n := gateway.callCount(); n != 1 {
		t.Fatalf("upstream called %d times, want 1", n)
	}
}

func TestCloseTicketInvalidatesDetailAndListKeys(t *testing.T) {
	ctx := context.Background()
	svc, cache, gateway := newTestService(t)

	// Seed the list and detail entries a portal session would hold.
	listKey := cachekeys.TicketListKey("open", 2025, "u17")
	_ = cache.Set(ctx, listKey, domain.NamespaceTicketList, []byte(`[{"id":"42"}]`), 15*time.Minute)
	_ = cache.Set(ctx, cachekeys.TicketDetailKey("42"), domain.NamespaceTicketDetail, []byte(`{"id":"42"}`), 5*time.Minute)

	gateway.respond(http.MethodPut, "/api/v1/tickets/42/close", http.StatusOK, map[string]string{"status": "closed"})

	if err := svc.CloseTicket(ctx, "42", "u17"); err != nil {
		t.Fatalf("CloseTicket failed: %v", err)
	}

	if _, ok := cache.Get(ctx, listKey, domain.NamespaceTicketList); ok {
		t.Fatal("list key still cached after mutation")
	}
	if _, ok := cache.Get(ctx, cachekeys.TicketDetailKey("42"), domain.NamespaceTicketDetail); ok {
		t.Fatal("detail key still cached after mutation")
	}

	// All current-period status variants for the acting user are dropped.
	want := map[string]bool{
		cachekeys.TicketDetailKey("42"):                 true,
		cachekeys.TicketListKey("open", 2025, "u17"):    true,
		cachekeys.TicketListKey("pending", 2025, "u17"): true,
		cachekeys.TicketListKey("closed", 2025, "u17"):  true,
	}
	for _, k := range cache.invalidated {
		delete(want, k)
	}
	if len(want) != 0 {
		t.Fatalf("missing invalidations: %v", want)
	}
}

func TestFailedMutationDoesNotInvalidate(t *testing.T) {
	ctx := context.Background()
	svc, cache, gateway := newTestService(t)

	listKey := cachekeys.TicketListKey("open", 2025, "u17")
	_ = cache.Set(ctx, listKey, domain.NamespaceTicketList, []byte(`[]`), 15*time.Minute)

	gateway.respond(http.MethodPost, "/api/v1/tickets/42/replies", http.StatusBadGateway, nil)

	err := svc.ReplyToTicket(ctx, "42", domain.Reply{Body: "hi", Author: "u17"}, "u17")
	var statusErr *domain.UpstreamStatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected UpstreamStatusError, got %v", err)
	}
	if len(cache.invalidated) != 0 {
		t.Fatalf("cache invalidated despite failed mutation: %v", cache.invalidated)
	}
}

func TestCreateTicketInvalidatesOwnerLists(t *testing.T) {
	ctx := context.Background()
	svc, cache, gateway := newTestService(t)

	created := domain.Ticket{ID: "77", Status: domain.TicketStatusOpen, OwnerID: "u9"}
	gateway.respond(http.MethodPost, "/api/v1/tickets", http.StatusCreated, created)

	got, err := svc.CreateTicket(ctx, domain.NewTicket{Subject: "help", Body: "...", OwnerID: "u9"})
	if err != nil {
		t.Fatalf("CreateTicket failed: %v", err)
	}
	if got.ID != "77" {
		t.Fatalf("unexpected created ticket: %+v", got)
	}

	found := false
	for _, k := range cache.invalidated {
		if k == cachekeys.TicketListKey("open", 2025, "u9") {
			found = true
		}
	}
	if !found {
		t.Fatal("owner's open list key was not invalidated after create")
	}
}
