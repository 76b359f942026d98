package application

import (
	"testing"
	"time"

	"gitlab.com/timkado/api/daisi-helpdesk-service/internal/adapters/config"
	"gitlab.com/timkado/api/daisi-helpdesk-service/internal/domain"
)

type staticConfigProvider struct {
	cfg *config.Config
}

func (p *staticConfigProvider) Get() *config.Config {
	return p.cfg
}

func testConfig() *staticConfigProvider {
	return &staticConfigProvider{cfg: &config.Config{
		Ticketing: config.TicketingConfig{
			BaseURL:        "http://upstream.local",
			DefaultRetries: 2,
			RetryDelayMs:   10,
			TimeoutSeconds: 5,
		},
		Cache: config.CacheConfig{
			SweepIntervalSeconds: 60,
			TTL: config.CacheTTLConfig{
				ArchivedHours:  72,
				ClosedHours:    6,
				ActiveMinutes:  5,
				ReferenceHours: 24,
				SearchMinutes:  2,
			},
		},
	}}
}

func TestCategorize(t *testing.T) {
	policy := NewTTLPolicy(testConfig())
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		status        string
		referenceDate time.Time
		want          TTLCategory
	}{
		{"prior period is archived regardless of status", domain.TicketStatusOpen, time.Date(2024, 12, 31, 23, 0, 0, 0, time.UTC), CategoryArchived},
		{"current period closed", domain.TicketStatusClosed, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), CategoryCurrentClosed},
		{"current period open", domain.TicketStatusOpen, time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC), CategoryCurrentActive},
		{"current period pending", domain.TicketStatusPending, time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC), CategoryCurrentActive},
		{"missing reference date falls to active", domain.TicketStatusClosed, time.Time{}, CategoryCurrentActive},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := policy.Categorize(tc.status, tc.referenceDate, now); got != tc.want {
				t.Fatalf("Categorize(%q, %v) = %v, want %v", tc.status, tc.referenceDate, got, tc.want)
			}
		})
	}
}

func TestTTLFor(t *testing.T) {
	policy := NewTTLPolicy(testConfig())
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	priorYear := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	currentYear := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		category      TTLCategory
		referenceDate time.Time
		want          time.Duration
	}{
		{"archived gets the longest ttl", CategoryArchived, priorYear, 72 * time.Hour},
		{"current closed gets hours", CategoryCurrentClosed, currentYear, 6 * time.Hour},
		{"current active gets minutes", CategoryCurrentActive, currentYear, 5 * time.Minute},
		{"reference data gets hours", CategoryReference, now, 24 * time.Hour},
		{"search results get the shortest ttl", CategorySearch, now, 2 * time.Minute},
		{"archived with missing date fails toward freshness", CategoryArchived, time.Time{}, 5 * time.Minute},
		{"closed with missing date fails toward freshness", CategoryCurrentClosed, time.Time{}, 5 * time.Minute},
		{"archived with future date fails toward freshness", CategoryArchived, now.Add(time.Hour), 5 * time.Minute},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := policy.TTLFor(tc.category, tc.referenceDate, now); got != tc.want {
				t.Fatalf("TTLFor(%v, %v) = %v, want %v", tc.category, tc.referenceDate, got, tc.want)
			}
		})
	}
}

func TestTTLPolicyIsDeterministic(t *testing.T) {
	policy := NewTTLPolicy(testConfig())
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ref := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	first := policy.TTLFor(CategoryArchived, ref, now)
	for i := 0; i < 10; i++ {
		if got := policy.TTLFor(CategoryArchived, ref, now); got != first {
			t.Fatalf("TTLFor varied across identical inputs: %v vs %v", got, first)
		}
	}
}
