package service

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/boddenberg/finledger-go/internal/domain"
	"github.com/boddenberg/finledger-go/internal/port"
)

// SummaryCache holds computed dashboard summaries per user and filter.
//
// Every invalidation moves the user's generation forward. A summary built
// from a ledger read under an older generation is never stored, so a read
// that overlaps a mutation cannot repopulate the cache with stale totals.
type SummaryCache struct {
	backing port.Cache[*domain.DashboardSummary]

	mu   sync.Mutex
	gens map[string]uint64
}

// NewSummaryCache wraps backing. Ledger and profile services must share
// one instance.
func NewSummaryCache(backing port.Cache[*domain.DashboardSummary]) *SummaryCache {
	return &SummaryCache{
		backing: backing,
		gens:    make(map[string]uint64),
	}
}

// Usernames, categories and payment methods are free text, so every
// component is quoted to keep keys of different filters apart.
func summaryPrefix(username string) string {
	return "summary:" + strconv.Quote(username) + ":"
}

func summaryKey(username string, f domain.CalendarFilter) string {
	return fmt.Sprintf("%s%d:%q:%q", summaryPrefix(username), f.Year, f.Category, f.PaymentMethod)
}

func (c *SummaryCache) get(username string, f domain.CalendarFilter) (*domain.DashboardSummary, bool) {
	return c.backing.Get(summaryKey(username, f))
}

// generation must be read before the ledger is loaded.
func (c *SummaryCache) generation(username string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[username]
}

// put stores summary unless the user's ledger changed since gen was read.
func (c *SummaryCache) put(username string, f domain.CalendarFilter, gen uint64, summary *domain.DashboardSummary) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[username] != gen {
		return false
	}
	c.backing.Set(summaryKey(username, f), summary)
	return true
}

// invalidate drops every cached summary of username.
func (c *SummaryCache) invalidate(username string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[username]++
	return c.backing.DeletePrefix(summaryPrefix(username))
}
