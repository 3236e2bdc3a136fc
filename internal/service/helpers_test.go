package service_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/boddenberg/finledger-go/internal/domain"
	"github.com/boddenberg/finledger-go/internal/infra/cache"
	"github.com/boddenberg/finledger-go/internal/infra/memstore"
	"github.com/boddenberg/finledger-go/internal/infra/observability"
	"github.com/boddenberg/finledger-go/internal/port"
	"github.com/boddenberg/finledger-go/internal/service"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.LedgerEvent
	fail   bool
}

func (p *recordingPublisher) Publish(_ context.Context, e domain.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker unreachable")
	}
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) kinds() []domain.LedgerEventKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := []domain.LedgerEventKind{}
	for _, e := range p.events {
		out = append(out, e.Kind)
	}
	return out
}

// pausingStore holds the next armed FindByKey after it has read the ledger,
// until the test releases it.
type pausingStore struct {
	port.LedgerStore

	armed   atomic.Bool
	reached chan struct{}
	release chan struct{}
}

func (p *pausingStore) arm() {
	p.reached = make(chan struct{})
	p.release = make(chan struct{})
	p.armed.Store(true)
}

func (p *pausingStore) FindByKey(ctx context.Context, username string) (*domain.UserLedger, error) {
	l, err := p.LedgerStore.FindByKey(ctx, username)
	if p.armed.CompareAndSwap(true, false) {
		close(p.reached)
		<-p.release
	}
	return l, err
}

type fixture struct {
	store     *memstore.Store
	paused    *pausingStore
	cache     *cache.InMemory[*domain.DashboardSummary]
	publisher *recordingPublisher
	metrics   *observability.Metrics
	ledger    *service.LedgerService
	profile   *service.ProfileService
}

func newFixture(t *testing.T, usernames ...string) *fixture {
	t.Helper()

	f := &fixture{
		store:     memstore.New(),
		cache:     cache.New[*domain.DashboardSummary](16, time.Minute),
		publisher: &recordingPublisher{},
		metrics:   observability.NewMetrics(),
	}
	t.Cleanup(f.cache.Close)
	f.paused = &pausingStore{LedgerStore: f.store}

	summaries := service.NewSummaryCache(f.cache)
	f.ledger = service.NewLedgerService(f.paused, summaries, f.publisher, f.metrics, zap.NewNop())
	f.profile = service.NewProfileService(f.store, summaries, f.publisher, f.metrics, zap.NewNop())

	for _, u := range usernames {
		require.NoError(t, f.store.CreateLedger(context.Background(), domain.NewUserLedger(u, time.Now())))
	}
	return f
}

func strPtr(s string) *string { return &s }
func floatPtr(f float64) *float64 { return &f }
