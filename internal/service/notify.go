package service

import (
	"context"
	"time"

	"github.com/boddenberg/finledger-go/internal/domain"
	"github.com/boddenberg/finledger-go/internal/infra/observability"
	"github.com/boddenberg/finledger-go/internal/port"

	"go.uber.org/zap"
)

// notifier runs the bookkeeping shared by every successful ledger mutation:
// count it, drop cached summaries, tell the other replicas.
type notifier struct {
	cache     *SummaryCache
	publisher port.EventPublisher
	metrics   *observability.Metrics
	logger    *zap.Logger
}

func (n *notifier) changed(ctx context.Context, username string, kind domain.LedgerEventKind, entryID string) {
	n.metrics.IncrMutation(kind)
	n.cache.invalidate(username)

	event := domain.LedgerEvent{
		Username:  username,
		Kind:      kind,
		EntryID:   entryID,
		Timestamp: time.Now().UTC(),
	}
	// the write already succeeded, so a lost event only delays invalidation
	// on other replicas until the cache TTL expires
	if err := n.publisher.Publish(ctx, event); err != nil {
		n.logger.Warn("failed to publish ledger event",
			zap.String("username", username),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
	}
}
