package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/boddenberg/finledger-go/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeAck struct {
	acked   bool
	nacked  bool
	requeue bool
}

func (f *fakeAck) Ack(bool) error { f.acked = true; return nil }
func (f *fakeAck) Nack(_, requeue bool) error {
	f.nacked = true
	f.requeue = requeue
	return nil
}

func TestEncodeDecode(t *testing.T) {
	ts := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	body, err := Encode(domain.LedgerEvent{
		Username: "asha", Kind: domain.EventExpenseAdded, EntryID: "e1", Timestamp: ts,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"username":"asha","kind":"expense_added","entryId":"e1","timestamp":"2024-03-05T10:00:00Z"}`, string(body))

	got, err := Decode(body)
	require.NoError(t, err)
	assert.Equal(t, "asha", got.Username)
	assert.Equal(t, domain.EventExpenseAdded, got.Kind)
}

func TestDecode_Rejects(t *testing.T) {
	for name, body := range map[string]string{
		"not json":     `{{`,
		"no username":  `{"kind":"credit_added"}`,
		"unknown kind": `{"username":"asha","kind":"expense_exploded"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(body))
			assert.Error(t, err)
		})
	}
}

func TestHandleDelivery(t *testing.T) {
	valid := []byte(`{"username":"asha","kind":"credit_added"}`)

	t.Run("ack on success", func(t *testing.T) {
		ack := &fakeAck{}
		var seen domain.LedgerEvent
		status := handleDelivery(context.Background(), valid, ack, func(_ context.Context, e domain.LedgerEvent) error {
			seen = e
			return nil
		}, zap.NewNop())

		assert.Equal(t, "ok", status)
		assert.True(t, ack.acked)
		assert.Equal(t, "asha", seen.Username)
	})

	t.Run("drop malformed", func(t *testing.T) {
		ack := &fakeAck{}
		called := false
		status := handleDelivery(context.Background(), []byte("garbage"), ack, func(context.Context, domain.LedgerEvent) error {
			called = true
			return nil
		}, zap.NewNop())

		assert.Equal(t, "malformed", status)
		assert.False(t, called)
		assert.True(t, ack.nacked)
		assert.False(t, ack.requeue)
	})

	t.Run("requeue on handler error", func(t *testing.T) {
		ack := &fakeAck{}
		status := handleDelivery(context.Background(), valid, ack, func(context.Context, domain.LedgerEvent) error {
			return errors.New("cache unavailable")
		}, zap.NewNop())

		assert.Equal(t, "requeued", status)
		assert.True(t, ack.nacked)
		assert.True(t, ack.requeue)
	})
}

func TestNopPublisher(t *testing.T) {
	var p NopPublisher
	assert.NoError(t, p.Publish(context.Background(), domain.LedgerEvent{Username: "asha"}))
	assert.NoError(t, p.Close())
}

func TestQueueSpecFor(t *testing.T) {
	private := queueSpecFor("")
	assert.Equal(t, queueSpec{autoDelete: true, exclusive: true}, private)
	assert.False(t, private.durable)

	shared := queueSpecFor("finledger.cache-invalidation")
	assert.Equal(t, queueSpec{name: "finledger.cache-invalidation", durable: true}, shared)
}
