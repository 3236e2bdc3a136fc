package events

import (
	"encoding/json"
	"fmt"

	"github.com/boddenberg/finledger-go/internal/domain"
)

// RoutingKey is the key every ledger event is published with. Each replica
// binds its own queue with this key, so all of them see every event.
const RoutingKey = "ledger.changed"

// Encode serializes an event for the wire.
func Encode(e domain.LedgerEvent) ([]byte, error) {
	return json.Marshal(e)
}

// Decode parses and checks an event body.
func Decode(body []byte) (domain.LedgerEvent, error) {
	var e domain.LedgerEvent
	if err := json.Unmarshal(body, &e); err != nil {
		return e, fmt.Errorf("decode ledger event: %w", err)
	}
	if e.Username == "" {
		return e, fmt.Errorf("decode ledger event: missing username")
	}
	switch e.Kind {
	case domain.EventExpenseAdded, domain.EventExpenseUpdated, domain.EventExpenseDeleted,
		domain.EventCreditAdded, domain.EventProfileUpdated:
	default:
		return e, fmt.Errorf("decode ledger event: unknown kind %q", e.Kind)
	}
	return e, nil
}
