package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Entities that produce ledger events.
const (
	EntityAccount         = "account"
	EntityTransaction     = "transaction"
	EntityExpenseCategory = "expense_category"
)

// Actions carried by ledger events.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// LedgerEvent announces a committed ledger mutation. It carries identifiers
// only; consumers read current state from the store.
type LedgerEvent struct {
	EventID    string    `json:"eventId,omitempty"`
	Entity     string    `json:"entity"`
	Action     string    `json:"action"`
	ID         int64     `json:"id,omitempty"`
	Key        string    `json:"key,omitempty"`
	AccountIDs []int64   `json:"accountIds,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewLedgerEvent stamps a new event with a fresh id and the current time.
func NewLedgerEvent(entity, action string, id int64, accountIDs ...int64) *LedgerEvent {
	return &LedgerEvent{
		EventID:    uuid.NewString(),
		Entity:     entity,
		Action:     action,
		ID:         id,
		AccountIDs: dedupeIDs(accountIDs),
		Timestamp:  time.Now().UTC(),
	}
}

// Type is the event's "<entity>.<action>" name, used as the AMQP message type.
func (e *LedgerEvent) Type() string {
	return e.Entity + "." + e.Action
}

// ToJSON converts the message to JSON bytes
func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes and sanity-checks an event body.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var e LedgerEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if e.Entity == "" || e.Action == "" {
		return nil, fmt.Errorf("ledger event missing entity or action")
	}
	return &e, nil
}

func dedupeIDs(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	out := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
