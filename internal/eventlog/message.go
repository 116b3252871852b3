package eventlog

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"partybid/internal/domain"
)

// Message is the wire form of an event. Amounts travel as base-10 strings.
type Message struct {
	ID        string            `json:"id"`
	PoolID    string            `json:"pool_id"`
	Seq       uint64            `json:"seq"`
	Kind      string            `json:"kind"`
	Actor     string            `json:"actor,omitempty"`
	Amount    string            `json:"amount"`
	State     string            `json:"state"`
	Attrs     map[string]string `json:"attrs,omitempty"`
	Timestamp int64             `json:"timestamp"`
}

// ToMessage converts an event to its wire form.
func ToMessage(e domain.Event) Message {
	m := Message{
		ID:        e.ID,
		PoolID:    e.PoolID,
		Seq:       e.Seq,
		Kind:      e.Kind.String(),
		Amount:    domain.CloneAmount(e.Amount).Dec(),
		State:     e.State.String(),
		Attrs:     e.Clone().Attrs,
		Timestamp: e.Timestamp,
	}
	if !domain.IsZeroAddress(e.Actor) {
		m.Actor = e.Actor.Hex()
	}
	return m
}

// FromMessage converts a wire message back to an event.
func FromMessage(m Message) (domain.Event, error) {
	amount, err := domain.ParseAmount(m.Amount)
	if err != nil {
		return domain.Event{}, err
	}
	state, err := domain.ParsePoolState(m.State)
	if err != nil {
		return domain.Event{}, err
	}
	var actor common.Address
	if m.Actor != "" {
		if actor, err = domain.ParseAddress(m.Actor); err != nil {
			return domain.Event{}, fmt.Errorf("event %s: %w", m.ID, err)
		}
	}
	e := domain.Event{
		ID:        m.ID,
		PoolID:    m.PoolID,
		Seq:       m.Seq,
		Kind:      domain.EventKind(m.Kind),
		Actor:     actor,
		Amount:    amount,
		State:     state,
		Attrs:     m.Attrs,
		Timestamp: m.Timestamp,
	}
	return e.Clone(), nil
}
