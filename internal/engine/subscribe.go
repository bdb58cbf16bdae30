package engine

import (
	"sort"

	"github.com/google/uuid"

	"github.com/cellgrid/cellgrid/internal/sheet"
	"github.com/cellgrid/cellgrid/internal/value"
)

// Change reports one cell whose observable value changed during a
// recompute pass. Old and New are nil for the empty cell, so a fresh
// entry has Old == nil and a cleared one has New == nil.
type Change struct {
	Coord sheet.Coord
	Old   value.Value
	New   value.Value
}

// SubscriptionID identifies one change subscription. IDs are UUIDv7
// strings, sortable by creation time.
type SubscriptionID string

// Subscribe registers fn to receive the change batch of every pass
// that changed at least one cell. Batches arrive in (row, col) order.
//
// Callbacks run inside the engine's writer section: they must return
// promptly and must not call mutating engine methods. Value reads are
// safe.
func (e *Engine) Subscribe(fn func([]Change)) SubscriptionID {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := SubscriptionID(uuid.Must(uuid.NewV7()).String())
	e.subs[id] = fn
	return id
}

// Unsubscribe removes a subscription. Unknown IDs return
// ErrUnknownSubscription.
func (e *Engine) Unsubscribe(id SubscriptionID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.subs[id]; !ok {
		return ErrUnknownSubscription
	}
	delete(e.subs, id)
	return nil
}

// dispatch delivers a pass's change batch to every subscriber in
// subscription-ID order. Empty batches are not delivered. Caller
// holds e.mu.
func (e *Engine) dispatch(batch []Change) {
	if len(batch) == 0 || len(e.subs) == 0 {
		return
	}
	ids := make([]SubscriptionID, 0, len(e.subs))
	for id := range e.subs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		e.subs[id](batch)
	}
}
