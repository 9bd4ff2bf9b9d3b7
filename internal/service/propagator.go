package queue_publisher

import (
	"context"
	"time"

	"github.com/bekzatkhan/supply-accountability/internal/accountability"
	q "github.com/bekzatkhan/supply-accountability/internal/queue"
)

// Propagator fans a committed item transition out to both delivery
// legs: the in-process hub feeding connected websocket viewers and
// the durable broker queue feeding out-of-process consumers. It
// implements the engine's Publisher interface.
type Propagator struct {
	hub *accountability.Hub
}

// NewPropagator returns a Propagator over the given hub.
func NewPropagator(hub *accountability.Hub) *Propagator {
	return &Propagator{hub: hub}
}

// Publish never blocks the committing request: the hub enqueue is
// non-blocking by construction and the broker publish runs in its own
// goroutine with a bounded timeout. A broker outage therefore only
// delays the audit trail; connected viewers still get the event.
func (p *Propagator) Publish(ev accountability.ItemEvent) {
	if p.hub != nil {
		p.hub.Publish(ev)
	}

	msg := q.ItemChangedEvent{
		SessionID:          ev.Item.SessionID,
		ItemID:             ev.Item.ID,
		EquipmentID:        ev.Item.EquipmentID,
		Nomenclature:       ev.Item.Nomenclature,
		HolderID:           ev.Item.HolderID,
		Status:             ev.Item.Status,
		Method:             ev.Item.Method,
		ConfirmationStatus: ev.Item.ConfirmationStatus,
		Version:            ev.Item.Version,
		OccurredAt:         ev.OccurredAt.Format(time.RFC3339),
	}
	if ev.Item.SerialNumber != nil {
		msg.SerialNumber = *ev.Item.SerialNumber
	}
	if ev.Item.VerifiedBy != nil {
		msg.VerifiedBy = *ev.Item.VerifiedBy
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = PublishItemChanged(ctx, msg) // already logged inside
	}()
}
