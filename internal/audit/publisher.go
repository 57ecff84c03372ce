// Package audit records the review trail of adjudication tickets: who
// flagged which individual, who cleared a flag, who closed the ticket.
package audit

import (
	"context"

	id "hope/pkg/domain"
	"hope/pkg/requestcontext"
)

// Store appends events. Stores backed by the entity database join the
// caller's transaction so the trail commits or rolls back with the review.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByTicket(ctx context.Context, ticketID id.TicketID) ([]Event, error)
}

// Publisher captures structured audit events. It is append-only and uses the
// storage layer for persistence so tests can swap sinks easily.
type Publisher struct {
	store Store
}

func NewPublisher(store Store) *Publisher {
	return &Publisher{store: store}
}

// Emit fills timestamp, actor and request ID from the context when unset.
func (p *Publisher) Emit(ctx context.Context, base Event) error {
	if base.Timestamp.IsZero() {
		base.Timestamp = requestcontext.Now(ctx)
	}
	if base.ActorID == "" {
		base.ActorID = requestcontext.ActorID(ctx)
	}
	if base.RequestID == "" {
		base.RequestID = requestcontext.RequestID(ctx)
	}
	return p.store.Append(ctx, base)
}

func (p *Publisher) List(ctx context.Context, ticketID id.TicketID) ([]Event, error) {
	return p.store.ListByTicket(ctx, ticketID)
}
