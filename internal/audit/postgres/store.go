// Package postgres stores the adjudication review trail next to the tickets.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"hope/internal/audit"
	id "hope/pkg/domain"
	txcontext "hope/pkg/platform/tx"
)

type Store struct {
	db    *sql.DB
	newID func() uuid.UUID
}

func New(db *sql.DB) *Store {
	return &Store{db: db, newID: uuid.New}
}

func (s *Store) execer(ctx context.Context) txcontext.Executor {
	return txcontext.Conn(ctx, s.db)
}

// Append writes the event inside the caller's transaction when there is one.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	var individual any
	if !event.IndividualID.IsNil() {
		individual = event.IndividualID
	}
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO adjudication_audit_events
			(id, ticket_id, action, individual_id, decision, actor_id, request_id, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.newID(), event.TicketID, string(event.Action), individual,
		event.Decision, event.ActorID, event.RequestID, event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *Store) ListByTicket(ctx context.Context, ticketID id.TicketID) ([]audit.Event, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT ticket_id, action, individual_id, decision, actor_id, request_id, occurred_at
		FROM adjudication_audit_events
		WHERE ticket_id = $1
		ORDER BY occurred_at, id`, ticketID)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var (
			e      audit.Event
			action string
		)
		if err := rows.Scan(&e.TicketID, &action, &e.IndividualID, &e.Decision, &e.ActorID, &e.RequestID, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Action = audit.Action(action)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
