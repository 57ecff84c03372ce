package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hope/internal/audit"
	id "hope/pkg/domain"
	txcontext "hope/pkg/platform/tx"
)

func TestAppendJoinsTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := New(db)
	eventID := uuid.New()
	store.newID = func() uuid.UUID { return eventID }
	ticket := id.TicketID(uuid.New())
	at := time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO adjudication_audit_events`).
		WithArgs(eventID, ticket, "ticket_closed", nil, "", "reviewer", "req", at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)
	ctx := txcontext.WithTx(context.Background(), tx)
	require.NoError(t, store.Append(ctx, audit.Event{
		TicketID:  ticket,
		Action:    audit.ActionTicketClosed,
		ActorID:   "reviewer",
		RequestID: "req",
		Timestamp: at,
	}))
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByTicket(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ticket := id.TicketID(uuid.New())
	individual := uuid.New()
	at := time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`FROM adjudication_audit_events`).
		WithArgs(ticket).
		WillReturnRows(sqlmock.NewRows([]string{"ticket_id", "action", "individual_id", "decision", "actor_id", "request_id", "occurred_at"}).
			AddRow(ticket.String(), "individual_selected", individual.String(), "duplicate", "r1", "", at).
			AddRow(ticket.String(), "ticket_closed", nil, "", "r1", "", at))

	events, err := New(db).ListByTicket(context.Background(), ticket)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, audit.ActionIndividualSelected, events[0].Action)
	assert.Equal(t, id.IndividualID(individual), events[0].IndividualID)
	assert.True(t, events[1].IndividualID.IsNil())
	assert.NoError(t, mock.ExpectationsWereMet())
}
