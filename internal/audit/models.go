package audit

import (
	"time"

	id "hope/pkg/domain"
)

// Action names a reviewer decision on an adjudication ticket.
type Action string

const (
	ActionIndividualSelected Action = "individual_selected"
	ActionSelectionCleared   Action = "selection_cleared"
	ActionTicketClosed       Action = "ticket_closed"
)

const (
	DecisionDuplicate = "duplicate"
	DecisionDistinct  = "distinct"
)

// Event is one entry of a ticket's review trail.
type Event struct {
	Timestamp    time.Time
	TicketID     id.TicketID
	Action       Action
	IndividualID id.IndividualID
	// Decision is DecisionDuplicate or DecisionDistinct for selections.
	Decision  string
	ActorID   string
	RequestID string
}
