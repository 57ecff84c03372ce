// Package notify announces adjudication ticket lifecycle events.
//
// KafkaPublisher serves both the ticket factory (ticket.created) and the
// adjudication service (ticket.closed). Events are JSON keyed by ticket ID so
// all events of one ticket land on the same partition.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"hope/internal/adjudication/models"
	"hope/internal/platform/kafka/producer"
	id "hope/pkg/domain"
	"hope/pkg/requestcontext"
)

const (
	EventTicketCreated = "ticket.created"
	EventTicketClosed  = "ticket.closed"

	headerEventType = "event_type"
)

// Event is the wire shape of a ticket notification.
type Event struct {
	Type                string            `json:"type"`
	TicketID            id.TicketID       `json:"ticket_id"`
	Category            models.Category   `json:"category"`
	IssueType           models.IssueType  `json:"issue_type"`
	Status              models.Status     `json:"status"`
	BusinessAreaID      id.BusinessAreaID `json:"business_area_id"`
	ImportBatchID       *id.ImportBatchID `json:"import_batch_id,omitempty"`
	Programs            []id.ProgramID    `json:"programs"`
	GoldenRecord        id.IndividualID   `json:"golden_records_individual"`
	PossibleDuplicates  []id.IndividualID `json:"possible_duplicates"`
	SelectedIndividuals []id.IndividualID `json:"selected_individuals,omitempty"`
	SelectedDistinct    []id.IndividualID `json:"selected_distinct,omitempty"`
	IsCrossArea         bool              `json:"is_cross_area"`
	OccurredAt          time.Time         `json:"occurred_at"`
}

// NewEvent snapshots a ticket for the given event type.
func NewEvent(eventType string, t *models.Ticket, at time.Time) Event {
	e := Event{
		Type:                eventType,
		TicketID:            t.ID,
		Category:            t.Category,
		IssueType:           t.IssueType,
		Status:              t.Status,
		BusinessAreaID:      t.BusinessAreaID,
		Programs:            t.Programs,
		GoldenRecord:        t.Details.GoldenRecordsIndividual,
		SelectedIndividuals: t.Details.SelectedIndividuals,
		SelectedDistinct:    t.Details.SelectedDistinct,
		IsCrossArea:         t.Details.IsCrossArea,
		OccurredAt:          at,
	}
	if !t.ImportBatchID.IsNil() {
		batch := t.ImportBatchID
		e.ImportBatchID = &batch
	}
	e.PossibleDuplicates = make([]id.IndividualID, 0, len(t.Details.PossibleDuplicates))
	for _, d := range t.Details.PossibleDuplicates {
		e.PossibleDuplicates = append(e.PossibleDuplicates, d.IndividualID)
	}
	return e
}

// Sender is the producer side KafkaPublisher writes to.
type Sender interface {
	Publish(ctx context.Context, msg producer.Message) error
}

type KafkaPublisher struct {
	sender Sender
	topic  string
}

func NewKafkaPublisher(sender Sender, topic string) *KafkaPublisher {
	return &KafkaPublisher{sender: sender, topic: topic}
}

func (p *KafkaPublisher) TicketCreated(ctx context.Context, t *models.Ticket) error {
	return p.publish(ctx, EventTicketCreated, t)
}

func (p *KafkaPublisher) TicketClosed(ctx context.Context, t *models.Ticket) error {
	return p.publish(ctx, EventTicketClosed, t)
}

func (p *KafkaPublisher) publish(ctx context.Context, eventType string, t *models.Ticket) error {
	payload, err := json.Marshal(NewEvent(eventType, t, requestcontext.Now(ctx)))
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	return p.sender.Publish(ctx, producer.Message{
		Topic:   p.topic,
		Key:     []byte(t.ID.String()),
		Value:   payload,
		Headers: map[string]string{headerEventType: eventType},
	})
}

// Memory keeps events in process. Used when no broker is configured and in tests.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) TicketCreated(ctx context.Context, t *models.Ticket) error {
	m.record(NewEvent(EventTicketCreated, t, requestcontext.Now(ctx)))
	return nil
}

func (m *Memory) TicketClosed(ctx context.Context, t *models.Ticket) error {
	m.record(NewEvent(EventTicketClosed, t, requestcontext.Now(ctx)))
	return nil
}

func (m *Memory) record(e Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
}

// Events returns a copy of the recorded events in publish order.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}
