package handler

import (
	"time"

	"hope/internal/adjudication/models"
	"hope/internal/audit"
	id "hope/pkg/domain"
)

type ErrorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

type CloseableResponse struct {
	Closeable bool   `json:"closeable"`
	Reason    string `json:"reason,omitempty"`
}

type TicketResponse struct {
	ID                  id.TicketID       `json:"id"`
	IssueType           string            `json:"issue_type"`
	Status              string            `json:"status"`
	BusinessAreaID      id.BusinessAreaID `json:"business_area_id"`
	Programs            []id.ProgramID    `json:"programs"`
	GoldenRecord        id.IndividualID   `json:"golden_records_individual"`
	PossibleDuplicates  []id.IndividualID `json:"possible_duplicates"`
	SelectedIndividuals []id.IndividualID `json:"selected_individuals"`
	SelectedDistinct    []id.IndividualID `json:"selected_distinct"`
	IsCrossArea         bool              `json:"is_cross_area"`
	ScoreMin            float64           `json:"score_min"`
	ScoreMax            float64           `json:"score_max"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

func FromTicket(t *models.Ticket) TicketResponse {
	return TicketResponse{
		ID:                  t.ID,
		IssueType:           string(t.IssueType),
		Status:              string(t.Status),
		BusinessAreaID:      t.BusinessAreaID,
		Programs:            nonNil(t.Programs),
		GoldenRecord:        t.Details.GoldenRecordsIndividual,
		PossibleDuplicates:  nonNil(t.PossibleDuplicateIDs()),
		SelectedIndividuals: nonNil(t.Details.SelectedIndividuals),
		SelectedDistinct:    nonNil(t.Details.SelectedDistinct),
		IsCrossArea:         t.Details.IsCrossArea,
		ScoreMin:            t.Details.ScoreMin,
		ScoreMax:            t.Details.ScoreMax,
		CreatedAt:           t.CreatedAt,
		UpdatedAt:           t.UpdatedAt,
	}
}

type EventResponse struct {
	Action       string           `json:"action"`
	IndividualID *id.IndividualID `json:"individual_id,omitempty"`
	Decision     string           `json:"decision,omitempty"`
	ActorID      string           `json:"actor_id,omitempty"`
	RequestID    string           `json:"request_id,omitempty"`
	Timestamp    time.Time        `json:"timestamp"`
}

func FromEvents(events []audit.Event) []EventResponse {
	out := make([]EventResponse, 0, len(events))
	for _, e := range events {
		r := EventResponse{
			Action:    string(e.Action),
			Decision:  e.Decision,
			ActorID:   e.ActorID,
			RequestID: e.RequestID,
			Timestamp: e.Timestamp,
		}
		if !e.IndividualID.IsNil() {
			individual := e.IndividualID
			r.IndividualID = &individual
		}
		out = append(out, r)
	}
	return out
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
