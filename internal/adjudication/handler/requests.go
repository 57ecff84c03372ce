package handler

import (
	"strings"

	id "hope/pkg/domain"
	dErrors "hope/pkg/domain-errors"
)

// SelectRequest is the body of POST /tickets/{ticketID}/selections.
type SelectRequest struct {
	IndividualID string `json:"individual_id"`
	// Duplicate flags the individual as the same person as the golden
	// record; false marks it distinct.
	Duplicate bool `json:"duplicate"`
}

// Validate parses the individual ID.
func (r *SelectRequest) Validate() (id.IndividualID, error) {
	if r == nil {
		return id.IndividualID{}, dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	return id.ParseIndividualID(strings.TrimSpace(r.IndividualID))
}
