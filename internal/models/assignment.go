package models

import (
	"time"

	"github.com/google/uuid"
)

// AssignmentOutcome - результат попытки назначения
type AssignmentOutcome string

const (
	OutcomeAssigned        AssignmentOutcome = "assigned"
	OutcomeNoUnitAvailable AssignmentOutcome = "no_unit_available"
)

// Assignment - append-only запись аудита о попытке назначения юнита.
// После создания никогда не изменяется.
type Assignment struct {
	ID         uuid.UUID         `json:"id"`
	IncidentID uuid.UUID         `json:"incident_id"`
	UnitID     string            `json:"unit_id,omitempty"`
	ETA        time.Duration     `json:"eta,omitempty"`
	Outcome    AssignmentOutcome `json:"outcome"`
	CreatedAt  time.Time         `json:"created_at"`
}

// CorrelationAmbiguity - запись аудита о событии, подошедшем сразу к
// нескольким открытым инцидентам. Инциденты никогда не сливаются молча.
type CorrelationAmbiguity struct {
	ID           uuid.UUID   `json:"id"`
	EventID      uuid.UUID   `json:"event_id"`
	ChosenID     uuid.UUID   `json:"chosen_incident_id"`
	CandidateIDs []uuid.UUID `json:"candidate_incident_ids"`
	CreatedAt    time.Time   `json:"created_at"`
}
