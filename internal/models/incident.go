package models

import (
	"time"

	"github.com/google/uuid"
)

// Severity - серьёзность инцидента. Порядок важен: поднимать можно,
// опускать нельзя.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// Rank возвращает числовой ранг серьёзности (неизвестная = low).
func (s Severity) Rank() int {
	return severityRank[s]
}

// Valid проверяет, что значение серьёзности известно системе.
func (s Severity) Valid() bool {
	_, ok := severityRank[s]
	return ok
}

// Next возвращает серьёзность на один уровень выше (critical - потолок).
func (s Severity) Next() Severity {
	switch s {
	case SeverityLow:
		return SeverityMedium
	case SeverityMedium:
		return SeverityHigh
	default:
		return SeverityCritical
	}
}

// Status - статус жизненного цикла инцидента
type Status string

const (
	StatusActive     Status = "active"
	StatusAssigned   Status = "assigned"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
	StatusCancelled  Status = "cancelled"
)

// Terminal сообщает, является ли статус терминальным
func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusCancelled
}

// IdentityStatus - результат проверки личности туриста внешним реестром
type IdentityStatus string

const (
	IdentityVerified   IdentityStatus = "verified"
	IdentityActive     IdentityStatus = "active"
	IdentityRevoked    IdentityStatus = "revoked"
	IdentityUnknown    IdentityStatus = "unknown"
	IdentityUnverified IdentityStatus = "unverified"
)

// Incident - отслеживаемый инцидент безопасности. Все мутации проходят
// через store с проверкой версии.
type Incident struct {
	ID              uuid.UUID      `json:"id"`
	Type            string         `json:"type"`
	Severity        Severity       `json:"severity"`
	Priority        Severity       `json:"priority"`
	Status          Status         `json:"status"`
	Location        Location       `json:"location"`
	TouristID       string         `json:"tourist_id,omitempty"`
	DeviceID        string         `json:"device_id,omitempty"`
	IdentityStatus  IdentityStatus `json:"identity_status"`
	AssignedUnitID  *string        `json:"assigned_unit_id,omitempty"`
	SLADeadline     time.Time      `json:"sla_deadline"`
	EventIDs        []uuid.UUID    `json:"event_ids"`
	EscalationCount int            `json:"escalation_count"`
	Version         int64          `json:"version"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// Clone возвращает глубокую копию инцидента, чтобы вызывающие не могли
// менять состояние store в обход проверки версии.
func (i *Incident) Clone() *Incident {
	cp := *i
	cp.EventIDs = append([]uuid.UUID(nil), i.EventIDs...)
	if i.AssignedUnitID != nil {
		unitID := *i.AssignedUnitID
		cp.AssignedUnitID = &unitID
	}
	return &cp
}
