package v1

import (
	"time"

	"github.com/google/uuid"
)

// IngestEventRequest DTO для приёма события
// @Description DTO для приёма события из любого источника
type IngestEventRequest struct {
	SourceKind     string                 `json:"source_kind" validate:"required,oneof=report anonymous_report device_telemetry anomaly_detector"`
	TouristID      string                 `json:"tourist_id,omitempty"`
	DeviceID       string                 `json:"device_id,omitempty"`
	Latitude       *float64               `json:"latitude,omitempty" validate:"omitempty,latitude"`
	Longitude      *float64               `json:"longitude,omitempty" validate:"omitempty,longitude"`
	Timestamp      time.Time              `json:"timestamp" validate:"required"`
	Payload        map[string]string      `json:"payload,omitempty"`
	Classification *ClassificationPayload `json:"classification,omitempty"`
}

// ClassificationPayload DTO классификации события
// @Description Классификация события источником или скорером
type ClassificationPayload struct {
	Type       string  `json:"type" validate:"required"`
	Severity   string  `json:"severity" validate:"required,oneof=low medium high critical"`
	Confidence float64 `json:"confidence" validate:"gte=0,lte=1"`
}

// UpdateStatusRequest DTO для операторского перехода статуса
// @Description DTO для операторского перехода статуса инцидента
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=assigned in_progress resolved cancelled"`
}

// RegisterUnitRequest DTO для регистрации юнита реагирования
// @Description DTO для регистрации юнита реагирования
type RegisterUnitRequest struct {
	ID        string  `json:"id" validate:"required"`
	Type      string  `json:"type" validate:"required,oneof=police medical fire general"`
	Latitude  float64 `json:"latitude" validate:"required,latitude"`
	Longitude float64 `json:"longitude" validate:"required,longitude"`
}

// IncidentResponse DTO для ответа с информацией об инциденте
// @Description DTO для ответа с информацией об инциденте
type IncidentResponse struct {
	ID              uuid.UUID   `json:"id"`
	Type            string      `json:"type"`
	Severity        string      `json:"severity"`
	Priority        string      `json:"priority"`
	Status          string      `json:"status"`
	Latitude        float64     `json:"latitude"`
	Longitude       float64     `json:"longitude"`
	TouristID       string      `json:"tourist_id,omitempty"`
	DeviceID        string      `json:"device_id,omitempty"`
	IdentityStatus  string      `json:"identity_status"`
	AssignedUnitID  *string     `json:"assigned_unit_id,omitempty"`
	SLADeadline     time.Time   `json:"sla_deadline"`
	EventIDs        []uuid.UUID `json:"event_ids"`
	EscalationCount int         `json:"escalation_count"`
	Version         int64       `json:"version"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// UnitResponse DTO для ответа с информацией о юните реагирования
// @Description DTO для ответа с информацией о юните реагирования
type UnitResponse struct {
	ID                 string  `json:"id"`
	Type               string  `json:"type"`
	Latitude           float64 `json:"latitude"`
	Longitude          float64 `json:"longitude"`
	Status             string  `json:"status"`
	AvgResponseSeconds float64 `json:"avg_response_seconds"`
	RecentAssignments  int     `json:"recent_assignments"`
}
