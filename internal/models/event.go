package models

import (
	"time"

	"github.com/google/uuid"
)

// SourceKind - тип источника события
type SourceKind string

const (
	SourceReport          SourceKind = "report"
	SourceAnonymousReport SourceKind = "anonymous_report"
	SourceDeviceTelemetry SourceKind = "device_telemetry"
	SourceAnomalyDetector SourceKind = "anomaly_detector"
)

// Location - географическая точка события или инцидента
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Classification - подсказка классификации от источника или скорера
type Classification struct {
	Type       string   `json:"type"`
	Severity   Severity `json:"severity"`
	Confidence float64  `json:"confidence"`
}

// Event - нормализованное событие. После приёма неизменяемо.
type Event struct {
	ID             uuid.UUID         `json:"id"`
	SourceKind     SourceKind        `json:"source_kind"`
	TouristID      string            `json:"tourist_id,omitempty"`
	DeviceID       string            `json:"device_id,omitempty"`
	Location       *Location         `json:"location,omitempty"`
	Timestamp      time.Time         `json:"timestamp"`
	ReceivedAt     time.Time         `json:"received_at"`
	Payload        map[string]string `json:"payload,omitempty"`
	Classification *Classification   `json:"classification,omitempty"`
}

// CorrelationKey возвращает стабильный идентификатор источника события:
// device id для телеметрии, tourist id для отчётов. Пустая строка, если
// стабильного идентификатора нет (анонимные отчёты без устройства).
func (e *Event) CorrelationKey() string {
	if e.DeviceID != "" {
		return e.DeviceID
	}
	return e.TouristID
}
