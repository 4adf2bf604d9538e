package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shenikar/incident_dispatch_system/internal/models"
)

// IncidentRepository - сквозной архив состояния движка в PostgreSQL.
// Авторитетное состояние живёт в памяти store; архив служит для аудита,
// аналитики и тёплого старта.
type IncidentRepository struct {
	db *pgxpool.Pool
}

// NewIncidentRepository создает репозиторий поверх пула pgx
func NewIncidentRepository(db *pgxpool.Pool) *IncidentRepository {
	return &IncidentRepository{
		db: db,
	}
}

// SaveIncident вставляет или обновляет снимок инцидента
func (r *IncidentRepository) SaveIncident(ctx context.Context, inc *models.Incident) error {
	eventIDs, err := json.Marshal(inc.EventIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal event ids: %w", err)
	}

	query := `
		INSERT INTO incidents (
			id, type, severity, priority, status, latitude, longitude,
			tourist_id, device_id, identity_status, assigned_unit_id,
			sla_deadline, event_ids, escalation_count, version, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (id) DO UPDATE SET
			type = EXCLUDED.type,
			severity = EXCLUDED.severity,
			priority = EXCLUDED.priority,
			status = EXCLUDED.status,
			identity_status = EXCLUDED.identity_status,
			assigned_unit_id = EXCLUDED.assigned_unit_id,
			sla_deadline = EXCLUDED.sla_deadline,
			event_ids = EXCLUDED.event_ids,
			escalation_count = EXCLUDED.escalation_count,
			version = EXCLUDED.version,
			updated_at = EXCLUDED.updated_at;
	`
	_, err = r.db.Exec(ctx, query,
		inc.ID,
		inc.Type,
		inc.Severity,
		inc.Priority,
		inc.Status,
		inc.Location.Latitude,
		inc.Location.Longitude,
		inc.TouristID,
		inc.DeviceID,
		inc.IdentityStatus,
		inc.AssignedUnitID,
		inc.SLADeadline,
		eventIDs,
		inc.EscalationCount,
		inc.Version,
		inc.CreatedAt,
		inc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save incident: %w", err)
	}
	return nil
}

// SaveEvent сохраняет принятое событие. События неизменяемы, конфликт id
// игнорируется (повторная доставка).
func (r *IncidentRepository) SaveEvent(ctx context.Context, incidentID uuid.UUID, ev *models.Event) error {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}
	classification, err := json.Marshal(ev.Classification)
	if err != nil {
		return fmt.Errorf("failed to marshal event classification: %w", err)
	}

	var lat, lon *float64
	if ev.Location != nil {
		lat = &ev.Location.Latitude
		lon = &ev.Location.Longitude
	}

	query := `
		INSERT INTO incident_events (
			id, incident_id, source_kind, tourist_id, device_id,
			latitude, longitude, ts, received_at, payload, classification
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING;
	`
	_, err = r.db.Exec(ctx, query,
		ev.ID,
		incidentID,
		ev.SourceKind,
		ev.TouristID,
		ev.DeviceID,
		lat,
		lon,
		ev.Timestamp,
		ev.ReceivedAt,
		payload,
		classification,
	)
	if err != nil {
		return fmt.Errorf("failed to save event: %w", err)
	}
	return nil
}

// SaveAssignment добавляет append-only запись аудита назначения
func (r *IncidentRepository) SaveAssignment(ctx context.Context, a *models.Assignment) error {
	query := `
		INSERT INTO assignments (id, incident_id, unit_id, eta_seconds, outcome, created_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6);
	`
	_, err := r.db.Exec(ctx, query,
		a.ID,
		a.IncidentID,
		a.UnitID,
		a.ETA.Seconds(),
		a.Outcome,
		a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save assignment: %w", err)
	}
	return nil
}

// SaveAmbiguity добавляет запись аудита неоднозначной корреляции
func (r *IncidentRepository) SaveAmbiguity(ctx context.Context, a *models.CorrelationAmbiguity) error {
	candidateIDs, err := json.Marshal(a.CandidateIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal candidate ids: %w", err)
	}

	query := `
		INSERT INTO correlation_ambiguities (id, event_id, chosen_incident_id, candidate_ids, created_at)
		VALUES ($1, $2, $3, $4, $5);
	`
	_, err = r.db.Exec(ctx, query, a.ID, a.EventID, a.ChosenID, candidateIDs, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save correlation ambiguity: %w", err)
	}
	return nil
}

// SaveUnit вставляет или обновляет юнит реагирования
func (r *IncidentRepository) SaveUnit(ctx context.Context, unit *models.ResponseUnit) error {
	query := `
		INSERT INTO response_units (id, type, latitude, longitude, status, avg_response_seconds, recent_assignments)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			type = EXCLUDED.type,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			status = EXCLUDED.status,
			avg_response_seconds = EXCLUDED.avg_response_seconds,
			recent_assignments = EXCLUDED.recent_assignments;
	`
	_, err := r.db.Exec(ctx, query,
		unit.ID,
		unit.Type,
		unit.Location.Latitude,
		unit.Location.Longitude,
		unit.Status,
		unit.AvgResponseTime.Seconds(),
		unit.RecentAssignments,
	)
	if err != nil {
		return fmt.Errorf("failed to save response unit: %w", err)
	}
	return nil
}

// LoadOpenIncidents возвращает нетерминальные инциденты для тёплого старта
func (r *IncidentRepository) LoadOpenIncidents(ctx context.Context) ([]*models.Incident, error) {
	query := `
		SELECT
			id, type, severity, priority, status, latitude, longitude,
			tourist_id, device_id, identity_status, assigned_unit_id,
			sla_deadline, event_ids, escalation_count, version, created_at, updated_at
		FROM incidents
		WHERE status NOT IN ('resolved', 'cancelled');
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load open incidents: %w", err)
	}
	defer rows.Close()

	incidents := make([]*models.Incident, 0)
	for rows.Next() {
		inc := &models.Incident{}
		var eventIDs []byte
		err := rows.Scan(
			&inc.ID,
			&inc.Type,
			&inc.Severity,
			&inc.Priority,
			&inc.Status,
			&inc.Location.Latitude,
			&inc.Location.Longitude,
			&inc.TouristID,
			&inc.DeviceID,
			&inc.IdentityStatus,
			&inc.AssignedUnitID,
			&inc.SLADeadline,
			&eventIDs,
			&inc.EscalationCount,
			&inc.Version,
			&inc.CreatedAt,
			&inc.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan incident row: %w", err)
		}
		if err := json.Unmarshal(eventIDs, &inc.EventIDs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event ids: %w", err)
		}
		incidents = append(incidents, inc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error open incidents iteration: %w", err)
	}
	return incidents, nil
}

// LoadUnits возвращает все юниты реагирования для тёплого старта реестра
func (r *IncidentRepository) LoadUnits(ctx context.Context) ([]*models.ResponseUnit, error) {
	query := `
		SELECT id, type, latitude, longitude, status, avg_response_seconds, recent_assignments
		FROM response_units;
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load response units: %w", err)
	}
	defer rows.Close()

	units := make([]*models.ResponseUnit, 0)
	for rows.Next() {
		unit := &models.ResponseUnit{}
		var avgSeconds float64
		err := rows.Scan(
			&unit.ID,
			&unit.Type,
			&unit.Location.Latitude,
			&unit.Location.Longitude,
			&unit.Status,
			&avgSeconds,
			&unit.RecentAssignments,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan response unit row: %w", err)
		}
		unit.AvgResponseTime = time.Duration(avgSeconds * float64(time.Second))
		units = append(units, unit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error response units iteration: %w", err)
	}
	return units, nil
}
