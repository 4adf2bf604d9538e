package v1

import (
	"github.com/shenikar/incident_dispatch_system/internal/gateway"
	"github.com/shenikar/incident_dispatch_system/internal/models"
)

// DTOToRawEvent преобразует DTO приёма в сырое событие шлюза
func DTOToRawEvent(dto IngestEventRequest) gateway.RawEvent {
	raw := gateway.RawEvent{
		SourceKind: dto.SourceKind,
		TouristID:  dto.TouristID,
		DeviceID:   dto.DeviceID,
		Timestamp:  dto.Timestamp,
		Payload:    dto.Payload,
	}
	if dto.Latitude != nil && dto.Longitude != nil {
		raw.Location = &models.Location{Latitude: *dto.Latitude, Longitude: *dto.Longitude}
	}
	if dto.Classification != nil {
		raw.Classification = &models.Classification{
			Type:       dto.Classification.Type,
			Severity:   models.Severity(dto.Classification.Severity),
			Confidence: dto.Classification.Confidence,
		}
	}
	return raw
}

// DTOToUnitModel преобразует DTO регистрации в доменную модель юнита
func DTOToUnitModel(dto RegisterUnitRequest) *models.ResponseUnit {
	return &models.ResponseUnit{
		ID:       dto.ID,
		Type:     models.UnitType(dto.Type),
		Location: models.Location{Latitude: dto.Latitude, Longitude: dto.Longitude},
		Status:   models.UnitAvailable,
	}
}

// ModelToIncidentResponse преобразует доменную модель в DTO для ответа
func ModelToIncidentResponse(model *models.Incident) *IncidentResponse {
	return &IncidentResponse{
		ID:              model.ID,
		Type:            model.Type,
		Severity:        string(model.Severity),
		Priority:        string(model.Priority),
		Status:          string(model.Status),
		Latitude:        model.Location.Latitude,
		Longitude:       model.Location.Longitude,
		TouristID:       model.TouristID,
		DeviceID:        model.DeviceID,
		IdentityStatus:  string(model.IdentityStatus),
		AssignedUnitID:  model.AssignedUnitID,
		SLADeadline:     model.SLADeadline,
		EventIDs:        model.EventIDs,
		EscalationCount: model.EscalationCount,
		Version:         model.Version,
		CreatedAt:       model.CreatedAt,
		UpdatedAt:       model.UpdatedAt,
	}
}

// ModelsToIncidentResponses преобразует слайс моделей в слайс DTO
func ModelsToIncidentResponses(models []*models.Incident) []*IncidentResponse {
	responses := make([]*IncidentResponse, len(models))
	for i, model := range models {
		responses[i] = ModelToIncidentResponse(model)
	}
	return responses
}

// ModelToUnitResponse преобразует доменную модель юнита в DTO для ответа
func ModelToUnitResponse(model *models.ResponseUnit) *UnitResponse {
	return &UnitResponse{
		ID:                 model.ID,
		Type:               string(model.Type),
		Latitude:           model.Location.Latitude,
		Longitude:          model.Location.Longitude,
		Status:             string(model.Status),
		AvgResponseSeconds: model.AvgResponseTime.Seconds(),
		RecentAssignments:  model.RecentAssignments,
	}
}

// ModelsToUnitResponses преобразует слайс юнитов в слайс DTO
func ModelsToUnitResponses(units []*models.ResponseUnit) []*UnitResponse {
	responses := make([]*UnitResponse, len(units))
	for i, unit := range units {
		responses[i] = ModelToUnitResponse(unit)
	}
	return responses
}
