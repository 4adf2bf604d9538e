package v1

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shenikar/incident_dispatch_system/internal/config"
	"github.com/shenikar/incident_dispatch_system/internal/gateway"
	"github.com/shenikar/incident_dispatch_system/internal/models"
	"github.com/shenikar/incident_dispatch_system/internal/service"
	"github.com/shenikar/incident_dispatch_system/internal/store"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	incidentService service.IncidentService
	logger          *logrus.Logger
	validate        *validator.Validate
	cfg             *config.Config
}

func NewHandler(incidentService service.IncidentService, logger *logrus.Logger, cfg *config.Config) *Handler {
	return &Handler{
		incidentService: incidentService,
		logger:          logger,
		validate:        validator.New(),
		cfg:             cfg,
	}
}

// @Summary Ingest an event
// @Description Submit an event from any source. The engine correlates it into an existing incident or opens a new one. Requires API key.
// @Tags Events
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param event body IngestEventRequest true "Event ingestion request"
// @Success 202 {object} IncidentResponse
// @Failure 400 {object} map[string]string "Invalid request body or malformed event"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /events [post]
func (h *Handler) ingestEvent(c *gin.Context) {
	var input IngestEventRequest
	log := h.logger.WithField("method", "ingestEvent")

	if err := c.ShouldBindJSON(&input); err != nil {
		log.WithError(err).Warn("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	incident, err := h.incidentService.IngestEvent(c.Request.Context(), DTOToRawEvent(input))
	if err != nil {
		if errors.Is(err, gateway.ErrMalformedEvent) {
			log.WithError(err).Warn("Event rejected by gateway")
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.WithError(err).Error("Failed to ingest event in service")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusAccepted, ModelToIncidentResponse(incident))
}

// @Summary Get a list of incidents
// @Description Get incidents filtered by status, type and, optionally, distance from a point (lat+lon+radius_meters together). Requires API key.
// @Tags Incidents
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param status query string false "Incident status filter"
// @Param type query string false "Incident type filter"
// @Param lat query number false "Latitude of the location filter center"
// @Param lon query number false "Longitude of the location filter center"
// @Param radius_meters query number false "Radius of the location filter in meters"
// @Success 200 {array} IncidentResponse
// @Failure 400 {object} map[string]string "Unknown status filter or incomplete location filter"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Router /incidents [get]
func (h *Handler) listIncidents(c *gin.Context) {
	log := h.logger.WithField("method", "listIncidents")

	near, radius, err := parseLocationFilter(c)
	if err != nil {
		log.WithError(err).Warn("Invalid location filter")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	incidents, err := h.incidentService.ListIncidents(c.Request.Context(), c.Query("status"), c.Query("type"), near, radius)
	if err != nil {
		log.WithError(err).Warn("Failed to list incidents from service")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, ModelsToIncidentResponses(incidents))
}

// parseLocationFilter читает lat/lon/radius_meters из query. Фильтр либо
// отсутствует целиком, либо задан всеми тремя параметрами.
func parseLocationFilter(c *gin.Context) (*models.Location, float64, error) {
	latStr, lonStr, radiusStr := c.Query("lat"), c.Query("lon"), c.Query("radius_meters")
	if latStr == "" && lonStr == "" && radiusStr == "" {
		return nil, 0, nil
	}
	if latStr == "" || lonStr == "" || radiusStr == "" {
		return nil, 0, errors.New("location filter requires lat, lon and radius_meters together")
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return nil, 0, errors.New("invalid lat")
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return nil, 0, errors.New("invalid lon")
	}
	radius, err := strconv.ParseFloat(radiusStr, 64)
	if err != nil || radius <= 0 {
		return nil, 0, errors.New("invalid radius_meters")
	}
	return &models.Location{Latitude: lat, Longitude: lon}, radius, nil
}

// @Summary Get incident by ID
// @Description Get a single incident by its ID. Requires API key.
// @Tags Incidents
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Incident ID"
// @Success 200 {object} IncidentResponse
// @Failure 400 {object} map[string]string "Invalid incident ID"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Incident not found"
// @Router /incidents/{id} [get]
func (h *Handler) getIncident(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid incident ID"})
		return
	}
	log := h.logger.WithField("method", "getIncident").WithField("id", id)

	incident, err := h.incidentService.GetIncident(c.Request.Context(), id)
	if err != nil {
		log.WithError(err).Warn("Failed to get incident from service")
		c.JSON(http.StatusNotFound, gin.H{"error": "incident not found"})
		return
	}
	c.JSON(http.StatusOK, ModelToIncidentResponse(incident))
}

// @Summary Transition incident status
// @Description Apply an operator status transition to an incident. Requires API key.
// @Tags Incidents
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Incident ID"
// @Param status body UpdateStatusRequest true "Status transition request"
// @Success 200 {object} IncidentResponse
// @Failure 400 {object} map[string]string "Invalid incident ID or request body"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Incident not found"
// @Failure 409 {object} map[string]string "Transition not allowed or version conflict"
// @Router /incidents/{id}/status [post]
func (h *Handler) updateIncidentStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid incident ID"})
		return
	}
	log := h.logger.WithField("method", "updateIncidentStatus").WithField("id", id)

	var input UpdateStatusRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		log.WithError(err).Warn("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	incident, err := h.incidentService.UpdateIncidentStatus(c.Request.Context(), id, models.Status(input.Status))
	if err != nil {
		h.writeMutationError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelToIncidentResponse(incident))
}

// @Summary Cancel an incident
// @Description Cancel an incident from any non-terminal state and release its assigned unit. Requires API key.
// @Tags Incidents
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Incident ID"
// @Success 200 {object} IncidentResponse
// @Failure 400 {object} map[string]string "Invalid incident ID"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Incident not found"
// @Failure 409 {object} map[string]string "Incident already terminal"
// @Router /incidents/{id}/cancel [post]
func (h *Handler) cancelIncident(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid incident ID"})
		return
	}
	log := h.logger.WithField("method", "cancelIncident").WithField("id", id)

	incident, err := h.incidentService.CancelIncident(c.Request.Context(), id)
	if err != nil {
		h.writeMutationError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelToIncidentResponse(incident))
}

// @Summary Reopen an incident
// @Description Reopen a resolved or cancelled incident as active. Requires API key.
// @Tags Incidents
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Incident ID"
// @Success 200 {object} IncidentResponse
// @Failure 400 {object} map[string]string "Invalid incident ID"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Incident not found"
// @Failure 409 {object} map[string]string "Incident is not terminal"
// @Router /incidents/{id}/reopen [post]
func (h *Handler) reopenIncident(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid incident ID"})
		return
	}
	log := h.logger.WithField("method", "reopenIncident").WithField("id", id)

	incident, err := h.incidentService.ReopenIncident(c.Request.Context(), id)
	if err != nil {
		h.writeMutationError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelToIncidentResponse(incident))
}

// @Summary Get a list of response units
// @Description Get all registered response units and their statuses. Requires API key.
// @Tags Units
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {array} UnitResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Router /units [get]
func (h *Handler) listUnits(c *gin.Context) {
	c.JSON(http.StatusOK, ModelsToUnitResponses(h.incidentService.ListUnits(c.Request.Context())))
}

// @Summary Register a response unit
// @Description Register a response unit in the dispatch registry. Requires API key.
// @Tags Units
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param unit body RegisterUnitRequest true "Unit registration request"
// @Success 201 {object} UnitResponse
// @Failure 400 {object} map[string]string "Invalid request body or validation error"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /units [post]
func (h *Handler) registerUnit(c *gin.Context) {
	var input RegisterUnitRequest
	log := h.logger.WithField("method", "registerUnit")

	if err := c.ShouldBindJSON(&input); err != nil {
		log.WithError(err).Warn("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	unit := DTOToUnitModel(input)
	if err := h.incidentService.RegisterUnit(c.Request.Context(), unit); err != nil {
		log.WithError(err).Error("Failed to register unit in service")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusCreated, ModelToUnitResponse(unit))
}

// @Summary Get application health status
// @Description Get health status of the application
// @Tags System
// @Accept json
// @Produce json
// @Success 200 {object} map[string]string "Status OK"
// @Router /system/health [get]
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// writeMutationError отображает доменные ошибки мутаций в HTTP-коды
func (h *Handler) writeMutationError(c *gin.Context, log *logrus.Entry, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "incident not found"})
	case errors.Is(err, store.ErrInvalidTransition), errors.Is(err, store.ErrTerminal), errors.Is(err, store.ErrConflict):
		log.WithError(err).Warn("Incident mutation rejected")
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		log.WithError(err).Error("Failed to mutate incident in service")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
