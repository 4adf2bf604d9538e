package v1

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes регистрирует все маршруты API v1
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	// Приём событий из всех источников
	api.POST("/events", h.ingestEvent)

	// Маршруты жизненного цикла инцидентов
	incidents := api.Group("/incidents")
	{
		incidents.GET("", h.listIncidents)
		incidents.GET("/:id", h.getIncident)
		incidents.POST("/:id/status", h.updateIncidentStatus)
		incidents.POST("/:id/cancel", h.cancelIncident)
		incidents.POST("/:id/reopen", h.reopenIncident)
	}

	// Реестр юнитов реагирования
	units := api.Group("/units")
	{
		units.GET("", h.listUnits)
		units.POST("", h.registerUnit)
	}

	// Маршрут Health-check
	api.GET("/system/health", h.healthCheck)
}
