package v1

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shenikar/incident_dispatch_system/internal/config"
	"github.com/shenikar/incident_dispatch_system/internal/gateway"
	"github.com/shenikar/incident_dispatch_system/internal/models"
	"github.com/shenikar/incident_dispatch_system/internal/service/mocks"
	"github.com/shenikar/incident_dispatch_system/internal/store"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// newTestHandler создает новый экземпляр Handler с мокированным сервисом
func newTestHandler(t *testing.T) (*Handler, *mocks.MockIncidentService, *gin.Engine) {
	ctrl := gomock.NewController(t)
	mockService := mocks.NewMockIncidentService(ctrl)

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{}) // Отключаем вывод логов в тестах

	cfg := &config.Config{
		APIKeys: []string{"test-api-key"},
	}

	handler := NewHandler(mockService, logger, cfg)

	// Настройка Gin роутера для тестов
	gin.SetMode(gin.TestMode)
	router := gin.New()
	api := router.Group("/api/v1", APIKeyAuthMiddleware(cfg, logger))
	handler.RegisterRoutes(api)

	return handler, mockService, router
}

// makeRequest - вспомогательная функция для выполнения HTTP-запросов
func makeRequest(router *gin.Engine, method, url string, body io.Reader, headers ...map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, url, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, h := range headers {
		for key, value := range h {
			req.Header.Set(key, value)
		}
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func authHeader() map[string]string {
	return map[string]string{"X-API-Key": "test-api-key"}
}

func testIncident(id uuid.UUID) *models.Incident {
	return &models.Incident{
		ID:             id,
		Type:           "medical",
		Severity:       models.SeverityHigh,
		Priority:       models.SeverityHigh,
		Status:         models.StatusActive,
		Location:       models.Location{Latitude: 55.7558, Longitude: 37.6176},
		IdentityStatus: models.IdentityUnverified,
		SLADeadline:    time.Now().UTC().Add(10 * time.Minute),
		EventIDs:       []uuid.UUID{uuid.New()},
		Version:        1,
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}
}

func TestIngestEvent_Success(t *testing.T) {
	_, mockService, router := newTestHandler(t)
	incidentID := uuid.New()
	reqBody := IngestEventRequest{
		SourceKind: "report",
		TouristID:  "tourist-1",
		Latitude:   ptr(55.7558),
		Longitude:  ptr(37.6176),
		Timestamp:  time.Now().UTC(),
	}

	mockService.EXPECT().
		IngestEvent(gomock.Any(), gomock.Any()).
		Return(testIncident(incidentID), nil).
		Times(1)

	bodyBytes, _ := json.Marshal(reqBody)
	w := makeRequest(router, "POST", "/api/v1/events", bytes.NewBuffer(bodyBytes), authHeader())

	assert.Equal(t, http.StatusAccepted, w.Code)

	var resp IncidentResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, incidentID, resp.ID)
	assert.Equal(t, "medical", resp.Type)
}

func TestIngestEvent_InvalidJSON(t *testing.T) {
	_, mockService, router := newTestHandler(t)

	mockService.EXPECT().IngestEvent(gomock.Any(), gomock.Any()).Times(0) // Сервис не должен вызываться

	w := makeRequest(router, "POST", "/api/v1/events", bytes.NewBufferString(`{"source_kind": "report"`), authHeader())

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid request body")
}

func TestIngestEvent_ValidationError(t *testing.T) {
	_, mockService, router := newTestHandler(t)
	reqBody := IngestEventRequest{ // Неизвестный источник
		SourceKind: "carrier_pigeon",
		Timestamp:  time.Now().UTC(),
	}

	mockService.EXPECT().IngestEvent(gomock.Any(), gomock.Any()).Times(0) // Сервис не должен вызываться

	bodyBytes, _ := json.Marshal(reqBody)
	w := makeRequest(router, "POST", "/api/v1/events", bytes.NewBuffer(bodyBytes), authHeader())

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Error:Field validation for 'SourceKind' failed on the 'oneof' tag")
}

func TestIngestEvent_MalformedEvent(t *testing.T) {
	_, mockService, router := newTestHandler(t)
	reqBody := IngestEventRequest{
		SourceKind: "report",
		Timestamp:  time.Now().UTC(),
	}

	mockService.EXPECT().
		IngestEvent(gomock.Any(), gomock.Any()).
		Return(nil, fmt.Errorf("%w: at least one of location or device id is required", gateway.ErrMalformedEvent)).
		Times(1)

	bodyBytes, _ := json.Marshal(reqBody)
	w := makeRequest(router, "POST", "/api/v1/events", bytes.NewBuffer(bodyBytes), authHeader())

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "malformed event")
}

func TestIngestEvent_Unauthorized(t *testing.T) {
	_, mockService, router := newTestHandler(t)

	mockService.EXPECT().IngestEvent(gomock.Any(), gomock.Any()).Times(0)

	w := makeRequest(router, "POST", "/api/v1/events", bytes.NewBufferString(`{}`))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetIncident_Success(t *testing.T) {
	_, mockService, router := newTestHandler(t)
	incidentID := uuid.New()

	mockService.EXPECT().GetIncident(gomock.Any(), incidentID).Return(testIncident(incidentID), nil).Times(1)

	w := makeRequest(router, "GET", fmt.Sprintf("/api/v1/incidents/%s", incidentID.String()), nil, authHeader())

	assert.Equal(t, http.StatusOK, w.Code)
	var resp IncidentResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, incidentID, resp.ID)
}

func TestGetIncident_InvalidID(t *testing.T) {
	_, mockService, router := newTestHandler(t)

	mockService.EXPECT().GetIncident(gomock.Any(), gomock.Any()).Times(0) // Сервис не должен вызываться

	w := makeRequest(router, "GET", "/api/v1/incidents/invalid-uuid", nil, authHeader())

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid incident ID")
}

func TestGetIncident_NotFound(t *testing.T) {
	_, mockService, router := newTestHandler(t)
	incidentID := uuid.New()

	mockService.EXPECT().GetIncident(gomock.Any(), incidentID).Return(nil, store.ErrNotFound).Times(1)

	w := makeRequest(router, "GET", fmt.Sprintf("/api/v1/incidents/%s", incidentID.String()), nil, authHeader())

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListIncidents_PassesFilters(t *testing.T) {
	_, mockService, router := newTestHandler(t)

	mockService.EXPECT().
		ListIncidents(gomock.Any(), "active", "medical", gomock.Nil(), 0.0).
		Return([]*models.Incident{testIncident(uuid.New())}, nil).
		Times(1)

	w := makeRequest(router, "GET", "/api/v1/incidents?status=active&type=medical", nil, authHeader())

	assert.Equal(t, http.StatusOK, w.Code)
	var resp []IncidentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp, 1)
}

func TestListIncidents_LocationFilter(t *testing.T) {
	_, mockService, router := newTestHandler(t)

	mockService.EXPECT().
		ListIncidents(gomock.Any(), "", "", &models.Location{Latitude: 55.7558, Longitude: 37.6176}, 500.0).
		Return([]*models.Incident{}, nil).
		Times(1)

	w := makeRequest(router, "GET", "/api/v1/incidents?lat=55.7558&lon=37.6176&radius_meters=500", nil, authHeader())

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestListIncidents_IncompleteLocationFilter(t *testing.T) {
	_, _, router := newTestHandler(t)

	// radius_meters без координат - фильтр задан не целиком
	w := makeRequest(router, "GET", "/api/v1/incidents?radius_meters=500", nil, authHeader())

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateIncidentStatus_Success(t *testing.T) {
	_, mockService, router := newTestHandler(t)
	incidentID := uuid.New()
	updated := testIncident(incidentID)
	updated.Status = models.StatusInProgress
	updated.Version = 3

	mockService.EXPECT().
		UpdateIncidentStatus(gomock.Any(), incidentID, models.StatusInProgress).
		Return(updated, nil).
		Times(1)

	bodyBytes, _ := json.Marshal(UpdateStatusRequest{Status: "in_progress"})
	w := makeRequest(router, "POST", fmt.Sprintf("/api/v1/incidents/%s/status", incidentID.String()), bytes.NewBuffer(bodyBytes), authHeader())

	assert.Equal(t, http.StatusOK, w.Code)
	var resp IncidentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "in_progress", resp.Status)
	assert.Equal(t, int64(3), resp.Version)
}

func TestUpdateIncidentStatus_InvalidTransition(t *testing.T) {
	_, mockService, router := newTestHandler(t)
	incidentID := uuid.New()

	mockService.EXPECT().
		UpdateIncidentStatus(gomock.Any(), incidentID, models.StatusResolved).
		Return(nil, fmt.Errorf("service: could not mutate incident: %w", store.ErrInvalidTransition)).
		Times(1)

	bodyBytes, _ := json.Marshal(UpdateStatusRequest{Status: "resolved"})
	w := makeRequest(router, "POST", fmt.Sprintf("/api/v1/incidents/%s/status", incidentID.String()), bytes.NewBuffer(bodyBytes), authHeader())

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestUpdateIncidentStatus_UnknownStatusRejected(t *testing.T) {
	_, mockService, router := newTestHandler(t)
	incidentID := uuid.New()

	mockService.EXPECT().UpdateIncidentStatus(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	bodyBytes, _ := json.Marshal(UpdateStatusRequest{Status: "exploded"})
	w := makeRequest(router, "POST", fmt.Sprintf("/api/v1/incidents/%s/status", incidentID.String()), bytes.NewBuffer(bodyBytes), authHeader())

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCancelIncident_Success(t *testing.T) {
	_, mockService, router := newTestHandler(t)
	incidentID := uuid.New()
	cancelled := testIncident(incidentID)
	cancelled.Status = models.StatusCancelled

	mockService.EXPECT().CancelIncident(gomock.Any(), incidentID).Return(cancelled, nil).Times(1)

	w := makeRequest(router, "POST", fmt.Sprintf("/api/v1/incidents/%s/cancel", incidentID.String()), nil, authHeader())

	assert.Equal(t, http.StatusOK, w.Code)
	var resp IncidentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "cancelled", resp.Status)
}

func TestCancelIncident_AlreadyTerminal(t *testing.T) {
	_, mockService, router := newTestHandler(t)
	incidentID := uuid.New()

	mockService.EXPECT().
		CancelIncident(gomock.Any(), incidentID).
		Return(nil, fmt.Errorf("service: could not mutate incident: %w", store.ErrTerminal)).
		Times(1)

	w := makeRequest(router, "POST", fmt.Sprintf("/api/v1/incidents/%s/cancel", incidentID.String()), nil, authHeader())

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestReopenIncident_Success(t *testing.T) {
	_, mockService, router := newTestHandler(t)
	incidentID := uuid.New()
	reopened := testIncident(incidentID)
	reopened.Version = 4

	mockService.EXPECT().ReopenIncident(gomock.Any(), incidentID).Return(reopened, nil).Times(1)

	w := makeRequest(router, "POST", fmt.Sprintf("/api/v1/incidents/%s/reopen", incidentID.String()), nil, authHeader())

	assert.Equal(t, http.StatusOK, w.Code)
	var resp IncidentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "active", resp.Status)
}

func TestRegisterUnit_Success(t *testing.T) {
	_, mockService, router := newTestHandler(t)
	reqBody := RegisterUnitRequest{
		ID:        "med-1",
		Type:      "medical",
		Latitude:  55.7558,
		Longitude: 37.6176,
	}

	mockService.EXPECT().RegisterUnit(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	bodyBytes, _ := json.Marshal(reqBody)
	w := makeRequest(router, "POST", "/api/v1/units", bytes.NewBuffer(bodyBytes), authHeader())

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp UnitResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "med-1", resp.ID)
	assert.Equal(t, "available", resp.Status)
}

func TestRegisterUnit_ValidationError(t *testing.T) {
	_, mockService, router := newTestHandler(t)
	reqBody := RegisterUnitRequest{ // Неизвестный тип юнита
		ID:        "u-1",
		Type:      "submarine",
		Latitude:  55.7558,
		Longitude: 37.6176,
	}

	mockService.EXPECT().RegisterUnit(gomock.Any(), gomock.Any()).Times(0)

	bodyBytes, _ := json.Marshal(reqBody)
	w := makeRequest(router, "POST", "/api/v1/units", bytes.NewBuffer(bodyBytes), authHeader())

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListUnits_Success(t *testing.T) {
	_, mockService, router := newTestHandler(t)

	mockService.EXPECT().ListUnits(gomock.Any()).Return([]*models.ResponseUnit{
		{ID: "med-1", Type: models.UnitMedical, Status: models.UnitAvailable},
	}).Times(1)

	w := makeRequest(router, "GET", "/api/v1/units", nil, authHeader())

	assert.Equal(t, http.StatusOK, w.Code)
	var resp []UnitResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "med-1", resp[0].ID)
}

func TestHealthCheck(t *testing.T) {
	_, _, router := newTestHandler(t)

	w := makeRequest(router, "GET", "/api/v1/system/health", nil, authHeader())

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

func ptr(v float64) *float64 {
	return &v
}
