package service

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/incident_dispatch_system/internal/config"
	"github.com/shenikar/incident_dispatch_system/internal/correlator"
	"github.com/shenikar/incident_dispatch_system/internal/dispatch"
	"github.com/shenikar/incident_dispatch_system/internal/gateway"
	"github.com/shenikar/incident_dispatch_system/internal/identity"
	"github.com/shenikar/incident_dispatch_system/internal/models"
	"github.com/shenikar/incident_dispatch_system/internal/scorer"
	"github.com/shenikar/incident_dispatch_system/internal/store"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConfig() *config.Config {
	return &config.Config{
		CorrelationWindow:       15 * time.Minute,
		CorrelationRadiusMeters: 500,
		SLATargets: map[models.Severity]time.Duration{
			models.SeverityLow:      60 * time.Minute,
			models.SeverityMedium:   30 * time.Minute,
			models.SeverityHigh:     10 * time.Minute,
			models.SeverityCritical: 5 * time.Minute,
		},
		DispatchMaxRetries: 2,
		DispatchBaseDelay:  5 * time.Millisecond,
		DispatchTimeout:    time.Second,
		UnitSpeedMPS:       12,
		IdentityTimeout:    time.Second,
	}
}

// newTestService собирает сервис на реальных компонентах конвейера
// и детерминированных внешних коллабораторах.
func newTestService(t *testing.T) (*incidentService, *store.Store, *dispatch.Registry) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{}) // Отключаем вывод логов в тестах

	cfg := newTestConfig()
	s := store.New(logger, nil, nil)
	registry := dispatch.NewRegistry()
	s.SetUnitReleaser(registry)
	planner := dispatch.NewPlanner(s, registry, nil, logger, cfg, nil)
	corr := correlator.New(s, cfg, logger, nil, nil)
	verifier := identity.NewStaticVerifier(map[string]models.IdentityStatus{
		"tourist-verified": models.IdentityVerified,
		"tourist-revoked":  models.IdentityRevoked,
	})

	svc := NewIncidentService(context.Background(), s, corr, planner, registry, scorer.NewStaticScorer(), verifier, nil, logger, cfg, nil)
	return svc.(*incidentService), s, registry
}

func reportEvent(touristID, description string) gateway.RawEvent {
	return gateway.RawEvent{
		SourceKind: string(models.SourceReport),
		TouristID:  touristID,
		Location:   &models.Location{Latitude: 55.7558, Longitude: 37.6176},
		Timestamp:  time.Now().UTC(),
		Payload:    map[string]string{"description": description},
	}
}

func TestIngestEvent_OpensScoredIncident(t *testing.T) {
	// Подготовка
	svc, _, _ := newTestService(t)

	// Действие: событие без классификации уходит в скорер
	inc, err := svc.IngestEvent(context.Background(), reportEvent("tourist-verified", "sos please help"))

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, "sos", inc.Type)
	assert.Equal(t, models.SeverityCritical, inc.Severity)
	assert.Equal(t, models.StatusActive, inc.Status)
}

func TestIngestEvent_AnnotatesIdentity(t *testing.T) {
	svc, s, _ := newTestService(t)

	inc, err := svc.IngestEvent(context.Background(), reportEvent("tourist-verified", "fire in the lobby"))
	require.NoError(t, err)

	got, err := s.Get(inc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IdentityVerified, got.IdentityStatus)
}

func TestIngestEvent_UnknownTouristStaysAnnotated(t *testing.T) {
	svc, s, _ := newTestService(t)

	inc, err := svc.IngestEvent(context.Background(), reportEvent("tourist-stranger", "theft at the market"))
	require.NoError(t, err)

	got, err := s.Get(inc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IdentityUnknown, got.IdentityStatus)
}

func TestIngestEvent_MalformedEventRejected(t *testing.T) {
	svc, _, _ := newTestService(t)
	raw := reportEvent("tourist-1", "no coordinates")
	raw.Location = nil

	_, err := svc.IngestEvent(context.Background(), raw)

	assert.ErrorIs(t, err, gateway.ErrMalformedEvent)
}

func TestIngestEvent_SecondEventJoinsIncident(t *testing.T) {
	// Подготовка
	svc, s, _ := newTestService(t)
	ctx := context.Background()
	first, err := svc.IngestEvent(ctx, reportEvent("tourist-verified", "fire on the hill"))
	require.NoError(t, err)

	// Действие: второй репортёр о том же пожаре рядом
	raw := reportEvent("tourist-other", "fire on the hill, smoke everywhere")
	raw.Location = &models.Location{Latitude: 55.7560, Longitude: 37.6178}
	second, err := svc.IngestEvent(ctx, raw)

	// Проверки: дубликат не открыл второй инцидент
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	got, err := s.Get(first.ID)
	require.NoError(t, err)
	assert.Len(t, got.EventIDs, 2)
}

func TestIngestEvent_TriggersDispatch(t *testing.T) {
	// Подготовка: свободный юнит в реестре
	svc, s, registry := newTestService(t)
	registry.Add(&models.ResponseUnit{
		ID:       "med-1",
		Type:     models.UnitMedical,
		Location: models.Location{Latitude: 55.7558, Longitude: 37.6176},
		Status:   models.UnitAvailable,
	})

	// Действие
	inc, err := svc.IngestEvent(context.Background(), reportEvent("tourist-verified", "medical emergency"))
	require.NoError(t, err)

	// Проверки: фоновый планировщик назначает юнит
	require.Eventually(t, func() bool {
		got, err := s.Get(inc.ID)
		return err == nil && got.Status == models.StatusAssigned
	}, time.Second, 10*time.Millisecond)

	got, err := s.Get(inc.ID)
	require.NoError(t, err)
	require.NotNil(t, got.AssignedUnitID)
	assert.Equal(t, "med-1", *got.AssignedUnitID)
}

func TestUpdateIncidentStatus_RetriesOnConflict(t *testing.T) {
	// Подготовка: назначенный инцидент
	svc, s, registry := newTestService(t)
	registry.Add(&models.ResponseUnit{ID: "u-1", Type: models.UnitGeneral, Status: models.UnitAvailable})
	inc, err := svc.IngestEvent(context.Background(), reportEvent("tourist-verified", "something odd"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := s.Get(inc.ID)
		return err == nil && got.Status == models.StatusAssigned
	}, time.Second, 10*time.Millisecond)

	// Действие: оператор двигает статус, не зная текущей версии
	updated, err := svc.UpdateIncidentStatus(context.Background(), inc.ID, models.StatusInProgress)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, updated.Status)
}

func TestCancelIncident_ReleasesUnit(t *testing.T) {
	svc, s, registry := newTestService(t)
	registry.Add(&models.ResponseUnit{ID: "u-1", Type: models.UnitGeneral, Status: models.UnitAvailable})
	inc, err := svc.IngestEvent(context.Background(), reportEvent("tourist-verified", "odd noises"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := s.Get(inc.ID)
		return err == nil && got.Status == models.StatusAssigned
	}, time.Second, 10*time.Millisecond)

	cancelled, err := svc.CancelIncident(context.Background(), inc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)

	unit, ok := registry.Get("u-1")
	require.True(t, ok)
	assert.Equal(t, models.UnitAvailable, unit.Status)
}

func TestReopenIncident_ReturnsToActive(t *testing.T) {
	svc, _, _ := newTestService(t)
	inc, err := svc.IngestEvent(context.Background(), reportEvent("tourist-verified", "minor scrape"))
	require.NoError(t, err)

	cancelled, err := svc.CancelIncident(context.Background(), inc.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusCancelled, cancelled.Status)

	reopened, err := svc.ReopenIncident(context.Background(), inc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, reopened.Status)
	assert.Nil(t, reopened.AssignedUnitID)
}

func TestListIncidents_RejectsUnknownStatus(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.ListIncidents(context.Background(), "exploded", "", nil, 0)

	require.Error(t, err)
}

func TestRegisterUnit_AddsToRegistry(t *testing.T) {
	svc, _, _ := newTestService(t)

	err := svc.RegisterUnit(context.Background(), &models.ResponseUnit{
		ID:   "fire-1",
		Type: models.UnitFire,
	})
	require.NoError(t, err)

	units := svc.ListUnits(context.Background())
	require.Len(t, units, 1)
	assert.Equal(t, "fire-1", units[0].ID)
	assert.Equal(t, models.UnitAvailable, units[0].Status)
}

func TestGetIncident_NotFound(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.GetIncident(context.Background(), uuid.New())

	assert.ErrorIs(t, err, store.ErrNotFound)
}
