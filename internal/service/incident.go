package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shenikar/incident_dispatch_system/internal/config"
	"github.com/shenikar/incident_dispatch_system/internal/correlator"
	"github.com/shenikar/incident_dispatch_system/internal/dispatch"
	"github.com/shenikar/incident_dispatch_system/internal/gateway"
	"github.com/shenikar/incident_dispatch_system/internal/identity"
	"github.com/shenikar/incident_dispatch_system/internal/metrics"
	"github.com/shenikar/incident_dispatch_system/internal/models"
	"github.com/shenikar/incident_dispatch_system/internal/scorer"
	"github.com/shenikar/incident_dispatch_system/internal/store"
	"github.com/sirupsen/logrus"
)

const conflictRetries = 3

// UnitSaver - персистентность юнитов реагирования
type UnitSaver interface {
	SaveUnit(ctx context.Context, unit *models.ResponseUnit) error
}

// IncidentService определяет контракт бизнес-логики движка для хэндлеров
type IncidentService interface {
	IngestEvent(ctx context.Context, raw gateway.RawEvent) (*models.Incident, error)
	GetIncident(ctx context.Context, id uuid.UUID) (*models.Incident, error)
	ListIncidents(ctx context.Context, status, incidentType string, near *models.Location, radiusMeters float64) ([]*models.Incident, error)
	ListUnits(ctx context.Context) []*models.ResponseUnit
	RegisterUnit(ctx context.Context, unit *models.ResponseUnit) error
	UpdateIncidentStatus(ctx context.Context, id uuid.UUID, newStatus models.Status) (*models.Incident, error)
	CancelIncident(ctx context.Context, id uuid.UUID) (*models.Incident, error)
	ReopenIncident(ctx context.Context, id uuid.UUID) (*models.Incident, error)
}

type incidentService struct {
	gateway    *gateway.Gateway
	correlator *correlator.Correlator
	store      *store.Store
	planner    *dispatch.Planner
	registry   *dispatch.Registry
	scorer     scorer.Scorer
	verifier   identity.Verifier
	unitSaver  UnitSaver
	logger     *logrus.Logger
	cfg        *config.Config

	// Контекст жизни приложения: фоновые перепланирования не должны
	// умирать вместе с HTTP-запросом
	runCtx context.Context
}

// NewIncidentService собирает конвейер приёма: шлюз создается внутри,
// потому что сервис сам является его приёмником (Sink).
func NewIncidentService(
	runCtx context.Context,
	s *store.Store,
	corr *correlator.Correlator,
	planner *dispatch.Planner,
	registry *dispatch.Registry,
	sc scorer.Scorer,
	verifier identity.Verifier,
	unitSaver UnitSaver,
	logger *logrus.Logger,
	cfg *config.Config,
	m *metrics.Metrics,
) IncidentService {
	svc := &incidentService{
		correlator: corr,
		store:      s,
		planner:    planner,
		registry:   registry,
		scorer:     sc,
		verifier:   verifier,
		unitSaver:  unitSaver,
		logger:     logger,
		cfg:        cfg,
		runCtx:     runCtx,
	}
	svc.gateway = gateway.New(svc, logger, m)
	return svc
}

// Correlate реализует gateway.Sink: дообогащает событие классификацией
// скорера и передает коррелятору.
func (s *incidentService) Correlate(ctx context.Context, ev *models.Event) (uuid.UUID, error) {
	if ev.Classification == nil && s.scorer != nil {
		cls, err := s.scorer.Score(ctx, ev)
		if err != nil {
			// Скорер консультативен: без классификации событие откроет
			// инцидент с серьёзностью по умолчанию
			s.logger.WithError(err).WithField("event_id", ev.ID).Warn("Scorer failed, continuing without classification")
		} else {
			ev.Classification = cls
		}
	}
	return s.correlator.Correlate(ctx, ev)
}

// IngestEvent принимает сырое событие, прогоняет его через конвейер
// шлюз -> скорер -> коррелятор и запускает диспетчеризацию.
func (s *incidentService) IngestEvent(ctx context.Context, raw gateway.RawEvent) (*models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "incident",
		"method":  "IngestEvent",
		"source":  raw.SourceKind,
	})

	_, incidentID, err := s.gateway.Ingest(ctx, raw)
	if err != nil {
		if errors.Is(err, gateway.ErrMalformedEvent) {
			return nil, err
		}
		log.WithError(err).Error("Failed to ingest event")
		return nil, fmt.Errorf("service: could not ingest event: %w", err)
	}

	inc, err := s.store.Get(incidentID)
	if err != nil {
		return nil, fmt.Errorf("service: could not read incident after ingest: %w", err)
	}

	s.annotateIdentity(ctx, inc)

	if inc.Status == models.StatusActive && inc.AssignedUnitID == nil {
		go s.planner.PlanWithRetry(s.runCtx, inc.ID)
	}

	// Отдаём свежий снимок: аннотация личности могла поднять версию
	if fresh, err := s.store.Get(incidentID); err == nil {
		inc = fresh
	}
	log.WithField("incident_id", inc.ID).Info("Event ingested into incident")
	return inc, nil
}

// annotateIdentity помечает инцидент статусом проверки личности.
// Недоступный реестр оставляет пометку unverified и ничего не блокирует.
func (s *incidentService) annotateIdentity(ctx context.Context, inc *models.Incident) {
	if s.verifier == nil || inc.TouristID == "" || inc.IdentityStatus != models.IdentityUnverified {
		return
	}

	verifyCtx, cancel := context.WithTimeout(ctx, s.cfg.IdentityTimeout)
	defer cancel()

	status, err := s.verifier.Verify(verifyCtx, inc.TouristID)
	if err != nil {
		s.logger.WithError(err).WithField("incident_id", inc.ID).Warn("Identity registry unreachable, incident stays unverified")
		return
	}

	if _, err := s.store.SetIdentityStatus(ctx, inc.ID, inc.Version, status); err != nil && !errors.Is(err, store.ErrConflict) {
		s.logger.WithError(err).WithField("incident_id", inc.ID).Warn("Failed to annotate identity status")
	}
}

// GetIncident получает инцидент по ID
func (s *incidentService) GetIncident(ctx context.Context, id uuid.UUID) (*models.Incident, error) {
	inc, err := s.store.Get(id)
	if err != nil {
		return nil, fmt.Errorf("service: could not get incident: %w", err)
	}
	return inc, nil
}

// ListIncidents возвращает инциденты, отфильтрованные по статусу, типу
// и, опционально, по удалённости от точки.
func (s *incidentService) ListIncidents(ctx context.Context, status, incidentType string, near *models.Location, radiusMeters float64) ([]*models.Incident, error) {
	if status != "" {
		st := models.Status(status)
		switch st {
		case models.StatusActive, models.StatusAssigned, models.StatusInProgress, models.StatusResolved, models.StatusCancelled:
		default:
			return nil, fmt.Errorf("service: unknown status filter %q", status)
		}
	}
	if near != nil && radiusMeters <= 0 {
		return nil, fmt.Errorf("service: location filter requires a positive radius")
	}
	return s.store.List(store.Filter{
		Status:       models.Status(status),
		Type:         incidentType,
		Near:         near,
		RadiusMeters: radiusMeters,
	}), nil
}

// ListUnits возвращает юниты реагирования и их статусы
func (s *incidentService) ListUnits(ctx context.Context) []*models.ResponseUnit {
	return s.registry.List()
}

// RegisterUnit добавляет юнит в реестр и архивирует его
func (s *incidentService) RegisterUnit(ctx context.Context, unit *models.ResponseUnit) error {
	log := s.logger.WithFields(logrus.Fields{
		"service": "incident",
		"method":  "RegisterUnit",
		"unit_id": unit.ID,
	})

	s.registry.Add(unit)
	if s.unitSaver != nil {
		if err := s.unitSaver.SaveUnit(ctx, unit); err != nil {
			log.WithError(err).Error("Failed to archive response unit")
			return fmt.Errorf("service: could not save response unit: %w", err)
		}
	}
	log.Info("Response unit registered")
	return nil
}

// UpdateIncidentStatus выполняет операторский переход статуса с ограниченным
// повтором при конфликте версии.
func (s *incidentService) UpdateIncidentStatus(ctx context.Context, id uuid.UUID, newStatus models.Status) (*models.Incident, error) {
	return s.retryConflict(ctx, id, func(inc *models.Incident) (*models.Incident, error) {
		return s.store.UpdateStatus(ctx, id, inc.Version, newStatus)
	})
}

// CancelIncident отменяет инцидент и немедленно освобождает юнит
func (s *incidentService) CancelIncident(ctx context.Context, id uuid.UUID) (*models.Incident, error) {
	return s.retryConflict(ctx, id, func(inc *models.Incident) (*models.Incident, error) {
		return s.store.Cancel(ctx, id, inc.Version)
	})
}

// ReopenIncident возвращает терминальный инцидент в работу
func (s *incidentService) ReopenIncident(ctx context.Context, id uuid.UUID) (*models.Incident, error) {
	inc, err := s.retryConflict(ctx, id, func(inc *models.Incident) (*models.Incident, error) {
		return s.store.Reopen(ctx, id, inc.Version)
	})
	if err != nil {
		return nil, err
	}
	go s.planner.PlanWithRetry(s.runCtx, inc.ID)
	return inc, nil
}

// retryConflict перечитывает инцидент и повторяет мутацию при конфликте
// версии. После исчерпания попыток конфликт отдаётся вызывающему как
// транзиентная ошибка.
func (s *incidentService) retryConflict(ctx context.Context, id uuid.UUID, fn func(*models.Incident) (*models.Incident, error)) (*models.Incident, error) {
	var lastErr error
	for attempt := 0; attempt < conflictRetries; attempt++ {
		inc, err := s.store.Get(id)
		if err != nil {
			return nil, fmt.Errorf("service: could not read incident: %w", err)
		}
		updated, err := fn(inc)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return nil, fmt.Errorf("service: could not mutate incident: %w", err)
		}
		lastErr = err
	}
	return nil, fmt.Errorf("service: incident is contended, retry later: %w", lastErr)
}
