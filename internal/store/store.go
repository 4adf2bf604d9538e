package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/incident_dispatch_system/internal/models"
	"github.com/shenikar/incident_dispatch_system/internal/notify"
	"github.com/shenikar/incident_dispatch_system/pkg/geo"
	"github.com/sirupsen/logrus"
)

var (
	// ErrNotFound - инцидент не существует
	ErrNotFound = errors.New("incident not found")
	// ErrConflict - версия вызывающего устарела, нужно перечитать и повторить
	ErrConflict = errors.New("incident version conflict")
	// ErrTerminal - инцидент в терминальном статусе, мутация без reopen запрещена
	ErrTerminal = errors.New("incident is in a terminal state")
	// ErrInvalidTransition - переход статуса вне машины состояний
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Разрешённые переходы машины состояний. Терминальные статусы меняются
// только через явный Reopen.
var allowedTransitions = map[models.Status][]models.Status{
	models.StatusActive:     {models.StatusAssigned, models.StatusCancelled},
	models.StatusAssigned:   {models.StatusInProgress, models.StatusCancelled},
	models.StatusInProgress: {models.StatusResolved, models.StatusCancelled},
}

// Archiver - сквозная запись мутаций в постоянное хранилище для аудита.
// Ошибка архивации логируется и никогда не откатывает состояние.
type Archiver interface {
	SaveIncident(ctx context.Context, incident *models.Incident) error
	SaveEvent(ctx context.Context, incidentID uuid.UUID, event *models.Event) error
}

// UnitReleaser освобождает зарезервированный юнит при отмене или
// разрешении инцидента. Реализуется реестром юнитов.
type UnitReleaser interface {
	Release(unitID string)
}

type entry struct {
	mu       sync.Mutex
	incident *models.Incident
}

// Store - авторитетная машина состояний инцидентов. Мутации сериализуются
// по инциденту (per-incident lock), параллелизм между разными инцидентами
// не ограничен. Каждая мутация проверяет версию вызывающего.
type Store struct {
	logger    *logrus.Logger
	archiver  Archiver
	publisher notify.Publisher
	releaser  UnitReleaser

	mu        sync.RWMutex
	incidents map[uuid.UUID]*entry
	events    map[uuid.UUID]*models.Event
}

// New создает Store. archiver и publisher могут быть nil (например, в тестах).
func New(logger *logrus.Logger, archiver Archiver, publisher notify.Publisher) *Store {
	return &Store{
		logger:    logger,
		archiver:  archiver,
		publisher: publisher,
		incidents: make(map[uuid.UUID]*entry),
		events:    make(map[uuid.UUID]*models.Event),
	}
}

// SetUnitReleaser подключает реестр юнитов. Отдельный сеттер, потому что
// реестр создается после Store при сборке приложения.
func (s *Store) SetUnitReleaser(r UnitReleaser) {
	s.releaser = r
}

// Create создает новый инцидент из первого события. Версия начинается с 1.
func (s *Store) Create(ctx context.Context, inc *models.Incident, ev *models.Event) (*models.Incident, error) {
	if ev == nil {
		return nil, fmt.Errorf("incident must have at least one contributing event")
	}

	now := time.Now().UTC()
	inc = inc.Clone()
	if inc.ID == uuid.Nil {
		inc.ID = uuid.New()
	}
	inc.Status = models.StatusActive
	if inc.IdentityStatus == "" {
		inc.IdentityStatus = models.IdentityUnverified
	}
	if !inc.Severity.Valid() {
		inc.Severity = models.SeverityLow
	}
	if !inc.Priority.Valid() || inc.Priority.Rank() < inc.Severity.Rank() {
		inc.Priority = inc.Severity
	}
	inc.EventIDs = []uuid.UUID{ev.ID}
	inc.Version = 1
	inc.CreatedAt = now
	inc.UpdatedAt = now

	s.mu.Lock()
	s.incidents[inc.ID] = &entry{incident: inc}
	s.events[ev.ID] = ev
	s.mu.Unlock()

	s.archive(ctx, inc)
	s.archiveEvent(ctx, inc.ID, ev)
	s.publish(ctx, notify.TypeIncidentCreated, inc)
	return inc.Clone(), nil
}

// Get возвращает копию инцидента по id
func (s *Store) Get(id uuid.UUID) (*models.Incident, error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.incident.Clone(), nil
}

// GetEvent возвращает принятое событие по id
func (s *Store) GetEvent(id uuid.UUID) (*models.Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.events[id]
	return ev, ok
}

// AppendEvent присоединяет коррелированное событие к инциденту.
// Серьёзность только поднимается, никогда не опускается.
func (s *Store) AppendEvent(ctx context.Context, id uuid.UUID, version int64, ev *models.Event) (*models.Incident, error) {
	return s.mutate(ctx, id, version, notify.TypeIncidentUpdated, func(inc *models.Incident) error {
		inc.EventIDs = append(inc.EventIDs, ev.ID)
		if ev.Classification != nil && ev.Classification.Severity.Rank() > inc.Severity.Rank() {
			inc.Severity = ev.Classification.Severity
			if inc.Priority.Rank() < inc.Severity.Rank() {
				inc.Priority = inc.Severity
			}
		}
		s.mu.Lock()
		s.events[ev.ID] = ev
		s.mu.Unlock()
		s.archiveEvent(ctx, id, ev)
		return nil
	})
}

// Assign назначает юнит на инцидент. Допустимо только из статуса active,
// поэтому назначение exactly-once даже при гонке планировщиков.
func (s *Store) Assign(ctx context.Context, id uuid.UUID, version int64, unitID string) (*models.Incident, error) {
	return s.mutate(ctx, id, version, notify.TypeIncidentAssigned, func(inc *models.Incident) error {
		if inc.Status != models.StatusActive {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, inc.Status, models.StatusAssigned)
		}
		inc.Status = models.StatusAssigned
		inc.AssignedUnitID = &unitID
		return nil
	})
}

// UpdateStatus выполняет явный операторский переход статуса
func (s *Store) UpdateStatus(ctx context.Context, id uuid.UUID, version int64, newStatus models.Status) (*models.Incident, error) {
	eventType := notify.TypeIncidentUpdated
	if newStatus == models.StatusResolved {
		eventType = notify.TypeIncidentResolved
	}
	return s.mutate(ctx, id, version, eventType, func(inc *models.Incident) error {
		if !transitionAllowed(inc.Status, newStatus) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, inc.Status, newStatus)
		}
		inc.Status = newStatus
		if newStatus.Terminal() {
			s.releaseUnit(inc)
		}
		return nil
	})
}

// Cancel переводит инцидент в cancelled из любого нетерминального статуса
// и немедленно возвращает зарезервированный юнит в available.
func (s *Store) Cancel(ctx context.Context, id uuid.UUID, version int64) (*models.Incident, error) {
	return s.mutate(ctx, id, version, notify.TypeIncidentUpdated, func(inc *models.Incident) error {
		inc.Status = models.StatusCancelled
		s.releaseUnit(inc)
		return nil
	})
}

// Reopen возвращает терминальный инцидент в active. Единственный путь
// изменения терминального состояния.
func (s *Store) Reopen(ctx context.Context, id uuid.UUID, version int64) (*models.Incident, error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	inc := e.incident
	if inc.Version != version {
		return nil, fmt.Errorf("%w: have %d, got %d", ErrConflict, inc.Version, version)
	}
	if !inc.Status.Terminal() {
		return nil, fmt.Errorf("%w: reopen from %s", ErrInvalidTransition, inc.Status)
	}

	inc.Status = models.StatusActive
	inc.AssignedUnitID = nil
	inc.Version++
	inc.UpdatedAt = time.Now().UTC()

	cp := inc.Clone()
	s.archive(ctx, cp)
	s.publish(ctx, notify.TypeIncidentUpdated, cp)
	return cp, nil
}

// Escalate поднимает приоритет на один уровень (потолок critical),
// продлевает SLA-дедлайн и увеличивает счётчик эскалаций. Единственный
// путь изменения дедлайна после создания.
func (s *Store) Escalate(ctx context.Context, id uuid.UUID, version int64, newDeadline time.Time) (*models.Incident, error) {
	return s.mutate(ctx, id, version, notify.TypeIncidentUpdated, func(inc *models.Incident) error {
		inc.Priority = inc.Priority.Next()
		inc.SLADeadline = newDeadline
		inc.EscalationCount++
		return nil
	})
}

// SetIdentityStatus записывает результат проверки личности туриста.
// Консультативная аннотация, на машину состояний не влияет.
func (s *Store) SetIdentityStatus(ctx context.Context, id uuid.UUID, version int64, status models.IdentityStatus) (*models.Incident, error) {
	return s.mutate(ctx, id, version, notify.TypeIncidentUpdated, func(inc *models.Incident) error {
		inc.IdentityStatus = status
		return nil
	})
}

// BumpPriority поднимает приоритет без изменения дедлайна. Используется
// планировщиком, когда свободного юнита не нашлось.
func (s *Store) BumpPriority(ctx context.Context, id uuid.UUID, version int64) (*models.Incident, error) {
	return s.mutate(ctx, id, version, notify.TypeIncidentUpdated, func(inc *models.Incident) error {
		inc.Priority = inc.Priority.Next()
		return nil
	})
}

// Filter - критерии выборки инцидентов. Near/RadiusMeters задают
// географический фильтр: оба поля должны быть установлены вместе.
type Filter struct {
	Status       models.Status
	Type         string
	Near         *models.Location
	RadiusMeters float64
}

func (f Filter) matches(inc *models.Incident) bool {
	if f.Status != "" && inc.Status != f.Status {
		return false
	}
	if f.Type != "" && inc.Type != f.Type {
		return false
	}
	if f.Near != nil && f.RadiusMeters > 0 {
		d := geo.DistanceMeters(f.Near.Latitude, f.Near.Longitude, inc.Location.Latitude, inc.Location.Longitude)
		if d > f.RadiusMeters {
			return false
		}
	}
	return true
}

// List возвращает копии инцидентов, подходящих под фильтр
func (s *Store) List(filter Filter) []*models.Incident {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.incidents))
	for _, e := range s.incidents {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	result := make([]*models.Incident, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if filter.matches(e.incident) {
			result = append(result, e.incident.Clone())
		}
		e.mu.Unlock()
	}
	return result
}

// ListNonTerminal возвращает все открытые инциденты (для SLA-свипа)
func (s *Store) ListNonTerminal() []*models.Incident {
	all := s.List(Filter{})
	open := make([]*models.Incident, 0, len(all))
	for _, inc := range all {
		if !inc.Status.Terminal() {
			open = append(open, inc)
		}
	}
	return open
}

// Load вставляет инцидент при тёплом старте из архива, без публикации
// уведомлений и повторной записи.
func (s *Store) Load(inc *models.Incident) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incidents[inc.ID] = &entry{incident: inc.Clone()}
}

func (s *Store) lookup(id uuid.UUID) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.incidents[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e, nil
}

// mutate выполняет мутацию под per-incident локом с проверкой версии
func (s *Store) mutate(ctx context.Context, id uuid.UUID, version int64, eventType notify.EventType, fn func(*models.Incident) error) (*models.Incident, error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	inc := e.incident
	if inc.Version != version {
		return nil, fmt.Errorf("%w: have %d, got %d", ErrConflict, inc.Version, version)
	}
	if inc.Status.Terminal() {
		return nil, fmt.Errorf("%w: %s", ErrTerminal, inc.Status)
	}

	if err := fn(inc); err != nil {
		return nil, err
	}
	inc.Version++
	inc.UpdatedAt = time.Now().UTC()

	cp := inc.Clone()
	s.archive(ctx, cp)
	s.publish(ctx, eventType, cp)
	return cp, nil
}

func transitionAllowed(from, to models.Status) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func (s *Store) releaseUnit(inc *models.Incident) {
	if inc.AssignedUnitID != nil && s.releaser != nil {
		s.releaser.Release(*inc.AssignedUnitID)
	}
}

func (s *Store) archive(ctx context.Context, inc *models.Incident) {
	if s.archiver == nil {
		return
	}
	if err := s.archiver.SaveIncident(ctx, inc); err != nil {
		s.logger.WithError(err).WithField("incident_id", inc.ID).Error("Failed to archive incident")
	}
}

func (s *Store) archiveEvent(ctx context.Context, incidentID uuid.UUID, ev *models.Event) {
	if s.archiver == nil {
		return
	}
	if err := s.archiver.SaveEvent(ctx, incidentID, ev); err != nil {
		s.logger.WithError(err).WithField("event_id", ev.ID).Error("Failed to archive event")
	}
}

func (s *Store) publish(ctx context.Context, eventType notify.EventType, inc *models.Incident) {
	if s.publisher == nil {
		return
	}
	n := notify.Notification{
		Type:       eventType,
		IncidentID: inc.ID,
		Version:    inc.Version,
		Status:     inc.Status,
		Severity:   inc.Severity,
		Priority:   inc.Priority,
		Timestamp:  time.Now().UTC(),
	}
	if inc.AssignedUnitID != nil {
		n.UnitID = *inc.AssignedUnitID
	}
	if err := s.publisher.Publish(ctx, n); err != nil {
		s.logger.WithError(err).WithField("incident_id", inc.ID).Error("Failed to publish incident notification")
	}
}
