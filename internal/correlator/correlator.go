package correlator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/incident_dispatch_system/internal/config"
	"github.com/shenikar/incident_dispatch_system/internal/metrics"
	"github.com/shenikar/incident_dispatch_system/internal/models"
	"github.com/shenikar/incident_dispatch_system/internal/store"
	"github.com/shenikar/incident_dispatch_system/pkg/geo"
	"github.com/sirupsen/logrus"
)

const appendRetries = 3

// AmbiguityArchiver - запись аудита для событий, подошедших к нескольким
// инцидентам. Инциденты никогда не сливаются молча.
type AmbiguityArchiver interface {
	SaveAmbiguity(ctx context.Context, a *models.CorrelationAmbiguity) error
}

// Correlator решает, продолжает ли событие открытый инцидент или открывает
// новый. Индекс device/reporter id -> инцидент плюс пространственный индекс
// по ячейкам сетки для событий без стабильного идентификатора.
type Correlator struct {
	store    *store.Store
	cfg      *config.Config
	logger   *logrus.Logger
	archiver AmbiguityArchiver
	metrics  *metrics.Metrics

	mu     sync.Mutex
	byKey  map[string]uuid.UUID
	byCell map[string]map[uuid.UUID]struct{}
}

// New создает Correlator. archiver и metrics могут быть nil.
func New(s *store.Store, cfg *config.Config, logger *logrus.Logger, archiver AmbiguityArchiver, m *metrics.Metrics) *Correlator {
	return &Correlator{
		store:    s,
		cfg:      cfg,
		logger:   logger,
		archiver: archiver,
		metrics:  m,
		byKey:    make(map[string]uuid.UUID),
		byCell:   make(map[string]map[uuid.UUID]struct{}),
	}
}

// Correlate присоединяет событие к открытому инциденту либо создает новый.
// Возвращает id инцидента, которому принадлежит событие.
func (c *Correlator) Correlate(ctx context.Context, ev *models.Event) (uuid.UUID, error) {
	log := c.logger.WithFields(logrus.Fields{
		"component": "correlator",
		"event_id":  ev.ID,
	})

	c.mu.Lock()
	candidates := c.findCandidates(ev)
	c.mu.Unlock()

	if len(candidates) > 0 {
		// Tie-break: событие уходит в самый свежий инцидент
		sort.Slice(candidates, func(i, j int) bool {
			return candidates[i].UpdatedAt.After(candidates[j].UpdatedAt)
		})
		chosen := candidates[0]

		if len(candidates) > 1 {
			c.recordAmbiguity(ctx, ev, candidates, log)
		}

		if incID, ok := c.appendToIncident(ctx, chosen, ev, log); ok {
			return incID, nil
		}
		// Инцидент стал терминальным под нами - событие открывает новый
	}

	return c.openIncident(ctx, ev, log)
}

// findCandidates собирает открытые инциденты, подходящие по правилу
// корреляции. Протухшие записи индексов чистятся лениво при чтении.
func (c *Correlator) findCandidates(ev *models.Event) []*models.Incident {
	now := ev.ReceivedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}

	seen := make(map[uuid.UUID]struct{})
	var candidates []*models.Incident

	// Тот же device/reporter id в пределах окна от последнего обновления
	if key := ev.CorrelationKey(); key != "" {
		if id, ok := c.byKey[key]; ok {
			inc, err := c.store.Get(id)
			if err != nil || inc.Status.Terminal() {
				delete(c.byKey, key)
			} else if now.Sub(inc.UpdatedAt) <= c.cfg.CorrelationWindow {
				candidates = append(candidates, inc)
				seen[inc.ID] = struct{}{}
			} else {
				delete(c.byKey, key)
			}
		}
	}

	// Геолокация в пределах радиуса при совместимом типе инцидента
	if ev.Location != nil {
		radius := c.cfg.CorrelationRadiusMeters
		for _, cell := range geo.NeighborKeys(ev.Location.Latitude, ev.Location.Longitude, radius) {
			for id := range c.byCell[cell] {
				if _, ok := seen[id]; ok {
					continue
				}
				inc, err := c.store.Get(id)
				if err != nil || inc.Status.Terminal() {
					delete(c.byCell[cell], id)
					continue
				}
				dist := geo.DistanceMeters(ev.Location.Latitude, ev.Location.Longitude,
					inc.Location.Latitude, inc.Location.Longitude)
				if dist <= radius && compatibleType(inc.Type, ev) {
					candidates = append(candidates, inc)
					seen[inc.ID] = struct{}{}
				}
			}
		}
	}

	return candidates
}

// appendToIncident присоединяет событие с ограниченным числом повторов
// при конфликте версии. false - инцидент ушёл в терминальный статус.
func (c *Correlator) appendToIncident(ctx context.Context, inc *models.Incident, ev *models.Event, log *logrus.Entry) (uuid.UUID, bool) {
	for attempt := 0; attempt < appendRetries; attempt++ {
		_, err := c.store.AppendEvent(ctx, inc.ID, inc.Version, ev)
		if err == nil {
			c.index(inc.ID, ev)
			log.WithField("incident_id", inc.ID).Info("Event correlated into existing incident")
			return inc.ID, true
		}
		if errors.Is(err, store.ErrConflict) {
			fresh, getErr := c.store.Get(inc.ID)
			if getErr != nil || fresh.Status.Terminal() {
				return uuid.Nil, false
			}
			inc = fresh
			continue
		}
		if errors.Is(err, store.ErrTerminal) || errors.Is(err, store.ErrNotFound) {
			return uuid.Nil, false
		}
		log.WithError(err).Error("Failed to append event to incident")
		return uuid.Nil, false
	}
	log.WithField("incident_id", inc.ID).Warn("Append retries exhausted, opening a new incident")
	return uuid.Nil, false
}

// openIncident создает новый инцидент из события
func (c *Correlator) openIncident(ctx context.Context, ev *models.Event, log *logrus.Entry) (uuid.UUID, error) {
	incType := "other"
	severity := models.SeverityLow
	if ev.Classification != nil {
		if ev.Classification.Type != "" {
			incType = ev.Classification.Type
		}
		if ev.Classification.Severity.Valid() {
			severity = ev.Classification.Severity
		}
	}

	inc := &models.Incident{
		Type:        incType,
		Severity:    severity,
		Priority:    severity,
		TouristID:   ev.TouristID,
		DeviceID:    ev.DeviceID,
		SLADeadline: time.Now().UTC().Add(c.cfg.SLATarget(severity)),
	}
	if ev.Location != nil {
		inc.Location = *ev.Location
	}

	created, err := c.store.Create(ctx, inc, ev)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create incident: %w", err)
	}

	c.index(created.ID, ev)
	if c.metrics != nil {
		c.metrics.IncidentsCreated.WithLabelValues(incType).Inc()
	}
	log.WithFields(logrus.Fields{
		"incident_id": created.ID,
		"type":        incType,
		"severity":    severity,
	}).Info("New incident opened")
	return created.ID, nil
}

// Load восстанавливает индексы корреляции из инцидента при тёплом старте
func (c *Correlator) Load(inc *models.Incident) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := inc.DeviceID
	if key == "" {
		key = inc.TouristID
	}
	if key != "" {
		c.byKey[key] = inc.ID
	}
	if inc.Location.Latitude != 0 || inc.Location.Longitude != 0 {
		cell := geo.CellKey(inc.Location.Latitude, inc.Location.Longitude, c.cfg.CorrelationRadiusMeters)
		if c.byCell[cell] == nil {
			c.byCell[cell] = make(map[uuid.UUID]struct{})
		}
		c.byCell[cell][inc.ID] = struct{}{}
	}
}

// index обновляет индексы корреляции после успешной привязки события
func (c *Correlator) index(incidentID uuid.UUID, ev *models.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if key := ev.CorrelationKey(); key != "" {
		c.byKey[key] = incidentID
	}
	if ev.Location != nil {
		cell := geo.CellKey(ev.Location.Latitude, ev.Location.Longitude, c.cfg.CorrelationRadiusMeters)
		if c.byCell[cell] == nil {
			c.byCell[cell] = make(map[uuid.UUID]struct{})
		}
		c.byCell[cell][incidentID] = struct{}{}
	}
}

func (c *Correlator) recordAmbiguity(ctx context.Context, ev *models.Event, candidates []*models.Incident, log *logrus.Entry) {
	ids := make([]uuid.UUID, len(candidates))
	for i, inc := range candidates {
		ids[i] = inc.ID
	}
	log.WithField("candidates", ids).Warn("Event matched multiple open incidents, attaching to most recently updated")

	if c.archiver == nil {
		return
	}
	a := &models.CorrelationAmbiguity{
		ID:           uuid.New(),
		EventID:      ev.ID,
		ChosenID:     candidates[0].ID,
		CandidateIDs: ids,
		CreatedAt:    time.Now().UTC(),
	}
	if err := c.archiver.SaveAmbiguity(ctx, a); err != nil {
		log.WithError(err).Error("Failed to archive correlation ambiguity")
	}
}

// compatibleType: событие без классификации совместимо с любым инцидентом,
// иначе типы должны совпадать
func compatibleType(incType string, ev *models.Event) bool {
	if ev.Classification == nil || ev.Classification.Type == "" {
		return true
	}
	return ev.Classification.Type == incType
}
