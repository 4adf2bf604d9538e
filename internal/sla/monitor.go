package sla

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/incident_dispatch_system/internal/config"
	"github.com/shenikar/incident_dispatch_system/internal/dispatch"
	"github.com/shenikar/incident_dispatch_system/internal/metrics"
	"github.com/shenikar/incident_dispatch_system/internal/models"
	"github.com/shenikar/incident_dispatch_system/internal/notify"
	"github.com/shenikar/incident_dispatch_system/internal/store"
	"github.com/sirupsen/logrus"
)

// Dispatcher - планировщик, перевызываемый при пробое SLA
type Dispatcher interface {
	Plan(ctx context.Context, incidentID uuid.UUID) (*dispatch.Result, error)
}

// Monitor периодически сверяет открытые инциденты с их SLA-дедлайнами.
// Пробой поднимает приоритет и продлевает дедлайн, поэтому эскалация
// идемпотентна в пределах одного интервала пробоя.
type Monitor struct {
	store     *store.Store
	planner   Dispatcher
	publisher notify.Publisher
	logger    *logrus.Logger
	cfg       *config.Config
	metrics   *metrics.Metrics

	// Дедлайн, о приближении которого уже предупреждали, по инциденту
	warned map[uuid.UUID]time.Time
}

// NewMonitor создает Monitor. publisher и metrics могут быть nil.
func NewMonitor(s *store.Store, planner Dispatcher, publisher notify.Publisher, logger *logrus.Logger, cfg *config.Config, m *metrics.Metrics) *Monitor {
	return &Monitor{
		store:     s,
		planner:   planner,
		publisher: publisher,
		logger:    logger,
		cfg:       cfg,
		metrics:   m,
		warned:    make(map[uuid.UUID]time.Time),
	}
}

// Start запускает горутину периодического свипа
func (m *Monitor) Start(ctx context.Context) {
	m.logger.Infof("Starting SLA monitor with %v sweep interval...", m.cfg.SweepInterval)
	go func() {
		ticker := time.NewTicker(m.cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				m.logger.Info("Stopping SLA monitor.")
				return
			case <-ticker.C:
				m.Sweep(ctx)
			}
		}
	}()
}

// Sweep выполняет один проход по открытым инцидентам. Длительность прохода
// ограничена таймаутом, свип не блокирует приём и диспетчеризацию.
func (m *Monitor) Sweep(ctx context.Context) {
	started := time.Now()
	ctx, cancel := context.WithTimeout(ctx, m.cfg.SweepTimeout)
	defer cancel()

	now := time.Now().UTC()
	open := m.store.ListNonTerminal()
	seen := make(map[uuid.UUID]struct{}, len(open))

	for _, inc := range open {
		seen[inc.ID] = struct{}{}
		if err := ctx.Err(); err != nil {
			m.logger.WithError(err).Warn("SLA sweep timed out")
			break
		}

		switch {
		case !now.Before(inc.SLADeadline):
			m.escalate(ctx, inc, now)
		case m.nearBreach(inc, now):
			m.warn(ctx, inc)
		}
	}

	// Чистим память предупреждений по закрытым инцидентам
	for id := range m.warned {
		if _, ok := seen[id]; !ok {
			delete(m.warned, id)
		}
	}

	if m.metrics != nil {
		m.metrics.SweepDuration.Observe(time.Since(started).Seconds())
	}
}

// escalate обрабатывает пробой SLA: приоритет на уровень выше (потолок
// critical), дедлайн продлевается по цели нового приоритета, незанятый
// инцидент уходит на повторное планирование.
func (m *Monitor) escalate(ctx context.Context, inc *models.Incident, now time.Time) {
	log := m.logger.WithFields(logrus.Fields{
		"component":   "sla",
		"incident_id": inc.ID,
		"priority":    inc.Priority,
	})

	newDeadline := now.Add(m.cfg.SLATarget(inc.Priority.Next()))
	escalated, err := m.store.Escalate(ctx, inc.ID, inc.Version, newDeadline)
	if err != nil {
		// Конфликт: инцидент мутировал под нами, следующий свип разберётся
		if !errors.Is(err, store.ErrConflict) && !errors.Is(err, store.ErrTerminal) {
			log.WithError(err).Error("Failed to escalate incident")
		}
		return
	}
	delete(m.warned, inc.ID)

	if m.metrics != nil {
		m.metrics.EscalationsTotal.Inc()
	}
	log.WithField("new_priority", escalated.Priority).Warn("SLA breached, incident escalated")
	m.notify(ctx, notify.TypeSLABreach, escalated)

	if escalated.AssignedUnitID == nil && escalated.Status == models.StatusActive {
		if _, err := m.planner.Plan(ctx, inc.ID); err != nil && !errors.Is(err, dispatch.ErrNotAssignable) {
			log.WithError(err).Warn("Re-dispatch after SLA breach failed")
		}
	}
}

// warn отправляет предупреждение о приближении пробоя, без мутации
// состояния и не более одного раза на дедлайн.
func (m *Monitor) warn(ctx context.Context, inc *models.Incident) {
	if warnedFor, ok := m.warned[inc.ID]; ok && warnedFor.Equal(inc.SLADeadline) {
		return
	}
	m.warned[inc.ID] = inc.SLADeadline

	if m.metrics != nil {
		m.metrics.SLAWarningsTotal.Inc()
	}
	m.logger.WithFields(logrus.Fields{
		"component":   "sla",
		"incident_id": inc.ID,
		"deadline":    inc.SLADeadline,
	}).Info("Incident is approaching its SLA deadline")
	m.notify(ctx, notify.TypeSLAWarning, inc)
}

// nearBreach: прошло не менее доли NearBreachFraction окна до дедлайна
func (m *Monitor) nearBreach(inc *models.Incident, now time.Time) bool {
	total := inc.SLADeadline.Sub(inc.CreatedAt)
	if total <= 0 {
		return false
	}
	elapsed := now.Sub(inc.CreatedAt)
	return float64(elapsed) >= m.cfg.NearBreachFraction*float64(total)
}

func (m *Monitor) notify(ctx context.Context, eventType notify.EventType, inc *models.Incident) {
	if m.publisher == nil {
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
	if err := m.publisher.Publish(ctx, n); err != nil {
		m.logger.WithError(err).WithField("incident_id", inc.ID).Error("Failed to publish SLA notification")
	}
}
