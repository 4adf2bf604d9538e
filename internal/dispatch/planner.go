package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/incident_dispatch_system/internal/config"
	"github.com/shenikar/incident_dispatch_system/internal/metrics"
	"github.com/shenikar/incident_dispatch_system/internal/models"
	"github.com/shenikar/incident_dispatch_system/internal/store"
	"github.com/shenikar/incident_dispatch_system/pkg/geo"
	"github.com/sirupsen/logrus"
)

// ErrNotAssignable - инцидент нельзя назначить (терминальный или уже назначен).
// Планировщик в этом случае отбрасывает собственный результат.
var ErrNotAssignable = errors.New("incident is not assignable")

// Иерархия совместимости: какой тип юнита обслуживает какой тип инцидента,
// с фолбэком на общие юниты, если профильных свободных нет.
var capabilityFallbacks = map[string][]models.UnitType{
	"medical":    {models.UnitMedical, models.UnitGeneral},
	"fire":       {models.UnitFire, models.UnitGeneral},
	"theft":      {models.UnitPolice, models.UnitGeneral},
	"assault":    {models.UnitPolice, models.UnitGeneral},
	"harassment": {models.UnitPolice, models.UnitGeneral},
	"sos":        {models.UnitPolice, models.UnitMedical, models.UnitGeneral},
	"anomaly":    {models.UnitPolice, models.UnitGeneral},
}

var defaultCapabilities = []models.UnitType{models.UnitGeneral, models.UnitPolice}

// AssignmentArchiver - append-only запись аудита попыток назначения
type AssignmentArchiver interface {
	SaveAssignment(ctx context.Context, a *models.Assignment) error
}

// Result - исход попытки планирования
type Result struct {
	Outcome models.AssignmentOutcome
	Unit    *models.ResponseUnit
	ETA     time.Duration
}

// Planner подбирает и резервирует юнит для инцидента
type Planner struct {
	store    *store.Store
	registry *Registry
	archiver AssignmentArchiver
	logger   *logrus.Logger
	cfg      *config.Config
	metrics  *metrics.Metrics
}

// NewPlanner создает Planner. archiver и metrics могут быть nil.
func NewPlanner(s *store.Store, r *Registry, archiver AssignmentArchiver, logger *logrus.Logger, cfg *config.Config, m *metrics.Metrics) *Planner {
	return &Planner{
		store:    s,
		registry: r,
		archiver: archiver,
		logger:   logger,
		cfg:      cfg,
		metrics:  m,
	}
}

// Plan выполняет одну попытку назначения: фильтрация по совместимости,
// ранжирование по оценке времени реакции, acquire-then-verify резервирование,
// фиксация через store.Assign с проверкой версии. Отсутствие свободного
// юнита - нормальный исход, не ошибка.
func (p *Planner) Plan(ctx context.Context, incidentID uuid.UUID) (*Result, error) {
	started := time.Now()
	if p.metrics != nil {
		defer func() {
			p.metrics.DispatchDuration.Observe(time.Since(started).Seconds())
		}()
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.DispatchTimeout)
	defer cancel()

	log := p.logger.WithFields(logrus.Fields{
		"component":   "dispatch",
		"incident_id": incidentID,
	})

	// Гонка с другим планировщиком разрешается перечитыванием: конфликт
	// версии или проигранная бронь приводят к свежей попытке.
	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("dispatch planning timed out: %w", err)
		}

		inc, err := p.store.Get(incidentID)
		if err != nil {
			return nil, fmt.Errorf("failed to read incident for planning: %w", err)
		}
		if inc.Status != models.StatusActive {
			log.WithField("status", inc.Status).Debug("Incident is not assignable, discarding plan")
			return nil, ErrNotAssignable
		}

		candidates := p.rankCandidates(inc)
		if len(candidates) == 0 {
			return p.recordNoUnit(ctx, inc, log)
		}

		for _, cand := range candidates {
			if !p.registry.Reserve(cand.unit.ID) {
				continue // юнит успели забрать, пробуем следующего кандидата
			}

			if _, err := p.store.Assign(ctx, inc.ID, inc.Version, cand.unit.ID); err != nil {
				p.registry.Unreserve(cand.unit.ID)
				if errors.Is(err, store.ErrConflict) {
					log.Debug("Assign lost a version race, re-planning")
					break // перечитать инцидент и попробовать снова
				}
				if errors.Is(err, store.ErrTerminal) || errors.Is(err, store.ErrInvalidTransition) {
					log.WithError(err).Debug("Incident went terminal during planning, discarding plan")
					return nil, ErrNotAssignable
				}
				return nil, fmt.Errorf("failed to commit assignment: %w", err)
			}

			p.registry.MarkEnRoute(cand.unit.ID)
			p.recordAssignment(ctx, inc.ID, cand, log)
			if p.metrics != nil {
				p.metrics.DispatchTotal.WithLabelValues(string(models.OutcomeAssigned)).Inc()
			}
			log.WithFields(logrus.Fields{
				"unit_id": cand.unit.ID,
				"eta":     cand.eta,
			}).Info("Unit assigned to incident")
			return &Result{Outcome: models.OutcomeAssigned, Unit: cand.unit, ETA: cand.eta}, nil
		}
	}
}

// PlanWithRetry повторяет планирование с ограниченным экспоненциальным
// бэкофом, пока юнит не освободится, инцидент не станет терминальным или
// не исчерпаются попытки. Запускается в отдельной горутине.
func (p *Planner) PlanWithRetry(ctx context.Context, incidentID uuid.UUID) {
	delay := p.cfg.DispatchBaseDelay
	for attempt := 0; attempt < p.cfg.DispatchMaxRetries; attempt++ {
		result, err := p.Plan(ctx, incidentID)
		if err != nil {
			if errors.Is(err, ErrNotAssignable) {
				return
			}
			p.logger.WithError(err).WithField("incident_id", incidentID).Warn("Dispatch planning attempt failed")
		} else if result.Outcome == models.OutcomeAssigned {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
			delay *= 2 // Экспоненциальная задержка
		}
	}
	p.logger.WithField("incident_id", incidentID).Warn("Dispatch re-planning retries exhausted, waiting for SLA monitor or operator")
}

type candidate struct {
	unit  *models.ResponseUnit
	eta   time.Duration
	score float64
}

// rankCandidates фильтрует свободные совместимые юниты и сортирует по
// оценке времени реакции; при равенстве выигрывает юнит с меньшим числом
// недавних назначений (балансировка нагрузки).
func (p *Planner) rankCandidates(inc *models.Incident) []candidate {
	wanted := capabilityFallbacks[inc.Type]
	if wanted == nil {
		wanted = defaultCapabilities
	}

	// Профильные юниты рассматриваются раньше фолбэков: общий юнит берётся
	// только если на его ярусе нашлись свободные, а выше - нет.
	for _, unitType := range wanted {
		var tier []candidate
		for _, unit := range p.registry.List() {
			if unit.Type != unitType || unit.Status != models.UnitAvailable {
				continue
			}
			dist := geo.DistanceMeters(inc.Location.Latitude, inc.Location.Longitude,
				unit.Location.Latitude, unit.Location.Longitude)
			travel := time.Duration(dist / p.cfg.UnitSpeedMPS * float64(time.Second))
			eta := travel + unit.AvgResponseTime
			tier = append(tier, candidate{unit: unit, eta: eta, score: eta.Seconds()})
		}
		if len(tier) > 0 {
			sort.Slice(tier, func(i, j int) bool {
				if tier[i].score != tier[j].score {
					return tier[i].score < tier[j].score
				}
				return tier[i].unit.RecentAssignments < tier[j].unit.RecentAssignments
			})
			return tier
		}
	}
	return nil
}

// recordNoUnit фиксирует нормальный исход "нет свободного юнита": запись
// аудита, поднятие приоритета, инцидент остаётся active.
func (p *Planner) recordNoUnit(ctx context.Context, inc *models.Incident, log *logrus.Entry) (*Result, error) {
	a := &models.Assignment{
		ID:         uuid.New(),
		IncidentID: inc.ID,
		Outcome:    models.OutcomeNoUnitAvailable,
		CreatedAt:  time.Now().UTC(),
	}
	if p.archiver != nil {
		if err := p.archiver.SaveAssignment(ctx, a); err != nil {
			log.WithError(err).Error("Failed to archive no-unit assignment record")
		}
	}
	if p.metrics != nil {
		p.metrics.DispatchTotal.WithLabelValues(string(models.OutcomeNoUnitAvailable)).Inc()
	}

	// Конфликт версии здесь не важен: приоритет поднимет следующая попытка
	if _, err := p.store.BumpPriority(ctx, inc.ID, inc.Version); err != nil &&
		!errors.Is(err, store.ErrConflict) && !errors.Is(err, store.ErrTerminal) {
		log.WithError(err).Warn("Failed to bump incident priority")
	}

	log.Info("No compatible unit available, incident stays active")
	return &Result{Outcome: models.OutcomeNoUnitAvailable}, nil
}

func (p *Planner) recordAssignment(ctx context.Context, incidentID uuid.UUID, cand candidate, log *logrus.Entry) {
	if p.archiver == nil {
		return
	}
	a := &models.Assignment{
		ID:         uuid.New(),
		IncidentID: incidentID,
		UnitID:     cand.unit.ID,
		ETA:        cand.eta,
		Outcome:    models.OutcomeAssigned,
		CreatedAt:  time.Now().UTC(),
	}
	if err := p.archiver.SaveAssignment(ctx, a); err != nil {
		log.WithError(err).Error("Failed to archive assignment record")
	}
}
