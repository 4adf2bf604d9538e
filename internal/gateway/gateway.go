package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/incident_dispatch_system/internal/metrics"
	"github.com/shenikar/incident_dispatch_system/internal/models"
	"github.com/sirupsen/logrus"
)

// ErrMalformedEvent - событие отвергнуто при валидации. Автоматических
// повторов нет, источник должен прислать исправленные данные.
var ErrMalformedEvent = errors.New("malformed event")

// Sink - получатель нормализованных событий (коррелятор)
type Sink interface {
	Correlate(ctx context.Context, ev *models.Event) (uuid.UUID, error)
}

// Gateway валидирует и нормализует входящие события из всех источников
// в каноническую форму Event. Stateless, кроме локов порядка по устройству.
type Gateway struct {
	sink    Sink
	logger  *logrus.Logger
	metrics *metrics.Metrics

	mu          sync.Mutex
	deviceLocks map[string]*sync.Mutex
}

// New создает Gateway
func New(sink Sink, logger *logrus.Logger, m *metrics.Metrics) *Gateway {
	return &Gateway{
		sink:        sink,
		logger:      logger,
		metrics:     m,
		deviceLocks: make(map[string]*sync.Mutex),
	}
}

// RawEvent - сырое событие до нормализации
type RawEvent struct {
	SourceKind     string
	TouristID      string
	DeviceID       string
	Location       *models.Location
	Timestamp      time.Time
	Payload        map[string]string
	Classification *models.Classification
}

// Ingest валидирует событие, присваивает канонический id и время приёма
// и передает его коррелятору. События одного устройства обрабатываются
// в порядке поступления; между устройствами порядок не гарантируется.
func (g *Gateway) Ingest(ctx context.Context, raw RawEvent) (*models.Event, uuid.UUID, error) {
	log := g.logger.WithFields(logrus.Fields{
		"component": "gateway",
		"source":    raw.SourceKind,
	})

	ev, err := g.normalize(raw)
	if err != nil {
		log.WithError(err).Warn("Event rejected")
		if g.metrics != nil {
			g.metrics.EventsIngested.WithLabelValues(raw.SourceKind, "rejected").Inc()
		}
		return nil, uuid.Nil, err
	}

	if ev.DeviceID != "" {
		lock := g.deviceLock(ev.DeviceID)
		lock.Lock()
		defer lock.Unlock()
	}

	incidentID, err := g.sink.Correlate(ctx, ev)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("failed to correlate event: %w", err)
	}

	if g.metrics != nil {
		g.metrics.EventsIngested.WithLabelValues(string(ev.SourceKind), "accepted").Inc()
	}
	log.WithFields(logrus.Fields{
		"event_id":    ev.ID,
		"incident_id": incidentID,
	}).Info("Event ingested")
	return ev, incidentID, nil
}

func (g *Gateway) normalize(raw RawEvent) (*models.Event, error) {
	kind := models.SourceKind(raw.SourceKind)
	switch kind {
	case models.SourceReport, models.SourceAnonymousReport, models.SourceDeviceTelemetry, models.SourceAnomalyDetector:
	default:
		return nil, fmt.Errorf("%w: unknown source kind %q", ErrMalformedEvent, raw.SourceKind)
	}

	if raw.Timestamp.IsZero() {
		return nil, fmt.Errorf("%w: timestamp is required", ErrMalformedEvent)
	}
	if raw.Location == nil && raw.DeviceID == "" {
		return nil, fmt.Errorf("%w: at least one of location or device id is required", ErrMalformedEvent)
	}
	if raw.Classification != nil && !raw.Classification.Severity.Valid() {
		return nil, fmt.Errorf("%w: unknown severity %q", ErrMalformedEvent, raw.Classification.Severity)
	}

	return &models.Event{
		ID:             uuid.New(),
		SourceKind:     kind,
		TouristID:      raw.TouristID,
		DeviceID:       raw.DeviceID,
		Location:       raw.Location,
		Timestamp:      raw.Timestamp,
		ReceivedAt:     time.Now().UTC(),
		Payload:        raw.Payload,
		Classification: raw.Classification,
	}, nil
}

func (g *Gateway) deviceLock(deviceID string) *sync.Mutex {
	g.mu.Lock()
	defer g.mu.Unlock()
	lock, ok := g.deviceLocks[deviceID]
	if !ok {
		lock = &sync.Mutex{}
		g.deviceLocks[deviceID] = lock
	}
	return lock
}
