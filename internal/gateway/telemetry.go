package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shenikar/incident_dispatch_system/internal/models"
	"github.com/sirupsen/logrus"
)

// Три логических канала телеметрии носимых устройств
const (
	TopicSOS     = "telemetry:sos"
	TopicHealth  = "telemetry:health"
	TopicBattery = "telemetry:battery"
)

// Батарея ниже этого уровня открывает инцидент; выше - только лог
const criticalBatteryLevel = 5.0

// TelemetryPayload - сообщение устройства из канала телеметрии
type TelemetryPayload struct {
	DeviceID        string    `json:"device_id"`
	TouristID       string    `json:"tourist_id,omitempty"`
	Latitude        *float64  `json:"latitude,omitempty"`
	Longitude       *float64  `json:"longitude,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
	HeartRate       int       `json:"heart_rate,omitempty"`
	BodyTemperature float64   `json:"body_temperature,omitempty"`
	BatteryLevel    *float64  `json:"battery_level,omitempty"`
}

// Ingestor - вход конвейера приёма целиком, а не только шлюз: телеметрия
// проходит те же аннотацию личности и диспетчеризацию, что и ручные заявки.
type Ingestor interface {
	IngestEvent(ctx context.Context, raw RawEvent) (*models.Incident, error)
}

// TelemetryWorker читает каналы телеметрии из Redis и превращает сообщения
// устройств в события шлюза.
type TelemetryWorker struct {
	redisClient *redis.Client
	ingestor    Ingestor
	logger      *logrus.Logger
}

// NewTelemetryWorker создает TelemetryWorker
func NewTelemetryWorker(redisClient *redis.Client, ingestor Ingestor, logger *logrus.Logger) *TelemetryWorker {
	return &TelemetryWorker{
		redisClient: redisClient,
		ingestor:    ingestor,
		logger:      logger,
	}
}

// Start запускает горутину-потребителя каналов телеметрии
func (w *TelemetryWorker) Start(ctx context.Context) {
	w.logger.Info("Starting telemetry ingress worker...")
	go func() {
		for {
			select {
			case <-ctx.Done():
				w.logger.Info("Stopping telemetry ingress worker.")
				return
			default:
				result, err := w.redisClient.BRPop(ctx, 0, TopicSOS, TopicHealth, TopicBattery).Result()
				if err != nil {
					if errors.Is(err, context.Canceled) {
						continue
					}
					w.logger.WithError(err).Error("Failed to pop telemetry message from Redis")
					time.Sleep(time.Second)
					continue
				}

				// result[0] - топик, result[1] - сообщение
				w.handle(ctx, result[0], result[1])
			}
		}
	}()
}

func (w *TelemetryWorker) handle(ctx context.Context, topic, payload string) {
	log := w.logger.WithFields(logrus.Fields{
		"component": "telemetry",
		"topic":     topic,
	})

	var msg TelemetryPayload
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		log.WithError(err).Error("Failed to unmarshal telemetry payload")
		return
	}

	raw, ok := w.toRawEvent(topic, msg, log)
	if !ok {
		return
	}

	if _, err := w.ingestor.IngestEvent(ctx, raw); err != nil {
		log.WithError(err).Warn("Telemetry event rejected")
	}
}

// toRawEvent отображает сообщение канала в сырое событие шлюза.
// false - сообщение не порождает событие.
func (w *TelemetryWorker) toRawEvent(topic string, msg TelemetryPayload, log *logrus.Entry) (RawEvent, bool) {
	raw := RawEvent{
		SourceKind: string(models.SourceDeviceTelemetry),
		DeviceID:   msg.DeviceID,
		TouristID:  msg.TouristID,
		Timestamp:  msg.Timestamp,
		Payload:    map[string]string{"topic": topic},
	}
	if msg.Latitude != nil && msg.Longitude != nil {
		raw.Location = &models.Location{Latitude: *msg.Latitude, Longitude: *msg.Longitude}
	}

	switch topic {
	case TopicSOS:
		raw.Classification = &models.Classification{Type: "sos", Severity: models.SeverityCritical, Confidence: 1}
		if msg.HeartRate > 0 {
			raw.Payload["heart_rate"] = strconv.Itoa(msg.HeartRate)
		}
		if msg.BodyTemperature > 0 {
			raw.Payload["body_temperature"] = fmt.Sprintf("%.1f", msg.BodyTemperature)
		}
	case TopicHealth:
		raw.Classification = &models.Classification{Type: "medical", Severity: models.SeverityHigh, Confidence: 0.8}
		if msg.HeartRate > 0 {
			raw.Payload["heart_rate"] = strconv.Itoa(msg.HeartRate)
		}
	case TopicBattery:
		if msg.BatteryLevel == nil || *msg.BatteryLevel > criticalBatteryLevel {
			log.WithField("device_id", msg.DeviceID).Debug("Battery level above critical threshold, no incident")
			return RawEvent{}, false
		}
		raw.Classification = &models.Classification{Type: "battery", Severity: models.SeverityLow, Confidence: 1}
		raw.Payload["battery_level"] = fmt.Sprintf("%.1f", *msg.BatteryLevel)
	default:
		log.Warnf("Unknown telemetry topic %q", topic)
		return RawEvent{}, false
	}

	return raw, true
}
