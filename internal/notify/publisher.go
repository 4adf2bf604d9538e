package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shenikar/incident_dispatch_system/internal/models"
)

const (
	notificationQueueKey = "incident_notifications"
)

// EventType - тип уведомления о жизненном цикле инцидента
type EventType string

const (
	TypeIncidentCreated  EventType = "incident_created"
	TypeIncidentUpdated  EventType = "incident_updated"
	TypeIncidentAssigned EventType = "incident_assigned"
	TypeIncidentResolved EventType = "incident_resolved"
	TypeSLAWarning       EventType = "sla_warning"
	TypeSLABreach        EventType = "sla_breach"
)

// Notification - событие жизненного цикла инцидента для внешних подписчиков.
// Доставка at-least-once: потребители дедуплицируют по (incident_id, version).
type Notification struct {
	Type       EventType       `json:"type"`
	IncidentID uuid.UUID       `json:"incident_id"`
	Version    int64           `json:"version"`
	Status     models.Status   `json:"status,omitempty"`
	Severity   models.Severity `json:"severity,omitempty"`
	Priority   models.Severity `json:"priority,omitempty"`
	UnitID     string          `json:"unit_id,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Publisher - интерфейс для публикации уведомлений
type Publisher interface {
	Publish(ctx context.Context, n Notification) error
}

// RedisPublisher - реализация Publisher, использующая очередь Redis
type RedisPublisher struct {
	redisClient *redis.Client
}

// NewRedisPublisher создает новый RedisPublisher
func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{
		redisClient: client,
	}
}

// Publish публикует уведомление в очередь Redis
func (p *RedisPublisher) Publish(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	// Используем LPUSH для добавления события в левую часть списка (очереди)
	if err := p.redisClient.LPush(ctx, notificationQueueKey, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish notification to Redis: %w", err)
	}
	return nil
}
