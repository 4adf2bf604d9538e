package scorer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shenikar/incident_dispatch_system/internal/models"
)

// Scorer классифицирует событие, не несущее подсказки от источника.
// Конкретная технология скоринга подключаемая: детерминированная
// реализация для тестов и удалённый сервис для продакшена.
type Scorer interface {
	Score(ctx context.Context, ev *models.Event) (*models.Classification, error)
}

// StaticScorer - детерминированные правила классификации. Используется
// в тестах и как фолбэк, когда удалённый скорер не сконфигурирован.
type StaticScorer struct{}

// NewStaticScorer создает StaticScorer
func NewStaticScorer() *StaticScorer {
	return &StaticScorer{}
}

// Score выводит классификацию из источника и полезной нагрузки события
func (s *StaticScorer) Score(_ context.Context, ev *models.Event) (*models.Classification, error) {
	switch ev.SourceKind {
	case models.SourceAnomalyDetector:
		return &models.Classification{Type: "anomaly", Severity: models.SeverityMedium, Confidence: 0.5}, nil
	case models.SourceDeviceTelemetry:
		return &models.Classification{Type: "medical", Severity: models.SeverityHigh, Confidence: 0.7}, nil
	}

	desc := strings.ToLower(ev.Payload["description"])
	switch {
	case strings.Contains(desc, "sos"):
		return &models.Classification{Type: "sos", Severity: models.SeverityCritical, Confidence: 0.9}, nil
	case strings.Contains(desc, "medical"), strings.Contains(desc, "injur"):
		return &models.Classification{Type: "medical", Severity: models.SeverityHigh, Confidence: 0.8}, nil
	case strings.Contains(desc, "fire"):
		return &models.Classification{Type: "fire", Severity: models.SeverityHigh, Confidence: 0.8}, nil
	case strings.Contains(desc, "theft"), strings.Contains(desc, "rob"):
		return &models.Classification{Type: "theft", Severity: models.SeverityMedium, Confidence: 0.7}, nil
	case strings.Contains(desc, "harass"):
		return &models.Classification{Type: "harassment", Severity: models.SeverityMedium, Confidence: 0.7}, nil
	}
	return &models.Classification{Type: "other", Severity: models.SeverityLow, Confidence: 0.3}, nil
}

// HTTPScorer - удалённый скорер (модель обнаружения аномалий за HTTP API)
type HTTPScorer struct {
	url        string
	httpClient *http.Client
}

// NewHTTPScorer создает HTTPScorer с таймаутом на запрос
func NewHTTPScorer(url string, timeout time.Duration) *HTTPScorer {
	return &HTTPScorer{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type scoreResponse struct {
	Type       string  `json:"type"`
	Severity   string  `json:"severity"`
	Confidence float64 `json:"confidence"`
}

// Score отправляет событие удалённому скореру
func (s *HTTPScorer) Score(ctx context.Context, ev *models.Event) (*models.Classification, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event for scoring: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.url, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create scoring request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call scorer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("scorer returned status %d", resp.StatusCode)
	}

	var out scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode scorer response: %w", err)
	}

	severity := models.Severity(out.Severity)
	if !severity.Valid() {
		severity = models.SeverityLow
	}
	return &models.Classification{
		Type:       out.Type,
		Severity:   severity,
		Confidence: out.Confidence,
	}, nil
}
