package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shenikar/incident_dispatch_system/internal/models"
)

// Verifier - узкий интерфейс внешнего реестра проверки личности.
// Консультативный: недоступность реестра никогда не блокирует приём
// события или диспетчеризацию.
type Verifier interface {
	Verify(ctx context.Context, touristID string) (models.IdentityStatus, error)
}

// HTTPVerifier обращается к удалённому реестру по HTTP
type HTTPVerifier struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPVerifier создает HTTPVerifier с коротким таймаутом
func NewHTTPVerifier(baseURL string, timeout time.Duration) *HTTPVerifier {
	return &HTTPVerifier{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type verifyResponse struct {
	Status string `json:"status"`
}

// Verify запрашивает статус туриста у реестра
func (v *HTTPVerifier) Verify(ctx context.Context, touristID string) (models.IdentityStatus, error) {
	endpoint := fmt.Sprintf("%s/verify/%s", v.baseURL, url.PathEscape(touristID))
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return models.IdentityUnknown, fmt.Errorf("failed to create verify request: %w", err)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return models.IdentityUnknown, fmt.Errorf("failed to call identity registry: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.IdentityUnknown, fmt.Errorf("identity registry returned status %d", resp.StatusCode)
	}

	var out verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return models.IdentityUnknown, fmt.Errorf("failed to decode verify response: %w", err)
	}

	switch models.IdentityStatus(out.Status) {
	case models.IdentityVerified:
		return models.IdentityVerified, nil
	case models.IdentityActive:
		return models.IdentityActive, nil
	case models.IdentityRevoked:
		return models.IdentityRevoked, nil
	}
	return models.IdentityUnknown, nil
}

// StaticVerifier - детерминированная реализация для тестов
type StaticVerifier struct {
	statuses map[string]models.IdentityStatus
}

// NewStaticVerifier создает StaticVerifier с фиксированной таблицей статусов
func NewStaticVerifier(statuses map[string]models.IdentityStatus) *StaticVerifier {
	return &StaticVerifier{statuses: statuses}
}

// Verify возвращает статус из таблицы или unknown
func (v *StaticVerifier) Verify(_ context.Context, touristID string) (models.IdentityStatus, error) {
	if status, ok := v.statuses[touristID]; ok {
		return status, nil
	}
	return models.IdentityUnknown, nil
}
