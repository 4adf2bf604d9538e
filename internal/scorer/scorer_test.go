package scorer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shenikar/incident_dispatch_system/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticScorer_AnomalyDetectorSource(t *testing.T) {
	s := NewStaticScorer()

	cls, err := s.Score(context.Background(), &models.Event{SourceKind: models.SourceAnomalyDetector})

	require.NoError(t, err)
	assert.Equal(t, "anomaly", cls.Type)
	assert.Equal(t, models.SeverityMedium, cls.Severity)
}

func TestStaticScorer_DescriptionKeywords(t *testing.T) {
	s := NewStaticScorer()
	cases := []struct {
		description  string
		wantType     string
		wantSeverity models.Severity
	}{
		{"SOS need help now", "sos", models.SeverityCritical},
		{"person injured on trail", "medical", models.SeverityHigh},
		{"fire near the campsite", "fire", models.SeverityHigh},
		{"my bag was robbed", "theft", models.SeverityMedium},
		{"being harassed by a stranger", "harassment", models.SeverityMedium},
		{"nothing in particular", "other", models.SeverityLow},
	}

	for _, tc := range cases {
		ev := &models.Event{
			SourceKind: models.SourceReport,
			Payload:    map[string]string{"description": tc.description},
		}
		cls, err := s.Score(context.Background(), ev)
		require.NoError(t, err)
		assert.Equal(t, tc.wantType, cls.Type, tc.description)
		assert.Equal(t, tc.wantSeverity, cls.Severity, tc.description)
	}
}

func TestHTTPScorer_Success(t *testing.T) {
	// Подготовка: фейковый удалённый скорер
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		json.NewEncoder(w).Encode(map[string]any{
			"type":       "anomaly",
			"severity":   "high",
			"confidence": 0.85,
		})
	}))
	defer srv.Close()
	s := NewHTTPScorer(srv.URL, time.Second)

	// Действие
	cls, err := s.Score(context.Background(), &models.Event{SourceKind: models.SourceAnomalyDetector})

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, "anomaly", cls.Type)
	assert.Equal(t, models.SeverityHigh, cls.Severity)
	assert.InDelta(t, 0.85, cls.Confidence, 1e-9)
}

func TestHTTPScorer_InvalidSeverityFallsBackToLow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"type": "anomaly", "severity": "bananas"})
	}))
	defer srv.Close()
	s := NewHTTPScorer(srv.URL, time.Second)

	cls, err := s.Score(context.Background(), &models.Event{})

	require.NoError(t, err)
	assert.Equal(t, models.SeverityLow, cls.Severity)
}

func TestHTTPScorer_ServerErrorFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	s := NewHTTPScorer(srv.URL, time.Second)

	_, err := s.Score(context.Background(), &models.Event{})

	require.Error(t, err)
}
