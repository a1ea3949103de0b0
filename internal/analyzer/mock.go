package analyzer

import (
	"context"
	"time"

	"go-plant-analyzer/pkg/models"
)

// MockBackend returns the canonical demo diagnosis after a fixed delay.
// It makes no external calls.
type MockBackend struct {
	delay time.Duration
}

// NewMockBackend creates a mock backend. A zero delay answers immediately.
func NewMockBackend(delay time.Duration) *MockBackend {
	return &MockBackend{delay: delay}
}

func (m *MockBackend) Name() string { return "mock" }

// Analyze waits for the simulated delay and returns CanonicalResult. It only
// fails if ctx ends first.
func (m *MockBackend) Analyze(ctx context.Context, _ models.ImageInput) (*models.AnalysisResult, error) {
	if m.delay > 0 {
		timer := time.NewTimer(m.delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return CanonicalResult(), nil
}

// CanonicalResult is the fixed demo diagnosis.
func CanonicalResult() *models.AnalysisResult {
	return &models.AnalysisResult{
		PlantIdentified: "Tomato (Solanum lycopersicum)",
		HealthStatus:    "Moderate stress detected",
		Issues: []string{
			"Early signs of water stress",
			"Potential phosphorus deficiency",
		},
		Recommendations: []string{
			"Increase watering frequency by 15%",
			"Consider adding phosphorus-rich fertilizer",
			"Monitor for signs of improvement over the next 3-5 days",
		},
		Metrics: models.Metrics{
			SoilMoisture:        "42%",
			Temperature:         "27°C",
			Sunlight:            "Adequate",
			EstimatedWaterNeeds: "750ml per day",
		},
	}
}
