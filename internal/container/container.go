package container

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"go-plant-analyzer/internal/analysis"
	"go-plant-analyzer/internal/analyzer"
	"go-plant-analyzer/internal/config"
	"go-plant-analyzer/internal/factory"
	"go-plant-analyzer/internal/logger"
	"go-plant-analyzer/internal/metrics"
	"go-plant-analyzer/internal/observer"
	"go-plant-analyzer/internal/transport"
	"go-plant-analyzer/pkg/validation"
)

// Container holds all application dependencies
type Container struct {
	config       *config.Config
	registry     *prometheus.Registry
	backend      analyzer.Backend
	orchestrator *analysis.Orchestrator
	handler      http.Handler
}

// NewContainer builds the dependency graph from an already loaded config.
func NewContainer(cfg *config.Config) (*Container, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	components := factory.NewComponentFactory(cfg)
	backend, err := components.BackendFactory.CreateBackend(cfg.Backend)
	if err != nil {
		return nil, fmt.Errorf("failed to create analysis backend: %w", err)
	}
	sources, err := components.StorageFactory.CreateRouter()
	if err != nil {
		return nil, fmt.Errorf("failed to create image sources: %w", err)
	}

	logBackend(cfg)

	orchestrator := analysis.New(backend,
		analysis.WithTimeout(cfg.AnalysisTimeout),
		analysis.WithValidator(validation.NewImageValidator(cfg.MaxRequestBodySize)),
		analysis.WithObserver(observer.NewLoggingObserver(logger.Logger)),
		analysis.WithObserver(observer.NewMetricsObserver(m)),
	)

	handler := transport.NewHandler(transport.Dependencies{
		Orchestrator: orchestrator,
		Sources:      sources,
		URLValidator: validation.NewURLValidator(),
		Gatherer:     registry,
	}, cfg)

	return &Container{
		config:       cfg,
		registry:     registry,
		backend:      backend,
		orchestrator: orchestrator,
		handler:      handler,
	}, nil
}

func logBackend(cfg *config.Config) {
	fields := logrus.Fields{
		"backend": cfg.Backend.String(),
		"auto":    cfg.Backend.Auto,
		"azure":   cfg.Azure.Enabled(),
	}
	switch {
	case cfg.Backend.Auto && cfg.Backend.Kind == config.BackendMock:
		logger.WithFields(fields).Warn("No Gemini API key configured, serving mock analyses")
	case cfg.Backend.Kind == config.BackendGemini && cfg.Backend.GeminiAPIKey == "":
		logger.WithFields(fields).Warn("Gemini selected without an API key, analyses will fail")
	default:
		logger.WithFields(fields).Info("Analysis backend configured")
	}
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Orchestrator returns the request lifecycle owner.
func (c *Container) Orchestrator() *analysis.Orchestrator {
	return c.orchestrator
}

// Close stops any in-flight analysis.
func (c *Container) Close() {
	c.orchestrator.Close()
}
