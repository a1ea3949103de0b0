package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"go-plant-analyzer/internal/metrics"
	"go-plant-analyzer/pkg/models"
)

// AnalysisEvent is one orchestrator transition or refusal.
type AnalysisEvent struct {
	EventType  EventType
	Timestamp  time.Time
	AnalysisID string
	Backend    string
	Source     string
	// Elapsed is set on terminal events.
	Elapsed time.Duration
	// State is the snapshot after the transition. Zero for rejections.
	State models.RequestState
	// Reason is set on SubmissionRejected.
	Reason string
}

// EventType represents the type of analysis event
type EventType string

const (
	// ImageSelected when a new photo replaces the selection
	ImageSelected EventType = "image_selected"
	// AnalysisStarted when the state enters in_progress
	AnalysisStarted EventType = "analysis_started"
	// AnalysisSucceeded when a result is stored
	AnalysisSucceeded EventType = "analysis_succeeded"
	// AnalysisFailed when an error message is stored
	AnalysisFailed EventType = "analysis_failed"
	// SubmissionRejected when a request is refused without a transition
	SubmissionRejected EventType = "submission_rejected"
)

// Transition reports whether the event changed the request state.
func (e AnalysisEvent) Transition() bool {
	return e.EventType != SubmissionRejected
}

// Observer handles events. OnEvent runs on the publisher's goroutine and
// must not block.
type Observer interface {
	OnEvent(ctx context.Context, event AnalysisEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event AnalysisEvent)
}

// LoggingObserver logs analysis events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{logger: logger}
}

func (o *LoggingObserver) OnEvent(ctx context.Context, event AnalysisEvent) {
	fields := logrus.Fields{
		"event_type": event.EventType,
		"backend":    event.Backend,
	}
	if event.AnalysisID != "" {
		fields["analysis_id"] = event.AnalysisID
	}
	if event.Source != "" {
		fields["source"] = event.Source
	}
	if event.Transition() {
		fields["status"] = event.State.Status
	}
	if event.Elapsed > 0 {
		fields["duration_ms"] = event.Elapsed.Milliseconds()
	}

	entry := o.logger.WithFields(fields)
	switch event.EventType {
	case ImageSelected:
		entry.Debug("Image selected")
	case AnalysisStarted:
		entry.Info("Plant analysis started")
	case AnalysisSucceeded:
		if event.State.Result != nil && event.State.Result.RawResponse != "" {
			entry = entry.WithField("degraded", true)
		}
		entry.Info("Plant analysis succeeded")
	case AnalysisFailed:
		entry.WithField("error", event.State.Error).Error("Plant analysis failed")
	case SubmissionRejected:
		entry.WithField("reason", event.Reason).Warn("Analysis request rejected")
	default:
		entry.Info("Analysis event occurred")
	}
}

func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// MetricsObserver feeds Prometheus collectors from analysis events.
type MetricsObserver struct {
	m *metrics.Metrics
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver(m *metrics.Metrics) Observer {
	return &MetricsObserver{m: m}
}

func (o *MetricsObserver) OnEvent(ctx context.Context, event AnalysisEvent) {
	switch event.EventType {
	case AnalysisStarted:
		o.m.InFlight.Inc()
	case AnalysisSucceeded:
		o.m.InFlight.Dec()
		o.m.ObserveFinished(event.Backend, metrics.OutcomeSucceeded, event.Elapsed)
		if event.State.Result != nil && event.State.Result.RawResponse != "" {
			o.m.DegradedRepliesTotal.Inc()
		}
	case AnalysisFailed:
		o.m.InFlight.Dec()
		o.m.ObserveFinished(event.Backend, metrics.OutcomeFailed, event.Elapsed)
	case SubmissionRejected:
		o.m.ObserveRejected(event.Reason)
	}
}

func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher() *EventPublisher {
	return &EventPublisher{observers: make([]Observer, 0)}
}

func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes the first observer with the same name.
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers delivers the event to every observer in subscription
// order. Delivery is synchronous so stream subscribers see transitions in
// the order they happened.
func (p *EventPublisher) NotifyObservers(ctx context.Context, event AnalysisEvent) {
	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	for _, obs := range observers {
		notify(ctx, obs, event)
	}
}

func notify(ctx context.Context, obs Observer, event AnalysisEvent) {
	defer func() {
		if r := recover(); r != nil {
			// Log panic but don't crash the application
			logrus.WithField("observer", obs.GetObserverName()).
				WithField("panic", r).
				Error("Observer panicked while handling event")
		}
	}()
	obs.OnEvent(ctx, event)
}
