package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Event represents a pipeline or batch event
type Event struct {
	EventType      EventType              `json:"event_type"`
	Timestamp      time.Time              `json:"timestamp"`
	Source         string                 `json:"source,omitempty"`
	Output         string                 `json:"output,omitempty"`
	BatchID        string                 `json:"batch_id,omitempty"`
	ProcessingTime time.Duration          `json:"processing_time"`
	Success        bool                   `json:"success"`
	ErrorKind      string                 `json:"error_kind,omitempty"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// EventType represents the type of event
type EventType string

const (
	TransformStarted   EventType = "transform_started"
	TransformCompleted EventType = "transform_completed"
	TransformFailed    EventType = "transform_failed"
	BatchStarted       EventType = "batch_started"
	BatchCompleted     EventType = "batch_completed"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event Event)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event Event)
}

// LoggingObserver logs events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

// OnEvent handles events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event Event) {
	fields := logrus.Fields{
		"event_type":         event.EventType,
		"processing_time_ms": event.ProcessingTime.Milliseconds(),
		"success":            event.Success,
	}
	if event.Source != "" {
		fields["source"] = event.Source
	}
	if event.Output != "" {
		fields["output"] = event.Output
	}
	if event.BatchID != "" {
		fields["batch_id"] = event.BatchID
	}
	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
		fields["error_kind"] = event.ErrorKind
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	entry := o.logger.WithFields(fields)
	switch event.EventType {
	case TransformStarted:
		entry.Debug("Transform started")
	case TransformCompleted:
		entry.Info("Transform completed")
	case TransformFailed:
		entry.Warn("Transform failed")
	case BatchStarted:
		entry.Info("Batch started")
	case BatchCompleted:
		entry.Info("Batch completed")
	default:
		entry.Info("Event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// MetricsObserver collects counters from events
type MetricsObserver struct {
	mu                  sync.RWMutex
	totalTransforms     int64
	succeeded           int64
	failed              int64
	failuresByKind      map[string]int64
	batches             int64
	totalProcessingTime time.Duration
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{failuresByKind: make(map[string]int64)}
}

// OnEvent handles events by collecting metrics
func (o *MetricsObserver) OnEvent(ctx context.Context, event Event) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.EventType {
	case TransformStarted:
		o.totalTransforms++
	case TransformCompleted:
		o.succeeded++
		o.totalProcessingTime += event.ProcessingTime
	case TransformFailed:
		o.failed++
		o.failuresByKind[event.ErrorKind]++
	case BatchCompleted:
		o.batches++
	}
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// GetMetrics returns current metrics
func (o *MetricsObserver) GetMetrics() map[string]interface{} {
	o.mu.RLock()
	defer o.mu.RUnlock()

	avgProcessingTime := time.Duration(0)
	if o.succeeded > 0 {
		avgProcessingTime = o.totalProcessingTime / time.Duration(o.succeeded)
	}

	byKind := make(map[string]int64, len(o.failuresByKind))
	for k, v := range o.failuresByKind {
		byKind[k] = v
	}

	return map[string]interface{}{
		"total_transforms":       o.totalTransforms,
		"successful_transforms":  o.succeeded,
		"failed_transforms":      o.failed,
		"failures_by_kind":       byKind,
		"batches":                o.batches,
		"total_processing_ms":    o.totalProcessingTime.Milliseconds(),
		"avg_processing_time_ms": avgProcessingTime.Milliseconds(),
	}
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher() *EventPublisher {
	return &EventPublisher{
		observers: make([]Observer, 0),
	}
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer
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

// NotifyObservers delivers event to every observer in subscription order.
// Delivery is synchronous so counters are settled when the caller returns.
func (p *EventPublisher) NotifyObservers(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	for _, observer := range observers {
		notify(ctx, observer, event)
	}
}

func notify(ctx context.Context, obs Observer, event Event) {
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
