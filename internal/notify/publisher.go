// Package notify abstracts the real-time notification channel used to push
// reconciliation events to the UI.
//
// The core calls Publish after every approve/reject/manual decision but is
// fully functional with the no-op implementation: publishing is
// fire-and-forget and its failure never affects the workflow outcome.
package notify

import (
	"log/slog"
	"time"
)

// Event describes a reconciliation state change.
type Event struct {
	Name     string    `json:"event"`
	EntityID string    `json:"entity_id"`
	At       time.Time `json:"timestamp"`
}

// Event names published by the workflow.
const (
	EventApproved = "reconciliation.approved"
	EventRejected = "reconciliation.rejected"
	EventManual   = "reconciliation.manual"
)

// Publisher delivers events to interested listeners.
type Publisher interface {
	Publish(event Event)
}

// Noop discards all events. Used in tests and when no real-time channel is
// configured.
type Noop struct{}

func (Noop) Publish(Event) {}

// LogPublisher writes events to the structured log. It stands in for a
// websocket or message-bus publisher in single-process deployments.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher creates a publisher backed by the given logger.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(event Event) {
	p.logger.Info("reconciliation event",
		"event", event.Name,
		"entity_id", event.EntityID,
		"timestamp", event.At.Format(time.RFC3339),
	)
}
