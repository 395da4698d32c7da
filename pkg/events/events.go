package events

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// EventType identifies a domain event emitted by the escalation engine
type EventType string

const (
	LeadEscalated    EventType = "lead.escalated"
	LeadAcknowledged EventType = "lead.acknowledged"
	LeadExhausted    EventType = "lead.exhausted"
	LeadAborted      EventType = "lead.aborted"
)

// Event is the payload the dashboard and notification layers subscribe to
type Event struct {
	Type     EventType `json:"type"`
	CaseID   string    `json:"case_id"`
	LeadID   string    `json:"lead_id"`
	Tier     int       `json:"tier"`
	MemberID string    `json:"member_id,omitempty"`
	At       time.Time `json:"at"`
}

// Publisher delivers domain events to the host application. The transport is
// an integration detail: in-process callbacks and a Redis stream are both
// provided.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Subscriber receives events from the in-process bus
type Subscriber func(Event)

// Bus is an in-process publisher fanning events out to registered
// subscribers. Subscriber panics and slowness are the subscriber's problem;
// delivery is synchronous and best-effort.
type Bus struct {
	mu          sync.RWMutex
	subscribers []Subscriber
	logger      *logrus.Logger
}

func NewBus(logger *logrus.Logger) *Bus {
	return &Bus{logger: logger}
}

// Subscribe registers a callback for all future events
func (b *Bus) Subscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, sub)
}

func (b *Bus) Publish(ctx context.Context, event Event) error {
	b.mu.RLock()
	subs := make([]Subscriber, len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.RUnlock()

	for _, sub := range subs {
		sub(event)
	}

	b.logger.WithFields(logrus.Fields{
		"type":    event.Type,
		"case_id": event.CaseID,
		"lead_id": event.LeadID,
		"tier":    event.Tier,
	}).Debug("Published domain event")

	return nil
}

// Multi publishes to several publishers in order, returning the first error
// after attempting all of them
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, event Event) error {
	var firstErr error
	for _, p := range m {
		if err := p.Publish(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
