package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	subjectPrefix = "fantasygolf"
	sourceService = "fantasygolf"
)

// SubjectForEvent maps an event type to its NATS subject
func SubjectForEvent(eventType EventType) string {
	switch eventType {
	case EventTypeBalanceChange:
		return subjectPrefix + ".wallet.balance_changed"
	case EventTypePaymentIngested:
		return subjectPrefix + ".payments.ingested"
	case EventTypeEntryCreated:
		return subjectPrefix + ".entries.created"
	case EventTypeEntryCancelled:
		return subjectPrefix + ".entries.cancelled"
	case EventTypeInstanceStateChange:
		return subjectPrefix + ".headtohead.state_changed"
	case EventTypeWithdrawalStateChange:
		return subjectPrefix + ".withdrawals.state_changed"
	case EventTypeStatusChange:
		return subjectPrefix + ".competitions.status_changed"
	case EventTypeReconciliationRequired:
		return subjectPrefix + ".reconciliation.required"
	default:
		return fmt.Sprintf("%s.unknown.%s", subjectPrefix, eventType)
	}
}

// StreamSubjects returns the subject filter the JetStream stream captures
func StreamSubjects() []string {
	return []string{subjectPrefix + ".>"}
}

// Envelope wraps an event payload for the wire
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	Timestamp     time.Time       `json:"timestamp"`
	SourceService string          `json:"source_service"`
	Payload       json.RawMessage `json:"payload"`
}

// NewEnvelope serializes event into an envelope with a fresh id
func NewEnvelope(event Event, now time.Time) (*Envelope, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}
	return &Envelope{
		EventID:       uuid.NewString(),
		EventType:     string(event.Type()),
		Timestamp:     now.UTC(),
		SourceService: sourceService,
		Payload:       payload,
	}, nil
}

// MessagePublisher is the transport the forwarder writes to
type MessagePublisher interface {
	Publish(ctx context.Context, subject, msgID string, data []byte) error
}

// NATSForwarder forwards every committed event on the bus to NATS
type NATSForwarder struct {
	publisher MessagePublisher
	timeout   time.Duration
}

// NewNATSForwarder creates a forwarder writing to publisher
func NewNATSForwarder(publisher MessagePublisher) *NATSForwarder {
	return &NATSForwarder{publisher: publisher, timeout: 5 * time.Second}
}

// Register subscribes the forwarder to all event types on bus
func (f *NATSForwarder) Register(bus *Bus) {
	bus.SubscribeAll(f.Handle)
}

// Handle publishes a single event. Failures are logged, never propagated:
// the event has already been committed.
func (f *NATSForwarder) Handle(ctx context.Context, event Event) {
	envelope, err := NewEnvelope(event, time.Now())
	if err != nil {
		log.WithError(err).WithField("eventType", event.Type()).Error("Failed to build event envelope")
		return
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		log.WithError(err).WithField("eventType", event.Type()).Error("Failed to marshal event envelope")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	subject := SubjectForEvent(event.Type())
	if err := f.publisher.Publish(ctx, subject, envelope.EventID, data); err != nil {
		log.WithFields(log.Fields{
			"eventType": event.Type(),
			"subject":   subject,
			"eventId":   envelope.EventID,
		}).WithError(err).Error("Failed to forward event to NATS")
	}
}
