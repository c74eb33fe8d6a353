package events

import (
	"context"
	"time"

	"classbook/pkg/kafka"
	"classbook/pkg/logger"
	"classbook/pkg/model"
)

// Event types emitted on the booking event stream.
const (
	TypeBookingCreated   = "booking.created"
	TypeBookingUpdated   = "booking.updated"
	TypeBookingCancelled = "booking.cancelled"
)

// BookingEvent is the payload published for every booking lifecycle change.
type BookingEvent struct {
	EventType   string    `json:"event_type"`
	BookingID   string    `json:"booking_id"`
	ClassroomID string    `json:"classroom_id"`
	UserID      string    `json:"user_id"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Publisher emits booking lifecycle events. Publishing is best effort;
// implementations log failures instead of failing the request that
// already committed.
type Publisher interface {
	BookingCreated(ctx context.Context, booking *model.Booking)
	BookingUpdated(ctx context.Context, booking *model.Booking)
	BookingCancelled(ctx context.Context, booking *model.Booking)
	Close() error
}

type kafkaPublisher struct {
	producer *kafka.Producer
	source   string
	log      *logger.Logger
}

func NewKafkaPublisher(producer *kafka.Producer, source string, log *logger.Logger) Publisher {
	return &kafkaPublisher{
		producer: producer,
		source:   source,
		log:      log,
	}
}

func (p *kafkaPublisher) BookingCreated(ctx context.Context, booking *model.Booking) {
	p.publish(ctx, TypeBookingCreated, booking)
}

func (p *kafkaPublisher) BookingUpdated(ctx context.Context, booking *model.Booking) {
	p.publish(ctx, TypeBookingUpdated, booking)
}

func (p *kafkaPublisher) BookingCancelled(ctx context.Context, booking *model.Booking) {
	p.publish(ctx, TypeBookingCancelled, booking)
}

// publish keys messages by classroom ID so all events for one classroom
// land on the same partition in order.
func (p *kafkaPublisher) publish(ctx context.Context, eventType string, booking *model.Booking) {
	event := BookingEvent{
		EventType:   eventType,
		BookingID:   booking.ID,
		ClassroomID: booking.ClassroomID,
		UserID:      booking.UserID,
		StartTime:   booking.StartTime,
		EndTime:     booking.EndTime,
		OccurredAt:  time.Now().UTC(),
	}

	msg := kafka.NewMessage().
		WithKey(booking.ClassroomID).
		WithValue(event).
		WithEventType(eventType).
		WithSchemaVersion("1").
		WithSource(p.source).
		Build()

	if err := p.producer.Publish(ctx, msg); err != nil {
		p.log.Error("Failed to publish booking event",
			"event_type", eventType,
			"booking_id", booking.ID,
			"classroom_id", booking.ClassroomID,
			"error", err,
		)
		return
	}

	p.log.Debug("Booking event published",
		"event_type", eventType,
		"booking_id", booking.ID,
		"classroom_id", booking.ClassroomID,
	)
}

func (p *kafkaPublisher) Close() error {
	return p.producer.Close()
}

// NoopPublisher is used when the event stream is disabled.
type NoopPublisher struct{}

func (NoopPublisher) BookingCreated(context.Context, *model.Booking)   {}
func (NoopPublisher) BookingUpdated(context.Context, *model.Booking)   {}
func (NoopPublisher) BookingCancelled(context.Context, *model.Booking) {}
func (NoopPublisher) Close() error                                     { return nil }
