// Package events publishes booking lifecycle events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/timfee/scheduler/libs/kafkax"
	"github.com/timfee/scheduler/services/booking-service/internal/calendar"
)

const (
	TopicAppointmentBooked = "booking.appointment.booked.v1"
	EventAppointmentBooked = "booking.appointment.booked.v1"
)

type AppointmentBooked struct {
	EventID           string    `json:"event_id"`
	OccurredAt        time.Time `json:"occurred_at"`
	AppointmentID     string    `json:"appointment_id"`
	AppointmentTypeID string    `json:"appointment_type_id"`
	RequesterEmail    string    `json:"requester_email"`
	StartUTC          time.Time `json:"start_utc"`
	EndUTC            time.Time `json:"end_utc"`
}

// MessageWriter is the part of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type KafkaPublisher struct {
	w   MessageWriter
	now func() time.Time
}

func NewKafkaPublisher(w MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{w: w, now: time.Now}
}

// NewWriter builds a writer for the booked topic. Close it on shutdown.
func NewWriter(brokers string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(kafkax.SplitBrokers(brokers)...),
		Topic:                  TopicAppointmentBooked,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}
}

func (p *KafkaPublisher) PublishBooked(ctx context.Context, b calendar.ConfirmedBooking) error {
	evt := AppointmentBooked{
		EventID:           uuid.NewString(),
		OccurredAt:        p.now().UTC(),
		AppointmentID:     b.ID,
		AppointmentTypeID: b.AppointmentTypeID,
		RequesterEmail:    b.RequesterEmail,
		StartUTC:          b.StartUTC.UTC(),
		EndUTC:            b.EndUTC.UTC(),
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal booked event: %w", err)
	}

	headers := kafkax.EventHeaders(kafkax.EventMeta{EventID: evt.EventID, EventType: EventAppointmentBooked})
	msg := kafka.Message{
		Key:     []byte(b.ID),
		Value:   payload,
		Headers: kafkax.InjectTraceHeaders(ctx, headers),
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write booked event: %w", err)
	}
	return nil
}
