// Package events publishes reservation lifecycle events so downstream
// consumers (usage aggregation, notifications) can react without coupling to
// the reservations service.
package events

import (
	"context"

	"makerdesk/pkg/kafka"
	"makerdesk/pkg/logger"
	"makerdesk/pkg/model"
)

// Publisher emits reservation lifecycle events. Publishing happens after the
// owning transaction commits; a failed publish is logged and retried through
// the producer's DLQ, never rolled back into the reservation state.
type Publisher interface {
	PublishReservationEvent(ctx context.Context, event model.ReservationEvent) error
	Close() error
}

type kafkaPublisher struct {
	producer *kafka.Producer
	log      *logger.Logger
}

func NewKafkaPublisher(producer *kafka.Producer, log *logger.Logger) Publisher {
	return &kafkaPublisher{
		producer: producer,
		log:      log,
	}
}

func (p *kafkaPublisher) PublishReservationEvent(ctx context.Context, event model.ReservationEvent) error {
	msg := kafka.NewMessage().
		WithKey(event.EquipmentID).
		WithEventID(event.Key()).
		WithEventType(event.Type).
		WithSource("reservations").
		WithValue(event).
		Build()

	if err := p.producer.Publish(ctx, msg); err != nil {
		p.log.Error("Failed to publish reservation event",
			"reservation_id", event.ReservationID,
			"event_type", event.Type,
			"error", err,
		)
		return err
	}

	p.log.Info("Reservation event published",
		"reservation_id", event.ReservationID,
		"event_type", event.Type,
		"equipment_id", event.EquipmentID,
	)
	return nil
}

func (p *kafkaPublisher) Close() error {
	return p.producer.Close()
}

// NopPublisher drops events. Used in tests and when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishReservationEvent(ctx context.Context, event model.ReservationEvent) error {
	return nil
}

func (NopPublisher) Close() error { return nil }
