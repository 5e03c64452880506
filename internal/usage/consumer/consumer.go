// Package consumer wires the usage aggregator to the reservation events
// topic.
package consumer

import (
	"context"
	"fmt"

	"makerdesk/internal/usage/service"
	"makerdesk/pkg/config"
	"makerdesk/pkg/kafka"
	kafka_config "makerdesk/pkg/kafka/config"
	kafka_middleware "makerdesk/pkg/kafka/middleware"
	"makerdesk/pkg/model"
)

type EventConsumer struct {
	consumer *kafka.Consumer
	cfg      *config.Config
}

func NewEventConsumer(kafkaCfg *kafka_config.Config, aggregator service.AggregatorService, cfg *config.Config) (*EventConsumer, error) {
	handler := func(ctx context.Context, msg kafka.Message) error {
		var event model.ReservationEvent
		if err := msg.DecodeValue(&event); err != nil {
			// An undecodable payload will never succeed; the consumer
			// routes it to the DLQ instead of retrying forever.
			return fmt.Errorf("failed to decode reservation event: %w", err)
		}
		return aggregator.HandleReservationEvent(ctx, &event)
	}

	consumer, err := kafka.NewConsumer(kafkaCfg, cfg.EventsTopic, cfg.ConsumerGroup, cfg.EventsDLQTopic, handler)
	if err != nil {
		return nil, fmt.Errorf("failed to create event consumer: %w", err)
	}

	consumer.Use(kafka_middleware.LoggingConsumerMiddleware(cfg.Log))
	consumer.Use(kafka_middleware.MetricsConsumerMiddleware())

	return &EventConsumer{
		consumer: consumer,
		cfg:      cfg,
	}, nil
}

// Run blocks consuming events until ctx is cancelled.
func (c *EventConsumer) Run(ctx context.Context) {
	c.cfg.Log.Info("Usage event consumer started",
		"topic", c.cfg.EventsTopic,
		"group", c.cfg.ConsumerGroup,
	)

	if err := c.consumer.Start(ctx); err != nil && ctx.Err() == nil {
		c.cfg.Log.Error("Usage event consumer stopped with error", "error", err)
	}
}

func (c *EventConsumer) Close() error {
	return c.consumer.Close()
}
