package kafka_middleware

import (
	"context"
	"sync/atomic"
	"time"

	"makerdesk/pkg/kafka"
)

// Metrics accumulates pipeline counters with atomics. A single process-wide
// instance backs the middleware; Snapshot gives a consistent-enough read for
// the health surface.
type Metrics struct {
	messagesPublished       int64
	messagesPublishedFailed int64
	publishDurationTotal    int64 // nanoseconds

	messagesConsumed       int64
	messagesConsumedFailed int64
	consumeDurationTotal   int64 // nanoseconds
}

type MetricsSnapshot struct {
	MessagesPublished       int64         `json:"messages_published"`
	MessagesPublishedFailed int64         `json:"messages_published_failed"`
	AvgPublishDuration      time.Duration `json:"avg_publish_duration"`
	MessagesConsumed        int64         `json:"messages_consumed"`
	MessagesConsumedFailed  int64         `json:"messages_consumed_failed"`
	AvgConsumeDuration      time.Duration `json:"avg_consume_duration"`
}

var globalMetrics = &Metrics{}

func GetMetrics() *Metrics {
	return globalMetrics
}

// Reset zeroes all counters. Used by tests.
func (m *Metrics) Reset() {
	atomic.StoreInt64(&m.messagesPublished, 0)
	atomic.StoreInt64(&m.messagesPublishedFailed, 0)
	atomic.StoreInt64(&m.publishDurationTotal, 0)
	atomic.StoreInt64(&m.messagesConsumed, 0)
	atomic.StoreInt64(&m.messagesConsumedFailed, 0)
	atomic.StoreInt64(&m.consumeDurationTotal, 0)
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		MessagesPublished:       atomic.LoadInt64(&m.messagesPublished),
		MessagesPublishedFailed: atomic.LoadInt64(&m.messagesPublishedFailed),
		AvgPublishDuration:      avgDuration(&m.publishDurationTotal, &m.messagesPublished),
		MessagesConsumed:        atomic.LoadInt64(&m.messagesConsumed),
		MessagesConsumedFailed:  atomic.LoadInt64(&m.messagesConsumedFailed),
		AvgConsumeDuration:      avgDuration(&m.consumeDurationTotal, &m.messagesConsumed),
	}
}

func avgDuration(total, count *int64) time.Duration {
	n := atomic.LoadInt64(count)
	if n == 0 {
		return 0
	}
	return time.Duration(atomic.LoadInt64(total) / n)
}

// MetricsProducerMiddleware counts publishes and their latency.
func MetricsProducerMiddleware() kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next func(ctx context.Context, msg kafka.Message) error) error {
		start := time.Now()
		err := next(ctx, msg)

		atomic.AddInt64(&globalMetrics.publishDurationTotal, int64(time.Since(start)))
		if err != nil {
			atomic.AddInt64(&globalMetrics.messagesPublishedFailed, 1)
		} else {
			atomic.AddInt64(&globalMetrics.messagesPublished, 1)
		}

		return err
	}
}

// MetricsConsumerMiddleware counts deliveries and their latency.
func MetricsConsumerMiddleware() kafka.ConsumerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next kafka.MessageHandler) error {
		start := time.Now()
		err := next(ctx, msg)

		atomic.AddInt64(&globalMetrics.consumeDurationTotal, int64(time.Since(start)))
		if err != nil {
			atomic.AddInt64(&globalMetrics.messagesConsumedFailed, 1)
		} else {
			atomic.AddInt64(&globalMetrics.messagesConsumed, 1)
		}

		return err
	}
}
