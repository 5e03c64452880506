package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "makerdesk"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultRateLimitRequests = 30
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultPaginationLimit = 100

	// DefaultMaxOverlapFetch bounds how many committed blocks one overlap
	// check will pull. The per-equipment scan is linear in this bound, which
	// is fine for a single machine's calendar; a tenant with more than this
	// many committed blocks inside one queried window has outgrown the
	// in-collection scan and needs the index-only count path.
	DefaultMaxOverlapFetch = 200

	// DefaultSweepInterval drives the lapsed-reservation sweep. The sweep
	// exists for analytics freshness only; reads derive active/completed
	// from the clock regardless.
	DefaultSweepInterval = 1 * time.Minute

	DefaultEventsTopic    = "reservation-events"
	DefaultEventsDLQTopic = "reservation-events-dlq"
	DefaultConsumerGroup  = "usage-aggregator"
)

// DefaultAutoApproveCategories lists equipment categories whose reservations
// skip the explicit approval step.
var DefaultAutoApproveCategories = []string{"3d_printer"}
