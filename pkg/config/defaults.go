package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "classbook"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort = "8080"

	DefaultRateLimitRequests = 30
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	// Non-staff users may not book a classroom for longer than this.
	DefaultMaxUserBookingHours = 1.0

	// Advisory classroom locks auto-expire so a crashed writer cannot
	// block a classroom indefinitely.
	DefaultClassroomLockTTL = 10 * time.Second

	DefaultBookingEventsTopic    = "classbook.booking-events"
	DefaultBookingEventsDLQTopic = "classbook.booking-events.dlq"

	DefaultPaginationLimit = 100
)
