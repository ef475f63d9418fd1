package constants

import "time"

const (
	ExternalAPITimeout = 10 * time.Second
	DatabaseTimeout    = 5 * time.Second
	RequestTimeout     = 30 * time.Second
)

const (
	// Requested ticket counts are clamped into [MinCount, MaxCount].
	MinCount = 1
	MaxCount = 100

	// MaxSampleDraws caps the accept/reject sampler so a misconfigured
	// range cannot spin forever.
	MaxSampleDraws = 10000
)

const (
	DBMaxOpenConns    = 100
	DBMaxIdleConns    = 10
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	HistoryListLimit = 20
)
