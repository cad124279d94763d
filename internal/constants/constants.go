package constants

import "time"

const (
	DatabaseTimeout = 5 * time.Second
	RequestTimeout  = 30 * time.Second
	ReplayTimeout   = 60 * time.Second
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

// ReplayBatchSize bounds how many games a replay processes between progress
// log lines. Overridable via REPLAY_BATCH_SIZE.
const ReplayBatchSize = 100

// Scoring fallbacks used when a key is missing from the scoring_config table.
const (
	DefaultBasePoints              = 25000
	DefaultTotalPoints             = 100000
	DefaultInitialPoints           = 500
	DefaultNewbieProtectionMaxRank = 3
)

// DefaultUmaPoints is the placement bonus for positions 1..4.
var DefaultUmaPoints = [4]int{20, 10, 0, -10}

const (
	LeaderboardLimit = 100
)
