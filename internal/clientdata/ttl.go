package clientdata

import "time"

// Default lifetimes, added to time.Now() to compute expires_at.
const (
	TTLCurrentPrice = 10 * time.Minute
	TTLPriceHistory = 6 * time.Hour // daily closes only move once a day

	// StaleRetention is how long an expired row is kept as a fallback
	StaleRetention = 7 * 24 * time.Hour
)
