package model

import "time"

// RateLimitConfig is one in-memory throttling policy. Counters live in
// redis keyed by endpoint type and caller identity, so no rows back this
// type.
type RateLimitConfig struct {
	EndpointType string        `json:"endpoint_type"`
	MaxRequests  int           `json:"max_requests"`
	WindowSize   time.Duration `json:"window_size"`
	// BlockTime stretches the counter's expiry once the limit is tripped.
	BlockTime   time.Duration `json:"block_time"`
	Identifier  string        `json:"identifier"` // "learner" or "ip"
	Description string        `json:"description"`
}
