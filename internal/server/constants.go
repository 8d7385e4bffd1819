// Package server exposes the local control surface: JSON health, state and
// action endpoints, a WebSocket state stream, Prometheus metrics and a gRPC
// health service.
package server

import "time"

// Server configuration constants
const (
	// Global IP-based rate limiting on action endpoints
	IPRateLimitActions         = 10               // Max actions per IP per window
	IPRateLimitWindow          = time.Second      // Sliding window duration
	IPRateLimitCleanupInterval = 5 * time.Minute  // How often to purge stale IP entries
	IPRateLimitEntryTTL        = 10 * time.Minute // TTL for inactive IP entries

	// WebSocket write deadline per message
	WSWriteTimeout = 2 * time.Second

	// How often the gRPC health status is refreshed from ambient playback
	HealthRefreshInterval = time.Second

	// Max accepted request body for actions
	MaxActionBody = 4 << 10

	// HealthService is the gRPC health service name.
	HealthService = "orb"
)
