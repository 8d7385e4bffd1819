// Package grpcclient probes a running orb over its gRPC health service.
package grpcclient

import "time"

// Client configuration defaults
const (
	// Health check configuration
	DefaultHealthCheckInterval = 500 * time.Millisecond
	HealthCheckTimeout         = 2 * time.Second

	// ServiceName is the health service name the orb registers.
	ServiceName = "orb"
)
