package grpcclient

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	apperrors "github.com/GriffinCanCode/orb/internal/errors"
)

// Client wraps the health client of one orb instance.
type Client struct {
	conn   *grpc.ClientConn
	Health healthpb.HealthClient
}

// New creates a client for addr. The connection is established lazily.
func New(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.Config, "invalid grpc address %q", addr)
	}
	return &Client{conn: conn, Health: healthpb.NewHealthClient(conn)}, nil
}

// Close closes the gRPC connection
func (c *Client) Close() error {
	return c.conn.Close()
}

// Check returns the serving status of the orb service.
func (c *Client) Check(ctx context.Context) (healthpb.HealthCheckResponse_ServingStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, HealthCheckTimeout)
	defer cancel()

	resp, err := c.Health.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, apperrors.Wrap(err, apperrors.Unavailable, "health check")
	}
	return resp.GetStatus(), nil
}

// Serving reports whether the orb is serving.
func (c *Client) Serving(ctx context.Context) bool {
	status, err := c.Check(ctx)
	return err == nil && status == healthpb.HealthCheckResponse_SERVING
}

// WaitServing polls until the orb reports SERVING or ctx ends.
func (c *Client) WaitServing(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultHealthCheckInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		status, err := c.Check(ctx)
		if err == nil && status == healthpb.HealthCheckResponse_SERVING {
			return nil
		}
		slog.Debug("orb not serving yet", "status", status.String(), "error", err)

		select {
		case <-ctx.Done():
			return apperrors.Wrap(ctx.Err(), apperrors.Timeout, "waiting for orb to serve")
		case <-ticker.C:
		}
	}
}
