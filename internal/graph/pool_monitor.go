package graph

import (
	"context"
	"fmt"
	"time"
)

// PoolStats represents connection pool statistics.
//
// Note: the Neo4j Go driver doesn't expose detailed pool statistics
// directly. For production monitoring, use Neo4j's built-in metrics
// endpoint instead of polling this struct.
type PoolStats struct {
	MaxPoolSize int
}

// GetPoolStats retrieves the configured connection pool size. Limited
// information is available from the Go driver at runtime.
func (n *Neo4jBackend) GetPoolStats() PoolStats {
	return PoolStats{MaxPoolSize: 50}
}

// WatchPoolHealth runs periodic health checks to detect connection issues
// early.
//
// Example usage:
//
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	go backend.WatchPoolHealth(ctx, 30*time.Second)
func (n *Neo4jBackend) WatchPoolHealth(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	n.logger.Info("starting pool health monitor", "interval", interval)

	for {
		select {
		case <-ctx.Done():
			n.logger.Info("pool health monitor stopped")
			return
		case <-ticker.C:
			if err := n.HealthCheck(ctx); err != nil {
				n.logger.Warn("pool health check failed", "error", err)
			} else {
				n.logger.Debug("pool health check passed")
			}
		}
	}
}

// MonitorPoolExhaustion logs a warning if connection acquisition took long
// enough to suggest pool exhaustion or a slow query holding a connection.
//
// Usage:
//
//	start := time.Now()
//	// ... perform query ...
//	backend.MonitorPoolExhaustion(time.Since(start), "resolve_exact_match")
func (n *Neo4jBackend) MonitorPoolExhaustion(duration time.Duration, operation string) {
	const warnThreshold = 30 * time.Second
	if duration > warnThreshold {
		n.logger.Warn("connection acquisition slow - possible pool exhaustion",
			"operation", operation,
			"duration_seconds", duration.Seconds(),
			"threshold_seconds", warnThreshold.Seconds())
	}
}

// RecommendedPoolSize returns a recommended pool size for a given expected
// concurrency, clamped to a sane range.
func RecommendedPoolSize(expectedConcurrentRequests int) int {
	recommended := expectedConcurrentRequests * 3 / 2 // 1.5x safety margin
	if recommended < 10 {
		return 10
	}
	if recommended > 100 {
		return 100
	}
	return recommended
}

// PoolHealthStatus represents the health of the connection pool at a point
// in time.
type PoolHealthStatus struct {
	Healthy       bool
	Message       string
	LastCheckTime time.Time
}

// CheckPoolHealth performs a comprehensive health check, returning detailed
// status for monitoring/alerting.
func (n *Neo4jBackend) CheckPoolHealth(ctx context.Context) (*PoolHealthStatus, error) {
	start := time.Now()
	err := n.HealthCheck(ctx)

	status := &PoolHealthStatus{LastCheckTime: time.Now()}
	if err != nil {
		status.Healthy = false
		status.Message = fmt.Sprintf("health check failed: %v", err)
		return status, err
	}

	const slowThreshold = 5 * time.Second
	checkDuration := time.Since(start)
	if checkDuration > slowThreshold {
		status.Healthy = false
		status.Message = fmt.Sprintf("health check slow: %v (threshold: %v)", checkDuration, slowThreshold)
		return status, fmt.Errorf("health check timeout")
	}

	status.Healthy = true
	status.Message = fmt.Sprintf("pool healthy (check took %v)", checkDuration)
	return status, nil
}
