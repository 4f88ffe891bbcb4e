// Package connectivity decides whether the client should attempt a
// generation request at all, combining a platform-level network flag with a
// liveness probe against a same-origin health endpoint.
package connectivity

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const probeTimeout = 3 * time.Second

// NetworkFlagFunc reports the platform-level connectivity signal. A false
// flag is authoritative for "definitely offline".
type NetworkFlagFunc func() bool

// Checker probes connectivity. It never returns an error: any probe failure
// degrades to an offline report.
type Checker struct {
	healthURL   string
	networkFlag NetworkFlagFunc
	httpClient  *http.Client
	logger      *zap.Logger
}

// NewChecker creates a connectivity checker probing healthURL. A nil
// networkFlag is treated as an always-true platform signal.
func NewChecker(healthURL string, networkFlag NetworkFlagFunc, logger *zap.Logger) *Checker {
	if networkFlag == nil {
		networkFlag = func() bool { return true }
	}
	return &Checker{
		healthURL:   healthURL,
		networkFlag: networkFlag,
		httpClient: &http.Client{
			Timeout: probeTimeout,
		},
		logger: logger.Named("ConnectivityChecker"),
	}
}

// IsOnline reports whether the client is currently online. The platform flag
// short-circuits to offline without probing; otherwise a GET against the
// health endpoint must return a 2xx status.
func (c *Checker) IsOnline(ctx context.Context) bool {
	if !c.networkFlag() {
		c.logger.Debug("Network flag reports offline, skipping probe")
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.healthURL, nil)
	if err != nil {
		c.logger.Warn("Failed to build health check request", zap.Error(err))
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("Health check probe failed", zap.Error(err))
		return false
	}
	defer resp.Body.Close()

	online := resp.StatusCode >= 200 && resp.StatusCode < 300
	if !online {
		c.logger.Debug("Health check returned non-2xx status", zap.Int("status_code", resp.StatusCode))
	}
	return online
}
