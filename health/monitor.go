// Package health classifies targets from their recorded error rates.
// Sweeps are externally triggered; the monitor never schedules itself.
package health

import (
	"context"

	"github.com/modelmux/vmroute/internal/observability"
	"github.com/modelmux/vmroute/internal/promexport"
	"github.com/modelmux/vmroute/metrics"
	"github.com/modelmux/vmroute/pkg/routing"
	"github.com/modelmux/vmroute/registry"
)

// Monitor sweeps the metrics snapshot and reports a healthy/unhealthy
// classification per target. By default the sweep is advisory only; with
// Config.AutoDisableOnHighErrorRate it also flips Enabled off for
// targets past the auto-disable thresholds.
type Monitor struct {
	cfg      routing.Config
	registry *registry.Registry
	tracker  *metrics.Tracker
	logger   *observability.Logger
}

// NewMonitor creates a health monitor over the given registry and
// tracker.
func NewMonitor(cfg routing.Config, reg *registry.Registry, tracker *metrics.Tracker, logger *observability.Logger) *Monitor {
	if cfg.UnhealthyErrorRate <= 0 {
		cfg.UnhealthyErrorRate = routing.DefaultConfig().UnhealthyErrorRate
	}
	if cfg.AutoDisableErrorRate <= 0 {
		cfg.AutoDisableErrorRate = routing.DefaultConfig().AutoDisableErrorRate
	}
	if cfg.AutoDisableMinRequests <= 0 {
		cfg.AutoDisableMinRequests = routing.DefaultConfig().AutoDisableMinRequests
	}
	if logger == nil {
		logger = observability.Wrap(nil)
	}
	return &Monitor{
		cfg:      cfg,
		registry: reg,
		tracker:  tracker,
		logger:   logger.WithComponent("health"),
	}
}

// Sweep classifies every registered target once and returns the reports
// in registration order. It never removes targets; at most it disables
// them, and only when auto-disable is configured.
func (m *Monitor) Sweep(ctx context.Context) []routing.HealthReport {
	snapshot := m.tracker.Snapshot(ctx)
	targets := m.registry.List()

	reports := make([]routing.HealthReport, 0, len(targets))
	unhealthy := 0
	for _, target := range targets {
		entry := snapshot[target.ID]
		report := routing.HealthReport{
			TargetID:      target.ID,
			ErrorRate:     entry.ErrorRate(),
			TotalRequests: entry.TotalRequests,
		}
		report.Healthy = report.ErrorRate < m.cfg.UnhealthyErrorRate

		if !report.Healthy {
			unhealthy++
			m.logger.Warn("target unhealthy",
				"target_id", target.ID,
				"error_rate", report.ErrorRate,
				"total_requests", report.TotalRequests,
			)
		} else {
			m.logger.Debug("target healthy",
				"target_id", target.ID,
				"error_rate", report.ErrorRate,
			)
		}

		if m.cfg.AutoDisableOnHighErrorRate &&
			target.IsEnabled() &&
			report.ErrorRate > m.cfg.AutoDisableErrorRate &&
			report.TotalRequests > m.cfg.AutoDisableMinRequests {
			if err := m.registry.SetEnabled(target.ID, false); err != nil {
				m.logger.Warn("auto-disable failed", "target_id", target.ID, "error", err)
			} else {
				report.Disabled = true
				m.logger.Warn("target auto-disabled",
					"target_id", target.ID,
					"error_rate", report.ErrorRate,
					"total_requests", report.TotalRequests,
				)
			}
		}

		reports = append(reports, report)
	}

	promexport.UnhealthyTargets.Set(float64(unhealthy))
	return reports
}
