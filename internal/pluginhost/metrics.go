package pluginhost

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type hostMetrics struct {
	tableSize      *prometheus.GaugeVec
	sweepRuns      *prometheus.CounterVec
	sweepReclaimed *prometheus.CounterVec
	cookieJarSize  *prometheus.GaugeVec
	callDurations  *prometheus.HistogramVec
	callErrors     *prometheus.CounterVec
	blockedHosts   *prometheus.CounterVec
}

var (
	hostMetricsOnce sync.Once
	hostMetricsInst *hostMetrics
)

func globalMetrics() *hostMetrics {
	hostMetricsOnce.Do(func() {
		hostMetricsInst = newHostMetrics()
	})
	return hostMetricsInst
}

func newHostMetrics() *hostMetrics {
	return &hostMetrics{
		tableSize: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "sourcehost",
			Subsystem: "pluginhost",
			Name:      "resource_table_size",
			Help:      "Live resource table entries for a loaded plugin instance",
		}, []string{"plugin"}),
		sweepRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sourcehost",
			Subsystem: "pluginhost",
			Name:      "sweep_runs_total",
			Help:      "Resource table sweeps executed, labeled by plugin",
		}, []string{"plugin"}),
		sweepReclaimed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sourcehost",
			Subsystem: "pluginhost",
			Name:      "sweep_reclaimed_total",
			Help:      "Resource table entries reclaimed by the sweeper, labeled by plugin",
		}, []string{"plugin"}),
		cookieJarSize: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "sourcehost",
			Subsystem: "pluginhost",
			Name:      "cookie_jar_size",
			Help:      "Stored cookies per plugin instance's jar",
		}, []string{"plugin"}),
		callDurations: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sourcehost",
			Subsystem: "pluginhost",
			Name:      "call_duration_seconds",
			Help:      "Duration of exported plugin calls, labeled by plugin and export name",
			Buckets:   prometheus.DefBuckets,
		}, []string{"plugin", "export"}),
		callErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sourcehost",
			Subsystem: "pluginhost",
			Name:      "call_errors_total",
			Help:      "Exported plugin calls that returned an error, labeled by plugin and export name",
		}, []string{"plugin", "export"}),
		blockedHosts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sourcehost",
			Subsystem: "pluginhost",
			Name:      "blocked_requests_total",
			Help:      "Outbound requests rejected by a plugin's resource policy",
		}, []string{"plugin"}),
	}
}

// recordCallMetrics reports one exported call's duration and outcome.
func (m *hostMetrics) recordCallMetrics(plugin, export string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.callDurations.WithLabelValues(plugin, export).Observe(time.Since(start).Seconds())
	if err != nil {
		m.callErrors.WithLabelValues(plugin, export).Inc()
	}
}

// reportTableSize sets the resource-table gauge for plugin to size.
func (m *hostMetrics) reportTableSize(plugin string, size int) {
	if m == nil {
		return
	}
	m.tableSize.WithLabelValues(plugin).Set(float64(size))
}

// reportSweep tallies one sweep run and however many entries it reclaimed.
func (m *hostMetrics) reportSweep(plugin string, reclaimed int) {
	if m == nil {
		return
	}
	m.sweepRuns.WithLabelValues(plugin).Inc()
	m.sweepReclaimed.WithLabelValues(plugin).Add(float64(reclaimed))
}

// reportCookieJarSize sets the cookie-jar-size gauge for plugin.
func (m *hostMetrics) reportCookieJarSize(plugin string, size int) {
	if m == nil {
		return
	}
	m.cookieJarSize.WithLabelValues(plugin).Set(float64(size))
}

// reportBlockedRequest tallies one resource-policy rejection for plugin.
func (m *hostMetrics) reportBlockedRequest(plugin string) {
	if m == nil {
		return
	}
	m.blockedHosts.WithLabelValues(plugin).Inc()
}
