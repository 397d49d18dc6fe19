// internal/utils/metrics/metrics.go
package metrics

import (
	"time"
)

// RecordProviderCall counts one upstream call. outcome is "ok" or a failure reason.
func (c *Collector) RecordProviderCall(provider, op, outcome string) {
	if c == nil {
		return
	}
	c.providerCalls.WithLabelValues(provider, op, outcome).Inc()
}

// ObserveGateWait satisfies ratelimit.WaitObserver.
func (c *Collector) ObserveGateWait(gate string, wait time.Duration) {
	if c == nil {
		return
	}
	c.gateWait.WithLabelValues(gate).Observe(wait.Seconds())
}

// RecordDiscovery counts a discovery run.
func (c *Collector) RecordDiscovery(status, strategy string) {
	if c == nil {
		return
	}
	c.discovery.WithLabelValues(status, strategy).Inc()
}

// RecordCacheLookup counts a hit or miss.
func (c *Collector) RecordCacheLookup(hit bool) {
	if c == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheLookups.WithLabelValues(result).Inc()
}

// RecordThrottle counts an allowed or denied scan attempt.
func (c *Collector) RecordThrottle(allowed bool) {
	if c == nil {
		return
	}
	decision := "denied"
	if allowed {
		decision = "allowed"
	}
	c.throttle.WithLabelValues(decision).Inc()
}

// RecordSession counts session store events (created, found, not_found, expired).
func (c *Collector) RecordSession(event string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.sessions.WithLabelValues(event).Add(float64(n))
}

// TrackDetail marks a detail assembly as started and returns its completion func.
func (c *Collector) TrackDetail() (done func()) {
	if c == nil {
		return func() {}
	}
	start := time.Now()
	c.detailsInFlight.Inc()
	return func() {
		c.detailsInFlight.Dec()
		c.detailDuration.Observe(time.Since(start).Seconds())
	}
}
