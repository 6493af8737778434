package dataset

import "time"

// timeCheck runs fn and wraps its error into a Health result, timing the
// call. Shared by backends whose HealthCheck issues a real round-trip
// (Postgres ping, Redis PING, InfluxDB /health).
func timeCheck(version string, fn func() error) Health {
	start := time.Now()
	err := fn()
	h := Health{
		Connected: err == nil,
		LatencyMS: float64(time.Since(start).Microseconds()) / 1000.0,
		Version:   version,
		LastCheck: time.Now(),
	}
	if err != nil {
		h.Error = err.Error()
	}
	return h
}
