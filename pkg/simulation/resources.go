package simulation

import "time"

// ResourceUsage is an observed sample compared against a
// ResourceLimits budget, per original_source simulation.rs's
// ResourceUsage.
type ResourceUsage struct {
	MemoryMB     float64
	CPUPercent   float64
	ThreadCount  int
	DiskMB       float64
	NetworkMbps  float64
}

// checkBudget compares usage against limits and returns one
// ResourceAlert per exceeded metric, per spec.md §4.F "Resource
// budgeting: ... exceeding them raises an alert but does not kill the
// run." A zero limit means "no budget configured" for that metric and
// is never checked.
func checkBudget(scenarioID string, limits ResourceLimits, usage ResourceUsage, frame int64, now time.Time) []ResourceAlert {
	var alerts []ResourceAlert

	add := func(metric string, limit, observed float64) {
		if limit > 0 && observed > limit {
			alerts = append(alerts, ResourceAlert{
				ScenarioID: scenarioID,
				Metric:     metric,
				Limit:      limit,
				Observed:   observed,
				Frame:      frame,
				Timestamp:  now,
			})
		}
	}

	add("memory_mb", limits.MaxMemoryMB, usage.MemoryMB)
	add("cpu_percent", limits.MaxCPUPercent, usage.CPUPercent)
	add("thread_count", float64(limits.MaxThreads), float64(usage.ThreadCount))
	add("disk_mb", limits.MaxDiskMB, usage.DiskMB)
	add("network_mbps", limits.MaxNetworkMbps, usage.NetworkMbps)

	return alerts
}
