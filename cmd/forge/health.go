package main

import (
	"context"

	"github.com/glsp-mcp/forge/pkg/dataset"
)

// healthChecker satisfies httpapi.HealthChecker by probing the
// Dataset Store with a cheap read, mirroring the teacher's own health
// handler in excluding anything this process doesn't own (external
// MCP/LLM dependencies there; nothing comparable here, since the
// Dataset Store, Component Catalog, and Execution Core all live in
// this process).
type healthChecker struct {
	store dataset.Store
}

func (h healthChecker) Healthy(ctx context.Context) (bool, map[string]string) {
	detail := make(map[string]string)

	if _, err := h.store.ListSensors(ctx); err != nil {
		detail["dataset_store"] = err.Error()
		return false, detail
	}
	detail["dataset_store"] = "ok"
	return true, detail
}
