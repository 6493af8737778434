package main

import (
	"github.com/glsp-mcp/forge/pkg/catalog"
)

// catalogResolver satisfies pipeline.ComponentResolver over a
// *catalog.Catalog, the same lookup the MCP tool surface uses for
// execute_component.
type catalogResolver struct {
	catalog *catalog.Catalog
}

func (r catalogResolver) ResolveBinaryPath(componentName string) (string, error) {
	d, ok := r.catalog.FindFlexible(componentName)
	if !ok {
		return "", catalogNotFoundError(componentName)
	}
	return d.AbsolutePath, nil
}
