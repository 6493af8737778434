package mcpserver

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/glsp-mcp/forge/pkg/catalog"
)

func toComponentSummary(d catalog.Descriptor) ComponentSummary {
	return ComponentSummary{
		Name:        d.Name,
		Path:        d.AbsolutePath,
		ContentHash: d.ContentHash,
		Available:   d.Exists,
		WorldName:   d.WorldName,
	}
}

func (s *Server) scanComponents(ctx context.Context, req *mcpsdk.CallToolRequest, in ScanComponentsInput) (*mcpsdk.CallToolResult, ScanComponentsOutput, error) {
	result, err := s.catalog.Scan(ctx)
	if err != nil {
		return nil, ScanComponentsOutput{}, err
	}

	out := ScanComponentsOutput{
		Total:     result.Summary.Total,
		Available: result.Summary.Available,
		Missing:   result.Summary.Missing,
	}
	for _, d := range result.Components {
		out.Components = append(out.Components, toComponentSummary(d))
	}
	return nil, out, nil
}

func (s *Server) checkComponentStatus(ctx context.Context, req *mcpsdk.CallToolRequest, in CheckComponentStatusInput) (*mcpsdk.CallToolResult, CheckComponentStatusOutput, error) {
	d, ok := s.catalog.Get(in.Name)
	if !ok {
		return nil, CheckComponentStatusOutput{Found: false}, nil
	}
	return nil, CheckComponentStatusOutput{Found: true, Component: toComponentSummary(d)}, nil
}

func (s *Server) getComponentPath(ctx context.Context, req *mcpsdk.CallToolRequest, in GetComponentPathInput) (*mcpsdk.CallToolResult, GetComponentPathOutput, error) {
	d, ok := s.catalog.FindFlexible(in.Name)
	if !ok {
		return nil, GetComponentPathOutput{Found: false}, nil
	}
	return nil, GetComponentPathOutput{Found: true, Path: d.AbsolutePath}, nil
}

func toInterfaceSummaries(ifaces []catalog.Interface) []InterfaceSummary {
	out := make([]InterfaceSummary, 0, len(ifaces))
	for _, iface := range ifaces {
		funcs := make([]string, 0, len(iface.Functions))
		for _, fn := range iface.Functions {
			funcs = append(funcs, fn.Name)
		}
		out = append(out, InterfaceSummary{
			Kind:      string(iface.Kind),
			Name:      iface.Name,
			Namespace: iface.Namespace,
			Package:   iface.Package,
			Version:   iface.Version,
			Functions: funcs,
		})
	}
	return out
}

func (s *Server) debugComponentInterfaces(ctx context.Context, req *mcpsdk.CallToolRequest, in DebugComponentInterfacesInput) (*mcpsdk.CallToolResult, DebugComponentInterfacesOutput, error) {
	path := in.Path
	if path == "" {
		d, ok := s.catalog.FindFlexible(in.Name)
		if !ok {
			return nil, DebugComponentInterfacesOutput{}, catalogNotFoundError(in.Name)
		}
		path = d.AbsolutePath
	}

	analysis, err := s.catalog.Analyze(ctx, path)
	if err != nil {
		return nil, DebugComponentInterfacesOutput{}, err
	}

	return nil, DebugComponentInterfacesOutput{
		ComponentName: analysis.ComponentName,
		WorldName:     analysis.WorldName,
		Imports:       toInterfaceSummaries(analysis.Imports),
		Exports:       toInterfaceSummaries(analysis.Exports),
		RawWIT:        analysis.RawWIT,
		Diagnostic:    analysis.Diagnostic,
	}, nil
}
