package mcpserver

import (
	"context"
	"log/slog"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/glsp-mcp/forge/pkg/catalog"
	"github.com/glsp-mcp/forge/pkg/pipeline"
	"github.com/glsp-mcp/forge/pkg/simulation"
	"github.com/glsp-mcp/forge/pkg/wasmexec"
)

// serverName/serverVersion populate the Implementation struct handed
// to mcpsdk.NewServer, matching the teacher's pkg/mcp client-side
// convention of naming+versioning every Implementation literal.
const (
	serverName    = "forge"
	serverVersion = "0.1.0"
)

// Server wires spec.md §6's tool-call surface onto an mcp.Server,
// dispatching each tool straight to the component it names. It owns no
// state of its own — every tool call is a thin translation between the
// MCP wire shape (models.go) and the domain component's own API.
type Server struct {
	sdk *mcpsdk.Server

	catalog    *catalog.Catalog
	core       *wasmexec.Core
	pipelines  *pipeline.Engine
	simulations *simulation.Engine

	logger *slog.Logger
}

// New builds a Server and registers every spec.md §6 tool against it.
func New(cat *catalog.Catalog, core *wasmexec.Core, pipelines *pipeline.Engine, simulations *simulation.Engine) *Server {
	s := &Server{
		catalog:     cat,
		core:        core,
		pipelines:   pipelines,
		simulations: simulations,
		logger:      slog.Default(),
	}

	s.sdk = mcpsdk.NewServer(&mcpsdk.Implementation{Name: serverName, Version: serverVersion}, nil)
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.sdk, &mcpsdk.Tool{
		Name:        "scan_components",
		Description: "Re-scan the component directory and return every known component's status.",
	}, s.scanComponents)

	mcpsdk.AddTool(s.sdk, &mcpsdk.Tool{
		Name:        "check_component_status",
		Description: "Report whether a named component is currently available.",
	}, s.checkComponentStatus)

	mcpsdk.AddTool(s.sdk, &mcpsdk.Tool{
		Name:        "get_component_path",
		Description: "Resolve a component's absolute filesystem path.",
	}, s.getComponentPath)

	mcpsdk.AddTool(s.sdk, &mcpsdk.Tool{
		Name:        "debug_component_interfaces",
		Description: "Statically analyze a component binary's imported and exported WIT interfaces.",
	}, s.debugComponentInterfaces)

	mcpsdk.AddTool(s.sdk, &mcpsdk.Tool{
		Name:        "execute_component",
		Description: "Submit one sandboxed component invocation and return its execution id immediately.",
	}, s.executeComponent)

	mcpsdk.AddTool(s.sdk, &mcpsdk.Tool{
		Name:        "execution_progress",
		Description: "Read the latest progress snapshot for a submitted execution.",
	}, s.executionProgress)

	mcpsdk.AddTool(s.sdk, &mcpsdk.Tool{
		Name:        "execution_result",
		Description: "Read the terminal result of a submitted execution, if it has completed.",
	}, s.executionResult)

	mcpsdk.AddTool(s.sdk, &mcpsdk.Tool{
		Name:        "cancel_execution",
		Description: "Cancel a running component execution.",
	}, s.cancelExecution)

	mcpsdk.AddTool(s.sdk, &mcpsdk.Tool{
		Name:        "execute_pipeline",
		Description: "Submit a pipeline of component stages and return its execution id immediately.",
	}, s.executePipeline)

	mcpsdk.AddTool(s.sdk, &mcpsdk.Tool{
		Name:        "pipeline_status",
		Description: "Read a pipeline execution's current state and per-stage results.",
	}, s.pipelineStatus)

	mcpsdk.AddTool(s.sdk, &mcpsdk.Tool{
		Name:        "cancel_pipeline",
		Description: "Cancel a running pipeline execution.",
	}, s.cancelPipeline)

	mcpsdk.AddTool(s.sdk, &mcpsdk.Tool{
		Name:        "execute_simulation",
		Description: "Submit a clock-driven simulation of scenarios and return its execution id immediately.",
	}, s.executeSimulation)

	mcpsdk.AddTool(s.sdk, &mcpsdk.Tool{
		Name:        "pause",
		Description: "Pause a running simulation.",
	}, s.pauseSimulation)

	mcpsdk.AddTool(s.sdk, &mcpsdk.Tool{
		Name:        "resume",
		Description: "Resume a paused simulation.",
	}, s.resumeSimulation)

	mcpsdk.AddTool(s.sdk, &mcpsdk.Tool{
		Name:        "cancel_simulation",
		Description: "Cancel a running simulation.",
	}, s.cancelSimulation)

	mcpsdk.AddTool(s.sdk, &mcpsdk.Tool{
		Name:        "simulation_status",
		Description: "Read a simulation execution's current state, per-scenario progress, and accumulated stats.",
	}, s.simulationStatus)
}

// Run serves the MCP tool surface over stdio until ctx is cancelled or
// the transport closes, mirroring the teacher's session-scoped client
// connections in pkg/mcp/transport.go but on the server side.
func (s *Server) Run(ctx context.Context) error {
	return s.sdk.Run(ctx, &mcpsdk.StdioTransport{})
}
