package mcpserver

import (
	"context"
	"encoding/json"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/glsp-mcp/forge/pkg/apperr"
	"github.com/glsp-mcp/forge/pkg/simulation"
)

// toSimulationConfig decodes the scenarios/sharing_rules the caller
// supplies as pre-shaped JSON matching simulation.Scenario and
// simulation.DataSharingRule directly, rather than re-declaring every
// nested trigger/condition/rule field on the wire — those structures
// are already spec.md §3 value types with their own json-friendly
// field names, so duplicating them here would just be a second
// marshaling layer with nothing to add.
func toSimulationConfig(in ExecuteSimulationInput) (simulation.Config, error) {
	cfg := simulation.Config{
		Name: in.Name,
		Clock: simulation.ClockConfig{
			Mode:      simulation.ClockMode(in.ClockMode),
			TargetFPS: in.TargetFPS,
			BatchSize: in.BatchSize,
		},
		TimeoutMS:    in.TimeoutMS,
		SensorIDs:    in.SensorIDs,
		SensorStepUS: in.SensorStepUS,
	}

	if len(in.Scenarios) > 0 {
		if err := json.Unmarshal(in.Scenarios, &cfg.Scenarios); err != nil {
			return simulation.Config{}, apperr.New(apperr.KindInvalidArgument, "invalid scenarios: "+err.Error())
		}
	}
	if len(in.SharingRules) > 0 {
		if err := json.Unmarshal(in.SharingRules, &cfg.SharingRules); err != nil {
			return simulation.Config{}, apperr.New(apperr.KindInvalidArgument, "invalid sharing_rules: "+err.Error())
		}
	}

	return cfg, nil
}

func (s *Server) executeSimulation(ctx context.Context, req *mcpsdk.CallToolRequest, in ExecuteSimulationInput) (*mcpsdk.CallToolResult, ExecuteSimulationOutput, error) {
	cfg, err := toSimulationConfig(in)
	if err != nil {
		return nil, ExecuteSimulationOutput{}, err
	}

	id, err := s.simulations.Execute(ctx, cfg)
	if err != nil {
		return nil, ExecuteSimulationOutput{}, err
	}
	return nil, ExecuteSimulationOutput{ExecutionID: id}, nil
}

func (s *Server) pauseSimulation(ctx context.Context, req *mcpsdk.CallToolRequest, in SimulationIDInput) (*mcpsdk.CallToolResult, SimulationActionOutput, error) {
	return nil, SimulationActionOutput{Ok: s.simulations.Pause(in.ExecutionID)}, nil
}

func (s *Server) resumeSimulation(ctx context.Context, req *mcpsdk.CallToolRequest, in SimulationIDInput) (*mcpsdk.CallToolResult, SimulationActionOutput, error) {
	return nil, SimulationActionOutput{Ok: s.simulations.Resume(in.ExecutionID)}, nil
}

func (s *Server) cancelSimulation(ctx context.Context, req *mcpsdk.CallToolRequest, in SimulationIDInput) (*mcpsdk.CallToolResult, CancelOutput, error) {
	return nil, CancelOutput{Cancelled: s.simulations.Cancel(in.ExecutionID)}, nil
}

func (s *Server) simulationStatus(ctx context.Context, req *mcpsdk.CallToolRequest, in SimulationIDInput) (*mcpsdk.CallToolResult, SimulationStatusOutput, error) {
	exec, ok := s.simulations.Status(in.ExecutionID)
	if !ok {
		return nil, SimulationStatusOutput{Found: false}, nil
	}

	out := SimulationStatusOutput{
		Found:      true,
		State:      string(exec.State),
		FramesDone: exec.Stats.FramesProcessed,
		Error:      exec.Error,
	}
	for _, se := range exec.ScenarioExecutions {
		out.Scenarios = append(out.Scenarios, ScenarioStatusOutput{
			ScenarioID:        se.ScenarioID,
			State:             string(se.State),
			PipelinesExecuted: se.PipelinesExecuted,
			PipelinesFailed:   se.PipelinesFailed,
		})
	}
	return nil, out, nil
}
