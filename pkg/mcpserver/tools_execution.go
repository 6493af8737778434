package mcpserver

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/glsp-mcp/forge/pkg/wasmexec"
)

func (s *Server) executeComponent(ctx context.Context, req *mcpsdk.CallToolRequest, in ExecuteComponentInput) (*mcpsdk.CallToolResult, ExecuteComponentOutput, error) {
	d, ok := s.catalog.FindFlexible(in.Name)
	if !ok {
		return nil, ExecuteComponentOutput{}, catalogNotFoundError(in.Name)
	}

	execCtx := wasmexec.Context{
		ExecutionID:    wasmexec.NewExecutionID(),
		ComponentName:  d.Name,
		MethodName:     in.Method,
		Args:           in.Args,
		TimeoutMS:      in.TimeoutMS,
		MaxMemoryBytes: in.MaxMemoryBytes,
	}
	if in.SensorConfig != nil {
		execCtx.SensorConfig = &wasmexec.SensorConfig{
			SensorIDs: in.SensorConfig.SensorIDs,
			StepUS:    in.SensorConfig.StepUS,
		}
	}

	id, err := s.core.Submit(ctx, execCtx, d.AbsolutePath)
	if err != nil {
		return nil, ExecuteComponentOutput{}, err
	}
	return nil, ExecuteComponentOutput{ExecutionID: id}, nil
}

func (s *Server) executionProgress(ctx context.Context, req *mcpsdk.CallToolRequest, in ExecutionIDInput) (*mcpsdk.CallToolResult, ExecutionProgressOutput, error) {
	p, ok := s.core.Progress(in.ExecutionID)
	if !ok {
		return nil, ExecutionProgressOutput{Found: false}, nil
	}
	return nil, ExecutionProgressOutput{
		Found:    true,
		Stage:    string(p.Stage),
		Fraction: p.Fraction,
		Message:  p.Message,
		Error:    p.Error,
	}, nil
}

func (s *Server) executionResult(ctx context.Context, req *mcpsdk.CallToolRequest, in ExecutionIDInput) (*mcpsdk.CallToolResult, ExecutionResultOutput, error) {
	r, ok := s.core.Result(in.ExecutionID)
	if !ok {
		return nil, ExecutionResultOutput{Found: false}, nil
	}
	return nil, ExecutionResultOutput{
		Found:        true,
		Success:      r.Success,
		Value:        r.Value,
		Error:        r.Error,
		FailureKind:  string(r.FailureKind),
		ElapsedMS:    r.ElapsedMS,
		MemoryPeakMB: r.MemoryPeakMB,
	}, nil
}

func (s *Server) cancelExecution(ctx context.Context, req *mcpsdk.CallToolRequest, in ExecutionIDInput) (*mcpsdk.CallToolResult, CancelOutput, error) {
	return nil, CancelOutput{Cancelled: s.core.Cancel(in.ExecutionID)}, nil
}
