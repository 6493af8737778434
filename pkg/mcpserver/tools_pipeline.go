package mcpserver

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/glsp-mcp/forge/pkg/pipeline"
)

func toPipelineConfig(in ExecutePipelineInput) pipeline.Config {
	cfg := pipeline.Config{Name: in.Name}

	for _, st := range in.Stages {
		stage := pipeline.Stage{
			StageID:         st.StageID,
			ComponentName:   st.ComponentName,
			MethodName:      st.MethodName,
			Args:            st.Args,
			TimeoutMS:       st.TimeoutMS,
			MaxMemoryMB:     st.MaxMemoryMB,
			ContinueOnError: st.ContinueOnError,
			Dependencies:    st.Dependencies,
			ParallelGroup:   st.ParallelGroup,
		}
		if st.RetryPolicy != nil {
			stage.RetryPolicy = pipeline.RetryPolicy{
				MaxRetries:  st.RetryPolicy.MaxRetries,
				BaseDelayMS: st.RetryPolicy.BaseDelayMS,
				Backoff:     pipeline.BackoffKind(st.RetryPolicy.Backoff),
				Multiplier:  st.RetryPolicy.Multiplier,
				IncrementMS: st.RetryPolicy.IncrementMS,
			}
		}
		cfg.Stages = append(cfg.Stages, stage)
	}

	for _, c := range in.Connections {
		cfg.Connections = append(cfg.Connections, pipeline.DataConnection{
			FromStage:   c.FromStage,
			ToStage:     c.ToStage,
			SourceField: c.SourceField,
			TargetField: c.TargetField,
			Transform: pipeline.Transform{
				Kind: pipeline.TransformKind(c.TransformKind),
				Path: c.TransformPath,
				Name: c.TransformName,
			},
		})
	}

	return cfg
}

func toStageResultOutputs(results map[string]pipeline.StageResult) []StageResultOutput {
	out := make([]StageResultOutput, 0, len(results))
	for _, r := range results {
		out = append(out, StageResultOutput{
			StageID:  r.StageID,
			Success:  r.Success,
			Value:    r.Value,
			Error:    r.Error,
			Attempts: r.Attempts,
		})
	}
	return out
}

func (s *Server) executePipeline(ctx context.Context, req *mcpsdk.CallToolRequest, in ExecutePipelineInput) (*mcpsdk.CallToolResult, ExecutePipelineOutput, error) {
	id, err := s.pipelines.Execute(ctx, toPipelineConfig(in))
	if err != nil {
		return nil, ExecutePipelineOutput{}, err
	}
	return nil, ExecutePipelineOutput{ExecutionID: id}, nil
}

func (s *Server) pipelineStatus(ctx context.Context, req *mcpsdk.CallToolRequest, in PipelineIDInput) (*mcpsdk.CallToolResult, PipelineStatusOutput, error) {
	exec, ok := s.pipelines.Status(in.ExecutionID)
	if !ok {
		return nil, PipelineStatusOutput{Found: false}, nil
	}
	return nil, PipelineStatusOutput{
		Found:        true,
		State:        string(exec.State),
		StageResults: toStageResultOutputs(exec.StageResults),
		Error:        exec.Error,
	}, nil
}

func (s *Server) cancelPipeline(ctx context.Context, req *mcpsdk.CallToolRequest, in PipelineIDInput) (*mcpsdk.CallToolResult, CancelOutput, error) {
	return nil, CancelOutput{Cancelled: s.pipelines.Cancel(in.ExecutionID)}, nil
}
