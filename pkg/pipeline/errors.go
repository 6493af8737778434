package pipeline

import "github.com/glsp-mcp/forge/pkg/apperr"

var (
	ErrCyclicDependency  = apperr.New(apperr.KindInvalidArgument, "cyclic stage dependency")
	ErrUnknownStage      = apperr.New(apperr.KindInvalidArgument, "data connection references an unknown stage")
	ErrExecutionNotFound = apperr.New(apperr.KindNotFound, "pipeline execution not found")
	ErrCapacityExceeded  = apperr.New(apperr.KindCapacityExceeded, "max_concurrent_pipelines reached")
)
