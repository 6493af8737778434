package simulation

import "github.com/glsp-mcp/forge/pkg/apperr"

var (
	ErrExecutionNotFound = apperr.New(apperr.KindNotFound, "simulation execution not found")
	ErrCapacityExceeded  = apperr.New(apperr.KindCapacityExceeded, "max_concurrent_simulations reached")
	ErrInvalidConfig     = apperr.New(apperr.KindInvalidArgument, "invalid simulation configuration")
	ErrAlreadyTerminal   = apperr.New(apperr.KindInvalidArgument, "simulation execution is already terminal")
)
