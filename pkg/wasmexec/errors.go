package wasmexec

import "github.com/glsp-mcp/forge/pkg/apperr"

var (
	ErrExecutionNotFound   = apperr.New(apperr.KindNotFound, "execution not found")
	ErrCapacityExceeded    = apperr.New(apperr.KindCapacityExceeded, "max_concurrent executions reached")
	ErrAlreadyTerminal     = apperr.New(apperr.KindInvalidArgument, "execution already in a terminal state")
	ErrComponentNotFound   = apperr.New(apperr.KindNotFound, "component binary not found")
)

func failureKindToErrKind(k FailureKind) apperr.Kind {
	switch k {
	case FailureLoadFailed:
		return apperr.KindLoadFailed
	case FailureInstantiationFailed:
		return apperr.KindInstantiationFailed
	case FailureMethodNotFound:
		return apperr.KindMethodNotFound
	case FailureTrap:
		return apperr.KindTrap
	case FailureResourceExhausted:
		return apperr.KindResourceExhausted
	case FailureTimeout:
		return apperr.KindTimeout
	case FailureCancelled:
		return apperr.KindCancelled
	case FailureCapacityExceeded:
		return apperr.KindCapacityExceeded
	default:
		return apperr.KindTrap
	}
}
