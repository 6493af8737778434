package wasmexec

import (
	"context"

	"github.com/tetratelabs/wazero"
)

const (
	wasmPageSize = 65536

	// defaultTableCeiling is the table-growth ceiling per spec.md
	// §4.C: "table growth ceiling = 1000 elements". It is recorded in
	// sandboxLimits only; the wazero runtime does not enforce it.
	defaultTableCeiling = 1000

	// defaultStackCeilingBytes is the stack ceiling per spec.md §4.C:
	// "stack ceiling = 512 KiB". It is recorded in sandboxLimits only;
	// the wazero runtime does not enforce it.
	defaultStackCeilingBytes = 512 * 1024
)

// sandboxLimits carries the per-execution resource ceilings spec.md
// §4.C requires: a hard memory growth ceiling derived from the
// request's MaxMemoryBytes, a fixed table-growth ceiling, and a fixed
// stack ceiling. Only the memory ceiling is applied to the wazero
// runtime (see newSandboxRuntimeConfig). Wall-clock timeout is
// enforced externally via context cancellation, not here.
type sandboxLimits struct {
	maxMemoryBytes   uint64
	tableCeiling     uint32
	stackCeilingByte uint32
}

func newSandboxLimits(maxMemoryBytes uint64) sandboxLimits {
	return sandboxLimits{
		maxMemoryBytes:   maxMemoryBytes,
		tableCeiling:     defaultTableCeiling,
		stackCeilingByte: defaultStackCeilingBytes,
	}
}

func (l sandboxLimits) maxMemoryPages() uint32 {
	pages := l.maxMemoryBytes / wasmPageSize
	if l.maxMemoryBytes%wasmPageSize != 0 {
		pages++
	}
	if pages == 0 {
		pages = 1
	}
	if pages > 65536 {
		pages = 65536
	}
	return uint32(pages)
}

// newSandboxRuntimeConfig builds the wazero.RuntimeConfig for one
// execution's wazero.Runtime, with that execution's memory page limit.
// It keeps wazero's default core feature set, which includes
// bulk-memory, multi-value, reference-types and SIMD, and leaves
// threading off by omission — wazero does not
// implement the threads proposal, so there is nothing to disable
// explicitly; the absence itself satisfies the requirement.
func newSandboxRuntimeConfig(limits sandboxLimits) wazero.RuntimeConfig {
	return wazero.NewRuntimeConfig().
		WithMemoryLimitPages(limits.maxMemoryPages()).
		WithCloseOnContextDone(true)
}

// newSandboxModuleConfig builds the per-instantiation wazero.ModuleConfig.
// Guest stdout/stderr/stdin and filesystem access are left unwired: the
// sandbox exposes no WASI preopens, matching the Execution Core's
// no-ambient-authority posture — a guest only sees what a host module
// (the sensor bridge, when SensorConfig is set) explicitly exports to it.
func newSandboxModuleConfig(name string) wazero.ModuleConfig {
	return wazero.NewModuleConfig().WithName(name)
}

// withSandboxGuard runs fn under ctx, translating a context
// cancellation into FailureTimeout or FailureCancelled so callers can
// distinguish an externally enforced wall-clock timeout from an
// operator-initiated Cancel. ctx itself carries whichever deadline or
// cancel signal applies; the sandbox has no internal clock of its own.
func withSandboxGuard(ctx context.Context, fn func(context.Context) error) (FailureKind, error) {
	err := fn(ctx)
	if err == nil {
		return "", nil
	}
	if ctx.Err() != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return FailureTimeout, err
		}
		return FailureCancelled, err
	}
	return "", err
}
