package wasmexec

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSandboxLimits_MaxMemoryPagesRoundsUp(t *testing.T) {
	limits := newSandboxLimits(wasmPageSize + 1)
	assert.Equal(t, uint32(2), limits.maxMemoryPages())
}

func TestSandboxLimits_MaxMemoryPagesExactMultiple(t *testing.T) {
	limits := newSandboxLimits(wasmPageSize * 4)
	assert.Equal(t, uint32(4), limits.maxMemoryPages())
}

func TestSandboxLimits_ZeroFallsBackToOnePage(t *testing.T) {
	limits := newSandboxLimits(0)
	assert.Equal(t, uint32(1), limits.maxMemoryPages())
}

func TestSandboxLimits_Fixed(t *testing.T) {
	limits := newSandboxLimits(16 * 1024 * 1024)
	assert.Equal(t, uint32(defaultTableCeiling), limits.tableCeiling)
	assert.Equal(t, uint32(defaultStackCeilingBytes), limits.stackCeilingByte)
}

func TestWithSandboxGuard_DeadlineExceeded(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	<-ctx.Done()

	kind, err := withSandboxGuard(ctx, func(context.Context) error {
		return errors.New("guest trapped")
	})
	assert.Equal(t, FailureTimeout, kind)
	assert.Error(t, err)
}

func TestWithSandboxGuard_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	kind, err := withSandboxGuard(ctx, func(context.Context) error {
		return errors.New("guest trapped")
	})
	assert.Equal(t, FailureCancelled, kind)
	assert.Error(t, err)
}

func TestWithSandboxGuard_PlainErrorUnclassified(t *testing.T) {
	kind, err := withSandboxGuard(context.Background(), func(context.Context) error {
		return errors.New("trap")
	})
	assert.Equal(t, FailureKind(""), kind)
	assert.Error(t, err)
}

func TestWithSandboxGuard_Success(t *testing.T) {
	kind, err := withSandboxGuard(context.Background(), func(context.Context) error {
		return nil
	})
	assert.Equal(t, FailureKind(""), kind)
	assert.NoError(t, err)
}
