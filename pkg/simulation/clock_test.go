package simulation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFrameInterval_RealTime(t *testing.T) {
	d := frameInterval(ClockConfig{Mode: ClockRealTime, TargetFPS: 100})
	assert.Equal(t, 10*time.Millisecond, d)
}

func TestFrameInterval_RealTimeDefaultsFPS(t *testing.T) {
	d := frameInterval(ClockConfig{Mode: ClockRealTime})
	assert.Equal(t, frameInterval(ClockConfig{Mode: ClockRealTime, TargetFPS: 30}), d)
}

func TestFrameInterval_Accelerated(t *testing.T) {
	d := frameInterval(ClockConfig{Mode: ClockAccelerated, TargetFPS: 100, AcceleratedMult: 10})
	assert.Equal(t, time.Millisecond, d)
}

func TestFrameInterval_BatchAndStepByStepHaveNoInterval(t *testing.T) {
	assert.Equal(t, time.Duration(0), frameInterval(ClockConfig{Mode: ClockBatch, TargetFPS: 100}))
	assert.Equal(t, time.Duration(0), frameInterval(ClockConfig{Mode: ClockStepByStep, TargetFPS: 100}))
}

func TestBatchSize_DefaultsToOne(t *testing.T) {
	assert.Equal(t, 1, batchSize(ClockConfig{Mode: ClockRealTime}))
	assert.Equal(t, 1, batchSize(ClockConfig{Mode: ClockBatch}))
}

func TestBatchSize_UsesConfiguredSize(t *testing.T) {
	assert.Equal(t, 16, batchSize(ClockConfig{Mode: ClockBatch, BatchSize: 16}))
}
