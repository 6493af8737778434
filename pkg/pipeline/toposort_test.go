package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stageIDs(stages []Stage) []string {
	ids := make([]string, len(stages))
	for i, s := range stages {
		ids[i] = s.StageID
	}
	return ids
}

func TestBatch_LinearChain(t *testing.T) {
	stages := []Stage{
		{StageID: "a"},
		{StageID: "b", Dependencies: []string{"a"}},
		{StageID: "c", Dependencies: []string{"b"}},
	}

	batches, err := batch(stages)
	require.NoError(t, err)
	require.Len(t, batches, 3)
	assert.Equal(t, []string{"a"}, stageIDs(batches[0]))
	assert.Equal(t, []string{"b"}, stageIDs(batches[1]))
	assert.Equal(t, []string{"c"}, stageIDs(batches[2]))
}

func TestBatch_IndependentStagesShareABatch(t *testing.T) {
	stages := []Stage{
		{StageID: "a"},
		{StageID: "b"},
	}

	batches, err := batch(stages)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.ElementsMatch(t, []string{"a", "b"}, stageIDs(batches[0]))
}

func TestBatch_ParallelGroupCoSchedulesWhenSimultaneouslyReady(t *testing.T) {
	stages := []Stage{
		{StageID: "a"},
		{StageID: "b", Dependencies: []string{"a"}, ParallelGroup: "g1"},
		{StageID: "c", Dependencies: []string{"a"}, ParallelGroup: "g1"},
		{StageID: "d", Dependencies: []string{"b", "c"}},
	}

	batches, err := batch(stages)
	require.NoError(t, err)
	require.Len(t, batches, 3)
	assert.Equal(t, []string{"a"}, stageIDs(batches[0]))
	assert.ElementsMatch(t, []string{"b", "c"}, stageIDs(batches[1]))
	assert.Equal(t, []string{"d"}, stageIDs(batches[2]))
}

func TestBatch_CyclicDependencyFailsFast(t *testing.T) {
	stages := []Stage{
		{StageID: "a", Dependencies: []string{"b"}},
		{StageID: "b", Dependencies: []string{"a"}},
	}

	_, err := batch(stages)
	assert.ErrorIs(t, err, ErrCyclicDependency)
}

func TestBatch_EmptyStagesYieldsNoBatches(t *testing.T) {
	batches, err := batch(nil)
	require.NoError(t, err)
	assert.Empty(t, batches)
}

func TestBatch_UngroupedSiblingsShareABatch(t *testing.T) {
	stages := []Stage{
		{StageID: "a"},
		{StageID: "b", Dependencies: []string{"a"}},
		{StageID: "c", Dependencies: []string{"a"}},
	}

	batches, err := batch(stages)
	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.ElementsMatch(t, []string{"b", "c"}, stageIDs(batches[1]))
}
