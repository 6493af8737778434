package pipeline

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransformRegistry_Identity(t *testing.T) {
	r := NewTransformRegistry()
	out, err := r.apply(Transform{Kind: TransformIdentity}, json.RawMessage(`{"a":1}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(out))
}

func TestTransformRegistry_ToJSON(t *testing.T) {
	r := NewTransformRegistry()
	out, err := r.apply(Transform{Kind: TransformToJSON}, json.RawMessage(`{"a":1}`))
	require.NoError(t, err)
	var s string
	require.NoError(t, json.Unmarshal(out, &s))
	assert.JSONEq(t, `{"a":1}`, s)
}

func TestTransformRegistry_FromJSON(t *testing.T) {
	r := NewTransformRegistry()
	encoded, err := json.Marshal(`{"a":1}`)
	require.NoError(t, err)
	out, err := r.apply(Transform{Kind: TransformFromJSON}, encoded)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(out))
}

func TestTransformRegistry_ExtractDottedPath(t *testing.T) {
	r := NewTransformRegistry()
	out, err := r.apply(Transform{Kind: TransformExtract, Path: "items.1.id"},
		json.RawMessage(`{"items":[{"id":"a"},{"id":"b"}]}`))
	require.NoError(t, err)
	assert.Equal(t, `"b"`, string(out))
}

func TestTransformRegistry_ExtractMissingPathYieldsNull(t *testing.T) {
	r := NewTransformRegistry()
	out, err := r.apply(Transform{Kind: TransformExtract, Path: "missing.field"},
		json.RawMessage(`{"a":1}`))
	require.NoError(t, err)
	assert.Equal(t, "null", string(out))
}

func TestTransformRegistry_ExtractOutOfRangeIndexYieldsNull(t *testing.T) {
	r := NewTransformRegistry()
	out, err := r.apply(Transform{Kind: TransformExtract, Path: "items.5"},
		json.RawMessage(`{"items":[1,2]}`))
	require.NoError(t, err)
	assert.Equal(t, "null", string(out))
}

func TestTransformRegistry_CustomRegistered(t *testing.T) {
	r := NewTransformRegistry()
	r.Register("double", func(v json.RawMessage) (json.RawMessage, error) {
		var n float64
		if err := json.Unmarshal(v, &n); err != nil {
			return nil, err
		}
		return json.Marshal(n * 2)
	})
	out, err := r.apply(Transform{Kind: TransformCustom, Name: "double"}, json.RawMessage(`21`))
	require.NoError(t, err)
	assert.Equal(t, "42", string(out))
}

func TestTransformRegistry_UnknownCustomPassesThrough(t *testing.T) {
	r := NewTransformRegistry()
	out, err := r.apply(Transform{Kind: TransformCustom, Name: "nope"}, json.RawMessage(`"value"`))
	require.NoError(t, err)
	assert.Equal(t, `"value"`, string(out))
}

func TestBuildStageInput_OverlaysConnectionsOntoArgs(t *testing.T) {
	e := &Engine{transforms: NewTransformRegistry()}
	cfg := Config{
		Connections: []DataConnection{
			{FromStage: "a", ToStage: "b", SourceField: "*", TargetField: "upstream"},
		},
	}
	stage := Stage{StageID: "b", Args: json.RawMessage(`{"fixed":1}`)}
	results := map[string]StageResult{
		"a": {Success: true, Value: json.RawMessage(`{"x":1}`)},
	}

	out, err := e.buildStageInput(cfg, stage, results)
	require.NoError(t, err)
	assert.JSONEq(t, `{"fixed":1,"upstream":{"x":1}}`, string(out))
}

func TestBuildStageInput_FailedUpstreamYieldsNullField(t *testing.T) {
	e := &Engine{transforms: NewTransformRegistry()}
	cfg := Config{
		Connections: []DataConnection{
			{FromStage: "a", ToStage: "b", SourceField: "*", TargetField: "upstream"},
		},
	}
	stage := Stage{StageID: "b"}
	results := map[string]StageResult{
		"a": {Success: false},
	}

	out, err := e.buildStageInput(cfg, stage, results)
	require.NoError(t, err)
	assert.JSONEq(t, `{"upstream":null}`, string(out))
}

func TestBuildStageInput_SourceFieldExtractsSubfield(t *testing.T) {
	e := &Engine{transforms: NewTransformRegistry()}
	cfg := Config{
		Connections: []DataConnection{
			{FromStage: "a", ToStage: "b", SourceField: "result.id", TargetField: "id"},
		},
	}
	stage := Stage{StageID: "b"}
	results := map[string]StageResult{
		"a": {Success: true, Value: json.RawMessage(`{"result":{"id":"xyz"}}`)},
	}

	out, err := e.buildStageInput(cfg, stage, results)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"xyz"}`, string(out))
}
