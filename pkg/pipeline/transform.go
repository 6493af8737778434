package pipeline

import (
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
)

// CustomTransform is a registered named transform, per spec.md §4.E
// "Custom(name)". Callers register these before Engine.Execute runs
// any stage that references them.
type CustomTransform func(value json.RawMessage) (json.RawMessage, error)

// TransformRegistry holds Custom transforms by name.
type TransformRegistry struct {
	fns map[string]CustomTransform
}

// NewTransformRegistry returns an empty registry.
func NewTransformRegistry() *TransformRegistry {
	return &TransformRegistry{fns: make(map[string]CustomTransform)}
}

// Register adds or replaces a named Custom transform.
func (r *TransformRegistry) Register(name string, fn CustomTransform) {
	r.fns[name] = fn
}

// apply runs a Transform against a source value. An unknown Custom
// name passes the value through unchanged, per spec.md §4.E: "unknown
// custom transforms pass through unchanged" rather than failing the
// stage.
func (r *TransformRegistry) apply(t Transform, value json.RawMessage) (json.RawMessage, error) {
	switch t.Kind {
	case "", TransformIdentity:
		return value, nil

	case TransformToJSON:
		// value is already a JSON-encoded field; re-marshal its raw
		// string form so downstream sees a JSON string literal.
		quoted, err := json.Marshal(string(value))
		if err != nil {
			return nil, err
		}
		return quoted, nil

	case TransformFromJSON:
		var s string
		if err := json.Unmarshal(value, &s); err != nil {
			return value, nil
		}
		if !json.Valid([]byte(s)) {
			return value, nil
		}
		return json.RawMessage(s), nil

	case TransformExtract:
		return extractPath(value, t.Path)

	case TransformCustom:
		fn, ok := r.fns[t.Name]
		if !ok {
			slog.Warn("pipeline: unknown custom transform, passing value through", "transform", t.Name)
			return value, nil
		}
		return fn(value)

	default:
		return value, nil
	}
}

// extractPath walks a dotted path into a JSON value, e.g.
// "result.items.0.id", per spec.md §4.E "Extract(path)". Numeric
// segments index into arrays. A missing segment yields a JSON null
// rather than an error, matching the "downstream connections see null
// inputs" tolerance spec.md §4.E describes for continue_on_error.
func extractPath(value json.RawMessage, path string) (json.RawMessage, error) {
	if path == "" {
		return value, nil
	}

	var current any
	if err := json.Unmarshal(value, &current); err != nil {
		return json.RawMessage("null"), nil
	}

	for _, seg := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			v, ok := node[seg]
			if !ok {
				return json.RawMessage("null"), nil
			}
			current = v
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return json.RawMessage("null"), nil
			}
			current = node[idx]
		default:
			return json.RawMessage("null"), nil
		}
	}

	out, err := json.Marshal(current)
	if err != nil {
		return json.RawMessage("null"), nil
	}
	return out, nil
}

// buildStageInput constructs one stage's input object: its declared
// Args overlaid with any inbound DataConnection-routed fields, per
// spec.md §4.E. A connection with SourceField "*" routes the entire
// upstream result; otherwise SourceField extracts one field from it.
// An upstream stage that failed or hasn't run yet contributes a null
// for its routed field rather than aborting construction.
func (e *Engine) buildStageInput(cfg Config, stage Stage, results map[string]StageResult) (json.RawMessage, error) {
	base := make(map[string]any)
	if len(stage.Args) > 0 {
		if err := json.Unmarshal(stage.Args, &base); err != nil {
			return nil, err
		}
	}

	for _, conn := range cfg.Connections {
		if conn.ToStage != stage.StageID {
			continue
		}

		var sourceValue json.RawMessage = json.RawMessage("null")
		if upstream, ok := results[conn.FromStage]; ok && upstream.Success {
			if conn.SourceField == "" || conn.SourceField == "*" {
				sourceValue = upstream.Value
			} else {
				v, err := extractPath(upstream.Value, conn.SourceField)
				if err != nil {
					return nil, err
				}
				sourceValue = v
			}
		}

		transformed, err := e.transforms.apply(conn.Transform, sourceValue)
		if err != nil {
			return nil, err
		}

		var decoded any
		if err := json.Unmarshal(transformed, &decoded); err != nil {
			decoded = nil
		}
		base[conn.TargetField] = decoded
	}

	return json.Marshal(base)
}
