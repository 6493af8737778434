package catalog

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// analyzeBinary implements spec.md §4.B's analyze(path): a static,
// best-effort interface extraction. Full WIT parsing of arbitrary types
// is a declared non-goal, so imports/exports here are function-level
// signatures (name, parameter and result value types) rather than a
// complete WIT AST.
func analyzeBinary(ctx context.Context, componentName string, data []byte) (Analysis, error) {
	switch classifyBinary(data) {
	case binaryCoreModule:
		return Analysis{
			ComponentName: componentName,
			Diagnostic:    "bare WebAssembly module (no component-model wrapper); imports/exports not analyzed",
		}, nil

	case binaryComponent:
		return analyzeComponent(ctx, componentName, data)

	default:
		return Analysis{
			ComponentName: componentName,
			Diagnostic:    "not a recognized WebAssembly binary",
		}, nil
	}
}

func analyzeComponent(ctx context.Context, componentName string, data []byte) (Analysis, error) {
	sections := walkCustomSections(data)
	worldName := componentNameFromSections(sections)

	core := findEmbeddedCoreModule(data)
	if core == nil {
		return Analysis{
			ComponentName: componentName,
			WorldName:     worldName,
			Diagnostic:    "component binary has no embedded core module reachable by structural scan",
		}, nil
	}

	runtime := wazero.NewRuntime(ctx)
	defer runtime.Close(ctx)

	compiled, err := runtime.CompileModule(ctx, core)
	if err != nil {
		return Analysis{
			ComponentName: componentName,
			WorldName:     worldName,
			Diagnostic:    fmt.Sprintf("embedded core module failed to compile for analysis: %v", err),
		}, nil
	}
	defer compiled.Close(ctx)

	return Analysis{
		ComponentName: componentName,
		WorldName:     worldName,
		Imports:       []Interface{importsInterface(compiled)},
		Exports:       []Interface{exportsInterface(compiled)},
	}, nil
}

func importsInterface(compiled wazero.CompiledModule) Interface {
	var fns []Function
	for _, def := range compiled.ImportedFunctions() {
		fns = append(fns, functionFromDefinition(def))
	}
	return Interface{Kind: InterfaceImport, Name: "imports", Functions: fns}
}

func exportsInterface(compiled wazero.CompiledModule) Interface {
	var fns []Function
	for name, def := range compiled.ExportedFunctions() {
		fn := functionFromDefinition(def)
		if fn.Name == "" {
			fn.Name = name
		}
		fns = append(fns, fn)
	}
	return Interface{Kind: InterfaceExport, Name: "exports", Functions: fns}
}

func functionFromDefinition(def api.FunctionDefinition) Function {
	name := def.Name()
	if name == "" && len(def.ExportNames()) > 0 {
		name = def.ExportNames()[0]
	}
	return Function{
		Name:    name,
		Params:  typesToParams(def.ParamTypes()),
		Results: typesToParams(def.ResultTypes()),
	}
}

func typesToParams(types []api.ValueType) []Param {
	out := make([]Param, 0, len(types))
	for i, t := range types {
		out = append(out, Param{Name: fmt.Sprintf("p%d", i), TypeRef: api.ValueTypeName(t)})
	}
	return out
}
