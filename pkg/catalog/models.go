package catalog

import "time"

// Descriptor is the catalog's record for one discovered component
// binary, per spec.md §3 "Component Descriptor". It is created on first
// sight, marked Exists=false (with RemovedAtTS set) on deletion, and
// re-asserted (cleared) on reappearance under the same name.
type Descriptor struct {
	Name         string
	AbsolutePath string
	ContentHash  string
	Exists       bool
	LastSeenTS   int64
	RemovedAtTS  *int64

	Imports      []Interface
	Exports      []Interface
	RawWIT       string
	Dependencies []PackageRef
	WorldName    string
}

// InterfaceKind distinguishes an imported from an exported interface.
type InterfaceKind string

const (
	InterfaceImport InterfaceKind = "import"
	InterfaceExport InterfaceKind = "export"
)

// Interface describes one WIT interface a component imports or exports.
type Interface struct {
	Kind      InterfaceKind
	Name      string
	Namespace string
	Package   string
	Version   string
	Functions []Function
	Types     []TypeDecl
}

// Function describes one function signature within an Interface.
type Function struct {
	Name    string
	Params  []Param
	Results []Param
	IsAsync bool
}

// Param is a single named, typed function parameter or result.
type Param struct {
	Name    string
	TypeRef string
}

// TypeDecl is a named type declared within an Interface.
type TypeDecl struct {
	Name string
	Kind string
}

// PackageRef names a WIT package dependency, e.g. "wasi:io@0.2.0".
type PackageRef struct {
	Namespace string
	Name      string
	Version   string
}

// Analysis is the result of statically analyzing one component binary,
// per spec.md §4.B "analyze(path)".
type Analysis struct {
	ComponentName string
	WorldName     string
	Imports       []Interface
	Exports       []Interface
	Types         []TypeDecl
	Dependencies  []PackageRef
	RawWIT        string
	Diagnostic    string
}

// Summary totals a Scan result, per spec.md §4.B "scan()".
type Summary struct {
	Total     int
	Available int
	Missing   int
}

// ScanResult is the return value of a full catalog scan.
type ScanResult struct {
	Components []Descriptor
	Summary    Summary
}

// ChangeKind classifies a descriptor-change event the Execution Core
// subscribes to for cache invalidation, per spec.md §4.B.
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeModified ChangeKind = "modified"
	ChangeRemoved  ChangeKind = "removed"
)

// Change is emitted on every descriptor add/modify/remove.
type Change struct {
	Kind       ChangeKind
	Descriptor Descriptor
	At         time.Time
}
