package catalog

import (
	"bytes"
	"encoding/binary"
	"strings"
)

var wasmMagic = []byte{0x00, 0x61, 0x73, 0x6d}

// coreModuleVersion and componentVersion distinguish a plain WebAssembly
// core module from a Component Model binary by the four version bytes
// following the magic number, per the Component Model binary format
// (the component layer reuses the module header with a distinct version
// tag so decoders can tell the two apart without inspecting sections).
var coreModuleVersion = []byte{0x01, 0x00, 0x00, 0x00}
var componentVersion = []byte{0x0a, 0x00, 0x01, 0x00}

type binaryKind int

const (
	binaryUnknown binaryKind = iota
	binaryCoreModule
	binaryComponent
)

func classifyBinary(data []byte) binaryKind {
	if len(data) < 8 || !bytes.Equal(data[:4], wasmMagic) {
		return binaryUnknown
	}
	switch {
	case bytes.Equal(data[4:8], coreModuleVersion):
		return binaryCoreModule
	case bytes.Equal(data[4:8], componentVersion):
		return binaryComponent
	default:
		return binaryUnknown
	}
}

// customSection is one (id=0) custom section found in a module or
// component's top-level section stream.
type customSection struct {
	name    string
	payload []byte
}

// walkCustomSections scans the generic (id, size, payload) section
// stream both core modules and components use at the top level, and
// returns every custom section found. It does not attempt to decode
// non-custom sections — doing so for a component binary's internal
// sections (core module embeddings, canonical ABI adapters, type
// sections) would require a full Component Model decoder, which
// spec.md's non-goals exclude.
func walkCustomSections(data []byte) []customSection {
	if len(data) < 8 {
		return nil
	}
	var out []customSection
	buf := data[8:]
	for len(buf) > 0 {
		if len(buf) < 1 {
			break
		}
		id := buf[0]
		buf = buf[1:]
		size, n := binary.Uvarint(buf)
		if n <= 0 || uint64(len(buf)-n) < size {
			break
		}
		buf = buf[n:]
		payload := buf[:size]
		buf = buf[size:]

		if id == 0 {
			name, rest, ok := readVarName(payload)
			if ok {
				out = append(out, customSection{name: name, payload: rest})
			}
		}
	}
	return out
}

func readVarName(payload []byte) (string, []byte, bool) {
	n, read := binary.Uvarint(payload)
	if read <= 0 || uint64(len(payload)-read) < n {
		return "", nil, false
	}
	name := string(payload[read : read+int(n)])
	return name, payload[read+int(n):], true
}

// findEmbeddedCoreModule performs a coarse search for the first nested
// core-module binary inside a component binary's byte stream, recognized
// by the core-module magic+version pair. Component binaries embed one or
// more core modules verbatim inside "core module" component sections;
// walking the full component section grammar to locate them precisely
// needs a Component Model decoder, so this falls back to a byte-level
// scan, which is sufficient to hand the embedded module to wazero for a
// best-effort import/export listing.
func findEmbeddedCoreModule(data []byte) []byte {
	marker := append(append([]byte{}, wasmMagic...), coreModuleVersion...)
	idx := bytes.Index(data[min(len(data), 8):], marker)
	if idx < 0 {
		return nil
	}
	start := idx + min(len(data), 8)
	return data[start:]
}

// componentNameFromSections extracts a world/component name from a
// "component-type:<name>" custom section, the convention tools such as
// wit-bindgen and cargo-component use to embed WIT metadata, per
// original_source's wit_analyzer.rs. This recovers only the name, not
// the embedded WIT itself — decoding that payload is a full WIT parse,
// out of scope per spec.md's non-goals.
func componentNameFromSections(sections []customSection) string {
	const prefix = "component-type:"
	for _, s := range sections {
		if strings.HasPrefix(s.name, prefix) {
			return strings.TrimPrefix(s.name, prefix)
		}
	}
	return ""
}
