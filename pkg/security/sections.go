package security

import (
	"bytes"
	"encoding/binary"
)

var wasmMagic = []byte{0x00, 0x61, 0x73, 0x6d}

const (
	sectionCustom = 0
	sectionImport = 2
	sectionExport = 7
)

const (
	externKindFunc   = 0
	externKindTable  = 1
	externKindMemory = 2
	externKindGlobal = 3
)

type importEntry struct {
	module string
	name   string
	kind   byte
}

type exportEntry struct {
	name string
	kind byte
}

type customSection struct {
	name string
	size int
}

// scanSections walks a core WebAssembly module's top-level section
// stream directly, per spec.md §4.G "walks section headers and
// enumerates imports/exports" — a structural, non-executing pass, so
// this reads raw section bytes rather than compiling the module.
func scanSections(data []byte) (imports []importEntry, exports []exportEntry, customs []customSection, ok bool) {
	if len(data) < 8 || !bytes.Equal(data[:4], wasmMagic) {
		return nil, nil, nil, false
	}
	buf := data[8:]
	for len(buf) > 0 {
		id := buf[0]
		buf = buf[1:]
		size, n := binary.Uvarint(buf)
		if n <= 0 || uint64(len(buf)-n) < size {
			break
		}
		buf = buf[n:]
		payload := buf[:size]
		buf = buf[size:]

		switch id {
		case sectionImport:
			imports = append(imports, parseImportSection(payload)...)
		case sectionExport:
			exports = append(exports, parseExportSection(payload)...)
		case sectionCustom:
			if name, _, ok := readName(payload); ok {
				customs = append(customs, customSection{name: name, size: len(payload)})
			}
		}
	}
	return imports, exports, customs, true
}

func readName(b []byte) (string, []byte, bool) {
	n, read := binary.Uvarint(b)
	if read <= 0 || uint64(len(b)-read) < n {
		return "", nil, false
	}
	return string(b[read : read+int(n)]), b[read+int(n):], true
}

func readU32(b []byte) (uint64, []byte, bool) {
	v, n := binary.Uvarint(b)
	if n <= 0 {
		return 0, nil, false
	}
	return v, b[n:], true
}

func parseImportSection(payload []byte) []importEntry {
	count, rest, ok := readU32(payload)
	if !ok {
		return nil
	}
	var out []importEntry
	for i := uint64(0); i < count && len(rest) > 0; i++ {
		module, r1, ok := readName(rest)
		if !ok {
			break
		}
		name, r2, ok := readName(r1)
		if !ok {
			break
		}
		if len(r2) == 0 {
			break
		}
		kind := r2[0]
		r3 := r2[1:]
		r3, ok = skipImportDescriptor(kind, r3)
		if !ok {
			break
		}
		out = append(out, importEntry{module: module, name: name, kind: kind})
		rest = r3
	}
	return out
}

// skipImportDescriptor advances past the kind-specific payload following
// an import's kind byte, so parsing can continue to the next entry.
func skipImportDescriptor(kind byte, b []byte) ([]byte, bool) {
	switch kind {
	case externKindFunc:
		_, rest, ok := readU32(b) // type index
		return rest, ok
	case externKindTable:
		if len(b) < 1 {
			return nil, false
		}
		b = b[1:] // elem type
		return skipLimits(b)
	case externKindMemory:
		return skipLimits(b)
	case externKindGlobal:
		if len(b) < 2 {
			return nil, false
		}
		return b[2:], true // valtype + mutability
	default:
		return nil, false
	}
}

func skipLimits(b []byte) ([]byte, bool) {
	if len(b) < 1 {
		return nil, false
	}
	hasMax := b[0] == 1
	b = b[1:]
	_, b, ok := readU32(b)
	if !ok {
		return nil, false
	}
	if hasMax {
		_, b, ok = readU32(b)
		if !ok {
			return nil, false
		}
	}
	return b, true
}

func parseExportSection(payload []byte) []exportEntry {
	count, rest, ok := readU32(payload)
	if !ok {
		return nil
	}
	var out []exportEntry
	for i := uint64(0); i < count && len(rest) > 0; i++ {
		name, r1, ok := readName(rest)
		if !ok {
			break
		}
		if len(r1) == 0 {
			break
		}
		kind := r1[0]
		_, r2, ok := readU32(r1[1:])
		if !ok {
			break
		}
		out = append(out, exportEntry{name: name, kind: kind})
		rest = r2
	}
	return out
}
