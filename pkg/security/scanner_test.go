package security

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uleb(v uint64) []byte {
	buf := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(buf, v)
	return buf[:n]
}

func name(s string) []byte {
	return append(uleb(uint64(len(s))), []byte(s)...)
}

func section(id byte, payload []byte) []byte {
	return append([]byte{id}, append(uleb(uint64(len(payload))), payload...)...)
}

// buildModule assembles a minimal core wasm module with the given raw
// import and export section payloads, for exercising the section-level
// scanner without needing a real compiler toolchain.
func buildModule(t *testing.T, importEntries [][2]string, exportEntries []struct {
	name string
	kind byte
}, customSections map[string]int) []byte {
	t.Helper()
	buf := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	if len(importEntries) > 0 {
		payload := uleb(uint64(len(importEntries)))
		for _, e := range importEntries {
			payload = append(payload, name(e[0])...)
			payload = append(payload, name(e[1])...)
			payload = append(payload, externKindFunc)
			payload = append(payload, uleb(0)...) // type index
		}
		buf = append(buf, section(sectionImport, payload)...)
	}

	if len(exportEntries) > 0 {
		payload := uleb(uint64(len(exportEntries)))
		for _, e := range exportEntries {
			payload = append(payload, name(e.name)...)
			payload = append(payload, e.kind)
			payload = append(payload, uleb(0)...) // index
		}
		buf = append(buf, section(sectionExport, payload)...)
	}

	for sectionName, size := range customSections {
		payload := append(name(sectionName), make([]byte, size)...)
		buf = append(buf, section(sectionCustom, payload)...)
	}

	return buf
}

func TestScanner_DangerousImportIsHigh(t *testing.T) {
	data := buildModule(t, [][2]string{{"wasi:filesystem", "open"}}, nil, nil)
	s := New(Config{})
	report := s.Scan("comp", "hash1", data)
	assert.Equal(t, RiskHigh, report.OverallRisk)
	require.NotEmpty(t, report.Findings)
	assert.Equal(t, FindingDangerousImport, report.Findings[0].Kind)
}

func TestScanner_SuspiciousNameIsCritical(t *testing.T) {
	data := buildModule(t, [][2]string{{"env", "system_exec"}}, nil, nil)
	s := New(Config{})
	report := s.Scan("comp", "hash2", data)
	assert.Equal(t, RiskCritical, report.OverallRisk)
}

func TestScanner_ExportedMemoryIsMedium(t *testing.T) {
	data := buildModule(t, nil, []struct {
		name string
		kind byte
	}{{"memory", externKindMemory}}, nil)
	s := New(Config{})
	report := s.Scan("comp", "hash3", data)
	assert.Equal(t, RiskMedium, report.OverallRisk)
}

func TestScanner_InternalExportIsLow(t *testing.T) {
	data := buildModule(t, nil, []struct {
		name string
		kind byte
	}{{"__internal_alloc", externKindFunc}}, nil)
	s := New(Config{})
	report := s.Scan("comp", "hash4", data)
	assert.Equal(t, RiskLow, report.OverallRisk)
}

func TestScanner_LargeCustomSectionIsLow(t *testing.T) {
	data := buildModule(t, nil, nil, map[string]int{"debug_info": 2048})
	s := New(Config{})
	report := s.Scan("comp", "hash5", data)
	assert.Equal(t, RiskLow, report.OverallRisk)
	require.Len(t, report.Findings, 1)
	assert.Equal(t, FindingLargeCustomData, report.Findings[0].Kind)
}

func TestScanner_ImportCountOverThresholdIsMedium(t *testing.T) {
	var imports [][2]string
	for i := 0; i < 5; i++ {
		imports = append(imports, [2]string{"env", "fn"})
	}
	s := New(Config{ImportCountWarn: 3})
	data := buildModule(t, imports, nil, nil)
	report := s.Scan("comp", "hash6", data)
	assert.Equal(t, RiskMedium, report.OverallRisk)
}

func TestScanner_TrustedHashShortCircuits(t *testing.T) {
	data := buildModule(t, [][2]string{{"env", "system_exec"}}, nil, nil)
	s := New(Config{TrustedHashes: []string{"deadbeef"}})
	report := s.Scan("comp", "DEADBEEF", data)
	assert.Equal(t, RiskLow, report.OverallRisk)
	assert.True(t, report.TrustedHash)
	assert.Empty(t, report.Findings)
}

func TestScanner_AggregationThreeHighIsCritical(t *testing.T) {
	imports := [][2]string{
		{"wasi:filesystem", "open"},
		{"wasi:sockets", "connect"},
		{"wasi:cli/environment", "get"},
	}
	s := New(Config{})
	data := buildModule(t, imports, nil, nil)
	report := s.Scan("comp", "hash7", data)
	assert.Equal(t, RiskCritical, report.OverallRisk)
}

func TestScanner_UnrecognizedBinaryNeverFails(t *testing.T) {
	s := New(Config{})
	report := s.Scan("comp", "hash8", []byte("not wasm"))
	assert.Equal(t, RiskLow, report.OverallRisk)
	require.Len(t, report.Findings, 1)
	assert.Equal(t, FindingUnrecognized, report.Findings[0].Kind)
}

func TestScanner_CleanBinaryIsLow(t *testing.T) {
	data := buildModule(t, [][2]string{{"env", "add"}}, nil, nil)
	s := New(Config{})
	report := s.Scan("comp", "hash9", data)
	assert.Equal(t, RiskLow, report.OverallRisk)
}
