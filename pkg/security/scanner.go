package security

import (
	"fmt"
	"regexp"
	"strings"
)

// defaultDangerousImports is the hard-coded deny list of import module
// names spec.md §4.G calls for, seeded with the WASI host capabilities
// that grant filesystem, process, or network access — the categories a
// sandboxed component should not need.
var defaultDangerousImports = []string{
	"wasi_snapshot_preview1.proc_exit",
	"wasi_snapshot_preview1.fd_write",
	"wasi:cli/environment",
	"wasi:sockets",
	"wasi:filesystem",
	"env.exec",
}

var suspiciousNamePattern = regexp.MustCompile(`(?i)exec|system|spawn`)

const largeCustomSectionBytes = 1024

// Scanner runs spec.md §4.G's pre-execution static pass. It is
// configured with a dangerous-import deny list, an import-count
// threshold, and an optional trusted-hash allow-list that short-circuits
// the scan entirely.
type Scanner struct {
	dangerousImports map[string]bool
	importCountWarn  int
	trustedHashes    map[string]bool
}

// Config holds the tunables spec.md §6 exposes for the scanner.
type Config struct {
	DangerousImports []string
	ImportCountWarn  int
	TrustedHashes    []string
}

// New builds a Scanner from Config, applying spec.md's default
// import-count threshold of 50 when unset.
func New(cfg Config) *Scanner {
	deny := make(map[string]bool, len(cfg.DangerousImports))
	list := cfg.DangerousImports
	if len(list) == 0 {
		list = defaultDangerousImports
	}
	for _, d := range list {
		deny[strings.ToLower(d)] = true
	}

	trusted := make(map[string]bool, len(cfg.TrustedHashes))
	for _, h := range cfg.TrustedHashes {
		trusted[strings.ToLower(h)] = true
	}

	threshold := cfg.ImportCountWarn
	if threshold <= 0 {
		threshold = 50
	}

	return &Scanner{dangerousImports: deny, importCountWarn: threshold, trustedHashes: trusted}
}

// Scan runs the structural pass over data, whose content hash is
// contentHash (hex-encoded, as produced by the Catalog). A trusted-hash
// match short-circuits to Low risk without inspecting the binary, per
// spec.md §4.G and SPEC_FULL.md's trusted-hash allow-list supplement.
func (s *Scanner) Scan(componentName, contentHash string, data []byte) Report {
	if s.trustedHashes[strings.ToLower(contentHash)] {
		return Report{ComponentName: componentName, OverallRisk: RiskLow, TrustedHash: true}
	}

	imports, exports, customs, ok := scanSections(data)
	if !ok {
		return Report{
			ComponentName: componentName,
			OverallRisk:   RiskLow,
			Findings: []Finding{{
				Kind:   FindingUnrecognized,
				Detail: "binary is not a recognized core WebAssembly module; structural scan skipped",
				Risk:   RiskLow,
			}},
		}
	}

	var findings []Finding

	for _, imp := range imports {
		key := strings.ToLower(imp.module + "." + imp.name)
		if s.dangerousImports[key] || s.dangerousImports[strings.ToLower(imp.module)] {
			findings = append(findings, Finding{
				Kind:   FindingDangerousImport,
				Detail: fmt.Sprintf("%s.%s", imp.module, imp.name),
				Risk:   RiskHigh,
			})
		}
		if suspiciousNamePattern.MatchString(imp.name) {
			findings = append(findings, Finding{
				Kind:   FindingSuspiciousName,
				Detail: fmt.Sprintf("%s.%s", imp.module, imp.name),
				Risk:   RiskCritical,
			})
		}
	}

	for _, exp := range exports {
		if exp.kind == externKindMemory {
			findings = append(findings, Finding{
				Kind:   FindingExportedMemory,
				Detail: exp.name,
				Risk:   RiskMedium,
			})
		}
		if strings.HasPrefix(exp.name, "_") {
			findings = append(findings, Finding{
				Kind:   FindingInternalExport,
				Detail: exp.name,
				Risk:   RiskLow,
			})
		}
	}

	for _, c := range customs {
		if c.size > largeCustomSectionBytes {
			findings = append(findings, Finding{
				Kind:   FindingLargeCustomData,
				Detail: fmt.Sprintf("%s (%d bytes)", c.name, c.size),
				Risk:   RiskLow,
			})
		}
	}

	if len(imports) > s.importCountWarn {
		findings = append(findings, Finding{
			Kind:   FindingImportCountOver,
			Detail: fmt.Sprintf("%d imports, threshold %d", len(imports), s.importCountWarn),
			Risk:   RiskMedium,
		})
	}

	return Report{
		ComponentName: componentName,
		OverallRisk:   aggregate(findings),
		Findings:      findings,
	}
}

// aggregate implements spec.md §4.G's "Overall risk aggregation: any
// Critical or ≥3 High ⇒ Critical; else any High ⇒ High; else max of
// individual levels."
func aggregate(findings []Finding) RiskLevel {
	var critical, high bool
	highCount := 0
	max := RiskLow

	for _, f := range findings {
		switch f.Risk {
		case RiskCritical:
			critical = true
		case RiskHigh:
			high = true
			highCount++
		}
		if f.Risk > max {
			max = f.Risk
		}
	}

	if critical || highCount >= 3 {
		return RiskCritical
	}
	if high {
		return RiskHigh
	}
	return max
}
