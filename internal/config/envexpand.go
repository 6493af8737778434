package config

import "os"

// ExpandEnv expands environment variables in YAML content using Go's
// standard library, ported from the teacher's pkg/config.ExpandEnv.
// Supports both ${VAR} and $VAR syntax (standard shell-style).
//
// Missing variables expand to empty string; validation is responsible
// for catching required fields that end up empty.
func ExpandEnv(data []byte) []byte {
	return []byte(os.ExpandEnv(string(data)))
}

// envOrEmpty returns the named environment variable's value, or "" if unset.
// Centralizing this keeps secret-reading in one place so it is easy to
// audit that passwords are never logged.
func envOrEmpty(name string) string {
	return os.Getenv(name)
}
