// Package util provides helpers shared across the service: environment lookups,
// Package URL handling, OSV version range checks and CVSS scoring.
//
//revive:disable-next-line:var-naming
package util

import (
	"os"
	"strings"
	"time"
)

// GetEnvDefault is a convenience function for handling env vars
func GetEnvDefault(key, defVal string) string {
	val, ex := os.LookupEnv(key) // get the env var
	if !ex {                     // not found return default
		return defVal
	}
	return val // return value for env var
}

// GetEnvDuration reads a duration such as "30s" from the environment
func GetEnvDuration(key string, defVal time.Duration) time.Duration {
	val, ex := os.LookupEnv(key)
	if !ex {
		return defVal
	}
	d, err := time.ParseDuration(strings.TrimSpace(val))
	if err != nil {
		return defVal
	}
	return d
}

// GetEnvBool reports whether the env var holds 1, true or True
func GetEnvBool(key string) bool {
	switch os.Getenv(key) {
	case "1", "true", "True", "TRUE":
		return true
	}
	return false
}

// IsEmpty checks if a string is empty or contains only whitespace
func IsEmpty(s string) bool {
	return len(strings.TrimSpace(s)) == 0
}
