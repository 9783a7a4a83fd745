// Package env reads process settings that are needed before config.Load runs.
package env

import (
	"os"
	"strings"
)

// First returns the first non-blank value among keys.
func First(keys ...string) string {
	for _, key := range keys {
		if val := strings.TrimSpace(os.Getenv(key)); val != "" {
			return val
		}
	}
	return ""
}

// Get returns the value of key or fallback when it is unset or blank.
func Get(key, fallback string) string {
	if val := First(key); val != "" {
		return val
	}
	return fallback
}
