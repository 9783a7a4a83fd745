// Package instance names the running process in logs and cron lock values.
package instance

import (
	"os"

	"github.com/angelmondragon/tradelines-backend/pkg/env"
)

// GetID returns the first of TRADELINES_INSTANCE_ID, DYNO or the hostname,
// falling back to kind-0.
func GetID(kind string) string {
	if id := env.First("TRADELINES_INSTANCE_ID", "DYNO"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	if kind == "" {
		kind = "process"
	}
	return kind + "-0"
}
