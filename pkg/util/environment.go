package util

import (
	"os"
	"strings"
)

// GetEnvironmentVariables snapshots the process environment as a map, the
// form the config overrides consume.
func GetEnvironmentVariables() map[string]string {
	environment := map[string]string{}

	for _, entry := range os.Environ() {
		pair := strings.SplitN(entry, "=", 2)
		environment[pair[0]] = pair[1]
	}

	return environment
}
