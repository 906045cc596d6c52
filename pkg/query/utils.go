package query

import (
	"git.canoozie.net/riddling/propgraph/pkg/common"
)

// GetOrDefault gets a value from a map or returns a default if not found
func GetOrDefault(params map[string]string, key, defaultValue string) string {
	if value, ok := params[key]; ok {
		return value
	}
	return defaultValue
}

// ParseUint64 parses a string as a uint64 (wrapper for common package)
func ParseUint64(value string) (uint64, error) {
	return common.ParseUint64(value)
}
