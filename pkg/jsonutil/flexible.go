// Package jsonutil coerces loosely typed JSON values. Agent-driven MCP
// clients frequently send numbers as strings (and vice versa), so tool
// argument extraction accepts either form instead of rejecting the call.
package jsonutil

import (
	"fmt"
	"strconv"
)

// FlexibleString converts a decoded JSON value to a string. Numbers and
// booleans are formatted; null and unsupported types yield an empty string.
func FlexibleString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'g', -1, 64)
	case bool:
		return fmt.Sprintf("%t", val)
	default:
		return ""
	}
}

// FlexibleFloat converts a decoded JSON value to a float64. Numeric strings
// are parsed; anything else reports false.
func FlexibleFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case string:
		parsed, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}
