package jsonutil

import (
	"encoding/json"
	"fmt"
)

// FlexibleStringValue converts a json.RawMessage to a string, handling cases
// where the store returns numbers or booleans instead of strings. Returns
// empty string for null/empty.
func FlexibleStringValue(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	// Try string first
	var strVal string
	if err := json.Unmarshal(raw, &strVal); err == nil {
		return strVal
	}

	// Try number
	var numVal float64
	if err := json.Unmarshal(raw, &numVal); err == nil {
		if numVal == float64(int64(numVal)) {
			return fmt.Sprintf("%d", int64(numVal))
		}
		return fmt.Sprintf("%g", numVal)
	}

	// Try boolean
	var boolVal bool
	if err := json.Unmarshal(raw, &boolVal); err == nil {
		return fmt.Sprintf("%t", boolVal)
	}

	// Fallback: return raw string representation
	return string(raw)
}

// FlexibleID converts a json.RawMessage to an int64 identifier. The store
// emits ids both as JSON numbers and as decimal strings depending on the
// endpoint. Returns 0 for null/empty/unparseable input.
func FlexibleID(raw json.RawMessage) int64 {
	if len(raw) == 0 || string(raw) == "null" {
		return 0
	}

	var numVal int64
	if err := json.Unmarshal(raw, &numVal); err == nil {
		return numVal
	}

	var floatVal float64
	if err := json.Unmarshal(raw, &floatVal); err == nil {
		return int64(floatVal)
	}

	var strVal string
	if err := json.Unmarshal(raw, &strVal); err == nil {
		var parsed int64
		if _, err := fmt.Sscanf(strVal, "%d", &parsed); err == nil {
			return parsed
		}
	}

	return 0
}
