package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"NewsCollector/internal/domain"
)

// jsonFields hold lists, numbers or objects; their values are decoded as JSON when possible.
var jsonFields = map[string]bool{
	domain.FieldCategories:     true,
	domain.FieldTags:           true,
	domain.FieldRelevanceScore: true,
	domain.FieldExtraData:      true,
}

// parseAssignments turns key=value arguments into a field map.
// "null" becomes nil, values of jsonFields are decoded when they parse as JSON
// and everything else stays a string.
func parseAssignments(args []string) (map[string]any, error) {
	out := make(map[string]any, len(args))
	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", arg)
		}
		out[key] = parseValue(key, raw)
	}
	return out, nil
}

func parseValue(key, raw string) any {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "null" {
		return nil
	}
	if !jsonFields[key] || trimmed == "" {
		return raw
	}
	var v any
	if err := json.Unmarshal([]byte(trimmed), &v); err == nil {
		return v
	}
	return raw
}
