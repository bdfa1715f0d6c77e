package listing

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/pitabwire/backoffice/model"
)

// applyResponseMapping extracts the items and the total count of a list
// response. Without items_path the body itself, or its "data" member, must
// be the item array. Without a total the X-Total-Count header is used, and
// failing that the item count.
func applyResponseMapping(result model.InvocationResult, mapping model.ResponseMappingDefinition) ([]map[string]any, int) {
	var raw any
	switch body := result.Body.(type) {
	case []any:
		raw = body
	case map[string]any:
		if mapping.ItemsPath != "" {
			raw = extractPath(body, mapping.ItemsPath)
		} else {
			raw = body["data"]
		}
	}
	items := toMapSlice(raw)

	if len(mapping.FieldMap) > 0 {
		items = applyFieldMap(items, mapping.FieldMap)
	}

	total := -1
	if body, ok := result.Body.(map[string]any); ok && mapping.TotalPath != "" {
		if n, ok := toInt(extractPath(body, mapping.TotalPath)); ok {
			total = n
		}
	}
	if total < 0 {
		if n, err := strconv.Atoi(result.Headers["X-Total-Count"]); err == nil {
			total = n
		}
	}
	if total < 0 {
		total = len(items)
	}
	return items, total
}

// extractPath navigates a dot-separated path in a map.
func extractPath(data map[string]any, path string) any {
	if path == "" || data == nil {
		return nil
	}
	var current any = data
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current = m[part]
	}
	return current
}

// toMapSlice keeps the object elements of an array.
func toMapSlice(v any) []map[string]any {
	slice, ok := v.([]any)
	if !ok {
		return []map[string]any{}
	}
	result := make([]map[string]any, 0, len(slice))
	for _, item := range slice {
		if m, ok := item.(map[string]any); ok {
			result = append(result, m)
		}
	}
	return result
}

// applyFieldMap renames item keys according to fieldMap.
func applyFieldMap(items []map[string]any, fieldMap map[string]string) []map[string]any {
	result := make([]map[string]any, len(items))
	for i, item := range items {
		mapped := make(map[string]any, len(item))
		for k, v := range item {
			if newName, ok := fieldMap[k]; ok {
				mapped[newName] = v
			} else {
				mapped[k] = v
			}
		}
		result[i] = mapped
	}
	return result
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	case string:
		i, err := strconv.Atoi(n)
		return i, err == nil
	}
	return 0, false
}
