package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONMap stores an arbitrary JSON object inside a JSONB column.
type JSONMap map[string]any

// Value serializes the map to JSON. A value receiver keeps the map usable
// as a bind parameter when updates go through a column map instead of the
// model struct.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan decodes JSONB into the map.
func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return err
	}
	var decoded JSONMap
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return err
	}
	*m = decoded
	return nil
}

// MergeMissing copies keys from other that are not already present. Existing
// keys are never overwritten, which is how bid payloads accumulate fields from
// later protocol messages without losing the original bid values.
func (m JSONMap) MergeMissing(other JSONMap) JSONMap {
	if m == nil {
		m = JSONMap{}
	}
	for k, v := range other {
		if _, exists := m[k]; !exists {
			m[k] = v
		}
	}
	return m
}

func asJSON(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported scan type %T", value)
	}
}
