package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Metadata is a string map persisted as JSONB
type Metadata map[string]string

// With sets key and returns the map, allocating it when nil
func (m Metadata) With(key, value string) Metadata {
	if m == nil {
		m = make(Metadata, 1)
	}
	m[key] = value
	return m
}

// Scan implements the sql.Scanner interface for Metadata
func (m *Metadata) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*m = Metadata{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("metadata: unsupported column type %T", value)
	}

	result := Metadata{}
	if err := json.Unmarshal(raw, &result); err != nil {
		return fmt.Errorf("metadata: %w", err)
	}
	*m = result
	return nil
}

// Value implements the driver.Valuer interface for Metadata
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}
