package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// IDList is an ordered list of entity ids persisted as a JSON text column.
// Add keeps set semantics (idempotent append) while preserving order.
type IDList []string

// Value implements driver.Valuer.
func (l IDList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal([]string(l))
	if err != nil {
		return nil, fmt.Errorf("models: marshal id list: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (l *IDList) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		return l.scanBytes(v)
	case string:
		return l.scanBytes([]byte(v))
	default:
		return fmt.Errorf("models: scan id list: unsupported type %T", src)
	}
}

func (l *IDList) scanBytes(data []byte) error {
	if len(data) == 0 {
		*l = nil
		return nil
	}
	var out []string
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("models: scan id list: %w", err)
	}
	*l = out
	return nil
}

// Contains reports whether id is present.
func (l IDList) Contains(id string) bool {
	for _, v := range l {
		if v == id {
			return true
		}
	}
	return false
}

// Add appends id if not already present and returns the updated list.
func (l IDList) Add(id string) IDList {
	if id == "" || l.Contains(id) {
		return l
	}
	return append(l, id)
}

// Remove drops every occurrence of id and returns the updated list.
func (l IDList) Remove(id string) IDList {
	if !l.Contains(id) {
		return l
	}
	out := make(IDList, 0, len(l))
	for _, v := range l {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// RoleMap maps a user id to a project role string, persisted as JSON text.
type RoleMap map[string]string

// Value implements driver.Valuer.
func (m RoleMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	data, err := json.Marshal(map[string]string(m))
	if err != nil {
		return nil, fmt.Errorf("models: marshal role map: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (m *RoleMap) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("models: scan role map: unsupported type %T", src)
	}
	if len(data) == 0 {
		*m = nil
		return nil
	}
	var out map[string]string
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("models: scan role map: %w", err)
	}
	*m = out
	return nil
}
