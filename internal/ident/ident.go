// Package ident provides a normalized, type-safe wrapper around opaque
// provider identifiers. In this codebase it carries drive ids; external
// item ids, subscription ids and resource strings are kept as plain
// strings. Consolidating drive-id normalization here (lowercase, trim)
// avoids raw string comparisons drifting out of sync across the store,
// gateway, and reconciliation engine.
package ident

import (
	"database/sql"
	"database/sql/driver"
	"encoding"
	"fmt"
	"strings"
)

// ID is a normalized opaque identifier. The zero value represents
// "absent" (e.g. a root item's parent, or an unset cursor).
type ID struct {
	value string
}

// New normalizes a raw identifier. Empty input returns the zero ID.
func New(raw string) ID {
	if raw == "" {
		return ID{}
	}

	return ID{value: strings.ToLower(strings.TrimSpace(raw))}
}

// String returns the normalized identifier.
func (id ID) String() string {
	return id.value
}

// IsZero reports whether this is the absent identifier.
func (id ID) IsZero() bool {
	return id.value == ""
}

// Equal reports whether two IDs refer to the same identifier.
func (id ID) Equal(other ID) bool {
	return id.value == other.value
}

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.value), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(text []byte) error {
	*id = New(string(text))
	return nil
}

// Scan implements sql.Scanner. SQL NULL produces the zero ID.
func (id *ID) Scan(src any) error {
	if src == nil {
		*id = ID{}
		return nil
	}

	switch v := src.(type) {
	case string:
		*id = New(v)
		return nil
	case []byte:
		*id = New(string(v))
		return nil
	default:
		return fmt.Errorf("ident.ID.Scan: unsupported type %T", src)
	}
}

// Value implements driver.Valuer. The zero ID writes SQL NULL.
func (id ID) Value() (driver.Value, error) {
	if id.IsZero() {
		return nil, nil
	}

	return id.value, nil
}

// Compile-time interface assertions.
var (
	_ encoding.TextMarshaler   = ID{}
	_ encoding.TextUnmarshaler = (*ID)(nil)
	_ fmt.Stringer             = ID{}
	_ driver.Valuer            = ID{}
	_ sql.Scanner              = (*ID)(nil)
)
