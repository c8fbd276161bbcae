package catalog

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Handle is a stable (table, row) reference to a static definition.
// Its text form is "table/row".
type Handle struct {
	Table string
	Row   string
}

// H is a shorthand constructor.
func H(table, row string) Handle {
	return Handle{Table: table, Row: row}
}

// ParseHandle parses the "table/row" text form.
func ParseHandle(s string) (Handle, error) {
	table, row, ok := strings.Cut(s, "/")
	if !ok || table == "" || row == "" || strings.Contains(row, "/") {
		return Handle{}, fmt.Errorf("%w: %q", ErrInvalidHandle, s)
	}
	return Handle{Table: table, Row: row}, nil
}

// IsNull returns true for the zero handle.
func (h Handle) IsNull() bool {
	return h.Table == "" && h.Row == ""
}

func (h Handle) String() string {
	if h.IsNull() {
		return ""
	}
	return h.Table + "/" + h.Row
}

// MarshalText implements encoding.TextMarshaler.
func (h Handle) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Empty text yields the null handle.
func (h *Handle) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*h = Handle{}
		return nil
	}
	parsed, err := ParseHandle(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// UnmarshalYAML decodes a scalar "table/row".
func (h *Handle) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: %w: expected scalar", node.Line, ErrInvalidHandle)
	}
	if err := h.UnmarshalText([]byte(node.Value)); err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	return nil
}

// MarshalYAML encodes the handle as its text form.
func (h Handle) MarshalYAML() (any, error) {
	return h.String(), nil
}
