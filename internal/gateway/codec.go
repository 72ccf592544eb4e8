package gateway

import (
	"encoding/json"
	"fmt"
)

// Decode converts a generic row into a typed model via its JSON tags.
func Decode(row Row, dst any) error {
	raw, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("encode row: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode row: %w", err)
	}
	return nil
}

// DecodeRows converts a row slice into a typed slice (dst must be a pointer
// to a slice of models).
func DecodeRows(rows []Row, dst any) error {
	raw, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("encode rows: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode rows: %w", err)
	}
	return nil
}

// ToRow converts a typed model into a generic row via its JSON tags.
func ToRow(v any) (Row, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode model: %w", err)
	}
	var row Row
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	return row, nil
}

// StringField reads a string column from a row, tolerating missing values.
func StringField(row Row, column string) string {
	if row == nil {
		return ""
	}
	if s, ok := row[column].(string); ok {
		return s
	}
	return ""
}

// IntField reads an integer column from a row. JSON decoding turns numbers
// into float64, so both representations are accepted. ok is false when the
// column is absent or not numeric.
func IntField(row Row, column string) (int64, bool) {
	if row == nil {
		return 0, false
	}
	v, present := row[column]
	if !present {
		return 0, false
	}
	f, numeric := toFloat(v)
	if !numeric {
		return 0, false
	}
	return int64(f), true
}
