package model

import (
	"encoding/json"
	"fmt"
)

// Encode serializes a record value to its stored string form.
func Encode(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode: %w", err)
	}
	return string(b), nil
}

// Decode parses a stored string into a value of type T.
// An empty string decodes to the zero value.
func Decode[T any](s string) (T, error) {
	var v T
	if s == "" {
		return v, nil
	}
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return v, fmt.Errorf("decode: %w", err)
	}
	return v, nil
}
