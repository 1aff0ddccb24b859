package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// UserRef is a user identifier as clients send it: either a bare id
// (`42`, `"42"`) or an object carrying one (`{"id": 42}`, `{"_id": "42"}`).
// It decodes to a single canonical id at the request boundary.
type UserRef struct {
	ID    int64
	Valid bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (u *UserRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*u = UserRef{}
		return nil
	}

	if data[0] == '{' {
		var obj struct {
			ID      json.RawMessage `json:"id"`
			MongoID json.RawMessage `json:"_id"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return fmt.Errorf("user reference: %w", err)
		}
		raw := obj.ID
		if len(raw) == 0 {
			raw = obj.MongoID
		}
		if len(raw) == 0 || raw[0] == '{' {
			return fmt.Errorf("user reference: object carries no id")
		}
		return u.UnmarshalJSON(raw)
	}

	id, err := parseRawID(data)
	if err != nil {
		return err
	}
	*u = UserRef{ID: id, Valid: true}
	return nil
}

// MarshalJSON writes the canonical form: the bare id, or null.
func (u UserRef) MarshalJSON() ([]byte, error) {
	if !u.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(u.ID, 10)), nil
}

// Ptr returns the id as a nullable column value.
func (u UserRef) Ptr() *int64 {
	if !u.Valid {
		return nil
	}
	id := u.ID
	return &id
}

func parseRawID(data []byte) (int64, error) {
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return 0, fmt.Errorf("user reference: %w", err)
		}
		data = []byte(s)
	}
	id, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("user reference: invalid id %q", data)
	}
	return id, nil
}
