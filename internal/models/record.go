package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	"vendor-dashboard-api/internal/listquery"
)

// DecodeRecord decodes a JSON object, keeping numbers as json.Number so
// that ids and amounts render exactly as the source sent them.
func DecodeRecord(data []byte) (listquery.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var rec listquery.Record
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	return rec, nil
}

// ToRecord converts a typed value into a Record using its JSON shape.
func ToRecord(v any) (listquery.Record, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	return DecodeRecord(data)
}

// FromRecord fills dest from a Record using its JSON shape.
func FromRecord(rec listquery.Record, dest any) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to decode record: %w", err)
	}
	return nil
}
