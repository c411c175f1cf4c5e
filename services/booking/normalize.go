package booking

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"kidsclub/models"
)

// Clients and older stored documents send both snake_case and camelCase
// keys. Everything entering the service goes through DecodeWire so the
// engine only sees the canonical structs.

func wireKey(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, "_", ""))
}

// DecodeWire decodes a loosely shaped JSON object into out, matching keys
// regardless of case and underscores.
func DecodeWire(raw map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
		MatchName: func(mapKey, fieldName string) bool {
			return wireKey(mapKey) == wireKey(fieldName)
		},
		DecodeHook: wireTime,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("malformed booking payload: %w", err)
	}
	return nil
}

// DecodeWireJSON is DecodeWire for a raw JSON body.
func DecodeWireJSON(data []byte, out any) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("malformed booking payload: %w", err)
	}
	return DecodeWire(raw, out)
}

// DecodeBookingRecord normalizes an external booking document.
func DecodeBookingRecord(raw map[string]any) (models.BookingRecord, error) {
	var rec models.BookingRecord
	if err := DecodeWire(raw, &rec); err != nil {
		return models.BookingRecord{}, err
	}
	return rec, nil
}

var (
	timeType    = reflect.TypeOf(time.Time{})
	timePtrType = reflect.TypeOf(&time.Time{})
)

// wireTime parses RFC 3339 strings into time fields. A blank string leaves
// an optional time unset and a required one zero.
func wireTime(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String {
		return data, nil
	}
	s := strings.TrimSpace(data.(string))
	switch to {
	case timePtrType:
		if s == "" {
			return nil, nil
		}
		return s, nil
	case timeType:
		if s == "" {
			return time.Time{}, nil
		}
		return time.Parse(time.RFC3339, s)
	}
	return data, nil
}
