package marketdata

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mahrens917/marketstore/pkg/storeerr"
)

// stringifyFields converts a typed field map into the wire form the store
// expects. Nil values become empty strings so a degenerate upstream payload
// is visible to the deletion validator rather than silently dropped.
func stringifyFields(fields map[string]any) map[string]string {
	out := make(map[string]string, len(fields))
	for name, value := range fields {
		out[name] = stringifyValue(value)
	}
	return out
}

func stringifyValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

// coercePayload converts wire values back into typed form. Designated
// string fields pass through untouched; everything else parses as float64
// when it carries a decimal point, as int64 otherwise, and stays a string
// when it is not numeric at all. An unparsable numeric-looking value is a
// validation failure, not a fallback.
func coercePayload(key string, raw map[string]string) (map[string]any, error) {
	out := make(map[string]any, len(raw))
	for field, value := range raw {
		converted, err := coerceValue(field, value)
		if err != nil {
			return nil, &storeerr.ValidationError{
				Op:     "safe_read",
				Key:    key,
				Reason: fmt.Sprintf("coercion failed for field %q: %v", field, err),
				Err:    err,
			}
		}
		out[field] = converted
	}
	return out, nil
}

func coerceValue(field, value string) (any, error) {
	if _, ok := passthroughFields[field]; ok {
		return value, nil
	}
	if !looksNumeric(value) {
		return value, nil
	}
	if strings.Contains(value, ".") {
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, err
		}
		return f, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil, err
	}
	return n, nil
}

// looksNumeric reports whether a wire value is shaped like a number and so
// must parse cleanly.
func looksNumeric(value string) bool {
	if value == "" {
		return false
	}
	seenDigit := false
	for i, r := range value {
		switch {
		case r >= '0' && r <= '9':
			seenDigit = true
		case r == '.':
		case (r == '-' || r == '+') && i == 0:
		default:
			return false
		}
	}
	return seenDigit
}

// numericField pulls a float out of a coerced payload regardless of
// whether coercion produced an int64 or a float64.
func numericField(data map[string]any, field string) (float64, bool) {
	value, ok := data[field]
	if !ok || value == nil {
		return 0, false
	}
	switch v := value.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
