package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnsupportedValue is returned when a value is not one of the union
// members the engine stores (string, number, boolean or undefined).
var ErrUnsupportedValue = errors.New("model: unsupported value type")

// Normalize coerces a value into the stored union. Integers become float64;
// nil stays nil (undefined).
func Normalize(value any) (any, error) {
	switch typed := value.(type) {
	case nil:
		return nil, nil
	case string, bool, float64:
		return typed, nil
	case float32:
		return float64(typed), nil
	case int:
		return float64(typed), nil
	case int32:
		return float64(typed), nil
	case int64:
		return float64(typed), nil
	case uint:
		return float64(typed), nil
	case uint64:
		return float64(typed), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedValue, value)
	}
}

// StringOf renders a stored value as text.
func StringOf(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return typed
	case bool:
		return strconv.FormatBool(typed)
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	default:
		return fmt.Sprint(value)
	}
}

// NumberOf converts a stored value to float64 when possible. Strings accept
// both "1234.5" and the comma decimal form "1234,5".
func NumberOf(value any) (float64, bool) {
	switch typed := value.(type) {
	case float64:
		return typed, true
	case string:
		trimmed := strings.TrimSpace(typed)
		if trimmed == "" {
			return 0, false
		}
		if parsed, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return parsed, true
		}
		if parsed, err := strconv.ParseFloat(strings.Replace(trimmed, ",", ".", 1), 64); err == nil {
			return parsed, true
		}
		return 0, false
	default:
		return 0, false
	}
}

// Digits strips every non-digit character from raw.
func Digits(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
