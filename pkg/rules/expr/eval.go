package expr

import (
	"fmt"
	"strconv"
	"strings"
)

type node interface {
	eval(values map[string]any) (bool, error)
}

type orNode struct{ left, right node }

func (n orNode) eval(values map[string]any) (bool, error) {
	ok, err := n.left.eval(values)
	if err != nil || ok {
		return ok, err
	}
	return n.right.eval(values)
}

type andNode struct{ left, right node }

func (n andNode) eval(values map[string]any) (bool, error) {
	ok, err := n.left.eval(values)
	if err != nil || !ok {
		return false, err
	}
	return n.right.eval(values)
}

type notNode struct{ inner node }

func (n notNode) eval(values map[string]any) (bool, error) {
	ok, err := n.inner.eval(values)
	if err != nil {
		return false, err
	}
	return !ok, nil
}

type truthyNode struct{ identifier string }

func (n truthyNode) eval(values map[string]any) (bool, error) {
	return truthy(values[n.identifier]), nil
}

type compareNode struct {
	identifier string
	op         tokenKind
	literal    token
}

func (n compareNode) eval(values map[string]any) (bool, error) {
	value := values[n.identifier]

	switch n.literal.kind {
	case tokenNull:
		return n.equality(value == nil)
	case tokenBool:
		return n.equality(coerceBool(value) == (n.literal.raw == "true"))
	case tokenString:
		return n.equality(coerceString(value) == n.literal.raw)
	case tokenNumber:
		want, err := strconv.ParseFloat(n.literal.raw, 64)
		if err != nil {
			return false, fmt.Errorf("rules/expr: invalid number literal %q", n.literal.raw)
		}
		got, ok := coerceNumber(value)
		switch n.op {
		case tokenEq:
			return ok && got == want, nil
		case tokenNeq:
			return !ok || got != want, nil
		case tokenLt:
			return ok && got < want, nil
		case tokenLte:
			return ok && got <= want, nil
		case tokenGt:
			return ok && got > want, nil
		case tokenGte:
			return ok && got >= want, nil
		}
	}
	return false, fmt.Errorf("rules/expr: unsupported comparison on %q", n.identifier)
}

func (n compareNode) equality(equal bool) (bool, error) {
	switch n.op {
	case tokenEq:
		return equal, nil
	case tokenNeq:
		return !equal, nil
	default:
		return false, fmt.Errorf("rules/expr: operator not supported for %q", n.literal.raw)
	}
}

func truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		trimmed := strings.TrimSpace(v)
		if parsed, err := strconv.ParseBool(trimmed); err == nil {
			return parsed
		}
		return trimmed != ""
	case float64:
		return v != 0
	case int:
		return v != 0
	default:
		return true
	}
}

func coerceBool(value any) bool {
	return truthy(value)
}

func coerceNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func coerceString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(value)
	}
}
