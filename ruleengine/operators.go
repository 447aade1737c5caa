package ruleengine

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
)

// Operator evaluates one named condition operator against a resolved
// value. cond is the operator's argument (the value under its key in a
// dict-condition); eval is used by recursive operators (not/any/all) to
// re-enter full condition evaluation on a sub-condition.
type Operator func(value, cond any, eval func(value, cond any) bool) bool

// operatorRegistry is the canonical operator set. Extending it with a new
// named operator is the only change needed to teach Evaluate a new
// comparison.
var operatorRegistry = map[string]Operator{
	"equals":   equalsOperator,
	"matches":  matchesOperator,
	"contains": containsOperator,
	"gt":       gtOperator,
	"gte":      gteOperator,
	"lt":       ltOperator,
	"lte":      lteOperator,
	"in":       inOperator,
	"not":      notOperator,
	"any":      anyOperator,
	"all":      allOperator,
}

func equalsOperator(value, cond any, _ func(any, any) bool) bool {
	return looseEqual(value, cond)
}

// matchesOperator applies a case-insensitive regex match. nil never
// matches regardless of pattern; any other value is coerced with
// fmt.Sprint before matching.
func matchesOperator(value, cond any, _ func(any, any) bool) bool {
	if value == nil {
		return false
	}
	pattern, ok := cond.(string)
	if !ok {
		return false
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return false
	}
	return re.MatchString(fmt.Sprint(value))
}

// containsOperator supports substring match for strings and membership for
// slices, and key membership for maps.
func containsOperator(value, cond any, _ func(any, any) bool) bool {
	if value == nil {
		return false
	}
	switch v := value.(type) {
	case string:
		s, ok := cond.(string)
		if !ok {
			return false
		}
		return strings.Contains(v, s)
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if looseEqual(rv.Index(i).Interface(), cond) {
				return true
			}
		}
		return false
	case reflect.Map:
		for _, k := range rv.MapKeys() {
			if looseEqual(k.Interface(), cond) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func gtOperator(value, cond any, _ func(any, any) bool) bool {
	return compareNumeric(value, cond, func(a, b float64) bool { return a > b })
}

func gteOperator(value, cond any, _ func(any, any) bool) bool {
	return compareNumeric(value, cond, func(a, b float64) bool { return a >= b })
}

func ltOperator(value, cond any, _ func(any, any) bool) bool {
	return compareNumeric(value, cond, func(a, b float64) bool { return a < b })
}

func lteOperator(value, cond any, _ func(any, any) bool) bool {
	return compareNumeric(value, cond, func(a, b float64) bool { return a <= b })
}

// compareNumeric returns false whenever value is nil or either side fails
// to coerce to a float64; null never satisfies an ordering comparison.
func compareNumeric(value, cond any, cmp func(a, b float64) bool) bool {
	if value == nil {
		return false
	}
	a, ok := toFloat(value)
	if !ok {
		return false
	}
	b, ok := toFloat(cond)
	if !ok {
		return false
	}
	return cmp(a, b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func inOperator(value, cond any, _ func(any, any) bool) bool {
	rv := reflect.ValueOf(cond)
	if !rv.IsValid() {
		return false
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if looseEqual(rv.Index(i).Interface(), value) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func notOperator(value, cond any, eval func(any, any) bool) bool {
	return !eval(value, cond)
}

func anyOperator(value, cond any, eval func(any, any) bool) bool {
	subs, ok := cond.([]any)
	if !ok {
		return false
	}
	for _, sub := range subs {
		if eval(value, sub) {
			return true
		}
	}
	return false
}

func allOperator(value, cond any, eval func(any, any) bool) bool {
	subs, ok := cond.([]any)
	if !ok {
		return false
	}
	for _, sub := range subs {
		if !eval(value, sub) {
			return false
		}
	}
	return true
}

// looseEqual compares scalars across numeric-kind and string boundaries so
// that a YAML-parsed int and a JSON-decoded float64 compare equal when they
// represent the same number.
func looseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
	}
	return reflect.DeepEqual(a, b)
}
