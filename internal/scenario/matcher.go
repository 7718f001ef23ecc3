package scenario

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Match checks actual against an expected value. String expectations may be
// ~regex~ or a numeric comparison (>n, <n, >=n, <=n). Returns a reason on mismatch.
func Match(actual, expected interface{}) (bool, string) {
	if expected == nil {
		if actual == nil {
			return true, ""
		}
		return false, fmt.Sprintf("expected nothing, got %v", actual)
	}
	if actual == nil {
		return false, fmt.Sprintf("expected %v, got nothing", expected)
	}

	if s, ok := expected.(string); ok {
		switch {
		case len(s) > 1 && strings.HasPrefix(s, "~") && strings.HasSuffix(s, "~"):
			return matchRegex(actual, strings.Trim(s, "~"))
		case strings.HasPrefix(s, ">") || strings.HasPrefix(s, "<"):
			return matchComparison(actual, s)
		}
	}

	if e, ok := toFloat64(expected); ok {
		a, ok := toFloat64(actual)
		if !ok {
			return false, fmt.Sprintf("expected number %v, got %T", expected, actual)
		}
		if a == e {
			return true, ""
		}
		return false, fmt.Sprintf("expected %v, got %v", expected, actual)
	}

	if fmt.Sprint(actual) == fmt.Sprint(expected) {
		return true, ""
	}
	return false, fmt.Sprintf("expected %v, got %v", expected, actual)
}

func matchRegex(actual interface{}, pattern string) (bool, string) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, fmt.Sprintf("invalid regex pattern %q: %v", pattern, err)
	}

	s := fmt.Sprint(actual)
	if re.MatchString(s) {
		return true, ""
	}
	return false, fmt.Sprintf("value %q does not match pattern ~%s~", s, pattern)
}

func matchComparison(actual interface{}, comparison string) (bool, string) {
	a, ok := toFloat64(actual)
	if !ok {
		return false, fmt.Sprintf("cannot compare non-numeric value: %v", actual)
	}

	var op string
	for _, candidate := range []string{">=", "<=", ">", "<"} {
		if strings.HasPrefix(comparison, candidate) {
			op = candidate
			break
		}
	}

	e, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimPrefix(comparison, op)), 64)
	if err != nil {
		return false, fmt.Sprintf("invalid comparison value: %s", comparison)
	}

	var result bool
	switch op {
	case ">":
		result = a > e
	case "<":
		result = a < e
	case ">=":
		result = a >= e
	case "<=":
		result = a <= e
	}

	if result {
		return true, ""
	}
	return false, fmt.Sprintf("expected %s%v, got %v", op, e, a)
}

func toFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
