package policy

import (
	"fmt"
	"regexp"
	"strings"
)

// Match reports whether value satisfies operator against literal.
//
// String operators (endsWith, startsWith, contains, notContains, regex)
// never match a non-string value. equal and notEqual compare the raw value
// against the string literal, so a non-string value never satisfies equal
// and always satisfies notEqual. The asymmetry is deliberate: rules are
// authored against string literals, and anything else fails closed.
//
// A malformed regex literal returns an error instead of panicking; callers
// log it and treat the rule as a non-match.
func Match(value any, op Operator, literal string) (bool, error) {
	s, isString := value.(string)

	switch op {
	case OpEndsWith:
		return isString && strings.HasSuffix(s, literal), nil
	case OpStartsWith:
		return isString && strings.HasPrefix(s, literal), nil
	case OpContains:
		return isString && strings.Contains(s, literal), nil
	case OpNotContains:
		return isString && !strings.Contains(s, literal), nil
	case OpEqual:
		return isString && s == literal, nil
	case OpNotEqual:
		return !isString || s != literal, nil
	case OpRegex:
		if !isString {
			return false, nil
		}
		re, err := regexp.Compile(literal)
		if err != nil {
			return false, fmt.Errorf("Match: invalid regex %q: %w", literal, err)
		}
		return re.MatchString(s), nil
	default:
		return false, fmt.Errorf("Match: unknown operator %q", op)
	}
}
