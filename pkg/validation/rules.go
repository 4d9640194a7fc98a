// Package validation defines the rule vocabulary evaluated by the form
// engine: presence, size bounds, patterns, enumerations, value types and
// caller supplied (possibly slow) validator functions.
package validation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/mail"
	"net/url"
	"reflect"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Kind identifies the check a Rule performs.
type Kind string

const (
	KindRequired  Kind = "required"
	KindMin       Kind = "min"
	KindMax       Kind = "max"
	KindLen       Kind = "len"
	KindPattern   Kind = "pattern"
	KindEnum      Kind = "enum"
	KindType      Kind = "type"
	KindValidator Kind = "validator"
)

// Value types understood by KindType rules.
const (
	TypeString  = "string"
	TypeNumber  = "number"
	TypeInteger = "integer"
	TypeBoolean = "boolean"
	TypeArray   = "array"
	TypeObject  = "object"
	TypeEmail   = "email"
	TypeURL     = "url"
)

// ValidatorFunc checks a value asynchronously. A nil error means valid; the
// error text (or the rule message when set) becomes the field error. values
// is a read-only snapshot of the whole form.
type ValidatorFunc func(ctx context.Context, value any, values map[string]any) error

// Rule is one entry of a field's rule chain.
type Rule struct {
	Kind    Kind
	Message string

	// Bound is the limit for min, max and len rules. Strings are measured in
	// runes, sequences and maps by length, numbers by value.
	Bound float64
	// Whitespace makes a required rule treat whitespace-only strings as
	// missing.
	Whitespace bool
	Pattern    *regexp.Regexp
	Enum       []any
	Type       string
	Validator  ValidatorFunc
}

// Required builds a presence rule.
func Required(message string) Rule {
	return Rule{Kind: KindRequired, Message: message}
}

// Min builds a lower bound rule.
func Min(bound float64, message string) Rule {
	return Rule{Kind: KindMin, Bound: bound, Message: message}
}

// Max builds an upper bound rule.
func Max(bound float64, message string) Rule {
	return Rule{Kind: KindMax, Bound: bound, Message: message}
}

// Len builds an exact size rule.
func Len(size int, message string) Rule {
	return Rule{Kind: KindLen, Bound: float64(size), Message: message}
}

// Pattern compiles expr into a pattern rule.
func Pattern(expr, message string) (Rule, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return Rule{}, fmt.Errorf("validation: compile pattern: %w", err)
	}
	return Rule{Kind: KindPattern, Pattern: re, Message: message}, nil
}

// MustPattern is Pattern for expressions known to compile.
func MustPattern(expr, message string) Rule {
	rule, err := Pattern(expr, message)
	if err != nil {
		panic(err)
	}
	return rule
}

// OneOf builds an enumeration rule.
func OneOf(values []any, message string) Rule {
	return Rule{Kind: KindEnum, Enum: append([]any(nil), values...), Message: message}
}

// TypeOf builds a value type rule.
func TypeOf(typ, message string) Rule {
	return Rule{Kind: KindType, Type: typ, Message: message}
}

// Validator wraps fn into a rule.
func Validator(fn ValidatorFunc, message string) Rule {
	return Rule{Kind: KindValidator, Validator: fn, Message: message}
}

// IsAsync reports whether the rule must run off the caller's goroutine.
func (r Rule) IsAsync() bool {
	return r.Kind == KindValidator
}

// IsMissing applies the presence policy: nil, "", NaN and empty sequences are
// missing; 0 and false are present values.
func IsMissing(value any, whitespace bool) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		if whitespace {
			return strings.TrimSpace(v) == ""
		}
		return v == ""
	case float64:
		return math.IsNaN(v)
	case float32:
		return math.IsNaN(float64(v))
	case []any:
		return len(v) == 0
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// HasRequired reports whether rules contain a presence rule and whether that
// rule trims whitespace.
func HasRequired(rules []Rule) (required bool, whitespace bool) {
	for _, rule := range rules {
		if rule.Kind == KindRequired {
			return true, rule.Whitespace
		}
	}
	return false, false
}

// Check evaluates a synchronous rule against value and returns the error
// message, or "" when the value satisfies the rule. Validator rules always
// pass here; use Run for them.
func (r Rule) Check(name string, value any) string {
	switch r.Kind {
	case KindRequired:
		if IsMissing(value, r.Whitespace) {
			return r.message("'%s' is required", name)
		}
	case KindMin:
		if size, unit, ok := Measure(value); ok && size < r.Bound {
			return r.message("'%s' must be at least %s", name, describeBound(r.Bound, unit))
		}
	case KindMax:
		if size, unit, ok := Measure(value); ok && size > r.Bound {
			if unit == "" {
				return r.message("'%s' cannot be greater than %s", name, describeBound(r.Bound, unit))
			}
			return r.message("'%s' cannot be longer than %s", name, describeBound(r.Bound, unit))
		}
	case KindLen:
		if size, unit, ok := Measure(value); ok && size != r.Bound {
			return r.message("'%s' must be exactly %s", name, describeBound(r.Bound, unit))
		}
	case KindPattern:
		if r.Pattern == nil {
			return ""
		}
		str, ok := value.(string)
		if !ok || !r.Pattern.MatchString(str) {
			return r.message("'%s' does not match pattern %s", name, r.Pattern.String())
		}
	case KindEnum:
		for _, candidate := range r.Enum {
			if looseEqual(candidate, value) {
				return ""
			}
		}
		return r.message("'%s' must be one of %s", name, describeEnum(r.Enum))
	case KindType:
		if !MatchesType(r.Type, value) {
			return r.message("'%s' is not a valid %s", name, r.Type)
		}
	}
	return ""
}

// Run evaluates a validator rule. Cancellation surfaces as the context error
// message; callers discard results for superseded values anyway.
func (r Rule) Run(ctx context.Context, name string, value any, values map[string]any) string {
	if r.Kind != KindValidator || r.Validator == nil {
		return r.Check(name, value)
	}
	err := r.Validator(ctx, value, values)
	if err == nil {
		return ""
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err.Error()
	}
	return r.message("%s", err.Error())
}

func (r Rule) message(format string, args ...any) string {
	if msg := strings.TrimSpace(r.Message); msg != "" {
		return msg
	}
	return fmt.Sprintf(format, args...)
}

// Measure returns the size used by bound rules: rune count for strings,
// length for sequences and maps, the value itself for numbers.
func Measure(value any) (float64, string, bool) {
	switch v := value.(type) {
	case string:
		return float64(utf8.RuneCountInString(v)), "characters", true
	case []any:
		return float64(len(v)), "items", true
	case map[string]any:
		return float64(len(v)), "entries", true
	}
	if n, ok := toFloat(value); ok {
		return n, "", true
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return float64(rv.Len()), "items", true
	}
	return 0, "", false
}

// MatchesType reports whether value has the named type.
func MatchesType(typ string, value any) bool {
	switch typ {
	case TypeString:
		_, ok := value.(string)
		return ok
	case TypeNumber:
		_, ok := toFloat(value)
		return ok
	case TypeInteger:
		n, ok := toFloat(value)
		return ok && n == math.Trunc(n)
	case TypeBoolean:
		_, ok := value.(bool)
		return ok
	case TypeArray:
		if value == nil {
			return false
		}
		kind := reflect.ValueOf(value).Kind()
		return kind == reflect.Slice || kind == reflect.Array
	case TypeObject:
		_, ok := value.(map[string]any)
		return ok
	case TypeEmail:
		str, ok := value.(string)
		if !ok || str == "" {
			return false
		}
		addr, err := mail.ParseAddress(str)
		return err == nil && addr.Address == str
	case TypeURL:
		str, ok := value.(string)
		if !ok {
			return false
		}
		parsed, err := url.ParseRequestURI(str)
		return err == nil && parsed.Scheme != "" && parsed.Host != ""
	default:
		return true
	}
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}

func looseEqual(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	return reflect.DeepEqual(a, b)
}

func describeBound(bound float64, unit string) string {
	text := fmt.Sprintf("%g", bound)
	if unit == "" {
		return text
	}
	return text + " " + unit
}

func describeEnum(values []any) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, ", ")
}
