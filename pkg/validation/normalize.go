package validation

import (
	"fmt"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Normalizer rewrites a value before it is written into the form.
type Normalizer func(value any) any

// Built-in normalizer names accepted by NormalizerByName.
const (
	NormalizeTrim      = "trim"
	NormalizeLower     = "lower"
	NormalizeUpper     = "upper"
	NormalizeStripHTML = "strip-html"
)

var stripPolicy = bluemonday.StrictPolicy()

// Trim removes surrounding whitespace from strings.
func Trim(value any) any {
	if str, ok := value.(string); ok {
		return strings.TrimSpace(str)
	}
	return value
}

// Lower lowercases strings.
func Lower(value any) any {
	if str, ok := value.(string); ok {
		return strings.ToLower(str)
	}
	return value
}

// Upper uppercases strings.
func Upper(value any) any {
	if str, ok := value.(string); ok {
		return strings.ToUpper(str)
	}
	return value
}

// StripHTML removes every tag from strings, keeping the text content.
func StripHTML(value any) any {
	str, ok := value.(string)
	if !ok {
		return value
	}
	// bluemonday escapes the text it keeps; the form stores plain text.
	return html.UnescapeString(stripPolicy.Sanitize(str))
}

// Chain applies normalizers in order. Nil entries are skipped.
func Chain(normalizers ...Normalizer) Normalizer {
	active := make([]Normalizer, 0, len(normalizers))
	for _, n := range normalizers {
		if n != nil {
			active = append(active, n)
		}
	}
	if len(active) == 0 {
		return nil
	}
	return func(value any) any {
		for _, n := range active {
			value = n(value)
		}
		return value
	}
}

// NormalizerByName resolves a built-in normalizer.
func NormalizerByName(name string) (Normalizer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case NormalizeTrim:
		return Trim, nil
	case NormalizeLower:
		return Lower, nil
	case NormalizeUpper:
		return Upper, nil
	case NormalizeStripHTML:
		return StripHTML, nil
	default:
		return nil, fmt.Errorf("validation: unknown normalizer %q", name)
	}
}
