package form

import (
	"fmt"

	"github.com/goliatone/go-form2/pkg/path"
)

// Status is the validation state of a field.
type Status int

const (
	// StatusUnvalidated is the state of a fresh field and of any field whose
	// value changed since its last validation.
	StatusUnvalidated Status = iota
	// StatusValidating indicates an async validator is running.
	StatusValidating
	// StatusValid indicates the rule chain passed for the current value.
	StatusValid
	// StatusInvalid indicates a rule failed; FieldMeta.Error holds the message.
	StatusInvalid
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusUnvalidated:
		return "unvalidated"
	case StatusValidating:
		return "validating"
	case StatusValid:
		return "valid"
	case StatusInvalid:
		return "invalid"
	default:
		return fmt.Sprintf("status(%d)", s)
	}
}

// Trigger selects which events validate a field. Triggers combine as flags.
type Trigger uint8

const (
	OnChange Trigger = 1 << iota
	OnBlur
	// OnSubmit alone defers validation to ValidateAll and Submit.
	OnSubmit
)

// Has reports whether every flag in other is set.
func (t Trigger) Has(other Trigger) bool {
	return t&other == other
}

// ParseTrigger maps a trigger name ("change", "blur", "submit") to its flag.
func ParseTrigger(name string) (Trigger, error) {
	switch name {
	case "change", "onChange":
		return OnChange, nil
	case "blur", "onBlur":
		return OnBlur, nil
	case "submit", "onSubmit":
		return OnSubmit, nil
	default:
		return 0, fmt.Errorf("form: unknown validate trigger %q", name)
	}
}

// FieldMeta is a snapshot of one field's descriptor.
type FieldMeta struct {
	ID         int
	Path       path.Path
	Name       string
	Label      string
	Value      any
	Error      string
	Status     Status
	Dirty      bool
	Touched    bool
	Generation uint64
}

// FieldEvent is delivered to subscribers whenever a field's value or
// validation state changes. Removed is set when the field was released.
type FieldEvent struct {
	Meta    FieldMeta
	Removed bool
}

// FieldError pairs a field with its validation message.
type FieldError struct {
	Path    path.Path
	Name    string
	Message string
}

// Outcome is the result of Submit: either success with the full value
// snapshot, or failure with the field errors in registration order.
type Outcome struct {
	Values map[string]any
	Errors []FieldError
}

// OK reports whether every field validated.
func (o Outcome) OK() bool {
	return len(o.Errors) == 0
}

// ErrorMap returns the errors keyed by dotted path.
func (o Outcome) ErrorMap() map[string]string {
	if len(o.Errors) == 0 {
		return nil
	}
	out := make(map[string]string, len(o.Errors))
	for _, fe := range o.Errors {
		out[fe.Name] = fe.Message
	}
	return out
}
