// Package forms implements the draft form model: typed field descriptors with
// validation rules and dependent-field reset behavior, consumed by a generic
// form container. Field error messages are i18n keys resolved by the caller.
package forms

import (
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ErrInvalid is returned by Submit when validation fails. Per-field messages
// are available via Errors.
var ErrInvalid = errors.New("form validation failed")

// Values holds draft field values keyed by field name.
type Values map[string]string

// Field describes one form field: its name, label key, and validation rules.
type Field struct {
	Name     string
	LabelKey string
	Rules    []validation.Rule
}

// ResetRule clears a dependent field when its trigger field changes.
// If ToggleDisable is set, the target's disabled state is also flipped
// (used for the "no end date" control).
type ResetRule struct {
	Trigger       string
	Target        string
	When          func(v Values) bool
	ToggleDisable bool
}

// Schema is the full field set for one form kind.
type Schema struct {
	Name   string
	Fields []Field
	Resets []ResetRule
}

// FieldNames returns the declared field names in order.
func (s Schema) FieldNames() []string {
	out := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		out[i] = f.Name
	}
	return out
}

// Form is one modal's transient draft state. It is created when the modal
// opens, mutated on every change, and discarded on close or successful submit.
// Not safe for concurrent use; a form belongs to a single modal instance.
type Form struct {
	schema   Schema
	defaults Values
	values   Values
	errors   map[string]string
	disabled map[string]bool
}

// New creates a form from a schema, pre-populated with defaults (which may be
// nil for create flows).
func New(schema Schema, defaults Values) *Form {
	f := &Form{
		schema:   schema,
		defaults: defaults,
	}
	f.Reset()
	return f
}

// Reset restores every field to its default value, re-enables disabled
// fields, and clears all errors.
func (f *Form) Reset() {
	f.values = make(Values, len(f.schema.Fields))
	f.errors = make(map[string]string)
	f.disabled = make(map[string]bool)
	for _, field := range f.schema.Fields {
		f.values[field.Name] = f.defaults[field.Name]
	}
}

// Set stores a field value and applies any dependent-field reset rules
// triggered by the change.
func (f *Form) Set(name, value string) {
	f.values[name] = value
	delete(f.errors, name)

	for _, rule := range f.schema.Resets {
		if rule.Trigger != name {
			continue
		}
		if rule.When != nil && !rule.When(f.values) {
			continue
		}
		f.values[rule.Target] = ""
		delete(f.errors, rule.Target)
		if rule.ToggleDisable {
			f.disabled[rule.Target] = !f.disabled[rule.Target]
		}
	}
}

// Apply ingests a complete value set at once. Declared fields land first in
// schema order, control keys that are not fields (toggles) after them, and
// every reset rule is evaluated once against the final values. Set models a
// single interactive edit and fires rules per change; a value map carries no
// edit sequence, so Apply defers rule evaluation until all values are in
// place and its outcome never depends on map iteration order. A rule with
// ToggleDisable sets the target's disabled state from its condition rather
// than flipping it.
func (f *Form) Apply(values Values) {
	seen := make(map[string]bool, len(values))
	for _, field := range f.schema.Fields {
		if v, ok := values[field.Name]; ok {
			f.values[field.Name] = v
			delete(f.errors, field.Name)
			seen[field.Name] = true
		}
	}
	for k, v := range values {
		if !seen[k] {
			f.values[k] = v
		}
	}

	for _, rule := range f.schema.Resets {
		active := rule.When == nil || rule.When(f.values)
		if rule.ToggleDisable {
			f.disabled[rule.Target] = active
		}
		if active {
			f.values[rule.Target] = ""
			delete(f.errors, rule.Target)
		}
	}
}

// Value returns the current draft value of a field.
func (f *Form) Value(name string) string {
	return f.values[name]
}

// Values returns a copy of the current draft values.
func (f *Form) Values() Values {
	out := make(Values, len(f.values))
	for k, v := range f.values {
		out[k] = v
	}
	return out
}

// Disabled reports whether a field is currently disabled.
func (f *Form) Disabled(name string) bool {
	return f.disabled[name]
}

// Validate runs every field's rules and records per-field errors.
// Disabled fields are skipped. Returns true when the form is valid.
func (f *Form) Validate() bool {
	f.errors = make(map[string]string)
	for _, field := range f.schema.Fields {
		if f.disabled[field.Name] {
			continue
		}
		if err := validation.Validate(f.values[field.Name], field.Rules...); err != nil {
			f.errors[field.Name] = err.Error()
		}
	}
	return len(f.errors) == 0
}

// Errors returns the per-field error messages from the last Validate call.
func (f *Form) Errors() map[string]string {
	return f.errors
}

// Submit validates the form and invokes handler only when every rule passes.
// An invalid form returns ErrInvalid without calling the handler, so a
// partially valid draft is never submitted.
func (f *Form) Submit(handler func(Values) error) error {
	if !f.Validate() {
		return fmt.Errorf("%w: %d field(s)", ErrInvalid, len(f.errors))
	}
	return handler(f.Values())
}
