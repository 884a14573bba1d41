// Package validate collects field-level input violations. Checks never stop
// at the first problem; callers get every violated field at once.
package validate

import (
	"fmt"
	"strings"
)

// Violation names one invalid input field.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

// Violations accumulates problems across all fields of an input.
type Violations []Violation

// Require records a violation when value is blank.
func (v *Violations) Require(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.Add(field, "is required")
	}
}

// OneOf records a violation when value is set but not among allowed.
func (v *Violations) OneOf(field, value string, allowed ...string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	for _, candidate := range allowed {
		if value == candidate {
			return
		}
	}
	v.Add(field, fmt.Sprintf("must be one of %s", strings.Join(allowed, ", ")))
}

// Min records a violation when value is below min.
func (v *Violations) Min(field string, value, min int) {
	if value < min {
		v.Add(field, fmt.Sprintf("must be at least %d", min))
	}
}

// Add records an arbitrary violation.
func (v *Violations) Add(field, message string) {
	*v = append(*v, Violation{Field: field, Message: message})
}
