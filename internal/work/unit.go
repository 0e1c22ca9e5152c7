package work

import (
	"fmt"
	"strings"
)

// Unit is one field-validation task: a single structured field of a single
// record, paired with the unstructured evidence it should be checked against.
// Units are value objects and never mutated after construction.
type Unit struct {
	RecordID string `json:"record_id" mapstructure:"record_id"`
	Field    string `json:"field" mapstructure:"field"`
	Value    string `json:"value" mapstructure:"value"`
	Evidence string `json:"evidence" mapstructure:"evidence"`
	// Template selects a prompt template by name. Empty means the default.
	Template string `json:"template,omitempty" mapstructure:"template"`
}

// InputError marks a malformed unit. It is fatal to the unit only: the runner
// resolves such units as Unsure and keeps going.
type InputError struct {
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("malformed work unit: %s", e.Reason)
}

// Validate checks that the unit identifies a record and a field. Empty value
// or evidence is legal input (the precheck resolves it), a missing identity is
// not.
func (u Unit) Validate() error {
	if strings.TrimSpace(u.RecordID) == "" {
		return &InputError{Reason: "record id is required"}
	}
	if strings.TrimSpace(u.Field) == "" {
		return &InputError{Reason: "field name is required"}
	}
	return nil
}
