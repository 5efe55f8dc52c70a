package organizations

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// FieldType selects the validator applied to a form field.
type FieldType string

const (
	FieldText       FieldType = "text"
	FieldAddress    FieldType = "address"
	FieldNumber     FieldType = "number"
	FieldPercentage FieldType = "percentage"
)

// Field is one input of the deployment form.
type Field struct {
	Name        string    `json:"name" yaml:"name"`
	Label       string    `json:"label" yaml:"label"`
	Placeholder string    `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
	Type        FieldType `json:"type" yaml:"type"`
	Required    bool      `json:"required" yaml:"required"`
	Min         int64     `json:"min,omitempty" yaml:"min,omitempty"`
	Max         int64     `json:"max,omitempty" yaml:"max,omitempty"`
}

// ValidationError describes an invalid form value.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks value against the field's type and bounds.
func (f Field) Validate(value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		if f.Required {
			return ValidateRequired(value, f.Name)
		}
		return nil
	}
	switch f.Type {
	case FieldAddress:
		return ValidateAddress(value, f.Name)
	case FieldPercentage:
		return ValidatePercentage(value, f.Name)
	case FieldNumber:
		if f.Min != 0 || f.Max != 0 {
			return ValidateRange(value, f.Min, f.Max, f.Name)
		}
		return ValidatePositiveInteger(value, f.Name)
	}
	return nil
}

// ValidateFields checks every field of an organization against formData
// and returns the first failure.
func ValidateFields(fields []Field, formData map[string]string) error {
	for _, f := range fields {
		if err := f.Validate(formData[f.Name]); err != nil {
			return err
		}
	}
	return nil
}

// ValidateRequired fails on an empty value.
func ValidateRequired(value, field string) error {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{Field: field, Message: field + " is required"}
	}
	return nil
}

// ValidateAddress requires a 0x-prefixed 20-byte hex address.
func ValidateAddress(value, field string) error {
	if err := ValidateRequired(value, field); err != nil {
		return err
	}
	if !strings.HasPrefix(value, "0x") || !common.IsHexAddress(value) {
		return &ValidationError{Field: field, Message: "Invalid Ethereum address format"}
	}
	return nil
}

// ValidatePercentage requires a number between 0 and 100.
func ValidatePercentage(value, field string) error {
	if err := ValidateRequired(value, field); err != nil {
		return err
	}
	n, err := strconv.ParseFloat(value, 64)
	if err != nil || n < 0 || n > 100 {
		return &ValidationError{Field: field, Message: "Value must be between 0 and 100"}
	}
	return nil
}

// ValidatePositiveInteger requires an integer greater than zero.
func ValidatePositiveInteger(value, field string) error {
	if err := ValidateRequired(value, field); err != nil {
		return err
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil || n <= 0 {
		return &ValidationError{Field: field, Message: "Value must be a positive integer"}
	}
	return nil
}

// ValidateRange requires an integer within [lo, hi].
func ValidateRange(value string, lo, hi int64, field string) error {
	if err := ValidateRequired(value, field); err != nil {
		return err
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil || n < lo || n > hi {
		return &ValidationError{Field: field, Message: fmt.Sprintf("Value must be between %d and %d", lo, hi)}
	}
	return nil
}
