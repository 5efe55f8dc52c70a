package graph

import (
	"errors"
	"fmt"

	"github.com/powers-protocol/powers/pkg/domain"
)

// Validator checks a mandate set for references the graph cannot draw.
// Problems are advisory: layout proceeds regardless.
type Validator struct{}

// NewValidator creates a new mandate graph validator
func NewValidator() *Validator {
	return &Validator{}
}

// Issues lists every problem found, in input order.
func (v *Validator) Issues(mandates []domain.Mandate) []string {
	var issues []string

	seen := make(map[uint16]bool, len(mandates))
	for _, m := range mandates {
		if m.Index == domain.NoMandate {
			issues = append(issues, "mandate index 0 is reserved")
			continue
		}
		if seen[m.Index] {
			issues = append(issues, fmt.Sprintf("duplicate mandate index: %d", m.Index))
		}
		seen[m.Index] = true
	}

	for _, m := range mandates {
		issues = append(issues, v.checkRef(m, "needFulfilled", m.Conditions.NeedFulfilled, seen)...)
		issues = append(issues, v.checkRef(m, "needNotFulfilled", m.Conditions.NeedNotFulfilled, seen)...)
	}
	return issues
}

// Validate returns all issues joined into one error, or nil.
func (v *Validator) Validate(mandates []domain.Mandate) error {
	var errs []error
	for _, issue := range v.Issues(mandates) {
		errs = append(errs, errors.New(issue))
	}
	return errors.Join(errs...)
}

func (v *Validator) checkRef(m domain.Mandate, condition string, ref uint16, known map[uint16]bool) []string {
	if ref == domain.NoMandate {
		return nil
	}
	if ref == m.Index {
		return []string{fmt.Sprintf("mandate %d references itself in %s", m.Index, condition)}
	}
	if !known[ref] {
		return []string{fmt.Sprintf("mandate %d references unknown mandate %d in %s", m.Index, ref, condition)}
	}
	return nil
}
