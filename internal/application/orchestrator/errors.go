package orchestrator

import (
	"errors"
	"fmt"
)

// ErrUnknownOrganization is returned for a request naming no registered
// organization template.
var ErrUnknownOrganization = errors.New("unknown organization")

// MissingConfigError reports configuration a deployment needs but the
// chain's static data or the request does not provide. It is always
// returned before any transaction is sent.
type MissingConfigError struct {
	Kind string
	Name string
	Err  error
}

func (e *MissingConfigError) Error() string {
	msg := fmt.Sprintf("missing %s configuration", e.Kind)
	if e.Name != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Name)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s (%v)", msg, e.Err)
	}
	return msg
}

func (e *MissingConfigError) Unwrap() error {
	return e.Err
}

// StepError is a failure of one deployment step. The cause is kept as is;
// its message is what the deployment status reports.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %q failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
