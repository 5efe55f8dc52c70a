package domain

import (
	"fmt"
	"strings"
)

// ActionState mirrors the on-chain lifecycle enum of an action.
type ActionState uint8

const (
	ActionStateNonExistent ActionState = iota
	ActionStateProposed
	ActionStateCancelled
	ActionStateActiveVote
	ActionStateDefeated
	ActionStateSucceeded
	ActionStateRequested
	ActionStateFulfilled
)

var actionStateNames = [...]string{
	"NonExistent",
	"Proposed",
	"Cancelled",
	"ActiveVote",
	"Defeated",
	"Succeeded",
	"Requested",
	"Fulfilled",
}

func (s ActionState) String() string {
	if int(s) < len(actionStateNames) {
		return actionStateNames[s]
	}
	return fmt.Sprintf("ActionState(%d)", uint8(s))
}

// MarshalText encodes the state by name.
func (s ActionState) MarshalText() ([]byte, error) {
	if int(s) >= len(actionStateNames) {
		return nil, fmt.Errorf("unknown action state: %d", uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText accepts a state name, case-insensitively.
func (s *ActionState) UnmarshalText(text []byte) error {
	for i, name := range actionStateNames {
		if strings.EqualFold(name, string(text)) {
			*s = ActionState(i)
			return nil
		}
	}
	return fmt.Errorf("unknown action state: %q", string(text))
}

// Action is one invocation attempt of a mandate.
type Action struct {
	ActionID    string      `json:"actionId" yaml:"actionId"`
	MandateID   uint16      `json:"mandateId" yaml:"mandateId"`
	Caller      string      `json:"caller,omitempty" yaml:"caller,omitempty"`
	CallData    string      `json:"callData,omitempty" yaml:"callData,omitempty"`
	Nonce       string      `json:"nonce,omitempty" yaml:"nonce,omitempty"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	ProposedAt  uint64      `json:"proposedAt" yaml:"proposedAt"`
	RequestedAt uint64      `json:"requestedAt" yaml:"requestedAt"`
	FulfilledAt uint64      `json:"fulfilledAt" yaml:"fulfilledAt"`
	State       ActionState `json:"state" yaml:"state"`
}

// Fulfilled reports whether the action has been executed on chain.
func (a Action) Fulfilled() bool {
	return a.FulfilledAt > 0
}
