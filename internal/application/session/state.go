package session

import (
	"github.com/powers-protocol/powers/pkg/domain"
)

// Selection is the action being drafted or inspected.
type Selection struct {
	MandateID   uint16 `json:"mandateId"`
	ActionID    string `json:"actionId,omitempty"`
	Caller      string `json:"caller,omitempty"`
	ParamValues []any  `json:"paramValues,omitempty"`
	CallData    string `json:"callData,omitempty"`
	Nonce       string `json:"nonce,omitempty"`
	Description string `json:"description,omitempty"`
	// UpToDate is false while ParamValues, Nonce or Description carry edits
	// not yet reflected in CallData and ActionID.
	UpToDate bool `json:"upToDate"`
}

// Action returns the selection as a domain action.
func (s Selection) Action() domain.Action {
	return domain.Action{
		ActionID:    s.ActionID,
		MandateID:   s.MandateID,
		Caller:      s.Caller,
		CallData:    s.CallData,
		Nonce:       s.Nonce,
		Description: s.Description,
	}
}

// State is the full session state.
type State struct {
	ChainID   uint64    `json:"chainId"`
	Powers    string    `json:"powers"`
	Selection Selection `json:"selection"`
	// Version increases with every reduced event.
	Version uint64 `json:"version"`
}

// Open reports whether the session is bound to a contract.
func (s State) Open() bool {
	return s.Powers != ""
}

// Event is a state transition. The set of events is closed.
type Event interface {
	apply(State) State
}

// Reduce returns the state that results from applying ev to s. s is never
// modified.
func Reduce(s State, ev Event) State {
	if ev == nil {
		return s
	}
	next := ev.apply(s.clone())
	next.Version = s.Version + 1
	return next
}

func (s State) clone() State {
	if s.Selection.ParamValues != nil {
		s.Selection.ParamValues = append([]any(nil), s.Selection.ParamValues...)
	}
	return s
}

// Opened binds the session to a contract and drops any selection.
type Opened struct {
	ChainID uint64
	Powers  string
}

func (e Opened) apply(State) State {
	return State{ChainID: e.ChainID, Powers: e.Powers}
}

// Cleared resets the session.
type Cleared struct{}

func (Cleared) apply(State) State {
	return State{}
}

// MandateSelected starts a fresh draft for a mandate. Reselecting the
// current mandate keeps the draft.
type MandateSelected struct {
	MandateID uint16
}

func (e MandateSelected) apply(s State) State {
	if s.Selection.MandateID == e.MandateID {
		return s
	}
	s.Selection = Selection{MandateID: e.MandateID}
	return s
}

// ActionLoaded replaces the selection with an existing action. Its
// parameters still need decoding from the calldata.
type ActionLoaded struct {
	Action domain.Action
}

func (e ActionLoaded) apply(s State) State {
	s.Selection = Selection{
		MandateID:   e.Action.MandateID,
		ActionID:    e.Action.ActionID,
		Caller:      e.Action.Caller,
		CallData:    e.Action.CallData,
		Nonce:       e.Action.Nonce,
		Description: e.Action.Description,
	}
	return s
}

// ParamsDecoded fills parameter values decoded from the selection's
// calldata.
type ParamsDecoded struct {
	Values []any
}

func (e ParamsDecoded) apply(s State) State {
	s.Selection.ParamValues = append([]any(nil), e.Values...)
	s.Selection.UpToDate = true
	return s
}

// ParamChanged sets one form input. The value list grows as needed.
type ParamChanged struct {
	Index int
	Value any
}

func (e ParamChanged) apply(s State) State {
	if e.Index < 0 {
		return s
	}
	for len(s.Selection.ParamValues) <= e.Index {
		s.Selection.ParamValues = append(s.Selection.ParamValues, nil)
	}
	s.Selection.ParamValues[e.Index] = e.Value
	s.Selection.UpToDate = false
	return s
}

// NonceChanged sets the nonce of the draft.
type NonceChanged struct {
	Nonce string
}

func (e NonceChanged) apply(s State) State {
	s.Selection.Nonce = e.Nonce
	s.Selection.UpToDate = false
	return s
}

// DescriptionChanged sets the description of the draft.
type DescriptionChanged struct {
	Description string
}

func (e DescriptionChanged) apply(s State) State {
	s.Selection.Description = e.Description
	s.Selection.UpToDate = false
	return s
}

// Prepared records the calldata and action id computed from the current
// inputs.
type Prepared struct {
	MandateID uint16
	Caller    string
	CallData  string
	ActionID  string
}

func (e Prepared) apply(s State) State {
	s.Selection.MandateID = e.MandateID
	s.Selection.Caller = e.Caller
	s.Selection.CallData = e.CallData
	s.Selection.ActionID = e.ActionID
	s.Selection.UpToDate = true
	return s
}
