package domain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// NoMandate is the sentinel dependency reference meaning "no dependency".
const NoMandate uint16 = 0

// Conditions are the checks a mandate enforces before it can be fulfilled.
type Conditions struct {
	AllowedRole       *big.Int `json:"allowedRole" yaml:"allowedRole"`
	NeedFulfilled     uint16   `json:"needFulfilled" yaml:"needFulfilled"`
	NeedNotFulfilled  uint16   `json:"needNotFulfilled" yaml:"needNotFulfilled"`
	Quorum            uint8    `json:"quorum" yaml:"quorum"`
	SucceedAt         uint8    `json:"succeedAt" yaml:"succeedAt"`
	VotingPeriod      uint32   `json:"votingPeriod" yaml:"votingPeriod"`
	Timelock          uint32   `json:"timelock" yaml:"timelock"`
	ThrottleExecution uint32   `json:"throttleExecution" yaml:"throttleExecution"`
}

// Param describes one input parameter of a mandate.
type Param struct {
	VarName  string `json:"varName" yaml:"varName"`
	DataType string `json:"dataType" yaml:"dataType"`
}

// Mandate is a governance rule registered on a Powers contract.
type Mandate struct {
	Index       uint16         `json:"index" yaml:"index"`
	Name        string         `json:"name,omitempty" yaml:"name,omitempty"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Target      common.Address `json:"target" yaml:"target"`
	Active      bool           `json:"active" yaml:"active"`
	Conditions  Conditions     `json:"conditions" yaml:"conditions"`
	Params      []Param        `json:"params,omitempty" yaml:"params,omitempty"`
	Actions     []Action       `json:"actions,omitempty" yaml:"actions,omitempty"`
}

// ID returns the decimal string form of the mandate index, used as graph node id.
func (m Mandate) ID() string {
	return fmt.Sprintf("%d", m.Index)
}

// DependencyRefs returns the non-sentinel dependency references of the mandate.
func (m Mandate) DependencyRefs() []uint16 {
	var refs []uint16
	if m.Conditions.NeedFulfilled != NoMandate {
		refs = append(refs, m.Conditions.NeedFulfilled)
	}
	if m.Conditions.NeedNotFulfilled != NoMandate && m.Conditions.NeedNotFulfilled != m.Conditions.NeedFulfilled {
		refs = append(refs, m.Conditions.NeedNotFulfilled)
	}
	return refs
}

// DataTypes returns the ABI type list of the mandate's parameters.
func (m Mandate) DataTypes() []string {
	types := make([]string, len(m.Params))
	for i, p := range m.Params {
		types[i] = p.DataType
	}
	return types
}

// LatestFulfilled returns the highest fulfilledAt block among the mandate's actions.
func (m Mandate) LatestFulfilled() uint64 {
	var latest uint64
	for _, a := range m.Actions {
		if a.FulfilledAt > latest {
			latest = a.FulfilledAt
		}
	}
	return latest
}

// ParseParam splits a "type name" declaration such as "address[] Targets".
func ParseParam(decl string) Param {
	fields := strings.Fields(decl)
	switch len(fields) {
	case 0:
		return Param{}
	case 1:
		return Param{DataType: fields[0]}
	default:
		return Param{DataType: fields[0], VarName: strings.Join(fields[1:], " ")}
	}
}

// MandateInitData is one entry of the constitute payload.
type MandateInitData struct {
	NameDescription string         `json:"nameDescription"`
	TargetMandate   common.Address `json:"targetMandate"`
	Config          []byte         `json:"config"`
	Conditions      Conditions     `json:"conditions"`
}
