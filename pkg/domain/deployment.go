package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// StepStatus is the per-step status of a deployment sequence.
type StepStatus string

const (
	StepStatusIdle    StepStatus = "idle"
	StepStatusPending StepStatus = "pending"
	StepStatusSuccess StepStatus = "success"
	StepStatusError   StepStatus = "error"
)

// DependencyKind distinguishes contract deployments from function calls.
type DependencyKind string

const (
	DependencyDeployable   DependencyKind = "deployable"
	DependencyFunctionCall DependencyKind = "function_call"
)

// Dependency is a contract that must be deployed, or a call that must be made,
// before the governance instance can be constituted.
type Dependency struct {
	Name string         `json:"name"`
	Kind DependencyKind `json:"kind"`

	// Deployable: creation bytecode (or a name resolved from the chain's static
	// data) and ABI-encoded constructor arguments.
	Bytecode        []byte `json:"bytecode,omitempty"`
	BytecodeRef     string `json:"bytecodeRef,omitempty"`
	ConstructorArgs []byte `json:"constructorArgs,omitempty"`

	// Function call: target and call data.
	Target   common.Address `json:"target,omitempty"`
	CallData []byte         `json:"callData,omitempty"`

	// Ownable dependencies hand ownership to the new Powers contract.
	Ownable bool `json:"ownable"`
}

// Receipt is the subset of a transaction receipt the sequencer relies on.
type Receipt struct {
	TxHash          common.Hash     `json:"txHash"`
	ContractAddress *common.Address `json:"contractAddress,omitempty"`
	BlockNumber     uint64          `json:"blockNumber"`
	Status          uint64          `json:"status"`
	GasUsed         uint64          `json:"gasUsed"`
}

// NamedStatus is the status of one named step.
type NamedStatus struct {
	Name   string     `json:"name"`
	Status StepStatus `json:"status"`
}

// DeployStatus is the ephemeral progress record of one deployment session.
type DeployStatus struct {
	PowersCreate      StepStatus      `json:"powersCreate"`
	Dependencies      []NamedStatus   `json:"dependencies"`
	FinalTransactions []NamedStatus   `json:"finalTransactions"`
	Status            StepStatus      `json:"status"`
	Error             string          `json:"error,omitempty"`
	PowersAddress     *common.Address `json:"powersAddress,omitempty"`
}

// StepStatus returns the status of the named dependency or final
// transaction. Any other name refers to the Powers deployment itself.
func (d *DeployStatus) StepStatus(name string) StepStatus {
	for _, s := range d.Dependencies {
		if s.Name == name {
			return s.Status
		}
	}
	for _, s := range d.FinalTransactions {
		if s.Name == name {
			return s.Status
		}
	}
	return d.PowersCreate
}

// Clone returns a deep copy safe to hand to other goroutines.
func (d *DeployStatus) Clone() *DeployStatus {
	if d == nil {
		return nil
	}
	out := *d
	out.Dependencies = append([]NamedStatus(nil), d.Dependencies...)
	out.FinalTransactions = append([]NamedStatus(nil), d.FinalTransactions...)
	if d.PowersAddress != nil {
		addr := *d.PowersAddress
		out.PowersAddress = &addr
	}
	return &out
}

// DeploymentRequest is what a caller submits to start a deployment.
type DeploymentRequest struct {
	OrganizationID string            `json:"organizationId" binding:"required"`
	ChainID        uint64            `json:"chainId" binding:"required"`
	FormData       map[string]string `json:"formData"`
	Local          bool              `json:"local"`
}

// StaticData is the per-chain JSON document parametrizing deployments.
type StaticData struct {
	Powers    string                    `json:"powers"`
	Mandates  map[string]common.Address `json:"mandates"`
	Bytecodes map[string]string         `json:"bytecodes,omitempty"`
}

// DeploymentState is the persisted record of a deployment session.
type DeploymentState struct {
	DeploymentID string             `json:"deploymentId"`
	Request      DeploymentRequest  `json:"request"`
	StaticData   StaticData         `json:"staticData"`
	Status       *DeployStatus      `json:"status"`
	Receipts     map[string]Receipt `json:"receipts,omitempty"`
	SubmittedAt  time.Time          `json:"submittedAt"`
	StartedAt    *time.Time         `json:"startedAt,omitempty"`
	CompletedAt  *time.Time         `json:"completedAt,omitempty"`
}

// Terminal reports whether the deployment has finished, successfully or not.
func (s *DeploymentState) Terminal() bool {
	if s.Status == nil {
		return false
	}
	return s.Status.Status == StepStatusSuccess || s.Status.Status == StepStatusError
}
