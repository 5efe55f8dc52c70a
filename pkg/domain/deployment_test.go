package domain

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func TestDeployStatusStepStatus(t *testing.T) {
	s := &DeployStatus{
		PowersCreate:      StepStatusSuccess,
		Dependencies:      []NamedStatus{{Name: "VotesToken", Status: StepStatusPending}},
		FinalTransactions: []NamedStatus{{Name: "Constitute Powers", Status: StepStatusError}},
	}

	assert.Equal(t, StepStatusPending, s.StepStatus("VotesToken"))
	assert.Equal(t, StepStatusError, s.StepStatus("Constitute Powers"))
	assert.Equal(t, StepStatusSuccess, s.StepStatus("Deploy Powers"))
}

func TestDeployStatusCloneIsDeep(t *testing.T) {
	addr := common.HexToAddress("0x01")
	s := &DeployStatus{
		Dependencies:  []NamedStatus{{Name: "A", Status: StepStatusIdle}},
		PowersAddress: &addr,
	}

	c := s.Clone()
	c.Dependencies[0].Status = StepStatusSuccess
	*c.PowersAddress = common.HexToAddress("0x02")

	assert.Equal(t, StepStatusIdle, s.Dependencies[0].Status)
	assert.Equal(t, addr, *s.PowersAddress)
	assert.Nil(t, (*DeployStatus)(nil).Clone())
}

func TestDeploymentStateTerminal(t *testing.T) {
	assert.False(t, (&DeploymentState{}).Terminal())
	assert.False(t, (&DeploymentState{Status: &DeployStatus{Status: StepStatusPending}}).Terminal())
	assert.True(t, (&DeploymentState{Status: &DeployStatus{Status: StepStatusSuccess}}).Terminal())
	assert.True(t, (&DeploymentState{Status: &DeployStatus{Status: StepStatusError}}).Terminal())
}

func TestLookupChain(t *testing.T) {
	assert.False(t, LookupChain(ChainMantleSepolia).IndexingLag)
	assert.True(t, LookupChain(ChainSepolia).IndexingLag)
	assert.EqualValues(t, 1, LookupChain(ChainFoundry).Confirmations)

	unknown := LookupChain(1)
	assert.Equal(t, "Unknown", unknown.Name)
	assert.EqualValues(t, 2, unknown.Confirmations)
	assert.Len(t, KnownChains(), 5)
}
