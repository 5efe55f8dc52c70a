package ports

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/powers-protocol/powers/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunDeploymentStoreContract verifies that a DeploymentStore implementation
// adheres to the interface contract.
func RunDeploymentStoreContract(t *testing.T, store DeploymentStore) {
	ctx := context.Background()
	deploymentID := "contract-test-" + time.Now().Format("20060102150405")
	powers := common.HexToAddress("0x00000000000000000000000000000000000000c1")
	token := common.HexToAddress("0x00000000000000000000000000000000000000c2")

	t.Run("Save and Get", func(t *testing.T) {
		state := &domain.DeploymentState{
			DeploymentID: deploymentID,
			Request: domain.DeploymentRequest{
				OrganizationID: "powers-101",
				ChainID:        domain.ChainFoundry,
				FormData:       map[string]string{"quorum": "20"},
			},
			Status: &domain.DeployStatus{
				PowersCreate:  domain.StepStatusSuccess,
				Dependencies:  []domain.NamedStatus{{Name: "VotesToken", Status: domain.StepStatusSuccess}},
				Status:        domain.StepStatusPending,
				PowersAddress: &powers,
			},
			Receipts: map[string]domain.Receipt{
				"VotesToken": {TxHash: common.HexToHash("0x01"), ContractAddress: &token, BlockNumber: 7, Status: 1},
			},
			SubmittedAt: time.Now().UTC().Truncate(time.Second),
		}

		require.NoError(t, store.SaveDeployment(ctx, state))

		loaded, err := store.GetDeployment(ctx, deploymentID)
		require.NoError(t, err)
		assert.Equal(t, "powers-101", loaded.Request.OrganizationID)
		assert.Equal(t, domain.StepStatusPending, loaded.Status.Status)
		assert.Equal(t, powers, *loaded.Status.PowersAddress)
		assert.Equal(t, token, *loaded.Receipts["VotesToken"].ContractAddress)
		assert.True(t, state.SubmittedAt.Equal(loaded.SubmittedAt))

		// the store must not alias caller state
		loaded.Status.Status = domain.StepStatusError
		again, err := store.GetDeployment(ctx, deploymentID)
		require.NoError(t, err)
		assert.Equal(t, domain.StepStatusPending, again.Status.Status)
	})

	t.Run("Get Non-Existent", func(t *testing.T) {
		_, err := store.GetDeployment(ctx, "missing-"+deploymentID)
		assert.True(t, errors.Is(err, ErrNotFound), "expected ErrNotFound, got %v", err)
	})

	t.Run("List", func(t *testing.T) {
		ids, err := store.ListDeployments(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, deploymentID)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.DeleteDeployment(ctx, deploymentID))
		_, err := store.GetDeployment(ctx, deploymentID)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, store.DeleteDeployment(ctx, deploymentID), "deleting twice is not an error")
	})

	t.Run("Reject Empty ID", func(t *testing.T) {
		assert.Error(t, store.SaveDeployment(ctx, &domain.DeploymentState{}))
	})
}

// RunLayoutStoreContract verifies that a LayoutStore implementation adheres
// to the interface contract.
func RunLayoutStoreContract(t *testing.T, store LayoutStore) {
	ctx := context.Background()
	address := "0xAbCdEf0000000000000000000000000000000001"

	t.Run("Save and Get", func(t *testing.T) {
		record := &domain.LayoutRecord{
			Address:   address,
			Nodes:     map[string]domain.Position{"1": {X: 0, Y: 0}, "2": {X: 500, Y: 450.5}},
			Viewport:  &domain.Viewport{X: -10, Y: 20, Zoom: 0.75},
			UpdatedAt: time.Now().UTC().Truncate(time.Second),
		}
		require.NoError(t, store.SaveLayout(ctx, record))

		loaded, err := store.GetLayout(ctx, address)
		require.NoError(t, err)
		assert.Equal(t, record.Nodes, loaded.Nodes)
		assert.Equal(t, *record.Viewport, *loaded.Viewport)
	})

	t.Run("Address Is Case Insensitive", func(t *testing.T) {
		loaded, err := store.GetLayout(ctx, "0xabcdef0000000000000000000000000000000001")
		require.NoError(t, err)
		assert.Len(t, loaded.Nodes, 2)
	})

	t.Run("Get Non-Existent", func(t *testing.T) {
		_, err := store.GetLayout(ctx, "0x0000000000000000000000000000000000000bad")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.DeleteLayout(ctx, address))
		_, err := store.GetLayout(ctx, address)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Reject Empty Address", func(t *testing.T) {
		assert.Error(t, store.SaveLayout(ctx, &domain.LayoutRecord{Nodes: map[string]domain.Position{"1": {}}}))
	})
}
