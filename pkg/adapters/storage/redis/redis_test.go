package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/powers-protocol/powers/pkg/adapters/storage/redis"
	"github.com/powers-protocol/powers/pkg/domain"
	"github.com/powers-protocol/powers/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newStorage(t *testing.T, deploymentTTL, layoutTTL time.Duration) (*redis.Storage, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return redis.NewStorage(client, deploymentTTL, layoutTTL, zap.NewNop()), mr
}

func TestStorage_DeploymentContract(t *testing.T) {
	store, _ := newStorage(t, time.Hour, 0)
	ports.RunDeploymentStoreContract(t, store)
}

func TestStorage_LayoutContract(t *testing.T) {
	store, _ := newStorage(t, time.Hour, 0)
	ports.RunLayoutStoreContract(t, store)
}

func TestStorage_DeploymentTTL(t *testing.T) {
	store, mr := newStorage(t, time.Minute, 0)
	ctx := context.Background()

	require.NoError(t, store.SaveDeployment(ctx, &domain.DeploymentState{
		DeploymentID: "dep-ttl",
		Status:       &domain.DeployStatus{Status: domain.StepStatusPending},
	}))
	assert.Equal(t, time.Minute, mr.TTL("powers:deployment:dep-ttl"))

	mr.FastForward(2 * time.Minute)

	_, err := store.GetDeployment(ctx, "dep-ttl")
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestStorage_LayoutKeyIsLowercase(t *testing.T) {
	store, mr := newStorage(t, time.Minute, 0)
	ctx := context.Background()

	require.NoError(t, store.SaveLayout(ctx, &domain.LayoutRecord{
		Address: "0xABCDEF0000000000000000000000000000000002",
		Nodes:   map[string]domain.Position{"1": {X: 1, Y: 2}},
	}))

	assert.True(t, mr.Exists("powers:layout:0xabcdef0000000000000000000000000000000002"))
	assert.Equal(t, time.Duration(0), mr.TTL("powers:layout:0xabcdef0000000000000000000000000000000002"))
}
