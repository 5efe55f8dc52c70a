package session

import (
	"testing"
	"time"

	"github.com/powers-protocol/powers/pkg/domain"
	"github.com/powers-protocol/powers/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryLifecycle(t *testing.T) {
	reg := NewRegistry(0, nil)

	id, state := reg.Create(domain.ChainSepolia, "0xabc")
	require.NotEmpty(t, id)
	assert.True(t, state.Open())

	store, err := reg.Get(id)
	require.NoError(t, err)
	store.Dispatch(MandateSelected{MandateID: 4})

	again, err := reg.Get(id)
	require.NoError(t, err)
	assert.Equal(t, uint16(4), again.State().Selection.MandateID)

	require.NoError(t, reg.Remove(id))
	assert.False(t, store.State().Open())
	_, err = reg.Get(id)
	assert.ErrorIs(t, err, ports.ErrNotFound)
	assert.ErrorIs(t, reg.Remove(id), ports.ErrNotFound)
}

func TestRegistryDropsIdleSessions(t *testing.T) {
	reg := NewRegistry(time.Minute, nil)
	now := time.Unix(1_700_000_000, 0)
	reg.now = func() time.Time { return now }

	stale, _ := reg.Create(domain.ChainFoundry, "0x01")
	now = now.Add(30 * time.Second)
	fresh, _ := reg.Create(domain.ChainFoundry, "0x02")

	now = now.Add(45 * time.Second)
	_, err := reg.Get(fresh)
	require.NoError(t, err)

	reg.Create(domain.ChainFoundry, "0x03")
	assert.Equal(t, 2, reg.Len())
	_, err = reg.Get(stale)
	assert.ErrorIs(t, err, ports.ErrNotFound)
}
