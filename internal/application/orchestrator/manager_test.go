package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/powers-protocol/powers/pkg/adapters/events/memory"
	storage "github.com/powers-protocol/powers/pkg/adapters/storage/memory"
	"github.com/powers-protocol/powers/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type eventLog struct {
	mu     sync.Mutex
	events []domain.Event
}

func (l *eventLog) handle(_ context.Context, e domain.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
	return nil
}

func (l *eventLog) types() []domain.EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.EventType
	for _, e := range l.events {
		out = append(out, e.Type)
	}
	return out
}

type harness struct {
	bus      *memory.EventBus
	store    *storage.Storage
	chain    *fakeChain
	metrics  *nopMetrics
	manager  *Manager
	executor *Executor
	log      *eventLog
	steps    *eventLog
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		bus:     memory.NewEventBus(zap.NewNop()),
		store:   storage.NewStorage(),
		chain:   newFakeChain(domain.ChainFoundry),
		metrics: &nopMetrics{},
		log:     &eventLog{},
		steps:   &eventLog{},
	}
	static := staticSource{data: map[uint64]*domain.StaticData{domain.ChainFoundry: foundryStatic()}}

	h.manager = NewManager(h.bus, h.store, static, h.metrics, NewValidator(), zap.NewNop(), time.Minute)
	h.executor = NewExecutor(ExecutorConfig{
		Storage:  h.store,
		EventBus: h.bus,
		Clients:  &fakeFactory{chain: h.chain},
		Metrics:  h.metrics,
		Logger:   zap.NewNop(),
	})

	require.NoError(t, h.bus.Subscribe(context.Background(), domain.TopicDeployments, h.log.handle))
	require.NoError(t, h.bus.Subscribe(context.Background(), domain.TopicSteps, h.steps.handle))
	t.Cleanup(func() {
		h.manager.Shutdown(context.Background())
		h.bus.Close()
	})
	return h
}

func TestSubmitStoresIdleStatus(t *testing.T) {
	h := newHarness(t)

	id, err := h.manager.Submit(context.Background(), powers101Request())
	require.NoError(t, err)
	require.NotEmpty(t, id)

	state, err := h.manager.GetStatus(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.StepStatusIdle, state.Status.Status)
	assert.Equal(t, domain.StepStatusIdle, state.Status.PowersCreate)
	assert.Nil(t, state.StartedAt)
	assert.Equal(t, "0x6080604052", state.StaticData.Powers)

	assert.Eventually(t, func() bool {
		types := h.log.types()
		return len(types) == 1 && types[0] == domain.EventTypeDeploymentRequested
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, h.manager.Active())
	assert.Empty(t, h.chain.Calls())
}

func TestSubmitMissingConfigSendsNothing(t *testing.T) {
	h := newHarness(t)

	req := powers101Request()
	req.ChainID = domain.ChainSepolia
	req.Local = false
	_, err := h.manager.Submit(context.Background(), req)

	var missing *MissingConfigError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "static data", missing.Kind)
	assert.Empty(t, h.chain.Calls())

	ids, err := h.store.ListDeployments(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.Equal(t, []string{string(domain.StepStatusError)}, h.metrics.submitted)
}

func TestSubmitValidationError(t *testing.T) {
	h := newHarness(t)

	req := powers101Request()
	req.OrganizationID = "does-not-exist"
	_, err := h.manager.Submit(context.Background(), req)
	assert.ErrorIs(t, err, ErrUnknownOrganization)
	assert.Equal(t, 0, h.manager.Active())
}

func TestExecuteRunsDeployment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	id, err := h.manager.Submit(ctx, powers101Request())
	require.NoError(t, err)
	require.NoError(t, h.executor.Execute(ctx, id))

	state, err := h.manager.GetStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StepStatusSuccess, state.Status.Status)
	assert.NotNil(t, state.StartedAt)
	assert.NotNil(t, state.CompletedAt)
	assert.Equal(t, deployedAddress(0), *state.Status.PowersAddress)
	assert.Len(t, h.chain.Calls(), 3)

	assert.Eventually(t, func() bool {
		types := h.log.types()
		return len(types) == 3 && types[2] == domain.EventTypeDeploymentSucceeded
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []domain.EventType{
		domain.EventTypeDeploymentRequested,
		domain.EventTypeDeploymentStarted,
		domain.EventTypeDeploymentSucceeded,
	}, h.log.types())

	assert.Eventually(t, func() bool { return len(h.steps.types()) == 6 }, time.Second, 5*time.Millisecond)
	h.steps.mu.Lock()
	first, last := h.steps.events[0], h.steps.events[5]
	h.steps.mu.Unlock()
	assert.Equal(t, StepPowersCreate, first.Step)
	assert.Equal(t, string(domain.StepStatusPending), first.Data["stepStatus"])
	assert.Equal(t, StepCloseConstitute, last.Step)
	assert.Equal(t, string(domain.StepStatusSuccess), last.Data["stepStatus"])
	assert.Equal(t, []string{string(domain.StepStatusSuccess)}, h.metrics.completed)
}

func TestExecuteIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	id, err := h.manager.Submit(ctx, powers101Request())
	require.NoError(t, err)
	require.NoError(t, h.executor.Execute(ctx, id))
	require.NoError(t, h.executor.Execute(ctx, id))

	assert.Len(t, h.chain.Calls(), 3, "a redelivered request sends nothing")
}

func TestExecuteFailurePersistsErrorStatus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.chain.failOn = func(int, txCall) error { return errors.New("nonce too low") }

	id, err := h.manager.Submit(ctx, powers101Request())
	require.NoError(t, err)
	err = h.executor.Execute(ctx, id)
	require.Error(t, err)

	state, err := h.manager.GetStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StepStatusError, state.Status.Status)
	assert.Equal(t, domain.StepStatusError, state.Status.PowersCreate)
	assert.Equal(t, "nonce too low", state.Status.Error)
	assert.True(t, state.Terminal())

	assert.Eventually(t, func() bool {
		types := h.log.types()
		return len(types) == 3 && types[2] == domain.EventTypeDeploymentFailed
	}, time.Second, 5*time.Millisecond)
}

func TestExecuteClientFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.executor.clients = &fakeFactory{err: errors.New("dial tcp: connection refused")}

	id, err := h.manager.Submit(ctx, powers101Request())
	require.NoError(t, err)
	require.Error(t, h.executor.Execute(ctx, id))

	state, err := h.manager.GetStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StepStatusError, state.Status.Status)
	assert.Contains(t, state.Status.Error, "connection refused")
	assert.Equal(t, domain.StepStatusIdle, state.Status.PowersCreate)
}

func TestExecuteUnknownDeployment(t *testing.T) {
	h := newHarness(t)
	assert.Error(t, h.executor.Execute(context.Background(), "missing"))
}

func TestListMostRecentFirst(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.manager.Submit(ctx, powers101Request())
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	second, err := h.manager.Submit(ctx, powers101Request())
	require.NoError(t, err)

	states, err := h.manager.List(ctx)
	require.NoError(t, err)
	require.Len(t, states, 2)
	assert.Equal(t, second, states[0].DeploymentID)
	assert.Equal(t, first, states[1].DeploymentID)
}

func TestQueueTimeoutFailsUnstartedDeployment(t *testing.T) {
	h := newHarness(t)
	h.manager.queueTimeout = 20 * time.Millisecond
	ctx := context.Background()

	id, err := h.manager.Submit(ctx, powers101Request())
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		state, err := h.manager.GetStatus(ctx, id)
		return err == nil && state.Terminal()
	}, time.Second, 5*time.Millisecond)

	state, err := h.manager.GetStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "deployment timeout", state.Status.Error)
	assert.Eventually(t, func() bool { return h.manager.Active() == 0 }, time.Second, 5*time.Millisecond)

	// a late executor leaves the failed record alone
	require.NoError(t, h.executor.Execute(ctx, id))
	assert.Empty(t, h.chain.Calls())
}

func TestMonitorStopsTrackingStartedDeployment(t *testing.T) {
	h := newHarness(t)
	h.manager.monitorInterval = 5 * time.Millisecond
	ctx := context.Background()

	id, err := h.manager.Submit(ctx, powers101Request())
	require.NoError(t, err)
	require.NoError(t, h.executor.Execute(ctx, id))

	assert.Eventually(t, func() bool { return h.manager.Active() == 0 }, time.Second, 5*time.Millisecond)
}
