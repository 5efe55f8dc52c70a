package orchestrator

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/powers-protocol/powers/pkg/domain"
	"github.com/powers-protocol/powers/pkg/ports"
)

type txCall struct {
	deploy bool
	to     common.Address
	data   []byte
}

// fakeChain records transactions and mines them instantly. Deployments get
// sequential addresses starting at 0x...1000.
type fakeChain struct {
	mu            sync.Mutex
	chainID       uint64
	calls         []txCall
	confirmations []uint64
	receipts      map[common.Hash]*domain.Receipt

	// failOn returns an error for the i-th transaction, if any.
	failOn func(i int, c txCall) error
	// revertOn marks the i-th transaction reverted.
	revertOn func(i int) bool
}

func newFakeChain(chainID uint64) *fakeChain {
	return &fakeChain{chainID: chainID, receipts: make(map[common.Hash]*domain.Receipt)}
}

func deployedAddress(n int) common.Address {
	return common.BigToAddress(big.NewInt(int64(0x1000 + n)))
}

func (f *fakeChain) send(c txCall) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := len(f.calls)
	f.calls = append(f.calls, c)
	if f.failOn != nil {
		if err := f.failOn(i, c); err != nil {
			return common.Hash{}, err
		}
	}

	hash := common.BigToHash(big.NewInt(int64(i + 1)))
	receipt := &domain.Receipt{TxHash: hash, BlockNumber: uint64(i + 1), Status: 1}
	if c.deploy {
		addr := deployedAddress(i)
		receipt.ContractAddress = &addr
	}
	if f.revertOn != nil && f.revertOn(i) {
		receipt.Status = 0
	}
	f.receipts[hash] = receipt
	return hash, nil
}

func (f *fakeChain) Deploy(_ context.Context, code []byte) (common.Hash, error) {
	return f.send(txCall{deploy: true, data: code})
}

func (f *fakeChain) Write(_ context.Context, to common.Address, calldata []byte) (common.Hash, error) {
	return f.send(txCall{to: to, data: calldata})
}

func (f *fakeChain) WaitForReceipt(_ context.Context, hash common.Hash, confirmations uint64) (*domain.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmations = append(f.confirmations, confirmations)
	r, ok := f.receipts[hash]
	if !ok {
		return nil, fmt.Errorf("unknown transaction %s", hash.Hex())
	}
	out := *r
	return &out, nil
}

func (f *fakeChain) ChainID() uint64 { return f.chainID }

func (f *fakeChain) Calls() []txCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]txCall(nil), f.calls...)
}

type fakeFactory struct {
	chain *fakeChain
	err   error
}

func (f *fakeFactory) Client(_ context.Context, chainID uint64) (ports.ChainClient, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.chain, nil
}

type staticSource struct {
	data map[uint64]*domain.StaticData
}

func (s staticSource) Fetch(_ context.Context, chainID uint64) (*domain.StaticData, error) {
	d, ok := s.data[chainID]
	if !ok {
		return nil, fmt.Errorf("no static data for chain %d: %w", chainID, ports.ErrNotFound)
	}
	return d, nil
}

type nopMetrics struct {
	mu        sync.Mutex
	steps     []string
	completed []string
	submitted []string
}

func (m *nopMetrics) RecordDeploymentSubmitted(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submitted = append(m.submitted, status)
}

func (m *nopMetrics) RecordDeploymentCompleted(status string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completed = append(m.completed, status)
}

func (m *nopMetrics) RecordStep(kind, status string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, kind+":"+status)
}

func (m *nopMetrics) RecordLayoutComputed(bool, int) {}
func (m *nopMetrics) RecordWorkerPoolStatus(int, int, int) {}

// foundryStatic lists every mandate the built-in templates use.
func foundryStatic() *domain.StaticData {
	mandates := map[string]common.Address{}
	for i, name := range []string{
		"PresetSingleAction", "StatementOfIntent", "OpenAction", "SelfSelect",
		"BespokeActionSimple", "DelegateTokenSelect",
	} {
		mandates[name] = common.BigToAddress(big.NewInt(int64(0xa0 + i)))
	}
	return &domain.StaticData{
		Powers:    "0x6080604052",
		Mandates:  mandates,
		Bytecodes: map[string]string{"VotesToken": "60806040"},
	}
}

func powers101Request() domain.DeploymentRequest {
	return domain.DeploymentRequest{
		OrganizationID: "powers-101",
		ChainID:        domain.ChainFoundry,
		Local:          true,
	}
}
