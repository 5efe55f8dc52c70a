package ethereum

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	goethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/powers-protocol/powers/pkg/domain"
	"go.uber.org/zap"
)

// Backend is the part of an RPC client the adapter needs. Both
// *ethclient.Client and the simulated backend's client satisfy it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	BlockNumber(ctx context.Context) (uint64, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

// ErrReverted is returned for mined transactions with a failed status.
var ErrReverted = errors.New("transaction reverted")

// Client implements ports.ChainClient.
type Client struct {
	backend      Backend
	key          *ecdsa.PrivateKey
	from         common.Address
	chainID      *big.Int
	pollInterval time.Duration
	logger       *zap.Logger

	mu sync.Mutex
}

// NewClient binds key to backend. The chain id is read from the node.
func NewClient(ctx context.Context, backend Backend, key *ecdsa.PrivateKey, pollInterval time.Duration, logger *zap.Logger) (*Client, error) {
	if key == nil {
		return nil, fmt.Errorf("no signing key configured")
	}
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain id: %w", err)
	}

	return &Client{
		backend:      backend,
		key:          key,
		from:         crypto.PubkeyToAddress(key.PublicKey),
		chainID:      chainID,
		pollInterval: pollInterval,
		logger:       logger.With(zap.Uint64("chain_id", chainID.Uint64())),
	}, nil
}

// From returns the sending account.
func (c *Client) From() common.Address {
	return c.from
}

// ChainID returns the id reported by the node.
func (c *Client) ChainID() uint64 {
	return c.chainID.Uint64()
}

func (c *Client) transactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(c.key, c.chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}
	opts.Context = ctx
	return opts, nil
}

// Deploy sends a contract creation transaction.
func (c *Client) Deploy(ctx context.Context, code []byte) (common.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	opts, err := c.transactOpts(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	addr, tx, _, err := bind.DeployContract(opts, abi.ABI{}, code, c.backend)
	if err != nil {
		return common.Hash{}, err
	}

	c.logger.Info("deployment transaction sent",
		zap.String("tx_hash", tx.Hash().Hex()),
		zap.String("address", addr.Hex()),
		zap.Uint64("nonce", tx.Nonce()))
	return tx.Hash(), nil
}

// Write sends calldata to an existing contract.
func (c *Client) Write(ctx context.Context, to common.Address, calldata []byte) (common.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	opts, err := c.transactOpts(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	contract := bind.NewBoundContract(to, abi.ABI{}, c.backend, c.backend, c.backend)
	tx, err := contract.RawTransact(opts, calldata)
	if err != nil {
		return common.Hash{}, err
	}

	c.logger.Info("transaction sent",
		zap.String("tx_hash", tx.Hash().Hex()),
		zap.String("to", to.Hex()),
		zap.Uint64("nonce", tx.Nonce()))
	return tx.Hash(), nil
}

// WaitForReceipt polls until the transaction is mined and the chain head is
// confirmations-1 blocks past it.
func (c *Client) WaitForReceipt(ctx context.Context, hash common.Hash, confirmations uint64) (*domain.Receipt, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	var receipt *types.Receipt
	for receipt == nil {
		r, err := c.backend.TransactionReceipt(ctx, hash)
		switch {
		case err == nil:
			receipt = r
			continue
		case !errors.Is(err, goethereum.NotFound):
			return nil, fmt.Errorf("failed to get receipt for %s: %w", hash.Hex(), err)
		}
		if err := wait(ctx, ticker); err != nil {
			return nil, err
		}
	}

	mined := receipt.BlockNumber.Uint64()
	for confirmations > 1 {
		head, err := c.backend.BlockNumber(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get block number: %w", err)
		}
		if head+1 >= mined+confirmations {
			break
		}
		if err := wait(ctx, ticker); err != nil {
			return nil, err
		}
	}

	out := toReceipt(receipt)
	if receipt.Status == types.ReceiptStatusFailed {
		return out, fmt.Errorf("%w: %s", ErrReverted, hash.Hex())
	}
	return out, nil
}

func wait(ctx context.Context, ticker *time.Ticker) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ticker.C:
		return nil
	}
}

func toReceipt(r *types.Receipt) *domain.Receipt {
	out := &domain.Receipt{
		TxHash:  r.TxHash,
		Status:  r.Status,
		GasUsed: r.GasUsed,
	}
	if r.BlockNumber != nil {
		out.BlockNumber = r.BlockNumber.Uint64()
	}
	if r.ContractAddress != (common.Address{}) {
		addr := r.ContractAddress
		out.ContractAddress = &addr
	}
	return out
}
