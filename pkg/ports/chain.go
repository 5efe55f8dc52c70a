package ports

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/powers-protocol/powers/pkg/domain"
)

// ChainClient submits transactions to an EVM chain on behalf of the
// connected account.
type ChainClient interface {
	// Deploy sends a contract creation transaction with code as init code
	// (creation bytecode followed by encoded constructor arguments).
	Deploy(ctx context.Context, code []byte) (common.Hash, error)
	// Write sends a transaction calling to with calldata.
	Write(ctx context.Context, to common.Address, calldata []byte) (common.Hash, error)
	// WaitForReceipt blocks until the transaction is mined and buried under
	// the given number of confirmations. A reverted transaction is an error.
	WaitForReceipt(ctx context.Context, hash common.Hash, confirmations uint64) (*domain.Receipt, error)
	ChainID() uint64
}

// StaticDataSource fetches the per-chain deployment parameters.
type StaticDataSource interface {
	Fetch(ctx context.Context, chainID uint64) (*domain.StaticData, error)
}

// ChainClientFactory returns a client connected to the given chain.
type ChainClientFactory interface {
	Client(ctx context.Context, chainID uint64) (ChainClient, error)
}
