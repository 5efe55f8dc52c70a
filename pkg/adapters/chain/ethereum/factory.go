package ethereum

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/powers-protocol/powers/pkg/ports"
	"go.uber.org/zap"
)

// Factory dials one client per configured chain and reuses it.
type Factory struct {
	endpoints    map[uint64]string
	key          *ecdsa.PrivateKey
	pollInterval time.Duration
	logger       *zap.Logger

	mu       sync.Mutex
	clients  map[uint64]*Client
	closers  []func()
	dialFunc func(ctx context.Context, url string) (Backend, func(), error)
}

// NewFactory creates a client factory. An empty privateKey is allowed; the
// factory then fails every Client call.
func NewFactory(endpoints map[uint64]string, privateKey string, pollInterval time.Duration, logger *zap.Logger) (*Factory, error) {
	var key *ecdsa.PrivateKey
	if privateKey != "" {
		k, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(privateKey), "0x"))
		if err != nil {
			return nil, fmt.Errorf("invalid private key: %w", err)
		}
		key = k
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{
		endpoints:    endpoints,
		key:          key,
		pollInterval: pollInterval,
		logger:       logger,
		clients:      make(map[uint64]*Client),
		dialFunc:     dial,
	}, nil
}

func dial(ctx context.Context, url string) (Backend, func(), error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, nil, err
	}
	return client, client.Close, nil
}

// Client returns the client for chainID, dialing it on first use.
func (f *Factory) Client(ctx context.Context, chainID uint64) (ports.ChainClient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.clients[chainID]; ok {
		return c, nil
	}
	if f.key == nil {
		return nil, fmt.Errorf("no signing key configured")
	}
	url, ok := f.endpoints[chainID]
	if !ok {
		return nil, fmt.Errorf("no RPC endpoint configured for chain %d", chainID)
	}

	backend, closer, err := f.dialFunc(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial chain %d: %w", chainID, err)
	}
	client, err := NewClient(ctx, backend, f.key, f.pollInterval, f.logger)
	if err != nil {
		closer()
		return nil, err
	}
	if client.ChainID() != chainID {
		closer()
		return nil, fmt.Errorf("endpoint for chain %d reports chain %d", chainID, client.ChainID())
	}

	f.clients[chainID] = client
	f.closers = append(f.closers, closer)
	f.logger.Info("connected to chain",
		zap.Uint64("chain_id", chainID),
		zap.String("account", client.From().Hex()))
	return client, nil
}

// Close closes every dialed connection.
func (f *Factory) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.closers {
		c()
	}
	f.closers = nil
	f.clients = make(map[uint64]*Client)
}
