// Package staticdata loads the per-chain deployment parameters: the Powers
// creation bytecode, deployed mandate implementations and dependency
// bytecodes, stored as <base>/<chainId>.json.
package staticdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/powers-protocol/powers/pkg/domain"
	"github.com/powers-protocol/powers/pkg/ports"
	"go.uber.org/zap"
)

const maxDocumentSize = 32 << 20

// Source implements ports.StaticDataSource over HTTP(S) or a directory.
type Source struct {
	base   string
	remote bool
	client *http.Client
	logger *zap.Logger
}

// NewSource creates a source rooted at base. Bases starting with http:// or
// https:// are fetched; anything else is a directory.
func NewSource(base string, logger *zap.Logger) *Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	remote := strings.HasPrefix(base, "http://") || strings.HasPrefix(base, "https://")
	return &Source{
		base:   strings.TrimSuffix(base, "/"),
		remote: remote,
		client: &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}
}

// Fetch loads the document of chainID. A missing document wraps
// ports.ErrNotFound.
func (s *Source) Fetch(ctx context.Context, chainID uint64) (*domain.StaticData, error) {
	var (
		raw []byte
		err error
	)
	if s.remote {
		raw, err = s.fetchHTTP(ctx, chainID)
	} else {
		raw, err = s.readFile(chainID)
	}
	if err != nil {
		return nil, err
	}

	var data domain.StaticData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to parse static data for chain %d: %w", chainID, err)
	}
	if data.Mandates == nil {
		data.Mandates = map[string]common.Address{}
	}

	s.logger.Debug("static data loaded",
		zap.Uint64("chain_id", chainID),
		zap.Int("mandates", len(data.Mandates)),
		zap.Int("bytecodes", len(data.Bytecodes)))
	return &data, nil
}

func (s *Source) fetchHTTP(ctx context.Context, chainID uint64) ([]byte, error) {
	url := fmt.Sprintf("%s/%d.json", s.base, chainID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch static data for chain %d: %w", chainID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("static data for chain %d: %w", chainID, ports.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch static data for chain %d: HTTP %d", chainID, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
}

func (s *Source) readFile(chainID uint64) ([]byte, error) {
	path := filepath.Join(s.base, fmt.Sprintf("%d.json", chainID))
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("static data for chain %d: %w", chainID, ports.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read static data for chain %d: %w", chainID, err)
	}
	return raw, nil
}
