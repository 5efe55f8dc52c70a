package graph

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/powers-protocol/powers/pkg/abicodec"
	"github.com/powers-protocol/powers/pkg/domain"
)

// ActionChain finds, for every mandate, the action that carries the same
// calldata and nonce as selected. Action ids are derived from mandate index,
// calldata and nonce, so the same proposal has a predictable id under each
// mandate. The result is keyed by node id and is empty when selected has no
// calldata or nonce.
func ActionChain(selected *domain.Action, mandates []domain.Mandate) (map[string]domain.Action, error) {
	chain := make(map[string]domain.Action)
	if selected == nil || selected.CallData == "" || selected.Nonce == "" {
		return chain, nil
	}

	calldata, err := hexutil.Decode(selected.CallData)
	if err != nil {
		return nil, fmt.Errorf("invalid calldata: %w", err)
	}
	nonce, ok := new(big.Int).SetString(selected.Nonce, 0)
	if !ok {
		return nil, fmt.Errorf("invalid nonce: %q", selected.Nonce)
	}

	for _, m := range mandates {
		if len(m.Actions) == 0 {
			continue
		}
		id, err := abicodec.HashAction(m.Index, calldata, nonce)
		if err != nil {
			return nil, err
		}
		want := id.String()
		for _, a := range m.Actions {
			if a.ActionID == want {
				chain[m.ID()] = a
				break
			}
		}
	}
	return chain, nil
}
