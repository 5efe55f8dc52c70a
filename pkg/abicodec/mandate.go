package abicodec

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/powers-protocol/powers/pkg/domain"
)

func initDataArgs() abi.Arguments {
	return abi.Arguments{powersABI.Methods["constitute"].Inputs[0]}
}

// EncodeMandateInitData ABI-encodes a MandateInitData[] array as a single
// parameter, the payload shape of constitute.
func EncodeMandateInitData(entries []domain.MandateInitData) ([]byte, error) {
	return encodeArgs(initDataArgs(), []any{initDataList(entries)})
}

// DecodeMandateInitData is the inverse of EncodeMandateInitData.
func DecodeMandateInitData(data []byte) ([]domain.MandateInitData, error) {
	values, err := decodeArgs(initDataArgs(), data)
	if err != nil {
		return nil, err
	}
	list, ok := values[0].([]any)
	if !ok {
		return nil, decodeErr(0, "tuple[]", fmt.Errorf("unexpected value %T", values[0]))
	}
	out := make([]domain.MandateInitData, len(list))
	for i, item := range list {
		fields, ok := item.(map[string]any)
		if !ok {
			return nil, decodeErr(i, "tuple", fmt.Errorf("unexpected value %T", item))
		}
		entry, err := initDataFromMap(fields)
		if err != nil {
			return nil, decodeErr(i, "tuple", err)
		}
		out[i] = entry
	}
	return out, nil
}

func initDataList(entries []domain.MandateInitData) []any {
	out := make([]any, len(entries))
	for i, e := range entries {
		out[i] = initDataMap(e)
	}
	return out
}

func initDataMap(e domain.MandateInitData) map[string]any {
	role := e.Conditions.AllowedRole
	if role == nil {
		role = new(big.Int)
	}
	config := e.Config
	if config == nil {
		config = []byte{}
	}
	return map[string]any{
		"nameDescription": e.NameDescription,
		"targetMandate":   e.TargetMandate,
		"config":          config,
		"conditions": map[string]any{
			"allowedRole":       role,
			"votingPeriod":      e.Conditions.VotingPeriod,
			"timelock":          e.Conditions.Timelock,
			"throttleExecution": e.Conditions.ThrottleExecution,
			"needFulfilled":     e.Conditions.NeedFulfilled,
			"needNotFulfilled":  e.Conditions.NeedNotFulfilled,
			"quorum":            e.Conditions.Quorum,
			"succeedAt":         e.Conditions.SucceedAt,
		},
	}
}

func initDataFromMap(fields map[string]any) (domain.MandateInitData, error) {
	var out domain.MandateInitData
	var ok bool
	if out.NameDescription, ok = fields["nameDescription"].(string); !ok {
		return out, fmt.Errorf("nameDescription is not a string")
	}
	if out.TargetMandate, ok = fields["targetMandate"].(common.Address); !ok {
		return out, fmt.Errorf("targetMandate is not an address")
	}
	if out.Config, ok = fields["config"].([]byte); !ok {
		return out, fmt.Errorf("config is not bytes")
	}
	cond, ok := fields["conditions"].(map[string]any)
	if !ok {
		return out, fmt.Errorf("conditions is not a tuple")
	}
	num := func(name string) uint64 {
		if n, ok := cond[name].(*big.Int); ok {
			return n.Uint64()
		}
		return 0
	}
	role, ok := cond["allowedRole"].(*big.Int)
	if !ok {
		return out, fmt.Errorf("allowedRole is not an integer")
	}
	out.Conditions = domain.Conditions{
		AllowedRole:       role,
		VotingPeriod:      uint32(num("votingPeriod")),
		Timelock:          uint32(num("timelock")),
		ThrottleExecution: uint32(num("throttleExecution")),
		NeedFulfilled:     uint16(num("needFulfilled")),
		NeedNotFulfilled:  uint16(num("needNotFulfilled")),
		Quorum:            uint8(num("quorum")),
		SucceedAt:         uint8(num("succeedAt")),
	}
	return out, nil
}
