package abicodec

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/powers-protocol/powers/pkg/domain"
)

// Limits passed to the Powers constructor.
const (
	DefaultMaxCallDataLength   = 10_000
	DefaultMaxReturnDataLength = 10_000
	DefaultMaxExecutionsLength = 25
)

const conditionsComponents = `[
	{"name": "allowedRole", "type": "uint256"},
	{"name": "votingPeriod", "type": "uint32"},
	{"name": "timelock", "type": "uint32"},
	{"name": "throttleExecution", "type": "uint32"},
	{"name": "needFulfilled", "type": "uint16"},
	{"name": "needNotFulfilled", "type": "uint16"},
	{"name": "quorum", "type": "uint8"},
	{"name": "succeedAt", "type": "uint8"}
]`

const initDataComponents = `[
	{"name": "nameDescription", "type": "string"},
	{"name": "targetMandate", "type": "address"},
	{"name": "config", "type": "bytes"},
	{"name": "conditions", "type": "tuple", "components": ` + conditionsComponents + `}
]`

const powersABIJSON = `[
	{"type": "constructor", "stateMutability": "nonpayable", "inputs": [
		{"name": "name_", "type": "string"},
		{"name": "uri_", "type": "string"},
		{"name": "maxCallDataLength_", "type": "uint256"},
		{"name": "maxReturnDataLength_", "type": "uint256"},
		{"name": "maxExecutionsLength_", "type": "uint256"}
	]},
	{"type": "function", "name": "constitute", "stateMutability": "nonpayable", "outputs": [], "inputs": [
		{"name": "constituentMandates", "type": "tuple[]", "components": ` + initDataComponents + `}
	]},
	{"type": "function", "name": "closeConstitute", "stateMutability": "nonpayable", "inputs": [], "outputs": []},
	{"type": "function", "name": "adoptMandate", "stateMutability": "nonpayable", "outputs": [{"name": "mandateId", "type": "uint256"}], "inputs": [
		{"name": "mandateInitData", "type": "tuple", "components": ` + initDataComponents + `}
	]},
	{"type": "function", "name": "revokeMandate", "stateMutability": "nonpayable", "outputs": [], "inputs": [
		{"name": "mandateId", "type": "uint16"}
	]},
	{"type": "function", "name": "assignRole", "stateMutability": "nonpayable", "outputs": [], "inputs": [
		{"name": "roleId", "type": "uint256"},
		{"name": "account", "type": "address"}
	]},
	{"type": "function", "name": "revokeRole", "stateMutability": "nonpayable", "outputs": [], "inputs": [
		{"name": "roleId", "type": "uint256"},
		{"name": "account", "type": "address"}
	]},
	{"type": "function", "name": "labelRole", "stateMutability": "nonpayable", "outputs": [], "inputs": [
		{"name": "roleId", "type": "uint256"},
		{"name": "label", "type": "string"}
	]},
	{"type": "function", "name": "propose", "stateMutability": "nonpayable", "outputs": [{"name": "actionId", "type": "uint256"}], "inputs": [
		{"name": "mandateId", "type": "uint16"},
		{"name": "mandateCalldata", "type": "bytes"},
		{"name": "nonce", "type": "uint256"},
		{"name": "uriAction", "type": "string"}
	]},
	{"type": "function", "name": "request", "stateMutability": "payable", "outputs": [{"name": "actionId", "type": "uint256"}], "inputs": [
		{"name": "mandateId", "type": "uint16"},
		{"name": "mandateCalldata", "type": "bytes"},
		{"name": "nonce", "type": "uint256"},
		{"name": "uriAction", "type": "string"}
	]}
]`

const ownableABIJSON = `[
	{"type": "function", "name": "transferOwnership", "stateMutability": "nonpayable", "outputs": [], "inputs": [
		{"name": "newOwner", "type": "address"}
	]},
	{"type": "function", "name": "owner", "stateMutability": "view", "inputs": [], "outputs": [
		{"name": "", "type": "address"}
	]}
]`

var (
	powersABI  = mustParseABI(powersABIJSON)
	ownableABI = mustParseABI(ownableABIJSON)

	actionHashArgs = mustArguments("uint16", "bytes", "uint256")
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("abicodec: invalid ABI definition: %v", err))
	}
	return parsed
}

func mustArguments(types ...string) abi.Arguments {
	args, err := Arguments(types)
	if err != nil {
		panic(fmt.Sprintf("abicodec: invalid argument types: %v", err))
	}
	return args
}

// PowersABI returns the subset of the Powers contract ABI used by this module.
func PowersABI() abi.ABI {
	return powersABI
}

// PackConstructor encodes the Powers constructor arguments with the default
// call data, return data and execution limits.
func PackConstructor(name, uri string) ([]byte, error) {
	return powersABI.Constructor.Inputs.Pack(
		name,
		uri,
		big.NewInt(DefaultMaxCallDataLength),
		big.NewInt(DefaultMaxReturnDataLength),
		big.NewInt(DefaultMaxExecutionsLength),
	)
}

// PackConstitute encodes a constitute call registering entries in order.
func PackConstitute(entries []domain.MandateInitData) ([]byte, error) {
	arg := powersABI.Methods["constitute"].Inputs[0]
	rv, err := coerce(arg.Type, initDataList(entries))
	if err != nil {
		return nil, encodeErr(0, arg.Type.String(), err)
	}
	return powersABI.Pack("constitute", rv.Interface())
}

// PackCloseConstitute encodes the call that seals the constitution.
func PackCloseConstitute() ([]byte, error) {
	return powersABI.Pack("closeConstitute")
}

// PackAdoptMandate encodes the adoption of a single mandate after the
// constitution is closed.
func PackAdoptMandate(entry domain.MandateInitData) ([]byte, error) {
	arg := powersABI.Methods["adoptMandate"].Inputs[0]
	rv, err := coerce(arg.Type, initDataMap(entry))
	if err != nil {
		return nil, encodeErr(0, arg.Type.String(), err)
	}
	return powersABI.Pack("adoptMandate", rv.Interface())
}

// PackRevokeMandate encodes revokeMandate(mandateId).
func PackRevokeMandate(mandateID uint16) ([]byte, error) {
	return powersABI.Pack("revokeMandate", mandateID)
}

// PackAssignRole encodes assignRole(roleId, account).
func PackAssignRole(roleID *big.Int, account common.Address) ([]byte, error) {
	return powersABI.Pack("assignRole", roleID, account)
}

// PackRevokeRole encodes revokeRole(roleId, account).
func PackRevokeRole(roleID *big.Int, account common.Address) ([]byte, error) {
	return powersABI.Pack("revokeRole", roleID, account)
}

// PackLabelRole encodes labelRole(roleId, label).
func PackLabelRole(roleID *big.Int, label string) ([]byte, error) {
	return powersABI.Pack("labelRole", roleID, label)
}

// PackRequest encodes request(mandateId, mandateCalldata, nonce, uriAction).
func PackRequest(mandateID uint16, calldata []byte, nonce *big.Int, uri string) ([]byte, error) {
	return powersABI.Pack("request", mandateID, calldata, nonce, uri)
}

// PackPropose encodes propose(mandateId, mandateCalldata, nonce, uriAction).
func PackPropose(mandateID uint16, calldata []byte, nonce *big.Int, uri string) ([]byte, error) {
	return powersABI.Pack("propose", mandateID, calldata, nonce, uri)
}

// PackTransferOwnership encodes Ownable.transferOwnership(newOwner).
func PackTransferOwnership(newOwner common.Address) ([]byte, error) {
	return ownableABI.Pack("transferOwnership", newOwner)
}

// Selector returns the 4-byte selector of a canonical signature such as
// "assignRole(uint256,address)".
func Selector(signature string) [4]byte {
	var sel [4]byte
	copy(sel[:], crypto.Keccak256([]byte(signature))[:4])
	return sel
}

// MethodName resolves the selector at the start of calldata against the
// Powers and Ownable ABIs.
func MethodName(calldata []byte) (string, error) {
	if len(calldata) < 4 {
		return "", &EncodingError{Op: "decode", Index: -1, Err: fmt.Errorf("call data shorter than a selector")}
	}
	if m, err := powersABI.MethodById(calldata[:4]); err == nil {
		return m.Name, nil
	}
	if m, err := ownableABI.MethodById(calldata[:4]); err == nil {
		return m.Name, nil
	}
	return "", &EncodingError{Op: "decode", Index: -1, Err: fmt.Errorf("unknown selector %x", calldata[:4])}
}

// HashAction derives the on-chain action id:
// uint256(keccak256(abi.encode(mandateId, mandateCalldata, nonce))).
func HashAction(mandateID uint16, calldata []byte, nonce *big.Int) (*big.Int, error) {
	if nonce == nil {
		nonce = new(big.Int)
	}
	packed, err := actionHashArgs.Pack(mandateID, calldata, nonce)
	if err != nil {
		return nil, &EncodingError{Op: "encode", Index: -1, Err: err}
	}
	return new(big.Int).SetBytes(crypto.Keccak256(packed)), nil
}
