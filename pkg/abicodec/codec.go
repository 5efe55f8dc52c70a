package abicodec

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Arguments builds an ABI argument list from type names such as "uint256",
// "address[]" or "bytes32". Entries may carry a parameter name after the
// type ("address[] Targets"); the name is ignored.
func Arguments(types []string) (abi.Arguments, error) {
	args := make(abi.Arguments, 0, len(types))
	for i, raw := range types {
		fields := strings.Fields(raw)
		if len(fields) == 0 {
			return nil, encodeErr(i, raw, fmt.Errorf("empty type"))
		}
		typ, err := abi.NewType(fields[0], "", nil)
		if err != nil {
			return nil, encodeErr(i, raw, err)
		}
		args = append(args, abi.Argument{Type: typ})
	}
	return args, nil
}

// Encode ABI-encodes values against types, coercing form-style inputs
// (decimal or hex strings, JSON numbers, hex byte strings) to the exact Go
// types the packer expects.
func Encode(types []string, values []any) ([]byte, error) {
	if len(types) != len(values) {
		return nil, &EncodingError{Op: "encode", Index: -1,
			Err: fmt.Errorf("got %d values for %d types", len(values), len(types))}
	}
	args, err := Arguments(types)
	if err != nil {
		return nil, err
	}
	return encodeArgs(args, values)
}

func encodeArgs(args abi.Arguments, values []any) ([]byte, error) {
	packed := make([]any, len(values))
	for i, v := range values {
		rv, err := coerce(args[i].Type, v)
		if err != nil {
			return nil, encodeErr(i, args[i].Type.String(), err)
		}
		packed[i] = rv.Interface()
	}
	out, err := args.Pack(packed...)
	if err != nil {
		return nil, &EncodingError{Op: "encode", Index: -1, Err: err}
	}
	return out, nil
}

// Decode unpacks data against types. Integers come back as *big.Int, fixed
// bytes as []byte and arrays as []any, so any decoded slice can be passed
// straight back to Encode.
func Decode(types []string, data []byte) ([]any, error) {
	args, err := Arguments(types)
	if err != nil {
		var encErr *EncodingError
		if errors.As(err, &encErr) {
			encErr.Op = "decode"
		}
		return nil, err
	}
	return decodeArgs(args, data)
}

func decodeArgs(args abi.Arguments, data []byte) ([]any, error) {
	if len(args) == 0 {
		return []any{}, nil
	}
	raw, err := args.UnpackValues(data)
	if err != nil {
		return nil, &EncodingError{Op: "decode", Index: -1, Err: err}
	}
	out := make([]any, len(raw))
	for i, v := range raw {
		out[i] = canonical(args[i].Type, reflect.ValueOf(v))
	}
	return out, nil
}

// DefaultValues returns one placeholder per type: "" for strings, false for
// bools, the zero address, empty bytes, 0 for integers and a single default
// element for arrays.
func DefaultValues(types []string) ([]any, error) {
	args, err := Arguments(types)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(args))
	for i, arg := range args {
		out[i] = zeroValue(arg.Type)
	}
	return out, nil
}

// DecodeOrDefault decodes data, falling back to DefaultValues when the call
// data does not match types. The returned bool reports whether decoding
// succeeded.
func DecodeOrDefault(types []string, data []byte) ([]any, bool) {
	values, err := Decode(types, data)
	if err == nil {
		return values, true
	}
	defaults, derr := DefaultValues(types)
	if derr != nil {
		return nil, false
	}
	return defaults, false
}
