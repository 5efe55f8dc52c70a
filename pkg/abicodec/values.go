package abicodec

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

var bigIntType = reflect.TypeOf(&big.Int{})

// coerce converts a loosely typed input (form strings, JSON or YAML values)
// into the exact Go type go-ethereum packs for t.
func coerce(t abi.Type, v any) (reflect.Value, error) {
	switch t.T {
	case abi.IntTy, abi.UintTy:
		n, err := toBigInt(v)
		if err != nil {
			return reflect.Value{}, err
		}
		if err := checkIntRange(t, n); err != nil {
			return reflect.Value{}, err
		}
		rt := t.GetType()
		if rt == bigIntType {
			return reflect.ValueOf(n), nil
		}
		out := reflect.New(rt).Elem()
		switch rt.Kind() {
		case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			out.SetUint(n.Uint64())
		default:
			out.SetInt(n.Int64())
		}
		return out, nil

	case abi.BoolTy:
		switch b := v.(type) {
		case bool:
			return reflect.ValueOf(b), nil
		case string:
			parsed, err := strconv.ParseBool(strings.TrimSpace(b))
			if err != nil {
				return reflect.Value{}, fmt.Errorf("invalid bool %q", b)
			}
			return reflect.ValueOf(parsed), nil
		}
		return reflect.Value{}, fmt.Errorf("cannot use %T as bool", v)

	case abi.StringTy:
		s, ok := v.(string)
		if !ok {
			return reflect.Value{}, fmt.Errorf("cannot use %T as string", v)
		}
		return reflect.ValueOf(s), nil

	case abi.AddressTy:
		addr, err := toAddress(v)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(addr), nil

	case abi.BytesTy:
		b, err := toBytes(v)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(b), nil

	case abi.FixedBytesTy:
		b, err := toBytes(v)
		if err != nil {
			return reflect.Value{}, err
		}
		if len(b) > t.Size {
			return reflect.Value{}, fmt.Errorf("value has %d bytes, want at most %d", len(b), t.Size)
		}
		out := reflect.New(t.GetType()).Elem()
		for i, c := range b {
			out.Index(i).SetUint(uint64(c))
		}
		return out, nil

	case abi.SliceTy, abi.ArrayTy:
		items, err := toList(v)
		if err != nil {
			return reflect.Value{}, err
		}
		if t.T == abi.ArrayTy && len(items) != t.Size {
			return reflect.Value{}, fmt.Errorf("array has %d elements, want %d", len(items), t.Size)
		}
		var out reflect.Value
		if t.T == abi.SliceTy {
			out = reflect.MakeSlice(t.GetType(), len(items), len(items))
		} else {
			out = reflect.New(t.GetType()).Elem()
		}
		for i, item := range items {
			ev, err := coerce(*t.Elem, item)
			if err != nil {
				return reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
			}
			out.Index(i).Set(ev)
		}
		return out, nil

	case abi.TupleTy:
		out := reflect.New(t.GetType()).Elem()
		switch fields := v.(type) {
		case map[string]any:
			for i, name := range t.TupleRawNames {
				raw, ok := fields[name]
				if !ok {
					return reflect.Value{}, fmt.Errorf("missing tuple field %q", name)
				}
				fv, err := coerce(*t.TupleElems[i], raw)
				if err != nil {
					return reflect.Value{}, fmt.Errorf("field %s: %w", name, err)
				}
				out.Field(i).Set(fv)
			}
		case []any:
			if len(fields) != len(t.TupleElems) {
				return reflect.Value{}, fmt.Errorf("tuple has %d fields, want %d", len(fields), len(t.TupleElems))
			}
			for i, raw := range fields {
				fv, err := coerce(*t.TupleElems[i], raw)
				if err != nil {
					return reflect.Value{}, fmt.Errorf("field %d: %w", i, err)
				}
				out.Field(i).Set(fv)
			}
		default:
			return reflect.Value{}, fmt.Errorf("cannot use %T as tuple", v)
		}
		return out, nil
	}

	return reflect.Value{}, fmt.Errorf("unsupported type %s", t.String())
}

// canonical turns an unpacked value into the representation returned by
// Decode: integers as *big.Int, fixed bytes as []byte, arrays as []any and
// tuples as maps keyed by field name.
func canonical(t abi.Type, v reflect.Value) any {
	switch t.T {
	case abi.IntTy, abi.UintTy:
		if v.Type() == bigIntType {
			return new(big.Int).Set(v.Interface().(*big.Int))
		}
		switch v.Kind() {
		case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return new(big.Int).SetUint64(v.Uint())
		default:
			return big.NewInt(v.Int())
		}
	case abi.BytesTy:
		return append([]byte{}, v.Bytes()...)
	case abi.FixedBytesTy:
		b := make([]byte, v.Len())
		for i := range b {
			b[i] = byte(v.Index(i).Uint())
		}
		return b
	case abi.SliceTy, abi.ArrayTy:
		out := make([]any, v.Len())
		for i := range out {
			out[i] = canonical(*t.Elem, v.Index(i))
		}
		return out
	case abi.TupleTy:
		out := make(map[string]any, len(t.TupleElems))
		for i, name := range t.TupleRawNames {
			out[name] = canonical(*t.TupleElems[i], v.Field(i))
		}
		return out
	}
	return v.Interface()
}

// zeroValue is the form default for a parameter whose call data could not be
// decoded.
func zeroValue(t abi.Type) any {
	switch t.T {
	case abi.StringTy:
		return ""
	case abi.BoolTy:
		return false
	case abi.AddressTy:
		return common.Address{}
	case abi.BytesTy, abi.FixedBytesTy:
		return []byte{}
	case abi.SliceTy, abi.ArrayTy:
		return []any{zeroValue(*t.Elem)}
	case abi.TupleTy:
		out := make(map[string]any, len(t.TupleElems))
		for i, name := range t.TupleRawNames {
			out[name] = zeroValue(*t.TupleElems[i])
		}
		return out
	}
	return big.NewInt(0)
}

func toBigInt(v any) (*big.Int, error) {
	switch n := v.(type) {
	case *big.Int:
		if n == nil {
			return nil, errors.New("nil integer")
		}
		return new(big.Int).Set(n), nil
	case big.Int:
		return new(big.Int).Set(&n), nil
	case int:
		return big.NewInt(int64(n)), nil
	case int8:
		return big.NewInt(int64(n)), nil
	case int16:
		return big.NewInt(int64(n)), nil
	case int32:
		return big.NewInt(int64(n)), nil
	case int64:
		return big.NewInt(n), nil
	case uint:
		return new(big.Int).SetUint64(uint64(n)), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(n)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(n)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(n)), nil
	case uint64:
		return new(big.Int).SetUint64(n), nil
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return nil, fmt.Errorf("%v is not an integer", n)
		}
		b, _ := big.NewFloat(n).Int(nil)
		return b, nil
	case json.Number:
		return parseBigInt(n.String())
	case string:
		return parseBigInt(n)
	}
	return nil, fmt.Errorf("cannot use %T as integer", v)
}

func parseBigInt(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("empty integer")
	}
	n, ok := new(big.Int).SetString(s, 0)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", s)
	}
	return n, nil
}

func checkIntRange(t abi.Type, n *big.Int) error {
	if t.T == abi.UintTy {
		if n.Sign() < 0 {
			return fmt.Errorf("negative value %s for %s", n, t.String())
		}
		if n.BitLen() > t.Size {
			return fmt.Errorf("value %s overflows %s", n, t.String())
		}
		return nil
	}
	limit := new(big.Int).Lsh(big.NewInt(1), uint(t.Size-1))
	minimum := new(big.Int).Neg(limit)
	maximum := new(big.Int).Sub(limit, big.NewInt(1))
	if n.Cmp(minimum) < 0 || n.Cmp(maximum) > 0 {
		return fmt.Errorf("value %s overflows %s", n, t.String())
	}
	return nil
}

func toAddress(v any) (common.Address, error) {
	switch a := v.(type) {
	case common.Address:
		return a, nil
	case *common.Address:
		if a == nil {
			return common.Address{}, errors.New("nil address")
		}
		return *a, nil
	case string:
		s := strings.TrimSpace(a)
		if !common.IsHexAddress(s) {
			return common.Address{}, fmt.Errorf("invalid address %q", a)
		}
		return common.HexToAddress(s), nil
	}
	return common.Address{}, fmt.Errorf("cannot use %T as address", v)
}

func toBytes(v any) ([]byte, error) {
	switch b := v.(type) {
	case []byte:
		return b, nil
	case common.Hash:
		return b.Bytes(), nil
	case string:
		s := strings.TrimSpace(b)
		if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
			s = "0x" + s
		}
		out, err := hexutil.Decode(s)
		if err != nil {
			return nil, fmt.Errorf("invalid hex %q: %w", b, err)
		}
		return out, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Array && rv.Type().Elem().Kind() == reflect.Uint8 {
		out := make([]byte, rv.Len())
		for i := range out {
			out[i] = byte(rv.Index(i).Uint())
		}
		return out, nil
	}
	return nil, fmt.Errorf("cannot use %T as bytes", v)
}

func toList(v any) ([]any, error) {
	switch l := v.(type) {
	case []any:
		return l, nil
	case string:
		var out []any
		dec := json.NewDecoder(strings.NewReader(l))
		dec.UseNumber()
		if err := dec.Decode(&out); err != nil {
			return nil, fmt.Errorf("invalid array %q: %w", l, err)
		}
		return out, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("cannot use %T as array", v)
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}
