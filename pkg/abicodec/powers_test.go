package abicodec

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/powers-protocol/powers/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleInitData() []domain.MandateInitData {
	publicRole, _ := new(big.Int).SetString("115792089237316195423570985008687907853269984665640564039457584007913129639935", 10)
	return []domain.MandateInitData{
		{
			NameDescription: "Initial Setup: label roles",
			TargetMandate:   common.HexToAddress("0x00000000000000000000000000000000000000a1"),
			Config:          []byte{0x01, 0x02},
			Conditions:      domain.Conditions{AllowedRole: big.NewInt(0)},
		},
		{
			NameDescription: "Execute Action: delegates execute",
			TargetMandate:   common.HexToAddress("0x00000000000000000000000000000000000000a2"),
			Config:          []byte{},
			Conditions: domain.Conditions{
				AllowedRole:       publicRole,
				VotingPeriod:      25,
				Timelock:          15,
				ThrottleExecution: 25,
				NeedFulfilled:     2,
				NeedNotFulfilled:  3,
				Quorum:            50,
				SucceedAt:         77,
			},
		},
	}
}

func TestMandateInitDataRoundTrip(t *testing.T) {
	entries := sampleInitData()

	encoded, err := EncodeMandateInitData(entries)
	require.NoError(t, err)

	decoded, err := DecodeMandateInitData(encoded)
	require.NoError(t, err)
	require.Len(t, decoded, 2)

	for i := range entries {
		assert.Equal(t, entries[i].NameDescription, decoded[i].NameDescription)
		assert.Equal(t, entries[i].TargetMandate, decoded[i].TargetMandate)
		assert.Equal(t, entries[i].Config, decoded[i].Config)
		assert.Equal(t, 0, entries[i].Conditions.AllowedRole.Cmp(decoded[i].Conditions.AllowedRole))
		assert.Equal(t, entries[i].Conditions.NeedFulfilled, decoded[i].Conditions.NeedFulfilled)
		assert.Equal(t, entries[i].Conditions.NeedNotFulfilled, decoded[i].Conditions.NeedNotFulfilled)
		assert.Equal(t, entries[i].Conditions.VotingPeriod, decoded[i].Conditions.VotingPeriod)
		assert.Equal(t, entries[i].Conditions.Timelock, decoded[i].Conditions.Timelock)
		assert.Equal(t, entries[i].Conditions.ThrottleExecution, decoded[i].Conditions.ThrottleExecution)
		assert.Equal(t, entries[i].Conditions.Quorum, decoded[i].Conditions.Quorum)
		assert.Equal(t, entries[i].Conditions.SucceedAt, decoded[i].Conditions.SucceedAt)
	}
}

func TestPackConstituteMatchesInitDataEncoding(t *testing.T) {
	entries := sampleInitData()

	calldata, err := PackConstitute(entries)
	require.NoError(t, err)

	payload, err := EncodeMandateInitData(entries)
	require.NoError(t, err)

	assert.Equal(t, powersABI.Methods["constitute"].ID, calldata[:4])
	assert.Equal(t, payload, calldata[4:])

	name, err := MethodName(calldata)
	require.NoError(t, err)
	assert.Equal(t, "constitute", name)
}

func TestPackConstructor(t *testing.T) {
	packed, err := PackConstructor("Powers 101", "ipfs://uri")
	require.NoError(t, err)

	values, err := powersABI.Constructor.Inputs.Unpack(packed)
	require.NoError(t, err)
	require.Len(t, values, 5)
	assert.Equal(t, "Powers 101", values[0])
	assert.Equal(t, "ipfs://uri", values[1])
	assert.Equal(t, int64(10_000), values[2].(*big.Int).Int64())
	assert.Equal(t, int64(10_000), values[3].(*big.Int).Int64())
	assert.Equal(t, int64(25), values[4].(*big.Int).Int64())
}

func TestMethodName(t *testing.T) {
	account := common.HexToAddress("0x00000000000000000000000000000000000000b1")

	assign, err := PackAssignRole(big.NewInt(1), account)
	require.NoError(t, err)
	revoke, err := PackRevokeRole(big.NewInt(1), account)
	require.NoError(t, err)
	label, err := PackLabelRole(big.NewInt(1), "Members")
	require.NoError(t, err)
	revokeMandate, err := PackRevokeMandate(1)
	require.NoError(t, err)
	closeConstitute, err := PackCloseConstitute()
	require.NoError(t, err)
	transfer, err := PackTransferOwnership(account)
	require.NoError(t, err)

	cases := map[string][]byte{
		"assignRole":        assign,
		"revokeRole":        revoke,
		"labelRole":         label,
		"revokeMandate":     revokeMandate,
		"closeConstitute":   closeConstitute,
		"transferOwnership": transfer,
	}
	for want, calldata := range cases {
		got, err := MethodName(calldata)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err = MethodName([]byte{0x01})
	assert.Error(t, err)
	_, err = MethodName([]byte{0x00, 0x00, 0x00, 0x00})
	assert.Error(t, err)
}

func TestSelector(t *testing.T) {
	assert.Equal(t, [4]byte{0xf2, 0xfd, 0xe3, 0x8b}, Selector("transferOwnership(address)"))

	assign, err := PackAssignRole(big.NewInt(2), common.Address{})
	require.NoError(t, err)
	sel := Selector("assignRole(uint256,address)")
	assert.Equal(t, sel[:], assign[:4])
}

func TestHashAction(t *testing.T) {
	calldata, err := Encode([]string{"uint256"}, []any{1})
	require.NoError(t, err)

	a, err := HashAction(3, calldata, big.NewInt(7))
	require.NoError(t, err)
	b, err := HashAction(3, calldata, big.NewInt(7))
	require.NoError(t, err)
	c, err := HashAction(3, calldata, big.NewInt(8))
	require.NoError(t, err)

	assert.Equal(t, 0, a.Cmp(b))
	assert.NotEqual(t, 0, a.Cmp(c))
	assert.LessOrEqual(t, a.BitLen(), 256)
}
