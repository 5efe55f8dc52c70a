package organizations

import (
	"fmt"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/powers-protocol/powers/pkg/abicodec"
	"github.com/powers-protocol/powers/pkg/domain"
)

// Role ids with protocol-level meaning.
var (
	AdminRole  = big.NewInt(0)
	PublicRole = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
)

// MissingMandateError is returned when a template references a mandate
// implementation that the chain's static data does not list.
type MissingMandateError struct {
	Name string
}

func (e *MissingMandateError) Error() string {
	return fmt.Sprintf("mandate address not found for %q", e.Name)
}

// InitialisedAddress looks up the deployed address of a mandate
// implementation by name.
func InitialisedAddress(name string, mandates map[string]common.Address) (common.Address, error) {
	addr, ok := mandates[name]
	if !ok || addr == (common.Address{}) {
		return common.Address{}, &MissingMandateError{Name: name}
	}
	return addr, nil
}

// CreateConditions fills unset fields of c with their defaults. Every field
// defaults to zero; a nil role becomes the admin role.
func CreateConditions(c domain.Conditions) domain.Conditions {
	if c.AllowedRole == nil {
		c.AllowedRole = AdminRole
	}
	return c
}

// MinutesToBlocks converts a duration in minutes to a block count on chainID.
func MinutesToBlocks(minutes float64, chainID uint64) uint32 {
	return toBlocks(minutes*blocksPerHour(chainID)/60)
}

// HoursToBlocks converts a duration in hours to a block count on chainID.
func HoursToBlocks(hours float64, chainID uint64) uint32 {
	return toBlocks(hours * blocksPerHour(chainID))
}

// DaysToBlocks converts a duration in days to a block count on chainID.
func DaysToBlocks(days float64, chainID uint64) uint32 {
	return toBlocks(days * blocksPerHour(chainID) * 24)
}

func blocksPerHour(chainID uint64) float64 {
	return float64(domain.LookupChain(chainID).BlocksPerHour)
}

func toBlocks(blocks float64) uint32 {
	blocks = math.Floor(blocks)
	if blocks <= 0 {
		return 0
	}
	if blocks > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(blocks)
}

// builder accumulates mandate init data for a template. The first error is
// sticky: later calls become no-ops and result reports it.
type builder struct {
	ctx     BuildContext
	entries []domain.MandateInitData
	err     error
}

func newBuilder(ctx BuildContext) *builder {
	return &builder{ctx: ctx}
}

// add appends a mandate and returns its 1-based index.
func (b *builder) add(description, implementation string, config []byte, conditions domain.Conditions) uint16 {
	target := b.target(implementation)
	if config == nil {
		config = []byte{}
	}
	b.entries = append(b.entries, domain.MandateInitData{
		NameDescription: description,
		TargetMandate:   target,
		Config:          config,
		Conditions:      CreateConditions(conditions),
	})
	return uint16(len(b.entries))
}

func (b *builder) target(name string) common.Address {
	if b.err != nil {
		return common.Address{}
	}
	addr, err := InitialisedAddress(name, b.ctx.Mandates)
	if err != nil {
		b.err = err
	}
	return addr
}

func (b *builder) encode(types []string, values ...any) []byte {
	if b.err != nil {
		return nil
	}
	out, err := abicodec.Encode(types, values)
	if err != nil {
		b.err = err
	}
	return out
}

func (b *builder) call(pack func() ([]byte, error)) []byte {
	if b.err != nil {
		return nil
	}
	out, err := pack()
	if err != nil {
		b.err = err
	}
	return out
}

// setupConfig encodes a PresetSingleAction config that labels roles on the
// Powers contract and then revokes mandate 1 (the setup mandate itself).
func (b *builder) setupConfig(labels ...string) []byte {
	powers := b.ctx.PowersAddress
	var targets []any
	var values []any
	var calldatas []any
	for i, label := range labels {
		roleID := big.NewInt(int64(i + 1))
		targets = append(targets, powers)
		values = append(values, 0)
		calldatas = append(calldatas, b.call(func() ([]byte, error) {
			return abicodec.PackLabelRole(roleID, label)
		}))
	}
	targets = append(targets, powers)
	values = append(values, 0)
	calldatas = append(calldatas, b.call(func() ([]byte, error) {
		return abicodec.PackRevokeMandate(1)
	}))
	return b.encode([]string{"address[]", "uint256[]", "bytes[]"}, targets, values, calldatas)
}

func (b *builder) statementOfIntentConfig(params ...string) []byte {
	return b.encode([]string{"string[]"}, params)
}

func (b *builder) selfSelectConfig(roleID int64) []byte {
	return b.encode([]string{"uint256"}, roleID)
}

func (b *builder) bespokeActionConfig(target common.Address, signature string, params ...string) []byte {
	selector := abicodec.Selector(signature)
	return b.encode([]string{"address", "bytes4", "string[]"}, target, selector[:], params)
}

func (b *builder) result() ([]domain.MandateInitData, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.entries, nil
}

var executeActionParams = []string{"address[] targets", "uint256[] values", "bytes[] calldatas"}
