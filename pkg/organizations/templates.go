package organizations

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/powers-protocol/powers/pkg/abicodec"
	"github.com/powers-protocol/powers/pkg/domain"
)

const ipfsGateway = "https://aqua-famous-sailfish-288.mypinata.cloud/ipfs/"

func powers101() *Organization {
	return &Organization{
		Metadata: Metadata{
			ID:          "powers-101",
			Title:       "Powers 101",
			URI:         ipfsGateway + "bafkreicbh6txnypkoy6ivngl3l2k6m646hruupqspyo7naf2jpiumn2jqe",
			Banner:      ipfsGateway + "bafybeickdiqcdmjjwx6ah6ckuveufjw6n2g6qdvatuhxcsbmkub3pvshnm",
			Description: "A simple DAO with basic governance based on a separation of powers between delegates, an executive council and an admin. It is a good starting point for understanding the Powers protocol.",
		},
		AllowedChains:        []uint64{domain.ChainSepolia, domain.ChainOptimismSepolia},
		AllowedChainsLocally: []uint64{domain.ChainSepolia, domain.ChainOptimismSepolia, domain.ChainFoundry},
		RequiredMandates:     []string{"PresetSingleAction", "StatementOfIntent", "OpenAction", "SelfSelect"},
		Build: func(ctx BuildContext) ([]domain.MandateInitData, error) {
			b := newBuilder(ctx)
			vote := MinutesToBlocks(5, ctx.ChainID)

			b.add("Initial Setup: Assign role labels (Members, Delegates) and revoke itself after execution",
				"PresetSingleAction", b.setupConfig("Members", "Delegates"),
				domain.Conditions{AllowedRole: AdminRole})

			intent := b.statementOfIntentConfig(executeActionParams...)
			proposal := b.add("Statement Of Intent: Members can initiate an action through a Statement of Intent that Delegates can later execute",
				"StatementOfIntent", intent,
				domain.Conditions{AllowedRole: big.NewInt(1), VotingPeriod: vote, SucceedAt: 51, Quorum: 20})
			veto := b.add("Veto Action: Admin can veto actions proposed by the community",
				"StatementOfIntent", intent,
				domain.Conditions{AllowedRole: AdminRole, NeedFulfilled: proposal})
			b.add("Execute Action: Delegates approve and execute actions proposed by the community",
				"OpenAction", nil,
				domain.Conditions{
					AllowedRole:      big.NewInt(2),
					Quorum:           50,
					SucceedAt:        77,
					VotingPeriod:     vote,
					NeedFulfilled:    proposal,
					NeedNotFulfilled: veto,
					Timelock:         MinutesToBlocks(3, ctx.ChainID),
				})

			b.add("Join as Member: Anyone can self-select to become a community member",
				"SelfSelect", b.selfSelectConfig(1),
				domain.Conditions{AllowedRole: PublicRole, ThrottleExecution: 25})
			b.add("Become Delegate: Community members can self-select to become a Delegate",
				"SelfSelect", b.selfSelectConfig(2),
				domain.Conditions{AllowedRole: big.NewInt(1), ThrottleExecution: 25})

			return b.result()
		},
	}
}

func optimisticExecution() *Organization {
	return &Organization{
		Metadata: Metadata{
			ID:            "optimistic-execution",
			Title:         "Optimistic Execution",
			URI:           ipfsGateway + "bafkreibzf5td4orxnfknmrz5giiifw4ltsbzciaam7izm6dok5pkm6aqqa",
			Banner:        ipfsGateway + "bafybeihd4il4irvu3kqxnlohkkzlhpywcujqmabwldi3nftqmt5xaszwxy",
			Description:   "Proposals are assumed valid unless challenged: executives act optimistically while members hold a high-threshold veto.",
			OnlyLocalhost: true,
		},
		AllowedChains:        []uint64{domain.ChainSepolia, domain.ChainOptimismSepolia},
		AllowedChainsLocally: []uint64{domain.ChainSepolia, domain.ChainOptimismSepolia, domain.ChainFoundry},
		RequiredMandates:     []string{"PresetSingleAction", "StatementOfIntent", "OpenAction", "BespokeActionSimple"},
		Build: func(ctx BuildContext) ([]domain.MandateInitData, error) {
			b := newBuilder(ctx)
			vote := MinutesToBlocks(5, ctx.ChainID)

			b.add("Initial Setup: Assign role labels (Members, Executives) and revoke itself after execution",
				"PresetSingleAction", b.setupConfig("Members", "Executives"),
				domain.Conditions{AllowedRole: AdminRole})

			veto := b.add("Veto Actions: Members can veto actions",
				"StatementOfIntent", b.statementOfIntentConfig(executeActionParams...),
				domain.Conditions{AllowedRole: big.NewInt(1), VotingPeriod: vote, SucceedAt: 66, Quorum: 66})
			b.add("Execute an action: Executives execute actions unless vetoed",
				"OpenAction", nil,
				domain.Conditions{AllowedRole: big.NewInt(2), VotingPeriod: vote, SucceedAt: 51, Quorum: 33, NeedNotFulfilled: veto})

			addRoleMandates(b, ctx)
			return b.result()
		},
	}
}

func bicameralism() *Organization {
	return &Organization{
		Metadata: Metadata{
			ID:          "bicameralism",
			Title:       "Bicameralism",
			URI:         ipfsGateway + "bafkreidlcgxe2mnwghrk4o5xenybljieurrxhtio6gq5fq5u6lxduyyl6e",
			Banner:      ipfsGateway + "bafybeihlduuz4ql3mcwyqifixrctuou6v45pspp5igjzmznpxwto6qdtdu",
			Description: "Governance is divided into two chambers with distinct powers: Delegates initiate an action, but it can only be executed by Funders.",
		},
		AllowedChains:        []uint64{domain.ChainSepolia, domain.ChainOptimismSepolia},
		AllowedChainsLocally: []uint64{domain.ChainSepolia, domain.ChainOptimismSepolia, domain.ChainFoundry},
		RequiredMandates:     []string{"PresetSingleAction", "StatementOfIntent", "OpenAction", "BespokeActionSimple"},
		Build: func(ctx BuildContext) ([]domain.MandateInitData, error) {
			b := newBuilder(ctx)
			vote := MinutesToBlocks(5, ctx.ChainID)

			b.add("Initial Setup: Assign role labels (Delegates, Funders) and revokes itself after execution",
				"PresetSingleAction", b.setupConfig("Delegates", "Funders"),
				domain.Conditions{AllowedRole: AdminRole})

			initiate := b.add("Initiate action: Delegates can initiate an action",
				"StatementOfIntent", b.statementOfIntentConfig(executeActionParams...),
				domain.Conditions{AllowedRole: big.NewInt(1), VotingPeriod: vote, SucceedAt: 51, Quorum: 33})
			b.add("Execute an action: Funders can execute an action.",
				"OpenAction", nil,
				domain.Conditions{AllowedRole: big.NewInt(2), VotingPeriod: vote, SucceedAt: 51, Quorum: 33, NeedFulfilled: initiate})

			addRoleMandates(b, ctx)
			return b.result()
		},
	}
}

// addRoleMandates appends the admin assign / role-2 revoke pair shared by
// several templates.
func addRoleMandates(b *builder, ctx BuildContext) {
	assign := b.add("Admin can assign any role: For this demo, the admin can assign any role to an account.",
		"BespokeActionSimple",
		b.bespokeActionConfig(ctx.PowersAddress, "assignRole(uint256,address)", "uint256 roleId", "address account"),
		domain.Conditions{AllowedRole: AdminRole})
	b.add("A delegate can revoke a role: For this demo, any delegate can revoke previously assigned roles.",
		"BespokeActionSimple",
		b.bespokeActionConfig(ctx.PowersAddress, "revokeRole(uint256,address)", "uint256 roleId", "address account"),
		domain.Conditions{AllowedRole: big.NewInt(2), NeedFulfilled: assign})
}

// VotesTokenDependency is the name under which the token deployed by the
// Token Delegates template is tracked.
const VotesTokenDependency = "VotesToken"

func tokenDelegates() *Organization {
	return &Organization{
		Metadata: Metadata{
			ID:          "token-delegates",
			Title:       "Token Delegates",
			Description: "Delegates are elected by token holders. The organization deploys its own votes token and takes ownership of it, so only governance can mint.",
		},
		Fields: []Field{
			{Name: "tokenName", Label: "Token name", Placeholder: "Powers Votes", Type: FieldText, Required: true},
			{Name: "tokenSymbol", Label: "Token symbol", Placeholder: "PWV", Type: FieldText, Required: true},
			{Name: "maxDelegates", Label: "Maximum delegates", Type: FieldNumber, Required: true, Min: 1, Max: 100},
			{Name: "quorum", Label: "Quorum (%)", Type: FieldPercentage, Required: true},
		},
		AllowedChains:        []uint64{domain.ChainSepolia, domain.ChainArbitrumSepolia},
		AllowedChainsLocally: []uint64{domain.ChainSepolia, domain.ChainArbitrumSepolia, domain.ChainFoundry},
		RequiredMandates:     []string{"PresetSingleAction", "DelegateTokenSelect", "StatementOfIntent", "OpenAction"},
		Dependencies: func(ctx DependencyContext) ([]domain.Dependency, error) {
			name := strings.TrimSpace(ctx.FormData["tokenName"])
			symbol := strings.TrimSpace(ctx.FormData["tokenSymbol"])
			args, err := abicodec.Encode([]string{"string", "string"}, []any{name, symbol})
			if err != nil {
				return nil, fmt.Errorf("failed to encode token constructor: %w", err)
			}
			return []domain.Dependency{{
				Name:            VotesTokenDependency,
				Kind:            domain.DependencyDeployable,
				BytecodeRef:     VotesTokenDependency,
				ConstructorArgs: args,
				Ownable:         true,
			}}, nil
		},
		Build: func(ctx BuildContext) ([]domain.MandateInitData, error) {
			receipt, ok := ctx.Receipts[VotesTokenDependency]
			if !ok || receipt.ContractAddress == nil {
				return nil, fmt.Errorf("no deployed address for dependency %s", VotesTokenDependency)
			}
			token := *receipt.ContractAddress

			quorum, err := percentage(ctx.FormData["quorum"])
			if err != nil {
				return nil, err
			}

			b := newBuilder(ctx)
			vote := MinutesToBlocks(10, ctx.ChainID)

			b.add("Initial Setup: Assign role labels (Delegates) and revoke itself after execution",
				"PresetSingleAction", b.setupConfig("Delegates"),
				domain.Conditions{AllowedRole: AdminRole})
			b.add("Elect Delegates: Anyone can trigger an election of the accounts holding the most delegated votes",
				"DelegateTokenSelect",
				b.encode([]string{"address", "uint256", "uint256"}, token, ctx.FormData["maxDelegates"], 1),
				domain.Conditions{AllowedRole: PublicRole, ThrottleExecution: MinutesToBlocks(60, ctx.ChainID)})

			intent := b.statementOfIntentConfig(executeActionParams...)
			proposal := b.add("Propose Action: Delegates propose an action",
				"StatementOfIntent", intent,
				domain.Conditions{AllowedRole: big.NewInt(1), VotingPeriod: vote, SucceedAt: 51, Quorum: quorum})
			veto := b.add("Veto Action: Admin can veto a proposed action",
				"StatementOfIntent", intent,
				domain.Conditions{AllowedRole: AdminRole, NeedFulfilled: proposal})
			b.add("Execute Action: Delegates execute a proposed action that was not vetoed",
				"OpenAction", nil,
				domain.Conditions{
					AllowedRole:      big.NewInt(1),
					NeedFulfilled:    proposal,
					NeedNotFulfilled: veto,
					Timelock:         MinutesToBlocks(5, ctx.ChainID),
				})

			return b.result()
		},
	}
}

func percentage(value string) (uint8, error) {
	value = strings.TrimSpace(value)
	n, err := strconv.ParseUint(value, 10, 8)
	if err != nil || n > 100 {
		return 0, &ValidationError{Field: "quorum", Message: "Value must be a whole number between 0 and 100"}
	}
	return uint8(n), nil
}
