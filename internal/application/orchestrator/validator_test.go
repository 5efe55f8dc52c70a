package orchestrator

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/powers-protocol/powers/pkg/domain"
	"github.com/powers-protocol/powers/pkg/organizations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatorValidatePowers101(t *testing.T) {
	plan, err := NewValidator().Validate(powers101Request(), foundryStatic())
	require.NoError(t, err)

	assert.Equal(t, "powers-101", plan.Organization.Metadata.ID)
	assert.Equal(t, []byte{0x60, 0x80, 0x60, 0x40, 0x52}, plan.PowersBytecode)
	assert.Empty(t, plan.Dependencies)
}

func TestValidatorValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(req *domain.DeploymentRequest, static *domain.StaticData)
		wantErr string
		missing string
	}{
		{
			name:    "empty organization",
			mutate:  func(req *domain.DeploymentRequest, _ *domain.StaticData) { req.OrganizationID = "" },
			wantErr: "organization ID is required",
		},
		{
			name:    "unknown organization",
			mutate:  func(req *domain.DeploymentRequest, _ *domain.StaticData) { req.OrganizationID = "nope" },
			wantErr: "unknown organization: nope",
		},
		{
			name:    "chain not allowed",
			mutate:  func(req *domain.DeploymentRequest, _ *domain.StaticData) { req.ChainID = domain.ChainMantleSepolia },
			wantErr: "cannot be deployed on chain 5003",
		},
		{
			name:    "foundry needs local",
			mutate:  func(req *domain.DeploymentRequest, _ *domain.StaticData) { req.Local = false },
			wantErr: "cannot be deployed on chain 31337",
		},
		{
			name:    "missing powers bytecode",
			mutate:  func(_ *domain.DeploymentRequest, s *domain.StaticData) { s.Powers = "" },
			missing: "Powers",
		},
		{
			name:    "invalid powers bytecode",
			mutate:  func(_ *domain.DeploymentRequest, s *domain.StaticData) { s.Powers = "0xzz" },
			wantErr: "invalid Powers bytecode",
		},
		{
			name:    "missing mandate",
			mutate:  func(_ *domain.DeploymentRequest, s *domain.StaticData) { delete(s.Mandates, "SelfSelect") },
			missing: "SelfSelect",
		},
		{
			name: "zero mandate address",
			mutate: func(_ *domain.DeploymentRequest, s *domain.StaticData) {
				s.Mandates["OpenAction"] = common.Address{}
			},
			missing: "OpenAction",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := powers101Request()
			static := foundryStatic()
			tt.mutate(&req, static)

			_, err := NewValidator().Validate(req, static)
			require.Error(t, err)
			if tt.wantErr != "" {
				assert.Contains(t, err.Error(), tt.wantErr)
			}
			if tt.missing != "" {
				var missing *MissingConfigError
				require.ErrorAs(t, err, &missing)
				assert.Equal(t, tt.missing, missing.Name)
			}
		})
	}
}

func TestValidatorUnknownOrganizationIsSentinel(t *testing.T) {
	req := powers101Request()
	req.OrganizationID = "nope"
	_, err := NewValidator().Validate(req, foundryStatic())
	assert.ErrorIs(t, err, ErrUnknownOrganization)
}

func TestValidatorNilStaticData(t *testing.T) {
	_, err := NewValidator().Validate(powers101Request(), nil)
	var missing *MissingConfigError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "static data", missing.Kind)
}

func TestValidatorFormFields(t *testing.T) {
	req := domain.DeploymentRequest{
		OrganizationID: "token-delegates",
		ChainID:        domain.ChainFoundry,
		Local:          true,
		FormData: map[string]string{
			"tokenName":    "Powers Votes",
			"tokenSymbol":  "PWV",
			"maxDelegates": "500",
			"quorum":       "30",
		},
	}
	_, err := NewValidator().Validate(req, foundryStatic())

	var invalid *organizations.ValidationError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "maxDelegates", invalid.Field)
}

func TestValidatorResolvesBytecodeRef(t *testing.T) {
	req := domain.DeploymentRequest{
		OrganizationID: "token-delegates",
		ChainID:        domain.ChainFoundry,
		Local:          true,
		FormData: map[string]string{
			"tokenName":    "Powers Votes",
			"tokenSymbol":  "PWV",
			"maxDelegates": "5",
			"quorum":       "30",
		},
	}

	plan, err := NewValidator().Validate(req, foundryStatic())
	require.NoError(t, err)
	require.Len(t, plan.Dependencies, 1)
	assert.Equal(t, []byte{0x60, 0x80, 0x60, 0x40}, plan.Dependencies[0].Bytecode)

	static := foundryStatic()
	delete(static.Bytecodes, "VotesToken")
	_, err = NewValidator().Validate(req, static)
	var missing *MissingConfigError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "bytecode", missing.Kind)
	assert.Equal(t, organizations.VotesTokenDependency, missing.Name)
}

func TestValidatorDependencyChecks(t *testing.T) {
	target := common.HexToAddress("0x00000000000000000000000000000000000000bb")

	tests := []struct {
		name string
		deps []domain.Dependency
		kind string
		err  string
	}{
		{
			name: "duplicate names",
			deps: []domain.Dependency{
				{Name: "A", Kind: domain.DependencyDeployable, Bytecode: []byte{1}},
				{Name: "A", Kind: domain.DependencyDeployable, Bytecode: []byte{1}},
			},
			err: "duplicate dependency name: A",
		},
		{
			name: "missing name",
			deps: []domain.Dependency{{Kind: domain.DependencyDeployable, Bytecode: []byte{1}}},
			err:  "dependency name is required",
		},
		{
			name: "call without target",
			deps: []domain.Dependency{{Name: "B", Kind: domain.DependencyFunctionCall, CallData: []byte{1}}},
			kind: "target",
		},
		{
			name: "call without calldata",
			deps: []domain.Dependency{{Name: "B", Kind: domain.DependencyFunctionCall, Target: target}},
			kind: "calldata",
		},
		{
			name: "unknown kind",
			deps: []domain.Dependency{{Name: "C", Kind: "proxy"}},
			err:  "unknown dependency type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			org := customOrganization(target)
			deps := tt.deps
			org.Dependencies = func(organizations.DependencyContext) ([]domain.Dependency, error) { return deps, nil }

			_, err := NewValidator().Prepare(org, powers101Request(), foundryStatic())
			require.Error(t, err)
			if tt.err != "" {
				assert.Contains(t, err.Error(), tt.err)
			}
			if tt.kind != "" {
				var missing *MissingConfigError
				require.ErrorAs(t, err, &missing)
				assert.Equal(t, tt.kind, missing.Kind)
			}
		})
	}
}

func TestValidatorDryRunCatchesUnlistedMandate(t *testing.T) {
	org := customOrganization(common.Address{})
	org.Dependencies = nil
	org.RequiredMandates = nil
	org.Build = func(ctx organizations.BuildContext) ([]domain.MandateInitData, error) {
		addr, err := organizations.InitialisedAddress("Erc20Taxed", ctx.Mandates)
		if err != nil {
			return nil, err
		}
		return []domain.MandateInitData{{TargetMandate: addr}}, nil
	}

	_, err := NewValidator().Prepare(org, powers101Request(), foundryStatic())
	var missing *MissingConfigError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "mandate", missing.Kind)
	assert.Equal(t, "Erc20Taxed", missing.Name)
}

func TestValidatorDisabledAndLocalOnly(t *testing.T) {
	org := customOrganization(common.HexToAddress("0xbb"))
	org.Metadata.Disabled = true
	_, err := NewValidator().Prepare(org, powers101Request(), foundryStatic())
	assert.ErrorContains(t, err, "disabled")

	org = customOrganization(common.HexToAddress("0xbb"))
	org.Metadata.OnlyLocalhost = true
	req := powers101Request()
	req.Local = false
	_, err = NewValidator().Prepare(org, req, foundryStatic())
	assert.ErrorContains(t, err, "only available on a local chain")
}

func TestDecodeBytecode(t *testing.T) {
	for _, in := range []string{"0x6080", "6080", " 0X6080 "} {
		out, err := decodeBytecode(in)
		require.NoError(t, err, in)
		assert.Equal(t, []byte{0x60, 0x80}, out, in)
	}
	out, err := decodeBytecode("0x")
	require.NoError(t, err)
	assert.Nil(t, out)
}
