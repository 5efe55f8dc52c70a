package orchestrator

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/powers-protocol/powers/pkg/abicodec"
	"github.com/powers-protocol/powers/pkg/domain"
	"github.com/powers-protocol/powers/pkg/organizations"
)

// Plan is a validated deployment, ready to run.
type Plan struct {
	Organization   *organizations.Organization
	Request        domain.DeploymentRequest
	StaticData     *domain.StaticData
	PowersBytecode []byte
	// Dependencies have their creation code resolved.
	Dependencies []domain.Dependency
}

// Validator validates deployment requests before any transaction is sent
type Validator struct {
	lookup func(id string) (*organizations.Organization, bool)
}

// NewValidator creates a new deployment validator
func NewValidator() *Validator {
	return &Validator{lookup: organizations.ByID}
}

// Validate resolves the request's organization and checks the request
// against it and the chain's static data.
func (v *Validator) Validate(req domain.DeploymentRequest, static *domain.StaticData) (*Plan, error) {
	if req.OrganizationID == "" {
		return nil, fmt.Errorf("organization ID is required")
	}
	org, ok := v.lookup(req.OrganizationID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOrganization, req.OrganizationID)
	}
	return v.Prepare(org, req, static)
}

// Prepare checks everything a deployment of org needs: chain support, form
// input, static data and the constitution itself, which is built once with
// placeholder addresses. A nil error means only on-chain failures remain.
func (v *Validator) Prepare(org *organizations.Organization, req domain.DeploymentRequest, static *domain.StaticData) (*Plan, error) {
	if org == nil {
		return nil, fmt.Errorf("organization is nil")
	}

	meta := org.Metadata
	if meta.Disabled {
		return nil, fmt.Errorf("organization %s is disabled", meta.ID)
	}
	if meta.OnlyLocalhost && !req.Local {
		return nil, fmt.Errorf("organization %s is only available on a local chain", meta.ID)
	}
	if !org.AllowsChain(req.ChainID, req.Local) {
		return nil, fmt.Errorf("organization %s cannot be deployed on chain %d", meta.ID, req.ChainID)
	}

	if err := organizations.ValidateFields(org.Fields, req.FormData); err != nil {
		return nil, err
	}

	if static == nil {
		return nil, &MissingConfigError{Kind: "static data", Name: fmt.Sprintf("chain %d", req.ChainID)}
	}
	powers, err := decodeBytecode(static.Powers)
	if err != nil {
		return nil, fmt.Errorf("invalid Powers bytecode: %w", err)
	}
	if len(powers) == 0 {
		return nil, &MissingConfigError{Kind: "bytecode", Name: "Powers"}
	}

	for _, name := range org.RequiredMandates {
		if _, err := organizations.InitialisedAddress(name, static.Mandates); err != nil {
			return nil, &MissingConfigError{Kind: "mandate", Name: name, Err: err}
		}
	}

	deps, err := org.ResolveDependencies(organizations.DependencyContext{
		FormData: req.FormData,
		ChainID:  req.ChainID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve dependencies: %w", err)
	}
	resolved, err := v.resolveDependencies(deps, static)
	if err != nil {
		return nil, err
	}

	if err := v.dryRun(org, req, static, resolved); err != nil {
		return nil, err
	}

	return &Plan{
		Organization:   org,
		Request:        req,
		StaticData:     static,
		PowersBytecode: powers,
		Dependencies:   resolved,
	}, nil
}

// resolveDependencies validates each dependency and fills in its creation
// code.
func (v *Validator) resolveDependencies(deps []domain.Dependency, static *domain.StaticData) ([]domain.Dependency, error) {
	names := make(map[string]bool, len(deps))
	out := make([]domain.Dependency, 0, len(deps))

	for _, dep := range deps {
		if dep.Name == "" {
			return nil, fmt.Errorf("dependency name is required")
		}
		if names[dep.Name] {
			return nil, fmt.Errorf("duplicate dependency name: %s", dep.Name)
		}
		names[dep.Name] = true

		switch dep.Kind {
		case domain.DependencyDeployable:
			code := dep.Bytecode
			if len(code) == 0 && dep.BytecodeRef != "" {
				decoded, err := decodeBytecode(static.Bytecodes[dep.BytecodeRef])
				if err != nil {
					return nil, fmt.Errorf("invalid bytecode for %s: %w", dep.Name, err)
				}
				code = decoded
			}
			if len(code) == 0 {
				return nil, &MissingConfigError{Kind: "bytecode", Name: dep.Name}
			}
			dep.Bytecode = code

		case domain.DependencyFunctionCall:
			if dep.Target == (common.Address{}) {
				return nil, &MissingConfigError{Kind: "target", Name: dep.Name}
			}
			if len(dep.CallData) == 0 {
				return nil, &MissingConfigError{Kind: "calldata", Name: dep.Name}
			}

		default:
			return nil, fmt.Errorf("unknown dependency type for %s: %q", dep.Name, dep.Kind)
		}

		out = append(out, dep)
	}

	return out, nil
}

// dryRun builds and encodes the constitution against placeholder addresses.
func (v *Validator) dryRun(org *organizations.Organization, req domain.DeploymentRequest, static *domain.StaticData, deps []domain.Dependency) error {
	if org.Build == nil {
		return fmt.Errorf("organization %s has no constitution", org.Metadata.ID)
	}

	receipts := make(map[string]domain.Receipt, len(deps))
	for i, dep := range deps {
		r := domain.Receipt{Status: 1}
		if dep.Kind == domain.DependencyDeployable {
			addr := placeholderAddress(i + 2)
			r.ContractAddress = &addr
		}
		receipts[dep.Name] = r
	}

	entries, err := org.Build(organizations.BuildContext{
		PowersAddress: placeholderAddress(1),
		FormData:      req.FormData,
		Mandates:      static.Mandates,
		Receipts:      receipts,
		ChainID:       req.ChainID,
	})
	if err != nil {
		var missing *organizations.MissingMandateError
		if errors.As(err, &missing) {
			return &MissingConfigError{Kind: "mandate", Name: missing.Name, Err: err}
		}
		return fmt.Errorf("invalid organization input: %w", err)
	}
	if len(entries) == 0 {
		return fmt.Errorf("organization %s has an empty constitution", org.Metadata.ID)
	}
	if _, err := abicodec.PackConstitute(entries); err != nil {
		return fmt.Errorf("failed to encode constitution: %w", err)
	}
	return nil
}

func placeholderAddress(n int) common.Address {
	return common.BigToAddress(big.NewInt(int64(n)))
}

// decodeBytecode accepts hex with or without 0x prefix. Empty input decodes
// to nil.
func decodeBytecode(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0x" {
		return nil, nil
	}
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	return hexutil.Decode(s)
}
