package organizations

import (
	"slices"

	"github.com/ethereum/go-ethereum/common"
	"github.com/powers-protocol/powers/pkg/domain"
)

// Metadata describes an organization template.
type Metadata struct {
	ID            string `json:"id" yaml:"id"`
	Title         string `json:"title" yaml:"title"`
	URI           string `json:"uri" yaml:"uri"`
	Banner        string `json:"banner,omitempty" yaml:"banner,omitempty"`
	Description   string `json:"description" yaml:"description"`
	Disabled      bool   `json:"disabled" yaml:"disabled"`
	OnlyLocalhost bool   `json:"onlyLocalhost" yaml:"onlyLocalhost"`
}

// BuildContext is everything a template needs to produce its constitution.
type BuildContext struct {
	PowersAddress common.Address
	FormData      map[string]string
	Mandates      map[string]common.Address
	Receipts      map[string]domain.Receipt
	ChainID       uint64
}

// DependencyContext is passed to templates that derive their dependencies
// from user input.
type DependencyContext struct {
	FormData map[string]string
	ChainID  uint64
}

// Organization is a deployable governance template.
type Organization struct {
	Metadata             Metadata `json:"metadata"`
	Fields               []Field  `json:"fields"`
	AllowedChains        []uint64 `json:"allowedChains"`
	AllowedChainsLocally []uint64 `json:"allowedChainsLocally"`
	// RequiredMandates lists the mandate implementations Build resolves from
	// the chain's static data.
	RequiredMandates []string `json:"requiredMandates"`

	Dependencies func(DependencyContext) ([]domain.Dependency, error) `json:"-"`
	Build        func(BuildContext) ([]domain.MandateInitData, error)  `json:"-"`
}

// AllowsChain reports whether the template may be deployed on chainID.
func (o *Organization) AllowsChain(chainID uint64, local bool) bool {
	if local {
		return slices.Contains(o.AllowedChainsLocally, chainID)
	}
	return slices.Contains(o.AllowedChains, chainID)
}

// ResolveDependencies returns the template's dependencies for the given
// input, or none when the template has no dependencies.
func (o *Organization) ResolveDependencies(ctx DependencyContext) ([]domain.Dependency, error) {
	if o.Dependencies == nil {
		return nil, nil
	}
	return o.Dependencies(ctx)
}

var registry = []*Organization{
	powers101(),
	optimisticExecution(),
	bicameralism(),
	tokenDelegates(),
}

// All returns every registered template, including disabled ones.
func All() []*Organization {
	return slices.Clone(registry)
}

// ByID returns the template with the given id.
func ByID(id string) (*Organization, bool) {
	for _, o := range registry {
		if o.Metadata.ID == id {
			return o, true
		}
	}
	return nil, false
}

// ByTitle returns the template with the given title.
func ByTitle(title string) (*Organization, bool) {
	for _, o := range registry {
		if o.Metadata.Title == title {
			return o, true
		}
	}
	return nil, false
}

// Public returns templates visible outside local development.
func Public() []*Organization {
	return filter(func(o *Organization) bool { return !o.Metadata.OnlyLocalhost })
}

// LocalOnly returns templates only offered against a local node.
func LocalOnly() []*Organization {
	return filter(func(o *Organization) bool { return o.Metadata.OnlyLocalhost })
}

// Enabled returns the templates a user may deploy.
func Enabled(local bool) []*Organization {
	return filter(func(o *Organization) bool {
		return !o.Metadata.Disabled && (!o.Metadata.OnlyLocalhost || local)
	})
}

func filter(keep func(*Organization) bool) []*Organization {
	var out []*Organization
	for _, o := range registry {
		if keep(o) {
			out = append(out, o)
		}
	}
	return out
}
