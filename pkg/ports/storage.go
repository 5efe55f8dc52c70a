package ports

import (
	"context"
	"errors"

	"github.com/powers-protocol/powers/pkg/domain"
)

// ErrNotFound is returned by stores when a key has no record.
var ErrNotFound = errors.New("not found")

// DeploymentStore persists deployment sessions.
type DeploymentStore interface {
	SaveDeployment(ctx context.Context, state *domain.DeploymentState) error
	GetDeployment(ctx context.Context, deploymentID string) (*domain.DeploymentState, error)
	DeleteDeployment(ctx context.Context, deploymentID string) error
	ListDeployments(ctx context.Context) ([]string, error)
}

// LayoutStore persists per-contract graph layouts. Addresses are compared
// case-insensitively.
type LayoutStore interface {
	GetLayout(ctx context.Context, address string) (*domain.LayoutRecord, error)
	SaveLayout(ctx context.Context, record *domain.LayoutRecord) error
	DeleteLayout(ctx context.Context, address string) error
}
