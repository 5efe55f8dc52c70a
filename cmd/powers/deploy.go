package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/powers-protocol/powers/internal/application/orchestrator"
	"github.com/powers-protocol/powers/internal/config"
	"github.com/powers-protocol/powers/pkg/adapters/chain/ethereum"
	"github.com/powers-protocol/powers/pkg/adapters/events/memory"
	"github.com/powers-protocol/powers/pkg/adapters/metrics/prometheus"
	"github.com/powers-protocol/powers/pkg/adapters/staticdata"
	memorystorage "github.com/powers-protocol/powers/pkg/adapters/storage/memory"
	"github.com/powers-protocol/powers/pkg/domain"
	"github.com/powers-protocol/powers/pkg/organizations"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var deployFlags struct {
	org        string
	chainID    uint64
	local      bool
	form       map[string]string
	staticData string
}

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy an organization template and wait for the result",
	Long: `Deploys an organization template directly, without the API or a worker pool,
and prints every step as it happens. Chain endpoints and the signing key are read
from CHAIN_RPC_URLS and CHAIN_PRIVATE_KEY.`,
	Example: `  powers deploy --org powers-101 --chain 31337 --local
  powers deploy --org token-delegates --chain 11155111 \
    --form tokenName="Powers Votes" --form tokenSymbol=PWV --form maxDelegates=5 --form quorum=20`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if deployFlags.staticData != "" {
			cfg.Chain.StaticDataURL = deployFlags.staticData
		}
		req := domain.DeploymentRequest{
			OrganizationID: deployFlags.org,
			ChainID:        deployFlags.chainID,
			FormData:       deployFlags.form,
			Local:          deployFlags.local,
		}
		return deploy(cmd.Context(), cfg, req, cmd.OutOrStdout())
	},
}

var orgsCmd = &cobra.Command{
	Use:   "organizations",
	Short: "List the organization templates that can be deployed",
	RunE: func(cmd *cobra.Command, args []string) error {
		local, _ := cmd.Flags().GetBool("local")
		out := cmd.OutOrStdout()
		for _, org := range organizations.Enabled(local) {
			fmt.Fprintf(out, "%-22s %s\n", org.Metadata.ID, org.Metadata.Title)
			for _, f := range org.Fields {
				req := ""
				if f.Required {
					req = " (required)"
				}
				fmt.Fprintf(out, "  --form %s=<%s>%s\n", f.Name, f.Type, req)
			}
		}
		return nil
	},
}

func init() {
	deployCmd.Flags().StringVar(&deployFlags.org, "org", "", "organization template id")
	deployCmd.Flags().Uint64Var(&deployFlags.chainID, "chain", domain.ChainFoundry, "target chain id")
	deployCmd.Flags().BoolVar(&deployFlags.local, "local", false, "allow templates and chains offered for local development")
	deployCmd.Flags().StringToStringVar(&deployFlags.form, "form", nil, "template input as key=value, repeatable")
	deployCmd.Flags().StringVar(&deployFlags.staticData, "static-data", "", "override STATIC_DATA_URL")
	_ = deployCmd.MarkFlagRequired("org")
	rootCmd.AddCommand(deployCmd)

	orgsCmd.Flags().Bool("local", false, "include local-only templates")
	rootCmd.AddCommand(orgsCmd)
}

// deploy runs one deployment in process: the request is validated and
// queued on an in-memory bus, then executed on the caller's goroutine.
func deploy(ctx context.Context, cfg *config.Config, req domain.DeploymentRequest, out io.Writer) error {
	logger := initLogger(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	endpoints, err := cfg.Chain.Endpoints()
	if err != nil {
		return err
	}
	clients, err := ethereum.NewFactory(endpoints, cfg.Chain.PrivateKey, cfg.Chain.ReceiptPollInterval, logger)
	if err != nil {
		return fmt.Errorf("failed to create chain clients: %w", err)
	}
	defer clients.Close()

	bus := memory.NewEventBus(logger)
	defer func() { _ = bus.Close() }()
	store := memorystorage.NewStorage()
	metricsCollector := prometheus.NewCollector(nil)
	validator := orchestrator.NewValidator()

	manager := orchestrator.NewManager(bus, store, staticdata.NewSource(cfg.Chain.StaticDataURL, logger),
		metricsCollector, validator, logger, cfg.Timeouts.QueueTimeout)
	defer func() { _ = manager.Shutdown(context.Background()) }()

	executor := orchestrator.NewExecutor(orchestrator.ExecutorConfig{
		Storage:       store,
		EventBus:      bus,
		Clients:       clients,
		Validator:     validator,
		Metrics:       metricsCollector,
		Logger:        logger,
		IndexingDelay: cfg.Chain.IndexingDelay,
		Timeout:       cfg.Timeouts.DeploymentTimeout,
	})

	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := bus.Subscribe(subCtx, domain.TopicSteps, func(_ context.Context, e domain.Event) error {
		fmt.Fprintf(out, "%-8v %s\n", e.Data["stepStatus"], e.Step)
		return nil
	}); err != nil {
		return err
	}

	deploymentID, err := manager.Submit(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "deployment %s: %s on chain %d\n", deploymentID, req.OrganizationID, req.ChainID)

	runErr := executor.Execute(ctx, deploymentID)

	state, err := manager.GetStatus(context.WithoutCancel(ctx), deploymentID)
	if err != nil {
		return err
	}
	if state.Status.PowersAddress != nil {
		fmt.Fprintf(out, "powers   %s\n", state.Status.PowersAddress.Hex())
	}
	fmt.Fprintf(out, "status   %s\n", state.Status.Status)
	if runErr != nil {
		logger.Debug("deployment failed", zap.Error(runErr))
		return fmt.Errorf("deployment failed: %s", state.Status.Error)
	}
	return nil
}
