package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/powers-protocol/powers/pkg/abicodec"
	"github.com/powers-protocol/powers/pkg/domain"
	"github.com/powers-protocol/powers/pkg/organizations"
	"github.com/powers-protocol/powers/pkg/ports"
	"go.uber.org/zap"
)

// Names of the fixed final transactions.
const (
	StepPowersCreate    = "Deploy Powers"
	StepConstitute      = "Constitute Powers"
	StepCloseConstitute = "Close Constitute"
)

// TransferStepName is the status entry of the ownership transfer of dep.
func TransferStepName(dep string) string {
	return "Transfer ownership: " + dep
}

// DefaultIndexingDelay is the pause after each confirmed transaction on
// chains whose RPC nodes lag behind.
const DefaultIndexingDelay = 500 * time.Millisecond

// Progress is reported after every status transition.
type Progress struct {
	Step     string
	Status   *domain.DeployStatus
	Receipts map[string]domain.Receipt
}

// Reporter receives deployment progress. It is called synchronously from
// the sequence and must not block for long.
type Reporter func(Progress)

// Result is the outcome of a completed run.
type Result struct {
	PowersAddress common.Address
	Receipts      map[string]domain.Receipt
	Status        *domain.DeployStatus
}

// SequencerConfig holds sequencer settings.
type SequencerConfig struct {
	IndexingDelay time.Duration
	Metrics       ports.MetricsCollector
	Logger        *zap.Logger
}

// Sequencer runs the transactions of a deployment plan, strictly in order,
// halting on the first failure.
type Sequencer struct {
	client        ports.ChainClient
	profile       domain.ChainProfile
	indexingDelay time.Duration
	metrics       ports.MetricsCollector
	logger        *zap.Logger
	sleep         func(ctx context.Context, d time.Duration) error
}

// NewSequencer creates a sequencer sending transactions through client.
func NewSequencer(client ports.ChainClient, cfg SequencerConfig) *Sequencer {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Sequencer{
		client:        client,
		profile:       domain.LookupChain(client.ChainID()),
		indexingDelay: cfg.IndexingDelay,
		metrics:       cfg.Metrics,
		logger:        cfg.Logger,
		sleep:         sleepContext,
	}
}

// NewDeployStatus returns the all-idle status of a plan.
func NewDeployStatus(plan *Plan) *domain.DeployStatus {
	status := &domain.DeployStatus{
		PowersCreate: domain.StepStatusIdle,
		Status:       domain.StepStatusIdle,
		FinalTransactions: []domain.NamedStatus{
			{Name: StepConstitute, Status: domain.StepStatusIdle},
			{Name: StepCloseConstitute, Status: domain.StepStatusIdle},
		},
	}
	for _, dep := range plan.Dependencies {
		status.Dependencies = append(status.Dependencies, domain.NamedStatus{Name: dep.Name, Status: domain.StepStatusIdle})
		if dep.Ownable {
			status.FinalTransactions = append(status.FinalTransactions,
				domain.NamedStatus{Name: TransferStepName(dep.Name), Status: domain.StepStatusIdle})
		}
	}
	return status
}

// run is the mutable state of one sequence.
type run struct {
	s        *Sequencer
	plan     *Plan
	report   Reporter
	status   *domain.DeployStatus
	receipts map[string]domain.Receipt
	powers   common.Address
	logger   *zap.Logger
}

// Run executes plan. On failure the in-flight step is marked error, the
// overall status is error with the raw cause as message, and the returned
// error is a *StepError (or the build error when the constitution cannot be
// assembled). The status in the result is valid either way.
func (s *Sequencer) Run(ctx context.Context, plan *Plan, report Reporter) (*Result, error) {
	if plan.Request.ChainID != 0 && plan.Request.ChainID != s.client.ChainID() {
		return nil, fmt.Errorf("plan targets chain %d but client is connected to %d", plan.Request.ChainID, s.client.ChainID())
	}

	r := &run{
		s:        s,
		plan:     plan,
		report:   report,
		status:   NewDeployStatus(plan),
		receipts: make(map[string]domain.Receipt, len(plan.Dependencies)),
		logger: s.logger.With(
			zap.String("organization_id", plan.Organization.Metadata.ID),
			zap.Uint64("chain_id", s.profile.ID)),
	}
	r.status.Status = domain.StepStatusPending
	r.emit("")

	err := r.execute(ctx)
	if err != nil {
		r.status.Status = domain.StepStatusError
		r.status.Error = rootMessage(err)
		r.emit("")
		r.logger.Error("deployment failed", zap.Error(err))
	} else {
		r.status.Status = domain.StepStatusSuccess
		r.emit("")
		r.logger.Info("deployment completed", zap.String("powers", r.powers.Hex()))
	}

	return &Result{
		PowersAddress: r.powers,
		Receipts:      r.receipts,
		Status:        r.status.Clone(),
	}, err
}

func (r *run) execute(ctx context.Context) error {
	meta := r.plan.Organization.Metadata

	// Step 1: deploy the Powers contract.
	err := r.step(ctx, StepPowersCreate, "powers", r.setPowers, func() error {
		args, err := abicodec.PackConstructor(meta.Title, meta.URI)
		if err != nil {
			return err
		}
		receipt, err := r.deploy(ctx, concat(r.plan.PowersBytecode, args))
		if err != nil {
			return err
		}
		if receipt.ContractAddress == nil {
			return fmt.Errorf("failed to get Powers contract address from receipt")
		}
		r.powers = *receipt.ContractAddress
		addr := r.powers
		r.status.PowersAddress = &addr
		return nil
	})
	if err != nil {
		return err
	}

	// Step 2: dependencies, in list order.
	for i, dep := range r.plan.Dependencies {
		err := r.step(ctx, dep.Name, "dependency", r.setDependency(i), func() error {
			var receipt *domain.Receipt
			var err error
			switch dep.Kind {
			case domain.DependencyDeployable:
				receipt, err = r.deploy(ctx, concat(dep.Bytecode, dep.ConstructorArgs))
			case domain.DependencyFunctionCall:
				receipt, err = r.write(ctx, dep.Target, dep.CallData)
			default:
				err = fmt.Errorf("unknown dependency type for %s", dep.Name)
			}
			if err != nil {
				return err
			}
			r.receipts[dep.Name] = *receipt
			return nil
		})
		if err != nil {
			return err
		}
	}

	// Step 3: the constitution, now that every address is known.
	entries, err := r.plan.Organization.Build(organizations.BuildContext{
		PowersAddress: r.powers,
		FormData:      r.plan.Request.FormData,
		Mandates:      r.plan.StaticData.Mandates,
		Receipts:      r.receipts,
		ChainID:       r.s.profile.ID,
	})
	if err != nil {
		return fmt.Errorf("failed to create mandate init data: %w", err)
	}
	constitute, err := abicodec.PackConstitute(entries)
	if err != nil {
		return fmt.Errorf("failed to encode constitution: %w", err)
	}

	// Step 4: constitute, then close the constitution.
	if err := r.finalCall(ctx, StepConstitute, r.powers, constitute); err != nil {
		return err
	}
	closeData, err := abicodec.PackCloseConstitute()
	if err != nil {
		return err
	}
	if err := r.finalCall(ctx, StepCloseConstitute, r.powers, closeData); err != nil {
		return err
	}

	// Step 5: hand ownable dependencies to the new contract.
	transfer, err := abicodec.PackTransferOwnership(r.powers)
	if err != nil {
		return err
	}
	for _, dep := range r.plan.Dependencies {
		if !dep.Ownable {
			continue
		}
		name := TransferStepName(dep.Name)
		target, err := r.ownedAddress(dep)
		if err != nil {
			r.setFinal(name)(domain.StepStatusError)
			r.emit(name)
			return &StepError{Step: name, Err: err}
		}
		if err := r.finalCall(ctx, name, target, transfer); err != nil {
			return err
		}
	}

	return nil
}

// ownedAddress is the contract whose ownership moves: the deployed address
// for deployables, the call target for function calls.
func (r *run) ownedAddress(dep domain.Dependency) (common.Address, error) {
	if dep.Kind == domain.DependencyFunctionCall {
		return dep.Target, nil
	}
	receipt, ok := r.receipts[dep.Name]
	if !ok || receipt.ContractAddress == nil {
		return common.Address{}, fmt.Errorf("missing contract address in receipt for %s", dep.Name)
	}
	return *receipt.ContractAddress, nil
}

func (r *run) finalCall(ctx context.Context, name string, to common.Address, calldata []byte) error {
	return r.step(ctx, name, "final", r.setFinal(name), func() error {
		_, err := r.write(ctx, to, calldata)
		return err
	})
}

// step moves one status entry through pending to success or error.
func (r *run) step(ctx context.Context, name, kind string, set func(domain.StepStatus), fn func() error) error {
	set(domain.StepStatusPending)
	r.emit(name)
	r.logger.Info("deployment step started", zap.String("step", name))

	start := time.Now()
	err := fn()
	duration := time.Since(start)

	if err != nil {
		set(domain.StepStatusError)
		r.emit(name)
		r.record(kind, domain.StepStatusError, duration)
		r.logger.Error("deployment step failed",
			zap.String("step", name),
			zap.Duration("duration", duration),
			zap.Error(err))
		return &StepError{Step: name, Err: err}
	}

	set(domain.StepStatusSuccess)
	r.emit(name)
	r.record(kind, domain.StepStatusSuccess, duration)
	r.logger.Info("deployment step completed",
		zap.String("step", name),
		zap.Duration("duration", duration))
	return nil
}

func (r *run) deploy(ctx context.Context, code []byte) (*domain.Receipt, error) {
	hash, err := r.s.client.Deploy(ctx, code)
	if err != nil {
		return nil, err
	}
	return r.confirm(ctx, hash)
}

func (r *run) write(ctx context.Context, to common.Address, calldata []byte) (*domain.Receipt, error) {
	hash, err := r.s.client.Write(ctx, to, calldata)
	if err != nil {
		return nil, err
	}
	return r.confirm(ctx, hash)
}

// confirm waits for the chain's confirmation depth, then for the indexing
// delay where the chain needs one.
func (r *run) confirm(ctx context.Context, hash common.Hash) (*domain.Receipt, error) {
	receipt, err := r.s.client.WaitForReceipt(ctx, hash, r.s.profile.Confirmations)
	if err != nil {
		return nil, err
	}
	if receipt == nil {
		return nil, fmt.Errorf("no receipt for transaction %s", hash.Hex())
	}
	if receipt.Status == 0 {
		return nil, fmt.Errorf("transaction %s reverted", hash.Hex())
	}
	if r.s.profile.IndexingLag && r.s.indexingDelay > 0 {
		if err := r.s.sleep(ctx, r.s.indexingDelay); err != nil {
			return nil, err
		}
	}
	return receipt, nil
}

func (r *run) setPowers(s domain.StepStatus) {
	r.status.PowersCreate = s
}

func (r *run) setDependency(i int) func(domain.StepStatus) {
	return func(s domain.StepStatus) {
		r.status.Dependencies[i].Status = s
	}
}

func (r *run) setFinal(name string) func(domain.StepStatus) {
	return func(s domain.StepStatus) {
		for i := range r.status.FinalTransactions {
			if r.status.FinalTransactions[i].Name == name {
				r.status.FinalTransactions[i].Status = s
			}
		}
	}
}

func (r *run) emit(step string) {
	if r.report == nil {
		return
	}
	receipts := make(map[string]domain.Receipt, len(r.receipts))
	for k, v := range r.receipts {
		receipts[k] = v
	}
	r.report(Progress{Step: step, Status: r.status.Clone(), Receipts: receipts})
}

func (r *run) record(kind string, status domain.StepStatus, d time.Duration) {
	if r.s.metrics != nil {
		r.s.metrics.RecordStep(kind, string(status), d)
	}
}

// rootMessage unwraps step errors so the status shows the raw cause.
func rootMessage(err error) string {
	var se *StepError
	if errors.As(err, &se) {
		return se.Err.Error()
	}
	return err.Error()
}

func concat(a, b []byte) []byte {
	out := make([]byte, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
