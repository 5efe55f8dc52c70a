package layout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/powers-protocol/powers/internal/application/graph"
	"github.com/powers-protocol/powers/pkg/domain"
	"github.com/powers-protocol/powers/pkg/ports"
	"go.uber.org/zap"
)

// DefaultDebounce is the quiet period before queued layout writes are saved.
const DefaultDebounce = 500 * time.Millisecond

// Result is a computed view together with the contract's saved viewport.
type Result struct {
	*graph.View
	Address  string           `json:"address"`
	Viewport *domain.Viewport `json:"viewport,omitempty"`
}

// Service computes graph views and persists dragged layouts.
type Service struct {
	store        ports.LayoutStore
	metrics      ports.MetricsCollector
	logger       *zap.Logger
	debouncer    *Debouncer
	writeTimeout time.Duration

	mu      sync.Mutex
	pending map[string]*queuedLayout
	// writing serializes store access per address
	writing map[string]*keyLock
}

// queuedLayout is a record of changes not yet saved. rev grows with every
// change.
type queuedLayout struct {
	record *domain.LayoutRecord
	rev    uint64
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// Config holds layout service settings.
type Config struct {
	Store        ports.LayoutStore
	Metrics      ports.MetricsCollector
	Logger       *zap.Logger
	Debounce     time.Duration
	WriteTimeout time.Duration
}

// NewService creates a new layout service
func NewService(cfg Config) *Service {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Service{
		store:        cfg.Store,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
		debouncer:    NewDebouncer(cfg.Debounce),
		writeTimeout: cfg.WriteTimeout,
		pending:      make(map[string]*queuedLayout),
		writing:      make(map[string]*keyLock),
	}
}

// Compute builds the view of a contract's mandates. Saved positions are
// used when they cover every mandate. Store failures are logged and the
// layout is computed from scratch: a view is always returned.
func (s *Service) Compute(ctx context.Context, address string, mandates []domain.Mandate, opts graph.ViewOptions) *Result {
	record := s.load(ctx, address)

	if record != nil && opts.Cache == nil {
		opts.Cache = record.Nodes
	}
	view := graph.NewView(mandates, opts)

	if s.metrics != nil {
		s.metrics.RecordLayoutComputed(view.FromCache, len(view.Nodes))
	}
	s.logger.Debug("layout computed",
		zap.String("address", address),
		zap.Int("nodes", len(view.Nodes)),
		zap.Bool("cached", view.FromCache))

	res := &Result{View: view, Address: address}
	if record != nil {
		res.Viewport = record.Viewport
	}
	return res
}

// Get returns the saved layout of a contract, including writes still
// waiting for the debounce period.
func (s *Service) Get(ctx context.Context, address string) (*domain.LayoutRecord, error) {
	if address == "" {
		return nil, fmt.Errorf("address is required")
	}
	record := s.load(ctx, address)
	if record == nil {
		return nil, fmt.Errorf("layout %s: %w", address, ports.ErrNotFound)
	}
	return record, nil
}

// SaveNodes queues new positions for a contract. Positions are merged into
// the saved ones per mandate.
func (s *Service) SaveNodes(address string, nodes map[string]domain.Position) error {
	if address == "" {
		return fmt.Errorf("address is required")
	}
	s.update(address, func(r *domain.LayoutRecord) {
		if r.Nodes == nil {
			r.Nodes = make(map[string]domain.Position, len(nodes))
		}
		for id, pos := range nodes {
			r.Nodes[id] = pos
		}
	})
	return nil
}

// SaveViewport queues a new viewport for a contract.
func (s *Service) SaveViewport(address string, viewport domain.Viewport) error {
	if address == "" {
		return fmt.Errorf("address is required")
	}
	if viewport.Zoom <= 0 {
		return fmt.Errorf("zoom must be positive")
	}
	s.update(address, func(r *domain.LayoutRecord) {
		vp := viewport
		r.Viewport = &vp
	})
	return nil
}

// Reset deletes the saved layout of a contract, dropping queued writes. A
// write already in progress finishes first.
func (s *Service) Reset(ctx context.Context, address string) error {
	key := strings.ToLower(address)
	unlock := s.lock(key)
	defer unlock()

	s.mu.Lock()
	delete(s.pending, key)
	s.mu.Unlock()

	if err := s.store.DeleteLayout(ctx, address); err != nil {
		return fmt.Errorf("failed to delete layout: %w", err)
	}
	return nil
}

// Flush writes all queued layouts immediately.
func (s *Service) Flush() {
	s.debouncer.Flush()
}

func (s *Service) update(address string, apply func(*domain.LayoutRecord)) {
	key := strings.ToLower(address)

	s.mu.Lock()
	q, ok := s.pending[key]
	if !ok {
		q = &queuedLayout{record: &domain.LayoutRecord{Address: address}}
		s.pending[key] = q
	}
	apply(q.record)
	q.record.UpdatedAt = time.Now().UTC()
	q.rev++
	s.mu.Unlock()

	s.debouncer.Trigger(key, func() { s.write(key) })
}

// lock takes the write lock of key and returns its release.
func (s *Service) lock(key string) func() {
	s.mu.Lock()
	l, ok := s.writing[key]
	if !ok {
		l = &keyLock{}
		s.writing[key] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.writing, key)
		}
		s.mu.Unlock()
	}
}

// write merges the queued changes for key into the stored record. The
// queued record stays visible to readers until it is saved.
func (s *Service) write(key string) {
	unlock := s.lock(key)
	defer unlock()

	s.mu.Lock()
	pending, ok := s.pending[key]
	var (
		queued *domain.LayoutRecord
		rev    uint64
	)
	if ok {
		queued = &domain.LayoutRecord{Address: pending.record.Address}
		merge(queued, pending.record)
		rev = pending.rev
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()

	record, err := s.store.GetLayout(ctx, queued.Address)
	if err != nil {
		if !errors.Is(err, ports.ErrNotFound) {
			s.logger.Warn("failed to load layout before save",
				zap.String("address", queued.Address),
				zap.Error(err))
		}
		record = &domain.LayoutRecord{Address: queued.Address}
	}
	merge(record, queued)

	if err := s.store.SaveLayout(ctx, record); err != nil {
		s.logger.Error("failed to save layout",
			zap.String("address", queued.Address),
			zap.Error(err))
		return
	}

	// changes queued while saving stay for the next write
	s.mu.Lock()
	if current, ok := s.pending[key]; ok && current == pending && current.rev == rev {
		delete(s.pending, key)
	}
	s.mu.Unlock()

	s.logger.Debug("layout saved",
		zap.String("address", queued.Address),
		zap.Int("nodes", len(record.Nodes)))
}

// load returns the stored record overlaid with queued changes, or nil.
func (s *Service) load(ctx context.Context, address string) *domain.LayoutRecord {
	var record *domain.LayoutRecord
	if address != "" && s.store != nil {
		stored, err := s.store.GetLayout(ctx, address)
		switch {
		case err == nil:
			record = stored
		case !errors.Is(err, ports.ErrNotFound):
			s.logger.Warn("failed to load layout, recomputing",
				zap.String("address", address),
				zap.Error(err))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	queued, ok := s.pending[strings.ToLower(address)]
	if !ok {
		return record
	}
	if record == nil {
		record = &domain.LayoutRecord{Address: queued.record.Address}
	}
	merge(record, queued.record)
	return record
}

func merge(dst, src *domain.LayoutRecord) {
	if len(src.Nodes) > 0 && dst.Nodes == nil {
		dst.Nodes = make(map[string]domain.Position, len(src.Nodes))
	}
	for id, pos := range src.Nodes {
		dst.Nodes[id] = pos
	}
	if src.Viewport != nil {
		vp := *src.Viewport
		dst.Viewport = &vp
	}
	if src.UpdatedAt.After(dst.UpdatedAt) {
		dst.UpdatedAt = src.UpdatedAt
	}
}
