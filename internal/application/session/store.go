package session

import (
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/powers-protocol/powers/pkg/abicodec"
	"go.uber.org/zap"
)

// Listener is called with the new state after every dispatch.
type Listener func(State)

// Store serializes access to a session state.
type Store struct {
	mu        sync.RWMutex
	state     State
	listeners map[int]Listener
	nextID    int
	logger    *zap.Logger
}

// NewStore creates an empty, unopened session store
func NewStore(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		listeners: make(map[int]Listener),
		logger:    logger,
	}
}

// State returns a snapshot of the current state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// Dispatch reduces ev into the state and notifies listeners.
func (s *Store) Dispatch(ev Event) State {
	s.mu.Lock()
	s.state = Reduce(s.state, ev)
	next := s.state.clone()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(next.clone())
	}
	return next
}

// Subscribe registers l and returns a function removing it.
func (s *Store) Subscribe(l Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// Open binds the store to a contract. Reopening the contract already bound
// keeps the current selection.
func (s *Store) Open(chainID uint64, powers string) State {
	current := s.State()
	if current.ChainID == chainID && strings.EqualFold(current.Powers, powers) && current.Open() {
		return current
	}
	s.logger.Debug("session opened",
		zap.Uint64("chain_id", chainID),
		zap.String("powers", powers))
	return s.Dispatch(Opened{ChainID: chainID, Powers: powers})
}

// Clear resets the store.
func (s *Store) Clear() State {
	return s.Dispatch(Cleared{})
}

// Decode fills the parameter values of a loaded action from its calldata.
// Calldata that does not match types yields per-type defaults. Nothing
// happens when the selection is already up to date or carries no calldata.
func (s *Store) Decode(types []string) State {
	current := s.State()
	sel := current.Selection
	if sel.UpToDate || sel.CallData == "" || sel.CallData == "0x0" {
		return current
	}

	var values []any
	data, err := hexutil.Decode(sel.CallData)
	if err == nil {
		var ok bool
		values, ok = abicodec.DecodeOrDefault(types, data)
		if !ok {
			err = fmt.Errorf("calldata does not match parameter types")
		}
	}
	if err != nil {
		s.logger.Debug("falling back to default parameter values",
			zap.Uint16("mandate_id", sel.MandateID),
			zap.Error(err))
		if values == nil {
			values, _ = abicodec.DefaultValues(types)
		}
	}
	return s.Dispatch(ParamsDecoded{Values: values})
}

// Prepare encodes the current parameter values into calldata and derives
// the action id. Encoding failures are returned as *abicodec.EncodingError
// and leave the state untouched.
func (s *Store) Prepare(mandateID uint16, types []string, caller string) (State, error) {
	current := s.State()
	sel := current.Selection

	calldata, err := abicodec.Encode(types, sel.ParamValues)
	if err != nil {
		return current, err
	}
	nonce, ok := new(big.Int).SetString(strings.TrimSpace(sel.Nonce), 0)
	if !ok || nonce.Sign() < 0 {
		return current, fmt.Errorf("invalid nonce: %q", sel.Nonce)
	}
	actionID, err := abicodec.HashAction(mandateID, calldata, nonce)
	if err != nil {
		return current, err
	}

	return s.Dispatch(Prepared{
		MandateID: mandateID,
		Caller:    caller,
		CallData:  hexutil.Encode(calldata),
		ActionID:  actionID.String(),
	}), nil
}
