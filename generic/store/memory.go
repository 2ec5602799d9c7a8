// Package store provides Store implementations.
package store

import (
	"context"
	"sort"

	"github.com/sasha-s/go-deadlock"

	"github.com/warp/vesting-ledger/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu         deadlock.RWMutex
	claimers   map[generic.Address]generic.Claimer
	order      []generic.Address
	events     []generic.Event
	state      map[string]string
	balances   map[generic.Address]generic.Amount
	allowances map[allowanceKey]generic.Amount
}

type allowanceKey struct {
	Owner   generic.Address
	Spender generic.Address
}

func NewMemory() *Memory {
	return &Memory{
		claimers:   make(map[generic.Address]generic.Claimer),
		state:      make(map[string]string),
		balances:   make(map[generic.Address]generic.Amount),
		allowances: make(map[allowanceKey]generic.Amount),
	}
}

func (m *Memory) GetClaimer(_ context.Context, addr generic.Address) (generic.Claimer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getClaimerLocked(addr), nil
}

func (m *Memory) SaveClaimer(_ context.Context, c generic.Claimer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveClaimerLocked(c)
	return nil
}

func (m *Memory) ListClaimers(_ context.Context) ([]generic.Claimer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listClaimersLocked(), nil
}

func (m *Memory) AppendEvent(_ context.Context, e generic.Event) (generic.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendEventLocked(e), nil
}

func (m *Memory) Events(_ context.Context, filter generic.EventFilter) ([]generic.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.eventsLocked(filter), nil
}

func (m *Memory) GetState(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.state[key]
	if !ok {
		return "", generic.ErrNotFound
	}
	return v, nil
}

func (m *Memory) SetState(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state[key] = value
	return nil
}

func (m *Memory) GetBalance(_ context.Context, account generic.Address) (generic.Amount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balances[account], nil
}

func (m *Memory) SetBalance(_ context.Context, account generic.Address, amount generic.Amount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[account] = amount
	return nil
}

func (m *Memory) GetAllowance(_ context.Context, owner, spender generic.Address) (generic.Amount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.allowances[allowanceKey{owner, spender}], nil
}

func (m *Memory) SetAllowance(_ context.Context, owner, spender generic.Address, amount generic.Amount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allowances[allowanceKey{owner, spender}] = amount
	return nil
}

// -----------------------------------------------------------------------------
// Lock-free helpers shared with the transactional view
// -----------------------------------------------------------------------------

func (m *Memory) getClaimerLocked(addr generic.Address) generic.Claimer {
	c, ok := m.claimers[addr]
	if !ok {
		return generic.Claimer{Address: addr}
	}
	return c
}

func (m *Memory) saveClaimerLocked(c generic.Claimer) {
	if _, ok := m.claimers[c.Address]; !ok {
		m.order = append(m.order, c.Address)
	}
	m.claimers[c.Address] = c
}

func (m *Memory) listClaimersLocked() []generic.Claimer {
	result := make([]generic.Claimer, 0, len(m.order))
	for _, addr := range m.order {
		result = append(result, m.claimers[addr])
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt < result[j].CreatedAt
	})
	return result
}

func (m *Memory) appendEventLocked(e generic.Event) generic.Event {
	e.Seq = uint64(len(m.events) + 1)
	m.events = append(m.events, e)
	return e
}

func (m *Memory) eventsLocked(filter generic.EventFilter) []generic.Event {
	var result []generic.Event
	for _, e := range m.events {
		if !filter.Matches(e) {
			continue
		}
		result = append(result, e)
		if filter.Limit > 0 && len(result) == filter.Limit {
			break
		}
	}
	return result
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error
// or panic.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(generic.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()
	committed := false
	defer func() {
		if !committed {
			tm.restore(snapshot)
		}
	}()

	if err := fn(&txMemoryView{parent: tm}); err != nil {
		return err
	}

	// Commit (already done via direct writes)
	committed = true
	return nil
}

type memorySnapshot struct {
	claimers   map[generic.Address]generic.Claimer
	order      []generic.Address
	events     []generic.Event
	state      map[string]string
	balances   map[generic.Address]generic.Amount
	allowances map[allowanceKey]generic.Amount
}

func (tm *TxMemory) snapshot() memorySnapshot {
	s := memorySnapshot{
		claimers:   make(map[generic.Address]generic.Claimer, len(tm.claimers)),
		order:      append([]generic.Address{}, tm.order...),
		events:     append([]generic.Event{}, tm.events...),
		state:      make(map[string]string, len(tm.state)),
		balances:   make(map[generic.Address]generic.Amount, len(tm.balances)),
		allowances: make(map[allowanceKey]generic.Amount, len(tm.allowances)),
	}
	for k, v := range tm.claimers {
		s.claimers[k] = v
	}
	for k, v := range tm.state {
		s.state[k] = v
	}
	for k, v := range tm.balances {
		s.balances[k] = v
	}
	for k, v := range tm.allowances {
		s.allowances[k] = v
	}
	return s
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.claimers = s.claimers
	tm.order = s.order
	tm.events = s.events
	tm.state = s.state
	tm.balances = s.balances
	tm.allowances = s.allowances
}

// txMemoryView runs under the parent's write lock held by WithTx.
type txMemoryView struct {
	parent *TxMemory
}

func (tv *txMemoryView) GetClaimer(_ context.Context, addr generic.Address) (generic.Claimer, error) {
	return tv.parent.getClaimerLocked(addr), nil
}

func (tv *txMemoryView) SaveClaimer(_ context.Context, c generic.Claimer) error {
	tv.parent.saveClaimerLocked(c)
	return nil
}

func (tv *txMemoryView) ListClaimers(_ context.Context) ([]generic.Claimer, error) {
	return tv.parent.listClaimersLocked(), nil
}

func (tv *txMemoryView) AppendEvent(_ context.Context, e generic.Event) (generic.Event, error) {
	return tv.parent.appendEventLocked(e), nil
}

func (tv *txMemoryView) Events(_ context.Context, filter generic.EventFilter) ([]generic.Event, error) {
	return tv.parent.eventsLocked(filter), nil
}

func (tv *txMemoryView) GetState(_ context.Context, key string) (string, error) {
	v, ok := tv.parent.state[key]
	if !ok {
		return "", generic.ErrNotFound
	}
	return v, nil
}

func (tv *txMemoryView) SetState(_ context.Context, key, value string) error {
	tv.parent.state[key] = value
	return nil
}

func (tv *txMemoryView) GetBalance(_ context.Context, account generic.Address) (generic.Amount, error) {
	return tv.parent.balances[account], nil
}

func (tv *txMemoryView) SetBalance(_ context.Context, account generic.Address, amount generic.Amount) error {
	tv.parent.balances[account] = amount
	return nil
}

func (tv *txMemoryView) GetAllowance(_ context.Context, owner, spender generic.Address) (generic.Amount, error) {
	return tv.parent.allowances[allowanceKey{owner, spender}], nil
}

func (tv *txMemoryView) SetAllowance(_ context.Context, owner, spender generic.Address, amount generic.Amount) error {
	tv.parent.allowances[allowanceKey{owner, spender}] = amount
	return nil
}
