package lottery

import (
	"bytes"
	"fmt"
)

type ticketKey struct {
	pool  uint64
	owner [20]byte
}

type balanceKey struct {
	addr [20]byte
	unit string
}

// mockState implements both engineState and Ledger so Atomic can roll back
// balances together with records.
type mockState struct {
	registry *Registry
	pools    map[uint64]*Pool
	tickets  map[ticketKey]*UserTicket
	draws    map[uint64]*DrawHistory
	balances map[balanceKey]uint64
	height   uint64
	batches  int
	failPut  error
}

func newMockState() *mockState {
	return &mockState{
		pools:    make(map[uint64]*Pool),
		tickets:  make(map[ticketKey]*UserTicket),
		draws:    make(map[uint64]*DrawHistory),
		balances: make(map[balanceKey]uint64),
		height:   42,
	}
}

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

func (m *mockState) snapshot() *mockState {
	clone := newMockState()
	clone.registry = m.registry.Clone()
	for k, v := range m.pools {
		clone.pools[k] = v.Clone()
	}
	for k, v := range m.tickets {
		clone.tickets[k] = v.Clone()
	}
	for k, v := range m.draws {
		clone.draws[k] = v.Clone()
	}
	for k, v := range m.balances {
		clone.balances[k] = v
	}
	clone.height = m.height
	clone.batches = m.batches
	clone.failPut = m.failPut
	return clone
}

func (m *mockState) Atomic(fn func() error) error {
	saved := m.snapshot()
	if err := fn(); err != nil {
		*m = *saved
		return err
	}
	m.height++
	return nil
}

func (m *mockState) LotteryRegistryGet() (*Registry, bool, error) {
	if m.registry == nil {
		return nil, false, nil
	}
	return m.registry.Clone(), true, nil
}

func (m *mockState) LotteryRegistryPut(reg *Registry) error {
	m.registry = reg.Clone()
	return nil
}

func (m *mockState) LotteryPoolGet(id uint64) (*Pool, bool, error) {
	pool, ok := m.pools[id]
	if !ok {
		return nil, false, nil
	}
	return pool.Clone(), true, nil
}

func (m *mockState) LotteryPoolPut(pool *Pool) error {
	if m.failPut != nil {
		return m.failPut
	}
	m.pools[pool.ID] = pool.Clone()
	return nil
}

func (m *mockState) LotteryTicketsGet(poolID uint64, owner [20]byte) (*UserTicket, bool, error) {
	ut, ok := m.tickets[ticketKey{poolID, owner}]
	if !ok {
		return nil, false, nil
	}
	return ut.Clone(), true, nil
}

func (m *mockState) LotteryTicketsPut(ut *UserTicket) error {
	m.tickets[ticketKey{ut.PoolID, ut.Owner}] = ut.Clone()
	return nil
}

func (m *mockState) LotteryTicketsDelete(poolID uint64, owner [20]byte) error {
	delete(m.tickets, ticketKey{poolID, owner})
	return nil
}

func (m *mockState) LotteryDrawGet(poolID uint64) (*DrawHistory, bool, error) {
	d, ok := m.draws[poolID]
	if !ok {
		return nil, false, nil
	}
	return d.Clone(), true, nil
}

func (m *mockState) LotteryDrawPut(d *DrawHistory) error {
	m.draws[d.PoolID] = d.Clone()
	return nil
}

func (m *mockState) balance(addr [20]byte, unit string) uint64 {
	return m.balances[balanceKey{addr, unit}]
}

func (m *mockState) credit(addr [20]byte, unit string, amount uint64) {
	m.balances[balanceKey{addr, unit}] += amount
}

func (m *mockState) Transfer(from, to [20]byte, unit string, amount uint64) error {
	if m.balance(from, unit) < amount {
		return fmt.Errorf("transfer %d: %w", amount, ErrInsufficientFunds)
	}
	m.balances[balanceKey{from, unit}] -= amount
	m.balances[balanceKey{to, unit}] += amount
	return nil
}

func (m *mockState) ExecuteBatch(from [20]byte, unit string, legs []Disbursement) error {
	total, err := SumLegs(legs)
	if err != nil {
		return err
	}
	if m.balance(from, unit) < total {
		return ErrInsufficientFunds
	}
	for _, leg := range legs {
		if err := m.Transfer(from, leg.Destination, unit, leg.Amount); err != nil {
			return err
		}
	}
	m.batches++
	return nil
}

// PayoutAddress flips every byte of the owner so payout and identity differ.
func (m *mockState) PayoutAddress(owner [20]byte, unit string) [20]byte {
	var out [20]byte
	for i := range owner {
		out[i] = owner[i] ^ 0xFF
	}
	out[0] ^= byte(len(unit))
	return out
}

func (m *mockState) Height() uint64 { return m.height }

// fixedSelector always returns the configured index.
type fixedSelector uint64

func (f fixedSelector) Select(_ [32]byte, size uint64) (uint64, error) {
	return uint64(f) % size, nil
}
