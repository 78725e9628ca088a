package state

import (
	"fmt"

	"fortunex/native/lottery"
)

// rlp has no signed integer support, so timestamps are stored as their
// two's-complement uint64 image.

type storedPool struct {
	ID               uint64
	Status           uint8
	Creator          [20]byte
	TicketPrice      uint64
	MinTickets       uint64
	MaxTickets       uint64
	CommissionBps    uint32
	PrizePool        uint64
	TicketsSold      [][20]byte
	CancelledTickets []uint64
	NextTicket       uint64
	DrawInterval     uint64
	DrawTime         uint64
	CreatedAt        uint64
	Winner           [20]byte
}

func newStoredPool(p *lottery.Pool) *storedPool {
	return &storedPool{
		ID:               p.ID,
		Status:           uint8(p.Status),
		Creator:          p.Creator,
		TicketPrice:      p.TicketPrice,
		MinTickets:       p.MinTickets,
		MaxTickets:       p.MaxTickets,
		CommissionBps:    p.CommissionBps,
		PrizePool:        p.PrizePool,
		TicketsSold:      append([][20]byte{}, p.TicketsSold...),
		CancelledTickets: append([]uint64{}, p.CancelledTickets...),
		NextTicket:       p.NextTicket,
		DrawInterval:     uint64(p.DrawInterval),
		DrawTime:         uint64(p.DrawTime),
		CreatedAt:        uint64(p.CreatedAt),
		Winner:           p.Winner,
	}
}

func (s *storedPool) toPool() (*lottery.Pool, error) {
	status := lottery.PoolStatus(s.Status)
	if !status.Valid() {
		return nil, fmt.Errorf("state: pool %d has invalid status %d", s.ID, s.Status)
	}
	return &lottery.Pool{
		ID:               s.ID,
		Status:           status,
		Creator:          s.Creator,
		TicketPrice:      s.TicketPrice,
		MinTickets:       s.MinTickets,
		MaxTickets:       s.MaxTickets,
		CommissionBps:    s.CommissionBps,
		PrizePool:        s.PrizePool,
		TicketsSold:      s.TicketsSold,
		CancelledTickets: s.CancelledTickets,
		NextTicket:       s.NextTicket,
		DrawInterval:     int64(s.DrawInterval),
		DrawTime:         int64(s.DrawTime),
		CreatedAt:        int64(s.CreatedAt),
		Winner:           s.Winner,
	}, nil
}

type storedTicket struct {
	Number     uint64
	AmountPaid uint64
	Timestamp  uint64
}

type storedUserTicket struct {
	Owner   [20]byte
	PoolID  uint64
	Tickets []storedTicket
}

type storedDraw struct {
	PoolID        uint64
	Winner        [20]byte
	Settler       [20]byte
	WinnerPrize   uint64
	TotalPrize    uint64
	PlatformFee   uint64
	BonusFee      uint64
	Commission    uint64
	TotalTickets  uint64
	WinningIndex  uint64
	Seed          [32]byte
	DrawTimestamp uint64
}

// LotteryRegistryGet returns the singleton registry.
func (m *Manager) LotteryRegistryGet() (*lottery.Registry, bool, error) {
	reg := new(lottery.Registry)
	ok, err := m.KVGet(lotteryRegistryKey, reg)
	if err != nil || !ok {
		return nil, ok, err
	}
	return reg, true, nil
}

// LotteryRegistryPut stores the singleton registry.
func (m *Manager) LotteryRegistryPut(reg *lottery.Registry) error {
	if reg == nil {
		return fmt.Errorf("state: nil registry")
	}
	stored := reg.Clone()
	if stored.Allowlist == nil {
		stored.Allowlist = [][20]byte{}
	}
	return m.KVPut(lotteryRegistryKey, stored)
}

// LotteryPoolGet loads a pool by identifier.
func (m *Manager) LotteryPoolGet(id uint64) (*lottery.Pool, bool, error) {
	stored := new(storedPool)
	ok, err := m.KVGet(poolKey(id), stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	pool, err := stored.toPool()
	if err != nil {
		return nil, false, err
	}
	return pool, true, nil
}

// LotteryPoolPut stores a pool.
func (m *Manager) LotteryPoolPut(pool *lottery.Pool) error {
	if pool == nil {
		return fmt.Errorf("state: nil pool")
	}
	return m.KVPut(poolKey(pool.ID), newStoredPool(pool))
}

// LotteryPools returns every pool in creation order.
func (m *Manager) LotteryPools() ([]*lottery.Pool, error) {
	reg, ok, err := m.LotteryRegistryGet()
	if err != nil || !ok {
		return nil, err
	}
	pools := make([]*lottery.Pool, 0, reg.PoolsCount)
	for id := uint64(0); id < reg.PoolsCount; id++ {
		pool, found, err := m.LotteryPoolGet(id)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		pools = append(pools, pool)
	}
	return pools, nil
}

// LotteryTicketsGet loads the ticket ledger of owner in poolID.
func (m *Manager) LotteryTicketsGet(poolID uint64, owner [20]byte) (*lottery.UserTicket, bool, error) {
	stored := new(storedUserTicket)
	ok, err := m.KVGet(ticketsKey(poolID, owner), stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	ut := &lottery.UserTicket{Owner: stored.Owner, PoolID: stored.PoolID, Tickets: make([]lottery.TicketDetails, len(stored.Tickets))}
	for i, t := range stored.Tickets {
		ut.Tickets[i] = lottery.TicketDetails{Number: t.Number, AmountPaid: t.AmountPaid, Timestamp: int64(t.Timestamp)}
	}
	return ut, true, nil
}

// LotteryTicketsPut stores a ticket ledger.
func (m *Manager) LotteryTicketsPut(ut *lottery.UserTicket) error {
	if ut == nil {
		return fmt.Errorf("state: nil ticket ledger")
	}
	stored := &storedUserTicket{Owner: ut.Owner, PoolID: ut.PoolID, Tickets: make([]storedTicket, len(ut.Tickets))}
	for i, t := range ut.Tickets {
		stored.Tickets[i] = storedTicket{Number: t.Number, AmountPaid: t.AmountPaid, Timestamp: uint64(t.Timestamp)}
	}
	return m.KVPut(ticketsKey(ut.PoolID, ut.Owner), stored)
}

// LotteryTicketsDelete removes the ticket ledger of owner in poolID.
func (m *Manager) LotteryTicketsDelete(poolID uint64, owner [20]byte) error {
	return m.KVDelete(ticketsKey(poolID, owner))
}

// LotteryDrawGet loads the draw history of a completed pool.
func (m *Manager) LotteryDrawGet(poolID uint64) (*lottery.DrawHistory, bool, error) {
	stored := new(storedDraw)
	ok, err := m.KVGet(drawKey(poolID), stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &lottery.DrawHistory{
		PoolID:        stored.PoolID,
		Winner:        stored.Winner,
		Settler:       stored.Settler,
		WinnerPrize:   stored.WinnerPrize,
		TotalPrize:    stored.TotalPrize,
		PlatformFee:   stored.PlatformFee,
		BonusFee:      stored.BonusFee,
		Commission:    stored.Commission,
		TotalTickets:  stored.TotalTickets,
		WinningIndex:  stored.WinningIndex,
		Seed:          stored.Seed,
		DrawTimestamp: int64(stored.DrawTimestamp),
	}, true, nil
}

// LotteryDrawPut writes the draw history. Existing records are never
// overwritten.
func (m *Manager) LotteryDrawPut(d *lottery.DrawHistory) error {
	if d == nil {
		return fmt.Errorf("state: nil draw history")
	}
	exists, err := m.KVGet(drawKey(d.PoolID), nil)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("state: draw for pool %d: %w", d.PoolID, lottery.ErrPoolAlreadyCompleted)
	}
	return m.KVPut(drawKey(d.PoolID), &storedDraw{
		PoolID:        d.PoolID,
		Winner:        d.Winner,
		Settler:       d.Settler,
		WinnerPrize:   d.WinnerPrize,
		TotalPrize:    d.TotalPrize,
		PlatformFee:   d.PlatformFee,
		BonusFee:      d.BonusFee,
		Commission:    d.Commission,
		TotalTickets:  d.TotalTickets,
		WinningIndex:  d.WinningIndex,
		Seed:          d.Seed,
		DrawTimestamp: uint64(d.DrawTimestamp),
	})
}
