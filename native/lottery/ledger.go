package lottery

// CancelReceipt describes the outcome of a ticket cancellation.
type CancelReceipt struct {
	PoolID       uint64
	TicketNumber uint64
	AmountPaid   uint64
	Fee          uint64
	Refund       uint64
	Reopened     bool
}

// purchaseTickets issues quantity tickets to user. The pool and ledger are
// mutated only when every check passes; the returned cost is what the payer
// owes the pool vault.
func purchaseTickets(pool *Pool, ledger *UserTicket, quantity uint64, now int64) ([]TicketDetails, uint64, error) {
	if quantity == 0 {
		return nil, 0, ErrInvalidQuantity
	}
	if pool.Status == PoolStatusCompleted {
		return nil, 0, ErrPoolNotActive
	}
	if pool.Status == PoolStatusFull || quantity > pool.Remaining() {
		return nil, 0, ErrPoolFull
	}
	if uint64(len(ledger.Tickets))+quantity > MaxTicketsPerUser {
		return nil, 0, ErrTicketLimitReached
	}
	cost, err := MulAmount(pool.TicketPrice, quantity)
	if err != nil {
		return nil, 0, err
	}
	prize, err := AddAmount(pool.PrizePool, cost)
	if err != nil {
		return nil, 0, err
	}
	next, err := AddAmount(pool.NextTicket, quantity)
	if err != nil {
		return nil, 0, err
	}

	issued := make([]TicketDetails, 0, quantity)
	for i := uint64(0); i < quantity; i++ {
		issued = append(issued, TicketDetails{
			Number:     pool.NextTicket + i,
			AmountPaid: pool.TicketPrice,
			Timestamp:  now,
		})
		pool.TicketsSold = append(pool.TicketsSold, ledger.Owner)
	}
	ledger.Tickets = append(ledger.Tickets, issued...)
	pool.NextTicket = next
	pool.PrizePool = prize
	pool.refreshCapacity()
	return issued, cost, nil
}

// cancelTicket retires ticket number from the ledger and releases one roster
// slot held by its owner. Slots held by one user are fungible, so the oldest
// one is released.
func cancelTicket(pool *Pool, ledger *UserTicket, number uint64, platformBps uint32) (CancelReceipt, error) {
	if pool.Status == PoolStatusCompleted {
		return CancelReceipt{}, ErrPoolNotActive
	}
	idx := ledger.indexOf(number)
	if idx < 0 {
		return CancelReceipt{}, ErrTicketNotFound
	}
	paid := ledger.Tickets[idx].AmountPaid
	fee, refund, err := CancellationSplit(paid, platformBps)
	if err != nil {
		return CancelReceipt{}, err
	}
	prize, err := SubAmount(pool.PrizePool, paid)
	if err != nil {
		return CancelReceipt{}, err
	}
	if !pool.removeHolder(ledger.Owner) {
		return CancelReceipt{}, ErrRosterMismatch
	}
	ledger.Tickets = append(ledger.Tickets[:idx], ledger.Tickets[idx+1:]...)
	pool.PrizePool = prize
	pool.CancelledTickets = append(pool.CancelledTickets, number)
	reopened := pool.refreshCapacity()
	return CancelReceipt{
		PoolID:       pool.ID,
		TicketNumber: number,
		AmountPaid:   paid,
		Fee:          fee,
		Refund:       refund,
		Reopened:     reopened,
	}, nil
}
