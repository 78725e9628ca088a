package lottery

// ValidatePoolParams checks creator supplied parameters against the registry
// level fee rates.
func ValidatePoolParams(params PoolParams, reg *Registry) error {
	if params.TicketPrice == 0 {
		return ErrInvalidTicketPrice
	}
	if params.MinTickets == 0 || params.MinTickets > params.MaxTickets {
		return ErrInvalidTicketBounds
	}
	if params.DrawInterval < MinDrawInterval || params.DrawInterval > MaxDrawInterval {
		return ErrInvalidDrawInterval
	}
	if reg == nil {
		return ErrRegistryNotFound
	}
	return ValidateFeeConfig(reg.PlatformFeeBps, reg.BonusPoolFeeBps, params.CommissionBps)
}

// NewPool builds an Active pool whose first draw is one interval away.
func NewPool(id uint64, creator [20]byte, params PoolParams, now int64) *Pool {
	return &Pool{
		ID:            id,
		Status:        PoolStatusActive,
		Creator:       creator,
		TicketPrice:   params.TicketPrice,
		MinTickets:    params.MinTickets,
		MaxTickets:    params.MaxTickets,
		CommissionBps: params.CommissionBps,
		NextTicket:    1,
		DrawInterval:  params.DrawInterval,
		DrawTime:      now + params.DrawInterval,
		CreatedAt:     now,
	}
}

// Sold returns the number of tickets currently held.
func (p *Pool) Sold() uint64 { return uint64(len(p.TicketsSold)) }

// Remaining returns how many tickets can still be sold.
func (p *Pool) Remaining() uint64 {
	if p.Sold() >= p.MaxTickets {
		return 0
	}
	return p.MaxTickets - p.Sold()
}

// refreshCapacity applies the Active <-> Full transitions and reports whether
// the status changed. Completed pools are left untouched.
func (p *Pool) refreshCapacity() bool {
	switch {
	case p.Status == PoolStatusActive && p.Sold() >= p.MaxTickets:
		p.Status = PoolStatusFull
		return true
	case p.Status == PoolStatusFull && p.Sold() < p.MaxTickets:
		p.Status = PoolStatusActive
		return true
	default:
		return false
	}
}

// reschedule pushes the draw time one interval past now.
func (p *Pool) reschedule(now int64) {
	p.DrawTime = now + p.DrawInterval
}

// complete marks the pool as settled. It fails if the pool already completed.
func (p *Pool) complete(winner [20]byte) error {
	if p.Status == PoolStatusCompleted {
		return ErrPoolAlreadyCompleted
	}
	p.Status = PoolStatusCompleted
	p.Winner = winner
	p.PrizePool = 0
	return nil
}

// removeHolder drops the oldest roster slot held by user.
func (p *Pool) removeHolder(user [20]byte) bool {
	for i, holder := range p.TicketsSold {
		if holder == user {
			p.TicketsSold = append(p.TicketsSold[:i], p.TicketsSold[i+1:]...)
			return true
		}
	}
	return false
}

func sameRoster(a, b [][20]byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
