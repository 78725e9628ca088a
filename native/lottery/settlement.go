package lottery

// DisbursementRole labels each leg of a settlement plan.
type DisbursementRole string

const (
	RoleWinner       DisbursementRole = "winner"
	RolePlatform     DisbursementRole = "platform"
	RoleBonusReserve DisbursementRole = "bonus"
	RoleCreator      DisbursementRole = "creator"
	RoleRefund       DisbursementRole = "refund"
)

// Disbursement is one (destination, amount) pair moved out of a vault.
type Disbursement struct {
	Role        DisbursementRole
	Destination [20]byte
	Amount      uint64
}

// SettlementPlan is the fully validated outcome of a draw. Nothing has been
// transferred when a plan is returned.
type SettlementPlan struct {
	PoolID       uint64
	Seed         [32]byte
	WinnerIndex  uint64
	Winner       [20]byte
	TotalTickets uint64
	Split        Split
	Legs         []Disbursement
}

// PlanInput carries everything PlanSettlement needs. Destinations must line
// up with Roster one to one.
type PlanInput struct {
	Pool         *Pool
	Registry     *Registry
	Roster       [][20]byte
	Destinations [][20]byte
	Seed         [32]byte
	Selector     WinnerSelector
	// Payout resolves an owner to its canonical payout address for the
	// registry's unit of account.
	Payout func(owner [20]byte) [20]byte
}

// SettlementOutcome is returned by Engine.SettlePool. Rescheduled outcomes
// carry only the new draw time.
type SettlementOutcome struct {
	PoolID       uint64
	Rescheduled  bool
	NextDrawTime int64
	Plan         *SettlementPlan
	History      *DrawHistory
}

// checkSettlement rejects attempts on completed pools and attempts made
// before the draw time.
func checkSettlement(pool *Pool, now int64) error {
	if pool.Status == PoolStatusCompleted {
		return ErrPoolAlreadyCompleted
	}
	if now < pool.DrawTime {
		return ErrDrawTimeNotReached
	}
	return nil
}

// PlanSettlement selects the winner and computes the ordered disbursement
// plan: winner, platform wallet, bonus reserve, creator. It is pure.
func PlanSettlement(in PlanInput) (*SettlementPlan, error) {
	if in.Pool == nil {
		return nil, ErrPoolNotFound
	}
	if in.Registry == nil {
		return nil, ErrRegistryNotFound
	}
	if in.Payout == nil {
		return nil, errNilLedger
	}
	selector := in.Selector
	if selector == nil {
		selector = ModuloSelector{}
	}
	if len(in.Destinations) != len(in.Roster) {
		return nil, ErrAccountCountMismatch
	}
	size := uint64(len(in.Roster))
	idx, err := selector.Select(in.Seed, size)
	if err != nil {
		return nil, err
	}
	if idx >= size {
		return nil, ErrOverflow
	}
	winner := in.Roster[idx]
	if in.Destinations[idx] != in.Payout(winner) {
		return nil, ErrInvalidWinnerDestination
	}
	split, err := ComputeSplit(in.Pool.PrizePool, in.Registry.PlatformFeeBps, in.Registry.BonusPoolFeeBps, in.Pool.CommissionBps)
	if err != nil {
		return nil, err
	}
	if split.Fees() > split.Total {
		return nil, ErrOverflow
	}
	legs := []Disbursement{
		{Role: RoleWinner, Destination: in.Destinations[idx], Amount: split.WinnerShare},
		{Role: RolePlatform, Destination: in.Payout(in.Registry.PlatformWallet), Amount: split.PlatformFee},
		{Role: RoleBonusReserve, Destination: BonusReserveAddress(), Amount: split.BonusFee},
		{Role: RoleCreator, Destination: in.Payout(in.Pool.Creator), Amount: split.Commission},
	}
	return &SettlementPlan{
		PoolID:       in.Pool.ID,
		Seed:         in.Seed,
		WinnerIndex:  idx,
		Winner:       winner,
		TotalTickets: size,
		Split:        split,
		Legs:         legs,
	}, nil
}

// History converts an executed plan into its audit record.
func (p *SettlementPlan) History(settler [20]byte, now int64) *DrawHistory {
	return &DrawHistory{
		PoolID:        p.PoolID,
		Winner:        p.Winner,
		Settler:       settler,
		WinnerPrize:   p.Split.WinnerShare,
		TotalPrize:    p.Split.Total,
		PlatformFee:   p.Split.PlatformFee,
		BonusFee:      p.Split.BonusFee,
		Commission:    p.Split.Commission,
		TotalTickets:  p.TotalTickets,
		WinningIndex:  p.WinnerIndex,
		Seed:          p.Seed,
		DrawTimestamp: now,
	}
}

// SumLegs returns the total amount moved by a disbursement list.
func SumLegs(legs []Disbursement) (uint64, error) {
	var total uint64
	for _, leg := range legs {
		next, err := AddAmount(total, leg.Amount)
		if err != nil {
			return 0, err
		}
		total = next
	}
	return total, nil
}
