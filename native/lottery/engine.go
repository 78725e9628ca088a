package lottery

import (
	"fmt"
	"time"

	"fortunex/core/events"
	"fortunex/core/types"
)

type engineState interface {
	LotteryRegistryGet() (*Registry, bool, error)
	LotteryRegistryPut(*Registry) error
	LotteryPoolGet(id uint64) (*Pool, bool, error)
	LotteryPoolPut(*Pool) error
	LotteryTicketsGet(poolID uint64, owner [20]byte) (*UserTicket, bool, error)
	LotteryTicketsPut(*UserTicket) error
	LotteryTicketsDelete(poolID uint64, owner [20]byte) error
	LotteryDrawGet(poolID uint64) (*DrawHistory, bool, error)
	LotteryDrawPut(*DrawHistory) error
	// Atomic runs fn inside an all-or-nothing boundary. Writes made by fn,
	// including ledger transfers, are discarded when fn returns an error.
	Atomic(fn func() error) error
}

// Ledger is the value transfer collaborator. Transfers must fail with
// ErrInsufficientFunds when the source balance is short.
type Ledger interface {
	Transfer(from, to [20]byte, unit string, amount uint64) error
	// ExecuteBatch moves every leg out of from, or none of them.
	ExecuteBatch(from [20]byte, unit string, legs []Disbursement) error
	PayoutAddress(owner [20]byte, unit string) [20]byte
	Height() uint64
}

// Engine implements the lottery state transitions on top of a state backend
// and a ledger. Events are emitted only after the atomic boundary commits.
type Engine struct {
	state    engineState
	ledger   Ledger
	emitter  events.Emitter
	selector WinnerSelector
	seeds    SeedSource
	nowFn    func() int64
}

// NewEngine creates a lottery engine with a no-op emitter, the modulo winner
// selector and the slot based seed source.
func NewEngine() *Engine {
	return &Engine{
		emitter:  events.NoopEmitter{},
		selector: ModuloSelector{},
		seeds:    SlotSeedSource{},
		nowFn:    func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetLedger configures the transfer collaborator.
func (e *Engine) SetLedger(ledger Ledger) { e.ledger = ledger }

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetSelector swaps the winner selector. Nil restores ModuloSelector.
func (e *Engine) SetSelector(selector WinnerSelector) {
	if selector == nil {
		e.selector = ModuloSelector{}
		return
	}
	e.selector = selector
}

// SetSeedSource swaps the entropy source. Nil restores SlotSeedSource.
func (e *Engine) SetSeedSource(source SeedSource) {
	if source == nil {
		e.seeds = SlotSeedSource{}
		return
	}
	e.seeds = source
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) emit(evts []*types.Event) {
	if e == nil || e.emitter == nil {
		return
	}
	for _, evt := range evts {
		if evt == nil {
			continue
		}
		e.emitter.Emit(lotteryEvent{evt: evt})
	}
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.ledger == nil {
		return errNilLedger
	}
	return nil
}

func (e *Engine) loadRegistry() (*Registry, error) {
	reg, ok, err := e.state.LotteryRegistryGet()
	if err != nil {
		return nil, err
	}
	if !ok || reg == nil {
		return nil, ErrRegistryNotFound
	}
	return reg, nil
}

func (e *Engine) loadPool(id uint64) (*Pool, error) {
	pool, ok, err := e.state.LotteryPoolGet(id)
	if err != nil {
		return nil, err
	}
	if !ok || pool == nil {
		return nil, ErrPoolNotFound
	}
	return pool, nil
}

// InitRegistry creates the singleton registry. It can only succeed once.
func (e *Engine) InitRegistry(authority, platformWallet [20]byte, unit string, platformFeeBps, bonusPoolFeeBps uint32) (*Registry, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	reg, err := NewRegistry(authority, platformWallet, unit, platformFeeBps, bonusPoolFeeBps)
	if err != nil {
		return nil, err
	}
	err = e.state.Atomic(func() error {
		_, exists, err := e.state.LotteryRegistryGet()
		if err != nil {
			return err
		}
		if exists {
			return ErrRegistryExists
		}
		return e.state.LotteryRegistryPut(reg)
	})
	if err != nil {
		return nil, err
	}
	e.emit([]*types.Event{NewRegistryEvent(EventTypeRegistryInitialized, reg)})
	return reg.Clone(), nil
}

// UpdateRegistry applies the optional configuration fields. Only the registry
// authority may call it.
func (e *Engine) UpdateRegistry(authority [20]byte, update RegistryUpdate) (*Registry, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	var updated *Registry
	err := e.state.Atomic(func() error {
		reg, err := e.loadRegistry()
		if err != nil {
			return err
		}
		if reg.Authority != authority {
			return ErrUnauthorized
		}
		if err := reg.ApplyUpdate(update); err != nil {
			return err
		}
		updated = reg
		return e.state.LotteryRegistryPut(reg)
	})
	if err != nil {
		return nil, err
	}
	e.emit([]*types.Event{NewRegistryEvent(EventTypeRegistryUpdated, updated)})
	return updated.Clone(), nil
}

// UpdateAllowlist adds or removes a pool creator.
func (e *Engine) UpdateAllowlist(authority, creator [20]byte, action AllowlistAction) (*Registry, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	var updated *Registry
	err := e.state.Atomic(func() error {
		reg, err := e.loadRegistry()
		if err != nil {
			return err
		}
		if reg.Authority != authority {
			return ErrUnauthorized
		}
		switch action {
		case AllowlistAdd:
			err = reg.AddCreator(creator)
		case AllowlistRemove:
			err = reg.RemoveCreator(creator)
		default:
			err = ErrInvalidAction
		}
		if err != nil {
			return err
		}
		updated = reg
		return e.state.LotteryRegistryPut(reg)
	})
	if err != nil {
		return nil, err
	}
	e.emit([]*types.Event{NewAllowlistUpdatedEvent(creator, action, len(updated.Allowlist))})
	return updated.Clone(), nil
}

// CreatePool opens a new pool owned by an allow-listed creator.
func (e *Engine) CreatePool(creator [20]byte, params PoolParams) (*Pool, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	now := e.now()
	var pool *Pool
	err := e.state.Atomic(func() error {
		reg, err := e.loadRegistry()
		if err != nil {
			return err
		}
		if !reg.IsAllowed(creator) {
			return ErrCreatorNotAllowed
		}
		if err := ValidatePoolParams(params, reg); err != nil {
			return err
		}
		id, err := reg.NextPoolID()
		if err != nil {
			return err
		}
		pool = NewPool(id, creator, params, now)
		if err := e.state.LotteryRegistryPut(reg); err != nil {
			return err
		}
		return e.state.LotteryPoolPut(pool)
	})
	if err != nil {
		return nil, err
	}
	e.emit([]*types.Event{NewPoolEvent(EventTypePoolCreated, pool)})
	return pool.Clone(), nil
}

// BuyTickets moves quantity * ticket price from the user's payout address into
// the pool vault and issues the tickets.
func (e *Engine) BuyTickets(user [20]byte, poolID, quantity uint64) ([]TicketDetails, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	now := e.now()
	var (
		issued  []TicketDetails
		pending []*types.Event
	)
	err := e.state.Atomic(func() error {
		reg, err := e.loadRegistry()
		if err != nil {
			return err
		}
		pool, err := e.loadPool(poolID)
		if err != nil {
			return err
		}
		ledger, ok, err := e.state.LotteryTicketsGet(poolID, user)
		if err != nil {
			return err
		}
		if !ok || ledger == nil {
			ledger = &UserTicket{Owner: user, PoolID: poolID}
		}
		var cost uint64
		issued, cost, err = purchaseTickets(pool, ledger, quantity, now)
		if err != nil {
			return err
		}
		payer := e.ledger.PayoutAddress(user, reg.Unit)
		if err := e.ledger.Transfer(payer, PoolVault(poolID), reg.Unit, cost); err != nil {
			return fmt.Errorf("buy tickets: %w", err)
		}
		if err := e.state.LotteryPoolPut(pool); err != nil {
			return err
		}
		if err := e.state.LotteryTicketsPut(ledger); err != nil {
			return err
		}
		pending = append(pending, NewTicketsPurchasedEvent(pool, user, issued, cost))
		if pool.Status == PoolStatusFull {
			pending = append(pending, NewPoolEvent(EventTypePoolFull, pool))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.emit(pending)
	return issued, nil
}

// CancelTicket retires a ticket, refunding the holder minus the platform fee.
// The fee is paid to the platform wallet out of the pool vault.
func (e *Engine) CancelTicket(user [20]byte, poolID, ticketNumber uint64) (*CancelReceipt, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	now := e.now()
	var (
		receipt CancelReceipt
		pending []*types.Event
	)
	err := e.state.Atomic(func() error {
		reg, err := e.loadRegistry()
		if err != nil {
			return err
		}
		pool, err := e.loadPool(poolID)
		if err != nil {
			return err
		}
		if pool.Status == PoolStatusCompleted {
			return ErrPoolNotActive
		}
		ledger, ok, err := e.state.LotteryTicketsGet(poolID, user)
		if err != nil {
			return err
		}
		if !ok || ledger == nil {
			return ErrTicketNotFound
		}
		receipt, err = cancelTicket(pool, ledger, ticketNumber, reg.PlatformFeeBps)
		if err != nil {
			return err
		}
		legs := []Disbursement{
			{Role: RoleRefund, Destination: e.ledger.PayoutAddress(user, reg.Unit), Amount: receipt.Refund},
			{Role: RolePlatform, Destination: e.ledger.PayoutAddress(reg.PlatformWallet, reg.Unit), Amount: receipt.Fee},
		}
		if err := e.ledger.ExecuteBatch(PoolVault(poolID), reg.Unit, legs); err != nil {
			return fmt.Errorf("cancel ticket: %w", err)
		}
		if err := e.state.LotteryPoolPut(pool); err != nil {
			return err
		}
		if len(ledger.Tickets) == 0 {
			err = e.state.LotteryTicketsDelete(poolID, user)
		} else {
			err = e.state.LotteryTicketsPut(ledger)
		}
		if err != nil {
			return err
		}
		pending = append(pending, NewTicketCancelledEvent(pool, user, receipt, now))
		if receipt.Reopened {
			pending = append(pending, NewPoolEvent(EventTypePoolReopened, pool))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.emit(pending)
	return &receipt, nil
}

// SettlePool runs the draw for poolID. Anyone may call it; the caller is
// recorded as the settler. Under-subscribed pools are rescheduled instead of
// settled and the call succeeds.
func (e *Engine) SettlePool(caller [20]byte, poolID uint64, roster, destinations [][20]byte) (*SettlementOutcome, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	now := e.now()
	var (
		outcome = &SettlementOutcome{PoolID: poolID}
		pending []*types.Event
	)
	err := e.state.Atomic(func() error {
		reg, err := e.loadRegistry()
		if err != nil {
			return err
		}
		pool, err := e.loadPool(poolID)
		if err != nil {
			return err
		}
		if err := checkSettlement(pool, now); err != nil {
			return err
		}
		if _, recorded, err := e.state.LotteryDrawGet(poolID); err != nil {
			return err
		} else if recorded {
			return ErrPoolAlreadyCompleted
		}
		// Rescheduling depends only on the stored roster, so a stale
		// snapshot cannot block or force it.
		if pool.Sold() < pool.MinTickets {
			previous := pool.DrawTime
			pool.reschedule(now)
			outcome.Rescheduled = true
			outcome.NextDrawTime = pool.DrawTime
			pending = append(pending, NewDrawRescheduledEvent(pool, previous))
			return e.state.LotteryPoolPut(pool)
		}
		if !sameRoster(roster, pool.TicketsSold) {
			return ErrRosterMismatch
		}

		seed, err := e.seeds.Seed(pool, e.ledger.Height())
		if err != nil {
			return err
		}
		plan, err := PlanSettlement(PlanInput{
			Pool:         pool,
			Registry:     reg,
			Roster:       roster,
			Destinations: destinations,
			Seed:         seed,
			Selector:     e.selector,
			Payout:       func(owner [20]byte) [20]byte { return e.ledger.PayoutAddress(owner, reg.Unit) },
		})
		if err != nil {
			return err
		}
		if err := e.ledger.ExecuteBatch(PoolVault(poolID), reg.Unit, plan.Legs); err != nil {
			return fmt.Errorf("settle pool: %w", err)
		}
		if err := pool.complete(plan.Winner); err != nil {
			return err
		}
		history := plan.History(caller, now)
		if err := e.state.LotteryPoolPut(pool); err != nil {
			return err
		}
		if err := e.state.LotteryDrawPut(history); err != nil {
			return err
		}
		outcome.Plan = plan
		outcome.History = history
		pending = append(pending, NewPoolSettledEvent(pool, history))
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.emit(pending)
	return outcome, nil
}

// PayoutDestinations resolves the canonical payout address of every roster
// entry, in roster order. It is what a cooperative settler passes to
// SettlePool.
func (e *Engine) PayoutDestinations(unit string, roster [][20]byte) ([][20]byte, error) {
	if e == nil || e.ledger == nil {
		return nil, errNilLedger
	}
	out := make([][20]byte, len(roster))
	for i, holder := range roster {
		out[i] = e.ledger.PayoutAddress(holder, unit)
	}
	return out, nil
}
