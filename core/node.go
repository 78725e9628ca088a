package core

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"fortunex/core/events"
	"fortunex/core/genesis"
	"fortunex/core/state"
	"fortunex/native/lottery"
	"fortunex/observability"
	"fortunex/storage"
)

// Node hosts the lottery engine. Every operation runs behind a single mutex so
// at most one state transition is in flight at a time.
type Node struct {
	stateMu sync.Mutex

	db      storage.Database
	state   *state.Manager
	engine  *lottery.Engine
	emitter events.MultiEmitter
	metrics *observability.LotteryMetrics
	logger  *slog.Logger
	nowFn   func() int64
}

// NodeOption customises a Node at construction.
type NodeOption func(*Node)

// WithLogger sets the node logger. Nil keeps slog.Default().
func WithLogger(logger *slog.Logger) NodeOption {
	return func(n *Node) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// WithEmitters appends downstream event subscribers such as the archive.
func WithEmitters(emitters ...events.Emitter) NodeOption {
	return func(n *Node) {
		for _, emitter := range emitters {
			if emitter != nil {
				n.emitter = append(n.emitter, emitter)
			}
		}
	}
}

// WithSeedSource swaps the draw entropy source.
func WithSeedSource(source lottery.SeedSource) NodeOption {
	return func(n *Node) { n.engine.SetSeedSource(source) }
}

// WithSelector swaps the winner selector.
func WithSelector(selector lottery.WinnerSelector) NodeOption {
	return func(n *Node) { n.engine.SetSelector(selector) }
}

// WithNowFunc overrides the unix-seconds clock used for tickets and draws.
func WithNowFunc(now func() int64) NodeOption {
	return func(n *Node) {
		if now != nil {
			n.nowFn = now
		}
	}
}

// WithMetrics overrides the metrics registry. Primarily intended for tests.
func WithMetrics(metrics *observability.LotteryMetrics) NodeOption {
	return func(n *Node) { n.metrics = metrics }
}

// NewNode opens the state manager on db and wires the lottery engine.
func NewNode(db storage.Database, opts ...NodeOption) (*Node, error) {
	manager, err := state.NewManager(db)
	if err != nil {
		return nil, err
	}
	n := &Node{
		db:      db,
		state:   manager,
		engine:  lottery.NewEngine(),
		metrics: observability.Lottery(),
		logger:  slog.Default(),
		nowFn:   func() int64 { return time.Now().Unix() },
	}
	for _, opt := range opts {
		opt(n)
	}
	n.emitter = append(events.MultiEmitter{observability.EventMetrics{Metrics: n.metrics}}, n.emitter...)
	n.engine.SetState(manager)
	n.engine.SetLedger(manager)
	n.engine.SetEmitter(n.emitter)
	n.engine.SetNowFunc(n.now)
	return n, nil
}

func (n *Node) now() int64 { return n.nowFn() }

// Height returns the committed slot counter.
func (n *Node) Height() uint64 {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.state.Height()
}

func (n *Node) observe(operation string, started time.Time, err error) {
	n.metrics.ObserveOperation(operation, time.Since(started), err)
	if err != nil && lottery.Classify(err) == lottery.ClassIntegrity {
		n.logger.Error("lottery integrity failure", slog.String("operation", operation), slog.Any("error", err))
	}
}

// Bootstrap applies spec when no registry exists yet. It reports whether
// genesis was applied.
func (n *Node) Bootstrap(spec *genesis.GenesisSpec) (bool, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	if _, exists, err := n.state.LotteryRegistryGet(); err != nil {
		return false, err
	} else if exists {
		return false, nil
	}
	if spec == nil {
		return false, fmt.Errorf("genesis: spec required for empty state")
	}
	if err := genesis.BuildGenesisFromSpec(spec, n.state, n.engine); err != nil {
		return false, err
	}
	n.logger.Info("genesis applied", slog.Uint64("height", n.state.Height()))
	return true, nil
}

// Fund credits amount to the canonical payout address of owner in the
// registry unit.
func (n *Node) Fund(owner [20]byte, amount uint64) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	reg, ok, err := n.state.LotteryRegistryGet()
	if err != nil {
		return err
	}
	if !ok {
		return lottery.ErrRegistryNotFound
	}
	return n.state.Atomic(func() error {
		return n.state.Credit(n.state.PayoutAddress(owner, reg.Unit), reg.Unit, amount)
	})
}

// InitRegistry creates the singleton registry.
func (n *Node) InitRegistry(authority, platformWallet [20]byte, unit string, platformFeeBps, bonusPoolFeeBps uint32) (*lottery.Registry, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	started := time.Now()
	reg, err := n.engine.InitRegistry(authority, platformWallet, unit, platformFeeBps, bonusPoolFeeBps)
	n.observe("init_registry", started, err)
	return reg, err
}

// UpdateRegistry applies an authority signed configuration change.
func (n *Node) UpdateRegistry(authority [20]byte, update lottery.RegistryUpdate) (*lottery.Registry, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	started := time.Now()
	reg, err := n.engine.UpdateRegistry(authority, update)
	n.observe("update_registry", started, err)
	return reg, err
}

// UpdateAllowlist adds or removes a pool creator.
func (n *Node) UpdateAllowlist(authority, creator [20]byte, action lottery.AllowlistAction) (*lottery.Registry, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	started := time.Now()
	reg, err := n.engine.UpdateAllowlist(authority, creator, action)
	n.observe("update_allowlist", started, err)
	return reg, err
}

// CreatePool opens a new pool for an allow-listed creator.
func (n *Node) CreatePool(creator [20]byte, params lottery.PoolParams) (*lottery.Pool, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	started := time.Now()
	pool, err := n.engine.CreatePool(creator, params)
	n.observe("create_pool", started, err)
	return pool, err
}

// BuyTickets purchases quantity tickets for user.
func (n *Node) BuyTickets(user [20]byte, poolID, quantity uint64) ([]lottery.TicketDetails, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	started := time.Now()
	tickets, err := n.engine.BuyTickets(user, poolID, quantity)
	n.observe("buy_tickets", started, err)
	return tickets, err
}

// CancelTicket cancels one ticket of user and refunds it net of the
// platform fee.
func (n *Node) CancelTicket(user [20]byte, poolID, ticketNumber uint64) (*lottery.CancelReceipt, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	started := time.Now()
	receipt, err := n.engine.CancelTicket(user, poolID, ticketNumber)
	n.observe("cancel_ticket", started, err)
	return receipt, err
}

// SettlePool settles poolID with a caller supplied roster snapshot and
// destination list.
func (n *Node) SettlePool(caller [20]byte, poolID uint64, roster, destinations [][20]byte) (*lottery.SettlementOutcome, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	return n.settleLocked(caller, poolID, roster, destinations)
}

// Settle snapshots the current roster of poolID, resolves every payout
// destination and settles the pool, all under the node lock.
func (n *Node) Settle(caller [20]byte, poolID uint64) (*lottery.SettlementOutcome, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	reg, ok, err := n.state.LotteryRegistryGet()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, lottery.ErrRegistryNotFound
	}
	pool, ok, err := n.state.LotteryPoolGet(poolID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, lottery.ErrPoolNotFound
	}
	roster := pool.Roster()
	destinations, err := n.engine.PayoutDestinations(reg.Unit, roster)
	if err != nil {
		return nil, err
	}
	return n.settleLocked(caller, poolID, roster, destinations)
}

func (n *Node) settleLocked(caller [20]byte, poolID uint64, roster, destinations [][20]byte) (*lottery.SettlementOutcome, error) {
	started := time.Now()
	outcome, err := n.engine.SettlePool(caller, poolID, roster, destinations)
	n.observe("settle_pool", started, err)
	switch {
	case err != nil:
		n.metrics.RecordSettlement("failed")
	case outcome.Rescheduled:
		n.metrics.RecordSettlement("rescheduled")
	default:
		n.metrics.RecordSettlement("settled")
	}
	return outcome, err
}

// Registry returns the registry or ErrRegistryNotFound.
func (n *Node) Registry() (*lottery.Registry, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	reg, ok, err := n.state.LotteryRegistryGet()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, lottery.ErrRegistryNotFound
	}
	return reg, nil
}

// Pool returns a pool by id or ErrPoolNotFound.
func (n *Node) Pool(id uint64) (*lottery.Pool, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	pool, ok, err := n.state.LotteryPoolGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, lottery.ErrPoolNotFound
	}
	return pool, nil
}

// Pools lists every pool in creation order.
func (n *Node) Pools() ([]*lottery.Pool, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.state.LotteryPools()
}

// Tickets returns the ticket ledger of owner in poolID.
func (n *Node) Tickets(poolID uint64, owner [20]byte) (*lottery.UserTicket, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	ut, ok, err := n.state.LotteryTicketsGet(poolID, owner)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, lottery.ErrTicketNotFound
	}
	return ut, nil
}

// ErrDrawNotFound is returned when a pool has no recorded draw yet.
var ErrDrawNotFound = errors.New("core: draw not recorded")

// Draw returns the draw history of a completed pool.
func (n *Node) Draw(poolID uint64) (*lottery.DrawHistory, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	d, ok, err := n.state.LotteryDrawGet(poolID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrDrawNotFound
	}
	return d, nil
}

// Balance returns the balance held at the payout address of owner.
func (n *Node) Balance(owner [20]byte) (uint64, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	reg, ok, err := n.state.LotteryRegistryGet()
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, lottery.ErrRegistryNotFound
	}
	return n.state.Balance(n.state.PayoutAddress(owner, reg.Unit), reg.Unit)
}

// DuePools lists the non-completed pools whose draw time has passed at now.
func (n *Node) DuePools(now int64) ([]*lottery.Pool, error) {
	pools, err := n.Pools()
	if err != nil {
		return nil, err
	}
	due := make([]*lottery.Pool, 0, len(pools))
	for _, pool := range pools {
		if pool.Due(now) {
			due = append(due, pool)
		}
	}
	return due, nil
}

// Now returns the node clock in unix seconds.
func (n *Node) Now() int64 { return n.now() }
