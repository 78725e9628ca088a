package crank

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"fortunex/crypto"
	"fortunex/native/lottery"
	"fortunex/observability"
	fxotel "fortunex/observability/otel"
)

// Settler is the node surface the keeper drives.
type Settler interface {
	Registry() (*lottery.Registry, error)
	DuePools(now int64) ([]*lottery.Pool, error)
	Settle(caller [20]byte, poolID uint64) (*lottery.SettlementOutcome, error)
	CreatePool(creator [20]byte, params lottery.PoolParams) (*lottery.Pool, error)
}

type Config struct {
	Logger   *slog.Logger
	Clock    clockwork.Clock
	Node     Settler
	Operator [20]byte
	Interval time.Duration
	// MaxSettlementsPerSecond caps settle attempts. Zero disables the cap.
	MaxSettlementsPerSecond float64
	// Rollover opens a pool with the same parameters after each settlement.
	// The operator must be allow-listed.
	Rollover bool
	Metrics  *observability.LotteryMetrics
}

func (cfg *Config) Validate() error {
	if cfg.Node == nil {
		return errors.New("crank: node is required")
	}
	if cfg.Interval <= 0 {
		return errors.New("crank: interval must be greater than 0")
	}
	if cfg.MaxSettlementsPerSecond < 0 {
		return errors.New("crank: settlement rate must not be negative")
	}
	if cfg.Rollover && cfg.Operator == ([20]byte{}) {
		return errors.New("crank: rollover requires an operator")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.Lottery()
	}
	return nil
}

// Report summarises a single keeper pass.
type Report struct {
	Due         int
	Settled     []uint64
	Rescheduled []uint64
	Throttled   []uint64
	Failed      map[uint64]error
	RolledOver  []uint64
}

// Crank periodically settles pools whose draw time has elapsed.
type Crank struct {
	log     *slog.Logger
	cfg     Config
	limiter *rate.Limiter
	runMu   sync.Mutex
}

func New(cfg Config) (*Crank, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.MaxSettlementsPerSecond > 0 {
		burst := int(math.Ceil(cfg.MaxSettlementsPerSecond))
		limiter = rate.NewLimiter(rate.Limit(cfg.MaxSettlementsPerSecond), burst)
	}
	return &Crank{
		log:     cfg.Logger.With(slog.String("component", "crank"), slog.String("operator", crypto.FromBytes20(cfg.Operator).String())),
		cfg:     cfg,
		limiter: limiter,
	}, nil
}

// Start runs the keeper loop in a goroutine until ctx is cancelled.
func (c *Crank) Start(ctx context.Context) {
	go c.Run(ctx)
}

// Run blocks, running a pass immediately and then once per interval.
func (c *Crank) Run(ctx context.Context) {
	c.log.Info("crank: starting settlement loop", "interval", c.cfg.Interval)
	c.safeTick(ctx)

	ticker := c.cfg.Clock.NewTicker(c.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.log.Info("crank: stopped")
			return
		case <-ticker.Chan():
			c.safeTick(ctx)
		}
	}
}

func (c *Crank) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("crank: pass panicked", "panic", r)
		}
	}()
	if _, err := c.Tick(ctx); err != nil && !errors.Is(err, context.Canceled) {
		c.log.Error("crank: pass failed", "error", err)
	}
}

// Tick runs one keeper pass: it settles every due pool, subject to the rate
// limit, and rolls settled pools over when configured.
func (c *Crank) Tick(ctx context.Context) (*Report, error) {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	now := c.cfg.Clock.Now()
	due, err := c.cfg.Node.DuePools(now.Unix())
	if err != nil {
		return nil, fmt.Errorf("crank: list due pools: %w", err)
	}
	c.cfg.Metrics.RecordDueScan(len(due))
	report := &Report{Due: len(due), Failed: make(map[uint64]error)}
	for _, pool := range due {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if !c.limiter.AllowN(c.cfg.Clock.Now(), 1) {
			c.cfg.Metrics.RecordThrottle("crank")
			report.Throttled = append(report.Throttled, pool.ID)
			continue
		}
		outcome, err := c.settle(ctx, pool.ID)
		switch {
		case err != nil:
			report.Failed[pool.ID] = err
			c.logFailure(pool.ID, err)
		case outcome.Rescheduled:
			report.Rescheduled = append(report.Rescheduled, pool.ID)
			c.log.Info("crank: draw rescheduled", "pool", pool.ID, "sold", pool.Sold(), "min", pool.MinTickets, "next_draw", outcome.NextDrawTime)
		default:
			report.Settled = append(report.Settled, pool.ID)
			c.log.Info("crank: pool settled",
				"pool", pool.ID,
				"winner", crypto.FromBytes20(outcome.Plan.Winner).String(),
				"prize", outcome.Plan.Split.WinnerShare,
				"tickets", outcome.Plan.TotalTickets,
			)
			if c.cfg.Rollover {
				if next, err := c.rollover(pool); err != nil {
					c.log.Warn("crank: rollover skipped", "pool", pool.ID, "error", err)
				} else {
					report.RolledOver = append(report.RolledOver, next.ID)
				}
			}
		}
	}
	return report, nil
}

func (c *Crank) settle(ctx context.Context, poolID uint64) (*lottery.SettlementOutcome, error) {
	_, span := fxotel.StartSpan(ctx, "crank.settle_pool", attribute.Int64("lottery.pool_id", int64(poolID)))
	defer span.End()

	outcome, err := c.cfg.Node.Settle(c.cfg.Operator, poolID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, lottery.Classify(err).String())
		return nil, err
	}
	span.SetAttributes(attribute.Bool("lottery.rescheduled", outcome.Rescheduled))
	return outcome, nil
}

func (c *Crank) rollover(settled *lottery.Pool) (*lottery.Pool, error) {
	reg, err := c.cfg.Node.Registry()
	if err != nil {
		return nil, err
	}
	if !reg.IsAllowed(c.cfg.Operator) {
		return nil, lottery.ErrCreatorNotAllowed
	}
	next, err := c.cfg.Node.CreatePool(c.cfg.Operator, settled.Params())
	if err != nil {
		return nil, err
	}
	c.log.Info("crank: pool rolled over", "settled", settled.ID, "pool", next.ID)
	return next, nil
}

func (c *Crank) logFailure(poolID uint64, err error) {
	switch lottery.Classify(err) {
	case lottery.ClassIntegrity, lottery.ClassInternal:
		c.log.Error("crank: settlement failed", "pool", poolID, "error", err)
	default:
		// Another settler got there first or the pool moved on.
		c.log.Debug("crank: settlement skipped", "pool", poolID, "error", err)
	}
}
