package core

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"fortunex/core/events"
	"fortunex/core/genesis"
	"fortunex/crypto"
	"fortunex/native/lottery"
	"fortunex/storage"
)

func addr(b byte) [20]byte {
	var out [20]byte
	for i := range out {
		out[i] = b
	}
	return out
}

type nodeHarness struct {
	node     *Node
	recorder *events.Recorder
	now      int64

	authority [20]byte
	platform  [20]byte
	creator   [20]byte
}

func newNodeHarness(t *testing.T) *nodeHarness {
	t.Helper()
	h := &nodeHarness{
		recorder:  &events.Recorder{},
		now:       1_700_000_000,
		authority: addr(0xA1),
		platform:  addr(0xB2),
		creator:   addr(0xC3),
	}
	node, err := NewNode(storage.NewMemDB(),
		WithEmitters(h.recorder),
		WithNowFunc(func() int64 { return h.now }),
	)
	require.NoError(t, err)
	h.node = node

	_, err = node.InitRegistry(h.authority, h.platform, "usdc", 100, 100)
	require.NoError(t, err)
	_, err = node.UpdateAllowlist(h.authority, h.creator, lottery.AllowlistAdd)
	require.NoError(t, err)
	return h
}

func (h *nodeHarness) createPool(t *testing.T) *lottery.Pool {
	t.Helper()
	pool, err := h.node.CreatePool(h.creator, lottery.PoolParams{
		TicketPrice:  1_000,
		MinTickets:   2,
		MaxTickets:   10,
		DrawInterval: 3_600,
	})
	require.NoError(t, err)
	return pool
}

func TestNodeSettlesDuePool(t *testing.T) {
	h := newNodeHarness(t)
	pool := h.createPool(t)
	buyer := addr(0x10)
	require.NoError(t, h.node.Fund(buyer, 5_000))

	tickets, err := h.node.BuyTickets(buyer, pool.ID, 2)
	require.NoError(t, err)
	require.Len(t, tickets, 2)

	_, err = h.node.Settle(buyer, pool.ID)
	require.True(t, errors.Is(err, lottery.ErrDrawTimeNotReached))

	due, err := h.node.DuePools(h.now)
	require.NoError(t, err)
	require.Empty(t, due)

	h.now += 3_600
	due, err = h.node.DuePools(h.now)
	require.NoError(t, err)
	require.Len(t, due, 1)

	height := h.node.Height()
	outcome, err := h.node.Settle(addr(0x99), pool.ID)
	require.NoError(t, err)
	require.False(t, outcome.Rescheduled)
	require.Equal(t, buyer, outcome.Plan.Winner)
	require.Equal(t, height+1, h.node.Height())

	balance, err := h.node.Balance(buyer)
	require.NoError(t, err)
	require.Equal(t, uint64(3_000+1_960), balance)

	draw, err := h.node.Draw(pool.ID)
	require.NoError(t, err)
	require.Equal(t, addr(0x99), draw.Settler)
	require.Equal(t, uint64(1_960), draw.WinnerPrize)

	settled, err := h.node.Pool(pool.ID)
	require.NoError(t, err)
	require.Equal(t, lottery.PoolStatusCompleted, settled.Status)

	types := h.recorder.Types()
	require.Equal(t, lottery.EventTypePoolSettled, types[len(types)-1])

	_, err = h.node.Settle(buyer, pool.ID)
	require.True(t, errors.Is(err, lottery.ErrPoolAlreadyCompleted))
}

func TestNodeReschedulesUndersubscribedPool(t *testing.T) {
	h := newNodeHarness(t)
	pool := h.createPool(t)
	h.now += 3_600

	outcome, err := h.node.Settle(addr(0x99), pool.ID)
	require.NoError(t, err)
	require.True(t, outcome.Rescheduled)
	require.Equal(t, h.now+3_600, outcome.NextDrawTime)

	_, err = h.node.Draw(pool.ID)
	require.True(t, errors.Is(err, ErrDrawNotFound))
}

func TestNodeQueriesReportMissingRecords(t *testing.T) {
	node, err := NewNode(storage.NewMemDB())
	require.NoError(t, err)

	_, err = node.Registry()
	require.True(t, errors.Is(err, lottery.ErrRegistryNotFound))
	_, err = node.Pool(7)
	require.True(t, errors.Is(err, lottery.ErrPoolNotFound))
	_, err = node.Tickets(7, addr(1))
	require.True(t, errors.Is(err, lottery.ErrTicketNotFound))
	require.True(t, errors.Is(node.Fund(addr(1), 10), lottery.ErrRegistryNotFound))

	pools, err := node.Pools()
	require.NoError(t, err)
	require.Empty(t, pools)
}

func TestNodeBootstrapRunsOnce(t *testing.T) {
	fx := func(b byte) string { return crypto.FromBytes20(addr(b)).String() }
	spec, err := genesis.ParseGenesisSpec([]byte(strings.Join([]string{
		"registry:",
		"  authority: " + fx(1),
		"  platform_wallet: " + fx(2),
		"  unit: usdc",
		"  allowlist:",
		"    - " + fx(3),
		"balances:",
		"  - owner: " + fx(4),
		"    amount: 9000",
		"pools:",
		"  - creator: " + fx(3),
		"    ticket_price: 1000",
		"    min_tickets: 1",
		"    max_tickets: 5",
		"    draw_interval: 1h",
		"",
	}, "\n")))
	require.NoError(t, err)

	node, err := NewNode(storage.NewMemDB())
	require.NoError(t, err)

	applied, err := node.Bootstrap(spec)
	require.NoError(t, err)
	require.True(t, applied)

	applied, err = node.Bootstrap(spec)
	require.NoError(t, err)
	require.False(t, applied)

	balance, err := node.Balance(addr(4))
	require.NoError(t, err)
	require.Equal(t, uint64(9_000), balance)

	pools, err := node.Pools()
	require.NoError(t, err)
	require.Len(t, pools, 1)
}

func TestNodeSerialisesConcurrentPurchases(t *testing.T) {
	h := newNodeHarness(t)
	pool := h.createPool(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		buyer := addr(byte(0x20 + i))
		require.NoError(t, h.node.Fund(buyer, 1_000))
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = h.node.BuyTickets(buyer, pool.ID, 1)
		}()
	}
	wg.Wait()

	got, err := h.node.Pool(pool.ID)
	require.NoError(t, err)
	require.Len(t, got.TicketsSold, 10)
	require.Equal(t, lottery.PoolStatusFull, got.Status)
	require.Equal(t, uint64(10_000), got.PrizePool)
}

func TestNodeSettlePoolRejectsStaleRoster(t *testing.T) {
	h := newNodeHarness(t)
	pool := h.createPool(t)
	buyer := addr(0x10)
	require.NoError(t, h.node.Fund(buyer, 5_000))
	_, err := h.node.BuyTickets(buyer, pool.ID, 2)
	require.NoError(t, err)
	h.now += 3_600

	stale := [][20]byte{buyer}
	_, err = h.node.SettlePool(buyer, pool.ID, stale, stale)
	require.True(t, errors.Is(err, lottery.ErrRosterMismatch))

	got, err := h.node.Pool(pool.ID)
	require.NoError(t, err)
	require.NotEqual(t, lottery.PoolStatusCompleted, got.Status)
}
