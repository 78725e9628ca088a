package archive

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"fortunex/core"
	"fortunex/core/types"
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

func setupStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	if err != nil {
		t.Fatalf("failed to open archive: %v", err)
	}
	store, err := NewStore(db, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreArchivesNodeActivity(t *testing.T) {
	store := setupStore(t)
	now := int64(1_700_000_000)
	node, err := core.NewNode(storage.NewMemDB(),
		core.WithEmitters(store),
		core.WithNowFunc(func() int64 { return now }),
	)
	require.NoError(t, err)

	authority, platform, creator := addr(0xA1), addr(0xB2), addr(0xC3)
	alice, bob := addr(0x10), addr(0x20)
	_, err = node.InitRegistry(authority, platform, "USDC", 100, 100)
	require.NoError(t, err)
	_, err = node.UpdateAllowlist(authority, creator, lottery.AllowlistAdd)
	require.NoError(t, err)
	pool, err := node.CreatePool(creator, lottery.PoolParams{
		TicketPrice:   1_000,
		MinTickets:    2,
		MaxTickets:    5,
		DrawInterval:  3_600,
		CommissionBps: 200,
	})
	require.NoError(t, err)
	require.NoError(t, node.Fund(alice, 10_000))
	require.NoError(t, node.Fund(bob, 10_000))

	_, err = node.BuyTickets(alice, pool.ID, 2)
	require.NoError(t, err)
	_, err = node.BuyTickets(bob, pool.ID, 1)
	require.NoError(t, err)
	_, err = node.CancelTicket(bob, pool.ID, 3)
	require.NoError(t, err)

	now += 3_600
	outcome, err := node.Settle(bob, pool.ID)
	require.NoError(t, err)
	require.Equal(t, alice, outcome.Plan.Winner)

	ctx := context.Background()
	activity, err := store.PoolActivity(ctx, pool.ID)
	require.NoError(t, err)
	require.Len(t, activity, 3)
	require.Equal(t, KindPurchase, activity[0].Kind)
	require.Equal(t, uint64(2), activity[0].Quantity)
	require.Equal(t, uint64(1), activity[0].FirstTicket)
	require.Equal(t, uint64(2), activity[0].LastTicket)
	require.Equal(t, KindCancel, activity[2].Kind)
	require.Equal(t, uint64(990), activity[2].Amount)
	require.Equal(t, uint64(10), activity[2].Fee)

	bobs, err := store.OwnerActivity(ctx, bob)
	require.NoError(t, err)
	require.Len(t, bobs, 2)

	draw, err := store.DrawByPool(ctx, pool.ID)
	require.NoError(t, err)
	require.Equal(t, crypto.FromBytes20(alice).String(), draw.Winner)
	require.Equal(t, crypto.FromBytes20(bob).String(), draw.Settler)
	require.Equal(t, uint64(2_000), draw.TotalPrize)
	require.Equal(t, uint64(40), draw.Commission)
	require.Equal(t, uint64(2_000-20-20-40), draw.WinnerPrize)
	require.Equal(t, now, draw.DrawTimestamp)

	var logged int64
	require.NoError(t, store.db.Model(&PoolEvent{}).Count(&logged).Error)
	require.Greater(t, logged, int64(5))
}

func TestRecentWinnersOrdering(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	for i := uint64(0); i < 3; i++ {
		pool := &lottery.Pool{ID: i, Status: lottery.PoolStatusCompleted, Creator: addr(3), TicketPrice: 10}
		history := &lottery.DrawHistory{
			PoolID:        i,
			Winner:        addr(byte(0x10 + i)),
			Settler:       addr(9),
			WinnerPrize:   100 * (i + 1),
			TotalPrize:    100 * (i + 1),
			TotalTickets:  1,
			DrawTimestamp: 1_000 + int64(i),
		}
		require.NoError(t, store.Record(ctx, lottery.NewPoolSettledEvent(pool, history)))
	}

	winners, err := store.RecentWinners(ctx, 2)
	require.NoError(t, err)
	require.Len(t, winners, 2)
	require.Equal(t, uint64(2), winners[0].PoolID)
	require.Equal(t, uint64(1), winners[1].PoolID)

	all, err := store.RecentWinners(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)

	_, err = store.DrawByPool(ctx, 42)
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestRecordRejectsMalformedPayload(t *testing.T) {
	store := setupStore(t)
	err := store.Record(context.Background(), &types.Event{
		Type:       lottery.EventTypePoolSettled,
		Attributes: map[string]string{"poolId": "1", "winner": "zz"},
	})
	require.Error(t, err)

	// The whole transaction is discarded.
	var logged int64
	require.NoError(t, store.db.Model(&PoolEvent{}).Count(&logged).Error)
	require.Zero(t, logged)

	require.NoError(t, store.Record(context.Background(), nil))
}
