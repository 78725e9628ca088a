package genesis

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"fortunex/core/state"
	"fortunex/crypto"
	"fortunex/native/lottery"
	"fortunex/storage"
)

func fx(b byte) string {
	var raw [20]byte
	for i := range raw {
		raw[i] = b
	}
	return crypto.FromBytes20(raw).String()
}

func sampleGenesis() string {
	return strings.Join([]string{
		"registry:",
		"  authority: " + fx(1),
		"  platform_wallet: " + fx(2),
		"  unit: usdc",
		"  platform_fee_bps: 150",
		"  allowlist:",
		"    - " + fx(3),
		"balances:",
		"  - owner: " + fx(4),
		"    amount: 50000000",
		"pools:",
		"  - creator: " + fx(3),
		"    ticket_price: 10000000",
		"    min_tickets: 2",
		"    max_tickets: 10",
		"    draw_interval: 24h",
		"",
	}, "\n")
}

func TestResolveGenesis(t *testing.T) {
	spec, err := ParseGenesisSpec([]byte(sampleGenesis()))
	require.NoError(t, err)
	resolved, err := spec.Resolve()
	require.NoError(t, err)

	require.Equal(t, "USDC", resolved.Unit)
	require.Equal(t, uint32(150), resolved.PlatformFeeBps)
	require.Equal(t, lottery.DefaultPlatformFeeBps, resolved.BonusPoolFeeBps)
	require.Len(t, resolved.Allowlist, 1)
	require.Len(t, resolved.Pools, 1)
	require.Equal(t, int64(86_400), resolved.Pools[0].Params.DrawInterval)
}

func TestResolveGenesisRejects(t *testing.T) {
	cases := map[string]string{
		"unknown field":      sampleGenesis() + "extra: true\n",
		"bad fee":            strings.Replace(sampleGenesis(), "platform_fee_bps: 150", "platform_fee_bps: 1500", 1),
		"bad interval":       strings.Replace(sampleGenesis(), "draw_interval: 24h", "draw_interval: 90m30s500ms", 1),
		"creator not listed": strings.Replace(sampleGenesis(), "  - creator: "+fx(3), "  - creator: "+fx(9), 1),
		"bad address":        strings.Replace(sampleGenesis(), "  authority: "+fx(1), "  authority: nope", 1),
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			spec, err := ParseGenesisSpec([]byte(doc))
			if err == nil {
				_, err = spec.Resolve()
			}
			require.Error(t, err)
		})
	}
}

func TestBuildGenesisFromSpec(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genesis.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleGenesis()), 0o644))
	spec, err := LoadGenesisSpec(path)
	require.NoError(t, err)

	manager, err := state.NewManager(storage.NewMemDB())
	require.NoError(t, err)
	engine := lottery.NewEngine()
	engine.SetState(manager)
	engine.SetLedger(manager)

	require.NoError(t, BuildGenesisFromSpec(spec, manager, engine))

	reg, ok, err := manager.LotteryRegistryGet()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(1), reg.PoolsCount)

	owner, err := crypto.ParseAddress(fx(4))
	require.NoError(t, err)
	bal, err := manager.Balance(manager.PayoutAddress(owner, "USDC"), "USDC")
	require.NoError(t, err)
	require.Equal(t, uint64(50_000_000), bal)

	pool, ok, err := manager.LotteryPoolGet(0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, lottery.PoolStatusActive, pool.Status)

	err = BuildGenesisFromSpec(spec, manager, engine)
	require.True(t, errors.Is(err, lottery.ErrRegistryExists))
}
