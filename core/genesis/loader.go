package genesis

import (
	"fmt"

	"fortunex/core/state"
	"fortunex/native/lottery"
)

// BuildGenesisFromSpec bootstraps an empty state: registry, allow-list, opening
// balances and opening pools, in that order. Every step runs through the
// engine so genesis obeys the same validation as live operations.
func BuildGenesisFromSpec(spec *GenesisSpec, manager *state.Manager, engine *lottery.Engine) error {
	if manager == nil || engine == nil {
		return fmt.Errorf("genesis: state manager and engine required")
	}
	resolved, err := spec.Resolve()
	if err != nil {
		return err
	}
	if _, exists, err := manager.LotteryRegistryGet(); err != nil {
		return err
	} else if exists {
		return fmt.Errorf("genesis: %w", lottery.ErrRegistryExists)
	}

	if _, err := engine.InitRegistry(resolved.Authority, resolved.PlatformWallet, resolved.Unit, resolved.PlatformFeeBps, resolved.BonusPoolFeeBps); err != nil {
		return fmt.Errorf("genesis registry: %w", err)
	}
	for _, creator := range resolved.Allowlist {
		if _, err := engine.UpdateAllowlist(resolved.Authority, creator, lottery.AllowlistAdd); err != nil {
			return fmt.Errorf("genesis allowlist %x: %w", creator, err)
		}
	}
	err = manager.Atomic(func() error {
		for _, bal := range resolved.Balances {
			payout := manager.PayoutAddress(bal.Owner, resolved.Unit)
			if err := manager.Credit(payout, resolved.Unit, bal.Amount); err != nil {
				return fmt.Errorf("genesis balance %x: %w", bal.Owner, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	for i, pool := range resolved.Pools {
		if _, err := engine.CreatePool(pool.Creator, pool.Params); err != nil {
			return fmt.Errorf("genesis pools[%d]: %w", i, err)
		}
	}
	return nil
}
