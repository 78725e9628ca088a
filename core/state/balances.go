package state

import (
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"fortunex/native/lottery"
)

var _ lottery.Ledger = (*Manager)(nil)

// Balance returns the amount of unit held by addr.
func (m *Manager) Balance(addr [20]byte, unit string) (uint64, error) {
	var amount uint64
	if _, err := m.KVGet(balanceKey(addr, unit), &amount); err != nil {
		return 0, err
	}
	return amount, nil
}

func (m *Manager) setBalance(addr [20]byte, unit string, amount uint64) error {
	if amount == 0 {
		return m.KVDelete(balanceKey(addr, unit))
	}
	return m.KVPut(balanceKey(addr, unit), amount)
}

// Credit mints amount of unit into addr. It is used by genesis and by tests.
func (m *Manager) Credit(addr [20]byte, unit string, amount uint64) error {
	current, err := m.Balance(addr, unit)
	if err != nil {
		return err
	}
	next, err := lottery.AddAmount(current, amount)
	if err != nil {
		return err
	}
	return m.setBalance(addr, unit, next)
}

// Transfer moves amount of unit from one address to another. It fails with
// lottery.ErrInsufficientFunds when the source balance is short.
func (m *Manager) Transfer(from, to [20]byte, unit string, amount uint64) error {
	return m.Atomic(func() error {
		fromBal, err := m.Balance(from, unit)
		if err != nil {
			return err
		}
		if fromBal < amount {
			return fmt.Errorf("transfer %d %s from %x: %w", amount, unit, from, lottery.ErrInsufficientFunds)
		}
		if amount == 0 || from == to {
			return nil
		}
		if err := m.setBalance(from, unit, fromBal-amount); err != nil {
			return err
		}
		return m.Credit(to, unit, amount)
	})
}

// ExecuteBatch moves every leg out of from inside one atomic boundary. The
// total is checked against the source balance before anything moves.
func (m *Manager) ExecuteBatch(from [20]byte, unit string, legs []lottery.Disbursement) error {
	total, err := lottery.SumLegs(legs)
	if err != nil {
		return err
	}
	return m.Atomic(func() error {
		available, err := m.Balance(from, unit)
		if err != nil {
			return err
		}
		if available < total {
			return fmt.Errorf("batch of %d %s from %x: %w", total, unit, from, lottery.ErrInsufficientFunds)
		}
		for _, leg := range legs {
			if err := m.Transfer(from, leg.Destination, unit, leg.Amount); err != nil {
				return fmt.Errorf("%s leg: %w", leg.Role, err)
			}
		}
		return nil
	})
}

// PayoutAddress returns the canonical address at which owner receives unit.
func (m *Manager) PayoutAddress(owner [20]byte, unit string) [20]byte {
	return PayoutAddress(owner, unit)
}

// PayoutAddress derives the last 20 bytes of
// keccak256("fortunex/payout/" || unit || owner).
func PayoutAddress(owner [20]byte, unit string) [20]byte {
	hash := ethcrypto.Keccak256(payoutAddressDomain, []byte(unit), owner[:])
	var out [20]byte
	copy(out[:], hash[len(hash)-20:])
	return out
}
