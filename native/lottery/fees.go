package lottery

import "github.com/holiman/uint256"

// Split is the four-way division of a settled prize pool. Every fee is taken
// from Total, never from a running remainder.
type Split struct {
	Total       uint64
	PlatformFee uint64
	BonusFee    uint64
	Commission  uint64
	WinnerShare uint64
}

// Fees returns the sum of the three deductions.
func (s Split) Fees() uint64 { return s.PlatformFee + s.BonusFee + s.Commission }

// ValidateBps rejects rates above 100%.
func ValidateBps(bps uint32) error {
	if bps > BpsDenominator {
		return ErrInvalidBps
	}
	return nil
}

// ValidatePlatformFeeBps enforces the 10% ceiling on registry level rates.
func ValidatePlatformFeeBps(bps uint32) error {
	if bps > MaxPlatformFeeBps {
		return ErrInvalidPlatformFee
	}
	return nil
}

// ValidateFeeConfig checks that the three deductions leave the winner a
// positive share of any prize.
func ValidateFeeConfig(platformBps, bonusBps, commissionBps uint32) error {
	for _, bps := range []uint32{platformBps, bonusBps, commissionBps} {
		if err := ValidateBps(bps); err != nil {
			return err
		}
	}
	if uint64(platformBps)+uint64(bonusBps)+uint64(commissionBps) >= uint64(BpsDenominator) {
		return ErrInvalidFeeConfig
	}
	return nil
}

// FeeAmount returns floor(total * bps / 10000). The product is computed in 256
// bits so it cannot wrap.
func FeeAmount(total uint64, bps uint32) (uint64, error) {
	if err := ValidateBps(bps); err != nil {
		return 0, err
	}
	product := new(uint256.Int).Mul(uint256.NewInt(total), uint256.NewInt(uint64(bps)))
	product.Div(product, uint256.NewInt(uint64(BpsDenominator)))
	if !product.IsUint64() {
		return 0, ErrOverflow
	}
	return product.Uint64(), nil
}

// MulAmount multiplies two amounts, failing instead of wrapping.
func MulAmount(a, b uint64) (uint64, error) {
	product, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(a), uint256.NewInt(b))
	if overflow || !product.IsUint64() {
		return 0, ErrOverflow
	}
	return product.Uint64(), nil
}

// AddAmount adds two amounts, failing instead of wrapping.
func AddAmount(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, ErrOverflow
	}
	return sum, nil
}

// SubAmount subtracts b from a, failing on underflow.
func SubAmount(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ErrOverflow
	}
	return a - b, nil
}

// ComputeSplit divides total between the platform, bonus reserve, creator and
// winner.
func ComputeSplit(total uint64, platformBps, bonusBps, commissionBps uint32) (Split, error) {
	if err := ValidateFeeConfig(platformBps, bonusBps, commissionBps); err != nil {
		return Split{}, err
	}
	platform, err := FeeAmount(total, platformBps)
	if err != nil {
		return Split{}, err
	}
	bonus, err := FeeAmount(total, bonusBps)
	if err != nil {
		return Split{}, err
	}
	commission, err := FeeAmount(total, commissionBps)
	if err != nil {
		return Split{}, err
	}
	fees, err := AddAmount(platform, bonus)
	if err != nil {
		return Split{}, err
	}
	if fees, err = AddAmount(fees, commission); err != nil {
		return Split{}, err
	}
	winner, err := SubAmount(total, fees)
	if err != nil {
		return Split{}, err
	}
	return Split{
		Total:       total,
		PlatformFee: platform,
		BonusFee:    bonus,
		Commission:  commission,
		WinnerShare: winner,
	}, nil
}

// CancellationSplit returns the fee retained by the platform and the refund
// owed to the ticket holder. fee + refund always equals amountPaid.
func CancellationSplit(amountPaid uint64, platformBps uint32) (fee, refund uint64, err error) {
	fee, err = FeeAmount(amountPaid, platformBps)
	if err != nil {
		return 0, 0, err
	}
	refund, err = SubAmount(amountPaid, fee)
	if err != nil {
		return 0, 0, err
	}
	return fee, refund, nil
}
