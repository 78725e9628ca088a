package lottery

import "strings"

// AllowlistAction selects whether UpdateAllowlist adds or removes a creator.
type AllowlistAction uint8

const (
	AllowlistAdd AllowlistAction = iota + 1
	AllowlistRemove
)

func (a AllowlistAction) String() string {
	switch a {
	case AllowlistAdd:
		return "add"
	case AllowlistRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// RegistryUpdate carries the optional fields of update_global_config. Nil
// fields are left untouched.
type RegistryUpdate struct {
	PlatformWallet  *[20]byte
	Unit            *string
	PlatformFeeBps  *uint32
	BonusPoolFeeBps *uint32
}

// Empty reports whether the update changes nothing.
func (u RegistryUpdate) Empty() bool {
	return u.PlatformWallet == nil && u.Unit == nil && u.PlatformFeeBps == nil && u.BonusPoolFeeBps == nil
}

// NewRegistry validates the bootstrap parameters and returns a fresh registry.
func NewRegistry(authority, platformWallet [20]byte, unit string, platformBps, bonusBps uint32) (*Registry, error) {
	normalized, err := normalizeUnit(unit)
	if err != nil {
		return nil, err
	}
	if err := ValidatePlatformFeeBps(platformBps); err != nil {
		return nil, err
	}
	if err := ValidatePlatformFeeBps(bonusBps); err != nil {
		return nil, err
	}
	return &Registry{
		Authority:       authority,
		PlatformWallet:  platformWallet,
		Unit:            normalized,
		PlatformFeeBps:  platformBps,
		BonusPoolFeeBps: bonusBps,
	}, nil
}

// ApplyUpdate validates every supplied field before changing any of them.
func (r *Registry) ApplyUpdate(update RegistryUpdate) error {
	var unit string
	if update.Unit != nil {
		normalized, err := normalizeUnit(*update.Unit)
		if err != nil {
			return err
		}
		unit = normalized
	}
	if update.PlatformFeeBps != nil {
		if err := ValidatePlatformFeeBps(*update.PlatformFeeBps); err != nil {
			return err
		}
	}
	if update.BonusPoolFeeBps != nil {
		if err := ValidatePlatformFeeBps(*update.BonusPoolFeeBps); err != nil {
			return err
		}
	}
	if update.PlatformWallet != nil {
		r.PlatformWallet = *update.PlatformWallet
	}
	if update.Unit != nil {
		r.Unit = unit
	}
	if update.PlatformFeeBps != nil {
		r.PlatformFeeBps = *update.PlatformFeeBps
	}
	if update.BonusPoolFeeBps != nil {
		r.BonusPoolFeeBps = *update.BonusPoolFeeBps
	}
	return nil
}

// AddCreator appends a creator to the allow-list.
func (r *Registry) AddCreator(creator [20]byte) error {
	if r.IsAllowed(creator) {
		return ErrAlreadyWhitelisted
	}
	if len(r.Allowlist) >= MaxAllowlistSize {
		return ErrWhitelistFull
	}
	r.Allowlist = append(r.Allowlist, creator)
	return nil
}

// RemoveCreator drops a creator from the allow-list, preserving order.
func (r *Registry) RemoveCreator(creator [20]byte) error {
	idx := r.allowlistIndex(creator)
	if idx < 0 {
		return ErrNotWhitelisted
	}
	r.Allowlist = append(r.Allowlist[:idx], r.Allowlist[idx+1:]...)
	return nil
}

// NextPoolID reserves the next pool identifier.
func (r *Registry) NextPoolID() (uint64, error) {
	id := r.PoolsCount
	next, err := AddAmount(id, 1)
	if err != nil {
		return 0, err
	}
	r.PoolsCount = next
	return id, nil
}

func normalizeUnit(unit string) (string, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(unit))
	if trimmed == "" {
		return "", ErrInvalidUnit
	}
	return trimmed, nil
}
