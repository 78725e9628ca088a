package lottery

import (
	"errors"
	"fmt"
	"testing"
)

func TestNewRegistryValidation(t *testing.T) {
	auth := newTestAddress(0xA1)
	if _, err := NewRegistry(auth, auth, " ", 100, 100); !errors.Is(err, ErrInvalidUnit) {
		t.Fatalf("expected ErrInvalidUnit, got %v", err)
	}
	if _, err := NewRegistry(auth, auth, "usdc", 1_001, 100); !errors.Is(err, ErrInvalidPlatformFee) {
		t.Fatalf("expected ErrInvalidPlatformFee, got %v", err)
	}
	if _, err := NewRegistry(auth, auth, "usdc", 100, 1_001); !errors.Is(err, ErrInvalidPlatformFee) {
		t.Fatalf("expected ErrInvalidPlatformFee, got %v", err)
	}
	reg, err := NewRegistry(auth, auth, "usdc", 1_000, 1_000)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	if reg.Unit != "USDC" {
		t.Fatalf("unit not normalised: %q", reg.Unit)
	}
}

func TestRegistryAllowlistBounds(t *testing.T) {
	reg := &Registry{}
	for i := 0; i < MaxAllowlistSize; i++ {
		var addr [20]byte
		addr[0], addr[1] = byte(i), 0x7F
		if err := reg.AddCreator(addr); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}
	if err := reg.AddCreator(newTestAddress(0xEE)); !errors.Is(err, ErrWhitelistFull) {
		t.Fatalf("expected ErrWhitelistFull, got %v", err)
	}
	first := reg.Allowlist[0]
	if err := reg.AddCreator(first); !errors.Is(err, ErrAlreadyWhitelisted) {
		t.Fatalf("expected ErrAlreadyWhitelisted, got %v", err)
	}
	if err := reg.RemoveCreator(first); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := reg.RemoveCreator(first); !errors.Is(err, ErrNotWhitelisted) {
		t.Fatalf("expected ErrNotWhitelisted, got %v", err)
	}
	if reg.IsAllowed(first) || len(reg.Allowlist) != MaxAllowlistSize-1 {
		t.Fatalf("creator not removed")
	}
}

func TestRegistryApplyUpdateIsAllOrNothing(t *testing.T) {
	reg := &Registry{Unit: "USDC", PlatformFeeBps: 100, BonusPoolFeeBps: 100}
	wallet := newTestAddress(0x55)
	platform := uint32(200)
	bonus := uint32(5_000)
	err := reg.ApplyUpdate(RegistryUpdate{PlatformWallet: &wallet, PlatformFeeBps: &platform, BonusPoolFeeBps: &bonus})
	if !errors.Is(err, ErrInvalidPlatformFee) {
		t.Fatalf("expected ErrInvalidPlatformFee, got %v", err)
	}
	if reg.PlatformFeeBps != 100 || reg.PlatformWallet != ([20]byte{}) {
		t.Fatalf("rejected update partially applied: %+v", reg)
	}
	bonus = 300
	unit := "eurc"
	if err := reg.ApplyUpdate(RegistryUpdate{PlatformWallet: &wallet, Unit: &unit, PlatformFeeBps: &platform, BonusPoolFeeBps: &bonus}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if reg.PlatformWallet != wallet || reg.Unit != "EURC" || reg.PlatformFeeBps != 200 || reg.BonusPoolFeeBps != 300 {
		t.Fatalf("unexpected registry %+v", reg)
	}
}

func TestNextPoolIDOverflow(t *testing.T) {
	reg := &Registry{PoolsCount: ^uint64(0)}
	if _, err := reg.NextPoolID(); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
}

func TestClassify(t *testing.T) {
	cases := map[error]ErrorClass{
		ErrInvalidQuantity:                         ClassValidation,
		ErrPoolFull:                                ClassStateConflict,
		ErrInvalidWinnerDestination:                ClassIntegrity,
		errors.New("disk on fire"):                 ClassInternal,
		fmt.Errorf("settle pool: %w", ErrOverflow): ClassIntegrity,
	}
	for err, want := range cases {
		if got := Classify(err); got != want {
			t.Fatalf("Classify(%v) = %s, want %s", err, got, want)
		}
	}
}

func TestClassifyPrefersMostSevereSentinel(t *testing.T) {
	joined := errors.Join(ErrInvalidQuantity, ErrPoolFull, ErrRosterMismatch)
	for i := 0; i < 50; i++ {
		if got := Classify(joined); got != ClassIntegrity {
			t.Fatalf("Classify(joined) = %s, want %s", got, ClassIntegrity)
		}
	}
	if got := Classify(errors.Join(ErrInvalidQuantity, ErrPoolFull)); got != ClassStateConflict {
		t.Fatalf("Classify(joined) = %s, want %s", got, ClassStateConflict)
	}
}
