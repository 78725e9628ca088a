package lottery

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestModuloSelectorDeterministic(t *testing.T) {
	seed := BuildSlotSeed(12345, 7, 1_700_000_000)
	first, err := ModuloSelector{}.Select(seed, 10)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	second, _ := ModuloSelector{}.Select(seed, 10)
	if first != second {
		t.Fatalf("selection not deterministic: %d vs %d", first, second)
	}
	if first != 12345%10 {
		t.Fatalf("index = %d, want %d", first, 12345%10)
	}
	if _, err := (ModuloSelector{}).Select(seed, 0); err == nil {
		t.Fatalf("expected error for empty roster")
	}
}

func TestBuildSlotSeedLayout(t *testing.T) {
	seed := BuildSlotSeed(1, 2, 3)
	if binary.LittleEndian.Uint64(seed[0:8]) != 1 ||
		binary.LittleEndian.Uint64(seed[8:16]) != 2 ||
		binary.LittleEndian.Uint64(seed[16:24]) != 1 ||
		binary.LittleEndian.Uint64(seed[24:32]) != 3 {
		t.Fatalf("unexpected seed layout %x", seed)
	}
}

func TestBeaconSeedSource(t *testing.T) {
	pool := &Pool{ID: 3, CreatedAt: 99}
	source := BeaconSeedSource{Beacon: func(height uint64) ([]byte, error) {
		return []byte("beacon"), nil
	}}
	a, err := source.Seed(pool, 10)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	b, _ := source.Seed(pool, 10)
	if a != b {
		t.Fatalf("beacon seed must be deterministic")
	}
	other, _ := source.Seed(&Pool{ID: 4, CreatedAt: 99}, 10)
	if bytes.Equal(a[:], other[:]) {
		t.Fatalf("distinct pools must get distinct seeds")
	}

	failing := BeaconSeedSource{Beacon: func(uint64) ([]byte, error) { return nil, errors.New("offline") }}
	if _, err := failing.Seed(pool, 1); err == nil {
		t.Fatalf("expected beacon error")
	}
	if _, err := (BeaconSeedSource{}).Seed(pool, 1); err == nil {
		t.Fatalf("expected error without beacon")
	}
}

func TestKeyedBeacon(t *testing.T) {
	beacon := KeyedBeacon([]byte("operator-secret!"))
	first, err := beacon(7)
	if err != nil {
		t.Fatalf("beacon: %v", err)
	}
	if !bytes.HasPrefix(first, []byte("operator-secret!")) {
		t.Fatalf("beacon must carry the secret")
	}
	if got := binary.LittleEndian.Uint64(first[len(first)-8:]); got != 7 {
		t.Fatalf("height suffix = %d, want 7", got)
	}
	second, _ := beacon(8)
	if bytes.Equal(first, second) {
		t.Fatalf("heights must produce distinct beacons")
	}
	if _, err := KeyedBeacon(nil)(1); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}
