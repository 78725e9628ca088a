package lottery

import (
	"encoding/binary"
	"errors"

	"lukechampine.com/blake3"
)

// WinnerSelector maps a seed and roster size onto a winning roster index.
type WinnerSelector interface {
	Select(seed [32]byte, rosterSize uint64) (uint64, error)
}

// SeedSource produces the seed material for a pool's draw.
type SeedSource interface {
	Seed(pool *Pool, height uint64) ([32]byte, error)
}

var errEmptyRoster = errors.New("lottery: cannot select from an empty roster")

// ModuloSelector reads the first eight seed bytes as a little-endian integer
// and reduces it modulo the roster size.
type ModuloSelector struct{}

// Select implements WinnerSelector.
func (ModuloSelector) Select(seed [32]byte, rosterSize uint64) (uint64, error) {
	if rosterSize == 0 {
		return 0, errEmptyRoster
	}
	return binary.LittleEndian.Uint64(seed[:8]) % rosterSize, nil
}

// BuildSlotSeed lays out [height | poolID | height | createdAt], each as eight
// little-endian bytes. The result is predictable by anyone who can predict the
// height.
func BuildSlotSeed(height, poolID uint64, createdAt int64) [32]byte {
	var seed [32]byte
	binary.LittleEndian.PutUint64(seed[0:8], height)
	binary.LittleEndian.PutUint64(seed[8:16], poolID)
	binary.LittleEndian.PutUint64(seed[16:24], height)
	binary.LittleEndian.PutUint64(seed[24:32], uint64(createdAt))
	return seed
}

// SlotSeedSource derives the seed from the host height and pool metadata.
type SlotSeedSource struct{}

// Seed implements SeedSource.
func (SlotSeedSource) Seed(pool *Pool, height uint64) ([32]byte, error) {
	if pool == nil {
		return [32]byte{}, ErrPoolNotFound
	}
	return BuildSlotSeed(height, pool.ID, pool.CreatedAt), nil
}

// BeaconFunc returns externally sourced randomness for the given height.
type BeaconFunc func(height uint64) ([]byte, error)

// BeaconSeedSource hashes an external beacon value together with the pool
// identity so every pool drawn at the same height gets a distinct seed.
type BeaconSeedSource struct {
	Beacon BeaconFunc
}

var errNilBeacon = errors.New("lottery: beacon not configured")

// Seed implements SeedSource.
func (b BeaconSeedSource) Seed(pool *Pool, height uint64) ([32]byte, error) {
	if pool == nil {
		return [32]byte{}, ErrPoolNotFound
	}
	if b.Beacon == nil {
		return [32]byte{}, errNilBeacon
	}
	beacon, err := b.Beacon(height)
	if err != nil {
		return [32]byte{}, err
	}
	var buf [24]byte
	binary.LittleEndian.PutUint64(buf[0:8], pool.ID)
	binary.LittleEndian.PutUint64(buf[8:16], height)
	binary.LittleEndian.PutUint64(buf[16:24], uint64(pool.CreatedAt))
	h := blake3.New(32, nil)
	_, _ = h.Write(beacon)
	_, _ = h.Write(buf[:])
	var seed [32]byte
	copy(seed[:], h.Sum(nil))
	return seed, nil
}

// KeyedBeacon returns a beacon that mixes a static operator secret with the
// height. Seeds stay unpredictable to anyone without the secret.
func KeyedBeacon(secret []byte) BeaconFunc {
	key := append([]byte(nil), secret...)
	return func(height uint64) ([]byte, error) {
		if len(key) == 0 {
			return nil, errNilBeacon
		}
		out := make([]byte, len(key)+8)
		copy(out, key)
		binary.LittleEndian.PutUint64(out[len(key):], height)
		return out, nil
	}
}
