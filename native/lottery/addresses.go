package lottery

import (
	"encoding/binary"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

var (
	poolVaultPrefix    = []byte("fortunex/pool_vault")
	bonusReservePrefix = []byte("fortunex/bonus_reserve")
)

// PoolVault returns the address holding a pool's funds.
func PoolVault(poolID uint64) [20]byte {
	var id [8]byte
	binary.BigEndian.PutUint64(id[:], poolID)
	return deriveAddress(poolVaultPrefix, id[:])
}

// BonusReserveAddress returns the address accumulating bonus pool fees.
func BonusReserveAddress() [20]byte {
	return deriveAddress(bonusReservePrefix)
}

func deriveAddress(parts ...[]byte) [20]byte {
	hash := ethcrypto.Keccak256(parts...)
	var out [20]byte
	copy(out[:], hash[len(hash)-20:])
	return out
}
