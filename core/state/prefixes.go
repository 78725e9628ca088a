package state

import "encoding/binary"

var (
	balancePrefix        = []byte("balance:")
	lotteryRegistryKey   = []byte("lottery/registry")
	lotteryPoolPrefix    = []byte("lottery/pool/")
	lotteryTicketsPrefix = []byte("lottery/tickets/")
	lotteryDrawPrefix    = []byte("lottery/draw/")
	payoutAddressDomain  = []byte("fortunex/payout/")
)

func balanceKey(addr [20]byte, unit string) []byte {
	buf := make([]byte, 0, len(balancePrefix)+len(unit)+1+len(addr))
	buf = append(buf, balancePrefix...)
	buf = append(buf, unit...)
	buf = append(buf, ':')
	return append(buf, addr[:]...)
}

func poolKey(id uint64) []byte {
	return appendUint64(append([]byte(nil), lotteryPoolPrefix...), id)
}

func ticketsKey(poolID uint64, owner [20]byte) []byte {
	buf := appendUint64(append([]byte(nil), lotteryTicketsPrefix...), poolID)
	buf = append(buf, '/')
	return append(buf, owner[:]...)
}

func drawKey(poolID uint64) []byte {
	return appendUint64(append([]byte(nil), lotteryDrawPrefix...), poolID)
}

func appendUint64(buf []byte, v uint64) []byte {
	var enc [8]byte
	binary.BigEndian.PutUint64(enc[:], v)
	return append(buf, enc[:]...)
}
