package lottery

import (
	"fmt"
	"strings"
)

const (
	// BpsDenominator expresses 100% in basis points.
	BpsDenominator uint32 = 10_000
	// MaxPlatformFeeBps caps both the platform and bonus pool rates at 10%.
	MaxPlatformFeeBps uint32 = 1_000
	// DefaultPlatformFeeBps is applied by genesis tooling when no rate is supplied.
	DefaultPlatformFeeBps uint32 = 100
	// MaxAllowlistSize bounds the number of creators that may open pools.
	MaxAllowlistSize = 100
	// MaxTicketsPerUser bounds the ticket list held by a single user in one pool.
	MaxTicketsPerUser = 100
	// MinDrawInterval and MaxDrawInterval bound the pool cadence in seconds.
	MinDrawInterval int64 = 60 * 60
	MaxDrawInterval int64 = 7 * 24 * 60 * 60
)

// PoolStatus enumerates the lifecycle states of a pool.
type PoolStatus uint8

const (
	PoolStatusActive PoolStatus = iota
	PoolStatusFull
	PoolStatusCompleted
)

// Valid reports whether the status value is within the supported range.
func (s PoolStatus) Valid() bool {
	switch s {
	case PoolStatusActive, PoolStatusFull, PoolStatusCompleted:
		return true
	default:
		return false
	}
}

func (s PoolStatus) String() string {
	switch s {
	case PoolStatusActive:
		return "active"
	case PoolStatusFull:
		return "full"
	case PoolStatusCompleted:
		return "completed"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// MarshalText renders the status using its lowercase name.
func (s PoolStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// ParsePoolStatus converts a textual status back into its enum value.
func ParsePoolStatus(value string) (PoolStatus, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "active":
		return PoolStatusActive, nil
	case "full":
		return PoolStatusFull, nil
	case "completed":
		return PoolStatusCompleted, nil
	default:
		return 0, fmt.Errorf("lottery: unknown pool status %q", value)
	}
}

// Registry is the process-wide lottery configuration. It is created once and
// only the authority may mutate it afterwards.
type Registry struct {
	Authority       [20]byte
	PlatformWallet  [20]byte
	Unit            string
	PlatformFeeBps  uint32
	BonusPoolFeeBps uint32
	PoolsCount      uint64
	Allowlist       [][20]byte
}

// Clone returns a deep copy of the registry.
func (r *Registry) Clone() *Registry {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Allowlist = append([][20]byte(nil), r.Allowlist...)
	return &clone
}

// IsAllowed reports whether the address may create pools.
func (r *Registry) IsAllowed(addr [20]byte) bool {
	return r.allowlistIndex(addr) >= 0
}

func (r *Registry) allowlistIndex(addr [20]byte) int {
	if r == nil {
		return -1
	}
	for i, entry := range r.Allowlist {
		if entry == addr {
			return i
		}
	}
	return -1
}

// PoolParams captures the creator supplied parameters of a new pool.
type PoolParams struct {
	TicketPrice   uint64
	MinTickets    uint64
	MaxTickets    uint64
	DrawInterval  int64
	CommissionBps uint32
}

// Pool is a single lottery round. Pools are never deleted; completed pools
// remain as history.
type Pool struct {
	ID               uint64
	Status           PoolStatus
	Creator          [20]byte
	TicketPrice      uint64
	MinTickets       uint64
	MaxTickets       uint64
	CommissionBps    uint32
	PrizePool        uint64
	TicketsSold      [][20]byte
	CancelledTickets []uint64
	// NextTicket is the number handed to the next issued ticket. It only
	// ever grows so retired numbers are never reissued.
	NextTicket   uint64
	DrawInterval int64
	DrawTime     int64
	CreatedAt    int64
	Winner       [20]byte
}

// Clone returns a deep copy of the pool so callers can mutate it freely.
func (p *Pool) Clone() *Pool {
	if p == nil {
		return nil
	}
	clone := *p
	clone.TicketsSold = append([][20]byte(nil), p.TicketsSold...)
	clone.CancelledTickets = append([]uint64(nil), p.CancelledTickets...)
	return &clone
}

// Params returns the creator supplied parameters, used for rollovers.
func (p *Pool) Params() PoolParams {
	return PoolParams{
		TicketPrice:   p.TicketPrice,
		MinTickets:    p.MinTickets,
		MaxTickets:    p.MaxTickets,
		DrawInterval:  p.DrawInterval,
		CommissionBps: p.CommissionBps,
	}
}

// Roster returns a copy of the ordered ticket-holder list.
func (p *Pool) Roster() [][20]byte {
	if p == nil {
		return nil
	}
	return append([][20]byte(nil), p.TicketsSold...)
}

// Due reports whether a settlement attempt is currently permitted.
func (p *Pool) Due(now int64) bool {
	return p != nil && p.Status != PoolStatusCompleted && now >= p.DrawTime
}

// TicketDetails records one purchased ticket.
type TicketDetails struct {
	Number     uint64
	AmountPaid uint64
	Timestamp  int64
}

// UserTicket is the per (user, pool) ticket ledger.
type UserTicket struct {
	Owner   [20]byte
	PoolID  uint64
	Tickets []TicketDetails
}

// Clone returns a deep copy of the ledger record.
func (u *UserTicket) Clone() *UserTicket {
	if u == nil {
		return nil
	}
	clone := *u
	clone.Tickets = append([]TicketDetails(nil), u.Tickets...)
	return &clone
}

// Total returns the sum paid for the tickets still held.
func (u *UserTicket) Total() uint64 {
	if u == nil {
		return 0
	}
	var total uint64
	for _, t := range u.Tickets {
		total += t.AmountPaid
	}
	return total
}

func (u *UserTicket) indexOf(number uint64) int {
	if u == nil {
		return -1
	}
	for i, t := range u.Tickets {
		if t.Number == number {
			return i
		}
	}
	return -1
}

// DrawHistory is the immutable audit record written when a pool completes.
type DrawHistory struct {
	PoolID        uint64
	Winner        [20]byte
	Settler       [20]byte
	WinnerPrize   uint64
	TotalPrize    uint64
	PlatformFee   uint64
	BonusFee      uint64
	Commission    uint64
	TotalTickets  uint64
	WinningIndex  uint64
	Seed          [32]byte
	DrawTimestamp int64
}

// Clone returns a copy of the history record.
func (d *DrawHistory) Clone() *DrawHistory {
	if d == nil {
		return nil
	}
	clone := *d
	return &clone
}
