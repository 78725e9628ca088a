package rpc

import (
	"encoding/hex"

	"fortunex/crypto"
	"fortunex/native/lottery"
	"fortunex/services/archive"
)

func fx(addr [20]byte) string { return crypto.FromBytes20(addr).String() }

type RegistryView struct {
	Authority       string   `json:"authority"`
	PlatformWallet  string   `json:"platformWallet"`
	BonusReserve    string   `json:"bonusReserve"`
	Unit            string   `json:"unit"`
	PlatformFeeBps  uint32   `json:"platformFeeBps"`
	BonusPoolFeeBps uint32   `json:"bonusPoolFeeBps"`
	PoolsCount      uint64   `json:"poolsCount"`
	Allowlist       []string `json:"allowlist"`
}

func registryView(reg *lottery.Registry) RegistryView {
	view := RegistryView{
		Authority:       fx(reg.Authority),
		PlatformWallet:  fx(reg.PlatformWallet),
		BonusReserve:    fx(lottery.BonusReserveAddress()),
		Unit:            reg.Unit,
		PlatformFeeBps:  reg.PlatformFeeBps,
		BonusPoolFeeBps: reg.BonusPoolFeeBps,
		PoolsCount:      reg.PoolsCount,
		Allowlist:       make([]string, 0, len(reg.Allowlist)),
	}
	for _, creator := range reg.Allowlist {
		view.Allowlist = append(view.Allowlist, fx(creator))
	}
	return view
}

type PoolView struct {
	ID               uint64   `json:"id"`
	Status           string   `json:"status"`
	Creator          string   `json:"creator"`
	Vault            string   `json:"vault"`
	TicketPrice      uint64   `json:"ticketPrice"`
	MinTickets       uint64   `json:"minTickets"`
	MaxTickets       uint64   `json:"maxTickets"`
	CommissionBps    uint32   `json:"commissionBps"`
	PrizePool        uint64   `json:"prizePool"`
	TicketsSold      uint64   `json:"ticketsSold"`
	Remaining        uint64   `json:"remaining"`
	CancelledTickets []uint64 `json:"cancelledTickets"`
	DrawInterval     int64    `json:"drawInterval"`
	DrawTime         int64    `json:"drawTime"`
	CreatedAt        int64    `json:"createdAt"`
	Winner           string   `json:"winner,omitempty"`
	Roster           []string `json:"roster,omitempty"`
}

func poolView(pool *lottery.Pool, withRoster bool) PoolView {
	view := PoolView{
		ID:               pool.ID,
		Status:           pool.Status.String(),
		Creator:          fx(pool.Creator),
		Vault:            fx(lottery.PoolVault(pool.ID)),
		TicketPrice:      pool.TicketPrice,
		MinTickets:       pool.MinTickets,
		MaxTickets:       pool.MaxTickets,
		CommissionBps:    pool.CommissionBps,
		PrizePool:        pool.PrizePool,
		TicketsSold:      pool.Sold(),
		Remaining:        pool.Remaining(),
		CancelledTickets: append([]uint64{}, pool.CancelledTickets...),
		DrawInterval:     pool.DrawInterval,
		DrawTime:         pool.DrawTime,
		CreatedAt:        pool.CreatedAt,
	}
	if pool.Status == lottery.PoolStatusCompleted {
		view.Winner = fx(pool.Winner)
	}
	if withRoster {
		view.Roster = make([]string, 0, len(pool.TicketsSold))
		for _, holder := range pool.TicketsSold {
			view.Roster = append(view.Roster, fx(holder))
		}
	}
	return view
}

type DrawView struct {
	PoolID        uint64 `json:"poolId"`
	Winner        string `json:"winner"`
	Settler       string `json:"settler,omitempty"`
	WinnerPrize   uint64 `json:"winnerPrize"`
	TotalPrize    uint64 `json:"totalPrize"`
	PlatformFee   uint64 `json:"platformFee"`
	BonusFee      uint64 `json:"bonusFee"`
	Commission    uint64 `json:"commission"`
	TotalTickets  uint64 `json:"totalTickets"`
	WinningIndex  uint64 `json:"winningIndex"`
	Seed          string `json:"seed"`
	DrawTimestamp int64  `json:"drawTimestamp"`
}

func drawView(d *lottery.DrawHistory) DrawView {
	return DrawView{
		PoolID:        d.PoolID,
		Winner:        fx(d.Winner),
		Settler:       fx(d.Settler),
		WinnerPrize:   d.WinnerPrize,
		TotalPrize:    d.TotalPrize,
		PlatformFee:   d.PlatformFee,
		BonusFee:      d.BonusFee,
		Commission:    d.Commission,
		TotalTickets:  d.TotalTickets,
		WinningIndex:  d.WinningIndex,
		Seed:          hex.EncodeToString(d.Seed[:]),
		DrawTimestamp: d.DrawTimestamp,
	}
}

func archivedDrawView(d archive.Draw) DrawView {
	return DrawView{
		PoolID:        d.PoolID,
		Winner:        d.Winner,
		Settler:       d.Settler,
		WinnerPrize:   d.WinnerPrize,
		TotalPrize:    d.TotalPrize,
		PlatformFee:   d.PlatformFee,
		BonusFee:      d.BonusFee,
		Commission:    d.Commission,
		TotalTickets:  d.TotalTickets,
		WinningIndex:  d.WinningIndex,
		Seed:          d.Seed,
		DrawTimestamp: d.DrawTimestamp,
	}
}

type TicketView struct {
	Number     uint64 `json:"number"`
	AmountPaid uint64 `json:"amountPaid"`
	Timestamp  int64  `json:"timestamp"`
}

type TicketsView struct {
	PoolID  uint64       `json:"poolId"`
	Owner   string       `json:"owner"`
	Total   uint64       `json:"total"`
	Tickets []TicketView `json:"tickets"`
}

func ticketsView(ut *lottery.UserTicket) TicketsView {
	view := TicketsView{
		PoolID:  ut.PoolID,
		Owner:   fx(ut.Owner),
		Total:   ut.Total(),
		Tickets: make([]TicketView, 0, len(ut.Tickets)),
	}
	for _, t := range ut.Tickets {
		view.Tickets = append(view.Tickets, TicketView{Number: t.Number, AmountPaid: t.AmountPaid, Timestamp: t.Timestamp})
	}
	return view
}
