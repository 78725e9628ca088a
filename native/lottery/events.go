package lottery

import (
	"encoding/hex"
	"strconv"

	"fortunex/core/types"
)

const (
	EventTypeRegistryInitialized = "lottery.registry.initialized"
	EventTypeRegistryUpdated     = "lottery.registry.updated"
	EventTypeAllowlistUpdated    = "lottery.allowlist.updated"
	EventTypePoolCreated         = "lottery.pool.created"
	EventTypeTicketsPurchased    = "lottery.tickets.purchased"
	EventTypeTicketCancelled     = "lottery.ticket.cancelled"
	EventTypePoolFull            = "lottery.pool.full"
	EventTypePoolReopened        = "lottery.pool.reopened"
	EventTypeDrawRescheduled     = "lottery.draw.rescheduled"
	EventTypePoolSettled         = "lottery.pool.settled"
)

type lotteryEvent struct {
	evt *types.Event
}

func (e lotteryEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e lotteryEvent) Event() *types.Event { return e.evt }

func hexAddr(addr [20]byte) string { return hex.EncodeToString(addr[:]) }

func u64(v uint64) string { return strconv.FormatUint(v, 10) }

func i64(v int64) string { return strconv.FormatInt(v, 10) }

// NewRegistryEvent returns the payload emitted when the registry is created or
// reconfigured.
func NewRegistryEvent(eventType string, reg *Registry) *types.Event {
	attrs := make(map[string]string)
	if reg != nil {
		attrs["authority"] = hexAddr(reg.Authority)
		attrs["platformWallet"] = hexAddr(reg.PlatformWallet)
		attrs["unit"] = reg.Unit
		attrs["platformFeeBps"] = u64(uint64(reg.PlatformFeeBps))
		attrs["bonusPoolFeeBps"] = u64(uint64(reg.BonusPoolFeeBps))
		attrs["allowlistSize"] = strconv.Itoa(len(reg.Allowlist))
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

// NewAllowlistUpdatedEvent returns the payload for an allow-list change.
func NewAllowlistUpdatedEvent(creator [20]byte, action AllowlistAction, size int) *types.Event {
	return &types.Event{Type: EventTypeAllowlistUpdated, Attributes: map[string]string{
		"creator":       hexAddr(creator),
		"action":        action.String(),
		"allowlistSize": strconv.Itoa(size),
	}}
}

// NewPoolEvent returns a payload describing the pool's current state.
func NewPoolEvent(eventType string, pool *Pool) *types.Event {
	attrs := make(map[string]string)
	if pool != nil {
		attrs["poolId"] = u64(pool.ID)
		attrs["status"] = pool.Status.String()
		attrs["creator"] = hexAddr(pool.Creator)
		attrs["ticketPrice"] = u64(pool.TicketPrice)
		attrs["minTickets"] = u64(pool.MinTickets)
		attrs["maxTickets"] = u64(pool.MaxTickets)
		attrs["commissionBps"] = u64(uint64(pool.CommissionBps))
		attrs["prizePool"] = u64(pool.PrizePool)
		attrs["ticketsSold"] = u64(pool.Sold())
		attrs["drawTime"] = i64(pool.DrawTime)
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

// NewTicketsPurchasedEvent returns the payload for a purchase.
func NewTicketsPurchasedEvent(pool *Pool, buyer [20]byte, issued []TicketDetails, cost uint64) *types.Event {
	evt := NewPoolEvent(EventTypeTicketsPurchased, pool)
	evt.Attributes["buyer"] = hexAddr(buyer)
	evt.Attributes["quantity"] = strconv.Itoa(len(issued))
	evt.Attributes["amount"] = u64(cost)
	if len(issued) > 0 {
		evt.Attributes["firstTicket"] = u64(issued[0].Number)
		evt.Attributes["lastTicket"] = u64(issued[len(issued)-1].Number)
		evt.Attributes["timestamp"] = i64(issued[0].Timestamp)
	}
	return evt
}

// NewTicketCancelledEvent returns the payload for a cancellation.
func NewTicketCancelledEvent(pool *Pool, owner [20]byte, receipt CancelReceipt, now int64) *types.Event {
	evt := NewPoolEvent(EventTypeTicketCancelled, pool)
	evt.Attributes["owner"] = hexAddr(owner)
	evt.Attributes["ticket"] = u64(receipt.TicketNumber)
	evt.Attributes["amountPaid"] = u64(receipt.AmountPaid)
	evt.Attributes["refund"] = u64(receipt.Refund)
	evt.Attributes["fee"] = u64(receipt.Fee)
	evt.Attributes["timestamp"] = i64(now)
	return evt
}

// NewDrawRescheduledEvent returns the payload for an under-subscribed draw.
func NewDrawRescheduledEvent(pool *Pool, previous int64) *types.Event {
	evt := NewPoolEvent(EventTypeDrawRescheduled, pool)
	evt.Attributes["previousDrawTime"] = i64(previous)
	return evt
}

// NewPoolSettledEvent returns the payload for a completed draw.
func NewPoolSettledEvent(pool *Pool, history *DrawHistory) *types.Event {
	evt := NewPoolEvent(EventTypePoolSettled, pool)
	if history == nil {
		return evt
	}
	evt.Attributes["winner"] = hexAddr(history.Winner)
	evt.Attributes["settler"] = hexAddr(history.Settler)
	evt.Attributes["winnerPrize"] = u64(history.WinnerPrize)
	evt.Attributes["totalPrize"] = u64(history.TotalPrize)
	evt.Attributes["platformFee"] = u64(history.PlatformFee)
	evt.Attributes["bonusFee"] = u64(history.BonusFee)
	evt.Attributes["commission"] = u64(history.Commission)
	evt.Attributes["totalTickets"] = u64(history.TotalTickets)
	evt.Attributes["winningIndex"] = u64(history.WinningIndex)
	evt.Attributes["seed"] = hex.EncodeToString(history.Seed[:])
	evt.Attributes["drawTimestamp"] = i64(history.DrawTimestamp)
	return evt
}
