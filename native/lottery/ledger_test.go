package lottery

import (
	"errors"
	"testing"
)

func newTestPool(max uint64) *Pool {
	return NewPool(0, newTestAddress(0xC1), PoolParams{
		TicketPrice:  10_000_000,
		MinTickets:   2,
		MaxTickets:   max,
		DrawInterval: MinDrawInterval,
	}, 1_000)
}

func TestPurchaseIssuesIncreasingNumbers(t *testing.T) {
	pool := newTestPool(10)
	alice := &UserTicket{Owner: newTestAddress(0x01), PoolID: pool.ID}
	bob := &UserTicket{Owner: newTestAddress(0x02), PoolID: pool.ID}

	issued, cost, err := purchaseTickets(pool, alice, 3, 1_100)
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if cost != 30_000_000 || pool.PrizePool != 30_000_000 {
		t.Fatalf("cost=%d prize=%d", cost, pool.PrizePool)
	}
	for i, ticket := range issued {
		if ticket.Number != uint64(i+1) || ticket.Timestamp != 1_100 || ticket.AmountPaid != pool.TicketPrice {
			t.Fatalf("unexpected ticket %+v", ticket)
		}
	}
	if _, err := cancelTicket(pool, alice, 3, 100); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	issued, _, err = purchaseTickets(pool, bob, 2, 1_200)
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if issued[0].Number != 4 || issued[1].Number != 5 {
		t.Fatalf("retired numbers must not be reused: %+v", issued)
	}
	if len(pool.TicketsSold) != 4 || pool.TicketsSold[3] != bob.Owner {
		t.Fatalf("unexpected roster %x", pool.TicketsSold)
	}
}

func TestPurchaseRejections(t *testing.T) {
	pool := newTestPool(3)
	user := &UserTicket{Owner: newTestAddress(0x01)}

	if _, _, err := purchaseTickets(pool, user, 0, 0); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
	if _, _, err := purchaseTickets(pool, user, 4, 0); !errors.Is(err, ErrPoolFull) {
		t.Fatalf("expected ErrPoolFull, got %v", err)
	}
	if pool.PrizePool != 0 || len(pool.TicketsSold) != 0 || len(user.Tickets) != 0 {
		t.Fatalf("rejected purchase mutated state")
	}
	if _, _, err := purchaseTickets(pool, user, 3, 0); err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if pool.Status != PoolStatusFull {
		t.Fatalf("expected full pool, got %s", pool.Status)
	}
	if _, _, err := purchaseTickets(pool, user, 1, 0); !errors.Is(err, ErrPoolFull) {
		t.Fatalf("expected ErrPoolFull, got %v", err)
	}
	pool.Status = PoolStatusCompleted
	if _, _, err := purchaseTickets(pool, user, 1, 0); !errors.Is(err, ErrPoolNotActive) {
		t.Fatalf("expected ErrPoolNotActive, got %v", err)
	}
}

func TestPurchasePerUserLimit(t *testing.T) {
	pool := newTestPool(500)
	user := &UserTicket{Owner: newTestAddress(0x01)}
	if _, _, err := purchaseTickets(pool, user, MaxTicketsPerUser, 0); err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if _, _, err := purchaseTickets(pool, user, 1, 0); !errors.Is(err, ErrTicketLimitReached) {
		t.Fatalf("expected ErrTicketLimitReached, got %v", err)
	}
}

func TestCancelAccounting(t *testing.T) {
	pool := newTestPool(2)
	alice := &UserTicket{Owner: newTestAddress(0x01)}
	bob := &UserTicket{Owner: newTestAddress(0x02)}
	if _, _, err := purchaseTickets(pool, alice, 1, 0); err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if _, _, err := purchaseTickets(pool, bob, 1, 0); err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if pool.Status != PoolStatusFull {
		t.Fatalf("expected full pool")
	}

	receipt, err := cancelTicket(pool, alice, 1, 100)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if receipt.Fee != 100_000 || receipt.Refund != 9_900_000 || receipt.Fee+receipt.Refund != receipt.AmountPaid {
		t.Fatalf("unexpected receipt %+v", receipt)
	}
	if pool.PrizePool != 10_000_000 {
		t.Fatalf("prize must drop by the full amount paid, got %d", pool.PrizePool)
	}
	if !receipt.Reopened || pool.Status != PoolStatusActive {
		t.Fatalf("cancelling from a full pool must reopen it")
	}
	if len(pool.CancelledTickets) != 1 || pool.CancelledTickets[0] != 1 {
		t.Fatalf("unexpected cancelled list %v", pool.CancelledTickets)
	}
	if len(pool.TicketsSold) != 1 || pool.TicketsSold[0] != bob.Owner {
		t.Fatalf("unexpected roster %x", pool.TicketsSold)
	}
	if len(alice.Tickets) != 0 {
		t.Fatalf("ticket not removed from ledger")
	}
	if _, err := cancelTicket(pool, alice, 1, 100); !errors.Is(err, ErrTicketNotFound) {
		t.Fatalf("expected ErrTicketNotFound, got %v", err)
	}
	if _, err := cancelTicket(pool, bob, 1, 100); !errors.Is(err, ErrTicketNotFound) {
		t.Fatalf("tickets owned by others must not be cancellable, got %v", err)
	}
}

func TestCancelReleasesOldestSlot(t *testing.T) {
	pool := newTestPool(5)
	alice := &UserTicket{Owner: newTestAddress(0x01)}
	bob := &UserTicket{Owner: newTestAddress(0x02)}
	purchaseTickets(pool, alice, 1, 0)
	purchaseTickets(pool, bob, 1, 0)
	purchaseTickets(pool, alice, 1, 0)

	if _, err := cancelTicket(pool, alice, 3, 0); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	want := [][20]byte{bob.Owner, alice.Owner}
	if !sameRoster(pool.TicketsSold, want) {
		t.Fatalf("unexpected roster %x", pool.TicketsSold)
	}
}

func TestPrizePoolMatchesUnretiredTickets(t *testing.T) {
	pool := newTestPool(20)
	users := []*UserTicket{
		{Owner: newTestAddress(0x01)},
		{Owner: newTestAddress(0x02)},
		{Owner: newTestAddress(0x03)},
	}
	for i, u := range users {
		if _, _, err := purchaseTickets(pool, u, uint64(i+2), 0); err != nil {
			t.Fatalf("purchase: %v", err)
		}
	}
	cancelTicket(pool, users[0], 1, 250)
	cancelTicket(pool, users[2], 7, 250)

	var held uint64
	for _, u := range users {
		held += u.Total()
	}
	if held != pool.PrizePool {
		t.Fatalf("prize %d != held %d", pool.PrizePool, held)
	}
	if uint64(len(pool.TicketsSold)) > pool.MaxTickets {
		t.Fatalf("roster exceeds capacity")
	}
}
