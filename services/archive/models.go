package archive

import (
	"time"

	"gorm.io/gorm"
)

// Activity kinds recorded for ticket movements.
const (
	KindPurchase = "purchase"
	KindCancel   = "cancel"
)

// Draw is the archived copy of a settled pool's draw history.
type Draw struct {
	PoolID        uint64 `gorm:"primaryKey;autoIncrement:false"`
	Winner        string `gorm:"size:64;index"`
	Settler       string `gorm:"size:64"`
	Creator       string `gorm:"size:64;index"`
	WinnerPrize   uint64 `gorm:"not null"`
	TotalPrize    uint64 `gorm:"not null"`
	PlatformFee   uint64
	BonusFee      uint64
	Commission    uint64
	TicketPrice   uint64
	TotalTickets  uint64
	WinningIndex  uint64
	Seed          string `gorm:"size:64"`
	DrawTimestamp int64  `gorm:"index"`
	CreatedAt     time.Time
}

// TicketActivity is one purchase or cancellation.
type TicketActivity struct {
	ID          uint   `gorm:"primaryKey"`
	PoolID      uint64 `gorm:"index"`
	Owner       string `gorm:"size:64;index"`
	Kind        string `gorm:"size:16;index"`
	Quantity    uint64
	Amount      uint64
	Fee         uint64
	FirstTicket uint64
	LastTicket  uint64
	Timestamp   int64
	CreatedAt   time.Time
}

// PoolEvent keeps every lottery event verbatim for audit queries.
type PoolEvent struct {
	ID         uint              `gorm:"primaryKey"`
	Type       string            `gorm:"size:64;index"`
	PoolID     *uint64           `gorm:"index"`
	Attributes map[string]string `gorm:"serializer:json"`
	CreatedAt  time.Time
}

// AutoMigrate creates or updates the archive tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Draw{}, &TicketActivity{}, &PoolEvent{})
}
