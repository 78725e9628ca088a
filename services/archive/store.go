package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"fortunex/core/events"
	"fortunex/core/types"
	"fortunex/crypto"
	"fortunex/native/lottery"
)

// ErrNotFound is returned when an archived record does not exist.
var ErrNotFound = errors.New("archive: record not found")

// DefaultWinnersLimit bounds RecentWinners when no limit is supplied.
const DefaultWinnersLimit = 20

const maxWinnersLimit = 500

// Open connects to a SQLite archive at dsn and migrates the schema.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate archive: %w", err)
	}
	return db, nil
}

// Store persists lottery events and serves history queries. It implements
// events.Emitter so it can be chained behind the node.
type Store struct {
	db  *gorm.DB
	log *slog.Logger
}

var _ events.Emitter = (*Store)(nil)

// NewStore wraps an already migrated database handle.
func NewStore(db *gorm.DB, log *slog.Logger) (*Store, error) {
	if db == nil {
		return nil, errors.New("archive: database required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Store{db: db, log: log.With(slog.String("component", "archive"))}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type payloadEvent interface {
	Event() *types.Event
}

// Emit implements events.Emitter. Archive failures are logged and never
// propagate back into the engine.
func (s *Store) Emit(evt events.Event) {
	carrier, ok := evt.(payloadEvent)
	if !ok || carrier.Event() == nil {
		return
	}
	if err := s.Record(context.Background(), carrier.Event()); err != nil {
		s.log.Error("archive: record event failed", "type", evt.EventType(), "error", err)
	}
}

// Record stores evt and the rows derived from it in one transaction.
func (s *Store) Record(ctx context.Context, evt *types.Event) error {
	if evt == nil {
		return nil
	}
	row := PoolEvent{Type: evt.Type, Attributes: evt.Clone().Attributes}
	if raw := evt.Attr("poolId"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("archive: poolId: %w", err)
		}
		row.PoolID = &id
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		switch evt.Type {
		case lottery.EventTypePoolSettled:
			draw, err := drawFromEvent(evt)
			if err != nil {
				return err
			}
			return tx.Create(draw).Error
		case lottery.EventTypeTicketsPurchased, lottery.EventTypeTicketCancelled:
			activity, err := activityFromEvent(evt)
			if err != nil {
				return err
			}
			return tx.Create(activity).Error
		}
		return nil
	})
}

// RecentWinners returns the latest settled draws, newest first.
func (s *Store) RecentWinners(ctx context.Context, limit int) ([]Draw, error) {
	if limit <= 0 {
		limit = DefaultWinnersLimit
	}
	if limit > maxWinnersLimit {
		limit = maxWinnersLimit
	}
	var draws []Draw
	err := s.db.WithContext(ctx).
		Order("draw_timestamp DESC").
		Order("pool_id DESC").
		Limit(limit).
		Find(&draws).Error
	return draws, err
}

// DrawByPool returns the archived draw of poolID.
func (s *Store) DrawByPool(ctx context.Context, poolID uint64) (*Draw, error) {
	var draw Draw
	err := s.db.WithContext(ctx).Where("pool_id = ?", poolID).First(&draw).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &draw, nil
}

// PoolActivity lists the ticket movements of poolID in arrival order.
func (s *Store) PoolActivity(ctx context.Context, poolID uint64) ([]TicketActivity, error) {
	var rows []TicketActivity
	err := s.db.WithContext(ctx).Where("pool_id = ?", poolID).Order("id ASC").Find(&rows).Error
	return rows, err
}

// OwnerActivity lists every ticket movement of owner across pools.
func (s *Store) OwnerActivity(ctx context.Context, owner [20]byte) ([]TicketActivity, error) {
	var rows []TicketActivity
	err := s.db.WithContext(ctx).
		Where("owner = ?", crypto.FromBytes20(owner).String()).
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

func drawFromEvent(evt *types.Event) (*Draw, error) {
	var (
		d   Draw
		err error
	)
	fields := []struct {
		key string
		dst *uint64
	}{
		{"poolId", &d.PoolID},
		{"winnerPrize", &d.WinnerPrize},
		{"totalPrize", &d.TotalPrize},
		{"platformFee", &d.PlatformFee},
		{"bonusFee", &d.BonusFee},
		{"commission", &d.Commission},
		{"ticketPrice", &d.TicketPrice},
		{"totalTickets", &d.TotalTickets},
		{"winningIndex", &d.WinningIndex},
	}
	for _, f := range fields {
		if *f.dst, err = parseUint(evt, f.key); err != nil {
			return nil, err
		}
	}
	if d.DrawTimestamp, err = parseInt(evt, "drawTimestamp"); err != nil {
		return nil, err
	}
	if d.Winner, err = bech32Attr(evt, "winner"); err != nil {
		return nil, err
	}
	if d.Settler, err = bech32Attr(evt, "settler"); err != nil {
		return nil, err
	}
	if d.Creator, err = bech32Attr(evt, "creator"); err != nil {
		return nil, err
	}
	d.Seed = evt.Attr("seed")
	return &d, nil
}

func activityFromEvent(evt *types.Event) (*TicketActivity, error) {
	var (
		a   TicketActivity
		err error
	)
	if a.PoolID, err = parseUint(evt, "poolId"); err != nil {
		return nil, err
	}
	if a.Timestamp, err = parseInt(evt, "timestamp"); err != nil {
		return nil, err
	}
	switch evt.Type {
	case lottery.EventTypeTicketsPurchased:
		a.Kind = KindPurchase
		if a.Owner, err = bech32Attr(evt, "buyer"); err != nil {
			return nil, err
		}
		if a.Quantity, err = parseUint(evt, "quantity"); err != nil {
			return nil, err
		}
		if a.Amount, err = parseUint(evt, "amount"); err != nil {
			return nil, err
		}
		if a.FirstTicket, err = parseUint(evt, "firstTicket"); err != nil {
			return nil, err
		}
		if a.LastTicket, err = parseUint(evt, "lastTicket"); err != nil {
			return nil, err
		}
	default:
		a.Kind = KindCancel
		a.Quantity = 1
		if a.Owner, err = bech32Attr(evt, "owner"); err != nil {
			return nil, err
		}
		if a.Amount, err = parseUint(evt, "refund"); err != nil {
			return nil, err
		}
		if a.Fee, err = parseUint(evt, "fee"); err != nil {
			return nil, err
		}
		if a.FirstTicket, err = parseUint(evt, "ticket"); err != nil {
			return nil, err
		}
		a.LastTicket = a.FirstTicket
	}
	return &a, nil
}

func parseUint(evt *types.Event, key string) (uint64, error) {
	v, err := strconv.ParseUint(evt.Attr(key), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("archive: %s %s: %w", evt.Type, key, err)
	}
	return v, nil
}

func parseInt(evt *types.Event, key string) (int64, error) {
	v, err := strconv.ParseInt(evt.Attr(key), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("archive: %s %s: %w", evt.Type, key, err)
	}
	return v, nil
}

func bech32Attr(evt *types.Event, key string) (string, error) {
	raw, err := crypto.ParseAddress("0x" + evt.Attr(key))
	if err != nil {
		return "", fmt.Errorf("archive: %s %s: %w", evt.Type, key, err)
	}
	return crypto.FromBytes20(raw).String(), nil
}
