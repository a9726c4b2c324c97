// Package history indexes committed market events into SQLite so sale history
// and volume can be queried without scanning the ledger.
package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"nftickets/core/events"
	"nftickets/native/fees"
	"nftickets/native/market"
)

const defaultSalesLimit = 50

// ErrInvalidAmount is returned when an indexed event carries a malformed
// amount.
var ErrInvalidAmount = errors.New("history: invalid amount")

// Sale is one settled purchase.
type Sale struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	Seq       uint64    `gorm:"uniqueIndex:idx_sale_position" json:"seq"`
	Position  int       `gorm:"uniqueIndex:idx_sale_position" json:"-"`
	Asset     string    `gorm:"size:64;index" json:"asset"`
	Seller    string    `gorm:"size:64;index" json:"seller"`
	Buyer     string    `gorm:"size:64;index" json:"buyer"`
	Price     string    `gorm:"size:80" json:"price"`
	Fee       string    `gorm:"size:80" json:"fee"`
	Proceeds  string    `gorm:"size:80" json:"proceeds"`
	CreatedAt time.Time `json:"indexedAt"`
}

// ListingChange records an asset entering or leaving the market without a
// sale.
type ListingChange struct {
	ID        uint   `gorm:"primaryKey"`
	Seq       uint64 `gorm:"uniqueIndex:idx_listing_position"`
	Position  int    `gorm:"uniqueIndex:idx_listing_position"`
	Action    string `gorm:"size:16;index"`
	Asset     string `gorm:"size:64;index"`
	Seller    string `gorm:"size:64"`
	Price     string `gorm:"size:80"`
	CreatedAt time.Time
}

// Store is the sale history index.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// dialector picks Postgres for postgres:// URLs and SQLite for everything
// else.
func dialector(dsn string) gorm.Dialector {
	lower := strings.ToLower(dsn)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return postgres.Open(dsn)
	}
	return sqlite.Open(dsn)
}

// Driver names the database driver Open selects for dsn.
func Driver(dsn string) string {
	return dialector(strings.TrimSpace(dsn)).Name()
}

// Open opens or creates the index at dsn and migrates its schema. A
// postgres:// URL selects a Postgres server; any other value is a SQLite
// path or URI.
func Open(dsn string, logger *slog.Logger) (*Store, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("history: dsn required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	db, err := gorm.Open(dialector(dsn), &gorm.Config{Logger: gormlogger.Discard})
	if err != nil {
		return nil, fmt.Errorf("history: open: %w", err)
	}
	if err := db.AutoMigrate(&Sale{}, &ListingChange{}); err != nil {
		return nil, fmt.Errorf("history: migrate: %w", err)
	}
	return &Store{db: db, logger: logger.With(slog.String("component", "history"))}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Emit implements events.Emitter. Indexing failures are logged; the ledger
// remains the source of truth.
func (s *Store) Emit(evt events.Event) {
	committed, ok := evt.(events.Committed)
	if !ok || committed.Evt == nil {
		return
	}
	if err := s.RecordEvent(context.Background(), committed); err != nil {
		s.logger.Warn("index committed event",
			slog.Uint64("seq", committed.Seq),
			slog.String("type", committed.Evt.Type),
			slog.String("error", err.Error()))
	}
}

// RecordEvent indexes a committed market event. Other events are ignored and
// replays of an already indexed event are no-ops.
func (s *Store) RecordEvent(ctx context.Context, committed events.Committed) error {
	if committed.Evt == nil {
		return nil
	}
	attrs := committed.Evt.Attributes
	db := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true})
	switch committed.Evt.Type {
	case market.EventTypeSold:
		for _, key := range []string{"price", "fee", "proceeds"} {
			if _, ok := new(big.Int).SetString(attrs[key], 10); !ok {
				return fmt.Errorf("%w: %s %q", ErrInvalidAmount, key, attrs[key])
			}
		}
		return db.Create(&Sale{
			Seq:      committed.Seq,
			Position: committed.Index,
			Asset:    attrs["asset"],
			Seller:   attrs["seller"],
			Buyer:    attrs["buyer"],
			Price:    attrs["price"],
			Fee:      attrs["fee"],
			Proceeds: attrs["proceeds"],
		}).Error
	case market.EventTypeListed, market.EventTypeDelisted:
		return db.Create(&ListingChange{
			Seq:      committed.Seq,
			Position: committed.Index,
			Action:   strings.TrimPrefix(committed.Evt.Type, "market."),
			Asset:    attrs["asset"],
			Seller:   attrs["seller"],
			Price:    attrs["price"],
		}).Error
	default:
		return nil
	}
}

// Sales returns the most recent sales, newest first. An empty asset matches
// every asset.
func (s *Store) Sales(ctx context.Context, asset string, limit int) ([]Sale, error) {
	if limit <= 0 {
		limit = defaultSalesLimit
	}
	query := s.db.WithContext(ctx).Order("seq DESC").Order("position DESC").Limit(limit)
	if asset = strings.TrimSpace(asset); asset != "" {
		query = query.Where("asset = ?", asset)
	}
	var out []Sale
	if err := query.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Listings returns the listing changes recorded for asset in commit order.
func (s *Store) Listings(ctx context.Context, asset string) ([]ListingChange, error) {
	var out []ListingChange
	err := s.db.WithContext(ctx).
		Where("asset = ?", strings.TrimSpace(asset)).
		Order("seq ASC").Order("position ASC").
		Find(&out).Error
	return out, err
}

// Volume aggregates every indexed sale. Amounts are summed exactly; SQLite
// integers would overflow for large prices.
func (s *Store) Volume(ctx context.Context) (fees.Totals, error) {
	var totals fees.Totals
	rows, err := s.db.WithContext(ctx).Model(&Sale{}).Select("price", "fee", "proceeds").Rows()
	if err != nil {
		return totals, err
	}
	defer rows.Close()
	for rows.Next() {
		var price, fee, proceeds string
		if err := rows.Scan(&price, &fee, &proceeds); err != nil {
			return totals, err
		}
		split := fees.Split{Gross: new(big.Int), Fee: new(big.Int), Net: new(big.Int)}
		if _, ok := split.Gross.SetString(price, 10); !ok {
			return totals, fmt.Errorf("%w: price %q", ErrInvalidAmount, price)
		}
		if _, ok := split.Fee.SetString(fee, 10); !ok {
			return totals, fmt.Errorf("%w: fee %q", ErrInvalidAmount, fee)
		}
		if _, ok := split.Net.SetString(proceeds, 10); !ok {
			return totals, fmt.Errorf("%w: proceeds %q", ErrInvalidAmount, proceeds)
		}
		totals.Add(split)
	}
	if totals.Gross == nil {
		totals.Gross, totals.Fee, totals.Net = big.NewInt(0), big.NewInt(0), big.NewInt(0)
	}
	return totals, rows.Err()
}
