package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/guregu/null/v6"
	"github.com/jmoiron/sqlx"
	"github.com/krobus00/price-feed-service/internal/entity"
	"github.com/shopspring/decimal"
)

var ErrNoActiveInstruments = errors.New("no active instruments in catalog")

type instrumentRow struct {
	Symbol    string      `db:"symbol"`
	BasePrice null.String `db:"base_price"`
}

// InstrumentRepository reads the instrument catalog. It is only queried once
// at startup.
type InstrumentRepository struct {
	db *sqlx.DB
}

func NewInstrumentRepository(db *sqlx.DB) *InstrumentRepository {
	return &InstrumentRepository{db: db}
}

func activeInstrumentsQuery() (string, []any, error) {
	return sq.StatementBuilder.
		PlaceholderFormat(sq.Dollar).
		Select("symbol", "base_price").
		From("instruments").
		Where(sq.Eq{"active": true}).
		OrderBy("symbol asc").
		ToSql()
}

// GetActive returns the active instruments. A NULL base_price falls back to
// defaultBasePrice.
func (r *InstrumentRepository) GetActive(ctx context.Context, defaultBasePrice decimal.Decimal) ([]entity.InstrumentListing, error) {
	query, args, err := activeInstrumentsQuery()
	if err != nil {
		return nil, err
	}

	var rows []instrumentRow
	err = r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, err
	}

	return toInstrumentListings(rows, defaultBasePrice)
}

func toInstrumentListings(rows []instrumentRow, defaultBasePrice decimal.Decimal) ([]entity.InstrumentListing, error) {
	if len(rows) == 0 {
		return nil, ErrNoActiveInstruments
	}

	listings := make([]entity.InstrumentListing, 0, len(rows))
	for _, row := range rows {
		symbol := strings.TrimSpace(row.Symbol)
		if symbol == "" {
			continue
		}

		basePrice := defaultBasePrice
		if row.BasePrice.Valid {
			parsed, err := decimal.NewFromString(row.BasePrice.String)
			if err != nil {
				return nil, fmt.Errorf("instrument %s: invalid base_price %q: %w", symbol, row.BasePrice.String, err)
			}
			basePrice = parsed
		}

		listings = append(listings, entity.InstrumentListing{
			Symbol:    entity.Instrument(symbol),
			BasePrice: basePrice,
		})
	}

	if len(listings) == 0 {
		return nil, ErrNoActiveInstruments
	}

	return listings, nil
}
