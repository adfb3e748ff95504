package repository

import (
	"context"
	"database/sql"

	"github.com/agrilink/agrilink-api/internal/model"
)

// MarketPriceRepo encapsulates queries on the market_prices reference table.
type MarketPriceRepo struct{ db *sql.DB }

func NewMarketPriceRepo(db *sql.DB) *MarketPriceRepo { return &MarketPriceRepo{db: db} }

// Create inserts a price point.
func (r *MarketPriceRepo) Create(ctx context.Context, p *model.MarketPrice) error {
	const q = `INSERT INTO market_prices
	           (id, crop_name, market_location, state, price, price_type, market_type, recorded_date)
	           VALUES (?,?,?,?,?,?,?,?)`
	_, err := r.db.ExecContext(ctx, q, p.ID, p.CropName, p.MarketLocation, p.State,
		p.Price, p.PriceType, p.MarketType, p.RecordedDate)
	return err
}

// List returns price points, optionally filtered by crop name and state,
// most recently recorded first.
func (r *MarketPriceRepo) List(ctx context.Context, crop, state string) ([]*model.MarketPrice, error) {
	q := `SELECT id, crop_name, market_location, state, price, price_type, market_type, recorded_date, created_at
	      FROM market_prices WHERE 1=1`
	var args []any
	if crop != "" {
		q += " AND crop_name=?"
		args = append(args, crop)
	}
	if state != "" {
		q += " AND state=?"
		args = append(args, state)
	}
	q += " ORDER BY recorded_date DESC LIMIT 500"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.MarketPrice
	for rows.Next() {
		var p model.MarketPrice
		if err := rows.Scan(&p.ID, &p.CropName, &p.MarketLocation, &p.State,
			&p.Price, &p.PriceType, &p.MarketType, &p.RecordedDate, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}
