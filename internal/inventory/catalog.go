package inventory

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"inventory-assistant/internal/movement"

	"github.com/google/uuid"
)

const (
	listStockQuery = `SELECT id, name, COALESCE(producer, ''), COALESCE(vintage, 0), COALESCE(color, ''),
			COALESCE(region, ''), COALESCE(price, 0), quantity, COALESCE(min_quantity, 0)
		FROM wines
		WHERE active = TRUE AND ($1 = '' OR name ILIKE $1)
		ORDER BY name, vintage`

	lowStockQuery = `SELECT id, name, COALESCE(producer, ''), COALESCE(vintage, 0), COALESCE(color, ''),
			COALESCE(region, ''), COALESCE(price, 0), quantity, COALESCE(min_quantity, 0)
		FROM wines
		WHERE active = TRUE AND min_quantity > 0 AND quantity <= min_quantity
		ORDER BY quantity, name`

	insertWineQuery = `INSERT INTO wines (id, name, producer, vintage, color, region, price, quantity, min_quantity, active, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, 0), $5, $6, $7, $8, $9, TRUE, $10, $10)`

	deactivateWineQuery = `UPDATE wines SET active = FALSE, updated_at = $2 WHERE id = $1 AND active = TRUE`

	updatePriceQuery = `UPDATE wines SET price = $2, updated_at = $3 WHERE id = $1 AND active = TRUE`

	updateMinQuantityQuery = `UPDATE wines SET min_quantity = $2, updated_at = $3 WHERE id = $1 AND active = TRUE`

	topMovedQuery = `SELECT w.name, COALESCE(w.vintage, 0), SUM(m.quantity) AS total
		FROM movements m
		JOIN wines w ON w.id = m.wine_id
		WHERE m.kind = $1 AND m.created_at >= $2
		GROUP BY w.name, w.vintage
		ORDER BY total DESC
		LIMIT $3`

	movementTotalsQuery = `SELECT kind, COUNT(*), COALESCE(SUM(quantity), 0)
		FROM movements
		WHERE created_at >= $1
		GROUP BY kind`
)

// MovedWine is an aggregate line of the movement ledger.
type MovedWine struct {
	Label    string `json:"label"`
	Quantity int    `json:"quantity"`
}

// MovementTotals summarises the ledger for a period.
type MovementTotals struct {
	Since       time.Time `json:"since"`
	Movements   int       `json:"movements"`
	Consumed    int       `json:"consumed"`
	Replenished int       `json:"replenished"`
}

// StockLevels lists active wines, optionally filtered by a name fragment.
func (p *Postgres) StockLevels(ctx context.Context, nameFilter string) ([]Wine, error) {
	pattern := ""
	if nameFilter != "" {
		pattern = "%" + escapeLike(nameFilter) + "%"
	}
	return p.queryWines(ctx, listStockQuery, pattern)
}

// LowStock lists wines at or under their alert threshold.
func (p *Postgres) LowStock(ctx context.Context) ([]Wine, error) {
	return p.queryWines(ctx, lowStockQuery)
}

func (p *Postgres) queryWines(ctx context.Context, query string, args ...interface{}) ([]Wine, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInventoryUnavailable, err)
	}
	defer rows.Close()

	var wines []Wine
	for rows.Next() {
		var w Wine
		if err := rows.Scan(&w.ID, &w.Name, &w.Producer, &w.Vintage, &w.Color, &w.Region, &w.Price, &w.Quantity, &w.MinQuantity); err != nil {
			return nil, fmt.Errorf("%w: scan wine: %v", ErrInventoryUnavailable, err)
		}
		wines = append(wines, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInventoryUnavailable, err)
	}
	return wines, nil
}

// AddWine inserts a catalog entry and returns its id.
func (p *Postgres) AddWine(ctx context.Context, w Wine) (string, error) {
	if w.Name == "" {
		return "", fmt.Errorf("%w: wine name is required", movement.ErrEmptyItemReference)
	}
	id := uuid.New().String()
	_, err := p.db.ExecContext(ctx, insertWineQuery,
		id, w.Name, w.Producer, w.Vintage, w.Color, w.Region, w.Price, w.Quantity, w.MinQuantity, p.now())
	if err != nil {
		if isUniqueViolation(err) {
			return "", fmt.Errorf("%w: %s", ErrDuplicateWine, w.Label())
		}
		return "", fmt.Errorf("%w: insert wine: %v", ErrInventoryUnavailable, err)
	}
	p.logger.Info("wine added", map[string]interface{}{"wineId": id, "name": w.Label()})
	return id, nil
}

// RemoveWine deactivates a wine; its ledger history is kept.
func (p *Postgres) RemoveWine(ctx context.Context, wineID string) error {
	return p.execOne(ctx, deactivateWineQuery, wineID, p.now())
}

func (p *Postgres) UpdatePrice(ctx context.Context, wineID string, price float64) error {
	return p.execOne(ctx, updatePriceQuery, wineID, price, p.now())
}

// SetMinQuantity sets the low-stock alert threshold; zero disables it.
func (p *Postgres) SetMinQuantity(ctx context.Context, wineID string, minQuantity int) error {
	return p.execOne(ctx, updateMinQuantityQuery, wineID, minQuantity, p.now())
}

func (p *Postgres) execOne(ctx context.Context, query string, args ...interface{}) error {
	res, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInventoryUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInventoryUnavailable, err)
	}
	if n == 0 {
		return ErrWineNotFound
	}
	return nil
}

// TopMoved ranks wines by quantity moved in one direction since a time.
func (p *Postgres) TopMoved(ctx context.Context, kind movement.Kind, since time.Time, limit int) ([]MovedWine, error) {
	rows, err := p.db.QueryContext(ctx, topMovedQuery, string(kind), since, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInventoryUnavailable, err)
	}
	defer rows.Close()

	var out []MovedWine
	for rows.Next() {
		var name string
		var vintage, total int
		if err := rows.Scan(&name, &vintage, &total); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInventoryUnavailable, err)
		}
		out = append(out, MovedWine{Label: Wine{Name: name, Vintage: vintage}.Label(), Quantity: total})
	}
	return out, rows.Err()
}

func (p *Postgres) Totals(ctx context.Context, since time.Time) (*MovementTotals, error) {
	rows, err := p.db.QueryContext(ctx, movementTotalsQuery, since)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInventoryUnavailable, err)
	}
	defer rows.Close()

	totals := &MovementTotals{Since: since}
	for rows.Next() {
		var kind string
		var count int
		var qty sql.NullInt64
		if err := rows.Scan(&kind, &count, &qty); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInventoryUnavailable, err)
		}
		totals.Movements += count
		switch movement.Kind(kind) {
		case movement.Consumption:
			totals.Consumed += int(qty.Int64)
		case movement.Replenishment:
			totals.Replenished += int(qty.Int64)
		}
	}
	return totals, rows.Err()
}
