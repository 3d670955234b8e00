// Package inventory is the PostgreSQL-backed cellar: the wine catalog, stock
// levels and the movement ledger.
package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"inventory-assistant/internal/common/logger"
	"inventory-assistant/internal/movement"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

var (
	ErrInventoryUnavailable = errors.New("INVENTORY_UNAVAILABLE")
	ErrDuplicateWine        = errors.New("DUPLICATE_WINE")
	ErrWineNotFound         = errors.New("WINE_NOT_FOUND")
)

const (
	uniqueViolation = "23505"
	maxCandidates   = 10
)

const (
	findWinesQuery = `SELECT id, name, producer, COALESCE(vintage, 0), quantity
		FROM wines
		WHERE active = TRUE AND name ILIKE $1 AND ($2 = 0 OR vintage = $2)
		ORDER BY name, vintage
		LIMIT $3`

	lockStockQuery = `SELECT name, COALESCE(vintage, 0), quantity FROM wines WHERE id = $1 AND active = TRUE FOR UPDATE`

	updateStockQuery = `UPDATE wines SET quantity = $1, updated_at = $2 WHERE id = $3`

	insertMovementQuery = `INSERT INTO movements (id, wine_id, kind, quantity, stock_after, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
)

var trailingVintage = regexp.MustCompile(`\s+((?:19|20)\d{2})$`)

// Wine is one catalog entry with its stock level.
type Wine struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Producer    string  `json:"producer,omitempty"`
	Vintage     int     `json:"vintage,omitempty"`
	Color       string  `json:"color,omitempty"`
	Region      string  `json:"region,omitempty"`
	Price       float64 `json:"price,omitempty"`
	Quantity    int     `json:"quantity"`
	MinQuantity int     `json:"minQuantity,omitempty"`
}

func (w Wine) Label() string {
	if w.Vintage > 0 {
		return fmt.Sprintf("%s %d", w.Name, w.Vintage)
	}
	return w.Name
}

// Postgres implements movement.Inventory on the wines and movements tables.
type Postgres struct {
	db     *sql.DB
	logger logger.Logger
	now    func() time.Time
}

func NewPostgres(db *sql.DB, log logger.Logger) *Postgres {
	return &Postgres{
		db:     db,
		logger: logger.ForComponent(log, "inventory"),
		now:    time.Now,
	}
}

// ApplyMovement resolves the reference to a single wine and changes its
// stock. Several matches always return Ambiguous with every candidate, even
// when one of them carries the exact name.
func (p *Postgres) ApplyMovement(ctx context.Context, itemReference string, kind movement.Kind, quantity int) (movement.Outcome, error) {
	if quantity <= 0 {
		return movement.Rejected(movement.ReasonNonPositiveQuantity), nil
	}

	matches, err := p.FindWines(ctx, itemReference)
	if err != nil {
		return movement.Outcome{}, err
	}

	switch len(matches) {
	case 0:
		return movement.Rejected(movement.ReasonUnknownItem), nil
	case 1:
		return p.applyToWine(ctx, matches[0].ID, kind, quantity)
	}

	candidates := make([]movement.Candidate, len(matches))
	for i, w := range matches {
		candidates[i] = toCandidate(w)
	}
	return movement.Ambiguous(candidates), nil
}

// ResolveAmbiguity applies the intent to the chosen candidate, which must be
// one of those offered.
func (p *Postgres) ResolveAmbiguity(ctx context.Context, intent movement.Intent, candidates []movement.Candidate, chosenID string) (movement.Outcome, error) {
	offered := false
	for _, c := range candidates {
		if c.ID == chosenID {
			offered = true
			break
		}
	}
	if !offered {
		return movement.Rejected(movement.ReasonUnknownCandidate), nil
	}
	if intent.Quantity <= 0 {
		return movement.Rejected(movement.ReasonNonPositiveQuantity), nil
	}
	return p.applyToWine(ctx, chosenID, intent.Kind, intent.Quantity)
}

// FindWines matches a free-text reference against active catalog names. A
// trailing year restricts the vintage.
func (p *Postgres) FindWines(ctx context.Context, reference string) ([]Wine, error) {
	name, vintage := splitVintage(reference)
	if name == "" {
		return nil, nil
	}

	rows, err := p.db.QueryContext(ctx, findWinesQuery, "%"+escapeLike(name)+"%", vintage, maxCandidates)
	if err != nil {
		return nil, fmt.Errorf("%w: find wines: %v", ErrInventoryUnavailable, err)
	}
	defer rows.Close()

	var wines []Wine
	for rows.Next() {
		var w Wine
		var producer sql.NullString
		if err := rows.Scan(&w.ID, &w.Name, &producer, &w.Vintage, &w.Quantity); err != nil {
			return nil, fmt.Errorf("%w: scan wine: %v", ErrInventoryUnavailable, err)
		}
		w.Producer = producer.String
		wines = append(wines, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInventoryUnavailable, err)
	}
	return wines, nil
}

func (p *Postgres) applyToWine(ctx context.Context, wineID string, kind movement.Kind, quantity int) (movement.Outcome, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return movement.Outcome{}, fmt.Errorf("%w: begin: %v", ErrInventoryUnavailable, err)
	}
	defer tx.Rollback()

	var name string
	var vintage, stock int
	err = tx.QueryRowContext(ctx, lockStockQuery, wineID).Scan(&name, &vintage, &stock)
	if err == sql.ErrNoRows {
		return movement.Rejected(movement.ReasonUnknownItem), nil
	}
	if err != nil {
		return movement.Outcome{}, fmt.Errorf("%w: lock stock: %v", ErrInventoryUnavailable, err)
	}

	label := Wine{Name: name, Vintage: vintage}.Label()
	after := stock + quantity
	if kind == movement.Consumption {
		if quantity > stock {
			return movement.Rejected(fmt.Sprintf("%s: %s (%d available)", movement.ReasonInsufficientStock, label, stock)), nil
		}
		after = stock - quantity
	}

	now := p.now()
	if _, err := tx.ExecContext(ctx, updateStockQuery, after, now, wineID); err != nil {
		return movement.Outcome{}, fmt.Errorf("%w: update stock: %v", ErrInventoryUnavailable, err)
	}
	if _, err := tx.ExecContext(ctx, insertMovementQuery, uuid.New().String(), wineID, string(kind), quantity, after, now); err != nil {
		return movement.Outcome{}, fmt.Errorf("%w: record movement: %v", ErrInventoryUnavailable, err)
	}
	if err := tx.Commit(); err != nil {
		return movement.Outcome{}, fmt.Errorf("%w: commit: %v", ErrInventoryUnavailable, err)
	}

	p.logger.Info("movement applied", map[string]interface{}{
		"wineId":   wineID,
		"kind":     string(kind),
		"quantity": quantity,
		"stock":    after,
	})
	return movement.Applied(fmt.Sprintf("%s: %d -> %d", label, stock, after)), nil
}

func toCandidate(w Wine) movement.Candidate {
	var details []string
	if w.Vintage > 0 {
		details = append(details, strconv.Itoa(w.Vintage))
	}
	if w.Producer != "" {
		details = append(details, w.Producer)
	}
	return movement.Candidate{ID: w.ID, Name: w.Name, Details: strings.Join(details, ", ")}
}

func splitVintage(reference string) (string, int) {
	ref := strings.TrimSpace(reference)
	m := trailingVintage.FindStringSubmatchIndex(ref)
	if m == nil {
		return ref, 0
	}
	year, _ := strconv.Atoi(ref[m[2]:m[3]])
	return strings.TrimSpace(ref[:m[0]]), year
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}
