// Package sqlite implements the Store contract on SQLite via the CGO-free
// modernc.org driver. The DSN is a filesystem path; use ":memory:" for an
// in-memory database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/cwaldren/pricewatch/internal/store"
)

// Store is a SQLite-backed store.Store.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at path and ensures the schema.
func New(ctx context.Context, path string) (*Store, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("empty sqlite path")
	}
	db, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent and sidesteps
	// SQLITE_BUSY under the scheduler's serialized writes.
	db.SetMaxOpenConns(1)
	// busy timeout helps with short concurrent locks
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=3000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	s := &Store{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS products(
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			url TEXT NOT NULL,
			target_price TEXT NULL,
			selector TEXT NOT NULL DEFAULT '',
			current_price TEXT NULL,
			last_checked TIMESTAMP NULL,
			active INTEGER NOT NULL DEFAULT 1,
			created_at TIMESTAMP NOT NULL
		);`,
		// URL uniqueness applies to active rows only, so a soft-deleted
		// product's URL can be reused.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_products_active_url
			ON products(url) WHERE active = 1;`,
		`CREATE TABLE IF NOT EXISTS price_history(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			product_id TEXT NOT NULL REFERENCES products(id),
			price TEXT NOT NULL,
			timestamp TIMESTAMP NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_price_history_product
			ON price_history(product_id, timestamp);`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// AddProduct implements store.Store.
func (s *Store) AddProduct(ctx context.Context, p store.Product) (store.Product, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	p.Active = true

	var target any
	if p.TargetPrice != nil {
		target = p.TargetPrice.String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products(id, name, url, target_price, selector, active, created_at)
		VALUES(?, ?, ?, ?, ?, 1, ?);`,
		p.ID, p.Name, p.URL, target, p.Selector, p.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return store.Product{}, store.ErrDuplicateURL
		}
		return store.Product{}, fmt.Errorf("insert product: %w", err)
	}
	return p, nil
}

const productColumns = `id, name, url, target_price, selector, current_price, last_checked, active, created_at`

// ListActive implements store.Store.
func (s *Store) ListActive(ctx context.Context) ([]store.Product, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE active = 1 ORDER BY created_at, id;`)
	if err != nil {
		return nil, fmt.Errorf("list active products: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []store.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetByID implements store.Store.
func (s *Store) GetByID(ctx context.Context, id string) (store.Product, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ?;`, id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Product{}, store.ErrNotFound
	}
	return p, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (store.Product, error) {
	var (
		p           store.Product
		target      sql.NullString
		current     sql.NullString
		lastChecked sql.NullTime
		active      int
	)
	err := row.Scan(&p.ID, &p.Name, &p.URL, &target, &p.Selector,
		&current, &lastChecked, &active, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Product{}, err
		}
		return store.Product{}, fmt.Errorf("scan product: %w", err)
	}
	if target.Valid {
		d, err := decimal.NewFromString(target.String)
		if err != nil {
			return store.Product{}, fmt.Errorf("parse stored target price: %w", err)
		}
		p.TargetPrice = &d
	}
	if current.Valid {
		d, err := decimal.NewFromString(current.String)
		if err != nil {
			return store.Product{}, fmt.Errorf("parse stored current price: %w", err)
		}
		p.CurrentPrice = &d
	}
	if lastChecked.Valid {
		t := lastChecked.Time
		p.LastChecked = &t
	}
	p.Active = active == 1
	return p, nil
}

// UpdateCurrentPrice implements store.Store.
func (s *Store) UpdateCurrentPrice(ctx context.Context, id string, price decimal.Decimal, checkedAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE products SET current_price = ?, last_checked = ? WHERE id = ?;`,
		price.String(), checkedAt.UTC(), id)
	if err != nil {
		return fmt.Errorf("update current price: %w", err)
	}
	return requireRow(res)
}

// Deactivate implements store.Store.
func (s *Store) Deactivate(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE products SET active = 0 WHERE id = ?;`, id)
	if err != nil {
		return fmt.Errorf("deactivate product: %w", err)
	}
	return requireRow(res)
}

// AppendObservation implements store.Store.
func (s *Store) AppendObservation(ctx context.Context, productID string, price decimal.Decimal, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO price_history(product_id, price, timestamp) VALUES(?, ?, ?);`,
		productID, price.String(), at.UTC())
	if err != nil {
		return fmt.Errorf("append observation: %w", err)
	}
	return nil
}

// ListObservations implements store.Store, newest-first.
func (s *Store) ListObservations(ctx context.Context, productID string) ([]store.Observation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, price, timestamp FROM price_history
		WHERE product_id = ?
		ORDER BY timestamp DESC, id DESC;`, productID)
	if err != nil {
		return nil, fmt.Errorf("list observations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []store.Observation
	for rows.Next() {
		var (
			o   store.Observation
			raw string
		)
		if err := rows.Scan(&o.ProductID, &raw, &o.At); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		o.Price, err = decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("parse stored price: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// ClearObservations implements store.Store.
func (s *Store) ClearObservations(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM price_history;`); err != nil {
		return fmt.Errorf("clear observations: %w", err)
	}
	return nil
}

// ResetAll implements store.Store.
func (s *Store) ResetAll(ctx context.Context) error {
	for _, q := range []string{`DELETE FROM price_history;`, `DELETE FROM products;`} {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("reset database: %w", err)
		}
	}
	return nil
}

// Close implements store.Store.
func (s *Store) Close() error { return s.db.Close() }

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
