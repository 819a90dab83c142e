// Package postgres implements the Store contract on PostgreSQL via pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/cwaldren/pricewatch/internal/store"
)

// Config controls the pgx connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it.
type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store is a Postgres-backed store.Store.
type Store struct {
	pool pool
}

// New connects a pool and ensures the schema.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := &Store{pool: p}
	if err := s.ensureSchema(ctx); err != nil {
		p.Close()
		return nil, err
	}
	return s, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
// It does not manage the schema.
func NewWithPool(p pool) (*Store, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: p}, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS products (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			url TEXT NOT NULL,
			target_price NUMERIC NULL,
			selector TEXT NOT NULL DEFAULT '',
			current_price NUMERIC NULL,
			last_checked TIMESTAMPTZ NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_products_active_url
			ON products(url) WHERE active`,
		`CREATE TABLE IF NOT EXISTS price_history (
			id BIGSERIAL PRIMARY KEY,
			product_id UUID NOT NULL REFERENCES products(id),
			price NUMERIC NOT NULL,
			ts TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_price_history_product
			ON price_history(product_id, ts)`,
	}
	for _, q := range stmts {
		if _, err := s.pool.Exec(ctx, q); err != nil {
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
	_, err := s.pool.Exec(ctx, `
		INSERT INTO products (id, name, url, target_price, selector, active, created_at)
		VALUES ($1, $2, $3, $4, $5, TRUE, $6)`,
		p.ID, p.Name, p.URL, target, p.Selector, p.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return store.Product{}, store.ErrDuplicateURL
		}
		return store.Product{}, fmt.Errorf("insert product: %w", err)
	}
	return p, nil
}

const productColumns = `id, name, url, target_price::text, selector, current_price::text, last_checked, active, created_at`

// ListActive implements store.Store.
func (s *Store) ListActive(ctx context.Context) ([]store.Product, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+productColumns+` FROM products WHERE active ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list active products: %w", err)
	}
	defer rows.Close()

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
	row := s.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.Product{}, store.ErrNotFound
	}
	return p, err
}

func scanProduct(row pgx.Row) (store.Product, error) {
	var (
		p           store.Product
		target      *string
		current     *string
		lastChecked *time.Time
	)
	err := row.Scan(&p.ID, &p.Name, &p.URL, &target, &p.Selector,
		&current, &lastChecked, &p.Active, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Product{}, err
		}
		return store.Product{}, fmt.Errorf("scan product: %w", err)
	}
	if target != nil {
		d, err := decimal.NewFromString(*target)
		if err != nil {
			return store.Product{}, fmt.Errorf("parse stored target price: %w", err)
		}
		p.TargetPrice = &d
	}
	if current != nil {
		d, err := decimal.NewFromString(*current)
		if err != nil {
			return store.Product{}, fmt.Errorf("parse stored current price: %w", err)
		}
		p.CurrentPrice = &d
	}
	p.LastChecked = lastChecked
	return p, nil
}

// UpdateCurrentPrice implements store.Store.
func (s *Store) UpdateCurrentPrice(ctx context.Context, id string, price decimal.Decimal, checkedAt time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE products SET current_price = $1, last_checked = $2 WHERE id = $3`,
		price.String(), checkedAt.UTC(), id)
	if err != nil {
		return fmt.Errorf("update current price: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Deactivate implements store.Store.
func (s *Store) Deactivate(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE products SET active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// AppendObservation implements store.Store.
func (s *Store) AppendObservation(ctx context.Context, productID string, price decimal.Decimal, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO price_history (product_id, price, ts) VALUES ($1, $2, $3)`,
		productID, price.String(), at.UTC())
	if err != nil {
		return fmt.Errorf("append observation: %w", err)
	}
	return nil
}

// ListObservations implements store.Store, newest-first.
func (s *Store) ListObservations(ctx context.Context, productID string) ([]store.Observation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT product_id, price::text, ts FROM price_history
		WHERE product_id = $1
		ORDER BY ts DESC, id DESC`, productID)
	if err != nil {
		return nil, fmt.Errorf("list observations: %w", err)
	}
	defer rows.Close()

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
	if _, err := s.pool.Exec(ctx, `DELETE FROM price_history`); err != nil {
		return fmt.Errorf("clear observations: %w", err)
	}
	return nil
}

// ResetAll implements store.Store.
func (s *Store) ResetAll(ctx context.Context) error {
	for _, q := range []string{`DELETE FROM price_history`, `DELETE FROM products`} {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("reset database: %w", err)
		}
	}
	return nil
}

// Close implements store.Store.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
