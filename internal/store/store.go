// Package store defines the persistence contract for tracked products and
// their price history, plus the domain types shared across backends.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrDuplicateURL is returned by AddProduct when the URL is already tracked
// by an active product. Deactivated products do not reserve their URL.
var ErrDuplicateURL = errors.New("url is already tracked by an active product")

// ErrNotFound is returned when a product lookup matches nothing.
var ErrNotFound = errors.New("product not found")

// Product is one tracked listing. CurrentPrice and LastChecked stay nil until
// the first successful check; TargetPrice and Selector are optional user
// input. Deletion is soft: Active flips to false and the row survives.
type Product struct {
	ID           string
	Name         string
	URL          string
	TargetPrice  *decimal.Decimal
	Selector     string
	CurrentPrice *decimal.Decimal
	LastChecked  *time.Time
	Active       bool
	CreatedAt    time.Time
}

// Observation is a single timestamped price reading. Observations are
// append-only and outlive product deactivation.
type Observation struct {
	ProductID string
	Price     decimal.Decimal
	At        time.Time
}

// Store is the persistence collaborator. Implementations enforce URL
// uniqueness among active products at the AddProduct boundary.
type Store interface {
	// AddProduct persists a new product and returns it with its assigned ID.
	// Fails with ErrDuplicateURL if an active product already uses the URL.
	AddProduct(ctx context.Context, p Product) (Product, error)

	// ListActive returns all products with Active=true.
	ListActive(ctx context.Context) ([]Product, error)

	// GetByID returns a product (active or not) or ErrNotFound.
	GetByID(ctx context.Context, id string) (Product, error)

	// UpdateCurrentPrice sets the product's current price and last-checked
	// timestamp after a successful detection.
	UpdateCurrentPrice(ctx context.Context, id string, price decimal.Decimal, checkedAt time.Time) error

	// Deactivate soft-deletes a product. Its observations are kept.
	Deactivate(ctx context.Context, id string) error

	// AppendObservation records one price reading for a product.
	AppendObservation(ctx context.Context, productID string, price decimal.Decimal, at time.Time) error

	// ListObservations returns a product's history ordered newest-first.
	ListObservations(ctx context.Context, productID string) ([]Observation, error)

	// ClearObservations deletes all history rows for all products. Product
	// rows are untouched.
	ClearObservations(ctx context.Context) error

	// ResetAll drops products and history alike.
	ResetAll(ctx context.Context) error

	Close() error
}
