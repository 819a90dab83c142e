// Package memory provides an in-memory Store used by tests and throwaway runs.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cwaldren/pricewatch/internal/store"
)

// Store keeps products and observations in process memory.
type Store struct {
	mu           sync.RWMutex
	products     map[string]store.Product
	observations []store.Observation
	order        []string
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		products: make(map[string]store.Product),
	}
}

// AddProduct implements store.Store.
func (s *Store) AddProduct(_ context.Context, p store.Product) (store.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.products {
		if existing.Active && existing.URL == p.URL {
			return store.Product{}, store.ErrDuplicateURL
		}
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	p.Active = true
	s.products[p.ID] = p
	s.order = append(s.order, p.ID)
	return p, nil
}

// ListActive implements store.Store. Products come back in insertion order.
func (s *Store) ListActive(_ context.Context) ([]store.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.Product, 0, len(s.products))
	for _, id := range s.order {
		if p, ok := s.products[id]; ok && p.Active {
			out = append(out, p)
		}
	}
	return out, nil
}

// GetByID implements store.Store.
func (s *Store) GetByID(_ context.Context, id string) (store.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return store.Product{}, store.ErrNotFound
	}
	return p, nil
}

// UpdateCurrentPrice implements store.Store.
func (s *Store) UpdateCurrentPrice(_ context.Context, id string, price decimal.Decimal, checkedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return store.ErrNotFound
	}
	p.CurrentPrice = &price
	p.LastChecked = &checkedAt
	s.products[id] = p
	return nil
}

// Deactivate implements store.Store.
func (s *Store) Deactivate(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return store.ErrNotFound
	}
	p.Active = false
	s.products[id] = p
	return nil
}

// AppendObservation implements store.Store.
func (s *Store) AppendObservation(_ context.Context, productID string, price decimal.Decimal, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[productID]; !ok {
		return store.ErrNotFound
	}
	s.observations = append(s.observations, store.Observation{
		ProductID: productID,
		Price:     price,
		At:        at,
	})
	return nil
}

// ListObservations implements store.Store, newest-first.
func (s *Store) ListObservations(_ context.Context, productID string) ([]store.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Timestamps are non-decreasing in insertion order, so reverse iteration
	// yields newest-first.
	var out []store.Observation
	for i := len(s.observations) - 1; i >= 0; i-- {
		if s.observations[i].ProductID == productID {
			out = append(out, s.observations[i])
		}
	}
	return out, nil
}

// ClearObservations implements store.Store.
func (s *Store) ClearObservations(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.observations = nil
	return nil
}

// ResetAll implements store.Store.
func (s *Store) ResetAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.products = make(map[string]store.Product)
	s.order = nil
	s.observations = nil
	return nil
}

// Close implements store.Store; nothing to release.
func (s *Store) Close() error { return nil }
