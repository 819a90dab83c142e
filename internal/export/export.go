// Package export serializes the tracked catalog and its price history to a
// JSON interchange document.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/cwaldren/pricewatch/internal/store"
)

// Document is the exported payload.
type Document struct {
	ExportedAt time.Time `json:"exported_at"`
	Products   []Product `json:"products"`
}

// Product is one exported product with its full history, newest-first.
type Product struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	URL          string        `json:"url"`
	Selector     string        `json:"selector,omitempty"`
	TargetPrice  string        `json:"target_price,omitempty"`
	CurrentPrice string        `json:"current_price,omitempty"`
	LastChecked  *time.Time    `json:"last_checked,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	History      []Observation `json:"history"`
}

// Observation is one exported price reading.
type Observation struct {
	Price     string    `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

// Exporter reads from the store and writes Documents.
type Exporter struct {
	store store.Store
}

// New builds an Exporter.
func New(st store.Store) *Exporter {
	return &Exporter{store: st}
}

// Build assembles the export document for all active products.
func (e *Exporter) Build(ctx context.Context) (Document, error) {
	products, err := e.store.ListActive(ctx)
	if err != nil {
		return Document{}, fmt.Errorf("list active products: %w", err)
	}

	doc := Document{
		ExportedAt: time.Now().UTC(),
		Products:   make([]Product, 0, len(products)),
	}
	for _, p := range products {
		obs, err := e.store.ListObservations(ctx, p.ID)
		if err != nil {
			return Document{}, fmt.Errorf("list observations for %s: %w", p.ID, err)
		}
		out := Product{
			ID:        p.ID,
			Name:      p.Name,
			URL:       p.URL,
			Selector:  p.Selector,
			CreatedAt: p.CreatedAt,
			History:   make([]Observation, 0, len(obs)),
		}
		if p.TargetPrice != nil {
			out.TargetPrice = p.TargetPrice.String()
		}
		if p.CurrentPrice != nil {
			out.CurrentPrice = p.CurrentPrice.String()
		}
		out.LastChecked = p.LastChecked
		for _, o := range obs {
			out.History = append(out.History, Observation{
				Price:     o.Price.String(),
				Timestamp: o.At,
			})
		}
		doc.Products = append(doc.Products, out)
	}
	return doc, nil
}

// Write serializes the export document as indented JSON.
func (e *Exporter) Write(ctx context.Context, w io.Writer) error {
	doc, err := e.Build(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode export: %w", err)
	}
	return nil
}
