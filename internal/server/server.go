// Package server exposes the tracker over a small JSON HTTP API. It is a
// thin presentation collaborator: every handler delegates to the detection,
// tracking, store, or export components.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cwaldren/pricewatch/internal/export"
	"github.com/cwaldren/pricewatch/internal/metrics"
	"github.com/cwaldren/pricewatch/internal/store"
	"github.com/cwaldren/pricewatch/internal/track"
)

// Detector is the ad-hoc detection entry point used by the test endpoint.
type Detector interface {
	Detect(ctx context.Context, url, selector string) (decimal.Decimal, bool)
}

// Tracker is the scheduler surface the API drives.
type Tracker interface {
	Start() error
	Stop()
	Running() bool
	RunCycle(ctx context.Context) (track.CycleResult, error)
}

// Server handles the HTTP API.
type Server struct {
	store    store.Store
	detector Detector
	tracker  Tracker
	exporter *export.Exporter
	logger   *zap.Logger
	interval time.Duration
}

// New builds a Server.
func New(st store.Store, detector Detector, tracker Tracker, interval time.Duration, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		store:    st,
		detector: detector,
		tracker:  tracker,
		exporter: export.New(st),
		logger:   logger,
		interval: interval,
	}
}

// Handler assembles the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/products", s.handleAddProduct)
		r.Get("/products", s.handleListProducts)
		r.Get("/products/{id}", s.handleGetProduct)
		r.Delete("/products/{id}", s.handleDeleteProduct)
		r.Get("/products/{id}/history", s.handleHistory)
		r.Delete("/history", s.handleClearHistory)

		r.Post("/detect", s.handleDetect)

		r.Get("/tracking", s.handleTrackingStatus)
		r.Post("/tracking/start", s.handleTrackingStart)
		r.Post("/tracking/stop", s.handleTrackingStop)
		r.Post("/tracking/check", s.handleCheckNow)

		r.Get("/export", s.handleExport)
	})

	return r
}

type productPayload struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	URL          string     `json:"url"`
	Selector     string     `json:"selector,omitempty"`
	TargetPrice  *string    `json:"target_price,omitempty"`
	CurrentPrice *string    `json:"current_price,omitempty"`
	LastChecked  *time.Time `json:"last_checked,omitempty"`
	Active       bool       `json:"active"`
	CreatedAt    time.Time  `json:"created_at"`
}

func toPayload(p store.Product) productPayload {
	out := productPayload{
		ID:          p.ID,
		Name:        p.Name,
		URL:         p.URL,
		Selector:    p.Selector,
		LastChecked: p.LastChecked,
		Active:      p.Active,
		CreatedAt:   p.CreatedAt,
	}
	if p.TargetPrice != nil {
		v := p.TargetPrice.String()
		out.TargetPrice = &v
	}
	if p.CurrentPrice != nil {
		v := p.CurrentPrice.String()
		out.CurrentPrice = &v
	}
	return out
}

type addProductRequest struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	TargetPrice string `json:"target_price"`
	Selector    string `json:"selector"`
}

func (s *Server) handleAddProduct(w http.ResponseWriter, r *http.Request) {
	var req addProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.URL == "" {
		s.writeError(w, http.StatusBadRequest, "name and url are required")
		return
	}

	p := store.Product{Name: req.Name, URL: req.URL, Selector: req.Selector}
	if req.TargetPrice != "" {
		target, err := decimal.NewFromString(req.TargetPrice)
		if err != nil || target.IsNegative() {
			s.writeError(w, http.StatusBadRequest, "target_price must be a non-negative decimal")
			return
		}
		p.TargetPrice = &target
	}

	created, err := s.store.AddProduct(r.Context(), p)
	if errors.Is(err, store.ErrDuplicateURL) {
		s.writeError(w, http.StatusConflict, "this url is already being tracked")
		return
	}
	if err != nil {
		s.internalError(w, "add product", err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toPayload(created))
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.store.ListActive(r.Context())
	if err != nil {
		s.internalError(w, "list products", err)
		return
	}
	out := make([]productPayload, 0, len(products))
	for _, p := range products {
		out = append(out, toPayload(p))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetByID(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		s.internalError(w, "get product", err)
		return
	}
	s.writeJSON(w, http.StatusOK, toPayload(p))
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	err := s.store.Deactivate(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		s.internalError(w, "delete product", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type observationPayload struct {
	Price     string    `json:"price"`
	Timestamp time.Time `json:"timestamp"`
	Change    string    `json:"change,omitempty"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.store.GetByID(r.Context(), id); errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "product not found")
		return
	} else if err != nil {
		s.internalError(w, "get product", err)
		return
	}

	obs, err := s.store.ListObservations(r.Context(), id)
	if err != nil {
		s.internalError(w, "list history", err)
		return
	}

	out := make([]observationPayload, 0, len(obs))
	for i, o := range obs {
		row := observationPayload{Price: o.Price.String(), Timestamp: o.At}
		// History is newest-first, so the previous reading sits one row down.
		if i+1 < len(obs) {
			diff := o.Price.Sub(obs[i+1].Price)
			if !diff.IsZero() {
				row.Change = diff.StringFixed(2)
			}
		}
		out = append(out, row)
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.store.ClearObservations(r.Context()); err != nil {
		s.internalError(w, "clear history", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type detectRequest struct {
	URL      string `json:"url"`
	Selector string `json:"selector"`
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	var req detectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		s.writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	value, ok := s.detector.Detect(r.Context(), req.URL, req.Selector)
	if !ok {
		s.writeJSON(w, http.StatusOK, map[string]any{"found": false})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"found": true, "price": value.String()})
}

func (s *Server) handleTrackingStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"active":           s.tracker.Running(),
		"interval_seconds": int(s.interval.Seconds()),
	})
}

func (s *Server) handleTrackingStart(w http.ResponseWriter, _ *http.Request) {
	if err := s.tracker.Start(); err != nil {
		if errors.Is(err, track.ErrAlreadyRunning) {
			s.writeError(w, http.StatusConflict, "tracking is already active")
			return
		}
		s.internalError(w, "start tracking", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

func (s *Server) handleTrackingStop(w http.ResponseWriter, _ *http.Request) {
	s.tracker.Stop()
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (s *Server) handleCheckNow(w http.ResponseWriter, r *http.Request) {
	res, err := s.tracker.RunCycle(r.Context())
	if err != nil {
		s.internalError(w, "run check cycle", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{
		"checked": res.Checked,
		"updated": res.Updated,
		"skipped": res.Skipped,
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := s.exporter.Write(r.Context(), w); err != nil {
		s.logger.Error("export failed", zap.Error(err))
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write response failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	s.logger.Error(fmt.Sprintf("%s failed", op), zap.Error(err))
	s.writeError(w, http.StatusInternalServerError, "internal error")
}
