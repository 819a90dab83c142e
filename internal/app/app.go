// Package app wires configuration, storage, detection, tracking, and the
// HTTP server into one runnable unit.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/cwaldren/pricewatch/internal/config"
	"github.com/cwaldren/pricewatch/internal/detect"
	"github.com/cwaldren/pricewatch/internal/export"
	"github.com/cwaldren/pricewatch/internal/logging"
	"github.com/cwaldren/pricewatch/internal/notify"
	"github.com/cwaldren/pricewatch/internal/server"
	"github.com/cwaldren/pricewatch/internal/store"
	"github.com/cwaldren/pricewatch/internal/store/memory"
	"github.com/cwaldren/pricewatch/internal/store/postgres"
	"github.com/cwaldren/pricewatch/internal/store/sqlite"
	"github.com/cwaldren/pricewatch/internal/track"
)

// App holds the assembled components.
type App struct {
	Config   config.Config
	Logger   *zap.Logger
	Store    store.Store
	Detector *detect.Detector
	Tracker  *track.Tracker
	Exporter *export.Exporter
	Server   *server.Server
}

// New assembles an App from configuration.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, err
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	static := detect.NewStatic(detect.StaticConfig{
		UserAgent: cfg.Scraper.UserAgent,
		Timeout:   cfg.ScraperTimeout(),
	}, logger)
	rendered := detect.NewRendered(detect.RenderedConfig{
		UserAgent:       cfg.Scraper.UserAgent,
		NavTimeout:      cfg.NavTimeout(),
		SettleDelay:     cfg.SettleDelay(),
		SelectorTimeout: cfg.SelectorTimeout(),
	}, logger)
	detector := detect.New(static, rendered, logger)

	notifier, err := buildNotifier(cfg, logger)
	if err != nil {
		st.Close()
		return nil, err
	}

	tracker := track.New(st, detector, notifier, track.Config{
		Interval:      cfg.TrackingInterval(),
		RecoveryDelay: cfg.RecoveryDelay(),
		Policy: notify.Policy{
			PriceDrop:     cfg.Notify.PriceDrop,
			TargetReached: cfg.Notify.TargetReached,
		},
	}, logger)

	return &App{
		Config:   cfg,
		Logger:   logger,
		Store:    st,
		Detector: detector,
		Tracker:  tracker,
		Exporter: export.New(st),
		Server:   server.New(st, detector, tracker, cfg.TrackingInterval(), logger),
	}, nil
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.Store.Driver {
	case "memory":
		return memory.New(), nil
	case "sqlite":
		return sqlite.New(ctx, cfg.Store.DSN)
	case "postgres":
		return postgres.New(ctx, postgres.Config{DSN: cfg.Store.DSN})
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func buildNotifier(cfg config.Config, logger *zap.Logger) (notify.Notifier, error) {
	sinks := []notify.Notifier{notify.NewLogNotifier(logger)}
	if cfg.Notify.TelegramToken != "" {
		tg, err := notify.NewTelegramNotifier(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID)
		if err != nil {
			return nil, fmt.Errorf("telegram notifier: %w", err)
		}
		sinks = append(sinks, tg)
	}
	return notify.NewMulti(logger, sinks...), nil
}

// Run starts the tracking loop and the HTTP server and blocks until the
// context is done or SIGINT/SIGTERM arrives, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.Tracker.Start(); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              net.JoinHostPort("", strconv.Itoa(a.Config.Server.Port)),
		Handler:           a.Server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("http server listening", zap.Int("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.Tracker.Stop()
		return err
	case <-ctx.Done():
	}

	a.Logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.Logger.Warn("http shutdown failed", zap.Error(err))
	}
	a.Tracker.Stop()
	return nil
}

// Close releases the store and flushes logs.
func (a *App) Close() {
	if a.Tracker != nil {
		a.Tracker.Stop()
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Logger.Warn("store close failed", zap.Error(err))
		}
	}
	_ = a.Logger.Sync()
}
