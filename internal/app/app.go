// Package app wires the battle engine to its ledger, stats, event hub, SQLite
// store and HTTP server, and runs them until the context is cancelled.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/narasim-teja/Sorobon-Battles/internal/config"
	"github.com/narasim-teja/Sorobon-Battles/internal/engine"
	"github.com/narasim-teja/Sorobon-Battles/internal/events"
	"github.com/narasim-teja/Sorobon-Battles/internal/game"
	"github.com/narasim-teja/Sorobon-Battles/internal/ledger"
	"github.com/narasim-teja/Sorobon-Battles/internal/logging"
	"github.com/narasim-teja/Sorobon-Battles/internal/server"
	"github.com/narasim-teja/Sorobon-Battles/internal/stats"
	"github.com/narasim-teja/Sorobon-Battles/internal/storage/sqlite"
)

const (
	shutdownTimeout = 10 * time.Second
	// statsDaysKept bounds the per-day max-hit history.
	statsDaysKept = 7
)

type App struct {
	cfg    config.Config
	log    zerolog.Logger
	Engine *game.Engine
	Ledger *ledger.Ledger
	Stats  *stats.Recorder
	Hub    *events.Hub
	store  *sqlite.Store
	server *http.Server
}

// New builds the service. When cfg.DBPath is set the last saved state is
// restored and the ledger balances are rebuilt from the restored tokens.
func New(ctx context.Context, cfg config.Config, log zerolog.Logger) (*App, error) {
	rules, err := config.LoadRules(cfg.RulesPath)
	if err != nil {
		return nil, err
	}
	var src engine.Source
	if cfg.Seed != 0 {
		src = engine.NewSeededSource(cfg.Seed)
	} else {
		s, err := engine.NewSource()
		if err != nil {
			return nil, err
		}
		src = s
	}

	a := &App{
		cfg:    cfg,
		log:    log,
		Ledger: ledger.New(),
		Stats:  stats.NewRecorder(),
		Hub:    events.NewHub(logging.Component(log, "ws")),
	}
	a.Engine, err = game.New(
		game.WithRules(rules),
		game.WithSource(src),
		game.WithMinter(a.Ledger),
		game.WithNotifier(game.Notifiers{a.Stats, a.Hub}),
		game.WithLogger(logging.Component(log, "engine")),
	)
	if err != nil {
		return nil, err
	}

	if cfg.DBPath != "" {
		if err := a.restore(ctx); err != nil {
			return nil, err
		}
	}

	srv := server.New(server.Options{
		Engine:  a.Engine,
		Ledger:  a.Ledger,
		Stats:   a.Stats,
		Hub:     a.Hub,
		BaseURI: cfg.BaseURI,
		Logger:  logging.Component(log, "http"),
	})
	a.server = &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return a, nil
}

func (a *App) restore(ctx context.Context) error {
	store, err := sqlite.Open(a.cfg.DBPath)
	if err != nil {
		return err
	}
	snap, ok, err := store.Load(ctx)
	if err != nil {
		_ = store.Close()
		return err
	}
	if ok {
		if err := a.Engine.Restore(snap); err != nil {
			_ = store.Close()
			return fmt.Errorf("restore %s: %w", a.cfg.DBPath, err)
		}
		for _, t := range snap.Tokens {
			if err := a.Ledger.Mint(ctx, t.Owner, t.Kind, 1); err != nil {
				_ = store.Close()
				return fmt.Errorf("rebuild ledger: %w", err)
			}
		}
		a.log.Info().Int("players", len(snap.Players)).Int("battles", len(snap.Battles)).
			Uint64("supply", snap.TotalSupply).Msg("state restored")
	}
	a.store = store
	return nil
}

// Save writes the current engine state to the store. It is a no-op without one.
func (a *App) Save(ctx context.Context) error {
	if a.store == nil {
		return nil
	}
	return a.store.Save(ctx, a.Engine.Snapshot())
}

// Handler returns the HTTP handler of the service.
func (a *App) Handler() http.Handler { return a.server.Handler }

// Serve runs the HTTP server on ln and the snapshot loop until ctx is done,
// then shuts the server down and saves a final snapshot.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.log.Info().Str("addr", ln.Addr().String()).Msg("battles api listening")
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		a.snapshotLoop(gctx)
		return nil
	})

	err := g.Wait()

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if serr := a.Save(saveCtx); serr != nil {
		err = errors.Join(err, fmt.Errorf("final save: %w", serr))
	} else if a.store != nil {
		a.log.Info().Msg("final snapshot saved")
	}
	return err
}

func (a *App) snapshotLoop(ctx context.Context) {
	interval := a.cfg.SnapshotInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := a.Stats.PruneDaily(statsDaysKept); n > 0 {
				a.log.Debug().Int("days", n).Msg("pruned daily stats")
			}
			if err := a.Save(ctx); err != nil {
				a.log.Error().Err(err).Msg("snapshot failed")
			}
		}
	}
}

// Close releases the store.
func (a *App) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

// Run starts the battles API service.
func Run(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	a, err := New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()
	ln, err := net.Listen("tcp", cfg.ListenAddr())
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.ListenAddr(), err)
	}
	return a.Serve(ctx, ln)
}
